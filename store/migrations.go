package store

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		phone_number TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		accuracy REAL,
		located_at TIMESTAMP,
		location_sharing INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_phone ON users(phone_number)`,

	`CREATE TABLE IF NOT EXISTS contacts (
		owner TEXT NOT NULL REFERENCES users(id),
		phone_number TEXT NOT NULL,
		name TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		added_at TIMESTAMP NOT NULL,
		PRIMARY KEY (owner, phone_number)
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		recipient TEXT NOT NULL,
		encrypted_content TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		read_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		deleted_by_sender INTEGER NOT NULL DEFAULT 0,
		deleted_by_recipient INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender, recipient, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(recipient, is_read)`,

	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		contact_name TEXT NOT NULL,
		contact_phone TEXT NOT NULL,
		distance_km REAL NOT NULL,
		user_lat REAL NOT NULL,
		user_lon REAL NOT NULL,
		contact_lat REAL NOT NULL,
		contact_lon REAL NOT NULL,
		classification TEXT NOT NULL,
		dismissed INTEGER NOT NULL DEFAULT 0,
		dismissed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_owner ON alerts(owner, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_dismissed ON alerts(owner, dismissed)`,
}

func migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
