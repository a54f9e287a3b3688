package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var _ Store = (*SQLite)(nil)

// SQLite implements Store on a local sqlite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

//
// Users
//

func (s *SQLite) CreateUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, phone_number, password_hash,
			location_sharing, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PhoneNumber, u.PasswordHash,
		u.LocationSharing, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, phone_number, password_hash,
	latitude, longitude, accuracy, located_at, location_sharing,
	created_at, updated_at`

func (s *SQLite) scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	var lat, lon, acc sql.NullFloat64
	var locatedAt sql.NullTime
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PhoneNumber, &u.PasswordHash,
		&lat, &lon, &acc, &locatedAt, &u.LocationSharing,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if lat.Valid && lon.Valid {
		u.Location = &LocationSample{
			Latitude:   lat.Float64,
			Longitude:  lon.Float64,
			Accuracy:   acc.Float64,
			CapturedAt: locatedAt.Time,
		}
	}
	return u, nil
}

func (s *SQLite) GetUser(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (s *SQLite) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone_number = ? AND phone_number != ''`, phone))
}

func (s *SQLite) UpdateLocation(ctx context.Context, userID string, loc LocationSample) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET latitude = ?, longitude = ?, accuracy = ?,
			located_at = ?, updated_at = ?
		WHERE id = ?`,
		loc.Latitude, loc.Longitude, loc.Accuracy, loc.CapturedAt, time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	return requireRow(res)
}

func (s *SQLite) SetLocationSharing(ctx context.Context, userID string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET location_sharing = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("set location sharing: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
