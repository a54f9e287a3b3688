package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *SQLite) AddContact(ctx context.Context, owner string, c Contact) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM contacts WHERE owner = ? AND phone_number = ?`,
		owner, c.PhoneNumber,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check contact: %w", err)
	}
	if exists > 0 {
		return ErrDuplicate
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contacts (owner, phone_number, name, notes, added_at)
		VALUES (?, ?, ?, ?, ?)`,
		owner, c.PhoneNumber, c.Name, c.Notes, c.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("add contact: %w", err)
	}
	return nil
}

func (s *SQLite) ListContacts(ctx context.Context, owner string) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT phone_number, name, notes, added_at
		FROM contacts WHERE owner = ? ORDER BY added_at`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.PhoneNumber, &c.Name, &c.Notes, &c.AddedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *SQLite) UpdateContact(ctx context.Context, owner, phone string, name, notes *string) (*Contact, error) {
	var c Contact
	err := s.db.QueryRowContext(ctx, `
		SELECT phone_number, name, notes, added_at
		FROM contacts WHERE owner = ? AND phone_number = ?`,
		owner, phone,
	).Scan(&c.PhoneNumber, &c.Name, &c.Notes, &c.AddedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}

	if name != nil {
		c.Name = *name
	}
	if notes != nil {
		c.Notes = *notes
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE contacts SET name = ?, notes = ?
		WHERE owner = ? AND phone_number = ?`,
		c.Name, c.Notes, owner, phone,
	)
	if err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	return &c, nil
}

func (s *SQLite) DeleteContact(ctx context.Context, owner, phone string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE owner = ? AND phone_number = ?`,
		owner, phone,
	)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return requireRow(res)
}
