package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func (s *SQLite) InsertMessage(ctx context.Context, m *Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender, recipient, encrypted_content, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Sender, m.Recipient, m.EncryptedContent, m.IsRead, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// MessagesBetween returns the viewer's visible history with a peer,
// excluding messages the viewer soft-deleted.
func (s *SQLite) MessagesBetween(ctx context.Context, viewer, peer string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, recipient, encrypted_content, is_read, read_at, created_at,
		       deleted_by_sender, deleted_by_recipient
		FROM messages
		WHERE ((sender = ? AND recipient = ? AND deleted_by_sender = 0)
		    OR (sender = ? AND recipient = ? AND deleted_by_recipient = 0))
		ORDER BY created_at`,
		viewer, peer, peer, viewer,
	)
	if err != nil {
		return nil, fmt.Errorf("messages between: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLite) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, recipient, encrypted_content, is_read, read_at, created_at,
		       deleted_by_sender, deleted_by_recipient
		FROM messages
		WHERE (sender = ? AND deleted_by_sender = 0)
		   OR (recipient = ? AND deleted_by_recipient = 0)
		ORDER BY created_at DESC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("conversations: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// fold newest-first messages into one conversation per peer
	index := make(map[string]int)
	var convos []Conversation
	for _, m := range messages {
		peer := m.Sender
		if peer == userID {
			peer = m.Recipient
		}
		i, ok := index[peer]
		if !ok {
			index[peer] = len(convos)
			convos = append(convos, Conversation{
				PeerID:          peer,
				LastMessage:     m,
				LastMessageTime: m.CreatedAt,
			})
			i = index[peer]
		}
		if m.Recipient == userID && !m.IsRead {
			convos[i].Unread++
		}
	}
	return convos, nil
}

func (s *SQLite) MarkRead(ctx context.Context, recipient, sender string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1, read_at = ?
		WHERE recipient = ? AND sender = ? AND is_read = 0`,
		time.Now(), recipient, sender,
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MarkMessageRead marks one message read. Only the recipient may do so.
func (s *SQLite) MarkMessageRead(ctx context.Context, recipient, messageID string) error {
	var rcpt string
	err := s.db.QueryRowContext(ctx,
		`SELECT recipient FROM messages WHERE id = ?`, messageID).Scan(&rcpt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if rcpt != recipient {
		return ErrForbidden
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1, read_at = ?
		WHERE id = ? AND is_read = 0`,
		time.Now(), messageID,
	)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}

// DeleteMessage hides a message from one participant. The other side
// keeps seeing it. Idempotent.
func (s *SQLite) DeleteMessage(ctx context.Context, userID, messageID string) error {
	var sender, recipient string
	err := s.db.QueryRowContext(ctx,
		`SELECT sender, recipient FROM messages WHERE id = ?`, messageID).
		Scan(&sender, &recipient)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	var column string
	switch userID {
	case sender:
		column = "deleted_by_sender"
	case recipient:
		column = "deleted_by_recipient"
	default:
		return ErrForbidden
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE messages SET `+column+` = 1 WHERE id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func scanMessages(rows *sql.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		m := &Message{}
		var readAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.Sender, &m.Recipient, &m.EncryptedContent,
			&m.IsRead, &readAt, &m.CreatedAt,
			&m.DeletedBySender, &m.DeletedByRecipient); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if readAt.Valid {
			m.ReadAt = &readAt.Time
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
