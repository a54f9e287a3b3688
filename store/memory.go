package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*Memory)(nil)

// Memory is an in-memory Store. Used in tests and as a fallback when the
// sqlite database cannot be opened. Nothing survives a restart.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]*User
	contacts map[string][]Contact
	messages []*Message
	alerts   []*AlertRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*User),
		contacts: make(map[string][]Contact),
	}
}

func (m *Memory) Close() error { return nil }

//
// Users
//

func (m *Memory) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.PhoneNumber != "" && u.PhoneNumber == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateLocation(ctx context.Context, userID string, loc LocationSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Location = &loc
	u.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SetLocationSharing(ctx context.Context, userID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.LocationSharing = enabled
	u.UpdatedAt = time.Now()
	return nil
}

//
// Contacts
//

func (m *Memory) AddContact(ctx context.Context, owner string, c Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.contacts[owner] {
		if existing.PhoneNumber == c.PhoneNumber {
			return ErrDuplicate
		}
	}
	m.contacts[owner] = append(m.contacts[owner], c)
	return nil
}

func (m *Memory) ListContacts(ctx context.Context, owner string) ([]Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Contact(nil), m.contacts[owner]...), nil
}

func (m *Memory) UpdateContact(ctx context.Context, owner, phone string, name, notes *string) (*Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.contacts[owner]
	for i := range list {
		if list[i].PhoneNumber == phone {
			if name != nil {
				list[i].Name = *name
			}
			if notes != nil {
				list[i].Notes = *notes
			}
			cp := list[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) DeleteContact(ctx context.Context, owner, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.contacts[owner]
	for i := range list {
		if list[i].PhoneNumber == phone {
			m.contacts[owner] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

//
// Messages
//

func (m *Memory) InsertMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *Memory) MessagesBetween(ctx context.Context, viewer, peer string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Message
	for _, msg := range m.messages {
		sent := msg.Sender == viewer && msg.Recipient == peer && !msg.DeletedBySender
		received := msg.Sender == peer && msg.Recipient == viewer && !msg.DeletedByRecipient
		if sent || received {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]*Message)
	unread := make(map[string]int)
	for _, msg := range m.messages {
		var peer string
		switch userID {
		case msg.Sender:
			if msg.DeletedBySender {
				continue
			}
			peer = msg.Recipient
		case msg.Recipient:
			if msg.DeletedByRecipient {
				continue
			}
			peer = msg.Sender
		default:
			continue
		}
		if cur, ok := latest[peer]; !ok || msg.CreatedAt.After(cur.CreatedAt) {
			cp := *msg
			latest[peer] = &cp
		}
		if msg.Recipient == userID && !msg.IsRead {
			unread[peer]++
		}
	}

	var convos []Conversation
	for peer, msg := range latest {
		convos = append(convos, Conversation{
			PeerID:          peer,
			LastMessage:     msg,
			LastMessageTime: msg.CreatedAt,
			Unread:          unread[peer],
		})
	}
	sort.Slice(convos, func(i, j int) bool {
		return convos[i].LastMessageTime.After(convos[j].LastMessageTime)
	})
	return convos, nil
}

func (m *Memory) MarkRead(ctx context.Context, recipient, sender string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, msg := range m.messages {
		if msg.Recipient == recipient && msg.Sender == sender && !msg.IsRead {
			msg.IsRead = true
			msg.ReadAt = &now
		}
	}
	return nil
}

func (m *Memory) MarkMessageRead(ctx context.Context, recipient, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID != messageID {
			continue
		}
		if msg.Recipient != recipient {
			return ErrForbidden
		}
		if !msg.IsRead {
			now := time.Now()
			msg.IsRead = true
			msg.ReadAt = &now
		}
		return nil
	}
	return ErrNotFound
}

func (m *Memory) DeleteMessage(ctx context.Context, userID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID != messageID {
			continue
		}
		switch userID {
		case msg.Sender:
			msg.DeletedBySender = true
		case msg.Recipient:
			msg.DeletedByRecipient = true
		default:
			return ErrForbidden
		}
		return nil
	}
	return ErrNotFound
}

//
// Alerts
//

func (m *Memory) InsertAlert(ctx context.Context, a *AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.alerts = append(m.alerts, &cp)
	return nil
}

func (m *Memory) GetAlert(ctx context.Context, owner, id string) (*AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.alerts {
		if a.ID == id && a.Owner == owner {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) DismissAlert(ctx context.Context, owner, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id && a.Owner == owner && !a.Dismissed {
			a.Dismissed = true
			a.DismissedAt = &at
		}
	}
	return nil
}

func (m *Memory) ListAlerts(ctx context.Context, owner string, limit, skip int, dismissed bool) (*AlertPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*AlertRecord
	for _, a := range m.alerts {
		if a.Owner == owner && a.Dismissed == dismissed {
			cp := *a
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := &AlertPage{Total: len(matched), HasMore: skip+limit < len(matched)}
	if skip < len(matched) {
		end := skip + limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Alerts = matched[skip:end]
	}
	return page, nil
}
