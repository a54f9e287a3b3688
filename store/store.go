// Package store persists users, contacts, messages and proximity alerts.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
	ErrForbidden = errors.New("not allowed")
)

// LocationSample is a single GPS reading. Immutable once recorded; a new
// sample for a user supersedes the previous one.
type LocationSample struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Contact is a phone-number-keyed relative registered for monitoring.
type Contact struct {
	PhoneNumber string    `json:"phoneNumber"`
	Name        string    `json:"name"`
	Notes       string    `json:"notes"`
	AddedAt     time.Time `json:"addedAt"`
}

// User is a registered account.
type User struct {
	ID              string          `json:"id"`
	Username        string          `json:"username"`
	Email           string          `json:"email"`
	PhoneNumber     string          `json:"phoneNumber,omitempty"`
	PasswordHash    string          `json:"-"`
	Location        *LocationSample `json:"currentLocation,omitempty"`
	LocationSharing bool            `json:"locationSharingEnabled"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Message is a stored chat message. Content is encrypted at rest.
type Message struct {
	ID               string     `json:"id"`
	Sender           string     `json:"sender"`
	Recipient        string     `json:"recipient"`
	EncryptedContent string     `json:"-"`
	IsRead           bool       `json:"isRead"`
	ReadAt           *time.Time `json:"readAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`

	// per-participant soft delete; a deleted message stays visible to
	// the other side
	DeletedBySender    bool `json:"-"`
	DeletedByRecipient bool `json:"-"`
}

// Conversation summarizes the message history with one peer.
type Conversation struct {
	PeerID          string    `json:"peerId"`
	LastMessage     *Message  `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	Unread          int       `json:"unread"`
}

// AlertRecord is one proximity alert, created on a classification
// transition and mutated only by dismissal.
type AlertRecord struct {
	ID              string         `json:"id"`
	Owner           string         `json:"owner"`
	ContactName     string         `json:"relativeName"`
	ContactPhone    string         `json:"relativePhoneNumber"`
	DistanceKm      float64        `json:"distance"`
	UserLocation    LocationSample `json:"userLocation"`
	ContactLocation LocationSample `json:"relativeLocation"`
	Classification  string         `json:"alertType"`
	Dismissed       bool           `json:"dismissed"`
	DismissedAt     *time.Time     `json:"dismissedAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// AlertPage is one page of alert history, newest first.
type AlertPage struct {
	Alerts  []*AlertRecord `json:"alerts"`
	Total   int            `json:"total"`
	HasMore bool           `json:"hasMore"`
}

// Store is the persistence surface the server depends on.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByPhone(ctx context.Context, phone string) (*User, error)
	UpdateLocation(ctx context.Context, userID string, loc LocationSample) error
	SetLocationSharing(ctx context.Context, userID string, enabled bool) error

	AddContact(ctx context.Context, owner string, c Contact) error
	ListContacts(ctx context.Context, owner string) ([]Contact, error)
	UpdateContact(ctx context.Context, owner, phone string, name, notes *string) (*Contact, error)
	DeleteContact(ctx context.Context, owner, phone string) error

	InsertMessage(ctx context.Context, m *Message) error
	MessagesBetween(ctx context.Context, viewer, peer string) ([]*Message, error)
	Conversations(ctx context.Context, userID string) ([]Conversation, error)
	MarkRead(ctx context.Context, recipient, sender string) error
	MarkMessageRead(ctx context.Context, recipient, messageID string) error
	DeleteMessage(ctx context.Context, userID, messageID string) error

	InsertAlert(ctx context.Context, a *AlertRecord) error
	GetAlert(ctx context.Context, owner, id string) (*AlertRecord, error)
	DismissAlert(ctx context.Context, owner, id string, at time.Time) error
	ListAlerts(ctx context.Context, owner string, limit, skip int, dismissed bool) (*AlertPage, error)

	Close() error
}
