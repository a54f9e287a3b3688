// Package push delivers web push notifications to users without a live
// session. Subscriptions are kept per user id and persisted to disk.
package push

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Subscription is the browser-provided push endpoint.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Manager sends web push notifications.
type Manager struct {
	mu           sync.RWMutex
	subs         map[string]*Subscription // userID -> subscription
	file         string
	vapidPublic  string
	vapidPrivate string
	subject      string
	log          *slog.Logger
}

// NewManager creates a push manager. Push is disabled when the VAPID keys
// are empty; Notify then becomes a no-op.
func NewManager(file, vapidPublic, vapidPrivate, subject string) *Manager {
	m := &Manager{
		subs:         make(map[string]*Subscription),
		file:         file,
		vapidPublic:  vapidPublic,
		vapidPrivate: vapidPrivate,
		subject:      subject,
		log:          slog.With("component", "push"),
	}
	m.load()
	if m.Enabled() {
		m.log.Info("web push enabled", "subscriptions", len(m.subs))
	} else {
		m.log.Info("VAPID keys not configured, web push disabled")
	}
	return m
}

// Enabled reports whether VAPID keys are configured.
func (m *Manager) Enabled() bool {
	return m.vapidPublic != "" && m.vapidPrivate != ""
}

// PublicKey returns the VAPID public key clients subscribe with.
func (m *Manager) PublicKey() string {
	return m.vapidPublic
}

func (m *Manager) load() {
	data, err := os.ReadFile(m.file)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Warn("failed to load subscriptions", "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &m.subs); err != nil {
		m.log.Warn("failed to parse subscriptions", "error", err)
	}
}

func (m *Manager) save() {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.subs, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		m.log.Warn("failed to marshal subscriptions", "error", err)
		return
	}
	if err := os.WriteFile(m.file, data, 0644); err != nil {
		m.log.Warn("failed to save subscriptions", "error", err)
	}
}

// Subscribe adds or replaces a user's subscription.
func (m *Manager) Subscribe(userID string, sub *Subscription) {
	m.mu.Lock()
	m.subs[userID] = sub
	m.mu.Unlock()
	m.save()
}

// Unsubscribe removes a user's subscription.
func (m *Manager) Unsubscribe(userID string) {
	m.mu.Lock()
	delete(m.subs, userID)
	m.mu.Unlock()
	m.save()
}

// HasSubscription reports whether a user can be reached by web push.
func (m *Manager) HasSubscription(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.subs[userID]
	return ok
}

// Notify sends a notification to a user. It is a no-op when push is
// disabled or the user has no subscription.
func (m *Manager) Notify(userID, title, body string) error {
	if !m.Enabled() {
		return nil
	}

	m.mu.RLock()
	sub, ok := m.subs[userID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"title": title, "body": body})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	wsub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}

	resp, err := webpush.SendNotification(payload, wsub, &webpush.Options{
		Subscriber:      m.subject,
		VAPIDPublicKey:  m.vapidPublic,
		VAPIDPrivateKey: m.vapidPrivate,
		TTL:             3600,
	})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	// endpoint is gone, drop the subscription
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		m.Unsubscribe(userID)
		m.log.Info("subscription expired", "user", userID)
	}
	return nil
}
