package server

import (
	"log/slog"
	"time"
)

// Relay forwards chat messages and typing signals to online recipients.
// It holds no state of its own; an offline recipient makes delivery a
// silent no-op since persistence happens before relay is attempted.
type Relay struct {
	registry *Registry
	log      *slog.Logger
}

// NewRelay creates a relay over the given presence registry.
func NewRelay(registry *Registry) *Relay {
	return &Relay{
		registry: registry,
		log:      slog.With("component", "relay"),
	}
}

// Relay pushes a message to the recipient's session if one is bound.
func (r *Relay) Relay(senderID, recipientID, content string) {
	ev := NewEvent(EventReceiveMessage, receiveMessagePayload{
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now(),
	})

	if !r.registry.Push(recipientID, ev) {
		return
	}
	metricMessagesRelayed.Inc()

	// best-effort link preview, delivered as a follow-up event
	go r.enrich(senderID, recipientID, content)
}

// NotifyTyping pushes a typing-state change to the recipient if online.
// Callers are expected to throttle keystroke-driven calls themselves.
func (r *Relay) NotifyTyping(senderID, recipientID string, typing bool) {
	name := EventUserTyping
	if !typing {
		name = EventUserStopTyping
	}
	r.registry.Push(recipientID, NewEvent(name, userTypingPayload{UserID: senderID}))
}

// SignalCall offers a call to the recipient, carrying the caller's
// session handle so the answer can be routed back directly.
func (r *Relay) SignalCall(callerID, recipientID, callerHandle string) {
	r.registry.Push(recipientID, NewEvent(EventIncomingCall, incomingCallPayload{
		CallerID:     callerID,
		CallerHandle: callerHandle,
	}))
}

// AcceptCall tells the caller their offer was answered.
func (r *Relay) AcceptCall(callerID, recipientHandle string) {
	r.registry.Push(callerID, NewEvent(EventCallAccepted, callAcceptedPayload{
		RecipientHandle: recipientHandle,
	}))
}

func (r *Relay) enrich(senderID, recipientID, content string) {
	meta := linkMetadata(content)
	if meta == nil {
		return
	}
	r.registry.Push(recipientID, NewEvent(EventMessageMetadata, messageMetadataPayload{
		SenderID: senderID,
		Metadata: meta,
	}))
}
