package server

import (
	"encoding/json"
	"time"

	"safechat.app/store"
)

// Inbound event names.
const (
	EventUserOnline          = "userOnline"
	EventUpdateLocation      = "updateLocation"
	EventSendMessage         = "sendMessage"
	EventTyping              = "typing"
	EventStopTyping          = "stopTyping"
	EventStopLocationSharing = "stopLocationSharing"
	EventInitiateCall        = "initiateCall"
	EventAcceptCall          = "acceptCall"
)

// Outbound event names.
const (
	EventUserStatusChanged       = "userStatusChanged"
	EventLocationTracked         = "locationTracked"
	EventLocationError           = "locationError"
	EventLocationUpdated         = "locationUpdated"
	EventLocationSharingDisabled = "locationSharingDisabled"
	EventLocationSharingToggled  = "locationSharingToggled"
	EventProximityAlert          = "proximityAlert"
	EventRelativeNearby          = "relativeNearby"
	EventReceiveMessage          = "receiveMessage"
	EventUserTyping              = "userTyping"
	EventUserStopTyping          = "userStopTyping"
	EventMessageMetadata         = "messageMetadata"
	EventIncomingCall            = "incomingCall"
	EventCallAccepted            = "callAccepted"
)

// Event is one frame on the socket, both directions.
type Event struct {
	Type string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an outbound event. Marshal failures cannot happen for
// the payload types used here, so they are swallowed.
func NewEvent(name string, payload any) *Event {
	data, _ := json.Marshal(payload)
	return &Event{Type: name, Data: data}
}

//
// Inbound payloads
//

type userOnlinePayload struct {
	UserID string `json:"userId"`
}

type updateLocationPayload struct {
	UserID    string  `json:"userId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

type sendMessagePayload struct {
	SenderID         string `json:"senderId"`
	RecipientID      string `json:"recipientId"`
	Content          string `json:"content"`
	EncryptedContent string `json:"encryptedContent"`
}

type typingPayload struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
}

type stopSharingPayload struct {
	UserID string `json:"userId"`
}

type initiateCallPayload struct {
	CallerID    string `json:"callerId"`
	RecipientID string `json:"recipientId"`
}

type acceptCallPayload struct {
	CallerID string `json:"callerId"`
}

//
// Outbound payloads
//

type statusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type locationTrackedPayload struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type locationErrorPayload struct {
	Message string `json:"message"`
}

type locationUpdatedPayload struct {
	UserID    string    `json:"userId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Cell      string    `json:"cell"`
	Timestamp time.Time `json:"timestamp"`
}

type proximityAlertPayload struct {
	store.AlertRecord
	Message string `json:"message"`
}

type relativeNearbyPayload struct {
	PhoneNumber string  `json:"phoneNumber"`
	Name        string  `json:"name"`
	DistanceKm  float64 `json:"distance"`
	Direction   string  `json:"direction"`
}

type receiveMessagePayload struct {
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type userTypingPayload struct {
	UserID string `json:"userId"`
}

type messageMetadataPayload struct {
	SenderID string    `json:"senderId"`
	Metadata *Metadata `json:"metadata"`
}

type incomingCallPayload struct {
	CallerID     string `json:"callerId"`
	CallerHandle string `json:"callerHandle"`
}

type callAcceptedPayload struct {
	RecipientHandle string `json:"recipientHandle"`
}
