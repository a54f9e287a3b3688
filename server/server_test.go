package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"safechat.app/config"
	"safechat.app/spatial"
	"safechat.app/store"
)

func testConfig() *config.Config {
	return &config.Config{
		ThresholdKm:   1.0,
		AlertCooldown: 0,
		ResolverMode:  config.ResolverRegistry,
		JWTSecret:     "test-secret",
		EncryptionKey: "12345678901234567890123456789012",
	}
}

func newTestServer(t *testing.T) (*Server, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return New(testConfig(), st, spatial.New(), nil), st
}

func seedUser(t *testing.T, st *store.Memory, id, phone string, sharing bool) {
	t.Helper()
	err := st.CreateUser(context.Background(), &store.User{
		ID:              id,
		Username:        id,
		Email:           id + "@example.com",
		PhoneNumber:     phone,
		LocationSharing: sharing,
		CreatedAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func frame(t *testing.T, name string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(NewEvent(name, payload))
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return raw
}

func eventsByType(events []*Event, name string) []*Event {
	var out []*Event
	for _, ev := range events {
		if ev.Type == name {
			out = append(out, ev)
		}
	}
	return out
}

func TestLocationUpdateTriggersProximityAlert(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	seedUser(t, st, "watcher", "+14155550100", true)
	seedUser(t, st, "relative", "+14155550199", true)

	// the watcher monitors the relative's phone number
	if err := st.AddContact(ctx, "watcher", store.Contact{
		PhoneNumber: "+14155550199",
		Name:        "Mom",
		AddedAt:     time.Now(),
	}); err != nil {
		t.Fatalf("add contact: %v", err)
	}

	// the relative shares a position first
	relSess := NewSession()
	srv.openSession(relSess)
	srv.handleEvent(ctx, relSess, frame(t, EventUserOnline, userOnlinePayload{UserID: "relative"}))
	srv.handleEvent(ctx, relSess, frame(t, EventUpdateLocation, updateLocationPayload{
		UserID: "relative", Latitude: 37.7750, Longitude: -122.4195,
	}))

	// the watcher comes online ~13 meters away
	sess := NewSession()
	srv.openSession(sess)
	srv.handleEvent(ctx, sess, frame(t, EventUserOnline, userOnlinePayload{UserID: "watcher"}))
	drain(sess.Events)
	srv.handleEvent(ctx, sess, frame(t, EventUpdateLocation, updateLocationPayload{
		UserID: "watcher", Latitude: 37.7749, Longitude: -122.4194,
	}))

	events := drain(sess.Events)

	alerts := eventsByType(events, EventProximityAlert)
	if len(alerts) != 1 {
		t.Fatalf("got %d proximity alerts, want 1 (events: %v)", len(alerts), events)
	}
	var payload proximityAlertPayload
	if err := json.Unmarshal(alerts[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal alert: %v", err)
	}
	if payload.Classification != ClassEntering {
		t.Errorf("classification = %s, want %s", payload.Classification, ClassEntering)
	}
	if payload.DistanceKm > 0.05 {
		t.Errorf("distance = %f km, want well under threshold", payload.DistanceKm)
	}

	if len(eventsByType(events, EventLocationTracked)) != 1 {
		t.Errorf("missing locationTracked ack")
	}

	page, _ := st.ListAlerts(ctx, "watcher", 50, 0, false)
	if page.Total != 1 {
		t.Errorf("persisted alerts = %d, want 1", page.Total)
	}
}

func TestInvalidCoordinatesRejectedEveryTime(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	seedUser(t, st, "u1", "+14155550100", true)

	sess := NewSession()
	srv.openSession(sess)
	srv.handleEvent(ctx, sess, frame(t, EventUserOnline, userOnlinePayload{UserID: "u1"}))
	drain(sess.Events)

	for i := 0; i < 2; i++ {
		srv.handleEvent(ctx, sess, frame(t, EventUpdateLocation, updateLocationPayload{
			UserID: "u1", Latitude: 37.7749, Longitude: 200,
		}))
	}

	events := drain(sess.Events)
	errors := eventsByType(events, EventLocationError)
	if len(errors) != 2 {
		t.Fatalf("got %d locationError events, want 2", len(errors))
	}
	if len(eventsByType(events, EventLocationTracked)) != 0 {
		t.Error("invalid update must not be acked")
	}

	user, _ := st.GetUser(ctx, "u1")
	if user.Location != nil {
		t.Errorf("location stored despite rejection: %+v", user.Location)
	}
}

func TestLocationUpdateUnknownUser(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := NewSession()
	srv.openSession(sess)

	srv.handleEvent(context.Background(), sess, frame(t, EventUpdateLocation, updateLocationPayload{
		UserID: "ghost", Latitude: 1, Longitude: 1,
	}))

	events := drain(sess.Events)
	errors := eventsByType(events, EventLocationError)
	if len(errors) != 1 {
		t.Fatalf("got %d locationError events, want 1", len(errors))
	}
	var p locationErrorPayload
	json.Unmarshal(errors[0].Data, &p)
	if p.Message != "User not found" {
		t.Errorf("message = %q", p.Message)
	}
}

func TestStopSharingForgetsAndRearms(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	seedUser(t, st, "watcher", "+14155550100", true)
	seedUser(t, st, "relative", "+14155550199", true)
	st.AddContact(ctx, "watcher", store.Contact{PhoneNumber: "+14155550199", Name: "Mom", AddedAt: time.Now()})

	relSess := NewSession()
	srv.openSession(relSess)
	srv.handleEvent(ctx, relSess, frame(t, EventUpdateLocation, updateLocationPayload{
		UserID: "relative", Latitude: 37.7750, Longitude: -122.4195,
	}))

	sess := NewSession()
	srv.openSession(sess)
	srv.handleEvent(ctx, sess, frame(t, EventUserOnline, userOnlinePayload{UserID: "watcher"}))
	drain(sess.Events)

	update := frame(t, EventUpdateLocation, updateLocationPayload{
		UserID: "watcher", Latitude: 37.7749, Longitude: -122.4194,
	})

	srv.handleEvent(ctx, sess, update)
	if n := len(eventsByType(drain(sess.Events), EventProximityAlert)); n != 1 {
		t.Fatalf("first update: %d alerts, want 1", n)
	}

	// steady state: no new record
	srv.handleEvent(ctx, sess, update)
	if n := len(eventsByType(drain(sess.Events), EventProximityAlert)); n != 0 {
		t.Fatalf("steady state: %d alerts, want 0", n)
	}

	srv.handleEvent(ctx, sess, frame(t, EventStopLocationSharing, stopSharingPayload{UserID: "watcher"}))
	drain(sess.Events)

	// sharing off drops the debounce state, so the next reading
	// within threshold counts as entering again
	srv.handleEvent(ctx, sess, update)
	if n := len(eventsByType(drain(sess.Events), EventProximityAlert)); n != 1 {
		t.Fatalf("after stop sharing: %d alerts, want 1", n)
	}
}

func TestSessionCloseMarksOffline(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	seedUser(t, st, "u1", "+14155550100", true)

	sess := NewSession()
	srv.openSession(sess)
	srv.handleEvent(ctx, sess, frame(t, EventUserOnline, userOnlinePayload{UserID: "u1"}))
	if !srv.Registry().IsOnline("u1") {
		t.Fatal("u1 should be online")
	}

	srv.closeSession(sess)
	if srv.Registry().IsOnline("u1") {
		t.Fatal("u1 should be offline after session close")
	}
	if sess.State() != StateClosed {
		t.Fatalf("session state = %d, want closed", sess.State())
	}
}

func TestCallEventsCarrySessionHandles(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	callee := NewSession()
	srv.openSession(callee)
	srv.handleEvent(ctx, callee, frame(t, EventUserOnline, userOnlinePayload{UserID: "u2"}))

	caller := NewSession()
	srv.openSession(caller)
	srv.handleEvent(ctx, caller, frame(t, EventUserOnline, userOnlinePayload{UserID: "u1"}))
	drain(callee.Events)
	drain(caller.Events)

	srv.handleEvent(ctx, caller, frame(t, EventInitiateCall, initiateCallPayload{
		CallerID: "u1", RecipientID: "u2",
	}))

	offers := eventsByType(drain(callee.Events), EventIncomingCall)
	if len(offers) != 1 {
		t.Fatalf("got %d incomingCall events, want 1", len(offers))
	}
	var offer incomingCallPayload
	json.Unmarshal(offers[0].Data, &offer)
	if offer.CallerID != "u1" || offer.CallerHandle != caller.ID {
		t.Errorf("offer = %+v", offer)
	}

	srv.handleEvent(ctx, callee, frame(t, EventAcceptCall, acceptCallPayload{CallerID: "u1"}))

	answers := eventsByType(drain(caller.Events), EventCallAccepted)
	if len(answers) != 1 {
		t.Fatalf("got %d callAccepted events, want 1", len(answers))
	}
	var answer callAcceptedPayload
	json.Unmarshal(answers[0].Data, &answer)
	if answer.RecipientHandle != callee.ID {
		t.Errorf("answer = %+v", answer)
	}
}

func TestSendMessageEventRelaysOnly(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	recipient := NewSession()
	srv.openSession(recipient)
	srv.handleEvent(ctx, recipient, frame(t, EventUserOnline, userOnlinePayload{UserID: "u2"}))
	drain(recipient.Events)

	sender := NewSession()
	srv.openSession(sender)
	srv.handleEvent(ctx, sender, frame(t, EventSendMessage, sendMessagePayload{
		SenderID: "u1", RecipientID: "u2", Content: "ping",
	}))

	events := eventsByType(drain(recipient.Events), EventReceiveMessage)
	if len(events) != 1 {
		t.Fatalf("got %d receiveMessage events, want 1", len(events))
	}
	var p receiveMessagePayload
	json.Unmarshal(events[0].Data, &p)
	if p.SenderID != "u1" || p.Content != "ping" {
		t.Errorf("payload = %+v", p)
	}
}
