package server

import (
	"encoding/json"
	"testing"
)

func drain(ch chan *Event) []*Event {
	var events []*Event
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func openSessionFor(t *testing.T, r *Registry) *Session {
	t.Helper()
	s := NewSession()
	s.Open()
	r.Add(s)
	return s
}

func TestMarkOnlineAndPush(t *testing.T) {
	r := NewRegistry()
	s := openSessionFor(t, r)

	r.MarkOnline("u1", s.ID)

	if !r.IsOnline("u1") {
		t.Fatal("u1 should be online")
	}
	if !r.Push("u1", NewEvent("test", nil)) {
		t.Fatal("push to bound session should succeed")
	}
}

func TestMarkOfflineConditional(t *testing.T) {
	r := NewRegistry()
	first := openSessionFor(t, r)
	r.MarkOnline("u1", first.ID)

	// reconnect before the first socket's disconnect lands
	second := openSessionFor(t, r)
	r.MarkOnline("u1", second.ID)

	// stale disconnect must not clobber the newer binding
	if userID, ok := r.MarkOffline(first.ID); ok {
		t.Fatalf("stale MarkOffline succeeded for %s", userID)
	}
	if !r.IsOnline("u1") {
		t.Fatal("u1 should still be online via the second session")
	}

	s, ok := r.SessionFor("u1")
	if !ok || s.ID != second.ID {
		t.Fatalf("SessionFor = %v, want second session", s)
	}

	// the newer session disconnecting does take the user offline
	userID, ok := r.MarkOffline(second.ID)
	if !ok || userID != "u1" {
		t.Fatalf("MarkOffline = (%s, %v), want (u1, true)", userID, ok)
	}
	if r.IsOnline("u1") {
		t.Fatal("u1 should be offline")
	}
}

func TestMarkOfflineUnboundHandle(t *testing.T) {
	r := NewRegistry()
	s := openSessionFor(t, r)

	// session never bound to a user
	if _, ok := r.MarkOffline(s.ID); ok {
		t.Fatal("MarkOffline on unbound handle should report false")
	}
}

func TestStatusBroadcasts(t *testing.T) {
	r := NewRegistry()
	observer := openSessionFor(t, r)

	bound := openSessionFor(t, r)
	r.MarkOnline("u1", bound.ID)
	r.MarkOffline(bound.ID)

	var statuses []string
	for _, ev := range drain(observer.Events) {
		if ev.Type != EventUserStatusChanged {
			continue
		}
		var p statusPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			t.Fatalf("unmarshal status: %v", err)
		}
		if p.UserID != "u1" {
			t.Errorf("status for %s, want u1", p.UserID)
		}
		statuses = append(statuses, p.Status)
	}

	if len(statuses) != 2 || statuses[0] != "online" || statuses[1] != "offline" {
		t.Fatalf("statuses = %v, want [online offline]", statuses)
	}
}

func TestPushToOfflineUser(t *testing.T) {
	r := NewRegistry()
	if r.Push("ghost", NewEvent("test", nil)) {
		t.Fatal("push to unknown user should report false")
	}
}

func TestPushDropsOnFullQueue(t *testing.T) {
	r := NewRegistry()
	s := openSessionFor(t, r)
	r.MarkOnline("u1", s.ID)
	// the status broadcast above already occupies a slot
	drain(s.Events)

	for i := 0; i < cap(s.Events); i++ {
		if !r.Push("u1", NewEvent("fill", nil)) {
			t.Fatalf("push %d should succeed", i)
		}
	}
	if r.Push("u1", NewEvent("overflow", nil)) {
		t.Fatal("push to a saturated session should be dropped")
	}
}

func TestPushAfterClose(t *testing.T) {
	r := NewRegistry()
	s := openSessionFor(t, r)
	r.MarkOnline("u1", s.ID)

	s.Close()

	if r.Push("u1", NewEvent("test", nil)) {
		t.Fatal("push to closed session should be dropped")
	}
}
