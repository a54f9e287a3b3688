package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryUsers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	u := &User{ID: "u1", Username: "alice", Email: "alice@example.com",
		PhoneNumber: "+15551234567", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := m.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := m.CreateUser(ctx, &User{ID: "u2", Username: "alice", Email: "other@example.com"}); err != ErrDuplicate {
		t.Errorf("duplicate username err = %v, want ErrDuplicate", err)
	}

	got, err := m.GetUserByPhone(ctx, "+15551234567")
	if err != nil || got.ID != "u1" {
		t.Errorf("GetUserByPhone = %v, %v", got, err)
	}
	if _, err := m.GetUser(ctx, "missing"); err != ErrNotFound {
		t.Errorf("GetUser(missing) err = %v, want ErrNotFound", err)
	}

	loc := LocationSample{Latitude: 51.5, Longitude: -0.1, CapturedAt: time.Now()}
	if err := m.UpdateLocation(ctx, "u1", loc); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	got, _ = m.GetUser(ctx, "u1")
	if got.Location == nil || got.Location.Latitude != 51.5 {
		t.Errorf("location not stored: %+v", got.Location)
	}
}

func TestMemoryContacts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	c := Contact{PhoneNumber: "+15550001111", Name: "Mum", AddedAt: time.Now()}
	if err := m.AddContact(ctx, "u1", c); err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	if err := m.AddContact(ctx, "u1", c); err != ErrDuplicate {
		t.Errorf("duplicate contact err = %v, want ErrDuplicate", err)
	}

	name := "Mother"
	updated, err := m.UpdateContact(ctx, "u1", "+15550001111", &name, nil)
	if err != nil || updated.Name != "Mother" {
		t.Errorf("UpdateContact = %v, %v", updated, err)
	}

	if err := m.DeleteContact(ctx, "u1", "+15550001111"); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}
	if err := m.DeleteContact(ctx, "u1", "+15550001111"); err != ErrNotFound {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestMemoryConversations(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	msgs := []*Message{
		{ID: "m1", Sender: "a", Recipient: "b", CreatedAt: base},
		{ID: "m2", Sender: "b", Recipient: "a", CreatedAt: base.Add(time.Minute)},
		{ID: "m3", Sender: "c", Recipient: "a", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, msg := range msgs {
		if err := m.InsertMessage(ctx, msg); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	convos, err := m.Conversations(ctx, "a")
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(convos) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convos))
	}
	// newest first
	if convos[0].PeerID != "c" || convos[1].PeerID != "b" {
		t.Errorf("conversation order = %s, %s", convos[0].PeerID, convos[1].PeerID)
	}
	if convos[1].LastMessage.ID != "m2" {
		t.Errorf("last message with b = %s, want m2", convos[1].LastMessage.ID)
	}
	if convos[0].Unread != 1 {
		t.Errorf("unread from c = %d, want 1", convos[0].Unread)
	}

	if err := m.MarkRead(ctx, "a", "c"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	convos, _ = m.Conversations(ctx, "a")
	if convos[0].Unread != 0 {
		t.Errorf("unread after MarkRead = %d, want 0", convos[0].Unread)
	}
}

func TestMemoryMessageReadAndDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	msg := &Message{ID: "m1", Sender: "alice", Recipient: "bob", EncryptedContent: "x", CreatedAt: time.Now()}
	if err := m.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	// only the recipient may mark read
	if err := m.MarkMessageRead(ctx, "alice", "m1"); err != ErrForbidden {
		t.Errorf("sender mark read err = %v, want ErrForbidden", err)
	}
	if err := m.MarkMessageRead(ctx, "bob", "missing"); err != ErrNotFound {
		t.Errorf("missing mark read err = %v, want ErrNotFound", err)
	}
	if err := m.MarkMessageRead(ctx, "bob", "m1"); err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}
	msgs, _ := m.MessagesBetween(ctx, "bob", "alice")
	if len(msgs) != 1 || !msgs[0].IsRead || msgs[0].ReadAt == nil {
		t.Fatalf("after mark read: %+v", msgs)
	}

	// delete hides the message from the deleter only
	if err := m.DeleteMessage(ctx, "mallory", "m1"); err != ErrForbidden {
		t.Errorf("stranger delete err = %v, want ErrForbidden", err)
	}
	if err := m.DeleteMessage(ctx, "alice", "m1"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	msgs, _ = m.MessagesBetween(ctx, "alice", "bob")
	if len(msgs) != 0 {
		t.Errorf("deleter still sees %d messages", len(msgs))
	}
	msgs, _ = m.MessagesBetween(ctx, "bob", "alice")
	if len(msgs) != 1 {
		t.Errorf("other side sees %d messages, want 1", len(msgs))
	}
}

func TestMemoryAlertPaging(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		a := &AlertRecord{
			ID: string(rune('a' + i)), Owner: "u1", Classification: "ENTERING",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := m.InsertAlert(ctx, a); err != nil {
			t.Fatalf("InsertAlert: %v", err)
		}
	}

	page, err := m.ListAlerts(ctx, "u1", 2, 0, false)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if page.Total != 5 || !page.HasMore || len(page.Alerts) != 2 {
		t.Errorf("page = total %d hasMore %v len %d", page.Total, page.HasMore, len(page.Alerts))
	}
	// newest first
	if page.Alerts[0].ID != "e" {
		t.Errorf("first alert = %s, want e", page.Alerts[0].ID)
	}

	page, _ = m.ListAlerts(ctx, "u1", 2, 4, false)
	if page.HasMore || len(page.Alerts) != 1 {
		t.Errorf("last page hasMore %v len %d", page.HasMore, len(page.Alerts))
	}
}
