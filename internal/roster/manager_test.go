package roster

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matfelipe/deskchat/internal/bus"
	"github.com/matfelipe/deskchat/internal/store"
	"go.uber.org/zap"
)

func testManager(t *testing.T) (*Manager, *store.DB, *bus.Bus) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	logger := zap.NewNop()
	return NewManager(db, b, logger), db, b
}

func seed(t *testing.T, db *store.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := db.UpsertConversation(&store.Conversation{ID: id, Name: id, Kind: store.KindDirect}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestOpenZeroesUnread(t *testing.T) {
	m, db, _ := testManager(t)
	seed(t, db, "c1")
	if err := db.SetUnread("c1", 5); err != nil {
		t.Fatal(err)
	}

	if err := m.Open("c1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if m.Active() != "c1" {
		t.Errorf("Active() = %q, want c1", m.Active())
	}

	c, _ := db.GetConversation("c1")
	if c.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0 after open", c.UnreadCount)
	}
}

func TestOpenUnknownConversation(t *testing.T) {
	m, _, _ := testManager(t)
	err := m.Open("ghost")
	if !errors.Is(err, ErrUnknownConversation) {
		t.Errorf("Open(ghost) error = %v, want ErrUnknownConversation", err)
	}
	if m.Active() != "" {
		t.Errorf("Active() = %q, want empty after failed open", m.Active())
	}
}

func TestAppendRemoteToInactiveIncrementsUnread(t *testing.T) {
	m, db, _ := testManager(t)
	seed(t, db, "c1", "c2")
	if err := m.Open("c1"); err != nil {
		t.Fatal(err)
	}

	msg := &store.Message{ConversationID: "c2", MsgID: "m1", SenderID: "ana", Body: "oi", Status: store.StatusRead, Timestamp: time.Now().UnixMilli()}
	if err := m.Append(msg); err != nil {
		t.Fatal(err)
	}

	c, _ := db.GetConversation("c2")
	if c.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1 for inactive conversation", c.UnreadCount)
	}
	if c.LastMessagePreview != "oi" {
		t.Errorf("preview = %q, want oi", c.LastMessagePreview)
	}
}

func TestAppendRemoteToActiveKeepsUnreadZero(t *testing.T) {
	m, db, _ := testManager(t)
	seed(t, db, "c1")
	if err := m.Open("c1"); err != nil {
		t.Fatal(err)
	}

	msg := &store.Message{ConversationID: "c1", MsgID: "m1", SenderID: "ana", Body: "oi", Status: store.StatusRead, Timestamp: time.Now().UnixMilli()}
	if err := m.Append(msg); err != nil {
		t.Fatal(err)
	}

	c, _ := db.GetConversation("c1")
	if c.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0 for active conversation", c.UnreadCount)
	}
}

func TestAppendLocalNeverIncrementsUnread(t *testing.T) {
	m, db, _ := testManager(t)
	seed(t, db, "c1", "c2")
	if err := m.Open("c1"); err != nil {
		t.Fatal(err)
	}

	// Local message to a non-active conversation (e.g. delivery completing
	// after the user switched away).
	msg := &store.Message{ConversationID: "c2", MsgID: "m1", FromMe: true, Body: "oi", Status: store.StatusSending, Timestamp: time.Now().UnixMilli()}
	if err := m.Append(msg); err != nil {
		t.Fatal(err)
	}

	c, _ := db.GetConversation("c2")
	if c.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0 for local message", c.UnreadCount)
	}
}

func TestAppendPublishesEvents(t *testing.T) {
	m, db, b := testManager(t)
	seed(t, db, "c1")

	msgCh, unsub1 := b.Subscribe("message.", 10)
	defer unsub1()
	convCh, unsub2 := b.Subscribe("conversation.", 10)
	defer unsub2()

	msg := &store.Message{ConversationID: "c1", MsgID: "m1", Body: "oi", Status: store.StatusRead, Timestamp: 1000}
	if err := m.Append(msg); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-msgCh:
		if evt.Kind != bus.KindMessageAppended {
			t.Errorf("kind = %q, want %q", evt.Kind, bus.KindMessageAppended)
		}
		got, ok := evt.Payload.(*store.Message)
		if !ok || got.MsgID != "m1" {
			t.Errorf("payload = %v, want message m1", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message.appended")
	}

	select {
	case evt := <-convCh:
		if evt.Kind != bus.KindConversationUpdated {
			t.Errorf("kind = %q, want %q", evt.Kind, bus.KindConversationUpdated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for conversation.updated")
	}
}

func TestCloseClearsActive(t *testing.T) {
	m, db, _ := testManager(t)
	seed(t, db, "c1")
	if err := m.Open("c1"); err != nil {
		t.Fatal(err)
	}
	m.Close()
	if m.Active() != "" {
		t.Errorf("Active() = %q, want empty after Close", m.Active())
	}
}

func TestSearchRoster(t *testing.T) {
	m, db, _ := testManager(t)
	if err := db.UpsertConversation(&store.Conversation{ID: "c1", Name: "Ana", LastMessagePreview: "combinado"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertConversation(&store.Conversation{ID: "c2", Name: "Bruno"}); err != nil {
		t.Fatal(err)
	}

	convs, err := m.Search("ana", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].ID != "c1" {
		t.Errorf("Search(ana) = %v, want [c1]", convs)
	}
}
