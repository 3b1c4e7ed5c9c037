package delivery

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matfelipe/deskchat/internal/bus"
	"github.com/matfelipe/deskchat/internal/clock"
	"github.com/matfelipe/deskchat/internal/config"
	"github.com/matfelipe/deskchat/internal/roster"
	"github.com/matfelipe/deskchat/internal/store"
	"go.uber.org/zap"
)

// fastTimings keeps the scheduled transitions short enough to observe in tests.
func fastTimings() config.Timings {
	t := config.Default().Timings
	t.SentAfterMs = 30
	t.DeliveredAfterMs = 30
	t.ReadAfterMs = 30
	return t
}

func testTracker(t *testing.T) (*Tracker, *roster.Manager, *store.DB, *bus.Bus) {
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

	if err := db.UpsertConversation(&store.Conversation{ID: "c1", Name: "Ana", Kind: store.KindDirect}); err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	logger := zap.NewNop()
	r := roster.NewManager(db, b, logger)
	sched := clock.New()
	t.Cleanup(sched.StopAll)

	identity := config.Identity{UserID: "me", DisplayName: "Me"}
	tr := NewTracker(r, db, sched, b, identity, fastTimings(), logger)
	t.Cleanup(tr.Stop)
	return tr, r, db, b
}

// TestSubmitLifecycle walks one message through the whole lifecycle and
// verifies the observed statuses are exactly sending, sent, delivered, read,
// in that order with no skips.
func TestSubmitLifecycle(t *testing.T) {
	tr, r, _, b := testTracker(t)
	if err := r.Open("c1"); err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe("message.status", 16)
	defer unsub()

	msgID, err := tr.Submit("c1", "Oi")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// Immediately observable as sending.
	if got, _ := tr.Status("c1", msgID); got != store.StatusSending {
		t.Errorf("initial status = %q, want sending", got)
	}

	want := []string{store.StatusSent, store.StatusDelivered, store.StatusRead}
	for _, expected := range want {
		select {
		case evt := <-ch:
			change := evt.Payload.(StatusChange)
			if change.MsgID != msgID {
				t.Fatalf("status change for %q, want %q", change.MsgID, msgID)
			}
			if change.Status != expected {
				t.Fatalf("status = %q, want %q (no skips, no regressions)", change.Status, expected)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for status %q", expected)
		}
	}

	if got, _ := tr.Status("c1", msgID); got != store.StatusRead {
		t.Errorf("final status = %q, want read", got)
	}
	if n := tr.InFlight(); n != 0 {
		t.Errorf("in-flight = %d, want 0 after terminal status", n)
	}
}

func TestSubmitRejectsEmptyBody(t *testing.T) {
	tr, r, db, _ := testTracker(t)
	if err := r.Open("c1"); err != nil {
		t.Fatal(err)
	}

	for _, body := range []string{"", "   ", "\n\t"} {
		if _, err := tr.Submit("c1", body); !errors.Is(err, ErrEmptyBody) {
			t.Errorf("Submit(%q) error = %v, want ErrEmptyBody", body, err)
		}
	}

	// No state change: history stays empty.
	msgs, err := db.ListMessages("c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages after rejected submits, want 0", len(msgs))
	}
}

func TestSubmitRejectsNoActiveConversation(t *testing.T) {
	tr, _, _, _ := testTracker(t)

	if _, err := tr.Submit("", "oi"); !errors.Is(err, ErrNoActiveConversation) {
		t.Errorf("Submit with no conversation error = %v, want ErrNoActiveConversation", err)
	}
}

func TestSubmitUpdatesSummaryImmediately(t *testing.T) {
	tr, r, db, _ := testTracker(t)
	if err := r.Open("c1"); err != nil {
		t.Fatal(err)
	}

	if _, err := tr.Submit("c1", "bom dia"); err != nil {
		t.Fatal(err)
	}

	// Optimistic update: summary reflects the message before any transition.
	c, err := db.GetConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.LastMessagePreview != "bom dia" {
		t.Errorf("preview = %q, want bom dia", c.LastMessagePreview)
	}
	if c.LastMessageAt == 0 {
		t.Error("last_message_at not set")
	}
}

// TestDeliveryContinuesAfterFocusChange verifies that switching the active
// conversation does not cancel in-flight delivery timers.
func TestDeliveryContinuesAfterFocusChange(t *testing.T) {
	tr, r, db, _ := testTracker(t)
	if err := db.UpsertConversation(&store.Conversation{ID: "c2", Name: "Bruno"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Open("c1"); err != nil {
		t.Fatal(err)
	}

	msgID, err := tr.Submit("c1", "oi")
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Open("c2"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, _ := tr.Status("c1", msgID); got == store.StatusRead {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	got, _ := tr.Status("c1", msgID)
	t.Fatalf("status = %q, want read (delivery must complete regardless of focus)", got)
}

func TestStopCancelsPendingTransitions(t *testing.T) {
	tr, r, _, _ := testTracker(t)
	if err := r.Open("c1"); err != nil {
		t.Fatal(err)
	}

	msgID, err := tr.Submit("c1", "oi")
	if err != nil {
		t.Fatal(err)
	}

	tr.Stop()
	if n := tr.InFlight(); n != 0 {
		t.Errorf("in-flight = %d, want 0 after Stop", n)
	}

	time.Sleep(150 * time.Millisecond)
	if got, _ := tr.Status("c1", msgID); got != store.StatusSending {
		t.Errorf("status = %q, want sending (no transitions after Stop)", got)
	}
}

func TestStatusesMonotonicUnderConcurrentSubmits(t *testing.T) {
	tr, r, _, b := testTracker(t)
	if err := r.Open("c1"); err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe("message.status", 256)
	defer unsub()

	ids := make(map[string]bool)
	for i := 0; i < 5; i++ {
		id, err := tr.Submit("c1", "msg")
		if err != nil {
			t.Fatal(err)
		}
		ids[id] = true
	}

	last := make(map[string]int)
	timeout := time.After(3 * time.Second)
	for seen := 0; seen < 5*3; {
		select {
		case evt := <-ch:
			change := evt.Payload.(StatusChange)
			if !ids[change.MsgID] {
				continue
			}
			rank := store.StatusRank(change.Status)
			if prev, ok := last[change.MsgID]; ok && rank <= prev {
				t.Fatalf("message %s regressed from rank %d to %d", change.MsgID, prev, rank)
			}
			last[change.MsgID] = rank
			seen++
		case <-timeout:
			t.Fatalf("timeout; observed %d status changes", len(last))
		}
	}
}
