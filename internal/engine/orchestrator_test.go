package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matfelipe/deskchat/internal/bus"
	"github.com/matfelipe/deskchat/internal/call"
	"github.com/matfelipe/deskchat/internal/clock"
	"github.com/matfelipe/deskchat/internal/config"
	"github.com/matfelipe/deskchat/internal/delivery"
	"github.com/matfelipe/deskchat/internal/peer"
	"github.com/matfelipe/deskchat/internal/roster"
	"github.com/matfelipe/deskchat/internal/store"
	"go.uber.org/zap"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Timings = config.Timings{
		SentAfterMs:      20,
		DeliveredAfterMs: 40,
		ReadAfterMs:      60,
		TypingMinMs:      20,
		TypingMaxMs:      21,
		ReplyMinMs:       30,
		ReplyMaxMs:       31,
		RingTimeoutMs:    80,
		CallTickMs:       20,
	}
	return cfg
}

func testOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := fastConfig()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	for _, conv := range []*store.Conversation{
		{ID: "c1", Name: "Ana", Kind: store.KindDirect, Participants: []string{"ana"}},
		{ID: "c2", Name: "Time", Kind: store.KindGroup, Participants: []string{"ana", "bruno"}},
	} {
		if err := db.UpsertConversation(conv); err != nil {
			t.Fatal(err)
		}
	}

	logger := zap.NewNop()
	b := bus.New()
	sched := clock.New()
	t.Cleanup(sched.StopAll)

	r := roster.NewManager(db, b, logger)
	tracker := delivery.NewTracker(r, db, sched, b, cfg.Identity, cfg.Timings, logger)
	t.Cleanup(tracker.Stop)
	sim := peer.NewSimulator(r, sched, b, cfg.Timings, logger)
	sim.Start(context.Background())
	t.Cleanup(sim.Stop)
	controller := call.NewController(call.NewPolicyGateway(cfg.Media), db, sched, b, cfg.Timings, logger)
	t.Cleanup(controller.Stop)

	return NewOrchestrator(b, r, tracker, sim, controller, db)
}

// TestSubmitReachesReadAndDrawsReply exercises the full send path through the
// façade: the submitted message walks the delivery lifecycle while the remote
// side types and answers in the same conversation.
func TestSubmitReachesReadAndDrawsReply(t *testing.T) {
	o := testOrchestrator(t)
	ch, unsub := o.Subscribe("", 256)
	defer unsub()

	if err := o.OpenConversation("c1"); err != nil {
		t.Fatal(err)
	}
	msgID, err := o.Submit("oi, tudo bem?")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	var sawRead, sawTyping, sawReply bool
	deadline := time.After(3 * time.Second)
	for !(sawRead && sawTyping && sawReply) {
		select {
		case evt := <-ch:
			switch evt.Kind {
			case bus.KindMessageStatus:
				sc := evt.Payload.(delivery.StatusChange)
				if sc.MsgID == msgID && sc.Status == store.StatusRead {
					sawRead = true
				}
			case bus.KindTypingChanged:
				if evt.Payload.(peer.TypingChange).Typing {
					sawTyping = true
				}
			case bus.KindMessageAppended:
				msg := evt.Payload.(*store.Message)
				if !msg.FromMe && msg.ConversationID == "c1" {
					sawReply = true
				}
			}
		case <-deadline:
			t.Fatalf("timeout: read=%v typing=%v reply=%v", sawRead, sawTyping, sawReply)
		}
	}

	status, err := o.MessageStatus("c1", msgID)
	if err != nil {
		t.Fatal(err)
	}
	if status != store.StatusRead {
		t.Errorf("status = %q, want read", status)
	}

	// Focused conversation: the reply never counts as unread.
	conv, err := o.Conversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if conv.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0", conv.UnreadCount)
	}

	msgs, err := o.Messages("c1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2 (submission + reply)", len(msgs))
	}
	if !msgs[0].FromMe || msgs[1].FromMe {
		t.Error("history out of order")
	}
}

func TestSubmitWithoutOpenConversation(t *testing.T) {
	o := testOrchestrator(t)
	if _, err := o.Submit("oi"); !errors.Is(err, delivery.ErrNoActiveConversation) {
		t.Errorf("error = %v, want ErrNoActiveConversation", err)
	}
}

func TestOpenUnknownConversation(t *testing.T) {
	o := testOrchestrator(t)
	if err := o.OpenConversation("nope"); !errors.Is(err, roster.ErrUnknownConversation) {
		t.Errorf("error = %v, want ErrUnknownConversation", err)
	}
}

func TestIncomingCallThroughFacade(t *testing.T) {
	o := testOrchestrator(t)
	ch, unsub := o.Subscribe("call.state_changed", 32)
	defer unsub()

	if err := o.SimulateIncomingCall("c1", call.MediumAudio); err != nil {
		t.Fatal(err)
	}
	snap := o.CallSnapshot()
	if snap.State != call.Incoming {
		t.Fatalf("state = %s, want INCOMING", snap.State)
	}
	if snap.From != "ana" {
		t.Errorf("from = %q, want ana", snap.From)
	}

	if err := o.AnswerCall(); err != nil {
		t.Fatal(err)
	}
	if err := o.EndCall(); err != nil {
		t.Fatal(err)
	}

	// Drain until idle to keep the assertion ordering-independent.
	deadline := time.After(2 * time.Second)
	for o.CallSnapshot().State != call.Idle {
		select {
		case <-ch:
		case <-deadline:
			t.Fatal("timeout waiting for idle")
		}
	}

	recs, err := o.CallHistory("c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Outcome != call.OutcomeCompleted {
		t.Errorf("history = %+v, want one completed", recs)
	}
}

func TestSimulateIncomingCallUnknownConversation(t *testing.T) {
	o := testOrchestrator(t)
	if err := o.SimulateIncomingCall("nope", call.MediumAudio); !errors.Is(err, roster.ErrUnknownConversation) {
		t.Errorf("error = %v, want ErrUnknownConversation", err)
	}
}

func TestStartCallRequiresOpenConversation(t *testing.T) {
	o := testOrchestrator(t)
	if err := o.StartCall(context.Background(), call.MediumAudio); !errors.Is(err, call.ErrNoConversation) {
		t.Errorf("error = %v, want ErrNoConversation", err)
	}
}

func TestSearchThroughFacade(t *testing.T) {
	o := testOrchestrator(t)
	if err := o.OpenConversation("c2"); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Submit("reuniao amanha cedo"); err != nil {
		t.Fatal(err)
	}

	convs, err := o.SearchConversations("ana", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].ID != "c1" {
		t.Errorf("conversations = %+v, want c1", convs)
	}

	hits, err := o.SearchMessages("reuniao", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Message.ConversationID != "c2" {
		t.Errorf("hits = %+v, want one in c2", hits)
	}
}
