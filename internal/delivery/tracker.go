// Package delivery drives local messages through the
// sending → sent → delivered → read lifecycle on scheduled transitions.
// Statuses only move forward; a transition firing for a message that is gone
// or already past it is a silent no-op.
package delivery

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matfelipe/deskchat/internal/bus"
	"github.com/matfelipe/deskchat/internal/clock"
	"github.com/matfelipe/deskchat/internal/config"
	"github.com/matfelipe/deskchat/internal/roster"
	"github.com/matfelipe/deskchat/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrEmptyBody rejects submissions whose body is empty or whitespace.
	ErrEmptyBody = errors.New("message body is empty")
	// ErrNoActiveConversation rejects submissions without an open conversation.
	ErrNoActiveConversation = errors.New("no active conversation")
)

// StatusChange is the payload for message.status events.
type StatusChange struct {
	ConversationID string
	MsgID          string
	Status         string
}

// Tracker owns the delivery-status lifecycle of outgoing messages.
type Tracker struct {
	roster   *roster.Manager
	db       *store.DB
	sched    *clock.Scheduler
	bus      *bus.Bus
	logger   *zap.Logger
	identity config.Identity
	timings  config.Timings

	mu      sync.Mutex
	pending map[string]*pendingMessage
}

// pendingMessage tracks an in-flight message and its next scheduled transition.
type pendingMessage struct {
	conversationID string
	status         string
	timer          *clock.Timer
}

// NewTracker creates a delivery tracker.
func NewTracker(r *roster.Manager, db *store.DB, sched *clock.Scheduler, b *bus.Bus, identity config.Identity, timings config.Timings, logger *zap.Logger) *Tracker {
	return &Tracker{
		roster:   r,
		db:       db,
		sched:    sched,
		bus:      b,
		logger:   logger,
		identity: identity,
		timings:  timings,
		pending:  make(map[string]*pendingMessage),
	}
}

// Submit creates an outgoing message in status "sending", appends it to the
// conversation's history (optimistic summary update included) and schedules
// the delivery transitions. Precondition failures reject with no state change.
func (t *Tracker) Submit(conversationID, body string) (string, error) {
	if conversationID == "" {
		return "", ErrNoActiveConversation
	}
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyBody
	}

	msgID := uuid.New().String()
	msg := &store.Message{
		ConversationID: conversationID,
		MsgID:          msgID,
		SenderID:       t.identity.UserID,
		SenderName:     t.identity.DisplayName,
		Body:           body,
		FromMe:         true,
		Status:         store.StatusSending,
		Timestamp:      time.Now().UnixMilli(),
	}
	if err := t.roster.Append(msg); err != nil {
		return "", err
	}

	p := &pendingMessage{conversationID: conversationID, status: store.StatusSending}
	t.mu.Lock()
	t.pending[msgID] = p
	p.timer = t.sched.AfterFunc(t.timings.SentAfter(), func() {
		t.advance(msgID, store.StatusSent)
	})
	t.mu.Unlock()

	t.logger.Info("message submitted",
		zap.String("conversation_id", conversationID),
		zap.String("msg_id", msgID))
	return msgID, nil
}

// advance moves a pending message to the given status and schedules the next
// transition. Fires from timer callbacks only.
func (t *Tracker) advance(msgID, status string) {
	t.mu.Lock()
	p, ok := t.pending[msgID]
	if !ok || store.StatusRank(status) <= store.StatusRank(p.status) {
		// Stale fire for a discarded or already-advanced message.
		t.mu.Unlock()
		return
	}
	p.status = status

	switch status {
	case store.StatusSent:
		p.timer = t.sched.AfterFunc(t.timings.DeliveredAfter(), func() {
			t.advance(msgID, store.StatusDelivered)
		})
	case store.StatusDelivered:
		p.timer = t.sched.AfterFunc(t.timings.ReadAfter(), func() {
			t.advance(msgID, store.StatusRead)
		})
	case store.StatusRead:
		// Terminal: nothing left to schedule.
		delete(t.pending, msgID)
	}
	conversationID := p.conversationID
	t.mu.Unlock()

	if err := t.db.UpdateMessageStatus(conversationID, msgID, status); err != nil {
		t.logger.Error("failed to update message status",
			zap.Error(err), zap.String("msg_id", msgID), zap.String("status", status))
		return
	}

	t.bus.Emit(bus.KindMessageStatus, StatusChange{
		ConversationID: conversationID,
		MsgID:          msgID,
		Status:         status,
	})
	t.bus.Emit(bus.KindConversationUpdated, conversationID)
}

// Status returns the persisted delivery status of a message. Exposed
// read-only; nothing outside the tracker sets statuses.
func (t *Tracker) Status(conversationID, msgID string) (string, error) {
	m, err := t.db.GetMessage(conversationID, msgID)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", nil
	}
	return m.Status, nil
}

// InFlight returns how many messages still have scheduled transitions.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop cancels every scheduled transition. Part of engine teardown; delivery
// is otherwise never cancelled, not even when the conversation loses focus.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range t.pending {
		p.timer.Stop()
		delete(t.pending, id)
	}
}
