// Package engine composes the chat subsystems behind a single façade. The UI
// talks to the Orchestrator and listens on the bus; it never reaches into a
// subsystem directly.
package engine

import (
	"context"

	"github.com/matfelipe/deskchat/internal/bus"
	"github.com/matfelipe/deskchat/internal/call"
	"github.com/matfelipe/deskchat/internal/delivery"
	"github.com/matfelipe/deskchat/internal/peer"
	"github.com/matfelipe/deskchat/internal/roster"
	"github.com/matfelipe/deskchat/internal/store"
)

// Orchestrator is the command surface of the engine.
type Orchestrator struct {
	bus        *bus.Bus
	roster     *roster.Manager
	tracker    *delivery.Tracker
	sim        *peer.Simulator
	controller *call.Controller
	db         *store.DB
}

// NewOrchestrator wires the façade over the engine subsystems.
func NewOrchestrator(b *bus.Bus, r *roster.Manager, t *delivery.Tracker, sim *peer.Simulator, c *call.Controller, db *store.DB) *Orchestrator {
	return &Orchestrator{
		bus:        b,
		roster:     r,
		tracker:    t,
		sim:        sim,
		controller: c,
		db:         db,
	}
}

// Subscribe exposes the engine event stream for the given namespace prefix.
func (o *Orchestrator) Subscribe(namespace string, bufSize int) (<-chan bus.Event, func()) {
	return o.bus.Subscribe(namespace, bufSize)
}

// OpenConversation focuses a conversation and clears its unread count.
func (o *Orchestrator) OpenConversation(id string) error {
	return o.roster.Open(id)
}

// CloseConversation drops the focus without opening another conversation.
func (o *Orchestrator) CloseConversation() {
	o.roster.Close()
}

// ActiveConversation returns the focused conversation id, empty when none.
func (o *Orchestrator) ActiveConversation() string {
	return o.roster.Active()
}

// Conversations lists the roster ordered by most recent activity.
func (o *Orchestrator) Conversations(limit int) ([]store.Conversation, error) {
	return o.roster.List(limit)
}

// Conversation returns a single roster entry, nil when unknown.
func (o *Orchestrator) Conversation(id string) (*store.Conversation, error) {
	return o.roster.Get(id)
}

// Messages returns a conversation's history in chronological order.
func (o *Orchestrator) Messages(conversationID string, limit int) ([]store.Message, error) {
	return o.roster.History(conversationID, limit)
}

// Submit sends a message to the focused conversation and returns its id. The
// message starts in the sending state and advances on its own.
func (o *Orchestrator) Submit(body string) (string, error) {
	return o.tracker.Submit(o.roster.Active(), body)
}

// MessageStatus reports the current delivery status of a message.
func (o *Orchestrator) MessageStatus(conversationID, msgID string) (string, error) {
	return o.tracker.Status(conversationID, msgID)
}

// Typing reports whether the remote side of a conversation is typing.
func (o *Orchestrator) Typing(conversationID string) bool {
	return o.sim.Typing(conversationID)
}

// StartCall begins an outgoing call in the focused conversation.
func (o *Orchestrator) StartCall(ctx context.Context, medium call.Medium) error {
	return o.controller.Start(ctx, o.roster.Active(), medium)
}

// SimulateIncomingCall rings an inbound call from the given conversation's
// remote participant.
func (o *Orchestrator) SimulateIncomingCall(conversationID string, medium call.Medium) error {
	conv, err := o.roster.Get(conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return roster.ErrUnknownConversation
	}
	from := conv.Name
	if len(conv.Participants) > 0 {
		from = conv.Participants[0]
	}
	return o.controller.HandleIncoming(conversationID, medium, from)
}

// AnswerCall accepts the ringing incoming call.
func (o *Orchestrator) AnswerCall() error {
	return o.controller.Answer()
}

// DeclineCall rejects the ringing incoming call.
func (o *Orchestrator) DeclineCall() error {
	return o.controller.Decline()
}

// EndCall hangs up the active call.
func (o *Orchestrator) EndCall() error {
	return o.controller.End()
}

// ToggleMute flips the microphone during the active call.
func (o *Orchestrator) ToggleMute() error {
	return o.controller.ToggleMute()
}

// ToggleVideo flips the camera during an active video call.
func (o *Orchestrator) ToggleVideo() error {
	return o.controller.ToggleVideo()
}

// ToggleSpeaker flips the speaker during the active call.
func (o *Orchestrator) ToggleSpeaker() error {
	return o.controller.ToggleSpeaker()
}

// CallSnapshot returns the current call-session projection.
func (o *Orchestrator) CallSnapshot() call.Snapshot {
	return o.controller.Snapshot()
}

// CallHistory lists past calls, newest first. An empty conversation id lists
// calls across the whole roster.
func (o *Orchestrator) CallHistory(conversationID string, limit int) ([]store.CallRecord, error) {
	return o.db.ListCallRecords(conversationID, limit)
}

// SearchConversations filters the roster by name or last-message preview.
func (o *Orchestrator) SearchConversations(query string, limit int) ([]store.Conversation, error) {
	return o.roster.Search(query, limit)
}

// SearchMessages runs a full-text query over message bodies. An empty
// conversation id searches every conversation.
func (o *Orchestrator) SearchMessages(query, conversationID string, limit int) ([]store.SearchResult, error) {
	return o.db.SearchMessages(query, conversationID, limit)
}
