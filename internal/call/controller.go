// Package call runs the call-signaling state machine: permission
// acquisition, ringing, answer/decline, active-call device toggles, the
// incoming-call auto-decline timeout and teardown. At most one session is
// non-idle at a time.
package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matfelipe/deskchat/internal/bus"
	"github.com/matfelipe/deskchat/internal/clock"
	"github.com/matfelipe/deskchat/internal/config"
	"github.com/matfelipe/deskchat/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrCallInProgress rejects starting or receiving a call while another
	// session is non-idle.
	ErrCallInProgress = errors.New("another call session is in progress")
	// ErrNoConversation rejects starting a call without an open conversation.
	ErrNoConversation = errors.New("no open conversation for call")
	// ErrNoRingingSession rejects answer/decline without an incoming call.
	ErrNoRingingSession = errors.New("no ringing call session")
	// ErrNoActiveCall rejects call controls outside an active call.
	ErrNoActiveCall = errors.New("no active call session")
	// ErrVideoOnAudioCall rejects toggling video during an audio-only call.
	ErrVideoOnAudioCall = errors.New("cannot toggle video on an audio call")
)

// Snapshot is the read-only projection of the call session handed to the UI.
type Snapshot struct {
	ConversationID string
	Medium         Medium
	Direction      Direction
	From           string
	State          State
	ElapsedSeconds int
	Muted          bool
	VideoOff       bool
	SpeakerOn      bool
}

// StateChange is the payload for call.state_changed events.
type StateChange struct {
	From     State
	To       State
	Snapshot Snapshot
}

// Warning is the payload for call.warning events (recoverable failures).
type Warning struct {
	Medium Medium
	Reason string
}

// session is the single owned call-session value. Device flags live here and
// nowhere else.
type session struct {
	conversationID string
	medium         Medium
	direction      Direction
	from           string
	state          State
	elapsed        int
	muted          bool
	videoOff       bool
	speakerOn      bool
	startedAt      int64
}

// Controller owns the call-session state machine.
type Controller struct {
	gateway MediaGateway
	db      *store.DB
	sched   *clock.Scheduler
	bus     *bus.Bus
	logger  *zap.Logger
	timings config.Timings

	mu        sync.Mutex
	sess      *session
	ticker    *clock.Ticker
	ringTimer *clock.Timer
	reqSeq    int
}

// NewController creates a call controller.
func NewController(gateway MediaGateway, db *store.DB, sched *clock.Scheduler, b *bus.Bus, timings config.Timings, logger *zap.Logger) *Controller {
	return &Controller{
		gateway: gateway,
		db:      db,
		sched:   sched,
		bus:     b,
		logger:  logger,
		timings: timings,
	}
}

// Start begins an outgoing call: Idle → RequestingPermission, then Active on
// grant or back to Idle with a warning on denial. The permission probe runs
// asynchronously; callers observe the outcome through call.* events.
func (c *Controller) Start(ctx context.Context, conversationID string, medium Medium) error {
	if conversationID == "" {
		return ErrNoConversation
	}

	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return ErrCallInProgress
	}
	c.sess = &session{
		conversationID: conversationID,
		medium:         medium,
		direction:      DirectionOutgoing,
		state:          RequestingPermission,
		speakerOn:      true,
		startedAt:      time.Now().UnixMilli(),
	}
	c.reqSeq++
	seq := c.reqSeq
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("call starting",
		zap.String("conversation_id", conversationID),
		zap.String("medium", string(medium)))
	c.publishChange(Idle, RequestingPermission, snap)

	go func() {
		err := c.gateway.RequestMedia(ctx, medium)
		if err != nil {
			c.permissionDenied(seq, err)
			return
		}
		c.permissionGranted(seq)
	}()
	return nil
}

// permissionGranted moves RequestingPermission → Active. A stale grant for a
// session that is gone is absorbed silently.
func (c *Controller) permissionGranted(seq int) {
	c.mu.Lock()
	if c.sess == nil || c.reqSeq != seq || !canTransition(c.sess.state, Active) {
		c.mu.Unlock()
		return
	}
	c.sess.state = Active
	c.sess.elapsed = 0
	c.sess.startedAt = time.Now().UnixMilli()
	c.startTickerLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("call active", zap.String("conversation_id", snap.ConversationID))
	c.publishChange(RequestingPermission, Active, snap)
}

// permissionDenied discards the session and surfaces a recoverable warning.
func (c *Controller) permissionDenied(seq int, err error) {
	c.mu.Lock()
	if c.sess == nil || c.reqSeq != seq || c.sess.state != RequestingPermission {
		c.mu.Unlock()
		return
	}
	s := c.sess
	c.sess = nil
	c.mu.Unlock()

	reason := err.Error()
	var perm *PermissionError
	if errors.As(err, &perm) {
		reason = perm.Reason
	}
	c.logger.Warn("call permission denied",
		zap.String("conversation_id", s.conversationID),
		zap.String("medium", string(s.medium)),
		zap.String("reason", reason))

	c.record(s, OutcomeFailed, 0)
	c.bus.Emit(bus.KindCallWarning, Warning{Medium: s.medium, Reason: reason})
	c.publishChange(RequestingPermission, Idle, c.Snapshot())
}

// HandleIncoming rings an inbound call offer: Idle → Incoming with the
// auto-decline timer armed. Local media is not probed while ringing.
func (c *Controller) HandleIncoming(conversationID string, medium Medium, from string) error {
	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return ErrCallInProgress
	}
	c.sess = &session{
		conversationID: conversationID,
		medium:         medium,
		direction:      DirectionIncoming,
		from:           from,
		state:          Incoming,
		speakerOn:      true,
		startedAt:      time.Now().UnixMilli(),
	}
	c.ringTimer = c.sched.AfterFunc(c.timings.RingTimeout(), c.autoDecline)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("incoming call",
		zap.String("conversation_id", conversationID),
		zap.String("from", from),
		zap.String("medium", string(medium)))
	c.publishChange(Idle, Incoming, snap)
	return nil
}

// Answer accepts the ringing call: Incoming → Active. The auto-decline timer
// is cancelled; inbound calls do not re-probe permission.
func (c *Controller) Answer() error {
	c.mu.Lock()
	if c.sess == nil || c.sess.state != Incoming {
		c.mu.Unlock()
		return ErrNoRingingSession
	}
	c.ringTimer.Stop()
	c.ringTimer = nil
	c.sess.state = Active
	c.sess.elapsed = 0
	c.sess.startedAt = time.Now().UnixMilli()
	c.startTickerLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("call answered", zap.String("conversation_id", snap.ConversationID))
	c.publishChange(Incoming, Active, snap)
	return nil
}

// Decline rejects the ringing call: Incoming → Idle.
func (c *Controller) Decline() error {
	c.mu.Lock()
	if c.sess == nil || c.sess.state != Incoming {
		c.mu.Unlock()
		return ErrNoRingingSession
	}
	c.ringTimer.Stop()
	c.ringTimer = nil
	s := c.sess
	c.sess = nil
	c.mu.Unlock()

	c.logger.Info("call declined", zap.String("conversation_id", s.conversationID))
	c.record(s, OutcomeDeclined, 0)
	c.publishChange(Incoming, Idle, c.Snapshot())
	return nil
}

// autoDecline fires when the ringing window elapses with no answer.
func (c *Controller) autoDecline() {
	c.mu.Lock()
	if c.sess == nil || c.sess.state != Incoming {
		// Answered or declined in the meantime.
		c.mu.Unlock()
		return
	}
	c.ringTimer = nil
	s := c.sess
	c.sess = nil
	c.mu.Unlock()

	c.logger.Info("incoming call timed out",
		zap.String("conversation_id", s.conversationID),
		zap.String("from", s.from))
	c.record(s, OutcomeMissed, 0)
	c.publishChange(Incoming, Idle, c.Snapshot())
}

// End hangs up the active call: Active → Idle. The elapsed ticker stops and
// device flags return to their defaults with the discarded session.
func (c *Controller) End() error {
	c.mu.Lock()
	if c.sess == nil || c.sess.state != Active {
		c.mu.Unlock()
		return ErrNoActiveCall
	}
	c.stopTickerLocked()
	s := c.sess
	c.sess = nil
	c.mu.Unlock()

	c.logger.Info("call ended",
		zap.String("conversation_id", s.conversationID),
		zap.Int("duration_seconds", s.elapsed))
	c.record(s, OutcomeCompleted, s.elapsed)
	c.publishChange(Active, Idle, c.Snapshot())
	return nil
}

// ToggleMute flips the microphone flag of the active call.
func (c *Controller) ToggleMute() error {
	return c.toggle(func(s *session) error {
		s.muted = !s.muted
		return nil
	})
}

// ToggleVideo flips the camera flag of the active call. Illegal on an
// audio-only call: flags stay untouched and the session stays active.
func (c *Controller) ToggleVideo() error {
	return c.toggle(func(s *session) error {
		if s.medium != MediumVideo {
			return ErrVideoOnAudioCall
		}
		s.videoOff = !s.videoOff
		return nil
	})
}

// ToggleSpeaker flips the speaker flag of the active call.
func (c *Controller) ToggleSpeaker() error {
	return c.toggle(func(s *session) error {
		s.speakerOn = !s.speakerOn
		return nil
	})
}

func (c *Controller) toggle(flip func(*session) error) error {
	c.mu.Lock()
	if c.sess == nil || c.sess.state != Active {
		c.mu.Unlock()
		return ErrNoActiveCall
	}
	if err := flip(c.sess); err != nil {
		c.mu.Unlock()
		return err
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publishChange(Active, Active, snap)
	return nil
}

// Snapshot returns the current session projection. With no session it reports
// Idle with default device flags.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Stop tears the controller down, cancelling call-scoped timers. Used on
// engine shutdown only; no call record is written for the interrupted session.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTickerLocked()
	if c.ringTimer != nil {
		c.ringTimer.Stop()
		c.ringTimer = nil
	}
	c.sess = nil
}

func (c *Controller) snapshotLocked() Snapshot {
	if c.sess == nil {
		return Snapshot{State: Idle, SpeakerOn: true}
	}
	s := c.sess
	return Snapshot{
		ConversationID: s.conversationID,
		Medium:         s.medium,
		Direction:      s.direction,
		From:           s.from,
		State:          s.state,
		ElapsedSeconds: s.elapsed,
		Muted:          s.muted,
		VideoOff:       s.videoOff,
		SpeakerOn:      s.speakerOn,
	}
}

func (c *Controller) startTickerLocked() {
	c.ticker = c.sched.Every(c.timings.CallTick(), c.tick)
}

func (c *Controller) stopTickerLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

// tick advances the elapsed counter while the session is active. A tick
// racing with teardown is absorbed by the state check.
func (c *Controller) tick() {
	c.mu.Lock()
	if c.sess == nil || c.sess.state != Active {
		c.mu.Unlock()
		return
	}
	c.sess.elapsed++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.bus.Emit(bus.KindCallTick, snap)
}

func (c *Controller) publishChange(from, to State, snap Snapshot) {
	c.bus.Emit(bus.KindCallStateChanged, StateChange{From: from, To: to, Snapshot: snap})
}

// record persists a call history entry for a terminal transition.
func (c *Controller) record(s *session, outcome string, duration int) {
	if c.db == nil {
		return
	}
	rec := &store.CallRecord{
		ConversationID:  s.conversationID,
		Medium:          string(s.medium),
		Direction:       string(s.direction),
		Outcome:         outcome,
		DurationSeconds: duration,
		StartedAt:       s.startedAt,
		EndedAt:         time.Now().UnixMilli(),
	}
	if err := c.db.InsertCallRecord(rec); err != nil {
		c.logger.Error("failed to record call", zap.Error(err),
			zap.String("conversation_id", s.conversationID))
	}
}
