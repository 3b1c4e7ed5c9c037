// Package peer fakes the far side of a conversation. The engine has no real
// transport; typing presence and replies are produced locally behind the
// RemotePeer seam so a real signaling channel can replace the simulator
// without touching the tracker or controller contracts.
package peer

import (
	"context"
	"math/rand/v2"
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

// RemotePeer is the seam for the other side of a conversation.
type RemotePeer interface {
	Start(ctx context.Context)
	Stop()
	Typing(conversationID string) bool
}

// TypingChange is the payload for typing.changed events.
type TypingChange struct {
	ConversationID string
	Typing         bool
}

var replies = []string{
	"Entendi!",
	"Perfeito, obrigado!",
	"Pode deixar.",
	"Vou verificar e te retorno.",
	"Certo, combinado.",
	"Ok!",
}

// Simulator watches outgoing messages on the bus and answers them: after a
// randomized delay the remote party starts typing, and after a second delay
// the typing stops and a generated reply lands in the same conversation.
type Simulator struct {
	roster  *roster.Manager
	sched   *clock.Scheduler
	bus     *bus.Bus
	logger  *zap.Logger
	timings config.Timings
	cancel  context.CancelFunc

	mu      sync.Mutex
	rng     *rand.Rand
	typing  map[string]bool
	pending map[string]*simReply
}

// simReply tracks one scheduled typing/reply sequence for a conversation.
type simReply struct {
	start *clock.Timer
	stop  *clock.Timer
}

// NewSimulator creates a remote peer simulator.
func NewSimulator(r *roster.Manager, sched *clock.Scheduler, b *bus.Bus, timings config.Timings, logger *zap.Logger) *Simulator {
	return &Simulator{
		roster:  r,
		sched:   sched,
		bus:     b,
		logger:  logger,
		timings: timings,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xda3e39cb94b95bdb)),
		typing:  make(map[string]bool),
		pending: make(map[string]*simReply),
	}
}

// Start subscribes to outgoing message events on the bus.
func (s *Simulator) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	ch, unsub := s.bus.Subscribe(bus.KindMessageAppended, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				msg, ok := evt.Payload.(*store.Message)
				if !ok || !msg.FromMe {
					continue
				}
				s.scheduleReply(msg.ConversationID)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the subscriber loop and every scheduled typing/reply sequence.
func (s *Simulator) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.pending {
		p.start.Stop()
		p.stop.Stop()
		delete(s.pending, id)
	}
	for id := range s.typing {
		delete(s.typing, id)
	}
}

// Typing reports whether the remote party of the conversation is composing.
func (s *Simulator) Typing(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing[conversationID]
}

// scheduleReply arms the typing/reply sequence for a conversation. A sequence
// already in flight for the same conversation is left alone; the remote party
// answers once per burst.
func (s *Simulator) scheduleReply(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[conversationID]; ok {
		return
	}

	p := &simReply{}
	s.pending[conversationID] = p

	startMin, startMax := s.timings.TypingWindow()
	p.start = s.sched.AfterFunc(s.between(startMin, startMax), func() {
		s.setTyping(conversationID, true)

		replyMin, replyMax := s.timings.ReplyWindow()
		s.mu.Lock()
		delay := s.between(replyMin, replyMax)
		if cur, ok := s.pending[conversationID]; ok {
			cur.stop = s.sched.AfterFunc(delay, func() {
				s.finishReply(conversationID)
			})
		}
		s.mu.Unlock()
	})
}

// finishReply clears the typing flag and appends the generated reply to the
// conversation that triggered it. The store is authoritative: the reply lands
// there even if the user switched focus, and never steals it back.
func (s *Simulator) finishReply(conversationID string) {
	s.setTyping(conversationID, false)

	s.mu.Lock()
	delete(s.pending, conversationID)
	body := replies[s.rng.IntN(len(replies))]
	s.mu.Unlock()

	senderID := conversationID
	senderName := ""
	if conv, err := s.roster.Get(conversationID); err == nil && conv != nil {
		senderName = conv.Name
		if len(conv.Participants) > 0 {
			senderID = conv.Participants[0]
		}
	}

	msg := &store.Message{
		ConversationID: conversationID,
		MsgID:          uuid.New().String(),
		SenderID:       senderID,
		SenderName:     senderName,
		Body:           body,
		FromMe:         false,
		Status:         store.StatusRead,
		Timestamp:      time.Now().UnixMilli(),
	}
	if err := s.roster.Append(msg); err != nil {
		s.logger.Error("failed to append simulated reply",
			zap.Error(err), zap.String("conversation_id", conversationID))
	}
}

func (s *Simulator) setTyping(conversationID string, on bool) {
	s.mu.Lock()
	if on {
		s.typing[conversationID] = true
	} else {
		delete(s.typing, conversationID)
	}
	s.mu.Unlock()

	s.bus.Emit(bus.KindTypingChanged, TypingChange{
		ConversationID: conversationID,
		Typing:         on,
	})
}

// between picks a random duration in [min, max]. Callers hold s.mu.
func (s *Simulator) between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int64N(int64(max-min)))
}
