// Package roster keeps the conversation list consistent with message
// activity: last-message summaries, unread counters and the single active
// conversation.
package roster

import (
	"errors"
	"fmt"
	"sync"

	"github.com/matfelipe/deskchat/internal/bus"
	"github.com/matfelipe/deskchat/internal/store"
	"go.uber.org/zap"
)

// ErrUnknownConversation is returned when opening a conversation the roster
// has never seen.
var ErrUnknownConversation = errors.New("unknown conversation")

const previewLen = 100

// Manager owns the roster state on top of the store.
type Manager struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.RWMutex
	active string
}

// NewManager creates a roster manager.
func NewManager(db *store.DB, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Open makes the conversation active and zeroes its unread counter.
func (m *Manager) Open(id string) error {
	conv, err := m.db.GetConversation(id)
	if err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}
	if conv == nil {
		return ErrUnknownConversation
	}

	m.mu.Lock()
	m.active = id
	m.mu.Unlock()

	if err := m.db.SetUnread(id, 0); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}

	m.logger.Info("conversation opened", zap.String("conversation_id", id))
	m.bus.Emit(bus.KindConversationOpened, id)
	m.bus.Emit(bus.KindConversationUpdated, id)
	return nil
}

// Close clears the active conversation. In-flight delivery timers keep
// running; only the read focus changes.
func (m *Manager) Close() {
	m.mu.Lock()
	m.active = ""
	m.mu.Unlock()
}

// Active returns the id of the active conversation, or "".
func (m *Manager) Active() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Append persists a message, updates the owning conversation's summary and
// unread counter, and announces the append on the bus. A remote message lands
// with unread+1 unless its conversation is the active one.
func (m *Manager) Append(msg *store.Message) error {
	if err := m.db.InsertMessage(msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if err := m.db.UpdateSummary(msg.ConversationID, msg.Timestamp, truncate(msg.Body, previewLen)); err != nil {
		return fmt.Errorf("update summary: %w", err)
	}

	if !msg.FromMe && m.Active() != msg.ConversationID {
		if err := m.db.IncrementUnread(msg.ConversationID); err != nil {
			return fmt.Errorf("increment unread: %w", err)
		}
	}

	m.bus.Emit(bus.KindMessageAppended, msg)
	m.bus.Emit(bus.KindConversationUpdated, msg.ConversationID)
	return nil
}

// Get returns a single roster entry, or nil if absent.
func (m *Manager) Get(id string) (*store.Conversation, error) {
	return m.db.GetConversation(id)
}

// List returns the roster sorted by last-message timestamp descending.
func (m *Manager) List(limit int) ([]store.Conversation, error) {
	return m.db.ListConversations(limit, 0)
}

// History returns a conversation's messages in chronological order.
func (m *Manager) History(conversationID string, limit int) ([]store.Message, error) {
	return m.db.ListMessages(conversationID, limit)
}

// Search filters the roster by case-insensitive substring over name and
// last-message preview.
func (m *Manager) Search(query string, limit int) ([]store.Conversation, error) {
	return m.db.SearchConversations(query, limit)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
