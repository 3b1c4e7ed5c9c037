package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the engine. Subscribers filter by namespace
// prefix, so "message." matches every message event.
const (
	KindMessageAppended     = "message.appended"
	KindMessageStatus       = "message.status"
	KindConversationUpdated = "conversation.updated"
	KindConversationOpened  = "conversation.opened"
	KindTypingChanged       = "typing.changed"
	KindCallStateChanged    = "call.state_changed"
	KindCallTick            = "call.tick"
	KindCallWarning         = "call.warning"
)
