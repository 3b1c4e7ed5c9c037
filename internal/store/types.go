package store

// Conversation kinds.
const (
	KindDirect = "direct"
	KindGroup  = "group"
)

// Presence statuses for a conversation's remote party.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
	PresenceAway    = "away"
	PresenceBusy    = "busy"
)

// Delivery statuses of a local message, in lifecycle order. Received messages
// are stored as StatusRead on arrival.
const (
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// StatusRank maps a delivery status to its position in the lifecycle.
// Unknown statuses rank below sending so they never overwrite anything.
func StatusRank(status string) int {
	switch status {
	case StatusSending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return -1
	}
}

// Conversation is a roster entry.
type Conversation struct {
	ID                 string
	Name               string
	Kind               string
	Participants       []string
	Presence           string
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
}

// IsGroup reports whether the conversation has group kind.
func (c *Conversation) IsGroup() bool { return c.Kind == KindGroup }

// Message is one entry in a conversation's append-only history.
type Message struct {
	ID             int64
	ConversationID string
	MsgID          string
	SenderID       string
	SenderName     string
	Body           string
	FromMe         bool
	Status         string
	Timestamp      int64
}

// CallRecord is one persisted call history entry.
type CallRecord struct {
	ID              int64
	ConversationID  string
	Medium          string // audio, video
	Direction       string // outgoing, incoming
	Outcome         string // completed, declined, missed, failed
	DurationSeconds int
	StartedAt       int64
	EndedAt         int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
