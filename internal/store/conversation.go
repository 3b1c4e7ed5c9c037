package store

import (
	"database/sql"
	"strings"
	"time"
)

// UpsertConversation inserts or updates a full roster entry.
func (db *DB) UpsertConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, name, kind, participants, presence, unread_count, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			participants = excluded.participants,
			presence = excluded.presence,
			unread_count = excluded.unread_count,
			last_message_at = excluded.last_message_at,
			last_message_preview = excluded.last_message_preview,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.Kind, strings.Join(c.Participants, ","), c.Presence,
		c.UnreadCount, c.LastMessageAt, c.LastMessagePreview, now)
	return err
}

// ListConversations returns the roster sorted by last message timestamp descending.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, name, kind, participants, presence, unread_count, last_message_at, last_message_preview
		FROM conversations
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single roster entry, or nil if absent.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	row := db.QueryRow(`
		SELECT id, name, kind, participants, presence, unread_count, last_message_at, last_message_preview
		FROM conversations WHERE id = ?`, id)

	var c Conversation
	var parts string
	err := row.Scan(&c.ID, &c.Name, &c.Kind, &parts, &c.Presence, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Participants = splitParticipants(parts)
	return &c, nil
}

// UpdateSummary sets the conversation's last-message preview and timestamp.
func (db *DB) UpdateSummary(id string, at int64, preview string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE conversations SET last_message_at = ?, last_message_preview = ?, updated_at = ?
		WHERE id = ?`, at, preview, now, id)
	return err
}

// SetUnread sets the conversation's unread counter.
func (db *DB) SetUnread(id string, count int) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE conversations SET unread_count = ?, updated_at = ? WHERE id = ?`, count, now, id)
	return err
}

// IncrementUnread bumps the conversation's unread counter by one.
func (db *DB) IncrementUnread(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE conversations SET unread_count = unread_count + 1, updated_at = ? WHERE id = ?`, now, id)
	return err
}

// SetPresence updates the remote party's presence status.
func (db *DB) SetPresence(id, presence string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE conversations SET presence = ?, updated_at = ? WHERE id = ?`, presence, now, id)
	return err
}

// SearchConversations filters the roster by case-insensitive substring match
// over name and last-message preview, keeping the roster sort order.
func (db *DB) SearchConversations(query string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := db.Query(`
		SELECT id, name, kind, participants, presence, unread_count, last_message_at, last_message_preview
		FROM conversations
		WHERE LOWER(name) LIKE ? OR LOWER(last_message_preview) LIKE ?
		ORDER BY last_message_at DESC
		LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func scanConversation(rows *sql.Rows) (Conversation, error) {
	var c Conversation
	var parts string
	err := rows.Scan(&c.ID, &c.Name, &c.Kind, &parts, &c.Presence, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview)
	if err != nil {
		return c, err
	}
	c.Participants = splitParticipants(parts)
	return c, nil
}

func splitParticipants(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
