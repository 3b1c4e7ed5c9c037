package store

import "time"

// InsertMessage appends a message to a conversation's history (idempotent on
// conversation_id + msg_id). History is append-only: replays update nothing
// but the status, and only forward.
func (db *DB) InsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (conversation_id, msg_id, sender_id, sender_name, body, from_me, status, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO NOTHING`,
		m.ConversationID, m.MsgID, m.SenderID, m.SenderName, m.Body, m.FromMe, m.Status, m.Timestamp, now)
	return err
}

// UpdateMessageStatus advances a message's delivery status. The update only
// applies when the new status ranks strictly higher than the stored one, so a
// stale timer firing out of order is a no-op.
func (db *DB) UpdateMessageStatus(conversationID, msgID, status string) error {
	_, err := db.Exec(`
		UPDATE messages SET status = ?
		WHERE conversation_id = ? AND msg_id = ?
		AND (CASE status
			WHEN 'sending' THEN 0
			WHEN 'sent' THEN 1
			WHEN 'delivered' THEN 2
			WHEN 'read' THEN 3
			ELSE -1 END)
		< (CASE ?
			WHEN 'sending' THEN 0
			WHEN 'sent' THEN 1
			WHEN 'delivered' THEN 2
			WHEN 'read' THEN 3
			ELSE -1 END)`,
		status, conversationID, msgID, status)
	return err
}

// GetMessage returns a single message by conversation and message id, or nil.
func (db *DB) GetMessage(conversationID, msgID string) (*Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, msg_id, sender_id, sender_name, body, from_me, status, timestamp
		FROM messages WHERE conversation_id = ? AND msg_id = ?`, conversationID, msgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var m Message
	if err := rows.Scan(&m.ID, &m.ConversationID, &m.MsgID, &m.SenderID, &m.SenderName, &m.Body, &m.FromMe, &m.Status, &m.Timestamp); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns a conversation's history in chronological order.
func (db *DB) ListMessages(conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT id, conversation_id, msg_id, sender_id, sender_name, body, from_me, status, timestamp
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp ASC, id ASC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.MsgID, &m.SenderID, &m.SenderName, &m.Body, &m.FromMe, &m.Status, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
