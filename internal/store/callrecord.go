package store

import "time"

// InsertCallRecord appends a call history entry.
func (db *DB) InsertCallRecord(r *CallRecord) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO call_records (conversation_id, medium, direction, outcome, duration_seconds, started_at, ended_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ConversationID, r.Medium, r.Direction, r.Outcome, r.DurationSeconds, r.StartedAt, r.EndedAt, now)
	return err
}

// ListCallRecords returns a conversation's call history, most recent first.
// An empty conversation id returns history across all conversations.
func (db *DB) ListCallRecords(conversationID string, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, conversation_id, medium, direction, outcome, duration_seconds, started_at, ended_at
		FROM call_records`
	args := []any{}
	if conversationID != "" {
		q += " WHERE conversation_id = ?"
		args = append(args, conversationID)
	}
	q += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []CallRecord
	for rows.Next() {
		var r CallRecord
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.Medium, &r.Direction, &r.Outcome, &r.DurationSeconds, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
