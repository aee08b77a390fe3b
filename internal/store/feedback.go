package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Feedback event types recorded in the journal.
const (
	FeedbackOpened    = "opened"
	FeedbackClicked   = "clicked"
	FeedbackStarred   = "starred"
	FeedbackDismissed = "dismissed"
)

// FeedbackEvent is one journaled engagement event. Topics, source, and
// person are denormalized at capture time so consolidation never needs to
// resolve the original item.
type FeedbackEvent struct {
	ID        int64
	StableID  string
	EventType string
	Topics    []string
	Source    string
	Person    string
	CreatedAt time.Time
}

// Positive reports whether the event counts as positive engagement.
func (e FeedbackEvent) Positive() bool {
	switch e.EventType {
	case FeedbackOpened, FeedbackClicked, FeedbackStarred:
		return true
	}
	return false
}

// InsertFeedback appends an event to a user's feedback journal and returns
// its journal id.
func (db *DB) InsertFeedback(userID string, ev FeedbackEvent) (int64, error) {
	topicsJSON, err := json.Marshal(ev.Topics)
	if err != nil {
		return 0, fmt.Errorf("encoding topics: %w", err)
	}
	result, err := db.conn.Exec(
		`INSERT INTO feedback_events (user_id, stable_id, event_type, topics, source, person, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, ev.StableID, ev.EventType, string(topicsJSON), ev.Source, ev.Person,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting feedback: %w", err)
	}
	return result.LastInsertId()
}

// GetFeedbackAfter returns a user's feedback events with id greater than
// afterID, oldest first. Used by the consolidator with the profile's
// watermark so events are never applied twice.
func (db *DB) GetFeedbackAfter(userID string, afterID int64) ([]FeedbackEvent, error) {
	rows, err := db.conn.Query(
		`SELECT id, stable_id, event_type, topics, source, person, created_at
		FROM feedback_events WHERE user_id = ? AND id > ? ORDER BY id ASC`,
		userID, afterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []FeedbackEvent
	for rows.Next() {
		var ev FeedbackEvent
		var topicsJSON, createdAt string
		if err := rows.Scan(&ev.ID, &ev.StableID, &ev.EventType, &topicsJSON, &ev.Source, &ev.Person, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(topicsJSON), &ev.Topics); err != nil {
			return nil, fmt.Errorf("decoding topics for event %d: %w", ev.ID, err)
		}
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			ev.CreatedAt = t
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
