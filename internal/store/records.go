package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// MemoryRecord is the durable trace of a previously seen item, one per
// (user_id, stable_id). Mutated only through UpsertRecord.
type MemoryRecord struct {
	StableID    string
	ContentHash string
	FirstSeen   time.Time
	LastUpdated time.Time
	SeenCount   int
}

const timeLayout = time.RFC3339

// GetRecord returns the memory record for a stable id, or nil if the item
// has never been seen.
func (db *DB) GetRecord(userID, stableID string) (*MemoryRecord, error) {
	row := db.conn.QueryRow(
		`SELECT stable_id, content_hash, first_seen, last_updated, seen_count
		FROM memory_records WHERE user_id = ? AND stable_id = ?`,
		userID, stableID,
	)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// BatchGetRecords returns the memory records for a set of stable ids in one
// query, keyed by stable id. Ids with no record are absent from the map.
func (db *DB) BatchGetRecords(userID string, stableIDs []string) (map[string]MemoryRecord, error) {
	out := make(map[string]MemoryRecord, len(stableIDs))
	if len(stableIDs) == 0 {
		return out, nil
	}

	query := `SELECT stable_id, content_hash, first_seen, last_updated, seen_count
		FROM memory_records WHERE user_id = ? AND stable_id IN (?` +
		strings.Repeat(",?", len(stableIDs)-1) + ")"

	args := make([]any, 0, len(stableIDs)+1)
	args = append(args, userID)
	for _, id := range stableIDs {
		args = append(args, id)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[rec.StableID] = *rec
	}
	return out, rows.Err()
}

// UpsertRecord creates or updates the record for a stable id. An unchanged
// content hash increments seen_count; a changed hash resets the count to 1
// and records the new hash. first_seen is preserved either way. Writes are
// last-writer-wins per stable id.
func (db *DB) UpsertRecord(userID, stableID, contentHash string, now time.Time) error {
	ts := now.UTC().Format(timeLayout)
	_, err := db.conn.Exec(
		`INSERT INTO memory_records (user_id, stable_id, content_hash, first_seen, last_updated, seen_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(user_id, stable_id) DO UPDATE SET
			seen_count = CASE WHEN memory_records.content_hash = excluded.content_hash
				THEN memory_records.seen_count + 1 ELSE 1 END,
			content_hash = excluded.content_hash,
			last_updated = excluded.last_updated`,
		userID, stableID, contentHash, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("upserting record %s: %w", stableID, err)
	}
	return nil
}

// PruneRecords removes records not updated since the cutoff. Idempotent;
// returns the number of records removed.
func (db *DB) PruneRecords(userID string, olderThan time.Time) (int64, error) {
	result, err := db.conn.Exec(
		`DELETE FROM memory_records WHERE user_id = ? AND last_updated < ?`,
		userID, olderThan.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning records: %w", err)
	}
	return result.RowsAffected()
}

// CountRecords returns the number of memory records for a user.
func (db *DB) CountRecords(userID string) (int, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM memory_records WHERE user_id = ?`, userID,
	).Scan(&n)
	return n, err
}

func scanRecord(scan func(...any) error) (*MemoryRecord, error) {
	var rec MemoryRecord
	var firstSeen, lastUpdated string
	if err := scan(&rec.StableID, &rec.ContentHash, &firstSeen, &lastUpdated, &rec.SeenCount); err != nil {
		return nil, err
	}
	var err error
	if rec.FirstSeen, err = time.Parse(timeLayout, firstSeen); err != nil {
		return nil, fmt.Errorf("parsing first_seen: %w", err)
	}
	if rec.LastUpdated, err = time.Parse(timeLayout, lastUpdated); err != nil {
		return nil, fmt.Errorf("parsing last_updated: %w", err)
	}
	return &rec, nil
}
