package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ArchivedBrief is a persisted brief bundle row. BundleJSON holds the full
// serialized bundle; callers decode it with the brief package.
type ArchivedBrief struct {
	RunID          string
	UserID         string
	GeneratedAt    time.Time
	HighlightCount int
	ModuleCount    int
	BodyMarkdown   string
	BundleJSON     string
}

// SaveBrief archives a rendered brief and its serialized bundle.
func (db *DB) SaveBrief(ab ArchivedBrief) error {
	_, err := db.conn.Exec(
		`INSERT INTO briefs (run_id, user_id, generated_at, highlight_count, module_count, body_markdown, bundle_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ab.RunID, ab.UserID, ab.GeneratedAt.UTC().Format(timeLayout),
		ab.HighlightCount, ab.ModuleCount, ab.BodyMarkdown, ab.BundleJSON,
	)
	if err != nil {
		return fmt.Errorf("saving brief %s: %w", ab.RunID, err)
	}
	return nil
}

// GetLatestBrief returns a user's most recent archived brief, or nil.
func (db *DB) GetLatestBrief(userID string) (*ArchivedBrief, error) {
	row := db.conn.QueryRow(
		`SELECT run_id, user_id, generated_at, highlight_count, module_count, body_markdown, bundle_json
		FROM briefs WHERE user_id = ? ORDER BY generated_at DESC, id DESC LIMIT 1`, userID,
	)
	return scanBrief(row.Scan)
}

// GetBrief returns an archived brief by run id, or nil.
func (db *DB) GetBrief(runID string) (*ArchivedBrief, error) {
	row := db.conn.QueryRow(
		`SELECT run_id, user_id, generated_at, highlight_count, module_count, body_markdown, bundle_json
		FROM briefs WHERE run_id = ?`, runID,
	)
	return scanBrief(row.Scan)
}

// CountBriefs returns the number of archived briefs for a user.
func (db *DB) CountBriefs(userID string) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM briefs WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func scanBrief(scan func(...any) error) (*ArchivedBrief, error) {
	var ab ArchivedBrief
	var generatedAt string
	err := scan(&ab.RunID, &ab.UserID, &generatedAt, &ab.HighlightCount,
		&ab.ModuleCount, &ab.BodyMarkdown, &ab.BundleJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(timeLayout, generatedAt); err == nil {
		ab.GeneratedAt = t
	}
	return &ab, nil
}
