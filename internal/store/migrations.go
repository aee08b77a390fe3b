package store

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS memory_records (
    user_id TEXT NOT NULL,
    stable_id TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    first_seen TEXT NOT NULL,
    last_updated TEXT NOT NULL,
    seen_count INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (user_id, stable_id)
);

CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    topic_weights TEXT NOT NULL DEFAULT '{}',
    vips TEXT NOT NULL DEFAULT '[]',
    source_trust TEXT NOT NULL DEFAULT '{}',
    engagement_counts TEXT NOT NULL DEFAULT '{}',
    feedback_watermark INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS feedback_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    stable_id TEXT NOT NULL,
    event_type TEXT NOT NULL CHECK(event_type IN ('opened', 'clicked', 'starred', 'dismissed')),
    topics TEXT NOT NULL DEFAULT '[]',
    source TEXT,
    person TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS briefs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT UNIQUE NOT NULL,
    user_id TEXT NOT NULL,
    generated_at TEXT NOT NULL,
    highlight_count INTEGER NOT NULL DEFAULT 0,
    module_count INTEGER NOT NULL DEFAULT 0,
    body_markdown TEXT NOT NULL,
    bundle_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memory_last_updated ON memory_records(user_id, last_updated);
CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback_events(user_id, id);
CREATE INDEX IF NOT EXISTS idx_briefs_user ON briefs(user_id, generated_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
