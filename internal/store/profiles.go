package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/air23zj/pal-sub001/internal/profile"
)

// GetProfile loads a user's profile, or nil if none has been saved yet.
func (db *DB) GetProfile(userID string) (*profile.Profile, error) {
	row := db.conn.QueryRow(
		`SELECT topic_weights, vips, source_trust, engagement_counts, feedback_watermark, updated_at
		FROM profiles WHERE user_id = ?`, userID,
	)

	var topicsJSON, vipsJSON, trustJSON, countsJSON, updatedAt string
	p := profile.New(userID)
	err := row.Scan(&topicsJSON, &vipsJSON, &trustJSON, &countsJSON, &p.FeedbackWatermark, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(topicsJSON), &p.TopicWeights); err != nil {
		return nil, fmt.Errorf("decoding topic weights: %w", err)
	}
	var vips []string
	if err := json.Unmarshal([]byte(vipsJSON), &vips); err != nil {
		return nil, fmt.Errorf("decoding vips: %w", err)
	}
	for _, v := range vips {
		p.VIPs[v] = true
	}
	if err := json.Unmarshal([]byte(trustJSON), &p.SourceTrust); err != nil {
		return nil, fmt.Errorf("decoding source trust: %w", err)
	}
	if err := json.Unmarshal([]byte(countsJSON), &p.EngagementCounts); err != nil {
		return nil, fmt.Errorf("decoding engagement counts: %w", err)
	}
	if t, err := time.Parse(timeLayout, updatedAt); err == nil {
		p.UpdatedAt = t
	}
	return p, nil
}

// SaveProfile persists a profile, replacing any previous version.
func (db *DB) SaveProfile(p *profile.Profile) error {
	topicsJSON, err := json.Marshal(p.TopicWeights)
	if err != nil {
		return fmt.Errorf("encoding topic weights: %w", err)
	}
	vips := make([]string, 0, len(p.VIPs))
	for v := range p.VIPs {
		vips = append(vips, v)
	}
	vipsJSON, err := json.Marshal(vips)
	if err != nil {
		return fmt.Errorf("encoding vips: %w", err)
	}
	trustJSON, err := json.Marshal(p.SourceTrust)
	if err != nil {
		return fmt.Errorf("encoding source trust: %w", err)
	}
	countsJSON, err := json.Marshal(p.EngagementCounts)
	if err != nil {
		return fmt.Errorf("encoding engagement counts: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT INTO profiles (user_id, topic_weights, vips, source_trust, engagement_counts, feedback_watermark, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			topic_weights = excluded.topic_weights,
			vips = excluded.vips,
			source_trust = excluded.source_trust,
			engagement_counts = excluded.engagement_counts,
			feedback_watermark = excluded.feedback_watermark,
			updated_at = excluded.updated_at`,
		p.UserID, string(topicsJSON), string(vipsJSON), string(trustJSON),
		string(countsJSON), p.FeedbackWatermark, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving profile for %s: %w", p.UserID, err)
	}
	return nil
}
