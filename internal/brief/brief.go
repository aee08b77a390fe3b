// Package brief defines the terminal output of a pipeline run: ranked
// items grouped by source module plus the elected top highlights.
package brief

import (
	"time"

	"github.com/air23zj/pal-sub001/internal/feature"
	"github.com/air23zj/pal-sub001/internal/item"
	"github.com/air23zj/pal-sub001/internal/novelty"
)

// Module statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// RankedItem is a normalized item with its run-scoped novelty label,
// feature vector, and combined score.
type RankedItem struct {
	Item        item.NormalizedItem `json:"item"`
	Fingerprint item.Fingerprint    `json:"fingerprint"`
	Label       novelty.Label       `json:"label"`
	Features    feature.Vector      `json:"features"`
	FinalScore  float64             `json:"final_score"`
	// Explanation is the optional synthesized one-liner; empty when
	// synthesis is disabled or failed.
	Explanation string `json:"explanation,omitempty"`
}

// ModuleResult is the outcome of one source module within a run.
type ModuleResult struct {
	Module         string       `json:"module"`
	Status         string       `json:"status"`
	Err            string       `json:"error,omitempty"`
	NewCount       int          `json:"new_count"`
	UpdatedCount   int          `json:"updated_count"`
	RepeatCount    int          `json:"repeat_count"`
	DuplicateCount int          `json:"duplicate_count"`
	SkippedCount   int          `json:"skipped_count"`
	Items          []RankedItem `json:"items"`
}

// Bundle is the complete result of one orchestrator run. The caller owns
// it once returned; the engine does not hold on to it.
type Bundle struct {
	RunID         string         `json:"run_id"`
	UserID        string         `json:"user_id"`
	GeneratedAt   time.Time      `json:"generated_at"`
	TopHighlights []RankedItem   `json:"top_highlights"`
	Modules       []ModuleResult `json:"modules"`
}

// ItemCount returns the total number of selected items across modules.
func (b *Bundle) ItemCount() int {
	n := 0
	for _, m := range b.Modules {
		n += len(m.Items)
	}
	return n
}

// FindItem locates an item in the bundle by stable id.
func (b *Bundle) FindItem(stableID string) (*RankedItem, bool) {
	for mi := range b.Modules {
		for ii := range b.Modules[mi].Items {
			if b.Modules[mi].Items[ii].Fingerprint.StableID == stableID {
				return &b.Modules[mi].Items[ii], true
			}
		}
	}
	return nil, false
}
