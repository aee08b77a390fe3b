// Package feature computes the five importance signals for an item given
// the user's profile. Extraction is pure: equal inputs always produce the
// same vector, and missing optional fields map to documented defaults
// rather than errors.
package feature

import (
	"math"
	"strings"
	"time"

	"github.com/air23zj/pal-sub001/internal/item"
	"github.com/air23zj/pal-sub001/internal/profile"
)

// Vector holds the five importance signals, each in [0,1].
type Vector struct {
	Relevance     float64 `json:"relevance"`
	Urgency       float64 `json:"urgency"`
	Credibility   float64 `json:"credibility"`
	Actionability float64 `json:"actionability"`
	Impact        float64 `json:"impact"`
}

// Extractor computes feature vectors.
type Extractor struct {
	// UrgencyHorizon is the window within which a due time contributes
	// urgency. Items due beyond it score near zero.
	UrgencyHorizon time.Duration
	// BroadAudience is the audience size treated as a broad-impact signal.
	BroadAudience int
}

// NewExtractor returns an extractor with default tuning.
func NewExtractor() *Extractor {
	return &Extractor{
		UrgencyHorizon: 48 * time.Hour,
		BroadAudience:  10,
	}
}

// actionability values by signal. The strongest present signal wins.
var actionValues = map[string]float64{
	item.SignalAssigned:      0.9,
	item.SignalDirectRequest: 0.9,
	item.SignalReplyNeeded:   0.7,
	item.SignalMention:       0.4,
}

// impactKeywords are magnitude cues in titles and bodies.
var impactKeywords = []string{
	"urgent", "deadline", "overdue", "final notice", "payment", "invoice",
	"contract", "outage", "incident", "breach", "cancelled", "rejected",
}

// Extract computes the feature vector for an item against a profile,
// evaluated at the given reference time.
func (e *Extractor) Extract(it item.NormalizedItem, p *profile.Profile, now time.Time) Vector {
	return Vector{
		Relevance:     e.relevance(it, p),
		Urgency:       e.urgency(it, now),
		Credibility:   p.Trust(it.Module),
		Actionability: e.actionability(it),
		Impact:        e.impact(it, p),
	}
}

// relevance is the overlap between the item's topics and the profile's
// topic weights: the best matched weight, with a small bonus per extra
// match. Zero when nothing overlaps.
func (e *Extractor) relevance(it item.NormalizedItem, p *profile.Profile) float64 {
	if p == nil || len(p.TopicWeights) == 0 {
		return 0
	}
	best := 0.0
	matches := 0
	for _, topic := range it.Topics() {
		if w, ok := p.TopicWeights[topic]; ok {
			matches++
			if w > best {
				best = w
			}
		}
	}
	if matches == 0 {
		return 0
	}
	return profile.Clamp01(best + 0.1*float64(matches-1))
}

// urgency decays exponentially with time until the due moment: 1.0 at or
// past due, ~0.13 at the horizon, 0 for items with no due time.
func (e *Extractor) urgency(it item.NormalizedItem, now time.Time) float64 {
	if it.Due == nil {
		return 0
	}
	until := it.Due.Sub(now)
	if until <= 0 {
		return 1
	}
	horizon := e.UrgencyHorizon.Hours()
	if horizon <= 0 {
		return 0
	}
	return profile.Clamp01(math.Exp(-2 * until.Hours() / horizon))
}

func (e *Extractor) actionability(it item.NormalizedItem) float64 {
	best := 0.0
	for _, sig := range it.Signals {
		if v, ok := actionValues[sig]; ok && v > best {
			best = v
		}
	}
	if best == 0 && it.Type == item.TypeTask {
		// A task is inherently actionable even without explicit signals.
		best = 0.5
	}
	return best
}

func (e *Extractor) impact(it item.NormalizedItem, p *profile.Profile) float64 {
	score := 0.0
	if p.IsVIP(it.From) {
		score += 0.5
	}
	text := strings.ToLower(it.Title + " " + it.Body)
	for _, kw := range impactKeywords {
		if strings.Contains(text, kw) {
			score += 0.3
			break
		}
	}
	if it.Audience >= e.BroadAudience && e.BroadAudience > 0 {
		score += 0.2
	}
	return profile.Clamp01(score)
}
