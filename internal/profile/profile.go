// Package profile holds the learned user preference profile consumed by
// feature extraction and ranking. The profile is read-only during a
// pipeline run; only the consolidator mutates it.
package profile

import "time"

// Profile is one user's learned preferences.
type Profile struct {
	UserID string
	// TopicWeights maps lowercase topic tokens to weights in [0,1].
	TopicWeights map[string]float64
	// VIPs is the set of person identifiers with elevated importance.
	VIPs map[string]bool
	// SourceTrust maps module names to a smoothed engagement rate in [0,1].
	SourceTrust map[string]float64
	// EngagementCounts tracks positive engagements per person, feeding
	// VIP promotion.
	EngagementCounts map[string]int
	// FeedbackWatermark is the id of the last consolidated feedback event.
	FeedbackWatermark int64
	UpdatedAt         time.Time
}

// New returns an empty profile for a user.
func New(userID string) *Profile {
	return &Profile{
		UserID:           userID,
		TopicWeights:     make(map[string]float64),
		VIPs:             make(map[string]bool),
		SourceTrust:      make(map[string]float64),
		EngagementCounts: make(map[string]int),
	}
}

// IsVIP reports whether a person identifier is in the VIP set.
func (p *Profile) IsVIP(person string) bool {
	if p == nil || person == "" {
		return false
	}
	return p.VIPs[person]
}

// Trust returns the trust weight for a source module, or the neutral
// default 0.5 when the source has no history.
func (p *Profile) Trust(source string) float64 {
	if p == nil {
		return 0.5
	}
	if t, ok := p.SourceTrust[source]; ok {
		return t
	}
	return 0.5
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
