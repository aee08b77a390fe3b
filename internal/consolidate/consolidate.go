// Package consolidate turns journaled feedback events into profile
// updates: topic weight nudges, VIP promotion, and smoothed source trust.
// It runs out-of-band from brief generation and is idempotent per event.
package consolidate

import (
	"log"
	"time"

	"github.com/air23zj/pal-sub001/internal/profile"
	"github.com/air23zj/pal-sub001/internal/store"
)

// Config tunes consolidation.
type Config struct {
	// TopicStep is the weight nudge per engagement event.
	TopicStep float64 `yaml:"topic_step"`
	// TrustAlpha is the smoothing factor of the per-source trust EWMA.
	TrustAlpha float64 `yaml:"trust_alpha"`
	// VIPThreshold is the positive-engagement count at which a person is
	// promoted to the VIP set.
	VIPThreshold int `yaml:"vip_threshold"`
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{TopicStep: 0.05, TrustAlpha: 0.2, VIPThreshold: 3}
}

// Result summarizes one consolidation pass.
type Result struct {
	Applied  int
	Skipped  int
	Promoted []string
}

// Consolidator applies feedback events to a profile.
type Consolidator struct {
	cfg Config
}

// New creates a consolidator; zero config fields fall back to defaults.
func New(cfg Config) *Consolidator {
	def := DefaultConfig()
	if cfg.TopicStep <= 0 {
		cfg.TopicStep = def.TopicStep
	}
	if cfg.TrustAlpha <= 0 || cfg.TrustAlpha > 1 {
		cfg.TrustAlpha = def.TrustAlpha
	}
	if cfg.VIPThreshold <= 0 {
		cfg.VIPThreshold = def.VIPThreshold
	}
	return &Consolidator{cfg: cfg}
}

// Apply folds events into the profile in journal order. Events at or below
// the profile's watermark are skipped, so replaying a batch never
// double-counts. The watermark advances to the highest applied event id.
func (c *Consolidator) Apply(p *profile.Profile, events []store.FeedbackEvent) *Result {
	r := &Result{}

	for _, ev := range events {
		if ev.ID <= p.FeedbackWatermark {
			r.Skipped++
			continue
		}

		positive := ev.Positive()
		c.nudgeTopics(p, ev.Topics, positive)
		c.updateTrust(p, ev.Source, positive)
		if positive && ev.Person != "" {
			c.countEngagement(p, ev.Person, r)
		}

		p.FeedbackWatermark = ev.ID
		r.Applied++
	}

	if r.Applied > 0 {
		p.UpdatedAt = time.Now().UTC()
	}
	return r
}

func (c *Consolidator) nudgeTopics(p *profile.Profile, topics []string, positive bool) {
	step := c.cfg.TopicStep
	if !positive {
		step = -step
	}
	for _, topic := range topics {
		p.TopicWeights[topic] = profile.Clamp01(p.TopicWeights[topic] + step)
	}
}

// updateTrust maintains trust as an exponentially smoothed engagement
// rate, updated incrementally rather than recomputed from history.
func (c *Consolidator) updateTrust(p *profile.Profile, source string, positive bool) {
	if source == "" {
		return
	}
	observation := 0.0
	if positive {
		observation = 1.0
	}
	prev, ok := p.SourceTrust[source]
	if !ok {
		prev = 0.5 // neutral starting point for an unseen source
	}
	p.SourceTrust[source] = profile.Clamp01((1-c.cfg.TrustAlpha)*prev + c.cfg.TrustAlpha*observation)
}

func (c *Consolidator) countEngagement(p *profile.Profile, person string, r *Result) {
	p.EngagementCounts[person]++
	if p.EngagementCounts[person] >= c.cfg.VIPThreshold && !p.VIPs[person] {
		p.VIPs[person] = true
		r.Promoted = append(r.Promoted, person)
		log.Printf("promoted %s to VIP after %d positive engagements", person, p.EngagementCounts[person])
	}
}
