// Package rank combines feature vectors into final scores and applies the
// selection caps that bound a brief. Weights are an explicit, versioned
// configuration so historical runs stay reproducible when tuning changes.
package rank

import (
	"sort"

	"github.com/air23zj/pal-sub001/internal/brief"
	"github.com/air23zj/pal-sub001/internal/feature"
	"github.com/air23zj/pal-sub001/internal/novelty"
)

// Weights is one versioned scoring formula. The five weights should sum to
// 1.0; the score is clamped to [0,1] regardless.
type Weights struct {
	Version       string  `yaml:"version"`
	Relevance     float64 `yaml:"relevance"`
	Urgency       float64 `yaml:"urgency"`
	Credibility   float64 `yaml:"credibility"`
	Actionability float64 `yaml:"actionability"`
	Impact        float64 `yaml:"impact"`
}

// DefaultWeights is the v1 formula.
func DefaultWeights() Weights {
	return Weights{
		Version:       "v1",
		Relevance:     0.45,
		Urgency:       0.20,
		Credibility:   0.15,
		Actionability: 0.10,
		Impact:        0.10,
	}
}

// Score combines a feature vector into one score in [0,1].
func (w Weights) Score(v feature.Vector) float64 {
	s := w.Relevance*v.Relevance +
		w.Urgency*v.Urgency +
		w.Credibility*v.Credibility +
		w.Actionability*v.Actionability +
		w.Impact*v.Impact
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Caps bound how much of a run survives selection.
type Caps struct {
	PerModule  int `yaml:"per_module"`
	Total      int `yaml:"total"`
	Highlights int `yaml:"highlights"`
}

// DefaultCaps returns the standard selection bounds.
func DefaultCaps() Caps {
	return Caps{PerModule: 8, Total: 30, Highlights: 5}
}

// Selector applies caps and elects highlights. Caps run after scoring,
// never before, so a low-cap module cannot bias which items get scored.
type Selector struct {
	Caps Caps
}

// NewSelector creates a selector; zero cap fields fall back to defaults.
func NewSelector(caps Caps) *Selector {
	def := DefaultCaps()
	if caps.PerModule <= 0 {
		caps.PerModule = def.PerModule
	}
	if caps.Total <= 0 {
		caps.Total = def.Total
	}
	if caps.Highlights <= 0 {
		caps.Highlights = def.Highlights
	}
	return &Selector{Caps: caps}
}

// Apply trims each module to the per-module cap and the whole run to the
// total cap, keeping the highest-scoring items. Module order is preserved.
func (s *Selector) Apply(modules []brief.ModuleResult) []brief.ModuleResult {
	for mi := range modules {
		items := modules[mi].Items
		sortByScore(items)
		if len(items) > s.Caps.PerModule {
			modules[mi].Items = items[:s.Caps.PerModule]
		}
	}

	total := 0
	for mi := range modules {
		total += len(modules[mi].Items)
	}
	if total <= s.Caps.Total {
		return modules
	}

	// Over the run cap: rank every surviving item globally and trim each
	// module to its winners. The keep set is keyed by position, not stable
	// id, so an id appearing in two modules cannot shift the total.
	type itemRef struct{ module, index int }
	refs := make([]itemRef, 0, total)
	for mi := range modules {
		for ii := range modules[mi].Items {
			refs = append(refs, itemRef{mi, ii})
		}
	}
	sort.SliceStable(refs, func(a, b int) bool {
		return lessByScore(
			modules[refs[a].module].Items[refs[a].index],
			modules[refs[b].module].Items[refs[b].index],
		)
	})
	keep := make(map[itemRef]bool, s.Caps.Total)
	for _, ref := range refs[:s.Caps.Total] {
		keep[ref] = true
	}

	for mi := range modules {
		kept := modules[mi].Items[:0]
		for ii, it := range modules[mi].Items {
			if keep[itemRef{mi, ii}] {
				kept = append(kept, it)
			}
		}
		modules[mi].Items = kept
	}
	return modules
}

// Highlights elects the top items across all modules, excluding repeats and
// semantic duplicates. Ties break by more recent timestamp, then by stable
// id lexical order, so election is deterministic.
func (s *Selector) Highlights(modules []brief.ModuleResult) []brief.RankedItem {
	var pool []brief.RankedItem
	for _, m := range modules {
		for _, it := range m.Items {
			if it.Label == novelty.LabelRepeat || it.Label == novelty.LabelSemanticDuplicate {
				continue
			}
			pool = append(pool, it)
		}
	}
	sortByScore(pool)
	if len(pool) > s.Caps.Highlights {
		pool = pool[:s.Caps.Highlights]
	}
	return pool
}

func sortByScore(items []brief.RankedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return lessByScore(items[i], items[j])
	})
}

// lessByScore orders by score descending, then newer timestamp, then stable
// id ascending.
func lessByScore(a, b brief.RankedItem) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}
	if !a.Item.Timestamp.Equal(b.Item.Timestamp) {
		return a.Item.Timestamp.After(b.Item.Timestamp)
	}
	return a.Fingerprint.StableID < b.Fingerprint.StableID
}
