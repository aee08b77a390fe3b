package rank

import (
	"fmt"
	"testing"
	"time"

	"github.com/air23zj/pal-sub001/internal/brief"
	"github.com/air23zj/pal-sub001/internal/feature"
	"github.com/air23zj/pal-sub001/internal/item"
	"github.com/air23zj/pal-sub001/internal/novelty"
)

func TestScoreDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	v := feature.Vector{Relevance: 1, Urgency: 1, Credibility: 1, Actionability: 1, Impact: 1}
	if got := w.Score(v); got != 1 {
		t.Errorf("all-ones score = %v, want 1.0", got)
	}
	if got := w.Score(feature.Vector{}); got != 0 {
		t.Errorf("zero vector score = %v, want 0", got)
	}

	v = feature.Vector{Relevance: 0.5}
	want := 0.45 * 0.5
	if got := w.Score(v); got != want {
		t.Errorf("relevance-only score = %v, want %v", got, want)
	}

	// Deterministic: same input, same output.
	if w.Score(v) != w.Score(v) {
		t.Error("score is not deterministic")
	}
}

func TestScoreClamped(t *testing.T) {
	w := Weights{Relevance: 2.0} // misconfigured weights must still clamp
	got := w.Score(feature.Vector{Relevance: 1})
	if got != 1 {
		t.Errorf("score = %v, want clamped 1.0", got)
	}
}

func rankedItem(id string, score float64, ts time.Time, label novelty.Label) brief.RankedItem {
	return brief.RankedItem{
		Item:        item.NormalizedItem{Module: "m", SourceID: id, Title: id, Timestamp: ts},
		Fingerprint: item.Fingerprint{StableID: "m:" + id, ContentHash: "h"},
		Label:       label,
		FinalScore:  score,
	}
}

func TestPerModuleCap(t *testing.T) {
	ts := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	mod := brief.ModuleResult{Module: "gmail", Status: brief.StatusOK}
	for i := 0; i < 20; i++ {
		mod.Items = append(mod.Items, rankedItem(fmt.Sprintf("i%02d", i), float64(i)/20, ts, novelty.LabelNew))
	}

	s := NewSelector(Caps{})
	out := s.Apply([]brief.ModuleResult{mod})

	if len(out[0].Items) != 8 {
		t.Fatalf("module kept %d items, want 8", len(out[0].Items))
	}
	if out[0].Items[0].Fingerprint.StableID != "m:i19" {
		t.Errorf("top item = %s, want highest-scoring m:i19", out[0].Items[0].Fingerprint.StableID)
	}
}

func TestTotalCapAcrossModules(t *testing.T) {
	ts := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	var modules []brief.ModuleResult
	for m := 0; m < 5; m++ {
		mod := brief.ModuleResult{Module: fmt.Sprintf("mod%d", m), Status: brief.StatusOK}
		for i := 0; i < 8; i++ {
			id := fmt.Sprintf("m%d-i%d", m, i)
			mod.Items = append(mod.Items, rankedItem(id, float64(m*8+i)/40, ts, novelty.LabelNew))
		}
		modules = append(modules, mod)
	}

	s := NewSelector(Caps{})
	out := s.Apply(modules)

	total := 0
	for _, m := range out {
		total += len(m.Items)
	}
	if total != 30 {
		t.Errorf("total selected = %d, want 30", total)
	}
	// The lowest-scoring module should have lost the most items.
	if len(out[0].Items) >= len(out[4].Items) {
		t.Errorf("low-scoring module kept %d, high-scoring kept %d", len(out[0].Items), len(out[4].Items))
	}
}

func TestTotalCapWithCollidingStableIDs(t *testing.T) {
	ts := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	// Two connectors emitted the same stable id (a JSONL line can carry an
	// explicit module matching another feed), with very different scores.
	// The low-scoring copy must not ride its twin's id past the trim.
	sharedScores := []float64{0.9, 0.05}
	var modules []brief.ModuleResult
	for m := 0; m < 2; m++ {
		mod := brief.ModuleResult{Module: fmt.Sprintf("mod%d", m), Status: brief.StatusOK}
		mod.Items = append(mod.Items, rankedItem("shared", sharedScores[m], ts, novelty.LabelNew))
		for i := 0; i < 3; i++ {
			mod.Items = append(mod.Items, rankedItem(fmt.Sprintf("m%d-i%d", m, i), 0.5-float64(i)/10, ts, novelty.LabelNew))
		}
		modules = append(modules, mod)
	}

	s := NewSelector(Caps{Total: 5})
	out := s.Apply(modules)

	total := 0
	for _, m := range out {
		total += len(m.Items)
	}
	if total != 5 {
		t.Errorf("total selected = %d, want exactly 5 despite the shared id", total)
	}
	if out[0].Items[0].Fingerprint.StableID != "m:shared" {
		t.Errorf("high-scoring copy lost: %+v", out[0].Items)
	}
	for _, it := range out[1].Items {
		if it.Fingerprint.StableID == "m:shared" {
			t.Errorf("low-scoring copy (%.2f) survived the trim via its twin's id", it.FinalScore)
		}
	}
}

func TestHighlightsExcludeRepeatsAndDuplicates(t *testing.T) {
	ts := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	mod := brief.ModuleResult{Module: "gmail", Status: brief.StatusOK, Items: []brief.RankedItem{
		rankedItem("a", 0.9, ts, novelty.LabelRepeat),
		rankedItem("b", 0.8, ts, novelty.LabelSemanticDuplicate),
		rankedItem("c", 0.7, ts, novelty.LabelNew),
		rankedItem("d", 0.6, ts, novelty.LabelUpdated),
		rankedItem("e", 0.5, ts, novelty.LabelEntityUpdate),
	}}

	s := NewSelector(Caps{})
	his := s.Highlights([]brief.ModuleResult{mod})

	if len(his) != 3 {
		t.Fatalf("got %d highlights, want 3", len(his))
	}
	for _, hi := range his {
		if hi.Label == novelty.LabelRepeat || hi.Label == novelty.LabelSemanticDuplicate {
			t.Errorf("highlight %s has excluded label %s", hi.Fingerprint.StableID, hi.Label)
		}
	}
}

func TestHighlightTieBreaking(t *testing.T) {
	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	scores := []float64{0.9, 0.8, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}

	mod := brief.ModuleResult{Module: "gmail", Status: brief.StatusOK}
	for i, score := range scores {
		ts := base
		if i == 2 {
			// The second 0.8 is more recent: it must outrank the first.
			ts = base.Add(time.Hour)
		}
		mod.Items = append(mod.Items, rankedItem(fmt.Sprintf("i%d", i), score, ts, novelty.LabelNew))
	}

	s := NewSelector(Caps{PerModule: 100})
	his := s.Highlights([]brief.ModuleResult{mod})

	if len(his) != 5 {
		t.Fatalf("got %d highlights, want 5", len(his))
	}
	wantOrder := []string{"m:i0", "m:i2", "m:i1", "m:i3", "m:i4"}
	for i, want := range wantOrder {
		if his[i].Fingerprint.StableID != want {
			t.Errorf("highlight %d = %s, want %s", i, his[i].Fingerprint.StableID, want)
		}
	}
}

func TestTieBreakByStableID(t *testing.T) {
	ts := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	mod := brief.ModuleResult{Module: "gmail", Status: brief.StatusOK, Items: []brief.RankedItem{
		rankedItem("zzz", 0.5, ts, novelty.LabelNew),
		rankedItem("aaa", 0.5, ts, novelty.LabelNew),
	}}

	s := NewSelector(Caps{})
	his := s.Highlights([]brief.ModuleResult{mod})
	if his[0].Fingerprint.StableID != "m:aaa" {
		t.Errorf("equal score and timestamp should order by stable id, got %s first", his[0].Fingerprint.StableID)
	}
}
