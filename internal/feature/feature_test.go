package feature

import (
	"testing"
	"time"

	"github.com/air23zj/pal-sub001/internal/item"
	"github.com/air23zj/pal-sub001/internal/profile"
)

var refTime = time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

func testProfile() *profile.Profile {
	p := profile.New("u1")
	p.TopicWeights["phoenix"] = 0.8
	p.TopicWeights["budget"] = 0.4
	p.VIPs["alice@example.com"] = true
	p.SourceTrust["gmail"] = 0.9
	return p
}

func TestRelevanceOverlap(t *testing.T) {
	e := NewExtractor()
	p := testProfile()

	it := item.NormalizedItem{
		Module: "gmail", SourceID: "1", Type: item.TypeMessage,
		Title:    "Phoenix budget review",
		Entities: []item.Entity{{Kind: item.EntityProject, Name: "Phoenix"}},
	}
	v := e.Extract(it, p, refTime)
	// best match 0.8 plus one extra match bonus
	if v.Relevance < 0.85 || v.Relevance > 0.95 {
		t.Errorf("relevance = %v, want ~0.9", v.Relevance)
	}

	none := item.NormalizedItem{Module: "gmail", SourceID: "2", Title: "Lunch menu"}
	if got := e.Extract(none, p, refTime).Relevance; got != 0 {
		t.Errorf("relevance with no overlap = %v, want 0", got)
	}
}

func TestUrgencyDecay(t *testing.T) {
	e := NewExtractor()
	p := testProfile()

	overdue := refTime.Add(-time.Hour)
	soon := refTime.Add(2 * time.Hour)
	far := refTime.Add(96 * time.Hour)

	cases := []struct {
		name string
		due  *time.Time
		min  float64
		max  float64
	}{
		{"no due time", nil, 0, 0},
		{"overdue", &overdue, 1, 1},
		{"due soon", &soon, 0.8, 1},
		{"far out", &far, 0, 0.05},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			it := item.NormalizedItem{Module: "tasks", SourceID: "t", Type: item.TypeTask, Due: tc.due}
			got := e.Extract(it, p, refTime).Urgency
			if got < tc.min || got > tc.max {
				t.Errorf("urgency = %v, want in [%v, %v]", got, tc.min, tc.max)
			}
		})
	}
}

func TestCredibilityDefaults(t *testing.T) {
	e := NewExtractor()
	p := testProfile()

	trusted := item.NormalizedItem{Module: "gmail", SourceID: "1"}
	if got := e.Extract(trusted, p, refTime).Credibility; got != 0.9 {
		t.Errorf("credibility = %v, want 0.9", got)
	}

	unknown := item.NormalizedItem{Module: "mastodon", SourceID: "1"}
	if got := e.Extract(unknown, p, refTime).Credibility; got != 0.5 {
		t.Errorf("credibility for unknown source = %v, want neutral 0.5", got)
	}
}

func TestActionability(t *testing.T) {
	e := NewExtractor()
	p := testProfile()

	assigned := item.NormalizedItem{Module: "jira", SourceID: "1", Signals: []string{item.SignalAssigned}}
	if got := e.Extract(assigned, p, refTime).Actionability; got != 0.9 {
		t.Errorf("assigned actionability = %v, want 0.9", got)
	}

	plainTask := item.NormalizedItem{Module: "todoist", SourceID: "1", Type: item.TypeTask}
	if got := e.Extract(plainTask, p, refTime).Actionability; got != 0.5 {
		t.Errorf("bare task actionability = %v, want 0.5", got)
	}

	post := item.NormalizedItem{Module: "rss", SourceID: "1", Type: item.TypePost}
	if got := e.Extract(post, p, refTime).Actionability; got != 0 {
		t.Errorf("post actionability = %v, want 0", got)
	}
}

func TestImpactCappedAtOne(t *testing.T) {
	e := NewExtractor()
	p := testProfile()

	it := item.NormalizedItem{
		Module: "gmail", SourceID: "1",
		From:     "alice@example.com",
		Title:    "URGENT: contract deadline",
		Audience: 50,
	}
	got := e.Extract(it, p, refTime).Impact
	if got != 1 {
		t.Errorf("stacked impact = %v, want capped 1.0", got)
	}
}

func TestExtractNeverPanicsOnEmptyItem(t *testing.T) {
	e := NewExtractor()
	v := e.Extract(item.NormalizedItem{}, profile.New("u1"), refTime)
	for name, val := range map[string]float64{
		"relevance": v.Relevance, "urgency": v.Urgency, "credibility": v.Credibility,
		"actionability": v.Actionability, "impact": v.Impact,
	} {
		if val < 0 || val > 1 {
			t.Errorf("%s = %v out of [0,1]", name, val)
		}
	}
	if v.Credibility != 0.5 {
		t.Errorf("empty item credibility = %v, want 0.5", v.Credibility)
	}
}
