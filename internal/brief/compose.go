package brief

import (
	"fmt"
	"strings"

	"github.com/air23zj/pal-sub001/internal/novelty"
)

var labelBadges = map[novelty.Label]string{
	novelty.LabelNew:          "new",
	novelty.LabelUpdated:      "updated",
	novelty.LabelEntityUpdate: "follow-up",
}

// ComposeMarkdown renders a bundle as a markdown document: a TL;DR of the
// highlights followed by a section per module.
func ComposeMarkdown(b *Bundle) string {
	var sections []string

	sections = append(sections, fmt.Sprintf("# Brief — %s", b.GeneratedAt.Format("Mon, 2 Jan 2006")))
	sections = append(sections, composeTLDR(b))

	for _, m := range b.Modules {
		sections = append(sections, composeModule(m))
	}

	return strings.Join(sections, "\n\n")
}

func composeTLDR(b *Bundle) string {
	if len(b.TopHighlights) == 0 {
		return "_Nothing new worth your attention._"
	}

	var lines []string
	lines = append(lines, "## Top highlights")
	for _, hi := range b.TopHighlights {
		line := fmt.Sprintf("- **%s** (%s, score %.2f)", hi.Item.Title, hi.Item.Module, hi.FinalScore)
		if hi.Explanation != "" {
			line += " — " + hi.Explanation
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func composeModule(m ModuleResult) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("## %s", m.Module))

	switch m.Status {
	case StatusFailed:
		lines = append(lines, fmt.Sprintf("_Unavailable this run: %s_", m.Err))
		return strings.Join(lines, "\n")
	case StatusDegraded:
		lines = append(lines, fmt.Sprintf("_Partial results (%d items skipped)._", m.SkippedCount))
	}

	if len(m.Items) == 0 {
		lines = append(lines, "_Nothing new._")
		return strings.Join(lines, "\n")
	}

	for _, it := range m.Items {
		line := fmt.Sprintf("- %s", it.Item.Title)
		if badge, ok := labelBadges[it.Label]; ok && badge != "new" {
			line += fmt.Sprintf(" _[%s]_", badge)
		}
		if it.Explanation != "" {
			line += " — " + it.Explanation
		}
		lines = append(lines, line)
	}

	if m.DuplicateCount > 0 {
		lines = append(lines, fmt.Sprintf("\n_%d near-duplicate item(s) folded into the above._", m.DuplicateCount))
	}
	return strings.Join(lines, "\n")
}
