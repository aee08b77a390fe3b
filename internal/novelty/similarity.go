package novelty

import (
	"math"
	"strings"

	"github.com/air23zj/pal-sub001/internal/item"
)

// JaccardSimilarity scores two items by token overlap of their title and
// body. It is the no-dependency similarity function for enhanced mode when
// no embedding model is configured.
func JaccardSimilarity(a, b item.NormalizedItem) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(it item.NormalizedItem) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(it.Title + " " + it.Body)) {
		w = strings.Trim(w, ".,!?:;\"'()[]")
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}

// CosineSimilarity computes cosine similarity of two embedding vectors,
// clamped to [0,1]. Zero for mismatched or empty vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
