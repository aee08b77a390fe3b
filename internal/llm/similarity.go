package llm

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/air23zj/pal-sub001/internal/item"
	"github.com/air23zj/pal-sub001/internal/novelty"
)

// NewEmbeddingSimilarity adapts an Embedder into the similarity function
// the novelty classifier injects. Embeddings are cached per stable text so
// each item is embedded at most once per process. Any embedding failure
// scores 0, degrading to no-duplicate rather than failing a run.
func NewEmbeddingSimilarity(e Embedder) novelty.SimilarityFunc {
	var mu sync.Mutex
	cache := make(map[string][]float64)

	embed := func(text string) []float64 {
		mu.Lock()
		vec, ok := cache[text]
		mu.Unlock()
		if ok {
			return vec
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		vecs, err := e.Embed(ctx, []string{text})
		if err != nil || len(vecs) != 1 {
			log.Printf("embedding failed, treating as dissimilar: %v", err)
			return nil
		}

		mu.Lock()
		cache[text] = vecs[0]
		mu.Unlock()
		return vecs[0]
	}

	return func(a, b item.NormalizedItem) float64 {
		va := embed(itemText(a))
		vb := embed(itemText(b))
		return novelty.CosineSimilarity(va, vb)
	}
}

func itemText(it item.NormalizedItem) string {
	body := it.Body
	if len(body) > 500 {
		body = body[:500]
	}
	return it.Title + "\n" + body
}
