// Package novelty decides an item's relationship to what the user has
// already seen. The basic mode labels items NEW, UPDATED, or REPEAT from
// exact content hashes alone. Enhanced mode layers semantic-duplicate and
// entity-update detection on top via injected similarity functions; it is
// an optional refinement, never a prerequisite.
package novelty

import (
	"fmt"
	"log"
	"time"

	"github.com/air23zj/pal-sub001/internal/item"
	"github.com/air23zj/pal-sub001/internal/store"
)

// Label classifies an item's relationship to prior history. It lives for
// one pipeline run; the durable truth is the memory record.
type Label string

const (
	LabelNew               Label = "new"
	LabelUpdated           Label = "updated"
	LabelRepeat            Label = "repeat"
	LabelSemanticDuplicate Label = "semantic_duplicate"
	LabelEntityUpdate      Label = "entity_update"
)

// DefaultSimilarityThreshold is the similarity at or above which an item is
// folded into an earlier batch item as a semantic duplicate.
const DefaultSimilarityThreshold = 0.85

// SimilarityFunc scores semantic similarity of two items in [0,1].
type SimilarityFunc func(a, b item.NormalizedItem) float64

// SharedEntityFunc reports whether two items concern the same tracked entity.
type SharedEntityFunc func(a, b item.NormalizedItem) bool

// MemoryStore is the narrow slice of the record store the classifier needs.
type MemoryStore interface {
	BatchGetRecords(userID string, stableIDs []string) (map[string]store.MemoryRecord, error)
	UpsertRecord(userID, stableID, contentHash string, now time.Time) error
}

// Input is a fingerprinted item awaiting classification.
type Input struct {
	Item        item.NormalizedItem
	Fingerprint item.Fingerprint
}

// Classified is an item with its label for the current run. CanonicalID is
// set only for semantic duplicates and names the batch item they fold into.
type Classified struct {
	Item        item.NormalizedItem
	Fingerprint item.Fingerprint
	Label       Label
	Prior       *store.MemoryRecord
	CanonicalID string
}

// Classifier labels items against the memory store and the current batch.
type Classifier struct {
	mem          MemoryStore
	similarity   SimilarityFunc
	sharedEntity SharedEntityFunc
	threshold    float64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithSimilarity enables semantic-duplicate detection.
func WithSimilarity(fn SimilarityFunc, threshold float64) Option {
	return func(c *Classifier) {
		c.similarity = fn
		if threshold > 0 {
			c.threshold = threshold
		}
	}
}

// WithSharedEntity enables entity-update detection.
func WithSharedEntity(fn SharedEntityFunc) Option {
	return func(c *Classifier) {
		c.sharedEntity = fn
	}
}

// NewClassifier creates a classifier. With no options it runs in basic
// three-label mode.
func NewClassifier(mem MemoryStore, opts ...Option) *Classifier {
	c := &Classifier{mem: mem, threshold: DefaultSimilarityThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClassifyBatch applies the exact-hash rules to one module's items:
// no record is NEW, unchanged hash is REPEAT, changed hash is UPDATED.
// These checks are cheap and authoritative, so they always run before any
// semantic refinement. A store failure is fatal to the run; a per-item
// oddity degrades that item to NEW.
func (c *Classifier) ClassifyBatch(userID string, batch []Input) ([]Classified, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	ids := make([]string, len(batch))
	for i, in := range batch {
		ids[i] = in.Fingerprint.StableID
	}
	priors, err := c.mem.BatchGetRecords(userID, ids)
	if err != nil {
		return nil, fmt.Errorf("loading memory records: %w", err)
	}

	out := make([]Classified, len(batch))
	for i, in := range batch {
		cl := Classified{Item: in.Item, Fingerprint: in.Fingerprint}
		if prior, ok := priors[in.Fingerprint.StableID]; ok {
			p := prior
			cl.Prior = &p
			if prior.ContentHash == in.Fingerprint.ContentHash {
				cl.Label = LabelRepeat
			} else {
				cl.Label = LabelUpdated
			}
		} else {
			cl.Label = LabelNew
		}
		out[i] = cl
	}
	return out, nil
}

// RefineSemantic applies the enhanced rules across the whole run's batch,
// in place. Only items that came out of the exact checks as NEW are
// candidates: an item near-duplicate of an earlier NEW or UPDATED item
// becomes SEMANTIC_DUPLICATE; failing that, an item continuing a tracked
// entity's story becomes ENTITY_UPDATE. No-op in basic mode.
func (c *Classifier) RefineSemantic(batch []*Classified) {
	if c.similarity == nil && c.sharedEntity == nil {
		return
	}

	for i, cand := range batch {
		if cand.Label != LabelNew {
			continue
		}

		for j := 0; j < i; j++ {
			prior := batch[j]
			if prior.Label != LabelNew && prior.Label != LabelUpdated && prior.Label != LabelEntityUpdate {
				continue
			}

			if c.similarity != nil && c.similarity(cand.Item, prior.Item) >= c.threshold {
				cand.Label = LabelSemanticDuplicate
				cand.CanonicalID = prior.Fingerprint.StableID
				break
			}

			if c.sharedEntity != nil && c.sharedEntity(cand.Item, prior.Item) &&
				cand.Fingerprint.ContentHash != prior.Fingerprint.ContentHash {
				cand.Label = LabelEntityUpdate
				// keep scanning: a closer semantic duplicate still wins
			}
		}
	}
}

// Commit upserts memory records for a classified batch. Semantic duplicates
// do not get their own record; they bump the canonical item's seen count
// instead, so recurrence of the story is still visible in its history.
func (c *Classifier) Commit(userID string, batch []*Classified, now time.Time) error {
	byID := make(map[string]*Classified, len(batch))
	for _, cl := range batch {
		byID[cl.Fingerprint.StableID] = cl
	}

	for _, cl := range batch {
		switch cl.Label {
		case LabelSemanticDuplicate:
			canonical, ok := byID[cl.CanonicalID]
			if !ok {
				log.Printf("semantic duplicate %s has no canonical item in batch, skipping",
					cl.Fingerprint.StableID)
				continue
			}
			// Re-upserting the canonical hash increments its seen count.
			if err := c.mem.UpsertRecord(userID, canonical.Fingerprint.StableID,
				canonical.Fingerprint.ContentHash, now); err != nil {
				return err
			}
		default:
			if err := c.mem.UpsertRecord(userID, cl.Fingerprint.StableID,
				cl.Fingerprint.ContentHash, now); err != nil {
				return err
			}
		}
	}
	return nil
}
