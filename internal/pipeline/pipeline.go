// Package pipeline orchestrates one end-to-end brief run: fetch and
// normalize every configured source module, classify novelty against the
// memory store, score and select, and assemble the bundle. Each module is
// failure-isolated; a partial brief always beats no brief.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/air23zj/pal-sub001/internal/brief"
	"github.com/air23zj/pal-sub001/internal/feature"
	"github.com/air23zj/pal-sub001/internal/item"
	"github.com/air23zj/pal-sub001/internal/novelty"
	"github.com/air23zj/pal-sub001/internal/profile"
	"github.com/air23zj/pal-sub001/internal/rank"
	"github.com/air23zj/pal-sub001/internal/source"
)

// ErrConcurrentRun is returned when a run is requested for a user who
// already has one in flight. Runs for one user never interleave.
var ErrConcurrentRun = errors.New("run already in progress for user")

// ErrRunCancelled is returned when the context is cancelled mid-run.
// Memory upserts already committed stay committed; no bundle is returned.
var ErrRunCancelled = errors.New("run cancelled")

// Orchestrator drives brief runs. One orchestrator serves all users;
// per-user locking lives here.
type Orchestrator struct {
	classifier *novelty.Classifier
	extractor  *feature.Extractor
	weights    rank.Weights
	selector   *rank.Selector
	progress   ProgressFunc
	now        func() time.Time

	mu     sync.Mutex
	active map[string]bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress registers a progress listener.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator.
func New(classifier *novelty.Classifier, extractor *feature.Extractor, weights rank.Weights, selector *rank.Selector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier: classifier,
		extractor:  extractor,
		weights:    weights,
		selector:   selector,
		now:        func() time.Time { return time.Now().UTC() },
		active:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// moduleWork carries one module through the run.
type moduleWork struct {
	result     brief.ModuleResult
	classified []novelty.Classified
}

// Run executes one brief run for a user. The profile is read-only for the
// duration of the run. A second concurrent run for the same user is
// rejected with ErrConcurrentRun; runs for different users are independent.
func (o *Orchestrator) Run(ctx context.Context, userID string, prof *profile.Profile, sources []source.Source) (*brief.Bundle, error) {
	if !o.acquire(userID) {
		return nil, fmt.Errorf("%w: %s", ErrConcurrentRun, userID)
	}
	defer o.release(userID)

	runID := uuid.NewString()
	now := o.now()

	for _, src := range sources {
		o.emit(runID, src.Name(), StatePending, "")
	}

	// Fetch and normalize concurrently: modules touch disjoint external
	// resources and no shared state is mutated yet.
	work := make([]*moduleWork, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			work[i] = o.fetchModule(ctx, runID, src)
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunCancelled, err)
	}

	// Classification mutates the memory store, so it runs serialized,
	// module by module, within this run.
	var all []*novelty.Classified
	for _, w := range work {
		if w.result.Status == brief.StatusFailed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRunCancelled, err)
		}

		inputs := make([]novelty.Input, 0, len(w.classified))
		for _, cl := range w.classified {
			inputs = append(inputs, novelty.Input{Item: cl.Item, Fingerprint: cl.Fingerprint})
		}
		labeled, err := o.classifier.ClassifyBatch(userID, inputs)
		if err != nil {
			// Memory store unavailable corrupts every module's view:
			// the one run-fatal condition.
			return nil, fmt.Errorf("classifying %s: %w", w.result.Module, err)
		}
		w.classified = labeled
		for i := range w.classified {
			all = append(all, &w.classified[i])
		}
		o.emit(runID, w.result.Module, StateClassified, "")
	}

	// Cross-module semantic refinement, then the memory commit. A no-op
	// in basic mode.
	o.classifier.RefineSemantic(all)
	if err := o.classifier.Commit(userID, all, now); err != nil {
		return nil, fmt.Errorf("committing memory records: %w", err)
	}

	// Score everything that survived novelty, then apply caps. Caps come
	// last so no module's cap biases scoring.
	modules := make([]brief.ModuleResult, len(work))
	for i, w := range work {
		if w.result.Status != brief.StatusFailed {
			o.rankModule(w, prof, now)
			o.emit(runID, w.result.Module, StateRanked, "")
		}
		modules[i] = w.result
	}

	modules = o.selector.Apply(modules)
	highlights := o.selector.Highlights(modules)

	for _, m := range modules {
		if m.Status != brief.StatusFailed {
			o.emit(runID, m.Module, StateDone, "")
		}
	}

	return &brief.Bundle{
		RunID:         runID,
		UserID:        userID,
		GeneratedAt:   now,
		TopHighlights: highlights,
		Modules:       modules,
	}, nil
}

// fetchModule runs the fetch and normalize stages for one module. All
// failures, panics included, are converted to a failed ModuleResult at
// this boundary.
func (o *Orchestrator) fetchModule(ctx context.Context, runID string, src source.Source) (w *moduleWork) {
	w = &moduleWork{result: brief.ModuleResult{Module: src.Name(), Status: brief.StatusOK}}

	defer func() {
		if r := recover(); r != nil {
			w.result.Status = brief.StatusFailed
			w.result.Err = fmt.Sprintf("panic: %v", r)
			w.classified = nil
			o.emit(runID, src.Name(), StateFailed, w.result.Err)
		}
	}()

	o.emit(runID, src.Name(), StateFetching, "")
	items, err := src.Fetch(ctx)
	if err != nil {
		w.result.Status = brief.StatusFailed
		w.result.Err = err.Error()
		o.emit(runID, src.Name(), StateFailed, w.result.Err)
		return w
	}

	o.emit(runID, src.Name(), StateNormalizing, "")
	for _, it := range items {
		fp, err := item.NewFingerprint(it)
		if err != nil {
			// One malformed item never takes out its module.
			log.Printf("skipping item from %s: %v", src.Name(), err)
			w.result.SkippedCount++
			continue
		}
		w.classified = append(w.classified, novelty.Classified{Item: it, Fingerprint: fp})
	}
	if w.result.SkippedCount > 0 {
		w.result.Status = brief.StatusDegraded
	}
	return w
}

// rankModule turns a module's classified items into scored RankedItems and
// fills in the novelty counts. Semantic duplicates are counted but not
// scored or listed.
func (o *Orchestrator) rankModule(w *moduleWork, prof *profile.Profile, now time.Time) {
	for _, cl := range w.classified {
		switch cl.Label {
		case novelty.LabelNew:
			w.result.NewCount++
		case novelty.LabelUpdated, novelty.LabelEntityUpdate:
			w.result.UpdatedCount++
		case novelty.LabelRepeat:
			w.result.RepeatCount++
		case novelty.LabelSemanticDuplicate:
			w.result.DuplicateCount++
			continue
		}

		vec := o.extractor.Extract(cl.Item, prof, now)
		w.result.Items = append(w.result.Items, brief.RankedItem{
			Item:        cl.Item,
			Fingerprint: cl.Fingerprint,
			Label:       cl.Label,
			Features:    vec,
			FinalScore:  o.weights.Score(vec),
		})
	}
}

func (o *Orchestrator) acquire(userID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[userID] {
		return false
	}
	o.active[userID] = true
	return true
}

func (o *Orchestrator) release(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, userID)
}
