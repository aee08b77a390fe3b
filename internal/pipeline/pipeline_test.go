package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/air23zj/pal-sub001/internal/brief"
	"github.com/air23zj/pal-sub001/internal/feature"
	"github.com/air23zj/pal-sub001/internal/item"
	"github.com/air23zj/pal-sub001/internal/novelty"
	"github.com/air23zj/pal-sub001/internal/profile"
	"github.com/air23zj/pal-sub001/internal/rank"
	"github.com/air23zj/pal-sub001/internal/source"
	"github.com/air23zj/pal-sub001/internal/store"
)

// fakeSource is a scriptable source module.
type fakeSource struct {
	name   string
	items  []item.NormalizedItem
	err    error
	panics bool
	block  chan struct{} // when set, Fetch waits until closed
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) ([]item.NormalizedItem, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panics {
		panic("connector bug")
	}
	return f.items, f.err
}

func msg(module, id, title string) item.NormalizedItem {
	return item.NormalizedItem{
		Module: module, SourceID: id, Type: item.TypeMessage,
		Title: title, Body: "body of " + title,
		Timestamp: time.Date(2026, 8, 10, 8, 0, 0, 0, time.UTC),
	}
}

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	o := New(
		novelty.NewClassifier(db),
		feature.NewExtractor(),
		rank.DefaultWeights(),
		rank.NewSelector(rank.Caps{}),
		opts...,
	)
	return o, db
}

func TestModuleFailureIsolation(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	sources := []source.Source{
		&fakeSource{name: "gmail", items: []item.NormalizedItem{msg("gmail", "1", "Budget")}},
		&fakeSource{name: "calendar", err: errors.New("oauth token expired")},
		&fakeSource{name: "tasks", items: []item.NormalizedItem{msg("tasks", "9", "Ship release")}},
	}

	b, err := o.Run(context.Background(), "u1", profile.New("u1"), sources)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(b.Modules) != 3 {
		t.Fatalf("got %d module results, want 3", len(b.Modules))
	}
	failed := 0
	for _, m := range b.Modules {
		if m.Status == brief.StatusFailed {
			failed++
			if m.Err == "" {
				t.Error("failed module has empty error")
			}
		}
	}
	if failed != 1 {
		t.Errorf("failed modules = %d, want exactly 1", failed)
	}
	if b.ItemCount() != 2 {
		t.Errorf("bundle has %d items, want 2 from the surviving modules", b.ItemCount())
	}
}

func TestPanickingSourceFailsOnlyItsModule(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	sources := []source.Source{
		&fakeSource{name: "broken", panics: true},
		&fakeSource{name: "gmail", items: []item.NormalizedItem{msg("gmail", "1", "Hello")}},
	}

	b, err := o.Run(context.Background(), "u1", profile.New("u1"), sources)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if b.Modules[0].Status != brief.StatusFailed {
		t.Errorf("panicking module status = %s, want failed", b.Modules[0].Status)
	}
	if b.Modules[1].Status != brief.StatusOK {
		t.Errorf("healthy module status = %s, want ok", b.Modules[1].Status)
	}
}

func TestEmptyFetchIsOK(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	b, err := o.Run(context.Background(), "u1", profile.New("u1"),
		[]source.Source{&fakeSource{name: "gmail"}})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if b.Modules[0].Status != brief.StatusOK {
		t.Errorf("empty module status = %s, want ok", b.Modules[0].Status)
	}
	if len(b.Modules[0].Items) != 0 {
		t.Errorf("empty module has %d items", len(b.Modules[0].Items))
	}
}

func TestMalformedItemSkippedNotFatal(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	items := []item.NormalizedItem{
		msg("gmail", "1", "Good"),
		{Module: "gmail", Type: item.TypeMessage, Title: "No source id"},
		msg("gmail", "2", "Also good"),
	}
	b, err := o.Run(context.Background(), "u1", profile.New("u1"),
		[]source.Source{&fakeSource{name: "gmail", items: items}})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	m := b.Modules[0]
	if m.Status != brief.StatusDegraded {
		t.Errorf("status = %s, want degraded after a skipped item", m.Status)
	}
	if m.SkippedCount != 1 {
		t.Errorf("skipped = %d, want 1", m.SkippedCount)
	}
	if len(m.Items) != 2 {
		t.Errorf("items = %d, want 2", len(m.Items))
	}
}

func TestRepeatLabelsOnSecondRun(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	src := &fakeSource{name: "gmail", items: []item.NormalizedItem{msg("gmail", "1", "Budget")}}

	b1, err := o.Run(context.Background(), "u1", profile.New("u1"), []source.Source{src})
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if b1.Modules[0].NewCount != 1 {
		t.Fatalf("first run new count = %d, want 1", b1.Modules[0].NewCount)
	}
	if len(b1.TopHighlights) != 1 {
		t.Fatalf("first run highlights = %d, want 1", len(b1.TopHighlights))
	}

	b2, err := o.Run(context.Background(), "u1", profile.New("u1"), []source.Source{src})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if b2.Modules[0].RepeatCount != 1 {
		t.Errorf("second run repeat count = %d, want 1", b2.Modules[0].RepeatCount)
	}
	if len(b2.TopHighlights) != 0 {
		t.Errorf("second run elected %d highlights from repeats", len(b2.TopHighlights))
	}
}

func TestConcurrentRunRejected(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	gate := make(chan struct{})
	slow := &fakeSource{name: "gmail", block: gate}

	var wg sync.WaitGroup
	wg.Add(1)
	started := make(chan struct{})
	go func() {
		defer wg.Done()
		close(started)
		o.Run(context.Background(), "u1", profile.New("u1"), []source.Source{slow})
	}()
	<-started
	// Wait until the first run holds the user lock.
	for !o.activeFor("u1") {
		time.Sleep(time.Millisecond)
	}

	_, err := o.Run(context.Background(), "u1", profile.New("u1"), nil)
	if !errors.Is(err, ErrConcurrentRun) {
		t.Errorf("second run error = %v, want ErrConcurrentRun", err)
	}

	// A different user is unaffected.
	if _, err := o.Run(context.Background(), "u2", profile.New("u2"), nil); err != nil {
		t.Errorf("other user's run failed: %v", err)
	}

	close(gate)
	wg.Wait()

	// After the first run finishes, the user can run again.
	if _, err := o.Run(context.Background(), "u1", profile.New("u1"), nil); err != nil {
		t.Errorf("run after release failed: %v", err)
	}
}

func TestCancelledRunReturnsNoBundle(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b, err := o.Run(ctx, "u1", profile.New("u1"),
		[]source.Source{&fakeSource{name: "gmail", items: []item.NormalizedItem{msg("gmail", "1", "X")}}})
	if !errors.Is(err, ErrRunCancelled) {
		t.Errorf("error = %v, want ErrRunCancelled", err)
	}
	if b != nil {
		t.Error("cancelled run returned a bundle")
	}
}

func TestProgressEventsEmitted(t *testing.T) {
	var mu sync.Mutex
	var states []State
	listener := func(ev ProgressEvent) {
		mu.Lock()
		states = append(states, ev.State)
		mu.Unlock()
	}

	o, _ := newTestOrchestrator(t, WithProgress(listener))
	_, err := o.Run(context.Background(), "u1", profile.New("u1"),
		[]source.Source{&fakeSource{name: "gmail", items: []item.NormalizedItem{msg("gmail", "1", "X")}}})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []State{StatePending, StateFetching, StateNormalizing, StateClassified, StateRanked, StateDone}
	mu.Lock()
	defer mu.Unlock()
	if len(states) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(states), states, len(want))
	}
	for i, st := range want {
		if states[i] != st {
			t.Errorf("event %d = %s, want %s", i, states[i], st)
		}
	}
}

func TestPanickingListenerDoesNotFailRun(t *testing.T) {
	listener := func(ProgressEvent) { panic("listener disconnected") }
	o, _ := newTestOrchestrator(t, WithProgress(listener))

	b, err := o.Run(context.Background(), "u1", profile.New("u1"),
		[]source.Source{&fakeSource{name: "gmail", items: []item.NormalizedItem{msg("gmail", "1", "X")}}})
	if err != nil {
		t.Fatalf("run failed because of listener: %v", err)
	}
	if b == nil {
		t.Fatal("no bundle returned")
	}
}

// activeFor reports whether a user currently holds the run lock. Test hook.
func (o *Orchestrator) activeFor(userID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[userID]
}
