package pipeline

import "log"

// State is a module's position in the run state machine. Modules move
// PENDING → FETCHING → NORMALIZING → CLASSIFIED → RANKED → DONE, or to
// FAILED from any state.
type State string

const (
	StatePending     State = "pending"
	StateFetching    State = "fetching"
	StateNormalizing State = "normalizing"
	StateClassified  State = "classified"
	StateRanked      State = "ranked"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// ProgressEvent is emitted after every module state transition.
type ProgressEvent struct {
	RunID  string
	Module string
	State  State
	Err    string
}

// ProgressFunc receives progress events. It runs on the orchestrator's
// goroutines and should return quickly.
type ProgressFunc func(ProgressEvent)

// emit delivers a progress event to the listener. A broken listener must
// never take the run down with it.
func (o *Orchestrator) emit(runID, module string, state State, errText string) {
	if o.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("progress listener panicked on %s/%s: %v", module, state, r)
		}
	}()
	o.progress(ProgressEvent{RunID: runID, Module: module, State: state, Err: errText})
}
