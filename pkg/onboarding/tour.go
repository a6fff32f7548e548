// Package onboarding models the guided-tour lifecycle as a small state
// machine driven by an external event stream. Reaching a terminal state
// persists a completed flag so the tour does not reappear next session.
package onboarding

import (
	"fmt"
	"sync"

	"github.com/datatram-io/datatram-go/pkg/state"
)

// Status is the tour's lifecycle state.
//
//	not_started → running → { completed | skipped }
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusSkipped    Status = "skipped"
)

// Event is something the tour front end reports back.
type Event string

const (
	EventFinished       Event = "finished"
	EventSkipped        Event = "skipped"
	EventStepChanged    Event = "step_changed"
	EventTargetNotFound Event = "target_not_found"
)

// Tour tracks onboarding progress for one user session.
type Tour struct {
	mu     sync.Mutex
	status Status
	store  state.Store
}

// New returns a tour backed by store. Previously completed or skipped tours
// come back in StatusCompleted.
func New(store state.Store) (*Tour, error) {
	st, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load onboarding state: %w", err)
	}

	status := StatusNotStarted
	if st.OnboardingCompleted {
		status = StatusCompleted
	}
	return &Tour{status: status, store: store}, nil
}

// Status returns the current lifecycle state.
func (t *Tour) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Start begins the tour. Starting an already running or finished tour is a
// no-op.
func (t *Tour) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusNotStarted {
		t.status = StatusRunning
	}
}

// MaybeAutoStart starts the tour only for users who have never finished it.
// Returns whether the tour is now running.
func (t *Tour) MaybeAutoStart() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusNotStarted {
		t.status = StatusRunning
	}
	return t.status == StatusRunning
}

// Stop pauses a running tour without marking it finished; it can be started
// again in the same session.
func (t *Tour) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusRunning {
		t.status = StatusNotStarted
	}
}

// HandleEvent feeds one front-end callback into the state machine.
// Step-changed and target-not-found events keep the tour running; finished
// and skipped are terminal and persist the completed flag.
func (t *Tour) HandleEvent(event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusRunning {
		return nil
	}

	switch event {
	case EventFinished:
		t.status = StatusCompleted
	case EventSkipped:
		t.status = StatusSkipped
	case EventStepChanged, EventTargetNotFound:
		return nil
	default:
		return fmt.Errorf("unknown tour event %q", event)
	}

	return t.persistCompleted(true)
}

// Reset clears the persisted flag and restarts the tour, for users who want
// to see it again.
func (t *Tour) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.persistCompleted(false); err != nil {
		return err
	}
	t.status = StatusRunning
	return nil
}

// persistCompleted records the terminal flag; the rest of the user state is
// preserved. Caller holds the lock.
func (t *Tour) persistCompleted(completed bool) error {
	st, err := t.store.Load()
	if err != nil {
		return fmt.Errorf("load onboarding state: %w", err)
	}
	st.OnboardingCompleted = completed
	if err := t.store.Save(st); err != nil {
		return fmt.Errorf("persist onboarding state: %w", err)
	}
	return nil
}
