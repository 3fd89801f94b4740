package client

import (
	"context"
	"sync"
)

// State is what a toggle button renders: whether the relationship is
// active for the viewer and the displayed counter.
type State struct {
	Active bool
	Count  int
}

// Mutation performs the server-side toggle and returns the state the
// server settled on.
type Mutation func(ctx context.Context) (bool, error)

// Toggle holds the local state of one relationship (a like on a post, a
// follow of a user) and applies flips optimistically.
//
// Flips are serialized: a second Flip waits for the first to reconcile, so
// every optimistic guess starts from a state the server confirmed.
type Toggle struct {
	flipMu sync.Mutex

	mu    sync.RWMutex
	state State

	onChange   func(State)
	invalidate func()
}

// ToggleOption configures a Toggle.
type ToggleOption func(*Toggle)

// OnChange registers fn to run after every state change: the optimistic
// flip, the reconciliation and a rollback.
func OnChange(fn func(State)) ToggleOption {
	return func(t *Toggle) { t.onChange = fn }
}

// Invalidate registers fn to run after a successful flip so cached lists
// that include this relationship can refetch.
func Invalidate(fn func()) ToggleOption {
	return func(t *Toggle) { t.invalidate = fn }
}

// NewToggle starts from a state read from the server.
func NewToggle(initial State, opts ...ToggleOption) *Toggle {
	t := &Toggle{state: initial}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current state, optimistic while a flip is in flight.
func (t *Toggle) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Reset replaces the state with a fresh server read. It waits for an
// in-flight flip.
func (t *Toggle) Reset(s State) {
	t.flipMu.Lock()
	defer t.flipMu.Unlock()
	t.set(s)
}

// Flip inverts the state immediately, runs mutate, and then reconciles to
// the server's answer. The server wins: when it disagrees with the guess
// the counter is moved back by the guessed delta. On error the previous
// state is restored and the error returned.
func (t *Toggle) Flip(ctx context.Context, mutate Mutation) (State, error) {
	t.flipMu.Lock()
	defer t.flipMu.Unlock()

	if err := ctx.Err(); err != nil {
		return t.State(), err
	}

	prev := t.State()
	guess := t.set(State{Active: !prev.Active, Count: prev.Count + delta(!prev.Active)})

	active, err := mutate(ctx)
	if err != nil {
		t.set(prev)
		return prev, err
	}

	final := guess
	if active != guess.Active {
		// server kept the old state, someone else flipped it meanwhile
		final = State{Active: active, Count: guess.Count - delta(guess.Active)}
	}
	final = t.set(final)

	if t.invalidate != nil {
		t.invalidate()
	}
	return final, nil
}

func (t *Toggle) set(s State) State {
	if s.Count < 0 {
		s.Count = 0
	}
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(s)
	}
	return s
}

func delta(active bool) int {
	if active {
		return 1
	}
	return -1
}
