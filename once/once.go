// Package once provides a wait-once barrier that can be poisoned.
//
// Unlike sync.Once, a panic inside the initializer leaves the barrier
// Poisoned: later Do calls panic with ErrPoisoned, while DoForce runs a new
// initializer and can complete the barrier.
//
// Callers that arrive while an initializer runs block until it returns, so
// everything the initializer wrote is visible to them. There is no
// cancellation; an initializer must not call Do or DoForce on its own
// barrier.
package once

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoisoned is the panic value of Do on a poisoned barrier.
var ErrPoisoned = errors.New("once: barrier is poisoned")

// State is the running state of a barrier.
type State uint32

const (
	New State = iota
	Poisoned
	InProgress
	Done
)

func (s State) String() string {
	switch s {
	case New:
		return "new"
	case Poisoned:
		return "poisoned"
	case InProgress:
		return "in_progress"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// IsPoisoned reports whether an initializer panicked.
func (s State) IsPoisoned() bool { return s == Poisoned }

// IsDone reports whether an initializer completed.
func (s State) IsDone() bool { return s == Done }

// Once runs one initializer to completion. The zero value is ready to use.
type Once struct {
	state atomic.Uint32
	mu    sync.Mutex
}

// State returns the current state.
func (o *Once) State() State {
	return State(o.state.Load())
}

// Do runs f if no initializer has completed yet. It panics with
// ErrPoisoned if a previous initializer panicked, and re-panics with f's
// panic value after poisoning the barrier.
func (o *Once) Do(f func()) {
	if o.State() == Done {
		return
	}
	o.run(func(State) { f() }, false)
}

// DoForce runs f if no initializer has completed yet, even when the
// barrier is poisoned. f receives New or Poisoned.
func (o *Once) DoForce(f func(State)) {
	if o.State() == Done {
		return
	}
	o.run(f, true)
}

func (o *Once) run(f func(State), force bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev := o.State()
	switch prev {
	case Done:
		return
	case Poisoned:
		if !force {
			panic(ErrPoisoned)
		}
	}

	o.state.Store(uint32(InProgress))
	completed := false
	defer func() {
		if !completed {
			o.state.Store(uint32(Poisoned))
		}
	}()

	f(prev)
	completed = true
	o.state.Store(uint32(Done))
}
