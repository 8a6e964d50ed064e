// Package fsm implements the Component FSM (C8): the nine-state lifecycle
// every Data Component and the Operator itself obey, driven exclusively by
// five template-method hooks and a strict transition predicate.
package fsm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aogaki/delila2-net/internal/errs"
)

// State is one of the nine named lifecycle states.
type State int32

const (
	Idle State = iota
	Configuring
	Configured
	Arming
	Armed
	Starting
	Running
	Stopping
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Configuring:
		return "Configuring"
	case Configured:
		return "Configured"
	case Arming:
		return "Arming"
	case Armed:
		return "Armed"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// validEdges enumerates exactly the accepted (from, to) transition pairs,
// not counting the any-state reset/fault edges handled specially below.
var validEdges = map[State]map[State]bool{
	Idle:        {Configuring: true},
	Configuring: {Configured: true},
	Configured:  {Arming: true},
	Arming:      {Armed: true},
	Armed:       {Starting: true},
	Starting:    {Running: true},
	Running:     {Stopping: true},
	Stopping:    {Configured: true},
}

// CanTransition reports whether (from, to) is an accepted edge: a listed
// forward edge, a reset to Idle, or a fault to Error. Same-state self-loops
// are never accepted, including resets to Idle and faults to Error.
func CanTransition(from, to State) bool {
	if to == from {
		return false
	}
	if to == Idle || to == Error {
		return true
	}
	return validEdges[from][to]
}

// Hooks are the five template-method hooks a concrete component implements.
// The FSM calls the matching hook before committing a transition; on hook
// failure it records the error and moves to Error instead.
type Hooks interface {
	OnConfigure() error
	OnArm() error
	OnStart(runNumber uint32) error
	OnStop(graceful bool) error
	OnReset() error
}

// FSM wraps a State with transition validation, hook dispatch, and the
// component-state bookkeeping that rides alongside it: current run number,
// last error message, heartbeat counter, in-flight job ids.
type FSM struct {
	state      atomic.Int32
	mu         sync.Mutex // serializes transitions; lock order is FSM -> transport, never reverse
	hooks      Hooks
	runNumber  uint32
	lastError  string
	heartbeats uint64
	jobIDs     map[string]struct{}
}

// New creates an FSM in the Idle state bound to hooks.
func New(hooks Hooks) *FSM {
	return &FSM{hooks: hooks, jobIDs: make(map[string]struct{})}
}

// State returns the current state via an atomic load (no lock needed for readers).
func (f *FSM) State() State { return State(f.state.Load()) }

// RunNumber returns the run number of the current/most recent run.
func (f *FSM) RunNumber() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runNumber
}

// LastError returns the error message recorded on the most recent failed
// transition, or "" if none.
func (f *FSM) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}

// IncHeartbeat increments the FSM's heartbeat counter, returning the new value.
func (f *FSM) IncHeartbeat() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return f.heartbeats
}

// transition validates (from,to), runs the hook, and commits to `to` iff the
// hook succeeds; on hook failure it records the error and commits to Error.
func (f *FSM) transition(to State, run func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	from := State(f.state.Load())
	if !CanTransition(from, to) {
		return errs.Wrap(errs.KindConfigurationError, fmt.Errorf("%w: %s -> %s", errs.ErrBadTransition, from, to))
	}
	if err := run(); err != nil {
		f.lastError = err.Error()
		f.state.Store(int32(Error))
		return errs.Wrap(errs.KindConfigurationError, fmt.Errorf("%w: %s -> %s: %v", errs.ErrHookFailed, from, to, err))
	}
	f.lastError = ""
	f.state.Store(int32(to))
	return nil
}

// Configure drives Idle -> Configuring -> Configured.
func (f *FSM) Configure() error {
	if State(f.state.Load()) != Idle {
		return errs.Wrap(errs.KindConfigurationError, fmt.Errorf("%w: Configure requires Idle, got %s", errs.ErrBadTransition, f.State()))
	}
	if err := f.transition(Configuring, func() error { return nil }); err != nil {
		return err
	}
	return f.transition(Configured, f.hooks.OnConfigure)
}

// Arm drives Configured -> Arming -> Armed.
func (f *FSM) Arm() error {
	if State(f.state.Load()) != Configured {
		return errs.Wrap(errs.KindConfigurationError, fmt.Errorf("%w: Arm requires Configured, got %s", errs.ErrBadTransition, f.State()))
	}
	if err := f.transition(Arming, func() error { return nil }); err != nil {
		return err
	}
	return f.transition(Armed, f.hooks.OnArm)
}

// Start drives Armed -> Starting -> Running.
func (f *FSM) Start(runNumber uint32) error {
	if State(f.state.Load()) != Armed {
		return errs.Wrap(errs.KindConfigurationError, fmt.Errorf("%w: Start requires Armed, got %s", errs.ErrBadTransition, f.State()))
	}
	if err := f.transition(Starting, func() error { return nil }); err != nil {
		return err
	}
	err := f.transition(Running, func() error { return f.hooks.OnStart(runNumber) })
	if err == nil {
		f.mu.Lock()
		f.runNumber = runNumber
		f.mu.Unlock()
	}
	return err
}

// Stop drives Running -> Stopping -> Configured.
func (f *FSM) Stop(graceful bool) error {
	if State(f.state.Load()) != Running {
		return errs.Wrap(errs.KindConfigurationError, fmt.Errorf("%w: Stop requires Running, got %s", errs.ErrBadTransition, f.State()))
	}
	if err := f.transition(Stopping, func() error { return nil }); err != nil {
		return err
	}
	return f.transition(Configured, func() error { return f.hooks.OnStop(graceful) })
}

// Reset drives any state back to Idle.
func (f *FSM) Reset() error {
	return f.transition(Idle, f.hooks.OnReset)
}

// Fault forces a transition to Error with the given message, bypassing hooks.
func (f *FSM) Fault(message string) {
	f.mu.Lock()
	f.lastError = message
	f.state.Store(int32(Error))
	f.mu.Unlock()
}

// TrackJob records an in-flight job id issued by an Operator.
func (f *FSM) TrackJob(jobID string) {
	f.mu.Lock()
	f.jobIDs[jobID] = struct{}{}
	f.mu.Unlock()
}

// UntrackJob removes a completed/failed job id.
func (f *FSM) UntrackJob(jobID string) {
	f.mu.Lock()
	delete(f.jobIDs, jobID)
	f.mu.Unlock()
}

// JobIDs returns the in-flight job ids.
func (f *FSM) JobIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.jobIDs))
	for id := range f.jobIDs {
		ids = append(ids, id)
	}
	return ids
}
