package fsm

import (
	"errors"
	"testing"
)

type stubHooks struct {
	failOn   State
	configs  int
	starts   []uint32
	stops    []bool
	resets   int
}

func (h *stubHooks) fail(s State) error {
	if h.failOn == s {
		return errFail
	}
	return nil
}

var errFail = errors.New("hook failed deliberately")

func (h *stubHooks) OnConfigure() error { h.configs++; return h.fail(Configured) }
func (h *stubHooks) OnArm() error       { return h.fail(Armed) }
func (h *stubHooks) OnStart(run uint32) error {
	h.starts = append(h.starts, run)
	return h.fail(Running)
}
func (h *stubHooks) OnStop(graceful bool) error {
	h.stops = append(h.stops, graceful)
	return h.fail(Configured)
}
func (h *stubHooks) OnReset() error { h.resets++; return h.fail(Idle) }

// S6: FSM happy path across two runs.
func TestFSM_HappyPath(t *testing.T) {
	h := &stubHooks{}
	f := New(h)

	if err := f.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if f.State() != Configured {
		t.Fatalf("state = %v, want Configured", f.State())
	}
	if err := f.Arm(); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if f.State() != Armed {
		t.Fatalf("state = %v, want Armed", f.State())
	}
	if err := f.Start(7); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if f.State() != Running || f.RunNumber() != 7 {
		t.Fatalf("state=%v run=%d, want Running/7", f.State(), f.RunNumber())
	}
	if err := f.Stop(true); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.State() != Configured {
		t.Fatalf("state = %v, want Configured", f.State())
	}
	if err := f.Arm(); err != nil {
		t.Fatalf("re-Arm: %v", err)
	}
	if err := f.Start(8); err != nil {
		t.Fatalf("re-Start: %v", err)
	}
	if f.RunNumber() != 8 {
		t.Fatalf("run = %d, want 8", f.RunNumber())
	}
}

// S7: FSM rejects invalid transitions, state unchanged.
func TestFSM_RejectsInvalidTransitions(t *testing.T) {
	f := New(&stubHooks{})

	if err := f.Arm(); err == nil {
		t.Fatal("Arm from Idle should fail")
	}
	if f.State() != Idle {
		t.Fatalf("state = %v, want Idle unchanged", f.State())
	}

	if err := f.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := f.Start(1); err == nil {
		t.Fatal("Start from Configured should fail")
	}
	if f.State() != Configured {
		t.Fatalf("state = %v, want Configured unchanged", f.State())
	}
}

// Invariant 6: accepted (from,to) pairs equal exactly the listed edges.
func TestCanTransition_ExactEdgeSet(t *testing.T) {
	states := []State{Idle, Configuring, Configured, Arming, Armed, Starting, Running, Stopping, Error}
	forward := map[State]State{
		Idle: Configuring, Configuring: Configured, Configured: Arming,
		Arming: Armed, Armed: Starting, Starting: Running, Running: Stopping, Stopping: Configured,
	}
	for _, from := range states {
		for _, to := range states {
			want := to != from && (to == Idle || to == Error || forward[from] == to)
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%v, %v) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestFSM_HookFailureTransitionsToError(t *testing.T) {
	h := &stubHooks{failOn: Configured}
	f := New(h)
	if err := f.Configure(); err == nil {
		t.Fatal("expected Configure to fail")
	}
	if f.State() != Error {
		t.Fatalf("state = %v, want Error", f.State())
	}
	if f.LastError() == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestFSM_ResetReturnsToIdleFromAnyState(t *testing.T) {
	// failOn's zero value is Idle, which would fail OnReset; Error has no hook.
	f := New(&stubHooks{failOn: Error})
	f.Configure()
	f.Arm()
	if err := f.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if f.State() != Idle {
		t.Fatalf("state = %v, want Idle", f.State())
	}
}

