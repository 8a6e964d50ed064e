package operator

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
	"github.com/aogaki/delila2-net/internal/ctrlproto"
	"github.com/aogaki/delila2-net/internal/errs"
	"github.com/aogaki/delila2-net/internal/fsm"
)

func (o *Operator) newJob() (string, *job) {
	n := o.jobSeq.Add(1)
	id := fmt.Sprintf("job-%d", n)
	j := &job{status: JobPending}
	o.jobsMu.Lock()
	o.jobs[id] = j
	o.jobsMu.Unlock()
	return id, j
}

// ConfigureAllAsync dispatches fsm.Configured to every member, grouped by
// ascending StartOrder, and returns a job id immediately.
func (o *Operator) ConfigureAllAsync() string {
	return o.dispatch(fsm.Configured, 0, false, o.cfg.ConfigureTimeout, false)
}

// ArmAllAsync dispatches fsm.Armed to every member, ascending StartOrder.
func (o *Operator) ArmAllAsync() string {
	return o.dispatch(fsm.Armed, 0, false, o.cfg.ArmTimeout, false)
}

// StartAllAsync dispatches fsm.Running with runNumber, ascending StartOrder.
func (o *Operator) StartAllAsync(runNumber uint32) string {
	return o.dispatch(fsm.Running, runNumber, false, o.cfg.StartTimeout, false)
}

// StopAllAsync dispatches a Stop (fsm.Configured from Running), descending
// StartOrder so downstream consumers drain before upstream sources stop.
func (o *Operator) StopAllAsync(graceful bool) string {
	return o.dispatch(fsm.Configured, 0, graceful, o.cfg.StopTimeout, true)
}

// ResetAllAsync dispatches fsm.Idle to every member, descending StartOrder.
func (o *Operator) ResetAllAsync() string {
	return o.dispatch(fsm.Idle, 0, false, o.cfg.ResetTimeout, true)
}

func (o *Operator) dispatch(target fsm.State, runNumber uint32, graceful bool, timeout time.Duration, descending bool) string {
	id, j := o.newJob()
	go o.runJob(id, j, target, runNumber, graceful, timeout, descending)
	return id
}

func (o *Operator) runJob(id string, j *job, target fsm.State, runNumber uint32, graceful bool, timeout time.Duration, descending bool) {
	j.set(JobRunning, "")

	groups := config.GroupsByStartOrder(o.cfg.Members)
	if descending {
		for i, k := 0, len(groups)-1; i < k; i, k = i+1, k-1 {
			groups[i], groups[k] = groups[k], groups[i]
		}
	}

	for _, group := range groups {
		if err := o.dispatchGroup(group, target, runNumber, graceful, timeout); err != nil {
			j.set(JobFailed, err.Error())
			return
		}
	}
	j.set(JobCompleted, "")
}

func (o *Operator) dispatchGroup(group []config.FleetMember, target fsm.State, runNumber uint32, graceful bool, timeout time.Duration) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(group))
	for _, m := range group {
		wg.Add(1)
		go func(m config.FleetMember) {
			defer wg.Done()
			errCh <- o.sendWithRetry(m, target, runNumber, graceful, timeout)
		}(m)
	}
	wg.Wait()
	close(errCh)

	var firstErr error
	failed := 0
	for err := range errCh {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d components failed: %w", failed, len(group), firstErr)
	}
	return nil
}

func (o *Operator) sendWithRetry(m config.FleetMember, target fsm.State, runNumber uint32, graceful bool, timeout time.Duration) error {
	var lastErr error
	attempts := o.cfg.CommandRetryCount + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(o.cfg.CommandRetryIntervalMs) * time.Millisecond)
		}
		if err := o.sendOnce(m, target, runNumber, graceful, timeout); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return errs.Wrap(errs.KindTimeoutError, fmt.Errorf("component %s: %w (after %d attempts)", m.ComponentID, lastErr, attempts))
}

func (o *Operator) sendOnce(m config.FleetMember, target fsm.State, runNumber uint32, graceful bool, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", m.ControlAddress, timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.ComponentID, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	cmd := ctrlproto.StateChangeCommand{
		ModuleID:    m.ComponentID,
		TargetState: target,
		CommandID:   newCommandID(m.ComponentID, o.jobSeq.Load()),
		TimestampNs: time.Now().UnixNano(),
		RunNumber:   runNumber,
		Graceful:    graceful,
	}
	if err := ctrlproto.WriteMessage(conn, cmd); err != nil {
		return fmt.Errorf("send to %s: %w", m.ComponentID, err)
	}
	var resp ctrlproto.StateChangeResponse
	if err := ctrlproto.ReadMessage(conn, &resp); err != nil {
		return fmt.Errorf("recv from %s: %w", m.ComponentID, err)
	}
	if !resp.Success {
		return fmt.Errorf("component %s rejected command: %s", m.ComponentID, resp.ErrorMessage)
	}
	return nil
}
