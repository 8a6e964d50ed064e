package operator

import (
	"fmt"

	"github.com/aogaki/delila2-net/internal/fsm"
)

// ComponentStatus returns the last-known status of one fleet member.
func (o *Operator) ComponentStatus(id string) (ComponentStatus, error) {
	if _, ok := o.member(id); !ok {
		return ComponentStatus{}, fmt.Errorf("operator: unknown component %q", id)
	}
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	st, ok := o.status[id]
	if !ok {
		return ComponentStatus{ComponentID: id, Reachable: false}, nil
	}
	return st, nil
}

// AllComponentStatus returns the last-known status of every fleet member,
// in roster order.
func (o *Operator) AllComponentStatus() []ComponentStatus {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	out := make([]ComponentStatus, 0, len(o.cfg.Members))
	for _, m := range o.cfg.Members {
		if st, ok := o.status[m.ComponentID]; ok {
			out = append(out, st)
		} else {
			out = append(out, ComponentStatus{ComponentID: m.ComponentID, Reachable: false})
		}
	}
	return out
}

// IsAllInState reports whether every reachable fleet member currently
// reports the given FSM state. A member the Operator has never heard from
// counts as not-in-state.
func (o *Operator) IsAllInState(state fsm.State) bool {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	if len(o.cfg.Members) == 0 {
		return false
	}
	for _, m := range o.cfg.Members {
		st, ok := o.status[m.ComponentID]
		if !ok || !st.Reachable || st.State != state {
			return false
		}
	}
	return true
}

// JobStatus returns the current status of a previously dispatched async
// job, or ok=false if jobID is unknown.
func (o *Operator) JobStatus(jobID string) (JobRecord, bool) {
	o.jobsMu.Lock()
	j, ok := o.jobs[jobID]
	o.jobsMu.Unlock()
	if !ok {
		return JobRecord{}, false
	}
	status, errMsg := j.snapshot()
	return JobRecord{ID: jobID, Status: status, ErrorMessage: errMsg}, true
}
