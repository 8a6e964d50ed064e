// Package operator implements the fleet coordinator (C10): the Operator
// issues async fleet-wide lifecycle commands (configure/arm/start/stop/reset
// all), dispatched to each Data Component's control channel grouped and
// ordered by FleetMember.StartOrder, and answers job-status/component-status
// queries. The Operator carries its own fsm.FSM alongside the fleet logic:
// an Operator has its own lifecycle (Configured once its roster is
// validated and its status subscribers are up), separate from any
// individual member's; the fleet-wide commands do not change the
// Operator's own FSM state. Fleet commands dispatch one goroutine per
// member per command.
package operator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
	"github.com/aogaki/delila2-net/internal/ctrlproto"
	"github.com/aogaki/delila2-net/internal/errs"
	"github.com/aogaki/delila2-net/internal/fsm"
)

// JobStatus is the lifecycle of one async fleet command: Pending, Running,
// Completed, or Failed.
type JobStatus int

const (
	JobPending JobStatus = iota
	JobRunning
	JobCompleted
	JobFailed
)

func (s JobStatus) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// JobRecord is a snapshot of one job's status, returned by JobStatus.
type JobRecord struct {
	ID           string
	Status       JobStatus
	ErrorMessage string
}

type job struct {
	mu     sync.Mutex
	status JobStatus
	errMsg string
}

func (j *job) set(status JobStatus, errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.errMsg = errMsg
}

func (j *job) snapshot() (JobStatus, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, j.errMsg
}

// ComponentStatus is a point-in-time view of one fleet member, sourced from
// its periodically published StatusReport. Reachable is false until the
// Operator has received a report from this member and true from then on;
// the age of the last report is not checked (see LastSeen).
type ComponentStatus struct {
	ComponentID string
	Reachable   bool
	State       fsm.State
	LastSeen    time.Time
	Report      ctrlproto.StatusReport
}

// Operator coordinates a fleet of Data Components.
type Operator struct {
	cfg config.OperatorConfig
	FSM *fsm.FSM

	jobSeq atomic.Uint64
	jobsMu sync.Mutex
	jobs   map[string]*job

	statusMu sync.Mutex
	status   map[string]ComponentStatus

	subs     []*statusSub
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New validates cfg and returns an Operator. The FSM starts Idle; call
// FSM.Configure() to validate the roster and subscribe to every member's
// status channel, mirroring a Data Component's own lifecycle.
func New(cfg config.OperatorConfig) (*Operator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindConfigurationError, err)
	}
	o := &Operator{
		cfg:    cfg,
		jobs:   make(map[string]*job),
		status: make(map[string]ComponentStatus, len(cfg.Members)),
	}
	o.FSM = fsm.New(o)
	return o, nil
}

// GetComponentID identifies the Operator itself on its own control/status
// channels.
func (o *Operator) GetComponentID() string { return "operator" }

// GetState returns the Operator's own FSM state.
func (o *Operator) GetState() fsm.State { return o.FSM.State() }

// ComponentIDs returns every configured fleet member's id.
func (o *Operator) ComponentIDs() []string {
	ids := make([]string, 0, len(o.cfg.Members))
	for _, m := range o.cfg.Members {
		ids = append(ids, m.ComponentID)
	}
	return ids
}

func (o *Operator) member(id string) (config.FleetMember, bool) {
	for _, m := range o.cfg.Members {
		if m.ComponentID == id {
			return m, true
		}
	}
	return config.FleetMember{}, false
}

func newCommandID(componentID string, n uint64) string {
	return fmt.Sprintf("%s-%d", componentID, n)
}
