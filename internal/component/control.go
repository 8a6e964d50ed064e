package component

import (
	"fmt"
	"net"
	"time"

	"github.com/aogaki/delila2-net/internal/ctrlproto"
	"github.com/aogaki/delila2-net/internal/errs"
	"github.com/aogaki/delila2-net/internal/fsm"
	"github.com/aogaki/delila2-net/internal/logging"
)

// startControlListener binds the command channel and spawns the accept
// loop. The control channel is always listening, independent of FSM state
// (the Operator must be able to reach an Idle component), so this runs
// from Run rather than from any FSM hook.
func (b *Base) startControlListener() error {
	addr := addrWithoutScheme(b.cfg.Transport.Command.Address)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errs.Wrap(errs.KindSystemError, fmt.Errorf("component %s: control listen %s: %w", b.cfg.ComponentID, addr, err))
	}
	b.ctrlListener = ln
	b.ctrlWG.Add(1)
	go b.controlAcceptLoop(ln)
	return nil
}

func addrWithoutScheme(addr string) string {
	for _, prefix := range []string{"tcp://", "inproc://"} {
		if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
			return addr[len(prefix):]
		}
	}
	return addr
}

func (b *Base) controlAcceptLoop(ln net.Listener) {
	defer b.ctrlWG.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-b.bgCtx.Done():
				return
			default:
			}
			logging.L().Warn("control_accept_error", "component", b.cfg.ComponentID, "error", err)
			return
		}
		b.ctrlWG.Add(1)
		go b.serveControlConn(conn)
	}
}

func (b *Base) serveControlConn(conn net.Conn) {
	defer b.ctrlWG.Done()
	defer conn.Close()
	for {
		var cmd ctrlproto.StateChangeCommand
		if err := ctrlproto.ReadMessage(conn, &cmd); err != nil {
			return
		}
		resp := b.handleStateChange(cmd)
		if err := ctrlproto.WriteMessage(conn, resp); err != nil {
			return
		}
	}
}

func (b *Base) handleStateChange(cmd ctrlproto.StateChangeCommand) ctrlproto.StateChangeResponse {
	err := b.Drive(cmd.TargetState, cmd.RunNumber, cmd.Graceful)
	resp := ctrlproto.StateChangeResponse{
		ModuleID:     b.cfg.ComponentID,
		CommandID:    cmd.CommandID,
		Success:      err == nil,
		CurrentState: b.FSM.State(),
	}
	if err != nil {
		resp.ErrorMessage = err.Error()
	}
	return resp
}

// Drive maps a requested target state onto the matching FSM transition,
// picking the verb (Configure vs. Stop both target fsm.Configured) from
// the component's current state. This is the server-side half of the
// StateChangeCommand contract; the Operator's client-side half lives in
// internal/operator.
func (b *Base) Drive(target fsm.State, runNumber uint32, graceful bool) error {
	switch target {
	case fsm.Idle:
		return b.FSM.Reset()
	case fsm.Error:
		b.FSM.Fault("requested by operator")
		return nil
	case fsm.Configured:
		if b.FSM.State() == fsm.Running {
			return b.FSM.Stop(graceful)
		}
		return b.FSM.Configure()
	case fsm.Armed:
		return b.FSM.Arm()
	case fsm.Running:
		return b.FSM.Start(runNumber)
	default:
		return errs.Wrap(errs.KindConfigurationError, fmt.Errorf("unsupported target state %s", target))
	}
}

// awaitState polls until the FSM reaches want or the deadline passes,
// used by tests and by a concrete component's own synchronous setup code.
func (b *Base) awaitState(want fsm.State, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.FSM.State() == want {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return b.FSM.State() == want
}
