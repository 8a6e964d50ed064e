package component

import (
	"context"

	"github.com/aogaki/delila2-net/internal/metrics"
)

// OnConfigure connects every transport (data in/out, status) and delegates
// to the concrete component's own setup. The command channel is listened
// on independently of FSM state, so it is not touched here.
func (b *Base) OnConfigure() error {
	ctx := b.bgCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, in := range b.inputs {
		if err := in.t.Connect(ctx); err != nil {
			b.disconnectAll()
			return err
		}
	}
	for _, out := range b.outputs {
		if err := out.t.Connect(ctx); err != nil {
			b.disconnectAll()
			return err
		}
	}
	if b.ops.OnConfigure != nil {
		if err := b.ops.OnConfigure(); err != nil {
			b.disconnectAll()
			return err
		}
	}
	metrics.SetComponentState(b.cfg.ComponentID, int32(b.FSM.State()))
	return nil
}

func (b *Base) disconnectAll() {
	for _, in := range b.inputs {
		in.t.Disconnect()
	}
	for _, out := range b.outputs {
		out.t.Disconnect()
	}
}

// OnArm delegates entirely to the concrete component; the base has no
// arm-specific network setup of its own.
func (b *Base) OnArm() error {
	if b.ops.OnArm != nil {
		return b.ops.OnArm()
	}
	return nil
}

// OnStart resets per-run state (sequence trackers, EOS tracker, heartbeat
// monitor), runs the concrete component's own start hook, and launches the
// sender/receiver run loops.
func (b *Base) OnStart(runNumber uint32) error {
	b.proc.Reset()
	b.hbMon.Clear()
	b.eosTrk.Reset()
	for _, in := range b.inputs {
		b.eosTrk.Register(in.sourceID)
	}

	if b.ops.OnStart != nil {
		if err := b.ops.OnStart(runNumber); err != nil {
			return err
		}
	}

	parent := b.bgCtx
	if parent == nil {
		parent = context.Background()
	}
	b.runCtx, b.runCancel = context.WithCancel(parent)
	if len(b.outputs) > 0 && b.src != nil {
		b.runWG.Add(1)
		go b.senderLoop()
	}
	if len(b.inputs) > 0 {
		b.runWG.Add(1)
		go b.receiverLoop()
	}
	return nil
}

// OnStop cancels the run loops (waiting for them to exit), optionally
// letting the concrete component flush/finalize, and clears run-scoped
// state. graceful distinguishes an EOS-driven end-of-run from an operator
// abort; both stop the loops the same way, and the flag is only passed on
// to the concrete OnStop hook.
func (b *Base) OnStop(graceful bool) error {
	if b.runCancel != nil {
		b.runCancel()
	}
	b.runWG.Wait()

	if b.ops.OnStop != nil {
		return b.ops.OnStop(graceful)
	}
	return nil
}

// OnReset disconnects every transport and clears all accumulated state,
// returning the component to the condition New left it in.
func (b *Base) OnReset() error {
	b.disconnectAll()
	b.proc.Reset()
	b.hbMon.Clear()
	b.eosTrk.Reset()
	for _, in := range b.inputs {
		b.eosTrk.Register(in.sourceID)
	}
	if b.ops.OnReset != nil {
		if err := b.ops.OnReset(); err != nil {
			return err
		}
	}
	metrics.SetComponentState(b.cfg.ComponentID, int32(b.FSM.State()))
	return nil
}
