package operator

import "context"

// OnConfigure validates the roster (already done in New) and opens a status
// subscriber to every fleet member, mirroring a Data Component's own
// OnConfigure connecting its transports.
func (o *Operator) OnConfigure() error {
	return o.subscribeAll(context.Background())
}

// OnArm has nothing of its own to do; a fleet-wide arm is driven explicitly
// via ArmAllAsync, not implied by the Operator's own FSM transition.
func (o *Operator) OnArm() error { return nil }

// OnStart has nothing of its own to do, for the same reason as OnArm.
func (o *Operator) OnStart(runNumber uint32) error { return nil }

// OnStop has nothing of its own to do.
func (o *Operator) OnStop(graceful bool) error { return nil }

// OnReset tears down the status subscribers built by OnConfigure.
func (o *Operator) OnReset() error {
	o.unsubscribeAll()
	return nil
}
