package operator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
	"github.com/aogaki/delila2-net/internal/ctrlproto"
	"github.com/aogaki/delila2-net/internal/logging"
	"github.com/aogaki/delila2-net/internal/transport"
)

// statusSub is the Operator's standing subscriber connection to one fleet
// member's status channel: a component_status()/is_all_in_state() query
// reads the cached last report rather than a fresh round trip, since the
// member publishes on its own StatusIntervalMs cadence regardless of
// whether anyone is asking.
type statusSub struct {
	componentID string
	t           *transport.Transport
}

const statusPollTick = 20 * time.Millisecond

// subscribeAll opens one SUB-mode Transport per fleet member's status
// address and launches a reader goroutine caching the latest StatusReport
// per member, keyed by ComponentID.
func (o *Operator) subscribeAll(ctx context.Context) error {
	o.bgCtx, o.bgCancel = context.WithCancel(ctx)
	for _, m := range o.cfg.Members {
		if m.StatusAddress == "" {
			continue
		}
		t, err := transport.New("operator/status/"+m.ComponentID, config.ChannelConfig{
			Address: m.StatusAddress,
			Bind:    false,
			Pattern: config.PatternSub,
		}, transport.Options{})
		if err != nil {
			return err
		}
		if err := t.Connect(o.bgCtx); err != nil {
			logging.L().Warn("status_subscribe_failed", "component", m.ComponentID, "error", err)
			continue
		}
		sub := &statusSub{componentID: m.ComponentID, t: t}
		o.subs = append(o.subs, sub)
		o.bgWG.Add(1)
		go o.readStatusLoop(sub)
	}
	return nil
}

func (o *Operator) readStatusLoop(sub *statusSub) {
	defer o.bgWG.Done()
	for {
		select {
		case <-o.bgCtx.Done():
			return
		default:
		}
		data, _, ok := sub.t.Receive()
		if !ok {
			time.Sleep(statusPollTick)
			continue
		}
		var report ctrlproto.StatusReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		o.statusMu.Lock()
		o.status[sub.componentID] = ComponentStatus{
			ComponentID: sub.componentID,
			Reachable:   true,
			State:       report.State,
			LastSeen:    time.Now(),
			Report:      report,
		}
		o.statusMu.Unlock()
	}
}

// unsubscribeAll tears down every status subscriber. Called from OnReset.
func (o *Operator) unsubscribeAll() {
	if o.bgCancel != nil {
		o.bgCancel()
	}
	o.bgWG.Wait()
	for _, sub := range o.subs {
		sub.t.Disconnect()
	}
	o.subs = nil
}
