package operator

import (
	"net"
	"testing"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
	"github.com/aogaki/delila2-net/internal/ctrlproto"
	"github.com/aogaki/delila2-net/internal/fsm"
)

func waitFor(t *testing.T, desc string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

// fakeComponent accepts exactly one StateChangeCommand per connection and
// always replies success, echoing the requested target state.
func fakeComponent(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				var cmd ctrlproto.StateChangeCommand
				if err := ctrlproto.ReadMessage(c, &cmd); err != nil {
					return
				}
				resp := ctrlproto.StateChangeResponse{
					ModuleID:     cmd.ModuleID,
					CommandID:    cmd.CommandID,
					Success:      true,
					CurrentState: cmd.TargetState,
				}
				_ = ctrlproto.WriteMessage(c, resp)
			}(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func testOperator(t *testing.T, n int) (*Operator, []string) {
	t.Helper()
	addrs := make([]string, n)
	members := make([]config.FleetMember, n)
	for i := 0; i < n; i++ {
		addrs[i] = fakeComponent(t)
		members[i] = config.FleetMember{
			ComponentID:    addrs[i],
			ControlAddress: addrs[i],
			StartOrder:     i,
		}
	}
	o, err := New(config.OperatorConfig{Members: members})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, addrs
}

func TestConfigureAllAsyncCompletes(t *testing.T) {
	o, _ := testOperator(t, 3)
	jobID := o.ConfigureAllAsync()
	if jobID == "" {
		t.Fatal("expected non-empty job id")
	}
	waitFor(t, "job completion", func() bool {
		rec, ok := o.JobStatus(jobID)
		return ok && rec.Status == JobCompleted
	})
}

func TestSendOnceFailsOnUnreachableComponent(t *testing.T) {
	o, err := New(config.OperatorConfig{Members: []config.FleetMember{
		{ComponentID: "ghost", ControlAddress: "127.0.0.1:1"},
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	o.cfg.CommandRetryCount = 0
	jobID := o.ConfigureAllAsync()
	waitFor(t, "job failure", func() bool {
		rec, ok := o.JobStatus(jobID)
		return ok && rec.Status == JobFailed
	})
}

func TestJobStatusUnknownID(t *testing.T) {
	o, _ := testOperator(t, 1)
	if _, ok := o.JobStatus("no-such-job"); ok {
		t.Fatal("expected ok=false for unknown job id")
	}
}

func TestComponentStatusUnknownComponent(t *testing.T) {
	o, _ := testOperator(t, 1)
	if _, err := o.ComponentStatus("no-such-component"); err == nil {
		t.Fatal("expected error for unknown component id")
	}
}

func TestIsAllInStateFalseBeforeAnyReport(t *testing.T) {
	o, _ := testOperator(t, 2)
	if o.IsAllInState(fsm.Idle) {
		t.Fatal("expected false: no status reports received yet")
	}
}

func TestStopAllAsyncCompletesAcrossStartOrderGroups(t *testing.T) {
	o, _ := testOperator(t, 3)
	groups := config.GroupsByStartOrder(o.cfg.Members)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	jobID := o.StopAllAsync(true)
	waitFor(t, "stop job completion", func() bool {
		rec, ok := o.JobStatus(jobID)
		return ok && rec.Status == JobCompleted
	})
}

func TestComponentIDs(t *testing.T) {
	o, addrs := testOperator(t, 2)
	ids := o.ComponentIDs()
	if len(ids) != 2 || ids[0] != addrs[0] || ids[1] != addrs[1] {
		t.Fatalf("ComponentIDs() = %v, want %v", ids, addrs)
	}
}
