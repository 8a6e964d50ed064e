package component

import (
	"sync"
	"testing"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
	"github.com/aogaki/delila2-net/internal/event"
	"github.com/aogaki/delila2-net/internal/fsm"
)

func waitForState(t *testing.T, b *Base, want fsm.State) {
	t.Helper()
	if !b.awaitState(want, 2*time.Second) {
		t.Fatalf("%s: expected state %s, got %s", b.cfg.ComponentID, want, b.FSM.State())
	}
}

type fakeSource struct {
	mu   sync.Mutex
	left int
}

func (s *fakeSource) NextBatch() ([]event.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.left == 0 {
		return nil, false
	}
	s.left--
	r := event.New()
	r.Channel = 3
	r.Energy = 1234
	return []event.Record{r}, true
}

type fakeSink struct {
	mu      sync.Mutex
	batches [][]event.Record
}

func (s *fakeSink) HandleBatch(sourceID string, records []event.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, records)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func baseConfig(id string) config.ComponentConfig {
	return config.ComponentConfig{
		ComponentID:       id,
		ComponentType:     "test",
		HeartbeatInterval: 20 * time.Millisecond,
		HeartbeatTimeout:  time.Second,
		StatusIntervalMs:  1000,
		CommandTimeoutMs:  1000,
		Transport: config.TransportConfig{
			Status:  config.ChannelConfig{Address: "127.0.0.1:0", Bind: true, Pattern: config.PatternPub},
			Command: config.ChannelConfig{Address: "127.0.0.1:0", Bind: true, Pattern: config.PatternRep},
		},
	}
}

func TestSourceToSinkRoundTrip(t *testing.T) {
	src := &fakeSource{left: 3}
	srcCfg := baseConfig("src")
	srcCfg.Transport.Data = config.ChannelConfig{Address: "127.0.0.1:0", Bind: true, Pattern: config.PatternPush}
	srcComp, err := New(srcCfg, Ops{}, src, nil)
	if err != nil {
		t.Fatalf("New(src): %v", err)
	}
	defer srcComp.Shutdown()
	if err := srcComp.FSM.Configure(); err != nil {
		t.Fatalf("Configure(src): %v", err)
	}
	addr := srcComp.outputs[0].t.Addr()
	if addr == nil {
		t.Fatal("expected a bound output address")
	}

	sink := &fakeSink{}
	sinkCfg := baseConfig("sink")
	sinkCfg.InputAddresses = []string{addr.String()}
	// Address is a placeholder here: buildChannels overrides it per entry in
	// InputAddresses for a connect-mode (Bind==false) channel.
	sinkCfg.Transport.Data = config.ChannelConfig{Address: "placeholder", Pattern: config.PatternPull}
	sinkComp, err := New(sinkCfg, Ops{}, nil, sink)
	if err != nil {
		t.Fatalf("New(sink): %v", err)
	}
	defer sinkComp.Shutdown()
	if err := sinkComp.FSM.Configure(); err != nil {
		t.Fatalf("Configure(sink): %v", err)
	}

	if err := srcComp.FSM.Arm(); err != nil {
		t.Fatalf("Arm(src): %v", err)
	}
	if err := sinkComp.FSM.Arm(); err != nil {
		t.Fatalf("Arm(sink): %v", err)
	}
	if err := srcComp.FSM.Start(7); err != nil {
		t.Fatalf("Start(src): %v", err)
	}
	if err := sinkComp.FSM.Start(7); err != nil {
		t.Fatalf("Start(sink): %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sink.count() < 3 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sink.count(); got != 3 {
		t.Fatalf("sink received %d batches, want 3", got)
	}

	srcComp.SendEOS(7)
	waitForState(t, sinkComp, fsm.Configured)

	if err := srcComp.FSM.Stop(true); err != nil {
		t.Fatalf("Stop(src): %v", err)
	}
	if err := srcComp.FSM.Reset(); err != nil {
		t.Fatalf("Reset(src): %v", err)
	}
	if err := sinkComp.FSM.Reset(); err != nil {
		t.Fatalf("Reset(sink): %v", err)
	}
}

func TestDriveRejectsUnknownTarget(t *testing.T) {
	cfg := baseConfig("drv")
	cfg.Transport.Data = config.ChannelConfig{Address: "127.0.0.1:0", Bind: true, Pattern: config.PatternPush}
	b, err := New(cfg, Ops{}, &fakeSource{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Drive(fsm.State(99), 0, false); err == nil {
		t.Fatal("expected an error for an unrecognized target state")
	}
}
