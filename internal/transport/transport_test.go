package transport

import (
	"context"
	"testing"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
	"github.com/aogaki/delila2-net/internal/wire"
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

func TestPushPullRoundTrip(t *testing.T) {
	push, err := New("t/push", config.ChannelConfig{Address: "127.0.0.1:0", Bind: true, Pattern: config.PatternPush}, Options{})
	if err != nil {
		t.Fatalf("New push: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := push.Connect(ctx); err != nil {
		t.Fatalf("Connect push: %v", err)
	}
	defer push.Disconnect()

	addr := push.listener.Addr().String()
	pull, err := New("t/pull", config.ChannelConfig{Address: addr, Bind: false, Pattern: config.PatternPull}, Options{})
	if err != nil {
		t.Fatalf("New pull: %v", err)
	}
	if err := pull.Connect(ctx); err != nil {
		t.Fatalf("Connect pull: %v", err)
	}
	defer pull.Disconnect()

	waitFor(t, "push to see a connected peer", func() bool { return push.h.Count() > 0 })

	payload := []byte("hello-event-batch")
	waitFor(t, "send to succeed", func() bool { return push.Send(payload, wire.Data) })

	var got []byte
	var tag wire.MessageType
	waitFor(t, "pull to receive the frame", func() bool {
		b, tg, ok := pull.Receive()
		if ok {
			got, tag = b, tg
		}
		return ok
	})
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: got %q want %q", got, payload)
	}
	if tag != wire.Data {
		t.Fatalf("tag mismatch: got %v want %v", tag, wire.Data)
	}
}

func TestPubSubFiltersTopic(t *testing.T) {
	pub, err := New("t/pub", config.ChannelConfig{Address: "127.0.0.1:0", Bind: true, Pattern: config.PatternPub}, Options{})
	if err != nil {
		t.Fatalf("New pub: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := pub.Connect(ctx); err != nil {
		t.Fatalf("Connect pub: %v", err)
	}
	defer pub.Disconnect()

	addr := pub.listener.Addr().String()
	sub, err := New("t/sub", config.ChannelConfig{Address: addr, Bind: false, Pattern: config.PatternSub}, Options{})
	if err != nil {
		t.Fatalf("New sub: %v", err)
	}
	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("Connect sub: %v", err)
	}
	defer sub.Disconnect()

	waitFor(t, "pub to see a subscriber", func() bool { return pub.h.Count() > 0 })

	payload := []byte("batch-bytes")
	waitFor(t, "send to succeed", func() bool { return pub.Send(payload, wire.Heartbeat) })

	waitFor(t, "sub to receive and strip the topic envelope", func() bool {
		b, tg, ok := sub.Receive()
		return ok && string(b) == string(payload) && tg == wire.Heartbeat
	})
}

func TestSendWithNoPeersReportsFalse(t *testing.T) {
	push, err := New("t/push-lonely", config.ChannelConfig{Address: "127.0.0.1:0", Bind: true, Pattern: config.PatternPush}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := push.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer push.Disconnect()
	if ok := push.Send([]byte("x"), wire.Data); ok {
		t.Fatal("Send with no connected peers should report false")
	}
}

func TestFaninRoleRejectsSend(t *testing.T) {
	pull, err := New("t/pull-only", config.ChannelConfig{Address: "127.0.0.1:0", Bind: true, Pattern: config.PatternPull}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if ok := pull.Send([]byte("x"), wire.Data); ok {
		t.Fatal("a fan-in role must reject Send")
	}
}

func TestFanoutRoleRejectsReceive(t *testing.T) {
	push, err := New("t/push-only", config.ChannelConfig{Address: "127.0.0.1:0", Bind: true, Pattern: config.PatternPush}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, ok := push.Receive(); ok {
		t.Fatal("a fan-out role must report no data ready")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	push, err := New("t/idem", config.ChannelConfig{Address: "127.0.0.1:0", Bind: true, Pattern: config.PatternPush}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := push.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	push.Disconnect()
	push.Disconnect() // must not panic
	if push.Connected() {
		t.Fatal("expected not connected after Disconnect")
	}
}
