package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var errSendFail = errors.New("send fail")

func TestAsyncTxSuccess(t *testing.T) {
	var sent atomic.Int64
	var after atomic.Int64
	ax := NewAsyncTx(context.Background(), 4, func(data []byte) error {
		sent.Add(1)
		return nil
	}, Hooks{OnAfter: func(n int) { after.Add(1) }})
	defer ax.Close()
	for i := 0; i < 3; i++ {
		if ok := ax.SendFrame([]byte{byte(i)}); !ok {
			t.Fatalf("unexpected drop on send %d", i)
		}
	}
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && sent.Load() < 3 {
		time.Sleep(5 * time.Millisecond)
	}
	if sent.Load() != 3 || after.Load() != 3 {
		t.Fatalf("expected 3 sent & after, got sent=%d after=%d", sent.Load(), after.Load())
	}
}

func TestAsyncTxOverflow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var drops atomic.Int64
	ax := NewAsyncTx(ctx, 1, func(data []byte) error { time.Sleep(150 * time.Millisecond); return nil }, Hooks{OnDrop: func() { drops.Add(1) }})
	defer ax.Close()
	if ok := ax.SendFrame([]byte{0}); !ok {
		t.Fatal("first enqueue should succeed")
	}
	if ok := ax.SendFrame([]byte{0}); ok {
		t.Fatal("second send should overflow: buffer=1, worker sleeping")
	}
	if drops.Load() != 1 {
		t.Fatalf("expected 1 drop, got %d", drops.Load())
	}
}

func TestAsyncTxSendError(t *testing.T) {
	var errs atomic.Int64
	ax := NewAsyncTx(context.Background(), 2, func(data []byte) error { return errSendFail }, Hooks{OnError: func(error) { errs.Add(1) }})
	defer ax.Close()
	_ = ax.SendFrame([]byte{0})
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && errs.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if errs.Load() == 0 {
		t.Fatal("expected error hook invocation")
	}
}

func TestAsyncTxClose(t *testing.T) {
	var sent atomic.Int64
	ax := NewAsyncTx(context.Background(), 2, func(data []byte) error { sent.Add(1); return nil }, Hooks{})
	_ = ax.SendFrame([]byte{0})
	ax.Close()
	countAfterClose := sent.Load()
	if ok := ax.SendFrame([]byte{0}); ok {
		t.Fatal("send after close should report false")
	}
	time.Sleep(50 * time.Millisecond)
	if sent.Load() != countAfterClose {
		t.Fatalf("frame processed after close: before=%d after=%d", countAfterClose, sent.Load())
	}
}

func TestAsyncTxSendAfterClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tx := NewAsyncTx(ctx, 2, func(data []byte) error { return nil }, Hooks{})
	tx.Close()
	if ok := tx.SendFrame([]byte{1, 2, 3}); ok {
		t.Fatal("expected send after close to be dropped")
	}
}

func TestAsyncTxCloseConcurrentSend(t *testing.T) {
	for i := 0; i < 100; i++ {
		ax := NewAsyncTx(context.Background(), 1, func(data []byte) error { return nil }, Hooks{})
		done := make(chan bool, 1)
		go func() {
			done <- ax.SendFrame([]byte{0})
		}()
		time.Sleep(time.Millisecond)
		ax.Close()
		<-done
	}
}
