package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// outbound is one queued write: the wire frame bytes ready to go out on a
// connection.
type outbound struct {
	data []byte
}

// AsyncTx funnels writes through a single goroutine (fan-in), giving
// SendFrame nonblocking enqueue semantics: if the internal buffer is full,
// the configured OnDrop hook runs and the frame is dropped rather than
// blocking the producer. Carries arbitrary wire-frame bytes.
type AsyncTx struct {
	mu     sync.Mutex
	ch     chan outbound
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	send   func([]byte) error
	hooks  Hooks
	closed atomic.Bool
}

// Hooks customize AsyncTx behavior.
type Hooks struct {
	OnError func(error)
	OnAfter func(n int)
	OnDrop  func()
}

// NewAsyncTx constructs an AsyncTx with a buffered channel of size buf.
func NewAsyncTx(parent context.Context, buf int, send func([]byte) error, hooks Hooks) *AsyncTx {
	ctx, cancel := context.WithCancel(parent)
	a := &AsyncTx{
		ch:     make(chan outbound, buf),
		ctx:    ctx,
		cancel: cancel,
		send:   send,
		hooks:  hooks,
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *AsyncTx) loop() {
	defer a.wg.Done()
	for {
		select {
		case ob, ok := <-a.ch:
			if !ok {
				return
			}
			if err := a.send(ob.data); err != nil {
				if a.hooks.OnError != nil {
					a.hooks.OnError(err)
				}
				continue
			}
			if a.hooks.OnAfter != nil {
				a.hooks.OnAfter(len(ob.data))
			}
		case <-a.ctx.Done():
			return
		}
	}
}

// ErrAsyncTxClosed is returned by SendFrame once Close has been called.
var ErrAsyncTxClosed = errors.New("async tx closed")

// SendFrame queues data for asynchronous transmission. Returns true if
// enqueued, false if dropped (buffer full or already closed); this is the
// nonblocking "returns false without blocking" contract of Transport.Send.
func (a *AsyncTx) SendFrame(data []byte) bool {
	if a.closed.Load() {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Load() {
		return false
	}
	select {
	case a.ch <- outbound{data: data}:
		return true
	default:
		if a.hooks.OnDrop != nil {
			a.hooks.OnDrop()
		}
		return false
	}
}

// QueueDepth reports how many frames are currently queued for transmission.
func (a *AsyncTx) QueueDepth() int { return len(a.ch) }

// Close stops the worker and waits for all pending operations to finish.
func (a *AsyncTx) Close() {
	if a.closed.Swap(true) {
		return
	}
	a.cancel()
	a.mu.Lock()
	close(a.ch)
	a.mu.Unlock()
	a.wg.Wait()
}
