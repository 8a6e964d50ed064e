// Package transport implements the Transport (C6): a socket-pattern
// parameterized sender/receiver for one logical channel (data or status,
// the command channel's synchronous request/reply round trip is handled
// separately by internal/ctrlproto + internal/component, since it has
// different delivery semantics than this package's nonblocking
// best-effort contract).
//
// No usable ZeroMQ/nanomsg Go binding is available, and a gRPC backend
// is a separate concern left for a later transport implementation, so
// the nine socket patterns are implemented over plain TCP:
// PUB/PUSH/bidi patterns broadcast to their connected peers through
// internal/hub; PUB additionally prepends a topic envelope that SUB strips
// and filters on. PULL/SUB/bidi patterns read inbound frames from every
// connection into one shared channel. Framing on each TCP connection is
// the [tag][length][payload] envelope of frame.go.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aogaki/delila2-net/internal/config"
	"github.com/aogaki/delila2-net/internal/errs"
	"github.com/aogaki/delila2-net/internal/hub"
	"github.com/aogaki/delila2-net/internal/logging"
	"github.com/aogaki/delila2-net/internal/metrics"
	"github.com/aogaki/delila2-net/internal/pool"
	"github.com/aogaki/delila2-net/internal/wire"
)

// dataTopic is the implementation-defined SUB subscription prefix.
const dataTopic = "DATA"

// Options carries the socket-option-like knobs Connect applies:
// high-water-marks, linger, and receive buffer size. Zero values take the
// documented defaults.
type Options struct {
	SendHWM         int           // per-peer queue in frames; 0 = 512 (no unbounded queue)
	RecvHWM         int           // inbound queue in frames; 0 = 4096 (no unbounded queue)
	Linger          time.Duration // default 1s
	RecvBufferBytes int           // default 4 MiB
	PoolCapacity    int           // 0 = unbounded, matching pool.New
}

func (o Options) withDefaults() Options {
	if o.Linger <= 0 {
		o.Linger = time.Second
	}
	if o.RecvBufferBytes <= 0 {
		o.RecvBufferBytes = 4 * 1024 * 1024
	}
	if o.RecvHWM <= 0 {
		o.RecvHWM = 4096
	}
	return o
}

type connRole int

const (
	roleFanout connRole = iota // bind/connect, send-only broadcast: PUB, PUSH
	roleFanin                  // bind/connect, receive-only merge: SUB, PULL
	roleBidi                   // bind/connect, both directions: PAIR, REQ, REP, DEALER, ROUTER
)

func classify(p config.SocketPattern) connRole {
	switch p {
	case config.PatternPub, config.PatternPush:
		return roleFanout
	case config.PatternSub, config.PatternPull:
		return roleFanin
	default: // PAIR, REQ, REP, DEALER, ROUTER
		return roleBidi
	}
}

type inboundFrame struct {
	payload []byte
	tag     wire.MessageType
}

// Transport is a single logical channel's sender/receiver.
type Transport struct {
	label string // for logging/metrics (e.g. "merger-0/data")
	cfg   config.ChannelConfig
	opts  Options
	role  connRole

	mu        sync.Mutex
	connected bool
	listener  net.Listener
	pool      *pool.Pool

	h       *hub.Hub // present when role is roleFanout or roleBidi
	inbound chan inboundFrame

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	messagesSent, messagesReceived atomic.Uint64
	bytesSent, bytesReceived       atomic.Uint64
	sendErrors, recvErrors         atomic.Uint64
}

// New constructs a Transport for one channel without touching the network;
// it only validates. Use Connect to open sockets.
func New(label string, cfg config.ChannelConfig, opts Options) (*Transport, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfigurationError, err)
	}
	role := classify(cfg.Pattern)
	t := &Transport{
		label: label,
		cfg:   cfg,
		opts:  opts.withDefaults(),
		role:  role,
		pool:  pool.New(opts.PoolCapacity),
	}
	if role == roleFanout || role == roleBidi {
		t.h = hub.New(label)
		t.h.OutBufSize = t.opts.SendHWM
		if t.h.OutBufSize <= 0 {
			t.h.OutBufSize = 512
		}
		t.h.Policy = hub.PolicyDrop
	}
	if role == roleFanin || role == roleBidi {
		t.inbound = make(chan inboundFrame, t.opts.RecvHWM)
	}
	return t, nil
}

func validateConfig(cfg config.ChannelConfig) error {
	if cfg.Address == "" {
		return fmt.Errorf("channel address is required")
	}
	return nil
}

// Connect creates the network context and opens sockets per configuration:
// bind listens and registers every accepted peer; connect dials exactly one
// peer. A failure here is a fatal SystemError and the transport stays
// not connected.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	if t.cfg.Bind {
		ln, err := net.Listen("tcp", addrWithoutScheme(t.cfg.Address))
		if err != nil {
			return errs.Wrap(errs.KindSystemError, fmt.Errorf("transport %s: listen %s: %w", t.label, t.cfg.Address, err))
		}
		t.mu.Lock()
		t.listener = ln
		t.connected = true
		t.mu.Unlock()
		t.wg.Add(1)
		go t.acceptLoop(ln)
		return nil
	}

	conn, err := net.Dial("tcp", addrWithoutScheme(t.cfg.Address))
	if err != nil {
		return errs.Wrap(errs.KindSystemError, fmt.Errorf("transport %s: dial %s: %w", t.label, t.cfg.Address, err))
	}
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	t.registerConn(conn)
	return nil
}

// addrWithoutScheme strips an "inproc://" or "tcp://" prefix; inproc
// addresses are not distinguished from tcp loopback in this TCP-only
// implementation (no Go ZeroMQ/nanomsg binding exists in the retrieval
// pack to provide a real in-process transport).
func addrWithoutScheme(addr string) string {
	for _, prefix := range []string{"tcp://", "inproc://"} {
		if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
			return addr[len(prefix):]
		}
	}
	return addr
}

func (t *Transport) acceptLoop(ln net.Listener) {
	defer t.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-t.ctx.Done():
				return
			default:
			}
			logging.L().Warn("transport_accept_error", "channel", t.label, "error", err)
			return
		}
		t.registerConn(conn)
	}
}

func (t *Transport) registerConn(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
		_ = tcp.SetReadBuffer(t.opts.RecvBufferBytes)
	}

	var client *hub.Client
	if t.role == roleFanout || t.role == roleBidi {
		client = &hub.Client{Out: make(chan hub.Frame, t.h.OutBufSize), Closed: make(chan struct{})}
		t.h.Add(client)
		t.wg.Add(1)
		go t.writeLoop(conn, client)
	}
	if t.role == roleFanin || t.role == roleBidi {
		t.wg.Add(1)
		go t.readLoop(conn, client)
	}
}

func (t *Transport) writeLoop(conn net.Conn, client *hub.Client) {
	defer t.wg.Done()
	defer func() {
		_ = conn.Close()
		t.h.Remove(client)
	}()
	for {
		select {
		case fr := <-client.Out:
			if _, err := conn.Write(fr.Payload); err != nil {
				t.sendErrors.Add(1)
				return
			}
		case <-client.Closed:
			return
		case <-t.ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(t.opts.Linger))
			return
		}
	}
}

func (t *Transport) readLoop(conn net.Conn, client *hub.Client) {
	defer t.wg.Done()
	defer func() {
		_ = conn.Close()
		if client != nil {
			t.h.Remove(client)
		}
	}()
	// A bufio.Reader lets us Peek for available bytes under a short deadline
	// (safe to retry on timeout, nothing is consumed) and only switch to a
	// generous deadline once a frame is known to be starting; setting a
	// short deadline across the whole of readFrame would instead risk
	// timing out mid-frame and desynchronizing the stream, since bytes
	// already pulled into the read buffer can't be "put back".
	br := bufio.NewReader(conn)
	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		if _, err := br.Peek(1); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		fr, err := readFrame(br)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		payload := fr.Payload
		if t.cfg.Pattern == config.PatternSub {
			topic, rest, uerr := unwrapTopic(payload)
			if uerr != nil || topic != dataTopic {
				continue
			}
			payload = rest
		}
		select {
		case t.inbound <- inboundFrame{payload: payload, tag: fr.Tag}:
		default:
			t.recvErrors.Add(1)
			metrics.IncSendDropped()
		}
	}
}

// Send transmits payload tagged with tag to every connected peer. It never
// blocks: if there are no connected peers (nothing to send to) it returns
// false; a peer whose own buffer is full silently drops that one copy
// (counted via metrics.IncSendDropped), matching the hub's backpressure
// policy, while Send itself still reports success to the caller.
func (t *Transport) Send(payload []byte, tag wire.MessageType) bool {
	if t.role == roleFanin {
		return false
	}
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected || t.h.Count() == 0 {
		return false
	}

	body := payload
	topic := ""
	if t.cfg.Pattern == config.PatternPub {
		topic = dataTopic
		body = wrapTopic(topic, payload)
	}
	buf := encodeFrame(tag, body, nil)
	t.h.Broadcast(hub.Frame{Topic: topic, Payload: buf})

	t.messagesSent.Add(1)
	t.bytesSent.Add(uint64(len(buf)))
	metrics.IncMessagesSent(len(buf))
	return true
}

// Receive returns the next ready frame, or ok=false if none is pending.
func (t *Transport) Receive() ([]byte, wire.MessageType, bool) {
	if t.role == roleFanout {
		return nil, 0, false
	}
	select {
	case f := <-t.inbound:
		t.messagesReceived.Add(1)
		t.bytesReceived.Add(uint64(len(f.payload)))
		metrics.IncMessagesReceived(len(f.payload))
		return f.payload, f.tag, true
	default:
		return nil, 0, false
	}
}

// Disconnect closes sockets but keeps the Transport reusable via a
// subsequent Connect. Idempotent.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return
	}
	t.connected = false
	ln := t.listener
	t.listener = nil
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ln != nil {
		_ = ln.Close()
	}
	if t.h != nil {
		for _, c := range t.h.Snapshot() {
			t.h.Remove(c)
		}
	}
	t.wg.Wait()
}

// Shutdown calls Disconnect and is idempotent; the pool is left in place.
func (t *Transport) Shutdown() {
	t.Disconnect()
}

// Connected reports whether the transport currently has an open
// listener/connection.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Addr returns the bound listener's address, or nil if this Transport is
// not in bind mode or is not yet connected. Useful in tests and for
// advertising an ephemeral (":0") bind port once it is assigned.
func (t *Transport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stats is a point-in-time snapshot of transport counters.
type Stats struct {
	MessagesSent, MessagesReceived uint64
	BytesSent, BytesReceived       uint64
	SendErrors, RecvErrors         uint64
}

func (t *Transport) Stats() Stats {
	return Stats{
		MessagesSent:     t.messagesSent.Load(),
		MessagesReceived: t.messagesReceived.Load(),
		BytesSent:        t.bytesSent.Load(),
		BytesReceived:    t.bytesReceived.Load(),
		SendErrors:       t.sendErrors.Load(),
		RecvErrors:       t.recvErrors.Load(),
	}
}

// Pool exposes the transport's memory pool for borrowers (e.g. the Data
// Processor) that want to share buffer reuse with the send path.
func (t *Transport) Pool() *pool.Pool { return t.pool }

// MemoryPoolSetCapacity sets the bounded pool's capacity (0 = unbounded).
func (t *Transport) MemoryPoolSetCapacity(n int) { t.pool.SetCapacity(n) }

// MemoryPoolStats returns the pool's hit/miss/idle/capacity snapshot.
func (t *Transport) MemoryPoolStats() pool.Stats { return t.pool.Stats() }

func wrapTopic(topic string, payload []byte) []byte {
	buf := make([]byte, 0, 1+len(topic)+len(payload))
	buf = append(buf, byte(len(topic)))
	buf = append(buf, topic...)
	buf = append(buf, payload...)
	return buf
}

func unwrapTopic(data []byte) (string, []byte, error) {
	if len(data) < 1 {
		return "", nil, errs.Wrap(errs.KindInvalidData, fmt.Errorf("%w: empty topic envelope", errs.ErrShortBuffer))
	}
	n := int(data[0])
	if len(data) < 1+n {
		return "", nil, errs.Wrap(errs.KindInvalidData, fmt.Errorf("%w: topic envelope truncated", errs.ErrShortBuffer))
	}
	return string(data[1 : 1+n]), data[1+n:], nil
}
