// Package metrics exposes the DAQ transport pipeline's Prometheus series
// (messages/bytes sent and received, classified error counters, heartbeat
// timeouts, EOS pending counts, per-component FSM state, memory-pool
// hit/miss) plus a cheap locally-mirrored Snapshot for periodic structured
// logging.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/aogaki/delila2-net/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delila_messages_sent_total",
		Help: "Total batches handed to the transport for sending.",
	})
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delila_messages_received_total",
		Help: "Total batches received from the transport.",
	})
	BytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delila_bytes_sent_total",
		Help: "Total on-wire bytes sent.",
	})
	BytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delila_bytes_received_total",
		Help: "Total on-wire bytes received.",
	})
	SendDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delila_send_dropped_total",
		Help: "Total sends dropped because the transport's outbound queue was full.",
	})
	HeartbeatsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delila_heartbeats_sent_total",
		Help: "Total heartbeat frames emitted.",
	})
	HeartbeatTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delila_heartbeat_timeouts_total",
		Help: "Total heartbeat timeouts observed, by source id.",
	}, []string{"source"})
	EOSPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "delila_eos_pending",
		Help: "Number of sources that have not yet sent EOS, by component.",
	}, []string{"component"})
	SequenceGaps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delila_sequence_gaps_total",
		Help: "Total sequence gaps detected, by source.",
	}, []string{"source"})
	SequenceDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delila_sequence_duplicates_total",
		Help: "Total duplicate sequence numbers detected, by source.",
	}, []string{"source"})
	ComponentState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "delila_component_state",
		Help: "Current FSM state (numeric) of a component, by component id.",
	}, []string{"component"})
	PoolHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delila_pool_hits_total",
		Help: "Total memory-pool buffer reuses.",
	})
	PoolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delila_pool_misses_total",
		Help: "Total memory-pool allocations on a miss.",
	})
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "delila_queue_depth",
		Help: "Current outbound queue depth, by component and channel.",
	}, []string{"component", "channel"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delila_errors_total",
		Help: "Error counters by kind, per the error-handling taxonomy.",
	}, []string{"kind"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error kind label constants, matching internal/errs.Kind.String().
const (
	ErrInvalidData        = "invalid_data"
	ErrInvalidFormat       = "invalid_format"
	ErrChecksumMismatch    = "checksum_mismatch"
	ErrCompressionFailed   = "compression_failed"
	ErrMemoryAllocation    = "memory_allocation"
	ErrSystemError         = "system_error"
	ErrConfigurationError  = "configuration_error"
	ErrTimeoutError        = "timeout_error"
	ErrSequenceError       = "sequence_error"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for cheap periodic structured-log emission.
var (
	localMsgSent, localMsgRecv       uint64
	localBytesSent, localBytesRecv   uint64
	localDropped                     uint64
	localHeartbeatsSent              uint64
	localErrors                      uint64
	localPoolHits, localPoolMisses   uint64
)

type Snapshot struct {
	MessagesSent, MessagesReceived uint64
	BytesSent, BytesReceived       uint64
	SendDropped                    uint64
	HeartbeatsSent                 uint64
	Errors                         uint64
	PoolHits, PoolMisses           uint64
}

func Snap() Snapshot {
	return Snapshot{
		MessagesSent:     atomic.LoadUint64(&localMsgSent),
		MessagesReceived: atomic.LoadUint64(&localMsgRecv),
		BytesSent:        atomic.LoadUint64(&localBytesSent),
		BytesReceived:    atomic.LoadUint64(&localBytesRecv),
		SendDropped:      atomic.LoadUint64(&localDropped),
		HeartbeatsSent:   atomic.LoadUint64(&localHeartbeatsSent),
		Errors:           atomic.LoadUint64(&localErrors),
		PoolHits:         atomic.LoadUint64(&localPoolHits),
		PoolMisses:       atomic.LoadUint64(&localPoolMisses),
	}
}

func IncMessagesSent(bytes int) {
	MessagesSent.Inc()
	BytesSent.Add(float64(bytes))
	atomic.AddUint64(&localMsgSent, 1)
	atomic.AddUint64(&localBytesSent, uint64(bytes))
}

func IncMessagesReceived(bytes int) {
	MessagesReceived.Inc()
	BytesReceived.Add(float64(bytes))
	atomic.AddUint64(&localMsgRecv, 1)
	atomic.AddUint64(&localBytesRecv, uint64(bytes))
}

func IncSendDropped() {
	SendDropped.Inc()
	atomic.AddUint64(&localDropped, 1)
}

func IncHeartbeatSent() {
	HeartbeatsSent.Inc()
	atomic.AddUint64(&localHeartbeatsSent, 1)
}

func IncHeartbeatTimeout(source string) { HeartbeatTimeouts.WithLabelValues(source).Inc() }

func SetEOSPending(component string, n int) { EOSPending.WithLabelValues(component).Set(float64(n)) }

func IncSequenceGap(source string) { SequenceGaps.WithLabelValues(source).Inc() }

func IncSequenceDuplicate(source string) { SequenceDuplicates.WithLabelValues(source).Inc() }

func SetComponentState(component string, state int32) {
	ComponentState.WithLabelValues(component).Set(float64(state))
}

func IncPoolHit() {
	PoolHits.Inc()
	atomic.AddUint64(&localPoolHits, 1)
}

func IncPoolMiss() {
	PoolMisses.Inc()
	atomic.AddUint64(&localPoolMisses, 1)
}

func SetQueueDepth(component, channel string, depth int) {
	QueueDepth.WithLabelValues(component, channel).Set(float64(depth))
}

func IncError(kind string) {
	Errors.WithLabelValues(kind).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error-kind
// series (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, kind := range []string{
		ErrInvalidData, ErrInvalidFormat, ErrChecksumMismatch, ErrCompressionFailed,
		ErrMemoryAllocation, ErrSystemError, ErrConfigurationError, ErrTimeoutError, ErrSequenceError,
	} {
		Errors.WithLabelValues(kind).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
