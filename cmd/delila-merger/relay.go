package main

import (
	"github.com/aogaki/delila2-net/internal/event"
)

// relay is the merger's dual Source/Sink: every decoded batch arriving on
// any input is queued and re-emitted, unmodified and in arrival order, on
// the output side. The merger concatenates rather than time-sorts across
// sources: ordering across distinct upstreams is whatever order their
// batches happen to arrive in, a per-source FIFO guarantee only.
type relay struct {
	queue chan []event.Record
}

func newRelay(queueSize int) *relay {
	if queueSize <= 0 {
		queueSize = 4096
	}
	return &relay{queue: make(chan []event.Record, queueSize)}
}

// HandleBatch implements component.Sink. A full queue drops the batch
// rather than blocking the receiver loop, the same best-effort contract
// the transport's own Send gives.
func (r *relay) HandleBatch(sourceID string, records []event.Record) error {
	select {
	case r.queue <- records:
	default:
	}
	return nil
}

// NextBatch implements component.Source.
func (r *relay) NextBatch() ([]event.Record, bool) {
	select {
	case records := <-r.queue:
		return records, true
	default:
		return nil, false
	}
}
