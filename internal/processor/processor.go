// Package processor implements the Data Processor (C7): the glue that owns
// one wire.Serializer and a set of per-source seqtrack.Tracker instances,
// translating between raw transport bytes and decoded event.Record
// batches: a single synchronous type owning a Serializer and a Sequence
// Tracker, translating bytes to and from decoded batches.
package processor

import (
	"sync"

	"github.com/aogaki/delila2-net/internal/event"
	"github.com/aogaki/delila2-net/internal/pool"
	"github.com/aogaki/delila2-net/internal/seqtrack"
	"github.com/aogaki/delila2-net/internal/wire"
)

// Processor encodes outbound batches and decodes+sequence-checks inbound
// ones. A single Processor serves one Data Component: one serializer for
// everything it sends, one sequence tracker per distinct upstream source it
// receives from.
type Processor struct {
	serializer *wire.Serializer

	mu       sync.Mutex
	trackers map[string]*seqtrack.Tracker
}

// New creates a Processor with the given serializer configuration, sharing
// buffer reuse with p (typically a Transport's pool; nil for a private one).
func New(cfg wire.Config, p *pool.Pool) *Processor {
	return &Processor{
		serializer: wire.NewSerializer(cfg, p),
		trackers:   make(map[string]*seqtrack.Tracker),
	}
}

// Encode serializes records into wire bytes ready for Transport.Send.
func (proc *Processor) Encode(records []event.Record) ([]byte, error) {
	return proc.serializer.EncodeBatch(records)
}

// DecodeResult pairs a decoded batch with its sequence-tracker verdict.
type DecodeResult struct {
	Records []event.Record
	Seq     seqtrack.Result
}

// Decode deserializes data received from sourceID and checks its sequence
// number against that source's tracker (created on first observation). A
// serializer error (checksum, format, corruption) is returned as an err
// classified per the errs taxonomy; the caller drops the frame and
// continues. Sequence anomalies are NEVER an error, they are reported in
// DecodeResult.Seq so the caller can count/log them.
func (proc *Processor) Decode(sourceID string, data []byte) (DecodeResult, error) {
	h, err := wire.DecodeHeader(data)
	if err != nil {
		return DecodeResult{}, err
	}
	records, err := proc.serializer.DecodeBatch(data)
	if err != nil {
		return DecodeResult{}, err
	}
	seq := proc.tracker(sourceID).Check(h.SequenceNumber)
	return DecodeResult{Records: records, Seq: seq}, nil
}

func (proc *Processor) tracker(sourceID string) *seqtrack.Tracker {
	proc.mu.Lock()
	defer proc.mu.Unlock()
	tr, ok := proc.trackers[sourceID]
	if !ok {
		tr = seqtrack.New()
		proc.trackers[sourceID] = tr
	}
	return tr
}

// SequenceCounters returns a snapshot of sourceID's tracker counters, or the
// zero value if nothing has been observed from it yet.
func (proc *Processor) SequenceCounters(sourceID string) seqtrack.Counters {
	proc.mu.Lock()
	tr, ok := proc.trackers[sourceID]
	proc.mu.Unlock()
	if !ok {
		return seqtrack.Counters{}
	}
	return tr.Counters()
}

// Reset clears every source's sequence-tracker state in step with the
// Component FSM's Reset transition: trackers are created on first message
// from a sender and cleared on component Reset.
func (proc *Processor) Reset() {
	proc.mu.Lock()
	defer proc.mu.Unlock()
	for src := range proc.trackers {
		delete(proc.trackers, src)
	}
}

// NextSequence exposes the underlying serializer's next outbound sequence
// number, for diagnostics/status reporting.
func (proc *Processor) NextSequence() uint64 { return proc.serializer.NextSequence() }
