package component

import (
	"time"

	"github.com/aogaki/delila2-net/internal/errs"
	"github.com/aogaki/delila2-net/internal/logging"
	"github.com/aogaki/delila2-net/internal/metrics"
	"github.com/aogaki/delila2-net/internal/seqtrack"
	"github.com/aogaki/delila2-net/internal/wire"
)

// idleTick bounds how long the sender/receiver loops sleep when there is
// nothing to do, keeping shutdown latency well under the spec's 100ms
// polling-cadence expectation.
const idleTick = 2 * time.Millisecond

// senderLoop implements the sending half of the Running-state contract:
// produce a batch, send it, mark_sent; when idle and the heartbeat
// interval has elapsed, emit a heartbeat instead.
func (b *Base) senderLoop() {
	defer b.runWG.Done()
	for {
		select {
		case <-b.runCtx.Done():
			return
		default:
		}

		records, ok := b.src.NextBatch()
		if ok {
			data, err := b.proc.Encode(records)
			if err != nil {
				metrics.IncError(errKind(err))
				continue
			}
			if b.broadcast(data, wire.Data) {
				b.hbMgr.MarkSent()
			}
			continue
		}

		if b.hbMgr.IsDue() {
			payload := wire.EncodeHeartbeat(b.cfg.ComponentID)
			if b.broadcast(payload, wire.Heartbeat) {
				b.hbMgr.MarkSent()
				metrics.IncHeartbeatSent()
			}
		}
		time.Sleep(idleTick)
	}
}

// broadcast sends data to every output transport, returning true if at
// least one accepted it.
func (b *Base) broadcast(data []byte, tag wire.MessageType) bool {
	sent := false
	for _, out := range b.outputs {
		if out.t.Send(data, tag) {
			sent = true
		}
	}
	return sent
}

// SendEOS broadcasts an EndOfStream frame on every output, for a concrete
// component's OnStop hook to call before a graceful stop finishes. It is
// exported because the end-of-stream decision (when the source is
// exhausted) belongs to the concrete component, not to Base.
func (b *Base) SendEOS(runNumber uint32) {
	payload := wire.EncodeEOS(b.cfg.ComponentID, runNumber)
	b.broadcast(payload, wire.EndOfStream)
}

// receiverLoop implements the receiving half of the Running-state
// contract: poll every input, decode Data frames through the processor,
// update the heartbeat
// monitor on Heartbeat frames, and track EndOfStream frames until every
// registered source has sent one, at which point it requests a Stop.
func (b *Base) receiverLoop() {
	defer b.runWG.Done()
	for {
		select {
		case <-b.runCtx.Done():
			return
		default:
		}

		progressed := false
		for _, in := range b.inputs {
			data, tag, ok := in.t.Receive()
			if !ok {
				continue
			}
			progressed = true
			b.handleInbound(in.sourceID, tag, data)
		}
		if b.eosTrk.AllReceived() && b.eosTrk.ExpectedCount() > 0 {
			go b.requestStop()
			return
		}
		if !progressed {
			time.Sleep(idleTick)
		}
	}
}

func (b *Base) handleInbound(sourceID string, tag wire.MessageType, data []byte) {
	switch tag {
	case wire.Data:
		res, err := b.proc.Decode(sourceID, data)
		if err != nil {
			metrics.IncError(errKind(err))
			return
		}
		reportSequence(sourceID, res.Seq)
		if b.snk != nil {
			if err := b.snk.HandleBatch(sourceID, res.Records); err != nil {
				logging.L().Warn("sink_error", "component", b.cfg.ComponentID, "source", sourceID, "error", err)
			}
		}
	case wire.Heartbeat:
		id, err := wire.DecodeHeartbeat(data)
		if err != nil {
			return
		}
		b.hbMon.Update(id)
	case wire.EndOfStream:
		_, _, err := wire.DecodeEOS(data)
		if err != nil {
			return
		}
		b.eosTrk.ReceiveEOS(sourceID)
		metrics.SetEOSPending(b.cfg.ComponentID, len(b.eosTrk.PendingSources()))
	}
}

func reportSequence(sourceID string, seq seqtrack.Result) {
	switch seq.Status {
	case seqtrack.Gap:
		metrics.IncSequenceGap(sourceID)
	case seqtrack.Duplicate:
		metrics.IncSequenceDuplicate(sourceID)
	}
}

// requestStop drives the FSM's Stop transition from a goroutine distinct
// from receiverLoop: OnStop waits for the run loops via runWG, and
// receiverLoop is itself one of them, so it must return (and decrement
// runWG) before the Stop it requested can complete.
func (b *Base) requestStop() {
	if err := b.FSM.Stop(true); err != nil {
		logging.L().Warn("auto_stop_failed", "component", b.cfg.ComponentID, "error", err)
	}
}

func errKind(err error) string {
	if k, ok := errs.As(err); ok {
		return k.String()
	}
	return "unknown"
}
