package processor

import (
	"testing"

	"github.com/aogaki/delila2-net/internal/event"
	"github.com/aogaki/delila2-net/internal/seqtrack"
	"github.com/aogaki/delila2-net/internal/wire"
)

func sampleRecords(n int) []event.Record {
	out := make([]event.Record, n)
	for i := range out {
		r := event.New()
		r.Channel = uint8(i % 64)
		r.Energy = uint16(1000 + i)
		out[i] = r
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := New(wire.Config{}, nil)
	in := sampleRecords(5)
	data, err := p.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	res, err := p.Decode("src-a", data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(res.Records) != len(in) {
		t.Fatalf("got %d records, want %d", len(res.Records), len(in))
	}
	if res.Seq.Status != seqtrack.Ok {
		t.Fatalf("first batch from a source should be Ok, got %v", res.Seq.Status)
	}
}

func TestDecodeTracksSequencePerSource(t *testing.T) {
	p := New(wire.Config{}, nil)
	data0, _ := p.Encode(sampleRecords(1))
	data1, _ := p.Encode(sampleRecords(1))

	if _, err := p.Decode("src-a", data0); err != nil {
		t.Fatalf("Decode 0: %v", err)
	}
	res, err := p.Decode("src-a", data1)
	if err != nil {
		t.Fatalf("Decode 1: %v", err)
	}
	if res.Seq.Status != seqtrack.Ok {
		t.Fatalf("sequential batches should be Ok, got %v", res.Seq.Status)
	}

	// A fresh source starts its own tracker, independent of src-a's state.
	res2, err := p.Decode("src-b", data0)
	if err != nil {
		t.Fatalf("Decode from src-b: %v", err)
	}
	if res2.Seq.Status != seqtrack.Duplicate && res2.Seq.Status != seqtrack.Ok {
		t.Fatalf("unexpected status for src-b first batch: %v", res2.Seq.Status)
	}
}

func TestDecodeRejectsCorruptFrame(t *testing.T) {
	p := New(wire.Config{}, nil)
	data, _ := p.Encode(sampleRecords(10))
	data[len(data)-1] ^= 0xFF
	if _, err := p.Decode("src-a", data); err == nil {
		t.Fatal("expected an error decoding a corrupted frame")
	}
}

func TestResetClearsTrackers(t *testing.T) {
	p := New(wire.Config{}, nil)
	data, _ := p.Encode(sampleRecords(1))
	if _, err := p.Decode("src-a", data); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c := p.SequenceCounters("src-a"); c.Received != 1 {
		t.Fatalf("expected 1 received before reset, got %d", c.Received)
	}
	p.Reset()
	if c := p.SequenceCounters("src-a"); c.Received != 0 {
		t.Fatalf("expected tracker state cleared after Reset, got %+v", c)
	}
}
