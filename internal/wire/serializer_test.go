package wire

import (
	"reflect"
	"testing"

	"github.com/aogaki/delila2-net/internal/errs"
	"github.com/aogaki/delila2-net/internal/event"
)

func makeBatch(n int, waveform int) []event.Record {
	records := make([]event.Record, n)
	for i := range records {
		r := event.New()
		r.Channel = uint8(i % 64)
		r.Energy = 1000
		r.EnergyShort = 500
		r.Waveform = make([]event.Sample, waveform)
		for j := range r.Waveform {
			r.Waveform[j] = event.Sample{ADC: uint16(j), TS: uint64(j)}
		}
		records[i] = r
	}
	return records
}

// S1: round trip with varying waveform sizes, no compression.
func TestEncodeDecodeBatch_RoundTrip_NoCompression(t *testing.T) {
	for _, n := range []int{0, 1, 100, 1000} {
		records := makeBatch(10, n)
		s := NewSerializer(Config{}, nil)
		out, err := s.EncodeBatch(records)
		if err != nil {
			t.Fatalf("waveform=%d: encode error: %v", n, err)
		}
		wantLen := HeaderSize + 10*event.FixedHeaderSize + 10*n*event.SampleSize
		if len(out) != wantLen {
			t.Fatalf("waveform=%d: got length %d, want %d", n, len(out), wantLen)
		}
		h, err := DecodeHeader(out)
		if err != nil {
			t.Fatalf("waveform=%d: header decode: %v", n, err)
		}
		if h.CompressedSize != h.UncompressedSize {
			t.Fatalf("waveform=%d: expected uncompressed output", n)
		}
		decoded, err := s.DecodeBatch(out)
		if err != nil {
			t.Fatalf("waveform=%d: decode error: %v", n, err)
		}
		if !reflect.DeepEqual(decoded, records) {
			t.Fatalf("waveform=%d: round trip mismatch", n)
		}
	}
}

// S2: compression enabled but payload below MinMessageSize stays uncompressed.
func TestEncodeBatch_BelowThreshold_StaysUncompressed(t *testing.T) {
	records := makeBatch(5, 0) // tiny payload, well under 102400
	s := NewSerializer(Config{CompressionEnabled: true, CompressionLevel: 9}, nil)
	out, err := s.EncodeBatch(records)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	h, err := DecodeHeader(out)
	if err != nil {
		t.Fatalf("header decode: %v", err)
	}
	if h.Compressed() {
		t.Fatal("expected payload under MinMessageSize to remain uncompressed")
	}
}

// S3: compression effective on large, repetitive payloads.
func TestEncodeDecodeBatch_CompressionEffective(t *testing.T) {
	records := makeBatch(60, 200) // 60*(34+200*10) = 122040 bytes, over MinMessageSize
	s := NewSerializer(Config{CompressionEnabled: true, CompressionLevel: 5}, nil)
	out, err := s.EncodeBatch(records)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	h, err := DecodeHeader(out)
	if err != nil {
		t.Fatalf("header decode: %v", err)
	}
	if !h.Compressed() {
		t.Fatal("expected identical-content payload to compress smaller")
	}
	decoded, err := s.DecodeBatch(out)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !reflect.DeepEqual(decoded, records) {
		t.Fatal("round trip mismatch with compression enabled")
	}
}

// S4: corrupting a payload byte must be detected, never silently decoded wrong.
func TestDecodeBatch_CorruptionDetected(t *testing.T) {
	records := makeBatch(100, 10)
	s := NewSerializer(Config{}, nil)
	out, err := s.EncodeBatch(records)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if len(out) <= 1000 {
		t.Fatalf("test fixture too small: %d bytes", len(out))
	}
	corrupt := append([]byte(nil), out...)
	corrupt[1000] ^= 0xFF

	_, err = s.DecodeBatch(corrupt)
	if err == nil {
		t.Fatal("expected decode of corrupted frame to fail")
	}
	if kind, ok := errs.As(err); !ok || (kind != errs.KindChecksumMismatch && kind != errs.KindInvalidFormat) {
		t.Fatalf("expected ChecksumMismatch or InvalidFormat, got %v (kind=%v ok=%v)", err, kind, ok)
	}
}

func TestSerializer_SequenceNumbersIncreaseFromZero(t *testing.T) {
	s := NewSerializer(Config{}, nil)
	records := makeBatch(1, 0)
	for i := uint64(0); i < 5; i++ {
		out, err := s.EncodeBatch(records)
		if err != nil {
			t.Fatalf("encode error: %v", err)
		}
		h, err := DecodeHeader(out)
		if err != nil {
			t.Fatalf("header decode: %v", err)
		}
		if h.SequenceNumber != i {
			t.Fatalf("expected sequence %d, got %d", i, h.SequenceNumber)
		}
	}
}

func TestDecodeBatch_ShortBuffer(t *testing.T) {
	s := NewSerializer(Config{}, nil)
	_, err := s.DecodeBatch(make([]byte, 10))
	if err == nil {
		t.Fatal("expected error decoding a too-short buffer")
	}
}
