package event

import (
	"reflect"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []int{0, 1, 100, 1000}
	for _, n := range cases {
		r := New()
		r.Channel = 5
		r.Module = 2
		r.Energy = 1000
		r.EnergyShort = 500
		r.Flags = 0xDEADBEEF
		r.TimeStampNs = 123456.789
		r.Waveform = make([]Sample, n)
		for i := range r.Waveform {
			r.Waveform[i] = Sample{ADC: uint16(i), TS: uint64(i) * 10}
		}

		buf := Encode(r, nil)
		if len(buf) != Size(r) {
			t.Fatalf("n=%d: encoded length %d != Size %d", n, len(buf), Size(r))
		}
		got, consumed, err := Decode(buf)
		if err != nil {
			t.Fatalf("n=%d: decode error: %v", n, err)
		}
		if consumed != len(buf) {
			t.Fatalf("n=%d: consumed %d != buf len %d", n, consumed, len(buf))
		}
		if !reflect.DeepEqual(got, r) {
			t.Fatalf("n=%d: round trip mismatch:\n got  %+v\n want %+v", n, got, r)
		}
	}
}

func TestDecode_ShortBuffer(t *testing.T) {
	_, _, err := Decode(make([]byte, 10))
	if err == nil {
		t.Fatal("expected error decoding a too-short buffer")
	}
}

func TestDecode_WaveformOverrun(t *testing.T) {
	r := New()
	r.Waveform = make([]Sample, 5)
	buf := Encode(r, nil)
	// truncate so the declared waveformSize (5) can't be satisfied.
	truncated := buf[:FixedHeaderSize+2*SampleSize]
	_, _, err := Decode(truncated)
	if err == nil {
		t.Fatal("expected error decoding a buffer truncated mid-waveform")
	}
}

func TestEncode_AppendsToExistingBuffer(t *testing.T) {
	prefix := []byte{0xAA, 0xBB}
	r := New()
	buf := Encode(r, append([]byte{}, prefix...))
	if buf[0] != 0xAA || buf[1] != 0xBB {
		t.Fatal("Encode must preserve bytes already in the destination buffer")
	}
	if len(buf) != len(prefix)+Size(r) {
		t.Fatalf("unexpected total length %d", len(buf))
	}
}
