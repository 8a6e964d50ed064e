// Package event implements the Event Record (C1): a fixed-layout carrier
// of one digitized detector event, with deterministic little-endian
// on-wire encoding independent of native struct padding.
package event

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/aogaki/delila2-net/internal/errs"
)

// FixedHeaderSize is the size, in bytes, of the fixed portion of an
// EventRecord (everything except the waveform samples).
const FixedHeaderSize = 34

// SampleSize is the size, in bytes, of one waveform sample (2B ADC value +
// 8B timestamp).
const SampleSize = 10

// Sample is one waveform sample: a 16-bit ADC reading and its timestamp.
type Sample struct {
	ADC uint16
	TS  uint64
}

// Record is one digitized detector event. Field order here matches the
// canonical on-wire order (alphabetical by name), not a convenient Go
// struct layout. Encode/Decode never rely on native struct packing.
type Record struct {
	AnalogProbe1Type  uint8
	AnalogProbe2Type  uint8
	Channel           uint8
	DigitalProbe1Type uint8
	DigitalProbe2Type uint8
	DigitalProbe3Type uint8
	DigitalProbe4Type uint8
	DownSampleFactor  uint8
	Energy            uint16
	EnergyShort       uint16
	Flags             uint64
	Module            uint8
	TimeResolution    uint8
	TimeStampNs       float64
	Waveform          []Sample
}

// New returns a Record with DownSampleFactor defaulted to 1.
func New() Record {
	return Record{DownSampleFactor: 1}
}

// Size returns the exact number of bytes Encode will produce for r.
func Size(r Record) int {
	return FixedHeaderSize + SampleSize*len(r.Waveform)
}

// Encode appends the on-wire representation of r to buf and returns the
// extended slice. The waveformSize field written is always len(r.Waveform);
// callers must not pre-set any separate "claimed" count.
func Encode(r Record, buf []byte) []byte {
	start := len(buf)
	need := Size(r)
	if cap(buf)-start < need {
		grown := make([]byte, start, start+need)
		copy(grown, buf)
		buf = grown
	}
	buf = buf[:start+need]
	b := buf[start:]

	b[0] = r.AnalogProbe1Type
	b[1] = r.AnalogProbe2Type
	b[2] = r.Channel
	b[3] = r.DigitalProbe1Type
	b[4] = r.DigitalProbe2Type
	b[5] = r.DigitalProbe3Type
	b[6] = r.DigitalProbe4Type
	b[7] = r.DownSampleFactor
	binary.LittleEndian.PutUint16(b[8:10], r.Energy)
	binary.LittleEndian.PutUint16(b[10:12], r.EnergyShort)
	binary.LittleEndian.PutUint64(b[12:20], r.Flags)
	b[20] = r.Module
	b[21] = r.TimeResolution
	binary.LittleEndian.PutUint64(b[22:30], math.Float64bits(r.TimeStampNs))
	binary.LittleEndian.PutUint32(b[30:34], uint32(len(r.Waveform)))

	off := FixedHeaderSize
	for _, s := range r.Waveform {
		binary.LittleEndian.PutUint16(b[off:off+2], s.ADC)
		binary.LittleEndian.PutUint64(b[off+2:off+10], s.TS)
		off += SampleSize
	}
	return buf
}

// Decode parses one Record from the front of data and returns it along with
// the number of bytes consumed.
func Decode(data []byte) (Record, int, error) {
	if len(data) < FixedHeaderSize {
		return Record{}, 0, errs.Wrap(errs.KindInvalidData, fmt.Errorf("%w: need %d header bytes, have %d", errs.ErrShortBuffer, FixedHeaderSize, len(data)))
	}
	var r Record
	r.AnalogProbe1Type = data[0]
	r.AnalogProbe2Type = data[1]
	r.Channel = data[2]
	r.DigitalProbe1Type = data[3]
	r.DigitalProbe2Type = data[4]
	r.DigitalProbe3Type = data[5]
	r.DigitalProbe4Type = data[6]
	r.DownSampleFactor = data[7]
	r.Energy = binary.LittleEndian.Uint16(data[8:10])
	r.EnergyShort = binary.LittleEndian.Uint16(data[10:12])
	r.Flags = binary.LittleEndian.Uint64(data[12:20])
	r.Module = data[20]
	r.TimeResolution = data[21]
	r.TimeStampNs = math.Float64frombits(binary.LittleEndian.Uint64(data[22:30]))
	waveformSize := binary.LittleEndian.Uint32(data[30:34])

	need := FixedHeaderSize + int(waveformSize)*SampleSize
	if len(data) < need {
		return Record{}, 0, errs.Wrap(errs.KindInvalidData, fmt.Errorf("%w: waveform of %d samples needs %d bytes, have %d", errs.ErrShortBuffer, waveformSize, need, len(data)))
	}
	r.Waveform = make([]Sample, waveformSize)
	off := FixedHeaderSize
	for i := range r.Waveform {
		r.Waveform[i] = Sample{
			ADC: binary.LittleEndian.Uint16(data[off : off+2]),
			TS:  binary.LittleEndian.Uint64(data[off+2 : off+10]),
		}
		off += SampleSize
	}
	return r, need, nil
}

