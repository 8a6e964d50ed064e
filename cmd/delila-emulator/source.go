package main

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/aogaki/delila2-net/internal/event"
)

// emulatorSource generates synthetic detector events, round-robining
// currentChannel through num_channels between batches:
// analogProbe1Type/analogProbe2Type/timeResolution fixed to realistic
// constants, energy drawn from a uniform distribution, energyShort =
// energy/2.
type emulatorSource struct {
	module      uint8
	channels    int
	waveformLen int
	batchSize   int
	minInterval time.Duration

	rng        *rand.Rand
	nextAt     time.Time
	curChannel int

	batchesSent atomic.Uint64
	eventsSent  atomic.Uint64
}

func newEmulatorSource(cfg *appConfig) *emulatorSource {
	s := &emulatorSource{
		module:      cfg.module,
		channels:    cfg.channels,
		waveformLen: cfg.waveformLen,
		batchSize:   cfg.eventsPerBatch,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if cfg.ratePerSec > 0 {
		s.minInterval = time.Duration(float64(time.Second) / cfg.ratePerSec)
	}
	return s
}

// NextBatch implements component.Source. It always has data ready (an
// emulator never idles waiting on an upstream source), but honors the
// configured rate by returning ok=false until minInterval has elapsed,
// which lets the sender loop interleave heartbeats during the gap.
func (s *emulatorSource) NextBatch() ([]event.Record, bool) {
	if s.minInterval > 0 {
		now := time.Now()
		if now.Before(s.nextAt) {
			return nil, false
		}
		s.nextAt = now.Add(s.minInterval)
	}

	records := make([]event.Record, s.batchSize)
	for i := range records {
		records[i] = s.generate()
	}
	s.batchesSent.Add(1)
	s.eventsSent.Add(uint64(s.batchSize))
	s.curChannel = (s.curChannel + 1) % s.channels
	return records, true
}

func (s *emulatorSource) generate() event.Record {
	r := event.New()
	r.Module = s.module
	r.Channel = uint8(s.curChannel)
	r.TimeStampNs = float64(time.Now().UnixNano())
	r.Energy = uint16(100 + s.rng.Intn(3900))
	r.EnergyShort = r.Energy / 2
	r.AnalogProbe1Type = 0 // input signal
	r.AnalogProbe2Type = 1 // RC-CR signal
	r.TimeResolution = 2   // 2ns
	if s.waveformLen > 0 {
		r.Waveform = make([]event.Sample, s.waveformLen)
		ts := uint64(r.TimeStampNs)
		for i := range r.Waveform {
			r.Waveform[i] = event.Sample{ADC: uint16(s.rng.Intn(1 << 14)), TS: ts + uint64(i)}
		}
	}
	return r
}

// Stats returns the cumulative counters the status loop reports.
func (s *emulatorSource) Stats() (batches, events uint64) {
	return s.batchesSent.Load(), s.eventsSent.Load()
}
