package main

import "testing"

func TestEmulatorSourceGeneratesBatches(t *testing.T) {
	cfg := &appConfig{channels: 4, eventsPerBatch: 10, module: 3}
	s := newEmulatorSource(cfg)

	records, ok := s.NextBatch()
	if !ok {
		t.Fatal("NextBatch() ok = false, want true with no rate limit configured")
	}
	if len(records) != 10 {
		t.Fatalf("len(records) = %d, want 10", len(records))
	}
	for _, r := range records {
		if r.Module != 3 {
			t.Errorf("record.Module = %d, want 3", r.Module)
		}
		if r.EnergyShort != r.Energy/2 {
			t.Errorf("record.EnergyShort = %d, want %d", r.EnergyShort, r.Energy/2)
		}
	}
	batches, events := s.Stats()
	if batches != 1 || events != 10 {
		t.Errorf("Stats() = %d, %d, want 1, 10", batches, events)
	}
}

func TestEmulatorSourceRotatesChannels(t *testing.T) {
	cfg := &appConfig{channels: 3, eventsPerBatch: 1}
	s := newEmulatorSource(cfg)

	seen := make(map[uint8]bool)
	for i := 0; i < 3; i++ {
		records, ok := s.NextBatch()
		if !ok {
			t.Fatalf("NextBatch() #%d ok = false", i)
		}
		seen[records[0].Channel] = true
	}
	if len(seen) != 3 {
		t.Errorf("rotated through %d distinct channels, want 3: %v", len(seen), seen)
	}
}

func TestEmulatorSourceIncludesWaveform(t *testing.T) {
	cfg := &appConfig{channels: 1, eventsPerBatch: 1, waveformLen: 16}
	s := newEmulatorSource(cfg)
	records, ok := s.NextBatch()
	if !ok {
		t.Fatal("NextBatch() ok = false")
	}
	if len(records[0].Waveform) != 16 {
		t.Errorf("len(Waveform) = %d, want 16", len(records[0].Waveform))
	}
}

func TestEmulatorSourceRespectsRateLimit(t *testing.T) {
	cfg := &appConfig{channels: 1, eventsPerBatch: 1, ratePerSec: 1}
	s := newEmulatorSource(cfg)

	if _, ok := s.NextBatch(); !ok {
		t.Fatal("first NextBatch() should always succeed")
	}
	if _, ok := s.NextBatch(); ok {
		t.Error("second immediate NextBatch() should be rate-limited to ok=false")
	}
}
