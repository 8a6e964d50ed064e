package main

import (
	"testing"

	"github.com/aogaki/delila2-net/internal/event"
)

func TestRateSinkAccumulatesCounts(t *testing.T) {
	s := newRateSink()
	for i := 0; i < 3; i++ {
		if err := s.HandleBatch("src", []event.Record{event.New(), event.New()}); err != nil {
			t.Fatalf("HandleBatch: %v", err)
		}
	}
	batches, events := s.Stats()
	if batches != 3 || events != 6 {
		t.Errorf("Stats() = %d, %d, want 3, 6", batches, events)
	}
}
