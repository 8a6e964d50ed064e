package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aogaki/delila2-net/internal/event"
	"github.com/aogaki/delila2-net/internal/wire"
)

func TestFileSinkWritesDecodableFrame(t *testing.T) {
	dir := t.TempDir()
	s := newFileSink(&appConfig{outputPrefix: "run", outputDir: dir})

	if err := s.onStart(7); err != nil {
		t.Fatalf("onStart: %v", err)
	}
	records := []event.Record{event.New(), event.New()}
	if err := s.HandleBatch("src", records); err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if err := s.onStop(true); err != nil {
		t.Fatalf("onStop: %v", err)
	}

	path := filepath.Join(dir, "run000007.dat")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}

	ser := wire.NewSerializer(wire.Config{}, nil)
	decoded, err := ser.DecodeBatch(data)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(decoded) != len(records) {
		t.Fatalf("DecodeBatch returned %d records, want %d", len(decoded), len(records))
	}

	batches, events := s.Stats()
	if batches != 1 || events != 2 {
		t.Errorf("Stats() = %d, %d, want 1, 2", batches, events)
	}
}

func TestFileSinkRejectsBatchBeforeStart(t *testing.T) {
	s := newFileSink(&appConfig{outputPrefix: "run", outputDir: t.TempDir()})
	if err := s.HandleBatch("src", []event.Record{event.New()}); err == nil {
		t.Error("HandleBatch before onStart: want error, got nil")
	}
}

func TestFileSinkOnStopWithoutStartIsNoop(t *testing.T) {
	s := newFileSink(&appConfig{outputPrefix: "run", outputDir: t.TempDir()})
	if err := s.onStop(true); err != nil {
		t.Errorf("onStop without onStart: %v, want nil", err)
	}
}
