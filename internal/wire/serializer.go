// Package wire implements the Binary Serializer (C2): batch<->bytes
// encoding with an always-on 32-bit checksum and optional LZ4 compression,
// plus the Batch Header layout and MessageType tag it shares with the
// transport layer.
package wire

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aogaki/delila2-net/internal/errs"
	"github.com/aogaki/delila2-net/internal/event"
	"github.com/aogaki/delila2-net/internal/pool"
	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"
)

// MinMessageSize is the uncompressed-payload threshold below which
// compression is never attempted, regardless of configuration.
const MinMessageSize = 102400

// Config holds the Serializer's recognized configuration set.
type Config struct {
	CompressionEnabled bool
	// CompressionLevel is clamped to [1, 12]; higher is slower and smaller.
	CompressionLevel int
}

func (c Config) clampedLevel() int {
	l := c.CompressionLevel
	if l < 1 {
		l = 1
	}
	if l > 12 {
		l = 12
	}
	return l
}

// Serializer encodes/decodes batches of event.Record. A Serializer owns a
// monotonic per-instance sequence counter and a pool of payload buffers.
type Serializer struct {
	cfg  Config
	seq  atomic.Uint64
	pool *pool.Pool

	hcPool sync.Pool // pooled *lz4.CompressorHC, one per compression level in practice
}

// NewSerializer creates a Serializer with the given configuration, borrowing
// payload buffers from p. If p is nil, an unbounded internal pool is used.
func NewSerializer(cfg Config, p *pool.Pool) *Serializer {
	if p == nil {
		p = pool.New(0)
	}
	s := &Serializer{cfg: cfg, pool: p}
	s.hcPool.New = func() any { return &lz4.CompressorHC{} }
	return s
}

// NextSequence returns the sequence number the next EncodeBatch call will
// use, without consuming it. Exposed for tests and diagnostics.
func (s *Serializer) NextSequence() uint64 { return s.seq.Load() }

// EncodeBatch serializes records into a framed, checksummed, optionally
// compressed byte slice: [header || on-wire payload].
func (s *Serializer) EncodeBatch(records []event.Record) ([]byte, error) {
	payloadSize := 0
	for _, r := range records {
		payloadSize += event.Size(r)
	}

	payloadBuf := s.pool.Get()
	defer s.pool.Put(payloadBuf)
	payloadBuf.Grow(payloadSize)
	payload := payloadBuf.B[:0]
	for _, r := range records {
		payload = event.Encode(r, payload)
	}
	if len(payload) != payloadSize {
		return nil, errs.Wrap(errs.KindMemoryAllocation, fmt.Errorf("internal: payload size mismatch %d != %d", len(payload), payloadSize))
	}

	h := Header{
		Magic:            Magic,
		SequenceNumber:   s.seq.Add(1) - 1,
		FormatVersion:    FormatVersion,
		HeaderSize:       HeaderSize,
		EventCount:       uint32(len(records)),
		UncompressedSize: uint32(payloadSize),
	}

	onWire := payload
	if s.cfg.CompressionEnabled && payloadSize >= MinMessageSize {
		compressed, err := s.compress(payload)
		if err == nil && len(compressed) < len(payload) {
			onWire = compressed
		}
		// Falls back silently to uncompressed on any compression failure or
		// non-improving result.
	}
	h.CompressedSize = uint32(len(onWire))
	h.Checksum = checksum(payload)

	out := make([]byte, 0, HeaderSize+len(onWire))
	out = h.Encode(out)
	out = append(out, onWire...)
	return out, nil
}

// DecodeBatch is the inverse of EncodeBatch.
func (s *Serializer) DecodeBatch(data []byte) ([]event.Record, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) != HeaderSize+h.CompressedSize {
		return nil, errs.Wrap(errs.KindInvalidData, fmt.Errorf("%w: have %d, want %d", errs.ErrSizeMismatch, len(data), HeaderSize+h.CompressedSize))
	}
	onWire := data[HeaderSize:]

	var payload []byte
	if h.Compressed() {
		dst := make([]byte, h.UncompressedSize)
		n, err := lz4.UncompressBlock(onWire, dst)
		if err != nil || uint32(n) != h.UncompressedSize {
			return nil, errs.Wrap(errs.KindCompressionFailed, fmt.Errorf("%w: %v", errs.ErrDecompress, err))
		}
		payload = dst
	} else {
		payload = onWire
	}

	if checksum(payload) != h.Checksum {
		return nil, errs.Wrap(errs.KindChecksumMismatch, errs.ErrChecksum)
	}

	records := make([]event.Record, 0, h.EventCount)
	off := 0
	for i := uint32(0); i < h.EventCount; i++ {
		r, n, err := event.Decode(payload[off:])
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidData, fmt.Errorf("record %d: %w", i, err))
		}
		records = append(records, r)
		off += n
	}
	if off != len(payload) {
		return nil, errs.Wrap(errs.KindInvalidData, fmt.Errorf("%d trailing bytes after %d records", len(payload)-off, h.EventCount))
	}
	return records, nil
}

func (s *Serializer) compress(data []byte) ([]byte, error) {
	hc, _ := s.hcPool.Get().(*lz4.CompressorHC)
	defer s.hcPool.Put(hc)
	hc.Level = lz4.CompressionLevel(s.cfg.clampedLevel())

	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := hc.CompressBlock(data, dst)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// CompressBlock returns n==0 when the data is incompressible.
		return nil, fmt.Errorf("lz4: incompressible")
	}
	return dst[:n], nil
}

// checksum computes the always-on 32-bit hash used for the batch header,
// truncating xxhash's 64-bit sum to its low 32 bits.
func checksum(data []byte) uint32 {
	return uint32(xxhash.Sum64(data))
}
