package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/aogaki/delila2-net/internal/errs"
)

// HeaderSize is the fixed size, in bytes, of a BatchHeader.
const HeaderSize = 64

// Magic is the constant batch-header magic number, stored little-endian.
const Magic uint64 = 0x44454C494C413200

// FormatVersion is the only format version this package currently emits
// and accepts.
const FormatVersion uint32 = 1

// Header is the 64-byte fixed-layout header that precedes every serialized
// batch.
type Header struct {
	Magic             uint64
	SequenceNumber    uint64
	FormatVersion     uint32
	HeaderSize        uint32
	EventCount        uint32
	UncompressedSize  uint32
	CompressedSize    uint32
	Checksum          uint32
	TimestampNs       uint64
	// Reserved is always written/read as 16 zero bytes.
}

// Compressed reports whether the payload that follows this header is
// actually compressed: present iff compressed_size < uncompressed_size.
func (h Header) Compressed() bool { return h.CompressedSize < h.UncompressedSize }

// Encode appends the 64-byte on-wire representation of h to buf.
func (h Header) Encode(buf []byte) []byte {
	start := len(buf)
	if cap(buf)-start < HeaderSize {
		grown := make([]byte, start, start+HeaderSize)
		copy(grown, buf)
		buf = grown
	}
	buf = buf[:start+HeaderSize]
	b := buf[start:]

	binary.LittleEndian.PutUint64(b[0:8], h.Magic)
	binary.LittleEndian.PutUint64(b[8:16], h.SequenceNumber)
	binary.LittleEndian.PutUint32(b[16:20], h.FormatVersion)
	binary.LittleEndian.PutUint32(b[20:24], h.HeaderSize)
	binary.LittleEndian.PutUint32(b[24:28], h.EventCount)
	binary.LittleEndian.PutUint32(b[28:32], h.UncompressedSize)
	binary.LittleEndian.PutUint32(b[32:36], h.CompressedSize)
	binary.LittleEndian.PutUint32(b[36:40], h.Checksum)
	binary.LittleEndian.PutUint64(b[40:48], h.TimestampNs)
	for i := 48; i < 64; i++ {
		b[i] = 0
	}
	return buf
}

// DecodeHeader parses a Header from the front of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errs.Wrap(errs.KindInvalidData, fmt.Errorf("%w: need %d header bytes, have %d", errs.ErrShortBuffer, HeaderSize, len(data)))
	}
	var h Header
	h.Magic = binary.LittleEndian.Uint64(data[0:8])
	if h.Magic != Magic {
		return Header{}, errs.Wrap(errs.KindInvalidFormat, fmt.Errorf("%w: got %#x, want %#x", errs.ErrBadMagic, h.Magic, Magic))
	}
	h.SequenceNumber = binary.LittleEndian.Uint64(data[8:16])
	h.FormatVersion = binary.LittleEndian.Uint32(data[16:20])
	h.HeaderSize = binary.LittleEndian.Uint32(data[20:24])
	h.EventCount = binary.LittleEndian.Uint32(data[24:28])
	h.UncompressedSize = binary.LittleEndian.Uint32(data[28:32])
	h.CompressedSize = binary.LittleEndian.Uint32(data[32:36])
	h.Checksum = binary.LittleEndian.Uint32(data[36:40])
	h.TimestampNs = binary.LittleEndian.Uint64(data[40:48])
	if h.FormatVersion != FormatVersion {
		return Header{}, errs.Wrap(errs.KindInvalidFormat, fmt.Errorf("unsupported format_version %d", h.FormatVersion))
	}
	return h, nil
}
