package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/aogaki/delila2-net/internal/errs"
	"github.com/aogaki/delila2-net/internal/wire"
)

// wireFrame is the on-the-TCP-connection envelope: [1-byte tag][4-byte LE
// length][payload]. It is distinct from the batch header (internal/wire);
// this envelope exists purely so a connection can multiplex Data,
// Heartbeat, and EndOfStream frames.
type wireFrame struct {
	Tag     wire.MessageType
	Payload []byte
}

const frameHeaderSize = 5 // 1 tag byte + 4 length bytes

// maxFrameSize guards against a corrupt/hostile length prefix causing an
// unbounded allocation.
const maxFrameSize = 256 * 1024 * 1024

func encodeFrame(tag wire.MessageType, payload []byte, buf []byte) []byte {
	start := len(buf)
	need := frameHeaderSize + len(payload)
	if cap(buf)-start < need {
		grown := make([]byte, start, start+need)
		copy(grown, buf)
		buf = grown
	}
	buf = buf[:start+need]
	buf[start] = byte(tag)
	binary.LittleEndian.PutUint32(buf[start+1:start+5], uint32(len(payload)))
	copy(buf[start+5:], payload)
	return buf
}

// readFrame blocks reading exactly one wireFrame from r.
func readFrame(r io.Reader) (wireFrame, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return wireFrame{}, err
	}
	tag := wire.MessageType(hdr[0])
	n := binary.LittleEndian.Uint32(hdr[1:5])
	if n > maxFrameSize {
		return wireFrame{}, errs.Wrap(errs.KindInvalidData, fmt.Errorf("frame length %d exceeds max %d", n, maxFrameSize))
	}
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return wireFrame{}, err
		}
	}
	return wireFrame{Tag: tag, Payload: payload}, nil
}
