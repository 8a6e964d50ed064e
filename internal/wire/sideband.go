package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/aogaki/delila2-net/internal/errs"
)

// EncodeHeartbeat builds a Heartbeat frame payload: a null-terminated
// source-id string.
func EncodeHeartbeat(sourceID string) []byte {
	buf := make([]byte, 0, len(sourceID)+1)
	buf = append(buf, sourceID...)
	return append(buf, 0)
}

// DecodeHeartbeat extracts the source-id from a Heartbeat frame payload.
func DecodeHeartbeat(data []byte) (string, error) {
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}
	return "", errs.Wrap(errs.KindInvalidData, fmt.Errorf("%w: heartbeat payload missing null terminator", errs.ErrShortBuffer))
}

// EncodeEOS builds an EndOfStream frame payload: source-id + run number
// (u32).
func EncodeEOS(sourceID string, runNumber uint32) []byte {
	buf := make([]byte, 0, len(sourceID)+1+4)
	buf = append(buf, sourceID...)
	buf = append(buf, 0)
	var rn [4]byte
	binary.LittleEndian.PutUint32(rn[:], runNumber)
	return append(buf, rn[:]...)
}

// DecodeEOS extracts the source-id and run number from an EndOfStream frame
// payload.
func DecodeEOS(data []byte) (sourceID string, runNumber uint32, err error) {
	nul := -1
	for i, b := range data {
		if b == 0 {
			nul = i
			break
		}
	}
	if nul < 0 || len(data) < nul+1+4 {
		return "", 0, errs.Wrap(errs.KindInvalidData, fmt.Errorf("%w: malformed EOS payload", errs.ErrShortBuffer))
	}
	sourceID = string(data[:nul])
	runNumber = binary.LittleEndian.Uint32(data[nul+1 : nul+1+4])
	return sourceID, runNumber, nil
}
