// Package ctrlproto defines the control-plane message set carried over a
// Data Component's command channel: StateChangeCommand/Response,
// HeartbeatMessage, and StatusReport, plus a small length-prefixed codec
// shared by internal/component (server side) and internal/operator (client
// side). The wire encoding on the control channel is implementation-defined;
// this module uses length-prefixed JSON, favoring plain stdlib encodings
// over a bespoke binary format on the control plane (the binary format is
// reserved for the high-rate data channel).
package ctrlproto

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aogaki/delila2-net/internal/errs"
	"github.com/aogaki/delila2-net/internal/fsm"
)

// MaxMessageSize bounds a single control message, guarding against a
// corrupt or hostile length prefix.
const MaxMessageSize = 1 << 20

// StateChangeCommand requests a lifecycle transition on a Data Component.
type StateChangeCommand struct {
	ModuleID    string    `json:"module_id"`
	TargetState fsm.State `json:"target_state"`
	CommandID   string    `json:"command_id"`
	TimestampNs int64     `json:"timestamp_ns"`
	// RunNumber is only meaningful when TargetState == fsm.Running.
	RunNumber uint32 `json:"run_number,omitempty"`
	// Graceful is only meaningful when TargetState == fsm.Configured (a Stop).
	Graceful bool `json:"graceful,omitempty"`
}

// StateChangeResponse is the reply to a StateChangeCommand.
type StateChangeResponse struct {
	ModuleID     string    `json:"module_id"`
	CommandID    string    `json:"command_id"`
	Success      bool      `json:"success"`
	CurrentState fsm.State `json:"current_state"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// HeartbeatMessage is the control-channel keep-alive (distinct from the
// inline data-channel Heartbeat frame, used by the Operator to poll
// component liveness/state out of band).
type HeartbeatMessage struct {
	ModuleID string    `json:"module_id"`
	Status   fsm.State `json:"status"`
}

// StatusReport is published periodically on the status channel. State
// rides along so an Operator subscribed to the status channel can answer
// component_status()/is_all_in_state() without a separate control-channel
// round trip.
type StatusReport struct {
	ModuleID      string    `json:"module_id"`
	State         fsm.State `json:"state"`
	DataRateMbps  float64   `json:"data_rate_mbps"`
	ErrorCounter  uint64    `json:"error_counter"`
	ProcessedByte uint64    `json:"processed_bytes"`
}

// WriteMessage encodes v as JSON and writes it to w as [4-byte LE
// length][payload].
func WriteMessage(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errs.Wrap(errs.KindInvalidData, fmt.Errorf("ctrlproto: marshal: %w", err))
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// ReadMessage reads one length-prefixed JSON message from r into v.
func ReadMessage(r io.Reader, v any) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxMessageSize {
		return errs.Wrap(errs.KindInvalidData, fmt.Errorf("ctrlproto: message of %d bytes exceeds max %d", n, MaxMessageSize))
	}
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errs.Wrap(errs.KindInvalidData, fmt.Errorf("ctrlproto: unmarshal: %w", err))
	}
	return nil
}
