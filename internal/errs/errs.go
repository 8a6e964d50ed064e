// Package errs defines the error-kind taxonomy shared by the wire codec,
// transport, and component layers, and the policy for turning a kind
// into an FSM transition or a metrics counter.
package errs

import "errors"

// Kind classifies an error for metrics/logging and FSM-transition purposes.
// It does not replace Go's normal error values; a Kind is attached to an
// error via Wrap and recovered via As.
type Kind int

const (
	// KindInvalidData: under-sized or malformed buffer. Drop frame, count, continue.
	KindInvalidData Kind = iota
	// KindInvalidFormat: magic mismatch or unknown version. Drop, count, continue.
	KindInvalidFormat
	// KindChecksumMismatch: hash compare failed. Drop, count, continue.
	KindChecksumMismatch
	// KindCompressionFailed: LZ4 decode size mismatch. Drop, count, continue.
	KindCompressionFailed
	// KindMemoryAllocation: buffer grow failed. Abort current op, surface.
	KindMemoryAllocation
	// KindSystemError: syscall failed (bind, file). Fatal for component, -> Error state.
	KindSystemError
	// KindConfigurationError: invalid address/params. Reject Initialize, stay Idle.
	KindConfigurationError
	// KindTimeoutError: control command not acked. Surface to Operator, retry.
	KindTimeoutError
	// KindSequenceError: gap detected. Log/count only, never drop.
	KindSequenceError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidData:
		return "invalid_data"
	case KindInvalidFormat:
		return "invalid_format"
	case KindChecksumMismatch:
		return "checksum_mismatch"
	case KindCompressionFailed:
		return "compression_failed"
	case KindMemoryAllocation:
		return "memory_allocation"
	case KindSystemError:
		return "system_error"
	case KindConfigurationError:
		return "configuration_error"
	case KindTimeoutError:
		return "timeout_error"
	case KindSequenceError:
		return "sequence_error"
	default:
		return "unknown"
	}
}

// Fatal reports whether errors of this kind should be treated as fatal for
// the owning component (transition to the FSM Error state) rather than
// merely counted and logged. Only SystemError during connect is
// unconditionally fatal; callers that know their context (e.g. a failed
// bind) should still route it through Fatal for the Error-transition
// decision.
func (k Kind) Fatal() bool {
	return k == KindSystemError
}

// KindError pairs a Kind with the underlying error.
type KindError struct {
	Kind Kind
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() error { return e.Err }

// Wrap attaches a Kind to err. Wrap(nil, ...) returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// As recovers the Kind from err, if any was attached via Wrap.
func As(err error) (Kind, bool) {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return 0, false
}

// Sentinel sub-errors for common conditions, wrapped with the taxonomy
// above so callers can classify with errors.Is as well as errs.As.
var (
	ErrShortBuffer    = errors.New("buffer too short")
	ErrBadMagic       = errors.New("bad magic")
	ErrSizeMismatch   = errors.New("declared size does not match payload")
	ErrChecksum       = errors.New("checksum mismatch")
	ErrDecompress     = errors.New("decompressed size mismatch")
	ErrNotConfigured  = errors.New("transport not configured")
	ErrNotConnected   = errors.New("transport not connected")
	ErrBadTransition  = errors.New("invalid fsm transition")
	ErrHookFailed     = errors.New("lifecycle hook failed")
	ErrCommandTimeout = errors.New("control command timed out")
)
