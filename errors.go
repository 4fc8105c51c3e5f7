package lorawan

import "errors"

// Classified codec errors (spec.md §7, "protocol" partition). The codec
// never retries; it returns one of these and the caller (package engine)
// decides what to do.
var (
	// ErrMIC is returned when a frame's MIC does not validate under the
	// expected key.
	ErrMIC = errors.New("lorawan: MIC mismatch")
	// ErrAddrMismatch is returned when a data frame's DevAddr does not
	// match the active session.
	ErrAddrMismatch = errors.New("lorawan: DevAddr mismatch")
	// ErrReplay is returned when a downlink frame-counter is not greater
	// than the last accepted value for its counter (NFCntDown/AFCntDown).
	ErrReplay = errors.New("lorawan: frame-counter replay")
	// ErrMalformed is returned for structurally invalid frames.
	ErrMalformed = errors.New("lorawan: malformed frame")
)
