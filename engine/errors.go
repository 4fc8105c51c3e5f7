package engine

import "errors"

// Join errors (spec.md §6: JoinError).
var (
	ErrNoAck          = errors.New("engine: no join-accept received before RX2 closed")
	ErrNonceExhausted = errors.New("engine: DevNonce counter exhausted, join is no longer possible")
)

// Send errors (spec.md §6: SendError).
var (
	ErrNotJoined       = errors.New("engine: device has no active session")
	ErrPayloadTooLarge = errors.New("engine: payload exceeds the max size for the chosen data rate")
	ErrNoAirtime       = errors.New("engine: duty-cycle budget exhausted before the caller's deadline")
	ErrNoChannel       = errors.New("engine: no enabled channel supports the requested data rate")
	ErrRadioFail       = errors.New("engine: radio driver reported a transport failure")
	ErrFCntUpExhausted = errors.New("engine: FCntUp counter exhausted, session must be rejoined")
)

// ErrBusy is returned when a caller attempts a second Join/Send while one
// is already in progress (spec.md §5: "Concurrent calls are either
// queued... or rejected with Busy").
var ErrBusy = errors.New("engine: a join or send operation is already in progress")

// ErrCancelled is returned instead of context.Canceled so callers can match
// it against the abstract API's Cancelled error kind directly.
var ErrCancelled = errors.New("engine: operation cancelled")
