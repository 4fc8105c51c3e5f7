package session

import (
	"context"
	"errors"

	"github.com/lora-edge/macd"
)

// ErrNotFound is returned by Store methods when no record exists for the
// given key.
var ErrNotFound = errors.New("session: not found")

// Store persists the three record kinds a device's MAC engine needs
// across restarts: Identity (set once, at provisioning/join time),
// Session (rewritten on every accepted state change) and the DevNonce
// counter (rewritten on every join attempt). Each kind lives at its own
// key so that a DevNonce write — which must survive even a failed join —
// is never entangled with a Session write.
type Store interface {
	LoadIdentity(ctx context.Context, devEUI lorawan.EUI64) (*Identity, error)
	PersistIdentity(ctx context.Context, id Identity) error

	LoadSession(ctx context.Context, devEUI lorawan.EUI64) (*Session, error)
	PersistSession(ctx context.Context, devEUI lorawan.EUI64, s Session) error
	ClearSession(ctx context.Context, devEUI lorawan.EUI64) error

	LoadDevNonce(ctx context.Context, devEUI lorawan.EUI64) (*DevNonceRecord, error)
	PersistDevNonce(ctx context.Context, devEUI lorawan.EUI64, r DevNonceRecord) error
}
