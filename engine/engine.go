// Package engine implements the Class-A MAC state machine (spec.md
// §4.6): it orchestrates the OTAA join procedure and the Send/Receive
// data cycle, owns ADR back-off and confirmed-uplink retry, and is the
// only component that drives the Radio/Timer/RNG capability set.
package engine

import (
	"context"
	"sync"

	"github.com/lora-edge/macd/band"
	"github.com/lora-edge/macd/maccommand"
	"github.com/lora-edge/macd/radio"
	"github.com/lora-edge/macd/scheduler"
	"github.com/lora-edge/macd/session"
	"github.com/sirupsen/logrus"

	"github.com/lora-edge/macd"
)

// Config wires the engine's collaborators: identity, persistence,
// region table and the external capability set (spec.md §6).
type Config struct {
	DevEUI   lorawan.EUI64
	JoinEUI  lorawan.EUI64
	NwkKey   lorawan.AES128Key
	Region   band.Band
	Store    session.Store
	Radio    radio.Radio
	Timer    radio.Timer
	RNG      radio.RNG
	Status   maccommand.DeviceStatusSource
	Logger   logrus.FieldLogger
	MaxFCntGap uint32
}

// SendOutcome is the result of a successful Send call (spec.md §6).
type SendOutcome struct {
	Downlink *Downlink
	Ack      bool
}

// Downlink carries an application payload delivered with a send outcome.
type Downlink struct {
	Port    uint8
	Payload []byte
}

// Engine is the MAC state machine for one device. Callers use Join,
// Send and Events; all other state is internal.
type Engine struct {
	cfg Config

	mu     sync.Mutex
	state  State
	sess   *session.Session
	mac    *maccommand.Processor
	sched  *scheduler.Scheduler

	Events chan Event
}

// New creates an Engine in the Unjoined state. If a Session is already
// persisted for cfg.DevEUI, the engine resumes it directly into Idle.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		state:  StateUnjoined,
		mac:    maccommand.NewProcessor(cfg.Status),
		sched:  scheduler.New(cfg.Region.Name(), randSource{rng: cfg.RNG}),
		Events: make(chan Event, 16),
	}

	if sess, err := cfg.Store.LoadSession(ctx, cfg.DevEUI); err == nil {
		e.sess = sess
		e.state = StateIdle
	} else if err != session.ErrNotFound {
		return nil, err
	}

	return e, nil
}

func (e *Engine) logger() logrus.FieldLogger {
	if e.cfg.Logger != nil {
		return e.cfg.Logger
	}
	return logrus.StandardLogger()
}

func (e *Engine) setState(s State) {
	from := e.state
	e.state = s
	if from == s {
		return
	}
	select {
	case e.Events <- EventMacStateChanged{From: from, To: s}:
	default:
	}
}

// randSource adapts radio.RNG to math/rand.Source for the scheduler.
type randSource struct {
	rng radio.RNG
}

func (r randSource) Int63() int64 {
	v := uint64(r.rng.Uint32())<<32 | uint64(r.rng.Uint32())
	return int64(v & (1<<63 - 1))
}

func (r randSource) Seed(int64) {}

// nextDevNonce loads, increments and persists the DevNonce counter.
// Rollover of the 16-bit wire value is terminal (spec.md §6:
// NonceExhausted) since a 1.0.4 network never accepts a repeated or
// decreasing DevNonce.
func (e *Engine) nextDevNonce(ctx context.Context) (lorawan.DevNonce, error) {
	rec, err := e.cfg.Store.LoadDevNonce(ctx, e.cfg.DevEUI)
	if err != nil && err != session.ErrNotFound {
		return 0, err
	}
	var next lorawan.DevNonce
	if rec != nil {
		next = rec.Next
	}
	if next == 65535 {
		return 0, ErrNonceExhausted
	}

	if err := e.cfg.Store.PersistDevNonce(ctx, e.cfg.DevEUI, session.DevNonceRecord{Next: next + 1}); err != nil {
		return 0, err
	}
	return next, nil
}
