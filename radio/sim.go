package radio

import (
	"context"
	"sync"
	"time"
)

// LogPrintf matches the sx1276/sx1231 driver logging hook so a SimRadio
// can be dropped into the same wiring as a hardware driver.
type LogPrintf func(format string, v ...interface{})

// SimRadio is an in-memory Radio for tests and simulation. Frames
// written to Inbound are delivered to the next Receive call; frames
// passed to Send are appended to Sent for inspection.
type SimRadio struct {
	Inbound chan RxPacket
	Log     LogPrintf

	// Now stamps Send's TX-end return value; defaults to time.Now. Tests
	// driving a VirtualClock set this to clock.Now so TX-end lines up
	// with the same timeline RX windows are scheduled against.
	Now func() time.Time

	mu    sync.Mutex
	Sent  []SentFrame
	txCfg Config
	rxCfg Config
}

// SentFrame records one transmitted frame for assertions in tests.
type SentFrame struct {
	Config Config
	Data   []byte
	At     time.Time
}

// NewSimRadio creates a SimRadio with a small inbound buffer, mirroring
// the rxChanCap buffering used by the hardware drivers.
func NewSimRadio() *SimRadio {
	return &SimRadio{Inbound: make(chan RxPacket, 4)}
}

func (r *SimRadio) logf(format string, v ...interface{}) {
	if r.Log != nil {
		r.Log(format, v...)
	}
}

// SetTXConfig implements Radio.
func (r *SimRadio) SetTXConfig(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txCfg = cfg
	return nil
}

// Send implements Radio. It does not model airtime; callers that need
// to assert on the simulated TX duration should sleep against a Timer
// themselves before calling Receive.
func (r *SimRadio) Send(ctx context.Context, data []byte) (time.Time, error) {
	r.mu.Lock()
	cfg := r.txCfg
	r.mu.Unlock()

	nowFn := r.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn()
	r.mu.Lock()
	r.Sent = append(r.Sent, SentFrame{Config: cfg, Data: append([]byte(nil), data...), At: now})
	r.mu.Unlock()

	r.logf("sim radio: sent %d bytes on %d Hz", len(data), cfg.Frequency)
	return now, nil
}

// SetRXConfig implements Radio.
func (r *SimRadio) SetRXConfig(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rxCfg = cfg
	return nil
}

// Receive implements Radio, blocking on Inbound until a frame arrives
// or ctx is cancelled.
func (r *SimRadio) Receive(ctx context.Context) (RxPacket, error) {
	select {
	case pkt := <-r.Inbound:
		return pkt, nil
	case <-ctx.Done():
		return RxPacket{}, ctx.Err()
	}
}

// Sleep implements Radio; SimRadio has no power state to change.
func (r *SimRadio) Sleep() error {
	return nil
}

// Deliver queues pkt for the next Receive call, simulating a downlink
// arriving during an open RX window.
func (r *SimRadio) Deliver(pkt RxPacket) {
	r.Inbound <- pkt
}
