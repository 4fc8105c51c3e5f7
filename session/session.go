// Package session holds the persisted per-device MAC state: identity,
// session keys and counters, and negotiated channel/ADR parameters. The
// MAC-command processor's sticky-response queue is not part of it; that
// queue lives in memory in maccommand.Processor. It is the storage side
// of the engine described in package engine.
package session

import (
	"time"

	"github.com/lora-edge/macd"
)

// Identity is the fixed, never-renegotiated identity of an end-device.
type Identity struct {
	DevEUI  lorawan.EUI64
	JoinEUI lorawan.EUI64
	NwkKey  lorawan.AES128Key
}

// ADRState holds the Adaptive Data Rate back-off bookkeeping (spec.md §4.6).
type ADRState struct {
	// Enabled mirrors the ADR bit the device sets on its own uplinks.
	Enabled bool

	// ADRAckCnt counts uplinks sent since the last downlink was received
	// with ADRAckReq unset in response. Reset to 0 on any received
	// downlink frame.
	ADRAckCnt uint32

	// TXPowerIndex and DataRate are the currently negotiated uplink
	// parameters; LinkADRReq may change both atomically.
	TXPowerIndex uint8
	DataRate     uint8
}

// Session is the mutable, post-join (or post-ABP-install) MAC state for
// one device.
type Session struct {
	DevAddr lorawan.DevAddr
	NwkSKey lorawan.AES128Key
	AppSKey lorawan.AES128Key

	// Region names the band.Region this device's channel plan and CFList
	// were negotiated under (e.g. "EU868").
	Region string

	// FCntUp is the next frame-counter value to use on uplink.
	FCntUp uint32
	// NFCntDown/AFCntDown are the next-expected downlink counters for
	// network-command and application frames respectively (spec.md §3).
	NFCntDown uint32
	AFCntDown uint32

	ADR ADRState

	// NbTrans is the number of times a confirmed (or ADR-recommended)
	// uplink is transmitted before giving up on an ACK, 1..15.
	NbTrans uint8

	// RX1DROffset, RX2DataRate, RX2Frequency and RXDelay are the device's
	// currently active RX-window parameters; RXParamSetupReq/
	// RXTimingSetupReq stage changes to these atomically on ack.
	RX1DROffset uint8
	RX2DataRate uint8
	RX2Frequency uint32
	RXDelay      time.Duration

	// MaxDCycle is the network-set duty-cycle ceiling from DutyCycleReq
	// (255 means "as restrictive as regional default").
	MaxDCycle uint8

	// DwellTimeUplink, DwellTimeDownlink and MaxEIRP hold the values last
	// applied from a TXParamSetupReq (dwell-time regions only).
	DwellTimeUplink   lorawan.DwellTime
	DwellTimeDownlink lorawan.DwellTime
	MaxEIRP           uint8

	// EnabledChannels is the set of uplink channel indices this device
	// currently has enabled, mirroring the network's last accepted
	// LinkADRReq/NewChannelReq/CFList state.
	EnabledChannels []int

	// DLChannelOverrides holds per-channel downlink frequency overrides
	// installed via DLChannelReq, keyed by channel index.
	DLChannelOverrides map[uint8]uint32

	JoinedAt time.Time
}

// DevNonceRecord tracks the OTAA DevNonce counter. spec.md §9 resolves the
// Open Question on DevNonce monotonicity: devices keep a strictly
// increasing counter across reboots (RFC: 1.0.4 requires the network to
// reject a non-increasing DevNonce, so a device that doesn't persist this
// value will never join again after a restart mid-series).
type DevNonceRecord struct {
	Next lorawan.DevNonce
}
