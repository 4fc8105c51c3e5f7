package lorawan

import (
	"encoding/base64"
	"fmt"
)

// PHYPayload represents the physical payload envelope shared by every
// LoRaWAN frame: a 1 byte MAC header, the (still encoded, possibly
// encrypted) MACPayload bytes, and a 4 byte MIC. Interpreting
// MACPayloadBytes requires knowing MHDR.MType() and, for data frames,
// the session keys — that is done by the codec.go helpers, not here.
type PHYPayload struct {
	MHDR            MHDR
	MACPayloadBytes []byte
	MIC             MIC
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p PHYPayload) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 1+len(p.MACPayloadBytes)+4)
	out = append(out, byte(p.MHDR))
	out = append(out, p.MACPayloadBytes...)
	out = append(out, p.MIC[:]...)
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *PHYPayload) UnmarshalBinary(data []byte) error {
	if len(data) < 5 {
		return fmt.Errorf("lorawan: at least 5 bytes are needed to decode a PHYPayload, got %d", len(data))
	}

	p.MHDR = MHDR(data[0])
	p.MACPayloadBytes = make([]byte, len(data)-5)
	copy(p.MACPayloadBytes, data[1:len(data)-4])
	copy(p.MIC[:], data[len(data)-4:])
	return nil
}

// MarshalText encodes the PHYPayload as base64, the wire format used when a
// radio abstraction layer exchanges frames out-of-band (e.g. in the
// simulator or over the semtech packet-forwarder protocol).
func (p PHYPayload) MarshalText() ([]byte, error) {
	b, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return []byte(base64.StdEncoding.EncodeToString(b)), nil
}

// IsUplink returns whether the MType indicates an uplink frame.
func (p PHYPayload) IsUplink() bool {
	switch p.MHDR.MType() {
	case JoinRequest, UnconfirmedDataUp, ConfirmedDataUp:
		return true
	default:
		return false
	}
}
