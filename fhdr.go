package lorawan

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FCtrl represents the frame control field.
type FCtrl byte

// NewFCtrl returns a new FCtrl. Note that for fOptsLen only the first
// four bits are used (and thus the max. allowed number is 15).
func NewFCtrl(adr, adrAckReq, ack, fPending bool, fOptsLen uint8) (FCtrl, error) {
	var fc FCtrl
	if fOptsLen > 15 {
		return fc, errors.New("lorawan: the max fOptsLen is 15")
	}

	if adr {
		fc ^= 1 << 7
	}
	if adrAckReq {
		fc ^= 1 << 6
	}
	if ack {
		fc ^= 1 << 5
	}
	if fPending {
		fc ^= 1 << 4
	}

	return fc ^ FCtrl(fOptsLen), nil
}

// ADR returns whether the adaptive data rate control bit is set.
func (c FCtrl) ADR() bool {
	return c&(1<<7) > 0
}

// ADRACKReq returns whether the ADR-ack-request bit is set.
func (c FCtrl) ADRACKReq() bool {
	return c&(1<<6) > 0
}

// ACK returns whether the acknowledgment bit is set.
func (c FCtrl) ACK() bool {
	return c&(1<<5) > 0
}

// FPending returns whether the network has more downlink data pending.
// Only meaningful on downlink frames.
func (c FCtrl) FPending() bool {
	return c&(1<<4) > 0
}

// FOptsLen returns the number of FOpts bytes carried in the FHDR.
func (c FCtrl) FOptsLen() uint8 {
	return uint8(c) & 0x0f
}

// FHDR represents the frame header, shared by data uplink and downlink
// MACPayloads.
type FHDR struct {
	DevAddr DevAddr
	FCtrl   FCtrl
	FCnt    uint16 // transmitted truncated to the 16 LSBs
	FOpts   []byte // piggybacked MAC commands, at most 15 bytes, never encrypted for 1.0.x
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h FHDR) MarshalBinary() ([]byte, error) {
	if len(h.FOpts) > 15 {
		return nil, errors.New("lorawan: max FOpts size is 15 bytes")
	}

	fCtrl, err := NewFCtrl(h.FCtrl.ADR(), h.FCtrl.ADRACKReq(), h.FCtrl.ACK(), h.FCtrl.FPending(), uint8(len(h.FOpts)))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 7+len(h.FOpts))
	addr, err := h.DevAddr.MarshalBinary()
	if err != nil {
		return nil, err
	}
	// DevAddr is transmitted least-significant-byte first.
	for i := len(addr) - 1; i >= 0; i-- {
		out = append(out, addr[i])
	}

	out = append(out, byte(fCtrl))

	fcnt := make([]byte, 2)
	binary.LittleEndian.PutUint16(fcnt, h.FCnt)
	out = append(out, fcnt...)
	out = append(out, h.FOpts...)

	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *FHDR) UnmarshalBinary(data []byte) error {
	if len(data) < 7 {
		return fmt.Errorf("lorawan: at least 7 bytes expected for FHDR, got %d", len(data))
	}

	for i := 0; i < 4; i++ {
		h.DevAddr[3-i] = data[i]
	}
	h.FCtrl = FCtrl(data[4])
	h.FCnt = binary.LittleEndian.Uint16(data[5:7])

	fOptsLen := int(h.FCtrl.FOptsLen())
	if len(data) < 7+fOptsLen {
		return fmt.Errorf("lorawan: FOpts truncated, expected %d bytes", fOptsLen)
	}
	h.FOpts = make([]byte, fOptsLen)
	copy(h.FOpts, data[7:7+fOptsLen])
	return nil
}
