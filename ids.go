package lorawan

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// EUI64 represents a 64 bit EUI (DevEUI or JoinEUI).
type EUI64 [8]byte

// String implements fmt.Stringer.
func (e EUI64) String() string {
	return hex.EncodeToString(e[:])
}

// MarshalText implements encoding.TextMarshaler.
func (e EUI64) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EUI64) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(e) {
		return fmt.Errorf("lorawan: exactly %d bytes are expected", len(e))
	}
	copy(e[:], b)
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler. EUIs are transmitted
// least-significant-byte first.
func (e EUI64) MarshalBinary() ([]byte, error) {
	out := make([]byte, len(e))
	for i, v := range e {
		out[len(e)-1-i] = v
	}
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (e *EUI64) UnmarshalBinary(data []byte) error {
	if len(data) != len(e) {
		return fmt.Errorf("lorawan: %d bytes of data are expected", len(e))
	}
	for i, v := range data {
		e[len(e)-1-i] = v
	}
	return nil
}

// DevAddr represents a 32 bit device address.
type DevAddr [4]byte

// String implements fmt.Stringer.
func (a DevAddr) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a DevAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *DevAddr) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(a) {
		return fmt.Errorf("lorawan: exactly %d bytes are expected", len(a))
	}
	copy(a[:], b)
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler. It returns the
// DevAddr most-significant-byte first (big endian); the frame encoders
// reverse it, since DevAddr is transmitted least-significant-byte first.
func (a DevAddr) MarshalBinary() ([]byte, error) {
	out := make([]byte, len(a))
	copy(out, a[:])
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (a *DevAddr) UnmarshalBinary(data []byte) error {
	if len(data) != len(a) {
		return fmt.Errorf("lorawan: %d bytes of data are expected", len(a))
	}
	copy(a[:], data)
	return nil
}

// Uint32 returns the DevAddr as a big-endian uint32.
func (a DevAddr) Uint32() uint32 {
	return binary.BigEndian.Uint32(a[:])
}

// AES128Key represents a 128 bit AES key.
type AES128Key [16]byte

// String implements fmt.Stringer.
func (k AES128Key) String() string {
	return hex.EncodeToString(k[:])
}

// MarshalText implements encoding.TextMarshaler.
func (k AES128Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *AES128Key) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(k) {
		return fmt.Errorf("lorawan: exactly %d bytes are expected", len(k))
	}
	copy(k[:], b)
	return nil
}

// MIC represents the 4 byte message integrity code.
type MIC [4]byte

// String implements fmt.Stringer.
func (m MIC) String() string {
	return hex.EncodeToString(m[:])
}

// JoinNonce represents the 24 bit join-nonce assigned by the join server
// (the network-side counterpart of DevNonce).
type JoinNonce uint32

// MarshalBinary implements encoding.BinaryMarshaler.
func (n JoinNonce) MarshalBinary() ([]byte, error) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(n))
	return b[0:3], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (n *JoinNonce) UnmarshalBinary(data []byte) error {
	if len(data) != 3 {
		return fmt.Errorf("lorawan: 3 bytes of data are expected")
	}
	b := make([]byte, 4)
	copy(b, data)
	*n = JoinNonce(binary.LittleEndian.Uint32(b))
	return nil
}

// DevNonce represents the 16 bit nonce generated by the end-device for each
// join-request. For LoRaWAN 1.0.4 it MUST be strictly increasing across the
// lifetime of a JoinEUI (spec.md §4.6); rollover forces the device to stop
// joining (ErrNonceExhausted in package engine).
type DevNonce uint16

// MarshalBinary implements encoding.BinaryMarshaler.
func (n DevNonce) MarshalBinary() ([]byte, error) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(n))
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (n *DevNonce) UnmarshalBinary(data []byte) error {
	if len(data) != 2 {
		return fmt.Errorf("lorawan: 2 bytes of data are expected")
	}
	*n = DevNonce(binary.LittleEndian.Uint16(data))
	return nil
}
