package lorawan

import (
	"fmt"

	"github.com/pkg/errors"
)

// EncodeJoinRequest builds and MIC-seals a join-request PHYPayload.
func EncodeJoinRequest(devEUI, joinEUI EUI64, devNonce DevNonce, nwkKey AES128Key) ([]byte, error) {
	payload := JoinRequestPayload{JoinEUI: joinEUI, DevEUI: devEUI, DevNonce: devNonce}
	b, err := payload.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "lorawan: marshal join-request")
	}

	mhdr := NewMHDR(JoinRequest, LoRaWANR1)
	mic, err := computeJoinMIC(mhdr, b, nwkKey)
	if err != nil {
		return nil, err
	}

	phy := PHYPayload{MHDR: mhdr, MACPayloadBytes: b, MIC: mic}
	return phy.MarshalBinary()
}

// EncodeJoinAccept builds, MIC-seals and encrypts a join-accept frame the
// way a network server would. It is the network-side counterpart of
// DecodeJoinAccept, used by simulators and tests to produce frames a
// device engine can accept.
func EncodeJoinAccept(p JoinAcceptPayload, nwkKey AES128Key) ([]byte, error) {
	macPayloadBytes, err := p.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "lorawan: marshal join-accept payload")
	}

	mhdr := NewMHDR(JoinAccept, LoRaWANR1)
	mic, err := computeJoinMIC(mhdr, macPayloadBytes, nwkKey)
	if err != nil {
		return nil, err
	}

	plaintext := append(append([]byte{}, macPayloadBytes...), mic[:]...)
	ciphertext, err := encryptJoinAccept(nwkKey, plaintext)
	if err != nil {
		return nil, errors.Wrap(err, "lorawan: encrypt join-accept")
	}

	macBody := ciphertext[:len(ciphertext)-4]
	var wireMIC MIC
	copy(wireMIC[:], ciphertext[len(ciphertext)-4:])

	phy := PHYPayload{MHDR: mhdr, MACPayloadBytes: macBody, MIC: wireMIC}
	return phy.MarshalBinary()
}

// DecodeJoinAccept decrypts and MIC-verifies a join-accept frame. nwkKey is
// the device's NwkKey (== AppKey for 1.0 compatibility).
func DecodeJoinAccept(frame []byte, nwkKey AES128Key) (*JoinAcceptPayload, error) {
	var phy PHYPayload
	if err := phy.UnmarshalBinary(frame); err != nil {
		return nil, errors.Wrap(err, "lorawan: unmarshal join-accept envelope")
	}
	if phy.MHDR.MType() != JoinAccept {
		return nil, fmt.Errorf("%w: expected JoinAccept, got MType %d", ErrMalformed, phy.MHDR.MType())
	}

	ciphertext := append(append([]byte{}, phy.MACPayloadBytes...), phy.MIC[:]...)
	plaintext, err := decryptJoinAccept(nwkKey, ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "lorawan: decrypt join-accept")
	}

	macPayloadBytes := plaintext[0 : len(plaintext)-4]
	var mic MIC
	copy(mic[:], plaintext[len(plaintext)-4:])

	wantMIC, err := computeJoinMIC(phy.MHDR, macPayloadBytes, nwkKey)
	if err != nil {
		return nil, err
	}
	if wantMIC != mic {
		return nil, ErrMIC
	}

	var ja JoinAcceptPayload
	if err := ja.UnmarshalBinary(macPayloadBytes); err != nil {
		return nil, errors.Wrap(err, "lorawan: unmarshal join-accept payload")
	}
	return &ja, nil
}

// EncodeDataUplink builds, encrypts and MIC-seals an uplink data frame.
// fPort == nil means the frame carries only FOpts (no FRMPayload); a
// fPort of 0 means payload is port-0 MAC commands encrypted with NwkSKey,
// any other value means an application payload encrypted with AppSKey.
func EncodeDataUplink(mtype MType, keys SessionKeys, devAddr DevAddr, fCtrl FCtrl, fCntFull uint32, fOpts []byte, fPort *uint8, payload []byte) ([]byte, error) {
	if mtype != UnconfirmedDataUp && mtype != ConfirmedDataUp {
		return nil, fmt.Errorf("lorawan: %d is not an uplink data MType", mtype)
	}
	if len(fOpts) > 15 {
		return nil, fmt.Errorf("lorawan: FOpts exceeds 15 bytes")
	}

	var frmPayload []byte
	if len(payload) > 0 {
		if fPort == nil {
			return nil, fmt.Errorf("lorawan: FPort required when payload is present")
		}
		encKey := keys.AppSKey
		if *fPort == 0 {
			encKey = keys.NwkSKey
		}
		var err error
		frmPayload, err = encryptFRMPayload(encKey, 0, devAddr, fCntFull, payload)
		if err != nil {
			return nil, err
		}
	}

	macPL := MACPayload{
		FHDR:       FHDR{DevAddr: devAddr, FCtrl: fCtrl, FCnt: uint16(fCntFull), FOpts: fOpts},
		FPort:      fPort,
		FRMPayload: frmPayload,
	}
	b, err := macPL.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "lorawan: marshal uplink MACPayload")
	}

	mhdr := NewMHDR(mtype, LoRaWANR1)
	mic, err := computeDataMIC(mhdr, b, devAddr, fCntFull, 0, keys.NwkSKey)
	if err != nil {
		return nil, err
	}

	phy := PHYPayload{MHDR: mhdr, MACPayloadBytes: b, MIC: mic}
	return phy.MarshalBinary()
}

// EncodeDataDownlink builds, encrypts and MIC-seals a downlink data frame
// the way a network server would. It is the network-side counterpart of
// DecodeDataDownlink, used by simulators and tests.
func EncodeDataDownlink(mtype MType, keys SessionKeys, devAddr DevAddr, fCtrl FCtrl, fCntFull uint32, fOpts []byte, fPort *uint8, payload []byte) ([]byte, error) {
	if mtype != UnconfirmedDataDown && mtype != ConfirmedDataDown {
		return nil, fmt.Errorf("lorawan: %d is not a downlink data MType", mtype)
	}
	if len(fOpts) > 15 {
		return nil, fmt.Errorf("lorawan: FOpts exceeds 15 bytes")
	}

	var frmPayload []byte
	if len(payload) > 0 {
		if fPort == nil {
			return nil, fmt.Errorf("lorawan: FPort required when payload is present")
		}
		encKey := keys.AppSKey
		if *fPort == 0 {
			encKey = keys.NwkSKey
		}
		var err error
		frmPayload, err = encryptFRMPayload(encKey, 1, devAddr, fCntFull, payload)
		if err != nil {
			return nil, err
		}
	}

	macPL := MACPayload{
		FHDR:       FHDR{DevAddr: devAddr, FCtrl: fCtrl, FCnt: uint16(fCntFull), FOpts: fOpts},
		FPort:      fPort,
		FRMPayload: frmPayload,
	}
	b, err := macPL.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "lorawan: marshal downlink MACPayload")
	}

	mhdr := NewMHDR(mtype, LoRaWANR1)
	mic, err := computeDataMIC(mhdr, b, devAddr, fCntFull, 1, keys.NwkSKey)
	if err != nil {
		return nil, err
	}

	phy := PHYPayload{MHDR: mhdr, MACPayloadBytes: b, MIC: mic}
	return phy.MarshalBinary()
}

// DecodedDownlink is the result of a successful DecodeDataDownlink call.
type DecodedDownlink struct {
	Confirmed bool
	FCntDown  uint32
	FCtrl     FCtrl
	FOpts     []byte
	FPort     *uint8
	Payload   []byte
}

// DecodeDataDownlink decrypts and MIC-verifies a downlink data frame
// against the given session. nextNFCntDown/nextAFCntDown are the
// next-expected counters (by network-command vs. application framing,
// spec.md §3); maxFCntGap bounds the forward window searched for the
// 32-bit extension of the 16-bit counter on the wire (0 disables the
// bound). Returns ErrMIC, ErrAddrMismatch or ErrReplay on the failure
// paths named in spec.md §4.7 -- the caller must leave session state
// untouched in all three cases, and on success must advance its stored
// next-expected counter to FCntDown+1.
func DecodeDataDownlink(frame []byte, keys SessionKeys, devAddr DevAddr, nextNFCntDown, nextAFCntDown uint32, maxFCntGap uint32) (*DecodedDownlink, error) {
	var phy PHYPayload
	if err := phy.UnmarshalBinary(frame); err != nil {
		return nil, errors.Wrap(err, "lorawan: unmarshal downlink envelope")
	}

	mtype := phy.MHDR.MType()
	if mtype != UnconfirmedDataDown && mtype != ConfirmedDataDown {
		return nil, fmt.Errorf("%w: expected a data-down MType, got %d", ErrMalformed, mtype)
	}

	var macPL MACPayload
	if err := macPL.UnmarshalBinary(phy.MACPayloadBytes); err != nil {
		return nil, errors.Wrap(err, "lorawan: unmarshal downlink MACPayload")
	}

	if macPL.FHDR.DevAddr != devAddr {
		return nil, ErrAddrMismatch
	}

	// Port-0 (or port-less) frames carry network MAC commands and use
	// NFCntDown; FPort > 0 frames are application frames and use
	// AFCntDown (spec.md §3).
	useAppCounter := macPL.FPort != nil && *macPL.FPort > 0
	nextCnt := nextNFCntDown
	if useAppCounter {
		nextCnt = nextAFCntDown
	}

	fCntFull, ok := extendFCnt(nextCnt, macPL.FHDR.FCnt, maxFCntGap)
	if !ok {
		return nil, ErrReplay
	}

	wantMIC, err := computeDataMIC(phy.MHDR, phy.MACPayloadBytes, devAddr, fCntFull, 1, keys.NwkSKey)
	if err != nil {
		return nil, err
	}
	if wantMIC != phy.MIC {
		return nil, ErrMIC
	}

	var payload []byte
	if len(macPL.FRMPayload) > 0 {
		decKey := keys.AppSKey
		if macPL.FPort != nil && *macPL.FPort == 0 {
			decKey = keys.NwkSKey
		}
		payload, err = encryptFRMPayload(decKey, 1, devAddr, fCntFull, macPL.FRMPayload)
		if err != nil {
			return nil, err
		}
	}

	return &DecodedDownlink{
		Confirmed: mtype == ConfirmedDataDown,
		FCntDown:  fCntFull,
		FCtrl:     macPL.FHDR.FCtrl,
		FOpts:     macPL.FHDR.FOpts,
		FPort:     macPL.FPort,
		Payload:   payload,
	}, nil
}

// extendFCnt recovers the full 32 bit counter from its transmitted 16 LSBs.
// next is the next-expected counter value stored by the session (0 before
// any downlink has ever been accepted); a frame is accepted when its
// extended value is >= next (spec.md §3: "accept equal-or-greater only
// once" -- the caller advances its stored next-expected to the returned
// value + 1 on acceptance, which is what makes a repeat of the same value
// a replay on the next call). maxFCntGap optionally bounds how far ahead
// of next a frame may be accepted, 0 disables the bound.
func extendFCnt(next uint32, wire uint16, maxFCntGap uint32) (uint32, bool) {
	base := next &^ 0xffff
	candidate := base | uint32(wire)
	if candidate < next {
		candidate += 1 << 16
	}

	if maxFCntGap > 0 && candidate-next > maxFCntGap {
		return 0, false
	}
	return candidate, true
}
