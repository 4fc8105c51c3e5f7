package lorawan

import "fmt"

// MACPayload represents the payload of a data (non-join) frame: the frame
// header, an optional application port, and the (encrypted) application
// payload / port-0 MAC commands.
type MACPayload struct {
	FHDR       FHDR
	FPort      *uint8
	FRMPayload []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p MACPayload) MarshalBinary() ([]byte, error) {
	b, err := p.FHDR.MarshalBinary()
	if err != nil {
		return nil, err
	}

	if p.FPort != nil {
		b = append(b, *p.FPort)
	} else if len(p.FRMPayload) > 0 {
		return nil, fmt.Errorf("lorawan: FPort must be set when FRMPayload is not empty")
	}

	b = append(b, p.FRMPayload...)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *MACPayload) UnmarshalBinary(data []byte) error {
	var fhdr FHDR
	if err := fhdr.UnmarshalBinary(data); err != nil {
		return err
	}
	p.FHDR = fhdr

	rest := data[7+len(fhdr.FOpts):]
	if len(rest) == 0 {
		p.FPort = nil
		p.FRMPayload = nil
		return nil
	}

	port := rest[0]
	p.FPort = &port
	p.FRMPayload = make([]byte, len(rest)-1)
	copy(p.FRMPayload, rest[1:])
	return nil
}

// JoinRequestPayload represents the MACPayload of a join-request.
type JoinRequestPayload struct {
	JoinEUI  EUI64
	DevEUI   EUI64
	DevNonce DevNonce
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p JoinRequestPayload) MarshalBinary() ([]byte, error) {
	var out []byte

	b, err := p.JoinEUI.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)

	b, err = p.DevEUI.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)

	b, err = p.DevNonce.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)

	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *JoinRequestPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 18 {
		return fmt.Errorf("lorawan: 18 bytes of data are expected for JoinRequestPayload, got %d", len(data))
	}
	if err := p.JoinEUI.UnmarshalBinary(data[0:8]); err != nil {
		return err
	}
	if err := p.DevEUI.UnmarshalBinary(data[8:16]); err != nil {
		return err
	}
	return p.DevNonce.UnmarshalBinary(data[16:18])
}

// JoinAcceptPayload represents the (decrypted, plaintext) MACPayload of a
// join-accept.
type JoinAcceptPayload struct {
	JoinNonce  JoinNonce
	NetID      NetID
	DevAddr    DevAddr
	DLSettings DLSettings
	RxDelay    uint8 // 0 means 1 second, per spec.md §3
	CFList     *CFList
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p JoinAcceptPayload) MarshalBinary() ([]byte, error) {
	if p.RxDelay > 15 {
		return nil, fmt.Errorf("lorawan: max value of RxDelay is 15")
	}

	var out []byte
	b, err := p.JoinNonce.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)

	b, err = p.NetID.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)

	addr, err := p.DevAddr.MarshalBinary()
	if err != nil {
		return nil, err
	}
	for i := len(addr) - 1; i >= 0; i-- {
		out = append(out, addr[i])
	}

	b, err = p.DLSettings.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)
	out = append(out, p.RxDelay)

	if p.CFList != nil {
		b, err = p.CFList.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}

	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *JoinAcceptPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 12 && len(data) != 28 {
		return fmt.Errorf("lorawan: 12 or 28 bytes of data are expected for JoinAcceptPayload, got %d", len(data))
	}

	if err := p.JoinNonce.UnmarshalBinary(data[0:3]); err != nil {
		return err
	}
	if err := p.NetID.UnmarshalBinary(data[3:6]); err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		p.DevAddr[3-i] = data[6+i]
	}
	if err := p.DLSettings.UnmarshalBinary(data[10:11]); err != nil {
		return err
	}
	p.RxDelay = data[11]

	if len(data) == 28 {
		var cf CFList
		if err := cf.UnmarshalBinary(data[12:28]); err != nil {
			return err
		}
		p.CFList = &cf
	}

	return nil
}
