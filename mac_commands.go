package lorawan

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CID identifies a MAC command. Req and Ans share the same numeric value;
// direction (uplink/downlink) disambiguates which payload shape applies.
type CID byte

// MAC commands recognized by a 1.0.4 Class-A device (spec.md §4.4). The
// full 1.1 command set (RekeyInd, ADRParamSetupReq, rejoin, ping-slot,
// beacon) is network-server scope and out of this engine's reach.
const (
	LinkCheckReq     CID = 0x02
	LinkCheckAns     CID = 0x02
	LinkADRReq       CID = 0x03
	LinkADRAns       CID = 0x03
	DutyCycleReq     CID = 0x04
	DutyCycleAns     CID = 0x04
	RXParamSetupReq  CID = 0x05
	RXParamSetupAns  CID = 0x05
	DevStatusReq     CID = 0x06
	DevStatusAns     CID = 0x06
	NewChannelReq    CID = 0x07
	NewChannelAns    CID = 0x07
	RXTimingSetupReq CID = 0x08
	RXTimingSetupAns CID = 0x08
	TXParamSetupReq  CID = 0x09
	TXParamSetupAns  CID = 0x09
	DLChannelReq     CID = 0x0A
	DLChannelAns     CID = 0x0A
	DeviceTimeReq    CID = 0x0D
	DeviceTimeAns    CID = 0x0D
)

func (c CID) String() string {
	switch c {
	case LinkCheckReq:
		return "LinkCheck"
	case LinkADRReq:
		return "LinkADR"
	case DutyCycleReq:
		return "DutyCycle"
	case RXParamSetupReq:
		return "RXParamSetup"
	case DevStatusReq:
		return "DevStatus"
	case NewChannelReq:
		return "NewChannel"
	case RXTimingSetupReq:
		return "RXTimingSetup"
	case TXParamSetupReq:
		return "TXParamSetup"
	case DLChannelReq:
		return "DLChannel"
	case DeviceTimeReq:
		return "DeviceTime"
	default:
		return fmt.Sprintf("CID(%#x)", byte(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c CID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// macPayloadInfo pairs a payload's wire size with a constructor.
type macPayloadInfo struct {
	size    int
	payload func() MACCommandPayload
}

// macPayloadRegistry maps uplink/downlink direction and CID to the payload
// shape carried. Commands with no payload (DutyCycleAns, DevStatusReq,
// RXTimingSetupAns, TXParamSetupAns, LinkCheckReq, DeviceTimeReq) are
// absent: MACCommand.UnmarshalBinary leaves Payload nil for those.
var macPayloadRegistry = map[bool]map[CID]macPayloadInfo{
	false: { // downlink: network -> device (*Req commands, plus LinkCheckAns/DeviceTimeAns)
		LinkCheckAns:     {2, func() MACCommandPayload { return &LinkCheckAnsPayload{} }},
		LinkADRReq:       {4, func() MACCommandPayload { return &LinkADRReqPayload{} }},
		DutyCycleReq:     {1, func() MACCommandPayload { return &DutyCycleReqPayload{} }},
		RXParamSetupReq:  {4, func() MACCommandPayload { return &RXParamSetupReqPayload{} }},
		NewChannelReq:    {5, func() MACCommandPayload { return &NewChannelReqPayload{} }},
		RXTimingSetupReq: {1, func() MACCommandPayload { return &RXTimingSetupReqPayload{} }},
		TXParamSetupReq:  {1, func() MACCommandPayload { return &TXParamSetupReqPayload{} }},
		DLChannelReq:     {4, func() MACCommandPayload { return &DLChannelReqPayload{} }},
		DeviceTimeAns:    {5, func() MACCommandPayload { return &DeviceTimeAnsPayload{} }},
	},
	true: { // uplink: device -> network (*Ans commands, plus LinkCheckReq/DeviceTimeReq)
		LinkADRAns:      {1, func() MACCommandPayload { return &LinkADRAnsPayload{} }},
		RXParamSetupAns: {1, func() MACCommandPayload { return &RXParamSetupAnsPayload{} }},
		DevStatusAns:    {2, func() MACCommandPayload { return &DevStatusAnsPayload{} }},
		NewChannelAns:   {1, func() MACCommandPayload { return &NewChannelAnsPayload{} }},
		DLChannelAns:    {1, func() MACCommandPayload { return &DLChannelAnsPayload{} }},
	},
}

// DwellTime defines the dwell-time mode a region/TXParamSetupReq selects.
type DwellTime int

// Possible dwell time options.
const (
	DwellTimeNoLimit DwellTime = iota
	DwellTime400ms
)

// GetMACPayloadAndSize returns a new MACCommandPayload instance and its
// wire size for a given direction and CID, or an error if the combination
// carries no payload or is unrecognized.
func GetMACPayloadAndSize(uplink bool, c CID) (MACCommandPayload, int, error) {
	v, ok := macPayloadRegistry[uplink][c]
	if !ok {
		return nil, 0, fmt.Errorf("lorawan: payload unknown for uplink=%v and CID=%v", uplink, c)
	}
	return v.payload(), v.size, nil
}

// MACCommandPayload is the interface every MAC command payload implements.
type MACCommandPayload interface {
	MarshalBinary() (data []byte, err error)
	UnmarshalBinary(data []byte) error
}

// MACCommand represents a single MAC command with optional payload.
type MACCommand struct {
	CID     CID
	Payload MACCommandPayload
}

// MarshalBinary marshals the command in binary form.
func (m MACCommand) MarshalBinary() ([]byte, error) {
	b := []byte{byte(m.CID)}
	if m.Payload != nil {
		p, err := m.Payload.MarshalBinary()
		if err != nil {
			return nil, err
		}
		b = append(b, p...)
	}
	return b, nil
}

// UnmarshalBinary decodes a single command from data, consuming exactly
// 1+payloadSize bytes. uplink selects which direction's payload registry
// applies.
func (m *MACCommand) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) == 0 {
		return errors.New("lorawan: at least 1 byte of data is expected")
	}
	m.CID = CID(data[0])

	p, size, err := GetMACPayloadAndSize(uplink, m.CID)
	if err != nil {
		// no payload registered: either a payload-less command, or unknown.
		if len(data) != 1 {
			return fmt.Errorf("lorawan: unexpected trailing data for CID %s", m.CID)
		}
		return nil
	}
	if len(data) != 1+size {
		return fmt.Errorf("lorawan: %d bytes of data expected for CID %s", size, m.CID)
	}
	m.Payload = p
	return m.Payload.UnmarshalBinary(data[1:])
}

// DecodeMACCommands splits an octet stream (FOpts or port-0 FRMPayload)
// into an ordered list of MAC commands. A CID with no registered payload,
// unknown CIDs included, is decoded as a payload-less command and decoding
// goes on; maccommand.Processor stops at the first unknown CID. Decoding
// stops at a command whose payload is truncated or fails to parse.
func DecodeMACCommands(uplink bool, data []byte) ([]MACCommand, error) {
	var out []MACCommand

	for i := 0; i < len(data); {
		cid := CID(data[i])
		_, size, err := GetMACPayloadAndSize(uplink, cid)
		if err != nil {
			size = 0
		}
		if i+1+size > len(data) {
			break
		}

		var mc MACCommand
		if err := mc.UnmarshalBinary(uplink, data[i:i+1+size]); err != nil {
			break
		}
		out = append(out, mc)
		i += 1 + size
	}

	return out, nil
}

// LinkCheckAnsPayload represents the LinkCheckAns payload.
type LinkCheckAnsPayload struct {
	Margin uint8
	GwCnt  uint8
}

func (p LinkCheckAnsPayload) MarshalBinary() ([]byte, error) {
	return []byte{p.Margin, p.GwCnt}, nil
}

func (p *LinkCheckAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 2 {
		return errors.New("lorawan: 2 bytes of data are expected")
	}
	p.Margin = data[0]
	p.GwCnt = data[1]
	return nil
}

// Redundancy represents the ChMaskCntl/NbRep field of LinkADRReq.
type Redundancy struct {
	ChMaskCntl uint8
	NbRep      uint8
}

func (r Redundancy) MarshalBinary() ([]byte, error) {
	if r.NbRep > 15 {
		return nil, errors.New("lorawan: max value of NbRep is 15")
	}
	if r.ChMaskCntl > 7 {
		return nil, errors.New("lorawan: max value of ChMaskCntl is 7")
	}
	return []byte{r.NbRep | (r.ChMaskCntl << 4)}, nil
}

func (r *Redundancy) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	r.NbRep = data[0] & 0x0f
	r.ChMaskCntl = (data[0] & 0x70) >> 4
	return nil
}

// LinkADRReqPayload represents the LinkADRReq payload.
type LinkADRReqPayload struct {
	DataRate   uint8
	TXPower    uint8
	ChMask     ChMask
	Redundancy Redundancy
}

func (p LinkADRReqPayload) MarshalBinary() ([]byte, error) {
	if p.DataRate > 15 {
		return nil, errors.New("lorawan: max value of DataRate is 15")
	}
	if p.TXPower > 15 {
		return nil, errors.New("lorawan: max value of TXPower is 15")
	}

	cm, err := p.ChMask.MarshalBinary()
	if err != nil {
		return nil, err
	}
	r, err := p.Redundancy.MarshalBinary()
	if err != nil {
		return nil, err
	}

	b := make([]byte, 0, 4)
	b = append(b, p.TXPower|(p.DataRate<<4))
	b = append(b, cm...)
	b = append(b, r...)
	return b, nil
}

func (p *LinkADRReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return errors.New("lorawan: 4 bytes of data are expected")
	}
	p.DataRate = (data[0] & 0xf0) >> 4
	p.TXPower = data[0] & 0x0f

	if err := p.ChMask.UnmarshalBinary(data[1:3]); err != nil {
		return err
	}
	return p.Redundancy.UnmarshalBinary(data[3:4])
}

// LinkADRAnsPayload represents the LinkADRAns payload.
type LinkADRAnsPayload struct {
	ChannelMaskACK bool
	DataRateACK    bool
	PowerACK       bool
}

func (p LinkADRAnsPayload) MarshalBinary() ([]byte, error) {
	var b byte
	if p.ChannelMaskACK {
		b |= 1 << 0
	}
	if p.DataRateACK {
		b |= 1 << 1
	}
	if p.PowerACK {
		b |= 1 << 2
	}
	return []byte{b}, nil
}

func (p *LinkADRAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.ChannelMaskACK = data[0]&(1<<0) != 0
	p.DataRateACK = data[0]&(1<<1) != 0
	p.PowerACK = data[0]&(1<<2) != 0
	return nil
}

// DutyCycleReqPayload represents the DutyCycleReq payload.
type DutyCycleReqPayload struct {
	MaxDCycle uint8
}

func (p DutyCycleReqPayload) MarshalBinary() ([]byte, error) {
	if p.MaxDCycle > 15 && p.MaxDCycle != 255 {
		return nil, errors.New("lorawan: only a MaxDCycle value of 0-15 or 255 is allowed")
	}
	return []byte{p.MaxDCycle}, nil
}

func (p *DutyCycleReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.MaxDCycle = data[0]
	return nil
}

// RXParamSetupReqPayload represents the RXParamSetupReq payload.
type RXParamSetupReqPayload struct {
	Frequency  uint32
	DLSettings DLSettings
}

func (p RXParamSetupReqPayload) MarshalBinary() ([]byte, error) {
	if p.Frequency/100 >= 1<<24 {
		return nil, errors.New("lorawan: max value of Frequency is 2^24-1")
	}
	if p.Frequency%100 != 0 {
		return nil, errors.New("lorawan: Frequency must be a multiple of 100")
	}

	dl, err := p.DLSettings.MarshalBinary()
	if err != nil {
		return nil, err
	}

	b := make([]byte, 5)
	b[0] = dl[0]
	binary.LittleEndian.PutUint32(b[1:5], p.Frequency/100)
	return b[0:4], nil
}

func (p *RXParamSetupReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return errors.New("lorawan: 4 bytes of data are expected")
	}
	if err := p.DLSettings.UnmarshalBinary(data[0:1]); err != nil {
		return err
	}

	b := append(append([]byte{}, data...), 0)
	p.Frequency = binary.LittleEndian.Uint32(b[1:5]) * 100
	return nil
}

// RXParamSetupAnsPayload represents the RXParamSetupAns payload.
type RXParamSetupAnsPayload struct {
	ChannelACK     bool
	RX2DataRateACK bool
	RX1DROffsetACK bool
}

func (p RXParamSetupAnsPayload) MarshalBinary() ([]byte, error) {
	var b byte
	if p.ChannelACK {
		b |= 1 << 0
	}
	if p.RX2DataRateACK {
		b |= 1 << 1
	}
	if p.RX1DROffsetACK {
		b |= 1 << 2
	}
	return []byte{b}, nil
}

func (p *RXParamSetupAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.ChannelACK = data[0]&(1<<0) != 0
	p.RX2DataRateACK = data[0]&(1<<1) != 0
	p.RX1DROffsetACK = data[0]&(1<<2) != 0
	return nil
}

// DevStatusAnsPayload represents the DevStatusAns payload.
type DevStatusAnsPayload struct {
	Battery uint8
	Margin  int8
}

func (p DevStatusAnsPayload) MarshalBinary() ([]byte, error) {
	if p.Margin < -32 || p.Margin > 31 {
		return nil, errors.New("lorawan: Margin must be in [-32, 31]")
	}
	b := []byte{p.Battery, 0}
	if p.Margin < 0 {
		b[1] = uint8(64 + p.Margin)
	} else {
		b[1] = uint8(p.Margin)
	}
	return b, nil
}

func (p *DevStatusAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 2 {
		return errors.New("lorawan: 2 bytes of data are expected")
	}
	p.Battery = data[0]
	if data[1] > 31 {
		p.Margin = int8(data[1]) - 64
	} else {
		p.Margin = int8(data[1])
	}
	return nil
}

// NewChannelReqPayload represents the NewChannelReq payload.
type NewChannelReqPayload struct {
	ChIndex uint8
	Freq    uint32
	MaxDR   uint8
	MinDR   uint8
}

func (p NewChannelReqPayload) MarshalBinary() ([]byte, error) {
	if p.Freq/100 >= 1<<24 {
		return nil, errors.New("lorawan: max value of Freq is 2^24-1")
	}
	if p.Freq%100 != 0 {
		return nil, errors.New("lorawan: Freq must be a multiple of 100")
	}
	if p.MaxDR > 15 || p.MinDR > 15 {
		return nil, errors.New("lorawan: max value of MaxDR/MinDR is 15")
	}

	b := make([]byte, 5)
	b[0] = p.ChIndex
	binary.LittleEndian.PutUint32(b[1:5], p.Freq/100)
	b[4] = p.MinDR | (p.MaxDR << 4)
	return b, nil
}

func (p *NewChannelReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 5 {
		return errors.New("lorawan: 5 bytes of data are expected")
	}
	p.ChIndex = data[0]
	p.MinDR = data[4] & 0x0f
	p.MaxDR = (data[4] & 0xf0) >> 4

	b := append([]byte{}, data...)
	b[4] = 0
	p.Freq = binary.LittleEndian.Uint32(b[1:5]) * 100
	return nil
}

// NewChannelAnsPayload represents the NewChannelAns payload.
type NewChannelAnsPayload struct {
	ChannelFrequencyOK bool
	DataRateRangeOK    bool
}

func (p NewChannelAnsPayload) MarshalBinary() ([]byte, error) {
	var b byte
	if p.ChannelFrequencyOK {
		b |= 1 << 0
	}
	if p.DataRateRangeOK {
		b |= 1 << 1
	}
	return []byte{b}, nil
}

func (p *NewChannelAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.ChannelFrequencyOK = data[0]&(1<<0) != 0
	p.DataRateRangeOK = data[0]&(1<<1) != 0
	return nil
}

// RXTimingSetupReqPayload represents the RXTimingSetupReq payload.
type RXTimingSetupReqPayload struct {
	Delay uint8 // 0 and 1 both mean 1s, 2..15 mean that many seconds
}

func (p RXTimingSetupReqPayload) MarshalBinary() ([]byte, error) {
	if p.Delay > 15 {
		return nil, errors.New("lorawan: max value of Delay is 15")
	}
	return []byte{p.Delay}, nil
}

func (p *RXTimingSetupReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.Delay = data[0]
	return nil
}

// TXParamSetupReqPayload represents the TXParamSetupReq payload.
type TXParamSetupReqPayload struct {
	DownlinkDwellTime DwellTime
	UplinkDwellTime   DwellTime
	MaxEIRP           uint8
}

var txParamEIRPTable = []uint8{8, 10, 12, 13, 14, 16, 18, 20, 21, 24, 26, 27, 29, 30, 33, 36}

func (p TXParamSetupReqPayload) MarshalBinary() ([]byte, error) {
	var b uint8
	found := false
	for i, v := range txParamEIRPTable {
		if v == p.MaxEIRP {
			b = uint8(i)
			found = true
			break
		}
	}
	if !found {
		return nil, errors.New("lorawan: invalid MaxEIRP value")
	}

	if p.UplinkDwellTime == DwellTime400ms {
		b |= 1 << 4
	}
	if p.DownlinkDwellTime == DwellTime400ms {
		b |= 1 << 5
	}
	return []byte{b}, nil
}

func (p *TXParamSetupReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	if data[0]&(1<<4) != 0 {
		p.UplinkDwellTime = DwellTime400ms
	}
	if data[0]&(1<<5) != 0 {
		p.DownlinkDwellTime = DwellTime400ms
	}
	p.MaxEIRP = txParamEIRPTable[data[0]&0x0f]
	return nil
}

// DLChannelReqPayload represents the DLChannelReq payload.
type DLChannelReqPayload struct {
	ChIndex uint8
	Freq    uint32
}

func (p DLChannelReqPayload) MarshalBinary() ([]byte, error) {
	if p.Freq/100 >= 1<<24 {
		return nil, errors.New("lorawan: max value of Freq is 2^24-1")
	}
	if p.Freq%100 != 0 {
		return nil, errors.New("lorawan: Freq must be a multiple of 100")
	}

	b := make([]byte, 5)
	b[0] = p.ChIndex
	binary.LittleEndian.PutUint32(b[1:5], p.Freq/100)
	return b[0:4], nil
}

func (p *DLChannelReqPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return errors.New("lorawan: 4 bytes of data are expected")
	}
	p.ChIndex = data[0]
	b := append(append([]byte{}, data[1:]...), 0)
	p.Freq = binary.LittleEndian.Uint32(b) * 100
	return nil
}

// DLChannelAnsPayload represents the DLChannelAns payload.
type DLChannelAnsPayload struct {
	UplinkFrequencyExists bool
	ChannelFrequencyOK    bool
}

func (p DLChannelAnsPayload) MarshalBinary() ([]byte, error) {
	var b byte
	if p.ChannelFrequencyOK {
		b |= 1 << 0
	}
	if p.UplinkFrequencyExists {
		b |= 1 << 1
	}
	return []byte{b}, nil
}

func (p *DLChannelAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.ChannelFrequencyOK = data[0]&1 != 0
	p.UplinkFrequencyExists = data[0]&(1<<1) != 0
	return nil
}

// DeviceTimeAnsPayload represents the DeviceTimeAns payload: seconds since
// the GPS epoch plus a fractional-second field in 1/256s units.
type DeviceTimeAnsPayload struct {
	SecondsSinceEpoch uint32
	FracSecond        uint8
}

func (p DeviceTimeAnsPayload) MarshalBinary() ([]byte, error) {
	b := make([]byte, 5)
	binary.LittleEndian.PutUint32(b[0:4], p.SecondsSinceEpoch)
	b[4] = p.FracSecond
	return b, nil
}

func (p *DeviceTimeAnsPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 5 {
		return errors.New("lorawan: 5 bytes of data are expected")
	}
	p.SecondsSinceEpoch = binary.LittleEndian.Uint32(data[0:4])
	p.FracSecond = data[4]
	return nil
}
