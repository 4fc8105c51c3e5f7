package maccommand

import (
	"fmt"

	"github.com/lora-edge/macd/band"
	"github.com/lora-edge/macd/session"
	"github.com/sirupsen/logrus"

	"github.com/lora-edge/macd"
)

// stickyAns are the Ans commands that must be re-sent on every uplink
// until the network stops repeating the corresponding Req (spec.md
// §4.4): the device can't otherwise tell whether its Ans made it back.
var stickyAns = map[lorawan.CID]bool{
	lorawan.RXParamSetupAns:  true,
	lorawan.DLChannelAns:     true,
	lorawan.RXTimingSetupAns: true,
	lorawan.TXParamSetupAns:  true,
}

// DeviceStatusSource supplies the battery/margin pair DevStatusAns
// reports. Battery follows the LoRaWAN encoding: 0 = external power,
// 1-254 = level, 255 = can't measure.
type DeviceStatusSource interface {
	DeviceStatus() (battery uint8, margin int8)
}

// Processor decodes and applies downlink MAC commands against a session
// and region, and assembles the MAC commands due on the next uplink.
type Processor struct {
	Status DeviceStatusSource

	sticky  map[lorawan.CID]lorawan.MACCommand
	oneShot []lorawan.MACCommand
}

// NewProcessor creates a Processor with empty queues.
func NewProcessor(status DeviceStatusSource) *Processor {
	return &Processor{
		Status: status,
		sticky: make(map[lorawan.CID]lorawan.MACCommand),
	}
}

// ProcessDownlink applies an ordered list of MAC commands (decoded from
// FOpts or a port-0 FRMPayload, never both per frame — spec.md §4.4) to
// sess and region, queues any Ans commands due on the next uplink, and
// returns events for the information-only commands (LinkCheckAns,
// DeviceTimeAns).
func (p *Processor) ProcessDownlink(cmds []lorawan.MACCommand, sess *session.Session, region band.Band) ([]Event, error) {
	var events []Event
	reqSeen := make(map[lorawan.CID]bool)

	var linkADRBlock []lorawan.LinkADRReqPayload

	flushLinkADR := func() {
		if len(linkADRBlock) == 0 {
			return
		}
		ans := p.applyLinkADRBlock(linkADRBlock, sess, region)
		p.queueOneShot(lorawan.MACCommand{CID: lorawan.LinkADRAns, Payload: &ans})
		linkADRBlock = nil
	}

	for _, cmd := range cmds {
		if cmd.CID != lorawan.LinkADRReq {
			flushLinkADR()
		}

		switch cmd.CID {
		case lorawan.LinkCheckAns:
			pl, ok := cmd.Payload.(*lorawan.LinkCheckAnsPayload)
			if !ok {
				return events, fmt.Errorf("maccommand: unexpected payload type for LinkCheckAns")
			}
			events = append(events, LinkCheckEvent{Margin: pl.Margin, GwCnt: pl.GwCnt})

		case lorawan.LinkADRReq:
			reqSeen[lorawan.LinkADRReq] = true
			pl, ok := cmd.Payload.(*lorawan.LinkADRReqPayload)
			if !ok {
				return events, fmt.Errorf("maccommand: unexpected payload type for LinkADRReq")
			}
			linkADRBlock = append(linkADRBlock, *pl)

		case lorawan.DutyCycleReq:
			reqSeen[lorawan.DutyCycleReq] = true
			pl, ok := cmd.Payload.(*lorawan.DutyCycleReqPayload)
			if !ok {
				return events, fmt.Errorf("maccommand: unexpected payload type for DutyCycleReq")
			}
			sess.MaxDCycle = pl.MaxDCycle
			p.queueOneShot(lorawan.MACCommand{CID: lorawan.DutyCycleAns})

		case lorawan.RXParamSetupReq:
			reqSeen[lorawan.RXParamSetupReq] = true
			pl, ok := cmd.Payload.(*lorawan.RXParamSetupReqPayload)
			if !ok {
				return events, fmt.Errorf("maccommand: unexpected payload type for RXParamSetupReq")
			}
			p.applyRXParamSetup(pl, sess, region)

		case lorawan.DevStatusReq:
			reqSeen[lorawan.DevStatusReq] = true
			battery, margin := uint8(255), int8(0)
			if p.Status != nil {
				battery, margin = p.Status.DeviceStatus()
			}
			ans := lorawan.DevStatusAnsPayload{Battery: battery, Margin: margin}
			p.queueOneShot(lorawan.MACCommand{CID: lorawan.DevStatusAns, Payload: &ans})

		case lorawan.NewChannelReq:
			reqSeen[lorawan.NewChannelReq] = true
			pl, ok := cmd.Payload.(*lorawan.NewChannelReqPayload)
			if !ok {
				return events, fmt.Errorf("maccommand: unexpected payload type for NewChannelReq")
			}
			p.applyNewChannel(pl, sess, region)

		case lorawan.DLChannelReq:
			reqSeen[lorawan.DLChannelReq] = true
			pl, ok := cmd.Payload.(*lorawan.DLChannelReqPayload)
			if !ok {
				return events, fmt.Errorf("maccommand: unexpected payload type for DLChannelReq")
			}
			p.applyDLChannel(pl, sess)

		case lorawan.RXTimingSetupReq:
			reqSeen[lorawan.RXTimingSetupReq] = true
			pl, ok := cmd.Payload.(*lorawan.RXTimingSetupReqPayload)
			if !ok {
				return events, fmt.Errorf("maccommand: unexpected payload type for RXTimingSetupReq")
			}
			p.applyRXTimingSetup(pl, sess)

		case lorawan.TXParamSetupReq:
			reqSeen[lorawan.TXParamSetupReq] = true
			pl, ok := cmd.Payload.(*lorawan.TXParamSetupReqPayload)
			if !ok {
				return events, fmt.Errorf("maccommand: unexpected payload type for TXParamSetupReq")
			}
			p.applyTXParamSetup(pl, sess, region)

		case lorawan.DeviceTimeAns:
			pl, ok := cmd.Payload.(*lorawan.DeviceTimeAnsPayload)
			if !ok {
				return events, fmt.Errorf("maccommand: unexpected payload type for DeviceTimeAns")
			}
			events = append(events, DeviceTimeEvent{SecondsSinceEpoch: pl.SecondsSinceEpoch, FracSecond: pl.FracSecond})

		default:
			logrus.WithField("cid", cmd.CID).Warn("maccommand: unrecognized CID, stopping command stream processing")
			return events, nil
		}
	}
	flushLinkADR()

	// A sticky Ans is dropped once the matching Req stops appearing in a
	// downlink: the network's silence is the only ack a Class-A device gets.
	for cid := range p.sticky {
		if !reqSeen[cid] {
			delete(p.sticky, cid)
		}
	}

	return events, nil
}

// PendingUplink returns the MAC commands due on the next uplink's FOpts
// (or port-0 FRMPayload), clearing the one-shot queue. Sticky commands
// remain queued until ProcessDownlink observes the network has stopped
// requesting the corresponding change.
func (p *Processor) PendingUplink() []lorawan.MACCommand {
	out := make([]lorawan.MACCommand, 0, len(p.sticky)+len(p.oneShot))
	for _, cmd := range p.sticky {
		out = append(out, cmd)
	}
	out = append(out, p.oneShot...)
	p.oneShot = nil
	return out
}

func (p *Processor) queueOneShot(cmd lorawan.MACCommand) {
	p.oneShot = append(p.oneShot, cmd)
}

func (p *Processor) queueSticky(cmd lorawan.MACCommand) {
	if !stickyAns[cmd.CID] {
		p.queueOneShot(cmd)
		return
	}
	p.sticky[cmd.CID] = cmd
}
