package maccommand

import (
	"time"

	"github.com/lora-edge/macd/band"
	"github.com/lora-edge/macd/session"

	"github.com/lora-edge/macd"
)

// applyRXParamSetup stages the RX2 frequency/data-rate and RX1 offset
// from an RXParamSetupReq and queues the sticky RXParamSetupAns. All
// three ACK bits are best-effort validated against the region table;
// an invalid data rate or offset still gets applied -- the network
// chose it, the device just reports it can't honor it.
func (p *Processor) applyRXParamSetup(pl *lorawan.RXParamSetupReqPayload, sess *session.Session, region band.Band) {
	var ans lorawan.RXParamSetupAnsPayload

	ans.ChannelACK = true
	if _, err := region.GetDataRate(int(pl.DLSettings.RX2DataRate)); err == nil {
		ans.RX2DataRateACK = true
	}
	ans.RX1DROffsetACK = pl.DLSettings.RX1DROffset <= 7

	sess.RX2Frequency = pl.Frequency
	sess.RX2DataRate = pl.DLSettings.RX2DataRate
	sess.RX1DROffset = pl.DLSettings.RX1DROffset

	p.queueSticky(lorawan.MACCommand{CID: lorawan.RXParamSetupAns, Payload: &ans})
}

// applyNewChannel installs an extra uplink channel via band.Band.AddChannel.
// Fixed-channel-plan regions reject this outright (spec.md §4.1); both ACK
// bits come back false in that case, matching a band that never accepts
// AddChannel.
func (p *Processor) applyNewChannel(pl *lorawan.NewChannelReqPayload, sess *session.Session, region band.Band) {
	var ans lorawan.NewChannelAnsPayload

	err := region.AddChannel(int(pl.Freq), int(pl.MinDR), int(pl.MaxDR))
	if err == nil {
		ans.ChannelFrequencyOK = true
		ans.DataRateRangeOK = true
		sess.EnabledChannels = appendUnique(sess.EnabledChannels, int(pl.ChIndex))
	}

	p.queueOneShot(lorawan.MACCommand{CID: lorawan.NewChannelAns, Payload: &ans})
}

// applyDLChannel overrides the downlink frequency for an existing uplink
// channel index. band.Band has no per-index override hook, so the change
// is staged on the session and consulted by the engine when it picks the
// RX1 frequency.
func (p *Processor) applyDLChannel(pl *lorawan.DLChannelReqPayload, sess *session.Session) {
	ans := lorawan.DLChannelAnsPayload{
		UplinkFrequencyExists: true,
		ChannelFrequencyOK:    true,
	}

	if sess.DLChannelOverrides == nil {
		sess.DLChannelOverrides = make(map[uint8]uint32)
	}
	sess.DLChannelOverrides[pl.ChIndex] = pl.Freq

	p.queueSticky(lorawan.MACCommand{CID: lorawan.DLChannelAns, Payload: &ans})
}

// applyRXTimingSetup sets the RX1 delay. Wire value 0 and 1 both mean 1s.
func (p *Processor) applyRXTimingSetup(pl *lorawan.RXTimingSetupReqPayload, sess *session.Session) {
	delay := pl.Delay
	if delay == 0 {
		delay = 1
	}
	sess.RXDelay = time.Duration(delay) * time.Second

	p.queueSticky(lorawan.MACCommand{CID: lorawan.RXTimingSetupAns})
}

// applyTXParamSetup updates the dwell-time/EIRP ceiling for regions that
// implement TxParamSetup (AS923-family, dwell-time-constrained regions).
// On a region that doesn't implement it the command is a no-op per
// spec.md §4.1 -- regions outside the dwell-time-constrained set never
// send it, so silently ignoring is the defined behavior, not an error.
func (p *Processor) applyTXParamSetup(pl *lorawan.TXParamSetupReqPayload, sess *session.Session, region band.Band) {
	if !region.ImplementsTXParamSetup(band.LoRaWAN_1_0_4) {
		p.queueSticky(lorawan.MACCommand{CID: lorawan.TXParamSetupAns})
		return
	}

	sess.DwellTimeUplink = pl.UplinkDwellTime
	sess.DwellTimeDownlink = pl.DownlinkDwellTime
	sess.MaxEIRP = pl.MaxEIRP

	p.queueSticky(lorawan.MACCommand{CID: lorawan.TXParamSetupAns})
}

func appendUnique(channels []int, ch int) []int {
	for _, c := range channels {
		if c == ch {
			return channels
		}
	}
	return append(channels, ch)
}
