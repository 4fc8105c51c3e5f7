package maccommand

import (
	"github.com/lora-edge/macd/band"
	"github.com/lora-edge/macd/session"

	"github.com/lora-edge/macd"
)

// applyLinkADRBlock validates a contiguous run of LinkADRReq commands as
// one atomic unit (spec.md invariant 6): the channel masks of the whole
// block and the data rate and TX power of its last command are checked
// against region; if all three check out the block is applied, otherwise
// none of it is and the single returned LinkADRAns has all three ACK
// bits unset.
func (p *Processor) applyLinkADRBlock(block []lorawan.LinkADRReqPayload, sess *session.Session, region band.Band) lorawan.LinkADRAnsPayload {
	var ans lorawan.LinkADRAnsPayload

	channels, chErr := region.GetEnabledUplinkChannelIndicesForLinkADRReqPayloads(sess.EnabledChannels, block)
	ans.ChannelMaskACK = chErr == nil

	last := block[len(block)-1]

	_, drErr := region.GetDataRate(int(last.DataRate))
	ans.DataRateACK = drErr == nil

	_, txErr := region.GetTXPowerOffset(int(last.TXPower))
	ans.PowerACK = txErr == nil

	if ans.ChannelMaskACK && ans.DataRateACK && ans.PowerACK {
		sess.EnabledChannels = channels
		sess.ADR.DataRate = last.DataRate
		sess.ADR.TXPowerIndex = last.TXPower
	} else {
		ans = lorawan.LinkADRAnsPayload{}
	}

	return ans
}
