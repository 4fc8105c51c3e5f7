package maccommand

import (
	"testing"

	"github.com/lora-edge/macd/band"
	"github.com/lora-edge/macd/session"

	"github.com/lora-edge/macd"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestSession() *session.Session {
	return &session.Session{
		Region:          "EU868",
		EnabledChannels: []int{0, 1, 2},
	}
}

func chMaskFor(indices []int) lorawan.ChMask {
	var m lorawan.ChMask
	for _, i := range indices {
		if i >= 0 && i < len(m) {
			m[i] = true
		}
	}
	return m
}

func TestLinkADRReqAtomicity(t *testing.T) {
	Convey("Given an EU868 session and a two-command LinkADRReq block where the second references a reserved channel mask", t, func() {
		region, err := band.GetConfig(band.EU868, false, lorawan.DwellTimeNoLimit)
		So(err, ShouldBeNil)

		sess := newTestSession()
		origChannels := append([]int(nil), sess.EnabledChannels...)
		origDR := sess.ADR.DataRate
		origTXPower := sess.ADR.TXPowerIndex

		p := NewProcessor(nil)

		cmds := []lorawan.MACCommand{
			{CID: lorawan.LinkADRReq, Payload: &lorawan.LinkADRReqPayload{
				DataRate: 3,
				TXPower:  1,
				ChMask:   chMaskFor(sess.EnabledChannels),
			}},
			{CID: lorawan.LinkADRReq, Payload: &lorawan.LinkADRReqPayload{
				DataRate: 3,
				TXPower:  1,
				// EU868 defines only 3 base channels; index 5 is outside the
				// channel plan and must fail the whole block.
				ChMask: chMaskFor([]int{5}),
			}},
		}

		Convey("ProcessDownlink applies neither command and answers with every ACK bit unset", func() {
			_, err := p.ProcessDownlink(cmds, sess, region)
			So(err, ShouldBeNil)

			So(sess.EnabledChannels, ShouldResemble, origChannels)
			So(sess.ADR.DataRate, ShouldEqual, origDR)
			So(sess.ADR.TXPowerIndex, ShouldEqual, origTXPower)

			pending := p.PendingUplink()
			So(pending, ShouldHaveLength, 1)
			So(pending[0].CID, ShouldEqual, lorawan.LinkADRAns)

			ans, ok := pending[0].Payload.(*lorawan.LinkADRAnsPayload)
			So(ok, ShouldBeTrue)
			So(ans.ChannelMaskACK, ShouldBeFalse)
			So(ans.DataRateACK, ShouldBeFalse)
			So(ans.PowerACK, ShouldBeFalse)
		})
	})

	Convey("Given an EU868 session and a single valid LinkADRReq", t, func() {
		region, err := band.GetConfig(band.EU868, false, lorawan.DwellTimeNoLimit)
		So(err, ShouldBeNil)

		sess := newTestSession()
		p := NewProcessor(nil)

		cmds := []lorawan.MACCommand{
			{CID: lorawan.LinkADRReq, Payload: &lorawan.LinkADRReqPayload{
				DataRate: 4,
				TXPower:  2,
				ChMask:   chMaskFor(sess.EnabledChannels),
			}},
		}

		Convey("ProcessDownlink applies it and acks all three bits", func() {
			_, err := p.ProcessDownlink(cmds, sess, region)
			So(err, ShouldBeNil)

			So(sess.ADR.DataRate, ShouldEqual, uint8(4))
			So(sess.ADR.TXPowerIndex, ShouldEqual, uint8(2))

			pending := p.PendingUplink()
			So(pending, ShouldHaveLength, 1)
			ans := pending[0].Payload.(*lorawan.LinkADRAnsPayload)
			So(ans.ChannelMaskACK, ShouldBeTrue)
			So(ans.DataRateACK, ShouldBeTrue)
			So(ans.PowerACK, ShouldBeTrue)
		})
	})
}

func TestStickyResponses(t *testing.T) {
	Convey("Given an RXTimingSetupReq", t, func() {
		region, err := band.GetConfig(band.EU868, false, lorawan.DwellTimeNoLimit)
		So(err, ShouldBeNil)

		sess := newTestSession()
		p := NewProcessor(nil)

		cmds := []lorawan.MACCommand{
			{CID: lorawan.RXTimingSetupReq, Payload: &lorawan.RXTimingSetupReqPayload{Delay: 3}},
		}

		_, err = p.ProcessDownlink(cmds, sess, region)
		So(err, ShouldBeNil)

		Convey("RXTimingSetupAns is queued and re-queued after being drained until the network stops sending the Req", func() {
			pending := p.PendingUplink()
			So(pending, ShouldHaveLength, 1)
			So(pending[0].CID, ShouldEqual, lorawan.RXTimingSetupAns)

			again := p.PendingUplink()
			So(again, ShouldHaveLength, 1)

			_, err := p.ProcessDownlink(nil, sess, region)
			So(err, ShouldBeNil)

			So(p.PendingUplink(), ShouldHaveLength, 0)
		})
	})
}

func TestDevStatusDefaultsToCannotMeasure(t *testing.T) {
	Convey("Given a Processor with no DeviceStatusSource", t, func() {
		region, err := band.GetConfig(band.EU868, false, lorawan.DwellTimeNoLimit)
		So(err, ShouldBeNil)

		sess := newTestSession()
		p := NewProcessor(nil)

		cmds := []lorawan.MACCommand{{CID: lorawan.DevStatusReq}}

		Convey("DevStatusAns reports battery 255", func() {
			_, err := p.ProcessDownlink(cmds, sess, region)
			So(err, ShouldBeNil)

			pending := p.PendingUplink()
			So(pending, ShouldHaveLength, 1)
			ans := pending[0].Payload.(*lorawan.DevStatusAnsPayload)
			So(ans.Battery, ShouldEqual, uint8(255))
		})
	})
}
