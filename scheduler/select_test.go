package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/lora-edge/macd/band"
	"github.com/lora-edge/macd/session"

	"github.com/lora-edge/macd"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSelect(t *testing.T) {
	Convey("Given an EU868 session with all three base channels enabled", t, func() {
		region, err := band.GetConfig(band.EU868, false, lorawan.DwellTimeNoLimit)
		So(err, ShouldBeNil)

		sess := &session.Session{
			Region:          "EU868",
			EnabledChannels: []int{0, 1, 2},
		}

		s := New("EU868", rand.NewSource(1))
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		Convey("Select returns one of the enabled channels at DR5", func() {
			d, err := s.Select(Request{
				Session:     sess,
				Region:      region,
				DataRate:    5,
				PayloadSize: 10,
				Now:         now,
			})
			So(err, ShouldBeNil)
			So(d.ChannelIndex, ShouldBeIn, 0, 1, 2)
			So(d.OnAir, ShouldBeGreaterThan, 0)
		})

		Convey("repeated commits eventually exhaust the duty-cycle budget for a channel", func() {
			d, err := s.Select(Request{
				Session: sess, Region: region, DataRate: 0, PayloadSize: 50, Now: now,
			})
			So(err, ShouldBeNil)

			for i := 0; i < 50; i++ {
				s.Ledger.Record(d.ChannelIndex, now, d.OnAir)
			}

			So(s.Ledger.Allowed(now, d.ChannelIndex, d.OnAir), ShouldBeFalse)
		})
	})

	Convey("Given a session with no enabled channels supporting the requested DR", t, func() {
		region, err := band.GetConfig(band.EU868, false, lorawan.DwellTimeNoLimit)
		So(err, ShouldBeNil)

		sess := &session.Session{Region: "EU868", EnabledChannels: []int{}}
		s := New("EU868", rand.NewSource(1))

		Convey("Select fails with ErrNoChannel", func() {
			_, err := s.Select(Request{Session: sess, Region: region, DataRate: 5, Now: time.Now()})
			So(err, ShouldEqual, ErrNoChannel)
		})
	})
}
