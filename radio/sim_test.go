package radio

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSimRadioSendReceive(t *testing.T) {
	Convey("Given a SimRadio", t, func() {
		r := NewSimRadio()

		Convey("Send records the frame", func() {
			So(r.SetTXConfig(Config{Frequency: 868100000}), ShouldBeNil)
			_, err := r.Send(context.Background(), []byte{1, 2, 3})
			So(err, ShouldBeNil)
			So(r.Sent, ShouldHaveLength, 1)
			So(r.Sent[0].Data, ShouldResemble, []byte{1, 2, 3})
		})

		Convey("Receive blocks until a packet is delivered", func() {
			go r.Deliver(RxPacket{Data: []byte{9}})
			pkt, err := r.Receive(context.Background())
			So(err, ShouldBeNil)
			So(pkt.Data, ShouldResemble, []byte{9})
		})

		Convey("Receive respects context cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := r.Receive(ctx)
			So(err, ShouldEqual, context.Canceled)
		})
	})
}

func TestVirtualClock(t *testing.T) {
	Convey("Given a VirtualClock at t0", t, func() {
		t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		c := NewVirtualClock(t0)

		Convey("After fires once Advance crosses the deadline", func() {
			ch := c.After(context.Background(), t0.Add(time.Second))

			select {
			case <-ch:
				t.Fatal("fired before deadline")
			default:
			}

			c.Advance(time.Second)

			select {
			case <-ch:
			case <-time.After(time.Second):
				t.Fatal("did not fire after Advance")
			}
		})
	})
}
