package session

import (
	"testing"

	"github.com/lora-edge/macd"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInstallABP(t *testing.T) {
	Convey("Given ABP credentials", t, func() {
		devAddr := lorawan.DevAddr{1, 2, 3, 4}
		nwkSKey := lorawan.AES128Key{1}
		appSKey := lorawan.AES128Key{2}

		Convey("InstallABP returns a Session with zeroed counters and the given keys", func() {
			sess := InstallABP(devAddr, nwkSKey, appSKey, "EU868", []int{0, 1, 2})

			So(sess.DevAddr, ShouldResemble, devAddr)
			So(sess.NwkSKey, ShouldResemble, nwkSKey)
			So(sess.AppSKey, ShouldResemble, appSKey)
			So(sess.FCntUp, ShouldEqual, uint32(0))
			So(sess.NFCntDown, ShouldEqual, uint32(0))
			So(sess.AFCntDown, ShouldEqual, uint32(0))
			So(sess.EnabledChannels, ShouldResemble, []int{0, 1, 2})
		})
	})
}
