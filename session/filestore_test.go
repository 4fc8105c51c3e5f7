package session

import (
	"context"
	"testing"

	"github.com/lora-edge/macd"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	devEUI := lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8}

	Convey("Given a FileStore rooted at a temp dir", t, func() {
		store, err := NewFileStore(t.TempDir())
		So(err, ShouldBeNil)

		Convey("Loading a session that was never persisted returns ErrNotFound", func() {
			_, err := store.LoadSession(ctx, devEUI)
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("After persisting a session, it can be loaded back unchanged", func() {
			sess := Session{
				DevAddr: lorawan.DevAddr{1, 2, 3, 4},
				FCntUp:  7,
				Region:  "EU868",
			}
			So(store.PersistSession(ctx, devEUI, sess), ShouldBeNil)

			got, err := store.LoadSession(ctx, devEUI)
			So(err, ShouldBeNil)
			So(got.FCntUp, ShouldEqual, uint32(7))
			So(got.DevAddr, ShouldResemble, sess.DevAddr)
			So(got.Region, ShouldEqual, "EU868")
		})

		Convey("Clearing a session removes it", func() {
			sess := Session{FCntUp: 1}
			So(store.PersistSession(ctx, devEUI, sess), ShouldBeNil)
			So(store.ClearSession(ctx, devEUI), ShouldBeNil)

			_, err := store.LoadSession(ctx, devEUI)
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("Clearing a session that was never persisted is a no-op", func() {
			So(store.ClearSession(ctx, devEUI), ShouldBeNil)
		})

		Convey("DevNonce records round-trip independently of Session records", func() {
			So(store.PersistDevNonce(ctx, devEUI, DevNonceRecord{Next: 42}), ShouldBeNil)
			So(store.ClearSession(ctx, devEUI), ShouldBeNil)

			got, err := store.LoadDevNonce(ctx, devEUI)
			So(err, ShouldBeNil)
			So(got.Next, ShouldEqual, lorawan.DevNonce(42))
		})
	})
}
