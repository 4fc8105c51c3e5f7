package engine

import (
	"context"
	"time"

	"github.com/lora-edge/macd/band"
	"github.com/lora-edge/macd/radio"

	"github.com/lora-edge/macd"
)

func txConfigFor(region band.Band, frequency, dr int) radio.Config {
	d, _ := region.GetDataRate(dr)
	return radio.Config{
		Frequency:       uint32(frequency),
		SpreadingFactor: d.SpreadFactor,
		Bandwidth:       d.Bandwidth,
		PreambleLength:  8,
	}
}

// awaitJoinAccept races RX1 against RX2 for a MIC-valid JoinAccept,
// per spec.md §4.6: "open RX1 at JoinAcceptDelay1... if no MIC-valid
// JoinAccept, open RX2 at JoinAcceptDelay2".
func (e *Engine) awaitJoinAccept(ctx context.Context, txEnd time.Time, defaults band.Defaults) (*lorawan.JoinAcceptPayload, error) {
	rx1At := txEnd.Add(defaults.JoinAcceptDelay1)
	rx2At := txEnd.Add(defaults.JoinAcceptDelay2)

	if accept, err := e.tryReceiveJoinAccept(ctx, rx1At, rx2At.Sub(rx1At)); err == nil {
		return accept, nil
	}

	if accept, err := e.tryReceiveJoinAccept(ctx, rx2At, defaults.ReceiveDelay2); err == nil {
		return accept, nil
	}

	return nil, ErrNoAck
}

// tryReceiveJoinAccept waits until openAt, arms the radio, and accepts
// frames for window. A CRC error or a frame that fails MIC/decrypt
// verification is treated as "no preamble" for window purposes (spec.md
// §4.7) and the function returns ErrNoAck rather than surfacing the
// decode error, since a corrupt/foreign frame must not abort the whole
// join attempt.
func (e *Engine) tryReceiveJoinAccept(ctx context.Context, openAt time.Time, window time.Duration) (*lorawan.JoinAcceptPayload, error) {
	select {
	case <-ctx.Done():
		return nil, ErrCancelled
	case <-e.cfg.Timer.After(ctx, openAt):
	}

	rxCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type rxResult struct {
		pkt radio.RxPacket
		err error
	}
	rxCh := make(chan rxResult, 1)
	go func() {
		pkt, err := e.cfg.Radio.Receive(rxCtx)
		rxCh <- rxResult{pkt, err}
	}()

	select {
	case r := <-rxCh:
		if r.err != nil || r.pkt.CRCError {
			return nil, ErrNoAck
		}
		accept, err := lorawan.DecodeJoinAccept(r.pkt.Data, e.cfg.NwkKey)
		if err != nil {
			return nil, ErrNoAck
		}
		return accept, nil
	case <-e.cfg.Timer.After(ctx, openAt.Add(window)):
		return nil, ErrNoAck
	case <-ctx.Done():
		return nil, ErrCancelled
	}
}

// applyCFList merges CFList channels/mask into the device's enabled
// channel set (spec.md invariant 8): the channel list after join must
// equal existing default channels union CFList channels exactly.
func applyCFList(region band.Band, enabled []int, cf *lorawan.CFList) []int {
	switch cf.Type {
	case lorawan.CFListChannel:
		for _, freq := range cf.Channels {
			if freq == 0 {
				continue
			}
			if err := region.AddChannel(int(freq), 0, 5); err == nil {
				if idx, err := region.GetUplinkChannelIndex(int(freq), false); err == nil {
					enabled = appendUniqueInt(enabled, idx)
				}
			}
		}
	case lorawan.CFListChannelMask:
		enabled = enabled[:0]
		for blk, mask := range cf.ChMasks {
			for i, on := range mask {
				if on {
					enabled = append(enabled, blk*16+i)
				}
			}
		}
	}
	return enabled
}

func appendUniqueInt(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
