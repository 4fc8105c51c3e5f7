package engine

import (
	"context"
	"time"

	"github.com/lora-edge/macd/radio"
	"github.com/lora-edge/macd/scheduler"
	"github.com/lora-edge/macd/session"

	"github.com/lora-edge/macd"
)

// Send transmits an application uplink and awaits the RX1/RX2 reply
// cycle, retrying up to Session.NbTrans times when confirmed is true
// and no ACK arrives (spec.md §4.6, scenario S3).
func (e *Engine) Send(ctx context.Context, port uint8, payload []byte, confirmed bool) (SendOutcome, error) {
	e.mu.Lock()
	if e.sess == nil {
		e.mu.Unlock()
		return SendOutcome{}, ErrNotJoined
	}
	if e.state != StateIdle {
		e.mu.Unlock()
		return SendOutcome{}, ErrBusy
	}
	sess := e.sess
	e.setState(StateTxPending)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.setState(StateIdle)
		e.mu.Unlock()
	}()

	nbTrans := sess.NbTrans
	if nbTrans == 0 {
		nbTrans = 1
	}
	if !confirmed {
		nbTrans = 1
	}

	var outcome SendOutcome

	for attempt := uint8(0); attempt < nbTrans; attempt++ {
		select {
		case <-ctx.Done():
			return SendOutcome{}, ErrCancelled
		default:
		}

		out, acked, err := e.sendOnce(ctx, sess, port, payload, confirmed)
		if err != nil {
			// Every sendOnce error here is permanent (bad payload size,
			// no channel, radio failure, counter exhaustion): a missing
			// ack is reported as acked == false with a nil error instead,
			// so retrying a real error would just repeat it.
			return SendOutcome{}, err
		}
		outcome = out
		if !confirmed || acked {
			return outcome, nil
		}
	}

	return outcome, nil
}

func (e *Engine) sendOnce(ctx context.Context, sess *session.Session, port uint8, payload []byte, confirmed bool) (SendOutcome, bool, error) {
	if sess.FCntUp == ^uint32(0) {
		return SendOutcome{}, false, ErrFCntUpExhausted
	}

	maxSize, err := e.cfg.Region.GetMaxPayloadSizeForDataRateIndex("1.0.4", "RP002-1.0.4", int(sess.ADR.DataRate))
	if err != nil {
		return SendOutcome{}, false, ErrNoChannel
	}
	if len(payload) > maxSize.N {
		return SendOutcome{}, false, ErrPayloadTooLarge
	}

	decision, err := e.sched.Select(scheduler.Request{
		Session:     sess,
		Region:      e.cfg.Region,
		DataRate:    sess.ADR.DataRate,
		PayloadSize: len(payload),
		Confirmed:   confirmed,
		Now:         e.timeNow(),
	})
	if err != nil {
		return SendOutcome{}, false, err
	}
	if decision.TXInstant.After(e.timeNow()) {
		select {
		case <-ctx.Done():
			return SendOutcome{}, false, ErrCancelled
		case <-e.cfg.Timer.After(ctx, decision.TXInstant):
		}
	}

	fOpts := e.encodeFOpts()

	adrAckReq := sess.ADR.Enabled && sess.ADR.ADRAckCnt >= ADRAckLimit
	fCtrl, err := lorawan.NewFCtrl(sess.ADR.Enabled, adrAckReq, false, false, uint8(len(fOpts)))
	if err != nil {
		return SendOutcome{}, false, err
	}

	mtype := lorawan.UnconfirmedDataUp
	if confirmed {
		mtype = lorawan.ConfirmedDataUp
	}

	keys := lorawan.SessionKeys{NwkSKey: sess.NwkSKey, AppSKey: sess.AppSKey}
	var fPort *uint8
	if len(payload) > 0 {
		p := port
		fPort = &p
	}

	frame, err := lorawan.EncodeDataUplink(mtype, keys, sess.DevAddr, fCtrl, sess.FCntUp, fOpts, fPort, payload)
	if err != nil {
		return SendOutcome{}, false, err
	}

	if err := e.cfg.Radio.SetTXConfig(txConfigFor(e.cfg.Region, decision.Frequency, int(decision.DataRate))); err != nil {
		return SendOutcome{}, false, ErrRadioFail
	}
	txEnd, err := e.cfg.Radio.Send(ctx, frame)
	if err != nil {
		return SendOutcome{}, false, ErrRadioFail
	}
	e.sched.Commit(decision)

	sess.FCntUp++
	sess.ADR.ADRAckCnt++
	if err := e.cfg.Store.PersistSession(ctx, e.cfg.DevEUI, *sess); err != nil {
		return SendOutcome{}, false, err
	}

	e.mu.Lock()
	e.setState(StateAwaitRx1)
	e.mu.Unlock()

	downlink, acked, err := e.awaitDataDownlink(ctx, sess, txEnd, decision)
	if err != nil {
		e.maybeStepADR(sess)
		return SendOutcome{}, false, nil
	}

	sess.ADR.ADRAckCnt = 0
	if err := e.cfg.Store.PersistSession(ctx, e.cfg.DevEUI, *sess); err != nil {
		return SendOutcome{}, false, err
	}

	return SendOutcome{Downlink: downlink, Ack: acked}, acked, nil
}

// maybeStepADR implements the back-off half of spec.md §4.6: after
// ADR_ACK_LIMIT silent uplinks the device already requests an ack via
// ADRAckReq (set in sendOnce); after a further ADR_ACK_DELAY uplinks
// still without a downlink, step the DR down and fall back to the
// default TX power, then count another ADR_ACK_DELAY uplinks before the
// next step.
func (e *Engine) maybeStepADR(sess *session.Session) {
	if !sess.ADR.Enabled {
		return
	}
	if sess.ADR.ADRAckCnt < ADRAckLimit+ADRAckDelay {
		return
	}
	if sess.ADR.DataRate > 0 {
		sess.ADR.DataRate--
	}
	sess.ADR.TXPowerIndex = 0
	sess.ADR.ADRAckCnt = ADRAckLimit
}

func (e *Engine) encodeFOpts() []byte {
	var out []byte
	for _, cmd := range e.mac.PendingUplink() {
		b, err := cmd.MarshalBinary()
		if err != nil {
			continue
		}
		if len(out)+len(b) > 15 {
			break
		}
		out = append(out, b...)
	}
	return out
}

func (e *Engine) awaitDataDownlink(ctx context.Context, sess *session.Session, txEnd time.Time, decision scheduler.Decision) (*Downlink, bool, error) {
	rx1DR, err := e.cfg.Region.GetRX1DataRateIndex(int(decision.DataRate), int(sess.RX1DROffset))
	if err != nil {
		rx1DR = int(sess.RX2DataRate)
	}

	var rx1Freq int
	if override, ok := sess.DLChannelOverrides[uint8(decision.ChannelIndex)]; ok {
		rx1Freq = int(override)
	} else if f, err := e.cfg.Region.GetRX1FrequencyForUplinkFrequency(decision.Frequency); err == nil {
		rx1Freq = f
	} else {
		rx1Freq = decision.Frequency
	}

	rxDelay := sess.RXDelay
	if rxDelay == 0 {
		rxDelay = time.Second
	}

	rx1At := txEnd.Add(rxDelay)
	dl, err := e.tryReceiveDataDownlink(ctx, sess, rx1At, time.Second, rx1Freq, rx1DR)
	if err == nil {
		return dl.downlink, dl.acked, nil
	}

	e.mu.Lock()
	e.setState(StateAwaitRx2)
	e.mu.Unlock()

	rx2At := txEnd.Add(rxDelay + time.Second)
	dl, err = e.tryReceiveDataDownlink(ctx, sess, rx2At, time.Second, int(sess.RX2Frequency), int(sess.RX2DataRate))
	if err != nil {
		return nil, false, ErrNoAck
	}
	return dl.downlink, dl.acked, nil
}

type downlinkResult struct {
	downlink *Downlink
	acked    bool
}

func (e *Engine) tryReceiveDataDownlink(ctx context.Context, sess *session.Session, openAt time.Time, window time.Duration, freq, dr int) (downlinkResult, error) {
	select {
	case <-ctx.Done():
		return downlinkResult{}, ErrCancelled
	case <-e.cfg.Timer.After(ctx, openAt):
	}

	if err := e.cfg.Radio.SetRXConfig(txConfigFor(e.cfg.Region, freq, dr)); err != nil {
		return downlinkResult{}, ErrRadioFail
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

	var pkt radio.RxPacket
	select {
	case r := <-rxCh:
		if r.err != nil || r.pkt.CRCError {
			return downlinkResult{}, ErrNoAck
		}
		pkt = r.pkt
	case <-e.cfg.Timer.After(ctx, openAt.Add(window)):
		return downlinkResult{}, ErrNoAck
	case <-ctx.Done():
		return downlinkResult{}, ErrCancelled
	}

	e.mu.Lock()
	e.setState(StateProcessingDownlink)
	e.mu.Unlock()

	decoded, err := lorawan.DecodeDataDownlink(pkt.Data, lorawan.SessionKeys{NwkSKey: sess.NwkSKey, AppSKey: sess.AppSKey}, sess.DevAddr, sess.NFCntDown, sess.AFCntDown, e.cfg.MaxFCntGap)
	if err != nil {
		// MIC failure, address mismatch or replay: drop silently, leave
		// counters unchanged (spec.md §4.7).
		return downlinkResult{}, ErrNoAck
	}

	useAppCounter := decoded.FPort != nil && *decoded.FPort > 0
	if useAppCounter {
		sess.AFCntDown = decoded.FCntDown + 1
	} else {
		sess.NFCntDown = decoded.FCntDown + 1
	}

	if len(decoded.FOpts) > 0 {
		cmds, _ := lorawan.DecodeMACCommands(false, decoded.FOpts)
		e.dispatchMacCommands(cmds, sess)
	} else if decoded.FPort != nil && *decoded.FPort == 0 && len(decoded.Payload) > 0 {
		cmds, _ := lorawan.DecodeMACCommands(false, decoded.Payload)
		e.dispatchMacCommands(cmds, sess)
	}

	var dl *Downlink
	if decoded.FPort != nil && *decoded.FPort > 0 && len(decoded.Payload) > 0 {
		dl = &Downlink{Port: *decoded.FPort, Payload: decoded.Payload}
	}

	return downlinkResult{downlink: dl, acked: decoded.FCtrl.ACK()}, nil
}

func (e *Engine) dispatchMacCommands(cmds []lorawan.MACCommand, sess *session.Session) {
	events, err := e.mac.ProcessDownlink(cmds, sess, e.cfg.Region)
	if err != nil {
		e.logger().WithError(err).Warn("engine: failed to process downlink MAC commands")
		return
	}
	for _, ev := range events {
		if mapped := fromMacCommandEvent(ev); mapped != nil {
			select {
			case e.Events <- mapped:
			default:
			}
		}
	}
}
