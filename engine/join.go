package engine

import (
	"context"
	"time"

	"github.com/lora-edge/macd/session"

	"github.com/lora-edge/macd"
)

// JoinResult summarizes a successful join (spec.md §6: SessionSummary).
type JoinResult struct {
	DevAddr lorawan.DevAddr
	NetID   lorawan.NetID
}

// Join runs the OTAA procedure to completion: build and transmit a
// JoinRequest, then race RX1 against RX2 for a MIC-valid JoinAccept. It
// retries on failure after the joinBackoff delay until it succeeds, ctx
// is cancelled or the DevNonce counter is exhausted.
func (e *Engine) Join(ctx context.Context) (JoinResult, error) {
	e.mu.Lock()
	if e.state != StateUnjoined {
		e.mu.Unlock()
		return JoinResult{}, ErrBusy
	}
	e.setState(StateJoining)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		if e.state == StateJoining {
			e.setState(StateUnjoined)
		}
		e.mu.Unlock()
	}()

	var attempt int
	for {
		select {
		case <-ctx.Done():
			return JoinResult{}, ErrCancelled
		default:
		}

		result, err := e.joinAttempt(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if err == ErrNonceExhausted {
			return JoinResult{}, err
		}

		attempt++
		backoff := joinBackoff(attempt)
		e.logger().WithField("attempt", attempt).WithField("backoff", backoff).Warn("engine: join attempt failed, backing off")

		select {
		case <-ctx.Done():
			return JoinResult{}, ErrCancelled
		case <-e.cfg.Timer.After(ctx, e.cfg.Timer.Now().Add(backoff)):
		}
	}
}

// joinBackoff enforces the aggregate join air-time ceiling of spec.md
// §4.6 (36s/1h, 72s/24h) via a simple escalating sleep rather than an
// explicit airtime ledger: every join uses the same PHY parameters, so a
// fixed schedule approximates the ceiling without tracking per-attempt
// airtime. The first few retries are short; later ones saturate at the
// 1-hour-window ceiling.
func joinBackoff(attempt int) time.Duration {
	switch {
	case attempt <= 1:
		return 5 * time.Second
	case attempt <= 3:
		return 30 * time.Second
	case attempt <= 8:
		return 5 * time.Minute
	default:
		return time.Hour
	}
}

func (e *Engine) joinAttempt(ctx context.Context, attempt int) (JoinResult, error) {
	devNonce, err := e.nextDevNonce(ctx)
	if err != nil {
		return JoinResult{}, err
	}

	frame, err := lorawan.EncodeJoinRequest(e.cfg.DevEUI, e.cfg.JoinEUI, devNonce, e.cfg.NwkKey)
	if err != nil {
		return JoinResult{}, err
	}

	joinDR, joinFreq := e.cfg.Region.GetJoinRequestChannel(attempt)

	if err := e.cfg.Radio.SetTXConfig(txConfigFor(e.cfg.Region, joinFreq, joinDR)); err != nil {
		return JoinResult{}, ErrRadioFail
	}

	txEnd, err := e.cfg.Radio.Send(ctx, frame)
	if err != nil {
		return JoinResult{}, ErrRadioFail
	}

	defaults := e.cfg.Region.GetDefaults()

	accept, err := e.awaitJoinAccept(ctx, txEnd, defaults)
	if err != nil {
		return JoinResult{}, err
	}

	keys, err := lorawan.DeriveSessionKeys1_0(e.cfg.NwkKey, accept.NetID, accept.JoinNonce, devNonce)
	if err != nil {
		return JoinResult{}, err
	}

	enabledChannels := e.cfg.Region.GetEnabledUplinkChannelIndices()
	if accept.CFList != nil {
		enabledChannels = applyCFList(e.cfg.Region, enabledChannels, accept.CFList)
	}

	rxDelay := accept.RxDelay
	if rxDelay == 0 {
		rxDelay = 1
	}

	sess := session.Session{
		DevAddr:         accept.DevAddr,
		NwkSKey:         keys.NwkSKey,
		AppSKey:         keys.AppSKey,
		Region:          e.cfg.Region.Name(),
		RX1DROffset:     accept.DLSettings.RX1DROffset,
		RX2DataRate:     accept.DLSettings.RX2DataRate,
		RX2Frequency:    uint32(defaults.RX2Frequency),
		RXDelay:         time.Duration(rxDelay) * time.Second,
		EnabledChannels: enabledChannels,
		NbTrans:         1,
		JoinedAt:        e.timeNow(),
	}

	if err := e.cfg.Store.PersistSession(ctx, e.cfg.DevEUI, sess); err != nil {
		// Persistence failure on Join Accept: discard, remain Unjoined
		// (spec.md §4.7).
		return JoinResult{}, err
	}

	e.mu.Lock()
	e.sess = &sess
	e.setState(StateIdle)
	e.mu.Unlock()

	return JoinResult{DevAddr: accept.DevAddr, NetID: accept.NetID}, nil
}

func (e *Engine) timeNow() time.Time {
	if e.cfg.Timer != nil {
		return e.cfg.Timer.Now()
	}
	return time.Now()
}

