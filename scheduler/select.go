package scheduler

import (
	"errors"
	"math/rand"
	"time"

	"github.com/lora-edge/macd/airtime"
	"github.com/lora-edge/macd/band"
	"github.com/lora-edge/macd/session"

	"github.com/lora-edge/macd"
)

// ErrNoChannel is returned when no enabled channel supports the
// requested data rate.
var ErrNoChannel = errors.New("scheduler: no channel available for data rate")

// Request describes the uplink the caller wants to schedule. DataRate is
// the candidate data rate already resolved by the caller (session DR,
// possibly lowered by ADR back-off per spec.md §4.6) -- the scheduler
// itself only picks among channels, never second-guesses the DR choice.
type Request struct {
	Session     *session.Session
	Region      band.Band
	DataRate    uint8
	PayloadSize int
	Confirmed   bool
	Now         time.Time
}

// Decision is the scheduler's chosen transmission parameters.
type Decision struct {
	ChannelIndex int
	Frequency    int
	DataRate     uint8
	TXPower      uint8
	TXInstant    time.Time
	OnAir        time.Duration
}

// Scheduler picks channel, DR, TX power and TX instant for the next
// uplink, tracking duty-cycle usage in a Ledger.
type Scheduler struct {
	Ledger *Ledger
	RNG    *rand.Rand
}

// New creates a Scheduler for the given region, seeding its RNG from src.
func New(region string, src rand.Source) *Scheduler {
	return &Scheduler{
		Ledger: NewLedger(region),
		RNG:    rand.New(src),
	}
}

// Select implements the channel/DR/power/instant algorithm of spec.md
// §4.5. On a duty-cycle exhaustion it returns the earliest legal TX
// instant for the best candidate channel rather than an error; the
// caller decides whether to wait or abort.
func (s *Scheduler) Select(req Request) (Decision, error) {
	dr, err := req.Region.GetDataRate(int(req.DataRate))
	if err != nil {
		return Decision{}, err
	}

	candidates := channelsForDataRate(req.Region, req.Session.EnabledChannels, int(req.DataRate))
	if len(candidates) == 0 {
		return Decision{}, ErrNoChannel
	}

	if err := checkDwellTime(req.Region, req.Session, int(req.DataRate), req.PayloadSize); err != nil {
		return Decision{}, err
	}

	onAir, err := estimateAirtime(dr, req.PayloadSize)
	if err != nil {
		return Decision{}, err
	}

	var legal []channelCandidate
	for _, c := range candidates {
		if s.Ledger.Allowed(req.Now, c.index, onAir) {
			legal = append(legal, c)
		}
	}

	if len(legal) == 0 {
		earliest := req.Now
		best := candidates[0]
		for i, c := range candidates {
			at := s.Ledger.EarliestAvailable(req.Now, c.index, onAir)
			if i == 0 || at.Before(earliest) {
				earliest = at
				best = c
			}
		}
		return Decision{
			ChannelIndex: best.index,
			Frequency:    best.frequency,
			DataRate:     req.DataRate,
			TXPower:      req.Session.ADR.TXPowerIndex,
			TXInstant:    earliest,
			OnAir:        onAir,
		}, nil
	}

	chosen := legal[s.RNG.Intn(len(legal))]

	return Decision{
		ChannelIndex: chosen.index,
		Frequency:    chosen.frequency,
		DataRate:     req.DataRate,
		TXPower:      req.Session.ADR.TXPowerIndex,
		TXInstant:    req.Now,
		OnAir:        onAir,
	}, nil
}

// Commit records the on-air time of a decision once the frame is
// actually transmitted (spec.md §4.5 step 6).
func (s *Scheduler) Commit(d Decision) {
	s.Ledger.Record(d.ChannelIndex, d.TXInstant, d.OnAir)
}

type channelCandidate struct {
	index     int
	frequency int
}

func channelsForDataRate(region band.Band, enabled []int, dr int) []channelCandidate {
	var out []channelCandidate
	for _, idx := range enabled {
		ch, err := region.GetUplinkChannel(idx)
		if err != nil {
			continue
		}
		if dr < ch.MinDR || dr > ch.MaxDR {
			continue
		}
		out = append(out, channelCandidate{index: idx, frequency: ch.Frequency})
	}
	return out
}

// checkDwellTime enforces the dwell-time-region payload-size cap
// (spec.md §4.5, "Dwell-time regions additionally require..."). Regions
// without a dwell-time constraint report dwellTimeUplink as
// DwellTimeNoLimit and this is a no-op for them.
func checkDwellTime(region band.Band, sess *session.Session, dr, payloadSize int) error {
	if sess.DwellTimeUplink == lorawan.DwellTimeNoLimit {
		return nil
	}
	size, err := region.GetMaxPayloadSizeForDataRateIndex("1.0.4", "RP002-1.0.4", dr)
	if err != nil {
		return err
	}
	if payloadSize > size.N {
		return errors.New("scheduler: payload exceeds dwell-time max payload size for data rate")
	}
	return nil
}

func estimateAirtime(dr band.DataRate, payloadSize int) (time.Duration, error) {
	if dr.Modulation != band.LoRaModulation {
		return 0, errors.New("scheduler: airtime estimation only supports LoRa modulation")
	}
	lowDR := dr.SpreadFactor >= 11
	return airtime.CalculateLoRaAirtime(payloadSize, dr.SpreadFactor, dr.Bandwidth*1000, 8, airtime.CodingRate45, true, lowDR)
}
