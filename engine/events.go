package engine

import "github.com/lora-edge/macd/maccommand"

// Event is surfaced to the caller asynchronously via the Events channel
// (spec.md §6: "LinkCheck{...}, DeviceTime{...}, MacStateChanged").
type Event interface {
	isEngineEvent()
}

// EventLinkCheck reports a LinkCheckAns.
type EventLinkCheck struct {
	Margin uint8
	GwCnt  uint8
}

func (EventLinkCheck) isEngineEvent() {}

// EventDeviceTime reports a DeviceTimeAns.
type EventDeviceTime struct {
	SecondsSinceEpoch uint32
	FracSecond        uint8
}

func (EventDeviceTime) isEngineEvent() {}

// EventDeviceStatus carries a battery/margin pair. The engine does not
// emit it: maccommand answers a DevStatusReq from the injected
// DeviceStatusSource without raising an event, and fromMacCommandEvent
// only maps LinkCheck and DeviceTime events.
type EventDeviceStatus struct {
	Battery uint8
	Margin  int8
}

func (EventDeviceStatus) isEngineEvent() {}

// EventMacStateChanged reports a State transition.
type EventMacStateChanged struct {
	From State
	To   State
}

func (EventMacStateChanged) isEngineEvent() {}

func fromMacCommandEvent(e maccommand.Event) Event {
	switch v := e.(type) {
	case maccommand.LinkCheckEvent:
		return EventLinkCheck{Margin: v.Margin, GwCnt: v.GwCnt}
	case maccommand.DeviceTimeEvent:
		return EventDeviceTime{SecondsSinceEpoch: v.SecondsSinceEpoch, FracSecond: v.FracSecond}
	default:
		return nil
	}
}
