// Package relay carries the heater decision to the physical relay and
// returns its acknowledgments.
//
// Links are best-effort: a successful Send only means the command left this
// process. Whatever the relay actually did arrives later, if at all, on Acks.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sweeney/thermostat/internal/logic"
)

// Link is a transport to the relay.
type Link interface {
	// Send transmits one command. At most once per call; no delivery
	// confirmation is implied by a nil error.
	Send(cmd Command) error

	// Acks delivers decoded acknowledgments. The channel is never closed
	// while the link is open; receivers should drain it without blocking.
	Acks() <-chan Ack

	// Close releases the transport.
	Close() error
}

// Command is the message sent to the relay.
type Command struct {
	Heater logic.State `json:"heater"`
	ID     string      `json:"id"`
}

// Ack is an accepted acknowledgment: the state the relay reports it adopted.
type Ack struct {
	State logic.State
}

// Errors returned by DecodeAck. Both mean the message must be discarded.
var (
	ErrAckRejected  = errors.New("relay: ack not ok")
	ErrAckNoRelay   = errors.New("relay: ack without relay state")
	ErrAckMalformed = errors.New("relay: malformed ack")
)

// wireAck is the acknowledgment as sent by the relay node.
type wireAck struct {
	Ack   string `json:"ack"`
	Relay *int   `json:"relay"`
	OK    bool   `json:"ok"`
}

// EncodeCommand renders cmd as {"heater":"ON","id":"..."}.
func EncodeCommand(cmd Command) ([]byte, error) {
	if _, err := logic.ParseState(string(cmd.Heater)); err != nil {
		return nil, err
	}
	return json.Marshal(cmd)
}

// DecodeAck parses {"ack":"ON","relay":1,"ok":true}. The relay field is
// authoritative; "ack" only echoes the command the relay received.
func DecodeAck(data []byte) (Ack, error) {
	var w wireAck
	if err := json.Unmarshal(data, &w); err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrAckMalformed, err)
	}
	if !w.OK {
		return Ack{}, ErrAckRejected
	}
	if w.Relay == nil {
		return Ack{}, ErrAckNoRelay
	}
	switch *w.Relay {
	case 0:
		return Ack{State: logic.StateOff}, nil
	case 1:
		return Ack{State: logic.StateOn}, nil
	}
	return Ack{}, fmt.Errorf("%w: relay=%d", ErrAckMalformed, *w.Relay)
}

// EncodeAck renders an acknowledgment in wire form. Used by links that
// synthesize acks locally and by tests.
func EncodeAck(state logic.State, ok bool) ([]byte, error) {
	relay := 0
	if state.On() {
		relay = 1
	}
	return json.Marshal(wireAck{Ack: string(state), Relay: &relay, OK: ok})
}

// offer delivers ack without blocking. A full channel drops the ack; it
// would be stale by the time the loop got to it anyway.
func offer(ch chan Ack, ack Ack) bool {
	select {
	case ch <- ack:
		return true
	default:
		return false
	}
}
