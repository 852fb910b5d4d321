// Package logic contains pure business logic for the thermostat control loop.
// This package has NO external dependencies (no sensor bus, MQTT, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// State represents the logical state of the heater relay.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// StateFromBool converts a boolean actuator decision to a State.
func StateFromBool(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// On reports whether s is StateOn.
func (s State) On() bool {
	return s == StateOn
}

// ParseState parses "ON"/"OFF".
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateOn, StateOff:
		return State(s), nil
	}
	return "", fmt.Errorf("invalid heater state %q", s)
}

// Reading is the latest valid temperature sample. Valid is false when the
// sensor is disconnected or has never completed a conversion.
type Reading struct {
	Temp  float64
	Valid bool
}

// NoReading is the absent reading.
var NoReading = Reading{}

// ReadingOf returns a valid reading for temp.
func ReadingOf(temp float64) Reading {
	return Reading{Temp: temp, Valid: true}
}

// EventType represents a notable control-loop transition.
type EventType string

const (
	EventHeaterOn         EventType = "HEATER_ON"
	EventHeaterOff        EventType = "HEATER_OFF"
	EventSetpointChanged  EventType = "SETPOINT_CHANGED"
	EventInterlockTripped EventType = "INTERLOCK_TRIPPED"
	EventInterlockCleared EventType = "INTERLOCK_CLEARED"
	EventSensorLost       EventType = "SENSOR_LOST"
	EventSensorFound      EventType = "SENSOR_FOUND"
)

// Event represents a transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Heater    State
	Setpoint  Setpoint
	Reading   Reading
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	HeaterOn         int
	HeaterOff        int
	SetpointChanged  int
	InterlockTripped int
	InterlockCleared int
	SensorLost       int
	SensorFound      int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
