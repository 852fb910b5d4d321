// Package mqtt publishes thermostat telemetry and carries relay traffic over
// an MQTT broker, with abstractions for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
)

// Default topics. All are configurable.
const (
	DefaultTelemetryTopic = "home/heating/thermostat/events"
	DefaultSystemTopic    = "home/heating/thermostat/system"
)

// Publisher publishes thermostat events to MQTT.
type Publisher interface {
	// Publish sends a control-loop event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a control-loop event.
type Payload struct {
	Thermostat EventPayload `json:"thermostat"`
}

// EventPayload contains the event details.
type EventPayload struct {
	Timestamp   string          `json:"timestamp"`
	Event       string          `json:"event"`
	Heater      string          `json:"heater"`
	Setpoint    SetpointPayload `json:"setpoint"`
	Temperature *float64        `json:"temperature"` // null when no valid reading
}

// SetpointPayload is the setpoint at the time of the event.
type SetpointPayload struct {
	Value   float64 `json:"value"`
	Preset  string  `json:"preset"`
	Enabled bool    `json:"enabled"`
}

// FormatPayload creates the JSON payload for a control-loop event.
func FormatPayload(event logic.Event) ([]byte, error) {
	var temp *float64
	if event.Reading.Valid {
		t := event.Reading.Temp
		temp = &t
	}
	payload := Payload{
		Thermostat: EventPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Heater:    string(event.Heater),
			Setpoint: SetpointPayload{
				Value:   event.Setpoint.Value,
				Preset:  string(event.Setpoint.Preset),
				Enabled: event.Setpoint.Enabled,
			},
			Temperature: temp,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
