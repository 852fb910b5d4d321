// Package store persists the thermostat's setpoint record.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("store: no record")

// Record is the durable state of the node.
type Record struct {
	Setpoint  float64   `json:"setpoint"`
	Preset    string    `json:"preset"`
	Enabled   bool      `json:"enabled"`
	DeviceID  string    `json:"device_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store loads and saves the record.
type Store interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
}

// RecordOf builds a record for sp.
func RecordOf(sp logic.Setpoint, deviceID string, at time.Time) Record {
	return Record{
		Setpoint:  sp.Value,
		Preset:    string(sp.Preset),
		Enabled:   sp.Enabled,
		DeviceID:  deviceID,
		UpdatedAt: at.UTC(),
	}
}

// ToSetpoint validates the record and converts it back.
func (r Record) ToSetpoint() (logic.Setpoint, error) {
	p, err := logic.ParsePreset(r.Preset)
	if err != nil {
		return logic.Setpoint{}, err
	}
	if !logic.InRange(r.Setpoint) {
		return logic.Setpoint{}, fmt.Errorf("%w: %.2f", logic.ErrSetpointRange, r.Setpoint)
	}
	return logic.Setpoint{Value: r.Setpoint, Preset: p, Enabled: r.Enabled}, nil
}
