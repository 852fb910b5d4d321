package logic

import (
	"errors"
	"fmt"
	"math"
)

// Valid setpoint range in °C.
const (
	MinSetpoint = 5.0
	MaxSetpoint = 35.0
)

// ErrSetpointRange is returned for setpoints outside [MinSetpoint, MaxSetpoint].
var ErrSetpointRange = errors.New("setpoint out of range")

// Preset names where a setpoint came from.
type Preset string

const (
	PresetOff    Preset = "off"
	PresetOn     Preset = "on"
	PresetAway   Preset = "away"
	PresetCustom Preset = "custom"
	PresetRemote Preset = "remote"
)

// presetValues holds the fixed temperatures of the named presets.
var presetValues = map[Preset]float64{
	PresetOff:  10,
	PresetOn:   19,
	PresetAway: 15,
}

// PresetValue returns the temperature for a named preset.
// custom and remote have no fixed value.
func PresetValue(p Preset) (float64, bool) {
	v, ok := presetValues[p]
	return v, ok
}

// ParsePreset parses a preset name.
func ParsePreset(s string) (Preset, error) {
	switch p := Preset(s); p {
	case PresetOff, PresetOn, PresetAway, PresetCustom, PresetRemote:
		return p, nil
	}
	return "", fmt.Errorf("unknown preset %q", s)
}

// Setpoint is the active target temperature and where it came from.
type Setpoint struct {
	Value   float64
	Preset  Preset
	Enabled bool
}

// DefaultSetpoint is used when nothing has been persisted yet.
func DefaultSetpoint() Setpoint {
	return Setpoint{Value: presetValues[PresetOn], Preset: PresetOn, Enabled: true}
}

// InRange reports whether v is an acceptable setpoint.
func InRange(v float64) bool {
	return !math.IsNaN(v) && v >= MinSetpoint && v <= MaxSetpoint
}

// FromPreset builds a setpoint from a named preset.
func FromPreset(p Preset) (Setpoint, error) {
	v, ok := PresetValue(p)
	if !ok {
		return Setpoint{}, fmt.Errorf("preset %q has no fixed value", p)
	}
	return Setpoint{Value: v, Preset: p, Enabled: true}, nil
}

// Custom builds a user-chosen setpoint.
func Custom(v float64) (Setpoint, error) {
	if !InRange(v) {
		return Setpoint{}, fmt.Errorf("%w: %.2f", ErrSetpointRange, v)
	}
	return Setpoint{Value: v, Preset: PresetCustom, Enabled: true}, nil
}

// AdoptRemote applies the remote adoption rule. It returns the new setpoint and
// true when reported is in range and differs from current by more than epsilon.
// The adopted setpoint is tagged PresetRemote and keeps current's Enabled flag.
func AdoptRemote(current Setpoint, reported, epsilon float64) (Setpoint, bool) {
	if !InRange(reported) {
		return current, false
	}
	if math.Abs(reported-current.Value) <= epsilon {
		return current, false
	}
	return Setpoint{Value: reported, Preset: PresetRemote, Enabled: current.Enabled}, true
}
