package logic

// Hysteresis configures the dead-band decision.
type Hysteresis struct {
	// Band is the total dead-band width in °C, split symmetrically around the setpoint.
	Band float64
	// Ceiling forces OFF when the reading is at or above it. 0 disables.
	Ceiling float64
}

// DefaultBand is the reference dead-band width.
const DefaultBand = 0.5

// Thresholds returns the ON and OFF thresholds for setpoint.
func (h Hysteresis) Thresholds(setpoint float64) (on, off float64) {
	half := h.Band / 2
	return setpoint - half, setpoint + half
}

// Decide computes the next heater decision. It is a pure function of its inputs:
//   - no valid reading: OFF
//   - reading at or above the ceiling (when set): OFF
//   - reading below setpoint-band/2: ON
//   - reading above setpoint+band/2: OFF
//   - otherwise: prev
func (h Hysteresis) Decide(r Reading, setpoint float64, prev State) State {
	if !r.Valid {
		return StateOff
	}
	if h.Ceiling > 0 && r.Temp >= h.Ceiling {
		return StateOff
	}
	on, off := h.Thresholds(setpoint)
	switch {
	case r.Temp < on:
		return StateOn
	case r.Temp > off:
		return StateOff
	}
	if prev == "" {
		return StateOff
	}
	return prev
}
