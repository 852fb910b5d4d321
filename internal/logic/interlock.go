package logic

import "time"

// InterlockPhase is the state of the run-time safety interlock.
type InterlockPhase string

const (
	InterlockNormal    InterlockPhase = "NORMAL"
	InterlockForcedOff InterlockPhase = "FORCED_OFF"
)

// Interlock limits continuous heater run time. After the commanded state has
// been ON for MaxOn it forces OFF for Cooldown, then returns to Normal.
// It sits after Hysteresis and never changes the hysteresis memory.
type Interlock struct {
	maxOn    time.Duration
	cooldown time.Duration

	phase       InterlockPhase
	onSince     time.Time
	forcedUntil time.Time
}

// InterlockTransition reports a phase change from Apply.
type InterlockTransition int

const (
	InterlockUnchanged InterlockTransition = iota
	InterlockTripped
	InterlockCleared
)

// NewInterlock creates an interlock. maxOn <= 0 disables it.
func NewInterlock(maxOn, cooldown time.Duration) *Interlock {
	return &Interlock{maxOn: maxOn, cooldown: cooldown, phase: InterlockNormal}
}

// Phase returns the current phase.
func (i *Interlock) Phase() InterlockPhase {
	return i.phase
}

// ForcedUntil returns when the cool-down ends. Zero in Normal.
func (i *Interlock) ForcedUntil() time.Time {
	if i.phase != InterlockForcedOff {
		return time.Time{}
	}
	return i.forcedUntil
}

// Apply filters the commanded state through the interlock.
func (i *Interlock) Apply(commanded State, now time.Time) (State, InterlockTransition) {
	if i.maxOn <= 0 {
		return commanded, InterlockUnchanged
	}

	transition := InterlockUnchanged
	if i.phase == InterlockForcedOff {
		if now.Before(i.forcedUntil) {
			return StateOff, InterlockUnchanged
		}
		i.phase = InterlockNormal
		i.onSince = time.Time{}
		i.forcedUntil = time.Time{}
		transition = InterlockCleared
	}

	if commanded != StateOn {
		i.onSince = time.Time{}
		return commanded, transition
	}

	if i.onSince.IsZero() {
		i.onSince = now
	}
	if now.Sub(i.onSince) > i.maxOn {
		i.phase = InterlockForcedOff
		i.forcedUntil = now.Add(i.cooldown)
		i.onSince = time.Time{}
		return StateOff, InterlockTripped
	}
	return StateOn, transition
}
