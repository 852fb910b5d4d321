package logic

import "time"

// DefaultFreshness is how long a relay acknowledgment stays usable.
const DefaultFreshness = 5000 * time.Millisecond

// ActuatorState tracks the locally commanded decision and the state the relay
// last confirmed.
type ActuatorState struct {
	Commanded State

	Confirmed   State
	ConfirmedAt time.Time // zero until the first acknowledgment
}

// Confirm records an acknowledgment from the relay.
func (a *ActuatorState) Confirm(s State, at time.Time) {
	a.Confirmed = s
	a.ConfirmedAt = at
}

// ConfirmedAge returns how old the confirmed state is. ok is false when no
// acknowledgment has ever arrived.
func (a ActuatorState) ConfirmedAge(now time.Time) (age time.Duration, ok bool) {
	if a.ConfirmedAt.IsZero() {
		return 0, false
	}
	return now.Sub(a.ConfirmedAt), true
}

// Fresh reports whether the confirmed state is within the freshness window.
func (a ActuatorState) Fresh(now time.Time, freshness time.Duration) bool {
	age, ok := a.ConfirmedAge(now)
	return ok && age <= freshness
}

// Effective returns the confirmed state when fresh, else the commanded state.
// This is what the UI shows and what is reported to the remote authority.
func (a ActuatorState) Effective(now time.Time, freshness time.Duration) State {
	if a.Fresh(now, freshness) {
		return a.Confirmed
	}
	if a.Commanded == "" {
		return StateOff
	}
	return a.Commanded
}
