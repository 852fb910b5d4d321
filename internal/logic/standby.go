package logic

import "time"

// StandbyPhase is the state of the low-power policy.
type StandbyPhase string

const (
	StandbyActive   StandbyPhase = "ACTIVE"
	StandbyArmed    StandbyPhase = "ARMED"
	StandbySleeping StandbyPhase = "SLEEPING"
)

// Standby suspends most activity while the effective setpoint is at or below
// Threshold. It waits for one successful remote exchange before sleeping so a
// remote setpoint change is never missed, then sleeps for Duration.
type Standby struct {
	threshold float64
	duration  time.Duration

	phase StandbyPhase
	until time.Time
}

// NewStandby creates the policy in the Active phase.
func NewStandby(threshold float64, duration time.Duration) *Standby {
	return &Standby{threshold: threshold, duration: duration, phase: StandbyActive}
}

// Phase returns the current phase.
func (s *Standby) Phase() StandbyPhase {
	return s.phase
}

// Until returns the end of the current sleep. Zero unless sleeping.
func (s *Standby) Until() time.Time {
	if s.phase != StandbySleeping {
		return time.Time{}
	}
	return s.until
}

// ObserveSetpoint arms or disarms the policy from the effective setpoint.
// A disabled thermostat counts as at-or-below threshold.
func (s *Standby) ObserveSetpoint(sp Setpoint) {
	low := !sp.Enabled || sp.Value <= s.threshold
	switch s.phase {
	case StandbyActive:
		if low {
			s.phase = StandbyArmed
		}
	case StandbyArmed:
		if !low {
			s.phase = StandbyActive
		}
	}
}

// ObserveExchange feeds the reconciler's success signal. A success while armed
// starts the sleep.
func (s *Standby) ObserveExchange(ok bool, now time.Time) {
	if s.phase == StandbyArmed && ok {
		s.phase = StandbySleeping
		s.until = now.Add(s.duration)
	}
}

// Sleeping reports whether activity should be suspended at now. The sleep ends
// on its own once Duration has passed.
func (s *Standby) Sleeping(now time.Time) bool {
	if s.phase != StandbySleeping {
		return false
	}
	if now.Before(s.until) {
		return true
	}
	s.phase = StandbyActive
	s.until = time.Time{}
	return false
}
