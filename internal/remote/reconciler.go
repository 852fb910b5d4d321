package remote

import (
	"time"

	"github.com/sweeney/thermostat/internal/logic"
)

// Default reconciler tuning.
const (
	DefaultInterval = 1500 * time.Millisecond
	DefaultEpsilon  = 0.05
)

// Snapshot is the last answer from the authority, for display.
// It is never used for actuation.
type Snapshot struct {
	At         time.Time
	OK         bool
	Mode       string
	Setpoint   *float64
	ActualTemp *float64
	Err        string
}

// Reconciler rate-limits exchanges and applies the adoption rule.
// Owned by the control loop; not safe for concurrent use.
type Reconciler struct {
	interval time.Duration
	epsilon  float64

	attempted bool
	last      time.Time
	snapshot  Snapshot
	successes int
	failures  int
}

// NewReconciler creates a reconciler allowing one exchange per interval.
func NewReconciler(interval time.Duration, epsilon float64) *Reconciler {
	return &Reconciler{interval: interval, epsilon: epsilon}
}

// Due reports whether an exchange may start at now and, if so, claims the
// slot. Attempts inside the interval are skipped, not queued.
func (r *Reconciler) Due(now time.Time) bool {
	if r.attempted && now.Sub(r.last) < r.interval {
		return false
	}
	r.attempted = true
	r.last = now
	return true
}

// Release gives back a slot claimed by Due that was not used, for example
// because the worker was still busy.
func (r *Reconciler) Release() {
	r.attempted = false
}

// BuildReport assembles the report: the confirmed heater state when it is
// fresh, the commanded state otherwise.
func BuildReport(reading logic.Reading, a logic.ActuatorState, now time.Time, freshness time.Duration) Report {
	return Report{Reading: reading, Heater: a.Effective(now, freshness)}
}

// Apply records the outcome of an exchange and returns the setpoint to use
// from now on. adopted is true when the authority's setpoint replaced
// current; the caller must then persist with force.
func (r *Reconciler) Apply(res Result, current logic.Setpoint) (next logic.Setpoint, adopted bool) {
	r.snapshot = Snapshot{
		At:         res.At,
		OK:         res.Err == nil && res.Response.OK,
		Mode:       res.Response.Mode,
		Setpoint:   res.Response.Setpoint,
		ActualTemp: res.Response.ActualTemp,
	}
	if res.Err != nil {
		r.snapshot.Err = res.Err.Error()
		r.failures++
		return current, false
	}
	r.successes++
	if !res.Response.OK || res.Response.Setpoint == nil {
		return current, false
	}
	return logic.AdoptRemote(current, *res.Response.Setpoint, r.epsilon)
}

// Snapshot returns the last recorded answer.
func (r *Reconciler) Snapshot() Snapshot {
	return r.snapshot
}

// Counts returns the number of successful and failed exchanges applied.
func (r *Reconciler) Counts() (successes, failures int) {
	return r.successes, r.failures
}
