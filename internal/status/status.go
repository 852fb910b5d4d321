// Package status provides a thread-safe status tracker for the thermostat daemon.
// The control loop writes it once per tick; HTTP handlers and MQTT system
// events read snapshots of it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	DeviceID          string
	TickMs            int64
	BandC             float64
	OverheatC         float64
	SendIntervalMs    int64
	FreshnessMs       int64
	MaxOnMs           int64
	CooldownMs        int64
	RemoteEndpoint    string
	RemoteIntervalMs  int64
	StandbyEnabled    bool
	StandbyThresholdC float64
	HeartbeatMs       int64
	Broker            string
	HTTPPort          string
	StoreDriver       string
}

// RemoteInfo is the last answer from the remote authority.
type RemoteInfo struct {
	At         time.Time
	OK         bool
	Mode       string
	Setpoint   *float64
	ActualTemp *float64
	Err        string
}

// Control is the control loop's state at the end of a tick.
type Control struct {
	Reading        logic.Reading
	SensorPresent  bool
	SensorAddress  string
	Setpoint       logic.Setpoint
	Decision       logic.State // hysteresis output before interlock and gating
	Actuator       logic.ActuatorState
	Effective      logic.State
	ConfirmedFresh bool
	Interlock      logic.InterlockPhase
	ForcedUntil    time.Time
	Standby        logic.StandbyPhase
	StandbyUntil   time.Time
	Remote         *RemoteInfo // nil until the first exchange completes
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Control
	Baselined     bool
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// ConfirmedAge returns the age of the last acknowledgment at s.Now.
func (s Snapshot) ConfirmedAge() (time.Duration, bool) {
	return s.Actuator.ConfirmedAge(s.Now)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu    sync.RWMutex
	snap  Snapshot
	clock func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		clock: time.Now,
	}
}

// SetClock replaces the clock used to stamp snapshots.
func (t *Tracker) SetClock(clock func() time.Time) {
	t.mu.Lock()
	t.clock = clock
	t.mu.Unlock()
}

// Update records the control state, baseline status, and event counts.
// Called from the control loop on every tick.
func (t *Tracker) Update(c Control, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Control = c
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetDeviceID records the device id once it has been resolved.
func (t *Tracker) SetDeviceID(id string) {
	t.mu.Lock()
	t.snap.Config.DeviceID = id
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set from the tracker's clock at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	clock := t.clock
	t.mu.RUnlock()
	if s.Remote != nil {
		r := *s.Remote
		s.Remote = &r
	}
	s.Now = clock()
	return s
}
