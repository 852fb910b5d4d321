// Package control runs the thermostat control loop.
//
// A single goroutine owns all controller state and advances it with Tick.
// Relay acknowledgments, remote exchange results, and setpoint requests from
// the web UI reach that goroutine over channels and are drained at the start
// of every tick.
package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/thermostat/internal/logger"
	"github.com/sweeney/thermostat/internal/logic"
	"github.com/sweeney/thermostat/internal/metrics"
	"github.com/sweeney/thermostat/internal/mqtt"
	"github.com/sweeney/thermostat/internal/relay"
	"github.com/sweeney/thermostat/internal/remote"
	"github.com/sweeney/thermostat/internal/sensor"
	"github.com/sweeney/thermostat/internal/status"
	"github.com/sweeney/thermostat/internal/store"
)

// ErrMailboxFull is returned by RequestSetpoint when the loop has not yet
// drained earlier requests.
var ErrMailboxFull = errors.New("control: setpoint mailbox full")

// DefaultMailboxSize bounds pending setpoint requests.
const DefaultMailboxSize = 8

const loadTimeout = 2 * time.Second

// Config holds the loop's tuning. Zero durations disable the corresponding
// feature where noted.
type Config struct {
	DeviceID string

	Band      float64
	OverheatC float64 // 0 disables

	SendInterval time.Duration
	SendOnChange bool
	Freshness    time.Duration

	MaxOn    time.Duration // 0 disables the interlock
	Cooldown time.Duration

	RemoteInterval time.Duration
	Epsilon        float64

	StandbyEnabled    bool
	StandbyThresholdC float64
	StandbyDuration   time.Duration

	PersistGap  time.Duration
	Heartbeat   time.Duration // 0 disables
	MailboxSize int
}

// Exchanges is the remote worker as seen from the loop.
type Exchanges interface {
	Submit(r remote.Report) bool
	Results() <-chan remote.Result
}

// Deps are the loop's collaborators.
type Deps struct {
	Sampler *sensor.Sampler
	Link    relay.Link
	Store   store.Store

	Exchanges Exchanges      // nil disables the remote authority
	Publisher mqtt.Publisher // nil disables telemetry
	Tracker   *status.Tracker
	Log       *logger.Logger

	// Registerer, if set, receives the loop's collectors labelled with the
	// resolved device id.
	Registerer prometheus.Registerer

	// Network, if set, is consulted on every heartbeat.
	Network func() *status.NetworkInfo
}

// State is the controller state owned by the loop goroutine.
type State struct {
	Setpoint logic.Setpoint
	Reading  logic.Reading
	Decision logic.State // hysteresis output before gating and the interlock
	Actuator logic.ActuatorState
	Sleeping bool
}

// Loop is the control loop. Except for RequestSetpoint, its methods must be
// called from a single goroutine.
type Loop struct {
	cfg Config
	log *logger.Logger

	sampler   *sensor.Sampler
	link      relay.Link
	exchanges Exchanges
	publisher mqtt.Publisher
	tracker   *status.Tracker
	metrics   *metrics.Metrics
	network   func() *status.NetworkInfo

	hyst      logic.Hysteresis
	interlock *logic.Interlock
	standby   *logic.Standby
	rec       *remote.Reconciler
	persister *store.Persister
	detector  *logic.Detector

	deviceID string
	state    State
	requests chan SetpointRequest

	sent     bool
	lastSend time.Time

	persistWrites   int
	persistFailures int
}

// New builds a loop and restores the persisted setpoint. A missing or
// unreadable record is not an error; the loop starts from the default preset.
func New(cfg Config, deps Deps, now time.Time) *Loop {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MailboxSize < 1 {
		cfg.MailboxSize = DefaultMailboxSize
	}

	l := &Loop{
		cfg:       cfg,
		log:       log,
		sampler:   deps.Sampler,
		link:      deps.Link,
		exchanges: deps.Exchanges,
		publisher: deps.Publisher,
		tracker:   deps.Tracker,
		network:   deps.Network,
		hyst:      logic.Hysteresis{Band: cfg.Band, Ceiling: cfg.OverheatC},
		interlock: logic.NewInterlock(cfg.MaxOn, cfg.Cooldown),
		rec:       remote.NewReconciler(cfg.RemoteInterval, cfg.Epsilon),
		persister: store.NewPersister(deps.Store, cfg.PersistGap, log.Named("store")),
		detector:  logic.NewDetector(now),
		requests:  make(chan SetpointRequest, cfg.MailboxSize),
		state:     State{Setpoint: logic.DefaultSetpoint()},
	}
	if cfg.StandbyEnabled {
		l.standby = logic.NewStandby(cfg.StandbyThresholdC, cfg.StandbyDuration)
	}
	if l.tracker == nil {
		l.tracker = status.NewTracker(now, status.Config{DeviceID: cfg.DeviceID})
	}

	l.restore(deps.Store, now)
	l.tracker.SetDeviceID(l.deviceID)
	if deps.Registerer != nil {
		l.metrics = metrics.NewMetrics(deps.Registerer, l.deviceID)
	}
	return l
}

func (l *Loop) restore(st store.Store, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	var stored string
	rec, err := st.Load(ctx)
	loadErr := err
	switch {
	case errors.Is(err, store.ErrNotFound):
		l.log.Infow("no persisted setpoint, using default", "setpoint", l.state.Setpoint.Value)
	case err != nil:
		l.log.Warnw("load persisted setpoint failed, using default", "err", err)
	default:
		stored = rec.DeviceID
		sp, err := rec.ToSetpoint()
		if err != nil {
			l.log.Warnw("persisted setpoint invalid, using default", "err", err)
		} else {
			l.state.Setpoint = sp
			l.log.Infow("restored setpoint", "setpoint", sp.Value, "preset", sp.Preset, "enabled", sp.Enabled)
		}
	}

	switch {
	case l.cfg.DeviceID != "":
		l.deviceID = l.cfg.DeviceID
	case stored != "":
		l.deviceID = stored
	default:
		l.deviceID = uuid.New().String()
		l.log.Infow("generated device id", "id", l.deviceID)
		// A failed load may hide a good record; never overwrite it.
		if loadErr == nil || errors.Is(loadErr, store.ErrNotFound) {
			l.persister.Update(store.RecordOf(l.state.Setpoint, l.deviceID, now), now, false)
		}
	}
}

// DeviceID returns the identifier sent with relay commands.
func (l *Loop) DeviceID() string {
	return l.deviceID
}

// State returns a copy of the controller state.
func (l *Loop) State() State {
	return l.state
}

// Tick advances the loop by one step at now.
func (l *Loop) Tick(now time.Time) {
	l.drainAcks(now)
	l.drainResults(now)
	l.drainRequests(now)

	sleeping := false
	if l.standby != nil {
		l.standby.ObserveSetpoint(l.state.Setpoint)
		sleeping = l.standby.Sleeping(now)
	}
	if sleeping != l.state.Sleeping {
		l.log.Infow("standby", "sleeping", sleeping, "until", l.standby.Until())
		l.state.Sleeping = sleeping
	}

	if !sleeping {
		l.sample(now)
	}

	sp := l.state.Setpoint
	l.state.Decision = l.hyst.Decide(l.state.Reading, sp.Value, l.state.Decision)
	gated := l.state.Decision
	if !sp.Enabled || sleeping {
		gated = logic.StateOff
	}
	commanded, tr := l.interlock.Apply(gated, now)
	changed := commanded != l.state.Actuator.Commanded
	l.state.Actuator.Commanded = commanded

	if !l.sent || now.Sub(l.lastSend) >= l.cfg.SendInterval || (l.cfg.SendOnChange && changed) {
		l.send(commanded, now)
	}

	if l.exchanges != nil && !sleeping && l.rec.Due(now) {
		report := remote.BuildReport(l.state.Reading, l.state.Actuator, now, l.cfg.Freshness)
		if !l.exchanges.Submit(report) {
			l.rec.Release()
		}
	}

	l.persister.Flush(now)
	l.countPersistWrites()

	events := l.detector.Process(logic.Observation{
		Time:          now,
		Heater:        commanded,
		Setpoint:      sp,
		Reading:       l.state.Reading,
		SensorPresent: l.sampler.Present(),
		Interlock:     tr,
	})
	for _, e := range events {
		l.publish(e)
	}

	l.track(now)

	if hb := l.detector.CheckHeartbeat(now, l.cfg.Heartbeat); hb != nil {
		l.log.Infow("heartbeat", "uptime", hb.Uptime, "heater_on", hb.Counts.HeaterOn,
			"heater_off", hb.Counts.HeaterOff, "setpoint_changed", hb.Counts.SetpointChanged)
		if l.network != nil {
			if n := l.network(); n != nil {
				l.tracker.SetNetwork(n)
			}
		}
		l.publishSystem("HEARTBEAT", "", hb.Timestamp, false)
	}
}

func (l *Loop) drainAcks(now time.Time) {
	for {
		select {
		case ack := <-l.link.Acks():
			l.state.Actuator.Confirm(ack.State, now)
			l.metrics.RelayAck()
		default:
			return
		}
	}
}

func (l *Loop) drainResults(now time.Time) {
	if l.exchanges == nil {
		return
	}
	for {
		select {
		case res := <-l.exchanges.Results():
			l.metrics.RemoteExchange(res.Err)
			next, adopted := l.rec.Apply(res, l.state.Setpoint)
			if adopted {
				l.log.Infow("adopted remote setpoint", "from", l.state.Setpoint.Value, "to", next.Value)
				l.metrics.Adoption()
				l.setSetpoint(next, now, true)
			}
			if l.standby != nil {
				// Sleep only on the setpoint this exchange left in effect.
				l.standby.ObserveSetpoint(l.state.Setpoint)
				l.standby.ObserveExchange(res.OK(), now)
			}
		default:
			return
		}
	}
}

func (l *Loop) drainRequests(now time.Time) {
	for {
		select {
		case req := <-l.requests:
			next, err := req.apply(l.state.Setpoint)
			if err != nil {
				l.log.Warnw("setpoint request rejected", "err", err)
				continue
			}
			l.log.Infow("setpoint changed", "setpoint", next.Value, "preset", next.Preset, "enabled", next.Enabled)
			l.setSetpoint(next, now, false)
		default:
			return
		}
	}
}

func (l *Loop) setSetpoint(sp logic.Setpoint, now time.Time, force bool) {
	if sp == l.state.Setpoint {
		return
	}
	l.state.Setpoint = sp
	l.persister.Update(store.RecordOf(sp, l.deviceID, now), now, force)
}

func (l *Loop) sample(now time.Time) {
	s := l.sampler.Poll(now)
	switch s.Status {
	case sensor.Valid:
		l.state.Reading = logic.ReadingOf(s.Temp)
	case sensor.Absent:
		l.state.Reading = logic.NoReading
	}
}

func (l *Loop) send(heater logic.State, now time.Time) {
	l.sent = true
	l.lastSend = now
	err := l.link.Send(relay.Command{Heater: heater, ID: l.deviceID})
	if err != nil {
		l.log.Warnw("relay send failed", "heater", heater, "err", err)
	} else {
		l.log.Debugw("relay command sent", "heater", heater)
	}
	l.metrics.RelaySend(err)
}

func (l *Loop) countPersistWrites() {
	w, f := l.persister.Counts()
	l.metrics.PersistWrites(w-l.persistWrites, f-l.persistFailures)
	l.persistWrites, l.persistFailures = w, f
}

func (l *Loop) publish(e logic.Event) {
	l.log.Infow("event", "type", e.Type, "heater", e.Heater, "setpoint", e.Setpoint.Value)
	l.metrics.Event(e.Type)
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(e); err != nil {
		l.log.Warnw("publish event failed", "type", e.Type, "err", err)
	}
}

func (l *Loop) publishSystem(event, reason string, at time.Time, retained bool) {
	if l.publisher == nil {
		return
	}
	snap := l.tracker.Snapshot()
	err := l.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  at,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		l.log.Warnw("publish system event failed", "event", event, "err", err)
		return
	}
	l.log.Infow("published system event", "event", event)
}

// track pushes the current state to the tracker and the gauges.
func (l *Loop) track(now time.Time) {
	a := l.state.Actuator
	c := status.Control{
		Reading:        l.state.Reading,
		SensorPresent:  l.sampler.Present(),
		SensorAddress:  string(l.sampler.DeviceAddress()),
		Setpoint:       l.state.Setpoint,
		Decision:       l.state.Decision,
		Actuator:       a,
		Effective:      a.Effective(now, l.cfg.Freshness),
		ConfirmedFresh: a.Fresh(now, l.cfg.Freshness),
		Interlock:      l.interlock.Phase(),
		ForcedUntil:    l.interlock.ForcedUntil(),
		Standby:        logic.StandbyActive,
	}
	if l.standby != nil {
		c.Standby = l.standby.Phase()
		c.StandbyUntil = l.standby.Until()
	}
	if snap := l.rec.Snapshot(); !snap.At.IsZero() {
		c.Remote = &status.RemoteInfo{
			At:         snap.At,
			OK:         snap.OK,
			Mode:       snap.Mode,
			Setpoint:   snap.Setpoint,
			ActualTemp: snap.ActualTemp,
			Err:        snap.Err,
		}
	}

	l.tracker.Update(c, l.detector.IsBaselined(), l.detector.EventCountsSnapshot())
	if cs, ok := l.publisher.(mqtt.ConnectionStatus); ok {
		l.tracker.SetMQTTConnected(cs.IsConnected())
	}

	l.metrics.Observe(metrics.Sample{
		Reading:       c.Reading,
		SensorPresent: c.SensorPresent,
		Setpoint:      c.Setpoint,
		Commanded:     a.Commanded,
		Confirmed:     a.Confirmed,
		Effective:     c.Effective,
		Interlock:     c.Interlock,
		Standby:       c.Standby,
	})
}

// Startup publishes the retained STARTUP event.
func (l *Loop) Startup(now time.Time) {
	l.track(now)
	l.publishSystem("STARTUP", "", now, true)
}

// Shutdown commands the relay OFF, writes any pending setpoint, and
// publishes SHUTDOWN with reason.
func (l *Loop) Shutdown(now time.Time, reason string) {
	l.state.Actuator.Commanded = logic.StateOff
	l.send(logic.StateOff, now)
	l.persister.ForceFlush(now)
	l.countPersistWrites()
	l.track(now)
	l.publishSystem("SHUTDOWN", reason, now, true)
}

// SetpointRequest is a change asked for by a user. Exactly one of Preset or
// Value may be set; Enabled may accompany either or stand alone.
type SetpointRequest struct {
	Preset  logic.Preset
	Value   *float64
	Enabled *bool
}

// Validate checks the request without applying it.
func (r SetpointRequest) Validate() error {
	_, err := r.apply(logic.DefaultSetpoint())
	return err
}

// apply returns cur with the request applied. Preset and value changes keep
// cur's Enabled flag unless Enabled is given.
func (r SetpointRequest) apply(cur logic.Setpoint) (logic.Setpoint, error) {
	next := cur
	switch {
	case r.Preset != "" && r.Value != nil:
		return cur, errors.New("request has both preset and value")
	case r.Preset != "":
		sp, err := logic.FromPreset(r.Preset)
		if err != nil {
			return cur, err
		}
		next = sp
		next.Enabled = cur.Enabled
	case r.Value != nil:
		sp, err := logic.Custom(*r.Value)
		if err != nil {
			return cur, err
		}
		next = sp
		next.Enabled = cur.Enabled
	case r.Enabled == nil:
		return cur, errors.New("empty setpoint request")
	}
	if r.Enabled != nil {
		next.Enabled = *r.Enabled
	}
	return next, nil
}

// RequestSetpoint queues r for the loop. It is safe to call from any
// goroutine and never blocks.
func (l *Loop) RequestSetpoint(r SetpointRequest) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid setpoint request: %w", err)
	}
	select {
	case l.requests <- r:
		return nil
	default:
		return ErrMailboxFull
	}
}
