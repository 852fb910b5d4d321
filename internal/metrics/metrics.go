// Package metrics exposes the control loop as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/thermostat/internal/logic"
)

const namespace = "thermostat"

// Metrics holds every collector the daemon exports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	temperature     prometheus.Gauge
	readingValid    prometheus.Gauge
	sensorPresent   prometheus.Gauge
	setpoint        prometheus.Gauge
	enabled         prometheus.Gauge
	heater          *prometheus.GaugeVec
	interlockForced prometheus.Gauge
	standbySleeping prometheus.Gauge

	relaySends      *prometheus.CounterVec
	relayAcks       prometheus.Counter
	remoteExchanges *prometheus.CounterVec
	adoptions       prometheus.Counter
	persistWrites   *prometheus.CounterVec
	events          *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, deviceID string) *Metrics {
	labels := prometheus.Labels{"device": deviceID}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: name, Help: help, ConstLabels: labels,
		})
	}

	m := &Metrics{
		temperature:     gauge("temperature_celsius", "Last valid temperature reading in degree celsius."),
		readingValid:    gauge("reading_valid", "1 if the current reading is valid."),
		sensorPresent:   gauge("sensor_present", "1 if a sensor is present on the bus."),
		setpoint:        gauge("setpoint_celsius", "Active setpoint in degree celsius."),
		enabled:         gauge("enabled", "1 if the thermostat is enabled."),
		interlockForced: gauge("interlock_forced_off", "1 while the run-time interlock forces the heater off."),
		standbySleeping: gauge("standby_sleeping", "1 while the standby policy is sleeping."),
		heater: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace, Name: "heater_on",
				Help:        "Heater state by source: commanded, confirmed or effective.",
				ConstLabels: labels,
			},
			[]string{"source"},
		),
		relaySends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Name: "relay_sends_total",
				Help: "Relay commands sent, by result.", ConstLabels: labels,
			},
			[]string{"result"},
		),
		relayAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_acks_total",
			Help: "Relay acknowledgments accepted.", ConstLabels: labels,
		}),
		remoteExchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Name: "remote_exchanges_total",
				Help: "Remote setpoint exchanges, by result.", ConstLabels: labels,
			},
			[]string{"result"},
		),
		adoptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "remote_adoptions_total",
			Help: "Setpoints adopted from the remote authority.", ConstLabels: labels,
		}),
		persistWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Name: "persist_writes_total",
				Help: "Setpoint record writes, by result.", ConstLabels: labels,
			},
			[]string{"result"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace, Name: "events_total",
				Help: "Control loop events, by type.", ConstLabels: labels,
			},
			[]string{"type"},
		),
	}

	reg.MustRegister(
		m.temperature, m.readingValid, m.sensorPresent, m.setpoint, m.enabled,
		m.heater, m.interlockForced, m.standbySleeping,
		m.relaySends, m.relayAcks, m.remoteExchanges, m.adoptions, m.persistWrites, m.events,
	)
	return m
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Sample is the per-tick view the gauges are set from.
type Sample struct {
	Reading       logic.Reading
	SensorPresent bool
	Setpoint      logic.Setpoint
	Commanded     logic.State
	Confirmed     logic.State
	Effective     logic.State
	Interlock     logic.InterlockPhase
	Standby       logic.StandbyPhase
}

// Observe sets the gauges. The temperature gauge keeps its last valid value
// while the reading is absent.
func (m *Metrics) Observe(s Sample) {
	if m == nil {
		return
	}
	if s.Reading.Valid {
		m.temperature.Set(s.Reading.Temp)
	}
	m.readingValid.Set(boolValue(s.Reading.Valid))
	m.sensorPresent.Set(boolValue(s.SensorPresent))
	m.setpoint.Set(s.Setpoint.Value)
	m.enabled.Set(boolValue(s.Setpoint.Enabled))
	m.heater.WithLabelValues("commanded").Set(boolValue(s.Commanded.On()))
	m.heater.WithLabelValues("confirmed").Set(boolValue(s.Confirmed.On()))
	m.heater.WithLabelValues("effective").Set(boolValue(s.Effective.On()))
	m.interlockForced.Set(boolValue(s.Interlock == logic.InterlockForcedOff))
	m.standbySleeping.Set(boolValue(s.Standby == logic.StandbySleeping))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RelaySend counts one relay command.
func (m *Metrics) RelaySend(err error) {
	if m == nil {
		return
	}
	m.relaySends.WithLabelValues(result(err)).Inc()
}

// RelayAck counts one accepted acknowledgment.
func (m *Metrics) RelayAck() {
	if m == nil {
		return
	}
	m.relayAcks.Inc()
}

// RemoteExchange counts one exchange result.
func (m *Metrics) RemoteExchange(err error) {
	if m == nil {
		return
	}
	m.remoteExchanges.WithLabelValues(result(err)).Inc()
}

// Adoption counts one adopted remote setpoint.
func (m *Metrics) Adoption() {
	if m == nil {
		return
	}
	m.adoptions.Inc()
}

// PersistWrites adds newly completed record writes.
func (m *Metrics) PersistWrites(ok, failed int) {
	if m == nil {
		return
	}
	if ok > 0 {
		m.persistWrites.WithLabelValues("ok").Add(float64(ok))
	}
	if failed > 0 {
		m.persistWrites.WithLabelValues("error").Add(float64(failed))
	}
}

// Event counts one published control loop event.
func (m *Metrics) Event(t logic.EventType) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(t)).Inc()
}
