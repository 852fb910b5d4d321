package logic

import "time"

// Observation is the control loop's view at the end of one tick.
type Observation struct {
	Time          time.Time
	Heater        State // commanded state after the interlock
	Setpoint      Setpoint
	Reading       Reading
	SensorPresent bool
	Interlock     InterlockTransition
}

// Detector turns successive observations into transition events.
type Detector struct {
	baselined     bool
	heater        State
	setpoint      Setpoint
	sensorPresent bool

	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewDetector creates a new transition detector.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(startTime time.Time) *Detector {
	return &Detector{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes the latest observation and returns any events that should be
// emitted. The first observation establishes the baseline and emits nothing.
func (d *Detector) Process(o Observation) []Event {
	if !d.baselined {
		d.heater = o.Heater
		d.setpoint = o.Setpoint
		d.sensorPresent = o.SensorPresent
		d.baselined = true
		return nil
	}

	var events []Event
	emit := func(t EventType) {
		events = append(events, Event{
			Timestamp: o.Time,
			Type:      t,
			Heater:    o.Heater,
			Setpoint:  o.Setpoint,
			Reading:   o.Reading,
		})
	}

	// Order: sensor, interlock, setpoint, heater.
	if o.SensorPresent != d.sensorPresent {
		if o.SensorPresent {
			emit(EventSensorFound)
		} else {
			emit(EventSensorLost)
		}
		d.sensorPresent = o.SensorPresent
	}

	switch o.Interlock {
	case InterlockTripped:
		emit(EventInterlockTripped)
	case InterlockCleared:
		emit(EventInterlockCleared)
	}

	if o.Setpoint != d.setpoint {
		emit(EventSetpointChanged)
		d.setpoint = o.Setpoint
	}

	if o.Heater != d.heater {
		if o.Heater == StateOn {
			emit(EventHeaterOn)
		} else {
			emit(EventHeaterOff)
		}
		d.heater = o.Heater
	}

	for _, e := range events {
		switch e.Type {
		case EventHeaterOn:
			d.eventCounts.HeaterOn++
		case EventHeaterOff:
			d.eventCounts.HeaterOff++
		case EventSetpointChanged:
			d.eventCounts.SetpointChanged++
		case EventInterlockTripped:
			d.eventCounts.InterlockTripped++
		case EventInterlockCleared:
			d.eventCounts.InterlockCleared++
		case EventSensorLost:
			d.eventCounts.SensorLost++
		case EventSensorFound:
			d.eventCounts.SensorFound++
		}
	}

	return events
}

// IsBaselined returns whether the detector has seen its first observation.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// EventCountsSnapshot returns a copy of the event counters.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
