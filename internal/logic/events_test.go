package logic

import (
	"testing"
	"time"
)

func TestNewDetector(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(startTime)
	if d == nil {
		t.Fatal("NewDetector returned nil")
	}
	if d.baselined {
		t.Error("new detector should not be baselined")
	}
	if !d.startTime.Equal(startTime) {
		t.Errorf("expected startTime %v, got %v", startTime, d.startTime)
	}
	if !d.lastHeartbeat.Equal(startTime) {
		t.Errorf("expected lastHeartbeat %v, got %v", startTime, d.lastHeartbeat)
	}
}

func baseObservation(now time.Time) Observation {
	return Observation{
		Time:          now,
		Heater:        StateOff,
		Setpoint:      DefaultSetpoint(),
		Reading:       ReadingOf(20),
		SensorPresent: true,
	}
}

// setupBaselinedDetector creates a detector that has already established baseline.
func setupBaselinedDetector(t *testing.T, heater State) (*Detector, Observation) {
	t.Helper()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(now)

	o := baseObservation(now)
	o.Heater = heater
	if events := d.Process(o); len(events) != 0 {
		t.Fatalf("expected no events at baseline, got %d", len(events))
	}
	if !d.IsBaselined() {
		t.Fatal("failed to establish baseline")
	}
	return d, o
}

func TestNoEventsForStableState(t *testing.T) {
	d, o := setupBaselinedDetector(t, StateOn)

	for i := 0; i < 10; i++ {
		o.Time = o.Time.Add(200 * time.Millisecond)
		o.Reading = ReadingOf(18 + float64(i)*0.01)
		if events := d.Process(o); len(events) != 0 {
			t.Errorf("iteration %d: expected no events for stable state, got %d", i, len(events))
		}
	}
}

func TestHeaterTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     EventType
	}{
		{StateOff, StateOn, EventHeaterOn},
		{StateOn, StateOff, EventHeaterOff},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			d, o := setupBaselinedDetector(t, tt.from)
			o.Time = o.Time.Add(time.Second)
			o.Heater = tt.to

			events := d.Process(o)
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}
			if events[0].Type != tt.want {
				t.Errorf("expected %s, got %s", tt.want, events[0].Type)
			}
			if events[0].Heater != tt.to {
				t.Errorf("expected Heater=%s, got %s", tt.to, events[0].Heater)
			}
			if !events[0].Timestamp.Equal(o.Time) {
				t.Errorf("unexpected timestamp: %v", events[0].Timestamp)
			}
		})
	}
}

func TestSetpointChangeEvent(t *testing.T) {
	d, o := setupBaselinedDetector(t, StateOff)
	o.Setpoint = Setpoint{Value: 21, Preset: PresetRemote, Enabled: true}

	events := d.Process(o)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventSetpointChanged {
		t.Errorf("expected SETPOINT_CHANGED, got %s", events[0].Type)
	}
	if events[0].Setpoint.Value != 21 {
		t.Errorf("expected setpoint 21 in event, got %v", events[0].Setpoint.Value)
	}
}

func TestSensorLostAndFound(t *testing.T) {
	d, o := setupBaselinedDetector(t, StateOn)

	o.SensorPresent = false
	o.Reading = NoReading
	o.Heater = StateOff
	events := d.Process(o)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventSensorLost {
		t.Errorf("event 0: expected SENSOR_LOST, got %s", events[0].Type)
	}
	if events[1].Type != EventHeaterOff {
		t.Errorf("event 1: expected HEATER_OFF, got %s", events[1].Type)
	}

	o.SensorPresent = true
	events = d.Process(o)
	if len(events) != 1 || events[0].Type != EventSensorFound {
		t.Fatalf("expected SENSOR_FOUND, got %+v", events)
	}
}

func TestInterlockEvents(t *testing.T) {
	d, o := setupBaselinedDetector(t, StateOn)

	o.Interlock = InterlockTripped
	o.Heater = StateOff
	events := d.Process(o)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventInterlockTripped {
		t.Errorf("expected INTERLOCK_TRIPPED first, got %s", events[0].Type)
	}

	o.Interlock = InterlockCleared
	events = d.Process(o)
	if len(events) != 1 || events[0].Type != EventInterlockCleared {
		t.Fatalf("expected INTERLOCK_CLEARED, got %+v", events)
	}
}

func TestEventCountsIncrementOnTransition(t *testing.T) {
	d, o := setupBaselinedDetector(t, StateOff)

	counts := d.EventCountsSnapshot()
	if counts != (EventCounts{}) {
		t.Errorf("event counts should be zero after baseline, got %+v", counts)
	}

	for _, h := range []State{StateOn, StateOff, StateOn} {
		o.Heater = h
		d.Process(o)
	}
	o.Setpoint = Setpoint{Value: 22, Preset: PresetCustom, Enabled: true}
	d.Process(o)
	o.SensorPresent = false
	d.Process(o)
	o.SensorPresent = true
	d.Process(o)
	o.Interlock = InterlockTripped
	d.Process(o)
	o.Interlock = InterlockCleared
	d.Process(o)

	counts = d.EventCountsSnapshot()
	if counts.HeaterOn != 2 {
		t.Errorf("expected HeaterOn=2, got %d", counts.HeaterOn)
	}
	if counts.HeaterOff != 1 {
		t.Errorf("expected HeaterOff=1, got %d", counts.HeaterOff)
	}
	if counts.SetpointChanged != 1 {
		t.Errorf("expected SetpointChanged=1, got %d", counts.SetpointChanged)
	}
	if counts.SensorLost != 1 || counts.SensorFound != 1 {
		t.Errorf("expected SensorLost=1 SensorFound=1, got %d %d", counts.SensorLost, counts.SensorFound)
	}
	if counts.InterlockTripped != 1 || counts.InterlockCleared != 1 {
		t.Errorf("expected InterlockTripped=1 InterlockCleared=1, got %d %d", counts.InterlockTripped, counts.InterlockCleared)
	}
}

// Heartbeat tests

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	d, o := setupBaselinedDetector(t, StateOff)

	if hb := d.CheckHeartbeat(o.Time.Add(15*time.Minute), 0); hb != nil {
		t.Error("should not return heartbeat when interval is 0 (disabled)")
	}
	if hb := d.CheckHeartbeat(o.Time.Add(15*time.Minute), -1*time.Minute); hb != nil {
		t.Error("should not return heartbeat when interval is negative")
	}
}

func TestCheckHeartbeatBeforeBaseline(t *testing.T) {
	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(startTime)

	if hb := d.CheckHeartbeat(startTime.Add(15*time.Minute), 15*time.Minute); hb != nil {
		t.Error("should not return heartbeat before baseline")
	}
}

func TestCheckHeartbeatInterval(t *testing.T) {
	d, o := setupBaselinedDetector(t, StateOff)
	start := o.Time

	if hb := d.CheckHeartbeat(start.Add(14*time.Minute), 15*time.Minute); hb != nil {
		t.Error("should not return heartbeat before interval")
	}

	t1 := start.Add(15 * time.Minute)
	hb := d.CheckHeartbeat(t1, 15*time.Minute)
	if hb == nil {
		t.Fatal("should return heartbeat at interval")
	}
	if !hb.Timestamp.Equal(t1) {
		t.Errorf("expected timestamp %v, got %v", t1, hb.Timestamp)
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("expected uptime 15m, got %v", hb.Uptime)
	}

	if hb := d.CheckHeartbeat(t1.Add(time.Second), 15*time.Minute); hb != nil {
		t.Error("should not return heartbeat immediately after previous")
	}
	if hb := d.CheckHeartbeat(t1.Add(15*time.Minute), 15*time.Minute); hb == nil {
		t.Error("should return second heartbeat")
	}
}

func TestHeartbeatContainsEventCounts(t *testing.T) {
	d, o := setupBaselinedDetector(t, StateOff)
	o.Heater = StateOn
	d.Process(o)

	hb := d.CheckHeartbeat(o.Time.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("should return heartbeat")
	}
	if hb.Counts.HeaterOn != 1 {
		t.Errorf("expected HeaterOn=1, got %d", hb.Counts.HeaterOn)
	}
	if hb.Counts.HeaterOff != 0 {
		t.Errorf("expected HeaterOff=0, got %d", hb.Counts.HeaterOff)
	}
}
