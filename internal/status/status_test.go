package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sampleControl() Control {
	a := logic.ActuatorState{Commanded: logic.StateOn}
	a.Confirm(logic.StateOn, start.Add(time.Hour-2*time.Second))
	return Control{
		Reading:        logic.ReadingOf(18.25),
		SensorPresent:  true,
		SensorAddress:  "28-0316a2794bff",
		Setpoint:       logic.Setpoint{Value: 19, Preset: logic.PresetOn, Enabled: true},
		Decision:       logic.StateOn,
		Actuator:       a,
		Effective:      logic.StateOn,
		ConfirmedFresh: true,
		Interlock:      logic.InterlockNormal,
		Standby:        logic.StandbyActive,
	}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{DeviceID: "node-1", TickMs: 200, Broker: "tcp://localhost:1883", HTTPPort: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.TickMs != 200 || snap.Config.DeviceID != "node-1" {
		t.Errorf("Config: %+v", snap.Config)
	}
	if snap.Baselined || snap.MQTTConnected {
		t.Error("expected zero state initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.SetClock(fixedClock(start.Add(time.Hour)))

	tr.Update(sampleControl(), true, logic.EventCounts{HeaterOn: 3, SensorLost: 1})

	snap := tr.Snapshot()
	if snap.Reading.Temp != 18.25 || !snap.SensorPresent {
		t.Errorf("control not recorded: %+v", snap.Control)
	}
	if !snap.Baselined || snap.Counts.HeaterOn != 3 || snap.Counts.SensorLost != 1 {
		t.Errorf("baseline/counts: %v %+v", snap.Baselined, snap.Counts)
	}
	if snap.Uptime() != time.Hour {
		t.Errorf("Uptime: %v", snap.Uptime())
	}
	if age, ok := snap.ConfirmedAge(); !ok || age != 2*time.Second {
		t.Errorf("ConfirmedAge: %v %v", age, ok)
	}
}

func TestSnapshotCopiesRemote(t *testing.T) {
	tr := NewTracker(start, Config{})
	c := sampleControl()
	c.Remote = &RemoteInfo{OK: true, Mode: "auto"}
	tr.Update(c, true, logic.EventCounts{})

	snap := tr.Snapshot()
	snap.Remote.Mode = "mutated"
	if tr.Snapshot().Remote.Mode != "auto" {
		t.Error("snapshot shares RemoteInfo with the tracker")
	}
}

func TestSetMQTTConnectedAndNetwork(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})
	if n := tr.Snapshot().Network; n == nil || n.IP != "192.168.1.42" {
		t.Errorf("Network: %+v", n)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(start, Config{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tr.Update(sampleControl(), true, logic.EventCounts{HeaterOn: j})
				tr.SetMQTTConnected(j%2 == 0)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = FormatJSON(tr.Snapshot())
			}
		}()
	}
	wg.Wait()
}

func TestFormatJSON(t *testing.T) {
	tr := NewTracker(start, Config{DeviceID: "node-1", Broker: "tcp://b:1883", BandC: 0.5})
	tr.SetClock(fixedClock(start.Add(time.Hour)))
	c := sampleControl()
	c.Remote = &RemoteInfo{At: start.Add(59 * time.Minute), OK: true, Mode: "schedule", Setpoint: floatPtr(19)}
	tr.Update(c, true, logic.EventCounts{HeaterOn: 2, InterlockCleared: 1, SensorFound: 4})

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if s.Temperature == nil || *s.Temperature != 18.25 {
		t.Errorf("temperature: %v", s.Temperature)
	}
	if s.UptimeSeconds != 3600 || s.Timestamp != "2026-01-01T01:00:00Z" {
		t.Errorf("uptime/timestamp: %d %s", s.UptimeSeconds, s.Timestamp)
	}
	if s.Heater.Commanded != "ON" || s.Heater.Confirmed != "ON" || !s.Heater.ConfirmedFresh {
		t.Errorf("heater: %+v", s.Heater)
	}
	if s.Heater.ConfirmedAgeMs == nil || *s.Heater.ConfirmedAgeMs != 2000 {
		t.Errorf("confirmed_age_ms: %v", s.Heater.ConfirmedAgeMs)
	}
	if s.Setpoint.Preset != "on" || s.Setpoint.Value != 19 {
		t.Errorf("setpoint: %+v", s.Setpoint)
	}
	if s.Counts.HeaterOn != 2 || s.Counts.InterlockCleared != 1 || s.Counts.SensorFound != 4 {
		t.Errorf("counts: %+v", s.Counts)
	}
	if s.Remote == nil || s.Remote.Mode != "schedule" || *s.Remote.Setpoint != 19 {
		t.Errorf("remote: %+v", s.Remote)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web status should not carry event/reason")
	}
	if s.Config.DeviceID != "node-1" || s.MQTT.Broker != "tcp://b:1883" {
		t.Errorf("config: %+v", s.Config)
	}
}

func TestFormatJSONBeforeFirstTick(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.SetClock(fixedClock(start))
	out := string(FormatJSON(tr.Snapshot()))

	for _, want := range []string{`"temperature": null`, `"commanded": "UNKNOWN"`, `"confirmed_age_ms": null`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, `"remote"`) || strings.Contains(out, `"network"`) {
		t.Error("remote and network should be omitted when unknown")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.SetClock(fixedClock(start.Add(time.Minute)))
	tr.Update(sampleControl(), true, logic.EventCounts{})

	data := FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")
	if strings.Contains(string(data), "\n") {
		t.Error("event payload should be compact")
	}
	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: %q %q", parsed.Status.Event, parsed.Status.Reason)
	}
}

func floatPtr(v float64) *float64 { return &v }
