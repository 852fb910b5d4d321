package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Control.Tick != 200*time.Millisecond {
		t.Errorf("control.tick: got %v, want 200ms", cfg.Control.Tick)
	}
	if cfg.Control.Band != 0.5 {
		t.Errorf("control.band: got %v, want 0.5", cfg.Control.Band)
	}
	if cfg.Relay.SendInterval != time.Minute {
		t.Errorf("relay.send_interval: got %v, want 1m", cfg.Relay.SendInterval)
	}
	if cfg.Relay.Freshness != 5*time.Second {
		t.Errorf("relay.freshness: got %v, want 5s", cfg.Relay.Freshness)
	}
	if cfg.Interlock.MaxOn != time.Hour || cfg.Interlock.Cooldown != 30*time.Minute {
		t.Errorf("interlock: got %v/%v", cfg.Interlock.MaxOn, cfg.Interlock.Cooldown)
	}
	if cfg.Remote.Interval != 1500*time.Millisecond {
		t.Errorf("remote.interval: got %v, want 1.5s", cfg.Remote.Interval)
	}
	if cfg.Remote.Epsilon != 0.05 {
		t.Errorf("remote.epsilon: got %v", cfg.Remote.Epsilon)
	}
	if cfg.Store.MinGap != 30*time.Second {
		t.Errorf("store.min_gap: got %v, want 30s", cfg.Store.MinGap)
	}
	if cfg.Sensor.Resolution != 12 {
		t.Errorf("sensor.resolution: got %d", cfg.Sensor.Resolution)
	}
}

func TestParseOverrides(t *testing.T) {
	yml := `
control:
  band: 1.0
  overheat_c: 28
sensor:
  driver: fake
  resolution: 10
relay:
  driver: gpio
  gpio_line: 22
remote:
  endpoint: http://hub.local/api/report.php
store:
  driver: sqlite
  path: /tmp/thermostat.db
`
	cfg, err := Parse([]byte(yml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Control.Band != 1.0 || cfg.Control.OverheatC != 28 {
		t.Errorf("control: %+v", cfg.Control)
	}
	if cfg.Sensor.Driver != "fake" || cfg.Sensor.Resolution != 10 {
		t.Errorf("sensor: %+v", cfg.Sensor)
	}
	if cfg.Relay.Driver != "gpio" || cfg.Relay.GPIOLine != 22 {
		t.Errorf("relay: %+v", cfg.Relay)
	}
	if cfg.Remote.Endpoint != "http://hub.local/api/report.php" {
		t.Errorf("remote.endpoint: %q", cfg.Remote.Endpoint)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("store.driver: %q", cfg.Store.Driver)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		want string
	}{
		{"zero band", "control:\n  band: 0\n", "control.band"},
		{"bad resolution", "sensor:\n  resolution: 13\n", "sensor.resolution"},
		{"unknown sensor driver", "sensor:\n  driver: i2c\n", "sensor.driver"},
		{"unknown relay driver", "relay:\n  driver: espnow\n", "relay.driver"},
		{"mqtt relay without broker", "mqtt:\n  broker: \"\"\n", "mqtt.broker"},
		{"unknown store", "store:\n  driver: redis\n", "store.driver"},
		{"standby without remote", "standby:\n  enabled: true\n", "standby.enabled"},
		{"bad log level", "log:\n  level: loud\n", "log.level"},
		{"negative max_on", "interlock:\n  max_on: -1s\n", "interlock.max_on"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte("control:\n  band: 0.8\nhttp:\n  addr: \":8080\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("THERMOSTAT_REMOTE_ENDPOINT", "http://env.example/report")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Control.Band != 0.8 {
		t.Errorf("control.band from file: got %v", cfg.Control.Band)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http.addr from file: got %q", cfg.HTTP.Addr)
	}
	if cfg.Remote.Endpoint != "http://env.example/report" {
		t.Errorf("remote.endpoint from env: got %q", cfg.Remote.Endpoint)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Control.Band != 0.5 {
		t.Errorf("expected default band, got %v", cfg.Control.Band)
	}
}

func TestDump(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	for _, want := range []string{"band: 0.5", "tick: 200ms", "send_interval: 1m0s", "driver: w1"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}
