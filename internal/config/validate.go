package config

import (
	"fmt"

	"github.com/sweeney/thermostat/internal/logger"
	"github.com/sweeney/thermostat/internal/logic"
)

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
func Validate(cfg *Config) error {
	if !logger.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}

	// ------------------------------------------------------------
	// CONTROL
	// ------------------------------------------------------------
	if cfg.Control.Tick <= 0 {
		return fmt.Errorf("control.tick must be > 0, got %v", cfg.Control.Tick)
	}
	if cfg.Control.Band <= 0 {
		return fmt.Errorf("control.band must be > 0, got %v", cfg.Control.Band)
	}
	if cfg.Control.OverheatC < 0 {
		return fmt.Errorf("control.overheat_c must be >= 0 (0 disables), got %v", cfg.Control.OverheatC)
	}

	// ------------------------------------------------------------
	// SENSOR
	// ------------------------------------------------------------
	switch cfg.Sensor.Driver {
	case "w1", "fake":
	default:
		return fmt.Errorf("sensor.driver: unknown driver %q (want w1 or fake)", cfg.Sensor.Driver)
	}
	if cfg.Sensor.Resolution < 9 || cfg.Sensor.Resolution > 12 {
		return fmt.Errorf("sensor.resolution must be 9..12 bits, got %d", cfg.Sensor.Resolution)
	}
	if cfg.Sensor.ProbeInterval <= 0 {
		return fmt.Errorf("sensor.probe_interval must be > 0, got %v", cfg.Sensor.ProbeInterval)
	}
	if cfg.Sensor.MaxFailures < 1 {
		return fmt.Errorf("sensor.max_failures must be >= 1, got %d", cfg.Sensor.MaxFailures)
	}

	// ------------------------------------------------------------
	// RELAY / INTERLOCK
	// ------------------------------------------------------------
	switch cfg.Relay.Driver {
	case "mqtt":
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("relay.driver mqtt requires mqtt.broker")
		}
		if cfg.Relay.CommandTopic == "" || cfg.Relay.AckTopic == "" {
			return fmt.Errorf("relay.driver mqtt requires command_topic and ack_topic")
		}
	case "gpio":
		if cfg.Relay.GPIOChip == "" || cfg.Relay.GPIOLine < 0 {
			return fmt.Errorf("relay.driver gpio requires gpio_chip and a non-negative gpio_line")
		}
	default:
		return fmt.Errorf("relay.driver: unknown driver %q (want mqtt or gpio)", cfg.Relay.Driver)
	}
	if cfg.Relay.SendInterval <= 0 {
		return fmt.Errorf("relay.send_interval must be > 0, got %v", cfg.Relay.SendInterval)
	}
	if cfg.Relay.Freshness <= 0 {
		return fmt.Errorf("relay.freshness must be > 0, got %v", cfg.Relay.Freshness)
	}
	if cfg.Interlock.MaxOn < 0 {
		return fmt.Errorf("interlock.max_on must be >= 0 (0 disables), got %v", cfg.Interlock.MaxOn)
	}
	if cfg.Interlock.MaxOn > 0 && cfg.Interlock.Cooldown <= 0 {
		return fmt.Errorf("interlock.cooldown must be > 0 when max_on is set")
	}

	// ------------------------------------------------------------
	// REMOTE / STANDBY
	// ------------------------------------------------------------
	if cfg.Remote.Endpoint != "" {
		if cfg.Remote.Interval <= 0 {
			return fmt.Errorf("remote.interval must be > 0, got %v", cfg.Remote.Interval)
		}
		if cfg.Remote.Timeout <= 0 {
			return fmt.Errorf("remote.timeout must be > 0, got %v", cfg.Remote.Timeout)
		}
	}
	if cfg.Remote.Epsilon < 0 {
		return fmt.Errorf("remote.epsilon must be >= 0, got %v", cfg.Remote.Epsilon)
	}
	if cfg.Standby.Enabled {
		if cfg.Remote.Endpoint == "" {
			return fmt.Errorf("standby.enabled requires remote.endpoint")
		}
		if cfg.Standby.Duration <= 0 {
			return fmt.Errorf("standby.duration must be > 0, got %v", cfg.Standby.Duration)
		}
		if !logic.InRange(cfg.Standby.ThresholdC) {
			return fmt.Errorf("standby.threshold_c %v outside setpoint range [%v, %v]",
				cfg.Standby.ThresholdC, logic.MinSetpoint, logic.MaxSetpoint)
		}
	}

	// ------------------------------------------------------------
	// STORE / MQTT
	// ------------------------------------------------------------
	switch cfg.Store.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("store.driver: unknown driver %q (want file or sqlite)", cfg.Store.Driver)
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if cfg.Store.MinGap < 0 {
		return fmt.Errorf("store.min_gap must be >= 0, got %v", cfg.Store.MinGap)
	}
	if cfg.MQTT.Broker != "" && cfg.MQTT.BufferSize < 1 {
		return fmt.Errorf("mqtt.buffer_size must be >= 1, got %d", cfg.MQTT.BufferSize)
	}

	return nil
}
