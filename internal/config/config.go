// Package config loads daemon configuration from YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. THERMOSTAT_REMOTE_ENDPOINT.
const EnvPrefix = "THERMOSTAT"

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/thermostat/config.yml"

type Config struct {
	Device    DeviceConfig    `mapstructure:"device" yaml:"device"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Control   ControlConfig   `mapstructure:"control" yaml:"control"`
	Sensor    SensorConfig    `mapstructure:"sensor" yaml:"sensor"`
	Relay     RelayConfig     `mapstructure:"relay" yaml:"relay"`
	Interlock InterlockConfig `mapstructure:"interlock" yaml:"interlock"`
	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote"`
	Standby   StandbyConfig   `mapstructure:"standby" yaml:"standby"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	MQTT      MQTTConfig      `mapstructure:"mqtt" yaml:"mqtt"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	// ID identifies this node in relay commands and telemetry. Empty means
	// "use the id persisted in the store, or generate one".
	ID string `mapstructure:"id" yaml:"id"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// ---- CONTROL ----

type ControlConfig struct {
	Tick time.Duration `mapstructure:"tick" yaml:"tick"`
	Band float64       `mapstructure:"band" yaml:"band"`
	// OverheatC forces the heater OFF at or above this reading. 0 disables.
	OverheatC float64 `mapstructure:"overheat_c" yaml:"overheat_c"`
}

// ---- SENSOR ----

type SensorConfig struct {
	Driver        string        `mapstructure:"driver" yaml:"driver"` // w1 | fake
	W1Root        string        `mapstructure:"w1_root" yaml:"w1_root"`
	Resolution    int           `mapstructure:"resolution" yaml:"resolution"`
	ProbeInterval time.Duration `mapstructure:"probe_interval" yaml:"probe_interval"`
	MaxFailures   int           `mapstructure:"max_failures" yaml:"max_failures"`
	FakeTempC     float64       `mapstructure:"fake_temp_c" yaml:"fake_temp_c"`
}

// ---- RELAY ----

type RelayConfig struct {
	Driver       string        `mapstructure:"driver" yaml:"driver"` // mqtt | gpio
	SendInterval time.Duration `mapstructure:"send_interval" yaml:"send_interval"`
	SendOnChange bool          `mapstructure:"send_on_change" yaml:"send_on_change"`
	Freshness    time.Duration `mapstructure:"freshness" yaml:"freshness"`
	CommandTopic string        `mapstructure:"command_topic" yaml:"command_topic"`
	AckTopic     string        `mapstructure:"ack_topic" yaml:"ack_topic"`
	GPIOChip     string        `mapstructure:"gpio_chip" yaml:"gpio_chip"`
	GPIOLine     int           `mapstructure:"gpio_line" yaml:"gpio_line"`
	ActiveLow    bool          `mapstructure:"active_low" yaml:"active_low"`
}

type InterlockConfig struct {
	MaxOn    time.Duration `mapstructure:"max_on" yaml:"max_on"` // 0 disables
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// ---- REMOTE ----

type RemoteConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"` // empty disables
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Epsilon  float64       `mapstructure:"epsilon" yaml:"epsilon"`
}

type StandbyConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	ThresholdC float64       `mapstructure:"threshold_c" yaml:"threshold_c"`
	Duration   time.Duration `mapstructure:"duration" yaml:"duration"`
}

// ---- STORE ----

type StoreConfig struct {
	Driver string        `mapstructure:"driver" yaml:"driver"` // file | sqlite
	Path   string        `mapstructure:"path" yaml:"path"`
	MinGap time.Duration `mapstructure:"min_gap" yaml:"min_gap"`
}

// ---- MQTT / HTTP ----

type MQTTConfig struct {
	Broker         string        `mapstructure:"broker" yaml:"broker"` // empty disables telemetry
	ClientID       string        `mapstructure:"client_id" yaml:"client_id"`
	TelemetryTopic string        `mapstructure:"telemetry_topic" yaml:"telemetry_topic"`
	SystemTopic    string        `mapstructure:"system_topic" yaml:"system_topic"`
	Heartbeat      time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"`
	BufferSize     int           `mapstructure:"buffer_size" yaml:"buffer_size"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"` // empty disables
}

// setDefaults registers every key so env overrides work without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("device.id", "")
	v.SetDefault("log.level", "info")

	v.SetDefault("control.tick", "200ms")
	v.SetDefault("control.band", 0.5)
	v.SetDefault("control.overheat_c", 0.0)

	v.SetDefault("sensor.driver", "w1")
	v.SetDefault("sensor.w1_root", "/sys/bus/w1/devices")
	v.SetDefault("sensor.resolution", 12)
	v.SetDefault("sensor.probe_interval", "10s")
	v.SetDefault("sensor.max_failures", 3)
	v.SetDefault("sensor.fake_temp_c", 20.0)

	v.SetDefault("relay.driver", "mqtt")
	v.SetDefault("relay.send_interval", "1m")
	v.SetDefault("relay.send_on_change", false)
	v.SetDefault("relay.freshness", "5s")
	v.SetDefault("relay.command_topic", "home/heating/relay/command")
	v.SetDefault("relay.ack_topic", "home/heating/relay/ack")
	v.SetDefault("relay.gpio_chip", "gpiochip0")
	v.SetDefault("relay.gpio_line", 17)
	v.SetDefault("relay.active_low", false)

	v.SetDefault("interlock.max_on", "1h")
	v.SetDefault("interlock.cooldown", "30m")

	v.SetDefault("remote.endpoint", "")
	v.SetDefault("remote.interval", "1500ms")
	v.SetDefault("remote.timeout", "800ms")
	v.SetDefault("remote.epsilon", 0.05)

	v.SetDefault("standby.enabled", false)
	v.SetDefault("standby.threshold_c", 10.0)
	v.SetDefault("standby.duration", "15m")

	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", "/var/lib/thermostat/setpoint.json")
	v.SetDefault("store.min_gap", "30s")

	v.SetDefault("mqtt.broker", "tcp://192.168.1.200:1883")
	v.SetDefault("mqtt.client_id", "thermostat")
	v.SetDefault("mqtt.telemetry_topic", "home/heating/thermostat/events")
	v.SetDefault("mqtt.system_topic", "home/heating/thermostat/system")
	v.SetDefault("mqtt.heartbeat", "15m")
	v.SetDefault("mqtt.buffer_size", 100)

	v.SetDefault("http.addr", ":80")
}

// Load reads the config file at path (optional if missing) and applies env
// overrides. The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %q: %w", path, err)
			}
		}
	}

	return decode(v)
}

// Parse builds a Config from YAML bytes without consulting the environment.
func Parse(data []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Dump renders the effective config as YAML.
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
