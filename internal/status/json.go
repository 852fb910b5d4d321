package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Ready         bool          `json:"ready"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	Temperature   *float64      `json:"temperature"`
	Sensor        SensorJSON    `json:"sensor"`
	Setpoint      SetpointJSON  `json:"setpoint"`
	Heater        HeaterJSON    `json:"heater"`
	Interlock     InterlockJSON `json:"interlock"`
	Standby       StandbyJSON   `json:"standby"`
	Remote        *RemoteJSON   `json:"remote,omitempty"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// SensorJSON reports the sensor.
type SensorJSON struct {
	Present bool   `json:"present"`
	Address string `json:"address,omitempty"`
}

// SetpointJSON reports the active setpoint.
type SetpointJSON struct {
	Value   float64 `json:"value"`
	Preset  string  `json:"preset"`
	Enabled bool    `json:"enabled"`
}

// HeaterJSON reports commanded versus confirmed relay state.
type HeaterJSON struct {
	Decision       string `json:"decision"`
	Commanded      string `json:"commanded"`
	Confirmed      string `json:"confirmed,omitempty"`
	ConfirmedAgeMs *int64 `json:"confirmed_age_ms"`
	ConfirmedFresh bool   `json:"confirmed_fresh"`
	Effective      string `json:"effective"`
}

// InterlockJSON reports the run-time interlock.
type InterlockJSON struct {
	Phase       string `json:"phase"`
	ForcedUntil string `json:"forced_until,omitempty"`
}

// StandbyJSON reports the standby policy.
type StandbyJSON struct {
	Phase string `json:"phase"`
	Until string `json:"until,omitempty"`
}

// RemoteJSON reports the last remote exchange.
type RemoteJSON struct {
	At         string   `json:"at"`
	OK         bool     `json:"ok"`
	Mode       string   `json:"mode,omitempty"`
	Setpoint   *float64 `json:"setpoint"`
	ActualTemp *float64 `json:"actual_temp"`
	Error      string   `json:"error,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	HeaterOn         int `json:"heater_on"`
	HeaterOff        int `json:"heater_off"`
	SetpointChanged  int `json:"setpoint_changed"`
	InterlockTripped int `json:"interlock_tripped"`
	InterlockCleared int `json:"interlock_cleared"`
	SensorLost       int `json:"sensor_lost"`
	SensorFound      int `json:"sensor_found"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	DeviceID          string  `json:"device_id"`
	TickMs            int64   `json:"tick_ms"`
	BandC             float64 `json:"band_c"`
	OverheatC         float64 `json:"overheat_c,omitempty"`
	SendIntervalMs    int64   `json:"send_interval_ms"`
	FreshnessMs       int64   `json:"freshness_ms"`
	MaxOnMs           int64   `json:"max_on_ms"`
	CooldownMs        int64   `json:"cooldown_ms"`
	RemoteEndpoint    string  `json:"remote_endpoint,omitempty"`
	RemoteIntervalMs  int64   `json:"remote_interval_ms,omitempty"`
	StandbyEnabled    bool    `json:"standby_enabled"`
	StandbyThresholdC float64 `json:"standby_threshold_c,omitempty"`
	HeartbeatMs       int64   `json:"heartbeat_ms"`
	Broker            string  `json:"broker"`
	HTTPPort          string  `json:"http_port"`
	StoreDriver       string  `json:"store_driver"`
}

func stateOrUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Sensor:        SensorJSON{Present: snap.SensorPresent, Address: snap.SensorAddress},
		Setpoint: SetpointJSON{
			Value:   snap.Setpoint.Value,
			Preset:  string(snap.Setpoint.Preset),
			Enabled: snap.Setpoint.Enabled,
		},
		Heater: HeaterJSON{
			Decision:       stateOrUnknown(string(snap.Decision)),
			Commanded:      stateOrUnknown(string(snap.Actuator.Commanded)),
			Confirmed:      string(snap.Actuator.Confirmed),
			ConfirmedFresh: snap.ConfirmedFresh,
			Effective:      stateOrUnknown(string(snap.Effective)),
		},
		Interlock: InterlockJSON{
			Phase:       string(snap.Interlock),
			ForcedUntil: formatTime(snap.ForcedUntil),
		},
		Standby: StandbyJSON{
			Phase: string(snap.Standby),
			Until: formatTime(snap.StandbyUntil),
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			HeaterOn:         snap.Counts.HeaterOn,
			HeaterOff:        snap.Counts.HeaterOff,
			SetpointChanged:  snap.Counts.SetpointChanged,
			InterlockTripped: snap.Counts.InterlockTripped,
			InterlockCleared: snap.Counts.InterlockCleared,
			SensorLost:       snap.Counts.SensorLost,
			SensorFound:      snap.Counts.SensorFound,
		},
		Config: ConfigJSON{
			DeviceID:          snap.Config.DeviceID,
			TickMs:            snap.Config.TickMs,
			BandC:             snap.Config.BandC,
			OverheatC:         snap.Config.OverheatC,
			SendIntervalMs:    snap.Config.SendIntervalMs,
			FreshnessMs:       snap.Config.FreshnessMs,
			MaxOnMs:           snap.Config.MaxOnMs,
			CooldownMs:        snap.Config.CooldownMs,
			RemoteEndpoint:    snap.Config.RemoteEndpoint,
			RemoteIntervalMs:  snap.Config.RemoteIntervalMs,
			StandbyEnabled:    snap.Config.StandbyEnabled,
			StandbyThresholdC: snap.Config.StandbyThresholdC,
			HeartbeatMs:       snap.Config.HeartbeatMs,
			Broker:            snap.Config.Broker,
			HTTPPort:          snap.Config.HTTPPort,
			StoreDriver:       snap.Config.StoreDriver,
		},
	}

	if snap.Reading.Valid {
		t := snap.Reading.Temp
		inner.Temperature = &t
	}
	if age, ok := snap.ConfirmedAge(); ok {
		ms := age.Milliseconds()
		inner.Heater.ConfirmedAgeMs = &ms
	}
	if r := snap.Remote; r != nil {
		inner.Remote = &RemoteJSON{
			At:         formatTime(r.At),
			OK:         r.OK,
			Mode:       r.Mode,
			Setpoint:   r.Setpoint,
			ActualTemp: r.ActualTemp,
			Error:      r.Err,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatCompactJSON returns the web status without indentation, for the
// live feed.
func FormatCompactJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
