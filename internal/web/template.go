package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
	"github.com/sweeney/thermostat/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s logic.State) string {
		if s == "" {
			return "UNKNOWN"
		}
		return string(s)
	},
	"stateClass": func(s logic.State) string {
		switch s {
		case logic.StateOn:
			return "on"
		case logic.StateOff:
			return "off"
		}
		return "unknown"
	},
	"reading": func(r logic.Reading) string {
		if !r.Valid {
			return "no reading"
		}
		return fmt.Sprintf("%.2f°C", r.Temp)
	},
	"celsius": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.1f°C", *v)
	},
	"clock": func(t time.Time) string {
		return t.UTC().Format("15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Thermostat</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
form { display: inline; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.warn { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Thermostat<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>Temperature</th><td id="temperature">{{reading .Reading}}</td></tr>
<tr><th>Setpoint</th><td id="setpoint">{{printf "%.1f" .Setpoint.Value}}°C ({{.Setpoint.Preset}})</td></tr>
<tr><th>Thermostat</th><td id="enabled" class="{{if .Setpoint.Enabled}}on{{else}}off{{end}}">{{if .Setpoint.Enabled}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Heater</th><td id="heater" class="{{stateClass .Effective}}">{{stateOrUnknown .Effective}}</td></tr>
<tr><th>Commanded</th><td id="commanded">{{stateOrUnknown .Actuator.Commanded}}</td></tr>
<tr><th>Confirmed</th><td id="confirmed">{{if .Actuator.Confirmed}}{{.Actuator.Confirmed}}{{if .ConfirmedFresh}} (fresh){{else}} (stale){{end}}{{else}}never{{end}}</td></tr>
<tr><th>Interlock</th><td id="interlock" class="{{if eq (printf "%s" .Interlock) "FORCED_OFF"}}warn{{end}}">{{.Interlock}}{{if not .ForcedUntil.IsZero}} until {{clock .ForcedUntil}}{{end}}</td></tr>
<tr><th>Standby</th><td id="standby">{{.Standby}}{{if not .StandbyUntil.IsZero}} until {{clock .StandbyUntil}}{{end}}</td></tr>
<tr><th>Sensor</th><td>{{if .SensorPresent}}{{if .SensorAddress}}{{.SensorAddress}}{{else}}present{{end}}{{else}}<span class="warn">missing</span>{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
</table>
{{if .Writable}}
<h2>Control</h2>
<p>
{{range .Presets}}<form method="post" action="/setpoint"><input type="hidden" name="redirect" value="1"><button name="preset" value="{{.}}">{{.}}</button></form> {{end}}
</p>
<form method="post" action="/setpoint">
<input type="hidden" name="redirect" value="1">
<input type="number" name="value" min="5" max="35" step="0.5" value="{{printf "%.1f" .Setpoint.Value}}">
<button>set</button>
</form>
<form method="post" action="/setpoint">
<input type="hidden" name="redirect" value="1">
{{if .Setpoint.Enabled}}<button name="enabled" value="false">disable</button>{{else}}<button name="enabled" value="true">enable</button>{{end}}
</form>
{{end}}
{{with .Remote}}
<h2>Remote</h2>
<table>
<tr><th>Last exchange</th><td>{{clock .At}} {{if .OK}}<span class="connected">ok</span>{{else}}<span class="disconnected">failed</span>{{end}}</td></tr>
{{if .Mode}}<tr><th>Mode</th><td>{{.Mode}}</td></tr>{{end}}
<tr><th>Setpoint</th><td>{{celsius .Setpoint}}</td></tr>
<tr><th>Actual</th><td>{{celsius .ActualTemp}}</td></tr>
{{if .Err}}<tr><th>Error</th><td>{{.Err}}</td></tr>{{end}}
</table>
{{end}}
<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Heater ON</th><td>{{.Counts.HeaterOn}}</td></tr>
<tr><th>Heater OFF</th><td>{{.Counts.HeaterOff}}</td></tr>
<tr><th>Setpoint changed</th><td>{{.Counts.SetpointChanged}}</td></tr>
<tr><th>Interlock tripped</th><td>{{.Counts.InterlockTripped}}</td></tr>
<tr><th>Interlock cleared</th><td>{{.Counts.InterlockCleared}}</td></tr>
<tr><th>Sensor lost</th><td>{{.Counts.SensorLost}}</td></tr>
<tr><th>Sensor found</th><td>{{.Counts.SensorFound}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Device</th><td>{{.Config.DeviceID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Band</th><td>{{.Config.BandC}}°C</td></tr>
<tr><th>Relay send</th><td>{{.Config.SendIntervalMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Store</th><td>{{.Config.StoreDriver}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function setText(id, text, cls) {
    var el = document.getElementById(id);
    if (!el) return;
    el.textContent = text;
    if (cls !== undefined) el.className = cls;
  }
  function stateClass(s) {
    return s === "ON" ? "on" : s === "OFF" ? "off" : "unknown";
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        setText("temperature", s.temperature === null ? "no reading" : s.temperature.toFixed(2) + "°C");
        setText("setpoint", s.setpoint.value.toFixed(1) + "°C (" + s.setpoint.preset + ")");
        setText("enabled", s.setpoint.enabled ? "enabled" : "disabled", s.setpoint.enabled ? "on" : "off");
        setText("heater", s.heater.effective, stateClass(s.heater.effective));
        setText("commanded", s.heater.commanded);
        setText("confirmed", s.heater.confirmed ? s.heater.confirmed + (s.heater.confirmed_fresh ? " (fresh)" : " (stale)") : "never");
        setText("interlock", s.interlock.phase, s.interlock.phase === "FORCED_OFF" ? "warn" : "");
        setText("standby", s.standby.phase);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

var presets = []logic.Preset{logic.PresetOn, logic.PresetAway, logic.PresetOff}

func renderHTML(w io.Writer, snap status.Snapshot, writable bool) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Writable bool
		Presets  []logic.Preset
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Writable: writable,
		Presets:  presets,
	}
	return indexTmpl.Execute(w, data)
}
