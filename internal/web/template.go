package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/water-filter/internal/status"
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
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.Time(t)
	},
	"comma": func(n int) string {
		return humanize.Comma(int64(n))
	},
	"onoff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
	"levelOrUnknown": func(ticked bool, s string) string {
		if !ticked || s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Water Filter</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.alarm { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
form { display: inline; }
</style>
</head>
<body>
<h1>Water Filter</h1>

<h2>Tank</h2>
<table>
<tr><th>Level</th><td id="level">{{levelOrUnknown .Ticked (printf "%s" .Telemetry.Level)}}</td></tr>
<tr><th>Distance</th><td>{{.Telemetry.DistanceCm}} cm</td></tr>
<tr><th>Pump</th><td id="pump" class="{{if .Telemetry.Control.PumpOn}}on{{else}}off{{end}}">{{onoff .Telemetry.Control.PumpOn}}</td></tr>
<tr><th>Alarm</th><td id="alarm" class="{{if .Telemetry.Control.AlarmOn}}alarm{{else}}off{{end}}">{{onoff .Telemetry.Control.AlarmOn}}{{if .Telemetry.Control.AlarmSilenced}} (silenced){{end}}</td></tr>
<tr><th>Last actuation</th><td>{{ago .Telemetry.Control.LastActuationAt}}</td></tr>
<tr><th>TDS stable</th><td>{{if .Telemetry.Control.TdsPipelineStable}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Water Quality</h2>
<table>
<tr><th></th><th>Input</th><th>Output</th></tr>
<tr><th>TDS</th><td>{{.Telemetry.TdsInput.TdsPPM}} ppm</td><td>{{.Telemetry.TdsOutput.TdsPPM}} ppm</td></tr>
<tr><th>EC</th><td>{{printf "%.1f" .Telemetry.TdsInput.ECMicroS}} µS/cm</td><td>{{printf "%.1f" .Telemetry.TdsOutput.ECMicroS}} µS/cm</td></tr>
<tr><th>Temperature</th><td>{{printf "%.1f" .Telemetry.TempInputC}} °C{{if not .Telemetry.TempInputValid}} (default){{end}}</td><td>{{printf "%.1f" .Telemetry.TempOutputC}} °C{{if not .Telemetry.TempOutputValid}} (default){{end}}</td></tr>
<tr><th>Probe in water</th><td>{{if .Telemetry.TdsInput.ProbeWet}}yes{{else}}no{{end}}</td><td>{{if .Telemetry.TdsOutput.ProbeWet}}yes{{else}}no{{end}}</td></tr>
<tr><th>High TDS</th><td>{{if .Telemetry.TdsHighInput}}yes{{else}}no{{end}}</td><td>{{if .Telemetry.TdsHighOutput}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Filter</h2>
<table>
<tr><th>Efficiency</th><td>{{printf "%.1f" .Telemetry.Health.EfficiencyPct}}%</td></tr>
<tr><th>Uses</th><td id="uses">{{comma .Telemetry.Health.UseCount}} / {{comma .Config.UseLimit}}</td></tr>
</table>

<h2>Commands</h2>
<p>
<form method="post" action="/api/command/START_PUMP"><button>Start</button></form>
<form method="post" action="/api/command/STOP_PUMP"><button>Stop</button></form>
<form method="post" action="/api/command/ALARM_OFF"><button>Silence</button></form>
<form method="post" action="/api/command/RESET_USE_COUNT"><button>Reset uses</button></form>
</p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Pump ON</th><td>{{.Counts.PumpOn}}</td></tr>
<tr><th>Pump OFF</th><td>{{.Counts.PumpOff}}</td></tr>
<tr><th>Alarm ON</th><td>{{.Counts.AlarmOn}}</td></tr>
<tr><th>Alarm OFF</th><td>{{.Counts.AlarmOff}}</td></tr>
<tr><th>Rejected commands</th><td>{{.Counts.CommandsRejected}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{if .Host}}<tr><th>Host</th><td>{{.Host.Hostname}}, load {{printf "%.2f" .Host.Load1}}, mem {{printf "%.0f" .Host.MemUsedPct}}%</td></tr>{{end}}
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Publish</th><td>{{.Config.PublishMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
{{if .Config.SerialPort}}<tr><th>Serial</th><td>{{.Config.SerialPort}}</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render: %v", err)
	}
}
