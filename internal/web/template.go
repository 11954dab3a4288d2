package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/yugeshweb/AquaFlow/internal/logic"
	"github.com/yugeshweb/AquaFlow/internal/status"
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
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"f2": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
	"ms": func(d time.Duration) int64 {
		return d.Milliseconds()
	},
	"clock": func(t time.Time) string {
		return t.UTC().Format("15:04:05.000")
	},
	"energized": func(s logic.ActuatorState) bool {
		return s.Energized()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>AquaFlow</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.leak { color: red; font-weight: bold; }
</style>
</head>
<body>
<h1>AquaFlow</h1>

<h2>Pump</h2>
<table>
<tr><th>Relay</th><td class="{{if energized .Actuator}}on{{else}}off{{end}}">{{orUnknown (printf "%s" .Actuator)}}</td></tr>
<tr><th>Command</th><td class="{{if eq (printf "%s" .Command) "UNKNOWN"}}unknown{{end}}">{{orUnknown (printf "%s" .Command)}}</td></tr>
{{if not .CommandAt.IsZero}}<tr><th>Command read</th><td>{{.CommandAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Flow</h2>
<table>
<tr><th></th><th>flow1</th><th>flow2</th></tr>
<tr><th>Rate (L/min)</th><td class="{{if .Flow1.Flowing}}on{{else}}off{{end}}">{{f2 .Flow1.Rate}}</td><td class="{{if .Flow2.Flowing}}on{{else}}off{{end}}">{{f2 .Flow2.Rate}}</td></tr>
<tr><th>Pending pulses</th><td>{{.Flow1.Pending}}</td><td>{{.Flow2.Pending}}</td></tr>
<tr><th>Total (L)</th><td>{{f2 .Flow1.Liters}}</td><td>{{f2 .Flow2.Liters}}</td></tr>
<tr><th>Cost</th><td>{{f2 .Flow1.Cost}}</td><td>{{f2 .Flow2.Cost}}</td></tr>
<tr><th>Leak</th><td colspan="2" class="{{if .Leak}}leak{{else}}off{{end}}">{{if .Leak}}suspected{{else}}none{{end}}</td></tr>
</table>

<h2>Store</h2>
<table>
<tr><th>Backend</th><td>{{.Config.Backend}} {{.Config.StoreAddr}}</td></tr>
<tr><th>Connection</th><td class="{{if .StoreConnected}}connected{{else}}disconnected{{end}}">{{if .StoreConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Breaker}}<tr><th>Breaker</th><td>{{.Breaker}}</td></tr>{{end}}
<tr><th>Publishes</th><td>{{.Counts.Publishes}} ok, {{.Counts.PublishErrors}} failed</td></tr>
<tr><th>Fetch errors</th><td>{{.Counts.FetchErrors}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

{{if .Recent}}<h2>Recent Samples</h2>
<table>
<tr><th>Time</th><th>Channel</th><th>Pulses</th><th>Window</th><th>L/min</th></tr>
{{range .Recent}}<tr><td>{{clock .At}}</td><td>{{.Channel}}</td><td>{{.Count}}</td><td>{{ms .Elapsed}}ms</td><td>{{f2 .Rate}}</td></tr>
{{end}}</table>{{end}}

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Cycles</th><td>{{.Counts.Cycles}} ({{.Counts.Windows}} windows)</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Window</th><td>{{.Config.WindowMs}}ms{{if .Config.CorrectDrift}}, drift corrected{{end}}</td></tr>
<tr><th>Calibration</th><td>{{.Config.PulsesPerUnit}} pulses per L/min</td></tr>
<tr><th>Debounce</th><td>{{if eq .Config.DebounceMs 0}}off{{else}}{{.Config.DebounceMs}}ms{{end}}</td></tr>
<tr><th>History</th><td>{{if .Config.History}}influxdb{{else}}off{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
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
	indexTmpl.Execute(w, data)
}
