package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/kaku-bridge/internal/status"
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
	"stateClass": func(state string) string {
		switch state {
		case "ON":
			return "on"
		case "DIM":
			return "dim"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>KAKU Bridge</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.dim { color: #b80; font-weight: bold; }
.off { color: #888; }
.none { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>KAKU Bridge</h1>

<h2>Last Command</h2>
<table>
{{with .Last}}<tr><th>Address</th><td>{{.Command.Address}}</td></tr>
<tr><th>Target</th><td>{{if .Command.IsGroup}}group{{else}}unit {{.Command.Unit}}{{end}}</td></tr>
<tr><th>State</th><td class="{{stateClass .Command.State}}">{{.Command.State}}{{if .Command.IsDim}} ({{.Command.DimLevel}}){{end}}</td></tr>
<tr><th>Repeat</th><td>{{.Command.Repeat}}</td></tr>
<tr><th>Period</th><td>{{.Command.Period.Microseconds}}µs</td></tr>
<tr><th>Heard</th><td>{{.At.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{else}}<tr><td class="none">nothing received yet</td></tr>{{end}}
</table>

<h2>Radio</h2>
<table>
<tr><th>Receiver</th><td class="{{if .ReceiverEnabled}}connected{{else}}disconnected{{end}}">{{if .ReceiverEnabled}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Frames received</th><td>{{.Counts.Received}}</td></tr>
<tr><th>New commands</th><td>{{.Counts.Commands}}</td></tr>
<tr><th>Dropped</th><td>{{.Counts.Dropped}}</td></tr>
<tr><th>Sent</th><td>{{.Counts.Sent}}</td></tr>
<tr><th>Send errors</th><td>{{.Counts.SendErrors}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .MQTTBuffered}}<tr><th>Queued</th><td>{{.MQTTBuffered}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}: {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Radio</th><td>{{.Config.Radio}}{{if eq .Config.Radio "gpio"}} (rx {{.Config.RXPin}}, tx {{.Config.TXPin}}){{end}}</td></tr>
<tr><th>Period</th><td>{{.Config.PeriodUs}}µs x {{.Config.Repeats}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
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
