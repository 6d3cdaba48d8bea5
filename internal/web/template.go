package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/pocketgadget/gadgetd/internal/events"
	"github.com/pocketgadget/gadgetd/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"yesno":  yesno,
}).Parse(indexHTML))

func yesno(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

// formatUptime renders d as "3d 04:05:06", dropping the day part when zero.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	days, secs := secs/86400, secs%86400
	clock := fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
	if days > 0 {
		return fmt.Sprintf("%dd %s", days, clock)
	}
	return clock
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>gadgetd</title>
<style>
body { font: 14px/1.4 ui-monospace, monospace; max-width: 40em; margin: 1.5em auto; padding: 0 1em; color: #222; }
h1 { font-size: 1.3em; margin-bottom: 0; }
h2 { font-size: 1em; text-transform: uppercase; color: #666; margin: 1.5em 0 .3em; }
dl { display: grid; grid-template-columns: 14em 1fr; margin: 0; }
dt, dd { margin: 0; padding: 3px 0; border-bottom: 1px dotted #ccc; }
.ok { color: #1a7f37; }
.idle { color: #888; }
.bad { color: #cf222e; }
form { display: inline; }
</style>
</head>
<body>
<h1>gadgetd</h1>

<h2>Device</h2>
<dl>
<dt>Screen</dt><dd id="lock-state" class="{{yesno .Locked "idle" "ok"}}">{{yesno .Locked "locked" "unlocked"}}</dd>
<dt>Brightness</dt><dd>step {{.Brightness}}, {{.BrightnessMv}} mV</dd>
<dt>Health</dt><dd>{{if .Faults}}<span class="bad">degraded</span>{{else}}<span class="ok">ok</span>{{end}}</dd>
{{range .FaultNames}}<dt>Fault: {{.}}</dt><dd class="bad">{{index $.Faults .}}</dd>
{{end}}</dl>

<h2>Advertising</h2>
<dl>
<dt>State</dt><dd id="advert-state" class="{{yesno .Advert.Running "ok" "idle"}}">{{yesno .Advert.Running "running" "stopped"}}</dd>
<dt>TX power</dt><dd>level {{.Advert.Power}}, {{.Advert.PowerDBm}} dBm</dd>
<dt>Cycles</dt><dd>{{.Advert.Cycles}}</dd>
{{with .Advert.LastAddress}}<dt>Last address</dt><dd>{{.}} {{$.Advert.LastMode}}</dd>{{end}}
</dl>
<p>
<form method="post" action="/api/advert/start"><button>start</button></form>
<form method="post" action="/api/advert/stop"><button>stop</button></form>
</p>

<h2>Links</h2>
<dl>
<dt>MQTT {{.Config.Broker}}</dt><dd class="{{yesno .MQTTConnected "ok" "bad"}}">{{yesno .MQTTConnected "connected" "disconnected"}}</dd>
<dt>Redis {{.Config.Redis}}</dt><dd class="{{yesno .RedisConnected "ok" "bad"}}">{{yesno .RedisConnected "connected" "disconnected"}}</dd>
</dl>

<h2>Events</h2>
<dl>
{{range .Window}}<dt>{{.Name}}</dt><dd>{{.Count}}</dd>
{{end}}<dt>dropped while locked</dt><dd>{{.Counts.Dropped}}</dd>
<dt>bus drops</dt><dd>{{.BusDropped}}</dd>
{{range $name, $n := .Counts.Power}}<dt>{{$name}}</dt><dd>{{$n}}</dd>
{{end}}</dl>

<h2>Daemon</h2>
<dl>
<dt>Uptime</dt><dd>{{uptime .Uptime}}</dd>
<dt>Started</dt><dd>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</dd>
<dt>Radio</dt><dd>{{.Config.Radio}}, hold {{.Config.HoldMs}} ms</dd>
<dt>Bus capacity</dt><dd>{{.Config.BusCapacity}}</dd>
<dt>HTTP</dt><dd>{{.Config.HTTPAddr}}</dd>
</dl>

<p><a href="/api/status">status.json</a></p>
</body>
</html>
`

type windowRow struct {
	Name  string
	Count int
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	rows := make([]windowRow, len(snap.Counts.Window))
	for k, n := range snap.Counts.Window {
		rows[k] = windowRow{Name: events.WindowEventKind(k).String(), Count: n}
	}
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Window []windowRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Window:   rows,
	}
	return indexTmpl.Execute(w, data)
}
