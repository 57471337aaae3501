package web

import (
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/climate-agent/internal/command"
	"github.com/sweeney/climate-agent/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime":  command.Uptime,
	"seconds": func(d time.Duration) int64 { return int64(d.Round(time.Second) / time.Second) },
	"stamp":   func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"lower":   strings.ToLower,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Config.DeviceID}} · climate</title>
<style>
:root { --ok: #2e7d32; --bad: #c62828; --wait: #ef6c00; --rule: #e0e0e0; }
body { font: 14px/1.4 system-ui, sans-serif; max-width: 640px; margin: 1.5em auto; padding: 0 1em; color: #212121; }
h1 { font-size: 1.3em; margin-bottom: 0.2em; }
h2 { font-size: 1em; text-transform: uppercase; letter-spacing: 0.05em; color: #616161; margin-top: 1.5em; }
dl { display: grid; grid-template-columns: 40% 60%; margin: 0; }
dt, dd { margin: 0; padding: 4px 0; border-bottom: 1px solid var(--rule); }
dd { font-family: monospace; }
.connected { color: var(--ok); }
.disconnected { color: var(--bad); }
.connecting { color: var(--wait); }
#live { display: inline-block; width: 0.6em; height: 0.6em; border-radius: 50%; margin-left: 0.4em; background: var(--wait); }
#live.ok { background: var(--ok); }
#live.err { background: var(--bad); }
</style>
</head>
<body>
<h1>{{.Config.DeviceID}}<span id="live" title="connecting"></span></h1>
<div>{{if .Config.Location}}{{.Config.Location}} · {{end}}{{.Config.Sensor}} sensor</div>

<h2>Reading</h2>
<dl>
{{with .Latest}}<dt>Temperature</dt><dd id="temperature">{{printf "%.1f" .Temperature}} °C</dd>
<dt>Humidity</dt><dd id="humidity">{{printf "%.1f" .Humidity}} %</dd>
<dt>Air quality</dt><dd id="air-quality">{{.AirQualityPPM}} ppm</dd>
<dt>Generator</dt><dd id="generator">{{if .GeneratorOn}}on{{else}}off{{end}}</dd>
<dt>CPU</dt><dd id="cpu">{{printf "%.1f" .CPUTemperature}} °C</dd>
<dt>Taken</dt><dd id="taken">{{stamp .Timestamp}}</dd>
{{else}}<dt>Temperature</dt><dd id="temperature">no reading yet</dd>
{{end}}</dl>

<h2>Publishing</h2>
<dl>
<dt>Mode</dt><dd id="mode">{{.Agent.Mode}}</dd>
<dt>Interval</dt><dd>{{seconds .Agent.PublishInterval}} s</dd>
<dt>Next publish</dt><dd id="next">{{if .Agent.AutoPublish}}{{seconds .NextPublish}} s{{else}}n/a (manual mode){{end}}</dd>
<dt>Published</dt><dd id="publishes">{{.Counters.Publishes}}</dd>
<dt>Failures</dt><dd id="failures">{{.Counters.PublishFailures}}</dd>
<dt>Sensor faults</dt><dd id="faults">{{.Counters.SensorFaults}}</dd>
<dt>Commands</dt><dd id="commands">{{.Counters.Commands}}</dd>
</dl>

<h2>Connectivity</h2>
<dl>
<dt>MQTT</dt><dd id="mqtt" class="{{lower .Network.String}}">{{.Network}}</dd>
<dt>Broker</dt><dd>{{.Config.Broker}}</dd>
<dt>Topics</dt><dd>{{.Config.TopicPrefix}}/…</dd>
{{with .Device.IP}}<dt>IP</dt><dd>{{.}}{{with $.Device.Iface}} ({{.}}){{end}}</dd>{{end}}
{{with .Device.MAC}}<dt>MAC</dt><dd>{{.}}</dd>{{end}}
</dl>

<h2>System</h2>
<dl>
{{with .Device.Hostname}}<dt>Host</dt><dd>{{.}}</dd>{{end}}
<dt>Boots</dt><dd>{{.Agent.ResetCount}}</dd>
<dt>Uptime</dt><dd>{{uptime .Uptime}}</dd>
<dt>Started</dt><dd>{{stamp .StartTime}}</dd>
<dt>Poll</dt><dd>{{.Config.PollMs}} ms</dd>
{{with .Config.Version}}<dt>Version</dt><dd>{{.}}</dd>{{end}}
</dl>

<p><a href="/index.json">index.json</a> · <a href="/api/latest">api/latest</a></p>
<script>
(function() {
  var live = document.getElementById("live");
  function text(id, v) {
    var el = document.getElementById(id);
    if (el) { el.textContent = v; }
  }
  function open() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { live.className = "ok"; live.title = "live"; };
    ws.onclose = function() {
      live.className = "err";
      live.title = "offline";
      setTimeout(open, 5000);
    };
    ws.onmessage = function(ev) {
      var s;
      try { s = JSON.parse(ev.data).status; } catch (e) { return; }
      var c = s.counters;
      text("mode", s.mode);
      text("next", s.next_publish_seconds === null ? "n/a (manual mode)" : s.next_publish_seconds + " s");
      text("publishes", c.publishes);
      text("failures", c.publish_failures);
      text("faults", c.sensor_faults);
      text("commands", c.commands);
      text("mqtt", s.mqtt.status);
      document.getElementById("mqtt").className = s.mqtt.status.toLowerCase();
      var l = s.latest;
      if (!l) { return; }
      text("temperature", l.temperature.toFixed(1) + " °C");
      text("humidity", l.humidity.toFixed(1) + " %");
      text("air-quality", l.air_quality_ppm + " ppm");
      text("generator", l.generator_on ? "on" : "off");
      text("cpu", l.cpu_temperature.toFixed(1) + " °C");
      text("taken", l.timestamp);
    };
  }
  open();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
