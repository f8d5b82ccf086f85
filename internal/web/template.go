package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/magic-clock/internal/gesture"
	"github.com/sweeney/magic-clock/internal/status"
	"github.com/sweeney/magic-clock/internal/trigger"
)

var funcs = template.FuncMap{
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
	"ms": func(d time.Duration) int64 { return d.Milliseconds() },
}

var (
	faceTmpl   = template.Must(template.New("face").Funcs(funcs).Parse(faceHTML))
	statusTmpl = template.Must(template.New("status").Funcs(funcs).Parse(statusHTML))
)

const faceHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1, maximum-scale=1, user-scalable=no">
<meta name="apple-mobile-web-app-capable" content="yes">
<title>Reloj</title>
<style>
html, body { margin: 0; height: 100%; background: #000; color: #fff; overflow: hidden;
  touch-action: none; user-select: none; -webkit-user-select: none;
  font-family: -apple-system, "Helvetica Neue", Roboto, sans-serif; }
#face { position: absolute; inset: 0; display: flex; flex-direction: column; align-items: center; padding-top: 12vh; }
.style-android #face { flex-direction: column-reverse; justify-content: flex-end; }
#date { font-size: 5vw; opacity: .9; }
#time { font-size: 22vw; font-weight: 200; letter-spacing: -.02em; }
.style-android #time { font-weight: 400; }
#blackout { position: absolute; inset: 0; background: #000; display: none; }
#blackout.active { display: block; }
#keypad { position: absolute; left: 0; right: 0; top: 8%; bottom: 5%;
  display: grid; grid-template-columns: repeat(3, 1fr); grid-template-rows: repeat(4, 1fr); pointer-events: none; }
#keypad div { display: flex; align-items: center; justify-content: center; font-size: 9vw; color: rgba(255,255,255,.35); }
#menu { position: absolute; inset: 10% 8%; background: rgba(30,30,30,.96); border-radius: 12px; padding: 1em; display: none; }
#menu.open { display: block; }
#menu button { display: block; width: 100%; margin: .4em 0; padding: .8em; font-size: 1em; color: #fff;
  background: #333; border: 0; border-radius: 8px; text-align: left; }
</style>
</head>
<body class="style-{{.Settings.Style}}">
<div id="face"><div id="date">{{.Reading.Date}}</div><div id="time">{{.Reading.Clock}}</div></div>
<div id="keypad">{{range .Keys}}<div>{{.}}</div>{{end}}</div>
<div id="blackout"{{if .Dark}} class="active"{{end}}></div>
<div id="menu">
{{range .Menu}}<button data-menu="{{.Name}}">{{.Label}}</button>
{{end}}<button data-command="calibrate">Calibrar</button>
<button data-command="reset">Reiniciar</button>
<button data-close="1">Cerrar</button>
</div>
<script>
(function() {
  var ws, open = false;
  var timeEl = document.getElementById("time");
  var dateEl = document.getElementById("date");
  var blackout = document.getElementById("blackout");
  var keypad = document.getElementById("keypad");
  var menu = document.getElementById("menu");

  function send(msg) {
    if (open) ws.send(JSON.stringify(msg));
  }

  function viewport() {
    send({type: "viewport", width: window.innerWidth, height: window.innerHeight});
  }

  function render(s) {
    document.body.className = "style-" + (s.settings.style || "ios");
    timeEl.textContent = s.display.slice(0, 5);
    dateEl.textContent = s.date;
    blackout.className = s.blackout || s.phase === "DARK" ? "active" : "";
    keypad.style.opacity = s.keypad_alpha;
  }

  function buildMenu(entries) {
    var buttons = menu.querySelectorAll("button[data-menu]");
    for (var i = 0; i < buttons.length && i < entries.length; i++) {
      buttons[i].textContent = entries[i].label;
    }
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { open = true; viewport(); };
    ws.onclose = function() { open = false; setTimeout(connect, 2000); };
    ws.onmessage = function(m) {
      var msg = JSON.parse(m.data);
      if (msg.events) {
        buildMenu(msg.menu);
        msg.events.forEach(function(e) {
          if (e.event === "OPEN_SETTINGS") menu.className = "open";
          if (e.event === "CLOSE_APP") { menu.className = ""; document.body.innerHTML = ""; }
        });
      }
      if (msg.status) render(msg.status);
    };
  }

  function points(list) {
    var out = [];
    for (var i = 0; i < list.length; i++) {
      out.push({id: list[i].identifier, x: list[i].clientX, y: list[i].clientY});
    }
    return out;
  }

  function touch(kind) {
    return function(e) {
      if (menu.className === "open") return;
      e.preventDefault();
      var pts = points(e.touches);
      if (kind === "up" || kind === "cancel") pts = pts.concat(points(e.changedTouches));
      send({type: "pointer", kind: kind, points: pts});
    };
  }

  var mouseDown = false;
  function mouse(kind) {
    return function(e) {
      if (menu.className === "open") return;
      if (kind === "down") mouseDown = true;
      if (!mouseDown) return;
      if (kind === "up") mouseDown = false;
      send({type: "pointer", kind: kind, points: [{id: 0, x: e.clientX, y: e.clientY}]});
    };
  }

  function motion(e) {
    var a = e.accelerationIncludingGravity || e.acceleration;
    if (!a) return;
    send({type: "motion", x: a.x || 0, y: a.y || 0, z: a.z || 0});
  }

  document.addEventListener("touchstart", touch("down"), {passive: false});
  document.addEventListener("touchmove", touch("move"), {passive: false});
  document.addEventListener("touchend", touch("up"), {passive: false});
  document.addEventListener("touchcancel", touch("cancel"), {passive: false});
  document.addEventListener("mousedown", mouse("down"));
  document.addEventListener("mousemove", mouse("move"));
  document.addEventListener("mouseup", mouse("up"));
  window.addEventListener("resize", viewport);
  document.addEventListener("keydown", function(e) {
    if ("0123456789+-".indexOf(e.key) >= 0) send({type: "key", key: e.key});
  });

  function enableMotion() {
    if (typeof DeviceMotionEvent === "undefined") return;
    if (typeof DeviceMotionEvent.requestPermission === "function") {
      DeviceMotionEvent.requestPermission().then(function(p) {
        if (p === "granted") window.addEventListener("devicemotion", motion);
      }).catch(function() {});
    } else {
      window.addEventListener("devicemotion", motion);
    }
  }
  document.addEventListener("touchend", enableMotion, {once: true});

  menu.addEventListener("click", function(e) {
    var b = e.target;
    if (b.dataset.menu) send({type: "menu", name: b.dataset.menu});
    if (b.dataset.command) { send({type: "command", name: b.dataset.command}); menu.className = ""; }
    if (b.dataset.close) menu.className = "";
  });

  connect();
})();
</script>
</body>
</html>
`

const statusHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Magic Clock</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Magic Clock</h1>

<h2>Display</h2>
<table>
<tr><th>Phase</th><td>{{.Frame.Phase}}</td></tr>
<tr><th>Showing</th><td>{{.Reading}}</td></tr>
<tr><th>Offset</th><td>{{ms .Frame.Offset}}ms</td></tr>
{{if .Frame.PendingSign.String}}<tr><th>Pending sign</th><td>{{.Frame.PendingSign}}</td></tr>{{end}}
<tr><th>Blackout</th><td>{{if .Frame.Blackout}}yes{{else}}no{{end}}</td></tr>
{{if .Frame.AwaitingTrigger}}<tr><th>Return</th><td>waiting for trigger</td></tr>{{end}}
{{if .Frame.ReturnIn}}<tr><th>Return in</th><td>{{ms .Frame.ReturnIn}}ms</td></tr>{{end}}
</table>

<h2>Settings</h2>
<table>
{{range .Menu}}<tr><td>{{.Label}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Inputs</th><td>{{.Counts.Inputs}}</td></tr>
<tr><th>Returns started</th><td>{{.Counts.ReturnsStarted}}</td></tr>
<tr><th>Returns completed</th><td>{{.Counts.ReturnsCompleted}}</td></tr>
<tr><th>Returns skipped</th><td>{{.Counts.ReturnsSkipped}}</td></tr>
<tr><th>Resets</th><td>{{.Counts.Resets}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Zone</th><td>{{.Config.Zone}}</td></tr>
<tr><th>Frame rate</th><td>{{.Config.FPS}}fps</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
{{if .Config.ButtonPin}}<tr><th>Button pin</th><td>{{.Config.ButtonPin}}</td></tr>{{end}}
</table>

<p><a href="/">Face</a> · <a href="/index.json">JSON</a> · <a href="/snapshot.png">Snapshot</a> · <a href="/metrics">Metrics</a></p>
</body>
</html>
`

type pageData struct {
	status.Snapshot
	Dark   bool
	Uptime time.Duration
	Menu   []MenuJSON
	Keys   []string
}

func newPageData(snap status.Snapshot) pageData {
	data := pageData{Snapshot: snap, Dark: snap.Face().Dark, Uptime: snap.Uptime()}
	for _, a := range trigger.MenuActions {
		data.Menu = append(data.Menu, MenuJSON{Name: a.String(), Label: a.Label(snap.Settings)})
	}
	for _, c := range gesture.DefaultKeypad().Cells(1, 1) {
		data.Keys = append(data.Keys, c.Key.String())
	}
	return data
}

func renderFace(w io.Writer, snap status.Snapshot) error {
	return faceTmpl.Execute(w, newPageData(snap))
}

func renderStatus(w io.Writer, snap status.Snapshot) error {
	return statusTmpl.Execute(w, newPageData(snap))
}
