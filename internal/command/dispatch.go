package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/climate-agent/internal/device"
	"github.com/sweeney/climate-agent/internal/logic"
)

// Effect tells the scheduler what to do after a dispatch.
type Effect int

const (
	EffectNone Effect = iota
	EffectPersist
	EffectPersistAndRestart
	EffectRestart
)

func (e Effect) String() string {
	switch e {
	case EffectPersist:
		return "persist"
	case EffectPersistAndRestart:
		return "persist+restart"
	case EffectRestart:
		return "restart"
	default:
		return "none"
	}
}

// Persists reports whether the configuration must be saved.
func (e Effect) Persists() bool {
	return e == EffectPersist || e == EffectPersistAndRestart
}

// Restarts reports whether the device restarts after the reply is sent.
func (e Effect) Restarts() bool {
	return e == EffectRestart || e == EffectPersistAndRestart
}

// Outcome is the result of dispatching one command.
type Outcome struct {
	Reply  string // empty means no reply
	Effect Effect

	// PublishNow asks the scheduler to publish telemetry immediately.
	PublishNow bool
}

// CredentialResetter erases stored network credentials.
type CredentialResetter interface {
	ResetCredentials() error
}

// Options configures a Dispatcher.
type Options struct {
	Credentials CredentialResetter
	Restart     logic.RestartPolicy
	Device      device.Source
	Location    string
	Broker      string
	Version     string

	// Clock reads the wall clock for uptime; nil selects time.Now.
	Clock func() time.Time
}

// Dispatcher applies commands to the agent state.
type Dispatcher struct {
	opts Options
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Location == "" {
		opts.Location = "unknown"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Dispatcher{opts: opts}
}

// Dispatch applies cmd to state. now is milliseconds since boot. Dispatch
// never fails; invalid arguments produce a rejection reply and leave state
// unchanged.
func (d *Dispatcher) Dispatch(cmd Command, state *logic.State, now logic.Millis) Outcome {
	switch c := cmd.(type) {
	case ShowMenu:
		return Outcome{Reply: menuText}

	case PublishNow:
		return Outcome{PublishNow: true}

	case SetInterval:
		return d.setInterval(c, state, now)

	case SetMode:
		return d.setMode(c, state, now)

	case ShowMode:
		return Outcome{Reply: modeText(state, now)}

	case ShowStatus:
		return Outcome{Reply: d.statusText(state, now)}

	case ShowDeviceInfo:
		return Outcome{Reply: d.deviceText(state)}

	case FactoryReset:
		return d.factoryReset()

	case RestartDevice:
		if !d.opts.Restart.Allowed() {
			return Outcome{Reply: "⚠️ *Restart is disabled.* The device remains powered; power-cycle it manually."}
		}
		return Outcome{Reply: "🔁 *Restarting...*", Effect: EffectRestart}

	case ClearResetCount:
		state.Config.ResetCount = 0
		return Outcome{Reply: "♻️ *Reset counter cleared.*", Effect: EffectPersist}

	case Unrecognized:
		if strings.HasPrefix(strings.TrimSpace(c.Raw), "/") {
			return Outcome{Reply: "❌ *Command not recognized.*\nℹ️ Send */menu* to list the available commands."}
		}
		return Outcome{Reply: "ℹ️ This device only understands commands. Send */menu* to list them."}

	default:
		return Outcome{Reply: "❌ *Command not recognized.*"}
	}
}

func (d *Dispatcher) setInterval(c SetInterval, state *logic.State, now logic.Millis) Outcome {
	interval := time.Duration(c.Seconds) * time.Second
	if err := logic.ValidateInterval(interval); err != nil {
		return Outcome{Reply: fmt.Sprintf(
			"⚠️ Invalid interval. Use whole seconds between %d and %d.",
			int(logic.MinSampleInterval/time.Second), int(logic.MaxPublishInterval/time.Second),
		)}
	}

	state.Config.PublishInterval = interval
	state.Timers.LastPublish = now
	return Outcome{
		Reply:  fmt.Sprintf("⏱️ Interval changed to *%d* seconds.", c.Seconds),
		Effect: EffectPersist,
	}
}

func (d *Dispatcher) setMode(c SetMode, state *logic.State, now logic.Millis) Outcome {
	switch c.Mode {
	case logic.ModeAuto:
		state.Config.AutoPublish = true
		state.Timers.LastPublish = now
		return Outcome{Reply: "🤖 Mode set to *auto*: readings are published every interval.", Effect: EffectPersist}
	case logic.ModeManual:
		state.Config.AutoPublish = false
		return Outcome{Reply: "✋ Mode set to *manual*: send /DataSensores to publish.", Effect: EffectPersist}
	default:
		return Outcome{Reply: "⚠️ Invalid mode. Use `/setModo auto` or `/setModo manual`."}
	}
}

func (d *Dispatcher) factoryReset() Outcome {
	var b strings.Builder
	if err := d.opts.Credentials.ResetCredentials(); err != nil {
		fmt.Fprintf(&b, "⚠️ *Credential reset failed:* %v\n", err)
	} else {
		b.WriteString("🧹 *Network credentials cleared.*\n")
	}

	if !d.opts.Restart.Allowed() {
		b.WriteString("⚠️ Restart is disabled. The device remains powered; power-cycle it manually.")
		return Outcome{Reply: b.String()}
	}
	b.WriteString("🔁 Restarting...")
	return Outcome{Reply: b.String(), Effect: EffectPersistAndRestart}
}

const menuText = "📋 *Commands:*\n\n" +
	"📊 /DataSensores - Publish current readings\n" +
	"⏱️ /setInterval [s] - Change publish interval\n" +
	"🤖 /setModo [auto|manual] - Change publish mode\n" +
	"🔎 /modo - Show publish mode\n" +
	"📈 /status - General status\n" +
	"🧹 /APreset - Clear network credentials and restart\n" +
	"🔁 /reset - Restart device\n" +
	"🖥️ /infoDevices - Device info\n" +
	"♻️ /clearResetCount - Reset boot counter"

func modeText(state *logic.State, now logic.Millis) string {
	return fmt.Sprintf("🔎 Mode: *%s*\n⏳ Next publish: *%s*", state.Config.Mode(), NextPublishText(state, now))
}

func (d *Dispatcher) statusText(state *logic.State, now logic.Millis) string {
	var b strings.Builder
	b.WriteString("📈 *Status:*\n")
	fmt.Fprintf(&b, "🔁 Boots: *%d*\n", state.Config.ResetCount)
	fmt.Fprintf(&b, "⏱️ Interval: *%d s*\n", int(state.Config.PublishInterval/time.Second))
	fmt.Fprintf(&b, "🤖 Mode: *%s*\n", state.Config.Mode())
	fmt.Fprintf(&b, "⏳ Next publish: *%s*\n", NextPublishText(state, now))
	fmt.Fprintf(&b, "📶 Network: *%s*\n", state.Network)
	fmt.Fprintf(&b, "📤 Published: *%d* (failed %d, sensor faults %d)\n",
		state.Counters.Publishes, state.Counters.PublishFailures, state.Counters.SensorFaults)
	fmt.Fprintf(&b, "⏱️ Uptime: *%s*", Uptime(d.uptime(state)))
	return b.String()
}

func (d *Dispatcher) deviceText(state *logic.State) string {
	info := d.opts.Device.Info()

	var b strings.Builder
	b.WriteString("🖥️ *Device info:*\n")
	fmt.Fprintf(&b, "📍 Location: *%s*\n", d.opts.Location)
	fmt.Fprintf(&b, "🆔 ID: *%s*\n", orUnknown(info.DeviceID))
	fmt.Fprintf(&b, "🏷️ Host: *%s*\n", orUnknown(info.Hostname))
	fmt.Fprintf(&b, "🔗 MAC: *%s*\n", orUnknown(info.MAC))
	fmt.Fprintf(&b, "📡 IP: *%s*\n", orUnknown(info.IP))
	fmt.Fprintf(&b, "📡 MQTT: *%s*\n", orUnknown(d.opts.Broker))
	fmt.Fprintf(&b, "🌡️ CPU temp: *%.1f °C* _(internal sensor)_\n", d.opts.Device.CPUTemperature())
	if d.opts.Version != "" {
		fmt.Fprintf(&b, "🏷️ Version: *%s*\n", d.opts.Version)
	}
	fmt.Fprintf(&b, "⏱️ Uptime: *%s*", Uptime(d.uptime(state)))
	return b.String()
}

// uptime is measured on the wall clock; the millisecond counter wraps after
// about 49.7 days.
func (d *Dispatcher) uptime(state *logic.State) time.Duration {
	up := d.opts.Clock().Sub(state.BootedAt)
	if up < 0 {
		return 0
	}
	return up
}

// NextPublishText renders the time to the next automatic publish.
func NextPublishText(state *logic.State, now logic.Millis) string {
	left, ok := state.NextPublishIn(now)
	if !ok {
		return "n/a (manual mode)"
	}
	return fmt.Sprintf("%d s", int(left.Round(time.Second)/time.Second))
}

// Uptime formats d as hh:mm:ss. Hours are not capped at 24.
func Uptime(d time.Duration) string {
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
