// Package agent runs the climate agent: boot sequence, telemetry publishing,
// and the cooperative scheduler that polls for operator commands.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sweeney/climate-agent/internal/device"
	"github.com/sweeney/climate-agent/internal/logger"
	"github.com/sweeney/climate-agent/internal/logic"
	"github.com/sweeney/climate-agent/internal/mqtt"
	"github.com/sweeney/climate-agent/internal/sensor"
	"github.com/sweeney/climate-agent/internal/status"
)

// ErrNotConnected is returned by Publish when the link is down. Nothing is
// sent and no timer moves.
var ErrNotConnected = errors.New("not connected")

// Simulated air-quality range in ppm, upper bound exclusive.
const (
	minAirQualityPPM = 100
	maxAirQualityPPM = 500
)

// HistoryRecorder stores published readings for the hourly history.
type HistoryRecorder interface {
	Record(ctx context.Context, at time.Time, temperature, humidity float64) error
}

// Publisher reads the sensor and sends telemetry.
type Publisher struct {
	sensor  sensor.Sensor
	channel mqtt.Channel
	events  mqtt.Publisher
	device  device.Source
	tracker *status.Tracker
	history HistoryRecorder
	rand    *rand.Rand
	clock   func() time.Time
	log     *logger.Logger
}

// PublisherDeps are the collaborators of a Publisher. Tracker and History
// may be nil.
type PublisherDeps struct {
	Sensor  sensor.Sensor
	Channel mqtt.Channel
	Events  mqtt.Publisher
	Device  device.Source
	Tracker *status.Tracker
	History HistoryRecorder
	Rand    *rand.Rand
	Clock   func() time.Time
}

// NewPublisher creates a Publisher. A nil Rand is seeded from the clock.
func NewPublisher(deps PublisherDeps, log *logger.Logger) *Publisher {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Rand == nil {
		seed := uint64(deps.Clock().UnixNano())
		deps.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Publisher{
		sensor:  deps.Sensor,
		channel: deps.Channel,
		events:  deps.Events,
		device:  deps.Device,
		tracker: deps.Tracker,
		history: deps.History,
		rand:    deps.Rand,
		clock:   deps.Clock,
		log:     log.Component("telemetry"),
	}
}

// Publish reads the sensor and sends one telemetry message, or a diagnostic
// message when the sensor faults. LastPublish moves only when a message was
// sent. A sensor fault is returned wrapped after the diagnostic is sent.
func (p *Publisher) Publish(ctx context.Context, state *logic.State, now logic.Millis) error {
	if state.Network != logic.Connected {
		return ErrNotConnected
	}

	reading, readErr := p.sensor.Read()
	if readErr != nil {
		state.Counters.SensorFaults++
		if err := p.send(ctx, state, now, diagnosticText(readErr)); err != nil {
			return err
		}
		return fmt.Errorf("sensor read: %w", readErr)
	}

	state.Derived = logic.Derived{
		AirQualityPPM: minAirQualityPPM + p.rand.IntN(maxAirQualityPPM-minAirQualityPPM),
		GeneratorOn:   p.rand.IntN(2) == 1,
		Valid:         true,
	}
	cpu := p.device.CPUTemperature()

	text := FormatTelemetry(reading, cpu, state.Derived, nextPublishAfterSend(state))
	if err := p.send(ctx, state, now, text); err != nil {
		return err
	}
	state.Counters.Publishes++

	taken := p.clock()
	p.publishStructured(ctx, mqtt.Reading{
		Timestamp:      taken,
		Temperature:    reading.Temperature,
		Humidity:       reading.Humidity,
		CPUTemperature: cpu,
		AirQualityPPM:  state.Derived.AirQualityPPM,
		GeneratorOn:    state.Derived.GeneratorOn,
	})
	return nil
}

func (p *Publisher) send(ctx context.Context, state *logic.State, now logic.Millis, text string) error {
	if err := p.channel.Send(ctx, text); err != nil {
		state.Counters.PublishFailures++
		return fmt.Errorf("send telemetry: %w", err)
	}
	state.Timers.LastPublish = now
	return nil
}

// publishStructured is best-effort; the text message already went out.
func (p *Publisher) publishStructured(ctx context.Context, r mqtt.Reading) {
	if p.tracker != nil {
		p.tracker.SetLatest(status.Latest{
			Timestamp:      r.Timestamp,
			Temperature:    r.Temperature,
			Humidity:       r.Humidity,
			CPUTemperature: r.CPUTemperature,
			AirQualityPPM:  r.AirQualityPPM,
			GeneratorOn:    r.GeneratorOn,
		})
	}
	if p.history != nil {
		if err := p.history.Record(ctx, r.Timestamp, r.Temperature, r.Humidity); err != nil {
			p.log.Warnw("reading not added to history", "err", err)
		}
	}
	if p.events == nil {
		return
	}
	if err := p.events.PublishReading(ctx, r); err != nil {
		p.log.Warnw("structured reading not published", "err", err)
	}
}

// nextPublishAfterSend is the countdown a successful send will leave behind.
func nextPublishAfterSend(state *logic.State) string {
	if !state.Config.AutoPublish {
		return "n/a (manual mode)"
	}
	return fmt.Sprintf("%d s", int(state.Config.PublishInterval/time.Second))
}

// FormatTelemetry renders the operator-facing telemetry message.
func FormatTelemetry(r sensor.Reading, cpu float64, d logic.Derived, next string) string {
	generator := "off ❌"
	if d.GeneratorOn {
		generator = "on 🔌"
	}

	var b strings.Builder
	b.WriteString("📡 *Climate readings:*\n")
	fmt.Fprintf(&b, "🌡️ Temperature: *%.1f °C*\n", r.Temperature)
	fmt.Fprintf(&b, "💧 Humidity: *%.1f %%*\n", r.Humidity)
	fmt.Fprintf(&b, "🧪 Air quality: *%d ppm* _(simulated)_\n", d.AirQualityPPM)
	fmt.Fprintf(&b, "⚙️ Generator: *%s* _(simulated)_\n", generator)
	fmt.Fprintf(&b, "🖥️ CPU temp: *%.1f °C*\n", cpu)
	fmt.Fprintf(&b, "⏳ Next publish: *%s*", next)
	return b.String()
}

func diagnosticText(err error) string {
	return fmt.Sprintf("⚠️ *Sensor reading invalid.*\n_%v_", err)
}
