// Package mqtt carries operator commands in and replies, readings and
// lifecycle events out over an MQTT broker, with abstraction for testing.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Topic suffixes below the configured prefix.
const (
	SuffixCommands  = "commands"
	SuffixReplies   = "replies"
	SuffixTelemetry = "telemetry"
	SuffixSystem    = "system"
)

// Topics are the concrete topic names for one device.
type Topics struct {
	Commands  string
	Replies   string
	Telemetry string
	System    string
}

// NewTopics derives the topic set from a prefix such as "climate/pi-kitchen".
func NewTopics(prefix string) Topics {
	return Topics{
		Commands:  prefix + "/" + SuffixCommands,
		Replies:   prefix + "/" + SuffixReplies,
		Telemetry: prefix + "/" + SuffixTelemetry,
		System:    prefix + "/" + SuffixSystem,
	}
}

// Message is one inbound operator message. Seq increases by one per message
// received and serves as the cursor.
type Message struct {
	Seq  uint64
	Text string
}

// Channel is the operator-facing text channel.
type Channel interface {
	// FetchSince returns the pending messages with Seq > cursor, oldest first.
	// It does not block on the network.
	FetchSince(cursor uint64) ([]Message, error)

	// Send delivers a text message to the operator.
	Send(ctx context.Context, text string) error
}

// Publisher publishes structured payloads for machine consumers.
type Publisher interface {
	// PublishReading sends a reading on the telemetry topic.
	PublishReading(ctx context.Context, r Reading) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(ctx context.Context, event SystemEvent) error
}

// TransportError reports a failed broker operation. It is recoverable; the
// caller retries on a later tick.
type TransportError struct {
	Op  string // "send", "publish", "connect"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mqtt %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Reading is a published sensor sample.
type Reading struct {
	Timestamp      time.Time
	Temperature    float64
	Humidity       float64
	CPUTemperature float64
	AirQualityPPM  int
	GeneratorOn    bool
}

// ReadingPayload is the telemetry topic payload.
type ReadingPayload struct {
	Reading ReadingPayloadInner `json:"reading"`
}

// ReadingPayloadInner contains the reading details.
type ReadingPayloadInner struct {
	Timestamp      string  `json:"timestamp"`
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	CPUTemperature float64 `json:"cpu_temperature"`
	AirQualityPPM  int     `json:"air_quality_ppm"`
	GeneratorOn    bool    `json:"generator_on"`
}

// FormatReadingPayload creates the JSON payload for a reading.
func FormatReadingPayload(r Reading) ([]byte, error) {
	return json.Marshal(ReadingPayload{
		Reading: ReadingPayloadInner{
			Timestamp:      r.Timestamp.UTC().Format(time.RFC3339),
			Temperature:    r.Temperature,
			Humidity:       r.Humidity,
			CPUTemperature: r.CPUTemperature,
			AirQualityPPM:  r.AirQualityPPM,
			GeneratorOn:    r.GeneratorOn,
		},
	})
}

// SystemEvent represents a system lifecycle event (startup, shutdown, offline).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "RESTART" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload is the JSON envelope for simple system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
