package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/climate-agent/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	DeviceID      string       `json:"device_id"`
	BootID        string       `json:"boot_id"`
	Version       string       `json:"version,omitempty"`
	Mode          string       `json:"mode"`
	NextPublishS  *int64       `json:"next_publish_seconds"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counters      CountersJSON `json:"counters"`
	Latest        *LatestJSON  `json:"latest,omitempty"`
	Device        DeviceJSON   `json:"device"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports the link state.
type MQTTStatus struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountersJSON is the JSON representation of session counters.
type CountersJSON struct {
	Publishes       int `json:"publishes"`
	PublishFailures int `json:"publish_failures"`
	SensorFaults    int `json:"sensor_faults"`
	Commands        int `json:"commands"`
	RepliesDropped  int `json:"replies_dropped"`
	SaveFailures    int `json:"save_failures"`
}

// LatestJSON is the JSON representation of the latest reading.
type LatestJSON struct {
	Timestamp      string  `json:"timestamp"`
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	CPUTemperature float64 `json:"cpu_temperature"`
	AirQualityPPM  int     `json:"air_quality_ppm"`
	GeneratorOn    bool    `json:"generator_on"`
}

// DeviceJSON is the JSON representation of host identity.
type DeviceJSON struct {
	Location string `json:"location"`
	Hostname string `json:"hostname,omitempty"`
	Platform string `json:"platform,omitempty"`
	Kernel   string `json:"kernel,omitempty"`
	MAC      string `json:"mac,omitempty"`
	IP       string `json:"ip,omitempty"`
	Iface    string `json:"iface,omitempty"`
}

// ConfigJSON is the JSON representation of agent configuration.
type ConfigJSON struct {
	PublishIntervalMs int64  `json:"publish_interval_ms"`
	AutoPublish       bool   `json:"auto_publish"`
	ResetCount        uint32 `json:"reset_count"`
	PollMs            int64  `json:"poll_ms"`
	TickMs            int64  `json:"tick_ms"`
	Sensor            string `json:"sensor"`
	TopicPrefix       string `json:"topic_prefix"`
	HTTPAddr          string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		DeviceID:      snap.Config.DeviceID,
		BootID:        snap.Config.BootID,
		Version:       snap.Config.Version,
		Mode:          string(snap.Agent.Mode()),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Status:    snap.Network.String(),
			Connected: snap.Network == logic.Connected,
			Broker:    snap.Config.Broker,
		},
		Counters: CountersJSON(snap.Counters),
		Device: DeviceJSON{
			Location: snap.Config.Location,
			Hostname: snap.Device.Hostname,
			Platform: snap.Device.Platform,
			Kernel:   snap.Device.Kernel,
			MAC:      snap.Device.MAC,
			IP:       snap.Device.IP,
			Iface:    snap.Device.Iface,
		},
		Config: ConfigJSON{
			PublishIntervalMs: snap.Agent.PublishInterval.Milliseconds(),
			AutoPublish:       snap.Agent.AutoPublish,
			ResetCount:        snap.Agent.ResetCount,
			PollMs:            snap.Config.PollMs,
			TickMs:            snap.Config.TickMs,
			Sensor:            snap.Config.Sensor,
			TopicPrefix:       snap.Config.TopicPrefix,
			HTTPAddr:          snap.Config.HTTPAddr,
		},
	}

	// null in manual mode
	if snap.Agent.AutoPublish {
		s := int64(snap.NextPublish.Round(time.Second) / time.Second)
		inner.NextPublishS = &s
	}

	if snap.Latest != nil {
		inner.Latest = &LatestJSON{
			Timestamp:      snap.Latest.Timestamp.UTC().Format(time.RFC3339),
			Temperature:    snap.Latest.Temperature,
			Humidity:       snap.Latest.Humidity,
			CPUTemperature: snap.Latest.CPUTemperature,
			AirQualityPPM:  snap.Latest.AirQualityPPM,
			GeneratorOn:    snap.Latest.GeneratorOn,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
