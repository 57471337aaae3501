// Package logic contains the pure state of the climate agent: configuration,
// timers, and the enums shared by the scheduler and the command dispatcher.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via Millis parameters.
package logic

import "time"

// Mode is the publishing mode selected by /setModo.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
	// ModeInvalid marks a /setModo argument that is neither auto nor manual.
	ModeInvalid Mode = ""
)

// NetworkStatus is the connectivity state owned by the reconnection manager.
type NetworkStatus int

const (
	Disconnected NetworkStatus = iota
	Connecting
	Connected
)

func (s NetworkStatus) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// RestartPolicy gates the /reset and /APreset restart effects.
type RestartPolicy int

const (
	RestartDisabled RestartPolicy = iota
	RestartEnabled
)

// Allowed reports whether the device may restart itself.
func (p RestartPolicy) Allowed() bool {
	return p == RestartEnabled
}

// Timers holds the scheduler timestamps.
type Timers struct {
	LastPublish          Millis
	LastPoll             Millis
	LastReconnectAttempt Millis
	LastHeartbeat        Millis
}

// Derived holds the simulated fields reported alongside a reading.
// They are regenerated only when the sensor returns a valid reading.
type Derived struct {
	AirQualityPPM int
	GeneratorOn   bool
	Valid         bool
}

// Counters tracks session activity since boot.
type Counters struct {
	Publishes       int
	PublishFailures int
	SensorFaults    int
	Commands        int
	RepliesDropped  int
	SaveFailures    int
}

// State is everything the scheduler owns for one session.
type State struct {
	Config        Config
	Timers        Timers
	Network       NetworkStatus
	Cursor        uint64 // sequence of the last consumed command
	BootAnnounced bool
	Derived       Derived
	Counters      Counters
	BootedAt      time.Time
}

// NewState returns the boot state: all timers at now, network disconnected.
func NewState(cfg Config, now Millis, bootedAt time.Time) *State {
	return &State{
		Config: cfg,
		Timers: Timers{
			LastPublish:          now,
			LastPoll:             now,
			LastReconnectAttempt: now,
			LastHeartbeat:        now,
		},
		Network:  Disconnected,
		BootedAt: bootedAt,
	}
}

// NextPublishIn returns the time left until the next automatic publish.
// The second result is false in manual mode.
func (s *State) NextPublishIn(now Millis) (time.Duration, bool) {
	if !s.Config.AutoPublish {
		return 0, false
	}
	elapsed := Elapsed(now, s.Timers.LastPublish).Duration()
	if elapsed >= s.Config.PublishInterval {
		return 0, true
	}
	return s.Config.PublishInterval - elapsed, true
}

// PublishDue reports whether the automatic publish interval has elapsed.
func (s *State) PublishDue(now Millis) bool {
	return s.Config.AutoPublish && Elapsed(now, s.Timers.LastPublish).Duration() >= s.Config.PublishInterval
}
