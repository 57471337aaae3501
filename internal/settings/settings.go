// Package settings loads the agent's startup settings from flags, an
// optional YAML file, and CLIMATE_* environment variables.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/climate-agent/internal/logger"
	"github.com/sweeney/climate-agent/internal/logic"
	"github.com/sweeney/climate-agent/internal/sensor"
)

// EnvPrefix prefixes every environment variable, e.g. CLIMATE_BROKER.
const EnvPrefix = "CLIMATE"

// Sensor kinds.
const (
	SensorDHT22     = "dht22"
	SensorSimulated = "simulated"
)

// Restart modes.
const (
	RestartExit   = "exit"
	RestartReboot = "reboot"
)

// MemoryDB selects the in-memory store.
const MemoryDB = "memory"

// Settings are the startup settings. Runtime configuration changed by
// operator commands lives in the store, not here.
type Settings struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	DeviceID    string
	DB          string

	Tick             time.Duration
	TickBudget       time.Duration
	PollInterval     time.Duration
	ReconnectBackoff time.Duration
	Heartbeat        time.Duration
	StoreTimeout     time.Duration
	SendTimeout      time.Duration

	AllowRestart bool
	RestartMode  string

	Sensor string
	Pin    int

	HTTP       string
	Location   string
	LogLevel   string
	PrintState bool
}

// flagName maps a settings key to its command-line flag.
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.String("config", "", "YAML settings file")
	fs.String(flagName("broker"), "tcp://localhost:1883", "MQTT broker address")
	fs.String(flagName("client_id"), "", "MQTT client ID (default climate-agent-<device id>)")
	fs.String(flagName("topic_prefix"), "", "MQTT topic prefix (default climate/<device id>)")
	fs.String(flagName("username"), "", "broker username, stored only if no credentials are stored yet")
	fs.String(flagName("password"), "", "broker password, stored only if no credentials are stored yet")
	fs.String(flagName("device_id"), "", "device identifier (default hostname)")
	fs.String(flagName("db"), "/var/lib/climate-agent/state.db", `SQLite database path, or "memory"`)
	fs.Duration(flagName("tick"), 100*time.Millisecond, "scheduler tick period")
	fs.Duration(flagName("tick_budget"), 5*time.Second, "deadline for one tick's I/O")
	fs.Duration(flagName("poll_interval"), 3*time.Second, "command poll interval")
	fs.Duration(flagName("heartbeat"), 15*time.Minute, "heartbeat event interval (0 to disable)")
	fs.Duration(flagName("reconnect_backoff"), 30*time.Second, "spacing between reconnect attempts")
	fs.Duration(flagName("store_timeout"), 2*time.Second, "deadline for one store operation")
	fs.Duration(flagName("send_timeout"), 2*time.Second, "deadline for one MQTT publish, below tick_budget")
	fs.Bool(flagName("allow_restart"), false, "let /reset and /APreset restart the agent")
	fs.String(flagName("restart_mode"), RestartExit, `"exit" (status 3, supervisor restarts) or "reboot"`)
	fs.String(flagName("sensor"), SensorDHT22, `"dht22" or "simulated"`)
	fs.Int(flagName("pin"), sensor.DefaultPin, "BCM pin of the DHT22 data line")
	fs.String(flagName("http"), ":8080", "HTTP status address (empty to disable)")
	fs.String(flagName("location"), "", "location shown by /infoDevices")
	fs.String(flagName("log_level"), logger.InfoLevel, "debug, info, warn or error")
	fs.Bool(flagName("print_state"), false, "read the sensor once, print it and exit")
	return fs
}

var keys = []string{
	"broker", "client_id", "topic_prefix", "username", "password", "device_id", "db",
	"tick", "tick_budget", "poll_interval", "heartbeat", "reconnect_backoff", "store_timeout", "send_timeout",
	"allow_restart", "restart_mode", "sensor", "pin", "http", "location", "log_level", "print_state",
}

// Load parses args (without the program name). Precedence is flag, then
// environment, then the YAML file, then the flag default. It returns
// pflag.ErrHelp when -h was given.
func Load(name string, args []string) (Settings, error) {
	fs := newFlagSet(name)
	if err := fs.Parse(args); err != nil {
		return Settings{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flagName(key))); err != nil {
			return Settings{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read settings file: %w", err)
		}
	}

	s := Settings{
		Broker:           v.GetString("broker"),
		ClientID:         v.GetString("client_id"),
		TopicPrefix:      v.GetString("topic_prefix"),
		Username:         v.GetString("username"),
		Password:         v.GetString("password"),
		DeviceID:         v.GetString("device_id"),
		DB:               v.GetString("db"),
		Tick:             v.GetDuration("tick"),
		TickBudget:       v.GetDuration("tick_budget"),
		PollInterval:     v.GetDuration("poll_interval"),
		ReconnectBackoff: v.GetDuration("reconnect_backoff"),
		Heartbeat:        v.GetDuration("heartbeat"),
		StoreTimeout:     v.GetDuration("store_timeout"),
		SendTimeout:      v.GetDuration("send_timeout"),
		AllowRestart:     v.GetBool("allow_restart"),
		RestartMode:      strings.ToLower(v.GetString("restart_mode")),
		Sensor:           strings.ToLower(v.GetString("sensor")),
		Pin:              v.GetInt("pin"),
		HTTP:             v.GetString("http"),
		Location:         v.GetString("location"),
		LogLevel:         strings.ToLower(v.GetString("log_level")),
		PrintState:       v.GetBool("print_state"),
	}
	s.applyDerived(os.Hostname)

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// applyDerived fills identifiers that default from the device ID.
func (s *Settings) applyDerived(hostname func() (string, error)) {
	if s.DeviceID == "" {
		if h, err := hostname(); err == nil && h != "" {
			s.DeviceID = h
		} else {
			s.DeviceID = "climate-" + uuid.NewString()[:8]
		}
	}
	if s.ClientID == "" {
		s.ClientID = "climate-agent-" + s.DeviceID
	}
	if s.TopicPrefix == "" {
		s.TopicPrefix = "climate/" + s.DeviceID
	}
	s.TopicPrefix = strings.TrimSuffix(s.TopicPrefix, "/")
}

// Validate rejects settings the agent cannot run with.
func (s Settings) Validate() error {
	var errs []error

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"tick", s.Tick},
		{"tick_budget", s.TickBudget},
		{"poll_interval", s.PollInterval},
		{"reconnect_backoff", s.ReconnectBackoff},
		{"store_timeout", s.StoreTimeout},
		{"send_timeout", s.SendTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", d.name, d.d))
		}
	}

	if s.Heartbeat < 0 || s.Heartbeat > logic.MaxPublishInterval {
		errs = append(errs, fmt.Errorf("heartbeat must be between 0 and %v, got %v", logic.MaxPublishInterval, s.Heartbeat))
	}

	if s.SendTimeout >= s.TickBudget {
		errs = append(errs, fmt.Errorf("send_timeout (%v) must be below tick_budget (%v)", s.SendTimeout, s.TickBudget))
	}

	if s.Broker == "" {
		errs = append(errs, errors.New("broker must be set"))
	}
	if s.DB == "" {
		errs = append(errs, errors.New(`db must be a path or "memory"`))
	}

	switch s.RestartMode {
	case RestartExit, RestartReboot:
	default:
		errs = append(errs, fmt.Errorf("unknown restart_mode %q", s.RestartMode))
	}

	switch s.Sensor {
	case SensorDHT22, SensorSimulated:
	default:
		errs = append(errs, fmt.Errorf("unknown sensor %q", s.Sensor))
	}

	if s.Pin < 0 {
		errs = append(errs, fmt.Errorf("pin must not be negative, got %d", s.Pin))
	}
	if !logger.ValidLevel(s.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log_level %q", s.LogLevel))
	}

	return errors.Join(errs...)
}
