package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("climate-agent", []string{"--device-id", "pi-kitchen"})
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", s.Broker)
	assert.Equal(t, "pi-kitchen", s.DeviceID)
	assert.Equal(t, "climate-agent-pi-kitchen", s.ClientID)
	assert.Equal(t, "climate/pi-kitchen", s.TopicPrefix)
	assert.Equal(t, 100*time.Millisecond, s.Tick)
	assert.Equal(t, 5*time.Second, s.TickBudget)
	assert.Equal(t, 3*time.Second, s.PollInterval)
	assert.Equal(t, 30*time.Second, s.ReconnectBackoff)
	assert.Equal(t, 15*time.Minute, s.Heartbeat)
	assert.Equal(t, 2*time.Second, s.StoreTimeout)
	assert.Equal(t, 2*time.Second, s.SendTimeout)
	assert.Less(t, s.SendTimeout, s.TickBudget)
	assert.False(t, s.AllowRestart)
	assert.Equal(t, RestartExit, s.RestartMode)
	assert.Equal(t, SensorDHT22, s.Sensor)
	assert.Equal(t, 4, s.Pin)
	assert.Equal(t, "info", s.LogLevel)
}

func TestLoadFlags(t *testing.T) {
	s, err := Load("climate-agent", []string{
		"--broker", "tcp://10.0.0.2:1883",
		"--device-id", "greenhouse",
		"--topic-prefix", "farm/gh1/",
		"--poll-interval", "1s",
		"--heartbeat", "0s",
		"--allow-restart",
		"--restart-mode", "reboot",
		"--sensor", "simulated",
		"--db", "memory",
		"--log-level", "DEBUG",
	})
	require.NoError(t, err)

	assert.Equal(t, "tcp://10.0.0.2:1883", s.Broker)
	assert.Equal(t, "farm/gh1", s.TopicPrefix)
	assert.Equal(t, time.Second, s.PollInterval)
	assert.Zero(t, s.Heartbeat, "zero disables the heartbeat")
	assert.True(t, s.AllowRestart)
	assert.Equal(t, RestartReboot, s.RestartMode)
	assert.Equal(t, SensorSimulated, s.Sensor)
	assert.Equal(t, MemoryDB, s.DB)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("CLIMATE_BROKER", "tcp://env:1883")
	t.Setenv("CLIMATE_POLL_INTERVAL", "7s")
	t.Setenv("CLIMATE_ALLOW_RESTART", "true")

	s, err := Load("climate-agent", []string{"--device-id", "x"})
	require.NoError(t, err)

	assert.Equal(t, "tcp://env:1883", s.Broker)
	assert.Equal(t, 7*time.Second, s.PollInterval)
	assert.True(t, s.AllowRestart)
}

func TestFlagBeatsEnv(t *testing.T) {
	t.Setenv("CLIMATE_BROKER", "tcp://env:1883")

	s, err := Load("climate-agent", []string{"--device-id", "x", "--broker", "tcp://flag:1883"})
	require.NoError(t, err)
	assert.Equal(t, "tcp://flag:1883", s.Broker)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "climate.yaml")
	yaml := "broker: tcp://file:1883\nlocation: Greenhouse\ntick_budget: 12s\nsend_timeout: 9s\npin: 17\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	s, err := Load("climate-agent", []string{"--config", path, "--device-id", "x"})
	require.NoError(t, err)

	assert.Equal(t, "tcp://file:1883", s.Broker)
	assert.Equal(t, "Greenhouse", s.Location)
	assert.Equal(t, 9*time.Second, s.SendTimeout)
	assert.Equal(t, 17, s.Pin)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("climate-agent", []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoadHelp(t *testing.T) {
	_, err := Load("climate-agent", []string{"--help"})
	assert.True(t, errors.Is(err, pflag.ErrHelp))
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero tick", []string{"--tick", "0s"}},
		{"negative backoff", []string{"--reconnect-backoff", "-1s"}},
		{"unknown sensor", []string{"--sensor", "bme280"}},
		{"unknown restart mode", []string{"--restart-mode", "halt"}},
		{"unknown log level", []string{"--log-level", "verbose"}},
		{"empty broker", []string{"--broker", ""}},
		{"negative pin", []string{"--pin", "-1"}},
		{"negative heartbeat", []string{"--heartbeat", "-1m"}},
		{"heartbeat beyond a day", []string{"--heartbeat", "25h"}},
		{"send timeout fills tick budget", []string{"--send-timeout", "5s", "--tick-budget", "5s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("climate-agent", append([]string{"--device-id", "x"}, tt.args...))
			assert.Error(t, err)
		})
	}
}

func TestApplyDerivedFallsBackToUUID(t *testing.T) {
	s := Settings{}
	s.applyDerived(func() (string, error) { return "", errors.New("no hostname") })

	assert.Regexp(t, `^climate-[0-9a-f]{8}$`, s.DeviceID)
	assert.Equal(t, "climate/"+s.DeviceID, s.TopicPrefix)
}

func TestApplyDerivedUsesHostname(t *testing.T) {
	s := Settings{}
	s.applyDerived(func() (string, error) { return "raspberrypi", nil })

	assert.Equal(t, "raspberrypi", s.DeviceID)
	assert.Equal(t, "climate-agent-raspberrypi", s.ClientID)
}
