// Command climate-agent samples a temperature/humidity sensor, publishes the
// readings over MQTT, and answers operator commands on the same broker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/sweeney/climate-agent/internal/agent"
	"github.com/sweeney/climate-agent/internal/command"
	"github.com/sweeney/climate-agent/internal/device"
	"github.com/sweeney/climate-agent/internal/logger"
	"github.com/sweeney/climate-agent/internal/logic"
	"github.com/sweeney/climate-agent/internal/mqtt"
	"github.com/sweeney/climate-agent/internal/network"
	"github.com/sweeney/climate-agent/internal/sensor"
	"github.com/sweeney/climate-agent/internal/settings"
	"github.com/sweeney/climate-agent/internal/status"
	"github.com/sweeney/climate-agent/internal/store"
	"github.com/sweeney/climate-agent/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// exitRestart asks the service supervisor to start the agent again.
const exitRestart = 3

func main() {
	s, err := settings.Load(filepath.Base(os.Args[0]), os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "climate-agent: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(s.LogLevel)
	code, err := run(s, log)
	if err != nil {
		log.Errorw("fatal", "err", err)
		code = 1
	}
	_ = log.Sync()
	os.Exit(code)
}

func run(s settings.Settings, log *logger.Logger) (int, error) {
	sens, err := openSensor(s)
	if err != nil {
		return 0, fmt.Errorf("init sensor: %w", err)
	}
	defer sens.Close()

	if s.PrintState {
		r, err := sens.Read()
		if err != nil {
			return 0, fmt.Errorf("read sensor: %w", err)
		}
		fmt.Printf("Temperature: %.1f °C, Humidity: %.1f %%\n", r.Temperature, r.Humidity)
		return 0, nil
	}

	blobs, closeStore, err := openStore(s.DB)
	if err != nil {
		return 0, fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	ctx := context.Background()
	if seeded, err := mqtt.SeedCredentials(ctx, blobs, mqtt.Credentials{Username: s.Username, Password: s.Password}); err != nil {
		log.Warnw("broker credentials not stored", "err", err)
	} else if seeded {
		log.Infow("broker credentials stored")
	}

	clock := logic.NewClock(time.Now)
	bootedAt := time.Now()
	bootID := uuid.NewString()

	configs := store.NewConfigStore(blobs, log, s.StoreTimeout)
	history := store.NewHistory(blobs, log, s.StoreTimeout, store.DefaultHistoryDays)
	state := agent.Boot(ctx, configs, clock.Now(), bootedAt, log)

	client := mqtt.NewClient(mqtt.Options{
		Broker:      s.Broker,
		ClientID:    s.ClientID,
		Topics:      mqtt.NewTopics(s.TopicPrefix),
		SendTimeout: s.SendTimeout,
	}, blobs, log)
	defer client.Close()

	netMgr := network.NewManager(client, state, s.ReconnectBackoff, log)
	host := device.NewHostSource(s.DeviceID)

	tracker := status.NewTracker(bootedAt, status.Config{
		DeviceID:    s.DeviceID,
		BootID:      bootID,
		Location:    s.Location,
		Broker:      s.Broker,
		TopicPrefix: s.TopicPrefix,
		HTTPAddr:    s.HTTP,
		Sensor:      s.Sensor,
		Version:     version,
		PollMs:      s.PollInterval.Milliseconds(),
		TickMs:      s.Tick.Milliseconds(),
	})
	tracker.SetDevice(host.Info())

	restart := logic.RestartDisabled
	if s.AllowRestart {
		restart = logic.RestartEnabled
	}

	sched := agent.NewScheduler(agent.Deps{
		State:   state,
		Network: netMgr,
		Channel: client,
		Events:  client,
		Publisher: agent.NewPublisher(agent.PublisherDeps{
			Sensor:  sens,
			Channel: client,
			Events:  client,
			Device:  host,
			Tracker: tracker,
			History: history,
		}, log),
		Dispatcher: command.NewDispatcher(command.Options{
			Credentials: netMgr,
			Restart:     restart,
			Device:      host,
			Location:    s.Location,
			Broker:      s.Broker,
			Version:     version,
		}),
		Configs: configs,
		Tracker: tracker,
	}, agent.Options{PollInterval: s.PollInterval, Heartbeat: s.Heartbeat, Version: version}, log)

	if s.HTTP != "" {
		srv := web.New(s.HTTP, tracker, history, log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infow("http status server listening", "addr", s.HTTP)
	}

	log.Infow("started",
		"device_id", s.DeviceID,
		"boot_id", bootID,
		"broker", s.Broker,
		"topics", s.TopicPrefix,
		"sensor", s.Sensor,
		"allow_restart", s.AllowRestart,
		"version", version,
	)

	// First attempt now; the manager retries after the backoff.
	client.RequestReconnect()

	ticker := time.NewTicker(s.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exit := runLoop(sched, clock.Now, s.TickBudget, ticker.C, sigCh, log)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.SendTimeout)
	defer cancel()
	sched.Shutdown(shutdownCtx, exit.reason(), clock.Now())

	if !exit.restart {
		return 0, nil
	}
	return restartAgent(s.RestartMode, log), nil
}

func openSensor(s settings.Settings) (sensor.Sensor, error) {
	if s.Sensor == settings.SensorSimulated {
		return sensor.NewSimulated(time.Now, uint64(time.Now().UnixNano())), nil
	}
	return sensor.NewDHT22(s.Pin)
}

func openStore(path string) (store.BlobStore, func(), error) {
	if path == settings.MemoryDB {
		return store.NewMemoryBlobStore(), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	return store.NewSQLiteBlobStore(db), func() { db.Close() }, nil
}

// tickRunner is the part of agent.Scheduler the run loop drives.
type tickRunner interface {
	Tick(ctx context.Context, now logic.Millis) agent.TickResult
}

// loopExit says why runLoop returned.
type loopExit struct {
	restart bool
	signal  os.Signal
}

func (e loopExit) reason() string {
	if e.restart {
		return "RESTART"
	}
	return signalName(e.signal)
}

// runLoop ticks the scheduler until a signal arrives or a tick requests a
// restart. Each tick gets its own deadline.
func runLoop(sched tickRunner, now func() logic.Millis, budget time.Duration, tick <-chan time.Time, sig <-chan os.Signal, log *logger.Logger) loopExit {
	for {
		select {
		case s := <-sig:
			log.Infow("shutting down", "signal", s.String())
			return loopExit{signal: s}

		case <-tick:
			ctx, cancel := context.WithTimeout(context.Background(), budget)
			result := sched.Tick(ctx, now())
			cancel()

			if result.Restart {
				log.Warnw("restart requested")
				return loopExit{restart: true}
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// restartAgent returns the process exit code after a restart request.
func restartAgent(mode string, log *logger.Logger) int {
	if mode == settings.RestartReboot {
		log.Warnw("rebooting host")
		_ = log.Sync()
		if err := rebootHost(); err != nil {
			log.Errorw("reboot failed, exiting for supervisor restart", "err", err)
		}
	}
	return exitRestart
}
