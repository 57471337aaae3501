package main

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/climate-agent/internal/agent"
	"github.com/sweeney/climate-agent/internal/logger"
	"github.com/sweeney/climate-agent/internal/logic"
	"github.com/sweeney/climate-agent/internal/settings"
	"github.com/sweeney/climate-agent/internal/store"
)

// fakeScheduler records ticks and requests a restart on a chosen tick.
type fakeScheduler struct {
	ticks     []logic.Millis
	restartOn int // 1-based tick number, 0 never
	deadlines []bool
}

func (f *fakeScheduler) Tick(ctx context.Context, now logic.Millis) agent.TickResult {
	f.ticks = append(f.ticks, now)
	_, ok := ctx.Deadline()
	f.deadlines = append(f.deadlines, ok)
	return agent.TickResult{Restart: f.restartOn == len(f.ticks)}
}

func counter() func() logic.Millis {
	var n logic.Millis
	return func() logic.Millis {
		n += 100
		return n
	}
}

func TestRunLoopTicksUntilSignal(t *testing.T) {
	sched := &fakeScheduler{}
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	done := make(chan loopExit)
	go func() {
		done <- runLoop(sched, counter(), time.Second, tick, sig, logger.NewNop())
	}()

	for i := 0; i < 3; i++ {
		tick <- time.Now()
	}
	sig <- syscall.SIGTERM

	select {
	case exit := <-done:
		if exit.restart {
			t.Error("signal exit must not restart")
		}
		if exit.reason() != "SIGTERM" {
			t.Errorf("reason: got %q, want SIGTERM", exit.reason())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return")
	}

	if len(sched.ticks) != 3 {
		t.Fatalf("ticks: got %d, want 3", len(sched.ticks))
	}
	if sched.ticks[0] != 100 || sched.ticks[2] != 300 {
		t.Errorf("tick times: got %v", sched.ticks)
	}
	for i, ok := range sched.deadlines {
		if !ok {
			t.Errorf("tick %d had no deadline", i+1)
		}
	}
}

func TestRunLoopStopsOnRestart(t *testing.T) {
	sched := &fakeScheduler{restartOn: 2}
	tick := make(chan time.Time, 5)
	for i := 0; i < 5; i++ {
		tick <- time.Now()
	}

	exit := runLoop(sched, counter(), time.Second, tick, make(chan os.Signal), logger.NewNop())

	if !exit.restart {
		t.Error("expected restart exit")
	}
	if exit.reason() != "RESTART" {
		t.Errorf("reason: got %q, want RESTART", exit.reason())
	}
	if len(sched.ticks) != 2 {
		t.Errorf("ticks after restart: got %d, want 2", len(sched.ticks))
	}
}

func TestRunLoopSIGINT(t *testing.T) {
	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGINT

	exit := runLoop(&fakeScheduler{}, counter(), time.Second, make(chan time.Time), sig, logger.NewNop())

	if exit.reason() != "SIGINT" {
		t.Errorf("reason: got %q, want SIGINT", exit.reason())
	}
}

func TestSignalName(t *testing.T) {
	if signalName(syscall.SIGHUP) != "UNKNOWN" {
		t.Error("unexpected name for SIGHUP")
	}
}

func TestRestartAgentExitMode(t *testing.T) {
	if code := restartAgent(settings.RestartExit, logger.NewNop()); code != exitRestart {
		t.Errorf("exit code: got %d, want %d", code, exitRestart)
	}
}

func TestOpenStoreMemory(t *testing.T) {
	blobs, closeFn, err := openStore(settings.MemoryDB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if _, ok := blobs.(*store.MemoryBlobStore); !ok {
		t.Errorf("got %T, want *store.MemoryBlobStore", blobs)
	}
}

func TestOpenStoreSQLiteCreatesDirectory(t *testing.T) {
	path := t.TempDir() + "/nested/state.db"
	blobs, closeFn, err := openStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()

	if err := blobs.WriteBlob(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestOpenSensorSimulated(t *testing.T) {
	sens, err := openSensor(settings.Settings{Sensor: settings.SensorSimulated})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sens.Close()

	r, err := sens.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("simulated reading out of range: %v", err)
	}
}

func TestRunPrintState(t *testing.T) {
	s := settings.Settings{Sensor: settings.SensorSimulated, PrintState: true}
	code, err := run(s, logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code: got %d, want 0", code)
	}
}
