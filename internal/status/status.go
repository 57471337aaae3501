// Package status provides a thread-safe view of agent state for the HTTP
// server and the retained system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/climate-agent/internal/device"
	"github.com/sweeney/climate-agent/internal/logic"
)

// Config contains static agent settings for display.
type Config struct {
	DeviceID    string
	BootID      string
	Location    string
	Broker      string
	TopicPrefix string
	HTTPAddr    string
	Sensor      string
	Version     string
	PollMs      int64
	TickMs      int64
}

// Latest is the most recent valid reading.
type Latest struct {
	Timestamp      time.Time
	Temperature    float64
	Humidity       float64
	CPUTemperature float64
	AirQualityPPM  int
	GeneratorOn    bool
}

// Snapshot is a point-in-time view of agent state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Agent       logic.Config
	Network     logic.NetworkStatus
	Counters    logic.Counters
	NextPublish time.Duration
	Latest      *Latest
	Device      device.Info
	StartTime   time.Time
	Now         time.Time
	Config      Config

	// Seq increases whenever a field other than NextPublish changes.
	Seq uint64
}

// Uptime returns the duration since the agent started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds the latest snapshot behind an RWMutex. Readers can wait for
// changes through Changed.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	changed chan struct{}
	now     func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// Update copies the scheduler state. It is called after every tick, once the
// tick's store writes have completed.
func (t *Tracker) Update(state *logic.State, now logic.Millis) {
	next, _ := state.NextPublishIn(now)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.NextPublish = next
	if t.snap.Agent == state.Config && t.snap.Network == state.Network && t.snap.Counters == state.Counters {
		return
	}
	t.snap.Agent = state.Config
	t.snap.Network = state.Network
	t.snap.Counters = state.Counters
	t.bump()
}

// SetLatest records a valid reading.
func (t *Tracker) SetLatest(l Latest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Latest = &l
	t.bump()
}

// SetDevice records host identity.
func (t *Tracker) SetDevice(info device.Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Device = info
	t.bump()
}

// bump must be called with mu held.
func (t *Tracker) bump() {
	t.snap.Seq++
	close(t.changed)
	t.changed = make(chan struct{})
}

// Changed returns a channel that is closed on the next change.
func (t *Tracker) Changed() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changed
}

// Snapshot returns a point-in-time copy of the agent state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.Latest != nil {
		l := *s.Latest
		s.Latest = &l
	}
	s.Now = t.now()
	return s
}
