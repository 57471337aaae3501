// Package network owns the link state machine. Reconnects are fire-and-forget
// at a fixed backoff; the manager never blocks the scheduler.
package network

import (
	"time"

	"github.com/sweeney/climate-agent/internal/logger"
	"github.com/sweeney/climate-agent/internal/logic"
)

// DefaultBackoff is the fixed spacing between reconnect attempts.
const DefaultBackoff = 30 * time.Second

// Link is the connectivity collaborator.
type Link interface {
	// Status reports the current link state.
	Status() logic.NetworkStatus

	// RequestReconnect starts a connect attempt and returns immediately.
	RequestReconnect()

	// ResetCredentials erases stored network credentials.
	ResetCredentials() error
}

// Manager tracks link state in logic.State and issues reconnects.
type Manager struct {
	link    Link
	state   *logic.State
	backoff time.Duration
	log     *logger.Logger
}

// NewManager creates a Manager over link. A non-positive backoff selects
// DefaultBackoff.
func NewManager(link Link, state *logic.State, backoff time.Duration, log *logger.Logger) *Manager {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Manager{
		link:    link,
		state:   state,
		backoff: backoff,
		log:     log.Component("network"),
	}
}

// Status returns the last observed state.
func (m *Manager) Status() logic.NetworkStatus {
	return m.state.Network
}

// Observe copies the link status into the state and logs transitions.
func (m *Manager) Observe(now logic.Millis) {
	next := m.link.Status()

	// An attempt that never resolves is retried like a failed one.
	if next == logic.Connecting && m.backoffElapsed(now) {
		next = logic.Disconnected
	}

	prev := m.state.Network
	if next == prev {
		return
	}
	m.state.Network = next

	switch {
	case prev == logic.Connected:
		m.log.Warnw("link lost", "status", next.String())
	case next == logic.Connected:
		m.log.Infow("link up", "was", prev.String())
	default:
		m.log.Debugw("link status changed", "from", prev.String(), "to", next.String())
	}
}

// MaybeReconnect requests a reconnect when disconnected and the backoff has
// elapsed since the last attempt. The attempt time is recorded whatever the
// outcome. It reports whether an attempt was made.
func (m *Manager) MaybeReconnect(now logic.Millis) bool {
	if m.state.Network != logic.Disconnected {
		return false
	}
	if !m.backoffElapsed(now) {
		return false
	}

	m.state.Timers.LastReconnectAttempt = now
	m.state.Network = logic.Connecting
	m.log.Infow("reconnect attempt", "backoff", m.backoff)
	m.link.RequestReconnect()
	return true
}

// ResetCredentials erases the stored credentials.
func (m *Manager) ResetCredentials() error {
	if err := m.link.ResetCredentials(); err != nil {
		m.log.Warnw("credential reset failed", "err", err)
		return err
	}
	m.log.Infow("credentials reset")
	return nil
}

func (m *Manager) backoffElapsed(now logic.Millis) bool {
	return logic.Elapsed(now, m.state.Timers.LastReconnectAttempt).Duration() >= m.backoff
}
