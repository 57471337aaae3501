package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/climate-agent/internal/command"
	"github.com/sweeney/climate-agent/internal/logger"
	"github.com/sweeney/climate-agent/internal/logic"
	"github.com/sweeney/climate-agent/internal/mqtt"
	"github.com/sweeney/climate-agent/internal/network"
	"github.com/sweeney/climate-agent/internal/status"
	"github.com/sweeney/climate-agent/internal/store"
)

// DefaultPollInterval is the spacing between command fetches.
const DefaultPollInterval = 3 * time.Second

// Boot loads the configuration, counts the boot, persists it, and returns the
// initial session state. A failed save is logged; the increment still holds
// for this session.
func Boot(ctx context.Context, configs *store.ConfigStore, now logic.Millis, bootedAt time.Time, log *logger.Logger) *logic.State {
	cfg := configs.Load(ctx)
	cfg.ResetCount++

	state := logic.NewState(cfg, now, bootedAt)
	if err := configs.Save(ctx, cfg); err != nil {
		state.Counters.SaveFailures++
		log.Errorw("boot counter not persisted", "err", err)
	}

	log.Infow("booted",
		"reset_count", cfg.ResetCount,
		"publish_interval", cfg.PublishInterval,
		"mode", cfg.Mode(),
	)
	return state
}

// TickResult reports what the run loop must do after a tick.
type TickResult struct {
	// Restart is set once a restart command's reply has been sent.
	Restart bool
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	State      *logic.State
	Network    *network.Manager
	Channel    mqtt.Channel
	Events     mqtt.Publisher // may be nil
	Publisher  *Publisher
	Dispatcher *command.Dispatcher
	Configs    *store.ConfigStore
	Tracker    *status.Tracker // may be nil
}

// Options tunes a Scheduler.
type Options struct {
	PollInterval time.Duration
	Version      string

	// Heartbeat is the spacing of HEARTBEAT system events; zero disables them.
	Heartbeat time.Duration
}

// Scheduler owns the session state and runs one cooperative step per tick.
// It is not safe for concurrent use; only the run loop calls it.
type Scheduler struct {
	Deps
	poll      time.Duration
	heartbeat time.Duration
	version   string
	log     *logger.Logger
}

// NewScheduler creates a Scheduler. A non-positive poll interval selects
// DefaultPollInterval.
func NewScheduler(deps Deps, opts Options, log *logger.Logger) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Scheduler{
		Deps:    deps,
		poll:      opts.PollInterval,
		heartbeat: opts.Heartbeat,
		version:   opts.Version,
		log:       log.Component("scheduler"),
	}
}

// Tick runs one step: observe the link, announce and publish, poll commands,
// reconnect, then refresh the status snapshot.
func (s *Scheduler) Tick(ctx context.Context, now logic.Millis) TickResult {
	var result TickResult

	s.Network.Observe(now)
	connected := s.State.Network == logic.Connected

	if connected {
		s.announce(ctx, now)
		s.maybeHeartbeat(ctx, now)
		if s.State.PublishDue(now) {
			s.publish(ctx, now)
		}
	}

	if connected && logic.Elapsed(now, s.State.Timers.LastPoll).Duration() >= s.poll {
		result.Restart = s.pollCommands(ctx, now)
	}

	s.Network.MaybeReconnect(now)

	if s.Tracker != nil {
		s.Tracker.Update(s.State, now)
	}
	return result
}

// announce sends the boot message once per session, on the first connected
// tick. A failed send is retried on the next tick.
func (s *Scheduler) announce(ctx context.Context, now logic.Millis) {
	if s.State.BootAnnounced {
		return
	}

	if err := s.Channel.Send(ctx, s.bootText()); err != nil {
		s.log.Warnw("boot announcement not sent", "err", err)
		return
	}
	s.State.BootAnnounced = true
	s.State.Timers.LastHeartbeat = now
	s.log.Infow("boot announced", "reset_count", s.State.Config.ResetCount)

	s.publishSystem(ctx, "STARTUP", "", now)
}

// maybeHeartbeat publishes a HEARTBEAT status event once per heartbeat
// interval after the boot announcement. A failed publish waits for the next
// interval.
func (s *Scheduler) maybeHeartbeat(ctx context.Context, now logic.Millis) {
	if s.heartbeat <= 0 || !s.State.BootAnnounced {
		return
	}
	if logic.Elapsed(now, s.State.Timers.LastHeartbeat).Duration() < s.heartbeat {
		return
	}
	s.State.Timers.LastHeartbeat = now
	s.log.Infow("heartbeat",
		"uptime", time.Since(s.State.BootedAt).Truncate(time.Second),
		"publishes", s.State.Counters.Publishes,
		"commands", s.State.Counters.Commands,
	)
	s.publishSystem(ctx, "HEARTBEAT", "", now)
}

func (s *Scheduler) bootText() string {
	text := fmt.Sprintf("⚠️ *System started*\n📅 Boot: %s\n🔁 Boots: *%d*\n📶 Network: *✅*",
		s.State.BootedAt.UTC().Format(time.RFC3339), s.State.Config.ResetCount)
	if s.version != "" {
		text += fmt.Sprintf("\n🏷️ Version: *%s*", s.version)
	}
	return text
}

// publishSystem sends a system event carrying a full status snapshot.
// Lifecycle events are retained, heartbeats are not. Best-effort.
func (s *Scheduler) publishSystem(ctx context.Context, event, reason string, now logic.Millis) {
	if s.Events == nil || s.Tracker == nil {
		return
	}
	s.Tracker.Update(s.State, now)
	err := s.Events.PublishSystem(ctx, mqtt.SystemEvent{
		Timestamp:  time.Now(),
		Event:      event,
		Reason:     reason,
		RawPayload: status.FormatStatusEvent(s.Tracker.Snapshot(), event, reason),
		Retained:   event != "HEARTBEAT",
	})
	if err != nil {
		s.log.Warnw("system event not published", "event", event, "err", err)
	}
}

func (s *Scheduler) publish(ctx context.Context, now logic.Millis) {
	err := s.Publisher.Publish(ctx, s.State, now)
	switch {
	case err == nil:
		s.log.Debugw("telemetry published", "publishes", s.State.Counters.Publishes)
	case errors.Is(err, ErrNotConnected):
		// link dropped during the tick; the next connected tick retries
	default:
		s.log.Warnw("publish failed", "err", err)
	}
}

// pollCommands fetches and handles pending commands in arrival order. The
// cursor advances past every fetched command, whether or not its reply was
// delivered. It reports whether a restart was requested.
func (s *Scheduler) pollCommands(ctx context.Context, now logic.Millis) bool {
	msgs, err := s.Channel.FetchSince(s.State.Cursor)
	if err != nil {
		s.log.Warnw("command fetch failed", "cursor", s.State.Cursor, "err", err)
		return false
	}
	s.State.Timers.LastPoll = now

	restart := false
	for _, msg := range msgs {
		s.State.Cursor = msg.Seq
		if restart {
			s.log.Warnw("command dropped, restart pending", "seq", msg.Seq)
			continue
		}
		restart = s.handle(ctx, msg, now)
	}
	return restart
}

// handle dispatches one command. The store write completes before the reply
// is sent, and a restart is reported only after the reply.
func (s *Scheduler) handle(ctx context.Context, msg mqtt.Message, now logic.Millis) bool {
	cmd := command.Parse(msg.Text)
	s.State.Counters.Commands++

	out := s.Dispatcher.Dispatch(cmd, s.State, now)
	s.log.Infow("command", "seq", msg.Seq, "type", fmt.Sprintf("%T", cmd), "effect", out.Effect.String())

	if out.Effect.Persists() {
		s.persist(ctx)
	}

	if out.Reply != "" {
		s.reply(ctx, msg.Seq, out.Reply)
	}

	// Commands are only polled while connected, so a requested publish
	// always reaches the Publisher; its failures are counted there.
	if out.PublishNow {
		s.publish(ctx, now)
	}

	return out.Effect.Restarts()
}

func (s *Scheduler) reply(ctx context.Context, seq uint64, text string) {
	if err := s.Channel.Send(ctx, text); err != nil {
		s.State.Counters.RepliesDropped++
		s.log.Warnw("reply dropped", "seq", seq, "err", err)
	}
}

// persist saves the configuration. On failure the in-memory state stays
// authoritative for the rest of the session.
func (s *Scheduler) persist(ctx context.Context) {
	if err := s.Configs.Save(ctx, s.State.Config); err != nil {
		s.State.Counters.SaveFailures++
		var se *store.Error
		if errors.As(err, &se) {
			s.log.Errorw("config not persisted", "op", se.Op, "key", se.Key, "err", se.Err)
			return
		}
		s.log.Errorw("config not persisted", "err", err)
	}
}

// Shutdown publishes the retained SHUTDOWN event when the link is up.
func (s *Scheduler) Shutdown(ctx context.Context, reason string, now logic.Millis) {
	if s.State.Network != logic.Connected {
		return
	}
	s.publishSystem(ctx, "SHUTDOWN", reason, now)
}
