package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Session is the messaging session lifecycle the supervisor recycles.
type Session interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Options tune the watchdog.
type Options struct {
	// PollInterval is how often liveness is evaluated.
	PollInterval time.Duration
	// SilenceFloor is the minimum quiet period before a restart may fire,
	// so a burst of unanswered messages alone cannot trigger one.
	SilenceFloor time.Duration
	// PendingThreshold is the base allowance of received-minus-responded
	// messages. Sessions parked for a human widen it, they are unanswered
	// on purpose.
	PendingThreshold int
	// RestartCeiling caps restarts within the rolling hour; past it the
	// process exits and the process manager takes over.
	RestartCeiling int
	// SuspendCooldown pauses evaluation after a restart so the recycled
	// session gets a chance to prove itself.
	SuspendCooldown time.Duration
	// TeardownTimeout bounds the transport shutdown during a recycle.
	TeardownTimeout time.Duration
	// PreventiveHour is the local hour of the daily preventive restart.
	PreventiveHour int
}

// Supervisor watches session liveness and recycles the session through an
// escalating sequence: soft teardown, orphan cleanup, worker pool flush,
// reconnect. When recycling itself keeps failing it exits the process and
// leaves recovery to the process manager.
type Supervisor struct {
	opts  Options
	state *ProcessState

	session     Session
	flush       func(ctx context.Context) int
	humanParked func() int
	closePool   func()
	killOrphans func(ctx context.Context)

	// fatal abandons in-process recovery. Tests override it.
	fatal func(reason string)

	restartMu sync.Mutex
}

// New wires a supervisor. flush persists sessions before teardown,
// humanParked widens the pending allowance, closePool and killOrphans clean
// up browser workers.
func New(opts Options, state *ProcessState, session Session, flush func(context.Context) int, humanParked func() int, closePool func(), killOrphans func(context.Context), fatal func(string)) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Minute
	}
	if humanParked == nil {
		humanParked = func() int { return 0 }
	}
	if flush == nil {
		flush = func(context.Context) int { return 0 }
	}
	if closePool == nil {
		closePool = func() {}
	}
	if killOrphans == nil {
		killOrphans = func(context.Context) {}
	}
	return &Supervisor{
		opts:        opts,
		state:       state,
		session:     session,
		flush:       flush,
		humanParked: humanParked,
		closePool:   closePool,
		killOrphans: killOrphans,
		fatal:       fatal,
	}
}

// Run polls liveness until the context is cancelled. It also arms the daily
// preventive restart. Blocks; run it in its own goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	if s.opts.PreventiveHour >= 0 {
		s.schedulePreventive(ctx)
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	slog.Info("Supervisor running",
		"poll_interval", s.opts.PollInterval,
		"silence_floor", s.opts.SilenceFloor,
		"pending_threshold", s.opts.PendingThreshold)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evaluate(ctx)
		}
	}
}

// evaluate applies the suspect rule: more unanswered messages than the
// allowance AND a quiet period past the floor. Both must hold; either one
// alone has benign explanations.
func (s *Supervisor) evaluate(ctx context.Context) {
	if s.state.MonitoringSuspended() {
		return
	}

	received, responded := s.state.Counters()
	pending := int64(received) - int64(responded)
	allowance := int64(s.opts.PendingThreshold + s.humanParked())
	silence := time.Since(s.state.LastActivity())

	if pending <= allowance || silence <= s.opts.SilenceFloor {
		return
	}

	slog.Warn("Session suspected unresponsive",
		"pending", pending,
		"allowance", allowance,
		"silence", silence.Round(time.Second))
	s.Restart(ctx, "suspect")
}

// Restart recycles the session: flush state, tear the transport down,
// reap orphan browsers, drain the worker pool, reconnect. Serialized; a
// concurrent caller waits and then restarts again, which is harmless
// because monitoring is suspended right after the first one.
func (s *Supervisor) Restart(ctx context.Context, reason string) {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()

	attempt := s.state.RegisterRestart()
	if attempt > s.opts.RestartCeiling {
		slog.Error("Restart ceiling exceeded, handing over to process manager",
			"attempts", attempt, "ceiling", s.opts.RestartCeiling)
		s.fatal("restart ceiling exceeded")
		return
	}

	slog.Warn("Recycling session", "reason", reason, "attempt", attempt)

	if failed := s.flush(ctx); failed > 0 {
		slog.Warn("Some sessions were not persisted before recycle", "failed", failed)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.opts.TeardownTimeout)
	if err := s.session.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Transport shutdown incomplete, continuing teardown", "error", err)
	}
	cancel()

	// Close pool handles first, then reap whatever survived by process
	// identity. Handles may already be stale at this point.
	s.closePool()
	s.killOrphans(ctx)

	s.state.ResetCounters()
	s.state.Suspend(s.opts.SuspendCooldown)

	if err := s.session.Start(ctx); err != nil {
		slog.Error("Session failed to come back after recycle", "error", err)
		s.fatal("session restart failed")
		return
	}
	slog.Info("Session recycled", "reason", reason, "attempt", attempt)
}

// schedulePreventive arms a self-rescheduling timer for the next occurrence
// of the preventive hour, local time.
func (s *Supervisor) schedulePreventive(ctx context.Context) {
	delay := untilNextHour(time.Now(), s.opts.PreventiveHour)
	slog.Info("Preventive restart scheduled", "in", delay.Round(time.Minute))

	timer := time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		slog.Info("Preventive restart firing")
		s.Restart(ctx, "preventive")
		s.schedulePreventive(ctx)
	})
	go func() {
		<-ctx.Done()
		timer.Stop()
	}()
}

// untilNextHour returns the duration until the next occurrence of the given
// local hour, at least one minute away so a fire at exactly that hour does
// not immediately re-fire.
func untilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now.Add(time.Minute)) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
