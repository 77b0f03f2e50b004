// Package supervisor keeps the automation session alive: it tracks process
// health signals and escalates through soft, hard and process-level
// recovery when the session goes quiet.
package supervisor

import (
	"sync"
	"time"
)

// ProcessState is the single process-wide health and mode ledger. It
// replaces scattered global flags; every mutation goes through a method
// here so both the message path and the supervisor share one writer
// discipline.
type ProcessState struct {
	mu sync.Mutex

	lastActivityAt time.Time
	received       uint64
	responded      uint64

	consecutiveRestarts int
	restartWindowStart  time.Time

	suspendedUntil time.Time

	awayMode     bool
	awayNotified map[string]bool

	startedAt time.Time
}

// NewProcessState creates a state ledger with the liveness baseline at now.
func NewProcessState() *ProcessState {
	now := time.Now()
	return &ProcessState{
		lastActivityAt: now,
		startedAt:      now,
		awayNotified:   make(map[string]bool),
	}
}

// NoteReceived records one inbound message and refreshes liveness.
func (p *ProcessState) NoteReceived() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received++
	p.lastActivityAt = time.Now()
}

// NoteResponded records one successful outbound send and refreshes liveness.
func (p *ProcessState) NoteResponded() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responded++
	p.lastActivityAt = time.Now()
}

// ResetCounters zeroes the message counters and re-baselines liveness.
// Called after every restart so stale gaps cannot re-trigger the monitor.
func (p *ProcessState) ResetCounters() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = 0
	p.responded = 0
	p.lastActivityAt = time.Now()
}

// Counters returns the received and responded totals.
func (p *ProcessState) Counters() (received, responded uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received, p.responded
}

// LastActivity returns the last liveness timestamp.
func (p *ProcessState) LastActivity() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastActivityAt
}

// StartedAt returns process start time.
func (p *ProcessState) StartedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startedAt
}

// Suspend pauses Suspect evaluation until now+d.
func (p *ProcessState) Suspend(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspendedUntil = time.Now().Add(d)
}

// MonitoringSuspended reports whether Suspect evaluation is paused.
func (p *ProcessState) MonitoringSuspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Now().Before(p.suspendedUntil)
}

// RegisterRestart bumps the rolling restart counter, resetting it when the
// hour window has rolled over, and returns the count within the window.
func (p *ProcessState) RegisterRestart() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if now.Sub(p.restartWindowStart) > time.Hour {
		p.restartWindowStart = now
		p.consecutiveRestarts = 0
	}
	p.consecutiveRestarts++
	return p.consecutiveRestarts
}

// RestartsInWindow returns the restart count in the current rolling hour.
func (p *ProcessState) RestartsInWindow() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Since(p.restartWindowStart) > time.Hour {
		return 0
	}
	return p.consecutiveRestarts
}

// SetAwayMode toggles away mode. Turning it on or off clears the set of
// users already notified.
func (p *ProcessState) SetAwayMode(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.awayMode = on
	p.awayNotified = make(map[string]bool)
}

// AwayMode reports whether away mode is on.
func (p *ProcessState) AwayMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.awayMode
}

// ShouldSendAwayNotice reports whether the user still needs the away
// notice, marking them notified when true.
func (p *ProcessState) ShouldSendAwayNotice(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.awayMode || p.awayNotified[userID] {
		return false
	}
	p.awayNotified[userID] = true
	return true
}
