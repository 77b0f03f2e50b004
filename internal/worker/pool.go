// Package worker manages a small pool of disposable browser workers keyed
// by purpose.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Worker is one disposable automation process.
type Worker interface {
	// Alive is a cheap liveness probe.
	Alive(ctx context.Context) error
	// Close tears the worker down. Safe to call more than once.
	Close() error
}

// Launcher creates workers on demand.
type Launcher interface {
	Launch(ctx context.Context, purpose string) (Worker, error)
}

type entry struct {
	worker         Worker
	lastCheckoutAt time.Time
	idleTimer      *time.Timer
}

// Pool holds at most one live worker per purpose, bounded overall.
// Workers are created lazily, probed on every checkout, evicted after a
// per-purpose idle period and closeable in bulk.
type Pool struct {
	mu         sync.Mutex
	launcher   Launcher
	maxWorkers int
	idleTTLs   map[string]time.Duration
	defaultTTL time.Duration
	workers    map[string]*entry
	closed     bool
}

// NewPool creates a pool. idleTTLs maps purposes to their idle-eviction
// duration; purposes not listed use defaultTTL. A non-positive TTL disables
// idle eviction for that purpose.
func NewPool(launcher Launcher, maxWorkers int, idleTTLs map[string]time.Duration, defaultTTL time.Duration) *Pool {
	if idleTTLs == nil {
		idleTTLs = make(map[string]time.Duration)
	}
	return &Pool{
		launcher:   launcher,
		maxWorkers: maxWorkers,
		idleTTLs:   idleTTLs,
		defaultTTL: defaultTTL,
		workers:    make(map[string]*entry),
	}
}

// Checkout returns the live worker for the purpose, creating one if needed.
// A worker that fails its liveness probe is discarded and replaced. When the
// pool is full and the purpose has no worker, the least-recently-checked-out
// worker is evicted first.
func (p *Pool) Checkout(ctx context.Context, purpose string) (Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("pool is closed")
	}

	if e, ok := p.workers[purpose]; ok {
		if err := e.worker.Alive(ctx); err == nil {
			e.lastCheckoutAt = time.Now()
			p.resetIdleTimerLocked(purpose, e)
			return e.worker, nil
		}
		slog.Warn("Worker failed liveness probe, recreating", "purpose", purpose)
		p.removeLocked(purpose)
	}

	if len(p.workers) >= p.maxWorkers {
		p.evictOldestLocked()
	}

	w, err := p.launcher.Launch(ctx, purpose)
	if err != nil {
		return nil, fmt.Errorf("launch worker for %s: %w", purpose, err)
	}

	e := &entry{worker: w, lastCheckoutAt: time.Now()}
	p.workers[purpose] = e
	p.resetIdleTimerLocked(purpose, e)
	slog.Info("Worker created", "purpose", purpose, "pool_size", len(p.workers))
	return w, nil
}

// Size returns the number of live workers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// CloseAll cancels every pending eviction timer and then closes every
// worker. Timers are always cancelled before the close so a timer can never
// fire against an already-closed handle. Close failures are logged and
// swallowed; one bad handle never blocks the rest.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	for _, e := range p.workers {
		if e.idleTimer != nil {
			e.idleTimer.Stop()
			e.idleTimer = nil
		}
	}
	workers := p.workers
	p.workers = make(map[string]*entry)
	p.mu.Unlock()

	var wg sync.WaitGroup
	for purpose, e := range workers {
		wg.Add(1)
		go func(purpose string, e *entry) {
			defer wg.Done()
			if err := e.worker.Close(); err != nil {
				slog.Error("Failed to close worker", "purpose", purpose, "error", err)
			}
		}(purpose, e)
	}
	wg.Wait()
	slog.Info("All workers closed", "count", len(workers))
}

// Shutdown closes all workers and rejects further checkouts.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.CloseAll()
}

// evictOldestLocked removes the least-recently-checked-out worker.
func (p *Pool) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	for purpose, e := range p.workers {
		if oldest == "" || e.lastCheckoutAt.Before(oldestAt) {
			oldest = purpose
			oldestAt = e.lastCheckoutAt
		}
	}
	if oldest != "" {
		slog.Info("Evicting least recently used worker", "purpose", oldest)
		p.removeLocked(oldest)
	}
}

// removeLocked stops the entry's timer and closes its worker.
// Timer cancellation precedes the close.
func (p *Pool) removeLocked(purpose string) {
	e, ok := p.workers[purpose]
	if !ok {
		return
	}
	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}
	delete(p.workers, purpose)
	if err := e.worker.Close(); err != nil {
		slog.Error("Failed to close worker", "purpose", purpose, "error", err)
	}
}

// resetIdleTimerLocked arms the one-shot idle eviction timer for a purpose.
func (p *Pool) resetIdleTimerLocked(purpose string, e *entry) {
	ttl, ok := p.idleTTLs[purpose]
	if !ok {
		ttl = p.defaultTTL
	}
	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}
	if ttl <= 0 {
		return
	}
	e.idleTimer = time.AfterFunc(ttl, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		current, ok := p.workers[purpose]
		if !ok || current != e {
			// Already replaced or removed; nothing to evict.
			return
		}
		slog.Info("Evicting idle worker", "purpose", purpose, "idle_ttl", ttl)
		p.removeLocked(purpose)
	})
}
