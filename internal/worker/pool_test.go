package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeWorker struct {
	mu       sync.Mutex
	purpose  string
	aliveErr error
	closed   int
}

func (w *fakeWorker) Alive(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.aliveErr
}

func (w *fakeWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func (w *fakeWorker) closeCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched []*fakeWorker
	err      error
}

func (l *fakeLauncher) Launch(_ context.Context, purpose string) (Worker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	w := &fakeWorker{purpose: purpose}
	l.launched = append(l.launched, w)
	return w, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

func TestCheckoutReusesLiveWorker(t *testing.T) {
	l := &fakeLauncher{}
	p := NewPool(l, 2, nil, 0)

	w1, err := p.Checkout(context.Background(), "scraper")
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	w2, err := p.Checkout(context.Background(), "scraper")
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}

	if w1 != w2 {
		t.Error("second checkout returned a different worker")
	}
	if l.count() != 1 {
		t.Errorf("launches = %d, want 1", l.count())
	}
}

func TestCheckoutRecreatesDeadWorker(t *testing.T) {
	l := &fakeLauncher{}
	p := NewPool(l, 2, nil, 0)

	w1, _ := p.Checkout(context.Background(), "scraper")
	w1.(*fakeWorker).aliveErr = errors.New("browser gone")

	w2, err := p.Checkout(context.Background(), "scraper")
	if err != nil {
		t.Fatalf("checkout after death: %v", err)
	}
	if w1 == w2 {
		t.Error("dead worker was reused")
	}
	if w1.(*fakeWorker).closeCount() == 0 {
		t.Error("dead worker was not closed")
	}
	if l.count() != 2 {
		t.Errorf("launches = %d, want 2", l.count())
	}
}

func TestCheckoutEvictsLRUWhenFull(t *testing.T) {
	l := &fakeLauncher{}
	p := NewPool(l, 2, nil, 0)

	a, _ := p.Checkout(context.Background(), "a")
	time.Sleep(5 * time.Millisecond)
	p.Checkout(context.Background(), "b")
	time.Sleep(5 * time.Millisecond)

	// Third purpose evicts "a", the least recently checked out.
	if _, err := p.Checkout(context.Background(), "c"); err != nil {
		t.Fatalf("third checkout: %v", err)
	}

	if p.Size() != 2 {
		t.Errorf("pool size = %d, want 2", p.Size())
	}
	if a.(*fakeWorker).closeCount() == 0 {
		t.Error("LRU worker was not closed on eviction")
	}
}

func TestIdleTimerEvicts(t *testing.T) {
	l := &fakeLauncher{}
	p := NewPool(l, 2, map[string]time.Duration{"scraper": 20 * time.Millisecond}, 0)

	w, _ := p.Checkout(context.Background(), "scraper")

	deadline := time.Now().Add(time.Second)
	for p.Size() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if p.Size() != 0 {
		t.Fatal("idle worker was not evicted")
	}
	if w.(*fakeWorker).closeCount() == 0 {
		t.Error("evicted worker was not closed")
	}
}

func TestCheckoutReschedulesIdleTimer(t *testing.T) {
	l := &fakeLauncher{}
	p := NewPool(l, 2, map[string]time.Duration{"scraper": 60 * time.Millisecond}, 0)

	p.Checkout(context.Background(), "scraper")
	// Keep touching it faster than the TTL; it must survive.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		if _, err := p.Checkout(context.Background(), "scraper"); err != nil {
			t.Fatalf("checkout %d: %v", i, err)
		}
	}

	if l.count() != 1 {
		t.Errorf("launches = %d, want 1 (worker was evicted while active)", l.count())
	}
}

func TestCloseAllClosesEverything(t *testing.T) {
	l := &fakeLauncher{}
	p := NewPool(l, 3, nil, 0)

	a, _ := p.Checkout(context.Background(), "a")
	b, _ := p.Checkout(context.Background(), "b")

	p.CloseAll()

	if p.Size() != 0 {
		t.Errorf("pool size = %d, want 0", p.Size())
	}
	if a.(*fakeWorker).closeCount() != 1 || b.(*fakeWorker).closeCount() != 1 {
		t.Error("not every worker was closed exactly once")
	}

	// CloseAll does not kill the pool; the next checkout relaunches.
	if _, err := p.Checkout(context.Background(), "a"); err != nil {
		t.Fatalf("checkout after CloseAll: %v", err)
	}
}

func TestShutdownRejectsCheckout(t *testing.T) {
	l := &fakeLauncher{}
	p := NewPool(l, 2, nil, 0)
	p.Checkout(context.Background(), "a")

	p.Shutdown()

	if _, err := p.Checkout(context.Background(), "a"); err == nil {
		t.Error("checkout after Shutdown succeeded, want error")
	}
}

func TestLaunchFailurePropagates(t *testing.T) {
	l := &fakeLauncher{err: errors.New("no chromium")}
	p := NewPool(l, 2, nil, 0)

	if _, err := p.Checkout(context.Background(), "a"); err == nil {
		t.Error("checkout with failing launcher succeeded, want error")
	}
	if p.Size() != 0 {
		t.Errorf("pool size = %d after failed launch, want 0", p.Size())
	}
}
