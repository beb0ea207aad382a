package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bloodbank/internal/core"
)

type fakeNotifier struct {
	mu      sync.Mutex
	calls   []core.BloodType
	err     error
	release chan struct{} // when non-nil, deliveries block until closed
}

func (f *fakeNotifier) NotifyLowStock(ctx context.Context, bt core.BloodType, remaining int) error {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, bt)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDeliversAlerts(t *testing.T) {
	fake := &fakeNotifier{}
	d := NewDispatcher(fake, 8, discardLogger())

	d.NotifyLowStock(core.OPositive, 400)
	d.NotifyLowStock(core.ANegative, 120)
	d.Close()

	if fake.count() != 2 {
		t.Errorf("expected 2 deliveries, got %d", fake.count())
	}
	if fake.calls[0] != core.OPositive || fake.calls[1] != core.ANegative {
		t.Errorf("alerts delivered out of order: %v", fake.calls)
	}
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	fake := &fakeNotifier{}
	d := NewDispatcher(fake, 16, discardLogger())

	for i := 0; i < 10; i++ {
		d.NotifyLowStock(core.OPositive, 100+i)
	}
	d.Close()

	if fake.count() != 10 {
		t.Errorf("expected all 10 queued alerts delivered before Close returns, got %d", fake.count())
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	release := make(chan struct{})
	fake := &fakeNotifier{release: release}
	d := NewDispatcher(fake, 1, discardLogger())

	// First alert occupies the worker, second fills the queue, the rest
	// must be dropped without blocking the caller.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			d.NotifyLowStock(core.BPositive, 50)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("NotifyLowStock blocked on a full queue")
	}

	close(release)
	d.Close()

	if fake.count() > 2 {
		t.Errorf("expected at most 2 deliveries (worker + buffer), got %d", fake.count())
	}
	if fake.count() == 0 {
		t.Error("expected at least the in-flight alert to be delivered")
	}
}

func TestDispatcherSurvivesDeliveryFailure(t *testing.T) {
	fake := &fakeNotifier{err: errors.New("gateway unreachable")}
	d := NewDispatcher(fake, 8, discardLogger())

	d.NotifyLowStock(core.OPositive, 400)
	d.NotifyLowStock(core.OPositive, 300)
	d.Close()

	// Failed deliveries are logged, never fatal: both attempts reach the
	// notifier.
	if fake.count() != 2 {
		t.Errorf("expected 2 attempts despite failures, got %d", fake.count())
	}
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(&fakeNotifier{}, 1, discardLogger())
	d.Close()
	d.Close()
}
