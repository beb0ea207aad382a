package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bloodbank/internal/core"
	"bloodbank/internal/metrics"
)

const dispatchTimeout = 15 * time.Second

type alert struct {
	bloodType core.BloodType
	remaining int
}

// Dispatcher decouples alert delivery from the issuance write path: alerts
// are queued on a buffered channel and delivered by a background worker, so
// a slow or failing gateway can never block or fail an issuance. It
// satisfies core.AlertSink.
type Dispatcher struct {
	notifier Notifier
	queue    chan alert
	log      *slog.Logger
	wg       sync.WaitGroup
	once     sync.Once
}

func NewDispatcher(notifier Notifier, queueSize int, log *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		queue:    make(chan alert, queueSize),
		log:      log,
	}
	d.wg.Add(1)
	go d.worker()
	return d
}

// NotifyLowStock enqueues an alert without blocking. When the queue is full
// the alert is dropped and logged; stock alerting is best-effort.
func (d *Dispatcher) NotifyLowStock(bt core.BloodType, remaining int) {
	select {
	case d.queue <- alert{bloodType: bt, remaining: remaining}:
	default:
		d.log.Warn("alert queue full, dropping low-stock alert",
			"blood_type", bt, "remaining", remaining)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for a := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		if err := d.notifier.NotifyLowStock(ctx, a.bloodType, a.remaining); err != nil {
			d.log.Error("low-stock alert delivery failed",
				"blood_type", a.bloodType, "remaining", a.remaining, "err", err)
		} else {
			metrics.LowStockAlerts.WithLabelValues(string(a.bloodType)).Inc()
		}
		cancel()
	}
}

// Close stops accepting alerts and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}
