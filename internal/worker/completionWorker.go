package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Completer persists the completed status of elapsed bookings.
// service.BookingService satisfies it.
type Completer interface {
	CompleteElapsedBookings(ctx context.Context) (int64, error)
}

// BookingCompletionWorker periodically moves confirmed bookings whose window
// has ended to completed, so storage matches what readers already see.
type BookingCompletionWorker struct {
	completer Completer
	interval  time.Duration

	runs      atomic.Int64
	completed atomic.Int64
	failures  atomic.Int64
}

func NewBookingCompletionWorker(completer Completer, interval time.Duration) *BookingCompletionWorker {
	return &BookingCompletionWorker{
		completer: completer,
		interval:  interval,
	}
}

// Start blocks until ctx is cancelled. The first sweep runs immediately.
func (w *BookingCompletionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.WithField("interval", w.interval.String()).Info("Booking completion worker started")

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Booking completion worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (w *BookingCompletionWorker) RunOnce(ctx context.Context) {
	w.runs.Add(1)

	n, err := w.completer.CompleteElapsedBookings(ctx)
	if err != nil {
		w.failures.Add(1)
		logrus.WithError(err).Error("Failed to complete elapsed bookings")
		return
	}

	w.completed.Add(n)
	if n > 0 {
		logrus.WithField("count", n).Debug("Completion sweep finished")
	}
}

// GetStats returns worker counters
func (w *BookingCompletionWorker) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"worker_type": "booking_completion",
		"interval":    w.interval.String(),
		"runs":        w.runs.Load(),
		"completed":   w.completed.Load(),
		"failures":    w.failures.Load(),
	}
}
