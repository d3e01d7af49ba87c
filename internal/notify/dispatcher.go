// Package notify delivers queued notifications and admin broadcasts.
package notify

import (
	"context"
	"time"

	"cargobot/internal/logging"
	"cargobot/internal/metrics"
	"cargobot/internal/store"
	"cargobot/internal/telegram"
)

// Queue is the notification queue the dispatcher drains.
type Queue interface {
	PendingNotifications(ctx context.Context, limit int) ([]store.Notification, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, cause string, maxAttempts int) (bool, error)
}

// DispatcherConfig controls the polling cycle.
type DispatcherConfig struct {
	FirstDelay  time.Duration
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// Dispatcher periodically sends pending notifications from the queue.
type Dispatcher struct {
	queue   Queue
	sender  telegram.Sender
	cfg     DispatcherConfig
	metrics *metrics.Collector
	now     func() time.Time
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(q Queue, s telegram.Sender, cfg DispatcherConfig, m *metrics.Collector) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Dispatcher{
		queue:   q,
		sender:  s,
		cfg:     cfg,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run ticks after FirstDelay and then every Interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	logging.Notify("Notification dispatcher started (first run in %v, every %v, batch %d)",
		d.cfg.FirstDelay, d.cfg.Interval, d.cfg.BatchSize)

	first := time.NewTimer(d.cfg.FirstDelay)
	defer first.Stop()

	select {
	case <-ctx.Done():
		logging.Notify("Notification dispatcher stopped")
		return nil
	case <-first.C:
	}

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			logging.Notify("Notification dispatcher stopped")
			return nil
		case <-ticker.C:
			d.cycle(ctx)
		}
	}
}

func (d *Dispatcher) cycle(ctx context.Context) {
	if _, _, err := d.Tick(ctx); err != nil && ctx.Err() == nil {
		logging.NotifyError("Notification check failed: %v", err)
	}
}

// Tick sends one batch of pending notifications. A failed send is
// recorded on the row, which stays pending until MaxAttempts.
func (d *Dispatcher) Tick(ctx context.Context) (sent, failed int, err error) {
	pending, err := d.queue.PendingNotifications(ctx, d.cfg.BatchSize)
	if err != nil {
		return 0, 0, err
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}
	logging.NotifyDebug("Dispatching %d pending notifications", len(pending))

	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}
		if sendErr := d.sender.SendMessage(ctx, n.TelegramID, n.Text, true); sendErr != nil {
			failed++
			parked, markErr := d.queue.MarkFailed(ctx, n.ID, sendErr.Error(), d.cfg.MaxAttempts)
			if markErr != nil {
				logging.NotifyError("Failed to record failure of notification %d: %v", n.ID, markErr)
				continue
			}
			if parked {
				logging.NotifyWarn("Notification %d to %d failed permanently after %d attempts: %v",
					n.ID, n.TelegramID, n.Attempts+1, sendErr)
			} else {
				logging.NotifyWarn("Notification %d to %d failed (attempt %d): %v",
					n.ID, n.TelegramID, n.Attempts+1, sendErr)
			}
			continue
		}

		if markErr := d.queue.MarkSent(ctx, n.ID, d.now()); markErr != nil {
			// Delivered but still pending: it will be sent again next cycle.
			logging.NotifyError("Failed to mark notification %d sent: %v", n.ID, markErr)
		}
		sent++
	}

	d.metrics.RecordNotifications("queue", sent, failed)
	if sent > 0 || failed > 0 {
		logging.Notify("Notification cycle: %d sent, %d failed", sent, failed)
	}
	return sent, failed, nil
}
