package notify

import (
	"context"
	"sync/atomic"

	"cargobot/internal/logging"
	"cargobot/internal/metrics"
	"cargobot/internal/telegram"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Result counts broadcast deliveries.
type Result struct {
	ID     string // short id tagging the broadcast's log entries
	Sent   int
	Failed int
}

// Broadcaster sends one message to many chats with bounded concurrency
// under a shared rate limit.
type Broadcaster struct {
	sender      telegram.Sender
	limiter     *rate.Limiter
	concurrency int
	metrics     *metrics.Collector
}

// NewBroadcaster creates a broadcaster. ratePerSecond <= 0 disables
// the rate limit. m may be nil.
func NewBroadcaster(s telegram.Sender, ratePerSecond float64, concurrency int, m *metrics.Collector) *Broadcaster {
	if concurrency < 1 {
		concurrency = 1
	}
	limit := rate.Limit(ratePerSecond)
	if ratePerSecond <= 0 {
		limit = rate.Inf
	}
	return &Broadcaster{
		sender:      s,
		limiter:     rate.NewLimiter(limit, concurrency),
		concurrency: concurrency,
		metrics:     m,
	}
}

// Broadcast sends text (Markdown) to every chat. Per-recipient errors
// are logged and counted; recipients not reached before ctx is
// cancelled count as failed.
func (b *Broadcaster) Broadcast(ctx context.Context, chatIDs []int64, text string) Result {
	id := uuid.NewString()[:8]
	log := logging.Get(logging.CategoryNotify).With("broadcast", id)
	log.Info("Broadcasting to %d recipients", len(chatIDs))

	var sent, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)
	for _, chatID := range chatIDs {
		if err := b.limiter.Wait(ctx); err != nil {
			failed.Add(1)
			continue
		}
		g.Go(func() error {
			if err := b.sender.SendMessage(ctx, chatID, text, true); err != nil {
				log.Warn("Delivery to %d failed: %v", chatID, err)
				failed.Add(1)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	g.Wait()

	res := Result{ID: id, Sent: int(sent.Load()), Failed: int(failed.Load())}
	b.metrics.RecordNotifications("broadcast", res.Sent, res.Failed)
	log.Info("Broadcast finished: %d sent, %d failed", res.Sent, res.Failed)
	return res
}
