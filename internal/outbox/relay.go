package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/pos/internal/clock"
	"github.com/roach88/pos/internal/metrics"
	"github.com/roach88/pos/internal/store"
)

// Relay moves pending outbox records to a Publisher.
type Relay struct {
	store     *store.Store
	publisher Publisher
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics

	BatchSize    int
	PollInterval time.Duration
}

// NewRelay creates a relay with a batch size of 100 and a one second poll.
// m may be nil.
func NewRelay(s *store.Store, p Publisher, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		store:        s,
		publisher:    p,
		clock:        clk,
		logger:       logger,
		metrics:      m,
		BatchSize:    100,
		PollInterval: time.Second,
	}
}

// RunOnce publishes one batch of pending records and returns how many were
// marked sent. Records are published one at a time, in id order; the first
// failure stops the batch and leaves it and everything after it pending.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	recs, err := FetchPending(ctx, r.store, r.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range recs {
		if err := r.publisher.Publish(ctx, rec); err != nil {
			r.metrics.OutboxFailed()
			r.logger.WarnContext(ctx, "outbox publish failed",
				"event_id", rec.EventID, "topic", rec.Topic, "error", err)
			r.metrics.OutboxPublished(sent)
			return sent, err
		}
		if err := MarkSent(ctx, r.store, rec.ID, r.clock.Now()); err != nil {
			r.metrics.OutboxPublished(sent)
			return sent, err
		}
		sent++
	}
	r.metrics.OutboxPublished(sent)
	if sent > 0 {
		r.logger.DebugContext(ctx, "outbox relayed", "count", sent)
	}
	return sent, nil
}

// Run polls until ctx is cancelled. Publish errors are logged and retried on
// the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "outbox relay started", "interval", r.PollInterval, "batch_size", r.BatchSize)
	for {
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}
