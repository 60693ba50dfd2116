// Package relay drains the transactional outbox to Kafka.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/infra"
	"github.com/lottodesk/platform/internal/repository"
)

// Publisher sends one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// TxBeginner starts a database transaction; *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Options tune the poll loop.
type Options struct {
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
}

// OutboxPoller polls the event_outbox table and publishes events to Kafka.
type OutboxPoller struct {
	db        TxBeginner
	outbox    repository.OutboxRepository
	publisher Publisher
	metrics   *infra.Metrics
	logger    *slog.Logger
	opts      Options
}

// NewOutboxPoller creates a new outbox poller. metrics may be nil.
func NewOutboxPoller(db TxBeginner, outbox repository.OutboxRepository, publisher Publisher, metrics *infra.Metrics, logger *slog.Logger, opts Options) *OutboxPoller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "lotto"
	}
	return &OutboxPoller{
		db:        db,
		outbox:    outbox,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	p.logger.Info("outbox poller started", "interval", p.opts.Interval, "batch_size", p.opts.BatchSize)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return
		case <-ticker.C:
			for {
				n, err := p.PollOnce(ctx)
				if err != nil {
					p.logger.Error("outbox poll error", "error", err)
					break
				}
				// A full batch means there is likely more waiting.
				if n < p.opts.BatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// PollOnce publishes one batch and returns how many events were published.
// Rows are locked with SKIP LOCKED, so several relays can run side by side.
// Publishing stops at the first failure to keep per-key order; the failed
// event and everything after it are retried on the next poll.
func (p *OutboxPoller) PollOnce(ctx context.Context) (int, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	events, err := p.outbox.FetchUnpublished(ctx, tx, p.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(events))
	for _, e := range events {
		if err := p.publish(ctx, e); err != nil {
			p.observeFailure()
			p.logger.Error("kafka publish failed", "event_id", e.EventID, "event_type", e.EventType, "error", err)
			break
		}
		published = append(published, e.SeqID)
	}

	if err := p.outbox.MarkPublished(ctx, tx, published); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	if p.metrics != nil {
		p.metrics.OutboxPublished.Add(float64(len(published)))
	}
	p.logger.Debug("outbox poll complete", "published", len(published), "fetched", len(events))
	return len(published), nil
}

func (p *OutboxPoller) publish(ctx context.Context, e domain.OutboxEvent) error {
	msg, err := json.Marshal(e.OutboxDraft)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	topic := infra.TopicFor(p.opts.TopicPrefix, string(e.EventType))
	return p.publisher.Publish(ctx, topic, []byte(e.PartitionKey), msg)
}

func (p *OutboxPoller) observeFailure() {
	if p.metrics != nil {
		p.metrics.OutboxFailures.Inc()
	}
}
