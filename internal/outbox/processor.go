// Package outbox relays transaction events committed alongside ledger appends
// to the message broker.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/banking-service/internal/domain"
	"github.com/josh-kwaku/banking-service/internal/messaging"
	"github.com/josh-kwaku/banking-service/internal/repository"
)

type eventRepo interface {
	ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.TransactionEvent, error)
	MarkPublished(ctx context.Context, q repository.Querier, id uuid.UUID) error
	MarkAttemptFailed(ctx context.Context, q repository.Querier, id uuid.UUID, maxAttempts int) error
}

type publisher interface {
	Publish(ctx context.Context, msg messaging.Message) error
}

type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

type Processor struct {
	events    eventRepo
	publisher publisher
	db        *sql.DB
	logger    *slog.Logger
	cfg       Config
}

func NewProcessor(events eventRepo, pub publisher, db *sql.DB, logger *slog.Logger, cfg Config) *Processor {
	return &Processor{
		events:    events,
		publisher: pub,
		db:        db,
		logger:    logger.With("component", "outbox"),
		cfg:       cfg,
	}
}

// Start polls until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("outbox processor started", "interval", p.cfg.Interval, "batch_size", p.cfg.BatchSize)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox processor stopped")
			return
		case <-ticker.C:
			if _, err := p.poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox poll failed", "error", err)
			}
		}
	}
}

// poll claims one batch and tries to publish each event. Claimed rows stay
// locked until the batch commits, so concurrent processors skip them.
func (p *Processor) poll(ctx context.Context) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("poll: begin tx: %w", err)
	}
	defer tx.Rollback()

	events, err := p.events.ClaimPending(ctx, tx, p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("poll: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := 0
	for _, event := range events {
		if err := p.publisher.Publish(ctx, toMessage(event)); err != nil {
			p.logger.Warn("event publish failed",
				"event_id", event.ID,
				"transaction_id", event.TransactionID,
				"attempt", event.Attempts+1,
				"error", err,
			)
			if err := p.events.MarkAttemptFailed(ctx, tx, event.ID, p.cfg.MaxAttempts); err != nil {
				return 0, fmt.Errorf("poll: %w", err)
			}
			continue
		}
		if err := p.events.MarkPublished(ctx, tx, event.ID); err != nil {
			return 0, fmt.Errorf("poll: %w", err)
		}
		published++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("poll: commit: %w", err)
	}

	p.logger.Debug("outbox batch processed", "claimed", len(events), "published", published)
	return published, nil
}

func toMessage(event domain.TransactionEvent) messaging.Message {
	return messaging.Message{
		Key:   []byte(strconv.FormatInt(event.AccountID, 10)),
		Value: event.Payload,
		Headers: map[string]string{
			"event_id":   event.ID.String(),
			"event_type": string(event.EventType),
		},
	}
}
