package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/banking-service/internal/domain"
)

const eventColumns = `id, transaction_id, account_id, event_type, payload, status,
	attempts, last_attempt, created_at, published_at`

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, q Querier, event *domain.TransactionEvent) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO transaction_events (
			id, transaction_id, account_id, event_type, payload, status, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.TransactionID, event.AccountID, string(event.EventType),
		[]byte(event.Payload), string(event.Status), event.Attempts, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ClaimPending must run inside a transaction: SKIP LOCKED keeps concurrent
// processors from claiming the same rows until that transaction ends.
func (r *EventRepository) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.TransactionEvent, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM transaction_events
		WHERE status = $1 ORDER BY created_at, transaction_id LIMIT $2 FOR UPDATE SKIP LOCKED`,
		string(domain.EventStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var events []domain.TransactionEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return events, nil
}

func (r *EventRepository) MarkPublished(ctx context.Context, q Querier, id uuid.UUID) error {
	return r.update(ctx, q, "MarkPublished",
		`UPDATE transaction_events
		SET status = $1, attempts = attempts + 1, last_attempt = now(), published_at = now()
		WHERE id = $2`,
		string(domain.EventStatusPublished), id,
	)
}

// MarkAttemptFailed records a failed publish, giving up once maxAttempts is reached.
func (r *EventRepository) MarkAttemptFailed(ctx context.Context, q Querier, id uuid.UUID, maxAttempts int) error {
	return r.update(ctx, q, "MarkAttemptFailed",
		`UPDATE transaction_events
		SET attempts = attempts + 1, last_attempt = now(),
			status = CASE WHEN attempts + 1 >= $1 THEN $2 ELSE status END
		WHERE id = $3`,
		maxAttempts, string(domain.EventStatusFailed), id,
	)
}

func (r *EventRepository) update(ctx context.Context, q Querier, op, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

func scanEvent(s scanner) (*domain.TransactionEvent, error) {
	var e domain.TransactionEvent
	err := s.Scan(
		&e.ID, &e.TransactionID, &e.AccountID, &e.EventType, &e.Payload, &e.Status,
		&e.Attempts, &e.LastAttempt, &e.CreatedAt, &e.PublishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
