package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

type OutboxMessage struct {
	ID         int64
	Topic      string
	Key        string
	Payload    []byte
	Status     string
	RetryCount int
	CreatedAt  time.Time
	SentAt     *time.Time
	LastError  *string
}

// OutboxRepository persists events in the same transaction as the state
// change that produced them. The worker drains pending rows to Kafka.
type OutboxRepository struct {
	db         *pgxpool.Pool
	sb         sq.StatementBuilderType
	maxRetries int
}

func NewOutboxRepository(db *pgxpool.Pool, maxRetries int) *OutboxRepository {
	if maxRetries <= 0 {
		maxRetries = 10
	}
	return &OutboxRepository{
		db:         db,
		sb:         sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		maxRetries: maxRetries,
	}
}

// Append writes an event row inside the caller's transaction.
func (r *OutboxRepository) Append(ctx context.Context, tx pgx.Tx, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	q := r.sb.
		Insert("outbox_messages").
		Columns("topic", "key", "payload", "status", "retry_count").
		Values(topic, key, data, OutboxStatusPending, 0)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// PendingBatch returns up to limit pending messages, oldest first.
func (r *OutboxRepository) PendingBatch(ctx context.Context, limit int) ([]OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	q := r.sb.
		Select("id", "topic", "key", "payload", "status", "retry_count", "created_at", "sent_at", "last_error").
		From("outbox_messages").
		Where(sq.Eq{"status": OutboxStatusPending}).
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build outbox select: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox pending: %w", err)
	}
	defer rows.Close()

	msgs := make([]OutboxMessage, 0, limit)
	for rows.Next() {
		var (
			m         OutboxMessage
			sentAt    pgtype.Timestamptz
			lastError pgtype.Text
		)
		if err := rows.Scan(&m.ID, &m.Topic, &m.Key, &m.Payload, &m.Status, &m.RetryCount, &m.CreatedAt, &sentAt, &lastError); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		if sentAt.Valid {
			t := sentAt.Time
			m.SentAt = &t
		}
		if lastError.Valid {
			s := lastError.String
			m.LastError = &s
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	q := r.sb.
		Update("outbox_messages").
		Set("status", OutboxStatusSent).
		Set("sent_at", sq.Expr("now()")).
		Set("last_error", nil).
		Where(sq.Eq{"id": id})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build outbox mark sent: %w", err)
	}
	tag, err := r.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed bumps the retry count; past the limit the row flips to failed
// and is no longer picked up. It reports whether this attempt was the
// terminal one.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, errorMsg string) (bool, error) {
	if errorMsg == "" {
		errorMsg = "unknown error"
	}

	q := r.sb.
		Update("outbox_messages").
		Set("retry_count", sq.Expr("retry_count + 1")).
		Set("last_error", errorMsg).
		Set("status", sq.Expr(
			"CASE WHEN (retry_count + 1) >= ? THEN ? ELSE ? END",
			r.maxRetries, OutboxStatusFailed, OutboxStatusPending,
		)).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING status")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build outbox mark failed: %w", err)
	}

	var status string
	if err := r.db.QueryRow(ctx, sqlStr, args...).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("mark outbox failed: %w", err)
	}
	return status == OutboxStatusFailed, nil
}
