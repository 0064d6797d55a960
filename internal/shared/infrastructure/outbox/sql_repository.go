package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/database"
)

// SQLRepository implements Repository over a database.Connection. It joins
// the caller's transaction when one is present in the context.
type SQLRepository struct {
	conn database.Connection
}

// NewSQLRepository creates an outbox repository for SQLite or PostgreSQL.
func NewSQLRepository(conn database.Connection) *SQLRepository {
	return &SQLRepository{conn: conn}
}

const outboxColumns = `id, event_id, aggregate_type, aggregate_id, event_type, routing_key,
	payload, metadata, created_at, published_at, retry_count, last_error,
	next_retry_at, dead_lettered_at, dead_letter_reason`

func (r *SQLRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// Save stores a new outbox message.
func (r *SQLRepository) Save(ctx context.Context, msg *Message) error {
	return r.insert(ctx, r.exec(ctx), msg)
}

// SaveBatch stores multiple outbox messages atomically.
func (r *SQLRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	if tx := database.TxFromContext(ctx); tx != nil {
		for _, msg := range msgs {
			if err := r.insert(ctx, tx, msg); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := r.insert(ctx, tx, msg); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *SQLRepository) insert(ctx context.Context, ex database.Executor, msg *Message) error {
	d := r.conn.Driver()
	metadata := string(msg.Metadata)
	if metadata == "" {
		metadata = "{}"
	}
	err := ex.QueryRow(ctx, `INSERT INTO outbox
		(event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		msg.EventID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.RoutingKey,
		string(msg.Payload), metadata, d.TimeArg(msg.CreatedAt),
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("insert outbox message %s: %w", msg.EventID, err)
	}
	return nil
}

// GetUnpublished retrieves unpublished messages ordered by creation time,
// skipping those whose retry backoff has not elapsed.
func (r *SQLRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	return r.list(ctx, `SELECT `+outboxColumns+` FROM outbox
		WHERE published_at IS NULL AND dead_lettered_at IS NULL
		AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id LIMIT ?`,
		r.conn.Driver().TimeArg(time.Now()), limit)
}

// GetFailed retrieves failed messages eligible for retry.
func (r *SQLRepository) GetFailed(ctx context.Context, maxRetries, limit int) ([]*Message, error) {
	return r.list(ctx, `SELECT `+outboxColumns+` FROM outbox
		WHERE published_at IS NULL AND dead_lettered_at IS NULL
		AND retry_count > 0 AND retry_count < ?
		AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id LIMIT ?`,
		maxRetries, r.conn.Driver().TimeArg(time.Now()), limit)
}

// MarkPublished marks a message as successfully published.
func (r *SQLRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.exec(ctx).Exec(ctx, `UPDATE outbox SET published_at = ? WHERE id = ?`,
		r.conn.Driver().TimeArg(time.Now()), id)
	return err
}

// MarkFailed records a publish failure with error message.
func (r *SQLRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := r.exec(ctx).Exec(ctx, `UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`,
		errMsg, r.conn.Driver().TimeArg(nextRetryAt), id)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *SQLRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	_, err := r.exec(ctx).Exec(ctx, `UPDATE outbox
		SET retry_count = retry_count + 1, dead_lettered_at = ?, dead_letter_reason = ?, last_error = ?
		WHERE id = ?`,
		r.conn.Driver().TimeArg(time.Now()), reason, reason, id)
	return err
}

// DeleteOld removes successfully published messages older than the retention period.
func (r *SQLRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	result, err := r.exec(ctx).Exec(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		r.conn.Driver().TimeArg(cutoff))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := r.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanMessage(row database.Row) (*Message, error) {
	var (
		msg                                 Message
		payload, metadata                   string
		createdAt, publishedAt, nextRetryAt database.Timestamp
		deadAt                              database.Timestamp
		lastError, deadReason               *string
	)
	if err := row.Scan(&msg.ID, &msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.EventType,
		&msg.RoutingKey, &payload, &metadata, &createdAt, &publishedAt, &msg.RetryCount, &lastError,
		&nextRetryAt, &deadAt, &deadReason); err != nil {
		return nil, fmt.Errorf("scan outbox message: %w", err)
	}
	msg.Payload = json.RawMessage(payload)
	msg.Metadata = json.RawMessage(metadata)
	msg.CreatedAt = createdAt.Time
	msg.PublishedAt = publishedAt.Ptr()
	msg.NextRetryAt = nextRetryAt.Ptr()
	msg.DeadLetteredAt = deadAt.Ptr()
	msg.LastError = lastError
	msg.DeadLetterReason = deadReason
	return &msg, nil
}
