package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	lockTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxRetryDelay  = time.Minute
)

// OutboxDispatcher publishes rows that database functions append to an
// outbox table. Rows are claimed with SKIP LOCKED so several instances can
// poll the same table.
type OutboxDispatcher struct {
	pool        *pgxpool.Pool
	publisher   Publisher
	table       string
	interval    time.Duration
	batchSize   int
	maxAttempts int
	logger      *slog.Logger
}

type outboxRow struct {
	ID        int64
	EventID   string
	EventType string
	Payload   []byte
	Attempts  int
}

func NewOutboxDispatcher(pool *pgxpool.Pool, publisher Publisher, table string, interval time.Duration, batch, maxAttempts int, logger *slog.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		pool:        pool,
		publisher:   publisher,
		table:       table,
		interval:    interval,
		batchSize:   batch,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

func (d *OutboxDispatcher) Start(ctx context.Context) {
	go d.loop(ctx)
}

func (d *OutboxDispatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.dispatch(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("outbox dispatch failed", "table", d.table, "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *OutboxDispatcher) dispatch(ctx context.Context) error {
	rows, err := d.lockRows(ctx)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := d.publishOne(ctx, row); err != nil {
			d.logger.Warn("publish event failed", "table", d.table, "event_id", row.EventID, "attempts", row.Attempts+1, "err", err)
		}
	}
	return nil
}

func (d *OutboxDispatcher) lockRows(ctx context.Context) ([]outboxRow, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		SELECT id, event_id::text, event_type, payload, attempts
		FROM %s
		WHERE status IN ('pending', 'processing') AND next_retry <= NOW()
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, d.table)

	rows, err := tx.Query(ctx, query, d.batchSize)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}

	var items []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.ID, &row.EventID, &row.EventType, &row.Payload, &row.Attempts); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(items))
	for _, row := range items {
		ids = append(ids, row.ID)
	}
	claim := fmt.Sprintf(`
		UPDATE %s
		SET status = 'processing', next_retry = $2, updated_at = NOW()
		WHERE id = ANY($1)`, d.table)
	if _, err := tx.Exec(ctx, claim, ids, time.Now().Add(lockTimeout)); err != nil {
		return nil, fmt.Errorf("claim outbox rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

func (d *OutboxDispatcher) publishOne(ctx context.Context, row outboxRow) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := Message{ID: row.EventID, Type: row.EventType, Payload: row.Payload}
	if err := d.publisher.Publish(pubCtx, msg); err != nil {
		return d.markFailure(ctx, row, err)
	}

	update := fmt.Sprintf(`
		UPDATE %s
		SET status = 'sent', updated_at = NOW()
		WHERE id = $1`, d.table)
	_, err := d.pool.Exec(ctx, update, row.ID)
	return err
}

func (d *OutboxDispatcher) markFailure(ctx context.Context, row outboxRow, publishErr error) error {
	attempts := row.Attempts + 1
	status := nextStatus(attempts, d.maxAttempts)
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2,
		    attempts = $3,
		    next_retry = $4,
		    updated_at = NOW()
		WHERE id = $1`, d.table)
	if _, err := d.pool.Exec(ctx, query, row.ID, status, attempts, time.Now().Add(retryDelay(attempts))); err != nil {
		return fmt.Errorf("update retry: %w", err)
	}
	return publishErr
}

// nextStatus parks a row as failed once it used up its attempts. A
// non-positive limit retries forever.
func nextStatus(attempts, maxAttempts int) string {
	if maxAttempts > 0 && attempts >= maxAttempts {
		return "failed"
	}
	return "pending"
}

func retryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 6 {
		attempts = 6
	}
	delay := time.Duration(1<<attempts) * time.Second
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
