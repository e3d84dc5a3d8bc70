package storage

import (
	"context"
	"fmt"

	"threesisters/members-service/internal/membership"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger keeps the payments that moved the counter, keyed by the upstream
// payment (or order) id.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) RecordPayment(ctx context.Context, rec membership.PaymentRecord) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO membership_payments (payment_id, order_id, customer_id, event_id, kind, amount_cents, increment, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8)
		ON CONFLICT (payment_id) DO NOTHING`,
		rec.PaymentID, rec.OrderID, rec.CustomerID, rec.EventID, string(rec.Kind), rec.AmountCents, rec.Increment.String(), rec.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert membership payment: %w", err)
	}
	return nil
}

func (l *Ledger) ProcessedPayments(ctx context.Context, customerID string) ([]membership.PaymentRecord, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT payment_id, order_id, customer_id, event_id, kind, amount_cents, increment::text, processed_at
		FROM membership_payments
		WHERE customer_id = $1
		ORDER BY processed_at`, customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query membership payments: %w", err)
	}
	defer rows.Close()

	var result []membership.PaymentRecord
	for rows.Next() {
		var (
			rec       membership.PaymentRecord
			kind      string
			increment string
		)
		if err := rows.Scan(&rec.PaymentID, &rec.OrderID, &rec.CustomerID, &rec.EventID, &kind, &rec.AmountCents, &increment, &rec.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan membership payment: %w", err)
		}
		rec.Kind = membership.Kind(kind)
		if rec.Increment, err = parseTotal(increment); err != nil {
			return nil, fmt.Errorf("membership payment %s: %w", rec.PaymentID, err)
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate membership payments: %w", err)
	}
	return result, nil
}
