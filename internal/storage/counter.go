package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrNonPositiveIncrement = errors.New("increment must be positive")

// Counter is the member-owner count. Writes go through the
// increment_member_count function only.
type Counter struct {
	pool *pgxpool.Pool
}

func NewCounter(pool *pgxpool.Pool) *Counter {
	return &Counter{pool: pool}
}

func (c *Counter) IncrementBy(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrNonPositiveIncrement
	}

	var raw string
	err := c.pool.QueryRow(ctx,
		`SELECT increment_member_count($1::numeric)::text`,
		amount.String(),
	).Scan(&raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("increment member count: %w", err)
	}
	return parseTotal(raw)
}

func (c *Counter) Current(ctx context.Context) (decimal.Decimal, error) {
	var raw string
	err := c.pool.QueryRow(ctx, `
		SELECT total::text FROM member_count WHERE id = 1`,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("select member count: %w", err)
	}
	return parseTotal(raw)
}

func parseTotal(raw string) (decimal.Decimal, error) {
	total, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse member count %q: %w", raw, err)
	}
	return total, nil
}
