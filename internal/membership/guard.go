package membership

import (
	"context"
	"fmt"
	"log/slog"
)

type PaymentHistory interface {
	ProcessedPayments(ctx context.Context, customerID string) ([]PaymentRecord, error)
}

type GuardOption func(*DuplicateGuard)

// SkipCurrentPayment is for histories read from the payment processor, which
// already list the payment being delivered. Records sharing the event's
// payment or order id are ignored.
func SkipCurrentPayment() GuardOption {
	return func(g *DuplicateGuard) { g.skipCurrent = true }
}

// DuplicateGuard keeps repeated installment payments from the same customer
// from being counted twice. The check and the later increment do not share a
// transaction, so concurrent redeliveries can still slip through.
type DuplicateGuard struct {
	history          PaymentHistory
	installmentCents int64
	skipCurrent      bool
	logger           *slog.Logger
}

func NewDuplicateGuard(history PaymentHistory, installmentCents int64, logger *slog.Logger, opts ...GuardOption) *DuplicateGuard {
	g := &DuplicateGuard{
		history:          history,
		installmentCents: installmentCents,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *DuplicateGuard) IsDuplicate(ctx context.Context, evt Event, d Decision) (bool, error) {
	if d.Kind != KindInstallmentPlan {
		return false, nil
	}
	if evt.CustomerID == "" {
		g.logger.Warn("installment payment without customer id, deduplication skipped",
			"reference_id", evt.ReferenceID(), "event_type", evt.Type)
		return false, nil
	}

	records, err := g.history.ProcessedPayments(ctx, evt.CustomerID)
	if err != nil {
		return false, fmt.Errorf("%w: payment history for %s: %w", ErrDataStore, evt.CustomerID, err)
	}

	matches := 0
	for _, rec := range records {
		if g.skipCurrent && isCurrentPayment(evt, rec) {
			continue
		}
		if rec.Kind == KindInstallmentPlan || rec.AmountCents == g.installmentCents {
			matches++
		}
	}
	// An id-less delivery cannot be told apart from the history, which already
	// holds it, so one matching record is taken to be the delivery itself.
	if g.skipCurrent && evt.PaymentID == "" && evt.OrderID == "" && matches > 0 {
		matches--
	}
	return matches > 0, nil
}

func isCurrentPayment(evt Event, rec PaymentRecord) bool {
	if evt.PaymentID != "" && rec.PaymentID == evt.PaymentID {
		return true
	}
	return evt.OrderID != "" && rec.OrderID == evt.OrderID
}
