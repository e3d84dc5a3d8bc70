package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Counter interface {
	IncrementBy(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
}

type Ledger interface {
	RecordPayment(ctx context.Context, rec PaymentRecord) error
}

type OrderFetcher interface {
	RetrieveOrder(ctx context.Context, orderID string) (Order, error)
}

type Outcome string

const (
	OutcomeIgnored      Outcome = "ignored"
	OutcomeNoMembership Outcome = "no_membership"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeUpdated      Outcome = "updated"
)

type Result struct {
	Outcome  Outcome
	Event    Event
	Decision Decision
	Total    decimal.Decimal
}

var errOrderLookupDisabled = errors.New("order lookup not configured")

// Processor turns one webhook delivery into at most one counter increment.
// Each call is a single sequential pass; nothing is retried.
type Processor struct {
	classifier Classifier
	guard      *DuplicateGuard
	counter    Counter
	ledger     Ledger
	orders     OrderFetcher
	logger     *slog.Logger
}

func NewProcessor(classifier Classifier, guard *DuplicateGuard, counter Counter, ledger Ledger, orders OrderFetcher, logger *slog.Logger) *Processor {
	return &Processor{
		classifier: classifier,
		guard:      guard,
		counter:    counter,
		ledger:     ledger,
		orders:     orders,
		logger:     logger,
	}
}

func (p *Processor) Handle(ctx context.Context, body []byte) (Result, error) {
	evt, err := Normalize(body)
	if err != nil {
		return Result{}, err
	}
	res := Result{Outcome: OutcomeIgnored, Event: evt}
	if evt.Type == EventUnknown {
		return res, nil
	}

	if evt.NeedsOrderLookup() {
		if evt, err = p.lookupOrder(ctx, evt); err != nil {
			return res, err
		}
		res.Event = evt
	}

	res.Decision = p.classifier.Resolve(evt)
	if res.Decision.IsZero() {
		res.Outcome = OutcomeNoMembership
		return res, nil
	}

	dup, err := p.guard.IsDuplicate(ctx, evt, res.Decision)
	if err != nil {
		return res, err
	}
	if dup {
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	total, err := p.counter.IncrementBy(ctx, res.Decision.Amount)
	if err != nil {
		return res, fmt.Errorf("%w: increment member count: %w", ErrDataStore, err)
	}
	res.Outcome = OutcomeUpdated
	res.Total = total

	p.record(ctx, evt, res.Decision)
	return res, nil
}

func (p *Processor) lookupOrder(ctx context.Context, evt Event) (Event, error) {
	if p.orders == nil {
		return evt, fmt.Errorf("%w: order %s: %w", ErrUpstreamFetch, evt.OrderID, errOrderLookupDisabled)
	}
	order, err := p.orders.RetrieveOrder(ctx, evt.OrderID)
	if err != nil {
		return evt, fmt.Errorf("%w: order %s: %w", ErrUpstreamFetch, evt.OrderID, err)
	}
	evt.LineItems = make([]LineItem, 0, len(order.LineItems))
	evt.LineItems = append(evt.LineItems, order.LineItems...)
	if evt.CustomerID == "" {
		evt.CustomerID = order.CustomerID
	}
	return evt, nil
}

// record writes the ledger entry the duplicate guard reads back. The counter
// has already moved, so a failure here is only logged.
func (p *Processor) record(ctx context.Context, evt Event, d Decision) {
	if p.ledger == nil {
		return
	}
	rec := PaymentRecord{
		PaymentID:   evt.ReferenceID(),
		OrderID:     evt.OrderID,
		CustomerID:  evt.CustomerID,
		EventID:     evt.EventID,
		Kind:        d.Kind,
		AmountCents: evt.AmountCents,
		Increment:   d.Amount,
		ProcessedAt: time.Now().UTC(),
	}
	if rec.PaymentID == "" {
		rec.PaymentID = uuid.NewString()
	}
	if err := p.ledger.RecordPayment(ctx, rec); err != nil {
		p.logger.Error("record processed payment", "payment_id", rec.PaymentID, "customer_id", rec.CustomerID, "err", err)
	}
}
