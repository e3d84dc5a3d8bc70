package membership

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrUpstreamFetch    = errors.New("upstream fetch failed")
	ErrDataStore        = errors.New("data store failure")
)

type EventType string

const (
	EventUnknown        EventType = "unknown"
	EventOrderCreated   EventType = "order.created"
	EventPaymentCreated EventType = "payment.created"
)

type LineItem struct {
	Name string `json:"name"`
}

// Event is the canonical form of a membership-related webhook delivery.
// Order-shaped events carry LineItems; payment-shaped events carry
// AmountCents, Note and Status.
type Event struct {
	Type       EventType
	EventID    string
	CustomerID string
	OrderID    string
	PaymentID  string

	LineItems []LineItem

	AmountCents int64
	Note        string
	Status      string
}

// NeedsOrderLookup reports whether the delivery only referenced an order id
// and the line items must be fetched before resolving.
func (e Event) NeedsOrderLookup() bool {
	return e.Type == EventOrderCreated && e.LineItems == nil && e.OrderID != ""
}

// ReferenceID is the most specific upstream identifier of the event.
func (e Event) ReferenceID() string {
	switch {
	case e.PaymentID != "":
		return e.PaymentID
	case e.OrderID != "":
		return e.OrderID
	default:
		return e.EventID
	}
}

type Order struct {
	ID         string
	CustomerID string
	LineItems  []LineItem
}

// PaymentRecord is a payment that has already been counted, as seen by a
// PaymentHistory.
type PaymentRecord struct {
	PaymentID   string
	OrderID     string
	CustomerID  string
	EventID     string
	Kind        Kind
	AmountCents int64
	Increment   decimal.Decimal
	ProcessedAt time.Time
}
