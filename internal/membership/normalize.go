package membership

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope keeps everything but the type raw, so deliveries of types this
// service does not handle are never rejected for their shape.
type envelope struct {
	Type    json.RawMessage `json:"type"`
	EventID json.RawMessage `json:"event_id"`
	Data    json.RawMessage `json:"data"`
}

type dataWire struct {
	Object json.RawMessage `json:"object"`
}

type moneyWire struct {
	Amount int64 `json:"amount"`
}

type paymentWire struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	CustomerID  string     `json:"customer_id"`
	AmountMoney *moneyWire `json:"amount_money"`
	Note        *string    `json:"note"`
	Status      string     `json:"status"`
}

type orderWire struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	LineItems  []LineItem `json:"line_items"`
}

// objectWire is data.object. Payments show up either nested under "payment"
// or flattened onto the object itself, so the flat fields are embedded.
type objectWire struct {
	Order   *orderWire   `json:"order"`
	OrderID string       `json:"order_id"`
	Payment *paymentWire `json:"payment"`
	paymentWire
}

// Normalize parses a raw webhook body into an Event. Unrecognised event types
// come back as EventUnknown with a nil error; ErrMalformedPayload is returned
// only when the body is not JSON or a recognised type lacks its object.
func Normalize(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	evt := Event{Type: EventType(rawString(env.Type)), EventID: rawString(env.EventID)}
	if evt.Type != EventOrderCreated && evt.Type != EventPaymentCreated {
		evt.Type = EventUnknown
		return evt, nil
	}

	var data dataWire
	if err := json.Unmarshal(nullIfEmpty(env.Data), &data); err != nil {
		return Event{}, fmt.Errorf("%w: %s data: %v", ErrMalformedPayload, evt.Type, err)
	}
	raw := bytes.TrimSpace(data.Object)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Event{}, fmt.Errorf("%w: %s without data.object", ErrMalformedPayload, evt.Type)
	}
	var obj objectWire
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Event{}, fmt.Errorf("%w: data.object: %v", ErrMalformedPayload, err)
	}

	if evt.Type == EventOrderCreated {
		return normalizeOrder(evt, obj)
	}
	return normalizePayment(evt, obj)
}

// rawString returns a JSON string value, or the literal text of a number.
// Anything else reads as empty.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func nullIfEmpty(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

func normalizeOrder(evt Event, obj objectWire) (Event, error) {
	switch {
	case obj.Order != nil:
		evt.OrderID = obj.Order.ID
		evt.CustomerID = obj.Order.CustomerID
		evt.LineItems = make([]LineItem, 0, len(obj.Order.LineItems))
		evt.LineItems = append(evt.LineItems, obj.Order.LineItems...)
		if evt.OrderID == "" {
			evt.OrderID = obj.OrderID
		}
	case obj.OrderID != "":
		evt.OrderID = obj.OrderID
	default:
		return Event{}, fmt.Errorf("%w: order.created without order", ErrMalformedPayload)
	}
	return evt, nil
}

func normalizePayment(evt Event, obj objectWire) (Event, error) {
	p := obj.Payment
	if p == nil {
		if obj.AmountMoney == nil && obj.Note == nil {
			return Event{}, fmt.Errorf("%w: payment.created without payment", ErrMalformedPayload)
		}
		p = &obj.paymentWire
	}

	evt.PaymentID = p.ID
	evt.OrderID = p.OrderID
	if evt.OrderID == "" {
		evt.OrderID = obj.OrderID
	}
	evt.CustomerID = p.CustomerID
	evt.Status = p.Status
	if p.AmountMoney != nil {
		evt.AmountCents = p.AmountMoney.Amount
	}
	if p.Note != nil {
		evt.Note = *p.Note
	}
	return evt, nil
}
