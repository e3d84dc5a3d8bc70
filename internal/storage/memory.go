package storage

import (
	"context"
	"sync"

	"threesisters/members-service/internal/membership"

	"github.com/shopspring/decimal"
)

type CountListener func(increment, total decimal.Decimal)

// MemoryStore is a process-local counter and ledger for development and
// tests. It satisfies the same interfaces as Counter and Ledger.
type MemoryStore struct {
	mu        sync.Mutex
	total     decimal.Decimal
	payments  map[string]membership.PaymentRecord
	order     []string
	listeners []CountListener
}

func NewMemoryStore(initial decimal.Decimal) *MemoryStore {
	return &MemoryStore{
		total:    initial,
		payments: make(map[string]membership.PaymentRecord),
	}
}

// OnIncrement registers fn to be called after every successful increment.
func (m *MemoryStore) OnIncrement(fn CountListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *MemoryStore) IncrementBy(_ context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrNonPositiveIncrement
	}

	m.mu.Lock()
	m.total = m.total.Add(amount)
	total := m.total
	listeners := append([]CountListener(nil), m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(amount, total)
	}
	return total, nil
}

func (m *MemoryStore) Current(_ context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total, nil
}

func (m *MemoryStore) RecordPayment(_ context.Context, rec membership.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[rec.PaymentID]; ok {
		return nil
	}
	m.payments[rec.PaymentID] = rec
	m.order = append(m.order, rec.PaymentID)
	return nil
}

func (m *MemoryStore) ProcessedPayments(_ context.Context, customerID string) ([]membership.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []membership.PaymentRecord
	for _, id := range m.order {
		if rec := m.payments[id]; rec.CustomerID == customerID {
			result = append(result, rec)
		}
	}
	return result, nil
}
