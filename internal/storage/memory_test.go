package storage

import (
	"context"
	"sync"
	"testing"

	"threesisters/members-service/internal/membership"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(decimal.Zero)
	quarter := decimal.New(25, -2)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.IncrementBy(ctx, quarter)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total, err := store.Current(ctx)
	require.NoError(t, err)
	assert.True(t, quarter.Mul(decimal.NewFromInt(n)).Equal(total), "total %s", total)
}

func TestMemoryStore_RejectsNonPositive(t *testing.T) {
	store := NewMemoryStore(decimal.NewFromInt(5))

	_, err := store.IncrementBy(context.Background(), decimal.Zero)
	assert.ErrorIs(t, err, ErrNonPositiveIncrement)
	_, err = store.IncrementBy(context.Background(), decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrNonPositiveIncrement)

	total, _ := store.Current(context.Background())
	assert.Equal(t, "5", total.String())
}

func TestMemoryStore_Listener(t *testing.T) {
	store := NewMemoryStore(decimal.NewFromInt(10))

	var got []string
	store.OnIncrement(func(increment, total decimal.Decimal) {
		got = append(got, increment.String()+"->"+total.String())
	})

	_, err := store.IncrementBy(context.Background(), decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = store.IncrementBy(context.Background(), decimal.New(25, -2))
	require.NoError(t, err)

	assert.Equal(t, []string{"1->11", "0.25->11.25"}, got)
}

func TestMemoryStore_Ledger(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(decimal.Zero)

	require.NoError(t, store.RecordPayment(ctx, membership.PaymentRecord{PaymentID: "p1", CustomerID: "c1", Kind: membership.KindInstallmentPlan}))
	require.NoError(t, store.RecordPayment(ctx, membership.PaymentRecord{PaymentID: "p2", CustomerID: "c2", Kind: membership.KindFullOrSponsor}))
	require.NoError(t, store.RecordPayment(ctx, membership.PaymentRecord{PaymentID: "p3", CustomerID: "c1", Kind: membership.KindFullOrSponsor}))
	// same payment id again is a no-op
	require.NoError(t, store.RecordPayment(ctx, membership.PaymentRecord{PaymentID: "p1", CustomerID: "c1", Kind: membership.KindFullOrSponsor}))

	records, err := store.ProcessedPayments(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "p1", records[0].PaymentID)
	assert.Equal(t, membership.KindInstallmentPlan, records[0].Kind)
	assert.Equal(t, "p3", records[1].PaymentID)

	records, err = store.ProcessedPayments(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, records)
}
