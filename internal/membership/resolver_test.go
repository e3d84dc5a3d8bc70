package membership

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func items(names ...string) []LineItem {
	out := make([]LineItem, 0, len(names))
	for _, n := range names {
		out = append(out, LineItem{Name: n})
	}
	return out
}

func TestResolve_Orders(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		name     string
		items    []LineItem
		wantKind Kind
		want     string
	}{
		{name: "single full", items: items("Pay in Full Membership"), wantKind: KindFullOrSponsor, want: "1"},
		{name: "sponsor", items: items("Sponsor Membership - Business"), wantKind: KindFullOrSponsor, want: "1"},
		{name: "single quarterly", items: items("Quarterly Membership"), wantKind: KindInstallmentPlan, want: "0.25"},
		{name: "case insensitive", items: items("pay in full membership"), wantKind: KindFullOrSponsor, want: "1"},
		{
			name:     "mixed order sums every match",
			items:    items("Pay in Full Membership", "Quarterly Membership", "Coffee", "Payment Plan Membership", "Sponsor Membership"),
			wantKind: KindFullOrSponsor,
			want:     "2.5",
		},
		{name: "two installments", items: items("Quarterly Membership", "Quarterly Membership"), wantKind: KindInstallmentPlan, want: "0.5"},
		{name: "nothing matches", items: items("Tote Bag", ""), wantKind: KindNone, want: "0"},
		{name: "empty order", items: []LineItem{}, wantKind: KindNone, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Resolve(Event{Type: EventOrderCreated, LineItems: tt.items})
			assert.Equal(t, tt.wantKind, d.Kind)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(d.Amount), "amount %s, want %s", d.Amount, tt.want)
		})
	}
}

func TestResolve_Payments(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		name     string
		evt      Event
		wantKind Kind
	}{
		{name: "full cents", evt: Event{AmountCents: 10000}, wantKind: KindFullOrSponsor},
		{name: "installment cents", evt: Event{AmountCents: 2750}, wantKind: KindInstallmentPlan},
		{name: "note only", evt: Event{Note: "Payment Plan Membership"}, wantKind: KindInstallmentPlan},
		{name: "note with unmatched cents", evt: Event{AmountCents: 500, Note: "Pay in Full Membership"}, wantKind: KindFullOrSponsor},
		{name: "cents beat a disagreeing note", evt: Event{AmountCents: 2750, Note: "Pay in Full Membership"}, wantKind: KindInstallmentPlan},
		{name: "cents beat a disagreeing note the other way", evt: Event{AmountCents: 10000, Note: "Quarterly Membership"}, wantKind: KindFullOrSponsor},
		{name: "completed status", evt: Event{AmountCents: 10000, Status: "COMPLETED"}, wantKind: KindFullOrSponsor},
		{name: "pending payment", evt: Event{AmountCents: 10000, Status: "PENDING"}, wantKind: KindNone},
		{name: "unrelated payment", evt: Event{AmountCents: 1234, Note: "groceries"}, wantKind: KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.evt.Type = EventPaymentCreated
			d := c.Resolve(tt.evt)
			assert.Equal(t, tt.wantKind, d.Kind)
			assert.True(t, tt.wantKind.Increment().Equal(d.Amount))
		})
	}
}

func TestKindIncrement(t *testing.T) {
	assert.Equal(t, "1", KindFullOrSponsor.Increment().String())
	assert.Equal(t, "0.25", KindInstallmentPlan.Increment().String())
	assert.True(t, KindNone.Increment().IsZero())
	assert.True(t, Decision{Kind: KindNone, Amount: decimal.Zero}.IsZero())
}

func TestResolve_CustomLabels(t *testing.T) {
	c := DefaultClassifier()
	c.FullLabels = []string{"Lifetime Owner"}
	c.InstallmentLabels = nil

	d := c.Resolve(Event{Type: EventOrderCreated, LineItems: items("Lifetime Owner Share", "Quarterly Membership")})
	assert.Equal(t, KindFullOrSponsor, d.Kind)
	assert.Equal(t, "1", d.Amount.String())
}
