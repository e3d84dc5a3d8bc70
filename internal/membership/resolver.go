package membership

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindNone            Kind = "none"
	KindFullOrSponsor   Kind = "full_or_sponsor"
	KindInstallmentPlan Kind = "installment_plan"
)

const (
	FullPaymentCents int64 = 100_00
	InstallmentCents int64 = 27_50

	paymentCompleted = "COMPLETED"
)

var (
	fullIncrement        = decimal.NewFromInt(1)
	installmentIncrement = decimal.New(25, -2)
)

// Increment is the member-count share of one purchase of this kind.
func (k Kind) Increment() decimal.Decimal {
	switch k {
	case KindFullOrSponsor:
		return fullIncrement
	case KindInstallmentPlan:
		return installmentIncrement
	default:
		return decimal.Zero
	}
}

type Decision struct {
	Kind   Kind
	Amount decimal.Decimal
}

func (d Decision) IsZero() bool {
	return !d.Amount.IsPositive()
}

// Classifier maps product labels and payment amounts to membership kinds.
type Classifier struct {
	FullLabels        []string
	InstallmentLabels []string
	FullCents         int64
	InstallmentCents  int64
}

func DefaultClassifier() Classifier {
	return Classifier{
		FullLabels:        []string{"Pay in Full Membership", "Sponsor Membership"},
		InstallmentLabels: []string{"Quarterly Membership", "Payment Plan Membership"},
		FullCents:         FullPaymentCents,
		InstallmentCents:  InstallmentCents,
	}
}

// Resolve decides how much an event grows the member count. Orders sum over
// their line items; payments match by cents first and by note second.
func (c Classifier) Resolve(evt Event) Decision {
	if evt.LineItems != nil {
		return c.resolveOrder(evt.LineItems)
	}
	if evt.Status != "" && !strings.EqualFold(evt.Status, paymentCompleted) {
		return Decision{Kind: KindNone, Amount: decimal.Zero}
	}
	kind := c.classifyCents(evt.AmountCents)
	if kind == KindNone {
		kind = c.classifyLabel(evt.Note)
	}
	return Decision{Kind: kind, Amount: kind.Increment()}
}

func (c Classifier) resolveOrder(items []LineItem) Decision {
	var full, installment int64
	for _, item := range items {
		switch c.classifyLabel(item.Name) {
		case KindFullOrSponsor:
			full++
		case KindInstallmentPlan:
			installment++
		}
	}

	d := Decision{Kind: KindNone, Amount: decimal.Zero}
	switch {
	case full > 0:
		d.Kind = KindFullOrSponsor
	case installment > 0:
		d.Kind = KindInstallmentPlan
	}
	d.Amount = fullIncrement.Mul(decimal.NewFromInt(full)).
		Add(installmentIncrement.Mul(decimal.NewFromInt(installment)))
	return d
}

func (c Classifier) classifyCents(cents int64) Kind {
	switch {
	case cents <= 0:
		return KindNone
	case cents == c.FullCents:
		return KindFullOrSponsor
	case cents == c.InstallmentCents:
		return KindInstallmentPlan
	default:
		return KindNone
	}
}

func (c Classifier) classifyLabel(text string) Kind {
	if text == "" {
		return KindNone
	}
	text = strings.ToLower(text)
	if containsAny(text, c.FullLabels) {
		return KindFullOrSponsor
	}
	if containsAny(text, c.InstallmentLabels) {
		return KindInstallmentPlan
	}
	return KindNone
}

func containsAny(text string, labels []string) bool {
	for _, label := range labels {
		if label != "" && strings.Contains(text, strings.ToLower(label)) {
			return true
		}
	}
	return false
}
