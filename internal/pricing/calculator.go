// Package pricing computes order money totals. It performs no I/O.
package pricing

import (
	"fmt"

	"retailpos/internal/model"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept for every computed amount,
// matching the decimal(18,4) money columns.
const Scale = 4

var (
	hundred = decimal.NewFromInt(100)
)

// Line is one requested order line
type Line struct {
	Quantity     int
	UnitPrice    decimal.Decimal
	TaxRate      decimal.Decimal // percent, 0-100
	DiscountRate decimal.Decimal // percent, 0-100
}

// LineTotals are the computed amounts for a single line
type LineTotals struct {
	Subtotal decimal.Decimal // quantity * unit price
	Discount decimal.Decimal
	Tax      decimal.Decimal // charged on the discounted amount
	Total    decimal.Decimal // subtotal - discount + tax
}

// Totals are the order-level sums
type Totals struct {
	Lines          []LineTotals
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
}

// LineError reports which line failed validation
type LineError struct {
	Index  int
	Field  string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("item %d: %s %s", e.Index, e.Field, e.Reason)
}

// Validate checks quantity > 0, price >= 0 and rates within [0, 100]. Inputs finer
// than Scale are rejected: the stored line could no longer reproduce its total.
func (l Line) Validate(index int) error {
	if l.Quantity <= 0 {
		return &LineError{Index: index, Field: "quantity", Reason: "must be greater than 0"}
	}
	if l.UnitPrice.IsNegative() {
		return &LineError{Index: index, Field: "unit_price", Reason: "must not be negative"}
	}
	if l.TaxRate.IsNegative() || l.TaxRate.GreaterThan(hundred) {
		return &LineError{Index: index, Field: "tax_rate", Reason: "must be between 0 and 100"}
	}
	if l.DiscountRate.IsNegative() || l.DiscountRate.GreaterThan(hundred) {
		return &LineError{Index: index, Field: "discount_rate", Reason: "must be between 0 and 100"}
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{{"unit_price", l.UnitPrice}, {"tax_rate", l.TaxRate}, {"discount_rate", l.DiscountRate}} {
		if !FitsScale(f.value) {
			return &LineError{Index: index, Field: f.name, Reason: fmt.Sprintf("must have at most %d decimal places", Scale)}
		}
	}
	return nil
}

// FitsScale reports whether d is representable in the stored columns without rounding
func FitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}

// ComputeLine applies the single canonical formula used for both line and order totals.
// Each component is rounded once so line totals always add up to the order total.
func ComputeLine(l Line) LineTotals {
	subtotal := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(Scale)
	discount := subtotal.Mul(l.DiscountRate).Div(hundred).Round(Scale)
	tax := subtotal.Sub(discount).Mul(l.TaxRate).Div(hundred).Round(Scale)

	return LineTotals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    subtotal.Sub(discount).Add(tax),
	}
}

// Calculate validates every line and returns per-line and summed totals.
// The first invalid line aborts the calculation.
func Calculate(lines []Line) (Totals, error) {
	totals := Totals{
		Lines:          make([]LineTotals, 0, len(lines)),
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
	}

	for i, l := range lines {
		if err := l.Validate(i); err != nil {
			return Totals{}, err
		}
		lt := ComputeLine(l)
		totals.Lines = append(totals.Lines, lt)
		totals.Subtotal = totals.Subtotal.Add(lt.Subtotal)
		totals.DiscountAmount = totals.DiscountAmount.Add(lt.Discount)
		totals.TaxAmount = totals.TaxAmount.Add(lt.Tax)
	}

	totals.TotalAmount = totals.Subtotal.Sub(totals.DiscountAmount).Add(totals.TaxAmount)
	return totals, nil
}

// PaymentStatus derives unpaid/partial/paid from the amount paid against the total
func PaymentStatus(paid, total decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(total):
		return model.PaymentStatusPaid
	case paid.IsPositive():
		return model.PaymentStatusPartial
	default:
		return model.PaymentStatusUnpaid
	}
}
