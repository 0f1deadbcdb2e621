// Package types provides common value types shared across the domain.
package types

import (
	"github.com/shopspring/decimal"
)

// Quantity is a decimal quantity with 3 fractional digits.
// Matches Postgres NUMERIC(15,3) semantics without floating point errors;
// PO line quantities, selected quantities and detail-row quantities all use it.
type Quantity = decimal.Decimal

// QuantityTolerance is the absolute tolerance used when reconciling a line's
// detail rows against its selected quantity.
var QuantityTolerance = decimal.New(1, -3) // 0.001

// NewQuantity creates a Quantity from a float.
// WARNING: prefer ParseQuantity for values received over the wire.
func NewQuantity(f float64) Quantity {
	return decimal.NewFromFloat(f)
}

// ParseQuantity creates a Quantity from its string form.
func ParseQuantity(s string) (Quantity, error) {
	return decimal.NewFromString(s)
}

// MustQuantity creates a Quantity from a string, panics on error.
// Use only for constants and tests.
func MustQuantity(s string) Quantity {
	return decimal.RequireFromString(s)
}

// ZeroQuantity returns the zero Quantity.
func ZeroQuantity() Quantity {
	return decimal.Zero
}

// QuantitiesReconcile reports whether got equals want within QuantityTolerance.
func QuantitiesReconcile(want, got Quantity) bool {
	return want.Sub(got).Abs().LessThanOrEqual(QuantityTolerance)
}

// IsWholeQuantity reports whether q has no fractional part.
// Serial-managed lines require whole quantities (one serial per unit).
func IsWholeQuantity(q Quantity) bool {
	return q.Equal(q.Truncate(0))
}

// DividesEvenly reports whether q splits into packs equal parts within tolerance.
// Used by pack aggregation for non-managed items.
func DividesEvenly(q Quantity, packs int) bool {
	if packs <= 0 {
		return false
	}
	per := q.Div(decimal.NewFromInt(int64(packs))).Round(3)
	return QuantitiesReconcile(q, per.Mul(decimal.NewFromInt(int64(packs))))
}

// Money represents a monetary value with full precision (unit prices, PO totals).
type Money = decimal.Decimal

// ZeroMoney returns the zero Money value.
func ZeroMoney() Money {
	return decimal.Zero
}
