// Package tax computes GST splits for invoice subtotals.
package tax

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Mode selects the jurisdiction of a sale.
type Mode string

const (
	// ModeIntrastate splits the rate into equal CGST and SGST halves.
	ModeIntrastate Mode = "INTRASTATE"
	// ModeInterstate applies the full rate as IGST.
	ModeInterstate Mode = "INTERSTATE"
)

var (
	// ErrInvalidMode indicates an unrecognised jurisdiction mode.
	ErrInvalidMode = errors.New("tax: invalid mode")
	// ErrNegativeSubtotal indicates a subtotal below zero.
	ErrNegativeSubtotal = errors.New("tax: subtotal must not be negative")
	// ErrInvalidRate indicates a rate outside 0-100.
	ErrInvalidRate = errors.New("tax: rate must be between 0 and 100")
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// Breakdown is the tax split for one subtotal. CGST/SGST and IGST are
// mutually exclusive: whichever the mode does not populate stays zero.
type Breakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	RatePercent decimal.Decimal `json:"rate_percent"`
	Mode        Mode            `json:"mode"`
	CGST        decimal.Decimal `json:"cgst"`
	SGST        decimal.Decimal `json:"sgst"`
	IGST        decimal.Decimal `json:"igst"`
	Total       decimal.Decimal `json:"total"`
}

// Compute splits ratePercent over subtotal according to mode. Amounts
// are exact; callers round once at the persistence or display boundary
// via Rounded.
func Compute(subtotal, ratePercent decimal.Decimal, mode Mode) (Breakdown, error) {
	if subtotal.IsNegative() {
		return Breakdown{}, ErrNegativeSubtotal
	}
	if ratePercent.IsNegative() || ratePercent.GreaterThan(hundred) {
		return Breakdown{}, ErrInvalidRate
	}

	b := Breakdown{
		Subtotal:    subtotal,
		RatePercent: ratePercent,
		Mode:        mode,
	}

	switch mode {
	case ModeIntrastate:
		half := subtotal.Mul(ratePercent.Div(two)).Div(hundred)
		b.CGST = half
		b.SGST = half
	case ModeInterstate:
		b.IGST = subtotal.Mul(ratePercent).Div(hundred)
	default:
		return Breakdown{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	b.Total = subtotal.Add(b.TaxAmount())
	return b, nil
}

// TaxAmount returns the populated tax portion of the breakdown.
func (b Breakdown) TaxAmount() decimal.Decimal {
	if b.Mode == ModeInterstate {
		return b.IGST
	}
	return b.CGST.Add(b.SGST)
}

// Rounded returns the breakdown with every amount rounded half-up to
// two places and the total recomputed from the rounded parts, so that
// total = subtotal + tax still holds after rounding.
func (b Breakdown) Rounded() Breakdown {
	r := b
	r.Subtotal = b.Subtotal.Round(2)
	r.CGST = b.CGST.Round(2)
	r.SGST = b.SGST.Round(2)
	r.IGST = b.IGST.Round(2)
	r.Total = r.Subtotal.Add(r.TaxAmount())
	return r
}
