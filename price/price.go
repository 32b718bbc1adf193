// Package price implements the fixed-point price representation used
// throughout the pipeline. ITCH prices arrive on the wire already
// scaled by 10^4; keeping that scale as the in-memory representation
// (rather than converting to floating point, as the original research
// code did) makes map keys exact integers instead of float bit patterns
// that can drift with every re-rounding.
package price

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// scale is ITCH's fixed-point denominator: a wire value of 100000
// represents $10.0000.
const scale = 10000

// Price is a price scaled by 10^4, matching the ITCH 5.0 wire format
// exactly so decoded values need no conversion before use as map keys.
type Price int64

// FromWire widens a raw 4-byte ITCH price field to a Price. No scaling
// is applied; the wire format already carries the 10^4 scale.
func FromWire(raw uint32) Price { return Price(raw) }

// Decimal renders p as a 4-decimal-place decimal.Decimal, for CSV output
// and any downstream arithmetic that wants exact decimal semantics.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p), 0).Shift(-4)
}

// String formats p the way the stage-1/stage-2 CSV writers do: fixed to
// 4 decimal places.
func (p Price) String() string {
	return p.Decimal().StringFixed(4)
}

// Parse reads a decimal string (e.g. "10.0500") back into a Price,
// rounding to the nearest 10^-4. Used when replaying a grouped CSV in
// stage 2, where prices arrive as text.
func Parse(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("price: parse %q: %w", s, err)
	}
	scaled := d.Shift(4).Round(0)
	return Price(scaled.IntPart()), nil
}
