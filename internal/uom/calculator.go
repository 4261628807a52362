// Package uom derives per-package weights from product dimensions.
package uom

import (
	"github.com/shopspring/decimal"

	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/products"
)

// boardReamDivisor converts length x width x grams into kilograms per packet
// for board products (paper board ream-sheet convention).
const boardReamDivisor = 15500

// UnitWeight returns the weight of one packet of p in kilograms.
//
// All of length, width and grams must be positive, otherwise the result is
// zero: callers treat zero as "weight cannot be derived, leave it manual",
// never as an error. Any product type other than BOARD, including an empty
// type, uses the reel formula.
func UnitWeight(p products.Product) decimal.Decimal {
	if p.Length <= 0 || p.Width <= 0 || p.Grams <= 0 {
		return decimal.Zero
	}
	w := decimal.NewFromFloat(p.Length).
		Mul(decimal.NewFromFloat(p.Width)).
		Mul(decimal.NewFromFloat(p.Grams))
	if p.Type == products.TypeBoard {
		return w.Div(decimal.NewFromInt(boardReamDivisor))
	}
	return w
}

// RowWeight returns the derived weight of qtyPackets packets of p, rounded to
// four decimal places for storage.
func RowWeight(qtyPackets float64, p products.Product) decimal.Decimal {
	return UnitWeight(p).Mul(decimal.NewFromFloat(qtyPackets)).Round(4)
}

// Round4 rounds to the storage precision for weights.
func Round4(d decimal.Decimal) decimal.Decimal { return d.Round(4) }

// Round2 rounds to the display precision used for money-adjacent values.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
