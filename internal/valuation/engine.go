package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/products"
	"github.com/papyrus-erp/papyrus-erp/internal/uom"
)

// UnitCost derives the per-unit cost of a product in the requested basis from
// its cost-bearing entries, which must be ordered oldest first.
//
// A rate quoted on one basis converts to the other through the product's unit
// weight. When the unit weight cannot be derived (missing dimensions) the
// conversion yields zero: the row shows no value rather than a wrong one.
func UnitCost(entries []CostEntry, mode CostMode, basis Basis, product products.Product) float64 {
	if len(entries) == 0 {
		return 0
	}
	switch mode {
	case CostWeightedAverage:
		return weightedAverage(entries, basis, product)
	default:
		return convertRate(entries[len(entries)-1], basis, product)
	}
}

// weightedAverage is sum(rate_i * extent_i) / sum(extent_i) with every rate
// first converted to the requested basis. Reversal entries carry negative
// extents and net themselves out of both sums.
func weightedAverage(entries []CostEntry, basis Basis, product products.Product) float64 {
	sumValue := decimal.Zero
	sumExtent := decimal.Zero
	for _, e := range entries {
		rate := convertRate(e, basis, product)
		extent := e.QtyDelta
		if basis == BasisWeight {
			extent = e.WeightDelta
		}
		d := decimal.NewFromFloat(extent)
		sumValue = sumValue.Add(decimal.NewFromFloat(rate).Mul(d))
		sumExtent = sumExtent.Add(d)
	}
	if sumExtent.Sign() <= 0 {
		return 0
	}
	out, _ := sumValue.Div(sumExtent).Round(4).Float64()
	return out
}

// convertRate moves an entry's rate into the requested basis.
func convertRate(e CostEntry, basis Basis, product products.Product) float64 {
	sameBasis := (basis == BasisQuantity && e.RateBasis == inventory.RateBasisQuantity) ||
		(basis == BasisWeight && e.RateBasis != inventory.RateBasisQuantity)
	if sameBasis {
		return e.Rate
	}
	unitWeight := uom.UnitWeight(product)
	if unitWeight.IsZero() {
		return 0
	}
	rate := decimal.NewFromFloat(e.Rate)
	var converted decimal.Decimal
	if basis == BasisQuantity {
		// per-kg rate times kg per packet
		converted = rate.Mul(unitWeight)
	} else {
		// per-packet rate spread over kg per packet
		converted = rate.Div(unitWeight)
	}
	out, _ := converted.Round(4).Float64()
	return out
}

// Valuate fills UnitCost and TotalValue on every row from the per-product
// cost entries and returns the aggregate totals.
func Valuate(rows []Row, entries map[int64][]CostEntry, mode CostMode, basis Basis) Totals {
	var totals Totals
	totalValue := decimal.Zero
	for i := range rows {
		row := &rows[i]
		row.UnitCost = UnitCost(entries[row.ProductID], mode, basis, row.Product)

		extent := row.QtyPackets
		if basis == BasisWeight {
			extent = row.WeightKg
		}
		value := decimal.NewFromFloat(row.UnitCost).Mul(decimal.NewFromFloat(extent)).Round(2)
		row.TotalValue, _ = value.Float64()

		totals.QtyPackets += row.QtyPackets
		totals.WeightKg += row.WeightKg
		totalValue = totalValue.Add(value)
		totals.Rows++
	}
	totals.TotalValue, _ = totalValue.Round(2).Float64()
	return totals
}
