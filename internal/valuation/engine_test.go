package valuation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/products"
)

func costFixture() []CostEntry {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return []CostEntry{
		{ProductID: 1, Rate: 6, RateBasis: inventory.RateBasisQuantity, QtyDelta: 10, WeightDelta: 100, PostedAt: base},
		{ProductID: 1, Rate: 8, RateBasis: inventory.RateBasisQuantity, QtyDelta: 10, WeightDelta: 100, PostedAt: base.AddDate(0, 0, 5)},
	}
}

func TestUnitCostWeightedAverage(t *testing.T) {
	// (6x10 + 8x10) / 20 = 7.0
	cost := UnitCost(costFixture(), CostWeightedAverage, BasisQuantity, products.Product{})
	require.InDelta(t, 7.0, cost, 1e-9)
}

func TestUnitCostLatest(t *testing.T) {
	cost := UnitCost(costFixture(), CostLatest, BasisQuantity, products.Product{})
	require.InDelta(t, 8.0, cost, 1e-9)
}

func TestUnitCostEmptyHistory(t *testing.T) {
	cost := UnitCost(nil, CostLatest, BasisQuantity, products.Product{})
	require.Zero(t, cost)
}

func TestUnitCostConvertsBasisThroughUnitWeight(t *testing.T) {
	// reel 1x2x10 -> 20 kg per packet
	reel := products.Product{Length: 1, Width: 2, Grams: 10, Type: products.TypeReel}
	entries := []CostEntry{{Rate: 3, RateBasis: inventory.RateBasisWeight, QtyDelta: 5, WeightDelta: 100}}

	perPacket := UnitCost(entries, CostLatest, BasisQuantity, reel)
	require.InDelta(t, 60, perPacket, 1e-9) // 3 per kg x 20 kg

	perKg := UnitCost([]CostEntry{{Rate: 60, RateBasis: inventory.RateBasisQuantity, QtyDelta: 5, WeightDelta: 100}}, CostLatest, BasisWeight, reel)
	require.InDelta(t, 3, perKg, 1e-9)
}

func TestUnitCostUnconvertibleYieldsZero(t *testing.T) {
	// no dimensions: cross-basis conversion cannot be derived
	entries := []CostEntry{{Rate: 3, RateBasis: inventory.RateBasisWeight, QtyDelta: 5, WeightDelta: 100}}
	cost := UnitCost(entries, CostLatest, BasisQuantity, products.Product{})
	require.Zero(t, cost)
}

func TestWeightedAverageNetsOutReversals(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entries := []CostEntry{
		{Rate: 6, RateBasis: inventory.RateBasisQuantity, QtyDelta: 10, PostedAt: base},
		{Rate: 6, RateBasis: inventory.RateBasisQuantity, QtyDelta: -10, PostedAt: base.AddDate(0, 0, 1)},
		{Rate: 9, RateBasis: inventory.RateBasisQuantity, QtyDelta: 10, PostedAt: base.AddDate(0, 0, 2)},
	}
	cost := UnitCost(entries, CostWeightedAverage, BasisQuantity, products.Product{})
	require.InDelta(t, 9.0, cost, 1e-9)
}

func TestValuateFillsRowsAndTotals(t *testing.T) {
	rows := []Row{
		{StoreID: 1, ProductID: 1, QtyPackets: 5, WeightKg: 50},
		{StoreID: 2, ProductID: 1, QtyPackets: 15, WeightKg: 150},
	}
	entries := map[int64][]CostEntry{1: costFixture()}

	totals := Valuate(rows, entries, CostWeightedAverage, BasisQuantity)
	require.InDelta(t, 7.0, rows[0].UnitCost, 1e-9)
	require.InDelta(t, 35.0, rows[0].TotalValue, 1e-9)
	require.InDelta(t, 105.0, rows[1].TotalValue, 1e-9)
	require.InDelta(t, 140.0, totals.TotalValue, 1e-9)
	require.InDelta(t, 20, totals.QtyPackets, 1e-9)
	require.Equal(t, 2, totals.Rows)
}

// memValuationRepo drives the service paths without Postgres.
type memValuationRepo struct {
	rows    []Row
	entries map[int64][]CostEntry
	calls   int
}

func (m *memValuationRepo) ListRows(_ context.Context, q Query) ([]Row, int, error) {
	m.calls++
	rows := make([]Row, len(m.rows))
	copy(rows, m.rows)
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, len(m.rows), nil
}

func (m *memValuationRepo) CostEntries(_ context.Context, ids []int64, _ time.Time) (map[int64][]CostEntry, error) {
	out := map[int64][]CostEntry{}
	for _, id := range ids {
		out[id] = m.entries[id]
	}
	return out, nil
}

func TestReportTotalsIndependentOfPagination(t *testing.T) {
	repo := &memValuationRepo{
		rows: []Row{
			{StoreID: 1, ProductID: 1, QtyPackets: 5, WeightKg: 50},
			{StoreID: 2, ProductID: 1, QtyPackets: 15, WeightKg: 150},
		},
		entries: map[int64][]CostEntry{1: costFixture()},
	}
	svc := NewService(repo)

	report, err := svc.Report(context.Background(), Query{Mode: CostWeightedAverage, Basis: BasisQuantity, Limit: 1, Page: 1})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	require.Equal(t, 2, report.Total)
	// totals cover both rows even though the page holds one
	require.InDelta(t, 140.0, report.Totals.TotalValue, 1e-9)
	require.Equal(t, 2, report.Totals.Rows)
}
