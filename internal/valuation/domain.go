package valuation

import (
	"time"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/products"
)

// CostMode selects how the unit cost of a product is derived from its
// cost-bearing ledger history.
type CostMode string

const (
	// CostLatest uses the most recent cost-bearing rate.
	CostLatest CostMode = "LATEST"
	// CostWeightedAverage averages rates weighted by the extent they priced.
	CostWeightedAverage CostMode = "WEIGHTED_AVERAGE"
)

// Basis selects what extent the valuation multiplies cost against.
type Basis string

const (
	BasisQuantity Basis = "QUANTITY"
	BasisWeight   Basis = "WEIGHT"
)

// CostEntry is one cost-bearing ledger entry (purchase receipt or production
// output) feeding the engine.
type CostEntry struct {
	ProductID   int64
	Rate        float64
	RateBasis   inventory.RateBasis
	QtyDelta    float64
	WeightDelta float64
	PostedAt    time.Time
}

// Row is one valued balance line of the report.
type Row struct {
	StoreID     int64   `json:"store_id"`
	StoreName   string  `json:"store_name,omitempty"`
	ProductID   int64   `json:"product_id"`
	ProductCode string  `json:"product_code"`
	ProductName string  `json:"product_name"`
	Lot         string  `json:"lot,omitempty"`
	QtyPackets  float64 `json:"qty_packets"`
	WeightKg    float64 `json:"weight_kg"`
	UnitCost    float64 `json:"unit_cost"`
	TotalValue  float64 `json:"total_value"`

	// Product carries the dimension data the engine needs for basis
	// conversion; omitted from report payloads.
	Product products.Product `json:"-"`
}

// Totals aggregates the full filtered report independently of pagination.
type Totals struct {
	QtyPackets float64 `json:"qty_packets"`
	WeightKg   float64 `json:"weight_kg"`
	TotalValue float64 `json:"total_value"`
	Rows       int     `json:"rows"`
}

// Query narrows and shapes a valuation report request.
type Query struct {
	Mode    CostMode
	Basis   Basis
	StoreID int64
	Cutoff  time.Time
	Page    int
	Limit   int
}
