package production

import (
	"time"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
)

// RunStatus tracks header lifecycle. Posted runs have live ledger effect;
// void runs keep their history but their effect has been reversed out.
type RunStatus string

const (
	StatusPosted RunStatus = "POSTED"
	StatusVoid   RunStatus = "VOID"
)

// ProductionRun is the header of one transformation: raw material consumed
// from one or more stores, finished items produced into the output store.
type ProductionRun struct {
	ID            int64     `json:"id"`
	Number        string    `json:"number"`
	Date          time.Time `json:"date"`
	OutputStoreID int64     `json:"output_store_id"`
	Remarks       string    `json:"remarks,omitempty"`
	Status        RunStatus `json:"status"`
	CreatedBy     int64     `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MaterialOutLine is raw material consumed by the run. WeightKg snapshots the
// weight actually deducted, whether derived or manually overridden.
type MaterialOutLine struct {
	ID         int64   `json:"id"`
	RunID      int64   `json:"run_id"`
	StoreID    int64   `json:"store_id"`
	ProductID  int64   `json:"product_id"`
	Lot        string  `json:"lot,omitempty"`
	QtyPackets float64 `json:"qty_packets"`
	WeightKg   float64 `json:"weight_kg"`
}

// ItemLine is finished output produced into the run's output store. Value is
// Rate applied to the extent RateOn selects, fixed at posting time.
type ItemLine struct {
	ID         int64               `json:"id"`
	RunID      int64               `json:"run_id"`
	ProductID  int64               `json:"product_id"`
	Lot        string              `json:"lot,omitempty"`
	QtyPackets float64             `json:"qty_packets"`
	WeightKg   float64             `json:"weight_kg"`
	Rate       float64             `json:"rate"`
	RateOn     inventory.RateBasis `json:"rate_on"`
	Value      float64             `json:"value"`
}

// RunDetail bundles a run with its lines for read paths.
type RunDetail struct {
	Run       ProductionRun     `json:"run"`
	Materials []MaterialOutLine `json:"materials"`
	Items     []ItemLine        `json:"items"`
}
