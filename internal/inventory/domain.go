package inventory

import (
	"errors"
	"time"
)

// TransactionKind enumerates stock-affecting events recorded in the ledger.
type TransactionKind string

const (
	// KindPurchaseReceipt is stock received against a purchase invoice.
	KindPurchaseReceipt TransactionKind = "PURCHASE_RECEIPT"
	// KindStoreIn is a manual store-in entry.
	KindStoreIn TransactionKind = "STORE_IN"
	// KindProductionConsume is material issued into a production run.
	KindProductionConsume TransactionKind = "PRODUCTION_CONSUME"
	// KindProductionProduce is finished output of a production run.
	KindProductionProduce TransactionKind = "PRODUCTION_PRODUCE"
	// KindSaleIssue is stock issued against a sale invoice.
	KindSaleIssue TransactionKind = "SALE_ISSUE"
	// KindPurchaseReturn is stock sent back to a supplier.
	KindPurchaseReturn TransactionKind = "PURCHASE_RETURN"
)

// CostBearing reports whether transactions of this kind carry a unit rate
// usable by the valuation engine.
func (k TransactionKind) CostBearing() bool {
	return k == KindPurchaseReceipt || k == KindProductionProduce
}

// RateBasis states what a unit rate is quoted against.
type RateBasis string

const (
	RateBasisWeight   RateBasis = "WEIGHT"
	RateBasisQuantity RateBasis = "QUANTITY"
)

// BalanceKey identifies one stock balance. Lot is optional ("" when stock is
// not lot-tracked); a reel number is a lot.
type BalanceKey struct {
	StoreID   int64
	ProductID int64
	Lot       string
}

// Less orders keys deterministically so batch appliers can lock balances in a
// stable order and avoid deadlocks.
func (k BalanceKey) Less(o BalanceKey) bool {
	if k.StoreID != o.StoreID {
		return k.StoreID < o.StoreID
	}
	if k.ProductID != o.ProductID {
		return k.ProductID < o.ProductID
	}
	return k.Lot < o.Lot
}

// StockBalance is the materialized current position of one key. Quantity and
// weight are independent state: weight is derived from the formula only at
// entry time and may be overridden, so neither field is ever recomputed from
// the other after the fact. A zero balance is a valid terminal state, not
// absence.
type StockBalance struct {
	StoreID    int64     `json:"store_id"`
	ProductID  int64     `json:"product_id"`
	Lot        string    `json:"lot,omitempty"`
	QtyPackets float64   `json:"qty_packets"`
	WeightKg   float64   `json:"weight_kg"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key returns the balance key.
func (b StockBalance) Key() BalanceKey {
	return BalanceKey{StoreID: b.StoreID, ProductID: b.ProductID, Lot: b.Lot}
}

// StockTransaction is one immutable ledger entry. Corrections are new
// offsetting entries; rows are never mutated or deleted.
type StockTransaction struct {
	ID          int64           `json:"id"`
	Kind        TransactionKind `json:"kind"`
	StoreID     int64           `json:"store_id"`
	ProductID   int64           `json:"product_id"`
	Lot         string          `json:"lot,omitempty"`
	QtyDelta    float64         `json:"qty_delta"`
	WeightDelta float64         `json:"weight_delta"`
	UnitRate    float64         `json:"unit_rate,omitempty"`
	RateBasis   RateBasis       `json:"rate_basis,omitempty"`
	SourceRef   string          `json:"source_ref,omitempty"`
	Note        string          `json:"note,omitempty"`
	PostedAt    time.Time       `json:"posted_at"`
	CreatedBy   int64           `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Delta describes one stock movement to apply: a ledger entry plus the
// balance adjustment it implies.
type Delta struct {
	Kind        TransactionKind
	StoreID     int64
	ProductID   int64
	Lot         string
	QtyDelta    float64
	WeightDelta float64
	UnitRate    float64
	RateBasis   RateBasis
	SourceRef   string
	Note        string
	ActorID     int64
}

// Key returns the balance key the delta touches.
func (d Delta) Key() BalanceKey {
	return BalanceKey{StoreID: d.StoreID, ProductID: d.ProductID, Lot: d.Lot}
}

// LedgerFilter narrows ledger listings. Zero values mean "no restriction".
type LedgerFilter struct {
	StoreID   int64
	ProductID int64
	Lot       string
	From      time.Time
	To        time.Time
	Limit     int
}

// BalanceChange is the notification payload emitted after a committed
// movement. Transports (SSE, websockets, Redis pub/sub) fan it out to open
// forms so they can refetch stock previews.
type BalanceChange struct {
	StoreID    int64           `json:"store_id"`
	ProductID  int64           `json:"product_id"`
	Lot        string          `json:"lot,omitempty"`
	QtyPackets float64         `json:"qty_packets"`
	WeightKg   float64         `json:"weight_kg"`
	Kind       TransactionKind `json:"kind"`
}

// ErrNegativeStock is returned in strict mode when a movement would drive a
// balance negative. The default mode never raises it.
var ErrNegativeStock = errors.New("inventory: negative stock not allowed")

// ErrEmptyBatch indicates ApplyDeltas was called without any delta.
var ErrEmptyBatch = errors.New("inventory: batch requires at least one delta")
