package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
	"github.com/papyrus-erp/papyrus-erp/internal/shared"
)

// sumTolerance absorbs float accumulation noise at the storage precision.
const sumTolerance = 1e-4

// Sums is a (qty, weight) pair keyed per balance.
type Sums struct {
	Qty    float64
	Weight float64
}

// Mismatch reports one balance row diverging from its ledger history.
type Mismatch struct {
	Key           inventory.BalanceKey
	LedgerQty     float64
	BalanceQty    float64
	LedgerWeight  float64
	BalanceWeight float64
}

// StockReader supplies the data a reconcile run compares.
type StockReader interface {
	StoreIDs(ctx context.Context) ([]int64, error)
	LedgerSums(ctx context.Context, storeID int64) (map[inventory.BalanceKey]Sums, error)
	BalanceSums(ctx context.Context, storeID int64) (map[inventory.BalanceKey]Sums, error)
}

// Reconciler audits that every materialized balance equals the sum of its
// ledger deltas. Mismatches are logged as integrity failures and NEVER
// corrected here: the ledger is the source of truth and a divergence means a
// bug or manual interference that needs a human.
type Reconciler struct {
	reader StockReader
	logger *slog.Logger
}

// NewReconciler constructs the reconciler.
func NewReconciler(reader StockReader, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{reader: reader, logger: logger}
}

// Run reconciles the requested store, or every store when storeID is zero,
// fanning out one goroutine per store. It returns ErrIntegrity when any
// mismatch was found so the task shows up failed in the queue.
func (r *Reconciler) Run(ctx context.Context, storeID int64) error {
	stores := []int64{storeID}
	if storeID == 0 {
		var err error
		stores, err = r.reader.StoreIDs(ctx)
		if err != nil {
			return err
		}
	}

	mismatched := make([]bool, len(stores))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range stores {
		i, id := i, id
		g.Go(func() error {
			mismatches, err := r.reconcileStore(ctx, id)
			if err != nil {
				return err
			}
			for _, m := range mismatches {
				r.logger.Error("stock integrity mismatch",
					slog.Any("error", shared.ErrIntegrity),
					slog.Int64("store_id", m.Key.StoreID),
					slog.Int64("product_id", m.Key.ProductID),
					slog.String("lot", m.Key.Lot),
					slog.Float64("ledger_qty", m.LedgerQty),
					slog.Float64("balance_qty", m.BalanceQty),
					slog.Float64("ledger_weight", m.LedgerWeight),
					slog.Float64("balance_weight", m.BalanceWeight),
				)
			}
			mismatched[i] = len(mismatches) > 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, bad := range mismatched {
		if bad {
			return shared.ErrIntegrity
		}
	}
	return nil
}

func (r *Reconciler) reconcileStore(ctx context.Context, storeID int64) ([]Mismatch, error) {
	ledger, err := r.reader.LedgerSums(ctx, storeID)
	if err != nil {
		return nil, err
	}
	balances, err := r.reader.BalanceSums(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return diffSums(ledger, balances), nil
}

// diffSums compares ledger sums against balance rows key by key. Keys missing
// on either side count as zero on that side; a zero balance with no ledger
// history is clean.
func diffSums(ledger, balances map[inventory.BalanceKey]Sums) []Mismatch {
	keys := map[inventory.BalanceKey]bool{}
	for k := range ledger {
		keys[k] = true
	}
	for k := range balances {
		keys[k] = true
	}
	var out []Mismatch
	for k := range keys {
		l := ledger[k]
		b := balances[k]
		if math.Abs(l.Qty-b.Qty) <= sumTolerance && math.Abs(l.Weight-b.Weight) <= sumTolerance {
			continue
		}
		out = append(out, Mismatch{
			Key:           k,
			LedgerQty:     l.Qty,
			BalanceQty:    b.Qty,
			LedgerWeight:  l.Weight,
			BalanceWeight: b.Weight,
		})
	}
	return out
}

// HandleInventoryReconcileTask adapts Reconciler.Run to Asynq.
func (r *Reconciler) HandleInventoryReconcileTask(ctx context.Context, t *asynq.Task) error {
	var payload ReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	return r.Run(ctx, payload.StoreID)
}

// PGStockReader reads reconcile inputs from PostgreSQL.
type PGStockReader struct {
	pool *pgxpool.Pool
}

// NewPGStockReader constructs the reader.
func NewPGStockReader(pool *pgxpool.Pool) *PGStockReader {
	return &PGStockReader{pool: pool}
}

func (r *PGStockReader) StoreIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM stores ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PGStockReader) LedgerSums(ctx context.Context, storeID int64) (map[inventory.BalanceKey]Sums, error) {
	rows, err := r.pool.Query(ctx, `SELECT store_id, product_id, lot, COALESCE(SUM(qty_delta),0), COALESCE(SUM(weight_delta),0)
FROM stock_transactions WHERE store_id=$1 GROUP BY store_id, product_id, lot`, storeID)
	if err != nil {
		return nil, err
	}
	return scanSums(rows)
}

func (r *PGStockReader) BalanceSums(ctx context.Context, storeID int64) (map[inventory.BalanceKey]Sums, error) {
	rows, err := r.pool.Query(ctx, `SELECT store_id, product_id, lot, qty_packets, weight_kg
FROM stock_balances WHERE store_id=$1`, storeID)
	if err != nil {
		return nil, err
	}
	return scanSums(rows)
}

func scanSums(rows pgx.Rows) (map[inventory.BalanceKey]Sums, error) {
	defer rows.Close()
	out := map[inventory.BalanceKey]Sums{}
	for rows.Next() {
		var key inventory.BalanceKey
		var s Sums
		if err := rows.Scan(&key.StoreID, &key.ProductID, &key.Lot, &s.Qty, &s.Weight); err != nil {
			return nil, err
		}
		out[key] = s
	}
	return out, rows.Err()
}
