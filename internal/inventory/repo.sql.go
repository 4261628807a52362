package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock balances and the transaction ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by movement writers.
// Production shares it so a whole run commits in one transaction.
type TxRepository interface {
	InsertTransaction(ctx context.Context, tx StockTransaction) (int64, error)
	GetBalanceForUpdate(ctx context.Context, key BalanceKey) (StockBalance, error)
	UpsertBalance(ctx context.Context, balance StockBalance) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open pgx transaction. Callers that manage their own
// transaction (the production transformer) use this to apply stock deltas
// inside it.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// ErrBalanceNotFound indicates a missing balance row; readers treat it as a
// zero balance.
var ErrBalanceNotFound = errors.New("inventory balance not found")

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetBalance returns the current balance for key; a missing key is a zero
// balance, not an error. Plain read, no locks: preview paths use it.
func (r *Repository) GetBalance(ctx context.Context, key BalanceKey) (StockBalance, error) {
	var bal StockBalance
	err := r.pool.QueryRow(ctx, `SELECT store_id, product_id, lot, qty_packets, weight_kg, updated_at
FROM stock_balances WHERE store_id=$1 AND product_id=$2 AND lot=$3`, key.StoreID, key.ProductID, key.Lot).
		Scan(&bal.StoreID, &bal.ProductID, &bal.Lot, &bal.QtyPackets, &bal.WeightKg, &bal.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockBalance{StoreID: key.StoreID, ProductID: key.ProductID, Lot: key.Lot}, nil
	}
	return bal, err
}

// ListStoreStock lists all balances of a store for the stock preview.
func (r *Repository) ListStoreStock(ctx context.Context, storeID int64) ([]StockBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT store_id, product_id, lot, qty_packets, weight_kg, updated_at
FROM stock_balances WHERE store_id=$1 ORDER BY product_id ASC, lot ASC`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	balances := []StockBalance{}
	for rows.Next() {
		var bal StockBalance
		if err := rows.Scan(&bal.StoreID, &bal.ProductID, &bal.Lot, &bal.QtyPackets, &bal.WeightKg, &bal.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, bal)
	}
	return balances, rows.Err()
}

// ListTransactions returns ledger entries matching the filter, oldest first,
// insertion order breaking timestamp ties.
func (r *Repository) ListTransactions(ctx context.Context, filter LedgerFilter) ([]StockTransaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `SELECT id, kind, store_id, product_id, lot, qty_delta, weight_delta, unit_rate, rate_basis, source_ref, note, posted_at, created_by, created_at
FROM stock_transactions
WHERE ($1 = 0 OR store_id = $1)
  AND ($2 = 0 OR product_id = $2)
  AND ($3 = '' OR lot = $3)
  AND posted_at BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')
ORDER BY posted_at ASC, id ASC
LIMIT $6`, filter.StoreID, filter.ProductID, filter.Lot, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	txs := []StockTransaction{}
	for rows.Next() {
		var t StockTransaction
		var rate *float64
		var basis *string
		if err := rows.Scan(&t.ID, &t.Kind, &t.StoreID, &t.ProductID, &t.Lot, &t.QtyDelta, &t.WeightDelta, &rate, &basis, &t.SourceRef, &t.Note, &t.PostedAt, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		if rate != nil {
			t.UnitRate = *rate
		}
		if basis != nil {
			t.RateBasis = RateBasis(*basis)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *txRepository) InsertTransaction(ctx context.Context, t StockTransaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_transactions (kind, store_id, product_id, lot, qty_delta, weight_delta, unit_rate, rate_basis, source_ref, note, posted_at, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW()) RETURNING id`,
		string(t.Kind), t.StoreID, t.ProductID, t.Lot, t.QtyDelta, t.WeightDelta,
		nullFloat(t.UnitRate), nullString(string(t.RateBasis)), t.SourceRef, t.Note, t.PostedAt, nullInt(t.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, key BalanceKey) (StockBalance, error) {
	var bal StockBalance
	err := r.tx.QueryRow(ctx, `SELECT store_id, product_id, lot, qty_packets, weight_kg, updated_at
FROM stock_balances WHERE store_id=$1 AND product_id=$2 AND lot=$3 FOR UPDATE`, key.StoreID, key.ProductID, key.Lot).
		Scan(&bal.StoreID, &bal.ProductID, &bal.Lot, &bal.QtyPackets, &bal.WeightKg, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockBalance{StoreID: key.StoreID, ProductID: key.ProductID, Lot: key.Lot}, ErrBalanceNotFound
		}
		return StockBalance{}, err
	}
	return bal, nil
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance StockBalance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_balances (store_id, product_id, lot, qty_packets, weight_kg, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (store_id, product_id, lot) DO UPDATE SET qty_packets=EXCLUDED.qty_packets, weight_kg=EXCLUDED.weight_kg, updated_at=NOW()`,
		balance.StoreID, balance.ProductID, balance.Lot, balance.QtyPackets, balance.WeightKg)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullFloat(value float64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
