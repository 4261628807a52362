package valuation

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
)

// Repository reads balances and cost-bearing history for valuation reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRows returns balance rows joined with product and store masters. A
// limit of zero returns the full filtered set; totals are computed over that.
func (r *Repository) ListRows(ctx context.Context, q Query) ([]Row, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_balances b WHERE ($1 = 0 OR b.store_id = $1)`, q.StoreID).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	offset := 0
	if limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		offset = (page - 1) * limit
	} else {
		limit = total + 1
	}

	rows, err := r.pool.Query(ctx, `SELECT b.store_id, s.name, b.product_id, p.code, p.name, b.lot,
       b.qty_packets, b.weight_kg, p.length, p.width, p.grams, p.type
FROM stock_balances b
JOIN products p ON p.id = b.product_id
JOIN stores s ON s.id = b.store_id
WHERE ($1 = 0 OR b.store_id = $1)
ORDER BY p.code ASC, b.store_id ASC, b.lot ASC
LIMIT $2 OFFSET $3`, q.StoreID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.StoreID, &row.StoreName, &row.ProductID, &row.ProductCode, &row.ProductName, &row.Lot,
			&row.QtyPackets, &row.WeightKg,
			&row.Product.Length, &row.Product.Width, &row.Product.Grams, &row.Product.Type); err != nil {
			return nil, 0, err
		}
		row.Product.ID = row.ProductID
		row.Product.Code = row.ProductCode
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// CostEntries loads cost-bearing ledger entries for the given products at or
// before the cutoff, oldest first, keyed by product.
func (r *Repository) CostEntries(ctx context.Context, productIDs []int64, cutoff time.Time) (map[int64][]CostEntry, error) {
	if len(productIDs) == 0 {
		return map[int64][]CostEntry{}, nil
	}
	if cutoff.IsZero() {
		cutoff = time.Now().UTC()
	}
	rows, err := r.pool.Query(ctx, `SELECT product_id, unit_rate, rate_basis, qty_delta, weight_delta, posted_at
FROM stock_transactions
WHERE product_id = ANY($1)
  AND kind IN ($2, $3)
  AND unit_rate IS NOT NULL
  AND posted_at <= $4
ORDER BY posted_at ASC, id ASC`,
		productIDs, string(inventory.KindPurchaseReceipt), string(inventory.KindProductionProduce), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64][]CostEntry{}
	for rows.Next() {
		var e CostEntry
		var basis *string
		if err := rows.Scan(&e.ProductID, &e.Rate, &basis, &e.QtyDelta, &e.WeightDelta, &e.PostedAt); err != nil {
			return nil, err
		}
		if basis != nil {
			e.RateBasis = inventory.RateBasis(*basis)
		}
		out[e.ProductID] = append(out[e.ProductID], e)
	}
	return out, rows.Err()
}
