package production

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
	"github.com/papyrus-erp/papyrus-erp/internal/shared"
)

// Repository persists production runs in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository groups the writes of one run commit. Inventory exposes the
// stock appliers bound to the same transaction, so header, lines and stock
// deltas land or roll back together.
type TxRepository interface {
	NextNumber(ctx context.Context, series string) (int64, error)
	InsertRun(ctx context.Context, run ProductionRun) (int64, error)
	UpdateRun(ctx context.Context, run ProductionRun) error
	MarkVoid(ctx context.Context, runID int64) error
	InsertMaterialLine(ctx context.Context, line MaterialOutLine) error
	InsertItemLine(ctx context.Context, line ItemLine) error
	DeleteLines(ctx context.Context, runID int64) error
	Inventory() inventory.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("production repository not initialised")
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

// GetRun loads a run with its lines.
func (r *Repository) GetRun(ctx context.Context, id int64) (RunDetail, error) {
	var detail RunDetail
	err := r.pool.QueryRow(ctx, `SELECT id, number, date, output_store_id, remarks, status, created_by, created_at, updated_at
FROM production_runs WHERE id=$1`, id).
		Scan(&detail.Run.ID, &detail.Run.Number, &detail.Run.Date, &detail.Run.OutputStoreID,
			&detail.Run.Remarks, &detail.Run.Status, &detail.Run.CreatedBy, &detail.Run.CreatedAt, &detail.Run.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RunDetail{}, shared.ErrNotFound
	}
	if err != nil {
		return RunDetail{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, run_id, store_id, product_id, lot, qty_packets, weight_kg
FROM production_material_lines WHERE run_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return RunDetail{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l MaterialOutLine
		if err := rows.Scan(&l.ID, &l.RunID, &l.StoreID, &l.ProductID, &l.Lot, &l.QtyPackets, &l.WeightKg); err != nil {
			return RunDetail{}, err
		}
		detail.Materials = append(detail.Materials, l)
	}
	if err := rows.Err(); err != nil {
		return RunDetail{}, err
	}

	itemRows, err := r.pool.Query(ctx, `SELECT id, run_id, product_id, lot, qty_packets, weight_kg, rate, rate_on, value
FROM production_item_lines WHERE run_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return RunDetail{}, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var l ItemLine
		if err := itemRows.Scan(&l.ID, &l.RunID, &l.ProductID, &l.Lot, &l.QtyPackets, &l.WeightKg, &l.Rate, &l.RateOn, &l.Value); err != nil {
			return RunDetail{}, err
		}
		detail.Items = append(detail.Items, l)
	}
	return detail, itemRows.Err()
}

// ListRuns lists run headers, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit, offset int) ([]ProductionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, number, date, output_store_id, remarks, status, created_by, created_at, updated_at
FROM production_runs ORDER BY date DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs := []ProductionRun{}
	for rows.Next() {
		var run ProductionRun
		if err := rows.Scan(&run.ID, &run.Number, &run.Date, &run.OutputStoreID, &run.Remarks, &run.Status, &run.CreatedBy, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *txRepository) NextNumber(ctx context.Context, series string) (int64, error) {
	return shared.NextSequence(ctx, r.tx, series)
}

func (r *txRepository) InsertRun(ctx context.Context, run ProductionRun) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO production_runs (number, date, output_store_id, remarks, status, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		run.Number, run.Date, run.OutputStoreID, run.Remarks, string(run.Status), nullActor(run.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateRun(ctx context.Context, run ProductionRun) error {
	_, err := r.tx.Exec(ctx, `UPDATE production_runs SET date=$2, output_store_id=$3, remarks=$4, updated_at=NOW() WHERE id=$1`,
		run.ID, run.Date, run.OutputStoreID, run.Remarks)
	return err
}

func (r *txRepository) MarkVoid(ctx context.Context, runID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE production_runs SET status=$2, updated_at=NOW() WHERE id=$1`, runID, string(StatusVoid))
	return err
}

func (r *txRepository) InsertMaterialLine(ctx context.Context, line MaterialOutLine) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO production_material_lines (run_id, store_id, product_id, lot, qty_packets, weight_kg)
VALUES ($1,$2,$3,$4,$5,$6)`,
		line.RunID, line.StoreID, line.ProductID, line.Lot, line.QtyPackets, line.WeightKg)
	return err
}

func (r *txRepository) InsertItemLine(ctx context.Context, line ItemLine) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO production_item_lines (run_id, product_id, lot, qty_packets, weight_kg, rate, rate_on, value)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		line.RunID, line.ProductID, line.Lot, line.QtyPackets, line.WeightKg, line.Rate, string(line.RateOn), line.Value)
	return err
}

func (r *txRepository) DeleteLines(ctx context.Context, runID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM production_material_lines WHERE run_id=$1`, runID); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM production_item_lines WHERE run_id=$1`, runID)
	return err
}

func (r *txRepository) Inventory() inventory.TxRepository {
	return inventory.NewTxRepository(r.tx)
}

func nullActor(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
