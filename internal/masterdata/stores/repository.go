package stores

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mdshared "github.com/papyrus-erp/papyrus-erp/internal/masterdata/shared"
	platformdb "github.com/papyrus-erp/papyrus-erp/internal/platform/db"
	"github.com/papyrus-erp/papyrus-erp/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters mdshared.ListFilters) ([]Store, int, error)
	Get(ctx context.Context, id int64) (Store, error)
	Create(ctx context.Context, store Store) (Store, error)
	Update(ctx context.Context, id int64, store Store) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]Store, int, error) {
	query := `SELECT id, code, name, is_active, created_at, updated_at FROM stores WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM stores WHERE 1=1`
	args := []any{}

	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		cond := ` AND (name ILIKE $` + strconv.Itoa(len(args)) + ` OR code ILIKE $` + strconv.Itoa(len(args)) + `)`
		query += cond
		countQuery += cond
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		cond := ` AND is_active = $` + strconv.Itoa(len(args))
		query += cond
		countQuery += cond
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY code ASC`
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
		args = append(args, filters.Offset())
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Store
	for rows.Next() {
		var s Store
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, s)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Store, error) {
	var s Store
	err := r.db.QueryRow(ctx, `SELECT id, code, name, is_active, created_at, updated_at FROM stores WHERE id = $1`, id).
		Scan(&s.ID, &s.Code, &s.Name, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, &shared.ReferenceError{Entity: "store", ID: id}
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, store Store) (Store, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO stores (code, name, is_active, created_at, updated_at) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		store.Code, store.Name, store.IsActive, now, now).Scan(&store.ID)
	if err != nil {
		if _, dup := platformdb.IsUniqueViolation(err); dup {
			return Store{}, &shared.DuplicateError{Field: "code", Value: store.Code}
		}
		return Store{}, err
	}
	store.CreatedAt = now
	store.UpdatedAt = now
	return store, nil
}

func (r *repository) Update(ctx context.Context, id int64, store Store) error {
	_, err := r.db.Exec(ctx, `UPDATE stores SET code=$1, name=$2, is_active=$3, updated_at=$4 WHERE id=$5`,
		store.Code, store.Name, store.IsActive, time.Now(), id)
	if err != nil {
		if _, dup := platformdb.IsUniqueViolation(err); dup {
			return &shared.DuplicateError{Field: "code", Value: store.Code}
		}
	}
	return err
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE stores SET is_active=false, updated_at=NOW() WHERE id=$1`, id)
	return err
}
