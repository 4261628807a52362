package shared

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both pgxpool.Pool and pgx.Tx, so a number can be
// allocated either standalone or inside a caller's transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SequenceAllocator hands out monotonically increasing numbers per series
// (production, invoice). The upsert makes allocation race-free under
// concurrent callers: the row lock serialises the increment.
type SequenceAllocator struct {
	pool *pgxpool.Pool
}

// NewSequenceAllocator constructs the allocator.
func NewSequenceAllocator(pool *pgxpool.Pool) *SequenceAllocator {
	return &SequenceAllocator{pool: pool}
}

// Next allocates the next number for series.
func (a *SequenceAllocator) Next(ctx context.Context, series string) (int64, error) {
	if a == nil {
		return 0, errors.New("sequence allocator not initialised")
	}
	return NextSequence(ctx, a.pool, series)
}

// NextSequence allocates the next number for series using q, which may be a
// transaction so the allocation commits or rolls back with the caller's work.
func NextSequence(ctx context.Context, q Querier, series string) (int64, error) {
	if series == "" {
		return 0, errors.New("sequence series required")
	}
	var value int64
	err := q.QueryRow(ctx, `INSERT INTO sequences (series, value) VALUES ($1, 1)
ON CONFLICT (series) DO UPDATE SET value = sequences.value + 1
RETURNING value`, series).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}
