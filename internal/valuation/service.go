package valuation

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	ListRows(ctx context.Context, q Query) ([]Row, int, error)
	CostEntries(ctx context.Context, productIDs []int64, cutoff time.Time) (map[int64][]CostEntry, error)
}

// Report is one valuation response page with full-set totals.
type Report struct {
	Rows   []Row  `json:"rows"`
	Totals Totals `json:"totals"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Total  int    `json:"total_rows"`
}

// Service assembles valuation reports. Totals for a given query shape are
// computed over the full filtered set and deduplicated across concurrent
// requests with singleflight, since a page flip must not recompute them per
// caller.
type Service struct {
	repo   RepositoryPort
	totals singleflight.Group
}

// NewService constructs the valuation service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Report values the requested page and attaches aggregate totals.
func (s *Service) Report(ctx context.Context, q Query) (Report, error) {
	if q.Mode == "" {
		q.Mode = CostWeightedAverage
	}
	if q.Basis == "" {
		q.Basis = BasisWeight
	}
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	if q.Page < 1 {
		q.Page = 1
	}

	rows, total, err := s.repo.ListRows(ctx, q)
	if err != nil {
		return Report{}, err
	}
	entries, err := s.costEntriesFor(ctx, rows, q.Cutoff)
	if err != nil {
		return Report{}, err
	}
	Valuate(rows, entries, q.Mode, q.Basis)

	totals, err := s.aggregateTotals(ctx, q)
	if err != nil {
		return Report{}, err
	}
	return Report{Rows: rows, Totals: totals, Page: q.Page, Limit: q.Limit, Total: total}, nil
}

// aggregateTotals values the whole filtered set, independent of pagination.
func (s *Service) aggregateTotals(ctx context.Context, q Query) (Totals, error) {
	key := fmt.Sprintf("%s|%s|%d|%d", q.Mode, q.Basis, q.StoreID, q.Cutoff.Unix())
	v, err, _ := s.totals.Do(key, func() (any, error) {
		full := q
		full.Page = 0
		full.Limit = 0
		rows, _, err := s.repo.ListRows(ctx, full)
		if err != nil {
			return Totals{}, err
		}
		entries, err := s.costEntriesFor(ctx, rows, q.Cutoff)
		if err != nil {
			return Totals{}, err
		}
		return Valuate(rows, entries, q.Mode, q.Basis), nil
	})
	if err != nil {
		return Totals{}, err
	}
	return v.(Totals), nil
}

func (s *Service) costEntriesFor(ctx context.Context, rows []Row, cutoff time.Time) (map[int64][]CostEntry, error) {
	seen := map[int64]bool{}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if !seen[row.ProductID] {
			seen[row.ProductID] = true
			ids = append(ids, row.ProductID)
		}
	}
	return s.repo.CostEntries(ctx, ids, cutoff)
}
