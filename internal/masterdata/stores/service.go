package stores

import (
	"context"
	"strings"

	mdshared "github.com/papyrus-erp/papyrus-erp/internal/masterdata/shared"
	"github.com/papyrus-erp/papyrus-erp/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Store, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Store, error) {
	if id <= 0 {
		return Store{}, &shared.ReferenceError{Entity: "store", ID: id}
	}
	return s.repo.Get(ctx, id)
}

// Exists checks that a store id resolves, without fetching the row into the
// caller. Movement posting uses it as a reference check.
func (s *Service) Exists(ctx context.Context, id int64) error {
	_, err := s.Get(ctx, id)
	return err
}

func (s *Service) Create(ctx context.Context, store Store) (Store, error) {
	if err := validate(store); err != nil {
		return Store{}, err
	}
	return s.repo.Create(ctx, store)
}

func (s *Service) Update(ctx context.Context, id int64, store Store) error {
	if id <= 0 {
		return &shared.ReferenceError{Entity: "store", ID: id}
	}
	if err := validate(store); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, store)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return &shared.ReferenceError{Entity: "store", ID: id}
	}
	return s.repo.Deactivate(ctx, id)
}

func validate(s Store) error {
	if strings.TrimSpace(s.Code) == "" {
		return shared.NewValidationError("code")
	}
	if strings.TrimSpace(s.Name) == "" {
		return shared.NewValidationError("name")
	}
	return nil
}
