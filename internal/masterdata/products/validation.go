package products

import (
	"strings"

	"github.com/papyrus-erp/papyrus-erp/internal/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return shared.NewValidationError("code")
	}
	if strings.TrimSpace(p.Name) == "" {
		return shared.NewValidationError("name")
	}
	if p.Type != "" && p.Type != TypeReel && p.Type != TypeBoard {
		return &shared.ValidationError{Field: "type", Reason: "must be REEL or BOARD"}
	}
	if p.Length < 0 || p.Width < 0 || p.Grams < 0 {
		return &shared.ValidationError{Field: "dimensions", Reason: "must not be negative"}
	}
	return nil
}
