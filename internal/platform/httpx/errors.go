// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/papyrus-erp/papyrus-erp/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var (
		validationErr  *shared.ValidationError
		referenceErr   *shared.ReferenceError
		duplicateErr   *shared.DuplicateError
		concurrencyErr *shared.ConcurrencyError
	)
	switch {
	case errors.As(err, &validationErr):
		Problem(w, http.StatusBadRequest, "Validation Failed", validationErr.Error())
	case errors.As(err, &referenceErr):
		Problem(w, http.StatusUnprocessableEntity, "Unknown Reference", referenceErr.Error())
	case errors.As(err, &duplicateErr):
		Problem(w, http.StatusConflict, "Duplicate", duplicateErr.Error())
	case errors.As(err, &concurrencyErr):
		JSON(w, http.StatusConflict, ProblemDetail{
			Title:     "Concurrent Update",
			Status:    http.StatusConflict,
			Detail:    "the record is being updated by another request, please retry",
			Retryable: true,
		})
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
