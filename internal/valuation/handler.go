package valuation

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/papyrus-erp/papyrus-erp/internal/platform/httpx"
)

// Handler serves the valuation report.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory-valuation", h.report)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := Query{
		Mode:  CostMode(q.Get("cost")),
		Basis: Basis(q.Get("basis")),
	}
	switch query.Mode {
	case "", CostLatest, CostWeightedAverage:
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "cost must be LATEST or WEIGHTED_AVERAGE")
		return
	}
	switch query.Basis {
	case "", BasisQuantity, BasisWeight:
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "basis must be QUANTITY or WEIGHT")
		return
	}
	query.StoreID, _ = strconv.ParseInt(q.Get("store_id"), 10, 64)
	query.Page, _ = strconv.Atoi(q.Get("page"))
	query.Limit, _ = strconv.Atoi(q.Get("limit"))
	if v := q.Get("to"); v != "" {
		cutoff, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to timestamp")
			return
		}
		query.Cutoff = cutoff
	}

	report, err := h.service.Report(r.Context(), query)
	if err != nil {
		h.logger.Error("valuation report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
