package production

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
	"github.com/papyrus-erp/papyrus-erp/internal/platform/httpx"
)

// Handler wires production endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.execute)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
}

type materialLineRequest struct {
	StoreID    int64   `json:"store_id" validate:"required,gt=0"`
	ProductID  int64   `json:"product_id" validate:"required,gt=0"`
	Lot        string  `json:"lot"`
	QtyPackets float64 `json:"qty_packets" validate:"required,gt=0"`
	WeightKg   float64 `json:"weight_kg" validate:"gte=0"`
}

type itemLineRequest struct {
	ProductID  int64   `json:"product_id" validate:"required,gt=0"`
	Lot        string  `json:"lot"`
	QtyPackets float64 `json:"qty_packets" validate:"required,gt=0"`
	WeightKg   float64 `json:"weight_kg" validate:"gte=0"`
	Rate       float64 `json:"rate" validate:"gte=0"`
	RateOn     string  `json:"rate_on" validate:"omitempty,oneof=WEIGHT QUANTITY"`
}

type runRequest struct {
	Date          string                `json:"date" validate:"required"`
	OutputStoreID int64                 `json:"output_store_id" validate:"required,gt=0"`
	Remarks       string                `json:"remarks"`
	MaterialOut   []materialLineRequest `json:"material_out" validate:"required,min=1,dive"`
	Items         []itemLineRequest     `json:"items" validate:"required,min=1,dive"`
	ActorID       int64                 `json:"actor_id"`
}

func (h *Handler) decodeRun(w http.ResponseWriter, r *http.Request) (ExecuteInput, bool) {
	var req runRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return ExecuteInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return ExecuteInput{}, false
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return ExecuteInput{}, false
	}
	input := ExecuteInput{
		Date:          date,
		OutputStoreID: req.OutputStoreID,
		Remarks:       req.Remarks,
		ActorID:       req.ActorID,
	}
	for _, m := range req.MaterialOut {
		input.Materials = append(input.Materials, MaterialInput{
			StoreID: m.StoreID, ProductID: m.ProductID, Lot: m.Lot,
			QtyPackets: m.QtyPackets, WeightKg: m.WeightKg,
		})
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, ItemInput{
			ProductID: it.ProductID, Lot: it.Lot,
			QtyPackets: it.QtyPackets, WeightKg: it.WeightKg,
			Rate: it.Rate, RateOn: inventory.RateBasis(it.RateOn),
		})
	}
	return input, true
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeRun(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Execute(r.Context(), input)
	if err != nil {
		h.logger.Error("execute production run", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid run id")
		return
	}
	input, ok := h.decodeRun(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update production run", slog.Any("error", err), slog.Int64("run_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid run id")
		return
	}
	var actorID int64
	if v := r.URL.Query().Get("actor_id"); v != "" {
		actorID, _ = strconv.ParseInt(v, 10, 64)
	}
	if err := h.service.Delete(r.Context(), id, actorID); err != nil {
		h.logger.Error("void production run", slog.Any("error", err), slog.Int64("run_id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid run id")
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, _ := strconv.Atoi(q.Get("page"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	runs, err := h.service.List(r.Context(), limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("list production runs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"runs": runs})
}
