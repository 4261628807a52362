package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/papyrus-erp/papyrus-erp/internal/platform/httpx"
)

// Handler wires inventory endpoints: movement postings, store stock preview
// and the transaction ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/receipts", h.postReceipt)
	r.Post("/stock", h.postStoreIn)
	r.Post("/issues", h.postIssue)
	r.Post("/returns", h.postReturn)
	r.Get("/store-stock/{storeID}", h.storeStock)
	r.Get("/balance", h.balance)
	r.Get("/ledger", h.ledger)
}

type movementRequest struct {
	StoreID    int64   `json:"store_id" validate:"required,gt=0"`
	ProductID  int64   `json:"product_id" validate:"required,gt=0"`
	Lot        string  `json:"lot"`
	QtyPackets float64 `json:"qty_packets"`
	WeightKg   float64 `json:"weight_kg" validate:"gte=0"`
	UnitRate   float64 `json:"unit_rate" validate:"gte=0"`
	RateBasis  string  `json:"rate_basis" validate:"omitempty,oneof=WEIGHT QUANTITY"`
	SourceRef  string  `json:"source_ref"`
	Note       string  `json:"note"`
	ActorID    int64   `json:"actor_id"`
}

func (h *Handler) decodeMovement(w http.ResponseWriter, r *http.Request) (movementRequest, bool) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) postReceipt(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMovement(w, r)
	if !ok {
		return
	}
	bal, err := h.service.PostReceipt(r.Context(), ReceiptInput{
		StoreID: req.StoreID, ProductID: req.ProductID, Lot: req.Lot,
		QtyPackets: req.QtyPackets, WeightKg: req.WeightKg,
		UnitRate: req.UnitRate, RateBasis: RateBasis(req.RateBasis),
		SourceRef: req.SourceRef, Note: req.Note, ActorID: req.ActorID,
	})
	if err != nil {
		h.logger.Error("post receipt", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bal)
}

func (h *Handler) postStoreIn(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMovement(w, r)
	if !ok {
		return
	}
	bal, err := h.service.PostStoreIn(r.Context(), StoreInInput{
		StoreID: req.StoreID, ProductID: req.ProductID, Lot: req.Lot,
		QtyPackets: req.QtyPackets, WeightKg: req.WeightKg,
		SourceRef: req.SourceRef, Note: req.Note, ActorID: req.ActorID,
	})
	if err != nil {
		h.logger.Error("post store-in", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bal)
}

func (h *Handler) postIssue(w http.ResponseWriter, r *http.Request) {
	h.postOutbound(w, r, h.service.PostIssue, "post issue")
}

func (h *Handler) postReturn(w http.ResponseWriter, r *http.Request) {
	h.postOutbound(w, r, h.service.PostReturn, "post return")
}

func (h *Handler) postOutbound(w http.ResponseWriter, r *http.Request, post func(context.Context, IssueInput) (StockBalance, error), action string) {
	req, ok := h.decodeMovement(w, r)
	if !ok {
		return
	}
	bal, err := post(r.Context(), IssueInput{
		StoreID: req.StoreID, ProductID: req.ProductID, Lot: req.Lot,
		QtyPackets: req.QtyPackets, WeightKg: req.WeightKg,
		SourceRef: req.SourceRef, Note: req.Note, ActorID: req.ActorID,
	})
	if err != nil {
		h.logger.Error(action, slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bal)
}

func (h *Handler) storeStock(w http.ResponseWriter, r *http.Request) {
	storeID, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid store id")
		return
	}
	balances, err := h.service.GetStoreStock(r.Context(), storeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"store_id": storeID, "balances": balances})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	storeID, _ := strconv.ParseInt(q.Get("store_id"), 10, 64)
	productID, _ := strconv.ParseInt(q.Get("product_id"), 10, 64)
	bal, err := h.service.GetBalance(r.Context(), BalanceKey{
		StoreID: storeID, ProductID: productID, Lot: q.Get("lot"),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bal)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := LedgerFilter{Lot: q.Get("lot")}
	filter.StoreID, _ = strconv.ParseInt(q.Get("store_id"), 10, 64)
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from timestamp")
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to timestamp")
			return
		}
		filter.To = t
	}
	entries, err := h.service.ListLedger(r.Context(), filter)
	if err != nil {
		h.logger.Error("list ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": entries})
}
