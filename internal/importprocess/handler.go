package importprocess

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/landedcost"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes import processes over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers import process routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/status", h.handleAdvance)
	r.Post("/{id}/cancel", h.handleCancel)
	r.Put("/{id}/costs", h.handleUpdateCosts)
	r.Post("/{id}/timeline", h.handleAppendTimeline)
	r.Post("/simulate", h.handleSimulate)
}

type createRequest struct {
	PurchaseOrderID int64            `json:"purchase_order_id" validate:"required"`
	InvoiceNumber   string           `json:"invoice_number" validate:"required"`
	InvoiceDate     time.Time        `json:"invoice_date"`
	Currency        string           `json:"currency"`
	Incoterm        string           `json:"incoterm"`
	NCM             string           `json:"ncm"`
	Description     string           `json:"description"`
	OriginPort      string           `json:"origin_port"`
	DestinationPort string           `json:"destination_port"`
	GrossWeight     decimal.Decimal  `json:"gross_weight"`
	ExpectedArrival time.Time        `json:"expected_arrival"`
	Costs           landedcost.Input `json:"costs"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ip, err := h.service.Create(r.Context(), CreateInput{
		PurchaseOrderID: req.PurchaseOrderID,
		InvoiceNumber:   req.InvoiceNumber,
		InvoiceDate:     req.InvoiceDate,
		Currency:        req.Currency,
		Incoterm:        req.Incoterm,
		NCM:             req.NCM,
		Description:     req.Description,
		OriginPort:      req.OriginPort,
		DestinationPort: req.DestinationPort,
		GrossWeight:     req.GrossWeight,
		ExpectedArrival: req.ExpectedArrival,
		Costs:           req.Costs,
		CreatedBy:       r.Header.Get("X-Actor"),
	})
	if err != nil {
		h.logger.Error("create import process", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ip)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list import processes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ip, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ip)
}

type advanceRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req advanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ip, err := h.service.Advance(r.Context(), id, Status(req.Status), r.Header.Get("X-Actor"))
	if err != nil {
		h.logger.Error("advance import process", slog.Int64("import_process_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ip)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ip, err := h.service.Cancel(r.Context(), id, r.Header.Get("X-Actor"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ip)
}

func (h *Handler) handleUpdateCosts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var costs landedcost.Input
	if err := httpx.DecodeJSON(r, &costs); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	ip, err := h.service.UpdateCosts(r.Context(), id, costs, r.Header.Get("X-Actor"))
	if err != nil {
		h.logger.Error("update import costs", slog.Int64("import_process_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ip)
}

type timelineRequest struct {
	Date     time.Time `json:"date" validate:"required"`
	Label    string    `json:"label" validate:"required"`
	Forecast bool      `json:"forecast"`
}

func (h *Handler) handleAppendTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req timelineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry := TimelineEntry{Date: req.Date, Label: req.Label}
	if !req.Forecast {
		actor := r.Header.Get("X-Actor")
		entry.Actor = &actor
	}
	ip, err := h.service.AppendTimeline(r.Context(), id, entry)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ip)
}

// handleSimulate runs the landed-cost calculator without persisting anything,
// so buyers can price a shipment before the order exists.
func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var input landedcost.Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	result, err := landedcost.Calculate(input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
