package quotation

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes the quotation lifecycle over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers quotation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/code/{code}", h.handleGetByCode)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/comparison", h.handleComparison)
	r.Get("/{id}/best-offer", h.handleBestOffer)
	r.Post("/{id}/send", h.handleSend)
	r.Post("/{id}/resend", h.handleResend)
	r.Post("/{id}/responses", h.handleResponse)
	r.Post("/{id}/submit", h.handleSubmit)
	r.Post("/{id}/approve", h.handleApprove)
	r.Post("/{id}/reject", h.handleReject)
	r.Post("/{id}/negotiate", h.handleNegotiate)
	r.Post("/{id}/cancel", h.handleCancel)
}

type lineRequest struct {
	ProductCode string          `json:"product_code" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	UOM         string          `json:"uom"`
}

type createRequest struct {
	Draft bool          `json:"draft"`
	Lines []lineRequest `json:"lines" validate:"required,min=1,dive"`
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
	input := CreateInput{CreatedBy: actorFrom(r), Draft: req.Draft}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, LineInput{ProductCode: l.ProductCode, Quantity: l.Quantity, UOM: l.UOM})
	}
	q, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create quotation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list quotations", slog.Any("error", err))
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
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) handleGetByCode(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) handleComparison(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	offers, err := h.service.Comparison(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"offers": offers})
}

func (h *Handler) handleBestOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	best, err := h.service.BestOfferFor(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if best == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "quotation has no supplier responses")
		return
	}
	httpx.JSON(w, http.StatusOK, best)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id int64, actor string) (Quotation, error) {
		return h.service.Send(r.Context(), id, actor)
	})
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id int64, actor string) (Quotation, error) {
		return h.service.Resend(r.Context(), id, actor)
	})
}

type responseRequest struct {
	SupplierCode string          `json:"supplier_code" validate:"required"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LeadTimeDays int             `json:"lead_time_days" validate:"required"`
	PaymentTerms string          `json:"payment_terms"`
	Notes        string          `json:"notes"`
}

func (h *Handler) handleResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req responseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	q, err := h.service.RecordResponse(r.Context(), id, ResponseInput{
		SupplierCode: req.SupplierCode,
		UnitPrice:    req.UnitPrice,
		LeadTimeDays: req.LeadTimeDays,
		PaymentTerms: req.PaymentTerms,
		Notes:        req.Notes,
	}, actorFrom(r))
	if err != nil {
		h.logger.Error("record response", slog.Int64("quotation_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id int64, actor string) (Quotation, error) {
		return h.service.SubmitForApproval(r.Context(), id, actor)
	})
}

type approveRequest struct {
	SupplierCode string `json:"supplier_code"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	// An absent body means "approve the best offer"; decode unconditionally so
	// chunked requests without a Content-Length still carry their override.
	var req approveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	q, err := h.service.Approve(r.Context(), id, ApproveInput{ApprovedBy: actorFrom(r), SupplierCode: req.SupplierCode})
	if err != nil {
		h.logger.Error("approve quotation", slog.Int64("quotation_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	q, err := h.service.Reject(r.Context(), id, actorFrom(r), req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

type negotiateRequest struct {
	Note string `json:"note" validate:"required"`
}

func (h *Handler) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req negotiateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	q, err := h.service.Negotiate(r.Context(), id, actorFrom(r), req.Note)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id int64, actor string) (Quotation, error) {
		return h.service.Cancel(r.Context(), id, actor)
	})
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(int64, string) (Quotation, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	q, err := op(id, actorFrom(r))
	if err != nil {
		h.logger.Error("quotation transition", slog.Int64("quotation_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// actorFrom reads the caller identity header. Authentication is handled by the
// gateway in front of this service.
func actorFrom(r *http.Request) string {
	return r.Header.Get("X-Actor")
}
