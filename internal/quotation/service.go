package quotation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/masterdata/products"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/suppliers"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/notify"
	"github.com/meridian-erp/meridian-erp/internal/purchaseorder"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Quotation, error)
	GetByCode(ctx context.Context, code string) (Quotation, error)
	List(ctx context.Context) ([]Quotation, error)
	Create(ctx context.Context, q Quotation) (int64, error)
	// CompareAndSave upserts the full record only while its status still equals
	// expected, failing with shared.ErrConcurrentModification otherwise.
	CompareAndSave(ctx context.Context, q Quotation, expected Status) error
}

// MasterdataPort exposes the read-only supplier/product lookups.
type MasterdataPort interface {
	GetProduct(ctx context.Context, code string) (products.Product, error)
	GetSupplier(ctx context.Context, code string) (suppliers.Supplier, error)
}

// OrdersPort triggers purchase-order generation on approval.
type OrdersPort interface {
	CreateFromQuotation(ctx context.Context, input purchaseorder.FromQuotationInput) (purchaseorder.PurchaseOrder, error)
}

// AuditPort records successful mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the quotation lifecycle and its negotiation sub-flow.
type Service struct {
	repo        RepositoryPort
	masterdata  MasterdataPort
	orders      OrdersPort
	approvals   *shared.ApprovalRecorder
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	notifier    notify.Notifier
}

// NewService constructs the quotation service.
func NewService(repo RepositoryPort, masterdata MasterdataPort, orders OrdersPort, approvals *shared.ApprovalRecorder, audit AuditPort, idem *shared.IdempotencyStore, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{repo: repo, masterdata: masterdata, orders: orders, approvals: approvals, audit: audit, idempotency: idem, notifier: notifier}
}

// LineInput describes one requested item.
type LineInput struct {
	ProductCode string
	Quantity    decimal.Decimal
	UOM         string
}

// CreateInput describes quotation creation. Draft keeps the quotation unsent.
type CreateInput struct {
	CreatedBy string
	Draft     bool
	Lines     []LineInput
}

// Create validates the request and persists a new quotation. Unless Draft is
// set the quotation starts in SENT and suppliers are notified.
func (s *Service) Create(ctx context.Context, input CreateInput) (Quotation, error) {
	if input.CreatedBy == "" {
		return Quotation{}, fmt.Errorf("quotation: creator identity required: %w", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return Quotation{}, fmt.Errorf("quotation: minimal 1 line: %w", shared.ErrValidation)
	}
	lines := make([]LineItem, 0, len(input.Lines))
	for _, l := range input.Lines {
		if l.Quantity.Sign() <= 0 {
			return Quotation{}, fmt.Errorf("quotation: line for %q needs positive quantity: %w", l.ProductCode, shared.ErrValidation)
		}
		product, err := s.masterdata.GetProduct(ctx, l.ProductCode)
		if err != nil {
			return Quotation{}, err
		}
		lines = append(lines, LineItem{
			ProductCode: product.Code,
			Quantity:    l.Quantity,
			UOM:         defaultString(l.UOM, product.UOM),
		})
	}

	now := time.Now()
	q := Quotation{
		Code:      generateNumber("RFQ"),
		Status:    StatusSent,
		CreatedBy: input.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
		Lines:     lines,
	}
	if input.Draft {
		q.Status = StatusDraft
	}
	id, err := s.repo.Create(ctx, q)
	if err != nil {
		return Quotation{}, err
	}
	q.ID = id
	s.recordAudit(ctx, input.CreatedBy, "QUOTATION_CREATE", id, map[string]any{"code": q.Code, "status": string(q.Status)})
	if q.Status == StatusSent {
		s.notifier.Notify(ctx, notify.EventQuotationSent, eventPayload(q))
	}
	return q, nil
}

// Send moves a draft quotation to SENT and notifies suppliers.
func (s *Service) Send(ctx context.Context, id int64, actor string) (Quotation, error) {
	q, err := s.transition(ctx, id, actor, StatusDraft, StatusSent, nil)
	if err != nil {
		return Quotation{}, err
	}
	s.recordAudit(ctx, actor, "QUOTATION_SEND", id, map[string]any{"code": q.Code})
	s.notifier.Notify(ctx, notify.EventQuotationSent, eventPayload(q))
	return q, nil
}

// ResponseInput is one supplier's offer.
type ResponseInput struct {
	SupplierCode string
	UnitPrice    decimal.Decimal
	LeadTimeDays int
	PaymentTerms string
	Notes        string
}

// RecordResponse captures or replaces a supplier's offer. The total price is
// recomputed from the requested quantity. The first response moves SENT to
// AWAITING_RESPONSES; a response during NEGOTIATING re-opens the same way.
func (s *Service) RecordResponse(ctx context.Context, id int64, input ResponseInput, actor string) (Quotation, error) {
	if actor == "" {
		return Quotation{}, fmt.Errorf("quotation: responder identity required: %w", shared.ErrValidation)
	}
	if input.UnitPrice.IsNegative() {
		return Quotation{}, fmt.Errorf("quotation: negative unit price: %w", shared.ErrValidation)
	}
	if input.LeadTimeDays <= 0 {
		return Quotation{}, fmt.Errorf("quotation: lead time must be positive: %w", shared.ErrValidation)
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if !q.Status.canReceiveResponses() {
		return Quotation{}, fmt.Errorf("quotation: %s does not accept responses: %w", q.Status, shared.ErrInvalidTransition)
	}
	sup, err := s.masterdata.GetSupplier(ctx, input.SupplierCode)
	if err != nil {
		return Quotation{}, err
	}

	resp := SupplierResponse{
		SupplierCode: sup.Code,
		UnitPrice:    input.UnitPrice,
		TotalPrice:   money.RoundCurrency(input.UnitPrice.Mul(q.RequestedQuantity())),
		LeadTimeDays: input.LeadTimeDays,
		PaymentTerms: input.PaymentTerms,
		RespondedAt:  time.Now(),
		Notes:        input.Notes,
	}
	replaced := false
	for i := range q.Responses {
		if q.Responses[i].SupplierCode == sup.Code {
			q.Responses[i] = resp
			replaced = true
			break
		}
	}
	if !replaced {
		q.Responses = append(q.Responses, resp)
	}

	from := q.Status
	if from == StatusSent || from == StatusNegotiating {
		q.Status = StatusAwaitingResponses
	}
	q.UpdatedAt = time.Now()
	if err := s.repo.CompareAndSave(ctx, q, from); err != nil {
		return Quotation{}, err
	}
	s.recordAudit(ctx, actor, "QUOTATION_RESPONSE", id, map[string]any{"supplier": sup.Code, "total_price": resp.TotalPrice.StringFixed(money.CurrencyScale)})
	return q, nil
}

// SubmitForApproval closes the response-collection window. It is an explicit
// action so several competing offers can be gathered first.
func (s *Service) SubmitForApproval(ctx context.Context, id int64, actor string) (Quotation, error) {
	q, err := s.transition(ctx, id, actor, StatusAwaitingResponses, StatusPendingApproval, func(q *Quotation) error {
		if len(q.Responses) == 0 {
			return fmt.Errorf("quotation: no supplier responses to decide on: %w", shared.ErrValidation)
		}
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}
	if s.approvals != nil {
		_ = s.approvals.EnsureSubmit(ctx, "QUOTATION", refID(id), actor, fmt.Sprintf("Quotation %s submitted for approval", q.Code))
	}
	s.recordAudit(ctx, actor, "QUOTATION_SUBMIT", id, map[string]any{"code": q.Code, "responses": len(q.Responses)})
	return q, nil
}

// ApproveInput describes an approval decision. SupplierCode optionally picks a
// respondent other than the best offer.
type ApproveInput struct {
	ApprovedBy   string
	SupplierCode string
}

// Approve accepts the quotation and generates its purchase order exactly once.
// Approving an already approved quotation is a no-op returning the existing
// record; concurrent approvers are serialized by the compare-and-swap write.
func (s *Service) Approve(ctx context.Context, id int64, input ApproveInput) (Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if q.Status == StatusApproved {
		return q, nil
	}
	if q.Status != StatusPendingApproval {
		return Quotation{}, fmt.Errorf("quotation: %s -> %s: %w", q.Status, StatusApproved, shared.ErrInvalidTransition)
	}
	if input.ApprovedBy == "" {
		return Quotation{}, fmt.Errorf("quotation: approver identity required: %w", shared.ErrValidation)
	}

	chosen := BestOffer(q.Responses)
	if input.SupplierCode != "" {
		r, ok := q.ResponseBySupplier(input.SupplierCode)
		if !ok {
			return Quotation{}, fmt.Errorf("quotation: %s: %w", input.SupplierCode, shared.ErrInvalidSupplier)
		}
		chosen = &r
	}
	if chosen == nil {
		return Quotation{}, fmt.Errorf("quotation: no supplier responses: %w", shared.ErrValidation)
	}

	// Second guard besides the CAS write: a racing approval that already
	// claimed the key maps to the retryable conflict error.
	idemKey := fmt.Sprintf("QUOTATION-PO:%d", id)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "quotation.approve"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Quotation{}, fmt.Errorf("quotation: approval already in flight: %w", shared.ErrConcurrentModification)
			}
			return Quotation{}, err
		}
		inserted = true
	}

	now := time.Now()
	q.Status = StatusApproved
	q.ApprovedBy = &input.ApprovedBy
	q.ApprovedAt = &now
	q.UpdatedAt = now
	if err := s.repo.CompareAndSave(ctx, q, StatusPendingApproval); err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return Quotation{}, err
	}

	lines := make([]purchaseorder.QuotationLineInput, 0, len(q.Lines))
	for _, l := range q.Lines {
		lines = append(lines, purchaseorder.QuotationLineInput{ProductCode: l.ProductCode, Quantity: l.Quantity, UOM: l.UOM})
	}
	po, err := s.orders.CreateFromQuotation(ctx, purchaseorder.FromQuotationInput{
		QuotationID:      q.ID,
		QuotationCode:    q.Code,
		SupplierCode:     chosen.SupplierCode,
		UnitPrice:        chosen.UnitPrice,
		Lines:            lines,
		ExpectedDelivery: now.AddDate(0, 0, chosen.LeadTimeDays),
		CreatedBy:        input.ApprovedBy,
	})
	if err != nil {
		// Revert the claim so a corrected retry can approve again; no partial
		// state survives the failed operation.
		q.Status = StatusPendingApproval
		q.ApprovedBy = nil
		q.ApprovedAt = nil
		q.UpdatedAt = time.Now()
		_ = s.repo.CompareAndSave(ctx, q, StatusApproved)
		if inserted {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return Quotation{}, err
	}

	q.PurchaseOrderID = &po.ID
	if err := s.repo.CompareAndSave(ctx, q, StatusApproved); err != nil {
		return Quotation{}, err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "QUOTATION", RefID: refID(id), Actor: input.ApprovedBy, Action: shared.ApprovalApprove, Note: fmt.Sprintf("Quotation %s approved", q.Code)})
	}
	s.recordAudit(ctx, input.ApprovedBy, "QUOTATION_APPROVE", id, map[string]any{"code": q.Code, "supplier": chosen.SupplierCode, "purchase_order_id": po.ID})
	s.notifier.Notify(ctx, notify.EventQuotationApproved, eventPayload(q))
	return q, nil
}

// Reject declines the quotation with a mandatory reason. No purchase order is
// created.
func (s *Service) Reject(ctx context.Context, id int64, actor, reason string) (Quotation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Quotation{}, fmt.Errorf("quotation: rejection reason required: %w", shared.ErrValidation)
	}
	q, err := s.transition(ctx, id, actor, StatusPendingApproval, StatusRejected, func(q *Quotation) error {
		q.RejectionReason = &reason
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "QUOTATION", RefID: refID(id), Actor: actor, Action: shared.ApprovalReject, Note: reason})
	}
	s.recordAudit(ctx, actor, "QUOTATION_REJECT", id, map[string]any{"code": q.Code, "reason": reason})
	s.notifier.Notify(ctx, notify.EventQuotationRejected, eventPayload(q))
	return q, nil
}

// Negotiate opens a negotiation round. The note must carry between 10 and 500
// characters inclusive; the quotation re-opens for revised offers when the
// next supplier response arrives.
func (s *Service) Negotiate(ctx context.Context, id int64, actor, note string) (Quotation, error) {
	if length := utf8.RuneCountInString(note); length < negotiationNoteMin {
		return Quotation{}, fmt.Errorf("quotation: negotiation note too short (%d chars, minimum %d): %w", length, negotiationNoteMin, shared.ErrValidation)
	} else if length > negotiationNoteMax {
		return Quotation{}, fmt.Errorf("quotation: negotiation note too long (%d chars, maximum %d): %w", length, negotiationNoteMax, shared.ErrValidation)
	}
	q, err := s.transition(ctx, id, actor, StatusPendingApproval, StatusNegotiating, func(q *Quotation) error {
		q.NegotiationNote = &note
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "QUOTATION", RefID: refID(id), Actor: actor, Action: shared.ApprovalNegotiate, Note: note})
	}
	s.recordAudit(ctx, actor, "QUOTATION_NEGOTIATE", id, map[string]any{"code": q.Code})
	s.notifier.Notify(ctx, notify.EventNegotiationOpened, eventPayload(q))
	return q, nil
}

// Resend re-notifies suppliers without changing state. Previously collected
// responses are preserved.
func (s *Service) Resend(ctx context.Context, id int64, actor string) (Quotation, error) {
	if actor == "" {
		return Quotation{}, fmt.Errorf("quotation: actor required: %w", shared.ErrValidation)
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if q.Status != StatusSent && q.Status != StatusAwaitingResponses {
		return Quotation{}, fmt.Errorf("quotation: cannot resend in %s: %w", q.Status, shared.ErrInvalidTransition)
	}
	s.recordAudit(ctx, actor, "QUOTATION_RESEND", id, map[string]any{"code": q.Code})
	s.notifier.Notify(ctx, notify.EventQuotationResent, eventPayload(q))
	return q, nil
}

// Cancel cancels a quotation from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, id int64, actor string) (Quotation, error) {
	q, err := s.transition(ctx, id, actor, "", StatusCancelled, nil)
	if err != nil {
		return Quotation{}, err
	}
	s.recordAudit(ctx, actor, "QUOTATION_CANCEL", id, map[string]any{"code": q.Code})
	s.notifier.Notify(ctx, notify.EventQuotationCancelled, eventPayload(q))
	return q, nil
}

// Get returns a quotation by id.
func (s *Service) Get(ctx context.Context, id int64) (Quotation, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode returns a quotation by its document number.
func (s *Service) GetByCode(ctx context.Context, code string) (Quotation, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns all quotations.
func (s *Service) List(ctx context.Context) ([]Quotation, error) {
	return s.repo.List(ctx)
}

// BestOfferFor derives the current best offer from the live response list.
func (s *Service) BestOfferFor(ctx context.Context, id int64) (*SupplierResponse, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return BestOffer(q.Responses), nil
}

// Comparison returns the ranked offers for a quotation.
func (s *Service) Comparison(ctx context.Context, id int64) ([]RankedOffer, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Compare(q.Responses), nil
}

// transition performs a guarded single-status move with a CAS write. An empty
// from matches any status the lifecycle allows for the target.
func (s *Service) transition(ctx context.Context, id int64, actor string, from, to Status, mutate func(*Quotation) error) (Quotation, error) {
	if actor == "" {
		return Quotation{}, fmt.Errorf("quotation: actor required: %w", shared.ErrValidation)
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	if from != "" && q.Status != from {
		return Quotation{}, fmt.Errorf("quotation: %s -> %s: %w", q.Status, to, shared.ErrInvalidTransition)
	}
	if !CanTransition(q.Status, to) {
		return Quotation{}, fmt.Errorf("quotation: %s -> %s: %w", q.Status, to, shared.ErrInvalidTransition)
	}
	expected := q.Status
	if mutate != nil {
		if err := mutate(&q); err != nil {
			return Quotation{}, err
		}
	}
	q.Status = to
	q.UpdatedAt = time.Now()
	if err := s.repo.CompareAndSave(ctx, q, expected); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: actor, Action: action, Entity: "quotation", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func refID(id int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("QUOTATION:%d", id)))
}

func eventPayload(q Quotation) map[string]any {
	return map[string]any{
		"quotation_id": q.ID,
		"code":         q.Code,
		"status":       string(q.Status),
	}
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
