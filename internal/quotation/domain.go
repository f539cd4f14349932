package quotation

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
)

// Quotation (RFQ) lifecycle statuses.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusSent              Status = "SENT"
	StatusAwaitingResponses Status = "AWAITING_RESPONSES"
	StatusPendingApproval   Status = "PENDING_APPROVAL"
	StatusApproved          Status = "APPROVED"
	StatusRejected          Status = "REJECTED"
	StatusNegotiating       Status = "NEGOTIATING"
	StatusCancelled         Status = "CANCELLED"
)

// Terminal reports whether no transition may leave s. Quotations are never
// deleted; terminal records are retained for audit.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving between two statuses is allowed.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return !from.Terminal()
	}
	switch from {
	case StatusDraft:
		return to == StatusSent
	case StatusSent:
		return to == StatusAwaitingResponses
	case StatusAwaitingResponses:
		return to == StatusPendingApproval
	case StatusPendingApproval:
		return to == StatusApproved || to == StatusRejected || to == StatusNegotiating
	case StatusNegotiating:
		// A negotiation round re-opens when a revised supplier offer arrives.
		return to == StatusAwaitingResponses
	case StatusApproved, StatusRejected, StatusCancelled:
		return false
	}
	return false
}

// canReceiveResponses lists the statuses in which supplier offers are accepted.
func (s Status) canReceiveResponses() bool {
	return s == StatusSent || s == StatusAwaitingResponses || s == StatusNegotiating
}

// Negotiation note length bounds, both inclusive.
const (
	negotiationNoteMin = 10
	negotiationNoteMax = 500
)

// LineItem is one requested product on a quotation.
type LineItem struct {
	ProductCode string          `json:"product_code"`
	Quantity    decimal.Decimal `json:"quantity"`
	UOM         string          `json:"uom"`
}

// SupplierResponse is one supplier's offer for the whole quotation. TotalPrice
// is recomputed as unit price times the total requested quantity, never trusted
// from input. At most one response per supplier: a resubmission replaces the
// earlier one in place.
type SupplierResponse struct {
	SupplierCode string          `json:"supplier_code"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	LeadTimeDays int             `json:"lead_time_days"`
	PaymentTerms string          `json:"payment_terms,omitempty"`
	RespondedAt  time.Time       `json:"responded_at"`
	Notes        string          `json:"notes,omitempty"`
}

// MarshalJSON renders prices with an explicit scale: the total at the fixed
// currency scale, the unit price with up to four fractional digits.
func (r SupplierResponse) MarshalJSON() ([]byte, error) {
	type alias SupplierResponse
	return json.Marshal(struct {
		alias
		UnitPrice  json.RawMessage `json:"unit_price"`
		TotalPrice json.RawMessage `json:"total_price"`
	}{alias(r), money.JSONRate(r.UnitPrice), money.JSONAmount(r.TotalPrice)})
}

// Quotation is one request for quotation sent to suppliers.
type Quotation struct {
	ID              int64              `json:"id"`
	Code            string             `json:"code"`
	Status          Status             `json:"status"`
	CreatedBy       string             `json:"created_by"`
	CreatedAt       time.Time          `json:"created_at"`
	Lines           []LineItem         `json:"lines"`
	Responses       []SupplierResponse `json:"responses,omitempty"`
	ApprovedBy      *string            `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time         `json:"approved_at,omitempty"`
	RejectionReason *string            `json:"rejection_reason,omitempty"`
	NegotiationNote *string            `json:"negotiation_note,omitempty"`
	PurchaseOrderID *int64             `json:"purchase_order_id,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// RequestedQuantity is the total quantity across all line items; supplier
// offers are priced per unit against it.
func (q Quotation) RequestedQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range q.Lines {
		total = total.Add(l.Quantity)
	}
	return total
}

// ResponseBySupplier returns the recorded response for a supplier, if any.
func (q Quotation) ResponseBySupplier(code string) (SupplierResponse, bool) {
	for _, r := range q.Responses {
		if r.SupplierCode == code {
			return r, true
		}
	}
	return SupplierResponse{}, false
}
