package purchaseorder

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
)

// Purchase order lifecycle statuses.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusInTransit: 2,
	StatusDelivered: 3,
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether a status change is allowed. The lifecycle only
// moves forward one step at a time; cancellation is reachable from any
// non-terminal state and is irreversible.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	fromRank, ok := statusRank[from]
	toRank, ok2 := statusRank[to]
	return ok && ok2 && toRank == fromRank+1
}

// Line is one purchased item. LineTotal is always recomputed from quantity and
// unit price, never trusted from input.
type Line struct {
	ProductCode string          `json:"product_code"`
	Quantity    decimal.Decimal `json:"quantity"`
	UOM         string          `json:"uom"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// MarshalJSON renders the unit price with up to four fractional digits and the
// line total at the fixed currency scale.
func (l Line) MarshalJSON() ([]byte, error) {
	type alias Line
	return json.Marshal(struct {
		alias
		UnitPrice json.RawMessage `json:"unit_price"`
		LineTotal json.RawMessage `json:"line_total"`
	}{alias(l), money.JSONRate(l.UnitPrice), money.JSONAmount(l.LineTotal)})
}

// PurchaseOrder is a commitment to buy from one supplier, created from an
// approved quotation or directly for ad-hoc purchases.
type PurchaseOrder struct {
	ID               int64           `json:"id"`
	Code             string          `json:"code"`
	QuotationID      *int64          `json:"quotation_id,omitempty"`
	SupplierCode     string          `json:"supplier_code"`
	Lines            []Line          `json:"lines"`
	TotalValue       decimal.Decimal `json:"total_value"`
	Currency         string          `json:"currency"`
	IsImport         bool            `json:"is_import"`
	ExpectedDelivery time.Time       `json:"expected_delivery"`
	Status           Status          `json:"status"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// MarshalJSON renders the order total at the fixed currency scale.
func (po PurchaseOrder) MarshalJSON() ([]byte, error) {
	type alias PurchaseOrder
	return json.Marshal(struct {
		alias
		TotalValue json.RawMessage `json:"total_value"`
	}{alias(po), money.JSONAmount(po.TotalValue)})
}
