package importprocess

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/landedcost"
)

// Shipment lifecycle statuses.
type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusWaitingShip Status = "WAITING_SHIP"
	StatusInTransit   Status = "IN_TRANSIT"
	StatusCustoms     Status = "CUSTOMS"
	StatusDelivered   Status = "DELIVERED"
	StatusCancelled   Status = "CANCELLED"
)

var statusRank = map[Status]int{
	StatusDraft:       0,
	StatusWaitingShip: 1,
	StatusInTransit:   2,
	StatusCustoms:     3,
	StatusDelivered:   4,
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether a status change is allowed. Shipments only move
// forward one step at a time; cancellation is reachable from any non-terminal
// state and is irreversible.
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

// TimelineEntry is one milestone of the shipment. A nil Actor marks a
// forecasted future milestone; a populated Actor marks a confirmed past event.
// The two must stay distinguishable, so Actor serializes as an explicit null.
type TimelineEntry struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
	Actor *string   `json:"actor"`
}

// ImportProcess tracks one cross-border shipment tied to a purchase order.
// Costs holds the calculator inputs as entered; LandedCost is the snapshot
// computed from them, refreshed only when the inputs are edited.
type ImportProcess struct {
	ID              int64             `json:"id"`
	Code            string            `json:"code"`
	PurchaseOrderID int64             `json:"purchase_order_id"`
	SupplierCode    string            `json:"supplier_code"`
	InvoiceNumber   string            `json:"invoice_number"`
	InvoiceDate     time.Time         `json:"invoice_date"`
	Currency        string            `json:"currency"`
	Incoterm        string            `json:"incoterm"`
	NCM             string            `json:"ncm"`
	Description     string            `json:"description"`
	OriginPort      string            `json:"origin_port"`
	DestinationPort string            `json:"destination_port"`
	GrossWeight     decimal.Decimal   `json:"gross_weight"`
	ExpectedArrival time.Time         `json:"expected_arrival"`
	Status          Status            `json:"status"`
	Costs           landedcost.Input  `json:"costs"`
	LandedCost      landedcost.Result `json:"landed_cost"`
	Timeline        []TimelineEntry   `json:"timeline"`
	CreatedBy       string            `json:"created_by"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
