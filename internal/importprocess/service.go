package importprocess

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/landedcost"
	"github.com/meridian-erp/meridian-erp/internal/notify"
	"github.com/meridian-erp/meridian-erp/internal/purchaseorder"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (ImportProcess, error)
	List(ctx context.Context) ([]ImportProcess, error)
	Create(ctx context.Context, ip ImportProcess) (int64, error)
	// CompareAndSave upserts the full record only while its status still equals
	// expected, failing with shared.ErrConcurrentModification otherwise.
	CompareAndSave(ctx context.Context, ip ImportProcess, expected Status) error
}

// OrdersPort looks up the purchase order the shipment belongs to.
type OrdersPort interface {
	Get(ctx context.Context, id int64) (purchaseorder.PurchaseOrder, error)
}

// AuditPort records successful mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the import process lifecycle and its landed-cost snapshot.
type Service struct {
	repo     RepositoryPort
	orders   OrdersPort
	audit    AuditPort
	notifier notify.Notifier
}

// NewService constructs the import process service.
func NewService(repo RepositoryPort, orders OrdersPort, audit AuditPort, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{repo: repo, orders: orders, audit: audit, notifier: notifier}
}

// CreateInput describes a new import process.
type CreateInput struct {
	PurchaseOrderID int64
	InvoiceNumber   string
	InvoiceDate     time.Time
	Currency        string
	Incoterm        string
	NCM             string
	Description     string
	OriginPort      string
	DestinationPort string
	GrossWeight     decimal.Decimal
	ExpectedArrival time.Time
	Costs           landedcost.Input
	CreatedBy       string
}

// Milestone labels written to the timeline as the shipment advances.
var statusLabels = map[Status]string{
	StatusWaitingShip: "Shipment booked, waiting to ship",
	StatusInTransit:   "Departed origin port",
	StatusCustoms:     "Arrived, customs clearance started",
	StatusDelivered:   "Cleared and delivered",
	StatusCancelled:   "Import process cancelled",
}

// Create opens an import process for an import purchase order. The landed cost
// is computed here, once, and stored; later reads return the stored snapshot.
func (s *Service) Create(ctx context.Context, input CreateInput) (ImportProcess, error) {
	if input.CreatedBy == "" {
		return ImportProcess{}, fmt.Errorf("importprocess: creator identity required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(input.InvoiceNumber) == "" {
		return ImportProcess{}, fmt.Errorf("importprocess: invoice number required: %w", shared.ErrValidation)
	}
	po, err := s.orders.Get(ctx, input.PurchaseOrderID)
	if err != nil {
		return ImportProcess{}, err
	}
	if !po.IsImport {
		return ImportProcess{}, fmt.Errorf("importprocess: purchase order %s is domestic: %w", po.Code, shared.ErrValidation)
	}

	cost, err := landedcost.Calculate(input.Costs)
	if err != nil {
		return ImportProcess{}, err
	}

	now := time.Now()
	actor := input.CreatedBy
	ip := ImportProcess{
		Code:            generateNumber("IMP"),
		PurchaseOrderID: po.ID,
		SupplierCode:    po.SupplierCode,
		InvoiceNumber:   input.InvoiceNumber,
		InvoiceDate:     input.InvoiceDate,
		Currency:        defaultString(input.Currency, po.Currency),
		Incoterm:        input.Incoterm,
		NCM:             input.NCM,
		Description:     input.Description,
		OriginPort:      input.OriginPort,
		DestinationPort: input.DestinationPort,
		GrossWeight:     input.GrossWeight,
		ExpectedArrival: input.ExpectedArrival,
		Status:          StatusDraft,
		Costs:           input.Costs,
		LandedCost:      cost,
		CreatedBy:       input.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
		Timeline: []TimelineEntry{
			{Date: now, Label: fmt.Sprintf("Import process opened for %s", po.Code), Actor: &actor},
		},
	}
	if !input.ExpectedArrival.IsZero() {
		// Forecast milestone: nil actor until the arrival is confirmed.
		ip.Timeline = append(ip.Timeline, TimelineEntry{Date: input.ExpectedArrival, Label: "Expected arrival at destination port", Actor: nil})
	}
	sortTimeline(ip.Timeline)

	id, err := s.repo.Create(ctx, ip)
	if err != nil {
		return ImportProcess{}, err
	}
	ip.ID = id
	s.recordAudit(ctx, input.CreatedBy, "IMPORT_CREATE", id, map[string]any{"code": ip.Code, "purchase_order_id": po.ID})
	return ip, nil
}

// Advance moves the shipment one step forward, or to CANCELLED, appending a
// confirmed timeline milestone.
func (s *Service) Advance(ctx context.Context, id int64, to Status, actor string) (ImportProcess, error) {
	if actor == "" {
		return ImportProcess{}, fmt.Errorf("importprocess: actor required: %w", shared.ErrValidation)
	}
	ip, err := s.repo.Get(ctx, id)
	if err != nil {
		return ImportProcess{}, err
	}
	if !CanTransition(ip.Status, to) {
		return ImportProcess{}, fmt.Errorf("importprocess: %s -> %s: %w", ip.Status, to, shared.ErrInvalidTransition)
	}
	from := ip.Status
	now := time.Now()
	ip.Status = to
	ip.UpdatedAt = now
	label, ok := statusLabels[to]
	if !ok {
		label = string(to)
	}
	ip.Timeline = append(ip.Timeline, TimelineEntry{Date: now, Label: label, Actor: &actor})
	sortTimeline(ip.Timeline)
	if err := s.repo.CompareAndSave(ctx, ip, from); err != nil {
		return ImportProcess{}, err
	}
	s.recordAudit(ctx, actor, "IMPORT_STATUS", id, map[string]any{"from": string(from), "to": string(to)})
	s.notifier.Notify(ctx, notify.EventImportMilestone, map[string]any{
		"import_process_id": id,
		"code":              ip.Code,
		"status":            string(to),
	})
	return ip, nil
}

// Cancel cancels the shipment from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, id int64, actor string) (ImportProcess, error) {
	return s.Advance(ctx, id, StatusCancelled, actor)
}

// UpdateCosts replaces the calculator inputs and recomputes the landed-cost
// snapshot. This is the only path that refreshes the snapshot.
func (s *Service) UpdateCosts(ctx context.Context, id int64, costs landedcost.Input, actor string) (ImportProcess, error) {
	if actor == "" {
		return ImportProcess{}, fmt.Errorf("importprocess: actor required: %w", shared.ErrValidation)
	}
	ip, err := s.repo.Get(ctx, id)
	if err != nil {
		return ImportProcess{}, err
	}
	if ip.Status.Terminal() {
		return ImportProcess{}, fmt.Errorf("importprocess: %s is closed: %w", ip.Code, shared.ErrInvalidTransition)
	}
	cost, err := landedcost.Calculate(costs)
	if err != nil {
		return ImportProcess{}, err
	}
	from := ip.Status
	ip.Costs = costs
	ip.LandedCost = cost
	ip.UpdatedAt = time.Now()
	if err := s.repo.CompareAndSave(ctx, ip, from); err != nil {
		return ImportProcess{}, err
	}
	s.recordAudit(ctx, actor, "IMPORT_COSTS", id, map[string]any{"code": ip.Code, "total": cost.Total.StringFixed(2)})
	return ip, nil
}

// AppendTimeline adds a milestone. Entries are append-only; the list stays
// ordered by date. A nil actor records a forecasted milestone.
func (s *Service) AppendTimeline(ctx context.Context, id int64, entry TimelineEntry) (ImportProcess, error) {
	if strings.TrimSpace(entry.Label) == "" {
		return ImportProcess{}, fmt.Errorf("importprocess: timeline label required: %w", shared.ErrValidation)
	}
	if entry.Date.IsZero() {
		return ImportProcess{}, fmt.Errorf("importprocess: timeline date required: %w", shared.ErrValidation)
	}
	ip, err := s.repo.Get(ctx, id)
	if err != nil {
		return ImportProcess{}, err
	}
	if ip.Status.Terminal() {
		return ImportProcess{}, fmt.Errorf("importprocess: %s is closed: %w", ip.Code, shared.ErrInvalidTransition)
	}
	from := ip.Status
	ip.Timeline = append(ip.Timeline, entry)
	sortTimeline(ip.Timeline)
	ip.UpdatedAt = time.Now()
	if err := s.repo.CompareAndSave(ctx, ip, from); err != nil {
		return ImportProcess{}, err
	}
	return ip, nil
}

// Get returns an import process by id. The landed cost returned is the stored
// snapshot, never recomputed here.
func (s *Service) Get(ctx context.Context, id int64) (ImportProcess, error) {
	return s.repo.Get(ctx, id)
}

// List returns all import processes.
func (s *Service) List(ctx context.Context) ([]ImportProcess, error) {
	return s.repo.List(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: actor, Action: action, Entity: "import_process", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func sortTimeline(entries []TimelineEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
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
