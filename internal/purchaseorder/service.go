package purchaseorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/masterdata/products"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/suppliers"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/notify"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	List(ctx context.Context) ([]PurchaseOrder, error)
	Create(ctx context.Context, po PurchaseOrder) (int64, error)
	// CompareAndSave upserts the full record only while its status still equals
	// expected, failing with shared.ErrConcurrentModification otherwise.
	CompareAndSave(ctx context.Context, po PurchaseOrder, expected Status) error
}

// MasterdataPort exposes the read-only supplier/product lookups.
type MasterdataPort interface {
	GetProduct(ctx context.Context, code string) (products.Product, error)
	GetSupplier(ctx context.Context, code string) (suppliers.Supplier, error)
}

// AuditPort records successful mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Config carries the buyer-side defaults.
type Config struct {
	// DomesticCountry decides the import flag: a supplier from any other
	// country makes the order an import regardless of its currency.
	DomesticCountry string
	// DefaultCurrency applies when neither input nor supplier carries one.
	DefaultCurrency string
}

// Service owns purchase-order creation and its status lifecycle.
type Service struct {
	repo       RepositoryPort
	masterdata MasterdataPort
	audit      AuditPort
	notifier   notify.Notifier
	cfg        Config
}

// NewService constructs the purchase-order service.
func NewService(repo RepositoryPort, masterdata MasterdataPort, audit AuditPort, notifier notify.Notifier, cfg Config) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.DomesticCountry == "" {
		cfg.DomesticCountry = "BR"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "BRL"
	}
	return &Service{repo: repo, masterdata: masterdata, audit: audit, notifier: notifier, cfg: cfg}
}

// QuotationLineInput is a line carried over from a quotation.
type QuotationLineInput struct {
	ProductCode string
	Quantity    decimal.Decimal
	UOM         string
}

// FromQuotationInput holds everything needed to materialize an order from an
// approved quotation. Prices come from the chosen supplier response.
type FromQuotationInput struct {
	QuotationID      int64
	QuotationCode    string
	SupplierCode     string
	UnitPrice        decimal.Decimal
	Lines            []QuotationLineInput
	Currency         string
	ExpectedDelivery time.Time
	CreatedBy        string
}

// CreateFromQuotation materializes a purchase order from quotation data.
func (s *Service) CreateFromQuotation(ctx context.Context, input FromQuotationInput) (PurchaseOrder, error) {
	if input.QuotationID <= 0 || input.SupplierCode == "" || input.CreatedBy == "" {
		return PurchaseOrder{}, fmt.Errorf("purchaseorder: quotation, supplier and actor required: %w", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("purchaseorder: minimal 1 line: %w", shared.ErrValidation)
	}
	if input.UnitPrice.IsNegative() {
		return PurchaseOrder{}, fmt.Errorf("purchaseorder: negative unit price: %w", shared.ErrValidation)
	}

	sup, err := s.masterdata.GetSupplier(ctx, input.SupplierCode)
	if err != nil {
		return PurchaseOrder{}, err
	}

	lines := make([]Line, 0, len(input.Lines))
	for _, l := range input.Lines {
		if l.ProductCode == "" || l.Quantity.Sign() <= 0 {
			return PurchaseOrder{}, fmt.Errorf("purchaseorder: line for %q needs positive quantity: %w", l.ProductCode, shared.ErrValidation)
		}
		lines = append(lines, Line{
			ProductCode: l.ProductCode,
			Quantity:    l.Quantity,
			UOM:         l.UOM,
			UnitPrice:   input.UnitPrice,
			LineTotal:   money.RoundCurrency(l.Quantity.Mul(input.UnitPrice)),
		})
	}

	quotationID := input.QuotationID
	po := PurchaseOrder{
		Code:             generateNumber("PO"),
		QuotationID:      &quotationID,
		SupplierCode:     sup.Code,
		Lines:            lines,
		TotalValue:       sumLines(lines),
		Currency:         defaultString(input.Currency, defaultString(sup.Currency, s.cfg.DefaultCurrency)),
		IsImport:         s.isImport(sup),
		ExpectedDelivery: input.ExpectedDelivery,
		Status:           StatusPending,
		CreatedBy:        input.CreatedBy,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	id, err := s.repo.Create(ctx, po)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.ID = id
	s.recordAudit(ctx, input.CreatedBy, "PO_CREATE", id, map[string]any{"code": po.Code, "from_quotation": input.QuotationCode})
	s.notifier.Notify(ctx, notify.EventPurchaseOrderMade, map[string]any{
		"purchase_order_id": id,
		"code":              po.Code,
		"quotation_id":      input.QuotationID,
		"supplier":          po.SupplierCode,
		"total_value":       po.TotalValue.StringFixed(money.CurrencyScale),
		"is_import":         po.IsImport,
	})
	return po, nil
}

// AdHocLineInput is a directly entered order line.
type AdHocLineInput struct {
	ProductCode string
	Quantity    decimal.Decimal
	UOM         string
	UnitPrice   decimal.Decimal
}

// CreateAdHocInput describes a purchase order entered without a quotation.
type CreateAdHocInput struct {
	SupplierCode     string
	Lines            []AdHocLineInput
	Currency         string
	ExpectedDelivery time.Time
	CreatedBy        string
}

// CreateAdHoc creates a purchase order directly, without a quotation.
func (s *Service) CreateAdHoc(ctx context.Context, input CreateAdHocInput) (PurchaseOrder, error) {
	if input.SupplierCode == "" || input.CreatedBy == "" {
		return PurchaseOrder{}, fmt.Errorf("purchaseorder: supplier and actor required: %w", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("purchaseorder: minimal 1 line: %w", shared.ErrValidation)
	}

	sup, err := s.masterdata.GetSupplier(ctx, input.SupplierCode)
	if err != nil {
		return PurchaseOrder{}, err
	}

	lines := make([]Line, 0, len(input.Lines))
	for _, l := range input.Lines {
		if l.Quantity.Sign() <= 0 {
			return PurchaseOrder{}, fmt.Errorf("purchaseorder: line for %q needs positive quantity: %w", l.ProductCode, shared.ErrValidation)
		}
		if l.UnitPrice.IsNegative() {
			return PurchaseOrder{}, fmt.Errorf("purchaseorder: negative unit price for %q: %w", l.ProductCode, shared.ErrValidation)
		}
		product, err := s.masterdata.GetProduct(ctx, l.ProductCode)
		if err != nil {
			return PurchaseOrder{}, err
		}
		lines = append(lines, Line{
			ProductCode: product.Code,
			Quantity:    l.Quantity,
			UOM:         defaultString(l.UOM, product.UOM),
			UnitPrice:   l.UnitPrice,
			LineTotal:   money.RoundCurrency(l.Quantity.Mul(l.UnitPrice)),
		})
	}

	po := PurchaseOrder{
		Code:             generateNumber("PO"),
		SupplierCode:     sup.Code,
		Lines:            lines,
		TotalValue:       sumLines(lines),
		Currency:         defaultString(input.Currency, defaultString(sup.Currency, s.cfg.DefaultCurrency)),
		IsImport:         s.isImport(sup),
		ExpectedDelivery: input.ExpectedDelivery,
		Status:           StatusPending,
		CreatedBy:        input.CreatedBy,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	id, err := s.repo.Create(ctx, po)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.ID = id
	s.recordAudit(ctx, input.CreatedBy, "PO_CREATE", id, map[string]any{"code": po.Code, "ad_hoc": true})
	s.notifier.Notify(ctx, notify.EventPurchaseOrderMade, map[string]any{
		"purchase_order_id": id,
		"code":              po.Code,
		"supplier":          po.SupplierCode,
		"total_value":       po.TotalValue.StringFixed(money.CurrencyScale),
		"is_import":         po.IsImport,
	})
	return po, nil
}

// Advance moves the order one step forward, or to CANCELLED. The write is a
// compare-and-swap on the status read here, so two racing callers cannot both
// record a transition.
func (s *Service) Advance(ctx context.Context, id int64, to Status, actor string) (PurchaseOrder, error) {
	if actor == "" {
		return PurchaseOrder{}, fmt.Errorf("purchaseorder: actor required: %w", shared.ErrValidation)
	}
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !CanTransition(po.Status, to) {
		return PurchaseOrder{}, fmt.Errorf("purchaseorder: %s -> %s: %w", po.Status, to, shared.ErrInvalidTransition)
	}
	from := po.Status
	po.Status = to
	po.UpdatedAt = time.Now()
	if err := s.repo.CompareAndSave(ctx, po, from); err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor, "PO_STATUS", id, map[string]any{"from": string(from), "to": string(to)})
	return po, nil
}

// Cancel cancels the order from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, id int64, actor string) (PurchaseOrder, error) {
	return s.Advance(ctx, id, StatusCancelled, actor)
}

// Get returns a purchase order by id.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns all purchase orders.
func (s *Service) List(ctx context.Context) ([]PurchaseOrder, error) {
	return s.repo.List(ctx)
}

func (s *Service) isImport(sup suppliers.Supplier) bool {
	return !strings.EqualFold(sup.Country, s.cfg.DomesticCountry)
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: actor, Action: action, Entity: "purchase_order", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func sumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return total
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
