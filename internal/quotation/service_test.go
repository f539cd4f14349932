package quotation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/masterdata/products"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/suppliers"
	"github.com/meridian-erp/meridian-erp/internal/purchaseorder"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type fakeRepo struct {
	nextID       int64
	records      map[int64]Quotation
	conflictOnce bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[int64]Quotation{}}
}

func (r *fakeRepo) Get(_ context.Context, id int64) (Quotation, error) {
	q, ok := r.records[id]
	if !ok {
		return Quotation{}, fmt.Errorf("quotation: %d: %w", id, shared.ErrNotFound)
	}
	return q, nil
}

func (r *fakeRepo) GetByCode(_ context.Context, code string) (Quotation, error) {
	for _, q := range r.records {
		if q.Code == code {
			return q, nil
		}
	}
	return Quotation{}, fmt.Errorf("quotation: %s: %w", code, shared.ErrNotFound)
}

func (r *fakeRepo) List(_ context.Context) ([]Quotation, error) {
	out := make([]Quotation, 0, len(r.records))
	for _, q := range r.records {
		out = append(out, q)
	}
	return out, nil
}

func (r *fakeRepo) Create(_ context.Context, q Quotation) (int64, error) {
	r.nextID++
	q.ID = r.nextID
	r.records[q.ID] = q
	return q.ID, nil
}

func (r *fakeRepo) CompareAndSave(_ context.Context, q Quotation, expected Status) error {
	if r.conflictOnce {
		r.conflictOnce = false
		return fmt.Errorf("quotation: %d: %w", q.ID, shared.ErrConcurrentModification)
	}
	stored, ok := r.records[q.ID]
	if !ok {
		return fmt.Errorf("quotation: %d: %w", q.ID, shared.ErrNotFound)
	}
	if stored.Status != expected {
		return fmt.Errorf("quotation: %d: %w", q.ID, shared.ErrConcurrentModification)
	}
	r.records[q.ID] = q
	return nil
}

type fakeMasterdata struct {
	products  map[string]products.Product
	suppliers map[string]suppliers.Supplier
}

func (f *fakeMasterdata) GetProduct(_ context.Context, code string) (products.Product, error) {
	p, ok := f.products[code]
	if !ok {
		return products.Product{}, fmt.Errorf("product: %s: %w", code, shared.ErrNotFound)
	}
	return p, nil
}

func (f *fakeMasterdata) GetSupplier(_ context.Context, code string) (suppliers.Supplier, error) {
	s, ok := f.suppliers[code]
	if !ok {
		return suppliers.Supplier{}, fmt.Errorf("supplier: %s: %w", code, shared.ErrNotFound)
	}
	return s, nil
}

type fakeOrders struct {
	created  []purchaseorder.FromQuotationInput
	failOnce bool
}

func (f *fakeOrders) CreateFromQuotation(_ context.Context, input purchaseorder.FromQuotationInput) (purchaseorder.PurchaseOrder, error) {
	if f.failOnce {
		f.failOnce = false
		return purchaseorder.PurchaseOrder{}, errors.New("order store unavailable")
	}
	f.created = append(f.created, input)
	return purchaseorder.PurchaseOrder{ID: int64(len(f.created)), Code: fmt.Sprintf("PO-%d", len(f.created))}, nil
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event string, _ map[string]any) {
	n.events = append(n.events, event)
}

type quotationFixture struct {
	service  *Service
	repo     *fakeRepo
	orders   *fakeOrders
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *quotationFixture {
	t.Helper()
	repo := newFakeRepo()
	orders := &fakeOrders{}
	notifier := &recordingNotifier{}
	md := &fakeMasterdata{
		products: map[string]products.Product{
			"PRD-100": {Code: "PRD-100", Name: "Hydraulic pump", UOM: "UN"},
			"PRD-200": {Code: "PRD-200", Name: "Gasket kit", UOM: "PC"},
		},
		suppliers: map[string]suppliers.Supplier{
			"SUP-A": {Code: "SUP-A", Name: "Alfa Componentes", Country: "BR", Currency: "BRL"},
			"SUP-B": {Code: "SUP-B", Name: "Beta Trading", Country: "CN", Currency: "USD"},
		},
	}
	return &quotationFixture{
		service:  NewService(repo, md, orders, nil, nil, nil, notifier),
		repo:     repo,
		orders:   orders,
		notifier: notifier,
	}
}

func (f *quotationFixture) create(t *testing.T) Quotation {
	t.Helper()
	q, err := f.service.Create(context.Background(), CreateInput{
		CreatedBy: "buyer@acme",
		Lines: []LineInput{
			{ProductCode: "PRD-100", Quantity: decimal.NewFromInt(300)},
			{ProductCode: "PRD-200", Quantity: decimal.NewFromInt(200)},
		},
	})
	require.NoError(t, err)
	return q
}

func (f *quotationFixture) respond(t *testing.T, id int64, supplier, unitPrice string, leadDays int) Quotation {
	t.Helper()
	q, err := f.service.RecordResponse(context.Background(), id, ResponseInput{
		SupplierCode: supplier,
		UnitPrice:    decimal.RequireFromString(unitPrice),
		LeadTimeDays: leadDays,
	}, supplier)
	require.NoError(t, err)
	return q
}

func (f *quotationFixture) pendingApproval(t *testing.T) Quotation {
	t.Helper()
	q := f.create(t)
	f.respond(t, q.ID, "SUP-A", "10.00", 15)
	f.respond(t, q.ID, "SUP-B", "9.50", 30)
	q, err := f.service.SubmitForApproval(context.Background(), q.ID, "buyer@acme")
	require.NoError(t, err)
	return q
}

func TestCreateValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, CreateInput{CreatedBy: "buyer@acme"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Create(ctx, CreateInput{CreatedBy: "buyer@acme", Lines: []LineInput{
		{ProductCode: "PRD-100", Quantity: decimal.Zero},
	}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Create(ctx, CreateInput{CreatedBy: "buyer@acme", Lines: []LineInput{
		{ProductCode: "PRD-404", Quantity: decimal.NewFromInt(1)},
	}})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateStartsSentAndNotifies(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	require.Equal(t, StatusSent, q.Status)
	require.True(t, strings.HasPrefix(q.Code, "RFQ-"))
	require.Equal(t, "UN", q.Lines[0].UOM)
	require.Equal(t, []string{"quotation.sent"}, f.notifier.events)
}

func TestDraftIsSentExplicitly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.service.Create(ctx, CreateInput{CreatedBy: "buyer@acme", Draft: true, Lines: []LineInput{
		{ProductCode: "PRD-100", Quantity: decimal.NewFromInt(10)},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, q.Status)
	require.Empty(t, f.notifier.events)

	q, err = f.service.Send(ctx, q.ID, "buyer@acme")
	require.NoError(t, err)
	require.Equal(t, StatusSent, q.Status)
	require.Equal(t, []string{"quotation.sent"}, f.notifier.events)
}

func TestRecordResponseComputesTotalAndOpensWindow(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	q = f.respond(t, q.ID, "SUP-A", "12.345", 20)
	require.Equal(t, StatusAwaitingResponses, q.Status)
	require.Len(t, q.Responses, 1)
	// 12.345 * 500 units = 6172.50 after rounding.
	require.Equal(t, "6172.50", q.Responses[0].TotalPrice.StringFixed(2))
}

func TestRecordResponseValidates(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	ctx := context.Background()

	_, err := f.service.RecordResponse(ctx, q.ID, ResponseInput{SupplierCode: "SUP-404", UnitPrice: decimal.NewFromInt(1), LeadTimeDays: 5}, "SUP-404")
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.service.RecordResponse(ctx, q.ID, ResponseInput{SupplierCode: "SUP-A", UnitPrice: decimal.NewFromInt(-1), LeadTimeDays: 5}, "SUP-A")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.RecordResponse(ctx, q.ID, ResponseInput{SupplierCode: "SUP-A", UnitPrice: decimal.NewFromInt(1)}, "SUP-A")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestResubmissionReplacesInPlace(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)

	f.respond(t, q.ID, "SUP-A", "10.00", 15)
	f.respond(t, q.ID, "SUP-B", "11.00", 10)
	q = f.respond(t, q.ID, "SUP-A", "9.00", 12)

	require.Len(t, q.Responses, 2)
	require.Equal(t, "SUP-A", q.Responses[0].SupplierCode)
	require.Equal(t, "9.00", q.Responses[0].UnitPrice.StringFixed(2))
	require.Equal(t, 12, q.Responses[0].LeadTimeDays)
}

func TestSubmitRequiresResponses(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	ctx := context.Background()

	// No responses yet, so the quotation is still SENT.
	_, err := f.service.SubmitForApproval(ctx, q.ID, "buyer@acme")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	f.respond(t, q.ID, "SUP-A", "10.00", 15)
	q, err = f.service.SubmitForApproval(ctx, q.ID, "buyer@acme")
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, q.Status)
}

func TestApprovePicksBestOfferAndCreatesOrder(t *testing.T) {
	f := newFixture(t)
	q := f.pendingApproval(t)

	approved, err := f.service.Approve(context.Background(), q.ID, ApproveInput{ApprovedBy: "cfo@acme"})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.PurchaseOrderID)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, "cfo@acme", *approved.ApprovedBy)

	require.Len(t, f.orders.created, 1)
	require.Equal(t, "SUP-B", f.orders.created[0].SupplierCode)
	require.Equal(t, q.Code, f.orders.created[0].QuotationCode)
	require.Contains(t, f.notifier.events, "quotation.approved")
}

func TestApproveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	q := f.pendingApproval(t)
	ctx := context.Background()

	first, err := f.service.Approve(ctx, q.ID, ApproveInput{ApprovedBy: "cfo@acme"})
	require.NoError(t, err)
	again, err := f.service.Approve(ctx, q.ID, ApproveInput{ApprovedBy: "other@acme"})
	require.NoError(t, err)

	require.Equal(t, first.PurchaseOrderID, again.PurchaseOrderID)
	require.Equal(t, "cfo@acme", *again.ApprovedBy)
	require.Len(t, f.orders.created, 1)
}

func TestApproveSupplierOverride(t *testing.T) {
	f := newFixture(t)
	q := f.pendingApproval(t)
	ctx := context.Background()

	_, err := f.service.Approve(ctx, q.ID, ApproveInput{ApprovedBy: "cfo@acme", SupplierCode: "SUP-C"})
	require.ErrorIs(t, err, shared.ErrInvalidSupplier)
	require.Empty(t, f.orders.created)

	approved, err := f.service.Approve(ctx, q.ID, ApproveInput{ApprovedBy: "cfo@acme", SupplierCode: "SUP-A"})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, "SUP-A", f.orders.created[0].SupplierCode)
}

func TestApproveLosesRaceWithoutCreatingOrder(t *testing.T) {
	f := newFixture(t)
	q := f.pendingApproval(t)
	f.repo.conflictOnce = true

	_, err := f.service.Approve(context.Background(), q.ID, ApproveInput{ApprovedBy: "cfo@acme"})
	require.ErrorIs(t, err, shared.ErrConcurrentModification)
	require.Empty(t, f.orders.created)
}

func TestApproveRevertsWhenOrderCreationFails(t *testing.T) {
	f := newFixture(t)
	q := f.pendingApproval(t)
	f.orders.failOnce = true
	ctx := context.Background()

	_, err := f.service.Approve(ctx, q.ID, ApproveInput{ApprovedBy: "cfo@acme"})
	require.Error(t, err)

	stored, err := f.service.Get(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, stored.Status)
	require.Nil(t, stored.ApprovedBy)
	require.Nil(t, stored.PurchaseOrderID)

	approved, err := f.service.Approve(ctx, q.ID, ApproveInput{ApprovedBy: "cfo@acme"})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Len(t, f.orders.created, 1)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	q := f.pendingApproval(t)
	ctx := context.Background()

	_, err := f.service.Reject(ctx, q.ID, "cfo@acme", "   ")
	require.ErrorIs(t, err, shared.ErrValidation)

	rejected, err := f.service.Reject(ctx, q.ID, "cfo@acme", "prices above budget")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	require.Equal(t, "prices above budget", *rejected.RejectionReason)
	require.Empty(t, f.orders.created)
	require.Contains(t, f.notifier.events, "quotation.rejected")
}

func TestNegotiateNoteBounds(t *testing.T) {
	f := newFixture(t)
	q := f.pendingApproval(t)
	ctx := context.Background()

	_, err := f.service.Negotiate(ctx, q.ID, "cfo@acme", "too short")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "too short")

	_, err = f.service.Negotiate(ctx, q.ID, "cfo@acme", strings.Repeat("x", 501))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "too long")

	negotiating, err := f.service.Negotiate(ctx, q.ID, "cfo@acme", strings.Repeat("x", 500))
	require.NoError(t, err)
	require.Equal(t, StatusNegotiating, negotiating.Status)
	require.Contains(t, f.notifier.events, "quotation.negotiation_opened")
}

func TestNegotiationReopensOnNextResponse(t *testing.T) {
	f := newFixture(t)
	q := f.pendingApproval(t)
	ctx := context.Background()

	_, err := f.service.Negotiate(ctx, q.ID, "cfo@acme", "please review the lead times")
	require.NoError(t, err)

	q = f.respond(t, q.ID, "SUP-B", "9.00", 25)
	require.Equal(t, StatusAwaitingResponses, q.Status)

	q, err = f.service.SubmitForApproval(ctx, q.ID, "buyer@acme")
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, q.Status)
}

func TestResendKeepsStateAndResponses(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	f.respond(t, q.ID, "SUP-A", "10.00", 15)

	resent, err := f.service.Resend(context.Background(), q.ID, "buyer@acme")
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingResponses, resent.Status)
	require.Len(t, resent.Responses, 1)
	require.Contains(t, f.notifier.events, "quotation.resent")
}

func TestResendRejectedInDecisionStates(t *testing.T) {
	f := newFixture(t)
	q := f.pendingApproval(t)

	_, err := f.service.Resend(context.Background(), q.ID, "buyer@acme")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestCancelFromNonTerminalOnly(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	ctx := context.Background()

	cancelled, err := f.service.Cancel(ctx, q.ID, "buyer@acme")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = f.service.Cancel(ctx, cancelled.ID, "buyer@acme")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestResponseDuringLateStagesRejected(t *testing.T) {
	f := newFixture(t)
	q := f.pendingApproval(t)

	_, err := f.service.RecordResponse(context.Background(), q.ID, ResponseInput{
		SupplierCode: "SUP-A",
		UnitPrice:    decimal.NewFromInt(1),
		LeadTimeDays: 5,
	}, "SUP-A")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestBestOfferForAndComparison(t *testing.T) {
	f := newFixture(t)
	q := f.create(t)
	f.respond(t, q.ID, "SUP-A", "10.00", 15)
	f.respond(t, q.ID, "SUP-B", "9.50", 30)
	ctx := context.Background()

	best, err := f.service.BestOfferFor(ctx, q.ID)
	require.NoError(t, err)
	require.NotNil(t, best)
	require.Equal(t, "SUP-B", best.SupplierCode)

	ranked, err := f.service.Comparison(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	require.Equal(t, "SUP-B", ranked[0].SupplierCode)
	require.True(t, ranked[0].Best)
	require.Equal(t, 2, ranked[1].Rank)
}
