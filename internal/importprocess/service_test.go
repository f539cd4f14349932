package importprocess

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/landedcost"
	"github.com/meridian-erp/meridian-erp/internal/purchaseorder"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type fakeRepo struct {
	nextID  int64
	records map[int64]ImportProcess
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[int64]ImportProcess{}}
}

func (r *fakeRepo) Get(_ context.Context, id int64) (ImportProcess, error) {
	ip, ok := r.records[id]
	if !ok {
		return ImportProcess{}, fmt.Errorf("importprocess: %d: %w", id, shared.ErrNotFound)
	}
	return ip, nil
}

func (r *fakeRepo) List(_ context.Context) ([]ImportProcess, error) {
	out := make([]ImportProcess, 0, len(r.records))
	for _, ip := range r.records {
		out = append(out, ip)
	}
	return out, nil
}

func (r *fakeRepo) Create(_ context.Context, ip ImportProcess) (int64, error) {
	r.nextID++
	ip.ID = r.nextID
	r.records[ip.ID] = ip
	return ip.ID, nil
}

func (r *fakeRepo) CompareAndSave(_ context.Context, ip ImportProcess, expected Status) error {
	stored, ok := r.records[ip.ID]
	if !ok {
		return fmt.Errorf("importprocess: %d: %w", ip.ID, shared.ErrNotFound)
	}
	if stored.Status != expected {
		return fmt.Errorf("importprocess: %d: %w", ip.ID, shared.ErrConcurrentModification)
	}
	r.records[ip.ID] = ip
	return nil
}

type fakeOrders struct {
	orders map[int64]purchaseorder.PurchaseOrder
}

func (f *fakeOrders) Get(_ context.Context, id int64) (purchaseorder.PurchaseOrder, error) {
	po, ok := f.orders[id]
	if !ok {
		return purchaseorder.PurchaseOrder{}, fmt.Errorf("purchaseorder: %d: %w", id, shared.ErrNotFound)
	}
	return po, nil
}

func costInput() landedcost.Input {
	return landedcost.Input{
		InvoiceForeign: decimal.RequireFromString("3750.00"),
		ExchangeRate:   decimal.RequireFromString("5.52"),
		IIRate:         decimal.RequireFromString("12"),
		IPIRate:        decimal.RequireFromString("5"),
		PISRate:        decimal.RequireFromString("1.65"),
		COFINSRate:     decimal.RequireFromString("7.6"),
		ICMSRate:       decimal.RequireFromString("12"),
		AFRMM:          decimal.RequireFromString("25"),
		Siscomex:       decimal.RequireFromString("185"),
		Freight:        decimal.RequireFromString("1200.00"),
		Insurance:      decimal.RequireFromString("180.00"),
		Brokerage:      decimal.RequireFromString("450.00"),
		PortFees:       decimal.RequireFromString("320.00"),
		Storage:        decimal.RequireFromString("120.00"),
		NetQuantity:    decimal.RequireFromString("500"),
	}
}

func newTestService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	orders := &fakeOrders{orders: map[int64]purchaseorder.PurchaseOrder{
		1: {ID: 1, Code: "PO-1", SupplierCode: "SUP-CN", Currency: "USD", IsImport: true},
		2: {ID: 2, Code: "PO-2", SupplierCode: "SUP-BR", Currency: "BRL", IsImport: false},
	}}
	return NewService(repo, orders, nil, nil), repo
}

func createInput(poID int64) CreateInput {
	return CreateInput{
		PurchaseOrderID: poID,
		InvoiceNumber:   "INV-2026-031",
		InvoiceDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Incoterm:        "FOB",
		NCM:             "8413.70.10",
		Description:     "Centrifugal pumps",
		OriginPort:      "Shanghai",
		DestinationPort: "Santos",
		GrossWeight:     decimal.RequireFromString("5230.5"),
		ExpectedArrival: time.Now().AddDate(0, 2, 0),
		Costs:           costInput(),
		CreatedBy:       "imports@acme",
	}
}

func TestCreateComputesLandedCostOnce(t *testing.T) {
	svc, _ := newTestService()
	ip, err := svc.Create(context.Background(), createInput(1))
	require.NoError(t, err)

	want, err := landedcost.Calculate(costInput())
	require.NoError(t, err)
	require.True(t, ip.LandedCost.Total.Equal(want.Total))
	require.True(t, ip.LandedCost.UnitCost.Equal(want.UnitCost))
	require.Equal(t, StatusDraft, ip.Status)
	require.Equal(t, "SUP-CN", ip.SupplierCode)
	require.Equal(t, "USD", ip.Currency)
}

func TestCreateRejectsDomesticOrder(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), createInput(2))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsBadCostInput(t *testing.T) {
	svc, _ := newTestService()
	input := createInput(1)
	input.Costs.ICMSRate = decimal.RequireFromString("100")
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrInvalidTaxRate)
}

func TestCreateSeedsTimelineWithForecast(t *testing.T) {
	svc, _ := newTestService()
	ip, err := svc.Create(context.Background(), createInput(1))
	require.NoError(t, err)

	require.Len(t, ip.Timeline, 2)
	require.NotNil(t, ip.Timeline[0].Actor)
	require.Equal(t, "imports@acme", *ip.Timeline[0].Actor)
	// The arrival forecast has no actor until confirmed.
	require.Nil(t, ip.Timeline[1].Actor)
}

func TestSnapshotNotRecomputedOnRead(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	ip, err := svc.Create(ctx, createInput(1))
	require.NoError(t, err)

	// Simulate the inputs drifting in storage without going through UpdateCosts.
	stored := repo.records[ip.ID]
	stored.Costs.Freight = decimal.RequireFromString("9999.00")
	repo.records[ip.ID] = stored

	got, err := svc.Get(ctx, ip.ID)
	require.NoError(t, err)
	require.True(t, got.LandedCost.Total.Equal(ip.LandedCost.Total))
}

func TestUpdateCostsRecomputesSnapshot(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ip, err := svc.Create(ctx, createInput(1))
	require.NoError(t, err)

	revised := costInput()
	revised.Freight = decimal.RequireFromString("2400.00")
	updated, err := svc.UpdateCosts(ctx, ip.ID, revised, "imports@acme")
	require.NoError(t, err)

	want, err := landedcost.Calculate(revised)
	require.NoError(t, err)
	require.True(t, updated.LandedCost.Total.Equal(want.Total))
	require.False(t, updated.LandedCost.Total.Equal(ip.LandedCost.Total))
}

func TestUpdateCostsRejectsInvalidInput(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	ip, err := svc.Create(ctx, createInput(1))
	require.NoError(t, err)

	bad := costInput()
	bad.NetQuantity = decimal.Zero
	_, err = svc.UpdateCosts(ctx, ip.ID, bad, "imports@acme")
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	// Stored snapshot untouched by the failed edit.
	require.True(t, repo.records[ip.ID].LandedCost.Total.Equal(ip.LandedCost.Total))
}

func TestAdvanceAppendsConfirmedMilestones(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ip, err := svc.Create(ctx, createInput(1))
	require.NoError(t, err)

	for _, next := range []Status{StatusWaitingShip, StatusInTransit, StatusCustoms, StatusDelivered} {
		ip, err = svc.Advance(ctx, ip.ID, next, "imports@acme")
		require.NoError(t, err)
		require.Equal(t, next, ip.Status)
	}

	confirmed := 0
	for _, e := range ip.Timeline {
		if e.Actor != nil {
			confirmed++
		}
	}
	// Creation entry plus four advances.
	require.Equal(t, 5, confirmed)
}

func TestAdvanceRejectsSkips(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ip, err := svc.Create(ctx, createInput(1))
	require.NoError(t, err)

	_, err = svc.Advance(ctx, ip.ID, StatusCustoms, "imports@acme")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	ip, err = svc.Advance(ctx, ip.ID, StatusWaitingShip, "imports@acme")
	require.NoError(t, err)
	_, err = svc.Advance(ctx, ip.ID, StatusDraft, "imports@acme")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestCancelClosesProcess(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ip, err := svc.Create(ctx, createInput(1))
	require.NoError(t, err)

	ip, err = svc.Cancel(ctx, ip.ID, "imports@acme")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, ip.Status)

	_, err = svc.Advance(ctx, ip.ID, StatusWaitingShip, "imports@acme")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	_, err = svc.UpdateCosts(ctx, ip.ID, costInput(), "imports@acme")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestAppendTimelineKeepsDateOrder(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ip, err := svc.Create(ctx, createInput(1))
	require.NoError(t, err)

	actor := "imports@acme"
	early := ip.CreatedAt.Add(-48 * time.Hour)
	ip, err = svc.AppendTimeline(ctx, ip.ID, TimelineEntry{Date: early, Label: "Supplier confirmed production slot", Actor: &actor})
	require.NoError(t, err)

	require.Equal(t, "Supplier confirmed production slot", ip.Timeline[0].Label)
	for i := 1; i < len(ip.Timeline); i++ {
		require.False(t, ip.Timeline[i].Date.Before(ip.Timeline[i-1].Date))
	}
}

func TestAppendTimelineValidates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	ip, err := svc.Create(ctx, createInput(1))
	require.NoError(t, err)

	_, err = svc.AppendTimeline(ctx, ip.ID, TimelineEntry{Date: time.Now(), Label: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.AppendTimeline(ctx, ip.ID, TimelineEntry{Label: "Missing date"})
	require.ErrorIs(t, err, shared.ErrValidation)
}
