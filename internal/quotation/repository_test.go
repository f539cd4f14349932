package quotation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/money"
)

func storedQuotation(t *testing.T) Quotation {
	t.Helper()
	respondedAt := time.Date(2026, 8, 12, 9, 30, 0, 0, time.UTC)
	unitPrice := decimal.RequireFromString("12.345")
	approvedBy := "cfo@acme"
	approvedAt := time.Date(2026, 8, 14, 16, 0, 0, 0, time.UTC)
	poID := int64(7)
	return Quotation{
		ID:        1,
		Code:      "RFQ-1755000000000000000",
		Status:    StatusApproved,
		CreatedBy: "buyer@acme",
		CreatedAt: respondedAt.Add(-48 * time.Hour),
		Lines: []LineItem{
			{ProductCode: "PRD-100", Quantity: decimal.NewFromInt(300), UOM: "UN"},
			{ProductCode: "PRD-200", Quantity: decimal.NewFromInt(200), UOM: "PC"},
		},
		Responses: []SupplierResponse{{
			SupplierCode: "SUP-A",
			UnitPrice:    unitPrice,
			TotalPrice:   money.RoundCurrency(unitPrice.Mul(decimal.NewFromInt(500))),
			LeadTimeDays: 20,
			PaymentTerms: "NET30",
			RespondedAt:  respondedAt,
		}},
		ApprovedBy:      &approvedBy,
		ApprovedAt:      &approvedAt,
		PurchaseOrderID: &poID,
		UpdatedAt:       approvedAt,
	}
}

func TestEmbeddedColumnsRoundTrip(t *testing.T) {
	q := storedQuotation(t)
	lines, responses, err := marshalEmbedded(q)
	require.NoError(t, err)

	// Stored currency crosses the boundary at the fixed two-digit scale.
	require.Contains(t, string(responses), `"total_price":"6172.50"`)
	require.Contains(t, string(responses), `"unit_price":"12.345"`)

	var gotLines []LineItem
	require.NoError(t, json.Unmarshal(lines, &gotLines))
	require.Len(t, gotLines, 2)
	for i := range gotLines {
		require.Equal(t, q.Lines[i].ProductCode, gotLines[i].ProductCode)
		require.Equal(t, q.Lines[i].UOM, gotLines[i].UOM)
		require.True(t, gotLines[i].Quantity.Equal(q.Lines[i].Quantity))
	}

	var gotResponses []SupplierResponse
	require.NoError(t, json.Unmarshal(responses, &gotResponses))
	require.Len(t, gotResponses, 1)
	got, want := gotResponses[0], q.Responses[0]
	require.Equal(t, want.SupplierCode, got.SupplierCode)
	require.True(t, got.UnitPrice.Equal(want.UnitPrice))
	require.True(t, got.TotalPrice.Equal(want.TotalPrice))
	require.Equal(t, want.LeadTimeDays, got.LeadTimeDays)
	require.Equal(t, want.PaymentTerms, got.PaymentTerms)
	require.True(t, got.RespondedAt.Equal(want.RespondedAt))
}

func TestQuotationRoundTrip(t *testing.T) {
	q := storedQuotation(t)
	raw, err := json.Marshal(q)
	require.NoError(t, err)

	var got Quotation
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, q.ID, got.ID)
	require.Equal(t, q.Code, got.Code)
	require.Equal(t, q.Status, got.Status)
	require.Equal(t, q.CreatedBy, got.CreatedBy)
	require.Len(t, got.Responses, 1)
	require.True(t, got.Responses[0].TotalPrice.Equal(q.Responses[0].TotalPrice))
	require.NotNil(t, got.ApprovedBy)
	require.Equal(t, *q.ApprovedBy, *got.ApprovedBy)
	require.NotNil(t, got.PurchaseOrderID)
	require.Equal(t, *q.PurchaseOrderID, *got.PurchaseOrderID)
	require.Nil(t, got.RejectionReason)
	require.Nil(t, got.NegotiationNote)
}
