package quotation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func offer(supplier string, total string, at time.Time) SupplierResponse {
	return SupplierResponse{
		SupplierCode: supplier,
		UnitPrice:    decimal.RequireFromString(total),
		TotalPrice:   decimal.RequireFromString(total),
		LeadTimeDays: 10,
		RespondedAt:  at,
	}
}

func TestBestOfferEmpty(t *testing.T) {
	require.Nil(t, BestOffer(nil))
	require.Nil(t, BestOffer([]SupplierResponse{}))
}

func TestBestOfferLowestTotal(t *testing.T) {
	now := time.Now()
	best := BestOffer([]SupplierResponse{
		offer("SUP-B", "1200.00", now),
		offer("SUP-A", "900.50", now.Add(time.Hour)),
		offer("SUP-C", "1100.00", now),
	})
	require.NotNil(t, best)
	require.Equal(t, "SUP-A", best.SupplierCode)
}

func TestBestOfferTieBreaksOnEarliestResponse(t *testing.T) {
	now := time.Now()
	best := BestOffer([]SupplierResponse{
		offer("SUP-B", "1000.00", now.Add(time.Minute)),
		offer("SUP-A", "1000.00", now),
	})
	require.NotNil(t, best)
	require.Equal(t, "SUP-A", best.SupplierCode)
}

func TestBestOfferTieBreaksOnSupplierCode(t *testing.T) {
	now := time.Now()
	best := BestOffer([]SupplierResponse{
		offer("SUP-Z", "1000.00", now),
		offer("SUP-A", "1000.00", now),
		offer("SUP-M", "1000.00", now),
	})
	require.NotNil(t, best)
	require.Equal(t, "SUP-A", best.SupplierCode)
}

func TestBestOfferReturnsCopy(t *testing.T) {
	responses := []SupplierResponse{offer("SUP-A", "1000.00", time.Now())}
	best := BestOffer(responses)
	best.SupplierCode = "MUTATED"
	require.Equal(t, "SUP-A", responses[0].SupplierCode)
}

func TestCompareRanksAllOffers(t *testing.T) {
	now := time.Now()
	ranked := Compare([]SupplierResponse{
		offer("SUP-B", "1200.00", now),
		offer("SUP-A", "900.00", now),
		offer("SUP-C", "1100.00", now),
	})
	require.Len(t, ranked, 3)
	require.Equal(t, "SUP-A", ranked[0].SupplierCode)
	require.Equal(t, 1, ranked[0].Rank)
	require.True(t, ranked[0].Best)
	require.Equal(t, "SUP-C", ranked[1].SupplierCode)
	require.False(t, ranked[1].Best)
	require.Equal(t, "SUP-B", ranked[2].SupplierCode)
	require.Equal(t, 3, ranked[2].Rank)
}
