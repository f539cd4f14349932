package quotation

import "sort"

// BestOffer selects the winning response: lowest total price, ties broken by
// earliest response time, then by lexicographically smallest supplier code so
// the result is deterministic. Returns nil when no responses exist. The winner
// is always derived from the live response list, never cached.
func BestOffer(responses []SupplierResponse) *SupplierResponse {
	var best *SupplierResponse
	for i := range responses {
		r := &responses[i]
		if best == nil || offerLess(r, best) {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// Compare returns the responses ranked best-first for side-by-side display.
func Compare(responses []SupplierResponse) []RankedOffer {
	ranked := make([]RankedOffer, len(responses))
	for i, r := range responses {
		ranked[i] = RankedOffer{SupplierResponse: r}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return offerLess(&ranked[i].SupplierResponse, &ranked[j].SupplierResponse)
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].Best = i == 0
	}
	return ranked
}

// RankedOffer is one entry of the comparison view.
type RankedOffer struct {
	SupplierResponse
	Rank int  `json:"rank"`
	Best bool `json:"best"`
}

func offerLess(a, b *SupplierResponse) bool {
	if c := a.TotalPrice.Cmp(b.TotalPrice); c != 0 {
		return c < 0
	}
	if !a.RespondedAt.Equal(b.RespondedAt) {
		return a.RespondedAt.Before(b.RespondedAt)
	}
	return a.SupplierCode < b.SupplierCode
}
