package products

import "time"

// Product is read-only master data for the pipeline; the catalogue itself is
// maintained elsewhere.
type Product struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	UOM       string    `json:"uom"`
	NCM       string    `json:"ncm,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
