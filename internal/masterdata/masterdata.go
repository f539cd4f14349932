// Package masterdata bundles the read-only product and supplier catalogues the
// procurement pipeline validates references against.
package masterdata

import (
	"context"

	"github.com/meridian-erp/meridian-erp/internal/masterdata/products"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/suppliers"
)

// Directory is the single lookup point handed to the pipeline services.
type Directory struct {
	Products  products.Repository
	Suppliers suppliers.Repository
}

// NewDirectory constructs a Directory.
func NewDirectory(p products.Repository, s suppliers.Repository) *Directory {
	return &Directory{Products: p, Suppliers: s}
}

// GetProduct returns a product by code.
func (d *Directory) GetProduct(ctx context.Context, code string) (products.Product, error) {
	return d.Products.Get(ctx, code)
}

// GetSupplier returns a supplier by code.
func (d *Directory) GetSupplier(ctx context.Context, code string) (suppliers.Supplier, error) {
	return d.Suppliers.Get(ctx, code)
}
