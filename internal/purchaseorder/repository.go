package purchaseorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence. Line items live in a
// jsonb column so every save is the full-record upsert the services expect.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const poColumns = `id, code, quotation_id, supplier_code, lines, total_value, currency, is_import, expected_delivery, status, created_by, created_at, updated_at`

// Get returns a purchase order by id.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, id)
	po, err := scanPO(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("purchaseorder: %d: %w", id, shared.ErrNotFound)
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

// List returns all purchase orders, newest first.
func (r *Repository) List(ctx context.Context) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+poColumns+` FROM purchase_orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

// Create inserts the order and returns its id.
func (r *Repository) Create(ctx context.Context, po PurchaseOrder) (int64, error) {
	lines, err := json.Marshal(po.Lines)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO purchase_orders
(code, quotation_id, supplier_code, lines, total_value, currency, is_import, expected_delivery, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`,
		po.Code, po.QuotationID, po.SupplierCode, lines, po.TotalValue, po.Currency,
		po.IsImport, po.ExpectedDelivery, string(po.Status), po.CreatedBy, po.CreatedAt, po.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CompareAndSave writes the full record back only while the stored status still
// matches expected.
func (r *Repository) CompareAndSave(ctx context.Context, po PurchaseOrder, expected Status) error {
	lines, err := json.Marshal(po.Lines)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE purchase_orders SET
quotation_id=$2, supplier_code=$3, lines=$4, total_value=$5, currency=$6, is_import=$7,
expected_delivery=$8, status=$9, updated_at=$10
WHERE id=$1 AND status=$11`,
		po.ID, po.QuotationID, po.SupplierCode, lines, po.TotalValue, po.Currency,
		po.IsImport, po.ExpectedDelivery, string(po.Status), po.UpdatedAt, string(expected))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, po.ID)
	}
	return nil
}

func (r *Repository) staleOrMissing(ctx context.Context, id int64) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM purchase_orders WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("purchaseorder: %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("purchaseorder: %d: %w", id, shared.ErrConcurrentModification)
}

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var (
		po     PurchaseOrder
		lines  []byte
		status string
	)
	if err := row.Scan(&po.ID, &po.Code, &po.QuotationID, &po.SupplierCode, &lines, &po.TotalValue,
		&po.Currency, &po.IsImport, &po.ExpectedDelivery, &status, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt); err != nil {
		return PurchaseOrder{}, err
	}
	po.Status = Status(status)
	if err := json.Unmarshal(lines, &po.Lines); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}
