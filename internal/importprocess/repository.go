package importprocess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence. The cost inputs, landed
// cost snapshot and timeline live in jsonb columns so every save writes the
// full record.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const importColumns = `id, code, purchase_order_id, supplier_code, invoice_number, invoice_date, currency, incoterm,
ncm, description, origin_port, destination_port, gross_weight, expected_arrival, status, costs, landed_cost, timeline,
created_by, created_at, updated_at`

// Get returns an import process by id.
func (r *Repository) Get(ctx context.Context, id int64) (ImportProcess, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+importColumns+` FROM import_processes WHERE id = $1`, id)
	ip, err := scanImport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ImportProcess{}, fmt.Errorf("importprocess: %d: %w", id, shared.ErrNotFound)
		}
		return ImportProcess{}, err
	}
	return ip, nil
}

// List returns all import processes, newest first.
func (r *Repository) List(ctx context.Context) ([]ImportProcess, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+importColumns+` FROM import_processes ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ImportProcess
	for rows.Next() {
		ip, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ip)
	}
	return out, rows.Err()
}

// Create inserts the import process and returns its id.
func (r *Repository) Create(ctx context.Context, ip ImportProcess) (int64, error) {
	costs, landed, timeline, err := marshalEmbedded(ip)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO import_processes
(code, purchase_order_id, supplier_code, invoice_number, invoice_date, currency, incoterm, ncm, description,
origin_port, destination_port, gross_weight, expected_arrival, status, costs, landed_cost, timeline,
created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
RETURNING id`,
		ip.Code, ip.PurchaseOrderID, ip.SupplierCode, ip.InvoiceNumber, ip.InvoiceDate, ip.Currency, ip.Incoterm,
		ip.NCM, ip.Description, ip.OriginPort, ip.DestinationPort, ip.GrossWeight, ip.ExpectedArrival,
		string(ip.Status), costs, landed, timeline, ip.CreatedBy, ip.CreatedAt, ip.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CompareAndSave writes the full record back only while the stored status still
// matches expected.
func (r *Repository) CompareAndSave(ctx context.Context, ip ImportProcess, expected Status) error {
	costs, landed, timeline, err := marshalEmbedded(ip)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE import_processes SET
invoice_number=$2, invoice_date=$3, currency=$4, incoterm=$5, ncm=$6, description=$7,
origin_port=$8, destination_port=$9, gross_weight=$10, expected_arrival=$11, status=$12,
costs=$13, landed_cost=$14, timeline=$15, updated_at=$16
WHERE id=$1 AND status=$17`,
		ip.ID, ip.InvoiceNumber, ip.InvoiceDate, ip.Currency, ip.Incoterm, ip.NCM, ip.Description,
		ip.OriginPort, ip.DestinationPort, ip.GrossWeight, ip.ExpectedArrival, string(ip.Status),
		costs, landed, timeline, ip.UpdatedAt, string(expected))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, ip.ID)
	}
	return nil
}

func (r *Repository) staleOrMissing(ctx context.Context, id int64) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM import_processes WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("importprocess: %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("importprocess: %d: %w", id, shared.ErrConcurrentModification)
}

func marshalEmbedded(ip ImportProcess) ([]byte, []byte, []byte, error) {
	costs, err := json.Marshal(ip.Costs)
	if err != nil {
		return nil, nil, nil, err
	}
	landed, err := json.Marshal(ip.LandedCost)
	if err != nil {
		return nil, nil, nil, err
	}
	timeline, err := json.Marshal(ip.Timeline)
	if err != nil {
		return nil, nil, nil, err
	}
	return costs, landed, timeline, nil
}

func scanImport(row pgx.Row) (ImportProcess, error) {
	var (
		ip       ImportProcess
		status   string
		costs    []byte
		landed   []byte
		timeline []byte
	)
	if err := row.Scan(&ip.ID, &ip.Code, &ip.PurchaseOrderID, &ip.SupplierCode, &ip.InvoiceNumber, &ip.InvoiceDate,
		&ip.Currency, &ip.Incoterm, &ip.NCM, &ip.Description, &ip.OriginPort, &ip.DestinationPort, &ip.GrossWeight,
		&ip.ExpectedArrival, &status, &costs, &landed, &timeline, &ip.CreatedBy, &ip.CreatedAt, &ip.UpdatedAt); err != nil {
		return ImportProcess{}, err
	}
	ip.Status = Status(status)
	if err := json.Unmarshal(costs, &ip.Costs); err != nil {
		return ImportProcess{}, err
	}
	if err := json.Unmarshal(landed, &ip.LandedCost); err != nil {
		return ImportProcess{}, err
	}
	if len(timeline) > 0 {
		if err := json.Unmarshal(timeline, &ip.Timeline); err != nil {
			return ImportProcess{}, err
		}
	}
	return ip, nil
}
