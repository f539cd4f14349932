package quotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence. Lines and supplier
// responses live in jsonb columns so every save writes the full record.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const quotationColumns = `id, code, status, created_by, lines, responses, approved_by, approved_at, rejection_reason, negotiation_note, purchase_order_id, created_at, updated_at`

// Get returns a quotation by id.
func (r *Repository) Get(ctx context.Context, id int64) (Quotation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id = $1`, id)
	q, err := scanQuotation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, fmt.Errorf("quotation: %d: %w", id, shared.ErrNotFound)
		}
		return Quotation{}, err
	}
	return q, nil
}

// GetByCode returns a quotation by its document number.
func (r *Repository) GetByCode(ctx context.Context, code string) (Quotation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE code = $1`, code)
	q, err := scanQuotation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, fmt.Errorf("quotation: %s: %w", code, shared.ErrNotFound)
		}
		return Quotation{}, err
	}
	return q, nil
}

// List returns all quotations, newest first.
func (r *Repository) List(ctx context.Context) ([]Quotation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quotationColumns+` FROM quotations ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Create inserts the quotation and returns its id.
func (r *Repository) Create(ctx context.Context, q Quotation) (int64, error) {
	lines, responses, err := marshalEmbedded(q)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO quotations
(code, status, created_by, lines, responses, approved_by, approved_at, rejection_reason, negotiation_note, purchase_order_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`,
		q.Code, string(q.Status), q.CreatedBy, lines, responses, q.ApprovedBy, q.ApprovedAt,
		q.RejectionReason, q.NegotiationNote, q.PurchaseOrderID, q.CreatedAt, q.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CompareAndSave writes the full record back only while the stored status still
// matches expected. Lost updates surface as shared.ErrConcurrentModification.
func (r *Repository) CompareAndSave(ctx context.Context, q Quotation, expected Status) error {
	lines, responses, err := marshalEmbedded(q)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE quotations SET
status=$2, lines=$3, responses=$4, approved_by=$5, approved_at=$6,
rejection_reason=$7, negotiation_note=$8, purchase_order_id=$9, updated_at=$10
WHERE id=$1 AND status=$11`,
		q.ID, string(q.Status), lines, responses, q.ApprovedBy, q.ApprovedAt,
		q.RejectionReason, q.NegotiationNote, q.PurchaseOrderID, q.UpdatedAt, string(expected))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, q.ID)
	}
	return nil
}

func (r *Repository) staleOrMissing(ctx context.Context, id int64) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM quotations WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("quotation: %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("quotation: %d: %w", id, shared.ErrConcurrentModification)
}

func marshalEmbedded(q Quotation) ([]byte, []byte, error) {
	lines, err := json.Marshal(q.Lines)
	if err != nil {
		return nil, nil, err
	}
	responses, err := json.Marshal(q.Responses)
	if err != nil {
		return nil, nil, err
	}
	return lines, responses, nil
}

func scanQuotation(row pgx.Row) (Quotation, error) {
	var (
		q         Quotation
		status    string
		lines     []byte
		responses []byte
	)
	if err := row.Scan(&q.ID, &q.Code, &status, &q.CreatedBy, &lines, &responses, &q.ApprovedBy,
		&q.ApprovedAt, &q.RejectionReason, &q.NegotiationNote, &q.PurchaseOrderID, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return Quotation{}, err
	}
	q.Status = Status(status)
	if err := json.Unmarshal(lines, &q.Lines); err != nil {
		return Quotation{}, err
	}
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &q.Responses); err != nil {
			return Quotation{}, err
		}
	}
	return q, nil
}
