package suppliers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides read access to supplier master data.
type Repository interface {
	Get(ctx context.Context, code string) (Supplier, error)
	List(ctx context.Context) ([]Supplier, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, code string) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `SELECT code, name, country, currency, email, phone, active, created_at, updated_at
FROM suppliers WHERE code = $1`, code).
		Scan(&s.Code, &s.Name, &s.Country, &s.Currency, &s.Email, &s.Phone, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, fmt.Errorf("suppliers: %s: %w", code, shared.ErrNotFound)
		}
		return Supplier{}, err
	}
	return s, nil
}

func (r *repository) List(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name, country, currency, email, phone, active, created_at, updated_at
FROM suppliers WHERE active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.Code, &s.Name, &s.Country, &s.Currency, &s.Email, &s.Phone, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
