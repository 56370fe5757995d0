package vendors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists vendors in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Postgres-backed vendor repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const vendorColumns = `id, code, name, gstin, state_code, address, phone, email, active, created_at, updated_at`

func (r *Repository) Get(ctx context.Context, id int64) (Vendor, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM vendors WHERE id=$1`, vendorColumns), id)
	return scanVendor(row)
}

func (r *Repository) GetByCode(ctx context.Context, code string) (Vendor, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM vendors WHERE code=$1`, vendorColumns), code)
	return scanVendor(row)
}

func (r *Repository) Create(ctx context.Context, v Vendor) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO vendors (code, name, gstin, state_code, address, phone, email, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW())
		RETURNING id`,
		v.Code, v.Name, v.GSTIN, v.StateCode, v.Address, v.Phone, v.Email).Scan(&id)
	return id, err
}

func (r *Repository) Update(ctx context.Context, v Vendor) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE vendors
		SET name=$2, gstin=$3, state_code=$4, address=$5, phone=$6, email=$7, active=$8, updated_at=NOW()
		WHERE id=$1`,
		v.ID, v.Name, v.GSTIN, v.StateCode, v.Address, v.Phone, v.Email, v.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, limit, offset int, search string) ([]Vendor, int, error) {
	where := `WHERE TRUE`
	args := []any{}
	if search != "" {
		args = append(args, "%"+search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR code ILIKE $%d)`, len(args), len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vendors `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM vendors %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		vendorColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVendor(row rowScanner) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.Code, &v.Name, &v.GSTIN, &v.StateCode, &v.Address, &v.Phone, &v.Email, &v.Active, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, ErrNotFound
	}
	return v, err
}
