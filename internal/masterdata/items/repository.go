package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists items in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Postgres-backed item repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, sku, name, hsn, unit, gst_rate, purchase_rate, selling_rate, active, created_at, updated_at`

func (r *Repository) Get(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM items WHERE id=$1`, itemColumns), id)
	return scanItem(row)
}

func (r *Repository) GetBySKU(ctx context.Context, sku string) (Item, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM items WHERE sku=$1`, itemColumns), sku)
	return scanItem(row)
}

func (r *Repository) Create(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO items (sku, name, hsn, unit, gst_rate, purchase_rate, selling_rate, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW())
		RETURNING id`,
		item.SKU, item.Name, item.HSN, item.Unit, item.GSTRate, item.PurchaseRate, item.SellingRate).Scan(&id)
	return id, err
}

func (r *Repository) Update(ctx context.Context, item Item) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE items
		SET name=$2, hsn=$3, unit=$4, gst_rate=$5, purchase_rate=$6, selling_rate=$7, active=$8, updated_at=NOW()
		WHERE id=$1`,
		item.ID, item.Name, item.HSN, item.Unit, item.GSTRate, item.PurchaseRate, item.SellingRate, item.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, limit, offset int, search string) ([]Item, int, error) {
	where := `WHERE TRUE`
	args := []any{}
	if search != "" {
		args = append(args, "%"+search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR sku ILIKE $%d)`, len(args), len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM items %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		itemColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.SKU, &item.Name, &item.HSN, &item.Unit, &item.GSTRate, &item.PurchaseRate, &item.SellingRate, &item.Active, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return item, err
}
