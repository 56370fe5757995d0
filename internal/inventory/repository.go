package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRepository exposes the write operations the allocator needs. It is
// satisfied by a wrapper over the receipt flow's transaction so batch
// creation commits or rolls back with the invoice.
type TxRepository interface {
	InsertBatch(ctx context.Context, batch Batch) (int64, error)
}

// Repository provides PostgreSQL backed persistence for batches.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction for batch writes.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) InsertBatch(ctx context.Context, batch Batch) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_batches (item_id, batch_number, qty, purchase_rate, expiry_date, invoice_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
RETURNING id`, batch.ItemID, batch.BatchNumber, batch.Qty, batch.PurchaseRate, batch.ExpiryDate, batch.InvoiceID).Scan(&id)
	return id, err
}

// GetBatch fetches a batch by ID.
func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, item_id, batch_number, qty, purchase_rate, expiry_date, invoice_id, created_at
FROM inventory_batches WHERE id=$1`, id)
	var batch Batch
	var expiry *time.Time
	if err := row.Scan(&batch.ID, &batch.ItemID, &batch.BatchNumber, &batch.Qty, &batch.PurchaseRate, &expiry, &batch.InvoiceID, &batch.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrNotFound
		}
		return Batch{}, err
	}
	batch.ExpiryDate = expiry
	return batch, nil
}

// ListBatches returns batches matching the filter, newest first.
func (r *Repository) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, batch_number, qty, purchase_rate, expiry_date, invoice_id, created_at
FROM inventory_batches
WHERE ($1 = 0 OR item_id = $1) AND ($2 = 0 OR invoice_id = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3`, filter.ItemID, filter.InvoiceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	batches := []Batch{}
	for rows.Next() {
		var batch Batch
		var expiry *time.Time
		if err := rows.Scan(&batch.ID, &batch.ItemID, &batch.BatchNumber, &batch.Qty, &batch.PurchaseRate, &expiry, &batch.InvoiceID, &batch.CreatedAt); err != nil {
			return nil, err
		}
		batch.ExpiryDate = expiry
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}
