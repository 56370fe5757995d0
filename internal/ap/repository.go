package ap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirana-labs/kirana-erp/internal/platform/db"
	"github.com/kirana-labs/kirana-erp/internal/procurement"
)

// TxRepository is the transactional surface used inside WithTx.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (InvoiceBalance, error)
	GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error)
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	MarkReversed(ctx context.Context, id int64, at time.Time) error
	SumPayments(ctx context.Context, invoiceID int64) (float64, error)
	UpdateInvoicePayment(ctx context.Context, invoiceID int64, paid, pending float64, status procurement.PaymentStatus) error
}

// Repository is the Postgres-backed payment ledger repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn within one database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const paymentColumns = `id, invoice_id, amount, method, reference, payment_date, notes, reversal_of, reversed_at, created_at`

// GetPayment returns one ledger row.
func (r *Repository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM vendor_payments WHERE id=$1`, paymentColumns), id)
	return scanPayment(row)
}

// ListPayments returns all rows for an invoice in insertion order.
func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM vendor_payments WHERE invoice_id=$1 ORDER BY id`, paymentColumns), invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, payment)
	}
	return out, rows.Err()
}

// Aging buckets outstanding invoice balances by days since invoice date.
func (r *Repository) Aging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			CASE
				WHEN $1::date - invoice_date::date <= 30 THEN '0-30'
				WHEN $1::date - invoice_date::date <= 60 THEN '31-60'
				WHEN $1::date - invoice_date::date <= 90 THEN '61-90'
				ELSE '90+'
			END AS bucket,
			COUNT(*),
			COALESCE(SUM(pending_amount), 0)
		FROM purchase_invoices
		WHERE pending_amount > 0
		GROUP BY bucket`, asOf)
	if err != nil {
		return AgingReport{}, err
	}
	defer rows.Close()

	byLabel := map[string]AgingBucket{}
	for rows.Next() {
		var bucket AgingBucket
		if err := rows.Scan(&bucket.Label, &bucket.Count, &bucket.Pending); err != nil {
			return AgingReport{}, err
		}
		byLabel[bucket.Label] = bucket
	}
	if err := rows.Err(); err != nil {
		return AgingReport{}, err
	}

	report := AgingReport{AsOf: asOf}
	for _, label := range []string{"0-30", "31-60", "61-90", "90+"} {
		bucket, ok := byLabel[label]
		if !ok {
			bucket = AgingBucket{Label: label}
		}
		report.Total += bucket.Pending
		report.Buckets = append(report.Buckets, bucket)
	}
	return report, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (Payment, error) {
	var payment Payment
	err := row.Scan(&payment.ID, &payment.InvoiceID, &payment.Amount, &payment.Method, &payment.Reference, &payment.PaymentDate, &payment.Notes, &payment.ReversalOf, &payment.ReversedAt, &payment.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return payment, err
}

// txRepo implements TxRepository over a live pgx transaction.
type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) GetInvoiceForUpdate(ctx context.Context, invoiceID int64) (InvoiceBalance, error) {
	var balance InvoiceBalance
	err := r.tx.QueryRow(ctx, `
		SELECT id, total, paid_amount, pending_amount
		FROM purchase_invoices WHERE id=$1 FOR UPDATE`, invoiceID).
		Scan(&balance.InvoiceID, &balance.Total, &balance.PaidAmount, &balance.PendingAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return InvoiceBalance{}, ErrNotFound
	}
	return balance, err
}

func (r *txRepo) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	row := r.tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM vendor_payments WHERE id=$1 FOR UPDATE`, paymentColumns), id)
	return scanPayment(row)
}

func (r *txRepo) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO vendor_payments (invoice_id, amount, method, reference, payment_date, notes, reversal_of, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id`,
		payment.InvoiceID, payment.Amount, payment.Method, payment.Reference, payment.PaymentDate, payment.Notes, payment.ReversalOf).Scan(&id)
	return id, err
}

func (r *txRepo) MarkReversed(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE vendor_payments SET reversed_at=$2 WHERE id=$1 AND reversed_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyReversed
	}
	return nil
}

func (r *txRepo) SumPayments(ctx context.Context, invoiceID int64) (float64, error) {
	var sum float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM vendor_payments WHERE invoice_id=$1`, invoiceID).Scan(&sum)
	return sum, err
}

func (r *txRepo) UpdateInvoicePayment(ctx context.Context, invoiceID int64, paid, pending float64, status procurement.PaymentStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_invoices SET paid_amount=$2, pending_amount=$3, payment_status=$4 WHERE id=$1`, invoiceID, paid, pending, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
