package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirana-labs/kirana-erp/internal/inventory"
	"github.com/kirana-labs/kirana-erp/internal/platform/db"
)

// TxRepository is the transactional surface used inside WithTx. Inventory
// returns a batch repository bound to the same transaction so receipt rows
// and stock lots commit or roll back together.
type TxRepository interface {
	CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	InsertOrderLine(ctx context.Context, line PurchaseOrderLine) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error
	UpdateOrderLineReceived(ctx context.Context, lineID int64, receivedQty float64) error
	GetOrderForUpdate(ctx context.Context, orderID int64) (PurchaseOrder, []PurchaseOrderLine, error)
	CreateInvoice(ctx context.Context, invoice PurchaseInvoice) (int64, error)
	InsertInvoiceLine(ctx context.Context, line PurchaseInvoiceLine) error
	Inventory() inventory.TxRepository
}

// Repository is the Postgres-backed procurement repository.
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

const orderColumns = `id, number, vendor_id, order_date, expected_date, status, subtotal, cgst, sgst, igst, total, notes, created_at`

const orderLineColumns = `id, order_id, item_id, qty, rate, gst_rate, amount, received_qty`

const invoiceColumns = `id, number, order_id, vendor_id, vendor_name, invoice_date, received_date, subtotal, cgst, sgst, igst, other_charges, discount, round_off, total, paid_amount, pending_amount, payment_status, notes, created_at`

// GetOrder returns an order header with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, []PurchaseOrderLine, error) {
	return getOrder(ctx, r.pool, id, false)
}

// GetInvoice returns an invoice header with its lines.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (PurchaseInvoice, []PurchaseInvoiceLine, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM purchase_invoices WHERE id=$1`, invoiceColumns), id)
	invoice, err := scanInvoice(row)
	if err != nil {
		return PurchaseInvoice{}, nil, err
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM purchase_invoice_lines WHERE invoice_id=$1 ORDER BY id`, `id, invoice_id, item_id, batch_number, expiry_date, qty, rate, gst_rate, amount`), id)
	if err != nil {
		return PurchaseInvoice{}, nil, err
	}
	defer rows.Close()
	var lines []PurchaseInvoiceLine
	for rows.Next() {
		var line PurchaseInvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.ItemID, &line.BatchNumber, &line.ExpiryDate, &line.Qty, &line.Rate, &line.GSTRate, &line.Amount); err != nil {
			return PurchaseInvoice{}, nil, err
		}
		lines = append(lines, line)
	}
	return invoice, lines, rows.Err()
}

// ListOrders returns orders joined with vendor names, newest first by
// default.
func (r *Repository) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]OrderListItem, int, error) {
	where := `WHERE TRUE`
	args := []any{}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(` AND po.status = $%d`, len(args))
	}
	if filters.VendorID != 0 {
		args = append(args, filters.VendorID)
		where += fmt.Sprintf(` AND po.vendor_id = $%d`, len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += fmt.Sprintf(` AND (po.number ILIKE $%d OR v.name ILIKE $%d)`, len(args), len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM purchase_orders po LEFT JOIN vendors v ON v.id = po.vendor_id ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT po.id, po.number, po.vendor_id, COALESCE(v.name, ''), po.status,
		       po.order_date, po.expected_date, po.total, po.created_at
		FROM purchase_orders po
		LEFT JOIN vendors v ON v.id = po.vendor_id
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`, where, sortOrder(filters, "po"), len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []OrderListItem
	for rows.Next() {
		var item OrderListItem
		if err := rows.Scan(&item.ID, &item.Number, &item.VendorID, &item.VendorName, &item.Status, &item.OrderDate, &item.ExpectedDate, &item.Total, &item.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

// ListInvoices returns receipts with payment aggregates.
func (r *Repository) ListInvoices(ctx context.Context, limit, offset int, filters ListFilters) ([]InvoiceListItem, int, error) {
	where := `WHERE TRUE`
	args := []any{}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(` AND pi.payment_status = $%d`, len(args))
	}
	if filters.VendorID != 0 {
		args = append(args, filters.VendorID)
		where += fmt.Sprintf(` AND pi.vendor_id = $%d`, len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += fmt.Sprintf(` AND (pi.number ILIKE $%d OR pi.vendor_name ILIKE $%d)`, len(args), len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM purchase_invoices pi ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT pi.id, pi.number, COALESCE(pi.order_id, 0), COALESCE(po.number, ''), pi.vendor_name,
		       pi.invoice_date, pi.received_date, pi.total, pi.paid_amount, pi.pending_amount,
		       pi.payment_status, pi.created_at
		FROM purchase_invoices pi
		LEFT JOIN purchase_orders po ON po.id = pi.order_id
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`, where, sortOrder(filters, "pi"), len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []InvoiceListItem
	for rows.Next() {
		var item InvoiceListItem
		if err := rows.Scan(&item.ID, &item.Number, &item.OrderID, &item.OrderNumber, &item.VendorName, &item.InvoiceDate, &item.ReceivedDate, &item.Total, &item.PaidAmount, &item.PendingAmount, &item.PaymentStatus, &item.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

// sortOrder whitelists sortable columns; anything else falls back to
// created_at DESC.
func sortOrder(filters ListFilters, alias string) string {
	column := "created_at"
	switch filters.SortBy {
	case "number", "total", "created_at":
		column = filters.SortBy
	case "date":
		column = "created_at"
	}
	dir := "DESC"
	if filters.SortDir == "asc" {
		dir = "ASC"
	}
	return fmt.Sprintf("%s.%s %s", alias, column, dir)
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getOrder(ctx context.Context, q queryer, id int64, forUpdate bool) (PurchaseOrder, []PurchaseOrderLine, error) {
	lock := ""
	if forUpdate {
		lock = " FOR UPDATE"
	}
	row := q.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM purchase_orders WHERE id=$1%s`, orderColumns, lock), id)
	var order PurchaseOrder
	err := row.Scan(&order.ID, &order.Number, &order.VendorID, &order.OrderDate, &order.ExpectedDate, &order.Status, &order.Subtotal, &order.CGST, &order.SGST, &order.IGST, &order.Total, &order.Notes, &order.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, nil, ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT %s FROM purchase_order_lines WHERE order_id=$1 ORDER BY id%s`, orderLineColumns, lock), id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	defer rows.Close()
	var lines []PurchaseOrderLine
	for rows.Next() {
		var line PurchaseOrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemID, &line.Qty, &line.Rate, &line.GSTRate, &line.Amount, &line.ReceivedQty); err != nil {
			return PurchaseOrder{}, nil, err
		}
		lines = append(lines, line)
	}
	return order, lines, rows.Err()
}

func scanInvoice(row pgx.Row) (PurchaseInvoice, error) {
	var invoice PurchaseInvoice
	err := row.Scan(&invoice.ID, &invoice.Number, &invoice.OrderID, &invoice.VendorID, &invoice.VendorName, &invoice.InvoiceDate, &invoice.ReceivedDate, &invoice.Subtotal, &invoice.CGST, &invoice.SGST, &invoice.IGST, &invoice.OtherCharges, &invoice.Discount, &invoice.RoundOff, &invoice.Total, &invoice.PaidAmount, &invoice.PendingAmount, &invoice.PaymentStatus, &invoice.Notes, &invoice.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseInvoice{}, ErrNotFound
	}
	return invoice, err
}

// txRepo implements TxRepository over a live pgx transaction.
type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) Inventory() inventory.TxRepository {
	return inventory.NewTxRepository(r.tx)
}

func (r *txRepo) CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (number, vendor_id, order_date, expected_date, status, subtotal, cgst, sgst, igst, total, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING id`,
		order.Number, order.VendorID, order.OrderDate, order.ExpectedDate, order.Status,
		order.Subtotal, order.CGST, order.SGST, order.IGST, order.Total, order.Notes).Scan(&id)
	return id, err
}

func (r *txRepo) InsertOrderLine(ctx context.Context, line PurchaseOrderLine) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO purchase_order_lines (order_id, item_id, qty, rate, gst_rate, amount, received_qty)
		VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		line.OrderID, line.ItemID, line.Qty, line.Rate, line.GSTRate, line.Amount)
	return err
}

func (r *txRepo) UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status=$2 WHERE id=$1`, orderID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) UpdateOrderLineReceived(ctx context.Context, lineID int64, receivedQty float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_order_lines SET received_qty=$2 WHERE id=$1`, lineID, receivedQty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) GetOrderForUpdate(ctx context.Context, orderID int64) (PurchaseOrder, []PurchaseOrderLine, error) {
	return getOrder(ctx, r.tx, orderID, true)
}

func (r *txRepo) CreateInvoice(ctx context.Context, invoice PurchaseInvoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO purchase_invoices (number, order_id, vendor_id, vendor_name, invoice_date, received_date,
			subtotal, cgst, sgst, igst, other_charges, discount, round_off, total,
			paid_amount, pending_amount, payment_status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW())
		RETURNING id`,
		invoice.Number, invoice.OrderID, invoice.VendorID, invoice.VendorName, invoice.InvoiceDate, invoice.ReceivedDate,
		invoice.Subtotal, invoice.CGST, invoice.SGST, invoice.IGST, invoice.OtherCharges, invoice.Discount, invoice.RoundOff, invoice.Total,
		invoice.PaidAmount, invoice.PendingAmount, invoice.PaymentStatus, invoice.Notes).Scan(&id)
	return id, err
}

func (r *txRepo) InsertInvoiceLine(ctx context.Context, line PurchaseInvoiceLine) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO purchase_invoice_lines (invoice_id, item_id, batch_number, expiry_date, qty, rate, gst_rate, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		line.InvoiceID, line.ItemID, line.BatchNumber, line.ExpiryDate, line.Qty, line.Rate, line.GSTRate, line.Amount)
	return err
}
