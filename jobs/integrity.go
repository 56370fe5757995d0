package jobs

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/kirana-labs/kirana-erp/internal/observability"
	"github.com/kirana-labs/kirana-erp/internal/procurement"
)

// IntegrityScanner verifies that cached aggregates match their underlying
// rows: order statuses against per-line received quantities, and invoice
// paid amounts against the payment ledger. Drift is repaired in place and
// reported, since both caches are derivable from the rows.
type IntegrityScanner struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewIntegrityScanner constructs the scanner.
func NewIntegrityScanner(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *IntegrityScanner {
	return &IntegrityScanner{pool: pool, logger: logger, metrics: metrics}
}

// IntegrityReport summarises one scan.
type IntegrityReport struct {
	OrdersScanned    int
	OrdersRepaired   int
	InvoicesScanned  int
	InvoicesRepaired int
}

// Run executes both scans concurrently and repairs any drift found.
func (s *IntegrityScanner) Run(ctx context.Context) (IntegrityReport, error) {
	var report IntegrityReport
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scanned, repaired, err := s.scanOrders(ctx)
		report.OrdersScanned, report.OrdersRepaired = scanned, repaired
		return err
	})
	g.Go(func() error {
		scanned, repaired, err := s.scanInvoices(ctx)
		report.InvoicesScanned, report.InvoicesRepaired = scanned, repaired
		return err
	})
	if err := g.Wait(); err != nil {
		return report, err
	}
	drift := report.OrdersRepaired + report.InvoicesRepaired
	if s.metrics != nil {
		s.metrics.IntegrityDrift.Set(float64(drift))
	}
	if drift > 0 {
		s.logger.Warn("integrity scan repaired drift",
			slog.Int("orders_repaired", report.OrdersRepaired),
			slog.Int("invoices_repaired", report.InvoicesRepaired))
	} else {
		s.logger.Info("integrity scan clean",
			slog.Int("orders", report.OrdersScanned),
			slog.Int("invoices", report.InvoicesScanned))
	}
	return report, nil
}

// scanOrders rederives every non-cancelled order's status from its lines.
func (s *IntegrityScanner) scanOrders(ctx context.Context) (scanned, repaired int, err error) {
	rows, err := s.pool.Query(ctx, `
		SELECT po.id, po.status,
		       COALESCE(json_agg(json_build_array(pol.qty, pol.received_qty)) FILTER (WHERE pol.id IS NOT NULL), '[]')
		FROM purchase_orders po
		LEFT JOIN purchase_order_lines pol ON pol.order_id = po.id
		WHERE po.status <> 'CANCELLED'
		GROUP BY po.id, po.status`)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	type drifted struct {
		id     int64
		status procurement.OrderStatus
	}
	var fixes []drifted
	for rows.Next() {
		var id int64
		var stored procurement.OrderStatus
		var pairs [][]float64
		if err := rows.Scan(&id, &stored, &pairs); err != nil {
			return scanned, repaired, err
		}
		scanned++
		lines := make([]procurement.PurchaseOrderLine, 0, len(pairs))
		for _, pair := range pairs {
			if len(pair) == 2 {
				lines = append(lines, procurement.PurchaseOrderLine{Qty: pair[0], ReceivedQty: pair[1]})
			}
		}
		if derived := procurement.DeriveStatus(lines); derived != stored {
			fixes = append(fixes, drifted{id: id, status: derived})
		}
	}
	if err := rows.Err(); err != nil {
		return scanned, repaired, err
	}

	for _, fix := range fixes {
		if _, err := s.pool.Exec(ctx, `UPDATE purchase_orders SET status=$2 WHERE id=$1`, fix.id, fix.status); err != nil {
			return scanned, repaired, err
		}
		repaired++
		s.logger.Warn("order status drift repaired", slog.Int64("order_id", fix.id), slog.String("status", string(fix.status)))
	}
	return scanned, repaired, nil
}

// scanInvoices rederives paid/pending amounts from the payment ledger.
// Half a paisa of float noise is tolerated.
func (s *IntegrityScanner) scanInvoices(ctx context.Context) (scanned, repaired int, err error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pi.id, pi.total, pi.paid_amount, COALESCE(SUM(vp.amount), 0)
		FROM purchase_invoices pi
		LEFT JOIN vendor_payments vp ON vp.invoice_id = pi.id
		GROUP BY pi.id, pi.total, pi.paid_amount`)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	type drifted struct {
		id          int64
		total, paid float64
	}
	var fixes []drifted
	for rows.Next() {
		var id int64
		var total, stored, actual float64
		if err := rows.Scan(&id, &total, &stored, &actual); err != nil {
			return scanned, repaired, err
		}
		scanned++
		if diff := stored - actual; diff > 0.005 || diff < -0.005 {
			fixes = append(fixes, drifted{id: id, total: total, paid: actual})
		}
	}
	if err := rows.Err(); err != nil {
		return scanned, repaired, err
	}

	for _, fix := range fixes {
		pending := fix.total - fix.paid
		status := "PENDING"
		switch {
		case pending <= 0.005:
			status = "PAID"
			pending = 0
		case fix.paid > 0.005:
			status = "PARTIAL"
		}
		if _, err := s.pool.Exec(ctx, `UPDATE purchase_invoices SET paid_amount=$2, pending_amount=$3, payment_status=$4 WHERE id=$1`, fix.id, fix.paid, pending, status); err != nil {
			return scanned, repaired, err
		}
		repaired++
		s.logger.Warn("invoice paid amount drift repaired", slog.Int64("invoice_id", fix.id), slog.Float64("paid", fix.paid))
	}
	return scanned, repaired, nil
}
