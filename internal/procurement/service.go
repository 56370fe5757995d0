package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirana-labs/kirana-erp/internal/gst"
	"github.com/kirana-labs/kirana-erp/internal/inventory"
	"github.com/kirana-labs/kirana-erp/internal/masterdata/vendors"
	"github.com/kirana-labs/kirana-erp/internal/observability"
	"github.com/kirana-labs/kirana-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, []PurchaseOrderLine, error)
	GetInvoice(ctx context.Context, id int64) (PurchaseInvoice, []PurchaseInvoiceLine, error)
	ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]OrderListItem, int, error)
	ListInvoices(ctx context.Context, limit, offset int, filters ListFilters) ([]InvoiceListItem, int, error)
}

// VendorPort resolves vendor records for tax locality.
type VendorPort interface {
	Get(ctx context.Context, id int64) (vendors.Vendor, error)
}

// AllocatorPort creates inventory lots inside the receipt transaction.
type AllocatorPort interface {
	Allocate(ctx context.Context, repo inventory.TxRepository, input inventory.AllocateInput) (inventory.Batch, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards receipt posting against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service orchestrates purchase orders and goods receipts.
type Service struct {
	repo        RepositoryPort
	vendors     VendorPort
	allocator   AllocatorPort
	audit       AuditPort
	idempotency IdempotencyPort
	metrics     *observability.Metrics
	homeState   string
}

// NewService constructs the procurement service. homeState is the buyer's
// GST state code.
func NewService(repo RepositoryPort, vendorPort VendorPort, allocator AllocatorPort, audit AuditPort, idem IdempotencyPort, metrics *observability.Metrics, homeState string) *Service {
	return &Service{repo: repo, vendors: vendorPort, allocator: allocator, audit: audit, idempotency: idem, metrics: metrics, homeState: homeState}
}

// OrderLineInput describes one ordered item.
type OrderLineInput struct {
	ItemID  int64
	Qty     float64
	Rate    float64
	GSTRate float64
}

// CreateOrderInput describes creation payload.
type CreateOrderInput struct {
	Number       string
	VendorID     int64
	OrderDate    time.Time
	ExpectedDate time.Time
	Notes        string
	Lines        []OrderLineInput
}

// ReceiptLineInput describes one received item.
type ReceiptLineInput struct {
	ItemID      int64
	BatchNumber string
	ExpiryDate  *time.Time
	Qty         float64
	Rate        float64
	GSTRate     float64
}

// CreateReceiptInput describes a goods receipt. OrderID 0 means no order
// link; VendorID 0 with a VendorName means an unregistered vendor.
type CreateReceiptInput struct {
	Number       string
	OrderID      int64
	VendorID     int64
	VendorName   string
	InvoiceDate  time.Time
	ReceivedDate time.Time
	Notes        string
	Adjustments  gst.Adjustments
	Lines        []ReceiptLineInput
}

// CreateOrder validates and persists an order header with its lines as one
// unit. Totals come from the tax calculator using the vendor's locality.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	if input.VendorID == 0 {
		return PurchaseOrder{}, fmt.Errorf("vendor required: %w", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("at least one line required: %w", ErrValidation)
	}
	taxLines := make([]gst.Line, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.ItemID == 0 || line.Qty <= 0 || line.Rate <= 0 {
			return PurchaseOrder{}, fmt.Errorf("line requires item, positive qty and rate: %w", ErrValidation)
		}
		taxLines = append(taxLines, gst.Line{Qty: line.Qty, Rate: line.Rate, GSTRate: line.GSTRate})
	}

	intrastate, err := s.vendorIntrastate(ctx, input.VendorID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	totals, err := gst.Compute(taxLines, intrastate, gst.Adjustments{})
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("%v: %w", err, ErrValidation)
	}

	if input.Number == "" {
		input.Number = generateNumber("PO")
	}
	order := PurchaseOrder{
		Number:       input.Number,
		VendorID:     input.VendorID,
		OrderDate:    defaultTime(input.OrderDate),
		ExpectedDate: input.ExpectedDate,
		Status:       OrderStatusPending,
		Subtotal:     totals.Subtotal,
		CGST:         totals.CGST,
		SGST:         totals.SGST,
		IGST:         totals.IGST,
		Total:        totals.Total,
		Notes:        input.Notes,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orderID, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		for _, line := range input.Lines {
			if err := tx.InsertOrderLine(ctx, PurchaseOrderLine{
				OrderID: orderID,
				ItemID:  line.ItemID,
				Qty:     line.Qty,
				Rate:    line.Rate,
				GSTRate: line.GSTRate,
				Amount:  gst.LineAmount(line.Qty, line.Rate, line.GSTRate),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_CREATE", order.ID, map[string]any{"number": order.Number, "total": order.Total})
	return order, nil
}

// CancelOrder marks an order cancelled. Allowed from PENDING and PARTIAL
// only; receiving against a cancelled order is rejected.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) error {
	order, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderStatusPending && order.Status != OrderStatusPartial {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOrderStatus(ctx, orderID, OrderStatusCancelled)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PO_CANCEL", orderID, map[string]any{"number": order.Number})
	return nil
}

// ReceiptDefaults pre-fills receipt lines for an order with the still
// outstanding quantity per line (ordered minus received). Fully received
// lines are omitted.
func (s *Service) ReceiptDefaults(ctx context.Context, orderID int64) (PurchaseOrder, []ReceiptLineInput, error) {
	order, lines, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	if order.Status == OrderStatusCancelled {
		return PurchaseOrder{}, nil, ErrInvalidState
	}
	var defaults []ReceiptLineInput
	for _, line := range lines {
		outstanding := line.Qty - line.ReceivedQty
		if outstanding <= qtyEpsilon {
			continue
		}
		defaults = append(defaults, ReceiptLineInput{
			ItemID:  line.ItemID,
			Qty:     outstanding,
			Rate:    line.Rate,
			GSTRate: line.GSTRate,
		})
	}
	return order, defaults, nil
}

// CreateReceipt validates and persists a goods receipt: invoice header and
// lines, one inventory batch per line, and — when linked to an order — the
// bumped received quantities plus the rederived order status, all inside
// one transaction. A receipt never exists without its lines and batches.
func (s *Service) CreateReceipt(ctx context.Context, input CreateReceiptInput) (PurchaseInvoice, error) {
	if input.VendorID == 0 && input.VendorName == "" {
		return PurchaseInvoice{}, fmt.Errorf("vendor or vendor name required: %w", ErrValidation)
	}
	if input.Number == "" {
		return PurchaseInvoice{}, fmt.Errorf("invoice number required: %w", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return PurchaseInvoice{}, fmt.Errorf("at least one line required: %w", ErrValidation)
	}
	taxLines := make([]gst.Line, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.ItemID == 0 || line.Qty <= 0 || line.Rate <= 0 {
			return PurchaseInvoice{}, fmt.Errorf("line requires item, positive qty and rate: %w", ErrValidation)
		}
		taxLines = append(taxLines, gst.Line{Qty: line.Qty, Rate: line.Rate, GSTRate: line.GSTRate})
	}

	// Unregistered vendors default to intrastate.
	intrastate := true
	if input.VendorID != 0 {
		vendor, err := s.vendors.Get(ctx, input.VendorID)
		if err != nil {
			return PurchaseInvoice{}, fmt.Errorf("resolve vendor %d: %w", input.VendorID, err)
		}
		intrastate = vendor.Intrastate(s.homeState)
		if input.VendorName == "" {
			input.VendorName = vendor.Name
		}
	}
	totals, err := gst.Compute(taxLines, intrastate, input.Adjustments)
	if err != nil {
		return PurchaseInvoice{}, fmt.Errorf("%v: %w", err, ErrValidation)
	}

	invoice := PurchaseInvoice{
		Number:        input.Number,
		VendorName:    input.VendorName,
		InvoiceDate:   defaultTime(input.InvoiceDate),
		ReceivedDate:  defaultTime(input.ReceivedDate),
		Subtotal:      totals.Subtotal,
		CGST:          totals.CGST,
		SGST:          totals.SGST,
		IGST:          totals.IGST,
		OtherCharges:  input.Adjustments.OtherCharges,
		Discount:      input.Adjustments.Discount,
		RoundOff:      input.Adjustments.RoundOff,
		Total:         totals.Total,
		PaidAmount:    0,
		PendingAmount: totals.Total,
		PaymentStatus: PaymentStatusPending,
		Notes:         input.Notes,
	}
	if input.OrderID != 0 {
		orderID := input.OrderID
		invoice.OrderID = &orderID
	}
	if input.VendorID != 0 {
		vendorID := input.VendorID
		invoice.VendorID = &vendorID
	}

	key := fmt.Sprintf("PI:%d:%s", input.VendorID, input.Number)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "procurement.receipt"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return PurchaseInvoice{}, fmt.Errorf("receipt already recorded for this invoice number: %w", shared.ErrConflict)
			}
			return PurchaseInvoice{}, err
		}
		insertedKey = true
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.OrderID != 0 {
			// Lock the order rows first so concurrent receipts serialize.
			order, orderLines, err := tx.GetOrderForUpdate(ctx, input.OrderID)
			if err != nil {
				return err
			}
			if order.Status == OrderStatusCancelled {
				return ErrInvalidState
			}
			received := make([]ReceiptQty, 0, len(input.Lines))
			for _, line := range input.Lines {
				received = append(received, ReceiptQty{ItemID: line.ItemID, Qty: line.Qty})
			}
			updated, err := ApplyReceipt(orderLines, received)
			if err != nil {
				return err
			}
			for i := range updated {
				if updated[i].ReceivedQty != orderLines[i].ReceivedQty {
					if err := tx.UpdateOrderLineReceived(ctx, updated[i].ID, updated[i].ReceivedQty); err != nil {
						return err
					}
				}
			}
			if err := tx.UpdateOrderStatus(ctx, input.OrderID, DeriveStatus(updated)); err != nil {
				return err
			}
		}

		invoiceID, err := tx.CreateInvoice(ctx, invoice)
		if err != nil {
			return err
		}
		invoice.ID = invoiceID

		for _, line := range input.Lines {
			invLine := PurchaseInvoiceLine{
				InvoiceID:   invoiceID,
				ItemID:      line.ItemID,
				BatchNumber: line.BatchNumber,
				ExpiryDate:  line.ExpiryDate,
				Qty:         line.Qty,
				Rate:        line.Rate,
				GSTRate:     line.GSTRate,
				Amount:      gst.LineAmount(line.Qty, line.Rate, line.GSTRate),
			}
			batch, err := s.allocator.Allocate(ctx, tx.Inventory(), inventory.AllocateInput{
				ItemID:       line.ItemID,
				Qty:          line.Qty,
				PurchaseRate: line.Rate,
				BatchNumber:  line.BatchNumber,
				ExpiryDate:   line.ExpiryDate,
				InvoiceID:    invoiceID,
			})
			if err != nil {
				return err
			}
			invLine.BatchNumber = batch.BatchNumber
			if err := tx.InsertInvoiceLine(ctx, invLine); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return PurchaseInvoice{}, err
	}
	if s.metrics != nil {
		s.metrics.ReceiptsPosted.Inc()
	}
	s.recordAudit(ctx, "PI_CREATE", invoice.ID, map[string]any{"number": invoice.Number, "total": invoice.Total, "order_id": input.OrderID})
	return invoice, nil
}

// GetOrder returns an order and its lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, []PurchaseOrderLine, error) {
	return s.repo.GetOrder(ctx, id)
}

// GetInvoice returns an invoice and its lines.
func (s *Service) GetInvoice(ctx context.Context, id int64) (PurchaseInvoice, []PurchaseInvoiceLine, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListOrders returns orders with vendor names and totals.
func (s *Service) ListOrders(ctx context.Context, limit, offset int, filters ListFilters) ([]OrderListItem, int, error) {
	return s.repo.ListOrders(ctx, limit, offset, filters)
}

// ListInvoices returns receipts with payment aggregates.
func (s *Service) ListInvoices(ctx context.Context, limit, offset int, filters ListFilters) ([]InvoiceListItem, int, error) {
	return s.repo.ListInvoices(ctx, limit, offset, filters)
}

func (s *Service) vendorIntrastate(ctx context.Context, vendorID int64) (bool, error) {
	vendor, err := s.vendors.Get(ctx, vendorID)
	if err != nil {
		return false, fmt.Errorf("resolve vendor %d: %w", vendorID, err)
	}
	return vendor.Intrastate(s.homeState), nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "procurement", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now()
	}
	return value
}
