package procurement

import (
	"fmt"
	"time"

	"github.com/kirana-labs/kirana-erp/internal/shared"
)

// Purchase order lifecycle statuses. The stored status is a cache of the
// per-line received quantities and is recomputed from them on every
// mutation, never toggled incrementally.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusReceived  OrderStatus = "RECEIVED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Invoice payment statuses, derived from the payment rows.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// PurchaseOrder domain model.
type PurchaseOrder struct {
	ID           int64       `json:"id"`
	Number       string      `json:"number"`
	VendorID     int64       `json:"vendor_id"`
	OrderDate    time.Time   `json:"order_date"`
	ExpectedDate time.Time   `json:"expected_date,omitempty"`
	Status       OrderStatus `json:"status"`
	Subtotal     float64     `json:"subtotal"`
	CGST         float64     `json:"cgst"`
	SGST         float64     `json:"sgst"`
	IGST         float64     `json:"igst"`
	Total        float64     `json:"total"`
	Notes        string      `json:"notes,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// PurchaseOrderLine represents one ordered item. ReceivedQty is
// monotonically non-decreasing and never exceeds Qty; Amount is always
// recomputed from qty, rate and GST rate.
type PurchaseOrderLine struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"order_id"`
	ItemID      int64   `json:"item_id"`
	Qty         float64 `json:"qty"`
	Rate        float64 `json:"rate"`
	GSTRate     float64 `json:"gst_rate"`
	Amount      float64 `json:"amount"`
	ReceivedQty float64 `json:"received_qty"`
}

// PurchaseInvoice is a goods receipt. OrderID and VendorID are nil for
// ad-hoc purchases from unregistered vendors, which carry only a free-text
// vendor name.
type PurchaseInvoice struct {
	ID            int64         `json:"id"`
	Number        string        `json:"number"`
	OrderID       *int64        `json:"order_id,omitempty"`
	VendorID      *int64        `json:"vendor_id,omitempty"`
	VendorName    string        `json:"vendor_name,omitempty"`
	InvoiceDate   time.Time     `json:"invoice_date"`
	ReceivedDate  time.Time     `json:"received_date"`
	Subtotal      float64       `json:"subtotal"`
	CGST          float64       `json:"cgst"`
	SGST          float64       `json:"sgst"`
	IGST          float64       `json:"igst"`
	OtherCharges  float64       `json:"other_charges"`
	Discount      float64       `json:"discount"`
	RoundOff      float64       `json:"round_off"`
	Total         float64       `json:"total"`
	PaidAmount    float64       `json:"paid_amount"`
	PendingAmount float64       `json:"pending_amount"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// PurchaseInvoiceLine represents one received item.
type PurchaseInvoiceLine struct {
	ID          int64      `json:"id"`
	InvoiceID   int64      `json:"invoice_id"`
	ItemID      int64      `json:"item_id"`
	BatchNumber string     `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	Qty         float64    `json:"qty"`
	Rate        float64    `json:"rate"`
	GSTRate     float64    `json:"gst_rate"`
	Amount      float64    `json:"amount"`
}

// ListFilters narrows list queries.
type ListFilters struct {
	Status   string
	VendorID int64
	Search   string
	SortBy   string
	SortDir  string
}

// OrderListItem is a row in the order list view.
type OrderListItem struct {
	ID           int64       `json:"id"`
	Number       string      `json:"number"`
	VendorID     int64       `json:"vendor_id"`
	VendorName   string      `json:"vendor_name"`
	Status       OrderStatus `json:"status"`
	OrderDate    time.Time   `json:"order_date"`
	ExpectedDate time.Time   `json:"expected_date,omitempty"`
	Total        float64     `json:"total"`
	CreatedAt    time.Time   `json:"created_at"`
}

// InvoiceListItem is a row in the receipt list view.
type InvoiceListItem struct {
	ID            int64         `json:"id"`
	Number        string        `json:"number"`
	OrderID       int64         `json:"order_id,omitempty"`
	OrderNumber   string        `json:"order_number,omitempty"`
	VendorName    string        `json:"vendor_name"`
	InvoiceDate   time.Time     `json:"invoice_date"`
	ReceivedDate  time.Time     `json:"received_date"`
	Total         float64       `json:"total"`
	PaidAmount    float64       `json:"paid_amount"`
	PendingAmount float64       `json:"pending_amount"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("procurement: not found: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("procurement: invalid input: %w", shared.ErrValidation)
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = fmt.Errorf("procurement: invalid state transition: %w", shared.ErrInvalidState)
	// ErrOverReceipt occurs when a receipt would push a line past its ordered quantity.
	ErrOverReceipt = fmt.Errorf("procurement: received quantity exceeds ordered: %w", shared.ErrValidation)
	// ErrUnmatchedItem occurs when a receipt line has no matching order line.
	ErrUnmatchedItem = fmt.Errorf("procurement: receipt line has no matching order line: %w", shared.ErrValidation)
)
