package inventory

import (
	"fmt"
	"time"

	"github.com/kirana-labs/kirana-erp/internal/shared"
)

// Batch is a distinct, traceable lot of an item received at a given rate.
// One batch is created per received invoice line; batches are never merged
// or split here. Downstream valuation consumes them elsewhere.
type Batch struct {
	ID           int64      `json:"id"`
	ItemID       int64      `json:"item_id"`
	BatchNumber  string     `json:"batch_number"`
	Qty          float64    `json:"qty"`
	PurchaseRate float64    `json:"purchase_rate"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	InvoiceID    int64      `json:"invoice_id"`
	CreatedAt    time.Time  `json:"created_at"`
}

// BatchFilter narrows batch queries.
type BatchFilter struct {
	ItemID    int64
	InvoiceID int64
	Limit     int
}

var (
	// ErrInvalidQuantity indicates a non-positive batch quantity.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must be positive: %w", shared.ErrValidation)
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("inventory: not found: %w", shared.ErrNotFound)
)
