package items

import (
	"fmt"
	"time"

	"github.com/kirana-labs/kirana-erp/internal/shared"
)

// Item is a stock-keeping unit. GSTRate is the combined GST percentage
// applied to purchases; HSN is the tax classification code.
type Item struct {
	ID           int64      `json:"id"`
	SKU          string     `json:"sku"`
	Name         string     `json:"name"`
	HSN          string     `json:"hsn,omitempty"`
	Unit         string     `json:"unit"`
	GSTRate      float64    `json:"gst_rate"`
	PurchaseRate float64    `json:"purchase_rate"`
	SellingRate  float64    `json:"selling_rate"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// Sentinel errors.
var (
	ErrNotFound   = fmt.Errorf("item: %w", shared.ErrNotFound)
	ErrValidation = fmt.Errorf("item: %w", shared.ErrValidation)
)
