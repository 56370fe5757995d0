package vendors

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirana-labs/kirana-erp/internal/shared"
)

// Vendor is a registered supplier. StateCode is the two-letter GST state
// code; it decides whether purchases from this vendor are intrastate.
type Vendor struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	GSTIN     string     `json:"gstin,omitempty"`
	StateCode string     `json:"state_code"`
	Address   string     `json:"address,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Email     string     `json:"email,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Intrastate reports whether the vendor shares the buyer's state. Vendors
// without a state code are treated as local.
func (v Vendor) Intrastate(homeState string) bool {
	if v.StateCode == "" {
		return true
	}
	return strings.EqualFold(v.StateCode, homeState)
}

// Sentinel errors.
var (
	ErrNotFound   = fmt.Errorf("vendor: %w", shared.ErrNotFound)
	ErrValidation = fmt.Errorf("vendor: %w", shared.ErrValidation)
)
