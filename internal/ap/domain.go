package ap

import (
	"fmt"
	"time"

	"github.com/kirana-labs/kirana-erp/internal/shared"
)

// Payment is one row in the append-only payment ledger for a purchase
// invoice. Rows are never updated or deleted; a mistake is undone by a
// compensating negative row, and the invoice's paid amount is always the
// sum over all rows.
type Payment struct {
	ID          int64      `json:"id"`
	InvoiceID   int64      `json:"invoice_id"`
	Amount      float64    `json:"amount"`
	Method      string     `json:"method"`
	Reference   string     `json:"reference,omitempty"`
	PaymentDate time.Time  `json:"payment_date"`
	Notes       string     `json:"notes,omitempty"`
	ReversalOf  *int64     `json:"reversal_of,omitempty"`
	ReversedAt  *time.Time `json:"reversed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Reversed reports whether this payment has been undone.
func (p Payment) Reversed() bool {
	return p.ReversedAt != nil
}

// InvoiceBalance is the payable view of an invoice inside the ledger.
type InvoiceBalance struct {
	InvoiceID     int64
	Total         float64
	PaidAmount    float64
	PendingAmount float64
}

// AgingBucket groups outstanding payables by how long they have been due.
type AgingBucket struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Pending float64 `json:"pending"`
}

// AgingReport summarises outstanding payables per ageing bucket.
type AgingReport struct {
	AsOf    time.Time     `json:"as_of"`
	Total   float64       `json:"total"`
	Buckets []AgingBucket `json:"buckets"`
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("ap: not found: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("ap: invalid input: %w", shared.ErrValidation)
	// ErrOverpayment occurs when a payment would exceed the pending amount.
	ErrOverpayment = fmt.Errorf("ap: payment exceeds pending amount: %w", shared.ErrValidation)
	// ErrAlreadyReversed occurs when reversing a payment twice.
	ErrAlreadyReversed = fmt.Errorf("ap: payment already reversed: %w", shared.ErrInvalidState)
	// ErrIsReversal occurs when reversing a compensating row itself.
	ErrIsReversal = fmt.Errorf("ap: cannot reverse a reversal row: %w", shared.ErrInvalidState)
)
