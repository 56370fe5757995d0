package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AllocateInput describes one lot to create from a received invoice line.
type AllocateInput struct {
	ItemID       int64
	Qty          float64
	PurchaseRate float64
	BatchNumber  string
	ExpiryDate   *time.Time
	InvoiceID    int64
}

// Allocator creates stock lots. It runs inside the caller's transaction so
// a receipt never exists without its batches.
type Allocator struct{}

// NewAllocator constructs an Allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate creates exactly one batch. The only business validation is a
// positive quantity; everything else was validated by the receipt flow.
// Two receipts of the same item always produce two batches.
func (a *Allocator) Allocate(ctx context.Context, repo TxRepository, input AllocateInput) (Batch, error) {
	if input.Qty <= 0 {
		return Batch{}, ErrInvalidQuantity
	}
	batch := Batch{
		ItemID:       input.ItemID,
		BatchNumber:  input.BatchNumber,
		Qty:          input.Qty,
		PurchaseRate: input.PurchaseRate,
		ExpiryDate:   input.ExpiryDate,
		InvoiceID:    input.InvoiceID,
	}
	if batch.BatchNumber == "" {
		batch.BatchNumber = generateBatchNumber(input.InvoiceID)
	}
	id, err := repo.InsertBatch(ctx, batch)
	if err != nil {
		return Batch{}, err
	}
	batch.ID = id
	return batch, nil
}

func generateBatchNumber(invoiceID int64) string {
	return fmt.Sprintf("B%d-%s", invoiceID, uuid.NewString()[:8])
}
