package procurement

// The order line ledger keeps ordered versus received quantities per line
// and derives the order's aggregate status. Derivation always runs over
// the full line set so the stored status cannot drift from the per-line
// truth.

// qtyEpsilon absorbs float accumulation noise when comparing quantities.
const qtyEpsilon = 1e-9

// ReceiptQty is the quantity received for one item on a single receipt.
type ReceiptQty struct {
	ItemID int64
	Qty    float64
}

// DeriveStatus recomputes the aggregate order status from scratch.
// RECEIVED iff every line is fully received; PARTIAL iff anything has
// arrived; PENDING otherwise. Cancellation is not derived here — it is an
// explicit terminal transition.
func DeriveStatus(lines []PurchaseOrderLine) OrderStatus {
	if len(lines) == 0 {
		return OrderStatusPending
	}
	allFull := true
	anyReceived := false
	for _, line := range lines {
		if line.ReceivedQty > qtyEpsilon {
			anyReceived = true
		}
		if line.ReceivedQty+qtyEpsilon < line.Qty {
			allFull = false
		}
	}
	switch {
	case allFull:
		return OrderStatusReceived
	case anyReceived:
		return OrderStatusPartial
	default:
		return OrderStatusPending
	}
}

// ApplyReceipt returns a copy of the order lines with the received
// quantities bumped by this receipt. Receipt quantities are matched to
// order lines by item; an unmatched item or an over-receipt rejects the
// whole receipt, nothing is clamped.
func ApplyReceipt(orderLines []PurchaseOrderLine, received []ReceiptQty) ([]PurchaseOrderLine, error) {
	updated := append([]PurchaseOrderLine(nil), orderLines...)
	for _, rq := range received {
		if rq.Qty <= 0 {
			return nil, ErrValidation
		}
		matched := false
		for i := range updated {
			if updated[i].ItemID != rq.ItemID {
				continue
			}
			matched = true
			after := updated[i].ReceivedQty + rq.Qty
			if after > updated[i].Qty+qtyEpsilon {
				return nil, ErrOverReceipt
			}
			updated[i].ReceivedQty = after
			break
		}
		if !matched {
			return nil, ErrUnmatchedItem
		}
	}
	return updated, nil
}
