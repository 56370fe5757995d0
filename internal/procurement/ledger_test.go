package procurement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	t.Run("no lines is pending", func(t *testing.T) {
		require.Equal(t, OrderStatusPending, DeriveStatus(nil))
	})

	t.Run("nothing received is pending", func(t *testing.T) {
		lines := []PurchaseOrderLine{{Qty: 10}, {Qty: 5}}
		require.Equal(t, OrderStatusPending, DeriveStatus(lines))
	})

	t.Run("some received is partial", func(t *testing.T) {
		lines := []PurchaseOrderLine{{Qty: 10, ReceivedQty: 4}, {Qty: 5}}
		require.Equal(t, OrderStatusPartial, DeriveStatus(lines))
	})

	t.Run("one line complete other untouched is partial", func(t *testing.T) {
		lines := []PurchaseOrderLine{{Qty: 10, ReceivedQty: 10}, {Qty: 5}}
		require.Equal(t, OrderStatusPartial, DeriveStatus(lines))
	})

	t.Run("all lines complete is received", func(t *testing.T) {
		lines := []PurchaseOrderLine{{Qty: 10, ReceivedQty: 10}, {Qty: 5, ReceivedQty: 5}}
		require.Equal(t, OrderStatusReceived, DeriveStatus(lines))
	})

	t.Run("fractional remainder within epsilon counts as complete", func(t *testing.T) {
		lines := []PurchaseOrderLine{{Qty: 0.3, ReceivedQty: 0.1 + 0.2}}
		require.Equal(t, OrderStatusReceived, DeriveStatus(lines))
	})
}

func TestApplyReceipt(t *testing.T) {
	base := []PurchaseOrderLine{
		{ID: 1, ItemID: 100, Qty: 10, Rate: 50},
		{ID: 2, ItemID: 200, Qty: 4, Rate: 120, ReceivedQty: 1},
	}

	t.Run("accumulates received quantities", func(t *testing.T) {
		updated, err := ApplyReceipt(base, []ReceiptQty{{ItemID: 100, Qty: 6}, {ItemID: 200, Qty: 3}})
		require.NoError(t, err)
		require.InDelta(t, 6, updated[0].ReceivedQty, 1e-9)
		require.InDelta(t, 4, updated[1].ReceivedQty, 1e-9)
		// input untouched
		require.InDelta(t, 0, base[0].ReceivedQty, 1e-9)
	})

	t.Run("rejects over-receipt", func(t *testing.T) {
		_, err := ApplyReceipt(base, []ReceiptQty{{ItemID: 100, Qty: 11}})
		require.ErrorIs(t, err, ErrOverReceipt)
	})

	t.Run("rejects over-receipt counting prior receipts", func(t *testing.T) {
		_, err := ApplyReceipt(base, []ReceiptQty{{ItemID: 200, Qty: 3.5}})
		require.ErrorIs(t, err, ErrOverReceipt)
	})

	t.Run("rejects unmatched item", func(t *testing.T) {
		_, err := ApplyReceipt(base, []ReceiptQty{{ItemID: 999, Qty: 1}})
		require.True(t, errors.Is(err, ErrUnmatchedItem))
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := ApplyReceipt(base, []ReceiptQty{{ItemID: 100, Qty: 0}})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("exact remaining quantity fills the line", func(t *testing.T) {
		updated, err := ApplyReceipt(base, []ReceiptQty{{ItemID: 200, Qty: 3}})
		require.NoError(t, err)
		require.InDelta(t, 4, updated[1].ReceivedQty, 1e-9)
		require.Equal(t, OrderStatusPartial, DeriveStatus(updated))
	})
}
