package ap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirana-labs/kirana-erp/internal/procurement"
)

// memLedger is an in-memory RepositoryPort. WithTx stages mutations on a
// deep copy and commits by swap, like a rolled-back transaction on error.
type memLedger struct {
	nextID   int64
	payments map[int64]Payment
	invoices map[int64]*invoiceState
}

type invoiceState struct {
	Total   float64
	Paid    float64
	Pending float64
	Status  procurement.PaymentStatus
	Date    time.Time
}

func newMemLedger() *memLedger {
	return &memLedger{payments: map[int64]Payment{}, invoices: map[int64]*invoiceState{}}
}

func (m *memLedger) addInvoice(id int64, total float64, date time.Time) {
	m.invoices[id] = &invoiceState{Total: total, Pending: total, Status: procurement.PaymentStatusPending, Date: date}
}

func (m *memLedger) clone() *memLedger {
	c := newMemLedger()
	c.nextID = m.nextID
	for k, v := range m.payments {
		c.payments[k] = v
	}
	for k, v := range m.invoices {
		copied := *v
		c.invoices[k] = &copied
	}
	return c
}

func (m *memLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := m.clone()
	if err := fn(ctx, &memLedgerTx{repo: staged}); err != nil {
		return err
	}
	*m = *staged
	return nil
}

func (m *memLedger) GetPayment(_ context.Context, id int64) (Payment, error) {
	payment, ok := m.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return payment, nil
}

func (m *memLedger) ListPayments(_ context.Context, invoiceID int64) ([]Payment, error) {
	var out []Payment
	for id := int64(1); id <= m.nextID; id++ {
		if payment, ok := m.payments[id]; ok && payment.InvoiceID == invoiceID {
			out = append(out, payment)
		}
	}
	return out, nil
}

func (m *memLedger) Aging(_ context.Context, asOf time.Time) (AgingReport, error) {
	report := AgingReport{AsOf: asOf}
	buckets := map[string]*AgingBucket{}
	for _, label := range []string{"0-30", "31-60", "61-90", "90+"} {
		bucket := AgingBucket{Label: label}
		buckets[label] = &bucket
	}
	for _, inv := range m.invoices {
		if inv.Pending <= 0 {
			continue
		}
		days := int(asOf.Sub(inv.Date).Hours() / 24)
		label := "90+"
		switch {
		case days <= 30:
			label = "0-30"
		case days <= 60:
			label = "31-60"
		case days <= 90:
			label = "61-90"
		}
		buckets[label].Count++
		buckets[label].Pending += inv.Pending
		report.Total += inv.Pending
	}
	for _, label := range []string{"0-30", "31-60", "61-90", "90+"} {
		report.Buckets = append(report.Buckets, *buckets[label])
	}
	return report, nil
}

type memLedgerTx struct {
	repo *memLedger
}

func (t *memLedgerTx) GetInvoiceForUpdate(_ context.Context, invoiceID int64) (InvoiceBalance, error) {
	inv, ok := t.repo.invoices[invoiceID]
	if !ok {
		return InvoiceBalance{}, ErrNotFound
	}
	return InvoiceBalance{InvoiceID: invoiceID, Total: inv.Total, PaidAmount: inv.Paid, PendingAmount: inv.Pending}, nil
}

func (t *memLedgerTx) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	return t.repo.GetPayment(ctx, id)
}

func (t *memLedgerTx) InsertPayment(_ context.Context, payment Payment) (int64, error) {
	t.repo.nextID++
	payment.ID = t.repo.nextID
	t.repo.payments[payment.ID] = payment
	return payment.ID, nil
}

func (t *memLedgerTx) MarkReversed(_ context.Context, id int64, at time.Time) error {
	payment, ok := t.repo.payments[id]
	if !ok {
		return ErrNotFound
	}
	if payment.ReversedAt != nil {
		return ErrAlreadyReversed
	}
	payment.ReversedAt = &at
	t.repo.payments[id] = payment
	return nil
}

func (t *memLedgerTx) SumPayments(_ context.Context, invoiceID int64) (float64, error) {
	var sum float64
	for _, payment := range t.repo.payments {
		if payment.InvoiceID == invoiceID {
			sum += payment.Amount
		}
	}
	return sum, nil
}

func (t *memLedgerTx) UpdateInvoicePayment(_ context.Context, invoiceID int64, paid, pending float64, status procurement.PaymentStatus) error {
	inv, ok := t.repo.invoices[invoiceID]
	if !ok {
		return ErrNotFound
	}
	inv.Paid = paid
	inv.Pending = pending
	inv.Status = status
	return nil
}

func newTestLedger(t *testing.T) (*Service, *memLedger) {
	t.Helper()
	repo := newMemLedger()
	repo.addInvoice(1, 1180, time.Now().AddDate(0, 0, -10))
	return NewService(repo, nil, nil), repo
}

func TestRecordPayment(t *testing.T) {
	t.Run("partial payment marks invoice partial", func(t *testing.T) {
		svc, repo := newTestLedger(t)
		payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 500, Method: "UPI"})
		require.NoError(t, err)
		require.NotZero(t, payment.ID)

		inv := repo.invoices[1]
		require.InDelta(t, 500, inv.Paid, 1e-9)
		require.InDelta(t, 680, inv.Pending, 1e-9)
		require.Equal(t, procurement.PaymentStatusPartial, inv.Status)
	})

	t.Run("full settlement marks invoice paid", func(t *testing.T) {
		svc, repo := newTestLedger(t)
		_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 500})
		require.NoError(t, err)
		_, err = svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 680})
		require.NoError(t, err)

		inv := repo.invoices[1]
		require.InDelta(t, 1180, inv.Paid, 1e-9)
		require.InDelta(t, 0, inv.Pending, 1e-9)
		require.Equal(t, procurement.PaymentStatusPaid, inv.Status)
	})

	t.Run("overpayment rejected", func(t *testing.T) {
		svc, repo := newTestLedger(t)
		_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 1180.01})
		require.ErrorIs(t, err, ErrOverpayment)
		require.Empty(t, repo.payments)
		require.Equal(t, procurement.PaymentStatusPending, repo.invoices[1].Status)
	})

	t.Run("overpayment across payments rejected", func(t *testing.T) {
		svc, _ := newTestLedger(t)
		_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 1000})
		require.NoError(t, err)
		_, err = svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 200})
		require.ErrorIs(t, err, ErrOverpayment)
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		svc, _ := newTestLedger(t)
		_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 0})
		require.ErrorIs(t, err, ErrValidation)
		_, err = svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: -5})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		svc, _ := newTestLedger(t)
		_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 99, Amount: 10})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("paid amount always equals sum of rows", func(t *testing.T) {
		svc, repo := newTestLedger(t)
		for _, amount := range []float64{100, 200, 300} {
			_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: amount})
			require.NoError(t, err)
		}
		var sum float64
		for _, payment := range repo.payments {
			sum += payment.Amount
		}
		require.InDelta(t, sum, repo.invoices[1].Paid, 1e-9)
	})
}

func TestReversePayment(t *testing.T) {
	t.Run("reversal restores pending amount", func(t *testing.T) {
		svc, repo := newTestLedger(t)
		payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 700})
		require.NoError(t, err)

		reversal, err := svc.ReversePayment(context.Background(), payment.ID, "wrong invoice")
		require.NoError(t, err)
		require.InDelta(t, -700, reversal.Amount, 1e-9)
		require.NotNil(t, reversal.ReversalOf)
		require.Equal(t, payment.ID, *reversal.ReversalOf)

		inv := repo.invoices[1]
		require.InDelta(t, 0, inv.Paid, 1e-9)
		require.InDelta(t, 1180, inv.Pending, 1e-9)
		require.Equal(t, procurement.PaymentStatusPending, inv.Status)

		original := repo.payments[payment.ID]
		require.True(t, original.Reversed())
		require.InDelta(t, 700, original.Amount, 1e-9) // row untouched
	})

	t.Run("double reversal rejected", func(t *testing.T) {
		svc, _ := newTestLedger(t)
		payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 100})
		require.NoError(t, err)
		_, err = svc.ReversePayment(context.Background(), payment.ID, "")
		require.NoError(t, err)
		_, err = svc.ReversePayment(context.Background(), payment.ID, "")
		require.ErrorIs(t, err, ErrAlreadyReversed)
	})

	t.Run("reversal row itself cannot be reversed", func(t *testing.T) {
		svc, _ := newTestLedger(t)
		payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 100})
		require.NoError(t, err)
		reversal, err := svc.ReversePayment(context.Background(), payment.ID, "")
		require.NoError(t, err)
		_, err = svc.ReversePayment(context.Background(), reversal.ID, "")
		require.ErrorIs(t, err, ErrIsReversal)
	})
}

func TestAmendPayment(t *testing.T) {
	t.Run("amend replaces amount in one pass", func(t *testing.T) {
		svc, repo := newTestLedger(t)
		payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 500, Method: "UPI", Reference: "TXN-1"})
		require.NoError(t, err)

		replacement, err := svc.AmendPayment(context.Background(), payment.ID, RecordPaymentInput{Amount: 550})
		require.NoError(t, err)
		require.InDelta(t, 550, replacement.Amount, 1e-9)
		require.Equal(t, "UPI", replacement.Method) // carried over
		require.Equal(t, "TXN-1", replacement.Reference)

		inv := repo.invoices[1]
		require.InDelta(t, 550, inv.Paid, 1e-9)
		require.InDelta(t, 630, inv.Pending, 1e-9)
		require.Equal(t, procurement.PaymentStatusPartial, inv.Status)
		// three ledger rows: original, reversal, replacement
		require.Len(t, repo.payments, 3)
	})

	t.Run("amend beyond total rejected and nothing changes", func(t *testing.T) {
		svc, repo := newTestLedger(t)
		payment, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 1, Amount: 500})
		require.NoError(t, err)
		_, err = svc.AmendPayment(context.Background(), payment.ID, RecordPaymentInput{Amount: 5000})
		require.ErrorIs(t, err, ErrOverpayment)
		// rolled back: original still live, paid untouched
		require.Len(t, repo.payments, 1)
		require.False(t, repo.payments[payment.ID].Reversed())
		require.InDelta(t, 500, repo.invoices[1].Paid, 1e-9)
	})
}

func TestAging(t *testing.T) {
	svc, repo := newTestLedger(t)
	now := time.Now()
	repo.addInvoice(2, 400, now.AddDate(0, 0, -45))
	repo.addInvoice(3, 900, now.AddDate(0, 0, -100))
	repo.addInvoice(4, 100, now.AddDate(0, 0, -5))
	// settle invoice 4 so it drops out of the report
	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{InvoiceID: 4, Amount: 100})
	require.NoError(t, err)

	report, err := svc.Aging(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, report.Buckets, 4)
	require.InDelta(t, 1180+400+900, report.Total, 1e-9)
	require.Equal(t, "0-30", report.Buckets[0].Label)
	require.InDelta(t, 1180, report.Buckets[0].Pending, 1e-9)
	require.InDelta(t, 400, report.Buckets[1].Pending, 1e-9)
	require.InDelta(t, 0, report.Buckets[2].Pending, 1e-9)
	require.InDelta(t, 900, report.Buckets[3].Pending, 1e-9)
}
