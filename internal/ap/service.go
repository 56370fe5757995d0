package ap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirana-labs/kirana-erp/internal/observability"
	"github.com/kirana-labs/kirana-erp/internal/procurement"
	"github.com/kirana-labs/kirana-erp/internal/shared"
)

// moneyEpsilon absorbs float noise when comparing rupee amounts; anything
// under half a paisa counts as equal.
const moneyEpsilon = 0.005

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPayment(ctx context.Context, id int64) (Payment, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	Aging(ctx context.Context, asOf time.Time) (AgingReport, error)
}

// Service maintains the payment ledger against purchase invoices.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics *observability.Metrics
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewService constructs the accounts payable service.
func NewService(repo RepositoryPort, audit AuditPort, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics}
}

// RecordPaymentInput describes a payment against an invoice.
type RecordPaymentInput struct {
	InvoiceID   int64
	Amount      float64
	Method      string
	Reference   string
	PaymentDate time.Time
	Notes       string
}

// RecordPayment appends a payment row and recomputes the invoice's paid
// and pending amounts from the full row set. Overpayment is rejected, the
// pending amount never goes negative.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (Payment, error) {
	if input.InvoiceID == 0 {
		return Payment{}, fmt.Errorf("invoice required: %w", ErrValidation)
	}
	if input.Amount <= 0 {
		return Payment{}, fmt.Errorf("amount must be positive: %w", ErrValidation)
	}
	if input.Method == "" {
		input.Method = "CASH"
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = time.Now()
	}

	payment := Payment{
		InvoiceID:   input.InvoiceID,
		Amount:      input.Amount,
		Method:      input.Method,
		Reference:   input.Reference,
		PaymentDate: input.PaymentDate,
		Notes:       input.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if input.Amount > balance.PendingAmount+moneyEpsilon {
			return ErrOverpayment
		}
		id, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id
		return s.settle(ctx, tx, balance)
	})
	if err != nil {
		return Payment{}, err
	}
	if s.metrics != nil {
		s.metrics.PaymentsRecorded.Inc()
	}
	s.recordAudit(ctx, "PAYMENT_RECORD", payment.ID, map[string]any{"invoice_id": input.InvoiceID, "amount": input.Amount})
	return payment, nil
}

// ReversePayment appends a compensating negative row for the given
// payment and marks the original reversed. The original row is never
// mutated beyond the reversal stamp.
func (s *Service) ReversePayment(ctx context.Context, paymentID int64, reason string) (Payment, error) {
	var reversal Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reversal, err = s.reverseInTx(ctx, tx, paymentID, reason)
		return err
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, "PAYMENT_REVERSE", paymentID, map[string]any{"reason": reason})
	return reversal, nil
}

// AmendPayment corrects a payment by reversing it and recording the
// replacement in one transaction, preserving the append-only history.
func (s *Service) AmendPayment(ctx context.Context, paymentID int64, input RecordPaymentInput) (Payment, error) {
	if input.Amount <= 0 {
		return Payment{}, fmt.Errorf("amount must be positive: %w", ErrValidation)
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = time.Now()
	}
	var replacement Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if input.InvoiceID != 0 && input.InvoiceID != original.InvoiceID {
			return fmt.Errorf("amended payment must stay on invoice %d: %w", original.InvoiceID, ErrValidation)
		}
		if _, err := s.reverseInTx(ctx, tx, paymentID, "amended"); err != nil {
			return err
		}
		balance, err := tx.GetInvoiceForUpdate(ctx, original.InvoiceID)
		if err != nil {
			return err
		}
		if input.Amount > balance.PendingAmount+moneyEpsilon {
			return ErrOverpayment
		}
		replacement = Payment{
			InvoiceID:   original.InvoiceID,
			Amount:      input.Amount,
			Method:      coalesce(input.Method, original.Method),
			Reference:   coalesce(input.Reference, original.Reference),
			PaymentDate: input.PaymentDate,
			Notes:       input.Notes,
		}
		id, err := tx.InsertPayment(ctx, replacement)
		if err != nil {
			return err
		}
		replacement.ID = id
		return s.settle(ctx, tx, balance)
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, "PAYMENT_AMEND", paymentID, map[string]any{"new_amount": input.Amount})
	return replacement, nil
}

// ListPayments returns all ledger rows for an invoice, reversals included.
func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, invoiceID)
}

// GetPayment returns one ledger row.
func (s *Service) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// Aging reports outstanding payables bucketed by invoice age.
func (s *Service) Aging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	return s.repo.Aging(ctx, asOf)
}

func (s *Service) reverseInTx(ctx context.Context, tx TxRepository, paymentID int64, reason string) (Payment, error) {
	original, err := tx.GetPaymentForUpdate(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if original.ReversalOf != nil || original.Amount < 0 {
		return Payment{}, ErrIsReversal
	}
	if original.Reversed() {
		return Payment{}, ErrAlreadyReversed
	}
	reversal := Payment{
		InvoiceID:   original.InvoiceID,
		Amount:      -original.Amount,
		Method:      original.Method,
		Reference:   original.Reference,
		PaymentDate: time.Now(),
		Notes:       reason,
		ReversalOf:  &original.ID,
	}
	id, err := tx.InsertPayment(ctx, reversal)
	if err != nil {
		return Payment{}, err
	}
	reversal.ID = id
	if err := tx.MarkReversed(ctx, paymentID, time.Now()); err != nil {
		return Payment{}, err
	}
	balance, err := tx.GetInvoiceForUpdate(ctx, original.InvoiceID)
	if err != nil {
		return Payment{}, err
	}
	return reversal, s.settle(ctx, tx, balance)
}

// settle recomputes the invoice's paid amount from the sum of all payment
// rows and derives the payment status. Incremental bumps are never used.
func (s *Service) settle(ctx context.Context, tx TxRepository, balance InvoiceBalance) error {
	paid, err := tx.SumPayments(ctx, balance.InvoiceID)
	if err != nil {
		return err
	}
	pending := balance.Total - paid
	if pending < 0 && pending > -moneyEpsilon {
		pending = 0
	}
	status := procurement.PaymentStatusPending
	switch {
	case pending <= moneyEpsilon:
		status = procurement.PaymentStatusPaid
		pending = 0
	case paid > moneyEpsilon:
		status = procurement.PaymentStatusPartial
	}
	return tx.UpdateInvoicePayment(ctx, balance.InvoiceID, paid, pending, status)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "ap", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func coalesce(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
