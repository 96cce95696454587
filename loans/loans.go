/*
Package loans implements loan tracking and the payment composite.

PURPOSE:
  A loan payment is an ordinary Débito expense in the "Préstamos" category
  plus a decrement of the loan's remaining amount, committed as one atomic
  unit. Because the payment is a normal transaction, the balance aggregate
  moves through the same delta rule as everything else; there is no direct
  balance manipulation in this package.

PAYMENT POLICY:
  - At least the monthly installment, unless the payment clears the loan
  - Never more than the remaining amount
  - Must fit in the spendable (debit) balance
  - Remaining hits zero exactly when status flips to paid

SEE ALSO:
  - ledger.ApplyCreate: The shared write + delta path
  - jobs/reminders.go: Consumes NextPaymentDate
*/
package loans

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alehcs/AstroFinance/finance"
	"github.com/Alehcs/AstroFinance/ledger"
)

// Service coordinates loan mutations with their synthetic transactions.
type Service struct {
	store finance.TxStore
	now   func() time.Time
}

func New(store finance.TxStore) *Service {
	return &Service{store: store, now: time.Now}
}

// =============================================================================
// LOAN CRUD
// =============================================================================

// CreateLoan registers a loan. The monthly payment is the total divided
// evenly across installments, rounded to whole units. Installments already
// paid before registration reduce the remaining amount up front; a loan
// registered fully paid starts in the paid state.
func (s *Service) CreateLoan(ctx context.Context, owner finance.OwnerID, name string, total finance.Money, installments, installmentsPaid int, nextPayment time.Time) (*finance.Loan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &finance.ValidationError{Field: "loanName", Message: "required"}
	}
	if !total.IsPositive() {
		return nil, &finance.ValidationError{Field: "totalAmount", Message: "must be greater than 0"}
	}
	if total.GreaterThan(finance.MaxAmount) {
		return nil, &finance.ValidationError{Field: "totalAmount", Message: "exceeds maximum"}
	}
	if installments < 1 {
		return nil, &finance.ValidationError{Field: "installments", Message: "must be at least 1"}
	}
	if installmentsPaid < 0 || installmentsPaid > installments {
		return nil, &finance.ValidationError{Field: "installmentsPaid", Message: "must be between 0 and installments"}
	}

	monthly := finance.FromDecimal(
		total.Value.Div(decimal.NewFromInt(int64(installments))).Round(0))
	alreadyPaid := finance.FromDecimal(
		monthly.Value.Mul(decimal.NewFromInt(int64(installmentsPaid))))
	remaining := total.Sub(alreadyPaid).ClampZero()

	l := finance.Loan{
		ID:              finance.LoanID(uuid.NewString()),
		OwnerID:         owner,
		LoanName:        name,
		TotalAmount:     total,
		Installments:    installments,
		MonthlyPayment:  monthly,
		RemainingAmount: remaining,
		Status:          finance.LoanActive,
		NextPaymentDate: nextPayment,
		CreatedAt:       s.now().UTC(),
	}
	if remaining.IsZero() {
		l.Status = finance.LoanPaid
		l.NextPaymentDate = time.Time{}
	}
	if err := s.store.SaveLoan(ctx, l); err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}
	return &l, nil
}

func (s *Service) GetLoan(ctx context.Context, owner finance.OwnerID, id finance.LoanID) (*finance.Loan, error) {
	l, err := s.store.GetLoan(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, &finance.NotFoundError{Kind: "loan", ID: string(id)}
	}
	return l, nil
}

func (s *Service) ListLoans(ctx context.Context, owner finance.OwnerID) ([]finance.Loan, error) {
	return s.store.ListLoans(ctx, owner)
}

// DeleteLoan removes the loan record. Payment transactions stay in the
// ledger, so balances and history are untouched.
func (s *Service) DeleteLoan(ctx context.Context, owner finance.OwnerID, id finance.LoanID) error {
	if err := s.store.DeleteLoan(ctx, owner, id); err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	return nil
}

// =============================================================================
// MAKE PAYMENT
// =============================================================================

// MakePayment applies a payment to an active loan: the synthetic expense,
// the balance delta, and the loan update commit together or not at all.
func (s *Service) MakePayment(ctx context.Context, owner finance.OwnerID, id finance.LoanID, amount finance.Money) (*finance.Loan, error) {
	if !amount.IsPositive() {
		return nil, &finance.ValidationError{Field: "amount", Message: "must be greater than 0"}
	}

	var updated finance.Loan
	err := s.store.WithTx(ctx, func(st finance.Store) error {
		l, err := st.GetLoan(ctx, owner, id)
		if err != nil {
			return err
		}
		if l == nil {
			return &finance.NotFoundError{Kind: "loan", ID: string(id)}
		}
		if l.Status != finance.LoanActive {
			return &finance.ValidationError{Field: "loan", Message: "loan is already paid"}
		}
		if amount.GreaterThan(l.RemainingAmount) {
			return &finance.ValidationError{Field: "amount", Message: "exceeds remaining amount"}
		}
		// The installment minimum is waived when the payment clears the loan.
		if amount.LessThan(l.MinimumPayment()) && !amount.Equal(l.RemainingAmount) {
			return &finance.ValidationError{Field: "amount", Message: "below minimum payment"}
		}

		b, err := st.GetBalance(ctx, owner)
		if err != nil {
			return err
		}
		if amount.GreaterThan(b.Spendable()) {
			return &finance.InsufficientBalanceError{
				OwnerID:   owner,
				Available: b.Spendable(),
				Requested: amount,
			}
		}

		now := s.now().UTC()
		tx := finance.Transaction{
			ID:            finance.TransactionID(uuid.NewString()),
			OwnerID:       owner,
			Type:          finance.TxExpense,
			Amount:        amount,
			Description:   fmt.Sprintf("Pago préstamo: %s", l.LoanName),
			Category:      finance.CategoryLoans,
			PaymentMethod: finance.PayDebit,
			Date:          now,
			CreatedAt:     now,
		}
		if err := ledger.ApplyCreate(ctx, st, tx); err != nil {
			return err
		}

		l.RemainingAmount = l.RemainingAmount.Sub(amount)
		if l.RemainingAmount.IsZero() {
			l.Status = finance.LoanPaid
			l.NextPaymentDate = time.Time{}
		} else if !l.NextPaymentDate.IsZero() {
			l.NextPaymentDate = l.NextPaymentDate.AddDate(0, 1, 0)
		}

		if err := st.SaveLoan(ctx, *l); err != nil {
			return err
		}
		updated = *l
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("make loan payment: %w", err)
	}
	return &updated, nil
}
