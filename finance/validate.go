/*
validate.go - Transaction input validation

PURPOSE:
  Validates a transaction before any write is attempted. Fail fast with a
  ValidationError and zero side effects; the atomic unit is only entered
  after validation passes.

POLICY BOUNDARIES (not technical constraints):
  - amount in (0, 100,000,000]
  - business date not in the future, not more than one year in the past
  - description at least 3 characters
  - expenses must carry a payment method

SEE ALSO:
  - errors.go: ValidationError
  - ledger/service.go: Calls ValidateTransaction before opening a batch
*/
package finance

import (
	"strings"
	"time"
)

// MaxAmount is the upper bound on a single transaction.
var MaxAmount = NewMoneyFromInt(100_000_000)

// ValidateTransaction checks all input policy for a transaction create or
// edit. now anchors the date-window check.
func ValidateTransaction(tx Transaction, now time.Time) error {
	if strings.TrimSpace(tx.Description) == "" {
		return &ValidationError{Field: "description", Message: "required"}
	}
	if len(strings.TrimSpace(tx.Description)) < 3 {
		return &ValidationError{Field: "description", Message: "must be at least 3 characters"}
	}
	if !tx.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than 0"}
	}
	if tx.Amount.GreaterThan(MaxAmount) {
		return &ValidationError{Field: "amount", Message: "exceeds maximum"}
	}
	if tx.Type != TxIncome && tx.Type != TxExpense {
		return &ValidationError{Field: "type", Message: "must be income or expense"}
	}
	if strings.TrimSpace(tx.Category) == "" {
		return &ValidationError{Field: "category", Message: "required"}
	}
	if tx.Type == TxExpense && tx.PaymentMethod == "" {
		return &ValidationError{Field: "paymentMethod", Message: "required for expenses"}
	}
	if tx.PaymentMethod != "" {
		switch tx.PaymentMethod {
		case PayDebit, PayCredit, PayCash:
		default:
			return &ValidationError{Field: "paymentMethod", Message: "unknown payment method"}
		}
	}
	if err := validateDate(tx.Date, now); err != nil {
		return err
	}
	return nil
}

func validateDate(date time.Time, now time.Time) error {
	if date.IsZero() {
		return &ValidationError{Field: "date", Message: "required"}
	}
	// Compare at day granularity; a transaction dated later today is fine.
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	d, n := day(date), day(now)
	if d.After(n) {
		return &ValidationError{Field: "date", Message: "cannot be in the future"}
	}
	if d.Before(n.AddDate(-1, 0, 0)) {
		return &ValidationError{Field: "date", Message: "cannot be more than one year in the past"}
	}
	return nil
}
