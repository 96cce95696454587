/*
Package finance provides the core domain model for the AstroFinance
balance service.

PURPOSE:
  This package contains the types and algorithms shared by every service in
  the system: money arithmetic, the transaction/aggregate/goal/loan records,
  the balance-delta engine, input validation, and the persistence contract.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal amount in whole currency units
  - Transaction: One income or expense event in the ledger
  - BalanceAggregate: The per-owner derived snapshot of liquid and credit
    balances, maintained incrementally (never recomputed on read)
  - SavingsGoal / Loan: Per-entity records mutated only by their operations

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for owner/entity identifiers
  3. One delta rule: Every ledger mutation routes through DeltaFor; there is
     no special-cased balance manipulation anywhere else

SEE ALSO:
  - delta.go: Balance Update Engine
  - validate.go: Transaction validation
  - store.go: Persistence interfaces
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amount in whole currency units
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func Zero() Money { return Money{Value: decimal.Zero} }

// FromDecimal wraps an existing decimal value.
func FromDecimal(d decimal.Decimal) Money { return Money{Value: d} }

func (m Money) Add(b Money) Money          { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money          { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) GreaterThan(b Money) bool   { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool      { return m.Value.LessThan(b.Value) }
func (m Money) Equal(b Money) bool         { return m.Value.Equal(b.Value) }
func (m Money) String() string             { return m.Value.String() }
func (m Money) Float64() float64           { return m.Value.InexactFloat64() }

func (m Money) Min(b Money) Money {
	if m.LessThan(b) {
		return m
	}
	return b
}

// ClampZero floors the amount at zero. The balance aggregate never goes
// negative; deficits are absorbed, not rejected.
func (m Money) ClampZero() Money {
	if m.IsNegative() {
		return Zero()
	}
	return m
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OwnerID string
type TransactionID string
type GoalID string
type LoanID string
type TemplateID string
type NotificationID string

// =============================================================================
// TRANSACTION - One income or expense event
// =============================================================================

type TransactionType string

const (
	TxIncome  TransactionType = "income"
	TxExpense TransactionType = "expense"
)

type PaymentMethod string

const (
	PayDebit  PaymentMethod = "Débito"
	PayCredit PaymentMethod = "Crédito"
	PayCash   PaymentMethod = "Efectivo"
)

// Synthetic-transaction categories. Goal and loan operations write normal
// ledger entries under these labels so history survives entity deletion.
const (
	CategorySavings = "Ahorros"
	CategoryLoans   = "Préstamos"
)

type Transaction struct {
	ID            TransactionID
	OwnerID       OwnerID
	Type          TransactionType
	Amount        Money
	Description   string
	Category      string
	PaymentMethod PaymentMethod // expense-only
	BankName      string
	Date          time.Time // business date, distinct from CreatedAt

	// Set only by the recurring processor.
	IsRecurring bool
	TemplateID  TemplateID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// BALANCE AGGREGATE - Derived per-owner snapshot, updated incrementally
// =============================================================================

// BalanceAggregate caches the owner's liquid (debit) balance and used credit.
// It is NOT recomputed from the ledger on read; every ledger mutation applies
// a compensating delta in the same atomic unit. Recompute (ledger.Recompute)
// is the recovery operation if the two ever drift.
type BalanceAggregate struct {
	OwnerID      OwnerID
	DebitBalance Money
	UsedCredit   Money
	LastUpdated  time.Time
}

// Spendable is the balance checked by goal contributions and loan payments.
// Only the debit side counts; available credit is not spendable here.
func (b BalanceAggregate) Spendable() Money { return b.DebitBalance }

// =============================================================================
// SAVINGS GOAL
// =============================================================================

type SavingsGoal struct {
	ID            GoalID
	OwnerID       OwnerID
	GoalName      string
	TargetAmount  Money
	CurrentAmount Money // invariant: 0 <= CurrentAmount <= TargetAmount
	CreatedAt     time.Time
}

func (g SavingsGoal) Headroom() Money { return g.TargetAmount.Sub(g.CurrentAmount) }

// =============================================================================
// LOAN
// =============================================================================

type LoanStatus string

const (
	LoanActive LoanStatus = "active"
	LoanPaid   LoanStatus = "paid"
)

type Loan struct {
	ID              LoanID
	OwnerID         OwnerID
	LoanName        string
	TotalAmount     Money
	Installments    int
	MonthlyPayment  Money // round(TotalAmount / Installments)
	RemainingAmount Money // non-increasing; 0 exactly when status is paid
	Status          LoanStatus
	NextPaymentDate time.Time // used by the reminder job; zero when unset
	CreatedAt       time.Time
}

// MinimumPayment is the smallest accepted payment: the monthly installment,
// or whatever remains when that is less.
func (l Loan) MinimumPayment() Money { return l.MonthlyPayment.Min(l.RemainingAmount) }

// =============================================================================
// BUDGET - Per-owner, per-month category limits (read-only to the core)
// =============================================================================

type Budget struct {
	OwnerID   OwnerID
	Month     string // "2006-01"
	Limits    map[string]Money
	UpdatedAt time.Time
}

// =============================================================================
// RECURRING TEMPLATE
// =============================================================================

type RecurringTemplate struct {
	ID            TemplateID
	OwnerID       OwnerID
	Type          TransactionType
	Amount        Money
	Description   string
	Category      string
	PaymentMethod PaymentMethod
	DayOfMonth    int // 1..28 when it fires
	CreatedAt     time.Time
}

// =============================================================================
// NOTIFICATION
// =============================================================================

type NotificationType string

const (
	NotifyLoanReminder NotificationType = "loan_reminder"
	NotifyBudgetAlert  NotificationType = "budget_alert"
)

type Notification struct {
	ID      NotificationID
	OwnerID OwnerID
	Type    NotificationType
	Title   string
	Message string

	// budget_alert fields
	Category  string
	Month     string
	Threshold int

	// loan_reminder field
	LoanID LoanID

	IsRead    bool
	CreatedAt time.Time
}

// =============================================================================
// PROFILE
// =============================================================================

type Profile struct {
	OwnerID   OwnerID
	Name      string
	Email     string
	CreatedAt time.Time
}
