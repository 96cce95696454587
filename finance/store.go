/*
store.go - Persistence interfaces for the finance domain

PURPOSE:
  Defines the contract between the services and the database. The store
  exposes document-style operations (get/save/delete by id within a named
  collection, equality + one range filter queries) plus the two primitives
  the balance-consistency workflow depends on:

  1. WithTx: an atomic multi-document unit. Every operation that touches
     both a ledger/entity record AND the balance aggregate runs inside one
     WithTx call; either everything commits or nothing does.

  2. ApplyBalanceDelta: a server-side clamped increment on the aggregate
     (debit_balance = MAX(0, debit_balance + d)). Concurrent writers for
     the same owner increment independently instead of racing through
     read-modify-write; the lost-update hazard of the naive design is
     eliminated at the primitive, not papered over with retries.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store (WithTx maps to BEGIN/COMMIT)
  - finance/store: In-memory store for tests and dev

SEE ALSO:
  - delta.go: Delta semantics applied by ApplyBalanceDelta
  - jobs/reset.go: Uses DeleteOwnerDocs for batched collection wipes
*/
package finance

import (
	"context"
	"time"
)

// Collection names, as used by queries and the full-reset operation.
const (
	ColTransactions  = "transactions"
	ColGoals         = "saving_goals"
	ColLoans         = "loans"
	ColBudgets       = "budgets"
	ColTemplates     = "recurring_templates"
	ColNotifications = "notifications"
)

// ResetCollections is the fixed list of owned collections wiped by the
// full-reset operation, in deletion order.
var ResetCollections = []string{
	ColTransactions, ColGoals, ColLoans, ColBudgets, ColTemplates, ColNotifications,
}

// TransactionFilter narrows a ledger query. Nil fields match everything.
type TransactionFilter struct {
	Type     *TransactionType
	Category *string
	From     *time.Time // business date range, inclusive
	To       *time.Time
}

// NotificationKey identifies the idempotency guard for an alert or reminder:
// an unread notification matching the key suppresses a duplicate.
type NotificationKey struct {
	OwnerID   OwnerID
	Type      NotificationType
	Category  string // budget alerts
	Month     string
	Threshold int
	LoanID    LoanID // loan reminders
}

// Store is the persistence contract shared by all services.
type Store interface {
	// --- Transactions (ledger) ---
	InsertTransaction(ctx context.Context, tx Transaction) error
	UpdateTransaction(ctx context.Context, tx Transaction) error
	DeleteTransaction(ctx context.Context, owner OwnerID, id TransactionID) error
	// GetTransaction returns nil when the id is absent or owned by someone else.
	GetTransaction(ctx context.Context, owner OwnerID, id TransactionID) (*Transaction, error)
	// TransactionExists checks an id regardless of owner. Used as the
	// idempotency probe by the recurring processor.
	TransactionExists(ctx context.Context, id TransactionID) (bool, error)
	QueryTransactions(ctx context.Context, owner OwnerID, f TransactionFilter) ([]Transaction, error)
	// SumExpenses totals expense amounts for owner+category in [from, to].
	SumExpenses(ctx context.Context, owner OwnerID, category string, from, to time.Time) (Money, error)

	// --- Balance aggregate ---
	// GetBalance returns zero defaults when no aggregate row exists yet.
	GetBalance(ctx context.Context, owner OwnerID) (BalanceAggregate, error)
	// ApplyBalanceDelta increments the aggregate server-side with zero
	// clamping, creating the row with zero defaults first if absent.
	ApplyBalanceDelta(ctx context.Context, owner OwnerID, d Delta) error
	// SetBalance overwrites the aggregate. Only the recompute recovery
	// operation uses this.
	SetBalance(ctx context.Context, b BalanceAggregate) error
	DeleteBalance(ctx context.Context, owner OwnerID) error

	// --- Savings goals ---
	SaveGoal(ctx context.Context, g SavingsGoal) error
	GetGoal(ctx context.Context, owner OwnerID, id GoalID) (*SavingsGoal, error)
	ListGoals(ctx context.Context, owner OwnerID) ([]SavingsGoal, error)
	DeleteGoal(ctx context.Context, owner OwnerID, id GoalID) error

	// --- Loans ---
	SaveLoan(ctx context.Context, l Loan) error
	GetLoan(ctx context.Context, owner OwnerID, id LoanID) (*Loan, error)
	ListLoans(ctx context.Context, owner OwnerID) ([]Loan, error)
	// ListLoansDue returns active loans whose next payment falls on the
	// given calendar day, across all owners. Used by the reminder job.
	ListLoansDue(ctx context.Context, day time.Time) ([]Loan, error)
	DeleteLoan(ctx context.Context, owner OwnerID, id LoanID) error

	// --- Budgets ---
	SaveBudget(ctx context.Context, b Budget) error
	// GetBudget returns nil when no budget exists for the month.
	GetBudget(ctx context.Context, owner OwnerID, month string) (*Budget, error)

	// --- Recurring templates ---
	SaveTemplate(ctx context.Context, t RecurringTemplate) error
	GetTemplate(ctx context.Context, owner OwnerID, id TemplateID) (*RecurringTemplate, error)
	ListTemplates(ctx context.Context, owner OwnerID) ([]RecurringTemplate, error)
	// ListTemplatesForDay returns all templates (all owners) firing on the
	// given day of month.
	ListTemplatesForDay(ctx context.Context, dayOfMonth int) ([]RecurringTemplate, error)
	DeleteTemplate(ctx context.Context, owner OwnerID, id TemplateID) error

	// --- Notifications ---
	InsertNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, owner OwnerID) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, owner OwnerID, id NotificationID) error
	// HasUnreadNotification is the duplicate-alert idempotency guard.
	HasUnreadNotification(ctx context.Context, key NotificationKey) (bool, error)
	// DeleteNotificationsBefore removes notifications created before the
	// cutoff, at most limit per call. Returns the number deleted.
	DeleteNotificationsBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)

	// --- Profiles ---
	SaveProfile(ctx context.Context, p Profile) error
	GetProfile(ctx context.Context, owner OwnerID) (*Profile, error)
	DeleteProfile(ctx context.Context, owner OwnerID) error

	// --- Reset support ---
	// DeleteOwnerDocs removes up to limit documents owned by owner from the
	// named collection and reports how many were deleted. Deleting from an
	// already-empty collection is a no-op returning 0.
	DeleteOwnerDocs(ctx context.Context, collection string, owner OwnerID, limit int) (int, error)
}

// TxStore wraps Store with atomic multi-document units.
type TxStore interface {
	Store

	// WithTx executes fn within one atomic unit. If fn returns an error the
	// unit is rolled back and nothing is observable; otherwise everything
	// commits together.
	WithTx(ctx context.Context, fn func(Store) error) error
}
