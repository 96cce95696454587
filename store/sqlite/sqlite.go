/*
Package sqlite provides a SQLite-backed implementation of finance.TxStore.

PURPOSE:
  Implements the persistence contract using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  transactions:        The ledger of income/expense records
  balances:            Per-owner balance aggregate (debit + used credit)
  saving_goals:        Savings goals with target/current amounts
  loans:               Amortizing loans
  budgets:             Per-owner, per-month category limits (JSON)
  recurring_templates: Monthly recurring-transaction templates
  notifications:       Budget alerts and loan reminders
  profiles:            Owner profile records

ATOMIC UNITS:
  WithTx maps the finance.TxStore contract onto BEGIN/COMMIT. Every
  composite operation (ledger write + aggregate delta, goal/loan update +
  synthetic transaction) runs inside one database transaction; a failure
  anywhere rolls the whole unit back.

BALANCE INCREMENTS:
  ApplyBalanceDelta is a server-side clamped increment:

    UPDATE balances SET debit_balance = MAX(0, debit_balance + ?)

  Concurrent writers for the same owner never read-modify-write the
  aggregate, so no delta can be silently lost. The balance columns store
  hundredths of a unit as INTEGER; the increments run on exact int64
  arithmetic, never on floats.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety across the process. WAL mode keeps
  readers unblocked while a writer commits.

USAGE:
  store, err := sqlite.New("./data/astrofinance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - finance/store.go: Interface definitions
  - finance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Alehcs/AstroFinance/finance"
)

const dayFormat = "2006-01-02"

// dbtx abstracts *sql.DB and *sql.Tx so every query runs against either.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements finance.TxStore using SQLite.
type Store struct {
	db *sql.DB
	q  dbtx // s.db normally; the open *sql.Tx inside WithTx
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to :memory: opens its own empty database;
	// pin the pool to one connection so all callers share it.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, q: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Ledger
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		bank_name TEXT NOT NULL DEFAULT '',
		tx_date TEXT NOT NULL,
		is_recurring BOOLEAN NOT NULL DEFAULT FALSE,
		template_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT ''
	);

	-- Hot paths: owner timeline, month/category sums for budget alerts
	CREATE INDEX IF NOT EXISTS idx_transactions_owner_date
		ON transactions(owner_id, tx_date DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_owner_category_date
		ON transactions(owner_id, category, tx_date);
	CREATE INDEX IF NOT EXISTS idx_transactions_owner_type
		ON transactions(owner_id, tx_type);

	-- Balance aggregate (one row per owner, incremented in place).
	-- Amount columns hold hundredths of a unit as integers.
	CREATE TABLE IF NOT EXISTS balances (
		owner_id TEXT PRIMARY KEY,
		debit_balance INTEGER NOT NULL DEFAULT 0,
		used_credit INTEGER NOT NULL DEFAULT 0,
		last_updated TEXT NOT NULL
	);

	-- Savings goals
	CREATE TABLE IF NOT EXISTS saving_goals (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		goal_name TEXT NOT NULL,
		target_amount TEXT NOT NULL,
		current_amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goals_owner ON saving_goals(owner_id);

	-- Loans
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		loan_name TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		installments INTEGER NOT NULL,
		monthly_payment TEXT NOT NULL,
		remaining_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		next_payment_date TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loans_owner ON loans(owner_id);
	CREATE INDEX IF NOT EXISTS idx_loans_status_due
		ON loans(status, next_payment_date);

	-- Budgets (limits as JSON, keyed by category)
	CREATE TABLE IF NOT EXISTS budgets (
		owner_id TEXT NOT NULL,
		month TEXT NOT NULL,
		limits_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (owner_id, month)
	);

	-- Recurring templates
	CREATE TABLE IF NOT EXISTS recurring_templates (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		day_of_month INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_templates_owner ON recurring_templates(owner_id);
	CREATE INDEX IF NOT EXISTS idx_templates_day ON recurring_templates(day_of_month);

	-- Notifications
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		notif_type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		month TEXT NOT NULL DEFAULT '',
		threshold INTEGER NOT NULL DEFAULT 0,
		loan_id TEXT NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_owner
		ON notifications(owner_id, created_at DESC);
	-- Dedupe guard lookups
	CREATE INDEX IF NOT EXISTS idx_notifications_guard
		ON notifications(owner_id, notif_type, category, month, threshold, is_read);
	CREATE INDEX IF NOT EXISTS idx_notifications_created
		ON notifications(created_at);

	-- Profiles
	CREATE TABLE IF NOT EXISTS profiles (
		owner_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL UNITS (finance.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. All writes fn makes
// commit together or not at all.
func (s *Store) WithTx(ctx context.Context, fn func(finance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", finance.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", finance.ErrStoreUnavailable, err)
	}
	return nil
}

// inTx reports whether this Store is the derived view handed to a WithTx
// callback. The parent holds the write lock for the whole unit, so derived
// views skip locking entirely.
func (s *Store) inTx() bool {
	_, ok := s.q.(*sql.Tx)
	return ok
}

func (s *Store) lock() func() {
	if s.inTx() {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) rlock() func() {
	if s.inTx() {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// =============================================================================
// TRANSACTIONS (ledger)
// =============================================================================

func (s *Store) InsertTransaction(ctx context.Context, tx finance.Transaction) error {
	defer s.lock()()

	query := `
		INSERT INTO transactions
		(id, owner_id, tx_type, amount, description, category, payment_method,
		 bank_name, tx_date, is_recurring, template_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, query,
		tx.ID,
		tx.OwnerID,
		tx.Type,
		tx.Amount.String(),
		tx.Description,
		tx.Category,
		tx.PaymentMethod,
		tx.BankName,
		tx.Date.Format(dayFormat),
		tx.IsRecurring,
		tx.TemplateID,
		createdAt.Format(time.RFC3339),
		"",
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return finance.ErrConflict
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx finance.Transaction) error {
	defer s.lock()()

	query := `
		UPDATE transactions
		SET tx_type = ?, amount = ?, description = ?, category = ?,
		    payment_method = ?, bank_name = ?, tx_date = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`

	res, err := s.q.ExecContext(ctx, query,
		tx.Type,
		tx.Amount.String(),
		tx.Description,
		tx.Category,
		tx.PaymentMethod,
		tx.BankName,
		tx.Date.Format(dayFormat),
		time.Now().UTC().Format(time.RFC3339),
		tx.ID,
		tx.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &finance.NotFoundError{Kind: "transaction", ID: string(tx.ID)}
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, owner finance.OwnerID, id finance.TransactionID) error {
	defer s.lock()()

	res, err := s.q.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &finance.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, owner finance.OwnerID, id finance.TransactionID) (*finance.Transaction, error) {
	defer s.rlock()()

	txs, err := s.queryTransactions(ctx,
		selectTransaction+" WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

func (s *Store) TransactionExists(ctx context.Context, id finance.TransactionID) (bool, error) {
	defer s.rlock()()

	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return count > 0, nil
}

func (s *Store) QueryTransactions(ctx context.Context, owner finance.OwnerID, f finance.TransactionFilter) ([]finance.Transaction, error) {
	defer s.rlock()()

	query := selectTransaction + " WHERE owner_id = ?"
	args := []any{owner}

	if f.Type != nil {
		query += " AND tx_type = ?"
		args = append(args, *f.Type)
	}
	if f.Category != nil {
		query += " AND category = ?"
		args = append(args, *f.Category)
	}
	if f.From != nil {
		query += " AND tx_date >= ?"
		args = append(args, f.From.Format(dayFormat))
	}
	if f.To != nil {
		query += " AND tx_date <= ?"
		args = append(args, f.To.Format(dayFormat))
	}
	query += " ORDER BY tx_date ASC, created_at ASC"

	return s.queryTransactions(ctx, query, args...)
}

func (s *Store) SumExpenses(ctx context.Context, owner finance.OwnerID, category string, from, to time.Time) (finance.Money, error) {
	defer s.rlock()()

	query := `
		SELECT amount FROM transactions
		WHERE owner_id = ? AND tx_type = ? AND category = ?
		  AND tx_date >= ? AND tx_date <= ?
	`
	rows, err := s.q.QueryContext(ctx, query, owner, finance.TxExpense, category,
		from.Format(dayFormat), to.Format(dayFormat))
	if err != nil {
		return finance.Zero(), fmt.Errorf("failed to sum expenses: %w", err)
	}
	defer rows.Close()

	// Amounts are stored as decimal strings; sum in decimal, not SQL.
	total := finance.Zero()
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return finance.Zero(), err
		}
		total = total.Add(finance.MustParseMoney(amount))
	}
	return total, rows.Err()
}

const selectTransaction = `
	SELECT id, owner_id, tx_type, amount, description, category, payment_method,
	       bank_name, tx_date, is_recurring, template_id, created_at, updated_at
	FROM transactions`

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]finance.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []finance.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(rows *sql.Rows) (finance.Transaction, error) {
	var (
		tx        finance.Transaction
		amount    string
		txDate    string
		createdAt string
		updatedAt string
	)

	err := rows.Scan(
		&tx.ID, &tx.OwnerID, &tx.Type, &amount, &tx.Description, &tx.Category,
		&tx.PaymentMethod, &tx.BankName, &txDate, &tx.IsRecurring, &tx.TemplateID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount = finance.MustParseMoney(amount)
	tx.Date, _ = time.Parse(dayFormat, txDate)
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if updatedAt != "" {
		tx.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	}
	return tx, nil
}

// =============================================================================
// BALANCE AGGREGATE
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, owner finance.OwnerID) (finance.BalanceAggregate, error) {
	defer s.rlock()()

	b := finance.BalanceAggregate{
		OwnerID:      owner,
		DebitBalance: finance.Zero(),
		UsedCredit:   finance.Zero(),
	}

	var debit, credit int64
	var lastUpdated string
	err := s.q.QueryRowContext(ctx,
		"SELECT debit_balance, used_credit, last_updated FROM balances WHERE owner_id = ?",
		owner,
	).Scan(&debit, &credit, &lastUpdated)

	if err == sql.ErrNoRows {
		// Row is created lazily on first write; zero defaults until then.
		return b, nil
	}
	if err != nil {
		return b, fmt.Errorf("failed to get balance: %w", err)
	}

	b.DebitBalance = fromMinor(debit)
	b.UsedCredit = fromMinor(credit)
	b.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	return b, nil
}

// The balance columns hold hundredths of a unit as INTEGER so the clamped
// increments compose on exact int64 arithmetic. Sub-hundredth residue in a
// delta rounds half away from zero, matching decimal.Round.
func toMinor(m finance.Money) int64 {
	return m.Value.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinor(v int64) finance.Money {
	return finance.FromDecimal(decimal.New(v, -2))
}

// ApplyBalanceDelta increments the aggregate in place with zero clamping.
// No read-modify-write: concurrent deltas compose instead of racing.
func (s *Store) ApplyBalanceDelta(ctx context.Context, owner finance.OwnerID, d finance.Delta) error {
	defer s.lock()()

	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO balances (owner_id, debit_balance, used_credit, last_updated)
		 VALUES (?, 0, 0, ?)
		 ON CONFLICT(owner_id) DO NOTHING`,
		owner, now)
	if err != nil {
		return fmt.Errorf("failed to ensure balance row: %w", err)
	}

	_, err = s.q.ExecContext(ctx,
		`UPDATE balances
		 SET debit_balance = MAX(0, debit_balance + ?),
		     used_credit = MAX(0, used_credit + ?),
		     last_updated = ?
		 WHERE owner_id = ?`,
		toMinor(d.Debit), toMinor(d.Credit), now, owner)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}
	return nil
}

func (s *Store) SetBalance(ctx context.Context, b finance.BalanceAggregate) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO balances (owner_id, debit_balance, used_credit, last_updated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
		 	debit_balance = excluded.debit_balance,
		 	used_credit = excluded.used_credit,
		 	last_updated = excluded.last_updated`,
		b.OwnerID, toMinor(b.DebitBalance), toMinor(b.UsedCredit),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

func (s *Store) DeleteBalance(ctx context.Context, owner finance.OwnerID) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, "DELETE FROM balances WHERE owner_id = ?", owner)
	if err != nil {
		return fmt.Errorf("failed to delete balance: %w", err)
	}
	return nil
}

// =============================================================================
// SAVINGS GOALS
// =============================================================================

func (s *Store) SaveGoal(ctx context.Context, g finance.SavingsGoal) error {
	defer s.lock()()

	query := `
		INSERT INTO saving_goals (id, owner_id, goal_name, target_amount, current_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			goal_name = excluded.goal_name,
			target_amount = excluded.target_amount,
			current_amount = excluded.current_amount
	`

	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, query,
		g.ID, g.OwnerID, g.GoalName,
		g.TargetAmount.String(), g.CurrentAmount.String(),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

func (s *Store) GetGoal(ctx context.Context, owner finance.OwnerID, id finance.GoalID) (*finance.SavingsGoal, error) {
	defer s.rlock()()

	var g finance.SavingsGoal
	var target, current, createdAt string

	err := s.q.QueryRowContext(ctx,
		`SELECT id, owner_id, goal_name, target_amount, current_amount, created_at
		 FROM saving_goals WHERE id = ? AND owner_id = ?`,
		id, owner,
	).Scan(&g.ID, &g.OwnerID, &g.GoalName, &target, &current, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}

	g.TargetAmount = finance.MustParseMoney(target)
	g.CurrentAmount = finance.MustParseMoney(current)
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &g, nil
}

func (s *Store) ListGoals(ctx context.Context, owner finance.OwnerID) ([]finance.SavingsGoal, error) {
	defer s.rlock()()

	rows, err := s.q.QueryContext(ctx,
		`SELECT id, owner_id, goal_name, target_amount, current_amount, created_at
		 FROM saving_goals WHERE owner_id = ? ORDER BY created_at ASC, id ASC`,
		owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []finance.SavingsGoal
	for rows.Next() {
		var g finance.SavingsGoal
		var target, current, createdAt string
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.GoalName, &target, &current, &createdAt); err != nil {
			return nil, err
		}
		g.TargetAmount = finance.MustParseMoney(target)
		g.CurrentAmount = finance.MustParseMoney(current)
		g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (s *Store) DeleteGoal(ctx context.Context, owner finance.OwnerID, id finance.GoalID) error {
	defer s.lock()()

	res, err := s.q.ExecContext(ctx,
		"DELETE FROM saving_goals WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &finance.NotFoundError{Kind: "goal", ID: string(id)}
	}
	return nil
}

// =============================================================================
// LOANS
// =============================================================================

func (s *Store) SaveLoan(ctx context.Context, l finance.Loan) error {
	defer s.lock()()

	query := `
		INSERT INTO loans (id, owner_id, loan_name, total_amount, installments,
			monthly_payment, remaining_amount, status, next_payment_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			loan_name = excluded.loan_name,
			remaining_amount = excluded.remaining_amount,
			status = excluded.status,
			next_payment_date = excluded.next_payment_date
	`

	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	nextPayment := ""
	if !l.NextPaymentDate.IsZero() {
		nextPayment = l.NextPaymentDate.Format(dayFormat)
	}

	_, err := s.q.ExecContext(ctx, query,
		l.ID, l.OwnerID, l.LoanName,
		l.TotalAmount.String(), l.Installments,
		l.MonthlyPayment.String(), l.RemainingAmount.String(),
		l.Status, nextPayment,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save loan: %w", err)
	}
	return nil
}

const selectLoan = `
	SELECT id, owner_id, loan_name, total_amount, installments, monthly_payment,
	       remaining_amount, status, next_payment_date, created_at
	FROM loans`

func (s *Store) GetLoan(ctx context.Context, owner finance.OwnerID, id finance.LoanID) (*finance.Loan, error) {
	defer s.rlock()()

	loans, err := s.queryLoans(ctx, selectLoan+" WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, nil
	}
	return &loans[0], nil
}

func (s *Store) ListLoans(ctx context.Context, owner finance.OwnerID) ([]finance.Loan, error) {
	defer s.rlock()()

	return s.queryLoans(ctx, selectLoan+" WHERE owner_id = ? ORDER BY created_at ASC, id ASC", owner)
}

func (s *Store) ListLoansDue(ctx context.Context, day time.Time) ([]finance.Loan, error) {
	defer s.rlock()()

	return s.queryLoans(ctx,
		selectLoan+" WHERE status = ? AND next_payment_date = ? ORDER BY id ASC",
		finance.LoanActive, day.Format(dayFormat))
}

func (s *Store) queryLoans(ctx context.Context, query string, args ...any) ([]finance.Loan, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []finance.Loan
	for rows.Next() {
		var l finance.Loan
		var total, monthly, remaining, nextPayment, createdAt string
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.LoanName, &total, &l.Installments,
			&monthly, &remaining, &l.Status, &nextPayment, &createdAt); err != nil {
			return nil, err
		}
		l.TotalAmount = finance.MustParseMoney(total)
		l.MonthlyPayment = finance.MustParseMoney(monthly)
		l.RemainingAmount = finance.MustParseMoney(remaining)
		if nextPayment != "" {
			l.NextPaymentDate, _ = time.Parse(dayFormat, nextPayment)
		}
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (s *Store) DeleteLoan(ctx context.Context, owner finance.OwnerID, id finance.LoanID) error {
	defer s.lock()()

	res, err := s.q.ExecContext(ctx,
		"DELETE FROM loans WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &finance.NotFoundError{Kind: "loan", ID: string(id)}
	}
	return nil
}

// =============================================================================
// BUDGETS
// =============================================================================

func (s *Store) SaveBudget(ctx context.Context, b finance.Budget) error {
	defer s.lock()()

	limits := make(map[string]string, len(b.Limits))
	for category, limit := range b.Limits {
		limits[category] = limit.String()
	}
	limitsJSON, err := json.Marshal(limits)
	if err != nil {
		return fmt.Errorf("failed to encode budget limits: %w", err)
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO budgets (owner_id, month, limits_json, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id, month) DO UPDATE SET
		 	limits_json = excluded.limits_json,
		 	updated_at = excluded.updated_at`,
		b.OwnerID, b.Month, string(limitsJSON),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}

func (s *Store) GetBudget(ctx context.Context, owner finance.OwnerID, month string) (*finance.Budget, error) {
	defer s.rlock()()

	var limitsJSON, updatedAt string
	err := s.q.QueryRowContext(ctx,
		"SELECT limits_json, updated_at FROM budgets WHERE owner_id = ? AND month = ?",
		owner, month,
	).Scan(&limitsJSON, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(limitsJSON), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode budget limits: %w", err)
	}
	limits := make(map[string]finance.Money, len(raw))
	for category, limit := range raw {
		limits[category] = finance.MustParseMoney(limit)
	}

	b := finance.Budget{OwnerID: owner, Month: month, Limits: limits}
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

// =============================================================================
// RECURRING TEMPLATES
// =============================================================================

func (s *Store) SaveTemplate(ctx context.Context, t finance.RecurringTemplate) error {
	defer s.lock()()

	query := `
		INSERT INTO recurring_templates
		(id, owner_id, tx_type, amount, description, category, payment_method, day_of_month, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			description = excluded.description,
			category = excluded.category,
			payment_method = excluded.payment_method,
			day_of_month = excluded.day_of_month
	`

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, query,
		t.ID, t.OwnerID, t.Type, t.Amount.String(),
		t.Description, t.Category, t.PaymentMethod, t.DayOfMonth,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

const selectTemplate = `
	SELECT id, owner_id, tx_type, amount, description, category, payment_method, day_of_month, created_at
	FROM recurring_templates`

func (s *Store) GetTemplate(ctx context.Context, owner finance.OwnerID, id finance.TemplateID) (*finance.RecurringTemplate, error) {
	defer s.rlock()()

	templates, err := s.queryTemplates(ctx, selectTemplate+" WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, nil
	}
	return &templates[0], nil
}

func (s *Store) ListTemplates(ctx context.Context, owner finance.OwnerID) ([]finance.RecurringTemplate, error) {
	defer s.rlock()()

	return s.queryTemplates(ctx, selectTemplate+" WHERE owner_id = ? ORDER BY id ASC", owner)
}

func (s *Store) ListTemplatesForDay(ctx context.Context, dayOfMonth int) ([]finance.RecurringTemplate, error) {
	defer s.rlock()()

	return s.queryTemplates(ctx, selectTemplate+" WHERE day_of_month = ? ORDER BY id ASC", dayOfMonth)
}

func (s *Store) queryTemplates(ctx context.Context, query string, args ...any) ([]finance.RecurringTemplate, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []finance.RecurringTemplate
	for rows.Next() {
		var t finance.RecurringTemplate
		var amount, createdAt string
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Type, &amount, &t.Description,
			&t.Category, &t.PaymentMethod, &t.DayOfMonth, &createdAt); err != nil {
			return nil, err
		}
		t.Amount = finance.MustParseMoney(amount)
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *Store) DeleteTemplate(ctx context.Context, owner finance.OwnerID, id finance.TemplateID) error {
	defer s.lock()()

	res, err := s.q.ExecContext(ctx,
		"DELETE FROM recurring_templates WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &finance.NotFoundError{Kind: "template", ID: string(id)}
	}
	return nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (s *Store) InsertNotification(ctx context.Context, n finance.Notification) error {
	defer s.lock()()

	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO notifications
		 (id, owner_id, notif_type, title, message, category, month, threshold, loan_id, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.OwnerID, n.Type, n.Title, n.Message,
		n.Category, n.Month, n.Threshold, n.LoanID, n.IsRead,
		createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, owner finance.OwnerID) ([]finance.Notification, error) {
	defer s.rlock()()

	rows, err := s.q.QueryContext(ctx,
		`SELECT id, owner_id, notif_type, title, message, category, month, threshold, loan_id, is_read, created_at
		 FROM notifications WHERE owner_id = ? ORDER BY created_at DESC, id ASC`,
		owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []finance.Notification
	for rows.Next() {
		var n finance.Notification
		var createdAt string
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Type, &n.Title, &n.Message,
			&n.Category, &n.Month, &n.Threshold, &n.LoanID, &n.IsRead, &createdAt); err != nil {
			return nil, err
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, owner finance.OwnerID, id finance.NotificationID) error {
	defer s.lock()()

	res, err := s.q.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &finance.NotFoundError{Kind: "notification", ID: string(id)}
	}
	return nil
}

func (s *Store) HasUnreadNotification(ctx context.Context, key finance.NotificationKey) (bool, error) {
	defer s.rlock()()

	query := "SELECT COUNT(*) FROM notifications WHERE owner_id = ? AND notif_type = ? AND is_read = FALSE"
	args := []any{key.OwnerID, key.Type}

	switch key.Type {
	case finance.NotifyBudgetAlert:
		query += " AND category = ? AND month = ? AND threshold = ?"
		args = append(args, key.Category, key.Month, key.Threshold)
	case finance.NotifyLoanReminder:
		query += " AND loan_id = ?"
		args = append(args, key.LoanID)
	}

	var count int
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	return count > 0, nil
}

func (s *Store) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	defer s.lock()()

	res, err := s.q.ExecContext(ctx,
		`DELETE FROM notifications WHERE id IN (
			SELECT id FROM notifications WHERE created_at < ? LIMIT ?
		 )`,
		cutoff.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// PROFILES
// =============================================================================

func (s *Store) SaveProfile(ctx context.Context, p finance.Profile) error {
	defer s.lock()()

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO profiles (owner_id, name, email, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
		 	name = excluded.name,
		 	email = excluded.email`,
		p.OwnerID, p.Name, p.Email, createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, owner finance.OwnerID) (*finance.Profile, error) {
	defer s.rlock()()

	var p finance.Profile
	var createdAt string
	err := s.q.QueryRowContext(ctx,
		"SELECT owner_id, name, email, created_at FROM profiles WHERE owner_id = ?",
		owner,
	).Scan(&p.OwnerID, &p.Name, &p.Email, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func (s *Store) DeleteProfile(ctx context.Context, owner finance.OwnerID) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, "DELETE FROM profiles WHERE owner_id = ?", owner)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// =============================================================================
// RESET SUPPORT
// =============================================================================

var resetTables = map[string]string{
	finance.ColTransactions:  "transactions",
	finance.ColGoals:         "saving_goals",
	finance.ColLoans:         "loans",
	finance.ColBudgets:       "budgets",
	finance.ColTemplates:     "recurring_templates",
	finance.ColNotifications: "notifications",
}

// DeleteOwnerDocs removes up to limit rows owned by owner from the named
// collection. Each call is one batch; callers loop until zero is returned.
func (s *Store) DeleteOwnerDocs(ctx context.Context, collection string, owner finance.OwnerID, limit int) (int, error) {
	defer s.lock()()

	table, ok := resetTables[collection]
	if !ok {
		return 0, fmt.Errorf("unknown collection: %s", collection)
	}

	// budgets has a composite key; everything else deletes by id.
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE rowid IN (
			SELECT rowid FROM %s WHERE owner_id = ? LIMIT ?
		 )`, table, table)

	res, err := s.q.ExecContext(ctx, query, owner, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
