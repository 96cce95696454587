/*
Package savings implements savings goals and their composite operations.

PURPOSE:
  A goal contribution moves money out of the spendable balance and into a
  goal; a withdrawal moves it back. Both are composites: they write a
  synthetic "Ahorros" transaction through the ledger AND mutate the goal
  record, in one atomic unit. History therefore survives goal deletion,
  and the balance aggregate stays consistent via the same delta rule as
  every other transaction.

BALANCE CHECK:
  Contributions are rejected with ErrInsufficientBalance when the amount
  exceeds the owner's spendable (debit) balance. This is the one place a
  write fails on balance; plain ledger writes clamp instead.

SEE ALSO:
  - ledger.ApplyCreate: The shared write + delta path
  - finance/delta.go: Why a Débito expense/income is all we need here
*/
package savings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alehcs/AstroFinance/finance"
	"github.com/Alehcs/AstroFinance/ledger"
)

// Service coordinates goal mutations with their synthetic transactions.
type Service struct {
	store finance.TxStore
	now   func() time.Time
}

func New(store finance.TxStore) *Service {
	return &Service{store: store, now: time.Now}
}

// =============================================================================
// GOAL CRUD
// =============================================================================

// CreateGoal registers a new goal. The initial amount records savings the
// owner already holds outside the ledger; it is seed state, not a
// contribution, so the balance aggregate is untouched.
func (s *Service) CreateGoal(ctx context.Context, owner finance.OwnerID, name string, target, initial finance.Money) (*finance.SavingsGoal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &finance.ValidationError{Field: "goalName", Message: "required"}
	}
	if !target.IsPositive() {
		return nil, &finance.ValidationError{Field: "targetAmount", Message: "must be greater than 0"}
	}
	if target.GreaterThan(finance.MaxAmount) {
		return nil, &finance.ValidationError{Field: "targetAmount", Message: "exceeds maximum"}
	}
	if initial.IsNegative() {
		return nil, &finance.ValidationError{Field: "initialAmount", Message: "must not be negative"}
	}
	if initial.GreaterThan(target) {
		return nil, &finance.ValidationError{Field: "initialAmount", Message: "exceeds target amount"}
	}

	g := finance.SavingsGoal{
		ID:            finance.GoalID(uuid.NewString()),
		OwnerID:       owner,
		GoalName:      name,
		TargetAmount:  target,
		CurrentAmount: initial,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.SaveGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	return &g, nil
}

// EditGoal renames a goal and/or adjusts its target. The target can never
// drop below what has already been saved.
func (s *Service) EditGoal(ctx context.Context, owner finance.OwnerID, id finance.GoalID, name string, target finance.Money) (*finance.SavingsGoal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &finance.ValidationError{Field: "goalName", Message: "required"}
	}
	if !target.IsPositive() {
		return nil, &finance.ValidationError{Field: "targetAmount", Message: "must be greater than 0"}
	}

	var updated finance.SavingsGoal
	err := s.store.WithTx(ctx, func(st finance.Store) error {
		g, err := st.GetGoal(ctx, owner, id)
		if err != nil {
			return err
		}
		if g == nil {
			return &finance.NotFoundError{Kind: "goal", ID: string(id)}
		}
		if target.LessThan(g.CurrentAmount) {
			return &finance.ValidationError{Field: "targetAmount", Message: "below current saved amount"}
		}
		g.GoalName = name
		g.TargetAmount = target
		if err := st.SaveGoal(ctx, *g); err != nil {
			return err
		}
		updated = *g
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("edit goal: %w", err)
	}
	return &updated, nil
}

func (s *Service) GetGoal(ctx context.Context, owner finance.OwnerID, id finance.GoalID) (*finance.SavingsGoal, error) {
	g, err := s.store.GetGoal(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, &finance.NotFoundError{Kind: "goal", ID: string(id)}
	}
	return g, nil
}

func (s *Service) ListGoals(ctx context.Context, owner finance.OwnerID) ([]finance.SavingsGoal, error) {
	return s.store.ListGoals(ctx, owner)
}

// DeleteGoal removes the goal record. The synthetic transactions it
// produced stay in the ledger, so balances and history are untouched.
func (s *Service) DeleteGoal(ctx context.Context, owner finance.OwnerID, id finance.GoalID) error {
	if err := s.store.DeleteGoal(ctx, owner, id); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// =============================================================================
// CONTRIBUTE / WITHDRAW
// =============================================================================

// Contribute moves amount from the spendable balance into the goal. The
// synthetic expense, the balance delta, and the goal increment commit
// together or not at all.
func (s *Service) Contribute(ctx context.Context, owner finance.OwnerID, id finance.GoalID, amount finance.Money) (*finance.SavingsGoal, error) {
	if !amount.IsPositive() {
		return nil, &finance.ValidationError{Field: "amount", Message: "must be greater than 0"}
	}

	var updated finance.SavingsGoal
	err := s.store.WithTx(ctx, func(st finance.Store) error {
		g, err := st.GetGoal(ctx, owner, id)
		if err != nil {
			return err
		}
		if g == nil {
			return &finance.NotFoundError{Kind: "goal", ID: string(id)}
		}
		if amount.GreaterThan(g.Headroom()) {
			return &finance.ValidationError{Field: "amount", Message: "exceeds goal target"}
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

		tx := s.syntheticTx(owner, finance.TxExpense, amount,
			fmt.Sprintf("Ahorro: %s", g.GoalName))
		if err := ledger.ApplyCreate(ctx, st, tx); err != nil {
			return err
		}

		g.CurrentAmount = g.CurrentAmount.Add(amount)
		if err := st.SaveGoal(ctx, *g); err != nil {
			return err
		}
		updated = *g
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("contribute to goal: %w", err)
	}
	return &updated, nil
}

// Withdraw moves amount back out of the goal into the spendable balance.
func (s *Service) Withdraw(ctx context.Context, owner finance.OwnerID, id finance.GoalID, amount finance.Money) (*finance.SavingsGoal, error) {
	if !amount.IsPositive() {
		return nil, &finance.ValidationError{Field: "amount", Message: "must be greater than 0"}
	}

	var updated finance.SavingsGoal
	err := s.store.WithTx(ctx, func(st finance.Store) error {
		g, err := st.GetGoal(ctx, owner, id)
		if err != nil {
			return err
		}
		if g == nil {
			return &finance.NotFoundError{Kind: "goal", ID: string(id)}
		}
		if amount.GreaterThan(g.CurrentAmount) {
			return &finance.ValidationError{Field: "amount", Message: "exceeds saved amount"}
		}

		tx := s.syntheticTx(owner, finance.TxIncome, amount,
			fmt.Sprintf("Retiro de ahorro: %s", g.GoalName))
		if err := ledger.ApplyCreate(ctx, st, tx); err != nil {
			return err
		}

		g.CurrentAmount = g.CurrentAmount.Sub(amount)
		if err := st.SaveGoal(ctx, *g); err != nil {
			return err
		}
		updated = *g
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("withdraw from goal: %w", err)
	}
	return &updated, nil
}

// syntheticTx builds the ledger entry for a goal movement. Contributions
// are Débito expenses; withdrawals are income. Both route through the same
// delta rule as user transactions.
func (s *Service) syntheticTx(owner finance.OwnerID, txType finance.TransactionType, amount finance.Money, description string) finance.Transaction {
	now := s.now().UTC()
	tx := finance.Transaction{
		ID:          finance.TransactionID(uuid.NewString()),
		OwnerID:     owner,
		Type:        txType,
		Amount:      amount,
		Description: description,
		Category:    finance.CategorySavings,
		Date:        now,
		CreatedAt:   now,
	}
	if txType == finance.TxExpense {
		tx.PaymentMethod = finance.PayDebit
	}
	return tx
}
