/*
Package ledger implements transaction writes with balance consistency.

PURPOSE:
  Every ledger mutation (create, edit, delete) must leave the owner's
  BalanceAggregate consistent with the transaction history. This package
  is the only writer of plain transactions; the goal/loan composites reuse
  it so that all paths share one code path for the write + delta pair.

CONSISTENCY MODEL:
  The ledger is the source of truth. The aggregate is a derived cache
  updated incrementally inside the same atomic unit as the ledger write:

    Create: insert tx       + ApplyBalanceDelta(DeltaFor(tx))
    Edit:   update tx       + ApplyBalanceDelta(reversal ∘ reapply)
    Delete: delete tx       + ApplyBalanceDelta(reversal)

  Edits apply the reversal and the reapplication as ONE combined delta.
  Applying them as two separate steps would expose an intermediate state
  and clamp twice.

RECOVERY:
  Recompute rebuilds the aggregate from the full transaction history and
  overwrites the stored row. It exists for drift repair and is not part of
  any normal write path.

SEE ALSO:
  - finance/delta.go: The delta rule
  - savings/, loans/: Composites that write synthetic transactions here
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Alehcs/AstroFinance/finance"
)

// Service coordinates ledger writes and aggregate deltas.
type Service struct {
	store finance.TxStore
	now   func() time.Time
}

func New(store finance.TxStore) *Service {
	return &Service{store: store, now: time.Now}
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries the caller-supplied fields for a new transaction.
type CreateInput struct {
	Type          finance.TransactionType
	Amount        finance.Money
	Description   string
	Category      string
	PaymentMethod finance.PaymentMethod
	BankName      string
	Date          time.Time
}

// Create validates the input, then inserts the transaction and applies its
// balance delta in one atomic unit.
func (s *Service) Create(ctx context.Context, owner finance.OwnerID, in CreateInput) (*finance.Transaction, error) {
	tx := finance.Transaction{
		ID:            finance.TransactionID(uuid.NewString()),
		OwnerID:       owner,
		Type:          in.Type,
		Amount:        in.Amount,
		Description:   strings.TrimSpace(in.Description),
		Category:      in.Category,
		PaymentMethod: in.PaymentMethod,
		BankName:      in.BankName,
		Date:          in.Date,
		CreatedAt:     s.now().UTC(),
	}
	return s.CreateExact(ctx, tx)
}

// CreateExact inserts a fully-formed transaction (the id already chosen)
// together with its balance delta. The recurring processor and the
// goal/loan composites use this to control ids and flags.
func (s *Service) CreateExact(ctx context.Context, tx finance.Transaction) (*finance.Transaction, error) {
	if err := finance.ValidateTransaction(tx, s.now()); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(st finance.Store) error {
		return ApplyCreate(ctx, st, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return &tx, nil
}

// ApplyCreate inserts tx and applies its balance delta using st. Callers
// already inside an atomic unit (the goal/loan composites) use this so the
// synthetic transaction commits together with their entity update.
func ApplyCreate(ctx context.Context, st finance.Store, tx finance.Transaction) error {
	if err := st.InsertTransaction(ctx, tx); err != nil {
		return err
	}
	return st.ApplyBalanceDelta(ctx, tx.OwnerID, finance.MutationDelta(nil, &tx))
}

// =============================================================================
// EDIT
// =============================================================================

// Edit replaces the mutable fields of an existing transaction. The aggregate
// receives the reversal of the old version combined with the effect of the
// new version, as a single delta.
func (s *Service) Edit(ctx context.Context, owner finance.OwnerID, id finance.TransactionID, in CreateInput) (*finance.Transaction, error) {
	next := finance.Transaction{
		ID:            id,
		OwnerID:       owner,
		Type:          in.Type,
		Amount:        in.Amount,
		Description:   strings.TrimSpace(in.Description),
		Category:      in.Category,
		PaymentMethod: in.PaymentMethod,
		BankName:      in.BankName,
		Date:          in.Date,
	}
	if err := finance.ValidateTransaction(next, s.now()); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(st finance.Store) error {
		previous, err := st.GetTransaction(ctx, owner, id)
		if err != nil {
			return err
		}
		if previous == nil {
			return &finance.NotFoundError{Kind: "transaction", ID: string(id)}
		}

		// Recurring provenance survives edits.
		next.IsRecurring = previous.IsRecurring
		next.TemplateID = previous.TemplateID
		next.CreatedAt = previous.CreatedAt
		next.UpdatedAt = s.now().UTC()

		if err := st.UpdateTransaction(ctx, next); err != nil {
			return err
		}
		return st.ApplyBalanceDelta(ctx, owner, finance.MutationDelta(previous, &next))
	})
	if err != nil {
		return nil, fmt.Errorf("edit transaction: %w", err)
	}
	return &next, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a transaction and reverses its effect on the aggregate.
func (s *Service) Delete(ctx context.Context, owner finance.OwnerID, id finance.TransactionID) error {
	err := s.store.WithTx(ctx, func(st finance.Store) error {
		previous, err := st.GetTransaction(ctx, owner, id)
		if err != nil {
			return err
		}
		if previous == nil {
			return &finance.NotFoundError{Kind: "transaction", ID: string(id)}
		}
		if err := st.DeleteTransaction(ctx, owner, id); err != nil {
			return err
		}
		return st.ApplyBalanceDelta(ctx, owner, finance.MutationDelta(previous, nil))
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) Get(ctx context.Context, owner finance.OwnerID, id finance.TransactionID) (*finance.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, &finance.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	return tx, nil
}

func (s *Service) List(ctx context.Context, owner finance.OwnerID, f finance.TransactionFilter) ([]finance.Transaction, error) {
	return s.store.QueryTransactions(ctx, owner, f)
}

func (s *Service) Balance(ctx context.Context, owner finance.OwnerID) (finance.BalanceAggregate, error) {
	return s.store.GetBalance(ctx, owner)
}

// =============================================================================
// RECOVERY
// =============================================================================

// Recompute rebuilds the owner's aggregate from the full transaction
// history and overwrites the stored row. New transactions committed while
// the fold runs are excluded; this is a repair tool, not a read path.
func (s *Service) Recompute(ctx context.Context, owner finance.OwnerID) (finance.BalanceAggregate, error) {
	var result finance.BalanceAggregate

	err := s.store.WithTx(ctx, func(st finance.Store) error {
		txs, err := st.QueryTransactions(ctx, owner, finance.TransactionFilter{})
		if err != nil {
			return err
		}

		b := finance.BalanceAggregate{
			OwnerID:      owner,
			DebitBalance: finance.Zero(),
			UsedCredit:   finance.Zero(),
		}
		for _, tx := range txs {
			b = finance.DeltaFor(tx).Apply(b)
		}
		b.LastUpdated = s.now().UTC()

		if err := st.SetBalance(ctx, b); err != nil {
			return err
		}
		result = b
		return nil
	})
	if err != nil {
		return finance.BalanceAggregate{}, fmt.Errorf("recompute balance: %w", err)
	}
	return result, nil
}
