/*
delta.go - Balance Update Engine

PURPOSE:
  Computes the signed delta to apply to an owner's BalanceAggregate for a
  given transaction mutation. This is the only place in the system that
  knows how a transaction moves money between the debit balance and used
  credit; every mutation path (user actions, goal/loan composites, the
  recurring processor) routes through it.

THE ONE RULE:
  income                    -> debit += amount
  expense, paid by credit   -> credit += amount
  expense, debit or cash    -> debit -= amount

  Loan payments and goal contributions create ordinary expense transactions
  with PaymentMethod Débito, so the same rule covers them. There is no
  direct-field special case anywhere.

MUTATIONS:
  Create: apply DeltaFor(next)
  Delete: apply DeltaFor(previous).Reversal()
  Edit:   apply DeltaFor(previous).Reversal().Combine(DeltaFor(next))
          as ONE combined delta, never two separate steps

CLAMPING:
  Both aggregate fields floor at zero. A delta that would drive a field
  negative is absorbed silently; writes never fail for insufficient balance
  on the plain transaction path.

SEE ALSO:
  - ledger/service.go: Applies deltas together with ledger writes in one
    atomic unit
  - store.go: ApplyBalanceDelta contract (server-side clamped increments)
*/
package finance

// =============================================================================
// DELTA - Signed change to {DebitBalance, UsedCredit}
// =============================================================================

type Delta struct {
	Debit  Money
	Credit Money
}

func ZeroDelta() Delta { return Delta{Debit: Zero(), Credit: Zero()} }

func (d Delta) IsZero() bool { return d.Debit.IsZero() && d.Credit.IsZero() }

// Reversal returns the delta that undoes d exactly (modulo clamping).
func (d Delta) Reversal() Delta {
	return Delta{Debit: d.Debit.Neg(), Credit: d.Credit.Neg()}
}

// Combine sums two deltas into one. Edit = old.Reversal().Combine(new),
// applied as a single unit.
func (d Delta) Combine(other Delta) Delta {
	return Delta{Debit: d.Debit.Add(other.Debit), Credit: d.Credit.Add(other.Credit)}
}

// DeltaFor computes the aggregate effect of one transaction.
func DeltaFor(tx Transaction) Delta {
	d := ZeroDelta()
	switch tx.Type {
	case TxIncome:
		d.Debit = tx.Amount
	case TxExpense:
		if tx.PaymentMethod == PayCredit {
			d.Credit = tx.Amount
		} else {
			d.Debit = tx.Amount.Neg()
		}
	}
	return d
}

// MutationDelta computes the single combined delta for a create, edit, or
// delete. previous/next are nil for create/delete respectively.
func MutationDelta(previous, next *Transaction) Delta {
	d := ZeroDelta()
	if previous != nil {
		d = DeltaFor(*previous).Reversal()
	}
	if next != nil {
		d = d.Combine(DeltaFor(*next))
	}
	return d
}

// Apply returns the aggregate after d, with both fields clamped at zero.
// Pure function; stores implement the same arithmetic server-side so that
// concurrent writers increment rather than read-modify-write.
func (d Delta) Apply(b BalanceAggregate) BalanceAggregate {
	b.DebitBalance = b.DebitBalance.Add(d.Debit).ClampZero()
	b.UsedCredit = b.UsedCredit.Add(d.Credit).ClampZero()
	return b
}
