package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alehcs/AstroFinance/finance"
	"github.com/Alehcs/AstroFinance/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func tx(id finance.TransactionID, owner finance.OwnerID) finance.Transaction {
	return finance.Transaction{
		ID:            id,
		OwnerID:       owner,
		Type:          finance.TxExpense,
		Amount:        finance.NewMoneyFromInt(1000),
		Description:   "Compra supermercado",
		Category:      "Comida",
		PaymentMethod: finance.PayDebit,
		Date:          time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		CreatedAt:     time.Now().UTC(),
	}
}

// =============================================================================
// TRANSACTIONAL UNITS
// =============================================================================

func TestWithTx_ErrorRollsBackAllWrites(t *testing.T) {
	// GIVEN: A store with one transaction
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertTransaction(ctx, tx("tx-1", "owner-1")))

	// WHEN: A unit writes and then fails
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(st finance.Store) error {
		if err := st.InsertTransaction(ctx, tx("tx-2", "owner-1")); err != nil {
			return err
		}
		if err := st.DeleteTransaction(ctx, "owner-1", "tx-1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN: Neither the insert nor the delete is visible
	txs, qerr := s.QueryTransactions(ctx, "owner-1", finance.TransactionFilter{})
	require.NoError(t, qerr)
	require.Len(t, txs, 1)
	assert.Equal(t, finance.TransactionID("tx-1"), txs[0].ID)
}

func TestWithTx_SuccessCommitsAllWrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(st finance.Store) error {
		if err := st.InsertTransaction(ctx, tx("tx-1", "owner-1")); err != nil {
			return err
		}
		return st.ApplyBalanceDelta(ctx, "owner-1",
			finance.Delta{Debit: finance.NewMoneyFromInt(-1000), Credit: finance.Zero()})
	})
	require.NoError(t, err)

	txs, err := s.QueryTransactions(ctx, "owner-1", finance.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

// =============================================================================
// BALANCE AGGREGATE
// =============================================================================

func TestApplyBalanceDelta_ClampsAtZero(t *testing.T) {
	// GIVEN: An empty aggregate
	s := newStore(t)
	ctx := context.Background()

	// WHEN: Applying a negative delta
	require.NoError(t, s.ApplyBalanceDelta(ctx, "owner-1",
		finance.Delta{Debit: finance.NewMoneyFromInt(-5000), Credit: finance.Zero()}))

	// THEN: The balance floors at zero instead of going negative
	b, err := s.GetBalance(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, b.DebitBalance.IsZero())
	assert.True(t, b.UsedCredit.IsZero())
}

func TestApplyBalanceDelta_FractionalAmountsStayExact(t *testing.T) {
	// GIVEN: Three 0.1 increments, the classic float drift case
	s := newStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.ApplyBalanceDelta(ctx, "owner-1",
			finance.Delta{Debit: finance.NewMoney(0.1), Credit: finance.Zero()}))
	}

	// THEN: The stored aggregate is exactly 0.3
	b, err := s.GetBalance(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, b.DebitBalance.Equal(finance.NewMoney(0.3)),
		"got %s", b.DebitBalance)
}

func TestSetBalance_OverwritesAggregate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.ApplyBalanceDelta(ctx, "owner-1",
		finance.Delta{Debit: finance.NewMoneyFromInt(1000), Credit: finance.Zero()}))

	require.NoError(t, s.SetBalance(ctx, finance.BalanceAggregate{
		OwnerID:      "owner-1",
		DebitBalance: finance.NewMoneyFromInt(70000),
		UsedCredit:   finance.NewMoneyFromInt(2500),
	}))

	b, err := s.GetBalance(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, b.DebitBalance.Equal(finance.NewMoneyFromInt(70000)))
	assert.True(t, b.UsedCredit.Equal(finance.NewMoneyFromInt(2500)))
}

// =============================================================================
// LEDGER
// =============================================================================

func TestInsertTransaction_DuplicateIDConflicts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertTransaction(ctx, tx("tx-1", "owner-1")))

	err := s.InsertTransaction(ctx, tx("tx-1", "owner-1"))
	assert.ErrorIs(t, err, finance.ErrConflict)
}

func TestGetTransaction_ForeignOwnerSeesNothing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertTransaction(ctx, tx("tx-1", "owner-1")))

	got, err := s.GetTransaction(ctx, "owner-2", "tx-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSumExpenses_FiltersCategoryAndRange(t *testing.T) {
	// GIVEN: Expenses across categories and months, with fractional amounts
	s := newStore(t)
	ctx := context.Background()

	in := tx("tx-1", "owner-1")
	in.Amount = finance.NewMoney(10.5)
	require.NoError(t, s.InsertTransaction(ctx, in))

	in = tx("tx-2", "owner-1")
	in.Amount = finance.NewMoney(20.25)
	in.Date = time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertTransaction(ctx, in))

	in = tx("tx-3", "owner-1")
	in.Category = "Transporte"
	require.NoError(t, s.InsertTransaction(ctx, in))

	in = tx("tx-4", "owner-1")
	in.Date = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertTransaction(ctx, in))

	// WHEN: Summing Comida for May
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)
	sum, err := s.SumExpenses(ctx, "owner-1", "Comida", from, to)
	require.NoError(t, err)

	// THEN: Only the two in-range Comida rows count, to the cent
	assert.True(t, sum.Equal(finance.NewMoney(30.75)), "got %s", sum)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestUnreadNotificationGuard_ReleasedOnRead(t *testing.T) {
	// GIVEN: An unread budget alert
	s := newStore(t)
	ctx := context.Background()
	key := finance.NotificationKey{
		OwnerID:   "owner-1",
		Type:      finance.NotifyBudgetAlert,
		Category:  "Comida",
		Month:     "2026-05",
		Threshold: 90,
	}
	require.NoError(t, s.InsertNotification(ctx, finance.Notification{
		ID:        "n-1",
		OwnerID:   "owner-1",
		Type:      finance.NotifyBudgetAlert,
		Title:     "Presupuesto casi agotado",
		Message:   "x",
		Category:  "Comida",
		Month:     "2026-05",
		Threshold: 90,
		CreatedAt: time.Now().UTC(),
	}))

	// THEN: The guard holds until the alert is read
	unread, err := s.HasUnreadNotification(ctx, key)
	require.NoError(t, err)
	assert.True(t, unread)

	require.NoError(t, s.MarkNotificationRead(ctx, "owner-1", "n-1"))

	unread, err = s.HasUnreadNotification(ctx, key)
	require.NoError(t, err)
	assert.False(t, unread)
}

// =============================================================================
// BUDGETS
// =============================================================================

func TestBudgetLimits_RoundTripExactly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBudget(ctx, finance.Budget{
		OwnerID: "owner-1",
		Month:   "2026-05",
		Limits: map[string]finance.Money{
			"Comida":     finance.NewMoney(100000.55),
			"Transporte": finance.NewMoneyFromInt(30000),
		},
	}))

	b, err := s.GetBudget(ctx, "owner-1", "2026-05")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.Limits["Comida"].Equal(finance.NewMoney(100000.55)))
	assert.True(t, b.Limits["Transporte"].Equal(finance.NewMoneyFromInt(30000)))
}

// =============================================================================
// LOANS
// =============================================================================

func TestListLoansDue_MatchesCalendarDay(t *testing.T) {
	// GIVEN: Loans due on different days
	s := newStore(t)
	ctx := context.Background()
	due := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)

	loan := finance.Loan{
		ID:              "loan-1",
		OwnerID:         "owner-1",
		LoanName:        "Moto",
		TotalAmount:     finance.NewMoneyFromInt(60000),
		Installments:    6,
		MonthlyPayment:  finance.NewMoneyFromInt(10000),
		RemainingAmount: finance.NewMoneyFromInt(60000),
		Status:          finance.LoanActive,
		NextPaymentDate: due,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.SaveLoan(ctx, loan))

	loan.ID = "loan-2"
	loan.NextPaymentDate = due.AddDate(0, 0, 5)
	require.NoError(t, s.SaveLoan(ctx, loan))

	// WHEN: Asking for loans due on the 15th, at an arbitrary hour
	list, err := s.ListLoansDue(ctx, due.Add(9*time.Hour))
	require.NoError(t, err)

	// THEN: Only the matching loan comes back
	require.Len(t, list, 1)
	assert.Equal(t, finance.LoanID("loan-1"), list[0].ID)
}

// =============================================================================
// RESET SUPPORT
// =============================================================================

func TestDeleteOwnerDocs_BatchesAndScopesToOwner(t *testing.T) {
	// GIVEN: Three rows for owner-1, one for owner-2
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertTransaction(ctx, tx("tx-1", "owner-1")))
	require.NoError(t, s.InsertTransaction(ctx, tx("tx-2", "owner-1")))
	require.NoError(t, s.InsertTransaction(ctx, tx("tx-3", "owner-1")))
	require.NoError(t, s.InsertTransaction(ctx, tx("tx-4", "owner-2")))

	// WHEN: Deleting in batches of two
	n, err := s.DeleteOwnerDocs(ctx, finance.ColTransactions, "owner-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteOwnerDocs(ctx, finance.ColTransactions, "owner-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.DeleteOwnerDocs(ctx, finance.ColTransactions, "owner-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// THEN: owner-2's row survives
	txs, err := s.QueryTransactions(ctx, "owner-2", finance.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}
