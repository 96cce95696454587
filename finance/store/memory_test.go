package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alehcs/AstroFinance/finance"
	"github.com/Alehcs/AstroFinance/finance/store"
)

func tx(id finance.TransactionID, owner finance.OwnerID) finance.Transaction {
	return finance.Transaction{
		ID:            id,
		OwnerID:       owner,
		Type:          finance.TxExpense,
		Amount:        finance.NewMoneyFromInt(1000),
		Description:   "Compra supermercado",
		Category:      "Comida",
		PaymentMethod: finance.PayDebit,
		Date:          time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}
}

func TestWithTx_ErrorDiscardsAllWrites(t *testing.T) {
	// GIVEN: A store with one transaction
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.InsertTransaction(ctx, tx("tx-1", "owner-1")))

	// WHEN: A unit writes and then fails
	boom := errors.New("boom")
	err := m.WithTx(ctx, func(st finance.Store) error {
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
	txs, qerr := m.QueryTransactions(ctx, "owner-1", finance.TransactionFilter{})
	require.NoError(t, qerr)
	require.Len(t, txs, 1)
	assert.Equal(t, finance.TransactionID("tx-1"), txs[0].ID)
}

func TestWithTx_SuccessPublishesAllWrites(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	err := m.WithTx(ctx, func(st finance.Store) error {
		if err := st.InsertTransaction(ctx, tx("tx-1", "owner-1")); err != nil {
			return err
		}
		return st.ApplyBalanceDelta(ctx, "owner-1",
			finance.Delta{Debit: finance.NewMoneyFromInt(-1000), Credit: finance.Zero()})
	})
	require.NoError(t, err)

	txs, err := m.QueryTransactions(ctx, "owner-1", finance.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestApplyBalanceDelta_ClampsAtZero(t *testing.T) {
	// GIVEN: An empty aggregate
	m := store.NewMemory()
	ctx := context.Background()

	// WHEN: Applying a negative delta
	require.NoError(t, m.ApplyBalanceDelta(ctx, "owner-1",
		finance.Delta{Debit: finance.NewMoneyFromInt(-5000), Credit: finance.Zero()}))

	// THEN: The balance floors at zero instead of going negative
	b, err := m.GetBalance(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, b.DebitBalance.IsZero())
	assert.True(t, b.UsedCredit.IsZero())
}

func TestInsertTransaction_DuplicateIDConflicts(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.InsertTransaction(ctx, tx("tx-1", "owner-1")))

	err := m.InsertTransaction(ctx, tx("tx-1", "owner-1"))
	assert.ErrorIs(t, err, finance.ErrConflict)
}
