package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alehcs/AstroFinance/finance"
	memstore "github.com/Alehcs/AstroFinance/finance/store"
	"github.com/Alehcs/AstroFinance/jobs"
	"github.com/Alehcs/AstroFinance/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newStore(t *testing.T) (*memstore.Memory, *ledger.Service) {
	t.Helper()
	store := memstore.NewMemory()
	return store, ledger.New(store)
}

func nopLog() zerolog.Logger { return zerolog.Nop() }

// testDay is noon today, clamped to day 28 so subtracting months never
// overflows and templates stay within the 1..28 firing window.
func testDay() time.Time {
	n := time.Now().UTC()
	d := n.Day()
	if d > 28 {
		d = 28
	}
	return time.Date(n.Year(), n.Month(), d, 12, 0, 0, 0, time.UTC)
}

func saveTemplate(t *testing.T, store *memstore.Memory, id string, owner finance.OwnerID, dayOfMonth int) finance.RecurringTemplate {
	t.Helper()
	tpl := finance.RecurringTemplate{
		ID:            finance.TemplateID(id),
		OwnerID:       owner,
		Type:          finance.TxExpense,
		Amount:        finance.NewMoneyFromInt(15000),
		Description:   "Suscripción mensual",
		Category:      "Servicios",
		PaymentMethod: finance.PayDebit,
		DayOfMonth:    dayOfMonth,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, store.SaveTemplate(context.Background(), tpl))
	return tpl
}

// =============================================================================
// RECURRING PROCESSOR
// =============================================================================

func TestRecurring_MaterializesDueTemplates(t *testing.T) {
	// GIVEN: Two templates, one due today
	store, lg := newStore(t)
	now := testDay()
	saveTemplate(t, store, "tpl-1", "owner-1", now.Day())
	saveTemplate(t, store, "tpl-2", "owner-1", now.Day()%28+1)

	// WHEN: Running the processor
	job := jobs.NewRecurring(store, lg, jobs.NewAlerts(store, nopLog()), nopLog())
	result := job.Run(context.Background(), now)

	// THEN: Only the due template fires, with a deterministic id
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Errors)

	id := jobs.RecurringID("tpl-1", now)
	assert.Equal(t, finance.TransactionID("recurring_tpl-1_"+now.Format("2006-01")), id)

	tx, err := store.GetTransaction(context.Background(), "owner-1", id)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.True(t, tx.IsRecurring)
	assert.Equal(t, finance.TemplateID("tpl-1"), tx.TemplateID)
}

func TestRecurring_RerunSameMonthSkips(t *testing.T) {
	// GIVEN: A processor run already materialized this month's instance
	store, lg := newStore(t)
	now := testDay()
	saveTemplate(t, store, "tpl-1", "owner-1", now.Day())
	job := jobs.NewRecurring(store, lg, jobs.NewAlerts(store, nopLog()), nopLog())
	first := job.Run(context.Background(), now)
	require.Equal(t, 1, first.Processed)

	// WHEN: Running again the same day
	second := job.Run(context.Background(), now)

	// THEN: Skipped, no double post
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 1, second.Skipped)

	txs, err := store.QueryTransactions(context.Background(), "owner-1", finance.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestRecurring_NextMonthFiresAgain(t *testing.T) {
	store, lg := newStore(t)
	now := testDay()
	saveTemplate(t, store, "tpl-1", "owner-1", now.Day())
	job := jobs.NewRecurring(store, lg, jobs.NewAlerts(store, nopLog()), nopLog())

	job.Run(context.Background(), now.AddDate(0, -1, 0))
	result := job.Run(context.Background(), now)

	assert.Equal(t, 1, result.Processed)

	txs, err := store.QueryTransactions(context.Background(), "owner-1", finance.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestRecurring_BalanceDeltaApplied(t *testing.T) {
	// GIVEN: An income template due today
	store, lg := newStore(t)
	now := testDay()
	tpl := finance.RecurringTemplate{
		ID:          "tpl-salary",
		OwnerID:     "owner-1",
		Type:        finance.TxIncome,
		Amount:      finance.NewMoneyFromInt(100000),
		Description: "Salario mensual",
		Category:    "Trabajo",
		DayOfMonth:  now.Day(),
		CreatedAt:   time.Now(),
	}
	require.NoError(t, store.SaveTemplate(context.Background(), tpl))

	// WHEN: The processor fires
	jobs.NewRecurring(store, lg, jobs.NewAlerts(store, nopLog()), nopLog()).Run(context.Background(), now)

	// THEN: The aggregate moved through the same delta rule
	b, err := store.GetBalance(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.True(t, b.DebitBalance.Equal(finance.NewMoneyFromInt(100000)))
}

func TestRecurring_ExpenseCountsAgainstBudget(t *testing.T) {
	// GIVEN: A Servicios budget the due template blows past
	store, lg := newStore(t)
	now := testDay()
	setBudget(t, store, "owner-1", now.Format("2006-01"), "Servicios", 10000)
	saveTemplate(t, store, "tpl-1", "owner-1", now.Day())

	// WHEN: The processor materializes the 15,000 expense
	job := jobs.NewRecurring(store, lg, jobs.NewAlerts(store, nopLog()), nopLog())
	result := job.Run(context.Background(), now)
	require.Equal(t, 1, result.Processed)

	// THEN: A budget alert fired at the 110 band
	ns, err := store.ListNotifications(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, finance.NotifyBudgetAlert, ns[0].Type)
	assert.Equal(t, "Servicios", ns[0].Category)
	assert.Equal(t, 110, ns[0].Threshold)
}

// =============================================================================
// BUDGET ALERTS
// =============================================================================

func setBudget(t *testing.T, store *memstore.Memory, owner finance.OwnerID, month, category string, limit int64) {
	t.Helper()
	require.NoError(t, store.SaveBudget(context.Background(), finance.Budget{
		OwnerID: owner,
		Month:   month,
		Limits:  map[string]finance.Money{category: finance.NewMoneyFromInt(limit)},
	}))
}

func spend(t *testing.T, lg *ledger.Service, owner finance.OwnerID, category string, amount int64, date time.Time) {
	t.Helper()
	_, err := lg.Create(context.Background(), owner, ledger.CreateInput{
		Type:          finance.TxExpense,
		Amount:        finance.NewMoneyFromInt(amount),
		Description:   "Gasto del mes",
		Category:      category,
		PaymentMethod: finance.PayDebit,
		Date:          date,
	})
	require.NoError(t, err)
}

func TestAlerts_FiresHighestBandOnly(t *testing.T) {
	// GIVEN: A 100,000 limit with 115% spent
	store, lg := newStore(t)
	now := testDay()
	setBudget(t, store, "owner-1", now.Format("2006-01"), "Comida", 100000)
	spend(t, lg, "owner-1", "Comida", 115000, now)

	// WHEN: Evaluating
	job := jobs.NewAlerts(store, nopLog())
	require.NoError(t, job.Evaluate(context.Background(), "owner-1", "Comida", now))

	// THEN: One alert, at the 110 band
	ns, err := store.ListNotifications(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, finance.NotifyBudgetAlert, ns[0].Type)
	assert.Equal(t, 110, ns[0].Threshold)
	assert.Equal(t, now.Format("2006-01"), ns[0].Month)
}

func TestAlerts_BelowNinetyPercentIsSilent(t *testing.T) {
	store, lg := newStore(t)
	now := testDay()
	setBudget(t, store, "owner-1", now.Format("2006-01"), "Comida", 100000)
	spend(t, lg, "owner-1", "Comida", 89000, now)

	job := jobs.NewAlerts(store, nopLog())
	require.NoError(t, job.Evaluate(context.Background(), "owner-1", "Comida", now))

	ns, err := store.ListNotifications(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Empty(t, ns)
}

func TestAlerts_UnreadNotificationSuppressesDuplicate(t *testing.T) {
	// GIVEN: An alert already fired and still unread
	store, lg := newStore(t)
	now := testDay()
	setBudget(t, store, "owner-1", now.Format("2006-01"), "Comida", 100000)
	spend(t, lg, "owner-1", "Comida", 95000, now)

	job := jobs.NewAlerts(store, nopLog())
	require.NoError(t, job.Evaluate(context.Background(), "owner-1", "Comida", now))

	// WHEN: Evaluating again
	require.NoError(t, job.Evaluate(context.Background(), "owner-1", "Comida", now))

	// THEN: Still one alert
	ns, err := store.ListNotifications(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Len(t, ns, 1)
}

func TestAlerts_ReadAlertAllowsHigherBand(t *testing.T) {
	// GIVEN: A read 90-band alert, then spending pushes past 100%
	store, lg := newStore(t)
	now := testDay()
	setBudget(t, store, "owner-1", now.Format("2006-01"), "Comida", 100000)
	spend(t, lg, "owner-1", "Comida", 95000, now)

	job := jobs.NewAlerts(store, nopLog())
	require.NoError(t, job.Evaluate(context.Background(), "owner-1", "Comida", now))

	ns, err := store.ListNotifications(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	require.NoError(t, store.MarkNotificationRead(context.Background(), "owner-1", ns[0].ID))

	// WHEN: Crossing the next band
	spend(t, lg, "owner-1", "Comida", 10000, now)
	require.NoError(t, job.Evaluate(context.Background(), "owner-1", "Comida", now))

	// THEN: A new alert at the 100 band
	ns, err = store.ListNotifications(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, ns, 2)
}

func TestAlerts_NoBudgetNoAlert(t *testing.T) {
	store, lg := newStore(t)
	now := testDay()
	spend(t, lg, "owner-1", "Comida", 500000, now)

	job := jobs.NewAlerts(store, nopLog())
	require.NoError(t, job.Evaluate(context.Background(), "owner-1", "Comida", now))

	ns, err := store.ListNotifications(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Empty(t, ns)
}

// =============================================================================
// LOAN REMINDERS
// =============================================================================

func saveLoan(t *testing.T, store *memstore.Memory, id string, owner finance.OwnerID, nextPayment time.Time) {
	t.Helper()
	require.NoError(t, store.SaveLoan(context.Background(), finance.Loan{
		ID:              finance.LoanID(id),
		OwnerID:         owner,
		LoanName:        "Moto",
		TotalAmount:     finance.NewMoneyFromInt(60000),
		Installments:    6,
		MonthlyPayment:  finance.NewMoneyFromInt(10000),
		RemainingAmount: finance.NewMoneyFromInt(60000),
		Status:          finance.LoanActive,
		NextPaymentDate: nextPayment,
		CreatedAt:       time.Now(),
	}))
}

func TestReminders_FiresThreeDaysAhead(t *testing.T) {
	// GIVEN: A loan due in exactly three days, another due later
	store, _ := newStore(t)
	now := testDay()
	saveLoan(t, store, "loan-1", "owner-1", now.AddDate(0, 0, 3))
	saveLoan(t, store, "loan-2", "owner-1", now.AddDate(0, 0, 8))

	// WHEN: Running the reminder job
	job := jobs.NewReminders(store, nopLog())
	result := job.Run(context.Background(), now)

	// THEN: One reminder, for the three-days-out loan
	assert.Equal(t, 1, result.Sent)

	ns, err := store.ListNotifications(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, finance.NotifyLoanReminder, ns[0].Type)
	assert.Equal(t, finance.LoanID("loan-1"), ns[0].LoanID)
}

func TestReminders_RerunSuppressedWhileUnread(t *testing.T) {
	store, _ := newStore(t)
	now := testDay()
	saveLoan(t, store, "loan-1", "owner-1", now.AddDate(0, 0, 3))

	job := jobs.NewReminders(store, nopLog())
	require.Equal(t, 1, job.Run(context.Background(), now).Sent)
	assert.Equal(t, 0, job.Run(context.Background(), now).Sent)
}

// =============================================================================
// CLEANUP
// =============================================================================

func TestCleanup_RemovesOnlyExpiredNotifications(t *testing.T) {
	// GIVEN: One stale and one fresh notification
	store, _ := newStore(t)
	now := time.Now()
	require.NoError(t, store.InsertNotification(context.Background(), finance.Notification{
		ID: "old", OwnerID: "owner-1", Type: finance.NotifyBudgetAlert,
		Title: "x", Message: "x", CreatedAt: now.AddDate(0, 0, -45),
	}))
	require.NoError(t, store.InsertNotification(context.Background(), finance.Notification{
		ID: "new", OwnerID: "owner-1", Type: finance.NotifyBudgetAlert,
		Title: "x", Message: "x", CreatedAt: now.AddDate(0, 0, -5),
	}))

	// WHEN: Running cleanup
	deleted, err := jobs.NewCleanup(store, nopLog()).Run(context.Background(), now)
	require.NoError(t, err)

	// THEN: Only the stale one is gone
	assert.Equal(t, 1, deleted)
	ns, err := store.ListNotifications(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, finance.NotificationID("new"), ns[0].ID)
}

// =============================================================================
// RESET
// =============================================================================

func TestReset_WipesEverythingForOneOwnerOnly(t *testing.T) {
	// GIVEN: Two owners with data across collections
	store, lg := newStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, owner := range []finance.OwnerID{"owner-1", "owner-2"} {
		_, err := lg.Create(ctx, owner, ledger.CreateInput{
			Type: finance.TxIncome, Amount: finance.NewMoneyFromInt(100000),
			Description: "Salario mensual", Category: "Trabajo", Date: now,
		})
		require.NoError(t, err)
		require.NoError(t, store.SaveGoal(ctx, finance.SavingsGoal{
			ID: finance.GoalID("goal-" + string(owner)), OwnerID: owner,
			GoalName: "Vacaciones", TargetAmount: finance.NewMoneyFromInt(50000),
			CurrentAmount: finance.Zero(), CreatedAt: now,
		}))
		require.NoError(t, store.SaveProfile(ctx, finance.Profile{OwnerID: owner, Name: "A", Email: "a@b.c"}))
	}
	saveLoan(t, store, "loan-1", "owner-1", now)

	// WHEN: Resetting owner-1
	result, err := jobs.NewReset(store, nopLog()).Run(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)

	// THEN: owner-1 is empty, owner-2 untouched
	txs, err := store.QueryTransactions(ctx, "owner-1", finance.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)

	b, err := store.GetBalance(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, b.DebitBalance.IsZero())

	p, err := store.GetProfile(ctx, "owner-1")
	require.NoError(t, err)
	assert.Nil(t, p)

	txs, err = store.QueryTransactions(ctx, "owner-2", finance.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	b, err = store.GetBalance(ctx, "owner-2")
	require.NoError(t, err)
	assert.True(t, b.DebitBalance.Equal(finance.NewMoneyFromInt(100000)))
}

func TestReset_RerunIsIdempotent(t *testing.T) {
	store, lg := newStore(t)
	ctx := context.Background()
	_, err := lg.Create(ctx, "owner-1", ledger.CreateInput{
		Type: finance.TxIncome, Amount: finance.NewMoneyFromInt(1000),
		Description: "Salario mensual", Category: "Trabajo", Date: time.Now(),
	})
	require.NoError(t, err)

	job := jobs.NewReset(store, nopLog())
	_, err = job.Run(ctx, "owner-1")
	require.NoError(t, err)

	result, err := job.Run(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}
