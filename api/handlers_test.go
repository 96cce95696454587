package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alehcs/AstroFinance/api"
	memstore "github.com/Alehcs/AstroFinance/finance/store"
	"github.com/Alehcs/AstroFinance/jobs"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := api.NewHandler(memstore.NewMemory(), zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

// do sends a JSON request as the given owner and decodes the response body
// into out (when out is non-nil).
func do(t *testing.T, srv *httptest.Server, method, path, owner string, body, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(api.OwnerHeader, owner)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func today() string { return time.Now().UTC().Format("2006-01-02") }

func thisMonth() string { return time.Now().UTC().Format("2006-01") }

func incomeBody(amount float64) api.TransactionRequest {
	return api.TransactionRequest{
		Type:        "income",
		Amount:      amount,
		Description: "Salario mensual",
		Category:    "Trabajo",
		Date:        today(),
	}
}

func expenseBody(amount float64, method string) api.TransactionRequest {
	return api.TransactionRequest{
		Type:          "expense",
		Amount:        amount,
		Description:   "Compra supermercado",
		Category:      "Comida",
		PaymentMethod: method,
		Date:          today(),
	}
}

// =============================================================================
// OWNER HEADER
// =============================================================================

func TestMissingOwnerHeaderIsRejected(t *testing.T) {
	srv := newTestServer(t)

	var errResp api.ErrorResponse
	resp := do(t, srv, http.MethodGet, "/api/transactions/", "", nil, &errResp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, errResp.Error)
}

// =============================================================================
// TRANSACTIONS AND BALANCE
// =============================================================================

func TestCreateTransactionUpdatesBalance(t *testing.T) {
	// GIVEN: A fresh server
	srv := newTestServer(t)

	// WHEN: Posting an income and a debit expense
	var created api.TransactionDTO
	resp := do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", incomeBody(100000), &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, today(), created.Date)

	resp = do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", expenseBody(30000, "Débito"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// THEN: The balance reflects both writes
	var balance api.BalanceDTO
	resp = do(t, srv, http.MethodGet, "/api/balance/", "owner-1", nil, &balance)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 70000, balance.DebitBalance, 0.001)
	assert.InDelta(t, 0, balance.UsedCredit, 0.001)
}

func TestCreditExpenseMovesUsedCredit(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", expenseBody(25000, "Crédito"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var balance api.BalanceDTO
	do(t, srv, http.MethodGet, "/api/balance/", "owner-1", nil, &balance)
	assert.InDelta(t, 0, balance.DebitBalance, 0.001)
	assert.InDelta(t, 25000, balance.UsedCredit, 0.001)
}

func TestInvalidTransactionReturns400(t *testing.T) {
	srv := newTestServer(t)

	body := incomeBody(100000)
	body.Description = ""

	var errResp api.ErrorResponse
	resp := do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", body, &errResp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, errResp.Error)
}

func TestGetForeignTransactionReturns404(t *testing.T) {
	// GIVEN: A transaction belonging to owner-1
	srv := newTestServer(t)
	var created api.TransactionDTO
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", incomeBody(100000), &created)

	// WHEN: owner-2 asks for it
	resp := do(t, srv, http.MethodGet, "/api/transactions/"+created.ID, "owner-2", nil, nil)

	// THEN: Not found, not forbidden; ids are not oracle-able across owners
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditTransactionRewritesBalanceInOneStep(t *testing.T) {
	// GIVEN: An income and a credit expense
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", incomeBody(100000), nil)
	var created api.TransactionDTO
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", expenseBody(30000, "Crédito"), &created)

	// WHEN: Editing the expense onto the debit rail
	resp := do(t, srv, http.MethodPut, "/api/transactions/"+created.ID, "owner-1",
		expenseBody(50000, "Débito"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// THEN: Credit released and debit charged
	var balance api.BalanceDTO
	do(t, srv, http.MethodGet, "/api/balance/", "owner-1", nil, &balance)
	assert.InDelta(t, 50000, balance.DebitBalance, 0.001)
	assert.InDelta(t, 0, balance.UsedCredit, 0.001)
}

func TestDeleteTransactionReversesBalance(t *testing.T) {
	srv := newTestServer(t)
	var created api.TransactionDTO
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", incomeBody(100000), &created)

	resp := do(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "owner-1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var balance api.BalanceDTO
	do(t, srv, http.MethodGet, "/api/balance/", "owner-1", nil, &balance)
	assert.InDelta(t, 0, balance.DebitBalance, 0.001)
}

func TestListTransactionsFiltersByCategory(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", incomeBody(100000), nil)
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", expenseBody(10000, "Débito"), nil)

	var list []api.TransactionDTO
	resp := do(t, srv, http.MethodGet, "/api/transactions/?category=Comida", "owner-1", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, list, 1)
	assert.Equal(t, "Comida", list[0].Category)
}

// =============================================================================
// GOALS
// =============================================================================

func TestGoalContributeFlow(t *testing.T) {
	// GIVEN: A funded owner with a goal
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", incomeBody(100000), nil)

	var goal api.GoalDTO
	resp := do(t, srv, http.MethodPost, "/api/goals/", "owner-1",
		api.GoalRequest{GoalName: "Vacaciones", TargetAmount: 50000}, &goal)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// WHEN: Contributing
	resp = do(t, srv, http.MethodPost, "/api/goals/"+goal.ID+"/contribute", "owner-1",
		api.AmountRequest{Amount: 20000}, &goal)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// THEN: Goal grew and the balance shrank through a ledger entry
	assert.InDelta(t, 20000, goal.CurrentAmount, 0.001)

	var balance api.BalanceDTO
	do(t, srv, http.MethodGet, "/api/balance/", "owner-1", nil, &balance)
	assert.InDelta(t, 80000, balance.DebitBalance, 0.001)

	var list []api.TransactionDTO
	do(t, srv, http.MethodGet, "/api/transactions/?category=Ahorros", "owner-1", nil, &list)
	assert.Len(t, list, 1)
}

func TestCreateGoalWithInitialAmount(t *testing.T) {
	// GIVEN: 12,000 already saved outside the ledger
	srv := newTestServer(t)

	var goal api.GoalDTO
	resp := do(t, srv, http.MethodPost, "/api/goals/", "owner-1",
		api.GoalRequest{GoalName: "Vacaciones", TargetAmount: 50000, InitialAmount: 12000}, &goal)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// THEN: The goal starts at 12,000 and the balance is untouched
	assert.InDelta(t, 12000, goal.CurrentAmount, 0.001)

	var balance api.BalanceDTO
	do(t, srv, http.MethodGet, "/api/balance/", "owner-1", nil, &balance)
	assert.InDelta(t, 0, balance.DebitBalance, 0.001)
}

func TestGoalContributeWithoutFundsReturns400(t *testing.T) {
	srv := newTestServer(t)

	var goal api.GoalDTO
	do(t, srv, http.MethodPost, "/api/goals/", "owner-1",
		api.GoalRequest{GoalName: "Vacaciones", TargetAmount: 50000}, &goal)

	var errResp api.ErrorResponse
	resp := do(t, srv, http.MethodPost, "/api/goals/"+goal.ID+"/contribute", "owner-1",
		api.AmountRequest{Amount: 20000}, &errResp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, errResp.Error)
}

// =============================================================================
// BUDGETS AND ALERTS
// =============================================================================

func TestExpenseCrossingBudgetRaisesNotification(t *testing.T) {
	// GIVEN: A 100,000 budget for Comida this month
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodPut, "/api/budgets/"+thisMonth(), "owner-1",
		api.BudgetRequest{Limits: map[string]float64{"Comida": 100000}}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// WHEN: Spending past 90% of the limit
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", incomeBody(200000), nil)
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", expenseBody(95000, "Débito"), nil)

	// THEN: An unread budget alert is waiting
	var ns []api.NotificationDTO
	resp = do(t, srv, http.MethodGet, "/api/notifications/", "owner-1", nil, &ns)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, ns, 1)
	assert.Equal(t, "budget_alert", ns[0].Type)
	assert.Equal(t, 90, ns[0].Threshold)
	assert.False(t, ns[0].IsRead)
}

func TestGoalContributionCountsAgainstBudget(t *testing.T) {
	// GIVEN: A 10,000 Ahorros budget and a funded owner with a goal
	srv := newTestServer(t)
	do(t, srv, http.MethodPut, "/api/budgets/"+thisMonth(), "owner-1",
		api.BudgetRequest{Limits: map[string]float64{"Ahorros": 10000}}, nil)
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", incomeBody(100000), nil)

	var goal api.GoalDTO
	do(t, srv, http.MethodPost, "/api/goals/", "owner-1",
		api.GoalRequest{GoalName: "Vacaciones", TargetAmount: 50000}, &goal)

	// WHEN: Contributing 15,000, blowing past the limit
	resp := do(t, srv, http.MethodPost, "/api/goals/"+goal.ID+"/contribute", "owner-1",
		api.AmountRequest{Amount: 15000}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// THEN: The synthetic expense raised a budget alert at the 110 band
	var ns []api.NotificationDTO
	do(t, srv, http.MethodGet, "/api/notifications/", "owner-1", nil, &ns)
	require.Len(t, ns, 1)
	assert.Equal(t, "budget_alert", ns[0].Type)
	assert.Equal(t, "Ahorros", ns[0].Category)
	assert.Equal(t, 110, ns[0].Threshold)
}

// =============================================================================
// LOANS
// =============================================================================

func TestCreateLoanWithPaidInstallments(t *testing.T) {
	// GIVEN: A 1,200,000 loan with 9 of 12 installments already paid
	srv := newTestServer(t)

	var loan api.LoanDTO
	resp := do(t, srv, http.MethodPost, "/api/loans/", "owner-1",
		api.CreateLoanRequest{LoanName: "Auto", TotalAmount: 1200000,
			Installments: 12, InstallmentsPaid: 9}, &loan)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// THEN: Three installments of 100,000 remain
	assert.InDelta(t, 100000, loan.MonthlyPayment, 0.001)
	assert.InDelta(t, 300000, loan.RemainingAmount, 0.001)
	assert.Equal(t, "active", loan.Status)
}

func TestLoanPaymentCountsAgainstBudget(t *testing.T) {
	// GIVEN: A 10,000 Préstamos budget, funds, and a two-installment loan
	srv := newTestServer(t)
	do(t, srv, http.MethodPut, "/api/budgets/"+thisMonth(), "owner-1",
		api.BudgetRequest{Limits: map[string]float64{"Préstamos": 10000}}, nil)
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", incomeBody(100000), nil)

	var loan api.LoanDTO
	do(t, srv, http.MethodPost, "/api/loans/", "owner-1",
		api.CreateLoanRequest{LoanName: "Moto", TotalAmount: 20000, Installments: 2}, &loan)

	// WHEN: Paying one 10,000 installment, exactly the limit
	resp := do(t, srv, http.MethodPost, "/api/loans/"+loan.ID+"/payments", "owner-1",
		api.AmountRequest{Amount: 10000}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// THEN: The synthetic expense raised a budget alert at the 100 band
	var ns []api.NotificationDTO
	do(t, srv, http.MethodGet, "/api/notifications/", "owner-1", nil, &ns)
	require.Len(t, ns, 1)
	assert.Equal(t, "budget_alert", ns[0].Type)
	assert.Equal(t, "Préstamos", ns[0].Category)
	assert.Equal(t, 100, ns[0].Threshold)
}

// =============================================================================
// ADMIN JOBS
// =============================================================================

func TestAdminRecurringRunHonorsAsOf(t *testing.T) {
	// GIVEN: A template firing on the 1st
	srv := newTestServer(t)
	var tpl api.TemplateDTO
	resp := do(t, srv, http.MethodPost, "/api/templates/", "owner-1",
		api.TemplateRequest{Type: "expense", Amount: 15000, Description: "Suscripción mensual",
			Category: "Servicios", PaymentMethod: "Débito", DayOfMonth: 1}, &tpl)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// WHEN: Replaying the first of this month
	asOf := thisMonth() + "-01"
	var result jobs.RecurringResult
	resp = do(t, srv, http.MethodPost, "/api/admin/jobs/recurring?asOf="+asOf, "owner-1", nil, &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, result.Processed)

	// THEN: The instance is dated asOf, not today
	var list []api.TransactionDTO
	do(t, srv, http.MethodGet, "/api/transactions/", "owner-1", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "recurring_"+tpl.ID+"_"+thisMonth(), list[0].ID)
	assert.Equal(t, asOf, list[0].Date)

	// A malformed asOf is rejected before the job runs
	resp = do(t, srv, http.MethodPost, "/api/admin/jobs/recurring?asOf=not-a-date", "owner-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// RESET
// =============================================================================

func TestResetWipesOwner(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-1", incomeBody(100000), nil)
	do(t, srv, http.MethodPost, "/api/transactions/", "owner-2", incomeBody(50000), nil)

	resp := do(t, srv, http.MethodPost, "/api/reset", "owner-1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []api.TransactionDTO
	do(t, srv, http.MethodGet, "/api/transactions/", "owner-1", nil, &list)
	assert.Empty(t, list)

	do(t, srv, http.MethodGet, "/api/transactions/", "owner-2", nil, &list)
	assert.Len(t, list, 1)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealthzNeedsNoOwner(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
