/*
handlers.go - HTTP API handlers for the balance service

PURPOSE:
  Exposes the finance services via REST API. Handles HTTP request/response,
  JSON serialization, owner identification, and delegates to the domain
  services.

OWNER IDENTITY:
  Every data route requires the X-Owner-ID header. There is no session or
  token layer here; an API gateway in front is expected to authenticate
  and inject the header.

ERROR HANDLING:
  Domain errors map to HTTP status via their sentinel:
  - 400: validation, insufficient balance
  - 404: entity missing or owned by someone else (indistinguishable)
  - 409: concurrent modification (safe to retry)
  - 503: atomic commit failed for infrastructure reasons (safe to retry)
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alehcs/AstroFinance/finance"
	"github.com/Alehcs/AstroFinance/jobs"
	"github.com/Alehcs/AstroFinance/ledger"
	"github.com/Alehcs/AstroFinance/loans"
	"github.com/Alehcs/AstroFinance/savings"
)

// OwnerHeader carries the authenticated owner id, injected by the gateway.
const OwnerHeader = "X-Owner-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   finance.TxStore
	Ledger  *ledger.Service
	Savings *savings.Service
	Loans   *loans.Service

	Alerts    *jobs.Alerts
	Recurring *jobs.Recurring
	Reminders *jobs.Reminders
	Cleanup   *jobs.Cleanup
	Reset     *jobs.Reset

	Log zerolog.Logger
}

// NewHandler wires the services and jobs around one store.
func NewHandler(store finance.TxStore, log zerolog.Logger) *Handler {
	lg := ledger.New(store)
	alerts := jobs.NewAlerts(store, log)
	return &Handler{
		Store:     store,
		Ledger:    lg,
		Savings:   savings.New(store),
		Loans:     loans.New(store),
		Alerts:    alerts,
		Recurring: jobs.NewRecurring(store, lg, alerts, log),
		Reminders: jobs.NewReminders(store, log),
		Cleanup:   jobs.NewCleanup(store, log),
		Reset:     jobs.NewReset(store, log),
		Log:       log,
	}
}

// owner extracts the owner id from the request, or writes a 400 and
// returns false.
func owner(w http.ResponseWriter, r *http.Request) (finance.OwnerID, bool) {
	id := r.Header.Get(OwnerHeader)
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing "+OwnerHeader+" header", nil)
		return "", false
	}
	return finance.OwnerID(id), true
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns the owner's ledger, optionally filtered.
// GET /api/transactions?type=&category=&from=&to=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	var f finance.TransactionFilter
	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		t := finance.TransactionType(v)
		f.Type = &t
	}
	if v := q.Get("category"); v != "" {
		f.Category = &v
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		f.To = &t
	}

	txs, err := h.Ledger.List(r.Context(), ownerID, f)
	if err != nil {
		h.writeDomainError(w, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTransaction records a new income or expense.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	in, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}

	tx, err := h.Ledger.Create(r.Context(), ownerID, in)
	if err != nil {
		h.writeDomainError(w, "Failed to create transaction", err)
		return
	}

	h.evaluateBudget(r, ownerID, tx)
	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// GetTransaction returns one ledger entry.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	tx, err := h.Ledger.Get(r.Context(), ownerID, finance.TransactionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

// EditTransaction replaces a ledger entry's fields; the balance aggregate
// moves by the reversal-plus-reapply delta.
// PUT /api/transactions/{id}
func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	in, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}

	tx, err := h.Ledger.Edit(r.Context(), ownerID, finance.TransactionID(chi.URLParam(r, "id")), in)
	if err != nil {
		h.writeDomainError(w, "Failed to edit transaction", err)
		return
	}

	h.evaluateBudget(r, ownerID, tx)
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

// DeleteTransaction removes a ledger entry and reverses its balance effect.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	id := finance.TransactionID(chi.URLParam(r, "id"))
	if err := h.Ledger.Delete(r.Context(), ownerID, id); err != nil {
		h.writeDomainError(w, "Failed to delete transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

func (h *Handler) decodeTransaction(w http.ResponseWriter, r *http.Request) (ledger.CreateInput, bool) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return ledger.CreateInput{}, false
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return ledger.CreateInput{}, false
	}

	return ledger.CreateInput{
		Type:          finance.TransactionType(req.Type),
		Amount:        finance.NewMoney(req.Amount),
		Description:   req.Description,
		Category:      req.Category,
		PaymentMethod: finance.PaymentMethod(req.PaymentMethod),
		BankName:      req.BankName,
		Date:          date,
	}, true
}

// evaluateBudget runs the alert evaluator for an expense write. Best
// effort: alert failures are logged, never surfaced to the client.
func (h *Handler) evaluateBudget(r *http.Request, ownerID finance.OwnerID, tx *finance.Transaction) {
	if tx == nil || tx.Type != finance.TxExpense {
		return
	}
	h.evaluateBudgetCategory(r, ownerID, tx.Category, tx.Date)
}

// evaluateBudgetCategory is the shared tail for every path that posts an
// expense: plain writes, goal contributions, and loan payments all count
// against the month's budget.
func (h *Handler) evaluateBudgetCategory(r *http.Request, ownerID finance.OwnerID, category string, at time.Time) {
	if err := h.Alerts.Evaluate(r.Context(), ownerID, category, at); err != nil {
		h.Log.Warn().Err(err).
			Str("owner_id", string(ownerID)).
			Str("category", category).
			Msg("budget evaluation failed")
	}
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalance returns the owner's aggregate snapshot.
// GET /api/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	b, err := h.Ledger.Balance(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// RecomputeBalance rebuilds the aggregate from the ledger. Recovery tool.
// POST /api/balance/recompute
func (h *Handler) RecomputeBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	b, err := h.Ledger.Recompute(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, "Failed to recompute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// =============================================================================
// SAVINGS GOAL HANDLERS
// =============================================================================

// ListGoals returns the owner's savings goals.
// GET /api/goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	goals, err := h.Savings.ListGoals(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, "Failed to list goals", err)
		return
	}

	dtos := make([]GoalDTO, 0, len(goals))
	for _, g := range goals {
		dtos = append(dtos, toGoalDTO(g))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGoal registers a new savings goal.
// POST /api/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	var req GoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	g, err := h.Savings.CreateGoal(r.Context(), ownerID, req.GoalName,
		finance.NewMoney(req.TargetAmount), finance.NewMoney(req.InitialAmount))
	if err != nil {
		h.writeDomainError(w, "Failed to create goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalDTO(*g))
}

// GetGoal returns one savings goal.
// GET /api/goals/{id}
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	g, err := h.Savings.GetGoal(r.Context(), ownerID, finance.GoalID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(*g))
}

// EditGoal renames a goal and/or adjusts its target.
// PUT /api/goals/{id}
func (h *Handler) EditGoal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	var req GoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	g, err := h.Savings.EditGoal(r.Context(), ownerID,
		finance.GoalID(chi.URLParam(r, "id")), req.GoalName, finance.NewMoney(req.TargetAmount))
	if err != nil {
		h.writeDomainError(w, "Failed to edit goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(*g))
}

// DeleteGoal removes a goal; its transactions stay in the ledger.
// DELETE /api/goals/{id}
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	id := finance.GoalID(chi.URLParam(r, "id"))
	if err := h.Savings.DeleteGoal(r.Context(), ownerID, id); err != nil {
		h.writeDomainError(w, "Failed to delete goal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

// ContributeToGoal moves money from the spendable balance into the goal.
// The synthetic expense counts against the Ahorros budget.
// POST /api/goals/{id}/contribute
func (h *Handler) ContributeToGoal(w http.ResponseWriter, r *http.Request) {
	h.goalMovement(w, r, h.Savings.Contribute, finance.CategorySavings)
}

// WithdrawFromGoal moves money back out of the goal.
// POST /api/goals/{id}/withdraw
func (h *Handler) WithdrawFromGoal(w http.ResponseWriter, r *http.Request) {
	h.goalMovement(w, r, h.Savings.Withdraw, "")
}

func (h *Handler) goalMovement(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, owner finance.OwnerID, id finance.GoalID, amount finance.Money) (*finance.SavingsGoal, error),
	alertCategory string) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	g, err := op(r.Context(), ownerID, finance.GoalID(chi.URLParam(r, "id")), finance.NewMoney(req.Amount))
	if err != nil {
		h.writeDomainError(w, "Failed to update goal", err)
		return
	}
	if alertCategory != "" {
		h.evaluateBudgetCategory(r, ownerID, alertCategory, time.Now())
	}
	writeJSON(w, http.StatusOK, toGoalDTO(*g))
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// ListLoans returns the owner's loans.
// GET /api/loans
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	list, err := h.Loans.ListLoans(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, "Failed to list loans", err)
		return
	}

	dtos := make([]LoanDTO, 0, len(list))
	for _, l := range list {
		dtos = append(dtos, toLoanDTO(l))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLoan registers a loan.
// POST /api/loans
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var nextPayment time.Time
	if req.NextPaymentDate != "" {
		var err error
		nextPayment, err = time.Parse("2006-01-02", req.NextPaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid nextPaymentDate (use YYYY-MM-DD)", err)
			return
		}
	}

	l, err := h.Loans.CreateLoan(r.Context(), ownerID, req.LoanName,
		finance.NewMoney(req.TotalAmount), req.Installments, req.InstallmentsPaid, nextPayment)
	if err != nil {
		h.writeDomainError(w, "Failed to create loan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(*l))
}

// GetLoan returns one loan.
// GET /api/loans/{id}
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	l, err := h.Loans.GetLoan(r.Context(), ownerID, finance.LoanID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(*l))
}

// MakeLoanPayment applies a payment to an active loan.
// POST /api/loans/{id}/payments
func (h *Handler) MakeLoanPayment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	l, err := h.Loans.MakePayment(r.Context(), ownerID,
		finance.LoanID(chi.URLParam(r, "id")), finance.NewMoney(req.Amount))
	if err != nil {
		h.writeDomainError(w, "Failed to make payment", err)
		return
	}
	// The synthetic expense counts against the Préstamos budget.
	h.evaluateBudgetCategory(r, ownerID, finance.CategoryLoans, time.Now())
	writeJSON(w, http.StatusOK, toLoanDTO(*l))
}

// DeleteLoan removes a loan; payment history stays in the ledger.
// DELETE /api/loans/{id}
func (h *Handler) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	id := finance.LoanID(chi.URLParam(r, "id"))
	if err := h.Loans.DeleteLoan(r.Context(), ownerID, id); err != nil {
		h.writeDomainError(w, "Failed to delete loan", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

// =============================================================================
// BUDGET HANDLERS
// =============================================================================

// GetBudget returns the owner's limits for a month.
// GET /api/budgets/{month}
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	month := chi.URLParam(r, "month")
	if _, err := time.Parse("2006-01", month); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	b, err := h.Store.GetBudget(r.Context(), ownerID, month)
	if err != nil {
		h.writeDomainError(w, "Failed to get budget", err)
		return
	}
	if b == nil {
		writeJSON(w, http.StatusOK, BudgetDTO{Month: month, Limits: map[string]float64{}})
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(*b))
}

// SetBudget replaces the owner's limits for a month.
// PUT /api/budgets/{month}
func (h *Handler) SetBudget(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	month := chi.URLParam(r, "month")
	if _, err := time.Parse("2006-01", month); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	var req BudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	limits := make(map[string]finance.Money, len(req.Limits))
	for category, limit := range req.Limits {
		if limit <= 0 {
			writeError(w, http.StatusBadRequest, "Budget limits must be greater than 0", nil)
			return
		}
		limits[category] = finance.NewMoney(limit)
	}

	b := finance.Budget{OwnerID: ownerID, Month: month, Limits: limits}
	if err := h.Store.SaveBudget(r.Context(), b); err != nil {
		h.writeDomainError(w, "Failed to save budget", err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

// =============================================================================
// RECURRING TEMPLATE HANDLERS
// =============================================================================

// ListTemplates returns the owner's recurring templates.
// GET /api/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	templates, err := h.Store.ListTemplates(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, "Failed to list templates", err)
		return
	}

	dtos := make([]TemplateDTO, 0, len(templates))
	for _, t := range templates {
		dtos = append(dtos, toTemplateDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTemplate registers a monthly recurring template.
// POST /api/templates
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// Days past 28 would skip short months.
	if req.DayOfMonth < 1 || req.DayOfMonth > 28 {
		writeError(w, http.StatusBadRequest, "dayOfMonth must be between 1 and 28", nil)
		return
	}

	t := finance.RecurringTemplate{
		ID:            finance.TemplateID(uuid.NewString()),
		OwnerID:       ownerID,
		Type:          finance.TransactionType(req.Type),
		Amount:        finance.NewMoney(req.Amount),
		Description:   req.Description,
		Category:      req.Category,
		PaymentMethod: finance.PaymentMethod(req.PaymentMethod),
		DayOfMonth:    req.DayOfMonth,
		CreatedAt:     time.Now().UTC(),
	}

	// The materialized transaction must pass the same policy as a user
	// write; validate against the template's would-be instance now.
	probe := finance.Transaction{
		ID:            "probe",
		OwnerID:       ownerID,
		Type:          t.Type,
		Amount:        t.Amount,
		Description:   t.Description,
		Category:      t.Category,
		PaymentMethod: t.PaymentMethod,
		Date:          time.Now().UTC(),
	}
	if err := finance.ValidateTransaction(probe, time.Now()); err != nil {
		h.writeDomainError(w, "Invalid template", err)
		return
	}

	if err := h.Store.SaveTemplate(r.Context(), t); err != nil {
		h.writeDomainError(w, "Failed to create template", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateDTO(t))
}

// DeleteTemplate removes a recurring template. Already-materialized
// transactions stay.
// DELETE /api/templates/{id}
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	id := finance.TemplateID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteTemplate(r.Context(), ownerID, id); err != nil {
		h.writeDomainError(w, "Failed to delete template", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// ListNotifications returns the owner's notifications, newest first.
// GET /api/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	notifications, err := h.Store.ListNotifications(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, "Failed to list notifications", err)
		return
	}

	dtos := make([]NotificationDTO, 0, len(notifications))
	for _, n := range notifications {
		dtos = append(dtos, toNotificationDTO(n))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkNotificationRead marks a notification read, releasing its dedupe
// guard.
// POST /api/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	id := finance.NotificationID(chi.URLParam(r, "id"))
	if err := h.Store.MarkNotificationRead(r.Context(), ownerID, id); err != nil {
		h.writeDomainError(w, "Failed to mark notification read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"read": string(id)})
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

// GetProfile returns the owner's profile.
// GET /api/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	p, err := h.Store.GetProfile(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, "Failed to get profile", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Profile not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, ProfileDTO{
		Name:      p.Name,
		Email:     p.Email,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	})
}

// SaveProfile creates or updates the owner's profile.
// PUT /api/profile
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p := finance.Profile{
		OwnerID: ownerID,
		Name:    req.Name,
		Email:   req.Email,
	}
	if err := h.Store.SaveProfile(r.Context(), p); err != nil {
		h.writeDomainError(w, "Failed to save profile", err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileDTO{Name: p.Name, Email: p.Email})
}

// =============================================================================
// ADMIN / JOB HANDLERS
// =============================================================================

// RunRecurring triggers the recurring processor immediately. An optional
// asOf query parameter (YYYY-MM-DD) replays a specific day, e.g. to catch
// up after scheduler downtime.
// POST /api/admin/jobs/recurring?asOf=2026-08-01
func (h *Handler) RunRecurring(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if v := r.URL.Query().Get("asOf"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid asOf date (use YYYY-MM-DD)", err)
			return
		}
		asOf = t
	}
	result := h.Recurring.Run(r.Context(), asOf)
	writeJSON(w, http.StatusOK, result)
}

// RunReminders triggers the loan reminder job immediately.
// POST /api/admin/jobs/reminders
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	result := h.Reminders.Run(r.Context(), time.Now())
	writeJSON(w, http.StatusOK, result)
}

// RunCleanup triggers notification cleanup immediately.
// POST /api/admin/jobs/cleanup
func (h *Handler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Cleanup.Run(r.Context(), time.Now())
	if err != nil {
		h.writeDomainError(w, "Cleanup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// ResetOwner wipes everything the requesting owner has.
// POST /api/reset
func (h *Handler) ResetOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	result, err := h.Reset.Run(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, "Reset failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeDomainError maps domain sentinels to HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case finance.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case finance.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, finance.ErrConflict):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, finance.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		h.Log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
