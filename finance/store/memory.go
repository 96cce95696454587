// Package store provides an in-memory finance.TxStore for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Alehcs/AstroFinance/finance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.Mutex
	st state
}

type state struct {
	transactions  map[finance.TransactionID]finance.Transaction
	balances      map[finance.OwnerID]finance.BalanceAggregate
	goals         map[finance.GoalID]finance.SavingsGoal
	loans         map[finance.LoanID]finance.Loan
	budgets       map[string]finance.Budget // key: owner|month
	templates     map[finance.TemplateID]finance.RecurringTemplate
	notifications map[finance.NotificationID]finance.Notification
	profiles      map[finance.OwnerID]finance.Profile
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

func newState() state {
	return state{
		transactions:  make(map[finance.TransactionID]finance.Transaction),
		balances:      make(map[finance.OwnerID]finance.BalanceAggregate),
		goals:         make(map[finance.GoalID]finance.SavingsGoal),
		loans:         make(map[finance.LoanID]finance.Loan),
		budgets:       make(map[string]finance.Budget),
		templates:     make(map[finance.TemplateID]finance.RecurringTemplate),
		notifications: make(map[finance.NotificationID]finance.Notification),
		profiles:      make(map[finance.OwnerID]finance.Profile),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.goals {
		c.goals[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.budgets {
		limits := make(map[string]finance.Money, len(v.Limits))
		for ck, cv := range v.Limits {
			limits[ck] = cv
		}
		v.Limits = limits
		c.budgets[k] = v
	}
	for k, v := range s.templates {
		c.templates[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	return c
}

// WithTx runs fn against a snapshot copy; on error the copy is discarded so
// none of fn's writes are observable. All-or-nothing, same contract as the
// sqlite store's BEGIN/COMMIT. The staged copy carries its own mutex, so fn
// uses the ordinary Store methods.
func (m *Memory) WithTx(ctx context.Context, fn func(finance.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := &Memory{st: m.st.clone()}
	if err := fn(staged); err != nil {
		return err
	}
	m.st = staged.st
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) InsertTransaction(ctx context.Context, tx finance.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.transactions[tx.ID]; ok {
		return finance.ErrConflict
	}
	m.st.transactions[tx.ID] = tx
	return nil
}

func (m *Memory) UpdateTransaction(ctx context.Context, tx finance.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.st.transactions[tx.ID]
	if !ok || existing.OwnerID != tx.OwnerID {
		return &finance.NotFoundError{Kind: "transaction", ID: string(tx.ID)}
	}
	m.st.transactions[tx.ID] = tx
	return nil
}

func (m *Memory) DeleteTransaction(ctx context.Context, owner finance.OwnerID, id finance.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.st.transactions[id]
	if !ok || existing.OwnerID != owner {
		return &finance.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	delete(m.st.transactions, id)
	return nil
}

func (m *Memory) GetTransaction(ctx context.Context, owner finance.OwnerID, id finance.TransactionID) (*finance.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.st.transactions[id]
	if !ok || tx.OwnerID != owner {
		return nil, nil
	}
	return &tx, nil
}

func (m *Memory) TransactionExists(ctx context.Context, id finance.TransactionID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.st.transactions[id]
	return ok, nil
}

func (m *Memory) QueryTransactions(ctx context.Context, owner finance.OwnerID, f finance.TransactionFilter) ([]finance.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []finance.Transaction
	for _, tx := range m.st.transactions {
		if tx.OwnerID != owner {
			continue
		}
		if f.Type != nil && tx.Type != *f.Type {
			continue
		}
		if f.Category != nil && tx.Category != *f.Category {
			continue
		}
		if f.From != nil && tx.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && tx.Date.After(*f.To) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (m *Memory) SumExpenses(ctx context.Context, owner finance.OwnerID, category string, from, to time.Time) (finance.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := finance.Zero()
	for _, tx := range m.st.transactions {
		if tx.OwnerID != owner || tx.Type != finance.TxExpense || tx.Category != category {
			continue
		}
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total, nil
}

// =============================================================================
// BALANCE AGGREGATE
// =============================================================================

func (m *Memory) GetBalance(ctx context.Context, owner finance.OwnerID) (finance.BalanceAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.st.balances[owner]; ok {
		return b, nil
	}
	return finance.BalanceAggregate{
		OwnerID:      owner,
		DebitBalance: finance.Zero(),
		UsedCredit:   finance.Zero(),
	}, nil
}

func (m *Memory) ApplyBalanceDelta(ctx context.Context, owner finance.OwnerID, d finance.Delta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.st.balances[owner]
	if !ok {
		b = finance.BalanceAggregate{
			OwnerID:      owner,
			DebitBalance: finance.Zero(),
			UsedCredit:   finance.Zero(),
		}
	}
	b = d.Apply(b)
	b.LastUpdated = time.Now().UTC()
	m.st.balances[owner] = b
	return nil
}

func (m *Memory) SetBalance(ctx context.Context, b finance.BalanceAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.balances[b.OwnerID] = b
	return nil
}

func (m *Memory) DeleteBalance(ctx context.Context, owner finance.OwnerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.st.balances, owner)
	return nil
}

// =============================================================================
// GOALS
// =============================================================================

func (m *Memory) SaveGoal(ctx context.Context, g finance.SavingsGoal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.goals[g.ID] = g
	return nil
}

func (m *Memory) GetGoal(ctx context.Context, owner finance.OwnerID, id finance.GoalID) (*finance.SavingsGoal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.st.goals[id]
	if !ok || g.OwnerID != owner {
		return nil, nil
	}
	return &g, nil
}

func (m *Memory) ListGoals(ctx context.Context, owner finance.OwnerID) ([]finance.SavingsGoal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []finance.SavingsGoal
	for _, g := range m.st.goals {
		if g.OwnerID == owner {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteGoal(ctx context.Context, owner finance.OwnerID, id finance.GoalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.st.goals[id]
	if !ok || g.OwnerID != owner {
		return &finance.NotFoundError{Kind: "goal", ID: string(id)}
	}
	delete(m.st.goals, id)
	return nil
}

// =============================================================================
// LOANS
// =============================================================================

func (m *Memory) SaveLoan(ctx context.Context, l finance.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.loans[l.ID] = l
	return nil
}

func (m *Memory) GetLoan(ctx context.Context, owner finance.OwnerID, id finance.LoanID) (*finance.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.st.loans[id]
	if !ok || l.OwnerID != owner {
		return nil, nil
	}
	return &l, nil
}

func (m *Memory) ListLoans(ctx context.Context, owner finance.OwnerID) ([]finance.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []finance.Loan
	for _, l := range m.st.loans {
		if l.OwnerID == owner {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListLoansDue(ctx context.Context, day time.Time) ([]finance.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []finance.Loan
	for _, l := range m.st.loans {
		if l.Status != finance.LoanActive || l.NextPaymentDate.IsZero() {
			continue
		}
		if sameDay(l.NextPaymentDate, day) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func (m *Memory) DeleteLoan(ctx context.Context, owner finance.OwnerID, id finance.LoanID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.st.loans[id]
	if !ok || l.OwnerID != owner {
		return &finance.NotFoundError{Kind: "loan", ID: string(id)}
	}
	delete(m.st.loans, id)
	return nil
}

// =============================================================================
// BUDGETS
// =============================================================================

func budgetKey(owner finance.OwnerID, month string) string {
	return string(owner) + "|" + month
}

func (m *Memory) SaveBudget(ctx context.Context, b finance.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.budgets[budgetKey(b.OwnerID, b.Month)] = b
	return nil
}

func (m *Memory) GetBudget(ctx context.Context, owner finance.OwnerID, month string) (*finance.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.st.budgets[budgetKey(owner, month)]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// =============================================================================
// RECURRING TEMPLATES
// =============================================================================

func (m *Memory) SaveTemplate(ctx context.Context, t finance.RecurringTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.templates[t.ID] = t
	return nil
}

func (m *Memory) GetTemplate(ctx context.Context, owner finance.OwnerID, id finance.TemplateID) (*finance.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.st.templates[id]
	if !ok || t.OwnerID != owner {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) ListTemplates(ctx context.Context, owner finance.OwnerID) ([]finance.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []finance.RecurringTemplate
	for _, t := range m.st.templates {
		if t.OwnerID == owner {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListTemplatesForDay(ctx context.Context, dayOfMonth int) ([]finance.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []finance.RecurringTemplate
	for _, t := range m.st.templates {
		if t.DayOfMonth == dayOfMonth {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteTemplate(ctx context.Context, owner finance.OwnerID, id finance.TemplateID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.st.templates[id]
	if !ok || t.OwnerID != owner {
		return &finance.NotFoundError{Kind: "template", ID: string(id)}
	}
	delete(m.st.templates, id)
	return nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (m *Memory) InsertNotification(ctx context.Context, n finance.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.notifications[n.ID] = n
	return nil
}

func (m *Memory) ListNotifications(ctx context.Context, owner finance.OwnerID) ([]finance.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []finance.Notification
	for _, n := range m.st.notifications {
		if n.OwnerID == owner {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) MarkNotificationRead(ctx context.Context, owner finance.OwnerID, id finance.NotificationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.st.notifications[id]
	if !ok || n.OwnerID != owner {
		return &finance.NotFoundError{Kind: "notification", ID: string(id)}
	}
	n.IsRead = true
	m.st.notifications[id] = n
	return nil
}

func (m *Memory) HasUnreadNotification(ctx context.Context, key finance.NotificationKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.st.notifications {
		if n.IsRead || n.OwnerID != key.OwnerID || n.Type != key.Type {
			continue
		}
		if key.Type == finance.NotifyBudgetAlert &&
			(n.Category != key.Category || n.Month != key.Month || n.Threshold != key.Threshold) {
			continue
		}
		if key.Type == finance.NotifyLoanReminder && n.LoanID != key.LoanID {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (m *Memory) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, n := range m.st.notifications {
		if deleted >= limit {
			break
		}
		if n.CreatedAt.Before(cutoff) {
			delete(m.st.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

// =============================================================================
// PROFILES
// =============================================================================

func (m *Memory) SaveProfile(ctx context.Context, p finance.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.profiles[p.OwnerID] = p
	return nil
}

func (m *Memory) GetProfile(ctx context.Context, owner finance.OwnerID) (*finance.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.profiles[owner]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) DeleteProfile(ctx context.Context, owner finance.OwnerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.st.profiles, owner)
	return nil
}

// =============================================================================
// RESET SUPPORT
// =============================================================================

func (m *Memory) DeleteOwnerDocs(ctx context.Context, collection string, owner finance.OwnerID, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	switch collection {
	case finance.ColTransactions:
		for id, tx := range m.st.transactions {
			if deleted >= limit {
				break
			}
			if tx.OwnerID == owner {
				delete(m.st.transactions, id)
				deleted++
			}
		}
	case finance.ColGoals:
		for id, g := range m.st.goals {
			if deleted >= limit {
				break
			}
			if g.OwnerID == owner {
				delete(m.st.goals, id)
				deleted++
			}
		}
	case finance.ColLoans:
		for id, l := range m.st.loans {
			if deleted >= limit {
				break
			}
			if l.OwnerID == owner {
				delete(m.st.loans, id)
				deleted++
			}
		}
	case finance.ColBudgets:
		for key, b := range m.st.budgets {
			if deleted >= limit {
				break
			}
			if b.OwnerID == owner {
				delete(m.st.budgets, key)
				deleted++
			}
		}
	case finance.ColTemplates:
		for id, t := range m.st.templates {
			if deleted >= limit {
				break
			}
			if t.OwnerID == owner {
				delete(m.st.templates, id)
				deleted++
			}
		}
	case finance.ColNotifications:
		for id, n := range m.st.notifications {
			if deleted >= limit {
				break
			}
			if n.OwnerID == owner {
				delete(m.st.notifications, id)
				deleted++
			}
		}
	}
	return deleted, nil
}
