/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Amount/date/description policy lives in the domain packages; handlers
  only parse shapes and convert types. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/Alehcs/AstroFinance/finance"
)

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a ledger entry in API responses.
type TransactionDTO struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	BankName      string  `json:"bankName,omitempty"`
	Date          string  `json:"date"`
	IsRecurring   bool    `json:"isRecurring,omitempty"`
	TemplateID    string  `json:"templateId,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt,omitempty"`
}

// TransactionRequest is the body for create and edit.
type TransactionRequest struct {
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	PaymentMethod string  `json:"paymentMethod"`
	BankName      string  `json:"bankName"`
	Date          string  `json:"date"` // YYYY-MM-DD
}

func toTransactionDTO(tx finance.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:            string(tx.ID),
		Type:          string(tx.Type),
		Amount:        tx.Amount.Float64(),
		Description:   tx.Description,
		Category:      tx.Category,
		PaymentMethod: string(tx.PaymentMethod),
		BankName:      tx.BankName,
		Date:          tx.Date.Format("2006-01-02"),
		IsRecurring:   tx.IsRecurring,
		TemplateID:    string(tx.TemplateID),
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
	if !tx.UpdatedAt.IsZero() {
		dto.UpdatedAt = tx.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// BALANCE
// =============================================================================

// BalanceDTO is the owner's aggregate snapshot.
type BalanceDTO struct {
	DebitBalance float64 `json:"debitBalance"`
	UsedCredit   float64 `json:"usedCredit"`
	LastUpdated  string  `json:"lastUpdated,omitempty"`
}

func toBalanceDTO(b finance.BalanceAggregate) BalanceDTO {
	dto := BalanceDTO{
		DebitBalance: b.DebitBalance.Float64(),
		UsedCredit:   b.UsedCredit.Float64(),
	}
	if !b.LastUpdated.IsZero() {
		dto.LastUpdated = b.LastUpdated.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// SAVINGS GOALS
// =============================================================================

type GoalDTO struct {
	ID            string  `json:"id"`
	GoalName      string  `json:"goalName"`
	TargetAmount  float64 `json:"targetAmount"`
	CurrentAmount float64 `json:"currentAmount"`
	CreatedAt     string  `json:"createdAt"`
}

type GoalRequest struct {
	GoalName      string  `json:"goalName"`
	TargetAmount  float64 `json:"targetAmount"`
	InitialAmount float64 `json:"initialAmount"` // create only; ignored on edit
}

// AmountRequest is the body for contribute, withdraw, and loan payments.
type AmountRequest struct {
	Amount float64 `json:"amount"`
}

func toGoalDTO(g finance.SavingsGoal) GoalDTO {
	return GoalDTO{
		ID:            string(g.ID),
		GoalName:      g.GoalName,
		TargetAmount:  g.TargetAmount.Float64(),
		CurrentAmount: g.CurrentAmount.Float64(),
		CreatedAt:     g.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// LOANS
// =============================================================================

type LoanDTO struct {
	ID              string  `json:"id"`
	LoanName        string  `json:"loanName"`
	TotalAmount     float64 `json:"totalAmount"`
	Installments    int     `json:"installments"`
	MonthlyPayment  float64 `json:"monthlyPayment"`
	RemainingAmount float64 `json:"remainingAmount"`
	Status          string  `json:"status"`
	NextPaymentDate string  `json:"nextPaymentDate,omitempty"`
	CreatedAt       string  `json:"createdAt"`
}

type CreateLoanRequest struct {
	LoanName         string  `json:"loanName"`
	TotalAmount      float64 `json:"totalAmount"`
	Installments     int     `json:"installments"`
	InstallmentsPaid int     `json:"installmentsPaid"`
	NextPaymentDate  string  `json:"nextPaymentDate"` // YYYY-MM-DD, optional
}

func toLoanDTO(l finance.Loan) LoanDTO {
	dto := LoanDTO{
		ID:              string(l.ID),
		LoanName:        l.LoanName,
		TotalAmount:     l.TotalAmount.Float64(),
		Installments:    l.Installments,
		MonthlyPayment:  l.MonthlyPayment.Float64(),
		RemainingAmount: l.RemainingAmount.Float64(),
		Status:          string(l.Status),
		CreatedAt:       l.CreatedAt.Format(time.RFC3339),
	}
	if !l.NextPaymentDate.IsZero() {
		dto.NextPaymentDate = l.NextPaymentDate.Format("2006-01-02")
	}
	return dto
}

// =============================================================================
// BUDGETS
// =============================================================================

type BudgetDTO struct {
	Month  string             `json:"month"`
	Limits map[string]float64 `json:"limits"`
}

type BudgetRequest struct {
	Limits map[string]float64 `json:"limits"`
}

func toBudgetDTO(b finance.Budget) BudgetDTO {
	limits := make(map[string]float64, len(b.Limits))
	for category, limit := range b.Limits {
		limits[category] = limit.Float64()
	}
	return BudgetDTO{Month: b.Month, Limits: limits}
}

// =============================================================================
// RECURRING TEMPLATES
// =============================================================================

type TemplateDTO struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	DayOfMonth    int     `json:"dayOfMonth"`
	CreatedAt     string  `json:"createdAt"`
}

type TemplateRequest struct {
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	PaymentMethod string  `json:"paymentMethod"`
	DayOfMonth    int     `json:"dayOfMonth"`
}

func toTemplateDTO(t finance.RecurringTemplate) TemplateDTO {
	return TemplateDTO{
		ID:            string(t.ID),
		Type:          string(t.Type),
		Amount:        t.Amount.Float64(),
		Description:   t.Description,
		Category:      t.Category,
		PaymentMethod: string(t.PaymentMethod),
		DayOfMonth:    t.DayOfMonth,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationDTO struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Category  string `json:"category,omitempty"`
	Month     string `json:"month,omitempty"`
	Threshold int    `json:"threshold,omitempty"`
	LoanID    string `json:"loanId,omitempty"`
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt"`
}

func toNotificationDTO(n finance.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        string(n.ID),
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		Month:     n.Month,
		Threshold: n.Threshold,
		LoanID:    string(n.LoanID),
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PROFILE
// =============================================================================

type ProfileDTO struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type ProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
