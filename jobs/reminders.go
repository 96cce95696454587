/*
reminders.go - Loan payment reminders

PURPOSE:
  Raises a notification for every active loan whose next payment falls
  exactly three days from the run date. An unread reminder for the same
  loan suppresses duplicates, so daily re-runs within the window are safe.
*/
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alehcs/AstroFinance/finance"
)

// How far ahead of the payment date the reminder fires.
const reminderLeadDays = 3

// RemindersResult summarizes one reminder run.
type RemindersResult struct {
	Sent   int `json:"sent"`
	Errors int `json:"errors"`
}

// Reminders raises upcoming-payment notifications for loans.
type Reminders struct {
	store finance.TxStore
	log   zerolog.Logger
}

func NewReminders(store finance.TxStore, log zerolog.Logger) *Reminders {
	return &Reminders{store: store, log: log.With().Str("job", "loan_reminders").Logger()}
}

// Run raises a reminder for each loan due reminderLeadDays after now.
// Per-loan failures are counted and logged, never aborting the run.
func (j *Reminders) Run(ctx context.Context, now time.Time) RemindersResult {
	var result RemindersResult

	due := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, reminderLeadDays)

	loans, err := j.store.ListLoansDue(ctx, due)
	if err != nil {
		j.log.Error().Err(err).Msg("failed to list due loans")
		result.Errors++
		return result
	}

	for _, l := range loans {
		sent, err := j.remind(ctx, l, now)
		switch {
		case err != nil:
			result.Errors++
			j.log.Error().Err(err).Str("loan_id", string(l.ID)).Msg("failed to raise reminder")
		case sent:
			result.Sent++
		}
	}

	j.log.Info().
		Int("sent", result.Sent).
		Int("errors", result.Errors).
		Msg("reminder run complete")
	return result
}

func (j *Reminders) remind(ctx context.Context, l finance.Loan, now time.Time) (bool, error) {
	key := finance.NotificationKey{
		OwnerID: l.OwnerID,
		Type:    finance.NotifyLoanReminder,
		LoanID:  l.ID,
	}
	exists, err := j.store.HasUnreadNotification(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	n := finance.Notification{
		ID:      finance.NotificationID(uuid.NewString()),
		OwnerID: l.OwnerID,
		Type:    finance.NotifyLoanReminder,
		Title:   "Pago de préstamo próximo",
		Message: fmt.Sprintf("El pago de %s de tu préstamo %q vence el %s.",
			l.MinimumPayment(), l.LoanName, l.NextPaymentDate.Format("2006-01-02")),
		LoanID:    l.ID,
		CreatedAt: now.UTC(),
	}
	if err := j.store.InsertNotification(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}
