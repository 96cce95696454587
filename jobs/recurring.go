/*
Package jobs contains the scheduled maintenance operations: the recurring
transaction processor, budget alerts, loan reminders, notification cleanup,
and the full per-owner reset.

PURPOSE:
  Every job here is built to be re-runnable. A crashed or double-fired run
  must never double-post a transaction or duplicate an alert, so each job
  carries its own idempotency mechanism:

    recurring: deterministic transaction ids (one per template per month)
    alerts:    unread-notification dedupe per (category, month, band)
    reminders: unread-notification dedupe per loan
    cleanup:   deletion is naturally idempotent
    reset:     deleting nothing is a success

FAILURE ISOLATION:
  Jobs iterate independent units (templates, owners, loans). One failing
  unit is logged and counted; the rest of the run proceeds.
*/
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alehcs/AstroFinance/finance"
	"github.com/Alehcs/AstroFinance/ledger"
)

// =============================================================================
// RECURRING TRANSACTION PROCESSOR
// =============================================================================

// RecurringResult summarizes one processor run.
type RecurringResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Recurring materializes transactions from templates whose day of month
// matches today. Materialized expenses count against the month's budget,
// so each one runs through the alert evaluator like a user write.
type Recurring struct {
	store  finance.TxStore
	ledger *ledger.Service
	alerts *Alerts
	log    zerolog.Logger
}

func NewRecurring(store finance.TxStore, lg *ledger.Service, alerts *Alerts, log zerolog.Logger) *Recurring {
	return &Recurring{
		store:  store,
		ledger: lg,
		alerts: alerts,
		log:    log.With().Str("job", "recurring").Logger(),
	}
}

// RecurringID is the deterministic id for a template's instance in a given
// month. Re-running the processor in the same month finds the id already
// present and skips, no matter which run created it.
func RecurringID(templateID finance.TemplateID, month time.Time) finance.TransactionID {
	return finance.TransactionID(
		fmt.Sprintf("recurring_%s_%s", templateID, month.Format("2006-01")))
}

// Run processes every template due on the given day. Per-template failures
// are isolated: they are counted and logged, never aborting the run.
func (j *Recurring) Run(ctx context.Context, now time.Time) RecurringResult {
	var result RecurringResult

	templates, err := j.store.ListTemplatesForDay(ctx, now.Day())
	if err != nil {
		j.log.Error().Err(err).Msg("failed to list due templates")
		result.Errors++
		return result
	}

	for _, t := range templates {
		created, err := j.processTemplate(ctx, t, now)
		switch {
		case err != nil:
			result.Errors++
			j.log.Error().Err(err).
				Str("template_id", string(t.ID)).
				Msg("failed to process template")
		case created:
			result.Processed++
		default:
			result.Skipped++
		}
	}

	j.log.Info().
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("errors", result.Errors).
		Msg("recurring run complete")
	return result
}

func (j *Recurring) processTemplate(ctx context.Context, t finance.RecurringTemplate, now time.Time) (bool, error) {
	id := RecurringID(t.ID, now)

	exists, err := j.store.TransactionExists(ctx, id)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	tx := finance.Transaction{
		ID:            id,
		OwnerID:       t.OwnerID,
		Type:          t.Type,
		Amount:        t.Amount,
		Description:   t.Description,
		Category:      t.Category,
		PaymentMethod: t.PaymentMethod,
		Date:          now.UTC(),
		IsRecurring:   true,
		TemplateID:    t.ID,
		CreatedAt:     now.UTC(),
	}

	if _, err := j.ledger.CreateExact(ctx, tx); err != nil {
		// A concurrent run won the insert between the probe and the write.
		// The instance exists, which is all that matters.
		if errors.Is(err, finance.ErrConflict) {
			return false, nil
		}
		return false, err
	}

	// Best effort, like the API paths: a failed evaluation never undoes
	// the materialized transaction.
	if t.Type == finance.TxExpense {
		if err := j.alerts.Evaluate(ctx, t.OwnerID, t.Category, now); err != nil {
			j.log.Warn().Err(err).
				Str("template_id", string(t.ID)).
				Msg("budget evaluation failed")
		}
	}
	return true, nil
}
