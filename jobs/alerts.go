/*
alerts.go - Budget alert evaluator

PURPOSE:
  Compares an owner's month-to-date spending per category against the
  month's budget limits and raises a notification when a threshold band is
  crossed:

    [90, 100)   approaching the limit
    [100, 110)  limit reached
    [110, ∞)    limit exceeded

  Only the highest band crossed fires. An unread notification for the same
  (category, month, band) suppresses duplicates; once the user reads it,
  crossing the band again may alert again.

TRIGGERING:
  Evaluated after expense writes rather than on a schedule, so the alert
  lands while the spending is fresh.
*/
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alehcs/AstroFinance/finance"
)

// Threshold bands, in percent of the category limit. Ordered high to low;
// evaluation picks the first one reached.
var alertThresholds = []int{110, 100, 90}

// Alerts evaluates budget thresholds and raises notifications.
type Alerts struct {
	store finance.TxStore
	log   zerolog.Logger
}

func NewAlerts(store finance.TxStore, log zerolog.Logger) *Alerts {
	return &Alerts{store: store, log: log.With().Str("job", "budget_alerts").Logger()}
}

// Evaluate checks one owner's category against the budget for the month
// containing now. No budget or no limit for the category means no alert.
func (j *Alerts) Evaluate(ctx context.Context, owner finance.OwnerID, category string, now time.Time) error {
	month := now.Format("2006-01")

	budget, err := j.store.GetBudget(ctx, owner, month)
	if err != nil {
		return fmt.Errorf("evaluate budget: %w", err)
	}
	if budget == nil {
		return nil
	}
	limit, ok := budget.Limits[category]
	if !ok || !limit.IsPositive() {
		return nil
	}

	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	spent, err := j.store.SumExpenses(ctx, owner, category, from, to)
	if err != nil {
		return fmt.Errorf("evaluate budget: %w", err)
	}

	percent := spent.Value.Div(limit.Value).Mul(decimal.NewFromInt(100))

	for _, threshold := range alertThresholds {
		if percent.LessThan(decimal.NewFromInt(int64(threshold))) {
			continue
		}

		key := finance.NotificationKey{
			OwnerID:   owner,
			Type:      finance.NotifyBudgetAlert,
			Category:  category,
			Month:     month,
			Threshold: threshold,
		}
		exists, err := j.store.HasUnreadNotification(ctx, key)
		if err != nil {
			return fmt.Errorf("evaluate budget: %w", err)
		}
		if exists {
			return nil
		}

		n := finance.Notification{
			ID:        finance.NotificationID(uuid.NewString()),
			OwnerID:   owner,
			Type:      finance.NotifyBudgetAlert,
			Title:     alertTitle(threshold),
			Message:   alertMessage(threshold, category, spent, limit),
			Category:  category,
			Month:     month,
			Threshold: threshold,
			CreatedAt: now.UTC(),
		}
		if err := j.store.InsertNotification(ctx, n); err != nil {
			return fmt.Errorf("evaluate budget: %w", err)
		}

		j.log.Info().
			Str("owner_id", string(owner)).
			Str("category", category).
			Int("threshold", threshold).
			Msg("budget alert raised")
		return nil
	}
	return nil
}

func alertTitle(threshold int) string {
	switch {
	case threshold >= 110:
		return "Presupuesto excedido"
	case threshold >= 100:
		return "Presupuesto alcanzado"
	default:
		return "Presupuesto casi agotado"
	}
}

func alertMessage(threshold int, category string, spent, limit finance.Money) string {
	switch {
	case threshold >= 110:
		return fmt.Sprintf("Has gastado %s de %s en %s, superando tu presupuesto.",
			spent, limit, category)
	case threshold >= 100:
		return fmt.Sprintf("Has alcanzado tu presupuesto de %s en %s.", limit, category)
	default:
		return fmt.Sprintf("Llevas %s de %s en %s (90%% de tu presupuesto).",
			spent, limit, category)
	}
}
