/*
cleanup.go - Notification retention

PURPOSE:
  Deletes notifications older than the retention window, read or not, in
  bounded batches. Deletion is naturally idempotent; an interrupted run
  simply leaves fewer rows for the next one.
*/
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alehcs/AstroFinance/finance"
)

const (
	notificationRetentionDays = 30
	cleanupBatchSize          = 500
)

// Cleanup removes expired notifications.
type Cleanup struct {
	store finance.TxStore
	log   zerolog.Logger
}

func NewCleanup(store finance.TxStore, log zerolog.Logger) *Cleanup {
	return &Cleanup{store: store, log: log.With().Str("job", "notification_cleanup").Logger()}
}

// Run deletes all notifications older than the retention window, batch by
// batch, and returns how many were removed.
func (j *Cleanup) Run(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -notificationRetentionDays)

	total := 0
	for {
		n, err := j.store.DeleteNotificationsBefore(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			j.log.Error().Err(err).Int("deleted", total).Msg("cleanup aborted")
			return total, err
		}
		total += n
		if n < cleanupBatchSize {
			break
		}
	}

	j.log.Info().Int("deleted", total).Msg("cleanup complete")
	return total, nil
}
