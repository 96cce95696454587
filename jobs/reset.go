/*
reset.go - Full per-owner data reset

PURPOSE:
  Wipes every document an owner has across all collections, plus the
  balance aggregate and profile. Deletion proceeds in bounded batches per
  collection, so arbitrarily large accounts never exceed a single write
  unit. The operation is idempotent: re-running after a partial failure
  deletes whatever remains and reports success.

ORDERING:
  Collections are wiped in a fixed order with the balance aggregate last,
  so a crashed run never leaves a live aggregate pointing at deleted
  history for longer than the retry window.
*/
package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Alehcs/AstroFinance/finance"
)

// Firestore-era batch ceiling; kept as the unit of deletion work.
const resetBatchSize = 500

// ResetResult reports what a reset removed.
type ResetResult struct {
	Deleted map[string]int `json:"deleted"`
	Total   int            `json:"total"`
}

// Reset wipes all data belonging to one owner.
type Reset struct {
	store finance.TxStore
	log   zerolog.Logger
}

func NewReset(store finance.TxStore, log zerolog.Logger) *Reset {
	return &Reset{store: store, log: log.With().Str("job", "reset").Logger()}
}

// Run deletes every document the owner has, collection by collection, then
// the balance aggregate and profile. Safe to re-run after any failure.
func (j *Reset) Run(ctx context.Context, owner finance.OwnerID) (ResetResult, error) {
	result := ResetResult{Deleted: make(map[string]int)}

	for _, collection := range finance.ResetCollections {
		for {
			n, err := j.store.DeleteOwnerDocs(ctx, collection, owner, resetBatchSize)
			if err != nil {
				j.log.Error().Err(err).
					Str("owner_id", string(owner)).
					Str("collection", collection).
					Msg("reset aborted")
				return result, fmt.Errorf("reset %s: %w", collection, err)
			}
			result.Deleted[collection] += n
			result.Total += n
			if n < resetBatchSize {
				break
			}
		}
	}

	if err := j.store.DeleteBalance(ctx, owner); err != nil {
		return result, fmt.Errorf("reset balance: %w", err)
	}
	if err := j.store.DeleteProfile(ctx, owner); err != nil {
		return result, fmt.Errorf("reset profile: %w", err)
	}

	j.log.Info().
		Str("owner_id", string(owner)).
		Int("total", result.Total).
		Msg("reset complete")
	return result, nil
}
