// Package trades reconciles trade streams from the indexer into the trade
// store and fans accepted updates out to subscribers.
package trades

import (
	"sort"

	"github.com/minter-scanner/internal/models"
)

// Merge folds incoming trades into an existing ascending-by-timestamp
// history. Trades value-equal to one already present are dropped, the rest
// are appended, and the result is re-sorted. Merging the same batch twice
// yields the same history, so replayed indexer responses are harmless.
//
// Returns the merged history and the number of trades actually added.
func Merge(existing, incoming []models.Trade) ([]models.Trade, int) {
	merged := make([]models.Trade, len(existing))
	copy(merged, existing)

	added := 0
	for _, candidate := range incoming {
		if containsTrade(merged, candidate) {
			continue
		}
		merged = append(merged, candidate)
		added++
	}

	if added > 0 {
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Timestamp < merged[j].Timestamp
		})
	}
	return merged, added
}

func containsTrade(trades []models.Trade, candidate models.Trade) bool {
	for _, t := range trades {
		if t.Equal(candidate) {
			return true
		}
	}
	return false
}
