package pricing

import (
	"time"

	"github.com/minter-scanner/internal/models"
)

// PercentChange computes the percent price change for a token over the
// given period, from its reconciled trade history. The reference point is
// the last trade at or before the period cutoff, falling back to the
// earliest trade when the whole history is younger than the period.
// Returns nil when the token has no trades or the reference price is zero.
func PercentChange(trades []models.Trade, tokenID string, period time.Duration) *float64 {
	return PercentChangeAt(trades, tokenID, period, time.Now())
}

// PercentChangeAt is PercentChange evaluated against an explicit current
// time, which keeps the computation deterministic in tests.
func PercentChangeAt(trades []models.Trade, tokenID string, period time.Duration, now time.Time) *float64 {
	var tokenTrades []models.Trade
	for _, t := range trades {
		if t.TokenID == tokenID {
			tokenTrades = append(tokenTrades, t)
		}
	}
	if len(tokenTrades) == 0 {
		return nil
	}

	cutoff := now.Add(-period).Unix()

	// Last trade before the cutoff; histories are ordered ascending.
	old := tokenTrades[0]
	for i := len(tokenTrades) - 1; i >= 0; i-- {
		if tokenTrades[i].Timestamp <= cutoff {
			old = tokenTrades[i]
			break
		}
	}
	latest := tokenTrades[len(tokenTrades)-1]

	if old.Price == 0 {
		return nil
	}
	change := (latest.Price - old.Price) / old.Price * 100
	return &change
}
