package models

import (
	"github.com/minter-scanner/internal/types"
)

// Trade represents a single mint or burn against a token's bonding curve.
//
// Cost holds the wei paid (mint) or refunded (burn); Price is the derived
// per-unit price in decimal ETH. Trades are immutable once observed. Within
// a reconciled history timestamps are non-decreasing. Client-side identity
// is value equality over all fields; the projection layer additionally keys
// events by (transactionHash, logIndex).
type Trade struct {
	TokenID   string          `json:"tokenId"`
	Type      types.TradeType `json:"type"`
	Amount    string          `json:"amount"` // integer units
	Cost      string          `json:"cost"`   // wei paid or refunded
	Price     float64         `json:"price"`  // decimal ETH per unit
	Timestamp int64           `json:"timestamp"` // unix seconds, block time
}

// Equal reports value equality between two trades. Used for client-side
// deduplication during reconciliation.
func (t Trade) Equal(other Trade) bool {
	return t.TokenID == other.TokenID &&
		t.Type == other.Type &&
		t.Amount == other.Amount &&
		t.Cost == other.Cost &&
		t.Timestamp == other.Timestamp
}
