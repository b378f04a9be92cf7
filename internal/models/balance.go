package models

// Balance represents an account's holding of a single token.
//
// Raw is the balance in smallest units as read from chain; Formatted and
// ValueETH are derived for display and recomputed on demand.
type Balance struct {
	TokenID   string   `json:"tokenId"`
	Raw       string   `json:"raw"` // smallest units, decimal string
	Formatted float64  `json:"formatted"`
	ValueETH  *float64 `json:"valueEth,omitempty"`
}

// Equal reports value equality between two balances
func (b Balance) Equal(other Balance) bool {
	return b.TokenID == other.TokenID &&
		b.Raw == other.Raw &&
		b.Formatted == other.Formatted &&
		floatPtrEqual(b.ValueETH, other.ValueETH)
}
