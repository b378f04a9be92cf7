// Package types provides common type definitions for the minter scanner system.
package types

// TradeType represents the direction of a trade against the bonding curve
type TradeType string

const (
	// TradeMint represents units minted against the curve (ETH paid in)
	TradeMint TradeType = "mint"
	// TradeBurn represents units burned against the curve (ETH refunded)
	TradeBurn TradeType = "burn"
)

// Valid reports whether the trade type is one of the known values
func (t TradeType) Valid() bool {
	return t == TradeMint || t == TradeBurn
}

// TradeKey identifies a per-token trade history in the trade store.
// The synthetic key "all" aggregates every token's trades.
type TradeKey string

// TradeKeyAll is the aggregate key covering trades for every token
const TradeKeyAll TradeKey = "all"

// EventName identifies a minter contract event
type EventName string

const (
	// EventMinted is emitted when units are minted against the curve
	EventMinted EventName = "Minted"
	// EventBurned is emitted when units are burned against the curve
	EventBurned EventName = "Burned"
	// EventTokenCreated is emitted when a new token is registered
	EventTokenCreated EventName = "TokenCreated"
	// EventProtocolFeeRecipientChanged is emitted when the fee recipient rotates
	EventProtocolFeeRecipientChanged EventName = "ProtocolFeeRecipientChanged"
)

// HydrationState represents the lifecycle of a persisted store.
// A store starts cold and becomes hydrated exactly once, after the
// initial load from persistence completes.
type HydrationState string

const (
	// HydrationCold means the store has not yet loaded persisted state
	HydrationCold HydrationState = "cold"
	// HydrationHydrated means the initial load has completed
	HydrationHydrated HydrationState = "hydrated"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
