package models

import (
	"fmt"
	"math/big"
	"time"
)

// EventID builds the canonical entity key for a projected event:
// the transaction hash concatenated with the log index.
func EventID(txHash string, logIndex uint) string {
	return fmt.Sprintf("%s-%d", txHash, logIndex)
}

// MintedEvent is the stored projection of a Minted contract event.
// Fields are copied verbatim from the decoded event plus block metadata.
type MintedEvent struct {
	ID             string
	Buyer          string
	TokenID        *big.Int
	Amount         *big.Int
	Cost           *big.Int
	NewReserve     *big.Int
	NewTotalSupply *big.Int

	BlockNumber     uint64
	BlockTimestamp  time.Time
	TransactionHash string
	LogIndex        uint
}

// BurnedEvent is the stored projection of a Burned contract event.
type BurnedEvent struct {
	ID             string
	Seller         string
	TokenID        *big.Int
	Amount         *big.Int
	Refund         *big.Int
	NewReserve     *big.Int
	NewTotalSupply *big.Int

	BlockNumber     uint64
	BlockTimestamp  time.Time
	TransactionHash string
	LogIndex        uint
}

// TokenCreatedEvent is the stored projection of a TokenCreated contract event.
type TokenCreatedEvent struct {
	ID      string
	TokenID *big.Int
	Name    string
	Symbol  string
	Creator string

	BlockNumber     uint64
	BlockTimestamp  time.Time
	TransactionHash string
	LogIndex        uint
}

// FeeRecipientChangedEvent is the stored projection of a
// ProtocolFeeRecipientChanged contract event.
type FeeRecipientChangedEvent struct {
	ID           string
	OldRecipient string
	NewRecipient string

	BlockNumber     uint64
	BlockTimestamp  time.Time
	TransactionHash string
	LogIndex        uint
}
