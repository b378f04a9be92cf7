// Package models provides domain model definitions for the minter scanner.
package models

import (
	"math/big"
	"time"
)

// Token represents a bonding-curve token tracked by the scanner.
//
// Curve parameters (BasePrice, Slope, Reserve) are fixed-point wei strings to
// survive JSON round-trips without precision loss. Price is a display-only
// cache in decimal ETH; it is always re-derivable from (BasePrice, Slope,
// TotalSupply) via the pricing package and is never authoritative.
type Token struct {
	TokenID     string `json:"tokenId"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Creator     string `json:"creator,omitempty"`
	URI         string `json:"uri,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Description string `json:"description,omitempty"`

	BasePrice   string `json:"basePrice,omitempty"`   // wei
	Slope       string `json:"slope,omitempty"`       // wei per unit
	Reserve     string `json:"reserve,omitempty"`     // wei
	TotalSupply string `json:"totalSupply,omitempty"` // unit count

	Price         *float64 `json:"price,omitempty"` // decimal ETH, display only
	PercentChange *float64 `json:"percentChange,omitempty"`

	BlockTimestamp     int64     `json:"blockTimestamp,omitempty"` // unix seconds, creation sighting
	PriceLastFetchedAt time.Time `json:"priceLastFetchedAt,omitempty"`
	NeedsPriceUpdate   bool      `json:"needsPriceUpdate"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// BasePriceWei returns the base price as a big integer, or nil if unset
// or malformed.
func (t *Token) BasePriceWei() *big.Int {
	return parseWei(t.BasePrice)
}

// SlopeWei returns the slope as a big integer, or nil if unset or malformed.
func (t *Token) SlopeWei() *big.Int {
	return parseWei(t.Slope)
}

// SupplyUnits returns the total supply as a big integer, or nil if unset
// or malformed.
func (t *Token) SupplyUnits() *big.Int {
	return parseWei(t.TotalSupply)
}

// HasChainMetadata reports whether the on-chain fields are populated.
// Tokens without chain metadata are skipped by enrichment.
func (t *Token) HasChainMetadata() bool {
	return t.BasePrice != "" && t.Slope != "" && t.TotalSupply != ""
}

// Equal reports value equality between two tokens, comparing pointer
// fields by value. Store setters use this to skip no-op updates.
func (t *Token) Equal(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.TokenID == other.TokenID &&
		t.Name == other.Name &&
		t.Symbol == other.Symbol &&
		t.Creator == other.Creator &&
		t.URI == other.URI &&
		t.ImageURL == other.ImageURL &&
		t.Description == other.Description &&
		t.BasePrice == other.BasePrice &&
		t.Slope == other.Slope &&
		t.Reserve == other.Reserve &&
		t.TotalSupply == other.TotalSupply &&
		floatPtrEqual(t.Price, other.Price) &&
		floatPtrEqual(t.PercentChange, other.PercentChange) &&
		t.BlockTimestamp == other.BlockTimestamp &&
		t.NeedsPriceUpdate == other.NeedsPriceUpdate
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func parseWei(s string) *big.Int {
	if s == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return v
}

// TokenMetadata is the raw on-chain view of a token, as returned by the
// minter contract's metadata range read.
type TokenMetadata struct {
	TokenID     *big.Int
	Name        string
	Symbol      string
	Creator     string
	URI         string
	BasePrice   *big.Int
	Slope       *big.Int
	Reserve     *big.Int
	TotalSupply *big.Int
}

// IPFSMetadata is the off-chain JSON document resolved from a token's URI.
// A document without an image is treated as a failed resolution.
type IPFSMetadata struct {
	Image       string `json:"image"`
	Description string `json:"description,omitempty"`
	Name        string `json:"name,omitempty"`
}
