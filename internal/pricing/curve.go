// Package pricing implements the bonding-curve price arithmetic for
// minted tokens.
//
// The curve is linear: the unit price at supply s is basePrice + slope*s,
// with both parameters in fixed-point wei (18 decimals). All intermediate
// arithmetic is done on big integers in wei space; conversion to a
// double-precision ETH value happens only at the final step, and the float
// results are acceptable for display purposes only.
package pricing

import (
	"fmt"
	"math/big"

	"github.com/minter-scanner/internal/logging"
)

var weiPerEth = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// PriceWei computes the current unit price in wei:
// basePrice + slope*totalSupply. This is the authoritative integer form.
func PriceWei(basePrice, slope, totalSupply *big.Int) (*big.Int, error) {
	if basePrice == nil || slope == nil || totalSupply == nil {
		return nil, fmt.Errorf("pricing: missing input")
	}
	if basePrice.Sign() < 0 || slope.Sign() < 0 || totalSupply.Sign() < 0 {
		return nil, fmt.Errorf("pricing: negative input")
	}
	price := new(big.Int).Mul(slope, totalSupply)
	return price.Add(price, basePrice), nil
}

// Price computes the current unit price in decimal ETH.
func Price(basePrice, slope, totalSupply *big.Int) (float64, error) {
	wei, err := PriceWei(basePrice, slope, totalSupply)
	if err != nil {
		return 0, err
	}
	return WeiToEth(wei), nil
}

// BurnValueWei computes the wei refunded for burning amount units out of
// totalSupply, using the closed-form sum of the arithmetic progression of
// unit prices:
//
//	amount*basePrice + slope * amount*(2*totalSupply - amount - 1) / 2
//
// amount == 0 yields 0. amount > totalSupply also yields 0: the curve is
// undefined in that region, and callers only use this value for display.
func BurnValueWei(basePrice, slope, totalSupply, amount *big.Int) *big.Int {
	if basePrice == nil || slope == nil || totalSupply == nil || amount == nil {
		return big.NewInt(0)
	}
	if amount.Sign() <= 0 || totalSupply.Sign() <= 0 || amount.Cmp(totalSupply) > 0 {
		return big.NewInt(0)
	}

	base := new(big.Int).Mul(amount, basePrice)

	// slope * amount * (2*totalSupply - amount - 1) / 2
	span := new(big.Int).Lsh(totalSupply, 1)
	span.Sub(span, amount)
	span.Sub(span, big.NewInt(1))
	curve := new(big.Int).Mul(amount, span)
	curve.Mul(curve, slope)
	curve.Rsh(curve, 1)

	return base.Add(base, curve)
}

// BurnValue computes the refund for burning amount units, in decimal ETH.
func BurnValue(basePrice, slope, totalSupply, amount *big.Int) float64 {
	return WeiToEth(BurnValueWei(basePrice, slope, totalSupply, amount))
}

// WeiToEth converts a wei amount to a decimal ETH float. Precision loss is
// confined to this final conversion.
func WeiToEth(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEth).Float64()
	return eth
}

// ParsePrice converts a raw wei decimal string to a decimal ETH float.
// Malformed input is logged and treated as a cache miss, yielding 0.
func ParsePrice(raw string) float64 {
	if raw == "" {
		return 0
	}
	wei, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		logging.GetGlobalLogger().WithField("value", raw).Warn("Malformed wei string, treating as zero")
		return 0
	}
	return WeiToEth(wei)
}

// UnitPrice derives the per-unit price of a trade from its total wei cost
// and unit amount. A zero amount is treated as a single unit.
func UnitPrice(costWei *big.Int, amount int64) float64 {
	if amount <= 0 {
		amount = 1
	}
	return WeiToEth(costWei) / float64(amount)
}

// ChangeVersusBase computes the percent change of the current ETH price
// relative to the curve's base price. Returns nil when the base price is
// zero or missing.
func ChangeVersusBase(basePriceWei *big.Int, currentEth float64) *float64 {
	if basePriceWei == nil || basePriceWei.Sign() <= 0 {
		return nil
	}
	base := WeiToEth(basePriceWei)
	if base == 0 {
		return nil
	}
	change := (currentEth - base) / base * 100
	return &change
}
