package pricing

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCurveProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: price is linear in supply, computed in wei-integer space
	properties.Property("price equals basePrice + slope*supply", prop.ForAll(
		func(base, slope, supply int64) bool {
			got, err := PriceWei(big.NewInt(base), big.NewInt(slope), big.NewInt(supply))
			if err != nil {
				return false
			}
			want := new(big.Int).Mul(big.NewInt(slope), big.NewInt(supply))
			want.Add(want, big.NewInt(base))
			return got.Cmp(want) == 0
		},
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
	))

	// Property: burn value is non-negative for any amount within supply
	properties.Property("burn value is non-negative", prop.ForAll(
		func(base, slope, supply, amount int64) bool {
			if amount > supply {
				amount = supply
			}
			v := BurnValueWei(big.NewInt(base), big.NewInt(slope), big.NewInt(supply), big.NewInt(amount))
			return v.Sign() >= 0
		},
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(1, 1<<20),
		gen.Int64Range(0, 1<<20),
	))

	// Property: burning zero units refunds nothing
	properties.Property("zero amount burns to zero", prop.ForAll(
		func(base, slope, supply int64) bool {
			v := BurnValueWei(big.NewInt(base), big.NewInt(slope), big.NewInt(supply), big.NewInt(0))
			return v.Sign() == 0
		},
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<20),
	))

	// Property: burning more than the supply is the defined 0 fallback
	properties.Property("overdraw burns to zero", prop.ForAll(
		func(base, slope, supply, excess int64) bool {
			amount := big.NewInt(supply + excess)
			v := BurnValueWei(big.NewInt(base), big.NewInt(slope), big.NewInt(supply), amount)
			return v.Sign() == 0
		},
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<40),
		gen.Int64Range(0, 1<<20),
		gen.Int64Range(1, 1<<20),
	))

	// Property: the closed form matches the direct sum of unit prices
	// at supplies totalSupply-1 down to totalSupply-amount
	properties.Property("closed form matches direct sum", prop.ForAll(
		func(base, slope, supply int64, amountSeed int64) bool {
			amount := amountSeed % (supply + 1)
			want := big.NewInt(0)
			for i := supply - amount; i < supply; i++ {
				unit := new(big.Int).Mul(big.NewInt(slope), big.NewInt(i))
				unit.Add(unit, big.NewInt(base))
				want.Add(want, unit)
			}
			got := BurnValueWei(big.NewInt(base), big.NewInt(slope), big.NewInt(supply), big.NewInt(amount))
			return got.Cmp(want) == 0
		},
		gen.Int64Range(0, 1<<30),
		gen.Int64Range(0, 1<<30),
		gen.Int64Range(1, 200),
		gen.Int64Range(0, 1<<20),
	))

	properties.TestingRun(t)
}
