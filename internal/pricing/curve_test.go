package pricing

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceWei(t *testing.T) {
	// basePrice=1e12 wei, slope=5e11 wei, supply=10
	// priceWei = 1_000_000_000_000 + 500_000_000_000*10 = 6_000_000_000_000
	price, err := PriceWei(big.NewInt(1_000_000_000_000), big.NewInt(500_000_000_000), big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, "6000000000000", price.String())
}

func TestPrice(t *testing.T) {
	price, err := Price(big.NewInt(1_000_000_000_000), big.NewInt(500_000_000_000), big.NewInt(10))
	require.NoError(t, err)
	assert.InDelta(t, 0.000006, price, 1e-12)
}

func TestPrice_ZeroSupply(t *testing.T) {
	price, err := Price(big.NewInt(1_000_000_000_000), big.NewInt(500_000_000_000), big.NewInt(0))
	require.NoError(t, err)
	assert.InDelta(t, 0.000001, price, 1e-12)
}

func TestPrice_MissingInput(t *testing.T) {
	_, err := Price(nil, big.NewInt(1), big.NewInt(1))
	assert.Error(t, err)

	_, err = Price(big.NewInt(1), nil, big.NewInt(1))
	assert.Error(t, err)

	_, err = Price(big.NewInt(1), big.NewInt(1), nil)
	assert.Error(t, err)
}

func TestPrice_NegativeInput(t *testing.T) {
	_, err := Price(big.NewInt(-1), big.NewInt(1), big.NewInt(1))
	assert.Error(t, err)
}

func TestPrice_LargeSupply(t *testing.T) {
	// Supply beyond float64's exact integer range must not lose precision
	// before the final conversion.
	supply, ok := new(big.Int).SetString("10000000000000000000000", 10)
	require.True(t, ok)

	price, err := PriceWei(big.NewInt(0), big.NewInt(1), supply)
	require.NoError(t, err)
	assert.Equal(t, supply.String(), price.String())
}

func TestBurnValueWei(t *testing.T) {
	base := big.NewInt(1_000_000_000_000)
	slope := big.NewInt(500_000_000_000)

	// Burning 2 of 10: unit prices at supplies 9 and 8.
	// (base + 9*slope) + (base + 8*slope) = 2*base + 17*slope
	want := new(big.Int).Mul(big.NewInt(2), base)
	want.Add(want, new(big.Int).Mul(big.NewInt(17), slope))

	got := BurnValueWei(base, slope, big.NewInt(10), big.NewInt(2))
	assert.Equal(t, want.String(), got.String())
}

func TestBurnValue_ZeroAmount(t *testing.T) {
	v := BurnValue(big.NewInt(1_000_000_000_000), big.NewInt(500_000_000_000), big.NewInt(10), big.NewInt(0))
	assert.Zero(t, v)
}

func TestBurnValue_AmountExceedsSupply(t *testing.T) {
	// Defined fallback, not an error: overdraw returns 0.
	v := BurnValue(big.NewInt(1_000_000_000_000), big.NewInt(500_000_000_000), big.NewInt(10), big.NewInt(11))
	assert.Zero(t, v)
}

func TestBurnValue_NilInputs(t *testing.T) {
	v := BurnValue(nil, nil, nil, nil)
	assert.Zero(t, v)
}

func TestWeiToEth(t *testing.T) {
	assert.InDelta(t, 0.000006, WeiToEth(big.NewInt(6_000_000_000_000)), 1e-12)
	assert.Zero(t, WeiToEth(nil))

	one, ok := new(big.Int).SetString("1000000000000000000", 10)
	require.True(t, ok)
	assert.InDelta(t, 1.0, WeiToEth(one), 1e-12)
}

func TestParsePrice(t *testing.T) {
	assert.InDelta(t, 0.000006, ParsePrice("6000000000000"), 1e-12)
	assert.Zero(t, ParsePrice(""))
	assert.Zero(t, ParsePrice("not-a-number"))
}

func TestUnitPrice(t *testing.T) {
	// 6e12 wei across 3 units
	assert.InDelta(t, 0.000002, UnitPrice(big.NewInt(6_000_000_000_000), 3), 1e-12)

	// Zero amount treated as one unit
	assert.InDelta(t, 0.000006, UnitPrice(big.NewInt(6_000_000_000_000), 0), 1e-12)
}

func TestChangeVersusBase(t *testing.T) {
	base := big.NewInt(1_000_000_000_000) // 0.000001 ETH

	change := ChangeVersusBase(base, 0.000002)
	require.NotNil(t, change)
	assert.InDelta(t, 100.0, *change, 1e-6)

	assert.Nil(t, ChangeVersusBase(nil, 1))
	assert.Nil(t, ChangeVersusBase(big.NewInt(0), 1))
}
