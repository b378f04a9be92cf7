package enrich

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanerrors "github.com/minter-scanner/internal/errors"
	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/store"
)

type fakeChain struct {
	metadata   []models.TokenMetadata
	priceErrs  map[string]error
	priceCalls []string
}

func (f *fakeChain) TokenCount(ctx context.Context) (*big.Int, error) {
	return big.NewInt(int64(len(f.metadata))), nil
}

func (f *fakeChain) TokenMetadataRange(ctx context.Context, start, end *big.Int) ([]models.TokenMetadata, error) {
	return f.metadata[start.Int64():end.Int64()], nil
}

func (f *fakeChain) CurrentPrice(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	f.priceCalls = append(f.priceCalls, tokenID.String())
	if err, ok := f.priceErrs[tokenID.String()]; ok {
		return nil, err
	}
	meta, err := f.find(tokenID)
	if err != nil {
		return nil, err
	}
	price := new(big.Int).Mul(meta.Slope, meta.TotalSupply)
	return price.Add(price, meta.BasePrice), nil
}

func (f *fakeChain) Reserve(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	meta, err := f.find(tokenID)
	if err != nil {
		return nil, err
	}
	return meta.Reserve, nil
}

func (f *fakeChain) find(tokenID *big.Int) (models.TokenMetadata, error) {
	for _, meta := range f.metadata {
		if meta.TokenID.Cmp(tokenID) == 0 {
			return meta, nil
		}
	}
	return models.TokenMetadata{}, fmt.Errorf("unknown token %s", tokenID)
}

type fakeResolver struct {
	docs    map[string]*models.IPFSMetadata
	errs    map[string]error
	fetched []string
}

func (f *fakeResolver) FetchMetadata(ctx context.Context, uri string) (*models.IPFSMetadata, error) {
	f.fetched = append(f.fetched, uri)
	if err, ok := f.errs[uri]; ok {
		return nil, err
	}
	return f.docs[uri], nil
}

func chainToken(id int64, uri string) models.TokenMetadata {
	return models.TokenMetadata{
		TokenID:     big.NewInt(id),
		Name:        "Token",
		Symbol:      "TKN",
		Creator:     "0xabc",
		URI:         uri,
		BasePrice:   big.NewInt(1_000_000_000_000),
		Slope:       big.NewInt(500_000_000_000),
		Reserve:     big.NewInt(0),
		TotalSupply: big.NewInt(10),
	}
}

func newEnricherFixture(chain ChainSource, resolver MetadataResolver) (*Enricher, *store.TokenStore) {
	ctx := context.Background()
	tokens := store.NewTokenStore(nil)
	tokens.Hydrate(ctx)
	trades := store.NewTradeStore(nil)
	trades.Hydrate(ctx)

	e := NewEnricher(chain, resolver, tokens, trades, Config{BatchSize: 2})
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e, tokens
}

func TestRefresh_MergesChainStateAndResolvesMetadata(t *testing.T) {
	chain := &fakeChain{metadata: []models.TokenMetadata{
		chainToken(0, "ipfs://QmZero"),
		chainToken(1, "ipfs://QmOne"),
	}}
	resolver := &fakeResolver{docs: map[string]*models.IPFSMetadata{
		"ipfs://QmZero": {Image: "ipfs://QmZeroImage", Description: "zero"},
		"ipfs://QmOne":  {Image: "ipfs://QmOneImage"},
	}}
	e, tokens := newEnricherFixture(chain, resolver)

	require.NoError(t, e.Refresh(context.Background()))

	zero, ok := tokens.Get("0")
	require.True(t, ok)
	assert.Equal(t, "1000000000000", zero.BasePrice)
	assert.Equal(t, "ipfs://QmZeroImage", zero.ImageURL)
	assert.Equal(t, "zero", zero.Description)
	require.NotNil(t, zero.Price)
	// basePrice + slope*supply = 1e12 + 5e11*10 = 6e12 wei
	assert.InDelta(t, 0.000006, *zero.Price, 1e-12)
	assert.False(t, zero.NeedsPriceUpdate)
}

func TestRefresh_PartialSuccessKeepsChainFields(t *testing.T) {
	chain := &fakeChain{metadata: []models.TokenMetadata{
		chainToken(0, "ipfs://QmGone"),
	}}
	// All gateways failed: nil document, nil error.
	resolver := &fakeResolver{}
	e, tokens := newEnricherFixture(chain, resolver)

	require.NoError(t, e.Refresh(context.Background()))

	token, ok := tokens.Get("0")
	require.True(t, ok)
	assert.Equal(t, "1000000000000", token.BasePrice)
	assert.Empty(t, token.ImageURL)
	require.NotNil(t, token.Price)
}

func TestRefresh_RateLimitQuarantinesTokenButBatchProceeds(t *testing.T) {
	chain := &fakeChain{metadata: []models.TokenMetadata{
		chainToken(0, "ipfs://QmLimited"),
		chainToken(1, "ipfs://QmFine"),
	}}
	resolver := &fakeResolver{
		errs: map[string]error{"ipfs://QmLimited": scanerrors.NewRateLimitedError("ipfs")},
		docs: map[string]*models.IPFSMetadata{"ipfs://QmFine": {Image: "ipfs://QmFineImage"}},
	}
	e, tokens := newEnricherFixture(chain, resolver)

	require.NoError(t, e.Refresh(context.Background()))

	assert.True(t, e.Quarantine().Contains("0"))
	assert.False(t, e.Quarantine().Contains("1"))

	fine, _ := tokens.Get("1")
	assert.Equal(t, "ipfs://QmFineImage", fine.ImageURL)

	// The next cycle skips the quarantined token entirely.
	resolver.fetched = nil
	require.NoError(t, e.EnrichAll(context.Background()))
	assert.NotContains(t, resolver.fetched, "ipfs://QmLimited")
}

func TestRefresh_ChainRateLimitQuarantinesTokenButBatchProceeds(t *testing.T) {
	chain := &fakeChain{
		metadata: []models.TokenMetadata{
			chainToken(0, "ipfs://QmZero"),
			chainToken(1, "ipfs://QmOne"),
		},
		priceErrs: map[string]error{"0": scanerrors.NewRateLimitedError("chain-rpc")},
	}
	resolver := &fakeResolver{docs: map[string]*models.IPFSMetadata{
		"ipfs://QmZero": {Image: "ipfs://QmZeroImage"},
		"ipfs://QmOne":  {Image: "ipfs://QmOneImage"},
	}}
	e, tokens := newEnricherFixture(chain, resolver)

	require.NoError(t, e.Refresh(context.Background()))

	assert.True(t, e.Quarantine().Contains("0"))
	assert.False(t, e.Quarantine().Contains("1"))

	// The rate-limited token is skipped before its metadata fetch.
	assert.NotContains(t, resolver.fetched, "ipfs://QmZero")

	fine, _ := tokens.Get("1")
	require.NotNil(t, fine.Price)
	assert.InDelta(t, 0.000006, *fine.Price, 1e-12)
	assert.Equal(t, "ipfs://QmOneImage", fine.ImageURL)

	// The next cycle never touches the quarantined token's price.
	chain.priceCalls = nil
	require.NoError(t, e.EnrichAll(context.Background()))
	assert.NotContains(t, chain.priceCalls, "0")
}

func TestEnrichAll_ChainPriceFailureFallsBackToCurve(t *testing.T) {
	chain := &fakeChain{
		metadata:  []models.TokenMetadata{chainToken(0, "")},
		priceErrs: map[string]error{"0": errors.New("rpc timeout")},
	}
	e, tokens := newEnricherFixture(chain, &fakeResolver{})

	require.NoError(t, e.Refresh(context.Background()))

	token, ok := tokens.Get("0")
	require.True(t, ok)
	assert.False(t, e.Quarantine().Contains("0"))
	require.NotNil(t, token.Price)
	assert.InDelta(t, 0.000006, *token.Price, 1e-12)
}

func TestEnrichAll_SkipsResolvedTokens(t *testing.T) {
	chain := &fakeChain{metadata: []models.TokenMetadata{
		chainToken(0, "ipfs://QmZero"),
	}}
	resolver := &fakeResolver{docs: map[string]*models.IPFSMetadata{
		"ipfs://QmZero": {Image: "ipfs://QmZeroImage"},
	}}
	e, _ := newEnricherFixture(chain, resolver)

	require.NoError(t, e.Refresh(context.Background()))
	require.Len(t, resolver.fetched, 1)

	// Image already resolved; no second fetch.
	require.NoError(t, e.EnrichAll(context.Background()))
	assert.Len(t, resolver.fetched, 1)
}

func TestEnrichAll_RecomputesFlaggedPrices(t *testing.T) {
	chain := &fakeChain{metadata: []models.TokenMetadata{
		chainToken(0, ""),
	}}
	e, tokens := newEnricherFixture(chain, &fakeResolver{})

	ctx := context.Background()
	require.NoError(t, e.Refresh(ctx))

	token, _ := tokens.Get("0")
	stale := 0.123
	token.Price = &stale
	token.NeedsPriceUpdate = true
	tokens.UpsertToken(ctx, token)

	require.NoError(t, e.EnrichAll(ctx))

	token, _ = tokens.Get("0")
	require.NotNil(t, token.Price)
	assert.InDelta(t, 0.000006, *token.Price, 1e-12)
	assert.False(t, token.NeedsPriceUpdate)
}

func TestEnrichAll_RespectsContextCancellation(t *testing.T) {
	chain := &fakeChain{metadata: []models.TokenMetadata{
		chainToken(0, "ipfs://QmZero"),
		chainToken(1, "ipfs://QmOne"),
	}}
	e, tokens := newEnricherFixture(chain, &fakeResolver{})

	ctx := context.Background()
	require.NoError(t, e.syncTokens(ctx))
	require.Equal(t, 2, tokens.Len())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, e.EnrichAll(cancelled))
}
