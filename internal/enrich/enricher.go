package enrich

import (
	"context"
	"math/big"
	"sync"
	"time"

	scanerrors "github.com/minter-scanner/internal/errors"
	"github.com/minter-scanner/internal/logging"
	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/pricing"
	"github.com/minter-scanner/internal/store"
)

// ChainSource supplies on-chain token state from the minter contract
type ChainSource interface {
	TokenCount(ctx context.Context) (*big.Int, error)
	TokenMetadataRange(ctx context.Context, start, end *big.Int) ([]models.TokenMetadata, error)
	CurrentPrice(ctx context.Context, tokenID *big.Int) (*big.Int, error)
	Reserve(ctx context.Context, tokenID *big.Int) (*big.Int, error)
}

// MetadataResolver resolves off-chain metadata documents for token URIs
type MetadataResolver interface {
	FetchMetadata(ctx context.Context, uri string) (*models.IPFSMetadata, error)
}

// Config tunes the enrichment pipeline
type Config struct {
	BatchSize     int           // tokens per batch
	TokenDelay    time.Duration // pause between tokens within a batch
	BatchDelay    time.Duration // pause between batches
	QuarantineTTL time.Duration // exclusion window after an upstream 429
	PriceTTL      time.Duration // staleness window for cached prices
}

func (c Config) normalized() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.QuarantineTTL <= 0 {
		c.QuarantineTTL = 5 * time.Minute
	}
	if c.PriceTTL <= 0 {
		c.PriceTTL = time.Minute
	}
	return c
}

// Enricher builds the serving token list. Each cycle reads the on-chain
// metadata for every token, refreshes stale display prices from the
// contract, and resolves the off-chain image and description over IPFS.
// A token whose document cannot be resolved keeps its chain fields; the
// missing image is a partial state, not a failure.
type Enricher struct {
	chain      ChainSource
	resolver   MetadataResolver
	tokens     *store.TokenStore
	trades     *store.TradeStore
	quarantine *Quarantine
	cfg        Config
	logger     *logging.Logger

	// replaceable in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEnricher creates an enricher over the given sources and stores
func NewEnricher(chain ChainSource, resolver MetadataResolver, tokens *store.TokenStore, trades *store.TradeStore, cfg Config) *Enricher {
	cfg = cfg.normalized()
	return &Enricher{
		chain:      chain,
		resolver:   resolver,
		tokens:     tokens,
		trades:     trades,
		quarantine: NewQuarantine(cfg.QuarantineTTL),
		cfg:        cfg,
		logger:     logging.GetGlobalLogger().WithField("component", "enricher"),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Quarantine exposes the quarantine set, mainly for tests and diagnostics
func (e *Enricher) Quarantine() *Quarantine {
	return e.quarantine
}

// Start launches periodic refresh cycles. The first cycle runs immediately.
func (e *Enricher) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		if err := e.Refresh(ctx); err != nil && ctx.Err() == nil {
			e.logger.WithError(err).Warn("Enrichment cycle failed")
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.Refresh(ctx); err != nil && ctx.Err() == nil {
					e.logger.WithError(err).Warn("Enrichment cycle failed")
				}
			}
		}
	}()
}

// Stop cancels the refresh loop and waits for the current cycle to finish
func (e *Enricher) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// Refresh runs one full enrichment cycle: sync the token list from chain,
// then resolve metadata and prices batch by batch.
func (e *Enricher) Refresh(ctx context.Context) error {
	if err := e.syncTokens(ctx); err != nil {
		return err
	}
	return e.EnrichAll(ctx)
}

// syncTokens reads the full on-chain token list in range pages and merges
// the curve state into the store.
func (e *Enricher) syncTokens(ctx context.Context) error {
	count, err := e.chain.TokenCount(ctx)
	if err != nil {
		return err
	}

	pageSize := big.NewInt(int64(e.cfg.BatchSize))
	for start := big.NewInt(0); start.Cmp(count) < 0; start = new(big.Int).Add(start, pageSize) {
		end := new(big.Int).Add(start, pageSize)
		if end.Cmp(count) > 0 {
			end = count
		}

		page, err := e.chain.TokenMetadataRange(ctx, start, end)
		if err != nil {
			return err
		}
		for _, meta := range page {
			e.mergeChainMetadata(ctx, meta)
		}
	}
	return nil
}

// mergeChainMetadata folds one on-chain metadata row into the store,
// preserving previously resolved off-chain fields.
func (e *Enricher) mergeChainMetadata(ctx context.Context, meta models.TokenMetadata) {
	id := meta.TokenID.String()

	token, ok := e.tokens.Get(id)
	if !ok {
		// First sighting of this token.
		token = models.Token{TokenID: id, BlockTimestamp: e.now().Unix()}
	}

	token.Name = meta.Name
	token.Symbol = meta.Symbol
	token.Creator = meta.Creator
	token.URI = meta.URI
	token.BasePrice = meta.BasePrice.String()
	token.Slope = meta.Slope.String()
	token.Reserve = meta.Reserve.String()
	token.TotalSupply = meta.TotalSupply.String()

	e.tokens.UpsertToken(ctx, token)
}

// EnrichAll walks the token list in batches, refreshing stale prices and
// resolving missing off-chain metadata. Pacing delays keep the gateways
// from rate limiting the whole cycle; a token that still hits a 429 is
// quarantined while the batch proceeds.
func (e *Enricher) EnrichAll(ctx context.Context) error {
	tokens := e.tokens.Tokens()

	for batchStart := 0; batchStart < len(tokens); batchStart += e.cfg.BatchSize {
		batchEnd := batchStart + e.cfg.BatchSize
		if batchEnd > len(tokens) {
			batchEnd = len(tokens)
		}

		for i := batchStart; i < batchEnd; i++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.enrichToken(ctx, tokens[i])

			if i+1 < batchEnd && e.cfg.TokenDelay > 0 {
				if err := e.sleep(ctx, e.cfg.TokenDelay); err != nil {
					return err
				}
			}
		}

		if batchEnd < len(tokens) && e.cfg.BatchDelay > 0 {
			if err := e.sleep(ctx, e.cfg.BatchDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// enrichToken refreshes one token's derived price and off-chain metadata
func (e *Enricher) enrichToken(ctx context.Context, token models.Token) {
	if e.quarantine.Contains(token.TokenID) {
		return
	}
	if !token.HasChainMetadata() {
		return
	}

	if token.NeedsPriceUpdate || token.Price == nil || e.now().Sub(token.PriceLastFetchedAt) > e.cfg.PriceTTL {
		err := e.refreshPrice(ctx, &token)
		switch {
		case err != nil && scanerrors.IsRateLimited(err):
			e.quarantine.Add(token.TokenID)
			e.logger.WithField("tokenId", token.TokenID).Warn("Token quarantined after upstream rate limit")
			return
		case err != nil:
			e.logger.WithError(err).WithField("tokenId", token.TokenID).Warn("Chain price read failed, using curve-derived price")
			e.computePrice(&token)
		}
	}

	if token.ImageURL == "" && token.URI != "" {
		meta, err := e.resolver.FetchMetadata(ctx, token.URI)
		switch {
		case err != nil && scanerrors.IsRateLimited(err):
			e.quarantine.Add(token.TokenID)
			e.logger.WithField("tokenId", token.TokenID).Warn("Token quarantined after upstream rate limit")
		case err != nil:
			e.logger.WithError(err).WithField("tokenId", token.TokenID).Warn("Metadata resolution failed")
		case meta != nil:
			token.ImageURL = meta.Image
			if token.Description == "" {
				token.Description = meta.Description
			}
		}
	}

	e.tokens.UpsertToken(ctx, token)
}

// refreshPrice reads the live unit price from the contract and, alongside
// it, the reserve, which moves with every trade. Errors are returned for
// the caller to classify.
func (e *Enricher) refreshPrice(ctx context.Context, token *models.Token) error {
	id, ok := new(big.Int).SetString(token.TokenID, 10)
	if !ok {
		e.computePrice(token)
		return nil
	}

	priceWei, err := e.chain.CurrentPrice(ctx, id)
	if err != nil {
		return err
	}
	e.setPrice(token, pricing.WeiToEth(priceWei))

	if reserve, err := e.chain.Reserve(ctx, id); err == nil {
		token.Reserve = reserve.String()
	}
	return nil
}

// computePrice derives the display price locally from the curve parameters.
// It backs up refreshPrice when the RPC read fails.
func (e *Enricher) computePrice(token *models.Token) {
	price, err := pricing.Price(token.BasePriceWei(), token.SlopeWei(), token.SupplyUnits())
	if err != nil {
		return
	}
	e.setPrice(token, price)
}

// setPrice stamps a freshly fetched price and derives the percent change
// from the reconciled trade history.
func (e *Enricher) setPrice(token *models.Token, price float64) {
	token.Price = &price
	token.PriceLastFetchedAt = e.now()
	token.NeedsPriceUpdate = false

	if e.trades != nil {
		token.PercentChange = pricing.PercentChangeAt(
			e.trades.ForToken(token.TokenID), token.TokenID, 24*time.Hour, e.now())
	}
	// Without a reference trade, fall back to the change versus the
	// curve's base price.
	if token.PercentChange == nil {
		token.PercentChange = pricing.ChangeVersusBase(token.BasePriceWei(), price)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
