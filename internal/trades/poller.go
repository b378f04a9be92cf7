package trades

import (
	"context"
	"sync"
	"time"

	"github.com/minter-scanner/internal/logging"
	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/store"
)

// TradeSource supplies trade streams from the indexer
type TradeSource interface {
	AllTrades(ctx context.Context) ([]models.Trade, error)
	TradesSince(ctx context.Context, since int64) ([]models.Trade, error)
}

// TokenTradeSource optionally supplies trades for explicit token ids.
// Sources implementing it get a backfill pass after the bulk fetch, for
// tracked tokens whose trades fell outside the bulk window.
type TokenTradeSource interface {
	TradesForTokens(ctx context.Context, tokenIDs []string) ([]models.Trade, error)
}

// Poller periodically pulls trades from the indexer and reconciles them
// into the trade store. The first cycle after a cold start runs the bulk
// query; later cycles fetch incrementally from the newest stored timestamp.
type Poller struct {
	source   TradeSource
	trades   *store.TradeStore
	tokens   *store.TokenStore
	bus      *Bus
	interval time.Duration
	logger   *logging.Logger

	// now is replaceable in tests
	now func() int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a trade poller. The token store is optional; when set,
// tokens touched by new trades are flagged for a price refresh.
func NewPoller(source TradeSource, trades *store.TradeStore, tokens *store.TokenStore, bus *Bus, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{
		source:   source,
		trades:   trades,
		tokens:   tokens,
		bus:      bus,
		interval: interval,
		logger:   logging.GetGlobalLogger().WithField("component", "trade-poller"),
		now:      func() int64 { return time.Now().Unix() },
	}
}

// Start launches the poll loop. The first cycle runs immediately.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.Poll(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Poll(ctx)
			}
		}
	}()
}

// Stop cancels the poll loop and waits for the current cycle to finish
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Poll runs one reconciliation cycle. Returns the number of trades added.
func (p *Poller) Poll(ctx context.Context) int {
	since := p.trades.LatestTimestamp()

	var incoming []models.Trade
	var err error

	if since == 0 {
		incoming, err = p.source.AllTrades(ctx)
	} else {
		// A stored timestamp at or past the current clock means either
		// skew or a future-dated trade; polling now cannot return
		// anything new, so skip the cycle.
		if since >= p.now() {
			p.logger.WithField("since", since).Debug("Skipping poll, cursor not in the past")
			return 0
		}
		incoming, err = p.source.TradesSince(ctx, since)
	}
	if err != nil {
		p.logger.WithError(err).Warn("Trade poll failed")
		return 0
	}

	added := p.reconcile(ctx, incoming)
	if since == 0 {
		added += p.backfillUncovered(ctx)
	}
	return added
}

// reconcile merges incoming trades into the store, flags touched tokens,
// and publishes the genuinely new trades. Returns the number added.
func (p *Poller) reconcile(ctx context.Context, incoming []models.Trade) int {
	if len(incoming) == 0 {
		return 0
	}

	existing := p.trades.All()
	merged, added := Merge(existing, incoming)
	if added == 0 {
		return 0
	}
	if !p.trades.SetAll(ctx, merged) {
		return 0
	}

	newest := newTrades(existing, incoming)
	p.flagTokensForPriceUpdate(ctx, newest)
	if p.bus != nil {
		p.bus.Publish(newest)
	}

	p.logger.WithField("added", added).Info("Reconciled new trades")
	return added
}

// backfillUncovered fetches trades for tracked tokens the bulk window
// missed. Runs only right after a cold start; from then on the
// incremental query covers everything.
func (p *Poller) backfillUncovered(ctx context.Context) int {
	src, ok := p.source.(TokenTradeSource)
	if !ok || p.tokens == nil {
		return 0
	}

	var missing []string
	for _, token := range p.tokens.Tokens() {
		if len(p.trades.ForToken(token.TokenID)) == 0 {
			missing = append(missing, token.TokenID)
		}
	}
	if len(missing) == 0 {
		return 0
	}

	incoming, err := src.TradesForTokens(ctx, missing)
	if err != nil {
		p.logger.WithError(err).Warn("Trade backfill failed")
		return 0
	}
	return p.reconcile(ctx, incoming)
}

// newTrades filters incoming down to the trades not already present in
// the existing history, dropping duplicates within the batch as well.
func newTrades(existing, incoming []models.Trade) []models.Trade {
	var out []models.Trade
	for _, t := range incoming {
		if containsTrade(existing, t) || containsTrade(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// flagTokensForPriceUpdate marks tokens touched by new trades so the next
// enrichment cycle refreshes their prices.
func (p *Poller) flagTokensForPriceUpdate(ctx context.Context, added []models.Trade) {
	if p.tokens == nil {
		return
	}

	seen := make(map[string]bool)
	for _, t := range added {
		if seen[t.TokenID] {
			continue
		}
		seen[t.TokenID] = true

		token, ok := p.tokens.Get(t.TokenID)
		if !ok || token.NeedsPriceUpdate {
			continue
		}
		token.NeedsPriceUpdate = true
		p.tokens.UpsertToken(ctx, token)
	}
}
