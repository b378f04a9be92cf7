package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sort"
	"time"

	scanerrors "github.com/minter-scanner/internal/errors"
	"github.com/minter-scanner/internal/logging"
	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/pricing"
	"github.com/minter-scanner/internal/types"
)

// SubgraphClient queries the trade indexer's GraphQL endpoint. It supports
// the two fixed queries the dashboard needs - the bulk first-N fetch and
// the incremental since-timestamp fetch - plus a tokenId-filtered query for
// tokens the aggregate does not cover yet.
type SubgraphClient struct {
	url        string
	apiKey     string
	bulkLimit  int
	httpClient *http.Client
	logger     *logging.Logger
}

// NewSubgraphClient creates a new indexer client
func NewSubgraphClient(url, apiKey string, bulkLimit int) *SubgraphClient {
	if bulkLimit <= 0 {
		bulkLimit = 1000
	}
	return &SubgraphClient{
		url:       url,
		apiKey:    apiKey,
		bulkLimit: bulkLimit,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logging.GetGlobalLogger().WithField("component", "subgraph"),
	}
}

const allTradesQuery = `query AllTrades($first: Int!) {
  minteds(first: $first) { id buyer tokenId amount cost blockTimestamp }
  burneds(first: $first) { id seller tokenId amount refund blockTimestamp }
}`

const tradesSinceQuery = `query TradesSince($since: Int!) {
  minteds(where: { blockTimestamp_gt: $since }) { id buyer tokenId amount cost blockTimestamp }
  burneds(where: { blockTimestamp_gt: $since }) { id seller tokenId amount refund blockTimestamp }
}`

const tradesForTokensQuery = `query TradesForTokens($tokenIds: [BigInt!]) {
  minteds(where: { tokenId_in: $tokenIds }) { id buyer tokenId amount cost blockTimestamp }
  burneds(where: { tokenId_in: $tokenIds }) { id seller tokenId amount refund blockTimestamp }
}`

// graphqlRequest is the JSON body of a GraphQL POST
type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// tradeEventRow is the wire shape shared by minted and burned entities
type tradeEventRow struct {
	ID             string `json:"id"`
	TokenID        string `json:"tokenId"`
	Amount         string `json:"amount"`
	Cost           string `json:"cost,omitempty"`
	Refund         string `json:"refund,omitempty"`
	BlockTimestamp string `json:"blockTimestamp"`
}

type tradesResponse struct {
	Data struct {
		Minteds []tradeEventRow `json:"minteds"`
		Burneds []tradeEventRow `json:"burneds"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// AllTrades runs the bulk query: the first bulkLimit mint and burn events.
// The result is sorted ascending by timestamp.
func (c *SubgraphClient) AllTrades(ctx context.Context) ([]models.Trade, error) {
	return c.query(ctx, allTradesQuery, map[string]interface{}{
		"first": c.bulkLimit,
	})
}

// TradesSince runs the incremental query: trades with block timestamp
// strictly greater than since.
func (c *SubgraphClient) TradesSince(ctx context.Context, since int64) ([]models.Trade, error) {
	return c.query(ctx, tradesSinceQuery, map[string]interface{}{
		"since": since,
	})
}

// TradesForTokens fetches trades for an explicit set of token ids
func (c *SubgraphClient) TradesForTokens(ctx context.Context, tokenIDs []string) ([]models.Trade, error) {
	return c.query(ctx, tradesForTokensQuery, map[string]interface{}{
		"tokenIds": tokenIDs,
	})
}

// query executes a GraphQL request and parses the trade rows
func (c *SubgraphClient) query(ctx context.Context, query string, variables map[string]interface{}) ([]models.Trade, error) {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, scanerrors.NewProviderError("indexer", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, scanerrors.NewRateLimitedError("indexer")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, scanerrors.NewProviderError("indexer", fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, scanerrors.NewProviderError("indexer", err)
	}

	var parsed tradesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, scanerrors.NewParseError("indexer response", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, scanerrors.NewProviderError("indexer", fmt.Errorf("graphql: %s", parsed.Errors[0].Message))
	}

	trades := make([]models.Trade, 0, len(parsed.Data.Minteds)+len(parsed.Data.Burneds))
	for _, row := range parsed.Data.Minteds {
		if t, ok := c.parseRow(row, types.TradeMint); ok {
			trades = append(trades, t)
		}
	}
	for _, row := range parsed.Data.Burneds {
		if t, ok := c.parseRow(row, types.TradeBurn); ok {
			trades = append(trades, t)
		}
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp < trades[j].Timestamp
	})
	return trades, nil
}

// parseRow converts a wire row into a trade. Malformed rows are logged and
// skipped rather than failing the whole batch.
func (c *SubgraphClient) parseRow(row tradeEventRow, tradeType types.TradeType) (models.Trade, bool) {
	cost := row.Cost
	if tradeType == types.TradeBurn {
		cost = row.Refund
	}

	costWei, ok := new(big.Int).SetString(orZero(cost), 10)
	if !ok {
		c.logger.WithField("id", row.ID).Warn("Skipping trade with malformed cost")
		return models.Trade{}, false
	}
	amount, ok := new(big.Int).SetString(orZero(row.Amount), 10)
	if !ok {
		c.logger.WithField("id", row.ID).Warn("Skipping trade with malformed amount")
		return models.Trade{}, false
	}
	tokenID, ok := new(big.Int).SetString(row.TokenID, 10)
	if !ok {
		c.logger.WithField("id", row.ID).Warn("Skipping trade with malformed token id")
		return models.Trade{}, false
	}

	var timestamp int64
	if _, err := fmt.Sscanf(row.BlockTimestamp, "%d", &timestamp); err != nil {
		timestamp = 0
	}

	return models.Trade{
		TokenID:   tokenID.String(),
		Type:      tradeType,
		Amount:    amount.String(),
		Cost:      costWei.String(),
		Price:     pricing.UnitPrice(costWei, amount.Int64()),
		Timestamp: timestamp,
	}, true
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
