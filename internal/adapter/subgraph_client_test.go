package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanerrors "github.com/minter-scanner/internal/errors"
	"github.com/minter-scanner/internal/types"
)

const tradesFixture = `{
  "data": {
    "minteds": [
      {"id": "m2", "buyer": "0xabc", "tokenId": "1", "amount": "2", "cost": "4000000000000000000", "blockTimestamp": "200"},
      {"id": "m1", "buyer": "0xabc", "tokenId": "1", "amount": "1", "cost": "1000000000000000000", "blockTimestamp": "100"}
    ],
    "burneds": [
      {"id": "b1", "seller": "0xdef", "tokenId": "2", "amount": "1", "refund": "500000000000000000", "blockTimestamp": "150"}
    ]
  }
}`

func TestAllTrades_ParsesAndSorts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, allTradesQuery, req.Query)
		assert.Equal(t, float64(1000), req.Variables["first"])

		w.Write([]byte(tradesFixture))
	}))
	defer server.Close()

	client := NewSubgraphClient(server.URL, "", 0)
	trades, err := client.AllTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, trades, 3)

	// Ascending by timestamp regardless of wire order.
	assert.Equal(t, int64(100), trades[0].Timestamp)
	assert.Equal(t, int64(150), trades[1].Timestamp)
	assert.Equal(t, int64(200), trades[2].Timestamp)

	assert.Equal(t, types.TradeMint, trades[0].Type)
	assert.Equal(t, types.TradeBurn, trades[1].Type)

	// Unit price is cost divided by amount, in ETH.
	assert.InDelta(t, 1.0, trades[0].Price, 1e-12)
	assert.InDelta(t, 0.5, trades[1].Price, 1e-12)
	assert.InDelta(t, 2.0, trades[2].Price, 1e-12)

	// Burn cost comes from the refund field.
	assert.Equal(t, "500000000000000000", trades[1].Cost)
}

func TestTradesSince_SendsCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, tradesSinceQuery, req.Query)
		assert.Equal(t, float64(12345), req.Variables["since"])

		w.Write([]byte(`{"data":{"minteds":[],"burneds":[]}}`))
	}))
	defer server.Close()

	client := NewSubgraphClient(server.URL, "", 0)
	trades, err := client.TradesSince(context.Background(), 12345)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestQuery_SendsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"minteds":[],"burneds":[]}}`))
	}))
	defer server.Close()

	client := NewSubgraphClient(server.URL, "secret", 0)
	_, err := client.AllTrades(context.Background())
	require.NoError(t, err)
}

func TestQuery_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewSubgraphClient(server.URL, "", 0)
	_, err := client.AllTrades(context.Background())
	require.Error(t, err)
	assert.True(t, scanerrors.IsRateLimited(err))
}

func TestQuery_GraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"field not found"}]}`))
	}))
	defer server.Close()

	client := NewSubgraphClient(server.URL, "", 0)
	_, err := client.AllTrades(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field not found")
}

func TestParseRow_MalformedRowsSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
  "data": {
    "minteds": [
      {"id": "ok", "tokenId": "1", "amount": "1", "cost": "1000", "blockTimestamp": "10"},
      {"id": "bad", "tokenId": "1", "amount": "not-a-number", "cost": "1000", "blockTimestamp": "20"}
    ],
    "burneds": []
  }
}`))
	}))
	defer server.Close()

	client := NewSubgraphClient(server.URL, "", 0)
	trades, err := client.AllTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(10), trades[0].Timestamp)
}
