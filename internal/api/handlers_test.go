package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/store"
	tradebus "github.com/minter-scanner/internal/trades"
	"github.com/minter-scanner/internal/types"
)

type fakeBalanceSource struct {
	balances map[string]string
	calls    int
}

func (f *fakeBalanceSource) BalanceOf(ctx context.Context, account string, tokenID *big.Int) (*big.Int, error) {
	f.calls++
	raw, ok := new(big.Int).SetString(f.balances[tokenID.String()], 10)
	if !ok {
		return big.NewInt(0), nil
	}
	return raw, nil
}

type fakeTokenRegistry struct {
	events []models.TokenCreatedEvent
}

func (f *fakeTokenRegistry) ListTokenCreated(ctx context.Context) ([]models.TokenCreatedEvent, error) {
	return f.events, nil
}

func (f *fakeTokenRegistry) GetTokenCreated(ctx context.Context, tokenID *big.Int) (*models.TokenCreatedEvent, error) {
	for i := range f.events {
		if f.events[i].TokenID.Cmp(tokenID) == 0 {
			return &f.events[i], nil
		}
	}
	return nil, nil
}

func (f *fakeTokenRegistry) CurrentFeeRecipient(ctx context.Context) (string, error) {
	return "0x00000000000000000000000000000000000000fe", nil
}

func newTestServer(t *testing.T, chain BalanceSource) (*Server, *tradebus.Bus) {
	t.Helper()
	ctx := context.Background()

	tokens := store.NewTokenStore(nil)
	tokens.Hydrate(ctx)
	price := 0.000006
	tokens.SetTokens(ctx, []models.Token{
		{
			TokenID:     "1",
			Name:        "Alpha",
			Symbol:      "ALP",
			BasePrice:   "1000000000000",
			Slope:       "500000000000",
			TotalSupply: "10",
			Price:       &price,
		},
		{TokenID: "2", Name: "Beta", Symbol: "BET"},
	})

	trades := store.NewTradeStore(nil)
	trades.Hydrate(ctx)
	trades.SetAll(ctx, []models.Trade{
		{TokenID: "1", Type: types.TradeMint, Amount: "1", Cost: "1000000000000", Price: 0.000001, Timestamp: 100},
		{TokenID: "2", Type: types.TradeMint, Amount: "1", Cost: "2000000000000", Price: 0.000002, Timestamp: 200},
	})

	balances := store.NewBalanceStore(nil)
	balances.Hydrate(ctx)

	bus := tradebus.NewBus()

	server := NewServer(
		&ServerConfig{Host: "127.0.0.1", Port: "0", RequestsPerSecond: 1000},
		Deps{Tokens: tokens, Trades: trades, Balances: balances, Bus: bus, Chain: chain},
	)
	return server, bus
}

func doRequest(t *testing.T, server *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleHealth(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestHandleListTokens(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/tokens")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, string(types.HydrationHydrated), body["hydrated"])
	assert.Len(t, body["tokens"], 2)
}

func TestHandleGetToken_NotFound(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/tokens/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetPrice(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/tokens/1/price")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	// basePrice + slope*supply = 1e12 + 5e11*10
	assert.Equal(t, "6000000000000", body["priceWei"])
	assert.InDelta(t, 0.000006, body["price"].(float64), 1e-12)
	assert.InDelta(t, 0.000001, body["basePrice"].(float64), 1e-12)
}

func TestHandleGetPrice_NoChainMetadata(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/tokens/2/price")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleBurnValue(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/tokens/1/burn-value?amount=2")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	// 2*base + slope*(2*10-2-1)*2/2 = 2e12 + 17*5e11
	assert.Equal(t, "10500000000000", body["refundWei"])
}

func TestHandleBurnValue_Overdraw(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/tokens/1/burn-value?amount=11")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", decodeBody(t, rec)["refundWei"])
}

func TestHandleBurnValue_InvalidAmount(t *testing.T) {
	server, _ := newTestServer(t, nil)

	for _, query := range []string{"", "amount=abc", "amount=-1"} {
		path := "/api/tokens/1/burn-value"
		if query != "" {
			path += "?" + query
		}
		rec := doRequest(t, server, http.MethodGet, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestHandleListTrades_SinceFilter(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/trades?since=100")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	trades := body["trades"].([]interface{})
	require.Len(t, trades, 1)
	assert.Equal(t, "2", trades[0].(map[string]interface{})["tokenId"])
}

func TestHandleTokenTrades(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/tokens/1/trades")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["trades"], 1)
}

func TestHandleTradeHistory_Unavailable(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/trades/history")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGetBalances(t *testing.T) {
	chain := &fakeBalanceSource{balances: map[string]string{"1": "5", "2": "0"}}
	server, _ := newTestServer(t, chain)

	account := "0x00000000000000000000000000000000000000aa"
	rec := doRequest(t, server, http.MethodGet, "/api/balances/"+account)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["cached"])
	balances := body["balances"].([]interface{})
	// Zero holdings are omitted.
	require.Len(t, balances, 1)
	first := balances[0].(map[string]interface{})
	assert.Equal(t, "1", first["tokenId"])
	assert.Equal(t, "5", first["raw"])
	assert.InDelta(t, 0.00003, first["valueEth"].(float64), 1e-12)

	// The second read is served from the store without chain calls.
	callsAfterFirst := chain.calls
	rec = doRequest(t, server, http.MethodGet, "/api/balances/"+account)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["cached"])
	assert.Equal(t, callsAfterFirst, chain.calls)
}

func TestHandleGetBalances_LargeBalanceSurvivesConversion(t *testing.T) {
	// 2e19 does not fit in int64.
	chain := &fakeBalanceSource{balances: map[string]string{"1": "20000000000000000000"}}
	server, _ := newTestServer(t, chain)

	account := "0x00000000000000000000000000000000000000bb"
	rec := doRequest(t, server, http.MethodGet, "/api/balances/"+account)
	require.Equal(t, http.StatusOK, rec.Code)

	balances := decodeBody(t, rec)["balances"].([]interface{})
	require.Len(t, balances, 1)
	first := balances[0].(map[string]interface{})
	assert.Equal(t, "20000000000000000000", first["raw"])
	assert.InDelta(t, 2e19, first["formatted"].(float64), 1e6)
	assert.InDelta(t, 2e19*0.000006, first["valueEth"].(float64), 1e2)
}

func TestHandleGetBalances_InvalidAccount(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/balances/not-an-address")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func newRegistryServer(t *testing.T, registry TokenRegistry) *Server {
	t.Helper()
	ctx := context.Background()

	tokens := store.NewTokenStore(nil)
	tokens.Hydrate(ctx)
	trades := store.NewTradeStore(nil)
	trades.Hydrate(ctx)
	balances := store.NewBalanceStore(nil)
	balances.Hydrate(ctx)

	return NewServer(
		&ServerConfig{Host: "127.0.0.1", Port: "0", RequestsPerSecond: 1000},
		Deps{Tokens: tokens, Trades: trades, Balances: balances, Bus: tradebus.NewBus(), TokenRepo: registry},
	)
}

func TestHandleListCreatedTokens(t *testing.T) {
	registry := &fakeTokenRegistry{events: []models.TokenCreatedEvent{
		{
			ID:              "0xaa-0",
			TokenID:         big.NewInt(1),
			Name:            "Alpha",
			Symbol:          "ALP",
			Creator:         "0xabc",
			BlockNumber:     10,
			BlockTimestamp:  time.Unix(100, 0).UTC(),
			TransactionHash: "0xaa",
		},
		{
			ID:      "0xbb-0",
			TokenID: big.NewInt(2),
			Name:    "Beta",
			Symbol:  "BET",
		},
	}}
	server := newRegistryServer(t, registry)

	rec := doRequest(t, server, http.MethodGet, "/api/protocol/tokens")
	require.Equal(t, http.StatusOK, rec.Code)

	created := decodeBody(t, rec)["tokens"].([]interface{})
	require.Len(t, created, 2)
	first := created[0].(map[string]interface{})
	assert.Equal(t, "1", first["tokenId"])
	assert.Equal(t, "Alpha", first["name"])
	assert.Equal(t, "0xaa", first["transactionHash"])
}

func TestHandleGetCreatedToken(t *testing.T) {
	registry := &fakeTokenRegistry{events: []models.TokenCreatedEvent{
		{ID: "0xaa-0", TokenID: big.NewInt(7), Name: "Gamma", Symbol: "GAM"},
	}}
	server := newRegistryServer(t, registry)

	rec := doRequest(t, server, http.MethodGet, "/api/protocol/tokens/7")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "7", body["tokenId"])
	assert.Equal(t, "Gamma", body["name"])

	rec = doRequest(t, server, http.MethodGet, "/api/protocol/tokens/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/protocol/tokens/not-a-number")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListCreatedTokens_Unavailable(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := doRequest(t, server, http.MethodGet, "/api/protocol/tokens")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTradeStream_DeliversPublishedBatches(t *testing.T) {
	server, bus := newTestServer(t, nil)

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/trades"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Subscription registration races with the dial; wait for it.
	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	bus.Publish([]models.Trade{
		{TokenID: "1", Type: types.TradeMint, Amount: "1", Cost: "1000000000000", Timestamp: 300},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var batch []models.Trade
	require.NoError(t, conn.ReadJSON(&batch))
	require.Len(t, batch, 1)
	assert.Equal(t, "1", batch[0].TokenID)
}
