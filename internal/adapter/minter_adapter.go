package adapter

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	scanerrors "github.com/minter-scanner/internal/errors"
	"github.com/minter-scanner/internal/models"
)

// MinterAdapter reads minter contract state over chain RPC. Calls are paced
// through a token-bucket limiter to respect upstream quota, and the adapter
// fails over to the secondary endpoint after repeated errors.
type MinterAdapter struct {
	contract common.Address
	provider *RPCProvider
	limiter  *rate.Limiter

	mu     sync.Mutex
	client *ethclient.Client

	// Cache of block number -> timestamp, filled while projecting logs.
	// Cleared only with the adapter; block timestamps are immutable.
	blockTimes sync.Map
}

// MinterAdapterConfig holds configuration for creating a MinterAdapter
type MinterAdapterConfig struct {
	// ContractAddress is the deployed minter contract. Required.
	ContractAddress string

	// Provider supplies RPC endpoints with failover. Required.
	Provider *RPCProvider

	// ReadsPerSecond paces chain reads. Zero disables pacing.
	ReadsPerSecond float64
}

// NewMinterAdapter creates a new minter contract adapter
func NewMinterAdapter(cfg *MinterAdapterConfig) (*MinterAdapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.ContractAddress)
	}

	client, err := ethclient.Dial(cfg.Provider.CurrentURL())
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC endpoint: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.ReadsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ReadsPerSecond), 1)
	}

	return &MinterAdapter{
		contract: common.HexToAddress(cfg.ContractAddress),
		provider: cfg.Provider,
		limiter:  limiter,
		client:   client,
	}, nil
}

// Close releases the underlying RPC connection
func (a *MinterAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		a.client.Close()
	}
}

// tokenMetadataTuple mirrors the contract's metadata struct layout for
// ABI unpacking.
type tokenMetadataTuple struct {
	TokenId     *big.Int
	Name        string
	Symbol      string
	Creator     common.Address
	Uri         string
	BasePrice   *big.Int
	Slope       *big.Int
	Reserve     *big.Int
	TotalSupply *big.Int
}

// TokenCount returns the number of tokens registered with the minter
func (a *MinterAdapter) TokenCount(ctx context.Context) (*big.Int, error) {
	out, err := a.call(ctx, "tokenCount")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// TokenMetadataRange reads on-chain metadata for tokens in [start, end)
func (a *MinterAdapter) TokenMetadataRange(ctx context.Context, start, end *big.Int) ([]models.TokenMetadata, error) {
	out, err := a.call(ctx, "getTokenMetadataRange", start, end)
	if err != nil {
		return nil, err
	}

	tuples := *abi.ConvertType(out[0], new([]tokenMetadataTuple)).(*[]tokenMetadataTuple)
	metadata := make([]models.TokenMetadata, 0, len(tuples))
	for _, t := range tuples {
		metadata = append(metadata, models.TokenMetadata{
			TokenID:     t.TokenId,
			Name:        t.Name,
			Symbol:      t.Symbol,
			Creator:     t.Creator.Hex(),
			URI:         t.Uri,
			BasePrice:   t.BasePrice,
			Slope:       t.Slope,
			Reserve:     t.Reserve,
			TotalSupply: t.TotalSupply,
		})
	}
	return metadata, nil
}

// CurrentPrice returns the current unit price for a token, in wei
func (a *MinterAdapter) CurrentPrice(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	out, err := a.call(ctx, "getCurrentPrice", tokenID)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Reserve returns the ETH reserve backing a token, in wei
func (a *MinterAdapter) Reserve(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	out, err := a.call(ctx, "getReserve", tokenID)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// BalanceOf returns an account's balance of a token, in smallest units
func (a *MinterAdapter) BalanceOf(ctx context.Context, account string, tokenID *big.Int) (*big.Int, error) {
	if !common.IsHexAddress(account) {
		return nil, scanerrors.NewInvalidParameterError("account", "not a hex address")
	}
	out, err := a.call(ctx, "balanceOf", common.HexToAddress(account), tokenID)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// LatestBlock returns the current chain head block number
func (a *MinterAdapter) LatestBlock(ctx context.Context) (uint64, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	n, err := a.currentClient().BlockNumber(ctx)
	if err != nil {
		a.recordFailure()
		return 0, scanerrors.NewProviderError("chain-rpc", err)
	}
	a.provider.RecordSuccess()
	return n, nil
}

// FilterEvents returns the minter contract's logs in [from, to]
func (a *MinterAdapter) FilterEvents(ctx context.Context, from, to uint64) ([]ethtypes.Log, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	logs, err := a.currentClient().FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{a.contract},
	})
	if err != nil {
		a.recordFailure()
		return nil, scanerrors.NewProviderError("chain-rpc", err)
	}
	a.provider.RecordSuccess()
	return logs, nil
}

// BlockTime returns the timestamp of a block, caching results since block
// timestamps never change.
func (a *MinterAdapter) BlockTime(ctx context.Context, blockNumber uint64) (uint64, error) {
	if cached, ok := a.blockTimes.Load(blockNumber); ok {
		return cached.(uint64), nil
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	header, err := a.currentClient().HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		a.recordFailure()
		return 0, scanerrors.NewProviderError("chain-rpc", err)
	}
	a.provider.RecordSuccess()
	a.blockTimes.Store(blockNumber, header.Time)
	return header.Time, nil
}

// call packs, executes, and unpacks a read-only contract call
func (a *MinterAdapter) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	input, err := MinterABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &a.contract, Data: input}
	output, err := a.currentClient().CallContract(ctx, msg, nil)
	if err != nil {
		a.recordFailure()
		if scanerrors.IsRateLimited(err) {
			return nil, scanerrors.NewRateLimitedError("chain-rpc")
		}
		return nil, scanerrors.NewProviderError("chain-rpc", err)
	}
	a.provider.RecordSuccess()

	out, err := MinterABI.Unpack(method, output)
	if err != nil {
		return nil, scanerrors.NewParseError(method+" result", err)
	}
	return out, nil
}

// currentClient returns the active RPC client
func (a *MinterAdapter) currentClient() *ethclient.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}

// recordFailure tracks a failed call and fails over to the secondary
// endpoint once the provider reports unhealthy.
func (a *MinterAdapter) recordFailure() {
	a.provider.RecordFailure()
	if a.provider.IsHealthy() {
		return
	}
	if err := a.provider.Failover(); err != nil {
		return
	}
	client, err := ethclient.Dial(a.provider.CurrentURL())
	if err != nil {
		return
	}
	a.mu.Lock()
	old := a.client
	a.client = client
	a.mu.Unlock()
	if old != nil {
		old.Close()
	}
}
