// Package main provides the API server entry point for the minter scanner service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minter-scanner/internal/adapter"
	"github.com/minter-scanner/internal/api"
	"github.com/minter-scanner/internal/config"
	"github.com/minter-scanner/internal/enrich"
	"github.com/minter-scanner/internal/logging"
	"github.com/minter-scanner/internal/storage"
	"github.com/minter-scanner/internal/store"
	"github.com/minter-scanner/internal/trades"
)

func main() {
	fmt.Println("Minter Scanner API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Connect to Redis. The client stores persist their snapshots here.
	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	ctx := context.Background()

	// Hydrate the client stores from their persisted snapshots
	tokenStore := store.NewTokenStore(redis)
	tradeStore := store.NewTradeStore(redis)
	balanceStore := store.NewBalanceStore(redis)
	tokenStore.Hydrate(ctx)
	tradeStore.Hydrate(ctx)
	balanceStore.Hydrate(ctx)

	logger.WithFields(map[string]interface{}{
		"tokens": tokenStore.Len(),
		"trades": len(tradeStore.All()),
	}).Info("Stores hydrated")

	// Initialize the chain adapter. Optional: without an RPC endpoint the
	// chain-backed endpoints answer 503 and enrichment is disabled.
	var minter *adapter.MinterAdapter
	if cfg.Chain.RPCPrimary != "" && cfg.Chain.ContractAddress != "" {
		provider, err := adapter.NewRPCProvider(cfg.Chain.RPCPrimary, cfg.Chain.RPCSecondary)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create RPC provider")
		}
		minter, err = adapter.NewMinterAdapter(&adapter.MinterAdapterConfig{
			ContractAddress: cfg.Chain.ContractAddress,
			Provider:        provider,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create minter adapter")
		}
		defer minter.Close()
		logger.WithField("contract", cfg.Chain.ContractAddress).Info("Minter adapter initialized")
	} else {
		logger.Warn("No chain RPC configured - chain-backed endpoints disabled")
	}

	// Metadata enrichment pipeline
	var enricher *enrich.Enricher
	if minter != nil {
		ipfs, err := adapter.NewIPFSClient(&adapter.IPFSClientConfig{
			Gateways:       cfg.IPFS.Gateways,
			RequestTimeout: cfg.IPFS.RequestTimeout,
			MaxAttempts:    cfg.IPFS.MaxAttempts,
			InitialBackoff: cfg.IPFS.InitialBackoff,
			Cache:          storage.NewMetadataCacheStore(redis, cfg.IPFS.CacheTTL),
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create IPFS client")
		}

		enricher = enrich.NewEnricher(minter, ipfs, tokenStore, tradeStore, enrich.Config{
			BatchSize:     cfg.Enrich.BatchSize,
			TokenDelay:    cfg.Enrich.TokenDelay,
			BatchDelay:    cfg.Enrich.BatchDelay,
			QuarantineTTL: cfg.Enrich.QuarantineTTL,
			PriceTTL:      cfg.Enrich.PriceTTL,
		})
		enricher.Start(ctx, cfg.Chain.PollInterval)
		defer enricher.Stop()
		logger.Info("Enrichment pipeline started")
	}

	// Trade feed
	bus := trades.NewBus()

	var poller *trades.Poller
	if cfg.Indexer.URL != "" {
		subgraph := adapter.NewSubgraphClient(cfg.Indexer.URL, cfg.Indexer.APIKey, cfg.Indexer.BulkLimit)
		poller = trades.NewPoller(subgraph, tradeStore, tokenStore, bus, cfg.Indexer.PollInterval)
		poller.Start(ctx)
		defer poller.Stop()
		logger.WithField("url", cfg.Indexer.URL).Info("Trade poller started")
	} else {
		logger.Warn("No indexer URL configured - trade polling disabled")
	}

	// Projection stores back the history and fee recipient endpoints.
	// Optional: the server serves live state without them.
	var tokenRepo api.TokenRegistry
	var tradeEvents *storage.TradeEventRepository

	if postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres); err != nil {
		logger.WithError(err).Warn("Postgres unavailable - fee recipient endpoint disabled")
	} else {
		defer postgres.Close()
		tokenRepo = storage.NewTokenRepository(postgres)
	}

	if clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse); err != nil {
		logger.WithError(err).Warn("ClickHouse unavailable - trade history endpoint disabled")
	} else {
		defer clickhouse.Close()
		tradeEvents = storage.NewTradeEventRepository(clickhouse)
	}

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
	}

	var chain api.BalanceSource
	if minter != nil {
		chain = minter
	}

	server := api.NewServer(serverConfig, api.Deps{
		Tokens:      tokenStore,
		Trades:      tradeStore,
		Balances:    balanceStore,
		Bus:         bus,
		Chain:       chain,
		TokenRepo:   tokenRepo,
		TradeEvents: tradeEvents,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
