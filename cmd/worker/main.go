// Package main provides the event worker entry point for the minter scanner service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/minter-scanner/internal/adapter"
	"github.com/minter-scanner/internal/config"
	"github.com/minter-scanner/internal/logging"
	"github.com/minter-scanner/internal/storage"
	"github.com/minter-scanner/internal/worker"
)

func main() {
	fmt.Println("Minter Scanner Event Worker")
	log.Println("Worker starting...")

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

	if cfg.Chain.RPCPrimary == "" || cfg.Chain.ContractAddress == "" {
		logger.Fatal("CHAIN_RPC_PRIMARY and MINTER_CONTRACT_ADDRESS are required")
	}

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	logger.Info("Database connections established")

	// Initialize the chain adapter
	provider, err := adapter.NewRPCProvider(cfg.Chain.RPCPrimary, cfg.Chain.RPCSecondary)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create RPC provider")
	}
	minter, err := adapter.NewMinterAdapter(&adapter.MinterAdapterConfig{
		ContractAddress: cfg.Chain.ContractAddress,
		Provider:        provider,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create minter adapter")
	}
	defer minter.Close()

	logger.WithFields(map[string]interface{}{
		"contract":   cfg.Chain.ContractAddress,
		"startBlock": cfg.Chain.StartBlock,
	}).Info("Minter adapter initialized")

	// Wire the projection sink and cursor store
	sink := worker.NewStorageSink(
		storage.NewTradeEventRepository(clickhouse),
		storage.NewTokenRepository(postgres),
	)
	cursors := storage.NewCursorRepository(postgres)

	eventWorker := worker.NewEventWorker(minter, minter, sink, cursors, worker.Config{
		PollInterval:     cfg.Chain.PollInterval,
		StartBlock:       cfg.Chain.StartBlock,
		MaxBlocksPerPoll: cfg.Chain.MaxBlocksPerPoll,
	})
	eventWorker.Start(context.Background())

	logger.Info("Event worker started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received, stopping worker...")
	eventWorker.Stop()
	logger.Info("Worker exited")
}
