// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/minter-scanner/internal/logging"
	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/storage"
	"github.com/minter-scanner/internal/store"
	tradebus "github.com/minter-scanner/internal/trades"
)

// BalanceSource reads token balances from chain
type BalanceSource interface {
	BalanceOf(ctx context.Context, account string, tokenID *big.Int) (*big.Int, error)
}

// TokenRegistry reads the projected TokenCreated and fee recipient events
type TokenRegistry interface {
	ListTokenCreated(ctx context.Context) ([]models.TokenCreatedEvent, error)
	GetTokenCreated(ctx context.Context, tokenID *big.Int) (*models.TokenCreatedEvent, error)
	CurrentFeeRecipient(ctx context.Context) (string, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server

	tokens   *store.TokenStore
	trades   *store.TradeStore
	balances *store.BalanceStore
	bus      *tradebus.Bus

	chain       BalanceSource
	tokenRepo   TokenRegistry
	tradeEvents *storage.TradeEventRepository

	config *ServerConfig
	logger *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int
}

// Deps bundles the server's collaborators. Chain, TokenRepo, and
// TradeEvents are optional; endpoints backed by a missing dependency
// answer 503.
type Deps struct {
	Tokens      *store.TokenStore
	Trades      *store.TradeStore
	Balances    *store.BalanceStore
	Bus         *tradebus.Bus
	Chain       BalanceSource
	TokenRepo   TokenRegistry
	TradeEvents *storage.TradeEventRepository
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps Deps) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		tokens:      deps.Tokens,
		trades:      deps.Trades,
		balances:    deps.Balances,
		bus:         deps.Bus,
		chain:       deps.Chain,
		tokenRepo:   deps.TokenRepo,
		tradeEvents: deps.TradeEvents,
		config:      config,
		logger:      logging.GetGlobalLogger().WithField("component", "api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond)

	// Middleware order matters: recovery wraps everything downstream.
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Token endpoints
	api.HandleFunc("/tokens", s.handleListTokens).Methods("GET")
	api.HandleFunc("/tokens/{id}", s.handleGetToken).Methods("GET")
	api.HandleFunc("/tokens/{id}/price", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/tokens/{id}/burn-value", s.handleBurnValue).Methods("GET")
	api.HandleFunc("/tokens/{id}/trades", s.handleTokenTrades).Methods("GET")

	// Trade endpoints
	api.HandleFunc("/trades", s.handleListTrades).Methods("GET")
	api.HandleFunc("/trades/history", s.handleTradeHistory).Methods("GET")

	// Balance endpoints
	api.HandleFunc("/balances/{account}", s.handleGetBalances).Methods("GET")

	// Protocol endpoints
	api.HandleFunc("/protocol/fee-recipient", s.handleFeeRecipient).Methods("GET")
	api.HandleFunc("/protocol/tokens", s.handleListCreatedTokens).Methods("GET")
	api.HandleFunc("/protocol/tokens/{id}", s.handleGetCreatedToken).Methods("GET")

	// Live trade feed
	s.router.HandleFunc("/ws/trades", s.handleTradeStream).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "minter-scanner",
	})
}

// Router exposes the configured router, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
