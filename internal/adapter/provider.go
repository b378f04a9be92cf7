// Package adapter provides clients for the external interfaces the scanner
// consumes: chain RPC reads against the minter contract, the GraphQL trade
// indexer, and IPFS gateways.
package adapter

import (
	"fmt"
	"sync"
	"time"
)

// RPCProvider tracks a primary and optional secondary RPC endpoint with
// failover and basic health accounting.
type RPCProvider struct {
	mu sync.RWMutex

	primaryURL   string
	secondaryURL string
	currentURL   string

	totalRequests    int64
	failedReqs       int64
	lastFailure      time.Time
	consecutiveFails int

	// Max consecutive failures before the provider reports unhealthy
	maxConsecutiveFails int
}

// ProviderHealth represents the health status of an RPC provider
type ProviderHealth struct {
	CurrentURL       string    `json:"currentUrl"`
	TotalRequests    int64     `json:"totalRequests"`
	FailedRequests   int64     `json:"failedRequests"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	LastFailure      time.Time `json:"lastFailure"`
	IsHealthy        bool      `json:"isHealthy"`
}

// NewRPCProvider creates a provider with a primary and optional secondary URL
func NewRPCProvider(primaryURL, secondaryURL string) (*RPCProvider, error) {
	if primaryURL == "" {
		return nil, fmt.Errorf("primary URL cannot be empty")
	}
	return &RPCProvider{
		primaryURL:          primaryURL,
		secondaryURL:        secondaryURL,
		currentURL:          primaryURL,
		maxConsecutiveFails: 5,
	}, nil
}

// CurrentURL returns the currently active RPC endpoint
func (p *RPCProvider) CurrentURL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentURL
}

// Failover switches to the next available endpoint. Returns an error when
// no alternative endpoint is configured.
func (p *RPCProvider) Failover() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.currentURL == p.primaryURL && p.secondaryURL != "" {
		p.currentURL = p.secondaryURL
		p.consecutiveFails = 0
		return nil
	}
	if p.currentURL == p.secondaryURL {
		// Cycle back to primary; it may have recovered.
		p.currentURL = p.primaryURL
		p.consecutiveFails = 0
		return nil
	}
	return fmt.Errorf("no secondary endpoint configured")
}

// RecordSuccess records a successful request
func (p *RPCProvider) RecordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalRequests++
	p.consecutiveFails = 0
}

// RecordFailure records a failed request
func (p *RPCProvider) RecordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalRequests++
	p.failedReqs++
	p.consecutiveFails++
	p.lastFailure = time.Now()
}

// IsHealthy reports whether the provider is under its failure threshold
func (p *RPCProvider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.consecutiveFails < p.maxConsecutiveFails
}

// Health returns a snapshot of the provider's health accounting
func (p *RPCProvider) Health() *ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &ProviderHealth{
		CurrentURL:       p.currentURL,
		TotalRequests:    p.totalRequests,
		FailedRequests:   p.failedReqs,
		ConsecutiveFails: p.consecutiveFails,
		LastFailure:      p.lastFailure,
		IsHealthy:        p.consecutiveFails < p.maxConsecutiveFails,
	}
}
