package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	scanerrors "github.com/minter-scanner/internal/errors"
	"github.com/minter-scanner/internal/logging"
	"github.com/minter-scanner/internal/models"
	"github.com/minter-scanner/internal/retry"
)

// MetadataCache stores resolved IPFS documents keyed by CID. A cache error
// is treated as a miss; resolution proceeds against the gateways.
type MetadataCache interface {
	GetMetadata(ctx context.Context, cid string) (*models.IPFSMetadata, bool)
	SetMetadata(ctx context.Context, cid string, meta *models.IPFSMetadata)
}

// IPFSClient resolves token metadata documents from an ordered list of
// public gateways. Each gateway gets up to MaxAttempts tries with
// exponential backoff before the client moves to the next one; a document
// counts as resolved only if it carries a non-empty image field.
type IPFSClient struct {
	gateways       []string
	requestTimeout time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	cache          MetadataCache
	httpClient     *http.Client
	logger         *logging.Logger
}

// IPFSClientConfig holds configuration for creating an IPFSClient
type IPFSClientConfig struct {
	Gateways       []string
	RequestTimeout time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	Cache          MetadataCache // optional
}

// NewIPFSClient creates a new IPFS gateway client
func NewIPFSClient(cfg *IPFSClientConfig) (*IPFSClient, error) {
	if cfg == nil || len(cfg.Gateways) == 0 {
		return nil, fmt.Errorf("at least one gateway is required")
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 3
	}
	backoff := cfg.InitialBackoff
	if backoff == 0 {
		backoff = time.Second
	}

	return &IPFSClient{
		gateways:       cfg.Gateways,
		requestTimeout: timeout,
		maxAttempts:    attempts,
		initialBackoff: backoff,
		cache:          cfg.Cache,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logging.GetGlobalLogger().WithField("component", "ipfs"),
	}, nil
}

var gatewayPrefix = regexp.MustCompile(`^https?://[^/]+/ipfs/`)

// ExtractCID normalizes a token URI to its bare content identifier.
// Handles ipfs://ipfs/, ipfs://, ipfs/, and full gateway URL forms.
func ExtractCID(uri string) string {
	cid := strings.TrimPrefix(uri, "ipfs://ipfs/")
	if cid == uri {
		cid = strings.TrimPrefix(uri, "ipfs://")
	}
	cid = strings.TrimPrefix(cid, "ipfs/")
	return gatewayPrefix.ReplaceAllString(cid, "")
}

// GatewayURL converts an ipfs-style URI to a fetchable URL on the given
// gateway. Returns the input unchanged when it is already a plain URL.
func GatewayURL(uri, gateway string) string {
	if uri == "" {
		return ""
	}
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}
	return gateway + ExtractCID(uri)
}

// FetchMetadata resolves the JSON document behind a token URI. All gateway
// failures degrade to (nil, nil): a missing document is a partial state,
// not an error that should abort enrichment of other tokens.
func (c *IPFSClient) FetchMetadata(ctx context.Context, uri string) (*models.IPFSMetadata, error) {
	if uri == "" {
		return nil, nil
	}
	cid := ExtractCID(uri)

	if c.cache != nil {
		if meta, ok := c.cache.GetMetadata(ctx, cid); ok {
			return meta, nil
		}
	}

	rateLimited := false
	for _, gateway := range c.gateways {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		meta, err := c.fetchFromGateway(ctx, gateway, cid)
		if err != nil {
			if scanerrors.IsRateLimited(err) {
				rateLimited = true
			}
			c.logger.WithFields(map[string]interface{}{
				"gateway": gateway,
				"cid":     cid,
				"error":   err.Error(),
			}).Warn("Gateway failed, trying next")
			continue
		}

		if c.cache != nil {
			c.cache.SetMetadata(ctx, cid, meta)
		}
		return meta, nil
	}

	c.logger.WithField("cid", cid).Warn("All gateways failed")
	if rateLimited {
		// Surfaced so the enricher can quarantine the token instead of
		// hammering the gateways again next cycle.
		return nil, scanerrors.NewRateLimitedError("ipfs")
	}
	return nil, nil
}

// fetchFromGateway fetches and validates a metadata document from one
// gateway, retrying with exponential backoff.
func (c *IPFSClient) fetchFromGateway(ctx context.Context, gateway, cid string) (*models.IPFSMetadata, error) {
	url := gateway + cid

	var meta models.IPFSMetadata
	err := retry.WithBackoff(ctx, &retry.Config{
		MaxAttempts:  c.maxAttempts,
		InitialDelay: c.initialBackoff,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}, func(ctx context.Context, attempt int) error {
		reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Cache-Control", "no-store")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP error %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &meta); err != nil {
			return fmt.Errorf("malformed metadata JSON: %w", err)
		}
		if meta.Image == "" {
			return fmt.Errorf("metadata missing image field")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}
