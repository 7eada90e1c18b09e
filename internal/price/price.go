// Package price queries a CoinGecko-compatible token_price endpoint.
// An example query:
// https://api.coingecko.com/api/v3/simple/token_price/polygon-pos?contract_addresses=0xabc%2C0xdef&vs_currencies=usd
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/fixedpoint"
	"farmScope/internal/metrics"
	"farmScope/internal/retry"
)

const (
	DefaultBaseURL  = "https://api.coingecko.com/api/v3"
	DefaultCurrency = "usd"
	DefaultTimeout  = 15 * time.Second

	apiKeyHeader = "x-cg-pro-api-key"
)

// DefaultPlatforms maps network ids to price feed asset platforms.
var DefaultPlatforms = map[string]string{
	"bsc":   "binance-smart-chain",
	"matic": "polygon-pos",
}

// Map holds fixed-point USD prices keyed by lower-cased token address.
type Map map[string]*big.Int

// Price returns the token price, or 1.0 when the feed had no entry for it.
func (m Map) Price(token common.Address) *big.Int {
	if p, ok := m[Key(token)]; ok && p != nil {
		return new(big.Int).Set(p)
	}
	return fixedpoint.One()
}

// Key normalizes an address into a Map key.
func Key(token common.Address) string {
	return strings.ToLower(token.Hex())
}

// Config controls the price client.
type Config struct {
	BaseURL      string
	Currency     string
	APIKey       string
	Platforms    map[string]string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client fetches token prices over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a price client with defaults for empty config values.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	platforms := make(map[string]string, len(DefaultPlatforms)+len(cfg.Platforms))
	for k, v := range DefaultPlatforms {
		platforms[k] = v
	}
	for k, v := range cfg.Platforms {
		platforms[strings.ToLower(k)] = v
	}
	cfg.Platforms = platforms

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Prices returns prices for tokens on network. Failures are logged and yield
// an empty map so every lookup falls back to 1.0.
func (c *Client) Prices(ctx context.Context, network string, tokens []common.Address) Map {
	if len(tokens) == 0 {
		return Map{}
	}

	query, err := c.QueryURL(network, tokens)
	if err != nil {
		c.fail(network, err)
		return Map{}
	}

	var prices Map
	err = retry.Do(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		prices, err = c.fetch(ctx, query)
		if err != nil {
			c.logger.Debug("price fetch attempt failed", zap.String("network", network), zap.Error(err))
		}
		return err
	})
	if err != nil {
		c.fail(network, err)
		return Map{}
	}

	c.logger.Debug("prices fetched", zap.String("network", network), zap.Int("requested", len(tokens)), zap.Int("received", len(prices)))
	return prices
}

// QueryURL builds the token_price request for network and tokens.
func (c *Client) QueryURL(network string, tokens []common.Address) (string, error) {
	platform, ok := c.cfg.Platforms[strings.ToLower(network)]
	if !ok || platform == "" {
		return "", fmt.Errorf("no price platform for network %q", network)
	}

	addresses := make([]string, 0, len(tokens))
	for _, token := range tokens {
		addresses = append(addresses, Key(token))
	}

	params := url.Values{}
	params.Add("contract_addresses", strings.Join(addresses, ","))
	params.Add("vs_currencies", c.cfg.Currency)

	return fmt.Sprintf("%s/simple/token_price/%s?%s", c.cfg.BaseURL, url.PathEscape(platform), params.Encode()), nil
}

func (c *Client) fetch(ctx context.Context, query string) (Map, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, query, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("price feed status %d: %s", resp.StatusCode, truncate(body, 200))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	return c.parse(body)
}

func (c *Client) parse(body []byte) (Map, error) {
	var raw map[string]map[string]json.Number
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal prices: %w", err)
	}

	prices := make(Map, len(raw))
	for address, quotes := range raw {
		value, ok := quotes[c.cfg.Currency]
		if !ok {
			continue
		}
		f, err := value.Float64()
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", address, err)
		}
		prices[strings.ToLower(address)] = fixedpoint.FromFloat(f)
	}
	return prices, nil
}

func (c *Client) fail(network string, err error) {
	metrics.PriceFetchFailuresTotal.WithLabelValues(network).Inc()
	c.logger.Warn("price feed unavailable, fallback prices will be used",
		zap.String("network", network),
		zap.Error(err),
	)
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
