package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	defaultTradeLimit = 1000 // myTrades maximum page size
)

// Client implements the ports.TradeSource interface using the go-binance spot API.
type Client struct {
	spotClient    *binance.Client
	logger        ports.Logger
	symbols       []string
	tradeLimit    int
	limiter       *rate.Limiter
	maxRetries    int
	retryMinDelay time.Duration
	retryMaxDelay time.Duration
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey            string
	SecretKey         string
	UseTestnet        bool
	BaseURL           string   // Overrides the production/testnet URL when set
	Symbols           []string // Spot symbols to read trades for, e.g. BTCUSDT
	TradeLimit        int      // Trades requested per symbol and call
	RequestsPerSecond float64  // Zero or less disables client-side limiting
	MaxRetries        int      // Retries for transient errors (rate limit, connection)
	RetryMinDelay     time.Duration
	RetryMaxDelay     time.Duration
	Logger            ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required for Binance client", ports.ErrConfigurationError)
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Trade history requests will be rejected.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{
		"baseURL": client.BaseURL,
		"symbols": strings.Join(cfg.Symbols, ","),
	})

	tradeLimit := cfg.TradeLimit
	if tradeLimit <= 0 || tradeLimit > defaultTradeLimit {
		tradeLimit = defaultTradeLimit
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	minDelay := cfg.RetryMinDelay
	if minDelay <= 0 {
		minDelay = 500 * time.Millisecond
	}
	maxDelay := cfg.RetryMaxDelay
	if maxDelay < minDelay {
		maxDelay = minDelay * 10
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	symbols := make([]string, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			if _, _, err := splitSymbol(s); err != nil {
				return nil, fmt.Errorf("%w: %w", ports.ErrConfigurationError, err)
			}
			symbols = append(symbols, s)
		}
	}

	return &Client{
		spotClient:    client,
		logger:        cfg.Logger,
		symbols:       symbols,
		tradeLimit:    tradeLimit,
		limiter:       rate.NewLimiter(limit, 1),
		maxRetries:    maxRetries,
		retryMinDelay: minDelay,
		retryMaxDelay: maxDelay,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		// Map specific Binance error codes to custom errors
		var mappedErr error
		switch apiErr.Code {
		case -1003, -1015: // Too many requests / orders
			mappedErr = ports.ErrRateLimited
		case -1001, -1016: // Disconnected / service shutting down
			mappedErr = ports.ErrExchangeUnavailable
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Signature for this request is not valid
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1121: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2014: // API-key format invalid
			mappedErr = ports.ErrInvalidAPIKeys
		case -2015: // Invalid API-key, IP, or permissions for action
			mappedErr = ports.ErrInvalidAPIKeys
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		// Default for other errors (e.g., parsing errors within the adapter)
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

func isRetryable(err error) bool {
	return errors.Is(err, ports.ErrRateLimited) ||
		errors.Is(err, ports.ErrConnectionFailed) ||
		errors.Is(err, ports.ErrExchangeUnavailable)
}

// withRetry runs call under the rate limiter and retries transient failures with backoff.
func (c *Client) withRetry(ctx context.Context, op string, call func() error) error {
	b := &backoff.Backoff{
		Min:    c.retryMinDelay,
		Max:    c.retryMaxDelay,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return c.handleError(ctx, err, op)
		}

		err := c.handleError(ctx, call(), op)
		if err == nil {
			return nil
		}
		if attempt >= c.maxRetries || !isRetryable(err) {
			return err
		}

		delay := b.Duration()
		c.logger.Warn(ctx, op+": retrying after transient error", map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay.String(),
		})
		select {
		case <-ctx.Done():
			return c.handleError(ctx, ctx.Err(), op)
		case <-time.After(delay):
		}
	}
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	err := c.withRetry(ctx, op, func() error {
		return c.spotClient.NewPingService().Do(ctx)
	})
	if err != nil {
		return err
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// ListTrades retrieves the most recent account trades for one symbol.
func (c *Client) ListTrades(ctx context.Context, symbol string) ([]domain.RawTradeRecord, error) {
	op := "ListTrades"
	var trades []*binance.TradeV3
	err := c.withRetry(ctx, op, func() error {
		var err error
		trades, err = c.spotClient.NewListTradesService().
			Symbol(symbol).
			Limit(c.tradeLimit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	records := make([]domain.RawTradeRecord, 0, len(trades))
	for _, t := range trades {
		record, err := translateTrade(t)
		if err != nil {
			// kept in the block so it becomes a row error instead of failing the fetch
			c.logger.Warn(ctx, op+": malformed trade", map[string]interface{}{
				"symbol": symbol,
				"id":     t.ID,
				"error":  err.Error(),
			})
			record = malformedTrade(t, err)
		}
		records = append(records, record)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "count": len(records)})
	return records, nil
}

// FetchTrades returns the recent trades of every configured symbol as one block ordered oldest to newest.
// Any failing symbol fails the whole block.
func (c *Client) FetchTrades(ctx context.Context) ([]domain.RawTradeRecord, error) {
	var block []domain.RawTradeRecord
	for _, symbol := range c.symbols {
		records, err := c.ListTrades(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", symbol, err)
		}
		block = append(block, records...)
	}

	sort.SliceStable(block, func(i, j int) bool {
		return block[i].Executed.Before(block[j].Executed)
	})
	return block, nil
}
