package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

const btcTrades = `[{"symbol":"BTCUSDT","id":28457,"orderId":100234,"orderListId":-1,"price":"30000.00","qty":"0.5","quoteQty":"15000.00","commission":"1.5","commissionAsset":"USDT","time":1700000002000,"isBuyer":true,"isMaker":false,"isBestMatch":true}]`

const ethTrades = `[{"symbol":"ETHBTC","id":7,"orderId":11,"orderListId":-1,"price":"0.05","qty":"2","quoteQty":"0.1","commission":"0.001","commissionAsset":"BNB","time":1700000001000,"isBuyer":false,"isMaker":true,"isBestMatch":true}]`

func newTestClient(t *testing.T, handler http.HandlerFunc, symbols ...string) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{
		APIKey:        "key",
		SecretKey:     "secret",
		BaseURL:       server.URL,
		Symbols:       symbols,
		MaxRetries:    2,
		RetryMinDelay: time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
		Logger:        &mockLogger{},
	})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Symbols: []string{"BTCUSDT"}})
	assert.Error(t, err)

	_, err = New(Config{Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{Logger: &mockLogger{}, Symbols: []string{"BTCUSDT", "BTCARS"}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
	assert.Contains(t, err.Error(), "BTCARS")
}

func TestClient_FetchTrades(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/myTrades", r.URL.Path)
		switch r.URL.Query().Get("symbol") {
		case "BTCUSDT":
			fmt.Fprint(w, btcTrades)
		case "ETHBTC":
			fmt.Fprint(w, ethTrades)
		default:
			fmt.Fprint(w, "[]")
		}
	}, "btcusdt", "ETHBTC")

	block, err := c.FetchTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, block, 2)

	// ordered oldest to newest across symbols
	assert.Equal(t, "ETHBTC:7", block[0].ID)
	assert.Equal(t, "SELL", block[0].Kind)
	assert.Equal(t, "BNB", block[0].FeeCode)

	btc := block[1]
	assert.Equal(t, "BTCUSDT:28457", btc.ID)
	assert.Equal(t, "BTC", btc.BaseCode)
	assert.Equal(t, "USDT", btc.QuoteCode)
	assert.Equal(t, "BUY", btc.Kind)
	assert.True(t, decimal.RequireFromString("0.5").Equal(btc.Volume))
	assert.True(t, decimal.RequireFromString("30000").Equal(btc.UnitPrice.Decimal))
	assert.True(t, decimal.RequireFromString("1.5").Equal(btc.FeeAmount.Decimal))
	assert.Equal(t, time.UnixMilli(1700000002000).UTC(), btc.Executed)
}

func TestClient_FetchTradesKeepsMalformedTrade(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"symbol":"BTCUSDT","id":1,"orderId":1,"price":"30000","qty":"0.5","quoteQty":"15000","commission":"1.5","commissionAsset":"USDT","time":1700000000000,"isBuyer":true},
			{"symbol":"BTCUSDT","id":2,"orderId":2,"price":"30000","qty":"lots","quoteQty":"15000","commission":"1.5","commissionAsset":"USDT","time":1700000001000,"isBuyer":false}
		]`)
	}, "BTCUSDT")

	block, err := c.FetchTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, block, 2)

	assert.Empty(t, block[0].Malformed)
	bad := block[1]
	assert.Equal(t, "BTCUSDT:2", bad.ID)
	assert.Equal(t, "SELL", bad.Kind)
	assert.Contains(t, bad.Malformed, "quantity")
	assert.Contains(t, bad.Malformed, `qty="lots"`)
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"code":-1003,"msg":"Too many requests"}`)
			return
		}
		fmt.Fprint(w, btcTrades)
	}, "BTCUSDT")

	block, err := c.FetchTrades(context.Background())
	require.NoError(t, err)
	assert.Len(t, block, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_AuthErrorIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`)
	}, "BTCUSDT")

	_, err := c.FetchTrades(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInvalidAPIKeys)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"code":-1003,"msg":"Too many requests"}`)
	}, "BTCUSDT")

	_, err := c.FetchTrades(context.Background())
	assert.ErrorIs(t, err, ports.ErrRateLimited)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Ping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ping", r.URL.Path)
		fmt.Fprint(w, `{}`)
	}, "BTCUSDT")
	assert.NoError(t, c.Ping(context.Background()))
}

func TestHandleError(t *testing.T) {
	c := &Client{logger: &mockLogger{}}
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "rate limit", err: &common.APIError{Code: -1003}, want: ports.ErrRateLimited},
		{name: "signature", err: &common.APIError{Code: -1022}, want: ports.ErrAuthenticationFailed},
		{name: "bad param", err: &common.APIError{Code: -1121}, want: ports.ErrInvalidRequest},
		{name: "unmapped", err: &common.APIError{Code: -9999}, want: ports.ErrUnknown},
		{name: "deadline", err: context.DeadlineExceeded, want: ports.ErrTimeout},
		{name: "canceled", err: context.Canceled, want: ports.ErrContextCanceled},
		{name: "refused", err: errors.New("dial tcp: connection refused"), want: ports.ErrConnectionFailed},
		{name: "other", err: errors.New("boom"), want: ports.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.handleError(ctx, tt.err, "Op")
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, c.handleError(ctx, nil, "Op"))
}

func TestSplitSymbol(t *testing.T) {
	tests := []struct {
		symbol    string
		wantBase  string
		wantQuote string
		wantErr   bool
	}{
		{symbol: "BTCUSDT", wantBase: "BTC", wantQuote: "USDT"},
		{symbol: "ETHBTC", wantBase: "ETH", wantQuote: "BTC"},
		{symbol: "BTCFDUSD", wantBase: "BTC", wantQuote: "FDUSD"},
		{symbol: "BTCEUR", wantBase: "BTC", wantQuote: "EUR"},
		{symbol: "usdt", wantErr: true},
		{symbol: "FOOBAR", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			base, quote, err := splitSymbol(tt.symbol)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantQuote, quote)
		})
	}
}

func TestTranslateTrade(t *testing.T) {
	t.Run("price derived from quote quantity", func(t *testing.T) {
		rec, err := translateTrade(&binance.TradeV3{
			ID: 1, Symbol: "ETHUSDT", Price: "0", Quantity: "2", QuoteQuantity: "5000",
			Commission: "0", CommissionAsset: "ETH", Time: 1700000000000, IsBuyer: true,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.KindBuy.String(), rec.Kind)
		require.True(t, rec.UnitPrice.Valid)
		assert.True(t, decimal.NewFromInt(2500).Equal(rec.UnitPrice.Decimal))
		assert.True(t, rec.FeeAmount.Valid)
		assert.True(t, rec.FeeAmount.Decimal.IsZero())
	})

	t.Run("invalid quantity", func(t *testing.T) {
		_, err := translateTrade(&binance.TradeV3{ID: 2, Symbol: "ETHUSDT", Price: "1", Quantity: "abc"})
		assert.Error(t, err)
	})
}

func TestMalformedTrade(t *testing.T) {
	trade := &binance.TradeV3{ID: 9, Symbol: "BTCARS", Price: "1", Quantity: "2", Time: 1700000000000, IsBuyer: true}
	_, err := translateTrade(trade)
	require.Error(t, err)

	rec := malformedTrade(trade, err)
	assert.Equal(t, "BTCARS:9", rec.ID)
	assert.Equal(t, "BTCARS", rec.BaseCode)
	assert.Empty(t, rec.QuoteCode)
	assert.Equal(t, "BUY", rec.Kind)
	assert.Contains(t, rec.Malformed, "cannot split symbol")
	assert.Contains(t, rec.String(), "malformed=")
}
