package currency

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(AnycoinOverrides())

	tests := []struct {
		name     string
		code     string
		wantCode string
		wantFiat bool
		wantErr  error
	}{
		{name: "crypto", code: "BTC", wantCode: "BTC"},
		{name: "fiat", code: "usd", wantCode: "USD", wantFiat: true},
		{name: "override", code: "XDG", wantCode: "DOGE"},
		{name: "whitespace", code: " eth ", wantCode: "ETH"},
		{name: "unknown", code: "NOPE", wantErr: ports.ErrUnrecognizedValue},
		{name: "empty", code: "", wantErr: ports.ErrUnrecognizedValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.code)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantFiat, got.Fiat)
		})
	}
}

func TestResolver_OverridesAreCopied(t *testing.T) {
	overrides := Overrides{"XBT": "BTC"}
	r := NewResolver(overrides)
	overrides["XBT"] = "ETH"
	overrides["FOO"] = "BTC"

	got, err := r.Resolve("XBT")
	require.NoError(t, err)
	assert.Equal(t, "BTC", got.Code)

	_, err = r.Resolve("FOO")
	assert.ErrorIs(t, err, ports.ErrUnrecognizedValue)
}

func TestResolver_WithoutOverrides(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Resolve("XDG")
	assert.ErrorIs(t, err, ports.ErrUnrecognizedValue)
}

func TestResolver_ValidatePair(t *testing.T) {
	r := NewResolver(nil)
	btc := domain.Currency{Code: "BTC", Quote: true}
	ada := domain.Currency{Code: "ADA"}
	usd := domain.Currency{Code: "USD", Fiat: true, Quote: true}

	assert.NoError(t, r.ValidatePair(btc, usd))
	assert.NoError(t, r.ValidatePair(ada, btc))
	assert.ErrorIs(t, r.ValidatePair(btc, btc), ports.ErrValidation)
	assert.ErrorIs(t, r.ValidatePair(btc, ada), ports.ErrValidation)
	assert.ErrorIs(t, r.ValidatePair(btc, domain.Currency{}), ports.ErrValidation)
}

func TestQuoteCodes_LongestFirst(t *testing.T) {
	codes := QuoteCodes()
	require.NotEmpty(t, codes)
	for i := 1; i < len(codes); i++ {
		assert.GreaterOrEqual(t, len(codes[i-1]), len(codes[i]))
	}
	assert.Contains(t, codes, "FDUSD")
	assert.Contains(t, codes, "EUR")
}
