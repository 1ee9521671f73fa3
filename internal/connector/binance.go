package connector

import (
	"strings"
	"time"

	"github.com/Slithercze/everytrade-plugins/internal/adapters/binanceclient"
	"github.com/Slithercze/everytrade-plugins/internal/classifier"
	"github.com/Slithercze/everytrade-plugins/internal/convert"
	"github.com/Slithercze/everytrade-plugins/internal/currency"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

const (
	BinanceDescriptorID = "binanceApiConnector"

	ParamAPIKey    = "apiKey"
	ParamAPISecret = "apiSecret"
	ParamSymbols   = "symbols"
)

// ExchangeTuning carries client settings that are not connector parameters.
type ExchangeTuning struct {
	UseTestnet        bool
	BaseURL           string
	TradeLimit        int
	RequestsPerSecond float64
	MaxRetries        int
	RetryMinDelay     time.Duration
	RetryMaxDelay     time.Duration
}

// Environment is what the host provides to every factory.
type Environment struct {
	Logger  ports.Logger
	Binance ExchangeTuning
}

// BinanceDescriptor describes the Binance spot trade connector.
var BinanceDescriptor = Descriptor{
	ID:         BinanceDescriptorID,
	Name:       "Binance Connector",
	ExchangeID: "BINANCE",
	Parameters: []ParameterDescriptor{
		{ID: ParamAPIKey, Type: ParameterString, Description: "API Key", DefaultValue: ""},
		{ID: ParamAPISecret, Type: ParameterSecret, Description: "API Secret", DefaultValue: ""},
		{ID: ParamSymbols, Type: ParameterString, Description: "Symbols", DefaultValue: "BTCUSDT"},
	},
}

// NewBinanceConnector is the Factory for BinanceDescriptor.
func NewBinanceConnector(instanceID string, params map[string]string, env Environment) (ports.Connector, error) {
	client, err := binanceclient.New(binanceclient.Config{
		APIKey:            params[ParamAPIKey],
		SecretKey:         params[ParamAPISecret],
		UseTestnet:        env.Binance.UseTestnet,
		BaseURL:           env.Binance.BaseURL,
		Symbols:           SplitList(params[ParamSymbols]),
		TradeLimit:        env.Binance.TradeLimit,
		RequestsPerSecond: env.Binance.RequestsPerSecond,
		MaxRetries:        env.Binance.MaxRetries,
		RetryMinDelay:     env.Binance.RetryMinDelay,
		RetryMaxDelay:     env.Binance.RetryMaxDelay,
		Logger:            env.Logger,
	})
	if err != nil {
		return nil, err
	}

	cl, err := classifier.New(currency.NewResolver(currency.BinanceOverrides()))
	if err != nil {
		return nil, err
	}
	conv, err := convert.New(cl, env.Logger)
	if err != nil {
		return nil, err
	}

	return New(Config{
		ID:        instanceID,
		Source:    client,
		Converter: conv,
		Logger:    env.Logger,
	})
}

// DefaultRegistry returns a registry with every built-in connector.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// cannot fail on an empty registry
	_ = r.Register(BinanceDescriptor, NewBinanceConnector)
	return r
}

// SplitList splits a comma or whitespace separated list, dropping empty items.
func SplitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
}
