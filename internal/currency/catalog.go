package currency

import (
	"sort"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
)

var fiatCodes = []string{
	"USD", "EUR", "CZK", "GBP", "CHF", "PLN", "HUF", "CAD", "AUD", "JPY",
	"TRY", "BRL", "RUB", "UAH", "NGN", "ZAR", "IDR", "SEK", "NOK", "DKK",
}

// crypto currencies that commonly appear as the quote side of a pair
var quoteCryptoCodes = []string{
	"BTC", "ETH", "BNB", "USDT", "USDC", "BUSD", "TUSD", "FDUSD", "DAI", "PAX", "XRP", "TRX", "DOGE",
}

var cryptoCodes = []string{
	"LTC", "BCH", "BSV", "ADA", "DOT", "SOL", "AVAX", "MATIC", "LINK", "XLM",
	"XMR", "ETC", "EOS", "NEO", "ATOM", "XTZ", "ALGO", "VET", "FIL", "UNI",
	"AAVE", "SHIB", "DASH", "ZEC", "MIOTA", "ICX", "QTUM", "OMG", "ZRX", "BAT",
	"SAND", "MANA", "NEAR", "APT", "ARB", "OP", "TON", "PEPE", "LUNA", "CAKE",
}

// DefaultCatalog returns the built-in currency catalog.
func DefaultCatalog() []domain.Currency {
	catalog := make([]domain.Currency, 0, len(fiatCodes)+len(quoteCryptoCodes)+len(cryptoCodes))
	for _, code := range fiatCodes {
		catalog = append(catalog, domain.Currency{Code: code, Fiat: true, Quote: true})
	}
	for _, code := range quoteCryptoCodes {
		catalog = append(catalog, domain.Currency{Code: code, Quote: true})
	}
	for _, code := range cryptoCodes {
		catalog = append(catalog, domain.Currency{Code: code})
	}
	return catalog
}

// AnycoinOverrides returns the code switcher used for Anycoin accounts.
func AnycoinOverrides() Overrides {
	return Overrides{"XDG": "DOGE"}
}

// BinanceOverrides returns the code switcher used for Binance accounts.
func BinanceOverrides() Overrides {
	return Overrides{
		"BCHABC": "BCH",
		"BCHSV":  "BSV",
		"IOTA":   "MIOTA",
	}
}

// KrakenOverrides returns the code switcher used for Kraken-style codes.
func KrakenOverrides() Overrides {
	return Overrides{
		"XBT":  "BTC",
		"XXBT": "BTC",
		"XDG":  "DOGE",
		"XETH": "ETH",
		"ZUSD": "USD",
		"ZEUR": "EUR",
	}
}

// QuoteCodes returns the codes that can act as a quote currency, longest first.
func QuoteCodes() []string {
	codes := make([]string, 0, len(fiatCodes)+len(quoteCryptoCodes))
	codes = append(codes, quoteCryptoCodes...)
	codes = append(codes, fiatCodes...)
	// FDUSD must be tried before USD
	sort.SliceStable(codes, func(i, j int) bool {
		return len(codes[i]) > len(codes[j])
	})
	return codes
}
