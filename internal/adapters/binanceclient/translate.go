package binanceclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/Slithercze/everytrade-plugins/internal/currency"
	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/numeric"
)

var quoteCodes = currency.QuoteCodes()

// tradeID builds a block-unique id; Binance trade ids are only unique per symbol.
func tradeID(symbol string, id int64) string {
	return fmt.Sprintf("%s:%d", symbol, id)
}

// splitSymbol splits a spot symbol such as ETHBTC into base and quote codes.
func splitSymbol(symbol string) (string, string, error) {
	symbol = strings.ToUpper(symbol)
	for _, quote := range quoteCodes {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return strings.TrimSuffix(symbol, quote), quote, nil
		}
	}
	return "", "", fmt.Errorf("cannot split symbol %q into base and quote", symbol)
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("could not parse %s '%s': %w", field, value, err)
	}
	return d, nil
}

// malformedTrade keeps the identity and raw amounts of a trade that failed translation.
func malformedTrade(t *binance.TradeV3, cause error) domain.RawTradeRecord {
	kind := domain.KindSell
	if t.IsBuyer {
		kind = domain.KindBuy
	}
	base, quote, err := splitSymbol(t.Symbol)
	if err != nil {
		base, quote = t.Symbol, ""
	}
	return domain.RawTradeRecord{
		ID:        tradeID(t.Symbol, t.ID),
		Executed:  time.UnixMilli(t.Time).UTC(),
		BaseCode:  base,
		QuoteCode: quote,
		Kind:      kind.String(),
		FeeCode:   t.CommissionAsset,
		Malformed: fmt.Sprintf("%v (price=%q qty=%q quoteQty=%q commission=%q)",
			cause, t.Price, t.Quantity, t.QuoteQuantity, t.Commission),
	}
}

// translateTrade converts a Binance account trade into a raw record.
func translateTrade(t *binance.TradeV3) (domain.RawTradeRecord, error) {
	base, quote, err := splitSymbol(t.Symbol)
	if err != nil {
		return domain.RawTradeRecord{}, err
	}
	qty, err := parseDecimal("quantity", t.Quantity)
	if err != nil {
		return domain.RawTradeRecord{}, err
	}
	price, err := parseDecimal("price", t.Price)
	if err != nil {
		return domain.RawTradeRecord{}, err
	}
	quoteQty := decimal.NullDecimal{}
	if t.QuoteQuantity != "" {
		q, err := parseDecimal("quoteQty", t.QuoteQuantity)
		if err != nil {
			return domain.RawTradeRecord{}, err
		}
		quoteQty = decimal.NewNullDecimal(q)
	}
	unitPrice := decimal.NewNullDecimal(price)
	if price.IsZero() {
		unitPrice = numeric.UnitPrice(quoteQty, decimal.NewNullDecimal(qty))
	}
	fee := decimal.NullDecimal{}
	if t.Commission != "" {
		f, err := parseDecimal("commission", t.Commission)
		if err != nil {
			return domain.RawTradeRecord{}, err
		}
		fee = decimal.NewNullDecimal(f)
	}

	kind := domain.KindSell
	if t.IsBuyer {
		kind = domain.KindBuy
	}

	return domain.RawTradeRecord{
		ID:          tradeID(t.Symbol, t.ID),
		Executed:    time.UnixMilli(t.Time).UTC(),
		BaseCode:    base,
		QuoteCode:   quote,
		Kind:        kind.String(),
		Volume:      qty,
		UnitPrice:   unitPrice,
		QuoteAmount: quoteQty,
		FeeAmount:   fee,
		FeeCode:     t.CommissionAsset,
	}, nil
}
