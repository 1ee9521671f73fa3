package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawTradeRecord is one exchange-reported event as fetched, before classification.
// Amounts are nullable where the exchange may omit them.
type RawTradeRecord struct {
	ID           string
	Executed     time.Time
	BaseCode     string
	QuoteCode    string
	Kind         string // raw kind tag, parsed by the classifier
	Volume       decimal.Decimal
	UnitPrice    decimal.NullDecimal
	QuoteAmount  decimal.NullDecimal
	FeeAmount    decimal.NullDecimal
	FeeCode      string
	RebateAmount decimal.NullDecimal
	RebateCode   string
	Note         string
	Address      string
	Malformed    string // why the source row could not be parsed; such records only yield row errors
}

// String renders the record in the form used for row-level conversion errors.
func (r RawTradeRecord) String() string {
	var sb strings.Builder
	sb.WriteString("RawTradeRecord{")
	fmt.Fprintf(&sb, "id=%s, executed=%s, base=%s, quote=%s, kind=%s, volume=%s",
		r.ID, formatTime(r.Executed), r.BaseCode, r.QuoteCode, r.Kind, r.Volume.String())
	writeNullable(&sb, "unitPrice", r.UnitPrice)
	writeNullable(&sb, "quoteAmount", r.QuoteAmount)
	writeNullable(&sb, "fee", r.FeeAmount)
	if r.FeeCode != "" {
		fmt.Fprintf(&sb, ", feeCurrency=%s", r.FeeCode)
	}
	writeNullable(&sb, "rebate", r.RebateAmount)
	if r.RebateCode != "" {
		fmt.Fprintf(&sb, ", rebateCurrency=%s", r.RebateCode)
	}
	if r.Note != "" {
		fmt.Fprintf(&sb, ", note=%s", r.Note)
	}
	if r.Address != "" {
		fmt.Fprintf(&sb, ", address=%s", r.Address)
	}
	if r.Malformed != "" {
		fmt.Fprintf(&sb, ", malformed=%s", r.Malformed)
	}
	sb.WriteString("}")
	return sb.String()
}

func writeNullable(sb *strings.Builder, name string, v decimal.NullDecimal) {
	if v.Valid {
		fmt.Fprintf(sb, ", %s=%s", name, v.Decimal.String())
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
