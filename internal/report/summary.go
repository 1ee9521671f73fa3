// Package report computes statistics over converted download results.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
)

// Summary holds conversion statistics for one download result.
type Summary struct {
	// Basic Metrics
	Rows                int // clusters + errors
	Clusters            int
	RelatedTransactions int
	ConversionErrors    int

	// Fee Metrics
	ClustersWithIgnoredFee int
	ClustersWithFailedFee  int
	FeeTotals              map[string]decimal.Decimal // by currency code
	RebateTotals           map[string]decimal.Decimal

	ByKind map[domain.TransactionKind]int
}

// Summarize calculates statistics from a parse result.
func Summarize(result domain.ParseResult) *Summary {
	s := &Summary{
		Clusters:         len(result.Clusters),
		ConversionErrors: len(result.Errors),
		FeeTotals:        make(map[string]decimal.Decimal),
		RebateTotals:     make(map[string]decimal.Decimal),
		ByKind:           make(map[domain.TransactionKind]int),
	}
	s.Rows = s.Clusters + s.ConversionErrors

	for _, c := range result.Clusters {
		s.ByKind[c.Main.Kind]++
		s.RelatedTransactions += len(c.Related)
		if c.FeeIgnored() {
			s.ClustersWithIgnoredFee++
		}
		if c.FeeFailed() {
			s.ClustersWithFailedFee++
		}
		for _, r := range c.Related {
			switch r.Kind {
			case domain.KindFee:
				s.FeeTotals[r.Base.Code] = s.FeeTotals[r.Base.Code].Add(r.Quantity)
			case domain.KindRebate:
				s.RebateTotals[r.Base.Code] = s.RebateTotals[r.Base.Code].Add(r.Quantity)
			}
		}
	}
	return s
}

// Fields flattens the summary for structured logging.
func (s *Summary) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"rows":                s.Rows,
		"clusters":            s.Clusters,
		"relatedTransactions": s.RelatedTransactions,
		"conversionErrors":    s.ConversionErrors,
		"feeIgnored":          s.ClustersWithIgnoredFee,
		"feeFailed":           s.ClustersWithFailedFee,
	}
	for kind, n := range s.ByKind {
		fields["kind_"+kind.String()] = n
	}
	for code, total := range s.FeeTotals {
		fields["fee_"+code] = total.String()
	}
	return fields
}

// SortedCurrencies returns the keys of a totals map in alphabetical order.
func SortedCurrencies(totals map[string]decimal.Decimal) []string {
	codes := make([]string, 0, len(totals))
	for code := range totals {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
