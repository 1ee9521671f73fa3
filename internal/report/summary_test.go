package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
)

func cluster(kind domain.TransactionKind, fees ...string) *domain.TransactionCluster {
	usdt := domain.Currency{Code: "USDT"}
	var related []domain.CanonicalTransaction
	for _, f := range fees {
		related = append(related, domain.CanonicalTransaction{Kind: domain.KindFee, Base: usdt, Quote: usdt, Quantity: decimal.RequireFromString(f)})
	}
	return domain.NewTransactionCluster(domain.CanonicalTransaction{Kind: kind}, related)
}

func TestSummarize(t *testing.T) {
	ignored := cluster(domain.KindSell)
	ignored.Annotate([]domain.FeeIssue{{Source: domain.KindFee, Reason: "x"}}, nil)

	rebate := cluster(domain.KindBuy)
	rebate.Related = append(rebate.Related, domain.CanonicalTransaction{
		Kind: domain.KindRebate, Base: domain.Currency{Code: "BNB"}, Quantity: decimal.RequireFromString("0.1"),
	})

	s := Summarize(domain.ParseResult{
		Clusters: []*domain.TransactionCluster{
			cluster(domain.KindBuy, "1.5"),
			cluster(domain.KindBuy, "0.25"),
			ignored,
			rebate,
		},
		Errors: []domain.ConversionError{{Row: "r", Message: "m", Kind: domain.RowErrorFailed}},
	})

	assert.Equal(t, 5, s.Rows)
	assert.Equal(t, 4, s.Clusters)
	assert.Equal(t, 1, s.ConversionErrors)
	assert.Equal(t, 3, s.RelatedTransactions)
	assert.Equal(t, 1, s.ClustersWithIgnoredFee)
	assert.Equal(t, 0, s.ClustersWithFailedFee)
	assert.Equal(t, 3, s.ByKind[domain.KindBuy])
	assert.Equal(t, 1, s.ByKind[domain.KindSell])
	require.Contains(t, s.FeeTotals, "USDT")
	assert.Equal(t, "1.75", s.FeeTotals["USDT"].String())
	assert.Equal(t, "0.1", s.RebateTotals["BNB"].String())

	fields := s.Fields()
	assert.Equal(t, 4, fields["clusters"])
	assert.Equal(t, "1.75", fields["fee_USDT"])
	assert.Equal(t, 3, fields["kind_BUY"])
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(domain.ParseResult{})
	assert.Zero(t, s.Rows)
	assert.Empty(t, s.FeeTotals)
}

func TestSortedCurrencies(t *testing.T) {
	totals := map[string]decimal.Decimal{"USDT": decimal.NewFromInt(1), "BNB": decimal.NewFromInt(2), "BTC": decimal.Zero}
	assert.Equal(t, []string{"BNB", "BTC", "USDT"}, SortedCurrencies(totals))
}
