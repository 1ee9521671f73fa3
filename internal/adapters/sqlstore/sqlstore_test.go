package sqlstore

import (
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
)

func sampleCluster() *domain.TransactionCluster {
	executed := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	usd := domain.Currency{Code: "USD", Fiat: true}
	c := domain.NewTransactionCluster(
		domain.CanonicalTransaction{
			ID: "t1", Executed: executed, Kind: domain.KindBuy,
			Base: domain.Currency{Code: "BTC"}, Quote: usd,
			Quantity: decimal.RequireFromString("0.5"), UnitPrice: decimal.NewNullDecimal(decimal.NewFromInt(30000)),
		},
		[]domain.CanonicalTransaction{{
			ID: "t1-fee", Executed: executed, Kind: domain.KindFee, Base: usd, Quote: usd,
			Quantity: decimal.RequireFromString("1.50000000"), FeeRebateCurrency: &usd,
		}},
	)
	c.Annotate([]domain.FeeIssue{{Source: domain.KindRebate, Reason: "rebate currency \"XYZ\" is not supported"}}, nil)
	return c
}

func TestBuildClusters_RestoresCluster(t *testing.T) {
	original := sampleCluster()

	header, err := NewClusterRow("acc", "sync-1", original)
	require.NoError(t, err)
	header.ID = 7
	assert.Equal(t, "t1", header.UID.String)
	assert.Empty(t, header.FailedFees)

	rows := NewTransactionRows(7, original)
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].Position)
	assert.Equal(t, 1, rows[1].Position)

	clusters, err := BuildClusters([]ClusterRow{header}, rows)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	got := clusters[0]
	assert.Equal(t, original.Main, got.Main)
	assert.Equal(t, original.Related, got.Related)
	assert.True(t, got.FeeIgnored())
	assert.Equal(t, original.IgnoredFeeMessage(), got.IgnoredFeeMessage())
	assert.False(t, got.FeeFailed())
}

func TestBuildClusters_SkipsHeadersWithoutMain(t *testing.T) {
	clusters, err := BuildClusters([]ClusterRow{{ID: 1}}, nil)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestNewClusterRow_AbsentUID(t *testing.T) {
	c := domain.NewTransactionCluster(domain.CanonicalTransaction{Kind: domain.KindDeposit}, nil)
	row, err := NewClusterRow("acc", "s", c)
	require.NoError(t, err)
	assert.False(t, row.UID.Valid)
}

func TestQueries(t *testing.T) {
	sql, args, err := InsertCluster(ClusterRow{ConnectorID: "acc"}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO clusters")
	assert.Contains(t, sql, "on conflict do nothing")
	assert.Len(t, args, 6)

	sql, _, err = UpsertCursor("acc", "t9", time.Now()).PlaceholderFormat(sq.Dollar).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "$3")
	assert.Contains(t, sql, "on conflict (connector_id) do update")

	sql, args, err = SelectTransactions([]int64{1, 2}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "cluster_id IN (?,?)")
	assert.Len(t, args, 2)

	sql, _, err = SelectClusters("acc", 0).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "LIMIT")

	sql, _, err = SelectClusters("acc", 5).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 5")
}

func TestInsertTransactions_RelatedAmountsKeepScale(t *testing.T) {
	rows := NewTransactionRows(7, sampleCluster())
	_, args, err := InsertTransactions(rows).ToSql()
	require.NoError(t, err)

	perRow := len(transactionColumns)
	require.Len(t, args, 2*perRow)
	assert.Equal(t, "0.5", args[9])
	assert.Equal(t, "1.50000000", args[perRow+9])
}

func TestChunk(t *testing.T) {
	ids := make([]int64, 1201)
	for i := range ids {
		ids[i] = int64(i)
	}

	chunks := Chunk(ids, MaxRowsPerStatement)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 500)
	assert.Len(t, chunks[1], 500)
	assert.Len(t, chunks[2], 201)
	assert.Equal(t, int64(1200), chunks[2][200])

	assert.Empty(t, Chunk([]int64{}, 10))
	assert.Len(t, Chunk([]int{1, 2, 3}, 0), 1)
}

func TestSelectTransactions_ChunkedIDsStayUnderParameterLimit(t *testing.T) {
	ids := make([]int64, 70000)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	total := 0
	for _, chunk := range Chunk(ids, MaxRowsPerStatement) {
		_, args, err := SelectTransactions(chunk).PlaceholderFormat(sq.Dollar).ToSql()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(args), 65535)
		total += len(args)
	}
	assert.Equal(t, len(ids), total)
}
