package sqlstore

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/numeric"
)

const (
	TableClusters         = "clusters"
	TableTransactions     = "transactions"
	TableConversionErrors = "conversion_errors"
	TableSyncCursors      = "sync_cursors"
)

var transactionColumns = []string{
	"cluster_id", "position", "uid", "executed",
	"base", "base_fiat", "quote", "quote_fiat", "kind",
	"quantity", "unit_price", "fee_rebate_currency", "fee_rebate_fiat",
	"note", "address",
}

// InsertCluster inserts one cluster header, skipping it if the (connector, uid) pair exists.
func InsertCluster(row ClusterRow) sq.InsertBuilder {
	return sq.
		Insert(TableClusters).
		Columns("connector_id", "uid", "executed", "ignored_fees", "failed_fees", "sync_id").
		Values(row.ConnectorID, row.UID, row.Executed, row.IgnoredFees, row.FailedFees, row.SyncID).
		Suffix("on conflict do nothing")
}

// InsertTransactions inserts the transaction rows of one or more clusters.
func InsertTransactions(rows []TransactionRow) sq.InsertBuilder {
	query := sq.
		Insert(TableTransactions).
		Columns(transactionColumns...)

	for _, r := range rows {
		query = query.Values(
			r.ClusterID, r.Position, r.UID, r.Executed,
			r.Base, r.BaseFiat, r.Quote, r.QuoteFiat, r.Kind,
			quantityText(r), r.UnitPrice, r.FeeRebateCurrency, r.FeeRebateFiat,
			r.Note, r.Address,
		)
	}
	return query
}

// quantityText keeps the fixed 8-digit scale of fee and rebate rows; main rows keep their own precision.
func quantityText(r TransactionRow) string {
	if r.Position > 0 {
		return numeric.Format(r.Quantity)
	}
	return r.Quantity.String()
}

// InsertConversionErrors inserts row errors of one sync run.
func InsertConversionErrors(connectorID, syncID string, errs []domain.ConversionError, now time.Time) sq.InsertBuilder {
	query := sq.
		Insert(TableConversionErrors).
		Columns("connector_id", "sync_id", "row_text", "message", "kind", "created_at")

	for _, e := range errs {
		query = query.Values(connectorID, syncID, e.Row, e.Message, string(e.Kind), now.UTC())
	}
	return query
}

// UpsertCursor stores the cursor of a connector.
func UpsertCursor(connectorID, cursor string, now time.Time) sq.InsertBuilder {
	return sq.
		Insert(TableSyncCursors).
		Columns("connector_id", "last_id", "updated_at").
		Values(connectorID, cursor, now.UTC()).
		Suffix("on conflict (connector_id) do update set last_id = excluded.last_id, updated_at = excluded.updated_at")
}

// SelectCursor reads the cursor of a connector.
func SelectCursor(connectorID string) sq.SelectBuilder {
	return sq.
		Select("last_id").
		From(TableSyncCursors).
		Where(sq.Eq{"connector_id": connectorID})
}

// SelectClusters reads cluster headers ordered by execution time. limit <= 0 means no limit.
func SelectClusters(connectorID string, limit int) sq.SelectBuilder {
	query := sq.
		Select("id", "connector_id", "uid", "executed", "ignored_fees", "failed_fees", "sync_id").
		From(TableClusters).
		Where(sq.Eq{"connector_id": connectorID}).
		OrderBy("executed asc", "id asc")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return query
}

// SelectTransactions reads the transaction rows of the given clusters.
func SelectTransactions(clusterIDs []int64) sq.SelectBuilder {
	return sq.
		Select(transactionColumns...).
		From(TableTransactions).
		Where(sq.Eq{"cluster_id": clusterIDs}).
		OrderBy("cluster_id asc", "position asc")
}

// CountConversionErrors counts stored row errors of a connector.
func CountConversionErrors(connectorID string) sq.SelectBuilder {
	return sq.
		Select("count(*)").
		From(TableConversionErrors).
		Where(sq.Eq{"connector_id": connectorID})
}

// ScanTargets returns pointers matching the SelectClusters column order.
func (r *ClusterRow) ScanTargets() []any {
	return []any{&r.ID, &r.ConnectorID, &r.UID, &r.Executed, &r.IgnoredFees, &r.FailedFees, &r.SyncID}
}

// ScanTargets returns pointers matching the transaction column order.
func (r *TransactionRow) ScanTargets() []any {
	return []any{
		&r.ClusterID, &r.Position, &r.UID, &r.Executed,
		&r.Base, &r.BaseFiat, &r.Quote, &r.QuoteFiat, &r.Kind,
		&r.Quantity, &r.UnitPrice, &r.FeeRebateCurrency, &r.FeeRebateFiat,
		&r.Note, &r.Address,
	}
}
