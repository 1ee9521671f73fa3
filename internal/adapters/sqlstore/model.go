// Package sqlstore holds the table model and query builders shared by the SQL repositories.
package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
)

// ClusterRow is one row of the clusters table.
type ClusterRow struct {
	ID          int64
	ConnectorID string
	UID         sql.NullString
	Executed    time.Time
	IgnoredFees string // JSON encoded []domain.FeeIssue
	FailedFees  string
	SyncID      string
}

// TransactionRow is one row of the transactions table. Position 0 is the main transaction.
type TransactionRow struct {
	ClusterID         int64
	Position          int
	UID               sql.NullString
	Executed          time.Time
	Base              string
	BaseFiat          bool
	Quote             string
	QuoteFiat         bool
	Kind              string
	Quantity          decimal.Decimal
	UnitPrice         decimal.NullDecimal
	FeeRebateCurrency sql.NullString
	FeeRebateFiat     bool
	Note              string
	Address           string
}

type feeIssueJSON struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

func encodeIssues(issues []domain.FeeIssue) (string, error) {
	if len(issues) == 0 {
		return "", nil
	}
	out := make([]feeIssueJSON, 0, len(issues))
	for _, i := range issues {
		out = append(out, feeIssueJSON{Source: i.Source.String(), Reason: i.Reason})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode fee issues: %w", err)
	}
	return string(b), nil
}

func decodeIssues(s string) ([]domain.FeeIssue, error) {
	if s == "" {
		return nil, nil
	}
	var raw []feeIssueJSON
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("decode fee issues: %w", err)
	}
	out := make([]domain.FeeIssue, 0, len(raw))
	for _, r := range raw {
		out = append(out, domain.FeeIssue{Source: domain.TransactionKind(r.Source), Reason: r.Reason})
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NewClusterRow maps a cluster to its clusters table row.
func NewClusterRow(connectorID, syncID string, c *domain.TransactionCluster) (ClusterRow, error) {
	ignored, err := encodeIssues(c.IgnoredFees())
	if err != nil {
		return ClusterRow{}, err
	}
	failed, err := encodeIssues(c.FailedFees())
	if err != nil {
		return ClusterRow{}, err
	}
	return ClusterRow{
		ConnectorID: connectorID,
		UID:         nullString(c.Main.ID),
		Executed:    c.Main.Executed.UTC(),
		IgnoredFees: ignored,
		FailedFees:  failed,
		SyncID:      syncID,
	}, nil
}

// NewTransactionRows maps the main and related transactions of a cluster to rows.
func NewTransactionRows(clusterID int64, c *domain.TransactionCluster) []TransactionRow {
	rows := make([]TransactionRow, 0, 1+len(c.Related))
	rows = append(rows, newTransactionRow(clusterID, 0, c.Main))
	for i, tx := range c.Related {
		rows = append(rows, newTransactionRow(clusterID, i+1, tx))
	}
	return rows
}

func newTransactionRow(clusterID int64, position int, tx domain.CanonicalTransaction) TransactionRow {
	row := TransactionRow{
		ClusterID: clusterID,
		Position:  position,
		UID:       nullString(tx.ID),
		Executed:  tx.Executed.UTC(),
		Base:      tx.Base.Code,
		BaseFiat:  tx.Base.Fiat,
		Quote:     tx.Quote.Code,
		QuoteFiat: tx.Quote.Fiat,
		Kind:      tx.Kind.String(),
		Quantity:  tx.Quantity,
		UnitPrice: tx.UnitPrice,
		Note:      tx.Note,
		Address:   tx.Address,
	}
	if tx.FeeRebateCurrency != nil {
		row.FeeRebateCurrency = nullString(tx.FeeRebateCurrency.Code)
		row.FeeRebateFiat = tx.FeeRebateCurrency.Fiat
	}
	return row
}

func (r TransactionRow) transaction() domain.CanonicalTransaction {
	tx := domain.CanonicalTransaction{
		ID:        r.UID.String,
		Executed:  r.Executed.UTC(),
		Base:      domain.Currency{Code: r.Base, Fiat: r.BaseFiat},
		Quote:     domain.Currency{Code: r.Quote, Fiat: r.QuoteFiat},
		Kind:      domain.TransactionKind(r.Kind),
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		Note:      r.Note,
		Address:   r.Address,
	}
	if r.FeeRebateCurrency.Valid {
		tx.FeeRebateCurrency = &domain.Currency{Code: r.FeeRebateCurrency.String, Fiat: r.FeeRebateFiat}
	}
	return tx
}

// BuildClusters reassembles clusters from rows. Transactions must be grouped by
// cluster id and ordered by position; clusters without a main row are skipped.
func BuildClusters(clusters []ClusterRow, txs []TransactionRow) ([]*domain.TransactionCluster, error) {
	byCluster := make(map[int64][]TransactionRow, len(clusters))
	for _, t := range txs {
		byCluster[t.ClusterID] = append(byCluster[t.ClusterID], t)
	}

	out := make([]*domain.TransactionCluster, 0, len(clusters))
	for _, c := range clusters {
		rows := byCluster[c.ID]
		if len(rows) == 0 || rows[0].Position != 0 {
			continue
		}
		related := make([]domain.CanonicalTransaction, 0, len(rows)-1)
		for _, r := range rows[1:] {
			related = append(related, r.transaction())
		}
		cluster := domain.NewTransactionCluster(rows[0].transaction(), related)

		ignored, err := decodeIssues(c.IgnoredFees)
		if err != nil {
			return nil, err
		}
		failed, err := decodeIssues(c.FailedFees)
		if err != nil {
			return nil, err
		}
		cluster.Annotate(ignored, failed)
		out = append(out, cluster)
	}
	return out, nil
}
