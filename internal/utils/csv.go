package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/numeric"
)

// ClusterCSVHeader is the fixed column order of the debug transaction table.
var ClusterCSVHeader = []string{
	"uid", "executed", "base", "quote", "action",
	"baseQuantity", "unitPrice", "transactionPrice", "feeQuote",
}

// WriteClustersCSV writes one row per cluster main transaction.
func WriteClustersCSV(w io.Writer, clusters []*domain.TransactionCluster) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ClusterCSVHeader); err != nil {
		return err
	}
	for _, c := range clusters {
		if err := writer.Write(clusterRecord(c)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteClustersCSVFile writes the clusters table to filename, creating parent directories.
func WriteClustersCSVFile(filename string, clusters []*domain.TransactionCluster) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", filename, err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteClustersCSV(file, clusters)
}

func clusterRecord(c *domain.TransactionCluster) []string {
	main := c.Main
	return []string{
		main.ID,
		main.Executed.UTC().Format(time.RFC3339),
		main.Base.Code,
		main.Quote.Code,
		main.Kind.String(),
		main.Quantity.String(),
		formatNullable(main.UnitPrice),
		formatNullable(main.TransactionPrice()),
		formatNullable(feeQuote(c)),
	}
}

// feeQuote sums related fees denominated in the main quote currency.
func feeQuote(c *domain.TransactionCluster) decimal.NullDecimal {
	total := decimal.NullDecimal{}
	for _, r := range c.Related {
		if r.Kind != domain.KindFee || r.Base.Code != c.Main.Quote.Code {
			continue
		}
		total = decimal.NewNullDecimal(total.Decimal.Add(r.Quantity))
	}
	return total
}

func formatNullable(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return numeric.Format(v.Decimal)
}
