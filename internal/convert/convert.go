// Package convert classifies a block of raw records with per-row error isolation.
package convert

import (
	"context"
	"fmt"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

// RecordClassifier converts a single raw record.
type RecordClassifier interface {
	Classify(raw domain.RawTradeRecord) (*domain.TransactionCluster, error)
}

// Converter turns blocks of raw records into clusters and row errors.
type Converter struct {
	classifier RecordClassifier
	logger     ports.Logger
}

// New creates a converter.
func New(classifier RecordClassifier, logger ports.Logger) (*Converter, error) {
	if classifier == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Converter")
	}
	return &Converter{classifier: classifier, logger: logger}, nil
}

// Convert classifies each record independently. A failing record becomes a
// ConversionError and never affects the others. Input order is preserved.
func (c *Converter) Convert(ctx context.Context, block []domain.RawTradeRecord) domain.ParseResult {
	result := domain.ParseResult{
		Clusters: make([]*domain.TransactionCluster, 0, len(block)),
	}

	for _, raw := range block {
		cluster, err := c.classifier.Classify(raw)
		if err != nil {
			c.logger.Error(ctx, err, "Failed to convert record", map[string]interface{}{
				"id":   raw.ID,
				"kind": raw.Kind,
			})
			result.Errors = append(result.Errors, domain.NewConversionError(raw, err.Error()))
			continue
		}
		if cluster.FeeIgnored() || cluster.FeeFailed() {
			c.logger.Warn(ctx, "Record converted without some fee transactions", map[string]interface{}{
				"id":      raw.ID,
				"ignored": cluster.IgnoredFeeMessage(),
				"failed":  cluster.FailedFeeMessage(),
			})
		}
		result.Clusters = append(result.Clusters, cluster)
	}

	return result
}
