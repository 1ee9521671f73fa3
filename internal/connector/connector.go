package connector

import (
	"context"
	"fmt"

	"github.com/Slithercze/everytrade-plugins/internal/dedup"
	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

// BlockConverter converts a block of raw records.
type BlockConverter interface {
	Convert(ctx context.Context, block []domain.RawTradeRecord) domain.ParseResult
}

// Config holds the collaborators of an exchange connector.
type Config struct {
	ID        string
	Source    ports.TradeSource
	Converter BlockConverter
	Logger    ports.Logger
}

// ExchangeConnector implements ports.Connector over a trade source.
type ExchangeConnector struct {
	id        string
	source    ports.TradeSource
	converter BlockConverter
	logger    ports.Logger
}

// New creates an exchange connector.
func New(cfg Config) (*ExchangeConnector, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: connector id is required", ports.ErrConfigurationError)
	}
	if cfg.Source == nil || cfg.Converter == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for connector %s", cfg.ID)
	}
	return &ExchangeConnector{
		id:        cfg.ID,
		source:    cfg.Source,
		converter: cfg.Converter,
		logger:    cfg.Logger,
	}, nil
}

// ID returns the connector instance identifier.
func (c *ExchangeConnector) ID() string {
	return c.id
}

// Download runs one fetch-dedup-convert cycle. A fetch failure aborts the
// cycle and returns no result, so the caller keeps its cursor.
func (c *ExchangeConnector) Download(ctx context.Context, lastID string) (*domain.DownloadResult, error) {
	fields := map[string]interface{}{"connector": c.id, "lastId": lastID}

	block, err := c.source.FetchTrades(ctx)
	if err != nil {
		c.logger.Error(ctx, err, "Failed to fetch trades", fields)
		return nil, fmt.Errorf("connector %s: %w: %w", c.id, ports.ErrFetchFailed, err)
	}

	selection := dedup.Select(lastID, block)
	if !selection.CursorFound {
		c.logger.Warn(ctx, "Last downloaded id not found in fetched block, converting whole block", fields)
	}

	parsed := c.converter.Convert(ctx, selection.New)

	c.logger.Info(ctx, "Download finished", map[string]interface{}{
		"connector":  c.id,
		"fetched":    len(block),
		"new":        len(selection.New),
		"clusters":   len(parsed.Clusters),
		"errors":     len(parsed.Errors),
		"nextCursor": selection.NextCursor,
	})

	return &domain.DownloadResult{
		ParseResult:      parsed,
		LastDownloadedID: selection.NextCursor,
	}, nil
}
