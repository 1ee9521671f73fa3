package ports

import (
	"context"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
)

// TradeSource fetches raw trade records from an exchange account.
// This abstraction decouples connectors from specific exchange client implementations.
type TradeSource interface {
	// FetchTrades returns one block of raw records ordered oldest to newest.
	// A returned error means no records from this call may be used.
	FetchTrades(ctx context.Context) ([]domain.RawTradeRecord, error)

	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error
}

// Connector runs one download cycle against an exchange account.
type Connector interface {
	// ID returns the connector instance identifier used to key stored cursors.
	ID() string

	// Download fetches, deduplicates and converts everything newer than lastID.
	// An empty lastID requests the full available history.
	Download(ctx context.Context, lastID string) (*domain.DownloadResult, error)
}
