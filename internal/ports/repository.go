package ports

import (
	"context"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
)

// SyncBatch is everything one successful sync cycle persists.
type SyncBatch struct {
	ConnectorID string
	SyncID      string
	Clusters    []*domain.TransactionCluster
	Errors      []domain.ConversionError
	Cursor      string
}

// CursorStore keeps the last downloaded id per connector.
type CursorStore interface {
	// GetCursor returns the stored cursor, or "" if none is stored.
	GetCursor(ctx context.Context, connectorID string) (string, error)
	// SaveCursor stores the cursor for a connector, replacing any previous value.
	SaveCursor(ctx context.Context, connectorID, cursor string) error
}

// TransactionRepository stores converted transaction clusters and row errors.
type TransactionRepository interface {
	CursorStore
	// CommitSync persists clusters, row errors and the new cursor atomically.
	// Clusters whose main id is already stored for the connector are skipped.
	// Returns the number of clusters inserted.
	CommitSync(ctx context.Context, batch SyncBatch) (int, error)
	// FindClusters returns stored clusters for a connector ordered by execution time.
	// A limit of zero or less returns all of them.
	FindClusters(ctx context.Context, connectorID string, limit int) ([]*domain.TransactionCluster, error)
	// CountConversionErrors returns the number of stored row errors for a connector.
	CountConversionErrors(ctx context.Context, connectorID string) (int, error)
	// Close releases the underlying connection.
	Close() error
}
