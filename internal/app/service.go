package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/Slithercze/everytrade-plugins/internal/ports"
	"github.com/Slithercze/everytrade-plugins/internal/report"
)

// Config controls the sync loop.
type Config struct {
	Interval    time.Duration // Time between sync cycles
	MaxParallel int           // Connectors synced concurrently
	RunOnce     bool          // Run a single cycle and return
}

// SyncService downloads new trades for every connector and persists them.
type SyncService struct {
	cfg        Config
	logger     ports.Logger
	repo       ports.TransactionRepository
	connectors []ports.Connector
	newSyncID  func() string
}

// NewSyncService creates a new application service instance.
func NewSyncService(
	cfg Config,
	logger ports.Logger,
	repo ports.TransactionRepository,
	connectors []ports.Connector,
) (*SyncService, error) {
	// Validate dependencies
	if logger == nil || repo == nil {
		return nil, fmt.Errorf("missing required dependencies for SyncService")
	}
	if len(connectors) == 0 {
		return nil, fmt.Errorf("%w: at least one connector is required", ports.ErrConfigurationError)
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if !cfg.RunOnce && cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: sync interval must be positive", ports.ErrConfigurationError)
	}

	return &SyncService{
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		connectors: connectors,
		newSyncID:  func() string { return uuid.NewString() },
	}, nil
}

// Start runs sync cycles until the context is canceled or a signal arrives.
func (s *SyncService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Sync Service...", map[string]interface{}{
		"connectors":  len(s.connectors),
		"interval":    s.cfg.Interval.String(),
		"maxParallel": s.cfg.MaxParallel,
	})

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if s.cfg.RunOnce {
		return s.SyncAll(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.SyncAll(ctx); err != nil && ctx.Err() == nil {
			// a failed cycle is retried on the next tick
			s.logger.Error(ctx, err, "Sync cycle finished with errors")
		}

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Sync Service stopped.")
			return nil
		case <-ticker.C:
		}
	}
}

// SyncAll syncs every connector with at most MaxParallel running at once.
// Failures of one connector do not stop the others; all errors are joined.
func (s *SyncService) SyncAll(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.cfg.MaxParallel)
	for _, c := range s.connectors {
		p.Go(func(ctx context.Context) error {
			var err error
			if r := panics.Try(func() { _, err = s.SyncConnector(ctx, c) }); r != nil {
				err = fmt.Errorf("connector %s panicked: %w", c.ID(), r.AsError())
				s.logger.Error(ctx, err, "Connector sync panicked")
			}
			return err
		})
	}
	return p.Wait()
}

// SyncConnector runs one download for a connector and commits the result.
// The stored cursor only advances when the commit succeeds.
func (s *SyncService) SyncConnector(ctx context.Context, c ports.Connector) (*report.Summary, error) {
	id := c.ID()
	fields := map[string]interface{}{"connector": id}

	cursor, err := s.repo.GetCursor(ctx, id)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to read sync cursor", fields)
		return nil, fmt.Errorf("connector %s: %w", id, err)
	}
	fields["cursor"] = cursor

	result, err := c.Download(ctx, cursor)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("connector %s: %w", id, err)
		}
		s.logger.Error(ctx, err, "Download failed", fields)
		return nil, fmt.Errorf("connector %s: %w", id, err)
	}

	syncID := s.newSyncID()
	inserted, err := s.repo.CommitSync(ctx, ports.SyncBatch{
		ConnectorID: id,
		SyncID:      syncID,
		Clusters:    result.Clusters,
		Errors:      result.Errors,
		Cursor:      result.LastDownloadedID,
	})
	if err != nil {
		s.logger.Error(ctx, err, "Failed to persist download result", fields)
		return nil, fmt.Errorf("connector %s: %w", id, err)
	}

	summary := report.Summarize(result.ParseResult)
	logFields := summary.Fields()
	logFields["connector"] = id
	logFields["syncID"] = syncID
	logFields["inserted"] = inserted
	logFields["lastDownloadedID"] = result.LastDownloadedID
	s.logger.Info(ctx, "Connector synced", logFields)

	return summary, nil
}
