// Package postgres implements the transaction repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Slithercze/everytrade-plugins/internal/adapters/sqlstore"
	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS clusters (
	id BIGSERIAL PRIMARY KEY,
	connector_id TEXT NOT NULL,
	uid TEXT NULL,
	executed TIMESTAMPTZ NOT NULL,
	ignored_fees TEXT NOT NULL DEFAULT '',
	failed_fees TEXT NOT NULL DEFAULT '',
	sync_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id BIGSERIAL PRIMARY KEY,
	cluster_id BIGINT NOT NULL REFERENCES clusters (id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	uid TEXT NULL,
	executed TIMESTAMPTZ NOT NULL,
	base TEXT NOT NULL,
	base_fiat BOOLEAN NOT NULL DEFAULT FALSE,
	quote TEXT NOT NULL,
	quote_fiat BOOLEAN NOT NULL DEFAULT FALSE,
	kind TEXT NOT NULL,
	quantity TEXT NOT NULL,
	unit_price TEXT NULL,
	fee_rebate_currency TEXT NULL,
	fee_rebate_fiat BOOLEAN NOT NULL DEFAULT FALSE,
	note TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS conversion_errors (
	id BIGSERIAL PRIMARY KEY,
	connector_id TEXT NOT NULL,
	sync_id TEXT NOT NULL,
	row_text TEXT NOT NULL,
	message TEXT NOT NULL,
	kind TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_cursors (
	connector_id TEXT PRIMARY KEY,
	last_id TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_clusters_connector_uid ON clusters (connector_id, uid);
CREATE INDEX IF NOT EXISTS idx_clusters_connector_executed ON clusters (connector_id, executed);
CREATE INDEX IF NOT EXISTS idx_transactions_cluster ON transactions (cluster_id, position);
CREATE INDEX IF NOT EXISTS idx_conversion_errors_connector ON conversion_errors (connector_id);
`

// Config holds PostgreSQL connectivity settings.
type Config struct {
	DSN             string
	MaxConns        int
	ConnMaxLifetime time.Duration
	Logger          ports.Logger
}

// Store implements ports.TransactionRepository on a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger ports.Logger
	now    func() time.Time
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: database dsn is required", ports.ErrConfigurationError)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return pool, nil
}

// NewStore connects, pings and ensures the schema exists.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Postgres store")
	}
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w: %w", ports.ErrDBConnection, err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize database schema: %w", err)
	}
	cfg.Logger.Info(ctx, "Postgres store initialized")
	return &Store{pool: pool, logger: cfg.Logger, now: time.Now}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func build(query sq.Sqlizer) (string, []any, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	sqlStr, err = sq.Dollar.ReplacePlaceholders(sqlStr)
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return sqlStr, args, nil
}

// GetCursor returns the stored cursor for a connector, or "" if none is stored.
func (s *Store) GetCursor(ctx context.Context, connectorID string) (string, error) {
	sqlStr, args, err := build(sqlstore.SelectCursor(connectorID))
	if err != nil {
		return "", err
	}
	var cursor string
	err = s.pool.QueryRow(ctx, sqlStr, args...).Scan(&cursor)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select cursor for %s: %w: %w", connectorID, ports.ErrQueryFailed, err)
	}
	return cursor, nil
}

// SaveCursor stores the cursor for a connector.
func (s *Store) SaveCursor(ctx context.Context, connectorID, cursor string) error {
	sqlStr, args, err := build(sqlstore.UpsertCursor(connectorID, cursor, s.now()))
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert cursor for %s: %w: %w", connectorID, ports.ErrUpdateFailed, err)
	}
	return nil
}

// CommitSync persists clusters, row errors and the cursor in one transaction.
func (s *Store) CommitSync(ctx context.Context, batch ports.SyncBatch) (int, error) {
	inserted := 0
	now := s.now()

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, c := range batch.Clusters {
			ok, err := insertCluster(ctx, tx, batch.ConnectorID, batch.SyncID, c)
			if err != nil {
				return fmt.Errorf("insert cluster %q: %w", c.Main.ID, err)
			}
			if ok {
				inserted++
			}
		}

		for _, chunk := range sqlstore.Chunk(batch.Errors, sqlstore.MaxRowsPerStatement) {
			sqlStr, args, err := build(sqlstore.InsertConversionErrors(batch.ConnectorID, batch.SyncID, chunk, now))
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
				return fmt.Errorf("insert conversion errors: %w", err)
			}
		}

		sqlStr, args, err := build(sqlstore.UpsertCursor(batch.ConnectorID, batch.Cursor, now))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("upsert cursor: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("commit sync for %s: %w: %w", batch.ConnectorID, ports.ErrUpdateFailed, err)
	}

	s.logger.Debug(ctx, "Sync committed", map[string]interface{}{
		"connector": batch.ConnectorID,
		"syncId":    batch.SyncID,
		"inserted":  inserted,
		"errors":    len(batch.Errors),
		"cursor":    batch.Cursor,
	})
	return inserted, nil
}

func insertCluster(ctx context.Context, tx pgx.Tx, connectorID, syncID string, c *domain.TransactionCluster) (bool, error) {
	header, err := sqlstore.NewClusterRow(connectorID, syncID, c)
	if err != nil {
		return false, err
	}
	sqlStr, args, err := build(sqlstore.InsertCluster(header).Suffix("returning id"))
	if err != nil {
		return false, err
	}

	var clusterID int64
	err = tx.QueryRow(ctx, sqlStr, args...).Scan(&clusterID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	sqlStr, args, err = build(sqlstore.InsertTransactions(sqlstore.NewTransactionRows(clusterID, c)))
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return false, err
	}
	return true, nil
}

// FindClusters returns stored clusters for a connector ordered by execution time.
func (s *Store) FindClusters(ctx context.Context, connectorID string, limit int) ([]*domain.TransactionCluster, error) {
	sqlStr, args, err := build(sqlstore.SelectClusters(connectorID, limit))
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("select clusters: %w: %w", ports.ErrQueryFailed, err)
	}
	var (
		headers []sqlstore.ClusterRow
		ids     []int64
	)
	for rows.Next() {
		var h sqlstore.ClusterRow
		if err := rows.Scan(h.ScanTargets()...); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		headers = append(headers, h)
		ids = append(ids, h.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading clusters: %w", err)
	}
	if len(headers) == 0 {
		return []*domain.TransactionCluster{}, nil
	}

	txs, err := s.findTransactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	return sqlstore.BuildClusters(headers, txs)
}

func (s *Store) findTransactions(ctx context.Context, clusterIDs []int64) ([]sqlstore.TransactionRow, error) {
	var out []sqlstore.TransactionRow
	for _, chunk := range sqlstore.Chunk(clusterIDs, sqlstore.MaxRowsPerStatement) {
		sqlStr, args, err := build(sqlstore.SelectTransactions(chunk))
		if err != nil {
			return nil, err
		}
		rows, err := s.pool.Query(ctx, sqlStr, args...)
		if err != nil {
			return nil, fmt.Errorf("select transactions: %w: %w", ports.ErrQueryFailed, err)
		}
		for rows.Next() {
			var t sqlstore.TransactionRow
			if err := rows.Scan(t.ScanTargets()...); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan transaction: %w", err)
			}
			out = append(out, t)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("reading transactions: %w", err)
		}
	}
	return out, nil
}

// CountConversionErrors returns the number of stored row errors for a connector.
func (s *Store) CountConversionErrors(ctx context.Context, connectorID string) (int, error) {
	sqlStr, args, err := build(sqlstore.CountConversionErrors(connectorID))
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count conversion errors: %w: %w", ports.ErrQueryFailed, err)
	}
	return count, nil
}
