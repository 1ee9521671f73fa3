package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Slithercze/everytrade-plugins/internal/adapters/sqlstore"
	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)


// Repository implements the ports.TransactionRepository interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	now    func() time.Time
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/everytrade.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger, now: time.Now}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS clusters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		connector_id TEXT NOT NULL,
		uid TEXT NULL,
		executed TIMESTAMP NOT NULL,
		ignored_fees TEXT NOT NULL DEFAULT '',
		failed_fees TEXT NOT NULL DEFAULT '',
		sync_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cluster_id INTEGER NOT NULL REFERENCES clusters (id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		uid TEXT NULL,
		executed TIMESTAMP NOT NULL,
		base TEXT NOT NULL,
		base_fiat BOOLEAN NOT NULL DEFAULT 0,
		quote TEXT NOT NULL,
		quote_fiat BOOLEAN NOT NULL DEFAULT 0,
		kind TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NULL,
		fee_rebate_currency TEXT NULL,
		fee_rebate_fiat BOOLEAN NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS conversion_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		connector_id TEXT NOT NULL,
		sync_id TEXT NOT NULL,
		row_text TEXT NOT NULL,
		message TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_cursors (
		connector_id TEXT PRIMARY KEY,
		last_id TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- NULL uids never conflict, so clusters without an id are always stored
	CREATE UNIQUE INDEX IF NOT EXISTS idx_clusters_connector_uid ON clusters (connector_id, uid);
	CREATE INDEX IF NOT EXISTS idx_clusters_connector_executed ON clusters (connector_id, executed);
	CREATE INDEX IF NOT EXISTS idx_transactions_cluster ON transactions (cluster_id, position);
	CREATE INDEX IF NOT EXISTS idx_conversion_errors_connector ON conversion_errors (connector_id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func exec(ctx context.Context, db execer, query sq.Sqlizer) (sql.Result, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return db.ExecContext(ctx, sqlStr, args...)
}

// --- CursorStore Implementation ---

// GetCursor returns the stored cursor for a connector, or "" if none is stored.
func (r *Repository) GetCursor(ctx context.Context, connectorID string) (string, error) {
	sqlStr, args, err := sqlstore.SelectCursor(connectorID).ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var cursor string
	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cursor for %s: %w: %w", connectorID, ports.ErrQueryFailed, err)
	}
	return cursor, nil
}

// SaveCursor stores the cursor for a connector.
func (r *Repository) SaveCursor(ctx context.Context, connectorID, cursor string) error {
	if _, err := exec(ctx, r.db, sqlstore.UpsertCursor(connectorID, cursor, r.now())); err != nil {
		return fmt.Errorf("failed to save cursor for %s: %w: %w", connectorID, ports.ErrUpdateFailed, err)
	}
	return nil
}

// --- TransactionRepository Implementation ---

// CommitSync persists clusters, row errors and the cursor in one transaction.
func (r *Repository) CommitSync(ctx context.Context, batch ports.SyncBatch) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin sync commit: %w: %w", ports.ErrDBConnection, err)
	}
	defer tx.Rollback() // no-op after commit

	inserted := 0
	for _, c := range batch.Clusters {
		ok, err := insertCluster(ctx, tx, batch.ConnectorID, batch.SyncID, c)
		if err != nil {
			return 0, fmt.Errorf("failed to store cluster %q: %w: %w", c.Main.ID, ports.ErrUpdateFailed, err)
		}
		if ok {
			inserted++
		}
	}

	now := r.now()
	for _, chunk := range sqlstore.Chunk(batch.Errors, sqlstore.MaxRowsPerStatement) {
		query := sqlstore.InsertConversionErrors(batch.ConnectorID, batch.SyncID, chunk, now)
		if _, err := exec(ctx, tx, query); err != nil {
			return 0, fmt.Errorf("failed to store conversion errors: %w: %w", ports.ErrUpdateFailed, err)
		}
	}

	if _, err := exec(ctx, tx, sqlstore.UpsertCursor(batch.ConnectorID, batch.Cursor, now)); err != nil {
		return 0, fmt.Errorf("failed to store cursor: %w: %w", ports.ErrUpdateFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sync: %w: %w", ports.ErrUpdateFailed, err)
	}

	r.logger.Debug(ctx, "Sync committed", map[string]interface{}{
		"connector": batch.ConnectorID,
		"syncId":    batch.SyncID,
		"inserted":  inserted,
		"skipped":   len(batch.Clusters) - inserted,
		"errors":    len(batch.Errors),
		"cursor":    batch.Cursor,
	})
	return inserted, nil
}

// insertCluster stores one cluster; it returns false when the cluster id was already stored.
func insertCluster(ctx context.Context, tx *sql.Tx, connectorID, syncID string, c *domain.TransactionCluster) (bool, error) {
	header, err := sqlstore.NewClusterRow(connectorID, syncID, c)
	if err != nil {
		return false, err
	}

	result, err := exec(ctx, tx, sqlstore.InsertCluster(header))
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	clusterID, err := result.LastInsertId()
	if err != nil {
		return false, err
	}

	if _, err := exec(ctx, tx, sqlstore.InsertTransactions(sqlstore.NewTransactionRows(clusterID, c))); err != nil {
		return false, err
	}
	return true, nil
}

// FindClusters returns stored clusters for a connector ordered by execution time.
func (r *Repository) FindClusters(ctx context.Context, connectorID string, limit int) ([]*domain.TransactionCluster, error) {
	sqlStr, args, err := sqlstore.SelectClusters(connectorID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters for %s: %w: %w", connectorID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var (
		headers []sqlstore.ClusterRow
		ids     []int64
	)
	for rows.Next() {
		var h sqlstore.ClusterRow
		if err := rows.Scan(h.ScanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan cluster row: %w", err)
		}
		headers = append(headers, h)
		ids = append(ids, h.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cluster rows: %w", err)
	}
	if len(headers) == 0 {
		return []*domain.TransactionCluster{}, nil
	}

	txs, err := r.findTransactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	return sqlstore.BuildClusters(headers, txs)
}

func (r *Repository) findTransactions(ctx context.Context, clusterIDs []int64) ([]sqlstore.TransactionRow, error) {
	var out []sqlstore.TransactionRow
	for _, chunk := range sqlstore.Chunk(clusterIDs, sqlstore.MaxRowsPerStatement) {
		sqlStr, args, err := sqlstore.SelectTransactions(chunk).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build query: %w", err)
		}

		rows, err := r.db.QueryContext(ctx, sqlStr, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query transactions: %w: %w", ports.ErrQueryFailed, err)
		}
		for rows.Next() {
			var t sqlstore.TransactionRow
			if err := rows.Scan(t.ScanTargets()...); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan transaction row: %w", err)
			}
			out = append(out, t)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating transaction rows: %w", err)
		}
	}
	return out, nil
}

// CountConversionErrors returns the number of stored row errors for a connector.
func (r *Repository) CountConversionErrors(ctx context.Context, connectorID string) (int, error) {
	sqlStr, args, err := sqlstore.CountConversionErrors(connectorID).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var count int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conversion errors for %s: %w: %w", connectorID, ports.ErrQueryFailed, err)
	}
	return count, nil
}
