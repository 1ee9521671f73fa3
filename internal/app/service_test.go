package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockRepository struct {
	mu        sync.Mutex
	cursors   map[string]string
	batches   []ports.SyncBatch
	cursorErr error
	commitErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{cursors: make(map[string]string)}
}

func (m *mockRepository) GetCursor(ctx context.Context, connectorID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[connectorID], m.cursorErr
}

func (m *mockRepository) SaveCursor(ctx context.Context, connectorID, cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[connectorID] = cursor
	return nil
}

func (m *mockRepository) CommitSync(ctx context.Context, batch ports.SyncBatch) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return 0, m.commitErr
	}
	m.batches = append(m.batches, batch)
	if batch.Cursor != "" {
		m.cursors[batch.ConnectorID] = batch.Cursor
	}
	return len(batch.Clusters), nil
}

func (m *mockRepository) FindClusters(ctx context.Context, connectorID string, limit int) ([]*domain.TransactionCluster, error) {
	return nil, nil
}

func (m *mockRepository) CountConversionErrors(ctx context.Context, connectorID string) (int, error) {
	return 0, nil
}

func (m *mockRepository) Close() error { return nil }

type mockConnector struct {
	id       string
	mu       sync.Mutex
	lastIDs  []string
	result   *domain.DownloadResult
	err      error
	panicMsg string
}

func (m *mockConnector) ID() string { return m.id }

func (m *mockConnector) Download(ctx context.Context, lastID string) (*domain.DownloadResult, error) {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	m.mu.Lock()
	m.lastIDs = append(m.lastIDs, lastID)
	m.mu.Unlock()
	return m.result, m.err
}

func downloadResult(lastID string, ids ...string) *domain.DownloadResult {
	usd := domain.Currency{Code: "USD", Fiat: true}
	res := &domain.DownloadResult{LastDownloadedID: lastID}
	for _, id := range ids {
		res.Clusters = append(res.Clusters, domain.NewTransactionCluster(domain.CanonicalTransaction{
			ID: id, Executed: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Kind: domain.KindBuy,
			Base: domain.Currency{Code: "BTC"}, Quote: usd, Quantity: decimal.NewFromInt(1),
		}, nil))
	}
	res.Errors = []domain.ConversionError{{Row: "RawTradeRecord{id=bad}", Message: "unsupported transaction kind", Kind: domain.RowErrorFailed}}
	return res
}

func newTestService(t *testing.T, repo *mockRepository, connectors ...ports.Connector) (*SyncService, *mockLogger) {
	t.Helper()
	logger := &mockLogger{}
	svc, err := NewSyncService(Config{RunOnce: true, MaxParallel: 2}, logger, repo, connectors)
	require.NoError(t, err)
	svc.newSyncID = func() string { return "sync-test" }
	return svc, logger
}

func TestNewSyncService_Validation(t *testing.T) {
	repo := newMockRepository()
	conn := &mockConnector{id: "a"}

	_, err := NewSyncService(Config{RunOnce: true}, nil, repo, []ports.Connector{conn})
	assert.Error(t, err)

	_, err = NewSyncService(Config{RunOnce: true}, &mockLogger{}, repo, nil)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewSyncService(Config{}, &mockLogger{}, repo, []ports.Connector{conn})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestSyncConnector_CommitsAndAdvancesCursor(t *testing.T) {
	repo := newMockRepository()
	repo.cursors["a"] = "t0"
	conn := &mockConnector{id: "a", result: downloadResult("t2", "t1", "t2")}
	svc, logger := newTestService(t, repo, conn)

	summary, err := svc.SyncConnector(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, []string{"t0"}, conn.lastIDs)
	require.Len(t, repo.batches, 1)
	batch := repo.batches[0]
	assert.Equal(t, "a", batch.ConnectorID)
	assert.Equal(t, "sync-test", batch.SyncID)
	assert.Equal(t, "t2", batch.Cursor)
	assert.Len(t, batch.Clusters, 2)
	assert.Len(t, batch.Errors, 1)
	assert.Equal(t, "t2", repo.cursors["a"])

	assert.Equal(t, 2, summary.Clusters)
	assert.Equal(t, 1, summary.ConversionErrors)
	assert.Contains(t, logger.infoMsgs, "Connector synced")
}

func TestSyncConnector_DownloadFailureKeepsCursor(t *testing.T) {
	repo := newMockRepository()
	repo.cursors["a"] = "t0"
	conn := &mockConnector{id: "a", err: ports.ErrFetchFailed}
	svc, logger := newTestService(t, repo, conn)

	_, err := svc.SyncConnector(context.Background(), conn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrFetchFailed)
	assert.Empty(t, repo.batches)
	assert.Equal(t, "t0", repo.cursors["a"])
	assert.Contains(t, logger.errorMsgs, "Download failed")
}

func TestSyncConnector_CommitFailure(t *testing.T) {
	repo := newMockRepository()
	repo.commitErr = ports.ErrUpdateFailed
	conn := &mockConnector{id: "a", result: downloadResult("t1", "t1")}
	svc, _ := newTestService(t, repo, conn)

	_, err := svc.SyncConnector(context.Background(), conn)
	assert.ErrorIs(t, err, ports.ErrUpdateFailed)
	assert.Empty(t, repo.cursors["a"])
}

func TestSyncConnector_CursorReadFailure(t *testing.T) {
	repo := newMockRepository()
	repo.cursorErr = ports.ErrQueryFailed
	conn := &mockConnector{id: "a", result: downloadResult("t1", "t1")}
	svc, _ := newTestService(t, repo, conn)

	_, err := svc.SyncConnector(context.Background(), conn)
	assert.ErrorIs(t, err, ports.ErrQueryFailed)
	assert.Empty(t, conn.lastIDs)
}

func TestSyncAll_IsolatesFailures(t *testing.T) {
	repo := newMockRepository()
	good := &mockConnector{id: "good", result: downloadResult("g1", "g1")}
	bad := &mockConnector{id: "bad", err: errors.New("boom")}
	panicking := &mockConnector{id: "panicky", panicMsg: "nil map"}
	svc, _ := newTestService(t, repo, good, bad, panicking)

	err := svc.SyncAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connector bad")
	assert.Contains(t, err.Error(), "connector panicky panicked")

	assert.Equal(t, "g1", repo.cursors["good"])
	assert.Empty(t, repo.cursors["bad"])
}

func TestStart_RunOnce(t *testing.T) {
	repo := newMockRepository()
	conn := &mockConnector{id: "a", result: downloadResult("t1", "t1")}
	svc, _ := newTestService(t, repo, conn)

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, "t1", repo.cursors["a"])
}

func TestStart_StopsOnCancel(t *testing.T) {
	repo := newMockRepository()
	conn := &mockConnector{id: "a", result: downloadResult("t1", "t1")}
	svc, err := NewSyncService(Config{Interval: 10 * time.Millisecond, MaxParallel: 1}, &mockLogger{}, repo, []ports.Connector{conn})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	require.NoError(t, svc.Start(ctx))

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.GreaterOrEqual(t, len(conn.lastIDs), 2)
	assert.Equal(t, "", conn.lastIDs[0])
	assert.Equal(t, "t1", conn.lastIDs[1])
}
