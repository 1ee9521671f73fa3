package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"github.com/Slithercze/everytrade-plugins/config"
	"github.com/Slithercze/everytrade-plugins/internal/adapters/logger"
	"github.com/Slithercze/everytrade-plugins/internal/adapters/postgres"
	"github.com/Slithercze/everytrade-plugins/internal/adapters/sqlite"
	"github.com/Slithercze/everytrade-plugins/internal/app"
	"github.com/Slithercze/everytrade-plugins/internal/connector"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": appLogger.Level()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := openRepository(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize transaction repository")
		log.Fatalf("FATAL: Failed to initialize transaction repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing transaction repository")
		}
	}()
	appLogger.Info(ctx, "Transaction repository initialized", map[string]interface{}{"driver": cfg.Store.Driver})

	// 4. Initialize Connectors
	env := connector.Environment{
		Logger: appLogger.With("connector"),
		Binance: connector.ExchangeTuning{
			UseTestnet:        cfg.Binance.IsTestnet,
			BaseURL:           cfg.Binance.BaseURL,
			TradeLimit:        cfg.Binance.TradeLimit,
			RequestsPerSecond: cfg.Binance.RequestsPerSecond,
			MaxRetries:        cfg.Binance.MaxRetries,
			RetryMinDelay:     cfg.Binance.RetryMinDelay,
			RetryMaxDelay:     cfg.Binance.RetryMaxDelay,
		},
	}
	binanceConnector, err := connector.DefaultRegistry().Create(connector.BinanceDescriptorID, "", map[string]string{
		connector.ParamAPIKey:    cfg.Binance.APIKey,
		connector.ParamAPISecret: cfg.Binance.SecretKey,
		connector.ParamSymbols:   cfg.Binance.Symbols,
	}, env)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance connector")
		log.Fatalf("FATAL: Failed to initialize Binance connector: %v", err)
	}
	appLogger.Info(ctx, "Binance connector initialized", map[string]interface{}{"connector": binanceConnector.ID()})

	// 5. Initialize Application Service
	syncService, err := app.NewSyncService(
		app.Config{
			Interval:    cfg.Sync.Interval,
			MaxParallel: cfg.Sync.MaxParallel,
			RunOnce:     cfg.Sync.RunOnce,
		},
		appLogger.With("sync"),
		repo,
		[]ports.Connector{binanceConnector},
	)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize sync service")
		log.Fatalf("FATAL: Failed to initialize sync service: %v", err)
	}
	appLogger.Info(ctx, "Sync service initialized")

	// 6. Start the Service
	if err := syncService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Sync service exited with error")
		log.Fatalf("FATAL: Sync service exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}

func openRepository(ctx context.Context, cfg *config.Config, appLogger ports.Logger) (ports.TransactionRepository, error) {
	if cfg.Store.Driver == config.DriverPostgres {
		return postgres.NewStore(ctx, postgres.Config{
			DSN:             cfg.Store.DatabaseURL,
			MaxConns:        cfg.Store.MaxConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
			Logger:          appLogger,
		})
	}
	return sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.Store.DBPath,
		Logger: appLogger,
	})
}
