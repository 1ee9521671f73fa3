package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Slithercze/everytrade-plugins/config"
	"github.com/Slithercze/everytrade-plugins/internal/adapters/logger"
	"github.com/Slithercze/everytrade-plugins/internal/adapters/postgres"
	"github.com/Slithercze/everytrade-plugins/internal/adapters/sqlite"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
	"github.com/Slithercze/everytrade-plugins/internal/utils"
)

var (
	driver      string
	dbPath      string
	databaseURL string
	connectorID string
	outPath     string
	limit       int
	logLevel    string
	appLogger   *logger.ZerologLogger
)

var rootCmd = &cobra.Command{
	Use:   "export_transactions",
	Short: "Export stored transaction clusters of a connector as CSV",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appLogger = logger.New(logger.Config{Level: logLevel, Format: "console"})
		if driver != config.DriverSQLite && driver != config.DriverPostgres {
			return fmt.Errorf("unknown driver %q", driver)
		}
		if driver == config.DriverPostgres && databaseURL == "" {
			return fmt.Errorf("--database-url is required for the postgres driver")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var repo ports.TransactionRepository
		var err error
		if driver == config.DriverPostgres {
			repo, err = postgres.NewStore(ctx, postgres.Config{DSN: databaseURL, MaxConns: 2, Logger: appLogger})
		} else {
			repo, err = sqlite.NewRepository(sqlite.Config{DBPath: dbPath, Logger: appLogger})
		}
		if err != nil {
			return err
		}
		defer repo.Close()

		clusters, err := repo.FindClusters(ctx, connectorID, limit)
		if err != nil {
			return err
		}
		errorCount, err := repo.CountConversionErrors(ctx, connectorID)
		if err != nil {
			return err
		}
		appLogger.Info(ctx, "Loaded stored transactions", map[string]interface{}{
			"connector":        connectorID,
			"clusters":         len(clusters),
			"conversionErrors": errorCount,
		})

		if outPath == "" {
			return utils.WriteClustersCSV(cmd.OutOrStdout(), clusters)
		}
		return utils.WriteClustersCSVFile(outPath, clusters)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&driver, "driver", config.DriverSQLite, "Store driver (sqlite or postgres)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "./data/everytrade.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level")
	rootCmd.Flags().StringVar(&connectorID, "connector", "binanceApiConnector", "Connector instance id")
	rootCmd.Flags().StringVar(&outPath, "out", "", "CSV output path (stdout when empty)")
	rootCmd.Flags().IntVar(&limit, "limit", 0, "Maximum clusters to export (0 for all)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
