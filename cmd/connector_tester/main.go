package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Slithercze/everytrade-plugins/internal/adapters/logger"
	"github.com/Slithercze/everytrade-plugins/internal/connector"
	"github.com/Slithercze/everytrade-plugins/internal/tester"
)

var (
	templateDir string
	paramsDir   string
	outDir      string
	logLevel    string
	useTestnet  bool
	appLogger   *logger.ZerologLogger
)

var rootCmd = &cobra.Command{
	Use:   "connector_tester",
	Short: "Download trades with every configured connector and print the converted result",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appLogger = logger.New(logger.Config{Level: logLevel, Format: "console"})
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := connector.DefaultRegistry()
		if err := tester.WriteTemplates(templateDir, registry.Descriptors()); err != nil {
			return err
		}
		appLogger.Info(cmd.Context(), "Parameter templates written", map[string]interface{}{"dir": templateDir})

		t := &tester.Tester{
			Registry: registry,
			Env: connector.Environment{
				Logger:  appLogger.With("connector"),
				Binance: connector.ExchangeTuning{UseTestnet: useTestnet, MaxRetries: 3},
			},
			Out:    cmd.OutOrStdout(),
			OutDir: outDir,
			Logger: appLogger,
		}
		return t.RunAll(cmd.Context(), paramsDir)
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Only write parameter templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tester.WriteTemplates(templateDir, connector.DefaultRegistry().Descriptors())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&templateDir, "template-dir", "templates", "Directory receiving <connector>.properties templates")
	rootCmd.PersistentFlags().StringVar(&paramsDir, "params-dir", "private", "Directory with filled-in <connector>.properties files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level")
	rootCmd.Flags().StringVar(&outDir, "out-dir", "", "Also write each download as CSV into this directory")
	rootCmd.Flags().BoolVar(&useTestnet, "testnet", false, "Use exchange test networks where available")

	rootCmd.AddCommand(templatesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
