package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/billing-engine/internal/config"
	"github.com/warp/billing-engine/internal/logger"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "billing-engine",
	Short: "Invoicing and customer ledger service",
	Long: `billing-engine serves the invoicing API: companies, contacts, items,
invoices with stock, purchases, and the customer and supplier ledgers
behind them.

Running it without a subcommand starts the HTTP server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().Int("port", 0, "HTTP server port (overrides PORT)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides DB_PATH)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment, applies flag overrides and installs
// the global logger.
func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Port = port
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}

	log, err := logger.Setup(cfg.LoggerConfig())
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}
