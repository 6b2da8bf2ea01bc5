// =============================================================================
// Invoice Dashboard - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand is
// attached to it and shares its configuration and logger.
//
// COBRA CLI STRUCTURE:
//   rootCmd (invoicedash)
//   ├── inspectCmd (invoicedash inspect)
//   ├── reportCmd  (invoicedash report)
//   ├── serveCmd   (invoicedash serve)
//   ├── askCmd     (invoicedash ask)
//   ├── qrCmd      (invoicedash qr)
//   ├── invoiceCmd (invoicedash invoice)
//   └── versionCmd (invoicedash version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads a .env file from the working directory, if present
//   2. Loads the YAML configuration (--config)
//   3. Builds the zap logger
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/invoice-dashboard/internal/config"
	"github.com/ginjaninja78/invoice-dashboard/internal/kpi"
	"github.com/ginjaninja78/invoice-dashboard/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging with the development encoder.
var verbose bool

// cfg and logger are set by the root command before a subcommand runs.
var (
	cfg    *config.Config
	logger *zap.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "invoicedash",
	Short: "Invoice Dashboard - Analyze invoice exports from CSV and Excel files",
	Long: `Invoice Dashboard loads invoice exports (CSV, TXT, XLSX, XLS) with English
or Arabic headers, normalizes amounts and dates, and reports KPIs over a
filtered view of the data.

Key Features:
  - Bilingual column resolution with per-field bindings
  - Data-quality reports for missing and malformed cells
  - KPIs, grouped series and chart data over filtered views
  - XLSX and XML exports
  - An HTTP API with per-user sessions
  - A data assistant backed by OpenAI
  - Simplified tax invoice PDFs with QR payment codes

Example Usage:
  invoicedash inspect ./input/q1.xlsx
  invoicedash report --status Unpaid --xlsx
  invoicedash serve --config ./config.yaml`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		l, err := logging.New(c.LogLevel, verbose, c.LogFile)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		logger.Debug("configuration loaded", zap.String("config", cfgFile))
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// kpiOptions derives the KPI settings from the loaded configuration.
func kpiOptions() kpi.Options {
	opts := kpi.DefaultOptions()
	if len(cfg.PaidStatusLabels) > 0 {
		opts.PaidStatusLabels = cfg.PaidStatusLabels
	}
	if cfg.Report.TopN > 0 {
		opts.TopN = cfg.Report.TopN
	}
	return opts
}
