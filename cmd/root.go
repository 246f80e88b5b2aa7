package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chris/hbrowse/internal/config"
	"github.com/chris/hbrowse/internal/db"
)

var (
	dbPath     string
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:     "hbrowse",
	Short:   "GRASS command history browser",
	Long:    "Browse, filter and re-run the commands recorded in a GRASS session history",
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file path (default: ~/.local/share/hbrowse/history.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ~/.config/hbrowse/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log debug output to stderr")
	rootCmd.SetVersionTemplate("hbrowse version {{.Version}}\n")
}

// loadConfig reads the config file; --db overrides its database path
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, "", err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}
	return cfg, path, nil
}

// openDatabase opens the configured database with the driver picked by HBROWSE_DB_IMPL
func openDatabase(cfg *config.Config) (db.Database, error) {
	database, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// newLogger writes console-encoded logs to w: warnings by default, everything with --verbose
func newLogger(w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}
