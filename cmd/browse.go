package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chris/hbrowse/internal/browser"
	"github.com/chris/hbrowse/internal/browser/tui"
	"github.com/chris/hbrowse/internal/config"
	"github.com/chris/hbrowse/internal/history"
	"github.com/chris/hbrowse/internal/normalize"
)

var browseMapset string

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the history interactively",
	Long: `Open the interactive history browser.

Entries are grouped by day (or mapset). Type / to filter, enter to run the
selected command, y to copy it and m to switch mapsets. Changes to the config
file are applied while the browser is open.`,
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
	browseCmd.Flags().StringVar(&browseMapset, "mapset", "", "Mapset to open (default: config mapset)")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}

	mapset := browseMapset
	if mapset == "" {
		mapset = cfg.Mapset
	}

	field, err := cfg.Field()
	if err != nil {
		return err
	}
	grouping, err := cfg.Grouping()
	if err != nil {
		return err
	}
	ignored, err := cfg.IgnoredMatcher()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	logger, closeLog, err := browseLogger(database.Path())
	if err != nil {
		return err
	}
	defer closeLog()

	store := history.NewStore(database, history.WithGrouping(grouping))
	norm := normalize.New(
		normalize.WithIgnoredPattern(ignored),
		normalize.WithSpecialFlags(cfg.SpecialFlags),
	)

	model := tui.New(store, norm, mapset,
		tui.WithLogger(logger),
		tui.WithRecorder(database),
		tui.WithMapsets(database),
		tui.WithControllerOptions(browser.WithSearchField(field)),
	)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	err = config.Watch(ctx, cfgPath, logger, func(next *config.Config) {
		m, err := next.IgnoredMatcher()
		if err != nil {
			return
		}
		model.Controller().SetIgnoredPattern(m)
		p.Send(tui.NoticeMsg("Configuration reloaded"))
	})
	if err != nil {
		// Without a config directory there is nothing to watch
		logger.Debug("config not watched", zap.String("path", cfgPath), zap.Error(err))
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("browser failed: %w", err)
	}
	return nil
}

// browseLogger logs next to the database with --verbose; the terminal belongs to the TUI
func browseLogger(databasePath string) (*zap.Logger, func(), error) {
	if !verbose {
		return zap.NewNop(), func() {}, nil
	}

	path := filepath.Join(filepath.Dir(databasePath), "browse.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := newLogger(f)
	return logger, func() {
		logger.Sync()
		f.Close()
	}, nil
}
