package cmd

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chris/hbrowse/internal/browser"
	"github.com/chris/hbrowse/internal/normalize"
	"github.com/chris/hbrowse/pkg/models"
)

var (
	runExec   bool
	runMapset string
)

var runCmd = &cobra.Command{
	Use:   "run ID",
	Short: "Prepare a recorded command for execution",
	Long: `Normalize the history entry ID the way the browser does before running it:
map algebra expressions are quoted, abbreviated flags are expanded and the
command is split into arguments. Commands matching the ignored pattern are
reported instead of run.

Without --exec the resulting command line is printed. With --exec it is
executed and recorded as a new history entry.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runExec, "exec", false, "Execute the command and record it")
	runCmd.Flags().StringVar(&runMapset, "mapset", "", "Mapset to record the execution in (default: config mapset)")
}

func runRun(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid entry id %q", args[0])
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr())
	defer logger.Sync()

	ignored, err := cfg.IgnoredMatcher()
	if err != nil {
		return err
	}
	norm := normalize.New(
		normalize.WithIgnoredPattern(ignored),
		normalize.WithSpecialFlags(cfg.SpecialFlags),
	)

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	entry, err := database.GetEntry(id)
	if err != nil {
		return err
	}

	out, err := norm.Normalize(entry.Command)
	if err != nil {
		if errors.Is(err, normalize.ErrParse) {
			return fmt.Errorf("%s: %w", browser.ParseErrorCaption, err)
		}
		return err
	}
	line := shellquote.Join(out.Tokens...)
	logger.Debug("normalized", zap.Int64("id", id), zap.Strings("tokens", out.Tokens))

	if len(out.Tokens) == 0 {
		return fmt.Errorf("entry %d has no command", id)
	}
	if out.Ignored {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is run interactively, not executed: %s\n", out.Tokens[0], line)
		return nil
	}
	if !runExec {
		fmt.Fprintln(cmd.OutOrStdout(), line)
		return nil
	}

	mapset := runMapset
	if mapset == "" {
		mapset = cfg.Mapset
	}

	c := exec.Command(out.Tokens[0], out.Tokens[1:]...)
	c.Stdin = cmd.InOrStdin()
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()

	start := time.Now()
	runErr := c.Run()
	runtime := time.Since(start).Milliseconds()

	record := models.NewEntry(line, mapset)
	record.Status = models.StatusSuccess
	if runErr != nil {
		record.Status = models.StatusFailed
	}
	record.Runtime = &runtime

	if _, err := database.InsertEntry(record); err != nil {
		logger.Error("failed to record execution", zap.String("command", line), zap.Error(err))
		return fmt.Errorf("failed to record execution: %w", err)
	}
	logger.Debug("executed", zap.String("command", line), zap.String("status", string(record.Status)), zap.Int64("runtime_ms", runtime))

	if runErr != nil {
		return fmt.Errorf("%s failed: %w", out.Tokens[0], runErr)
	}
	return nil
}
