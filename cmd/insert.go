package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chris/hbrowse/pkg/models"
)

var (
	insertCommand   string
	insertMapset    string
	insertStatus    string
	insertTimestamp int64
	insertRuntime   int64
)

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert a command into the history database",
	Long:  "Record an executed command with its mapset, exit status and runtime",
	RunE:  runInsert,
}

func init() {
	rootCmd.AddCommand(insertCmd)

	insertCmd.Flags().StringVar(&insertCommand, "command", "", "Command text (required)")
	insertCmd.Flags().StringVar(&insertMapset, "mapset", "", "Mapset the command ran in (default: config mapset)")
	insertCmd.Flags().StringVar(&insertStatus, "status", "unknown", "Exit status: success, failed or unknown")
	insertCmd.Flags().Int64Var(&insertTimestamp, "timestamp", 0, "Unix timestamp (default: current time)")
	insertCmd.Flags().Int64Var(&insertRuntime, "runtime", 0, "Command runtime in milliseconds")

	insertCmd.MarkFlagRequired("command")
}

func runInsert(cmd *cobra.Command, args []string) error {
	if insertCommand == "" {
		return fmt.Errorf("--command is required")
	}
	status, err := models.ParseStatus(insertStatus)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	mapset := insertMapset
	if mapset == "" {
		mapset = cfg.Mapset
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	entry := models.NewEntry(insertCommand, mapset)
	entry.Status = status

	if insertTimestamp != 0 {
		entry.Timestamp = insertTimestamp
	}
	if insertRuntime > 0 {
		entry.Runtime = &insertRuntime
	}

	id, err := database.InsertEntry(entry)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Inserted entry with ID: %d\n", id)
	return nil
}
