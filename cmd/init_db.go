package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chris/hbrowse/internal/db"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the database schema",
	Long:  "Creates the history database and initializes the schema. Safe to run multiple times - will not overwrite existing data.",
	RunE:  runInitDB,
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	// Open with SkipSchemaCheck, then call InitSchema to detect new vs existing
	database, err := db.NewWithOptions(cfg.Database, db.Options{SkipSchemaCheck: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	created, err := database.InitSchema()
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "Database initialized: %s\n", database.Path())
	}
	// Silent if already initialized

	return nil
}
