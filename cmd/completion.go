package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func init() {
	// Register custom completions after all commands are initialized
	cobra.OnInitialize(registerCompletions)
}

func registerCompletions() {
	// --db flag: complete with .db files
	rootCmd.RegisterFlagCompletionFunc("db", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"db"}, cobra.ShellCompDirectiveFilterFileExt
	})
	rootCmd.RegisterFlagCompletionFunc("config", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	})

	// Every command with a --mapset flag completes mapsets from the database
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Name == "mapset" {
				c.RegisterFlagCompletionFunc("mapset", completeMapset)
			}
		})
	}

	insertCmd.RegisterFlagCompletionFunc("status", fixedCompletions(
		"success\tCommand finished successfully",
		"failed\tCommand failed",
		"unknown\tExit status not captured",
	))

	listCmd.RegisterFlagCompletionFunc("field", fixedCompletions(
		"command\tMatch the command text",
		"mapset\tMatch the mapset name",
		"status\tMatch the exit status",
	))
	listCmd.RegisterFlagCompletionFunc("group-by", fixedCompletions(
		"day\tGroup by calendar day",
		"mapset\tGroup by mapset",
	))
	listCmd.RegisterFlagCompletionFunc("color", fixedCompletions("auto", "always", "never"))
	listCmd.RegisterFlagCompletionFunc("fmt", completeColumns)
}

func fixedCompletions(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// completeMapset returns the mapsets that have history
func completeMapset(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer database.Close()

	mapsets, err := database.ListMapsets()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return mapsets, cobra.ShellCompDirectiveNoFileComp
}

// completeColumns completes the --fmt column list, skipping columns already given
func completeColumns(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	specified := make(map[string]bool)
	prefix := ""
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		prefix = toComplete[:i+1]
		for _, p := range strings.Split(toComplete[:i], ",") {
			specified[strings.TrimSpace(p)] = true
		}
	}

	var available []string
	for _, col := range listColumns {
		if !specified[col] {
			available = append(available, prefix+col)
		}
	}
	return available, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}
