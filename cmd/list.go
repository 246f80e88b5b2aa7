package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/ncruces/go-strftime"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chris/hbrowse/internal/filter"
	"github.com/chris/hbrowse/internal/history"
	"github.com/chris/hbrowse/pkg/models"
)

var (
	listMapset     string
	listAll        bool
	listFilter     string
	listField      string
	listGroupBy    string
	listLimit      int
	listFormat     string
	listTimeFormat string
	listColor      string
)

// listColumns are the column names accepted by --fmt
var listColumns = []string{"id", "time", "ago", "mapset", "status", "runtime", "cmd"}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the command history",
	Long:  "Display the history of a mapset grouped by day (or mapset), oldest first",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listMapset, "mapset", "", "Mapset to list (default: config mapset)")
	listCmd.Flags().BoolVar(&listAll, "all", false, "List the history of every mapset")
	listCmd.Flags().StringVar(&listFilter, "filter", "", "Only show entries whose field contains this text")
	listCmd.Flags().StringVar(&listField, "field", "", "Field matched by --filter: command, mapset or status (default: config searchField)")
	listCmd.Flags().StringVar(&listGroupBy, "group-by", "", "Group entries by day or mapset (default: config groupBy)")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show only the most recent N entries (0: all)")
	listCmd.Flags().StringVar(&listFormat, "fmt", "", "Format output with comma-separated columns ("+strings.Join(listColumns, ",")+")")
	listCmd.Flags().StringVarP(&listTimeFormat, "time-format", "t", "", "Timestamp format (strftime)")
	listCmd.Flags().StringVar(&listColor, "color", "auto", "Colorize output: auto, always or never")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	mapset := listMapset
	if mapset == "" {
		mapset = cfg.Mapset
	}
	if listAll {
		mapset = ""
	}
	if listField != "" {
		cfg.SearchField = listField
	}
	if listGroupBy != "" {
		cfg.GroupBy = listGroupBy
	}

	field, err := cfg.Field()
	if err != nil {
		return err
	}
	grouping, err := cfg.Grouping()
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	store := history.NewStore(database, history.WithGrouping(grouping))
	if err := store.Rebuild(context.Background(), mapset); err != nil {
		return err
	}
	total := store.CurrentTree().Len()
	tree := limitTree(filter.Filtered(store.CurrentTree(), field, listFilter), listLimit)

	out := cmd.OutOrStdout()
	if tree.Len() == 0 {
		fmt.Fprintln(out, "No commands found")
		return nil
	}

	if listFormat != "" {
		return printColumns(out, tree, strings.Split(listFormat, ","))
	}

	styles, err := newListStyles(out, listColor)
	if err != nil {
		return err
	}
	printTree(out, tree, styles)

	if tree.Len() != total {
		fmt.Fprintln(out, styles.dim.Render(fmt.Sprintf("%s of %s commands", humanize.Comma(int64(tree.Len())), humanize.Comma(int64(total)))))
	}
	return nil
}

// limitTree keeps the last n entries of tree; n <= 0 keeps everything
func limitTree(tree *models.Tree, n int) *models.Tree {
	if n <= 0 || tree.Len() <= n {
		return tree
	}

	skip := tree.Len() - n
	limited := &models.Tree{}
	for _, g := range tree.Groups {
		if skip >= len(g.Entries) {
			skip -= len(g.Entries)
			continue
		}
		limited.Groups = append(limited.Groups, &models.Group{Key: g.Key, Entries: g.Entries[skip:]})
		skip = 0
	}
	return limited
}

type listStyles struct {
	group   lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
	failed  lipgloss.Style
}

// newListStyles renders to w, with colors only on a terminal unless forced
func newListStyles(w io.Writer, mode string) (listStyles, error) {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case "always":
		r.SetColorProfile(termenv.ANSI256)
	case "never":
		r.SetColorProfile(termenv.Ascii)
	case "auto", "":
		if !isTerminal(w) {
			r.SetColorProfile(termenv.Ascii)
		}
	default:
		return listStyles{}, fmt.Errorf("invalid --color %q (want auto, always or never)", mode)
	}

	return listStyles{
		group:   r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		dim:     r.NewStyle().Foreground(lipgloss.Color("8")),
		success: r.NewStyle().Foreground(lipgloss.Color("10")),
		failed:  r.NewStyle().Foreground(lipgloss.Color("9")),
	}, nil
}

func printTree(w io.Writer, tree *models.Tree, styles listStyles) {
	timeFormat := listTimeFormat
	if timeFormat == "" {
		timeFormat = "%H:%M:%S"
	}

	for i, g := range tree.Groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		count := fmt.Sprintf("%d commands", len(g.Entries))
		if len(g.Entries) == 1 {
			count = "1 command"
		}
		fmt.Fprintf(w, "%s  %s\n", styles.group.Render(g.Key), styles.dim.Render(count))

		for _, e := range g.Entries {
			mark := styles.dim.Render("·")
			switch e.Status {
			case models.StatusSuccess:
				mark = styles.success.Render("✓")
			case models.StatusFailed:
				mark = styles.failed.Render("✗")
			}
			fmt.Fprintf(w, "  %s %s  %s\n", styles.dim.Render(strftime.Format(timeFormat, e.Time())), mark, e.Command)
		}
	}
}

func printColumns(w io.Writer, tree *models.Tree, columns []string) error {
	timeFormat := listTimeFormat
	if timeFormat == "" {
		timeFormat = "%Y-%m-%d %H:%M:%S"
	}

	for i, col := range columns {
		columns[i] = strings.TrimSpace(col)
		if !slices.Contains(listColumns, columns[i]) {
			return fmt.Errorf("unknown column %q (want %s)", columns[i], strings.Join(listColumns, ","))
		}
	}

	for _, e := range tree.Entries() {
		parts := make([]string, 0, len(columns))
		for _, col := range columns {
			switch col {
			case "id":
				parts = append(parts, strconv.FormatInt(e.ID, 10))
			case "time":
				parts = append(parts, strftime.Format(timeFormat, e.Time()))
			case "ago":
				parts = append(parts, humanize.Time(e.Time()))
			case "mapset":
				parts = append(parts, e.Mapset)
			case "status":
				parts = append(parts, string(e.Status))
			case "runtime":
				parts = append(parts, formatRuntime(e.Runtime))
			case "cmd":
				parts = append(parts, e.Command)
			}
		}
		fmt.Fprintf(w, "%s\n", strings.Join(parts, "\t"))
	}
	return nil
}

// formatRuntime formats a runtime in milliseconds, "-" when it was not captured
func formatRuntime(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return (time.Duration(*ms) * time.Millisecond).String()
}

// isTerminal returns true if the writer is a terminal
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
