package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chris/hbrowse/internal/db"
	"github.com/chris/hbrowse/pkg/models"
)

// resetFlags restores every flag variable to its default
func resetFlags() {
	dbPath, configPath, verbose = "", "", false

	insertCommand, insertMapset, insertStatus = "", "", "unknown"
	insertTimestamp, insertRuntime = 0, 0

	listMapset, listAll, listFilter, listField, listGroupBy = "", false, "", "", ""
	listLimit, listFormat, listTimeFormat, listColor = 0, "", "", "auto"

	runExec, runMapset = false, ""
	browseMapset = ""
}

// execute runs the root command with args and returns its standard output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(resetFlags)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

// isolate points config and driver selection away from the user's environment
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv(db.ImplEnv, "")
	return dir
}

// writeConfig writes a config file into the isolated XDG_CONFIG_HOME
func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "hbrowse")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))
}

var listDay = time.Date(2026, 10, 19, 0, 0, 0, 0, time.Local)

func at(day, hour int) int64 {
	return listDay.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour).Unix()
}

// setupDB creates an initialized database holding entries
func setupDB(t *testing.T, entries ...models.Entry) string {
	t.Helper()
	path := filepath.Join(isolate(t), "history.db")

	database, err := db.NewForTesting(path)
	require.NoError(t, err)
	defer database.Close()

	for i := range entries {
		_, err := database.InsertEntry(&entries[i])
		require.NoError(t, err)
	}
	return path
}

func sampleHistory() []models.Entry {
	runtime := int64(1250)
	return []models.Entry{
		{Timestamp: at(0, 9), Mapset: "PERMANENT", Command: "g.region raster=elevation -p", Status: models.StatusSuccess, Runtime: &runtime},
		{Timestamp: at(0, 10), Mapset: "PERMANENT", Command: "r.info elevation", Status: models.StatusFailed},
		{Timestamp: at(1, 9), Mapset: "PERMANENT", Command: "r.slope.aspect elevation=elevation slope=slope --o"},
		{Timestamp: at(1, 10), Mapset: "user1", Command: "v.info roads", Status: models.StatusSuccess},
	}
}
