package tui

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris/hbrowse/internal/browser"
	"github.com/chris/hbrowse/internal/db"
	"github.com/chris/hbrowse/internal/history"
	"github.com/chris/hbrowse/internal/normalize"
	"github.com/chris/hbrowse/pkg/models"
)

// fixedTime returns a function that always returns the given time
func fixedTime(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var today = time.Date(2026, 10, 19, 12, 0, 0, 0, time.Local)

// makeEntry creates an entry daysAgo days before today at the given hour
func makeEntry(daysAgo, hour int, mapset, command string) models.Entry {
	day := today.AddDate(0, 0, -daysAgo)
	return models.Entry{
		Timestamp: time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.Local).Unix(),
		Mapset:    mapset,
		Command:   command,
		Status:    models.StatusSuccess,
	}
}

// setupTestDB creates a test database with the given entries
func setupTestDB(t *testing.T, entries []models.Entry) *db.DB {
	t.Helper()
	database, err := db.NewForTesting(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	for i := range entries {
		_, err := database.InsertEntry(&entries[i])
		require.NoError(t, err)
	}
	return database
}

// fakeRunner records dispatched commands instead of executing them
type fakeRunner struct {
	calls [][]string
	err   error
}

func (f *fakeRunner) run(tokens []string, finished func(err error, runtime time.Duration) tea.Msg) tea.Cmd {
	f.calls = append(f.calls, tokens)
	return func() tea.Msg {
		return finished(f.err, 1500*time.Millisecond)
	}
}

type failingLister struct{}

func (failingLister) ListMapsets() ([]string, error) { return nil, errors.New("disk gone") }

// initModel creates a model and loads the history of mapset
func initModel(t *testing.T, database *db.DB, mapset string, opts ...Option) (*Model, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{}
	store := history.NewStore(database, history.WithNow(fixedTime(today)))
	norm := normalize.New(normalize.WithIgnoredPattern(normalize.MustCompile(`^d\..*`)))

	opts = append([]Option{
		WithNow(fixedTime(today)),
		WithRunner(runner.run),
		WithRecorder(database),
		WithMapsets(database),
	}, opts...)
	model := New(store, norm, mapset, opts...)
	runCmd(model, model.Init())
	return model, runner
}

// runCmd executes cmd and feeds the resulting messages back into the model.
// Exec commands (clipboard, processes) are not run by the test.
func runCmd(model *Model, cmd tea.Cmd) {
	runCmdDepth(model, cmd, 0)
}

func runCmdDepth(model *Model, cmd tea.Cmd, depth int) {
	if cmd == nil || depth > 4 {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			runCmdDepth(model, c, depth+1)
		}
		return
	}
	_, next := model.Update(msg)
	runCmdDepth(model, next, depth+1)
}

// pressKey simulates a key press and executes any resulting command
func pressKey(model *Model, key rune) {
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{key}})
	runCmd(model, cmd)
}

func pressSpecial(model *Model, keyType tea.KeyType) {
	_, cmd := model.Update(tea.KeyMsg{Type: keyType})
	runCmd(model, cmd)
}

// openSearch focuses the search box without running the cursor blink command
func openSearch(model *Model) {
	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
}

// typeText types into the search box without running cursor blink commands
func typeText(model *Model, text string) {
	for _, r := range text {
		model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func twoDayHistory() []models.Entry {
	return []models.Entry{
		makeEntry(1, 9, "PERMANENT", "g.region raster=elevation"),
		makeEntry(1, 10, "PERMANENT", "r.info elevation"),
		makeEntry(0, 9, "PERMANENT", "r.slope.aspect elevation=elevation slope=slope --o"),
		makeEntry(0, 10, "PERMANENT", "d.rast slope"),
		makeEntry(0, 11, "user1", "v.info roads"),
	}
}

// TestLaunchShowsGroupedHistory tests the scenario:
// "Launch the browser on a mapset with two days of history"
func TestLaunchShowsGroupedHistory(t *testing.T) {
	// Given: history on two days in PERMANENT and one entry in user1
	database := setupTestDB(t, twoDayHistory())

	// When: the browser starts on PERMANENT
	model, _ := initModel(t, database, "PERMANENT")

	// Then: both day groups of PERMANENT are shown, nothing is selected
	view := model.View()
	assert.Contains(t, view, "History")
	assert.Contains(t, view, "PERMANENT")
	assert.Contains(t, view, "Yesterday")
	assert.Contains(t, view, "Today")
	assert.Contains(t, view, "g.region raster=elevation")
	assert.Contains(t, view, "d.rast slope")
	assert.NotContains(t, view, "v.info roads")
	assert.Equal(t, 4, model.Tree().Len())
	assert.Equal(t, -1, model.Cursor())
	assert.Nil(t, model.SelectedEntry())
}

// TestLaunchWithEmptyHistory tests the scenario:
// "Launch the browser on a mapset without history"
func TestLaunchWithEmptyHistory(t *testing.T) {
	// Given: an empty database
	database := setupTestDB(t, nil)

	// When: the browser starts
	model, _ := initModel(t, database, "PERMANENT")

	// Then: an empty-state message is shown
	assert.Contains(t, model.View(), "No commands found")
	assert.Equal(t, 0, model.Tree().Len())
}

// TestNavigateDownSelectsEntries tests the scenario:
// "Moving down selects entries and skips group headers"
func TestNavigateDownSelectsEntries(t *testing.T) {
	// Given: the browser with two day groups
	database := setupTestDB(t, twoDayHistory())
	model, _ := initModel(t, database, "PERMANENT")

	// When: j is pressed once
	pressKey(model, 'j')

	// Then: the oldest entry is selected and its command is shown
	require.NotNil(t, model.SelectedEntry())
	assert.Equal(t, "g.region raster=elevation", model.SelectedEntry().Command)
	assert.Same(t, model.SelectedEntry(), model.Controller().Selection())
	assert.Equal(t, "g.region raster=elevation", model.Status())

	// When: j is pressed twice more
	pressKey(model, 'j')
	pressKey(model, 'j')

	// Then: the selection crossed into today's group
	assert.Equal(t, "r.slope.aspect elevation=elevation slope=slope --o", model.SelectedEntry().Command)
}

// TestNavigateUpFromNothingSelectsLast tests the scenario:
// "Moving up without a selection starts at the newest entry"
func TestNavigateUpFromNothingSelectsLast(t *testing.T) {
	database := setupTestDB(t, twoDayHistory())
	model, _ := initModel(t, database, "PERMANENT")

	pressKey(model, 'k')

	require.NotNil(t, model.SelectedEntry())
	assert.Equal(t, "d.rast slope", model.SelectedEntry().Command)

	// k at the top stays on the first entry
	pressKey(model, 'g')
	first := model.Cursor()
	pressKey(model, 'k')
	assert.Equal(t, first, model.Cursor())
}

// TestFilterNarrowsTree tests the scenario:
// "Typing a filter narrows the tree and esc restores it"
func TestFilterNarrowsTree(t *testing.T) {
	// Given: the browser with four PERMANENT entries
	database := setupTestDB(t, twoDayHistory())
	model, _ := initModel(t, database, "PERMANENT")

	// When: the user opens the search box and types "r."
	openSearch(model)
	assert.True(t, model.Searching())
	typeText(model, "r.")

	// Then: only matching entries remain
	assert.Equal(t, browser.Filtered, model.Controller().State())
	assert.Equal(t, "r.", model.Controller().FilterText())
	assert.Equal(t, 2, model.Tree().Len())
	view := model.View()
	assert.Contains(t, view, "r.info elevation")
	assert.NotContains(t, view, "g.region")

	// When: enter keeps the filter and esc clears it
	pressSpecial(model, tea.KeyEnter)
	assert.False(t, model.Searching())
	assert.Equal(t, browser.Filtered, model.Controller().State())

	pressSpecial(model, tea.KeyEsc)
	assert.Equal(t, browser.Idle, model.Controller().State())
	assert.Equal(t, 4, model.Tree().Len())
}

// TestFilterWithoutMatches tests the scenario:
// "A filter matching nothing shows an empty tree"
func TestFilterWithoutMatches(t *testing.T) {
	database := setupTestDB(t, twoDayHistory())
	model, _ := initModel(t, database, "PERMANENT")

	openSearch(model)
	typeText(model, "zzz")

	assert.Equal(t, 0, model.Tree().Len())
	assert.Contains(t, model.View(), "No matching commands")
}

// TestFilterClearsHiddenSelection tests the scenario:
// "Filtering out the selected entry clears the selection"
func TestFilterClearsHiddenSelection(t *testing.T) {
	// Given: the first entry is selected
	database := setupTestDB(t, twoDayHistory())
	model, _ := initModel(t, database, "PERMANENT")
	pressKey(model, 'j')
	require.NotNil(t, model.SelectedEntry())

	// When: a filter excludes it
	openSearch(model)
	typeText(model, "r.info")

	// Then: nothing is selected
	assert.Nil(t, model.Controller().Selection())
	assert.Equal(t, -1, model.Cursor())
}

// TestSearchEscCancelsFilter tests the scenario:
// "esc while typing discards the filter"
func TestSearchEscCancelsFilter(t *testing.T) {
	database := setupTestDB(t, twoDayHistory())
	model, _ := initModel(t, database, "PERMANENT")

	openSearch(model)
	typeText(model, "slope")
	require.Equal(t, 1, model.Tree().Len())

	pressSpecial(model, tea.KeyEsc)

	assert.False(t, model.Searching())
	assert.Equal(t, browser.Idle, model.Controller().State())
	assert.Equal(t, 4, model.Tree().Len())
}

// TestActivateDispatchesNormalizedCommand tests the scenario:
// "Running a command rewrites special flags, records it and appends it"
func TestActivateDispatchesNormalizedCommand(t *testing.T) {
	// Given: the r.slope.aspect entry with --o is selected
	database := setupTestDB(t, twoDayHistory())
	model, runner := initModel(t, database, "PERMANENT")
	pressKey(model, 'j')
	pressKey(model, 'j')
	pressKey(model, 'j')

	// When: enter is pressed
	pressSpecial(model, tea.KeyEnter)

	// Then: the runner got the normalized tokens
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"r.slope.aspect", "elevation=elevation", "slope=slope", "--overwrite"}, runner.calls[0])

	// And: the finished command was stored and appended to today's group
	assert.Equal(t, "r.slope.aspect finished in 1.5s", model.Status())
	assert.False(t, model.StatusIsError())
	assert.Equal(t, 5, model.Tree().Len())
	assert.Equal(t, "r.slope.aspect elevation=elevation slope=slope --overwrite", model.Tree().Last().Command)

	count, err := database.CountEntries("PERMANENT")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	entries, err := database.LoadEntries(context.Background(), "PERMANENT")
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, models.StatusSuccess, last.Status)
	require.NotNil(t, last.Runtime)
	assert.Equal(t, int64(1500), *last.Runtime)
	assert.Equal(t, today.Unix(), last.Timestamp)
}

// TestActivateRecordsFailure tests the scenario:
// "A command that exits with an error is recorded as failed"
func TestActivateRecordsFailure(t *testing.T) {
	database := setupTestDB(t, twoDayHistory())
	model, runner := initModel(t, database, "PERMANENT")
	runner.err = errors.New("exit status 1")

	pressKey(model, 'j')
	pressSpecial(model, tea.KeyEnter)

	assert.True(t, model.StatusIsError())
	assert.Contains(t, model.Status(), "g.region failed")

	entries, err := database.LoadEntries(context.Background(), "PERMANENT")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, entries[len(entries)-1].Status)
}

// TestActivateWithoutSelection tests the scenario:
// "enter with nothing selected does nothing"
func TestActivateWithoutSelection(t *testing.T) {
	database := setupTestDB(t, twoDayHistory())
	model, runner := initModel(t, database, "PERMANENT")

	pressSpecial(model, tea.KeyEnter)

	assert.Empty(t, runner.calls)
	assert.Equal(t, "", model.Status())
}

// TestActivateIgnoredCommand tests the scenario:
// "An ignored display command is not executed"
func TestActivateIgnoredCommand(t *testing.T) {
	// Given: the d.rast entry is selected
	database := setupTestDB(t, twoDayHistory())
	model, runner := initModel(t, database, "PERMANENT")
	pressKey(model, 'G')
	require.Equal(t, "d.rast slope", model.SelectedEntry().Command)

	// When: it is activated
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})

	// Then: nothing runs and a clipboard copy is requested
	assert.Empty(t, runner.calls)
	assert.NotNil(t, cmd)
	assert.Equal(t, "d.rast needs its interactive dialog, command copied to clipboard", model.Status())
}

// TestActivateUnparsableCommand tests the scenario:
// "A command with broken quoting shows a parse error"
func TestActivateUnparsableCommand(t *testing.T) {
	database := setupTestDB(t, []models.Entry{
		makeEntry(0, 9, "PERMANENT", `v.db.select map=roads where="name = 'x`),
	})
	model, runner := initModel(t, database, "PERMANENT")

	pressKey(model, 'j')
	pressSpecial(model, tea.KeyEnter)

	assert.Empty(t, runner.calls)
	assert.True(t, model.StatusIsError())
	assert.Contains(t, model.Status(), browser.ParseErrorCaption)
}

// TestCycleMapsets tests the scenario:
// "m and M switch between mapsets with history"
func TestCycleMapsets(t *testing.T) {
	database := setupTestDB(t, twoDayHistory())
	model, _ := initModel(t, database, "PERMANENT")
	pressKey(model, 'j')

	pressKey(model, 'm')

	assert.Equal(t, "user1", model.Mapset())
	assert.Equal(t, 1, model.Tree().Len())
	assert.Nil(t, model.Controller().Selection())
	assert.Contains(t, model.View(), "v.info roads")

	pressKey(model, 'M')
	assert.Equal(t, "PERMANENT", model.Mapset())
	assert.Equal(t, 4, model.Tree().Len())
}

// TestCycleMapsetsListError tests the scenario:
// "A failure to list mapsets is shown as an error"
func TestCycleMapsetsListError(t *testing.T) {
	database := setupTestDB(t, twoDayHistory())
	model, _ := initModel(t, database, "PERMANENT", WithMapsets(failingLister{}))

	pressKey(model, 'm')

	assert.Equal(t, "PERMANENT", model.Mapset())
	assert.True(t, model.StatusIsError())
	assert.Contains(t, model.Status(), "disk gone")
}

// TestReloadPicksUpNewEntries tests the scenario:
// "r reloads entries written by another process"
func TestReloadPicksUpNewEntries(t *testing.T) {
	database := setupTestDB(t, twoDayHistory())
	model, _ := initModel(t, database, "PERMANENT")

	e := makeEntry(0, 11, "PERMANENT", "r.univar slope")
	_, err := database.InsertEntry(&e)
	require.NoError(t, err)

	pressKey(model, 'r')

	assert.Equal(t, 5, model.Tree().Len())
	assert.Equal(t, "r.univar slope", model.Tree().Last().Command)
}

func TestYankWithoutSelection(t *testing.T) {
	database := setupTestDB(t, twoDayHistory())
	model, _ := initModel(t, database, "PERMANENT")

	_, cmd := model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	assert.Nil(t, cmd)

	pressKey(model, 'j')
	_, cmd = model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	assert.NotNil(t, cmd)
}

func TestYankResultUpdatesStatus(t *testing.T) {
	database := setupTestDB(t, nil)
	model, _ := initModel(t, database, "PERMANENT")

	model.Update(yankResultMsg{notice: "Yanked: g.list raster"})
	assert.Equal(t, "Yanked: g.list raster", model.Status())

	model.Update(yankResultMsg{err: errors.New("no tty")})
	assert.True(t, model.StatusIsError())
	assert.Contains(t, model.Status(), "no tty")
}

func TestNoticeMsg(t *testing.T) {
	database := setupTestDB(t, nil)
	model, _ := initModel(t, database, "PERMANENT")

	model.Update(NoticeMsg("config reloaded"))

	assert.Equal(t, "config reloaded", model.Status())
	assert.Contains(t, model.View(), "config reloaded")
}

func TestFocusAndBlur(t *testing.T) {
	database := setupTestDB(t, nil)
	model, _ := initModel(t, database, "PERMANENT")

	model.Update(tea.BlurMsg{})
	assert.False(t, model.Focused())
	assert.Contains(t, model.View(), "○")

	model.Update(tea.FocusMsg{})
	assert.True(t, model.Focused())
}

// TestScrollKeepsCursorVisible tests the scenario:
// "Moving past the bottom of a small window scrolls the list"
func TestScrollKeepsCursorVisible(t *testing.T) {
	var entries []models.Entry
	for i := 0; i < 30; i++ {
		entries = append(entries, makeEntry(0, 8, "PERMANENT", "g.list raster"))
	}
	database := setupTestDB(t, entries)
	model, _ := initModel(t, database, "PERMANENT")
	model.Update(tea.WindowSizeMsg{Width: 80, Height: 12})

	pressKey(model, 'G')

	assert.Equal(t, 30, model.Cursor())
	assert.Equal(t, 30-model.bodyHeight()+1, model.offset)

	pressKey(model, 'g')
	assert.Equal(t, 1, model.Cursor())
	assert.Equal(t, 0, model.offset)
}

func TestQuit(t *testing.T) {
	database := setupTestDB(t, nil)
	model, _ := initModel(t, database, "PERMANENT")

	_, cmd := model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHelpToggle(t *testing.T) {
	database := setupTestDB(t, nil)
	model, _ := initModel(t, database, "PERMANENT")

	assert.NotContains(t, model.View(), "previous mapset")
	pressKey(model, '?')
	assert.Contains(t, model.View(), "previous mapset")
}
