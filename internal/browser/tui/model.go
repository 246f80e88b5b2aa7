// Package tui is the terminal front end of the history browser. It renders the
// controller's projection as a grouped list with a search box, and runs the
// commands the controller dispatches.
package tui

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/chris/hbrowse/internal/browser"
	"github.com/chris/hbrowse/internal/history"
	"github.com/chris/hbrowse/internal/normalize"
	"github.com/chris/hbrowse/pkg/models"
)

// Recorder persists the commands run from the browser
type Recorder interface {
	InsertEntry(e *models.Entry) (int64, error)
}

// MapsetLister lists the mapsets that have history
type MapsetLister interface {
	ListMapsets() ([]string, error)
}

// Runner starts a dispatched command. The returned tea.Cmd must eventually
// produce a message built by finished.
type Runner func(tokens []string, finished func(err error, runtime time.Duration) tea.Msg) tea.Cmd

// NoticeMsg shows a message in the status bar
type NoticeMsg string

// row is a line of the list: a group header when entry is nil
type row struct {
	group *models.Group
	entry *models.Entry
}

// mapsetEnv is the browser.Environment of the TUI
type mapsetEnv struct {
	mu   sync.Mutex
	name string
}

func (e *mapsetEnv) CurrentMapset() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

func (e *mapsetEnv) set(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.name = name
}

// Model represents the TUI state
type Model struct {
	controller *browser.Controller
	bridge     *bridge
	env        *mapsetEnv

	// Collaborators
	mapsets  MapsetLister
	recorder Recorder
	run      Runner
	logger   *zap.Logger

	// Data
	tree *models.Tree
	rows []row

	// Selection
	cursor int // index into rows, -1 when nothing is selected
	offset int

	// Search
	search    textinput.Model
	searching bool

	help     help.Model
	showHelp bool

	status    string
	statusErr bool

	// UI dimensions
	width  int
	height int

	focused bool

	controllerOpts []browser.Option

	// For testing - allows injecting "now"
	now func() time.Time
}

// Option is a functional option for configuring the Model
type Option func(*Model)

// WithNow sets the function used to get the current time (for testing)
func WithNow(fn func() time.Time) Option {
	return func(m *Model) {
		m.now = fn
	}
}

// WithLogger sets the logger used by the model and its controller
func WithLogger(l *zap.Logger) Option {
	return func(m *Model) {
		m.logger = l
	}
}

// WithRecorder persists every command run from the browser
func WithRecorder(r Recorder) Option {
	return func(m *Model) {
		m.recorder = r
	}
}

// WithMapsets enables switching between the mapsets l returns
func WithMapsets(l MapsetLister) Option {
	return func(m *Model) {
		m.mapsets = l
	}
}

// WithRunner replaces the runner that executes dispatched commands
func WithRunner(r Runner) Option {
	return func(m *Model) {
		m.run = r
	}
}

// WithControllerOptions passes options to the browser controller
func WithControllerOptions(opts ...browser.Option) Option {
	return func(m *Model) {
		m.controllerOpts = append(m.controllerOpts, opts...)
	}
}

// New creates a Model browsing the history of mapset
func New(store *history.Store, norm *normalize.Normalizer, mapset string, opts ...Option) *Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter history"
	ti.CharLimit = 256

	m := &Model{
		bridge:  &bridge{},
		env:     &mapsetEnv{name: mapset},
		run:     execRunner,
		logger:  zap.NewNop(),
		cursor:  -1,
		search:  ti,
		help:    help.New(),
		focused: true,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	controllerOpts := append([]browser.Option{browser.WithLogger(m.logger)}, m.controllerOpts...)
	m.controller = browser.NewController(store, norm, m.env, m.bridge, m.bridge, controllerOpts...)
	return m
}

// execRunner suspends the TUI and runs the command in the foreground
func execRunner(tokens []string, finished func(err error, runtime time.Duration) tea.Msg) tea.Cmd {
	c := exec.Command(tokens[0], tokens[1:]...)
	start := time.Now()
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return finished(err, time.Since(start))
	})
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return m.reload
}

// reload rebuilds the history of the current mapset
func (m *Model) reload() tea.Msg {
	return reloadedMsg{err: m.controller.OnMapsetChanged(context.Background())}
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		_, cmd = m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ensureCursorVisible()

	case tea.FocusMsg:
		m.focused = true

	case tea.BlurMsg:
		m.focused = false

	case reloadedMsg:
		if msg.err != nil {
			m.logger.Debug("reload failed", zap.Error(msg.err))
		}

	case commandFinishedMsg:
		m.finishCommand(msg)

	case yankResultMsg:
		if msg.err != nil {
			m.setError("Cannot copy command: " + msg.err.Error())
		} else {
			m.setStatus(msg.notice)
		}

	case NoticeMsg:
		m.setStatus(string(msg))

	default:
		if m.searching {
			m.search, cmd = m.search.Update(msg)
		}
	}

	return m, tea.Batch(cmd, m.sync())
}

// sync applies what the controller emitted and starts the requested commands
func (m *Model) sync() tea.Cmd {
	p := m.bridge.drain()

	if p.treeChanged {
		m.setTree(p.tree)
	}
	if p.errText != "" {
		m.setError(p.errText)
	} else if p.notice != "" {
		m.setStatus(p.notice)
	}

	var cmds []tea.Cmd
	for _, tokens := range p.dispatched {
		if len(tokens) == 0 {
			continue
		}
		m.setStatus("Running " + shellquote.Join(tokens...))
		cmds = append(cmds, m.run(tokens, func(err error, runtime time.Duration) tea.Msg {
			return commandFinishedMsg{tokens: tokens, err: err, runtime: runtime}
		}))
	}
	for _, tokens := range p.ignored {
		if len(tokens) == 0 {
			continue
		}
		notice := fmt.Sprintf("%s needs its interactive dialog, command copied to clipboard", tokens[0])
		m.setStatus(notice)
		cmds = append(cmds, yankToClipboard(shellquote.Join(tokens...), notice))
	}
	return tea.Batch(cmds...)
}

// setTree replaces the displayed rows, keeping the cursor on the selection
func (m *Model) setTree(tree *models.Tree) {
	if tree == nil {
		tree = &models.Tree{}
	}
	m.tree = tree
	m.rows = m.rows[:0]
	for _, g := range tree.Groups {
		m.rows = append(m.rows, row{group: g})
		for _, e := range g.Entries {
			m.rows = append(m.rows, row{group: g, entry: e})
		}
	}

	m.cursor = -1
	if sel := m.controller.Selection(); sel != nil {
		for i, r := range m.rows {
			if r.entry == sel {
				m.cursor = i
				break
			}
		}
	}
	if m.offset > len(m.rows) {
		m.offset = 0
	}
	m.ensureCursorVisible()
}

func (m *Model) finishCommand(msg commandFinishedMsg) {
	line := shellquote.Join(msg.tokens...)
	status := models.StatusSuccess
	if msg.err != nil {
		status = models.StatusFailed
	}

	if m.recorder != nil {
		runtime := msg.runtime.Milliseconds()
		entry := &models.Entry{
			Timestamp: m.now().Unix(),
			Mapset:    m.env.CurrentMapset(),
			Command:   line,
			Status:    status,
			Runtime:   &runtime,
		}
		if _, err := m.recorder.InsertEntry(entry); err != nil {
			m.logger.Error("failed to persist command", zap.String("command", line), zap.Error(err))
			m.setError("Cannot save command: " + err.Error())
			return
		}
	}

	if err := m.controller.OnCommandRecorded(line); err != nil {
		m.setError(err.Error())
		return
	}

	if msg.err != nil {
		m.setError(fmt.Sprintf("%s failed: %v", msg.tokens[0], msg.err))
		return
	}
	m.setStatus(fmt.Sprintf("%s finished in %s", msg.tokens[0], msg.runtime.Round(time.Millisecond)))
}

func (m *Model) handleKey(msg tea.KeyMsg) (*Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Down):
		m.moveCursor(1)

	case key.Matches(msg, keys.Up):
		m.moveCursor(-1)

	case key.Matches(msg, keys.Top):
		m.selectRow(m.nextEntryRow(-1, 1))

	case key.Matches(msg, keys.Bottom):
		m.selectRow(m.nextEntryRow(len(m.rows), -1))

	case key.Matches(msg, keys.Activate):
		m.controller.OnItemActivated(nil)

	case key.Matches(msg, keys.Search):
		m.searching = true
		return m, m.search.Focus()

	case key.Matches(msg, keys.Clear):
		if m.controller.State() == browser.Filtered {
			m.search.SetValue("")
			m.controller.OnSearchCancelled()
		}

	case key.Matches(msg, keys.Yank):
		if sel := m.controller.Selection(); sel != nil {
			return m, yankToClipboard(sel.Command, "Yanked: "+sel.Command)
		}

	case key.Matches(msg, keys.NextMapset):
		return m, m.cycleMapset(1)

	case key.Matches(msg, keys.PrevMapset):
		return m, m.cycleMapset(-1)

	case key.Matches(msg, keys.Reload):
		return m, m.reload

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	}

	return m, nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (*Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.controller.OnSearchCancelled()
		return m, nil

	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if value := m.search.Value(); value != before {
		m.controller.OnSearchTextChanged(value)
	}
	return m, cmd
}

// moveCursor selects the next entry row in direction step. Without a
// selection, down starts at the first entry and up at the last.
func (m *Model) moveCursor(step int) {
	from := m.cursor
	if from < 0 {
		if step > 0 {
			from = -1
		} else {
			from = len(m.rows)
		}
	}
	if idx := m.nextEntryRow(from, step); idx >= 0 {
		m.selectRow(idx)
	}
}

// nextEntryRow returns the first entry row after from in direction step, or -1
func (m *Model) nextEntryRow(from, step int) int {
	for i := from + step; i >= 0 && i < len(m.rows); i += step {
		if m.rows[i].entry != nil {
			return i
		}
	}
	return -1
}

func (m *Model) selectRow(idx int) {
	if idx < 0 {
		return
	}
	m.controller.OnItemSelected(m.rows[idx].entry)
	m.cursor = idx
	m.ensureCursorVisible()
}

// cycleMapset switches to the next mapset with history and reloads
func (m *Model) cycleMapset(step int) tea.Cmd {
	if m.mapsets == nil {
		return nil
	}
	names, err := m.mapsets.ListMapsets()
	if err != nil {
		m.setError("Cannot list mapsets: " + err.Error())
		return nil
	}
	if len(names) == 0 {
		return nil
	}

	current := m.env.CurrentMapset()
	idx := -1
	for i, name := range names {
		if name == current {
			idx = i
			break
		}
	}
	next := 0
	if idx >= 0 {
		next = (idx + step + len(names)) % len(names)
	}
	if names[next] == current {
		return nil
	}

	m.env.set(names[next])
	m.cursor = -1
	m.offset = 0
	m.setStatus("Loading " + names[next])
	return m.reload
}

func (m *Model) bodyHeight() int {
	if m.height == 0 {
		return 0
	}
	// header, separator, separator, status, help, search
	avail := m.height - 6
	if avail < 1 {
		avail = 1
	}
	return avail
}

// ensureCursorVisible adjusts offset to keep the cursor and its group header in view
func (m *Model) ensureCursorVisible() {
	avail := m.bodyHeight()
	if avail == 0 || m.cursor < 0 {
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
		if m.offset > 0 && m.rows[m.offset-1].entry == nil {
			m.offset--
		}
	}
	if m.cursor >= m.offset+avail {
		m.offset = m.cursor - avail + 1
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

// View implements tea.Model
func (m *Model) View() string {
	return m.renderView()
}

// Messages
type reloadedMsg struct {
	err error
}

type commandFinishedMsg struct {
	tokens  []string
	err     error
	runtime time.Duration
}

// Controller returns the controller driving the model
func (m *Model) Controller() *browser.Controller {
	return m.controller
}

// Getters for testing
func (m *Model) Cursor() int {
	return m.cursor
}

func (m *Model) Mapset() string {
	return m.env.CurrentMapset()
}

func (m *Model) Status() string {
	return m.status
}

func (m *Model) StatusIsError() bool {
	return m.statusErr
}

func (m *Model) Searching() bool {
	return m.searching
}

func (m *Model) Focused() bool {
	return m.focused
}

func (m *Model) Tree() *models.Tree {
	return m.tree
}

// SelectedEntry returns the entry under the cursor or nil
func (m *Model) SelectedEntry() *models.Entry {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].entry
}
