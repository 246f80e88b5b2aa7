// Package browser reacts to history browser events: it keeps the history
// store, the filtered projection and the selection consistent, and turns
// activations into dispatch requests.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/chris/hbrowse/internal/filter"
	"github.com/chris/hbrowse/internal/history"
	"github.com/chris/hbrowse/internal/normalize"
	"github.com/chris/hbrowse/pkg/models"
)

// ParseErrorCaption is the caption of the error shown when an activated
// command cannot be tokenized
const ParseErrorCaption = "Cannot be parsed into command"

// View renders a history tree. It receives a new projection after every change.
type View interface {
	SetTree(tree *models.Tree)
}

// Sink receives the requests the controller emits. Calls are fire-and-forget.
type Sink interface {
	ShowNotification(message string)
	RunIgnoredCommand(tokens []string)
	Dispatch(tokens []string)
	ShowError(caption, message string)
}

// Environment tells the controller which mapset is active
type Environment interface {
	CurrentMapset() string
}

// State is the filter state of the controller
type State int

const (
	Idle State = iota
	Filtered
)

func (s State) String() string {
	if s == Filtered {
		return "filtered"
	}
	return "idle"
}

// Controller is the history browser state machine.
// Handlers run one at a time; View and Sink are called while the controller
// is locked and must not call back into it.
type Controller struct {
	mu sync.Mutex

	store *history.Store
	norm  *normalize.Normalizer
	env   Environment
	view  View
	sink  Sink

	logger *zap.Logger
	field  filter.Field

	filterText string
	projection *models.Tree
	selection  *models.Entry
}

// Option is a functional option for configuring the Controller
type Option func(*Controller)

// WithLogger sets the logger (default: no-op)
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithSearchField sets the entry field the search text matches (default: command)
func WithSearchField(f filter.Field) Option {
	return func(c *Controller) {
		c.field = f
	}
}

// NewController creates a controller showing the current tree of store
func NewController(store *history.Store, norm *normalize.Normalizer, env Environment, view View, sink Sink, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		norm:   norm,
		env:    env,
		view:   view,
		sink:   sink,
		logger: zap.NewNop(),
		field:  filter.Command,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.projection = store.CurrentTree()
	return c
}

// OnMapsetChanged rebuilds the store for the active mapset and clears the selection.
// A failed rebuild leaves tree and selection as they were.
func (c *Controller) OnMapsetChanged(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mapset := c.env.CurrentMapset()
	if err := c.store.Rebuild(ctx, mapset); err != nil {
		c.logger.Error("history rebuild failed", zap.String("mapset", mapset), zap.Error(err))
		c.sink.ShowError("Cannot load history", err.Error())
		return err
	}

	c.logger.Debug("history rebuilt",
		zap.String("mapset", mapset),
		zap.Int("entries", c.store.CurrentTree().Len()))
	c.selection = nil
	c.refresh()
	return nil
}

// OnCommandRecorded appends a freshly executed command. The selection is kept.
func (c *Controller) OnCommandRecorded(command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.store.Append(command); err != nil {
		c.logger.Warn("command not recorded", zap.String("command", command), zap.Error(err))
		return fmt.Errorf("failed to record command: %w", err)
	}

	c.refresh()
	return nil
}

// OnSearchTextChanged filters the tree by text; empty text shows everything
func (c *Controller) OnSearchTextChanged(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filterText = text
	c.refresh()
}

// OnSearchCancelled clears the filter
func (c *Controller) OnSearchCancelled() {
	c.OnSearchTextChanged("")
}

// OnItemSelected makes entry the selection and shows its command.
// An entry that is not in the displayed projection clears the selection.
func (c *Controller) OnItemSelected(entry *models.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry == nil || !c.projection.Contains(entry) {
		c.selection = nil
		return
	}

	c.selection = entry
	c.sink.ShowNotification(entry.Command)
}

// OnItemActivated runs entry, or the selection when entry is nil.
// Without either nothing happens.
func (c *Controller) OnItemActivated(entry *models.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry == nil {
		entry = c.selection
	}
	if entry == nil {
		return
	}

	out, err := c.norm.Normalize(entry.Command)
	if err != nil {
		var perr *normalize.ParseError
		if errors.As(err, &perr) {
			c.logger.Info("command cannot be parsed", zap.String("command", entry.Command), zap.Error(err))
		} else {
			c.logger.Error("command normalization failed", zap.String("command", entry.Command), zap.Error(err))
		}
		c.sink.ShowError(ParseErrorCaption, err.Error())
		return
	}

	if out.Ignored {
		c.logger.Debug("ignored command handed off", zap.Strings("tokens", out.Tokens))
		c.sink.RunIgnoredCommand(out.Tokens)
		return
	}

	c.logger.Debug("dispatching command", zap.Strings("tokens", out.Tokens))
	c.sink.Dispatch(out.Tokens)
}

// SetIgnoredPattern swaps the ignored-command pattern
func (c *Controller) SetIgnoredPattern(m normalize.Matcher) {
	c.norm.SetIgnored(m)
}

// State returns Filtered while a search text is active
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filterText == "" {
		return Idle
	}
	return Filtered
}

// FilterText returns the active search text
func (c *Controller) FilterText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filterText
}

// Selection returns the selected entry or nil
func (c *Controller) Selection() *models.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// Projection returns the tree currently shown
func (c *Controller) Projection() *models.Tree {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

// refresh recomputes the projection, drops a selection that fell out of it
// and hands the result to the view. Callers hold c.mu.
func (c *Controller) refresh() {
	c.projection = filter.Filtered(c.store.CurrentTree(), c.field, c.filterText)
	if c.selection != nil && !c.projection.Contains(c.selection) {
		c.selection = nil
	}
	c.view.SetTree(c.projection)
}
