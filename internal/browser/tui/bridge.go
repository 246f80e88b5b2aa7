package tui

import (
	"sync"

	"github.com/chris/hbrowse/pkg/models"
)

// bridge implements browser.View and browser.Sink. The controller may call it
// from a tea.Cmd goroutine, so everything is queued and the Model drains it
// on its own goroutine.
type bridge struct {
	mu sync.Mutex

	tree        *models.Tree
	treeChanged bool

	notice  string
	errText string

	dispatched [][]string
	ignored    [][]string
}

func (b *bridge) SetTree(tree *models.Tree) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tree = tree
	b.treeChanged = true
}

func (b *bridge) ShowNotification(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notice = message
	b.errText = ""
}

func (b *bridge) RunIgnoredCommand(tokens []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ignored = append(b.ignored, tokens)
}

func (b *bridge) Dispatch(tokens []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatched = append(b.dispatched, tokens)
}

func (b *bridge) ShowError(caption, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errText = caption + ": " + message
	b.notice = ""
}

// pending is a snapshot of what the controller emitted since the last drain
type pending struct {
	tree        *models.Tree
	treeChanged bool
	notice      string
	errText     string
	dispatched  [][]string
	ignored     [][]string
}

func (b *bridge) drain() pending {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := pending{
		tree:        b.tree,
		treeChanged: b.treeChanged,
		notice:      b.notice,
		errText:     b.errText,
		dispatched:  b.dispatched,
		ignored:     b.ignored,
	}
	b.treeChanged = false
	b.notice = ""
	b.errText = ""
	b.dispatched = nil
	b.ignored = nil
	return p
}
