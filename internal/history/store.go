package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chris/hbrowse/pkg/models"
)

// ErrEmptyCommand is returned by Append for a blank command
var ErrEmptyCommand = errors.New("empty command")

// Source is the authoritative history log a Store rebuilds from
type Source interface {
	LoadEntries(ctx context.Context, mapset string) ([]models.Entry, error)
}

// Store owns the canonical history tree of one browser session.
// Every mutation publishes a new Tree, so a tree returned by CurrentTree
// is never modified afterwards.
type Store struct {
	mu       sync.RWMutex
	source   Source
	grouping Grouping
	now      func() time.Time

	mapset string
	tree   *models.Tree
}

// Option is a functional option for configuring the Store
type Option func(*Store)

// WithGrouping sets how entries are grouped (default GroupByDay)
func WithGrouping(g Grouping) Option {
	return func(s *Store) {
		s.grouping = g
	}
}

// WithNow sets the clock used to timestamp appended entries (for testing)
func WithNow(fn func() time.Time) Option {
	return func(s *Store) {
		s.now = fn
	}
}

// NewStore creates an empty Store reading from src
func NewStore(src Source, opts ...Option) *Store {
	s := &Store{
		source:   src,
		grouping: GroupByDay,
		now:      time.Now,
		tree:     &models.Tree{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Rebuild replaces the whole tree with the log of mapset.
// On failure the previous tree and mapset stay in place.
func (s *Store) Rebuild(ctx context.Context, mapset string) error {
	loaded, err := s.source.LoadEntries(ctx, mapset)
	if err != nil {
		return fmt.Errorf("failed to load history for mapset %q: %w", mapset, err)
	}

	entries := make([]*models.Entry, len(loaded))
	for i := range loaded {
		e := loaded[i]
		entries[i] = &e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree = buildTree(entries, s.grouping)
	s.mapset = mapset
	return nil
}

// Append records command as the newest entry of the active group and returns it.
// The active group is the one the grouping assigns to the new entry; when no
// group has that key yet a new group is started at the end of the tree.
func (s *Store) Append(command string) (*models.Entry, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &models.Entry{
		Timestamp: s.now().Unix(),
		Mapset:    s.mapset,
		Command:   command,
		Status:    models.StatusUnknown,
	}
	key := s.grouping(e)

	groups := make([]*models.Group, len(s.tree.Groups), len(s.tree.Groups)+1)
	copy(groups, s.tree.Groups)

	if i := groupIndex(groups, key); i >= 0 {
		entries := make([]*models.Entry, len(groups[i].Entries), len(groups[i].Entries)+1)
		copy(entries, groups[i].Entries)
		groups[i] = &models.Group{Key: key, Entries: append(entries, e)}
	} else {
		groups = append(groups, &models.Group{Key: key, Entries: []*models.Entry{e}})
	}

	s.tree = &models.Tree{Groups: groups}
	return e, nil
}

// CurrentTree returns the current tree. The result must be treated as read-only.
func (s *Store) CurrentTree() *models.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree
}

// Mapset returns the mapset of the last successful rebuild
func (s *Store) Mapset() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapset
}

// groupIndex searches from the end since the active group is almost always the last one
func groupIndex(groups []*models.Group, key string) int {
	for i := len(groups) - 1; i >= 0; i-- {
		if groups[i].Key == key {
			return i
		}
	}
	return -1
}
