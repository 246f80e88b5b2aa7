// Package filter derives read-only projections of a history tree.
package filter

import (
	"fmt"
	"strings"

	"github.com/chris/hbrowse/pkg/models"
)

// Field selects the text of an entry a filter matches against
type Field func(e *models.Entry) string

var (
	Command Field = func(e *models.Entry) string { return e.Command }
	Mapset  Field = func(e *models.Entry) string { return e.Mapset }
	Status  Field = func(e *models.Entry) string { return string(e.Status) }
)

// FieldByName returns the field called "command", "mapset" or "status"
func FieldByName(name string) (Field, error) {
	switch name {
	case "", "command":
		return Command, nil
	case "mapset":
		return Mapset, nil
	case "status":
		return Status, nil
	}
	return nil, fmt.Errorf("unknown search field %q (want command, mapset or status)", name)
}

// Filtered returns the entries of tree whose field contains substring,
// keeping each match inside its group. Groups without a match are dropped.
// Matching is case-sensitive. An empty substring returns tree itself.
//
// The result shares entry pointers with tree but never its groups, so it can
// be handed to a view without aliasing the store.
func Filtered(tree *models.Tree, field Field, substring string) *models.Tree {
	if substring == "" {
		return tree
	}
	out := &models.Tree{}
	if tree == nil {
		return out
	}

	for _, g := range tree.Groups {
		var matched []*models.Entry
		for _, e := range g.Entries {
			if strings.Contains(field(e), substring) {
				matched = append(matched, e)
			}
		}
		if len(matched) > 0 {
			out.Groups = append(out.Groups, &models.Group{Key: g.Key, Entries: matched})
		}
	}

	return out
}
