package history

import (
	"fmt"
	"time"

	"github.com/chris/hbrowse/pkg/models"
)

// Grouping assigns an entry to the key of the group it belongs to
type Grouping func(e *models.Entry) string

// GroupByDay groups entries by the local calendar day they ran on
func GroupByDay(e *models.Entry) string {
	return time.Unix(e.Timestamp, 0).Format(time.DateOnly)
}

// GroupByMapset groups entries by the mapset they ran in
func GroupByMapset(e *models.Entry) string {
	return e.Mapset
}

// GroupingByName returns the grouping called "day" or "mapset"
func GroupingByName(name string) (Grouping, error) {
	switch name {
	case "", "day":
		return GroupByDay, nil
	case "mapset":
		return GroupByMapset, nil
	}
	return nil, fmt.Errorf("unknown grouping %q (want day or mapset)", name)
}

// buildTree groups entries preserving log order. Groups appear in the order of
// their first entry; a key seen again later joins its existing group.
func buildTree(entries []*models.Entry, grouping Grouping) *models.Tree {
	tree := &models.Tree{}
	index := make(map[string]*models.Group)

	for _, e := range entries {
		key := grouping(e)
		g, ok := index[key]
		if !ok {
			g = &models.Group{Key: key}
			index[key] = g
			tree.Groups = append(tree.Groups, g)
		}
		g.Entries = append(g.Entries, e)
	}

	return tree
}
