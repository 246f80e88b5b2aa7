package models

// Group is an ordered run of entries sharing a context (a day or a mapset)
type Group struct {
	Key     string
	Entries []*Entry
}

// Tree is the ordered forest of history groups.
// A published Tree is read-only: writers build a new Tree instead of editing one.
type Tree struct {
	Groups []*Group
}

// Len returns the number of entries across all groups
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, g := range t.Groups {
		n += len(g.Entries)
	}
	return n
}

// Last returns the most recent group, or nil for an empty tree
func (t *Tree) Last() *Group {
	if t == nil || len(t.Groups) == 0 {
		return nil
	}
	return t.Groups[len(t.Groups)-1]
}

// Group returns the group with the given key, or nil
func (t *Tree) Group(key string) *Group {
	if t == nil {
		return nil
	}
	for _, g := range t.Groups {
		if g.Key == key {
			return g
		}
	}
	return nil
}

// Contains reports whether the entry pointer is part of the tree
func (t *Tree) Contains(e *Entry) bool {
	if t == nil || e == nil {
		return false
	}
	for _, g := range t.Groups {
		for _, candidate := range g.Entries {
			if candidate == e {
				return true
			}
		}
	}
	return false
}

// Entries returns all entries in tree order
func (t *Tree) Entries() []*Entry {
	if t == nil {
		return nil
	}
	out := make([]*Entry, 0, t.Len())
	for _, g := range t.Groups {
		out = append(out, g.Entries...)
	}
	return out
}
