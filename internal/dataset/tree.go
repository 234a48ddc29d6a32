package dataset

import "fmt"

// Tree is an explicit view of a dataset's grouping hierarchy. Collections are
// stored parent first, so removing a level is a merge: the removed level's
// child re-attaches to its parent and no case loses its place in the
// hierarchy. Keeping this as its own type makes the hierarchy invariant
// checkable instead of being implicit in slice-splicing code.
type Tree struct {
	levels []Collection
}

// NewTree builds a hierarchy view over the given collections. The slice is
// copied; mutating the tree never aliases the caller's data.
func NewTree(collections []Collection) *Tree {
	levels := make([]Collection, len(collections))
	copy(levels, collections)
	return &Tree{levels: levels}
}

// RemoveLevel removes the named collection from the hierarchy, merging its
// parent and child levels. It reports whether the level was present.
func (t *Tree) RemoveLevel(name string) bool {
	for i, level := range t.levels {
		if level.Name == name {
			t.levels = append(t.levels[:i], t.levels[i+1:]...)
			return true
		}
	}
	return false
}

// Levels returns the surviving collections, parent first.
func (t *Tree) Levels() []Collection {
	out := make([]Collection, len(t.levels))
	copy(out, t.levels)
	return out
}

// Validate checks the hierarchy invariants: collection names are unique and
// no attribute name appears in more than one level.
func (t *Tree) Validate() error {
	seenColl := make(map[string]bool, len(t.levels))
	seenAttr := make(map[string]string)
	for _, level := range t.levels {
		if seenColl[level.Name] {
			return fmt.Errorf("duplicate collection name: %s", level.Name)
		}
		seenColl[level.Name] = true
		for _, attr := range level.Attrs {
			if owner, ok := seenAttr[attr.Name]; ok {
				return fmt.Errorf("attribute %s appears in both %s and %s", attr.Name, owner, level.Name)
			}
			seenAttr[attr.Name] = level.Name
		}
	}
	return nil
}

// Reparent removes an emptied collection from the hierarchy while preserving
// the row-grouping relationship for the remaining collections. A collection
// with zero attributes after a transformation is structurally empty; its rows
// must be absorbed by the neighboring levels rather than vanish.
func Reparent(collections []Collection, emptied Collection) []Collection {
	tree := NewTree(collections)
	tree.RemoveLevel(emptied.Name)
	return tree.Levels()
}
