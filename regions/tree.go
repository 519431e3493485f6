package regions

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/immutable"
)

// RegionTree is a persistent store of values keyed by regions.
//
// Sibling regions are pairwise disjoint and every child region is included
// in its parent's region. Siblings keep the order in which they were written
// so iteration yields the oldest entries first.
type RegionTree[R Region[R], V any] struct {
	entries *immutable.SortedMap[int, *treeEntry[R, V]]
	seq     int
}

type treeEntry[R Region[R], V any] struct {
	region   R
	value    V
	children *RegionTree[R, V]
}

// NewRegionTree returns an empty tree.
func NewRegionTree[R Region[R], V any]() *RegionTree[R, V] {
	return &RegionTree[R, V]{entries: immutable.NewSortedMap[int, *treeEntry[R, V]](nil)}
}

func newRegionTreeFrom[R Region[R], V any](entries []*treeEntry[R, V]) *RegionTree[R, V] {
	b := immutable.NewSortedMapBuilder[int, *treeEntry[R, V]](nil)
	for i, e := range entries {
		b.Set(i, e)
	}
	return &RegionTree[R, V]{entries: b.Map(), seq: len(entries)}
}

// IsEmpty returns true if the tree has no entries.
func (t *RegionTree[R, V]) IsEmpty() bool {
	return t.entries.Len() == 0
}

// Len returns the number of top-level entries.
func (t *RegionTree[R, V]) Len() int {
	return t.entries.Len()
}

// Localize returns the subtree completely included in region. Entries whose
// value fails filter are dropped and their children lifted in their place.
// A nil filter keeps everything.
func (t *RegionTree[R, V]) Localize(region R, filter func(V) bool) *RegionTree[R, V] {
	covered, _ := t.split(region, filterOrAll(filter))
	return covered
}

// Split returns the subtree completely included in region and the subtree
// disjoint from it.
func (t *RegionTree[R, V]) Split(region R, filter func(V) bool) (covered, disjoint *RegionTree[R, V]) {
	return t.split(region, filterOrAll(filter))
}

// Write places value at region. Entries inside region become children of
// the new entry, which is ordered after all of its siblings.
func (t *RegionTree[R, V]) Write(region R, value V, filter func(V) bool) *RegionTree[R, V] {
	covered, disjoint := t.split(region, filterOrAll(filter))
	return &RegionTree[R, V]{
		entries: disjoint.entries.Set(disjoint.seq, &treeEntry[R, V]{region: region, value: value, children: covered}),
		seq:     disjoint.seq + 1,
	}
}

func filterOrAll[V any](filter func(V) bool) func(V) bool {
	if filter == nil {
		return func(V) bool { return true }
	}
	return filter
}

func (t *RegionTree[R, V]) split(region R, filter func(V) bool) (covered, disjoint *RegionTree[R, V]) {
	if t.IsEmpty() {
		return t, t
	}

	// An entry with exactly this region has only disjoint siblings.
	if key, e, ok := t.find(region); ok {
		if filter(e.value) {
			if t.entries.Len() == 1 {
				covered = t
			} else {
				covered = newRegionTreeFrom([]*treeEntry[R, V]{e})
			}
		} else {
			covered, _ = e.children.split(region, filter)
		}
		return covered, &RegionTree[R, V]{entries: t.entries.Delete(key), seq: t.seq}
	}

	// Intersected entries are cut in two. Included parts keep the position of
	// the original entry in both halves so that older writes stay first.
	var included, excluded []*treeEntry[R, V]
	add := func(list []*treeEntry[R, V], e *treeEntry[R, V]) []*treeEntry[R, V] {
		if filter(e.value) {
			return append(list, e)
		}
		itr := e.children.entries.Iterator()
		for !itr.Done() {
			_, child, _ := itr.Next()
			list = append(list, child)
		}
		return list
	}

	itr := t.entries.Iterator()
	for !itr.Done() {
		_, e, _ := itr.Next()
		switch region.Compare(e.region) {
		case INCLUDES:
			included = add(included, e)
		case DISJOINT:
			excluded = add(excluded, e)
		case INTERSECTS:
			in, out := e.children.split(region, filter)
			included = add(included, &treeEntry[R, V]{region: e.region.Intersect(region), value: e.value, children: in})
			excluded = add(excluded, &treeEntry[R, V]{region: e.region.Subtract(region), value: e.value, children: out})
		}
	}
	return newRegionTreeFrom(included), newRegionTreeFrom(excluded)
}

func (t *RegionTree[R, V]) find(region R) (int, *treeEntry[R, V], bool) {
	itr := t.entries.Iterator()
	for !itr.Done() {
		key, e, _ := itr.Next()
		if e.region.Equal(region) {
			return key, e, true
		}
	}
	return 0, nil, false
}

// CheckInvariant returns an error if siblings overlap or a child escapes its parent.
func (t *RegionTree[R, V]) CheckInvariant() error {
	return t.checkInvariant(nil)
}

func (t *RegionTree[R, V]) checkInvariant(parent *R) error {
	var list []*treeEntry[R, V]
	itr := t.entries.Iterator()
	for !itr.Done() {
		_, e, _ := itr.Next()
		list = append(list, e)
	}

	for i, e := range list {
		if parent != nil && (*parent).Compare(e.region) != INCLUDES {
			return fmt.Errorf("region %s is not included in parent %s", e.region, *parent)
		}
		for _, other := range list[i+1:] {
			if e.region.Compare(other.region) != DISJOINT {
				return fmt.Errorf("sibling regions %s and %s are not disjoint", e.region, other.region)
			}
		}
		if err := e.children.checkInvariant(&e.region); err != nil {
			return err
		}
	}
	return nil
}

// Entry is a top-level entry of a RegionTree.
type Entry[R Region[R], V any] struct {
	Region   R
	Value    V
	Children *RegionTree[R, V]
}

// Entries returns the top-level entries in write order.
func (t *RegionTree[R, V]) Entries() []Entry[R, V] {
	a := make([]Entry[R, V], 0, t.entries.Len())
	itr := t.entries.Iterator()
	for !itr.Done() {
		_, e, _ := itr.Next()
		a = append(a, Entry[R, V]{Region: e.region, Value: e.value, Children: e.children})
	}
	return a
}

// TreeOf returns a tree with the given top-level entries. Entry regions must
// be pairwise disjoint and include their children.
func TreeOf[R Region[R], V any](entries ...Entry[R, V]) *RegionTree[R, V] {
	a := make([]*treeEntry[R, V], len(entries))
	for i, e := range entries {
		children := e.Children
		if children == nil {
			children = NewRegionTree[R, V]()
		}
		a[i] = &treeEntry[R, V]{region: e.Region, value: e.Value, children: children}
	}
	return newRegionTreeFrom(a)
}

// Last returns the most recently written top-level entry.
func (t *RegionTree[R, V]) Last() (region R, value V, ok bool) {
	itr := t.entries.Iterator()
	itr.Last()
	if _, e, ok := itr.Next(); ok {
		return e.region, e.value, true
	}
	return region, value, false
}

// Iterator returns an iterator over all entries of the tree. Children are
// returned before their parents and siblings from oldest to newest.
func (t *RegionTree[R, V]) Iterator() *RegionTreeIterator[R, V] {
	return &RegionTreeIterator[R, V]{
		stack: []*immutable.SortedMapIterator[int, *treeEntry[R, V]]{t.entries.Iterator()},
	}
}

// String returns an indented representation of the tree.
func (t *RegionTree[R, V]) String() string {
	if t.IsEmpty() {
		return "emptyTree"
	}
	var sb strings.Builder
	t.writeTo(&sb, 0)
	return sb.String()
}

func (t *RegionTree[R, V]) writeTo(sb *strings.Builder, depth int) {
	indent := strings.Repeat("\t", depth)
	for _, e := range t.Entries() {
		fmt.Fprintf(sb, "%s%s -> %v:\n", indent, e.Region, e.Value)
		if e.Children.IsEmpty() {
			fmt.Fprintf(sb, "%s\temptyTree\n", indent)
		} else {
			e.Children.writeTo(sb, depth+1)
		}
	}
}

// RegionTreeIterator traverses a RegionTree in post order.
type RegionTreeIterator[R Region[R], V any] struct {
	stack []*immutable.SortedMapIterator[int, *treeEntry[R, V]]
	nodes []*treeEntry[R, V]
}

// Done returns true if no entries remain.
func (itr *RegionTreeIterator[R, V]) Done() bool {
	if len(itr.stack) == 0 {
		return true
	}
	if !itr.stack[len(itr.stack)-1].Done() {
		return false
	}
	return len(itr.nodes) == 0
}

// Next returns the next region and value. Returns false when the iterator is exhausted.
func (itr *RegionTreeIterator[R, V]) Next() (region R, value V, ok bool) {
	for len(itr.stack) > 0 {
		top := itr.stack[len(itr.stack)-1]

		// All children emitted, emit the parent.
		if top.Done() {
			itr.stack = itr.stack[:len(itr.stack)-1]
			if len(itr.nodes) == 0 {
				break
			}
			e := itr.nodes[len(itr.nodes)-1]
			itr.nodes = itr.nodes[:len(itr.nodes)-1]
			return e.region, e.value, true
		}

		_, e, _ := top.Next()
		if e.children.IsEmpty() {
			return e.region, e.value, true
		}
		itr.nodes = append(itr.nodes, e)
		itr.stack = append(itr.stack, e.children.entries.Iterator())
	}
	return region, value, false
}

// Dot returns the tree in graphviz DOT format. Edges point from parents to children.
func (t *RegionTree[R, V]) Dot() string {
	var sb strings.Builder
	sb.WriteString("digraph regiontree {\n\tnode [shape=box];\n")
	var n int
	var walk func(tree *RegionTree[R, V], parent int)
	walk = func(tree *RegionTree[R, V], parent int) {
		for _, e := range tree.Entries() {
			n++
			id := n
			fmt.Fprintf(&sb, "\tn%d [label=%q];\n", id, fmt.Sprintf("%s\n%v", e.Region, e.Value))
			if parent != 0 {
				fmt.Fprintf(&sb, "\tn%d -> n%d;\n", parent, id)
			}
			walk(e.Children, id)
		}
	}
	walk(t, 0)
	sb.WriteString("}\n")
	return sb.String()
}
