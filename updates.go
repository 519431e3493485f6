package symmem

import (
	"strings"

	"github.com/symmem/symmem/regions"
)

// UpdateLog is a persistent, ordered log of writes to a collection.
// Every method returns a new log and leaves the receiver unchanged.
type UpdateLog[K any] interface {
	// Read returns the log restricted to writes that may affect key.
	Read(key K) UpdateLog[K]

	// Write appends a write of value to key under guard.
	Write(key K, value, guard Expr) UpdateLog[K]

	// CopyRange appends a ranged update.
	CopyRange(node *RangedUpdateNode[K]) UpdateLog[K]

	// Split removes the writes of key whose value matches pred and appends
	// them to matching, newest first, guarded so that newer non-matching
	// writes take precedence.
	Split(key K, pred func(Expr) bool, matching *[]GuardedExpr, gb *GuardBuilder) UpdateLog[K]

	// Last returns the most recent write or nil if the log is empty.
	Last() UpdateNode[K]

	// IsEmpty returns true if the log has no writes.
	IsEmpty() bool

	// Nodes returns every write exactly once, oldest first.
	Nodes() []UpdateNode[K]

	String() string
}

// FlatLog is an update log stored as a linked list, newest first. It suits
// collections with few keys, such as fields and array lengths.
type FlatLog[K any] struct {
	node    UpdateNode[K]
	next    *FlatLog[K]
	keyInfo KeyComparer[K]
}

// NewFlatLog returns an empty flat log.
func NewFlatLog[K any](keyInfo KeyComparer[K]) *FlatLog[K] {
	return &FlatLog[K]{keyInfo: keyInfo}
}

// Read returns the log itself. Flat logs are not localized.
func (l *FlatLog[K]) Read(key K) UpdateLog[K] { return l }

func (l *FlatLog[K]) Write(key K, value, guard Expr) UpdateLog[K] {
	return l.push(NewPinpointUpdateNode(key, value, guard, l.keyInfo))
}

func (l *FlatLog[K]) CopyRange(node *RangedUpdateNode[K]) UpdateLog[K] {
	return l.push(node)
}

func (l *FlatLog[K]) push(node UpdateNode[K]) *FlatLog[K] {
	return &FlatLog[K]{node: node, next: l, keyInfo: l.keyInfo}
}

func (l *FlatLog[K]) Split(key K, pred func(Expr) bool, matching *[]GuardedExpr, gb *GuardBuilder) UpdateLog[K] {
	var kept []UpdateNode[K]
	changed := false

	tail := l
	for ; tail.node != nil && !gb.IsFalse(); tail = tail.next {
		n := tail.node.split(key, pred, matching, gb)
		if n != tail.node {
			changed = true
		}
		if n != nil {
			kept = append(kept, n)
		}
	}
	if !changed {
		return l
	}

	// Rebuild the visited prefix on top of the untouched tail.
	result := tail
	for i := len(kept) - 1; i >= 0; i-- {
		result = result.push(kept[i])
	}
	return result
}

func (l *FlatLog[K]) Last() UpdateNode[K] { return l.node }

func (l *FlatLog[K]) IsEmpty() bool { return l.node == nil }

func (l *FlatLog[K]) Nodes() []UpdateNode[K] {
	var a []UpdateNode[K]
	for p := l; p.node != nil; p = p.next {
		a = append(a, p.node)
	}
	for i, j := 0, len(a)-1; i < j; i, j = i+1, j-1 {
		a[i], a[j] = a[j], a[i]
	}
	return a
}

func (l *FlatLog[K]) String() string {
	if l.IsEmpty() {
		return "emptyLog"
	}
	var sb strings.Builder
	for i, n := range l.Nodes() {
		if i > 0 {
			sb.WriteString(" -> ")
		}
		sb.WriteString(n.String())
	}
	return sb.String()
}

// TreeLog is an update log stored in a region tree so that reads only
// visit writes whose region overlaps the key.
type TreeLog[K any, R regions.Region[R]] struct {
	tree    *regions.RegionTree[R, UpdateNode[K]]
	keyInfo KeyInfo[K, R]
}

// NewTreeLog returns an empty tree log.
func NewTreeLog[K any, R regions.Region[R]](keyInfo KeyInfo[K, R]) *TreeLog[K, R] {
	return &TreeLog[K, R]{tree: regions.NewRegionTree[R, UpdateNode[K]](), keyInfo: keyInfo}
}

// Tree returns the underlying region tree.
func (l *TreeLog[K, R]) Tree() *regions.RegionTree[R, UpdateNode[K]] { return l.tree }

func (l *TreeLog[K, R]) Read(key K) UpdateLog[K] {
	tree := l.tree.Localize(l.keyInfo.Region(key), func(n UpdateNode[K]) bool {
		return !IsConstantFalse(n.IncludesSymbolically(key))
	})
	if tree == l.tree {
		return l
	}
	return &TreeLog[K, R]{tree: tree, keyInfo: l.keyInfo}
}

func (l *TreeLog[K, R]) Write(key K, value, guard Expr) UpdateLog[K] {
	return l.write(NewPinpointUpdateNode[K](key, value, guard, l.keyInfo))
}

func (l *TreeLog[K, R]) CopyRange(node *RangedUpdateNode[K]) UpdateLog[K] {
	return l.write(node)
}

// write places node at its region. Older writes that the node overwrites
// in every model are dropped.
func (l *TreeLog[K, R]) write(node UpdateNode[K]) *TreeLog[K, R] {
	tree := l.tree.Write(l.region(node), node, func(n UpdateNode[K]) bool {
		return !n.IsIncludedByUpdateConcretely(node)
	})
	return &TreeLog[K, R]{tree: tree, keyInfo: l.keyInfo}
}

func (l *TreeLog[K, R]) region(node UpdateNode[K]) R {
	switch node := node.(type) {
	case *PinpointUpdateNode[K]:
		return l.keyInfo.Region(node.key)
	case *RangedUpdateNode[K]:
		return l.keyInfo.RangeRegion(node.From(), node.To())
	default:
		panic("unreachable")
	}
}

// Split localizes the log to key, splits its writes newest first and
// replays the remaining ones into a fresh tree.
func (l *TreeLog[K, R]) Split(key K, pred func(Expr) bool, matching *[]GuardedExpr, gb *GuardBuilder) UpdateLog[K] {
	nodes := l.Read(key).Nodes()

	kept := make([]UpdateNode[K], 0, len(nodes))
	changed := false
	i := len(nodes) - 1
	for ; i >= 0 && !gb.IsFalse(); i-- {
		n := nodes[i].split(key, pred, matching, gb)
		if n != nodes[i] {
			changed = true
		}
		if n != nil {
			kept = append(kept, n)
		}
	}
	if !changed {
		return l
	}

	result := NewTreeLog[K, R](l.keyInfo)
	for _, n := range nodes[:i+1] {
		result = result.write(n)
	}
	for j := len(kept) - 1; j >= 0; j-- {
		result = result.write(kept[j])
	}
	return result
}

func (l *TreeLog[K, R]) Last() UpdateNode[K] {
	_, n, ok := l.tree.Last()
	if !ok {
		return nil
	}
	return n
}

func (l *TreeLog[K, R]) IsEmpty() bool { return l.tree.IsEmpty() }

// Nodes returns the writes in post order. Writes cut in pieces by later
// overlapping writes are returned once.
func (l *TreeLog[K, R]) Nodes() []UpdateNode[K] {
	var a []UpdateNode[K]
	seen := make(map[UpdateNode[K]]struct{})
	itr := l.tree.Iterator()
	for !itr.Done() {
		_, n, ok := itr.Next()
		if !ok {
			break
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		a = append(a, n)
	}
	return a
}

func (l *TreeLog[K, R]) String() string {
	return l.tree.String()
}
