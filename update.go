package symmem

import (
	"fmt"
)

// UpdateNode is a single write in an update log. It is either a
// *PinpointUpdateNode or a *RangedUpdateNode.
type UpdateNode[K any] interface {
	// Guard returns the condition under which the write took place.
	Guard() Expr

	// Value returns the value the node stores at key, assuming it includes key.
	Value(key K) Expr

	// IncludesConcretely returns true if the node writes key in every model
	// where precondition holds.
	IncludesConcretely(key K, precondition Expr) bool

	// IncludesSymbolically returns a formula that is true iff the node writes key.
	IncludesSymbolically(key K) Expr

	// IsIncludedByUpdateConcretely returns true if every key written by the
	// node is overwritten by update.
	IsIncludedByUpdateConcretely(update UpdateNode[K]) bool

	String() string

	// split removes the node if its value matches pred. See Collection.split.
	split(key K, pred func(Expr) bool, matching *[]GuardedExpr, gb *GuardBuilder) UpdateNode[K]

	// compose returns the inclusion formula and value of the node for a key
	// that is already expressed in terms of c.
	compose(key K, c *Composer) (includes, value Expr)
}

// PinpointUpdateNode is a write of one value to one key.
type PinpointUpdateNode[K any] struct {
	key     K
	value   Expr
	guard   Expr
	keyInfo KeyComparer[K]
}

// NewPinpointUpdateNode returns a new write of value to key under guard.
func NewPinpointUpdateNode[K any](key K, value, guard Expr, keyInfo KeyComparer[K]) *PinpointUpdateNode[K] {
	return &PinpointUpdateNode[K]{key: key, value: value, guard: guard, keyInfo: keyInfo}
}

// Key returns the written key.
func (n *PinpointUpdateNode[K]) Key() K { return n.key }

// Guard returns the write condition.
func (n *PinpointUpdateNode[K]) Guard() Expr { return n.guard }

// Value returns the written value.
func (n *PinpointUpdateNode[K]) Value(key K) Expr { return n.value }

func (n *PinpointUpdateNode[K]) IncludesConcretely(key K, precondition Expr) bool {
	return n.keyInfo.EqConcretely(n.key, key) && guardHolds(n.guard, precondition)
}

func (n *PinpointUpdateNode[K]) IncludesSymbolically(key K) Expr {
	return NewAndExpr(n.keyInfo.Eq(n.key, key), n.guard)
}

func (n *PinpointUpdateNode[K]) IsIncludedByUpdateConcretely(update UpdateNode[K]) bool {
	return update.IncludesConcretely(n.key, n.guard)
}

func (n *PinpointUpdateNode[K]) split(key K, pred func(Expr) bool, matching *[]GuardedExpr, gb *GuardBuilder) UpdateNode[K] {
	includes := n.IncludesSymbolically(key)
	guard := gb.guarded(includes)

	var result UpdateNode[K] = n
	if pred(n.value) {
		if !IsConstantFalse(guard) {
			*matching = append(*matching, GuardedExpr{Expr: n.value, Guard: guard})
		}
		result = nil
	}
	gb.add(NewNotExpr(includes))
	return result
}

func (n *PinpointUpdateNode[K]) compose(key K, c *Composer) (includes, value Expr) {
	includes = NewAndExpr(n.keyInfo.Eq(n.keyInfo.Compose(n.key, c), key), c.Compose(n.guard))
	if IsConstantFalse(includes) {
		return includes, nil
	}
	return includes, c.Compose(n.value)
}

func (n *PinpointUpdateNode[K]) String() string {
	return fmt.Sprintf("{%v <- %s | %s}", n.key, n.value, n.guard)
}

// RangedUpdateNode is a copy of a range of keys from another collection.
type RangedUpdateNode[K any] struct {
	source  rangeSource[K]
	guard   Expr
	keyInfo KeyComparer[K]
}

// From returns the first destination key of the copied range.
func (n *RangedUpdateNode[K]) From() K { return n.source.from() }

// To returns the last destination key of the copied range.
func (n *RangedUpdateNode[K]) To() K { return n.source.to() }

// Guard returns the copy condition.
func (n *RangedUpdateNode[K]) Guard() Expr { return n.guard }

// Value returns the source value copied to key.
func (n *RangedUpdateNode[K]) Value(key K) Expr { return n.source.read(key) }

func (n *RangedUpdateNode[K]) IncludesConcretely(key K, precondition Expr) bool {
	return n.keyInfo.CmpConcretely(n.source.from(), key) &&
		n.keyInfo.CmpConcretely(key, n.source.to()) &&
		guardHolds(n.guard, precondition)
}

func (n *RangedUpdateNode[K]) IncludesSymbolically(key K) Expr {
	return NewAndExprs(
		n.keyInfo.Cmp(n.source.from(), key),
		n.keyInfo.Cmp(key, n.source.to()),
		n.guard,
	)
}

func (n *RangedUpdateNode[K]) IsIncludedByUpdateConcretely(update UpdateNode[K]) bool {
	return update.IncludesConcretely(n.source.from(), n.guard) &&
		update.IncludesConcretely(n.source.to(), n.guard)
}

func (n *RangedUpdateNode[K]) split(key K, pred func(Expr) bool, matching *[]GuardedExpr, gb *GuardBuilder) UpdateNode[K] {
	includes := n.IncludesSymbolically(key)
	inner := &GuardBuilder{guard: gb.guarded(includes)}

	var result UpdateNode[K] = n
	if source := n.source.split(key, pred, matching, inner); source != n.source {
		result = &RangedUpdateNode[K]{source: source, guard: n.guard, keyInfo: n.keyInfo}
	}
	gb.add(NewNotExpr(includes))
	return result
}

func (n *RangedUpdateNode[K]) compose(key K, c *Composer) (includes, value Expr) {
	source := n.source.compose(c)
	includes = NewAndExprs(
		n.keyInfo.Cmp(source.from(), key),
		n.keyInfo.Cmp(key, source.to()),
		c.Compose(n.guard),
	)
	if IsConstantFalse(includes) {
		return includes, nil
	}
	return includes, source.composedRead(key, c)
}

func (n *RangedUpdateNode[K]) String() string {
	return fmt.Sprintf("{[%v..%v] <- %s | %s}", n.source.from(), n.source.to(), n.source, n.guard)
}

// guardHolds returns true if guard is true or is the precondition itself.
func guardHolds(guard, precondition Expr) bool {
	return IsConstantTrue(guard) || CompareExpr(guard, precondition) == 0
}

// GuardBuilder accumulates the condition that none of the already visited
// non-matching writes applies.
type GuardBuilder struct {
	guard Expr
}

// NewGuardBuilder returns a builder starting from guard.
func NewGuardBuilder(guard Expr) *GuardBuilder {
	return &GuardBuilder{guard: guard}
}

// Guard returns the accumulated condition.
func (gb *GuardBuilder) Guard() Expr { return gb.guard }

func (gb *GuardBuilder) guarded(expr Expr) Expr {
	return NewAndExpr(gb.guard, expr)
}

func (gb *GuardBuilder) add(expr Expr) {
	gb.guard = NewAndExpr(gb.guard, expr)
}

// IsFalse returns true if no further write can apply.
func (gb *GuardBuilder) IsFalse() bool {
	return IsConstantFalse(gb.guard)
}

// rangeSource is the source of a ranged update: a collection read through a
// key adapter.
type rangeSource[K any] interface {
	from() K
	to() K
	read(key K) Expr
	composedRead(key K, c *Composer) Expr
	split(key K, pred func(Expr) bool, matching *[]GuardedExpr, gb *GuardBuilder) rangeSource[K]
	compose(c *Composer) rangeSource[K]
	String() string
}

type adaptedCollection[SrcK, DstK any] struct {
	collection *Collection[SrcK]
	adapter    KeyAdapter[SrcK, DstK]
}

func (s *adaptedCollection[SrcK, DstK]) from() DstK { return s.adapter.From() }
func (s *adaptedCollection[SrcK, DstK]) to() DstK   { return s.adapter.To() }

func (s *adaptedCollection[SrcK, DstK]) read(key DstK) Expr {
	return s.collection.Read(s.adapter.Convert(key))
}

func (s *adaptedCollection[SrcK, DstK]) composedRead(key DstK, c *Composer) Expr {
	return s.collection.composedRead(s.adapter.Convert(key), c)
}

func (s *adaptedCollection[SrcK, DstK]) split(key DstK, pred func(Expr) bool, matching *[]GuardedExpr, gb *GuardBuilder) rangeSource[DstK] {
	collection := s.collection.split(s.adapter.Convert(key), pred, matching, gb)
	if collection == s.collection {
		return s
	}
	return &adaptedCollection[SrcK, DstK]{collection: collection, adapter: s.adapter}
}

func (s *adaptedCollection[SrcK, DstK]) compose(c *Composer) rangeSource[DstK] {
	return &adaptedCollection[SrcK, DstK]{collection: s.collection, adapter: s.adapter.compose(c)}
}

func (s *adaptedCollection[SrcK, DstK]) String() string {
	return fmt.Sprintf("%s via %s", s.collection.ID(), s.adapter)
}

// KeyAdapter maps the destination keys of a range copy to source keys.
type KeyAdapter[SrcK, DstK any] interface {
	// Convert returns the source key copied to key.
	Convert(key DstK) SrcK

	// From returns the first destination key.
	From() DstK

	// To returns the last destination key.
	To() DstK

	String() string

	compose(c *Composer) KeyAdapter[SrcK, DstK]
}

// convertIndex shifts a destination index into the source range.
func convertIndex(key, srcFrom, dstFrom Expr) Expr {
	return NewBinaryExpr(ADD, NewBinaryExpr(SUB, key, dstFrom), srcFrom)
}

// AllocatedToAllocatedAdapter copies between two allocated arrays.
type AllocatedToAllocatedAdapter struct {
	SrcFrom Expr
	DstFrom Expr
	DstTo   Expr
}

func (a *AllocatedToAllocatedAdapter) Convert(key Expr) Expr {
	return convertIndex(key, a.SrcFrom, a.DstFrom)
}

func (a *AllocatedToAllocatedAdapter) From() Expr { return a.DstFrom }
func (a *AllocatedToAllocatedAdapter) To() Expr   { return a.DstTo }

func (a *AllocatedToAllocatedAdapter) compose(c *Composer) KeyAdapter[Expr, Expr] {
	return &AllocatedToAllocatedAdapter{SrcFrom: c.Compose(a.SrcFrom), DstFrom: c.Compose(a.DstFrom), DstTo: c.Compose(a.DstTo)}
}

func (a *AllocatedToAllocatedAdapter) String() string {
	return fmt.Sprintf("[%s..%s] <- %s", a.DstFrom, a.DstTo, a.SrcFrom)
}

// AllocatedToInputAdapter copies from an allocated array to an input array.
type AllocatedToInputAdapter struct {
	SrcFrom Expr
	DstFrom ArrayIndex
	DstTo   ArrayIndex
}

func (a *AllocatedToInputAdapter) Convert(key ArrayIndex) Expr {
	return convertIndex(key.Index, a.SrcFrom, a.DstFrom.Index)
}

func (a *AllocatedToInputAdapter) From() ArrayIndex { return a.DstFrom }
func (a *AllocatedToInputAdapter) To() ArrayIndex   { return a.DstTo }

func (a *AllocatedToInputAdapter) compose(c *Composer) KeyAdapter[Expr, ArrayIndex] {
	return &AllocatedToInputAdapter{
		SrcFrom: c.Compose(a.SrcFrom),
		DstFrom: ArrayIndexKeyInfo.Compose(a.DstFrom, c),
		DstTo:   ArrayIndexKeyInfo.Compose(a.DstTo, c),
	}
}

func (a *AllocatedToInputAdapter) String() string {
	return fmt.Sprintf("[%s..%s] <- %s", a.DstFrom, a.DstTo, a.SrcFrom)
}

// InputToAllocatedAdapter copies from an input array to an allocated array.
type InputToAllocatedAdapter struct {
	SrcFrom ArrayIndex
	DstFrom Expr
	DstTo   Expr
}

func (a *InputToAllocatedAdapter) Convert(key Expr) ArrayIndex {
	return ArrayIndex{Ref: a.SrcFrom.Ref, Index: convertIndex(key, a.SrcFrom.Index, a.DstFrom)}
}

func (a *InputToAllocatedAdapter) From() Expr { return a.DstFrom }
func (a *InputToAllocatedAdapter) To() Expr   { return a.DstTo }

func (a *InputToAllocatedAdapter) compose(c *Composer) KeyAdapter[ArrayIndex, Expr] {
	return &InputToAllocatedAdapter{
		SrcFrom: ArrayIndexKeyInfo.Compose(a.SrcFrom, c),
		DstFrom: c.Compose(a.DstFrom),
		DstTo:   c.Compose(a.DstTo),
	}
}

func (a *InputToAllocatedAdapter) String() string {
	return fmt.Sprintf("[%s..%s] <- %s", a.DstFrom, a.DstTo, a.SrcFrom)
}

// InputToInputAdapter copies between two input arrays.
type InputToInputAdapter struct {
	SrcFrom ArrayIndex
	DstFrom ArrayIndex
	DstTo   ArrayIndex
}

func (a *InputToInputAdapter) Convert(key ArrayIndex) ArrayIndex {
	return ArrayIndex{Ref: a.SrcFrom.Ref, Index: convertIndex(key.Index, a.SrcFrom.Index, a.DstFrom.Index)}
}

func (a *InputToInputAdapter) From() ArrayIndex { return a.DstFrom }
func (a *InputToInputAdapter) To() ArrayIndex   { return a.DstTo }

func (a *InputToInputAdapter) compose(c *Composer) KeyAdapter[ArrayIndex, ArrayIndex] {
	return &InputToInputAdapter{
		SrcFrom: ArrayIndexKeyInfo.Compose(a.SrcFrom, c),
		DstFrom: ArrayIndexKeyInfo.Compose(a.DstFrom, c),
		DstTo:   ArrayIndexKeyInfo.Compose(a.DstTo, c),
	}
}

func (a *InputToInputAdapter) String() string {
	return fmt.Sprintf("[%s..%s] <- %s", a.DstFrom, a.DstTo, a.SrcFrom)
}
