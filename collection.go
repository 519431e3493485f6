package symmem

import (
	"fmt"
	"sync"

	"github.com/symmem/symmem/regions"
)

// Collection is a symbolic memory region: the writes of an update log on
// top of the initial contents named by its id.
//
// Collections are persistent. Write and CopyRange return new collections.
// Reads are memoized by key identity.
type Collection[K any] struct {
	id      CollectionID[K]
	updates UpdateLog[K]
	serial  uint64

	mu    sync.Mutex
	reads map[any]Expr
}

func newCollection[K any](id CollectionID[K], updates UpdateLog[K]) *Collection[K] {
	return &Collection[K]{id: id, updates: updates, serial: nextSerial()}
}

// ID returns the identifier of the collection.
func (c *Collection[K]) ID() CollectionID[K] { return c.id }

// Updates returns the update log of the collection.
func (c *Collection[K]) Updates() UpdateLog[K] { return c.updates }

// Sort returns the sort of the collection values.
func (c *Collection[K]) Sort() Sort { return c.id.Sort() }

func (c *Collection[K]) withUpdates(updates UpdateLog[K]) *Collection[K] {
	if updates == c.updates {
		return c
	}
	return newCollection(c.id, updates)
}

// Read returns the value stored at key.
func (c *Collection[K]) Read(key K) Expr {
	c.mu.Lock()
	v, ok := c.reads[key]
	c.mu.Unlock()
	if ok {
		return v
	}

	if c.Sort().Address {
		v = c.splittingRead(key, isConcreteHeapRefExpr)
	} else {
		v = c.read(key)
	}

	c.mu.Lock()
	if c.reads == nil {
		c.reads = make(map[any]Expr)
	}
	c.reads[key] = v
	c.mu.Unlock()
	return v
}

func (c *Collection[K]) read(key K) Expr {
	t := NewBoolConstantExpr(true)
	if last := c.updates.Last(); last != nil && last.IncludesConcretely(key, t) {
		return last.Value(key)
	}

	// The newest write that may affect key could still cover it entirely.
	localized := c.updates.Read(key)
	if last := localized.Last(); last != nil && last.IncludesConcretely(key, t) {
		return last.Value(key)
	}
	return c.id.instantiate(c.withUpdates(localized), key)
}

// splittingRead lifts the writes of values matching pred out of the read
// into an if-then-else chain on top of a read of the remaining writes.
func (c *Collection[K]) splittingRead(key K, pred func(Expr) bool) Expr {
	var matching []GuardedExpr
	gb := NewGuardBuilder(NewBoolConstantExpr(true))
	rest := c.split(key, pred, &matching, gb)
	if len(matching) == 0 {
		return c.read(key)
	}

	last := matching[len(matching)-1]
	var acc Expr
	if IsConstantTrue(last.Guard) {
		acc = last.Expr
	} else {
		acc = NewIteExpr(last.Guard, last.Expr, rest.read(key))
	}
	for i := len(matching) - 2; i >= 0; i-- {
		acc = NewIteExpr(matching[i].Guard, matching[i].Expr, acc)
	}
	return acc
}

func (c *Collection[K]) split(key K, pred func(Expr) bool, matching *[]GuardedExpr, gb *GuardBuilder) *Collection[K] {
	return c.withUpdates(c.updates.Split(key, pred, matching, gb))
}

func isConcreteHeapRefExpr(expr Expr) bool {
	_, ok := expr.(*ConcreteHeapRef)
	return ok
}

// Write returns a collection where key holds value whenever guard is true.
// Address values are split so that concrete references are written as
// separate nodes.
func (c *Collection[K]) Write(key K, value, guard Expr) *Collection[K] {
	assert(ExprSort(value) == c.Sort(), "collection %s: cannot write %s of sort %s", c.id, value, ExprSort(value))

	updates := c.updates
	if c.Sort().Address {
		matched, rest := splitHeapRef(value, guard, false, isConcreteRef)
		for _, leaf := range matched {
			updates = updates.Write(key, leaf.Expr, leaf.Guard)
		}
		if rest != nil {
			updates = updates.Write(key, rest.Expr, rest.Guard)
		}
	} else {
		updates = updates.Write(key, value, guard)
	}
	return c.withUpdates(updates)
}

// CopyRange returns dst extended with a copy of the keys from adapter.From()
// to adapter.To() read from src through adapter.
func CopyRange[SrcK, DstK any](dst *Collection[DstK], src *Collection[SrcK], adapter KeyAdapter[SrcK, DstK], guard Expr) *Collection[DstK] {
	assert(src.Sort() == dst.Sort(), "copy range: sort mismatch: %s != %s", src.Sort(), dst.Sort())
	node := &RangedUpdateNode[DstK]{
		source:  &adaptedCollection[SrcK, DstK]{collection: src, adapter: adapter},
		guard:   guard,
		keyInfo: dst.id.keyInfo(),
	}
	return dst.withUpdates(dst.updates.CopyRange(node))
}

// composedRead reads key, already expressed in terms of composer, from the
// collection with every write and the initial contents composed.
func (c *Collection[K]) composedRead(key K, composer *Composer) Expr {
	acc := c.id.composedBase(key, composer)
	for _, n := range c.updates.Nodes() {
		includes, value := n.compose(key, composer)
		if IsConstantFalse(includes) {
			continue
		}
		acc = NewIteExpr(includes, value, acc)
	}
	return acc
}

// String returns the id and the writes of the collection.
func (c *Collection[K]) String() string {
	return fmt.Sprintf("%s: %s", c.id, c.updates)
}

// CollectionID identifies what a collection stores. It is one of
// *InputFieldID, *AllocatedArrayID, *InputArrayID or *InputArrayLengthID.
type CollectionID[K any] interface {
	Sort() Sort
	String() string

	// EmptyCollection returns a collection with no writes.
	EmptyCollection() *Collection[K]

	keyInfo() KeyComparer[K]

	// instantiate returns the reading of key from a collection whose
	// writes do not determine the value.
	instantiate(c *Collection[K], key K) Expr

	// composedBase returns the initial contents at key read from composer.
	composedBase(key K, composer *Composer) Expr
}

// InputFieldID identifies the values of a field in input objects.
type InputFieldID struct {
	Field string
	sort  Sort
}

// NewInputFieldID returns the id of field of the given sort.
func NewInputFieldID(field string, sort Sort) *InputFieldID {
	return &InputFieldID{Field: field, sort: sort}
}

func (id *InputFieldID) Sort() Sort                { return id.sort }
func (id *InputFieldID) String() string            { return fmt.Sprintf("inputField<%s>", id.Field) }
func (id *InputFieldID) keyInfo() KeyComparer[Expr] { return HeapRefKeyInfo }

func (id *InputFieldID) EmptyCollection() *Collection[Expr] {
	return newCollection[Expr](id, NewFlatLog[Expr](HeapRefKeyInfo))
}

func (id *InputFieldID) instantiate(c *Collection[Expr], key Expr) Expr {
	return &InputFieldReading{Collection: c, Ref: key}
}

func (id *InputFieldID) composedBase(key Expr, composer *Composer) Expr {
	return composer.Heap.ReadField(key, id.Field, id.sort)
}

// AllocatedArrayID identifies the contents of the array at a concrete address.
type AllocatedArrayID struct {
	ArrayType string
	Address   int64
	sort      Sort
}

// NewAllocatedArrayID returns the id of the array of arrayType at address.
func NewAllocatedArrayID(arrayType string, address int64, sort Sort) *AllocatedArrayID {
	return &AllocatedArrayID{ArrayType: arrayType, Address: address, sort: sort}
}

func (id *AllocatedArrayID) Sort() Sort                { return id.sort }
func (id *AllocatedArrayID) keyInfo() KeyComparer[Expr] { return SizeKeyInfo }

func (id *AllocatedArrayID) String() string {
	return fmt.Sprintf("allocatedArray<%s>@%d", id.ArrayType, id.Address)
}

func (id *AllocatedArrayID) EmptyCollection() *Collection[Expr] {
	return newCollection[Expr](id, NewTreeLog[Expr, regions.IntervalsRegion](SizeKeyInfo))
}

// instantiate returns the default value when no write can affect key.
func (id *AllocatedArrayID) instantiate(c *Collection[Expr], key Expr) Expr {
	if c.updates.IsEmpty() {
		return DefaultValue(id.sort)
	}
	return &AllocatedArrayReading{Collection: c, Index: key}
}

func (id *AllocatedArrayID) composedBase(key Expr, composer *Composer) Expr {
	return DefaultValue(id.sort)
}

// InputArrayID identifies the contents of input arrays of one type.
type InputArrayID struct {
	ArrayType string
	sort      Sort
}

// NewInputArrayID returns the id of input arrays of arrayType.
func NewInputArrayID(arrayType string, sort Sort) *InputArrayID {
	return &InputArrayID{ArrayType: arrayType, sort: sort}
}

func (id *InputArrayID) Sort() Sort                      { return id.sort }
func (id *InputArrayID) String() string                  { return fmt.Sprintf("inputArray<%s>", id.ArrayType) }
func (id *InputArrayID) keyInfo() KeyComparer[ArrayIndex] { return ArrayIndexKeyInfo }

func (id *InputArrayID) EmptyCollection() *Collection[ArrayIndex] {
	return newCollection[ArrayIndex](id, NewTreeLog[ArrayIndex, ArrayIndexRegion](ArrayIndexKeyInfo))
}

func (id *InputArrayID) instantiate(c *Collection[ArrayIndex], key ArrayIndex) Expr {
	return &InputArrayReading{Collection: c, Ref: key.Ref, Index: key.Index}
}

func (id *InputArrayID) composedBase(key ArrayIndex, composer *Composer) Expr {
	return composer.Heap.ReadArrayIndex(key.Ref, key.Index, id.ArrayType, id.sort)
}

// InputArrayLengthID identifies the lengths of input arrays of one type.
type InputArrayLengthID struct {
	ArrayType string
}

// NewInputArrayLengthID returns the id of the lengths of arrays of arrayType.
func NewInputArrayLengthID(arrayType string) *InputArrayLengthID {
	return &InputArrayLengthID{ArrayType: arrayType}
}

func (id *InputArrayLengthID) Sort() Sort                { return SizeSort }
func (id *InputArrayLengthID) String() string            { return fmt.Sprintf("inputLength<%s>", id.ArrayType) }
func (id *InputArrayLengthID) keyInfo() KeyComparer[Expr] { return HeapRefKeyInfo }

func (id *InputArrayLengthID) EmptyCollection() *Collection[Expr] {
	return newCollection[Expr](id, NewFlatLog[Expr](HeapRefKeyInfo))
}

func (id *InputArrayLengthID) instantiate(c *Collection[Expr], key Expr) Expr {
	return &InputArrayLengthReading{Collection: c, Ref: key}
}

func (id *InputArrayLengthID) composedBase(key Expr, composer *Composer) Expr {
	return composer.Heap.ReadArrayLength(key, id.ArrayType)
}

// InputFieldReading is the value of a field of an input object.
type InputFieldReading struct {
	Collection *Collection[Expr]
	Ref        Expr
}

func (e *InputFieldReading) String() string {
	return fmt.Sprintf("(read %s %s)", e.Collection.id, e.Ref)
}

// AllocatedArrayReading is a cell of an allocated array.
type AllocatedArrayReading struct {
	Collection *Collection[Expr]
	Index      Expr
}

func (e *AllocatedArrayReading) String() string {
	return fmt.Sprintf("(read %s %s)", e.Collection.id, e.Index)
}

// InputArrayReading is a cell of an input array.
type InputArrayReading struct {
	Collection *Collection[ArrayIndex]
	Ref        Expr
	Index      Expr
}

func (e *InputArrayReading) String() string {
	return fmt.Sprintf("(read %s %s %s)", e.Collection.id, e.Ref, e.Index)
}

// InputArrayLengthReading is the length of an input array.
type InputArrayLengthReading struct {
	Collection *Collection[Expr]
	Ref        Expr
}

func (e *InputArrayLengthReading) String() string {
	return fmt.Sprintf("(read %s %s)", e.Collection.id, e.Ref)
}
