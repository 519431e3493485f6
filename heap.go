package symmem

import (
	"github.com/benbjohnson/immutable"
)

// HeapReader reads values from a heap.
type HeapReader interface {
	ReadField(ref Expr, field string, sort Sort) Expr
	ReadArrayIndex(ref, index Expr, arrayType string, sort Sort) Expr
	ReadArrayLength(ref Expr, arrayType string) Expr
}

// fieldKey identifies a field of an allocated object.
type fieldKey struct {
	address int64
	field   string
}

func (k fieldKey) Hash() uint32 {
	return hashCombine(hashInt64(k.address), hashString(k.field))
}

func (k fieldKey) Equal(other fieldKey) bool { return k == other }

// Heap routes reads and writes to the collections of the memory model.
//
// Fields of allocated objects are kept as plain values because the
// receiver is known. Every other access goes through a collection: one per
// allocated array, and one per field, array type and length family for
// input objects.
//
// All maps are persistent so a clone shares them with its original.
type Heap struct {
	counter *AddressCounter

	allocatedFields  *immutable.Map[fieldKey, Expr]
	allocatedArrays  *immutable.Map[int64, *Collection[Expr]]
	allocatedLengths *immutable.Map[int64, Expr]

	inputFields  *immutable.Map[string, *Collection[Expr]]
	inputArrays  *immutable.Map[string, *Collection[ArrayIndex]]
	inputLengths *immutable.Map[string, *Collection[Expr]]
}

var _ HeapReader = (*Heap)(nil)

// NewHeap returns an empty heap allocating addresses from counter.
func NewHeap(counter *AddressCounter) *Heap {
	return &Heap{
		counter:          counter,
		allocatedFields:  newHashMap[fieldKey, Expr](),
		allocatedArrays:  immutable.NewMap[int64, *Collection[Expr]](nil),
		allocatedLengths: immutable.NewMap[int64, Expr](nil),
		inputFields:      immutable.NewMap[string, *Collection[Expr]](nil),
		inputArrays:      immutable.NewMap[string, *Collection[ArrayIndex]](nil),
		inputLengths:     immutable.NewMap[string, *Collection[Expr]](nil),
	}
}

// Clone returns a heap sharing all current contents with h. Later writes to
// either heap are not visible to the other.
func (h *Heap) Clone() *Heap {
	other := *h
	return &other
}

// Counter returns the address counter of the heap.
func (h *Heap) Counter() *AddressCounter { return h.counter }

func (h *Heap) inputField(field string, sort Sort) *Collection[Expr] {
	if c, ok := h.inputFields.Get(field); ok {
		return c
	}
	c := NewInputFieldID(field, sort).EmptyCollection()
	h.inputFields = h.inputFields.Set(field, c)
	return c
}

func (h *Heap) allocatedArray(address int64, arrayType string, sort Sort) *Collection[Expr] {
	if c, ok := h.allocatedArrays.Get(address); ok {
		return c
	}
	c := NewAllocatedArrayID(arrayType, address, sort).EmptyCollection()
	h.allocatedArrays = h.allocatedArrays.Set(address, c)
	return c
}

func (h *Heap) inputArray(arrayType string, sort Sort) *Collection[ArrayIndex] {
	if c, ok := h.inputArrays.Get(arrayType); ok {
		return c
	}
	c := NewInputArrayID(arrayType, sort).EmptyCollection()
	h.inputArrays = h.inputArrays.Set(arrayType, c)
	return c
}

func (h *Heap) inputLength(arrayType string) *Collection[Expr] {
	if c, ok := h.inputLengths.Get(arrayType); ok {
		return c
	}
	c := NewInputArrayLengthID(arrayType).EmptyCollection()
	h.inputLengths = h.inputLengths.Set(arrayType, c)
	return c
}

// ReadField returns the value of field in the object at ref.
func (h *Heap) ReadField(ref Expr, field string, sort Sort) Expr {
	return mapHeapRef(ref, true,
		func(ref *ConcreteHeapRef) Expr {
			if v, ok := h.allocatedFields.Get(fieldKey{address: ref.Address, field: field}); ok {
				return v
			}
			return DefaultValue(sort)
		},
		func(ref Expr) Expr {
			return h.inputField(field, sort).Read(ref)
		},
	)
}

// WriteField sets field of the object at ref to value when guard holds.
func (h *Heap) WriteField(ref Expr, field string, sort Sort, value, guard Expr) {
	withHeapRef(ref, guard, true,
		func(ref *ConcreteHeapRef, guard Expr) {
			key := fieldKey{address: ref.Address, field: field}
			old, ok := h.allocatedFields.Get(key)
			if !ok {
				old = DefaultValue(sort)
			}
			h.allocatedFields = h.allocatedFields.Set(key, NewIteExpr(guard, value, old))
		},
		func(ref, guard Expr) {
			h.inputFields = h.inputFields.Set(field, h.inputField(field, sort).Write(ref, value, guard))
		},
	)
}

// ReadArrayIndex returns the element at index of the array at ref.
func (h *Heap) ReadArrayIndex(ref, index Expr, arrayType string, sort Sort) Expr {
	return mapHeapRef(ref, true,
		func(ref *ConcreteHeapRef) Expr {
			return h.allocatedArray(ref.Address, arrayType, sort).Read(index)
		},
		func(ref Expr) Expr {
			return h.inputArray(arrayType, sort).Read(ArrayIndex{Ref: ref, Index: index})
		},
	)
}

// WriteArrayIndex sets the element at index of the array at ref to value
// when guard holds.
func (h *Heap) WriteArrayIndex(ref, index Expr, arrayType string, sort Sort, value, guard Expr) {
	withHeapRef(ref, guard, true,
		func(ref *ConcreteHeapRef, guard Expr) {
			c := h.allocatedArray(ref.Address, arrayType, sort).Write(index, value, guard)
			h.allocatedArrays = h.allocatedArrays.Set(ref.Address, c)
		},
		func(ref, guard Expr) {
			c := h.inputArray(arrayType, sort).Write(ArrayIndex{Ref: ref, Index: index}, value, guard)
			h.inputArrays = h.inputArrays.Set(arrayType, c)
		},
	)
}

// ReadArrayLength returns the length of the array at ref.
func (h *Heap) ReadArrayLength(ref Expr, arrayType string) Expr {
	return mapHeapRef(ref, true,
		func(ref *ConcreteHeapRef) Expr {
			if v, ok := h.allocatedLengths.Get(ref.Address); ok {
				return v
			}
			return DefaultValue(SizeSort)
		},
		func(ref Expr) Expr {
			return h.inputLength(arrayType).Read(ref)
		},
	)
}

// WriteArrayLength sets the length of the array at ref when guard holds.
func (h *Heap) WriteArrayLength(ref, length Expr, arrayType string, guard Expr) {
	withHeapRef(ref, guard, true,
		func(ref *ConcreteHeapRef, guard Expr) {
			old, ok := h.allocatedLengths.Get(ref.Address)
			if !ok {
				old = DefaultValue(SizeSort)
			}
			h.allocatedLengths = h.allocatedLengths.Set(ref.Address, NewIteExpr(guard, length, old))
		},
		func(ref, guard Expr) {
			h.inputLengths = h.inputLengths.Set(arrayType, h.inputLength(arrayType).Write(ref, length, guard))
		},
	)
}

// Memcpy copies the elements [fromSrc, fromSrc+(toDst-fromDst)] of the array
// at src to the elements [fromDst, toDst] of the array at dst when guard
// holds. Both references are split into their allocated and input parts and
// every combination becomes one ranged update.
func (h *Heap) Memcpy(src, dst Expr, arrayType string, sort Sort, fromSrc, fromDst, toDst, guard Expr) {
	withHeapRef(src, guard, true,
		func(src *ConcreteHeapRef, guard Expr) {
			source := h.allocatedArray(src.Address, arrayType, sort)
			withHeapRef(dst, guard, true,
				func(dst *ConcreteHeapRef, guard Expr) {
					adapter := &AllocatedToAllocatedAdapter{SrcFrom: fromSrc, DstFrom: fromDst, DstTo: toDst}
					c := CopyRange(h.allocatedArray(dst.Address, arrayType, sort), source, KeyAdapter[Expr, Expr](adapter), guard)
					h.allocatedArrays = h.allocatedArrays.Set(dst.Address, c)
				},
				func(dst, guard Expr) {
					adapter := &AllocatedToInputAdapter{
						SrcFrom: fromSrc,
						DstFrom: ArrayIndex{Ref: dst, Index: fromDst},
						DstTo:   ArrayIndex{Ref: dst, Index: toDst},
					}
					c := CopyRange(h.inputArray(arrayType, sort), source, KeyAdapter[Expr, ArrayIndex](adapter), guard)
					h.inputArrays = h.inputArrays.Set(arrayType, c)
				},
			)
		},
		func(src, guard Expr) {
			source := h.inputArray(arrayType, sort)
			withHeapRef(dst, guard, true,
				func(dst *ConcreteHeapRef, guard Expr) {
					adapter := &InputToAllocatedAdapter{
						SrcFrom: ArrayIndex{Ref: src, Index: fromSrc},
						DstFrom: fromDst,
						DstTo:   toDst,
					}
					c := CopyRange(h.allocatedArray(dst.Address, arrayType, sort), source, KeyAdapter[ArrayIndex, Expr](adapter), guard)
					h.allocatedArrays = h.allocatedArrays.Set(dst.Address, c)
				},
				func(dst, guard Expr) {
					adapter := &InputToInputAdapter{
						SrcFrom: ArrayIndex{Ref: src, Index: fromSrc},
						DstFrom: ArrayIndex{Ref: dst, Index: fromDst},
						DstTo:   ArrayIndex{Ref: dst, Index: toDst},
					}
					c := CopyRange(h.inputArray(arrayType, sort), source, KeyAdapter[ArrayIndex, ArrayIndex](adapter), guard)
					h.inputArrays = h.inputArrays.Set(arrayType, c)
				},
			)
		},
	)
}

// AllocateConcreteRef returns a fresh allocated reference.
func (h *Heap) AllocateConcreteRef() *ConcreteHeapRef {
	return NewConcreteHeapRef(h.counter.FreshAllocated())
}

// AllocateStaticRef returns a fresh static reference.
func (h *Heap) AllocateStaticRef() *ConcreteHeapRef {
	return NewConcreteHeapRef(h.counter.FreshStatic())
}

// AllocateArray returns a fresh reference to an array of length count whose
// elements hold the default value.
func (h *Heap) AllocateArray(arrayType string, count Expr) *ConcreteHeapRef {
	ref := h.AllocateConcreteRef()
	h.allocatedLengths = h.allocatedLengths.Set(ref.Address, count)
	return ref
}

// AllocateArrayInitialized returns a fresh reference to an array holding contents.
func (h *Heap) AllocateArrayInitialized(arrayType string, sort Sort, contents []Expr) *ConcreteHeapRef {
	ref := h.AllocateConcreteRef()
	c := NewAllocatedArrayID(arrayType, ref.Address, sort).EmptyCollection()
	t := NewBoolConstantExpr(true)
	for i, v := range contents {
		c = c.Write(NewSizeExpr(int64(i)), v, t)
	}
	h.allocatedArrays = h.allocatedArrays.Set(ref.Address, c)
	h.allocatedLengths = h.allocatedLengths.Set(ref.Address, NewSizeExpr(int64(len(contents))))
	return ref
}

// InputFieldCollections returns the collections of input fields by field name.
func (h *Heap) InputFieldCollections() map[string]*Collection[Expr] {
	m := make(map[string]*Collection[Expr])
	itr := h.inputFields.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		m[k] = v
	}
	return m
}

// AllocatedArrayCollection returns the collection of the array at address, if any.
func (h *Heap) AllocatedArrayCollection(address int64) (*Collection[Expr], bool) {
	return h.allocatedArrays.Get(address)
}

// InputArrayCollection returns the collection of input arrays of arrayType, if any.
func (h *Heap) InputArrayCollection(arrayType string) (*Collection[ArrayIndex], bool) {
	return h.inputArrays.Get(arrayType)
}
