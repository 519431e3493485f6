package symmem

import (
	"fmt"

	"github.com/symmem/symmem/regions"
)

// ArrayIndex is the key of an input array: the array reference and the
// index of the cell.
type ArrayIndex struct {
	Ref   Expr
	Index Expr
}

// String returns the string representation of the key.
func (k ArrayIndex) String() string {
	return fmt.Sprintf("%s[%s]", k.Ref, k.Index)
}

// KeyComparer compares keys of a collection.
type KeyComparer[K any] interface {
	// Eq returns a formula that is true iff both keys are equal.
	Eq(a, b K) Expr

	// EqConcretely returns true if both keys are equal in every model.
	EqConcretely(a, b K) bool

	// Cmp returns a formula that is true iff a <= b.
	Cmp(a, b K) Expr

	// CmpConcretely returns true if a <= b in every model.
	CmpConcretely(a, b K) bool

	// Compose substitutes the symbols of key using c.
	Compose(key K, c *Composer) K
}

// KeyInfo extends KeyComparer with the regions used to prune update trees.
type KeyInfo[K any, R regions.Region[R]] interface {
	KeyComparer[K]

	// Region returns a region containing every value key may denote.
	Region(key K) R

	// RangeRegion returns a region containing every key in [from, to].
	RangeRegion(from, to K) R
}

// HeapRefKeyInfo is the key info of collections keyed by heap references.
var HeapRefKeyInfo KeyInfo[Expr, regions.SetRegion] = heapRefKeyInfo{}

// SizeKeyInfo is the key info of collections keyed by array indices.
var SizeKeyInfo KeyInfo[Expr, regions.IntervalsRegion] = sizeKeyInfo{}

// ArrayIndexKeyInfo is the key info of input arrays.
var ArrayIndexKeyInfo KeyInfo[ArrayIndex, ArrayIndexRegion] = arrayIndexKeyInfo{}

// ArrayIndexRegion is the pruning region of input array keys.
type ArrayIndexRegion = regions.ProductRegion[regions.SetRegion, regions.IntervalsRegion]

type heapRefKeyInfo struct{}

func (heapRefKeyInfo) Eq(a, b Expr) Expr { return NewHeapRefEq(a, b) }

func (heapRefKeyInfo) EqConcretely(a, b Expr) bool { return CompareExpr(a, b) == 0 }

func (heapRefKeyInfo) Cmp(a, b Expr) Expr {
	assert(false, "heap references are not ordered")
	return nil
}

func (heapRefKeyInfo) CmpConcretely(a, b Expr) bool {
	assert(false, "heap references are not ordered")
	return false
}

func (heapRefKeyInfo) Compose(key Expr, c *Composer) Expr { return c.Compose(key) }

func (heapRefKeyInfo) Region(key Expr) regions.SetRegion {
	if ref, ok := key.(*ConcreteHeapRef); ok {
		return regions.SetOf(ref.Address)
	}
	return regions.AllSet()
}

func (heapRefKeyInfo) RangeRegion(from, to Expr) regions.SetRegion {
	assert(false, "heap references are not ordered")
	return regions.SetRegion{}
}

type sizeKeyInfo struct{}

func (sizeKeyInfo) Eq(a, b Expr) Expr { return NewEqExpr(a, b) }

func (sizeKeyInfo) EqConcretely(a, b Expr) bool { return CompareExpr(a, b) == 0 }

func (sizeKeyInfo) Cmp(a, b Expr) Expr { return NewBinaryExpr(SLE, a, b) }

func (sizeKeyInfo) CmpConcretely(a, b Expr) bool {
	if CompareExpr(a, b) == 0 {
		return true
	}
	ac, aok := a.(*ConstantExpr)
	bc, bok := b.(*ConstantExpr)
	return aok && bok && ac.Int64() <= bc.Int64()
}

func (sizeKeyInfo) Compose(key Expr, c *Composer) Expr { return c.Compose(key) }

func (sizeKeyInfo) Region(key Expr) regions.IntervalsRegion {
	if c, ok := key.(*ConstantExpr); ok {
		return regions.Point(c.Int64())
	}
	return regions.AllIntervals()
}

func (sizeKeyInfo) RangeRegion(from, to Expr) regions.IntervalsRegion {
	fc, fok := from.(*ConstantExpr)
	tc, tok := to.(*ConstantExpr)
	if fok && tok {
		return regions.Closed(fc.Int64(), tc.Int64())
	}
	return regions.AllIntervals()
}

type arrayIndexKeyInfo struct{}

func (arrayIndexKeyInfo) Eq(a, b ArrayIndex) Expr {
	return NewAndExpr(NewHeapRefEq(a.Ref, b.Ref), NewEqExpr(a.Index, b.Index))
}

func (arrayIndexKeyInfo) EqConcretely(a, b ArrayIndex) bool {
	return CompareExpr(a.Ref, b.Ref) == 0 && CompareExpr(a.Index, b.Index) == 0
}

// Cmp orders keys of the same array by index.
func (arrayIndexKeyInfo) Cmp(a, b ArrayIndex) Expr {
	return NewAndExpr(NewHeapRefEq(a.Ref, b.Ref), NewBinaryExpr(SLE, a.Index, b.Index))
}

func (arrayIndexKeyInfo) CmpConcretely(a, b ArrayIndex) bool {
	return CompareExpr(a.Ref, b.Ref) == 0 && SizeKeyInfo.CmpConcretely(a.Index, b.Index)
}

func (arrayIndexKeyInfo) Compose(key ArrayIndex, c *Composer) ArrayIndex {
	return ArrayIndex{Ref: c.Compose(key.Ref), Index: c.Compose(key.Index)}
}

func (arrayIndexKeyInfo) Region(key ArrayIndex) ArrayIndexRegion {
	return regions.NewProductRegion(HeapRefKeyInfo.Region(key.Ref), SizeKeyInfo.Region(key.Index))
}

func (arrayIndexKeyInfo) RangeRegion(from, to ArrayIndex) ArrayIndexRegion {
	refs := HeapRefKeyInfo.Region(from.Ref).Union(HeapRefKeyInfo.Region(to.Ref))
	return regions.NewProductRegion(refs, SizeKeyInfo.RangeRegion(from.Index, to.Index))
}
