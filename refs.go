package symmem

import (
	"fmt"
)

// ConcreteHeapRef is a heap reference with a known address. Allocated
// addresses are positive, static addresses are negative and zero is null.
type ConcreteHeapRef struct {
	Address int64
}

// NewConcreteHeapRef returns a reference to address.
func NewConcreteHeapRef(address int64) *ConcreteHeapRef {
	return &ConcreteHeapRef{Address: address}
}

// NullRef returns the null reference.
func NullRef() *ConcreteHeapRef {
	return &ConcreteHeapRef{}
}

// IsNull returns true if ref is the null reference.
func (ref *ConcreteHeapRef) IsNull() bool { return ref.Address == 0 }

// IsAllocated returns true if ref was returned by an allocation.
func (ref *ConcreteHeapRef) IsAllocated() bool { return ref.Address > 0 }

// IsStatic returns true if ref points to a static object.
func (ref *ConcreteHeapRef) IsStatic() bool { return ref.Address < 0 }

// String returns the string representation of the expression.
func (ref *ConcreteHeapRef) String() string {
	if ref.IsNull() {
		return "null"
	}
	return fmt.Sprintf("(ref %d)", ref.Address)
}

// GuardedExpr is an expression together with the condition under which it
// is the value of the enclosing term.
type GuardedExpr struct {
	Expr  Expr
	Guard Expr
}

func (g GuardedExpr) String() string {
	return fmt.Sprintf("%s | %s", g.Expr, g.Guard)
}

// heapRefLeaves expands the if-then-else structure of ref into its leaves,
// each guarded by the conjunction of guard and the conditions leading to it.
// Leaves with a false guard are dropped. Leaves are returned in then-first order.
func heapRefLeaves(ref, guard Expr) []GuardedExpr {
	var leaves []GuardedExpr
	stack := []GuardedExpr{{Expr: ref, Guard: guard}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if IsConstantFalse(top.Guard) {
			continue
		}

		ite, ok := top.Expr.(*IteExpr)
		if !ok {
			leaves = append(leaves, top)
			continue
		}
		stack = append(stack,
			GuardedExpr{Expr: ite.Else, Guard: NewAndExpr(top.Guard, NewNotExpr(ite.Cond))},
			GuardedExpr{Expr: ite.Then, Guard: NewAndExpr(top.Guard, ite.Cond)},
		)
	}
	return leaves
}

func isAllocatedRef(ref *ConcreteHeapRef) bool { return ref.IsAllocated() }

func isConcreteRef(*ConcreteHeapRef) bool { return true }

// splitHeapRef splits ref into the guarded concrete references accepted by
// concrete and a single guarded if-then-else over every other leaf. The
// remaining part is nil if every leaf was concrete. If ignoreNull is set,
// null leaves are dropped.
func splitHeapRef(ref, guard Expr, ignoreNull bool, concrete func(*ConcreteHeapRef) bool) (matched []GuardedExpr, rest *GuardedExpr) {
	var others []GuardedExpr
	for _, leaf := range heapRefLeaves(ref, guard) {
		if c, ok := leaf.Expr.(*ConcreteHeapRef); ok {
			if ignoreNull && c.IsNull() {
				continue
			} else if concrete(c) {
				matched = append(matched, leaf)
				continue
			}
		}
		others = append(others, leaf)
	}

	if len(others) == 0 {
		return matched, nil
	}

	// Leaves are mutually exclusive so an ite chain under the disjunction
	// of their guards selects the right one.
	last := others[len(others)-1]
	expr, g := last.Expr, last.Guard
	for i := len(others) - 2; i >= 0; i-- {
		expr = NewIteExpr(others[i].Guard, others[i].Expr, expr)
		g = NewOrExpr(others[i].Guard, g)
	}
	return matched, &GuardedExpr{Expr: expr, Guard: g}
}

// withHeapRef calls onAllocated for every allocated leaf of ref and onInput
// once for the remaining part, skipping parts whose guard is false.
func withHeapRef(ref, guard Expr, ignoreNull bool, onAllocated func(ref *ConcreteHeapRef, guard Expr), onInput func(ref, guard Expr)) {
	matched, rest := splitHeapRef(ref, guard, ignoreNull, isAllocatedRef)
	for _, leaf := range matched {
		onAllocated(leaf.Expr.(*ConcreteHeapRef), leaf.Guard)
	}
	if rest != nil && !IsConstantFalse(rest.Guard) {
		onInput(rest.Expr, rest.Guard)
	}
}

// mapHeapRef maps every allocated leaf of ref with onAllocated and the
// remaining part with onInput and joins the results into one expression.
func mapHeapRef(ref Expr, ignoreNull bool, onAllocated func(ref *ConcreteHeapRef) Expr, onInput func(ref Expr) Expr) Expr {
	matched, rest := splitHeapRef(ref, NewBoolConstantExpr(true), ignoreNull, isAllocatedRef)

	var acc Expr
	if rest != nil {
		acc = onInput(rest.Expr)
	}
	for i := len(matched) - 1; i >= 0; i-- {
		v := onAllocated(matched[i].Expr.(*ConcreteHeapRef))
		if acc == nil {
			acc = v
			continue
		}
		acc = NewIteExpr(matched[i].Guard, v, acc)
	}

	// Every leaf was null.
	if acc == nil {
		return onInput(NullRef())
	}
	return acc
}

// NewHeapRefEq returns a boolean expression that is true iff both references
// point to the same address.
func NewHeapRefEq(lhs, rhs Expr) Expr {
	assert(IsAddress(lhs) && IsAddress(rhs), "heap ref eq on non-address: %s %s", lhs, rhs)

	_, lite := lhs.(*IteExpr)
	_, rite := rhs.(*IteExpr)
	if !lite && !rite {
		return newLeafRefEq(lhs, rhs)
	}

	var result Expr = NewBoolConstantExpr(false)
	t := NewBoolConstantExpr(true)
	for _, l := range heapRefLeaves(lhs, t) {
		for _, r := range heapRefLeaves(rhs, t) {
			eq := newLeafRefEq(l.Expr, r.Expr)
			result = NewOrExpr(result, NewAndExprs(l.Guard, r.Guard, eq))
		}
	}
	return result
}

// newLeafRefEq compares two references that are not if-then-else terms.
func newLeafRefEq(lhs, rhs Expr) Expr {
	lc, lok := lhs.(*ConcreteHeapRef)
	rc, rok := rhs.(*ConcreteHeapRef)
	switch {
	case lok && rok:
		return NewBoolConstantExpr(lc.Address == rc.Address)
	case lok && lc.IsAllocated(), rok && rc.IsAllocated():
		// Symbolic refs only denote input objects.
		return NewBoolConstantExpr(false)
	case CompareExpr(lhs, rhs) == 0:
		return NewBoolConstantExpr(true)
	}

	if !lok && rok {
		lhs, rhs = rhs, lhs
	}
	return &BinaryExpr{Op: EQ, LHS: lhs, RHS: rhs}
}
