package symmem

import (
	"strings"

	"github.com/benbjohnson/immutable"
	uf "github.com/spakin/disjoint"
)

// PathConstraints is the set of conditions a state's path has assumed.
//
// The set is persistent: Clone is O(1) and Add never changes a clone.
// Conjunctions are split, trivially true constraints are dropped and
// syntactic contradictions mark the set false without a solver.
type PathConstraints struct {
	constraints *immutable.SortedMap[Expr, struct{}]
	equalities  *EqualityConstraints
	isFalse     bool
}

// NewPathConstraints returns an empty, satisfiable set.
func NewPathConstraints() *PathConstraints {
	return &PathConstraints{
		constraints: immutable.NewSortedMap[Expr, struct{}](exprComparer{}),
		equalities:  NewEqualityConstraints(),
	}
}

// Clone returns a copy of pc.
func (pc *PathConstraints) Clone() *PathConstraints {
	other := *pc
	return &other
}

// IsFalse returns true if the constraints are known to be unsatisfiable.
func (pc *PathConstraints) IsFalse() bool { return pc.isFalse }

// Equalities returns the reference equality constraints.
func (pc *PathConstraints) Equalities() *EqualityConstraints { return pc.equalities }

// Add adds constraint to the set.
func (pc *PathConstraints) Add(constraint Expr) {
	stack := []Expr{constraint}
	for len(stack) > 0 && !pc.isFalse {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch {
		case IsConstantTrue(c):
			continue
		case IsConstantFalse(c):
			pc.isFalse = true
			continue
		}

		if b, ok := c.(*BinaryExpr); ok {
			switch {
			case b.Op == AND && ExprWidth(b) == WidthBool:
				stack = append(stack, b.RHS, b.LHS)
				continue
			case b.Op == EQ && IsAddress(b.LHS):
				pc.equalities = pc.equalities.MakeEqual(b.LHS, b.RHS)
				pc.isFalse = pc.equalities.IsContradicting()
				continue
			}
		}
		if n, ok := c.(*NotExpr); ok {
			if b, ok := n.Expr.(*BinaryExpr); ok && b.Op == EQ && IsAddress(b.LHS) {
				pc.equalities = pc.equalities.MakeNotEqual(b.LHS, b.RHS)
				pc.isFalse = pc.equalities.IsContradicting()
				continue
			}
		}

		if _, ok := pc.constraints.Get(NewNotExpr(c)); ok {
			pc.isFalse = true
			continue
		}
		pc.constraints = pc.constraints.Set(c, struct{}{})
	}
}

// Constraints returns every constraint as a formula, ordered by CompareExpr
// and followed by the reference equalities. A false set returns [false].
func (pc *PathConstraints) Constraints() []Expr {
	if pc.isFalse {
		return []Expr{NewBoolConstantExpr(false)}
	}
	a := make([]Expr, 0, pc.constraints.Len())
	itr := pc.constraints.Iterator()
	for !itr.Done() {
		c, _, _ := itr.Next()
		a = append(a, c)
	}
	return append(a, pc.equalities.Constraints()...)
}

// Len returns the number of constraints.
func (pc *PathConstraints) Len() int {
	return len(pc.Constraints())
}

// String returns the constraints, one per line.
func (pc *PathConstraints) String() string {
	var sb strings.Builder
	for _, c := range pc.Constraints() {
		sb.WriteString(c.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

type refPair struct {
	lhs, rhs Expr
}

// EqualityConstraints tracks equalities and disequalities between
// references. It is persistent: every method returns a new value.
type EqualityConstraints struct {
	equal    *immutable.List[refPair]
	distinct *immutable.List[refPair]
}

// NewEqualityConstraints returns an empty set.
func NewEqualityConstraints() *EqualityConstraints {
	return &EqualityConstraints{
		equal:    immutable.NewList[refPair](),
		distinct: immutable.NewList[refPair](),
	}
}

// MakeEqual returns the constraints extended with lhs == rhs.
func (e *EqualityConstraints) MakeEqual(lhs, rhs Expr) *EqualityConstraints {
	return &EqualityConstraints{equal: e.equal.Append(refPair{lhs, rhs}), distinct: e.distinct}
}

// MakeNotEqual returns the constraints extended with lhs != rhs.
func (e *EqualityConstraints) MakeNotEqual(lhs, rhs Expr) *EqualityConstraints {
	return &EqualityConstraints{equal: e.equal, distinct: e.distinct.Append(refPair{lhs, rhs})}
}

// classes computes the equivalence classes of the equal pairs.
func (e *EqualityConstraints) classes() func(Expr) *uf.Element {
	elems := immutable.NewSortedMap[Expr, *uf.Element](exprComparer{})
	find := func(ref Expr) *uf.Element {
		el, ok := elems.Get(ref)
		if !ok {
			el = uf.NewElement()
			elems = elems.Set(ref, el)
		}
		return el
	}

	itr := e.equal.Iterator()
	for !itr.Done() {
		_, p := itr.Next()
		uf.Union(find(p.lhs), find(p.rhs))
	}
	return func(ref Expr) *uf.Element { return find(ref).Find() }
}

// IsContradicting returns true if two different concrete references are
// made equal or a distinct pair ends up in the same class.
func (e *EqualityConstraints) IsContradicting() bool {
	class := e.classes()

	concrete := make(map[*uf.Element]int64)
	itr := e.equal.Iterator()
	for !itr.Done() {
		_, p := itr.Next()
		for _, ref := range []Expr{p.lhs, p.rhs} {
			c, ok := ref.(*ConcreteHeapRef)
			if !ok {
				continue
			}
			rep := class(ref)
			if addr, ok := concrete[rep]; ok && addr != c.Address {
				return true
			}
			concrete[rep] = c.Address
		}
	}

	itr = e.distinct.Iterator()
	for !itr.Done() {
		_, p := itr.Next()
		if class(p.lhs) == class(p.rhs) {
			return true
		}
	}
	return false
}

// AreEqual returns true if lhs and rhs are in the same class.
func (e *EqualityConstraints) AreEqual(lhs, rhs Expr) bool {
	class := e.classes()
	return class(lhs) == class(rhs)
}

// Constraints returns the equalities and disequalities as formulas.
func (e *EqualityConstraints) Constraints() []Expr {
	var a []Expr
	itr := e.equal.Iterator()
	for !itr.Done() {
		_, p := itr.Next()
		a = append(a, &BinaryExpr{Op: EQ, LHS: p.lhs, RHS: p.rhs})
	}
	itr = e.distinct.Iterator()
	for !itr.Done() {
		_, p := itr.Next()
		a = append(a, NewNotExpr(&BinaryExpr{Op: EQ, LHS: p.lhs, RHS: p.rhs}))
	}
	return a
}
