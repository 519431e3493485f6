// Package regions implements the over-approximating key regions used to prune
// update logs, and the persistent RegionTree that stores values by region.
package regions

import "fmt"

// Comparison is the result of comparing two regions.
type Comparison int

// Region comparison results.
const (
	// INCLUDES means the receiver includes the other region.
	INCLUDES = Comparison(iota + 1)
	// DISJOINT means the regions have no common point.
	DISJOINT
	// INTERSECTS means the regions overlap but the receiver does not include the other region.
	INTERSECTS
)

var comparisons = [...]string{
	INCLUDES:   "includes",
	DISJOINT:   "disjoint",
	INTERSECTS: "intersects",
}

// String returns the string representation of the comparison.
func (c Comparison) String() string {
	if c > 0 && int(c) < len(comparisons) {
		return comparisons[c]
	}
	return fmt.Sprintf("Comparison<%d>", c)
}

// Region represents a set of keys. Implementations are immutable values.
type Region[R any] interface {
	Compare(other R) Comparison
	Intersect(other R) R
	Subtract(other R) R
	Union(other R) R
	IsEmpty() bool
	Equal(other R) bool
	String() string
}

// compare derives a comparison from subtraction and intersection.
// Used by regions that have no cheaper way of comparing.
func compare[R Region[R]](r, other R) Comparison {
	if other.Subtract(r).IsEmpty() {
		return INCLUDES
	} else if r.Intersect(other).IsEmpty() {
		return DISJOINT
	}
	return INTERSECTS
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
