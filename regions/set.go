package regions

import (
	"fmt"
	"strings"

	"golang.org/x/tools/container/intsets"
)

// SetRegion is either a finite set of values or the complement of one.
// Values never share their underlying sets, so the zero value is the empty region.
type SetRegion struct {
	set      *intsets.Sparse
	cofinite bool
}

// EmptySet returns a region with no values.
func EmptySet() SetRegion {
	return SetRegion{}
}

// AllSet returns the region containing every value.
func AllSet() SetRegion {
	return SetRegion{cofinite: true}
}

// SetOf returns the finite region holding values.
func SetOf(values ...int64) SetRegion {
	var s intsets.Sparse
	for _, v := range values {
		s.Insert(int(v))
	}
	return SetRegion{set: &s}
}

// AllExcept returns the region of every value except the given ones.
func AllExcept(values ...int64) SetRegion {
	r := SetOf(values...)
	r.cofinite = true
	return r
}

func (r SetRegion) sparse() *intsets.Sparse {
	if r.set == nil {
		return &intsets.Sparse{}
	}
	return r.set
}

func union(a, b *intsets.Sparse) *intsets.Sparse {
	var s intsets.Sparse
	s.Union(a, b)
	return &s
}

func intersection(a, b *intsets.Sparse) *intsets.Sparse {
	var s intsets.Sparse
	s.Intersection(a, b)
	return &s
}

func difference(a, b *intsets.Sparse) *intsets.Sparse {
	var s intsets.Sparse
	s.Difference(a, b)
	return &s
}

// IsEmpty returns true if the region contains no values.
func (r SetRegion) IsEmpty() bool {
	return !r.cofinite && r.sparse().IsEmpty()
}

// Contains returns true if x is in the region.
func (r SetRegion) Contains(x int64) bool {
	return r.sparse().Has(int(x)) != r.cofinite
}

// Equal returns true if both regions contain the same values.
func (r SetRegion) Equal(other SetRegion) bool {
	return r.cofinite == other.cofinite && r.sparse().Equals(other.sparse())
}

// Intersect returns the values in both regions.
func (r SetRegion) Intersect(other SetRegion) SetRegion {
	a, b := r.sparse(), other.sparse()
	switch {
	case !r.cofinite && !other.cofinite:
		return SetRegion{set: intersection(a, b)}
	case !r.cofinite:
		return SetRegion{set: difference(a, b)}
	case !other.cofinite:
		return SetRegion{set: difference(b, a)}
	default:
		return SetRegion{set: union(a, b), cofinite: true}
	}
}

// Union returns the values in either region.
func (r SetRegion) Union(other SetRegion) SetRegion {
	a, b := r.sparse(), other.sparse()
	switch {
	case !r.cofinite && !other.cofinite:
		return SetRegion{set: union(a, b)}
	case !r.cofinite:
		return SetRegion{set: difference(b, a), cofinite: true}
	case !other.cofinite:
		return SetRegion{set: difference(a, b), cofinite: true}
	default:
		return SetRegion{set: intersection(a, b), cofinite: true}
	}
}

// Subtract returns the values in r that are not in other.
func (r SetRegion) Subtract(other SetRegion) SetRegion {
	a, b := r.sparse(), other.sparse()
	switch {
	case !r.cofinite && !other.cofinite:
		return SetRegion{set: difference(a, b)}
	case !r.cofinite:
		return SetRegion{set: intersection(a, b)}
	case !other.cofinite:
		return SetRegion{set: union(a, b), cofinite: true}
	default:
		return SetRegion{set: difference(b, a)}
	}
}

// Compare returns the relation of r to other.
func (r SetRegion) Compare(other SetRegion) Comparison {
	return compare[SetRegion](r, other)
}

// String returns "{1, 2}" for finite regions and "U\{1, 2}" for cofinite ones.
func (r SetRegion) String() string {
	values := r.sparse().AppendTo(nil)
	if r.cofinite && len(values) == 0 {
		return "U"
	}

	var sb strings.Builder
	if r.cofinite {
		sb.WriteString(`U\`)
	}
	sb.WriteString("{")
	for i, v := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprint(&sb, v)
	}
	sb.WriteString("}")
	return sb.String()
}
