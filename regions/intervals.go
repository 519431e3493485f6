package regions

import (
	"fmt"
	"math"
	"strings"
)

// EndpointKind describes which side of an interval an endpoint bounds and
// whether the bound is inclusive.
type EndpointKind int

// Endpoint kinds. Points with equal values sort by kind, so the order of
// these constants is significant.
const (
	OpenRight EndpointKind = iota
	ClosedLeft
	ClosedRight
	OpenLeft
)

// Endpoint is a single bound of an interval.
type Endpoint struct {
	Value int64
	Kind  EndpointKind
}

// Compare returns -1, 0, or 1 comparing e to other.
func (e Endpoint) Compare(other Endpoint) int {
	switch {
	case e.Value < other.Value:
		return -1
	case e.Value > other.Value:
		return 1
	case e.Kind < other.Kind:
		return -1
	case e.Kind > other.Kind:
		return 1
	default:
		return 0
	}
}

// IsLeft returns true if e opens an interval.
func (e Endpoint) IsLeft() bool {
	return e.Kind == ClosedLeft || e.Kind == OpenLeft
}

// flip returns the endpoint bounding the complement at the same value.
func (e Endpoint) flip() Endpoint {
	switch e.Kind {
	case ClosedLeft:
		return Endpoint{e.Value, OpenRight}
	case ClosedRight:
		return Endpoint{e.Value, OpenLeft}
	case OpenLeft:
		return Endpoint{e.Value, ClosedRight}
	default:
		return Endpoint{e.Value, ClosedLeft}
	}
}

func (e Endpoint) writeTo(sb *strings.Builder, last bool) {
	switch e.Kind {
	case ClosedLeft:
		fmt.Fprintf(sb, "[%d..", e.Value)
	case OpenLeft:
		fmt.Fprintf(sb, "(%d..", e.Value)
	case ClosedRight:
		fmt.Fprintf(sb, "%d]", e.Value)
	case OpenRight:
		fmt.Fprintf(sb, "%d)", e.Value)
	}
	if !e.IsLeft() && !last {
		sb.WriteString(" U ")
	}
}

// IntervalsRegion is a union of disjoint intervals over int64, stored as a
// sorted list of alternating left and right endpoints.
type IntervalsRegion struct {
	points []Endpoint
}

// Closed returns the region [from..to].
func Closed(from, to int64) IntervalsRegion {
	if from > to {
		return IntervalsRegion{}
	}
	return IntervalsRegion{points: []Endpoint{{from, ClosedLeft}, {to, ClosedRight}}}
}

// Point returns the region holding the single value x.
func Point(x int64) IntervalsRegion {
	return Closed(x, x)
}

// AllIntervals returns the region covering every int64.
func AllIntervals() IntervalsRegion {
	return Closed(math.MinInt64, math.MaxInt64)
}

// Endpoints returns a copy of the endpoints of r in ascending order.
func (r IntervalsRegion) Endpoints() []Endpoint {
	return append([]Endpoint(nil), r.points...)
}

// IsEmpty returns true if r contains no values.
func (r IntervalsRegion) IsEmpty() bool { return len(r.points) == 0 }

// Equal returns true if r and other contain the same values.
func (r IntervalsRegion) Equal(other IntervalsRegion) bool {
	if len(r.points) != len(other.points) {
		return false
	}
	for i := range r.points {
		if r.points[i] != other.points[i] {
			return false
		}
	}
	return true
}

// visitFunc receives an endpoint during a sweep along with whether the sweep
// line was already inside the first and second region. A non-nil result is
// appended to the combined region.
type visitFunc func(x Endpoint, in1, in2 bool) *Endpoint

// combine sweeps the endpoints of both regions in order. Endpoints present in
// only one region are passed to left1/right1 or left2/right2; endpoints
// present in both are passed to leftBoth/rightBoth.
func (r IntervalsRegion) combine(other IntervalsRegion, left1, right1, left2, right2, leftBoth, rightBoth visitFunc) IntervalsRegion {
	var result []Endpoint
	var i, j int
	var c1, c2 int
	for i < len(r.points) || j < len(other.points) {
		var cmp int
		if i >= len(r.points) {
			cmp = 1
		} else if j >= len(other.points) {
			cmp = -1
		} else {
			cmp = r.points[i].Compare(other.points[j])
		}

		var x Endpoint
		if cmp <= 0 {
			x = r.points[i]
			i++
			if x.IsLeft() {
				c1++
			} else {
				c1--
			}
		}
		if cmp >= 0 {
			x = other.points[j]
			j++
			if x.IsLeft() {
				c2++
			} else {
				c2--
			}
		}

		var res *Endpoint
		switch {
		case cmp == 0 && x.IsLeft():
			res = leftBoth(x, c1 > 1, c2 > 1)
		case cmp == 0:
			res = rightBoth(x, c1 > 0, c2 > 0)
		case cmp < 0 && x.IsLeft():
			res = left1(x, c1 > 1, c2 > 0)
		case cmp < 0:
			res = right1(x, c1 > 0, c2 > 0)
		case x.IsLeft():
			res = left2(x, c1 > 0, c2 > 1)
		default:
			res = right2(x, c1 > 0, c2 > 0)
		}
		if res != nil {
			result = append(result, *res)
		}
	}
	return IntervalsRegion{points: result}
}

// Intersect returns the values contained in both regions.
func (r IntervalsRegion) Intersect(other IntervalsRegion) IntervalsRegion {
	visit1 := func(x Endpoint, in1, in2 bool) *Endpoint {
		if !in1 && in2 {
			return &x
		}
		return nil
	}
	visit2 := func(x Endpoint, in1, in2 bool) *Endpoint {
		if !in2 && in1 {
			return &x
		}
		return nil
	}
	visitBoth := func(x Endpoint, in1, in2 bool) *Endpoint {
		if !in1 && !in2 {
			return &x
		}
		return nil
	}
	return r.combine(other, visit1, visit1, visit2, visit2, visitBoth, visitBoth)
}

// Subtract returns the values of r not contained in other.
func (r IntervalsRegion) Subtract(other IntervalsRegion) IntervalsRegion {
	visit1 := func(x Endpoint, in1, in2 bool) *Endpoint {
		if in2 {
			return nil
		}
		return &x
	}
	visit2 := func(x Endpoint, in1, in2 bool) *Endpoint {
		if in1 {
			f := x.flip()
			return &f
		}
		return nil
	}
	return r.combine(other, visit1, visit1, visit2, visit2, visit2, visit2)
}

// Union returns the values contained in either region.
func (r IntervalsRegion) Union(other IntervalsRegion) IntervalsRegion {
	visit := func(x Endpoint, in1, in2 bool) *Endpoint {
		if in1 || in2 {
			return nil
		}
		return &x
	}
	return r.combine(other, visit, visit, visit, visit, visit, visit)
}

// Compare returns the relation of r to other in a single sweep.
func (r IntervalsRegion) Compare(other IntervalsRegion) Comparison {
	includes, disjoint := true, true
	r.combine(other,
		func(x Endpoint, in1, in2 bool) *Endpoint {
			disjoint = disjoint && !in2
			return nil
		},
		func(x Endpoint, in1, in2 bool) *Endpoint {
			includes = includes && !in2
			disjoint = disjoint && !in2
			return nil
		},
		func(x Endpoint, in1, in2 bool) *Endpoint {
			includes = includes && in1
			disjoint = disjoint && !in1
			return nil
		},
		func(x Endpoint, in1, in2 bool) *Endpoint {
			disjoint = disjoint && !in1
			return nil
		},
		func(x Endpoint, in1, in2 bool) *Endpoint {
			disjoint = false
			return nil
		},
		func(x Endpoint, in1, in2 bool) *Endpoint {
			disjoint = false
			return nil
		},
	)

	if includes {
		return INCLUDES
	} else if disjoint {
		return DISJOINT
	}
	return INTERSECTS
}

// Contains returns true if x lies in the region.
func (r IntervalsRegion) Contains(x int64) bool {
	return r.Compare(Point(x)) == INCLUDES
}

// CheckInvariants returns an error if the endpoint list is malformed.
func (r IntervalsRegion) CheckInvariants() error {
	if len(r.points)%2 != 0 {
		return fmt.Errorf("odd number of endpoints: %v", r.points)
	}
	for i, p := range r.points {
		if p.IsLeft() != (i%2 == 0) {
			return fmt.Errorf("wrong endpoint kind at position %d: %v", i, r.points)
		}
		if i > 0 && r.points[i-1].Compare(p) >= 0 {
			return fmt.Errorf("wrong order at positions (%d, %d): %v", i-1, i, r.points)
		}
	}
	return nil
}

// String returns a string representation such as "[0..2) U (3..4]".
func (r IntervalsRegion) String() string {
	if r.IsEmpty() {
		return "<empty>"
	}
	var sb strings.Builder
	for i, p := range r.points {
		p.writeTo(&sb, i == len(r.points)-1)
	}
	return sb.String()
}
