package regions

import "strings"

// ProductRegion is a finite union of rectangles X×Y.
type ProductRegion[X Region[X], Y Region[Y]] struct {
	rects []rect[X, Y]
}

type rect[X Region[X], Y Region[Y]] struct {
	x X
	y Y
}

func (r rect[X, Y]) isEmpty() bool {
	return r.x.IsEmpty() || r.y.IsEmpty()
}

// NewProductRegion returns the region x×y.
func NewProductRegion[X Region[X], Y Region[Y]](x X, y Y) ProductRegion[X, Y] {
	r := rect[X, Y]{x, y}
	if r.isEmpty() {
		return ProductRegion[X, Y]{}
	}
	return ProductRegion[X, Y]{rects: []rect[X, Y]{r}}
}

// IsEmpty returns true if the region contains no points.
func (r ProductRegion[X, Y]) IsEmpty() bool {
	return len(r.rects) == 0
}

// Intersect returns the points in both regions.
func (r ProductRegion[X, Y]) Intersect(other ProductRegion[X, Y]) ProductRegion[X, Y] {
	var result []rect[X, Y]
	for _, a := range r.rects {
		for _, b := range other.rects {
			c := rect[X, Y]{a.x.Intersect(b.x), a.y.Intersect(b.y)}
			if !c.isEmpty() {
				result = append(result, c)
			}
		}
	}
	return ProductRegion[X, Y]{rects: result}
}

// Subtract returns the points of r outside other.
//
// Each rectangle A×B minus C×D splits into (A\C)×B and (A∩C)×(B\D).
func (r ProductRegion[X, Y]) Subtract(other ProductRegion[X, Y]) ProductRegion[X, Y] {
	rects := r.rects
	for _, cd := range other.rects {
		var next []rect[X, Y]
		for _, ab := range rects {
			if left := (rect[X, Y]{ab.x.Subtract(cd.x), ab.y}); !left.isEmpty() {
				next = append(next, left)
			}
			if right := (rect[X, Y]{ab.x.Intersect(cd.x), ab.y.Subtract(cd.y)}); !right.isEmpty() {
				next = append(next, right)
			}
		}
		rects = next
	}
	return ProductRegion[X, Y]{rects: rects}
}

// Union returns the points in either region.
func (r ProductRegion[X, Y]) Union(other ProductRegion[X, Y]) ProductRegion[X, Y] {
	rest := other.Subtract(r)
	rects := make([]rect[X, Y], 0, len(r.rects)+len(rest.rects))
	rects = append(rects, r.rects...)
	rects = append(rects, rest.rects...)
	return ProductRegion[X, Y]{rects: rects}
}

// Compare returns the relation of r to other.
func (r ProductRegion[X, Y]) Compare(other ProductRegion[X, Y]) Comparison {
	return compare[ProductRegion[X, Y]](r, other)
}

// Equal returns true if both regions contain the same points.
func (r ProductRegion[X, Y]) Equal(other ProductRegion[X, Y]) bool {
	return other.Subtract(r).IsEmpty() && r.Subtract(other).IsEmpty()
}

// String returns the rectangles joined by " U ".
func (r ProductRegion[X, Y]) String() string {
	if r.IsEmpty() {
		return "<empty>"
	}
	parts := make([]string, len(r.rects))
	for i, rc := range r.rects {
		parts[i] = "(" + rc.x.String() + " x " + rc.y.String() + ")"
	}
	return strings.Join(parts, " U ")
}
