package regions_test

import (
	"math/rand"
	"testing"

	"github.com/symmem/symmem/regions"
)

func TestIntervalsRegion_String(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		if s := regions.Closed(1, 3).Subtract(regions.Closed(0, 5)).String(); s != "<empty>" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
	t.Run("Union", func(t *testing.T) {
		if s := regions.Closed(1, 3).Union(regions.Closed(5, 7)).String(); s != "[1..3] U [5..7]" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
	t.Run("Hole", func(t *testing.T) {
		if s := regions.Closed(1, 5).Subtract(regions.Point(3)).String(); s != "[1..3) U (3..5]" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
	t.Run("All", func(t *testing.T) {
		if s := regions.AllIntervals().Subtract(regions.Point(0)).String(); s != "[-9223372036854775808..0) U (0..9223372036854775807]" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
}

func TestIntervalsRegion_Intersect(t *testing.T) {
	if r := regions.Closed(1, 5).Intersect(regions.Closed(3, 8)); !r.Equal(regions.Closed(3, 5)) {
		t.Fatalf("unexpected region: %s", r)
	}
}

func TestIntervalsRegion_Union(t *testing.T) {
	if r := regions.Closed(1, 3).Union(regions.Closed(2, 5)); !r.Equal(regions.Closed(1, 5)) {
		t.Fatalf("unexpected region: %s", r)
	}
}

func TestIntervalsRegion_Compare(t *testing.T) {
	t.Run("Includes", func(t *testing.T) {
		if c := regions.Closed(1, 10).Compare(regions.Closed(3, 4)); c != regions.INCLUDES {
			t.Fatalf("unexpected comparison: %s", c)
		}
	})
	t.Run("Disjoint", func(t *testing.T) {
		if c := regions.Closed(1, 2).Compare(regions.Closed(3, 4)); c != regions.DISJOINT {
			t.Fatalf("unexpected comparison: %s", c)
		}
	})
	t.Run("Intersects", func(t *testing.T) {
		if c := regions.Closed(1, 5).Compare(regions.Closed(3, 8)); c != regions.INTERSECTS {
			t.Fatalf("unexpected comparison: %s", c)
		}
	})
	t.Run("Sub", func(t *testing.T) {
		if c := regions.Closed(3, 4).Compare(regions.Closed(1, 10)); c != regions.INTERSECTS {
			t.Fatalf("unexpected comparison: %s", c)
		}
	})
}

// Ensure set operations agree with pointwise membership on a small domain.
func TestIntervalsRegion_Random(t *testing.T) {
	rand := rand.New(rand.NewSource(0))
	randomRegion := func() regions.IntervalsRegion {
		var r regions.IntervalsRegion
		for i := 0; i < 3; i++ {
			from := rand.Int63n(20)
			r = r.Union(regions.Closed(from, from+rand.Int63n(5)))
		}
		if rand.Intn(2) == 0 {
			r = r.Subtract(regions.Point(rand.Int63n(20)))
		}
		return r
	}

	for i := 0; i < 200; i++ {
		a, b := randomRegion(), randomRegion()
		for _, r := range []regions.IntervalsRegion{a, b, a.Union(b), a.Intersect(b), a.Subtract(b)} {
			if err := r.CheckInvariants(); err != nil {
				t.Fatal(err)
			}
		}

		for x := int64(-1); x <= 25; x++ {
			inA, inB := a.Contains(x), b.Contains(x)
			if got := a.Union(b).Contains(x); got != (inA || inB) {
				t.Fatalf("union(%s, %s) contains %d: %v", a, b, x, got)
			}
			if got := a.Intersect(b).Contains(x); got != (inA && inB) {
				t.Fatalf("intersect(%s, %s) contains %d: %v", a, b, x, got)
			}
			if got := a.Subtract(b).Contains(x); got != (inA && !inB) {
				t.Fatalf("subtract(%s, %s) contains %d: %v", a, b, x, got)
			}
		}
	}
}
