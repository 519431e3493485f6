package regions_test

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/symmem/symmem/regions"
)

type treeEntry struct {
	Region string
	Value  string
}

// entries returns the tree's entries in iteration order.
func entries(tree *regions.RegionTree[regions.IntervalsRegion, string]) []treeEntry {
	var a []treeEntry
	for itr := tree.Iterator(); !itr.Done(); {
		region, value, ok := itr.Next()
		if !ok {
			break
		}
		a = append(a, treeEntry{Region: region.String(), Value: value})
	}
	return a
}

func MustCheckInvariant(tb testing.TB, tree *regions.RegionTree[regions.IntervalsRegion, string]) {
	tb.Helper()
	if err := tree.CheckInvariant(); err != nil {
		tb.Fatal(err)
	}
}

func TestRegionTree_Write(t *testing.T) {
	empty := regions.NewRegionTree[regions.IntervalsRegion, string]()

	t.Run("Disjoint", func(t *testing.T) {
		tree := empty.Write(regions.Closed(0, 10), "a", nil).Write(regions.Closed(20, 30), "b", nil)
		MustCheckInvariant(t, tree)
		if diff := cmp.Diff(entries(tree), []treeEntry{
			{Region: "[0..10]", Value: "a"},
			{Region: "[20..30]", Value: "b"},
		}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Nested", func(t *testing.T) {
		tree := empty.Write(regions.Closed(0, 10), "a", nil).Write(regions.Closed(2, 3), "b", nil)
		MustCheckInvariant(t, tree)
		if diff := cmp.Diff(entries(tree), []treeEntry{
			{Region: "[0..2) U (3..10]", Value: "a"},
			{Region: "[2..3]", Value: "a"},
			{Region: "[2..3]", Value: "b"},
		}); diff != "" {
			t.Fatal(diff)
		}
		goldie.New(t).Assert(t, "region_tree_nested", []byte(tree.String()))
	})

	t.Run("SameRegion", func(t *testing.T) {
		tree := empty.Write(regions.Closed(0, 10), "a", nil).
			Write(regions.Closed(2, 3), "b", nil).
			Write(regions.Closed(2, 3), "c", nil)
		MustCheckInvariant(t, tree)
		if diff := cmp.Diff(entries(tree), []treeEntry{
			{Region: "[0..2) U (3..10]", Value: "a"},
			{Region: "[2..3]", Value: "a"},
			{Region: "[2..3]", Value: "b"},
			{Region: "[2..3]", Value: "c"},
		}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Filter", func(t *testing.T) {
		tree := empty.Write(regions.Closed(0, 10), "a", nil).
			Write(regions.Closed(0, 10), "b", func(v string) bool { return v != "a" })
		if diff := cmp.Diff(entries(tree), []treeEntry{
			{Region: "[0..10]", Value: "b"},
		}); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestRegionTree_Localize(t *testing.T) {
	tree := regions.NewRegionTree[regions.IntervalsRegion, string]().
		Write(regions.Closed(0, 10), "a", nil).
		Write(regions.Closed(2, 3), "b", nil)

	t.Run("Point", func(t *testing.T) {
		if diff := cmp.Diff(entries(tree.Localize(regions.Point(2), nil)), []treeEntry{
			{Region: "[2..2]", Value: "a"},
			{Region: "[2..2]", Value: "b"},
		}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Disjoint", func(t *testing.T) {
		if !tree.Localize(regions.Closed(50, 60), nil).IsEmpty() {
			t.Fatal("expected empty tree")
		}
	})

	t.Run("Split", func(t *testing.T) {
		covered, disjoint := tree.Split(regions.Closed(0, 1), nil)
		if diff := cmp.Diff(entries(covered), []treeEntry{
			{Region: "[0..1]", Value: "a"},
		}); diff != "" {
			t.Fatal(diff)
		}
		if diff := cmp.Diff(entries(disjoint), []treeEntry{
			{Region: "(1..2) U (3..10]", Value: "a"},
			{Region: "[2..3]", Value: "a"},
			{Region: "[2..3]", Value: "b"},
		}); diff != "" {
			t.Fatal(diff)
		}
	})
}

// Ensure the root-most value localized at a point is the last value written over it.
func TestRegionTree_Random(t *testing.T) {
	rand := rand.New(rand.NewSource(0))
	tree := regions.NewRegionTree[regions.IntervalsRegion, string]()
	var last [32]string

	for i := 0; i < 100; i++ {
		from := rand.Int63n(28)
		to := from + rand.Int63n(4)
		value := string(rune('a' + i%26))
		tree = tree.Write(regions.Closed(from, to), value, nil)
		for x := from; x <= to; x++ {
			last[x] = value
		}
		MustCheckInvariant(t, tree)

		for x := int64(0); x < 32; x++ {
			a := entries(tree.Localize(regions.Point(x), nil))
			if last[x] == "" {
				if len(a) != 0 {
					t.Fatalf("unexpected entries at %d: %v", x, a)
				}
				continue
			}
			if len(a) == 0 || a[len(a)-1].Value != last[x] {
				t.Fatalf("unexpected entries at %d: %v, expected %q last", x, a, last[x])
			}
		}
	}
}

func TestRegionTree_Dot(t *testing.T) {
	tree := regions.NewRegionTree[regions.IntervalsRegion, string]().
		Write(regions.Closed(0, 10), "a", nil).
		Write(regions.Closed(2, 3), "b", nil)
	goldie.New(t).Assert(t, "region_tree_dot", []byte(tree.Dot()))
}

func TestRegionTree_Entries(t *testing.T) {
	tree := regions.NewRegionTree[regions.IntervalsRegion, string]().
		Write(regions.Closed(0, 1), "a", nil).
		Write(regions.Closed(5, 6), "b", nil)

	if region, value, ok := tree.Last(); !ok {
		t.Fatal("expected last entry")
	} else if region.String() != "[5..6]" || value != "b" {
		t.Fatalf("unexpected last entry: %s -> %s", region, value)
	}

	a := tree.Entries()
	if len(a) != 2 {
		t.Fatalf("unexpected entry count: %d", len(a))
	}
	other := regions.TreeOf(a[1], a[0])
	if diff := cmp.Diff(entries(other), []treeEntry{
		{Region: "[5..6]", Value: "b"},
		{Region: "[0..1]", Value: "a"},
	}); diff != "" {
		t.Fatal(diff)
	}

	if _, _, ok := regions.NewRegionTree[regions.IntervalsRegion, string]().Last(); ok {
		t.Fatal("expected no entry")
	}
}
