package symmem_test

import (
	"testing"

	"github.com/symmem/symmem"
)

func TestPathConstraints_Add(t *testing.T) {
	x, y := Var("x"), Var("y")

	t.Run("True", func(t *testing.T) {
		pc := symmem.NewPathConstraints()
		pc.Add(Bool(true))
		if pc.IsFalse() || pc.Len() != 0 {
			t.Fatalf("unexpected constraints: %s", pc)
		}
	})

	t.Run("False", func(t *testing.T) {
		pc := symmem.NewPathConstraints()
		pc.Add(symmem.NewBinaryExpr(symmem.SLT, x, y))
		pc.Add(Bool(false))
		if !pc.IsFalse() {
			t.Fatal("expected false")
		} else if a := pc.Constraints(); len(a) != 1 || !symmem.IsConstantFalse(a[0]) {
			t.Fatalf("unexpected constraints: %v", a)
		}
	})

	t.Run("Negation", func(t *testing.T) {
		pc := symmem.NewPathConstraints()
		c := symmem.NewBinaryExpr(symmem.SLT, x, y)
		pc.Add(c)
		if pc.IsFalse() {
			t.Fatal("unexpected false")
		}
		pc.Add(symmem.NewNotExpr(c))
		if !pc.IsFalse() {
			t.Fatal("expected false")
		}
	})

	t.Run("Conjunction", func(t *testing.T) {
		pc := symmem.NewPathConstraints()
		pc.Add(symmem.NewAndExpr(symmem.NewBinaryExpr(symmem.SLT, x, y), symmem.NewBinaryExpr(symmem.SLT, y, Int(10))))
		if n := pc.Len(); n != 2 {
			t.Fatalf("unexpected len: %d", n)
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		pc := symmem.NewPathConstraints()
		pc.Add(symmem.NewBinaryExpr(symmem.SLT, x, y))
		pc.Add(symmem.NewBinaryExpr(symmem.SLT, x, y))
		if n := pc.Len(); n != 1 {
			t.Fatalf("unexpected len: %d", n)
		}
	})

	t.Run("Clone", func(t *testing.T) {
		pc := symmem.NewPathConstraints()
		pc.Add(symmem.NewBinaryExpr(symmem.SLT, x, y))
		other := pc.Clone()
		other.Add(Bool(false))
		if pc.IsFalse() {
			t.Fatal("clone modified original")
		} else if !other.IsFalse() {
			t.Fatal("expected false clone")
		}
	})
}

func TestPathConstraints_Equalities(t *testing.T) {
	p, q, r := RefVar("p"), RefVar("q"), RefVar("r")

	t.Run("EqualThenDistinct", func(t *testing.T) {
		pc := symmem.NewPathConstraints()
		pc.Add(symmem.NewHeapRefEq(p, q))
		if !pc.Equalities().AreEqual(p, q) {
			t.Fatal("expected p == q")
		}
		pc.Add(symmem.NewNotExpr(symmem.NewHeapRefEq(p, q)))
		if !pc.IsFalse() {
			t.Fatal("expected false")
		}
	})

	t.Run("Transitive", func(t *testing.T) {
		pc := symmem.NewPathConstraints()
		pc.Add(symmem.NewNotExpr(symmem.NewHeapRefEq(p, r)))
		pc.Add(symmem.NewHeapRefEq(p, q))
		if pc.IsFalse() {
			t.Fatal("unexpected false")
		}
		pc.Add(symmem.NewHeapRefEq(q, r))
		if !pc.IsFalse() {
			t.Fatal("expected false")
		}
	})

	t.Run("DistinctConcrete", func(t *testing.T) {
		pc := symmem.NewPathConstraints()
		pc.Add(symmem.NewHeapRefEq(p, symmem.NullRef()))
		pc.Add(symmem.NewHeapRefEq(q, Ref(-1)))
		if pc.IsFalse() {
			t.Fatal("unexpected false")
		}
		pc.Add(symmem.NewHeapRefEq(p, q))
		if !pc.IsFalse() {
			t.Fatal("expected false")
		}
	})

	t.Run("Formulas", func(t *testing.T) {
		pc := symmem.NewPathConstraints()
		pc.Add(symmem.NewHeapRefEq(p, q))
		pc.Add(symmem.NewNotExpr(symmem.NewHeapRefEq(q, r)))
		a := pc.Constraints()
		if len(a) != 2 {
			t.Fatalf("unexpected constraints: %v", a)
		} else if s := a[0].String(); s != "(eq p q)" {
			t.Fatalf("unexpected equality: %s", s)
		} else if s := a[1].String(); s != "(not (eq q r))" {
			t.Fatalf("unexpected disequality: %s", s)
		}
	})
}
