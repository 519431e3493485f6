package symmem_test

import (
	"testing"

	"github.com/symmem/symmem"
)

func TestExprSort(t *testing.T) {
	t.Run("Compare", func(t *testing.T) {
		if s := symmem.ExprSort(symmem.NewBinaryExpr(symmem.SLT, Var("x"), Int(1))); s != symmem.BoolSort {
			t.Fatalf("unexpected sort: %s", s)
		}
	})
	t.Run("Cast", func(t *testing.T) {
		if w := symmem.ExprWidth(symmem.NewCastExpr(Var("x"), 64, true)); w != 64 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("Ref", func(t *testing.T) {
		if !symmem.IsAddress(Ref(1)) || !symmem.IsAddress(RefVar("p")) {
			t.Fatal("expected address sort")
		} else if symmem.IsAddress(Var("x")) {
			t.Fatal("unexpected address sort")
		}
	})
}

func TestNewBinaryExpr(t *testing.T) {
	x := Var("x")

	t.Run("ConstantFold", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.ADD, Int(2), Int(3)), Int(5))
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.SUB, Int(2), Int(3)), Int(-1))
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.MUL, Int(4), Int(3)), Int(12))
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.XOR, Int(6), Int(3)), Int(5))
	})

	t.Run("Identity", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.ADD, x, Int(0)), x)
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.MUL, Int(1), x), x)
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.MUL, x, Int(0)), Int(0))
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.SUB, x, x), Int(0))
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.XOR, x, x), Int(0))
	})

	t.Run("NeutralOperand", func(t *testing.T) {
		g := BoolVar("g")
		for _, tt := range []struct {
			name string
			expr symmem.Expr
			want symmem.Expr
		}{
			{"ZeroPlusX", symmem.NewBinaryExpr(symmem.ADD, Int(0), x), x},
			{"XPlusZero", symmem.NewBinaryExpr(symmem.ADD, x, Int(0)), x},
			{"OneTimesX", symmem.NewBinaryExpr(symmem.MUL, Int(1), x), x},
			{"ZeroXorX", symmem.NewBinaryExpr(symmem.XOR, Int(0), x), x},
			{"TrueAndG", symmem.NewAndExpr(Bool(true), g), g},
			{"GAndTrue", symmem.NewAndExpr(g, Bool(true)), g},
			{"FalseOrG", symmem.NewOrExpr(Bool(false), g), g},
			{"AndExprs", symmem.NewAndExprs(g), g},
			{"OrExprs", symmem.NewOrExprs(g), g},
		} {
			t.Run(tt.name, func(t *testing.T) {
				if tt.expr != tt.want {
					t.Fatalf("unexpected expr: %#v", tt.expr)
				}
			})
		}
	})

	t.Run("Reassociate", func(t *testing.T) {
		expr := symmem.NewBinaryExpr(symmem.ADD, Int(1), symmem.NewBinaryExpr(symmem.ADD, Int(2), x))
		if got, want := expr.String(), "(add (const 3 32) x)"; got != want {
			t.Fatalf("String()=%s, want %s", got, want)
		}
	})

	t.Run("AddSubCancel", func(t *testing.T) {
		y := Var("y")
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.SUB, symmem.NewBinaryExpr(symmem.ADD, y, x), x), y)
	})

	t.Run("SignedCompare", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.SLT, Int(-1), Int(0)), Bool(true))
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.ULT, Int(-1), Int(0)), Bool(false))
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.SGE, Int(0), Int(-1)), Bool(true))
	})

	t.Run("CompareSelf", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.SLT, x, x), Bool(false))
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.ULE, x, x), Bool(true))
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.EQ, x, x), Bool(true))
	})

	t.Run("GreaterThanSwapsOperands", func(t *testing.T) {
		if got, want := symmem.NewBinaryExpr(symmem.SGT, x, Int(0)).String(), "(slt (const 0 32) x)"; got != want {
			t.Fatalf("String()=%s, want %s", got, want)
		}
	})

	t.Run("Logic", func(t *testing.T) {
		b := BoolVar("b")
		MustEqualExpr(t, symmem.NewAndExpr(b, symmem.NewNotExpr(b)), Bool(false))
		MustEqualExpr(t, symmem.NewOrExpr(symmem.NewNotExpr(b), b), Bool(true))
		MustEqualExpr(t, symmem.NewAndExpr(Bool(true), b), b)
		MustEqualExpr(t, symmem.NewOrExpr(Bool(false), b), b)
		MustEqualExpr(t, symmem.NewEqExpr(Bool(true), b), b)
		MustEqualExpr(t, symmem.NewEqExpr(Bool(false), b), symmem.NewNotExpr(b))
	})

	t.Run("NotEqual", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewBinaryExpr(symmem.NE, x, Int(1)), symmem.NewNotExpr(symmem.NewEqExpr(Int(1), x)))
	})

	t.Run("AndExprs", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewAndExprs(), Bool(true))
		MustEqualExpr(t, symmem.NewOrExprs(), Bool(false))
	})
}

func TestNewNotExpr(t *testing.T) {
	b := BoolVar("b")
	MustEqualExpr(t, symmem.NewNotExpr(symmem.NewNotExpr(b)), b)
	MustEqualExpr(t, symmem.NewNotExpr(Bool(true)), Bool(false))
}

func TestNewIteExpr(t *testing.T) {
	c, x, y := BoolVar("c"), Var("x"), Var("y")

	t.Run("ConstantCond", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewIteExpr(Bool(true), x, y), x)
		MustEqualExpr(t, symmem.NewIteExpr(Bool(false), x, y), y)
	})
	t.Run("SameBranches", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewIteExpr(c, x, x), x)
	})
	t.Run("NegatedCond", func(t *testing.T) {
		if got, want := symmem.NewIteExpr(symmem.NewNotExpr(c), x, y).String(), "(ite c y x)"; got != want {
			t.Fatalf("String()=%s, want %s", got, want)
		}
	})
	t.Run("NestedSameCond", func(t *testing.T) {
		z := Var("z")
		MustEqualExpr(t, symmem.NewIteExpr(c, symmem.NewIteExpr(c, x, z), y), symmem.NewIteExpr(c, x, y))
	})
	t.Run("Bool", func(t *testing.T) {
		b := BoolVar("b")
		MustEqualExpr(t, symmem.NewIteExpr(c, Bool(true), Bool(false)), c)
		MustEqualExpr(t, symmem.NewIteExpr(c, Bool(false), Bool(true)), symmem.NewNotExpr(c))
		MustEqualExpr(t, symmem.NewIteExpr(c, Bool(true), b), symmem.NewOrExpr(c, b))
		MustEqualExpr(t, symmem.NewIteExpr(c, b, Bool(false)), symmem.NewAndExpr(c, b))
	})
}

func TestConstantExpr(t *testing.T) {
	t.Run("Int64", func(t *testing.T) {
		c := symmem.NewIntExpr(-1, 8)
		if c.Value != 0xff {
			t.Fatalf("unexpected value: %#x", c.Value)
		} else if c.Int64() != -1 {
			t.Fatalf("unexpected int64: %d", c.Int64())
		}
	})
	t.Run("Cast", func(t *testing.T) {
		c := symmem.NewIntExpr(-1, 8)
		if v := symmem.NewCastExpr(c, 32, true).(*symmem.ConstantExpr).Int64(); v != -1 {
			t.Fatalf("unexpected sext: %d", v)
		}
		if v := symmem.NewCastExpr(c, 32, false).(*symmem.ConstantExpr).Int64(); v != 255 {
			t.Fatalf("unexpected zext: %d", v)
		}
	})
	t.Run("String", func(t *testing.T) {
		if s := Int(-7).String(); s != "(const -7 32)" {
			t.Fatalf("unexpected string: %s", s)
		} else if s := Bool(true).String(); s != "true" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
}

func TestNewHeapRefEq(t *testing.T) {
	p, q := RefVar("p"), RefVar("q")

	t.Run("Concrete", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewHeapRefEq(Ref(1), Ref(1)), Bool(true))
		MustEqualExpr(t, symmem.NewHeapRefEq(Ref(1), Ref(2)), Bool(false))
		MustEqualExpr(t, symmem.NewHeapRefEq(symmem.NullRef(), Ref(-1)), Bool(false))
	})
	t.Run("AllocatedIsNeverInput", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewHeapRefEq(Ref(1), p), Bool(false))
		MustEqualExpr(t, symmem.NewHeapRefEq(p, Ref(3)), Bool(false))
	})
	t.Run("Symbolic", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewHeapRefEq(p, p), Bool(true))
		if s := symmem.NewHeapRefEq(p, q).String(); s != "(eq p q)" {
			t.Fatalf("unexpected expr: %s", s)
		}
		if s := symmem.NewHeapRefEq(p, symmem.NullRef()).String(); s != "(eq null p)" {
			t.Fatalf("unexpected expr: %s", s)
		}
	})
	t.Run("Ite", func(t *testing.T) {
		c := BoolVar("c")
		ref := symmem.NewIteExpr(c, Ref(1), p)
		MustEqualExpr(t, symmem.NewHeapRefEq(ref, p), symmem.NewNotExpr(c))
		MustEqualExpr(t, symmem.NewHeapRefEq(ref, Ref(1)), c)
	})
	t.Run("EqRoutesAddresses", func(t *testing.T) {
		MustEqualExpr(t, symmem.NewEqExpr(Ref(1), p), Bool(false))
	})
}

func TestCompareExpr(t *testing.T) {
	x, y := Var("x"), Var("y")
	if symmem.CompareExpr(x, Var("x")) != 0 {
		t.Fatal("expected equal constants")
	} else if symmem.CompareExpr(x, y) >= 0 {
		t.Fatal("expected x < y")
	} else if symmem.CompareExpr(Int(1), x) >= 0 {
		t.Fatal("expected constants first")
	} else if symmem.CompareExpr(symmem.NewBinaryExpr(symmem.ADD, Int(1), x), symmem.NewBinaryExpr(symmem.ADD, Int(1), y)) >= 0 {
		t.Fatal("expected structural order")
	}
}

func TestWalkExpr(t *testing.T) {
	expr := symmem.NewIteExpr(BoolVar("c"), symmem.NewBinaryExpr(symmem.ADD, Var("x"), Int(1)), Var("y"))

	var names []string
	symmem.WalkExpr(symmem.ExprVisitorFunc(func(e symmem.Expr) bool {
		if c, ok := e.(*symmem.ConstExpr); ok {
			names = append(names, c.Name)
		}
		return true
	}), expr)

	if len(names) != 3 || names[0] != "c" || names[1] != "x" || names[2] != "y" {
		t.Fatalf("unexpected names: %v", names)
	}
}
