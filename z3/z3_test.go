package z3_test

import (
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/symmem/symmem"
	"github.com/symmem/symmem/z3"
)

const intArray = "int[]"

func TestMain(m *testing.M) {
	flag.Parse()
	if !testing.Verbose() {
		log.SetOutput(io.Discard)
	}
	os.Exit(m.Run())
}

func TestSolver_Check(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		t.Run("True", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)
			if result := MustCheck(t, s, NewPathConstraints(symmem.NewBoolConstantExpr(true))); result.Status != symmem.Sat {
				t.Fatalf("unexpected status: %s", result.Status)
			}
		})
		t.Run("False", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)
			if result := MustCheck(t, s, NewPathConstraints(symmem.NewBoolConstantExpr(false))); result.Status != symmem.Unsat {
				t.Fatalf("unexpected status: %s", result.Status)
			}
		})
	})

	t.Run("Bounds", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		x := Var("x")
		result := MustCheck(t, s, NewPathConstraints(
			symmem.NewBinaryExpr(symmem.SLT, Int(5), x),
			symmem.NewBinaryExpr(symmem.SLT, x, Int(7)),
		))
		if result.Status != symmem.Sat {
			t.Fatalf("unexpected status: %s", result.Status)
		} else if got, want := MustEvalInt(t, result.Model, x), int64(6); got != want {
			t.Fatalf("x=%d, want %d", got, want)
		}
	})

	t.Run("Unsat", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		x := Var("x")
		result := MustCheck(t, s, NewPathConstraints(
			symmem.NewBinaryExpr(symmem.SLT, x, Int(0)),
			symmem.NewBinaryExpr(symmem.SLT, Int(0), x),
		))
		if result.Status != symmem.Unsat {
			t.Fatalf("unexpected status: %s", result.Status)
		} else if result.Model != nil {
			t.Fatal("expected no model")
		}
	})

	t.Run("Bool", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		b := symmem.NewConstExpr("b", symmem.BoolSort)
		result := MustCheck(t, s, NewPathConstraints(b))
		if result.Status != symmem.Sat {
			t.Fatalf("unexpected status: %s", result.Status)
		} else if !symmem.IsConstantTrue(result.Model.Eval(b)) {
			t.Fatalf("b=%s, want true", result.Model.Eval(b))
		}
	})

	t.Run("Cast", func(t *testing.T) {
		t.Run("Signed", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)

			x := symmem.NewConstExpr("x", symmem.BitVecSort(16))
			result := MustCheck(t, s, NewPathConstraints(
				symmem.NewEqExpr(x, symmem.NewIntExpr(-200, 16)),
				symmem.NewEqExpr(symmem.NewCastExpr(x, 32, true), Int(-200)),
			))
			if result.Status != symmem.Sat {
				t.Fatalf("unexpected status: %s", result.Status)
			}
		})
		t.Run("Unsigned", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)

			x := symmem.NewConstExpr("x", symmem.BitVecSort(16))
			result := MustCheck(t, s, NewPathConstraints(
				symmem.NewEqExpr(x, symmem.NewIntExpr(-200, 16)),
				symmem.NewEqExpr(symmem.NewCastExpr(x, 32, false), Int(-200)),
			))
			if result.Status != symmem.Unsat {
				t.Fatalf("unexpected status: %s", result.Status)
			}
		})
		t.Run("Truncate", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)

			x := Var("x")
			result := MustCheck(t, s, NewPathConstraints(
				symmem.NewEqExpr(x, Int(0x1FF)),
				symmem.NewEqExpr(symmem.NewCastExpr(x, 8, false), symmem.NewConstantExpr(0xFF, 8)),
			))
			if result.Status != symmem.Sat {
				t.Fatalf("unexpected status: %s", result.Status)
			}
		})
	})

	t.Run("Address", func(t *testing.T) {
		t.Run("Input", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)

			p := RefVar("p")
			result := MustCheck(t, s, NewPathConstraints(
				symmem.NewNotExpr(symmem.NewHeapRefEq(p, symmem.NullRef())),
			))
			if result.Status != symmem.Sat {
				t.Fatalf("unexpected status: %s", result.Status)
			} else if addr := MustEvalRef(t, result.Model, p); addr >= 0 {
				t.Fatalf("p=%d, want input address", addr)
			}
		})
		t.Run("Positive", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)

			// Symbolic references never point to allocated objects.
			p := RefVar("p")
			result := MustCheck(t, s, NewPathConstraints(
				&symmem.BinaryExpr{Op: symmem.SLT, LHS: symmem.NullRef(), RHS: p},
			))
			if result.Status != symmem.Unsat {
				t.Fatalf("unexpected status: %s", result.Status)
			}
		})
	})

	t.Run("Field", func(t *testing.T) {
		t.Run("Aliased", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)

			mem := symmem.NewMemory(symmem.NewAddressCounter())
			p, q := RefVar("p"), RefVar("q")
			mem.Write(symmem.FieldLValue{Ref: p, Field: "f", Sort: symmem.SizeSort}, Int(5), symmem.NewBoolConstantExpr(true))
			v := mem.Read(symmem.FieldLValue{Ref: q, Field: "f", Sort: symmem.SizeSort})

			result := MustCheck(t, s, NewPathConstraints(
				symmem.NewHeapRefEq(p, q),
				symmem.NewEqExpr(v, Int(7)),
			))
			if result.Status != symmem.Unsat {
				t.Fatalf("unexpected status: %s", result.Status)
			}
		})
		t.Run("Distinct", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)

			mem := symmem.NewMemory(symmem.NewAddressCounter())
			p, q := RefVar("p"), RefVar("q")
			mem.Write(symmem.FieldLValue{Ref: p, Field: "f", Sort: symmem.SizeSort}, Int(5), symmem.NewBoolConstantExpr(true))
			v := mem.Read(symmem.FieldLValue{Ref: q, Field: "f", Sort: symmem.SizeSort})

			result := MustCheck(t, s, NewPathConstraints(
				symmem.NewNotExpr(symmem.NewHeapRefEq(p, q)),
				symmem.NewEqExpr(v, Int(7)),
			))
			if result.Status != symmem.Sat {
				t.Fatalf("unexpected status: %s", result.Status)
			} else if got, want := MustEvalInt(t, result.Model, v), int64(7); got != want {
				t.Fatalf("q.f=%d, want %d", got, want)
			} else if MustEvalRef(t, result.Model, p) == MustEvalRef(t, result.Model, q) {
				t.Fatal("expected distinct references")
			}
		})
	})

	t.Run("Array", func(t *testing.T) {
		t.Run("Memcpy", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)

			mem := symmem.NewMemory(symmem.NewAddressCounter())
			src := RefVar("src")
			dst := mem.AllocArray(intArray, Int(3))
			mem.Memcpy(src, dst, intArray, symmem.SizeSort, Int(0), Int(0), Int(3))
			e := mem.Read(symmem.ArrayIndexLValue{Ref: dst, Index: Int(1), ArrayType: intArray, Sort: symmem.SizeSort})

			result := MustCheck(t, s, NewPathConstraints(symmem.NewEqExpr(e, Int(42))))
			if result.Status != symmem.Sat {
				t.Fatalf("unexpected status: %s", result.Status)
			}
			srcElem := mem.Read(symmem.ArrayIndexLValue{Ref: src, Index: Int(1), ArrayType: intArray, Sort: symmem.SizeSort})
			if got, want := MustEvalInt(t, result.Model, srcElem), int64(42); got != want {
				t.Fatalf("src[1]=%d, want %d", got, want)
			}
		})
		t.Run("SymbolicIndex", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)

			mem := symmem.NewMemory(symmem.NewAddressCounter())
			src := RefVar("src")
			dst := mem.AllocArray(intArray, Int(3))
			mem.Memcpy(src, dst, intArray, symmem.SizeSort, Int(0), Int(0), Int(3))

			i := Var("i")
			e := mem.Read(symmem.ArrayIndexLValue{Ref: dst, Index: i, ArrayType: intArray, Sort: symmem.SizeSort})
			result := MustCheck(t, s, NewPathConstraints(
				symmem.NewEqExpr(e, Int(42)),
				symmem.NewBinaryExpr(symmem.SLT, i, Int(0)),
			))
			if result.Status != symmem.Unsat {
				t.Fatalf("unexpected status: %s", result.Status)
			}
		})
		t.Run("Length", func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)

			mem := symmem.NewMemory(symmem.NewAddressCounter())
			n := mem.Read(symmem.ArrayLengthLValue{Ref: RefVar("a"), ArrayType: intArray})
			result := MustCheck(t, s, NewPathConstraints(symmem.NewBinaryExpr(symmem.SLT, n, Int(0))))
			if result.Status != symmem.Unsat {
				t.Fatalf("unexpected status: %s", result.Status)
			}
		})
	})

	t.Run("Mock", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		mem := symmem.NewMemory(symmem.NewAddressCounter())
		r0 := mem.Mocker.Call("rand", symmem.SizeSort)
		r1 := mem.Mocker.Call("rand", symmem.SizeSort)
		result := MustCheck(t, s, NewPathConstraints(
			symmem.NewEqExpr(r0, Int(1)),
			symmem.NewEqExpr(r1, Int(2)),
		))
		if result.Status != symmem.Sat {
			t.Fatalf("unexpected status: %s", result.Status)
		}
		got := []int64{MustEvalInt(t, result.Model, r0), MustEvalInt(t, result.Model, r1)}
		if diff := cmp.Diff(got, []int64{1, 2}); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Register", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		r := &symmem.RegisterReading{Index: 0, Sort: symmem.SizeSort}
		result := MustCheck(t, s, NewPathConstraints(symmem.NewEqExpr(r, Int(9))))
		if result.Status != symmem.Sat {
			t.Fatalf("unexpected status: %s", result.Status)
		} else if got, want := MustEvalInt(t, result.Model, r), int64(9); got != want {
			t.Fatalf("r0=%d, want %d", got, want)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		MustCheck(t, s, NewPathConstraints())
		MustCheck(t, s, NewPathConstraints())
		if got, want := s.Stats().CheckN, 2; got != want {
			t.Fatalf("CheckN=%d, want %d", got, want)
		}
	})
}

func TestSolver_Fork(t *testing.T) {
	s := z3.NewSolver()
	defer MustCloseSolver(s)

	state := symmem.NewState(symmem.NewAddressCounter())
	result := MustCheck(t, s, state.PathConstraints)
	state.Models = []*symmem.Model{result.Model}

	x := Var("x")
	cond := symmem.NewBinaryExpr(symmem.SLT, x, Int(10))
	fork := symmem.NewSolverStateForker(s).Fork(state, cond)
	if fork.Positive == nil || fork.Negative == nil {
		t.Fatalf("expected both branches: %+v", fork)
	}
	if got := MustEvalInt(t, fork.Positive.Models[0], x); got >= 10 {
		t.Fatalf("positive x=%d", got)
	}
	if got := MustEvalInt(t, fork.Negative.Models[0], x); got < 10 {
		t.Fatalf("negative x=%d", got)
	}
}

func TestError_Error(t *testing.T) {
	err := error(&z3.Error{Code: z3.ErrorCodeSortError, Op: "Z3_mk_eq", Message: "Sort mismatch"})
	if got, want := err.Error(), "Z3_mk_eq: Sort mismatch (1)"; got != want {
		t.Fatalf("Error()=%q, want %q", got, want)
	}

	var e *z3.Error
	if !errors.As(err, &e) || e.Op != "Z3_mk_eq" {
		t.Fatal("expected *z3.Error")
	}
}

// NewPathConstraints returns path constraints holding constraints.
func NewPathConstraints(constraints ...symmem.Expr) *symmem.PathConstraints {
	pc := symmem.NewPathConstraints()
	for _, c := range constraints {
		pc.Add(c)
	}
	return pc
}

// MustCheck checks pc and fails on error.
func MustCheck(tb testing.TB, s *z3.Solver, pc *symmem.PathConstraints) symmem.CheckResult {
	tb.Helper()
	result, err := s.Check(pc)
	if err != nil {
		tb.Fatal(err)
	}
	return result
}

// Var returns a named 32-bit constant.
func Var(name string) *symmem.ConstExpr { return symmem.NewConstExpr(name, symmem.SizeSort) }

// RefVar returns a named symbolic reference.
func RefVar(name string) *symmem.ConstExpr { return symmem.NewConstExpr(name, symmem.AddressSort) }

// Int returns a 32-bit constant.
func Int(v int64) *symmem.ConstantExpr { return symmem.NewSizeExpr(v) }

// MustEvalInt evaluates expr under m and returns its signed value.
func MustEvalInt(tb testing.TB, m *symmem.Model, expr symmem.Expr) int64 {
	tb.Helper()
	v, ok := m.Eval(expr).(*symmem.ConstantExpr)
	if !ok {
		tb.Fatalf("expected constant, got %s", m.Eval(expr))
	}
	return v.Int64()
}

// MustEvalRef evaluates a reference under m and returns its address.
func MustEvalRef(tb testing.TB, m *symmem.Model, expr symmem.Expr) int64 {
	tb.Helper()
	v, ok := m.Eval(expr).(*symmem.ConcreteHeapRef)
	if !ok {
		tb.Fatalf("expected concrete reference, got %s", m.Eval(expr))
	}
	return v.Address
}

func MustCloseSolver(s *z3.Solver) {
	if err := s.Close(); err != nil {
		panic(err)
	}
}
