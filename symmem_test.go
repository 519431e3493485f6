package symmem_test

import (
	"flag"
	"io"
	"log"
	"os"
	"testing"

	"github.com/symmem/symmem"
)

func TestMain(m *testing.M) {
	flag.Parse()
	if !testing.Verbose() {
		log.SetOutput(io.Discard)
	}
	os.Exit(m.Run())
}

// Var returns a named 32-bit constant.
func Var(name string) *symmem.ConstExpr { return symmem.NewConstExpr(name, symmem.SizeSort) }

// BoolVar returns a named boolean constant.
func BoolVar(name string) *symmem.ConstExpr { return symmem.NewConstExpr(name, symmem.BoolSort) }

// RefVar returns a named symbolic reference.
func RefVar(name string) *symmem.ConstExpr { return symmem.NewConstExpr(name, symmem.AddressSort) }

// Int returns a 32-bit constant.
func Int(v int64) *symmem.ConstantExpr { return symmem.NewSizeExpr(v) }

// Bool returns a boolean constant.
func Bool(v bool) *symmem.ConstantExpr { return symmem.NewBoolConstantExpr(v) }

// Ref returns a concrete reference.
func Ref(addr int64) *symmem.ConcreteHeapRef { return symmem.NewConcreteHeapRef(addr) }

// NewSymbolModel returns a model assigning only named constants.
func NewSymbolModel(symbols symmem.ModelSymbols) *symmem.Model {
	return symmem.NewModel(symmem.ModelRegisters{}, symmem.NewHeapModel(), symmem.ModelMocks{}, symbols)
}

// MustEqualExpr fails if got and want are not structurally equal.
func MustEqualExpr(tb testing.TB, got, want symmem.Expr) {
	tb.Helper()
	if symmem.CompareExpr(got, want) != 0 {
		tb.Fatalf("unexpected expr:\ngot:  %s\nwant: %s", got, want)
	}
}

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
