package symmem_test

import (
	"testing"

	"github.com/symmem/symmem"
)

func TestComposer_Compose(t *testing.T) {
	t.Run("Registers", func(t *testing.T) {
		caller := symmem.NewMemory(symmem.NewAddressCounter())
		caller.Stack.Push([]symmem.Expr{Int(4)}, 0)

		expr := symmem.NewBinaryExpr(symmem.ADD, &symmem.RegisterReading{Index: 0, Sort: symmem.SizeSort}, Int(1))
		MustEqualExpr(t, symmem.NewMemoryComposer(caller).Compose(expr), Int(5))
	})

	t.Run("CalleeHeapInCallerMemory", func(t *testing.T) {
		counter := symmem.NewAddressCounter()

		// The callee reads a field of its first argument.
		callee := symmem.NewMemory(counter)
		callee.Stack.Push(nil, 1)
		arg := callee.Read(symmem.RegisterLValue{Index: 0, Sort: symmem.AddressSort})
		v := callee.Read(symmem.FieldLValue{Ref: arg, Field: "f", Sort: symmem.SizeSort})

		caller := symmem.NewMemory(counter)
		o := caller.Alloc()
		caller.Write(symmem.FieldLValue{Ref: o, Field: "f", Sort: symmem.SizeSort}, Int(5), Bool(true))
		caller.Stack.Push([]symmem.Expr{o}, 0)

		MustEqualExpr(t, symmem.NewMemoryComposer(caller).Compose(v), Int(5))
	})

	t.Run("NilReadersKeepSymbols", func(t *testing.T) {
		x := Var("x")
		MustEqualExpr(t, symmem.NewComposer(nil, nil, nil, nil).Compose(x), x)
	})

	t.Run("DeepTerm", func(t *testing.T) {
		var expr symmem.Expr = Var("x")
		for i := 0; i < 100000; i++ {
			expr = symmem.NewBinaryExpr(symmem.MUL, Var("y"), expr)
		}
		model := NewSymbolModel(symmem.ModelSymbols{"x": Int(3), "y": Int(1)})
		if got := MustEvalInt(t, model, expr); got != 3 {
			t.Fatalf("unexpected value: %d", got)
		}
	})
}
