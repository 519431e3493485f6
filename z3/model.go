package z3

import (
	"fmt"

	"github.com/symmem/symmem"
)

/*
#include <z3.h>
*/
import "C"

// Model answers reads of symbols, registers, mocks and input objects from a
// Z3 model. Values are evaluated on demand with model completion so every
// read returns a constant.
//
// Model methods panic if Z3 reports an error or the solver has been closed.
type Model struct {
	solver *Solver
	raw    C.Z3_model
}

var (
	_ symmem.RegisterReader = (*Model)(nil)
	_ symmem.HeapReader     = (*Model)(nil)
	_ symmem.MockReader     = (*Model)(nil)
	_ symmem.SymbolReader   = (*Model)(nil)
)

// ReadSymbol returns the value of a named constant.
func (m *Model) ReadSymbol(symbol *symmem.ConstExpr) symmem.Expr {
	return m.eval(symbol.Sort, func(ctx *Context) (C.Z3_ast, error) {
		return ctx.makeSymbolConst(symbol)
	})
}

// ReadRegister returns the initial value of a register of the entry frame.
func (m *Model) ReadRegister(index int, sort symmem.Sort) symmem.Expr {
	return m.eval(sort, func(ctx *Context) (C.Z3_ast, error) {
		return ctx.makeRegisterConst(index, sort)
	})
}

// ReadMock returns the result of a mocked call.
func (m *Model) ReadMock(symbol *symmem.MockSymbol) symmem.Expr {
	return m.eval(symbol.Sort, func(ctx *Context) (C.Z3_ast, error) {
		return ctx.makeMockConst(symbol.Method, symbol.CallIndex, symbol.Sort)
	})
}

// ReadField returns the initial value of field of the input object at ref.
func (m *Model) ReadField(ref symmem.Expr, field string, sort symmem.Sort) symmem.Expr {
	address := modelAddress(ref)
	return m.eval(sort, func(ctx *Context) (C.Z3_ast, error) {
		array, err := ctx.makeFieldArray(field, sort)
		if err != nil {
			return nil, err
		}
		key, err := ctx.makeAddress(address)
		if err != nil {
			return nil, err
		}
		return ctx.makeSelect(array, key)
	})
}

// ReadArrayIndex returns the initial element at index of the input array at ref.
func (m *Model) ReadArrayIndex(ref, index symmem.Expr, arrayType string, sort symmem.Sort) symmem.Expr {
	address := modelAddress(ref)
	i, ok := index.(*symmem.ConstantExpr)
	if !ok {
		panic("z3: model array index must be constant")
	}

	return m.eval(sort, func(ctx *Context) (C.Z3_ast, error) {
		array, err := ctx.makeElementArray(arrayType, sort)
		if err != nil {
			return nil, err
		}
		key, err := ctx.makeAddress(address)
		if err != nil {
			return nil, err
		}
		elements, err := ctx.makeSelect(array, key)
		if err != nil {
			return nil, err
		}
		z3Index, err := ctx.makeUint64(i.Width, i.Value)
		if err != nil {
			return nil, err
		}
		return ctx.makeSelect(elements, z3Index)
	})
}

// ReadArrayLength returns the initial length of the input array at ref.
func (m *Model) ReadArrayLength(ref symmem.Expr, arrayType string) symmem.Expr {
	address := modelAddress(ref)
	return m.eval(symmem.SizeSort, func(ctx *Context) (C.Z3_ast, error) {
		array, err := ctx.makeLengthArray(arrayType)
		if err != nil {
			return nil, err
		}
		key, err := ctx.makeAddress(address)
		if err != nil {
			return nil, err
		}
		return ctx.makeSelect(array, key)
	})
}

// eval builds an AST under the solver lock and evaluates it in the model.
func (m *Model) eval(sort symmem.Sort, fn func(ctx *Context) (C.Z3_ast, error)) symmem.Expr {
	m.solver.mu.Lock()
	defer m.solver.mu.Unlock()

	if m.solver.closed {
		panic("z3: model used after solver closed")
	}

	ctx := m.solver.ctx
	ast, err := fn(ctx)
	if err != nil {
		panic(err)
	}

	var value C.Z3_ast
	if !C.Z3_model_eval(ctx.raw, m.raw, ast, C.bool(true), &value) {
		if err := ctx.err("Z3_model_eval"); err != nil {
			panic(err)
		}
		panic(fmt.Sprintf("z3: cannot evaluate %s", ctx.astToString(ast)))
	}

	expr, err := ctx.constant(value, sort)
	if err != nil {
		panic(err)
	}
	return expr
}

// constant converts an evaluated Z3 value of the given sort to a constant.
func (ctx *Context) constant(ast C.Z3_ast, sort symmem.Sort) (symmem.Expr, error) {
	if sort.Width == symmem.WidthBool && !sort.Address {
		b := C.Z3_get_bool_value(ctx.raw, ast)
		if err := ctx.err("Z3_get_bool_value"); err != nil {
			return nil, err
		}
		return symmem.NewBoolConstantExpr(b == C.Z3_L_TRUE), nil
	}

	var u C.uint64_t
	C.Z3_get_numeral_uint64(ctx.raw, ast, &u)
	if err := ctx.err("Z3_get_numeral_uint64"); err != nil {
		return nil, err
	}

	if sort.Address {
		return symmem.NewConcreteHeapRef(int64(int32(uint32(u)))), nil
	}
	return symmem.NewConstantExpr(uint64(u), sort.Width), nil
}

// modelAddress returns the address of a concrete reference.
func modelAddress(ref symmem.Expr) int64 {
	r, ok := ref.(*symmem.ConcreteHeapRef)
	if !ok {
		panic("z3: model reference must be concrete")
	}
	return r.Address
}
