package z3

import (
	"fmt"

	"github.com/symmem/symmem"
)

/*
#include <z3.h>
*/
import "C"

// translator converts expressions to Z3 ASTs within a single check.
//
// Shared subexpressions are translated once. Input addresses and input
// array lengths produce side constraints: every symbolic address is an
// input address (null or negative) and every input length is non-negative.
type translator struct {
	ctx  *Context
	memo map[symmem.Expr]C.Z3_ast
	side []C.Z3_ast
}

func newTranslator(ctx *Context) *translator {
	return &translator{
		ctx:  ctx,
		memo: make(map[symmem.Expr]C.Z3_ast),
	}
}

func (tr *translator) toAST(expr symmem.Expr) (C.Z3_ast, error) {
	if ast, ok := tr.memo[expr]; ok {
		return ast, nil
	}
	ast, err := tr.translate(expr)
	if err != nil {
		return nil, err
	}
	tr.memo[expr] = ast
	return ast, nil
}

func (tr *translator) translate(expr symmem.Expr) (C.Z3_ast, error) {
	switch expr := expr.(type) {
	case *symmem.ConstantExpr:
		if expr.Width == symmem.WidthBool {
			if expr.IsTrue() {
				return tr.ctx.makeTrue()
			}
			return tr.ctx.makeFalse()
		}
		return tr.ctx.makeUint64(expr.Width, expr.Value)
	case *symmem.ConcreteHeapRef:
		return tr.ctx.makeAddress(expr.Address)
	case *symmem.ConstExpr:
		ast, err := tr.ctx.makeSymbolConst(expr)
		return tr.input(ast, expr.Sort, err)
	case *symmem.RegisterReading:
		ast, err := tr.ctx.makeRegisterConst(expr.Index, expr.Sort)
		return tr.input(ast, expr.Sort, err)
	case *symmem.MockSymbol:
		ast, err := tr.ctx.makeMockConst(expr.Method, expr.CallIndex, expr.Sort)
		return tr.input(ast, expr.Sort, err)
	case *symmem.NotExpr:
		return tr.toNotAST(expr)
	case *symmem.BinaryExpr:
		return tr.toBinaryAST(expr)
	case *symmem.IteExpr:
		return tr.toIteAST(expr)
	case *symmem.CastExpr:
		return tr.toCastAST(expr)
	case *symmem.InputFieldReading:
		return tr.toInputFieldReadingAST(expr)
	case *symmem.AllocatedArrayReading:
		return tr.toAllocatedArrayReadingAST(expr)
	case *symmem.InputArrayReading:
		return tr.toInputArrayReadingAST(expr)
	case *symmem.InputArrayLengthReading:
		return tr.toInputArrayLengthReadingAST(expr)
	default:
		return nil, fmt.Errorf("z3: unexpected expression type: %T", expr)
	}
}

// input constrains an initial value of address sort to input addresses.
func (tr *translator) input(ast C.Z3_ast, sort symmem.Sort, err error) (C.Z3_ast, error) {
	if err != nil {
		return nil, err
	} else if !sort.Address {
		return ast, nil
	}

	zero, err := tr.ctx.makeAddress(0)
	if err != nil {
		return nil, err
	}
	cond := C.Z3_mk_bvsle(tr.ctx.raw, ast, zero)
	if err := tr.ctx.err("Z3_mk_bvsle"); err != nil {
		return nil, err
	}
	tr.side = append(tr.side, cond)
	return ast, nil
}

func (tr *translator) toNotAST(expr *symmem.NotExpr) (C.Z3_ast, error) {
	src, err := tr.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}

	if symmem.ExprWidth(expr.Expr) == symmem.WidthBool {
		ast := C.Z3_mk_not(tr.ctx.raw, src)
		if err := tr.ctx.err("Z3_mk_not"); err != nil {
			return nil, err
		}
		return ast, nil
	}

	ast := C.Z3_mk_bvnot(tr.ctx.raw, src)
	if err := tr.ctx.err("Z3_mk_bvnot"); err != nil {
		return nil, err
	}
	return ast, nil
}

func (tr *translator) toBinaryAST(expr *symmem.BinaryExpr) (C.Z3_ast, error) {
	lhs, err := tr.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := tr.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}

	raw := tr.ctx.raw
	isBool := symmem.ExprWidth(expr.LHS) == symmem.WidthBool && !symmem.IsAddress(expr.LHS)

	var ast C.Z3_ast
	var op string
	switch expr.Op {
	case symmem.ADD:
		ast, op = C.Z3_mk_bvadd(raw, lhs, rhs), "Z3_mk_bvadd"
	case symmem.SUB:
		ast, op = C.Z3_mk_bvsub(raw, lhs, rhs), "Z3_mk_bvsub"
	case symmem.MUL:
		ast, op = C.Z3_mk_bvmul(raw, lhs, rhs), "Z3_mk_bvmul"
	case symmem.AND:
		if isBool {
			args := []C.Z3_ast{lhs, rhs}
			ast, op = C.Z3_mk_and(raw, 2, &args[0]), "Z3_mk_and"
		} else {
			ast, op = C.Z3_mk_bvand(raw, lhs, rhs), "Z3_mk_bvand"
		}
	case symmem.OR:
		if isBool {
			args := []C.Z3_ast{lhs, rhs}
			ast, op = C.Z3_mk_or(raw, 2, &args[0]), "Z3_mk_or"
		} else {
			ast, op = C.Z3_mk_bvor(raw, lhs, rhs), "Z3_mk_bvor"
		}
	case symmem.XOR:
		if isBool {
			ast, op = C.Z3_mk_xor(raw, lhs, rhs), "Z3_mk_xor"
		} else {
			ast, op = C.Z3_mk_bvxor(raw, lhs, rhs), "Z3_mk_bvxor"
		}
	case symmem.EQ:
		if isBool {
			ast, op = C.Z3_mk_iff(raw, lhs, rhs), "Z3_mk_iff"
		} else {
			ast, op = C.Z3_mk_eq(raw, lhs, rhs), "Z3_mk_eq"
		}
	case symmem.NE:
		args := []C.Z3_ast{lhs, rhs}
		ast, op = C.Z3_mk_distinct(raw, 2, &args[0]), "Z3_mk_distinct"
	case symmem.ULT:
		ast, op = C.Z3_mk_bvult(raw, lhs, rhs), "Z3_mk_bvult"
	case symmem.ULE:
		ast, op = C.Z3_mk_bvule(raw, lhs, rhs), "Z3_mk_bvule"
	case symmem.UGT:
		ast, op = C.Z3_mk_bvugt(raw, lhs, rhs), "Z3_mk_bvugt"
	case symmem.UGE:
		ast, op = C.Z3_mk_bvuge(raw, lhs, rhs), "Z3_mk_bvuge"
	case symmem.SLT:
		ast, op = C.Z3_mk_bvslt(raw, lhs, rhs), "Z3_mk_bvslt"
	case symmem.SLE:
		ast, op = C.Z3_mk_bvsle(raw, lhs, rhs), "Z3_mk_bvsle"
	case symmem.SGT:
		ast, op = C.Z3_mk_bvsgt(raw, lhs, rhs), "Z3_mk_bvsgt"
	case symmem.SGE:
		ast, op = C.Z3_mk_bvsge(raw, lhs, rhs), "Z3_mk_bvsge"
	default:
		return nil, fmt.Errorf("z3: unexpected binary operation: %s", expr.Op)
	}

	if err := tr.ctx.err(op); err != nil {
		return nil, err
	}
	return ast, nil
}

func (tr *translator) toIteAST(expr *symmem.IteExpr) (C.Z3_ast, error) {
	cond, err := tr.toAST(expr.Cond)
	if err != nil {
		return nil, err
	}
	then, err := tr.toAST(expr.Then)
	if err != nil {
		return nil, err
	}
	els, err := tr.toAST(expr.Else)
	if err != nil {
		return nil, err
	}
	return tr.makeIte(cond, then, els)
}

func (tr *translator) makeIte(cond, then, els C.Z3_ast) (C.Z3_ast, error) {
	ast := C.Z3_mk_ite(tr.ctx.raw, cond, then, els)
	if err := tr.ctx.err("Z3_mk_ite"); err != nil {
		return nil, err
	}
	return ast, nil
}

func (tr *translator) toCastAST(expr *symmem.CastExpr) (C.Z3_ast, error) {
	src, err := tr.toAST(expr.Src)
	if err != nil {
		return nil, err
	}
	srcWidth := symmem.ExprWidth(expr.Src)

	// Booleans become all ones or one when signed or unsigned, respectively.
	if srcWidth == symmem.WidthBool && !symmem.IsAddress(expr.Src) {
		one, err := tr.ctx.makeUint64(expr.Width, 1)
		if expr.Signed {
			one, err = tr.ctx.makeUint64(expr.Width, ^uint64(0)>>(64-expr.Width))
		}
		if err != nil {
			return nil, err
		}
		zero, err := tr.ctx.makeUint64(expr.Width, 0)
		if err != nil {
			return nil, err
		}
		return tr.makeIte(src, one, zero)
	}

	var ast C.Z3_ast
	var op string
	switch {
	case expr.Width < srcWidth:
		ast, op = C.Z3_mk_extract(tr.ctx.raw, C.uint(expr.Width-1), 0, src), "Z3_mk_extract"
	case expr.Signed:
		ast, op = C.Z3_mk_sign_ext(tr.ctx.raw, C.uint(expr.Width-srcWidth), src), "Z3_mk_sign_ext"
	default:
		ast, op = C.Z3_mk_zero_ext(tr.ctx.raw, C.uint(expr.Width-srcWidth), src), "Z3_mk_zero_ext"
	}
	if err := tr.ctx.err(op); err != nil {
		return nil, err
	}
	return ast, nil
}

// foldWrites returns the value read after applying writes to base. Newer
// writes shadow older ones.
func (tr *translator) foldWrites(base C.Z3_ast, writes []write) (C.Z3_ast, error) {
	ast := base
	for _, w := range writes {
		includes, err := tr.toAST(w.includes)
		if err != nil {
			return nil, err
		}
		value, err := tr.toAST(w.value)
		if err != nil {
			return nil, err
		}
		if ast, err = tr.makeIte(includes, value, ast); err != nil {
			return nil, err
		}
	}
	return ast, nil
}

func (tr *translator) toInputFieldReadingAST(expr *symmem.InputFieldReading) (C.Z3_ast, error) {
	id := expr.Collection.ID().(*symmem.InputFieldID)
	ref, err := tr.toAST(expr.Ref)
	if err != nil {
		return nil, err
	}

	array, err := tr.ctx.makeFieldArray(id.Field, id.Sort())
	if err != nil {
		return nil, err
	}
	base, err := tr.ctx.makeSelect(array, ref)
	if base, err = tr.input(base, id.Sort(), err); err != nil {
		return nil, err
	}
	return tr.foldWrites(base, writesAt(expr.Collection, expr.Ref))
}

func (tr *translator) toAllocatedArrayReadingAST(expr *symmem.AllocatedArrayReading) (C.Z3_ast, error) {
	base, err := tr.toAST(symmem.DefaultValue(expr.Collection.Sort()))
	if err != nil {
		return nil, err
	}
	return tr.foldWrites(base, writesAt(expr.Collection, expr.Index))
}

func (tr *translator) toInputArrayReadingAST(expr *symmem.InputArrayReading) (C.Z3_ast, error) {
	id := expr.Collection.ID().(*symmem.InputArrayID)
	ref, err := tr.toAST(expr.Ref)
	if err != nil {
		return nil, err
	}
	index, err := tr.toAST(expr.Index)
	if err != nil {
		return nil, err
	}

	array, err := tr.ctx.makeElementArray(id.ArrayType, id.Sort())
	if err != nil {
		return nil, err
	}
	elements, err := tr.ctx.makeSelect(array, ref)
	if err != nil {
		return nil, err
	}
	base, err := tr.ctx.makeSelect(elements, index)
	if base, err = tr.input(base, id.Sort(), err); err != nil {
		return nil, err
	}

	key := symmem.ArrayIndex{Ref: expr.Ref, Index: expr.Index}
	return tr.foldWrites(base, writesAt(expr.Collection, key))
}

func (tr *translator) toInputArrayLengthReadingAST(expr *symmem.InputArrayLengthReading) (C.Z3_ast, error) {
	id := expr.Collection.ID().(*symmem.InputArrayLengthID)
	ref, err := tr.toAST(expr.Ref)
	if err != nil {
		return nil, err
	}

	array, err := tr.ctx.makeLengthArray(id.ArrayType)
	if err != nil {
		return nil, err
	}
	base, err := tr.ctx.makeSelect(array, ref)
	if err != nil {
		return nil, err
	}

	// Input lengths are non-negative.
	zero, err := tr.ctx.makeUint64(symmem.Width32, 0)
	if err != nil {
		return nil, err
	}
	cond := C.Z3_mk_bvsle(tr.ctx.raw, zero, base)
	if err := tr.ctx.err("Z3_mk_bvsle"); err != nil {
		return nil, err
	}
	tr.side = append(tr.side, cond)

	return tr.foldWrites(base, writesAt(expr.Collection, expr.Ref))
}
