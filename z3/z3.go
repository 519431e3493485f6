package z3

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/symmem/symmem"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// Ensure solver implements interface.
var _ symmem.Solver = (*Solver)(nil)

// Solver represents a solver that uses an embedded Z3 solver.
//
// Models returned by Check are evaluated lazily against the Z3 model and
// stay valid until the solver is closed.
type Solver struct {
	mu     sync.Mutex
	ctx    *Context
	models []C.Z3_model
	closed bool
	stats  Stats

	// Timeout limits each check. Zero means no limit.
	Timeout time.Duration
}

// NewSolver returns a new instance of Solver.
func NewSolver() *Solver {
	return &Solver{
		ctx: NewContext(),
	}
}

// Close releases all models and deletes the underlying Z3 context.
func (s *Solver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, model := range s.models {
		C.Z3_model_dec_ref(s.ctx.raw, model)
	}
	s.models, s.closed = nil, true
	return s.ctx.Close()
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Check checks the satisfiability of the path constraints.
func (s *Solver) Check(pc *symmem.PathConstraints) (symmem.CheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := time.Now()
	defer func() {
		s.stats.CheckN++
		s.stats.CheckTime += time.Since(t)
	}()

	if pc.IsFalse() {
		return symmem.CheckResult{Status: symmem.Unsat}, nil
	}

	solver := C.Z3_mk_solver(s.ctx.raw)
	if err := s.ctx.err("Z3_mk_solver"); err != nil {
		return symmem.CheckResult{Status: symmem.Unknown}, err
	}
	C.Z3_solver_inc_ref(s.ctx.raw, solver)
	defer C.Z3_solver_dec_ref(s.ctx.raw, solver)

	if s.Timeout > 0 {
		if err := s.ctx.setTimeout(solver, s.Timeout); err != nil {
			return symmem.CheckResult{Status: symmem.Unknown}, err
		}
	}

	// Translate every constraint first. Translation collects side
	// constraints on input addresses and lengths which are asserted last.
	tr := newTranslator(s.ctx)
	asts := make([]C.Z3_ast, 0, pc.Len())
	for _, constraint := range pc.Constraints() {
		ast, err := tr.toAST(constraint)
		if err != nil {
			return symmem.CheckResult{Status: symmem.Unknown}, err
		}
		asts = append(asts, ast)
	}
	asts = append(asts, tr.side...)

	for _, ast := range asts {
		C.Z3_solver_assert(s.ctx.raw, solver, ast)
		if err := s.ctx.err("Z3_solver_assert"); err != nil {
			return symmem.CheckResult{Status: symmem.Unknown}, err
		}
	}

	// Exit immediately if unsatisfiable or the solver gave up.
	ret := C.Z3_solver_check(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return symmem.CheckResult{Status: symmem.Unknown}, err
	} else if ret == C.Z3_L_FALSE {
		return symmem.CheckResult{Status: symmem.Unsat}, nil
	} else if ret == C.Z3_L_UNDEF {
		reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, solver))
		return symmem.CheckResult{Status: symmem.Unknown}, reasonError(reason)
	}

	model := C.Z3_solver_get_model(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_get_model"); err != nil {
		return symmem.CheckResult{Status: symmem.Unknown}, err
	}
	C.Z3_model_inc_ref(s.ctx.raw, model)
	s.models = append(s.models, model)

	m := &Model{solver: s, raw: model}
	return symmem.CheckResult{
		Status: symmem.Sat,
		Model:  symmem.NewModel(m, m, m, m),
	}, nil
}

// reasonError maps the reason Z3 gives for an unknown result to an error.
func reasonError(reason string) error {
	switch {
	case strings.Contains(reason, "timeout"):
		return symmem.ErrSolverTimeout
	case strings.Contains(reason, "canceled"):
		return symmem.ErrSolverCanceled
	case strings.Contains(reason, "(resource limits reached)"):
		return symmem.ErrSolverResourceLimit
	case strings.Contains(reason, "unknown"):
		return symmem.ErrSolverUnknown
	default:
		return fmt.Errorf("z3: %s", reason)
	}
}

// Context represents a Z3 context object that is used for constructing expressions.
type Context struct {
	raw C.Z3_context
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{raw: raw}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return nil
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// setTimeout limits checks of solver to d.
func (ctx *Context) setTimeout(solver C.Z3_solver, d time.Duration) error {
	params := C.Z3_mk_params(ctx.raw)
	if err := ctx.err("Z3_mk_params"); err != nil {
		return err
	}
	C.Z3_params_inc_ref(ctx.raw, params)
	defer C.Z3_params_dec_ref(ctx.raw, params)

	sym, err := ctx.makeSymbol("timeout")
	if err != nil {
		return err
	}

	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	C.Z3_params_set_uint(ctx.raw, params, sym, C.uint(ms))
	if err := ctx.err("Z3_params_set_uint"); err != nil {
		return err
	}
	C.Z3_solver_set_params(ctx.raw, solver, params)
	return ctx.err("Z3_solver_set_params")
}

func (ctx *Context) makeSymbol(name string) (C.Z3_symbol, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	sym := C.Z3_mk_string_symbol(ctx.raw, cname)
	if err := ctx.err("Z3_mk_string_symbol"); err != nil {
		return nil, err
	}
	return sym, nil
}

func (ctx *Context) makeTrue() (C.Z3_ast, error) {
	ast := C.Z3_mk_true(ctx.raw)
	if err := ctx.err("Z3_mk_true"); err != nil {
		return nil, err
	}
	return ast, nil
}

func (ctx *Context) makeFalse() (C.Z3_ast, error) {
	ast := C.Z3_mk_false(ctx.raw)
	if err := ctx.err("Z3_mk_false"); err != nil {
		return nil, err
	}
	return ast, nil
}

// makeSort returns the Z3 sort of sort. Addresses are 32-bit vectors.
func (ctx *Context) makeSort(sort symmem.Sort) (C.Z3_sort, error) {
	if sort.Width == symmem.WidthBool && !sort.Address {
		t := C.Z3_mk_bool_sort(ctx.raw)
		if err := ctx.err("Z3_mk_bool_sort"); err != nil {
			return nil, err
		}
		return t, nil
	}
	return ctx.makeBVSort(sort.Width)
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	t := C.Z3_mk_bv_sort(ctx.raw, C.uint(width))
	if err := ctx.err("Z3_mk_bv_sort"); err != nil {
		return nil, err
	}
	return t, nil
}

func (ctx *Context) makeArraySort(domain, rng C.Z3_sort) (C.Z3_sort, error) {
	t := C.Z3_mk_array_sort(ctx.raw, domain, rng)
	if err := ctx.err("Z3_mk_array_sort"); err != nil {
		return nil, err
	}
	return t, nil
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	ast := C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t)
	if err := ctx.err("Z3_mk_unsigned_int64"); err != nil {
		return nil, err
	}
	return ast, nil
}

// makeAddress returns the 32-bit vector of a concrete address.
func (ctx *Context) makeAddress(address int64) (C.Z3_ast, error) {
	return ctx.makeUint64(symmem.Width32, uint64(uint32(int32(address))))
}

func (ctx *Context) makeConst(name string, t C.Z3_sort) (C.Z3_ast, error) {
	sym, err := ctx.makeSymbol(name)
	if err != nil {
		return nil, err
	}
	ast := C.Z3_mk_const(ctx.raw, sym, t)
	if err := ctx.err("Z3_mk_const"); err != nil {
		return nil, err
	}
	return ast, nil
}

func (ctx *Context) makeSelect(array, index C.Z3_ast) (C.Z3_ast, error) {
	ast := C.Z3_mk_select(ctx.raw, array, index)
	if err := ctx.err("Z3_mk_select"); err != nil {
		return nil, err
	}
	return ast, nil
}

// Uninterpreted constants. The sort is part of the name so that symbols
// of the same name and different sorts stay distinct.

func (ctx *Context) makeSymbolConst(expr *symmem.ConstExpr) (C.Z3_ast, error) {
	return ctx.makeSortedConst(fmt.Sprintf("%s!%s", expr.Name, expr.Sort), expr.Sort)
}

func (ctx *Context) makeRegisterConst(index int, sort symmem.Sort) (C.Z3_ast, error) {
	return ctx.makeSortedConst(fmt.Sprintf("reg!%d!%s", index, sort), sort)
}

func (ctx *Context) makeMockConst(method string, callIndex int, sort symmem.Sort) (C.Z3_ast, error) {
	return ctx.makeSortedConst(fmt.Sprintf("mock!%s!%d!%s", method, callIndex, sort), sort)
}

func (ctx *Context) makeSortedConst(name string, sort symmem.Sort) (C.Z3_ast, error) {
	t, err := ctx.makeSort(sort)
	if err != nil {
		return nil, err
	}
	return ctx.makeConst(name, t)
}

// makeFieldArray returns the array from input addresses to the initial
// values of field.
func (ctx *Context) makeFieldArray(field string, sort symmem.Sort) (C.Z3_ast, error) {
	domain, err := ctx.makeBVSort(symmem.Width32)
	if err != nil {
		return nil, err
	}
	rng, err := ctx.makeSort(sort)
	if err != nil {
		return nil, err
	}
	t, err := ctx.makeArraySort(domain, rng)
	if err != nil {
		return nil, err
	}
	return ctx.makeConst(fmt.Sprintf("field!%s!%s", field, sort), t)
}

// makeElementArray returns the array from input addresses to the initial
// contents of input arrays of arrayType.
func (ctx *Context) makeElementArray(arrayType string, sort symmem.Sort) (C.Z3_ast, error) {
	domain, err := ctx.makeBVSort(symmem.Width32)
	if err != nil {
		return nil, err
	}
	rng, err := ctx.makeSort(sort)
	if err != nil {
		return nil, err
	}
	inner, err := ctx.makeArraySort(domain, rng)
	if err != nil {
		return nil, err
	}
	t, err := ctx.makeArraySort(domain, inner)
	if err != nil {
		return nil, err
	}
	return ctx.makeConst(fmt.Sprintf("array!%s!%s", arrayType, sort), t)
}

// makeLengthArray returns the array from input addresses to the initial
// lengths of input arrays of arrayType.
func (ctx *Context) makeLengthArray(arrayType string) (C.Z3_ast, error) {
	domain, err := ctx.makeBVSort(symmem.Width32)
	if err != nil {
		return nil, err
	}
	t, err := ctx.makeArraySort(domain, domain)
	if err != nil {
		return nil, err
	}
	return ctx.makeConst(fmt.Sprintf("length!%s", arrayType), t)
}

func (ctx *Context) astToString(ast C.Z3_ast) string {
	return C.GoString(C.Z3_ast_to_string(ctx.raw, ast))
}

func (ctx *Context) modelToString(model C.Z3_model) string {
	return C.GoString(C.Z3_model_to_string(ctx.raw, model))
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Possible error codes.
const (
	ErrorCodeOK = iota
	ErrorCodeSortError
	ErrorCodeIOB
	ErrorCodeInvalidArg
	ErrorCodeParserError
	ErrorCodeNoParser
	ErrorCodeInvalidPattern
	ErrorCodeMemoutFail
	ErrorCodeFileAccessError
	ErrorCodeInternalFatal
	ErrorCodeInvalidUsage
	ErrorCodeDecRefError
	ErrorCodeException
)

// Stats holds counters for a solver.
type Stats struct {
	CheckN    int
	CheckTime time.Duration
}
