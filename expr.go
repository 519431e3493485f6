package symmem

import (
	"fmt"
)

// Expr represents a symbolic expression.
type Expr interface {
	String() string
	expr()
}

func (*BinaryExpr) expr()              {}
func (*CastExpr) expr()                {}
func (*ConcreteHeapRef) expr()         {}
func (*ConstantExpr) expr()            {}
func (*ConstExpr) expr()               {}
func (*IteExpr) expr()                 {}
func (*NotExpr) expr()                 {}
func (*RegisterReading) expr()         {}
func (*MockSymbol) expr()              {}
func (*InputFieldReading) expr()       {}
func (*AllocatedArrayReading) expr()   {}
func (*InputArrayReading) expr()       {}
func (*InputArrayLengthReading) expr() {}

// Sort describes the kind of values an expression evaluates to.
// Address sorts are bit vectors that are never mixed with arithmetic.
type Sort struct {
	Width   uint
	Address bool
}

// Standard sorts.
var (
	BoolSort    = Sort{Width: WidthBool}
	SizeSort    = Sort{Width: Width32}
	AddressSort = Sort{Width: Width32, Address: true}
)

// BitVecSort returns the non-address sort of the given width.
func BitVecSort(width uint) Sort {
	return Sort{Width: width}
}

// String returns the string representation of the sort.
func (s Sort) String() string {
	if s.Address {
		return "addr"
	} else if s.Width == WidthBool {
		return "bool"
	}
	return fmt.Sprintf("bv%d", s.Width)
}

// ExprSort returns the sort of the expression.
func ExprSort(expr Expr) Sort {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return Sort{Width: expr.Width}
	case *BinaryExpr:
		if expr.Op.IsCompare() {
			return BoolSort
		}
		return ExprSort(expr.LHS)
	case *NotExpr:
		return ExprSort(expr.Expr)
	case *IteExpr:
		return ExprSort(expr.Then)
	case *CastExpr:
		return Sort{Width: expr.Width}
	case *ConcreteHeapRef:
		return AddressSort
	case *ConstExpr:
		return expr.Sort
	case *RegisterReading:
		return expr.Sort
	case *MockSymbol:
		return expr.Sort
	case *InputFieldReading:
		return expr.Collection.Sort()
	case *AllocatedArrayReading:
		return expr.Collection.Sort()
	case *InputArrayReading:
		return expr.Collection.Sort()
	case *InputArrayLengthReading:
		return SizeSort
	default:
		panic("unreachable")
	}
}

// ExprWidth returns the bit width of the expression.
func ExprWidth(expr Expr) uint {
	return ExprSort(expr).Width
}

// IsAddress returns true if expr is of address sort.
func IsAddress(expr Expr) bool {
	return ExprSort(expr).Address
}

// BinaryOp represents a binary expression operations.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	MUL
	AND
	OR
	XOR
	arithmetic_op_end

	compare_op_begin
	EQ
	NE
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
	compare_op_end
)

var binaryOps = [...]string{
	ADD: "add",
	SUB: "sub",
	MUL: "mul",
	AND: "and",
	OR:  "or",
	XOR: "xor",
	EQ:  "eq",
	NE:  "ne",
	ULT: "ult",
	ULE: "ule",
	UGT: "ugt",
	UGE: "uge",
	SLT: "slt",
	SLE: "sle",
	SGT: "sgt",
	SGE: "sge",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if the operation is an arithmetic operation.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if the operation is a comparison operation.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// BinaryExpr represents an operation on two expressions.
// AND, OR and XOR on boolean operands are the logical connectives.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns a simplified expression applying op to lhs & rhs.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if op == EQ && IsAddress(lhs) {
		return NewHeapRefEq(lhs, rhs)
	}
	assert(ExprWidth(lhs) == ExprWidth(rhs), "binary expr width mismatch: op=%s %s %s", op, lhs, rhs)

	switch op {
	case ADD:
		return newAddExpr(lhs, rhs)
	case SUB:
		return newSubExpr(lhs, rhs)
	case MUL:
		return newMulExpr(lhs, rhs)
	case AND:
		return newAndExpr(lhs, rhs)
	case OR:
		return newOrExpr(lhs, rhs)
	case XOR:
		return newXorExpr(lhs, rhs)
	case EQ:
		return newEqExpr(lhs, rhs)
	case NE:
		return NewNotExpr(NewBinaryExpr(EQ, lhs, rhs))
	case ULT, SLT:
		return newLtExpr(op, lhs, rhs)
	case ULE, SLE:
		return newLeExpr(op, lhs, rhs)
	case UGT:
		return newLtExpr(ULT, rhs, lhs)
	case UGE:
		return newLeExpr(ULE, rhs, lhs)
	case SGT:
		return newLtExpr(SLT, rhs, lhs)
	case SGE:
		return newLeExpr(SLE, rhs, lhs)
	default:
		panic("unreachable")
	}
}

// NewAndExpr returns the conjunction of two boolean expressions.
func NewAndExpr(lhs, rhs Expr) Expr {
	return NewBinaryExpr(AND, lhs, rhs)
}

// NewOrExpr returns the disjunction of two boolean expressions.
func NewOrExpr(lhs, rhs Expr) Expr {
	return NewBinaryExpr(OR, lhs, rhs)
}

// NewEqExpr returns the equality of two expressions of the same sort.
func NewEqExpr(lhs, rhs Expr) Expr {
	return NewBinaryExpr(EQ, lhs, rhs)
}

// NewAndExprs returns the conjunction of exprs. Returns true if exprs is empty.
func NewAndExprs(exprs ...Expr) Expr {
	var result Expr = NewBoolConstantExpr(true)
	for _, expr := range exprs {
		result = NewAndExpr(result, expr)
	}
	return result
}

// NewOrExprs returns the disjunction of exprs. Returns false if exprs is empty.
func NewOrExprs(exprs ...Expr) Expr {
	var result Expr = NewBoolConstantExpr(false)
	for _, expr := range exprs {
		result = NewOrExpr(result, expr)
	}
	return result
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// swapConstantLeft moves a constant operand to the left hand side.
func swapConstantLeft(lhs, rhs Expr) (Expr, Expr) {
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		return rhs, lhs
	}
	return lhs, rhs
}

func newAddExpr(lhs, rhs Expr) Expr {
	lhs, rhs = swapConstantLeft(lhs, rhs)
	if ExprWidth(lhs) == WidthBool {
		return newXorExpr(lhs, rhs)
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if c, ok := rhs.(*ConstantExpr); ok {
			return lhs.Add(c)
		} else if lhs.Value == 0 {
			return rhs
		}

		// X + (Y + z) == (X+Y) + z
		if rhs, ok := rhs.(*BinaryExpr); ok && rhs.Op == ADD {
			if k, ok := rhs.LHS.(*ConstantExpr); ok {
				return NewBinaryExpr(ADD, lhs.Add(k), rhs.RHS)
			}
		}
	}
	return &BinaryExpr{Op: ADD, LHS: lhs, RHS: rhs}
}

func newSubExpr(lhs, rhs Expr) Expr {
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}

	if ExprWidth(lhs) == WidthBool {
		return newXorExpr(lhs, rhs)
	}

	if rhs, ok := rhs.(*ConstantExpr); ok {
		if lhs, ok := lhs.(*ConstantExpr); ok {
			return lhs.Sub(rhs)
		}
		// x - Y == -Y + x
		return NewBinaryExpr(ADD, NewConstantExpr(0, rhs.Width).Sub(rhs), lhs)
	}

	// (X + y) - y == X
	if lhs, ok := lhs.(*BinaryExpr); ok && lhs.Op == ADD && CompareExpr(lhs.RHS, rhs) == 0 {
		return lhs.LHS
	}
	return &BinaryExpr{Op: SUB, LHS: lhs, RHS: rhs}
}

func newMulExpr(lhs, rhs Expr) Expr {
	lhs, rhs = swapConstantLeft(lhs, rhs)
	if ExprWidth(lhs) == WidthBool {
		return newAndExpr(lhs, rhs)
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if c, ok := rhs.(*ConstantExpr); ok {
			return lhs.Mul(c)
		} else if lhs.Value == 1 {
			return rhs
		} else if lhs.Value == 0 {
			return lhs
		}
	}
	return &BinaryExpr{Op: MUL, LHS: lhs, RHS: rhs}
}

func newAndExpr(lhs, rhs Expr) Expr {
	lhs, rhs = swapConstantLeft(lhs, rhs)
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if c, ok := rhs.(*ConstantExpr); ok {
			return lhs.And(c)
		} else if lhs.IsAllOnes() {
			return rhs
		} else if lhs.Value == 0 {
			return lhs
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	} else if ExprWidth(lhs) == WidthBool && isNegationOf(lhs, rhs) {
		return NewBoolConstantExpr(false)
	}
	return &BinaryExpr{Op: AND, LHS: lhs, RHS: rhs}
}

func newOrExpr(lhs, rhs Expr) Expr {
	lhs, rhs = swapConstantLeft(lhs, rhs)
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if c, ok := rhs.(*ConstantExpr); ok {
			return lhs.Or(c)
		} else if lhs.IsAllOnes() {
			return lhs
		} else if lhs.Value == 0 {
			return rhs
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	} else if ExprWidth(lhs) == WidthBool && isNegationOf(lhs, rhs) {
		return NewBoolConstantExpr(true)
	}
	return &BinaryExpr{Op: OR, LHS: lhs, RHS: rhs}
}

func newXorExpr(lhs, rhs Expr) Expr {
	lhs, rhs = swapConstantLeft(lhs, rhs)
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if c, ok := rhs.(*ConstantExpr); ok {
			return lhs.Xor(c)
		} else if lhs.Value == 0 {
			return rhs
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}
	return &BinaryExpr{Op: XOR, LHS: lhs, RHS: rhs}
}

func newEqExpr(lhs, rhs Expr) Expr {
	lhs, rhs = swapConstantLeft(lhs, rhs)
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Eq(rhs)
		}

		if lhs.Width == WidthBool {
			if lhs.IsTrue() { // true == x => x
				return rhs
			}
			return NewNotExpr(rhs) // false == x => !x
		}

		// X == Y + z => X - Y == z
		if rhs, ok := rhs.(*BinaryExpr); ok && rhs.Op == ADD {
			if k, ok := rhs.LHS.(*ConstantExpr); ok {
				return NewBinaryExpr(EQ, lhs.Sub(k), rhs.RHS)
			}
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(true)
	}
	return &BinaryExpr{Op: EQ, LHS: lhs, RHS: rhs}
}

func newLtExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			if op == ULT {
				return lhs.Ult(rhs)
			}
			return lhs.Slt(rhs)
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(false)
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

func newLeExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			if op == ULE {
				return lhs.Ule(rhs)
			}
			return lhs.Sle(rhs)
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewBoolConstantExpr(true)
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// isNegationOf returns true if one expression is the bitwise not of the other.
func isNegationOf(a, b Expr) bool {
	if a, ok := a.(*NotExpr); ok && CompareExpr(a.Expr, b) == 0 {
		return true
	}
	if b, ok := b.(*NotExpr); ok && CompareExpr(b.Expr, a) == 0 {
		return true
	}
	return false
}

// NotExpr represents a bitwise not of an expression. On booleans it is the logical negation.
type NotExpr struct {
	Expr Expr
}

// NewNotExpr returns the bitwise not of expr.
func NewNotExpr(expr Expr) Expr {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Not()
	case *NotExpr:
		return expr.Expr
	}
	return &NotExpr{Expr: expr}
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return fmt.Sprintf("(not %s)", e.Expr)
}

// IteExpr represents an if-then-else expression.
type IteExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// NewIteExpr returns a simplified if-then-else expression.
func NewIteExpr(cond, then, els Expr) Expr {
	assert(ExprWidth(cond) == WidthBool, "ite condition must be boolean: %s", cond)

	if c, ok := cond.(*ConstantExpr); ok {
		if c.IsTrue() {
			return then
		}
		return els
	} else if CompareExpr(then, els) == 0 {
		return then
	}

	// Strip a negated condition.
	if c, ok := cond.(*NotExpr); ok {
		return NewIteExpr(c.Expr, els, then)
	}

	// Collapse nested branches on the same condition.
	if t, ok := then.(*IteExpr); ok && CompareExpr(t.Cond, cond) == 0 {
		return NewIteExpr(cond, t.Then, els)
	}
	if e, ok := els.(*IteExpr); ok && CompareExpr(e.Cond, cond) == 0 {
		return NewIteExpr(cond, then, e.Else)
	}

	if ExprWidth(then) == WidthBool && !IsAddress(then) {
		switch {
		case IsConstantTrue(then) && IsConstantFalse(els):
			return cond
		case IsConstantFalse(then) && IsConstantTrue(els):
			return NewNotExpr(cond)
		case IsConstantTrue(then):
			return NewOrExpr(cond, els)
		case IsConstantFalse(els):
			return NewAndExpr(cond, then)
		}
	}
	return &IteExpr{Cond: cond, Then: then, Else: els}
}

// String returns the string representation of the expression.
func (e *IteExpr) String() string {
	return fmt.Sprintf("(ite %s %s %s)", e.Cond, e.Then, e.Else)
}

// CastExpr represents an expression that casts an expression to a new width.
// Casting to a smaller width truncates.
type CastExpr struct {
	Src    Expr
	Width  uint
	Signed bool
}

// NewCastExpr returns a new instance of CastExpr.
func NewCastExpr(src Expr, width uint, signed bool) Expr {
	if ExprWidth(src) == width {
		return src
	}
	if src, ok := src.(*ConstantExpr); ok {
		if signed {
			return src.SExt(width)
		}
		return src.ZExt(width)
	}
	return &CastExpr{Src: src, Width: width, Signed: signed}
}

// String returns the string representation of the expression.
func (e *CastExpr) String() string {
	if e.Signed {
		return fmt.Sprintf("(sext %s %d)", e.Src, e.Width)
	}
	return fmt.Sprintf("(zext %s %d)", e.Src, e.Width)
}

// ConstExpr represents a named uninterpreted constant.
type ConstExpr struct {
	Name string
	Sort Sort
}

// NewConstExpr returns a new named constant.
func NewConstExpr(name string, sort Sort) *ConstExpr {
	return &ConstExpr{Name: name, Sort: sort}
}

// String returns the string representation of the expression.
func (e *ConstExpr) String() string {
	return e.Name
}

// RegisterReading represents the initial value of a register of the entry frame.
type RegisterReading struct {
	Index int
	Sort  Sort
}

// String returns the string representation of the expression.
func (e *RegisterReading) String() string {
	return fmt.Sprintf("(reg %d)", e.Index)
}

// MockSymbol represents the result of an uninterpreted call.
type MockSymbol struct {
	Method    string
	CallIndex int
	Sort      Sort
}

// String returns the string representation of the expression.
func (e *MockSymbol) String() string {
	return fmt.Sprintf("(mock %s#%d)", e.Method, e.CallIndex)
}

// ConstantExpr represents a fixed width bit vector.
type ConstantExpr struct {
	Value uint64
	Width uint
}

// NewConstantExpr returns a new instance of ConstantExpr.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	return &ConstantExpr{Value: value & bitmask(width), Width: width}
}

// NewIntExpr returns a constant holding the two's complement of value.
func NewIntExpr(value int64, width uint) *ConstantExpr {
	return NewConstantExpr(uint64(value), width)
}

// NewSizeExpr returns a constant of the size sort.
func NewSizeExpr(value int64) *ConstantExpr {
	return NewIntExpr(value, SizeSort.Width)
}

// NewBoolConstantExpr is an ease of use function for creating constant boolean expressions.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return &ConstantExpr{Value: 1, Width: WidthBool}
	}
	return &ConstantExpr{Value: 0, Width: WidthBool}
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	if e.Width == WidthBool {
		if e.Value != 0 {
			return "true"
		}
		return "false"
	}
	return fmt.Sprintf("(const %d %d)", e.Int64(), e.Width)
}

// Int64 returns the value interpreted as a signed integer.
func (e *ConstantExpr) Int64() int64 {
	shift := 64 - e.Width
	return int64(e.Value<<shift) >> shift
}

// IsTrue returns true if this is a boolean true expression.
func (e *ConstantExpr) IsTrue() bool {
	return e.Width == WidthBool && e.Value != 0
}

// IsFalse returns true if this is a boolean false expression.
func (e *ConstantExpr) IsFalse() bool {
	return e.Width == WidthBool && e.Value == 0
}

// IsAllOnes returns true if all bits in the value are one.
func (e *ConstantExpr) IsAllOnes() bool {
	return e.Value == bitmask(e.Width)
}

func (e *ConstantExpr) checkWidth(op string, other *ConstantExpr) {
	assert(e.Width == other.Width, "%s: width mismatch: %d != %d", op, e.Width, other.Width)
}

// Add returns the sum of e and other.
func (e *ConstantExpr) Add(other *ConstantExpr) *ConstantExpr {
	e.checkWidth("add", other)
	return NewConstantExpr(e.Value+other.Value, e.Width)
}

// Sub returns the difference of e and other.
func (e *ConstantExpr) Sub(other *ConstantExpr) *ConstantExpr {
	e.checkWidth("sub", other)
	return NewConstantExpr(e.Value-other.Value, e.Width)
}

// Mul returns the product of e and other.
func (e *ConstantExpr) Mul(other *ConstantExpr) *ConstantExpr {
	e.checkWidth("mul", other)
	return NewConstantExpr(e.Value*other.Value, e.Width)
}

// And returns the bitwise AND of e and other.
func (e *ConstantExpr) And(other *ConstantExpr) *ConstantExpr {
	e.checkWidth("and", other)
	return NewConstantExpr(e.Value&other.Value, e.Width)
}

// Or returns the bitwise OR of e and other.
func (e *ConstantExpr) Or(other *ConstantExpr) *ConstantExpr {
	e.checkWidth("or", other)
	return NewConstantExpr(e.Value|other.Value, e.Width)
}

// Xor returns the bitwise XOR of e and other.
func (e *ConstantExpr) Xor(other *ConstantExpr) *ConstantExpr {
	e.checkWidth("xor", other)
	return NewConstantExpr(e.Value^other.Value, e.Width)
}

// Not returns the bitwise NOT of the expression.
func (e *ConstantExpr) Not() *ConstantExpr {
	return NewConstantExpr(^e.Value, e.Width)
}

// Eq returns the equality of e and other.
func (e *ConstantExpr) Eq(other *ConstantExpr) *ConstantExpr {
	e.checkWidth("eq", other)
	return NewBoolConstantExpr(e.Value == other.Value)
}

// Ult returns the unsigned less than comparison of e to other.
func (e *ConstantExpr) Ult(other *ConstantExpr) *ConstantExpr {
	e.checkWidth("ult", other)
	return NewBoolConstantExpr(e.Value < other.Value)
}

// Ule returns the unsigned less than or equal to comparison of e to other.
func (e *ConstantExpr) Ule(other *ConstantExpr) *ConstantExpr {
	e.checkWidth("ule", other)
	return NewBoolConstantExpr(e.Value <= other.Value)
}

// Slt returns the signed less than comparison of e to other.
func (e *ConstantExpr) Slt(other *ConstantExpr) *ConstantExpr {
	e.checkWidth("slt", other)
	return NewBoolConstantExpr(e.Int64() < other.Int64())
}

// Sle returns the signed less than or equal to comparison of e to other.
func (e *ConstantExpr) Sle(other *ConstantExpr) *ConstantExpr {
	e.checkWidth("sle", other)
	return NewBoolConstantExpr(e.Int64() <= other.Int64())
}

// ZExt returns the zero-extension or truncation of e to a new width.
func (e *ConstantExpr) ZExt(width uint) *ConstantExpr {
	if e.Width == width {
		return e
	}
	return NewConstantExpr(e.Value, width)
}

// SExt returns the sign-extension or truncation of e to a new width.
func (e *ConstantExpr) SExt(width uint) *ConstantExpr {
	if e.Width == width {
		return e
	}
	return NewIntExpr(e.Int64(), width)
}

func bitmask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (1 << width) - 1
}

// IsConstantExpr returns true if expr is an instance of ConstantExpr.
func IsConstantExpr(expr Expr) bool {
	_, ok := expr.(*ConstantExpr)
	return ok
}

// IsConstantTrue returns true if expr is an instance of ConstantExpr and is true.
func IsConstantTrue(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsTrue()
}

// IsConstantFalse returns true if expr is an instance of ConstantExpr and is false.
func IsConstantFalse(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsFalse()
}

// DefaultValue returns the value of uninitialized memory of the given sort.
func DefaultValue(sort Sort) Expr {
	if sort.Address {
		return NullRef()
	}
	return NewConstantExpr(0, sort.Width)
}

// CompareExpr returns an integer comparing two expressions structurally.
// Readings of different collections are ordered by creation.
func CompareExpr(a, b Expr) int {
	if a == b {
		return 0
	}

	// Sort by expression type first.
	if ak, bk := exprKind(a), exprKind(b); ak < bk {
		return -1
	} else if ak > bk {
		return 1
	}

	switch a := a.(type) {
	case *ConstantExpr:
		return compareConstantExpr(a, b.(*ConstantExpr))
	case *ConcreteHeapRef:
		return compareInt64(a.Address, b.(*ConcreteHeapRef).Address)
	case *ConstExpr:
		return compareConstExpr(a, b.(*ConstExpr))
	case *RegisterReading:
		return compareRegisterReading(a, b.(*RegisterReading))
	case *MockSymbol:
		return compareMockSymbol(a, b.(*MockSymbol))
	case *NotExpr:
		return CompareExpr(a.Expr, b.(*NotExpr).Expr)
	case *CastExpr:
		return compareCastExpr(a, b.(*CastExpr))
	case *BinaryExpr:
		return compareBinaryExpr(a, b.(*BinaryExpr))
	case *IteExpr:
		return compareIteExpr(a, b.(*IteExpr))
	case *InputFieldReading:
		b := b.(*InputFieldReading)
		if cmp := compareUint64(a.Collection.serial, b.Collection.serial); cmp != 0 {
			return cmp
		}
		return CompareExpr(a.Ref, b.Ref)
	case *AllocatedArrayReading:
		b := b.(*AllocatedArrayReading)
		if cmp := compareUint64(a.Collection.serial, b.Collection.serial); cmp != 0 {
			return cmp
		}
		return CompareExpr(a.Index, b.Index)
	case *InputArrayReading:
		b := b.(*InputArrayReading)
		if cmp := compareUint64(a.Collection.serial, b.Collection.serial); cmp != 0 {
			return cmp
		} else if cmp := CompareExpr(a.Ref, b.Ref); cmp != 0 {
			return cmp
		}
		return CompareExpr(a.Index, b.Index)
	case *InputArrayLengthReading:
		b := b.(*InputArrayLengthReading)
		if cmp := compareUint64(a.Collection.serial, b.Collection.serial); cmp != 0 {
			return cmp
		}
		return CompareExpr(a.Ref, b.Ref)
	default:
		panic("unreachable")
	}
}

func compareConstantExpr(a, b *ConstantExpr) int {
	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	return compareUint64(a.Value, b.Value)
}

func compareSort(a, b Sort) int {
	if a.Address != b.Address {
		if !a.Address {
			return -1
		}
		return 1
	}
	return compareUint64(uint64(a.Width), uint64(b.Width))
}

func compareConstExpr(a, b *ConstExpr) int {
	if a.Name < b.Name {
		return -1
	} else if a.Name > b.Name {
		return 1
	}
	return compareSort(a.Sort, b.Sort)
}

func compareRegisterReading(a, b *RegisterReading) int {
	if cmp := compareInt64(int64(a.Index), int64(b.Index)); cmp != 0 {
		return cmp
	}
	return compareSort(a.Sort, b.Sort)
}

func compareMockSymbol(a, b *MockSymbol) int {
	if a.Method < b.Method {
		return -1
	} else if a.Method > b.Method {
		return 1
	}
	if cmp := compareInt64(int64(a.CallIndex), int64(b.CallIndex)); cmp != 0 {
		return cmp
	}
	return compareSort(a.Sort, b.Sort)
}

func compareCastExpr(a, b *CastExpr) int {
	if a.Signed && !b.Signed {
		return -1
	} else if !a.Signed && b.Signed {
		return 1
	}

	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	return CompareExpr(a.Src, b.Src)
}

func compareBinaryExpr(a, b *BinaryExpr) int {
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}
	if cmp := CompareExpr(a.LHS, b.LHS); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.RHS, b.RHS)
}

func compareIteExpr(a, b *IteExpr) int {
	if cmp := CompareExpr(a.Cond, b.Cond); cmp != 0 {
		return cmp
	} else if cmp := CompareExpr(a.Then, b.Then); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.Else, b.Else)
}

func compareInt64(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareUint64(a, b uint64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// exprKind returns a numeric value for the type of expression.
// Only used internally for equality checks and sorting.
func exprKind(expr Expr) int {
	switch expr.(type) {
	case *ConstantExpr:
		return 1
	case *ConcreteHeapRef:
		return 2
	case *ConstExpr:
		return 3
	case *RegisterReading:
		return 4
	case *MockSymbol:
		return 5
	case *NotExpr:
		return 6
	case *CastExpr:
		return 7
	case *BinaryExpr:
		return 8
	case *IteExpr:
		return 9
	case *InputFieldReading:
		return 10
	case *AllocatedArrayReading:
		return 11
	case *InputArrayReading:
		return 12
	case *InputArrayLengthReading:
		return 13
	default:
		panic("unreachable")
	}
}

// exprComparer implements immutable.Comparer for expressions.
type exprComparer struct{}

func (exprComparer) Compare(a, b Expr) int { return CompareExpr(a, b) }

// ExprVisitor represents a visitor that can be passed to WalkExpr().
type ExprVisitor interface {
	// Executed for every visited node. Return nil to skip the children.
	Visit(expr Expr) ExprVisitor
}

// WalkExpr traverses expr in depth-first order. Readings visit their keys
// but not the writes of their collection.
func WalkExpr(v ExprVisitor, expr Expr) {
	if v = v.Visit(expr); v == nil {
		return
	}

	switch expr := expr.(type) {
	case *BinaryExpr:
		WalkExpr(v, expr.LHS)
		WalkExpr(v, expr.RHS)
	case *CastExpr:
		WalkExpr(v, expr.Src)
	case *NotExpr:
		WalkExpr(v, expr.Expr)
	case *IteExpr:
		WalkExpr(v, expr.Cond)
		WalkExpr(v, expr.Then)
		WalkExpr(v, expr.Else)
	case *InputFieldReading:
		WalkExpr(v, expr.Ref)
	case *AllocatedArrayReading:
		WalkExpr(v, expr.Index)
	case *InputArrayReading:
		WalkExpr(v, expr.Ref)
		WalkExpr(v, expr.Index)
	case *InputArrayLengthReading:
		WalkExpr(v, expr.Ref)
	case *ConstantExpr, *ConcreteHeapRef, *ConstExpr, *RegisterReading, *MockSymbol:
		// nop
	default:
		panic("unreachable")
	}
}

// ExprVisitorFunc adapts a function to the ExprVisitor interface.
type ExprVisitorFunc func(expr Expr) bool

// Visit calls fn and continues into the children if it returns true.
func (fn ExprVisitorFunc) Visit(expr Expr) ExprVisitor {
	if fn(expr) {
		return fn
	}
	return nil
}
