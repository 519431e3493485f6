package symmem

import (
	"fmt"

	"github.com/benbjohnson/immutable"
)

// registerFrame is one frame of a RegistersStack. A frame is mutated in
// place only by the stack holding the same ownership token.
type registerFrame struct {
	owner     *Ownership
	registers []Expr
}

// RegistersStack is the stack of register frames of one state.
type RegistersStack struct {
	owner  *Ownership
	frames *immutable.List[*registerFrame]
}

// NewRegistersStack returns an empty stack.
func NewRegistersStack() *RegistersStack {
	return &RegistersStack{owner: NewOwnership(), frames: immutable.NewList[*registerFrame]()}
}

// Depth returns the number of frames.
func (s *RegistersStack) Depth() int { return s.frames.Len() }

// Push adds a frame with args in the first registers followed by locals
// unset registers.
func (s *RegistersStack) Push(args []Expr, locals int) {
	registers := make([]Expr, len(args)+locals)
	copy(registers, args)
	s.frames = s.frames.Append(&registerFrame{owner: s.owner, registers: registers})
}

// Pop removes the top frame.
func (s *RegistersStack) Pop() {
	assert(s.frames.Len() > 0, "pop on empty register stack")
	s.frames = s.frames.Slice(0, s.frames.Len()-1)
}

func (s *RegistersStack) top() *registerFrame {
	assert(s.frames.Len() > 0, "empty register stack")
	return s.frames.Get(s.frames.Len() - 1)
}

// ReadRegister returns the value of register index in the top frame. Unset
// registers read as their initial symbolic value.
func (s *RegistersStack) ReadRegister(index int, sort Sort) Expr {
	f := s.top()
	assert(index >= 0 && index < len(f.registers), "register %d out of range", index)
	if v := f.registers[index]; v != nil {
		return v
	}
	return &RegisterReading{Index: index, Sort: sort}
}

// WriteRegister sets register index of the top frame.
func (s *RegistersStack) WriteRegister(index int, value Expr) {
	f := s.top()
	assert(index >= 0 && index < len(f.registers), "register %d out of range", index)
	if f.owner != s.owner {
		registers := make([]Expr, len(f.registers))
		copy(registers, f.registers)
		f = &registerFrame{owner: s.owner, registers: registers}
		s.frames = s.frames.Set(s.frames.Len()-1, f)
	}
	f.registers[index] = value
}

// Clone returns a copy of the stack. Both stacks receive new ownership
// tokens so neither mutates the shared frames.
func (s *RegistersStack) Clone() *RegistersStack {
	s.owner = NewOwnership()
	return &RegistersStack{owner: NewOwnership(), frames: s.frames}
}

// MockReader resolves the results of uninterpreted calls.
type MockReader interface {
	ReadMock(symbol *MockSymbol) Expr
}

// Mocker hands out the results of uninterpreted calls.
type Mocker struct {
	calls *immutable.Map[string, int]
}

// NewMocker returns a mocker without calls.
func NewMocker() *Mocker {
	return &Mocker{calls: immutable.NewMap[string, int](nil)}
}

// Call returns a fresh symbol for the next result of method.
func (m *Mocker) Call(method string, sort Sort) *MockSymbol {
	n, _ := m.calls.Get(method)
	m.calls = m.calls.Set(method, n+1)
	return &MockSymbol{Method: method, CallIndex: n, Sort: sort}
}

// Calls returns the number of calls to method.
func (m *Mocker) Calls(method string) int {
	n, _ := m.calls.Get(method)
	return n
}

// ReadMock returns symbol itself.
func (m *Mocker) ReadMock(symbol *MockSymbol) Expr { return symbol }

// Clone returns a copy of the mocker.
func (m *Mocker) Clone() *Mocker {
	other := *m
	return &other
}

// LValue is a memory location: one of RegisterLValue, FieldLValue,
// ArrayIndexLValue or ArrayLengthLValue.
type LValue interface {
	lvalue()
	String() string
}

func (RegisterLValue) lvalue()    {}
func (FieldLValue) lvalue()       {}
func (ArrayIndexLValue) lvalue()  {}
func (ArrayLengthLValue) lvalue() {}

// RegisterLValue is a register of the top frame.
type RegisterLValue struct {
	Index int
	Sort  Sort
}

func (lv RegisterLValue) String() string { return fmt.Sprintf("r%d", lv.Index) }

// FieldLValue is a field of an object.
type FieldLValue struct {
	Ref   Expr
	Field string
	Sort  Sort
}

func (lv FieldLValue) String() string { return fmt.Sprintf("%s.%s", lv.Ref, lv.Field) }

// ArrayIndexLValue is an array element.
type ArrayIndexLValue struct {
	Ref       Expr
	Index     Expr
	ArrayType string
	Sort      Sort
}

func (lv ArrayIndexLValue) String() string { return fmt.Sprintf("%s[%s]", lv.Ref, lv.Index) }

// ArrayLengthLValue is the length of an array.
type ArrayLengthLValue struct {
	Ref       Expr
	ArrayType string
}

func (lv ArrayLengthLValue) String() string { return fmt.Sprintf("len(%s)", lv.Ref) }

// Memory is the memory of one state: registers, heap and mocked calls.
type Memory struct {
	Stack  *RegistersStack
	Heap   *Heap
	Mocker *Mocker
}

// NewMemory returns an empty memory allocating addresses from counter.
func NewMemory(counter *AddressCounter) *Memory {
	return &Memory{
		Stack:  NewRegistersStack(),
		Heap:   NewHeap(counter),
		Mocker: NewMocker(),
	}
}

// Read returns the value at lv.
func (m *Memory) Read(lv LValue) Expr {
	switch lv := lv.(type) {
	case RegisterLValue:
		return m.Stack.ReadRegister(lv.Index, lv.Sort)
	case FieldLValue:
		return m.Heap.ReadField(lv.Ref, lv.Field, lv.Sort)
	case ArrayIndexLValue:
		return m.Heap.ReadArrayIndex(lv.Ref, lv.Index, lv.ArrayType, lv.Sort)
	case ArrayLengthLValue:
		return m.Heap.ReadArrayLength(lv.Ref, lv.ArrayType)
	default:
		panic("unreachable")
	}
}

// Write sets lv to value when guard holds. Registers are written unconditionally.
func (m *Memory) Write(lv LValue, value, guard Expr) {
	switch lv := lv.(type) {
	case RegisterLValue:
		m.Stack.WriteRegister(lv.Index, value)
	case FieldLValue:
		m.Heap.WriteField(lv.Ref, lv.Field, lv.Sort, value, guard)
	case ArrayIndexLValue:
		m.Heap.WriteArrayIndex(lv.Ref, lv.Index, lv.ArrayType, lv.Sort, value, guard)
	case ArrayLengthLValue:
		m.Heap.WriteArrayLength(lv.Ref, value, lv.ArrayType, guard)
	default:
		panic("unreachable")
	}
}

// Alloc returns a fresh object reference.
func (m *Memory) Alloc() *ConcreteHeapRef {
	return m.Heap.AllocateConcreteRef()
}

// AllocArray returns a fresh reference to an array of length count.
func (m *Memory) AllocArray(arrayType string, count Expr) *ConcreteHeapRef {
	return m.Heap.AllocateArray(arrayType, count)
}

// AllocArrayInitialized returns a fresh reference to an array holding contents.
func (m *Memory) AllocArrayInitialized(arrayType string, sort Sort, contents []Expr) *ConcreteHeapRef {
	return m.Heap.AllocateArrayInitialized(arrayType, sort, contents)
}

// Memset replaces the contents of the array at ref with contents and sets
// its length to len(contents).
func (m *Memory) Memset(ref Expr, arrayType string, sort Sort, contents []Expr) {
	t := NewBoolConstantExpr(true)
	size := NewSizeExpr(int64(len(contents)))
	if len(contents) > 0 {
		tmp := m.Heap.AllocateArrayInitialized(arrayType, sort, contents)
		m.Heap.Memcpy(tmp, ref, arrayType, sort, NewSizeExpr(0), NewSizeExpr(0), NewSizeExpr(int64(len(contents)-1)), t)
	}
	m.Heap.WriteArrayLength(ref, size, arrayType, t)
}

// Memcpy copies length elements starting at fromSrc in the array at src to
// the array at dst starting at fromDst.
func (m *Memory) Memcpy(src, dst Expr, arrayType string, sort Sort, fromSrc, fromDst, length Expr) {
	toDst := NewBinaryExpr(SUB, NewBinaryExpr(ADD, fromDst, length), NewSizeExpr(1))
	m.Heap.Memcpy(src, dst, arrayType, sort, fromSrc, fromDst, toDst, NewBoolConstantExpr(true))
}

// Clone returns a copy of the memory sharing all contents with m.
func (m *Memory) Clone() *Memory {
	return &Memory{
		Stack:  m.Stack.Clone(),
		Heap:   m.Heap.Clone(),
		Mocker: m.Mocker.Clone(),
	}
}
