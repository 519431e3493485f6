package symmem

import (
	"fmt"
	"sort"
	"strings"
)

// Model is an assignment of values to the symbols of a state. Models are
// read only: the heap of a model answers reads of input objects and
// allocated objects never reach it.
type Model struct {
	Stack   RegisterReader
	Heap    HeapReader
	Mocks   MockReader
	Symbols SymbolReader

	composer *Composer
}

// NewModel returns a model backed by the given readers.
func NewModel(stack RegisterReader, heap HeapReader, mocks MockReader, symbols SymbolReader) *Model {
	return &Model{Stack: stack, Heap: heap, Mocks: mocks, Symbols: symbols}
}

// Eval returns the value of expr under the model. Boolean expressions
// evaluate to constants.
func (m *Model) Eval(expr Expr) Expr {
	if m.composer == nil {
		m.composer = NewComposer(m.Stack, m.Heap, m.Mocks, m.Symbols)
	}
	return m.composer.Compose(expr)
}

// ModelRegisters assigns values to registers by index. Missing registers
// hold the default value.
type ModelRegisters map[int]Expr

func (r ModelRegisters) ReadRegister(index int, sort Sort) Expr {
	if v, ok := r[index]; ok {
		return v
	}
	return DefaultValue(sort)
}

// ModelSymbols assigns values to named constants.
type ModelSymbols map[string]Expr

func (s ModelSymbols) ReadSymbol(symbol *ConstExpr) Expr {
	if v, ok := s[symbol.Name]; ok {
		return v
	}
	return DefaultValue(symbol.Sort)
}

// MockKey identifies one call of an uninterpreted method.
type MockKey struct {
	Method    string
	CallIndex int
}

// ModelMocks assigns values to the results of uninterpreted calls.
type ModelMocks map[MockKey]Expr

func (m ModelMocks) ReadMock(symbol *MockSymbol) Expr {
	if v, ok := m[MockKey{Method: symbol.Method, CallIndex: symbol.CallIndex}]; ok {
		return v
	}
	return DefaultValue(symbol.Sort)
}

// ModelField identifies a field of an input object in a model heap.
type ModelField struct {
	Address int64
	Field   string
}

// ModelElement identifies an element of an input array in a model heap.
type ModelElement struct {
	Address   int64
	ArrayType string
	Index     int64
}

// ModelLength identifies the length of an input array in a model heap.
type ModelLength struct {
	Address   int64
	ArrayType string
}

// HeapModel is the heap of a model: concrete contents of input objects.
// Unassigned locations hold the default value.
type HeapModel struct {
	Fields   map[ModelField]Expr
	Elements map[ModelElement]Expr
	Lengths  map[ModelLength]Expr
}

var _ HeapReader = (*HeapModel)(nil)

// NewHeapModel returns an empty model heap.
func NewHeapModel() *HeapModel {
	return &HeapModel{
		Fields:   make(map[ModelField]Expr),
		Elements: make(map[ModelElement]Expr),
		Lengths:  make(map[ModelLength]Expr),
	}
}

// inputAddress returns the address of ref, which must be a concrete input
// address in a model.
func inputAddress(ref Expr) int64 {
	c, ok := ref.(*ConcreteHeapRef)
	assert(ok, "model heap: non-concrete reference %s", ref)
	assert(c.Address <= 0, "model heap: reference %s is not an input address", ref)
	return c.Address
}

func (h *HeapModel) ReadField(ref Expr, field string, sort Sort) Expr {
	if v, ok := h.Fields[ModelField{Address: inputAddress(ref), Field: field}]; ok {
		return v
	}
	return DefaultValue(sort)
}

func (h *HeapModel) ReadArrayIndex(ref, index Expr, arrayType string, sort Sort) Expr {
	i, ok := index.(*ConstantExpr)
	assert(ok, "model heap: non-concrete index %s", index)
	if v, ok := h.Elements[ModelElement{Address: inputAddress(ref), ArrayType: arrayType, Index: i.Int64()}]; ok {
		return v
	}
	return DefaultValue(sort)
}

func (h *HeapModel) ReadArrayLength(ref Expr, arrayType string) Expr {
	if v, ok := h.Lengths[ModelLength{Address: inputAddress(ref), ArrayType: arrayType}]; ok {
		return v
	}
	return DefaultValue(SizeSort)
}

// String returns the assignments of the model heap in a stable order.
func (h *HeapModel) String() string {
	var lines []string
	for k, v := range h.Fields {
		lines = append(lines, fmt.Sprintf("%d.%s = %s", k.Address, k.Field, v))
	}
	for k, v := range h.Elements {
		lines = append(lines, fmt.Sprintf("%d:%s[%d] = %s", k.Address, k.ArrayType, k.Index, v))
	}
	for k, v := range h.Lengths {
		lines = append(lines, fmt.Sprintf("len(%d:%s) = %s", k.Address, k.ArrayType, v))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
