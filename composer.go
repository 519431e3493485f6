package symmem

// RegisterReader resolves the initial values of registers.
type RegisterReader interface {
	ReadRegister(index int, sort Sort) Expr
}

// SymbolReader resolves named constants.
type SymbolReader interface {
	ReadSymbol(symbol *ConstExpr) Expr
}

// Composer substitutes register readings, heap readings, mock symbols and
// named constants with their values in another context: a model, or the
// memory of a calling frame. A nil reader leaves its symbols unchanged.
//
// Results are memoized by expression identity, so a composer must not be
// reused after the context it reads from changes.
type Composer struct {
	Stack   RegisterReader
	Heap    HeapReader
	Mocks   MockReader
	Symbols SymbolReader

	memo map[Expr]Expr
}

// NewComposer returns a composer reading from the given context.
func NewComposer(stack RegisterReader, heap HeapReader, mocks MockReader, symbols SymbolReader) *Composer {
	return &Composer{
		Stack:   stack,
		Heap:    heap,
		Mocks:   mocks,
		Symbols: symbols,
		memo:    make(map[Expr]Expr),
	}
}

// NewMemoryComposer returns a composer that expresses values of a callee
// frame in terms of the caller's memory.
func NewMemoryComposer(m *Memory) *Composer {
	return NewComposer(m.Stack, m.Heap, m.Mocker, nil)
}

// Compose returns expr with every symbol substituted. Expressions are
// traversed with an explicit stack so deep terms do not exhaust the
// goroutine stack.
func (c *Composer) Compose(expr Expr) Expr {
	if c.memo == nil {
		c.memo = make(map[Expr]Expr)
	}
	if v, ok := c.memo[expr]; ok {
		return v
	}

	type item struct {
		expr    Expr
		visited bool
	}
	stack := []item{{expr: expr}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if _, ok := c.memo[top.expr]; ok {
			stack = stack[:len(stack)-1]
			continue
		}

		// Visit children first, then rebuild from their composed values.
		if !top.visited {
			top.visited = true
			for _, child := range children(top.expr) {
				if _, ok := c.memo[child]; !ok {
					stack = append(stack, item{expr: child})
				}
			}
			continue
		}

		e := top.expr
		stack = stack[:len(stack)-1]
		c.memo[e] = c.rebuild(e)
	}
	return c.memo[expr]
}

// children returns the direct subexpressions of expr that are composed.
func children(expr Expr) []Expr {
	switch expr := expr.(type) {
	case *BinaryExpr:
		return []Expr{expr.LHS, expr.RHS}
	case *NotExpr:
		return []Expr{expr.Expr}
	case *IteExpr:
		return []Expr{expr.Cond, expr.Then, expr.Else}
	case *CastExpr:
		return []Expr{expr.Src}
	case *InputFieldReading:
		return []Expr{expr.Ref}
	case *AllocatedArrayReading:
		return []Expr{expr.Index}
	case *InputArrayReading:
		return []Expr{expr.Ref, expr.Index}
	case *InputArrayLengthReading:
		return []Expr{expr.Ref}
	default:
		return nil
	}
}

// rebuild composes expr whose children are already memoized.
func (c *Composer) rebuild(expr Expr) Expr {
	switch expr := expr.(type) {
	case *ConstantExpr, *ConcreteHeapRef:
		return expr
	case *ConstExpr:
		if c.Symbols == nil {
			return expr
		}
		return c.Symbols.ReadSymbol(expr)
	case *RegisterReading:
		if c.Stack == nil {
			return expr
		}
		return c.Stack.ReadRegister(expr.Index, expr.Sort)
	case *MockSymbol:
		if c.Mocks == nil {
			return expr
		}
		return c.Mocks.ReadMock(expr)
	case *BinaryExpr:
		return NewBinaryExpr(expr.Op, c.memo[expr.LHS], c.memo[expr.RHS])
	case *NotExpr:
		return NewNotExpr(c.memo[expr.Expr])
	case *IteExpr:
		return NewIteExpr(c.memo[expr.Cond], c.memo[expr.Then], c.memo[expr.Else])
	case *CastExpr:
		return NewCastExpr(c.memo[expr.Src], expr.Width, expr.Signed)
	case *InputFieldReading:
		c.requireHeap(expr)
		return expr.Collection.composedRead(c.memo[expr.Ref], c)
	case *AllocatedArrayReading:
		return expr.Collection.composedRead(c.memo[expr.Index], c)
	case *InputArrayReading:
		c.requireHeap(expr)
		return expr.Collection.composedRead(ArrayIndex{Ref: c.memo[expr.Ref], Index: c.memo[expr.Index]}, c)
	case *InputArrayLengthReading:
		c.requireHeap(expr)
		return expr.Collection.composedRead(c.memo[expr.Ref], c)
	default:
		panic("unreachable")
	}
}

func (c *Composer) requireHeap(expr Expr) {
	assert(c.Heap != nil, "composer without heap cannot compose %s", expr)
}
