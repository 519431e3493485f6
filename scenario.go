package symmem

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Scenario is a straight-line program with labeled jumps that drives states
// through memory operations and forks.
type Scenario struct {
	Name         string        `yaml:"name"`
	Inputs       []Input       `yaml:"inputs"`
	Instructions []Instruction `yaml:"instructions"`
}

// Input is a scenario argument. Inputs are held in registers of the entry
// frame and start out unconstrained.
type Input struct {
	Name string `yaml:"name"`
	Sort string `yaml:"sort"`
}

// Instruction is a single scenario step. Operands are written in a small
// prefix expression language, e.g. "(add i 1)" or "(slt x len)".
type Instruction struct {
	Label string `yaml:"label,omitempty"`
	Op    string `yaml:"op"`

	Dst    string   `yaml:"dst,omitempty"`
	Ref    string   `yaml:"ref,omitempty"`
	Src    string   `yaml:"src,omitempty"`
	Field  string   `yaml:"field,omitempty"`
	Type   string   `yaml:"type,omitempty"`
	Sort   string   `yaml:"sort,omitempty"`
	Method string   `yaml:"method,omitempty"`
	Index  string   `yaml:"index,omitempty"`
	From   string   `yaml:"from,omitempty"`
	To     string   `yaml:"to,omitempty"`
	Length string   `yaml:"length,omitempty"`
	Value  string   `yaml:"value,omitempty"`
	Values []string `yaml:"values,omitempty"`
	Cond   string   `yaml:"cond,omitempty"`
	Then   string   `yaml:"then,omitempty"`
	Else   string   `yaml:"else,omitempty"`
	Reason string   `yaml:"reason,omitempty"`
}

// Instruction opcodes.
const (
	OpLet        = "let"
	OpSymbolic   = "symbolic"
	OpMock       = "mock"
	OpAlloc      = "alloc"
	OpAllocArray = "alloc-array"
	OpReadField  = "read-field"
	OpWriteField = "write-field"
	OpReadIndex  = "read-index"
	OpWriteIndex = "write-index"
	OpLength     = "length"
	OpMemcpy     = "memcpy"
	OpMemset     = "memset"
	OpBranch     = "branch"
	OpAssume     = "assume"
	OpAssert     = "assert"
	OpJump       = "jump"
	OpHalt       = "halt"
)

// Validate checks that the scenario is well formed: known opcodes, unique
// labels, existing jump targets and parseable operands.
func (s *Scenario) Validate() error {
	if len(s.Instructions) == 0 {
		return errors.New("scenario has no instructions")
	}

	names := make(map[string]struct{})
	for _, in := range s.Inputs {
		if in.Name == "" {
			return errors.New("input name required")
		} else if _, ok := names[in.Name]; ok {
			return fmt.Errorf("duplicate input: %q", in.Name)
		} else if _, err := ParseSort(in.Sort); err != nil {
			return fmt.Errorf("input %q: %w", in.Name, err)
		}
		names[in.Name] = struct{}{}
	}

	labels, err := s.labels()
	if err != nil {
		return err
	}

	for i, ins := range s.Instructions {
		if err := ins.validate(labels); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", i, ins.Op, err)
		}
	}
	return nil
}

// labels returns the instruction index of every label.
func (s *Scenario) labels() (map[string]int, error) {
	m := make(map[string]int)
	for i, ins := range s.Instructions {
		if ins.Label == "" {
			continue
		} else if _, ok := m[ins.Label]; ok {
			return nil, fmt.Errorf("duplicate label: %q", ins.Label)
		}
		m[ins.Label] = i
	}
	return m, nil
}

func (ins *Instruction) validate(labels map[string]int) error {
	var required, operands []string
	switch ins.Op {
	case OpLet:
		required, operands = []string{ins.Dst, ins.Value}, []string{ins.Value}
	case OpSymbolic, OpAlloc:
		required = []string{ins.Dst}
	case OpMock:
		required = []string{ins.Dst, ins.Method}
	case OpAllocArray:
		required, operands = []string{ins.Dst, ins.Type, ins.Length}, []string{ins.Length}
	case OpReadField:
		required, operands = []string{ins.Dst, ins.Ref, ins.Field}, []string{ins.Ref}
	case OpWriteField:
		required, operands = []string{ins.Ref, ins.Field, ins.Value}, []string{ins.Ref, ins.Value}
	case OpReadIndex:
		required, operands = []string{ins.Dst, ins.Ref, ins.Type, ins.Index}, []string{ins.Ref, ins.Index}
	case OpWriteIndex:
		required, operands = []string{ins.Ref, ins.Type, ins.Index, ins.Value}, []string{ins.Ref, ins.Index, ins.Value}
	case OpLength:
		required, operands = []string{ins.Dst, ins.Ref, ins.Type}, []string{ins.Ref}
	case OpMemcpy:
		required = []string{ins.Src, ins.Ref, ins.Type, ins.From, ins.To, ins.Length}
		operands = []string{ins.Src, ins.Ref, ins.From, ins.To, ins.Length}
	case OpMemset:
		required, operands = []string{ins.Ref, ins.Type}, append([]string{ins.Ref}, ins.Values...)
	case OpBranch:
		required, operands = []string{ins.Cond}, []string{ins.Cond}
	case OpAssume, OpAssert:
		required, operands = []string{ins.Cond}, []string{ins.Cond}
	case OpJump:
		required = []string{ins.Then}
	case OpHalt:
	default:
		return fmt.Errorf("unknown op")
	}

	for _, s := range required {
		if s == "" {
			return errors.New("missing operand")
		}
	}
	for _, s := range operands {
		if _, err := ParseTerm(s); err != nil {
			return err
		}
	}
	if _, err := ParseSort(ins.Sort); err != nil {
		return err
	}

	for _, target := range []string{ins.Then, ins.Else} {
		if target == "" {
			continue
		} else if _, ok := labels[target]; !ok {
			return fmt.Errorf("unknown label: %q", target)
		}
	}
	return nil
}

// ParseSort parses a sort name: bool, addr or bvN. An empty name is bv32.
func ParseSort(s string) (Sort, error) {
	switch s {
	case "", "bv32", "int":
		return SizeSort, nil
	case "bool":
		return BoolSort, nil
	case "addr", "ref":
		return AddressSort, nil
	}
	if strings.HasPrefix(s, "bv") {
		if n, err := strconv.ParseUint(s[2:], 10, 8); err == nil && n > 0 && n <= 64 {
			return BitVecSort(uint(n)), nil
		}
	}
	return Sort{}, fmt.Errorf("invalid sort: %q", s)
}

// Term is a parsed scenario operand.
type Term struct {
	Atom string  // literal or variable name; empty for lists
	Args []*Term // operator name followed by its arguments
}

func (t *Term) String() string {
	if t.Args == nil {
		return t.Atom
	}
	a := make([]string, len(t.Args))
	for i := range t.Args {
		a[i] = t.Args[i].String()
	}
	return "(" + strings.Join(a, " ") + ")"
}

// ParseTerm parses a single operand.
func ParseTerm(s string) (*Term, error) {
	p := &termParser{tokens: tokenizeTerm(s)}
	t, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	} else if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("parse %q: trailing input", s)
	}
	return t, nil
}

func tokenizeTerm(s string) []string {
	var tokens []string
	for i := 0; i < len(s); {
		switch c := rune(s[i]); {
		case unicode.IsSpace(c):
			i++
		case c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		default:
			j := i
			for j < len(s) && s[j] != '(' && s[j] != ')' && !unicode.IsSpace(rune(s[j])) {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		}
	}
	return tokens
}

type termParser struct {
	tokens []string
	pos    int
}

func (p *termParser) parse() (*Term, error) {
	if p.pos >= len(p.tokens) {
		return nil, errors.New("unexpected end of input")
	}
	tok := p.tokens[p.pos]
	p.pos++

	switch tok {
	case ")":
		return nil, errors.New("unexpected ')'")
	case "(":
		t := &Term{Args: []*Term{}}
		for {
			if p.pos >= len(p.tokens) {
				return nil, errors.New("missing ')'")
			} else if p.tokens[p.pos] == ")" {
				p.pos++
				break
			}
			arg, err := p.parse()
			if err != nil {
				return nil, err
			}
			t.Args = append(t.Args, arg)
		}
		if len(t.Args) == 0 || t.Args[0].Args != nil {
			return nil, errors.New("expected operator")
		}
		return t, nil
	default:
		return &Term{Atom: tok}, nil
	}
}

// termOps maps operator names to binary operators.
var termOps = map[string]BinaryOp{
	"add": ADD, "sub": SUB, "mul": MUL,
	"and": AND, "or": OR, "xor": XOR,
	"eq": EQ, "ne": NE,
	"ult": ULT, "ule": ULE, "ugt": UGT, "uge": UGE,
	"slt": SLT, "sle": SLE, "sgt": SGT, "sge": SGE,
}

// termBuilder turns terms into expressions. Integer literals take the width
// of their sibling operand, 32 bits if there is none.
type termBuilder struct {
	lookup func(name string) (Expr, bool)
}

func (b *termBuilder) build(t *Term, width uint) (Expr, error) {
	if t.Args == nil {
		return b.atom(t.Atom, width)
	}

	name, args := t.Args[0].Atom, t.Args[1:]
	switch name {
	case "not":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: expected 1 argument", name)
		}
		x, err := b.build(args[0], 1)
		if err != nil {
			return nil, err
		} else if !isBoolExpr(x) {
			return nil, fmt.Errorf("%s: boolean argument required", name)
		}
		return NewNotExpr(x), nil

	case "ite":
		if len(args) != 3 {
			return nil, fmt.Errorf("%s: expected 3 arguments", name)
		}
		cond, err := b.build(args[0], 1)
		if err != nil {
			return nil, err
		} else if !isBoolExpr(cond) {
			return nil, fmt.Errorf("%s: boolean condition required", name)
		}
		then, els, err := b.buildPair(args[1], args[2], width)
		if err != nil {
			return nil, err
		}
		return NewIteExpr(cond, then, els), nil
	}

	op, ok := termOps[name]
	if !ok {
		return nil, fmt.Errorf("unknown operator: %q", name)
	} else if len(args) != 2 {
		return nil, fmt.Errorf("%s: expected 2 arguments", name)
	}
	operandWidth := width
	if op.IsCompare() {
		operandWidth = 0
	}
	lhs, rhs, err := b.buildPair(args[0], args[1], operandWidth)
	if err != nil {
		return nil, err
	}

	if (op == EQ || op == NE) && IsAddress(lhs) && IsAddress(rhs) {
		eq := NewHeapRefEq(lhs, rhs)
		if op == NE {
			return NewNotExpr(eq), nil
		}
		return eq, nil
	} else if IsAddress(lhs) || IsAddress(rhs) {
		return nil, fmt.Errorf("%s: references only support eq and ne", name)
	}
	return NewBinaryExpr(op, lhs, rhs), nil
}

// buildPair builds two operands of the same width, using the width of the
// non-literal one for the literal.
func (b *termBuilder) buildPair(x, y *Term, width uint) (Expr, Expr, error) {
	if isIntLiteral(x) && !isIntLiteral(y) {
		ry, rx, err := b.buildPair(y, x, width)
		return rx, ry, err
	}

	lhs, err := b.build(x, width)
	if err != nil {
		return nil, nil, err
	}
	rhs, err := b.build(y, ExprWidth(lhs))
	if err != nil {
		return nil, nil, err
	}
	if !IsAddress(lhs) && !IsAddress(rhs) && ExprWidth(lhs) != ExprWidth(rhs) {
		return nil, nil, fmt.Errorf("width mismatch: %s (%d) and %s (%d)", x, ExprWidth(lhs), y, ExprWidth(rhs))
	}
	return lhs, rhs, nil
}

func (b *termBuilder) atom(s string, width uint) (Expr, error) {
	switch s {
	case "true":
		return NewBoolConstantExpr(true), nil
	case "false":
		return NewBoolConstantExpr(false), nil
	case "null":
		return NullRef(), nil
	}

	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		if width == 0 || width == 1 {
			width = SizeSort.Width
		}
		return NewIntExpr(v, width), nil
	}

	if b.lookup != nil {
		if v, ok := b.lookup(s); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("undefined variable: %q", s)
}

func isIntLiteral(t *Term) bool {
	if t.Args != nil {
		return false
	}
	_, err := strconv.ParseInt(t.Atom, 0, 64)
	return err == nil
}

func isBoolExpr(expr Expr) bool {
	return ExprSort(expr) == BoolSort
}
