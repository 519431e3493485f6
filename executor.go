package symmem

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
)

var (
	ErrNoStateAvailable       = errors.New("symmem: no state available")
	ErrNoInstructionAvailable = errors.New("symmem: no instruction available")
	ErrStepLimit              = errors.New("symmem: step limit reached")
)

// Executor explores the paths of a scenario.
type Executor struct {
	scenario   *Scenario
	labels     map[string]int
	root       *State              // initial state
	states     map[*State]struct{} // all states
	stateIDSeq int                 // autoincrementing state ID
	steps      int                 // instructions executed over all states

	options Options

	// Splits states on branch conditions.
	Forker StateForker

	// Search strategy for the executor.
	Searcher Searcher
}

// NewExecutor returns a new executor for scenario. solver may be nil if the
// options select the no-solver forker.
func NewExecutor(scenario *Scenario, options Options, solver Solver) (*Executor, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	} else if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}
	labels, _ := scenario.labels()

	e := &Executor{
		scenario: scenario,
		labels:   labels,
		options:  options,
		Forker:   options.NewForker(solver),
		Searcher: options.NewSearcher(),
	}

	// Initialize entry state. Inputs live in the registers of the entry frame.
	e.root = NewState(NewAddressCounter())
	e.root.id = e.nextStateID()
	e.root.Memory.Stack.Push(nil, len(scenario.Inputs))
	for i, in := range scenario.Inputs {
		sort, _ := ParseSort(in.Sort)
		e.root.vars[in.Name] = e.root.Memory.Read(RegisterLValue{Index: i, Sort: sort})
	}

	e.states = map[*State]struct{}{e.root: {}}
	e.Searcher.AddState(e.root)

	return e, nil
}

// RootState returns the initial state of the scenario.
func (e *Executor) RootState() *State { return e.root }

// States returns all states created so far ordered by ID.
func (e *Executor) States() []*State {
	a := make([]*State, 0, len(e.states))
	for s := range e.states {
		a = append(a, s)
	}
	sortStates(a)
	return a
}

// nextStateID returns the next autoincrementing state ID.
func (e *Executor) nextStateID() int {
	e.stateIDSeq++
	return e.stateIDSeq
}

// Run executes states until none remain and returns the terminated states
// ordered by ID.
func (e *Executor) Run() ([]*State, error) {
	for {
		if _, err := e.ExecuteNextState(); err == ErrNoStateAvailable {
			break
		} else if err != nil {
			return nil, err
		}
	}

	var a []*State
	for _, s := range e.States() {
		if s.status != StateRunning {
			a = append(a, s)
		}
	}
	return a, nil
}

// ExecuteNextState executes the next available state until it terminates or
// forks. This can be called continually until ErrNoStateAvailable is returned.
func (e *Executor) ExecuteNextState() (*State, error) {
	state := e.Searcher.SelectState()
	if state == nil {
		return nil, ErrNoStateAvailable
	}

	log.Printf("[state] begin: id=%d ip=%d", state.id, state.ip)
	defer log.Printf("")

	for state.status == StateRunning {
		if e.options.StepLimit > 0 && e.steps >= e.options.StepLimit {
			return state, ErrStepLimit
		}
		e.steps++

		forked, err := e.executeNextInstruction(state)
		if err == ErrNoInstructionAvailable {
			state.halt("end of scenario")
			break
		} else if err != nil {
			return state, err
		} else if forked {
			break
		}
	}
	return state, nil
}

// executeNextInstruction executes the instruction at the state's ip. Returns
// true if the state was forked and all resulting states were handed back to
// the searcher.
func (e *Executor) executeNextInstruction(state *State) (forked bool, err error) {
	if state.ip >= len(e.scenario.Instructions) {
		return false, ErrNoInstructionAvailable
	}
	ins := &e.scenario.Instructions[state.ip]
	log.Printf("[exec] state=%d ip=%d op=%s", state.id, state.ip, ins.Op)

	switch ins.Op {
	case OpBranch:
		return true, e.executeBranch(state, ins)
	case OpAssert:
		return true, e.executeAssert(state, ins)
	}

	if err := e.execute(state, ins); err != nil {
		return false, fmt.Errorf("instruction %d (%s): %w", state.ip, ins.Op, err)
	}
	return false, nil
}

// execute runs an instruction that does not fork.
func (e *Executor) execute(state *State, ins *Instruction) error {
	sort, _ := ParseSort(ins.Sort)
	mem := state.Memory
	t := NewBoolConstantExpr(true)

	switch ins.Op {
	case OpLet:
		v, err := e.eval(state, ins.Value, 0)
		if err != nil {
			return err
		}
		state.vars[ins.Dst] = v

	case OpSymbolic:
		state.vars[ins.Dst] = NewConstExpr(ins.Dst, sort)

	case OpMock:
		state.vars[ins.Dst] = mem.Mocker.Call(ins.Method, sort)

	case OpAlloc:
		state.vars[ins.Dst] = mem.Alloc()

	case OpAllocArray:
		length, err := e.evalSort(state, ins.Length, SizeSort)
		if err != nil {
			return err
		}
		state.vars[ins.Dst] = mem.AllocArray(ins.Type, length)

	case OpReadField:
		ref, err := e.evalRef(state, ins.Ref)
		if err != nil {
			return err
		}
		state.vars[ins.Dst] = mem.Read(FieldLValue{Ref: ref, Field: ins.Field, Sort: sort})

	case OpWriteField:
		ref, err := e.evalRef(state, ins.Ref)
		if err != nil {
			return err
		}
		value, err := e.evalSort(state, ins.Value, sort)
		if err != nil {
			return err
		}
		mem.Write(FieldLValue{Ref: ref, Field: ins.Field, Sort: sort}, value, t)

	case OpReadIndex:
		ref, index, err := e.evalRefIndex(state, ins.Ref, ins.Index)
		if err != nil {
			return err
		}
		state.vars[ins.Dst] = mem.Read(ArrayIndexLValue{Ref: ref, Index: index, ArrayType: ins.Type, Sort: sort})

	case OpWriteIndex:
		ref, index, err := e.evalRefIndex(state, ins.Ref, ins.Index)
		if err != nil {
			return err
		}
		value, err := e.evalSort(state, ins.Value, sort)
		if err != nil {
			return err
		}
		mem.Write(ArrayIndexLValue{Ref: ref, Index: index, ArrayType: ins.Type, Sort: sort}, value, t)

	case OpLength:
		ref, err := e.evalRef(state, ins.Ref)
		if err != nil {
			return err
		}
		state.vars[ins.Dst] = mem.Read(ArrayLengthLValue{Ref: ref, ArrayType: ins.Type})

	case OpMemcpy:
		src, err := e.evalRef(state, ins.Src)
		if err != nil {
			return err
		}
		dst, err := e.evalRef(state, ins.Ref)
		if err != nil {
			return err
		}
		var bounds [3]Expr
		for i, s := range []string{ins.From, ins.To, ins.Length} {
			if bounds[i], err = e.evalSort(state, s, SizeSort); err != nil {
				return err
			}
		}
		mem.Memcpy(src, dst, ins.Type, sort, bounds[0], bounds[1], bounds[2])

	case OpMemset:
		ref, err := e.evalRef(state, ins.Ref)
		if err != nil {
			return err
		}
		contents := make([]Expr, len(ins.Values))
		for i, s := range ins.Values {
			if contents[i], err = e.evalSort(state, s, sort); err != nil {
				return err
			}
		}
		mem.Memset(ref, ins.Type, sort, contents)

	case OpAssume:
		cond, err := e.evalSort(state, ins.Cond, BoolSort)
		if err != nil {
			return err
		}
		state.PathConstraints.Add(cond)
		if state.PathConstraints.IsFalse() {
			state.kill("assumption is false")
			return nil
		}

	case OpJump:
		state.ip = e.labels[ins.Then]
		return nil

	case OpHalt:
		state.halt(ins.Reason)
		return nil

	default:
		return fmt.Errorf("unknown op")
	}

	state.ip++
	return nil
}

// executeBranch forks the state on the condition. The positive state
// continues at Then and the negative at Else, or at the next instruction if
// no label is given.
func (e *Executor) executeBranch(state *State, ins *Instruction) error {
	cond, err := e.evalSort(state, ins.Cond, BoolSort)
	if err != nil {
		return fmt.Errorf("instruction %d (%s): %w", state.ip, ins.Op, err)
	}

	next := state.ip + 1
	result := e.Forker.Fork(state, cond)
	if s := result.Positive; s != nil {
		s.ip = e.target(ins.Then, next)
		e.addState(s)
	}
	if s := result.Negative; s != nil {
		s.ip = e.target(ins.Else, next)
		e.addState(s)
	}
	return nil
}

// executeAssert forks the state on the condition. States where it does not
// hold fail.
func (e *Executor) executeAssert(state *State, ins *Instruction) error {
	cond, err := e.evalSort(state, ins.Cond, BoolSort)
	if err != nil {
		return fmt.Errorf("instruction %d (%s): %w", state.ip, ins.Op, err)
	}

	result := e.Forker.Fork(state, cond)
	if s := result.Positive; s != nil {
		s.ip++
		e.addState(s)
	}
	if s := result.Negative; s != nil {
		reason := ins.Reason
		if reason == "" {
			reason = fmt.Sprintf("assertion failed: %s", ins.Cond)
		}
		s.fail(reason)
		e.addState(s)
	}
	return nil
}

// addState registers a state produced by a fork and schedules it if it is
// still running.
func (e *Executor) addState(s *State) {
	if _, ok := e.states[s]; !ok {
		s.id = e.nextStateID()
		e.states[s] = struct{}{}
		log.Printf("[state] new: id=%d parent=%d", s.id, s.parent.id)
	}
	if s.PathConstraints.IsFalse() {
		s.kill("path constraints are false")
	}
	if s.status == StateRunning {
		e.Searcher.AddState(s)
	}
}

func (e *Executor) target(label string, next int) int {
	if label == "" {
		return next
	}
	return e.labels[label]
}

// eval evaluates an operand in the state. width is the width given to
// integer literals; zero selects the default.
func (e *Executor) eval(state *State, s string, width uint) (Expr, error) {
	t, err := ParseTerm(s)
	if err != nil {
		return nil, err
	}
	b := &termBuilder{lookup: state.Var}
	return b.build(t, width)
}

// evalSort evaluates an operand and checks its sort.
func (e *Executor) evalSort(state *State, s string, sort Sort) (Expr, error) {
	v, err := e.eval(state, s, sort.Width)
	if err != nil {
		return nil, err
	} else if got := ExprSort(v); got != sort {
		return nil, fmt.Errorf("%s: expected %s, got %s", s, sort, got)
	}
	return v, nil
}

func (e *Executor) evalRef(state *State, s string) (Expr, error) {
	return e.evalSort(state, s, AddressSort)
}

func (e *Executor) evalRefIndex(state *State, ref, index string) (Expr, Expr, error) {
	r, err := e.evalRef(state, ref)
	if err != nil {
		return nil, nil, err
	}
	i, err := e.evalSort(state, index, SizeSort)
	if err != nil {
		return nil, nil, err
	}
	return r, i, nil
}

// Searcher represents a search strategy for the executor.
type Searcher interface {
	// Returns the next state to explore.
	SelectState() *State

	// Adds states to the current searcher.
	AddState(state *State)
}

var (
	_ Searcher = (*DFSSearcher)(nil)
	_ Searcher = (*BFSSearcher)(nil)
	_ Searcher = (*RandomSearcher)(nil)
)

// DFSSearcher represents a searcher with a depth-first search strategy.
type DFSSearcher struct {
	states []*State
}

// NewDFSSearcher returns a new instance of DFSSearcher.
func NewDFSSearcher() *DFSSearcher {
	return &DFSSearcher{}
}

// SelectState returns the most recently added state.
func (s *DFSSearcher) SelectState() *State {
	if len(s.states) == 0 {
		return nil
	}
	state := s.states[len(s.states)-1]
	s.states = s.states[:len(s.states)-1]
	return state
}

// AddState adds a new state to the searcher.
func (s *DFSSearcher) AddState(state *State) {
	s.states = append(s.states, state)
}

// BFSSearcher represents a searcher with a breadth-first search strategy.
type BFSSearcher struct {
	states []*State
}

// NewBFSSearcher returns a new instance of BFSSearcher.
func NewBFSSearcher() *BFSSearcher {
	return &BFSSearcher{}
}

// SelectState returns the least recently added state.
func (s *BFSSearcher) SelectState() *State {
	if len(s.states) == 0 {
		return nil
	}
	state := s.states[0]
	s.states = s.states[1:]
	return state
}

// AddState adds a new state to the searcher.
func (s *BFSSearcher) AddState(state *State) {
	s.states = append(s.states, state)
}

// RandomSearcher selects states uniformly at random.
type RandomSearcher struct {
	states []*State
	rand   *rand.Rand
}

func NewRandomSearcher(rand *rand.Rand) *RandomSearcher {
	return &RandomSearcher{
		rand: rand,
	}
}

// SelectState returns a random state to explore.
func (s *RandomSearcher) SelectState() *State {
	if len(s.states) == 0 {
		return nil
	}
	i := s.rand.Intn(len(s.states))
	state := s.states[i]
	s.states = append(s.states[:i], s.states[i+1:]...)
	return state
}

// AddState adds a new state to the searcher.
func (s *RandomSearcher) AddState(state *State) {
	s.states = append(s.states, state)
}
