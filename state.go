package symmem

import (
	"fmt"
	"sort"
	"strings"
)

// StateStatus is the status of a scenario state.
type StateStatus int

// State statuses.
const (
	StateRunning = StateStatus(iota)
	StateHalted
	StateDead
	StateFailed
)

func (s StateStatus) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateDead:
		return "dead"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("StateStatus<%d>", s)
	}
}

// State is one path under exploration: its memory, the constraints of the
// path and models known to satisfy them.
type State struct {
	id int

	Memory          *Memory
	PathConstraints *PathConstraints
	Models          []*Model

	// Scenario execution.
	ip     int
	status StateStatus
	reason string
	vars   map[string]Expr

	// Fork hierarchy.
	parent   *State
	children []*State
}

// NewState returns a state with an empty memory and no constraints.
func NewState(counter *AddressCounter) *State {
	return &State{
		Memory:          NewMemory(counter),
		PathConstraints: NewPathConstraints(),
		vars:            make(map[string]Expr),
	}
}

// ID returns the ID assigned by the executor.
func (s *State) ID() int { return s.id }

// Status returns the status of the state.
func (s *State) Status() StateStatus { return s.status }

// Reason returns why the state stopped, if it did.
func (s *State) Reason() string { return s.reason }

// Parent returns the state this state was forked from.
func (s *State) Parent() *State { return s.parent }

// Children returns the states forked from this state.
func (s *State) Children() []*State { return s.children }

// Var returns the value bound to a scenario variable.
func (s *State) Var(name string) (Expr, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Vars returns the names of all bound variables.
func (s *State) Vars() map[string]Expr { return s.vars }

// Clone returns a copy of the state with the given path constraints. If
// pc is nil, the constraints of s are cloned. Models are shared.
func (s *State) Clone(pc *PathConstraints) *State {
	if pc == nil {
		pc = s.PathConstraints.Clone()
	}
	vars := make(map[string]Expr, len(s.vars))
	for k, v := range s.vars {
		vars[k] = v
	}
	other := &State{
		Memory:          s.Memory.Clone(),
		PathConstraints: pc,
		Models:          s.Models,
		ip:              s.ip,
		status:          s.status,
		vars:            vars,
		parent:          s,
	}
	s.children = append(s.children, other)
	return other
}

func (s *State) halt(reason string) {
	s.status, s.reason = StateHalted, reason
}

func (s *State) kill(reason string) {
	s.status, s.reason = StateDead, reason
}

func (s *State) fail(reason string) {
	s.status, s.reason = StateFailed, reason
}

// sortStates sorts states by ID.
func sortStates(a []*State) {
	sort.Slice(a, func(i, j int) bool { return a[i].id < a[j].id })
}

// String returns a summary of the state.
func (s *State) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "state %d: %s", s.id, s.status)
	if s.reason != "" {
		fmt.Fprintf(&sb, " (%s)", s.reason)
	}
	return sb.String()
}
