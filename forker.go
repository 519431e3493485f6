package symmem

import (
	"errors"
	"fmt"
	"log"
)

// SatStatus is the outcome of a satisfiability check.
type SatStatus int

// Satisfiability check outcomes.
const (
	Sat = SatStatus(iota + 1)
	Unsat
	Unknown
)

func (s SatStatus) String() string {
	switch s {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("SatStatus<%d>", s)
	}
}

// CheckResult is the result of a Solver check. Model is set if Status is Sat.
type CheckResult struct {
	Status SatStatus
	Model  *Model
}

// Solver checks the satisfiability of path constraints.
type Solver interface {
	// Check returns Sat and a model, Unsat, or Unknown. A time or resource
	// limit returns Unknown together with one of the ErrSolver errors.
	Check(pc *PathConstraints) (CheckResult, error)
}

// ForkResult is the result of forking a state on a condition. At least one
// of the states is set.
type ForkResult struct {
	Positive *State
	Negative *State
}

// StateForker splits states on branch conditions.
type StateForker interface {
	// Fork returns the states in which condition holds and does not hold.
	// The positive state is the original state whenever it survives.
	Fork(state *State, condition Expr) ForkResult

	// ForkMulti returns one state per condition, nil if the condition is
	// unreachable. The conditions are assumed to be mutually exclusive.
	ForkMulti(state *State, conditions []Expr) []*State
}

// modelsByCondition partitions models by the value of condition. Models
// that cannot decide the condition are dropped.
func modelsByCondition(models []*Model, condition Expr) (trueModels, falseModels []*Model) {
	for _, m := range models {
		switch v := m.Eval(condition); {
		case IsConstantTrue(v):
			trueModels = append(trueModels, m)
		case IsConstantFalse(v):
			falseModels = append(falseModels, m)
		}
	}
	return trueModels, falseModels
}

// SolverStateForker forks states using cached models and at most one
// solver query per fork.
type SolverStateForker struct {
	solver Solver

	// If set, a state without models is checked with one query instead
	// of being forked syntactically.
	UseSolverOnEmptyModels bool
}

var _ StateForker = (*SolverStateForker)(nil)

// NewSolverStateForker returns a forker backed by solver.
func NewSolverStateForker(solver Solver) *SolverStateForker {
	return &SolverStateForker{solver: solver}
}

// check runs the solver on pc. Solver errors degrade to Unknown.
func (f *SolverStateForker) check(pc *PathConstraints) CheckResult {
	if pc.IsFalse() {
		return CheckResult{Status: Unsat}
	}
	result, err := f.solver.Check(pc)
	if err != nil {
		if !isSolverLimit(err) {
			log.Printf("[solver] error: %s", err)
		}
		return CheckResult{Status: Unknown}
	}
	return result
}

func isSolverLimit(err error) bool {
	return errors.Is(err, ErrSolverTimeout) ||
		errors.Is(err, ErrSolverCanceled) ||
		errors.Is(err, ErrSolverResourceLimit) ||
		errors.Is(err, ErrSolverUnknown)
}

// Fork splits state on condition.
func (f *SolverStateForker) Fork(state *State, condition Expr) ForkResult {
	notCondition := NewNotExpr(condition)
	trueModels, falseModels := modelsByCondition(state.Models, condition)

	switch {
	case len(trueModels) > 0 && len(falseModels) > 0:
		log.Printf("[fork] state=%d: models on both sides", state.id)
		neg := state.Clone(nil)
		state.Models, neg.Models = trueModels, falseModels
		state.PathConstraints.Add(condition)
		neg.PathConstraints.Add(notCondition)
		return ForkResult{Positive: state, Negative: neg}

	case len(trueModels) > 0:
		state.Models = trueModels
		neg := f.forkIfSat(state, condition, notCondition)
		return ForkResult{Positive: state, Negative: neg}

	case len(falseModels) > 0:
		state.Models = falseModels
		neg := f.forkIfSat(state, notCondition, condition)
		if neg == nil {
			return ForkResult{Negative: state}
		}
		// The original state takes the positive branch.
		state.Models, neg.Models = neg.Models, state.Models
		state.PathConstraints, neg.PathConstraints = neg.PathConstraints, state.PathConstraints
		return ForkResult{Positive: state, Negative: neg}

	case f.UseSolverOnEmptyModels:
		return f.forkWithoutModels(state, condition, notCondition)

	default:
		log.Printf("[fork] state=%d: no models, forking syntactically", state.id)
		return forkSyntactically(state, condition, notCondition)
	}
}

// forkIfSat checks whether other can hold on the path of state, whose
// models all satisfy cond. If so, it returns a new state where other holds
// with the fresh model. cond is added to state unless the query failed to
// justify it.
func (f *SolverStateForker) forkIfSat(state *State, cond, other Expr) *State {
	pc := state.PathConstraints.Clone()
	pc.Add(other)

	result := f.check(pc)
	switch result.Status {
	case Sat:
		log.Printf("[fork] state=%d: sat %s", state.id, other)
		forked := state.Clone(pc)
		forked.Models = []*Model{result.Model}
		state.PathConstraints.Add(cond)
		return forked
	case Unsat:
		log.Printf("[fork] state=%d: unsat %s", state.id, other)
	default:
		log.Printf("[fork] state=%d: unknown %s", state.id, other)
	}
	state.PathConstraints.Add(cond)
	return nil
}

// forkWithoutModels issues one query for condition on a state without models.
func (f *SolverStateForker) forkWithoutModels(state *State, condition, notCondition Expr) ForkResult {
	pc := state.PathConstraints.Clone()
	pc.Add(condition)

	result := f.check(pc)
	switch result.Status {
	case Sat:
		neg := state.Clone(nil)
		neg.PathConstraints.Add(notCondition)
		state.PathConstraints = pc
		state.Models = []*Model{result.Model}
		if neg.PathConstraints.IsFalse() {
			return ForkResult{Positive: state}
		}
		return ForkResult{Positive: state, Negative: neg}
	case Unsat:
		state.PathConstraints.Add(notCondition)
		return ForkResult{Negative: state}
	default:
		return forkSyntactically(state, condition, notCondition)
	}
}

// ForkMulti forks state once per condition, issuing a query only for
// conditions that no cached model satisfies.
func (f *SolverStateForker) ForkMulti(state *State, conditions []Expr) []*State {
	return forkMulti(state, conditions, func(cur *State, condition Expr) ([]*Model, bool) {
		if trueModels, _ := modelsByCondition(cur.Models, condition); len(trueModels) > 0 {
			return trueModels, true
		}
		pc := cur.PathConstraints.Clone()
		pc.Add(condition)
		if result := f.check(pc); result.Status == Sat {
			return []*Model{result.Model}, true
		}
		return nil, false
	})
}

// forkMulti walks conditions keeping a root state that has none of the
// previous conditions added. reachable returns the models of the branch.
func forkMulti(state *State, conditions []Expr, reachable func(cur *State, condition Expr) ([]*Model, bool)) []*State {
	result := make([]*State, 0, len(conditions))
	cur := state
	for i, condition := range conditions {
		models, ok := reachable(cur, condition)
		if !ok {
			log.Printf("[fork] state=%d: branch %d unreachable", state.id, i)
			result = append(result, nil)
			continue
		}

		var next *State
		if i < len(conditions)-1 {
			next = cur.Clone(nil)
		}
		cur.Models = models
		cur.PathConstraints.Add(condition)
		result = append(result, cur)

		if next == nil {
			break
		}
		cur = next
	}
	return result
}

// NoSolverStateForker forks states without consulting a solver. A branch
// is dropped only if its path constraints are syntactically false.
type NoSolverStateForker struct{}

var _ StateForker = NoSolverStateForker{}

// Fork splits state on condition.
func (NoSolverStateForker) Fork(state *State, condition Expr) ForkResult {
	return forkSyntactically(state, condition, NewNotExpr(condition))
}

// ForkMulti forks state once per condition.
func (NoSolverStateForker) ForkMulti(state *State, conditions []Expr) []*State {
	return forkMulti(state, conditions, func(cur *State, condition Expr) ([]*Model, bool) {
		pc := cur.PathConstraints.Clone()
		pc.Add(condition)
		if pc.IsFalse() {
			return nil, false
		}
		trueModels, _ := modelsByCondition(cur.Models, condition)
		return trueModels, true
	})
}

func forkSyntactically(state *State, condition, notCondition Expr) ForkResult {
	trueModels, falseModels := modelsByCondition(state.Models, condition)

	pos := state.PathConstraints.Clone()
	pos.Add(condition)
	if pos.IsFalse() {
		state.PathConstraints.Add(notCondition)
		state.Models = falseModels
		return ForkResult{Negative: state}
	}

	neg := state.PathConstraints.Clone()
	neg.Add(notCondition)
	if neg.IsFalse() {
		state.PathConstraints = pos
		state.Models = trueModels
		return ForkResult{Positive: state}
	}

	other := state.Clone(neg)
	other.Models = falseModels
	state.PathConstraints = pos
	state.Models = trueModels
	return ForkResult{Positive: state, Negative: other}
}
