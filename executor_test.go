package symmem_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/symmem/symmem"
)

// NewExecutor returns an executor for scenario using the syntactic forker
// and depth-first search.
func NewExecutor(tb testing.TB, scenario *symmem.Scenario) *symmem.Executor {
	tb.Helper()
	opt := symmem.DefaultOptions()
	opt.Forker = symmem.ForkerNoSolver
	e, err := symmem.NewExecutor(scenario, opt, nil)
	if err != nil {
		tb.Fatal(err)
	}
	return e
}

// MustRun runs the executor to completion.
func MustRun(tb testing.TB, e *symmem.Executor) []*symmem.State {
	tb.Helper()
	states, err := e.Run()
	if err != nil {
		tb.Fatal(err)
	}
	return states
}

// MustVarInt returns the constant value of a scenario variable.
func MustVarInt(tb testing.TB, s *symmem.State, name string) int64 {
	tb.Helper()
	v, ok := s.Var(name)
	if !ok {
		tb.Fatalf("variable not found: %s", name)
	}
	c, ok := v.(*symmem.ConstantExpr)
	if !ok {
		tb.Fatalf("variable %s is not constant: %s", name, v)
	}
	return c.Int64()
}

func TestExecutor_Branch(t *testing.T) {
	e := NewExecutor(t, &symmem.Scenario{
		Name:   "branch",
		Inputs: []symmem.Input{{Name: "x"}},
		Instructions: []symmem.Instruction{
			{Op: symmem.OpBranch, Cond: "(sgt x 0)", Then: "pos"},
			{Op: symmem.OpLet, Dst: "y", Value: "0"},
			{Op: symmem.OpJump, Then: "end"},
			{Label: "pos", Op: symmem.OpLet, Dst: "y", Value: "1"},
			{Label: "end", Op: symmem.OpHalt, Reason: "done"},
		},
	})
	states := MustRun(t, e)
	if len(states) != 2 {
		t.Fatalf("unexpected states: %d", len(states))
	}
	if got := MustVarInt(t, states[0], "y"); got != 1 {
		t.Fatalf("positive y=%d", got)
	} else if got := MustVarInt(t, states[1], "y"); got != 0 {
		t.Fatalf("negative y=%d", got)
	} else if states[1].Parent() != e.RootState() {
		t.Fatal("expected forked state to descend from root")
	}

	var buf bytes.Buffer
	for _, s := range states {
		buf.WriteString(s.String() + "\n")
		buf.WriteString(s.PathConstraints.String())
	}
	goldie.New(t).Assert(t, "executor_branch", buf.Bytes())
}

func TestExecutor_Assume(t *testing.T) {
	e := NewExecutor(t, &symmem.Scenario{
		Inputs: []symmem.Input{{Name: "x"}},
		Instructions: []symmem.Instruction{
			{Op: symmem.OpAssume, Cond: "(slt x 10)"},
			{Op: symmem.OpAssume, Cond: "(not (slt x 10))"},
			{Op: symmem.OpHalt},
		},
	})
	states := MustRun(t, e)
	if len(states) != 1 {
		t.Fatalf("unexpected states: %d", len(states))
	} else if states[0].Status() != symmem.StateDead {
		t.Fatalf("unexpected status: %s", states[0].Status())
	}
}

func TestExecutor_Assert(t *testing.T) {
	t.Run("Holds", func(t *testing.T) {
		e := NewExecutor(t, &symmem.Scenario{
			Instructions: []symmem.Instruction{
				{Op: symmem.OpAllocArray, Dst: "a", Type: "int[]", Length: "3"},
				{Op: symmem.OpWriteIndex, Ref: "a", Type: "int[]", Index: "0", Value: "1"},
				{Op: symmem.OpWriteIndex, Ref: "a", Type: "int[]", Index: "1", Value: "2"},
				{Op: symmem.OpWriteIndex, Ref: "a", Type: "int[]", Index: "2", Value: "3"},
				{Op: symmem.OpReadIndex, Dst: "v", Ref: "a", Type: "int[]", Index: "1"},
				{Op: symmem.OpLength, Dst: "n", Ref: "a", Type: "int[]"},
				{Op: symmem.OpAssert, Cond: "(eq v 2)"},
				{Op: symmem.OpAssert, Cond: "(eq n 3)"},
			},
		})
		states := MustRun(t, e)
		if len(states) != 1 {
			t.Fatalf("unexpected states: %d", len(states))
		} else if s := states[0]; s.Status() != symmem.StateHalted || s.Reason() != "end of scenario" {
			t.Fatalf("unexpected state: %s", s)
		}
	})

	t.Run("Fails", func(t *testing.T) {
		e := NewExecutor(t, &symmem.Scenario{
			Inputs: []symmem.Input{{Name: "x"}},
			Instructions: []symmem.Instruction{
				{Op: symmem.OpAssert, Cond: "(slt x 10)", Reason: "x too large"},
			},
		})
		states := MustRun(t, e)
		if len(states) != 2 {
			t.Fatalf("unexpected states: %d", len(states))
		} else if states[0].Status() != symmem.StateHalted {
			t.Fatalf("unexpected status: %s", states[0].Status())
		} else if states[1].Status() != symmem.StateFailed || states[1].Reason() != "x too large" {
			t.Fatalf("unexpected state: %s", states[1])
		}
	})
}

func TestExecutor_Loop(t *testing.T) {
	e := NewExecutor(t, &symmem.Scenario{
		Instructions: []symmem.Instruction{
			{Op: symmem.OpLet, Dst: "i", Value: "0"},
			{Label: "loop", Op: symmem.OpBranch, Cond: "(slt i 3)", Else: "done"},
			{Op: symmem.OpLet, Dst: "i", Value: "(add i 1)"},
			{Op: symmem.OpJump, Then: "loop"},
			{Label: "done", Op: symmem.OpHalt},
		},
	})
	states := MustRun(t, e)
	if len(states) != 1 {
		t.Fatalf("unexpected states: %d", len(states))
	} else if got := MustVarInt(t, states[0], "i"); got != 3 {
		t.Fatalf("i=%d", got)
	}
}

func TestExecutor_Memory(t *testing.T) {
	e := NewExecutor(t, &symmem.Scenario{
		Inputs: []symmem.Input{{Name: "p", Sort: "addr"}},
		Instructions: []symmem.Instruction{
			{Op: symmem.OpAlloc, Dst: "o"},
			{Op: symmem.OpWriteField, Ref: "o", Field: "f", Value: "7"},
			{Op: symmem.OpReadField, Dst: "v", Ref: "o", Field: "f"},
			{Op: symmem.OpAllocArray, Dst: "dst", Type: "int[]", Length: "2"},
			{Op: symmem.OpMemset, Ref: "dst", Type: "int[]", Values: []string{"4", "5", "6"}},
			{Op: symmem.OpAllocArray, Dst: "src", Type: "int[]", Length: "0"},
			{Op: symmem.OpMemset, Ref: "src", Type: "int[]", Values: []string{"8", "9"}},
			{Op: symmem.OpMemcpy, Src: "src", Ref: "dst", Type: "int[]", From: "0", To: "1", Length: "2"},
			{Op: symmem.OpReadIndex, Dst: "e", Ref: "dst", Type: "int[]", Index: "2"},
			{Op: symmem.OpLength, Dst: "n", Ref: "dst", Type: "int[]"},
			{Op: symmem.OpMock, Dst: "m", Method: "rand"},
			{Op: symmem.OpBranch, Cond: "(eq p null)", Then: "null"},
			{Op: symmem.OpHalt, Reason: "non-null"},
			{Label: "null", Op: symmem.OpHalt, Reason: "null"},
		},
	})
	states := MustRun(t, e)
	if len(states) != 2 {
		t.Fatalf("unexpected states: %d", len(states))
	}

	model := NewSymbolModel(nil)
	for _, s := range states {
		if got := MustVarInt(t, s, "v"); got != 7 {
			t.Fatalf("v=%d", got)
		} else if got := MustEvalInt(t, model, mustVar(t, s, "e")); got != 9 {
			t.Fatalf("e=%d", got)
		} else if got := MustVarInt(t, s, "n"); got != 3 {
			t.Fatalf("n=%d", got)
		}
	}
	if states[0].Reason() != "null" || states[1].Reason() != "non-null" {
		t.Fatalf("unexpected reasons: %q, %q", states[0].Reason(), states[1].Reason())
	}
}

func mustVar(tb testing.TB, s *symmem.State, name string) symmem.Expr {
	tb.Helper()
	v, ok := s.Var(name)
	if !ok {
		tb.Fatalf("variable not found: %s", name)
	}
	return v
}

func TestExecutor_StepLimit(t *testing.T) {
	opt := symmem.DefaultOptions()
	opt.Forker = symmem.ForkerNoSolver
	opt.StepLimit = 10
	e, err := symmem.NewExecutor(&symmem.Scenario{
		Instructions: []symmem.Instruction{
			{Label: "loop", Op: symmem.OpJump, Then: "loop"},
		},
	}, opt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(); !errors.Is(err, symmem.ErrStepLimit) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecutor_Searchers(t *testing.T) {
	scenario := &symmem.Scenario{
		Inputs: []symmem.Input{{Name: "x"}, {Name: "y"}},
		Instructions: []symmem.Instruction{
			{Op: symmem.OpBranch, Cond: "(slt x 0)"},
			{Op: symmem.OpBranch, Cond: "(slt y 0)"},
			{Op: symmem.OpHalt},
		},
	}
	for _, kind := range []symmem.SearcherKind{symmem.SearcherDFS, symmem.SearcherBFS, symmem.SearcherRandom} {
		t.Run(string(kind), func(t *testing.T) {
			opt := symmem.DefaultOptions()
			opt.Forker = symmem.ForkerNoSolver
			opt.Searcher = kind
			opt.Seed = 1
			e, err := symmem.NewExecutor(scenario, opt, nil)
			if err != nil {
				t.Fatal(err)
			}
			states := MustRun(t, e)
			if len(states) != 4 {
				t.Fatalf("unexpected states: %d", len(states))
			}
			for _, s := range states {
				if s.PathConstraints.Len() != 2 {
					t.Fatalf("unexpected constraints for %s:\n%s", s, s.PathConstraints)
				}
			}
		})
	}
}

func TestExecutor_Solver(t *testing.T) {
	opt := symmem.DefaultOptions()
	opt.UseSolverOnEmptyModels = true
	solver := NewUnsatSolver()
	e, err := symmem.NewExecutor(&symmem.Scenario{
		Inputs: []symmem.Input{{Name: "x"}},
		Instructions: []symmem.Instruction{
			{Op: symmem.OpBranch, Cond: "(slt x 0)", Then: "neg"},
			{Op: symmem.OpHalt, Reason: "non-negative"},
			{Label: "neg", Op: symmem.OpHalt, Reason: "negative"},
		},
	}, opt, solver)
	if err != nil {
		t.Fatal(err)
	}
	states := MustRun(t, e)
	if len(states) != 1 || states[0].Reason() != "non-negative" {
		t.Fatalf("unexpected states: %v", states)
	} else if solver.N != 1 {
		t.Fatalf("unexpected solver calls: %d", solver.N)
	}
}

func TestNewExecutor(t *testing.T) {
	for _, tt := range []struct {
		name     string
		scenario symmem.Scenario
	}{
		{name: "Empty"},
		{name: "UnknownOp", scenario: symmem.Scenario{Instructions: []symmem.Instruction{{Op: "nop"}}}},
		{name: "UnknownLabel", scenario: symmem.Scenario{Instructions: []symmem.Instruction{{Op: symmem.OpJump, Then: "x"}}}},
		{name: "DuplicateLabel", scenario: symmem.Scenario{Instructions: []symmem.Instruction{
			{Label: "a", Op: symmem.OpHalt},
			{Label: "a", Op: symmem.OpHalt},
		}}},
		{name: "MissingOperand", scenario: symmem.Scenario{Instructions: []symmem.Instruction{{Op: symmem.OpLet, Dst: "x"}}}},
		{name: "BadTerm", scenario: symmem.Scenario{Instructions: []symmem.Instruction{{Op: symmem.OpLet, Dst: "x", Value: "(add 1"}}}},
		{name: "BadSort", scenario: symmem.Scenario{Inputs: []symmem.Input{{Name: "x", Sort: "float"}}, Instructions: []symmem.Instruction{{Op: symmem.OpHalt}}}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := symmem.NewExecutor(&tt.scenario, symmem.DefaultOptions(), nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	t.Run("BadOptions", func(t *testing.T) {
		opt := symmem.DefaultOptions()
		opt.Searcher = "sideways"
		if _, err := symmem.NewExecutor(&symmem.Scenario{Instructions: []symmem.Instruction{{Op: symmem.OpHalt}}}, opt, nil); err == nil {
			t.Fatal("expected error")
		}
	})
}
