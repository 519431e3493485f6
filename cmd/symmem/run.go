package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/symmem/symmem"
	"github.com/symmem/symmem/z3"
)

// RunCommand represents a command for executing a scenario.
type RunCommand struct {
	Stdout io.Writer
	Stderr io.Writer

	// Color enables colorized output.
	Color bool
}

// NewRunCommand returns a new instance of RunCommand.
func NewRunCommand(stdout, stderr io.Writer) *RunCommand {
	return &RunCommand{Stdout: stdout, Stderr: stderr}
}

// Run executes the "run" subcommand.
func (cmd *RunCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("symmem-run", flag.ContinueOnError)
	fs.SetOutput(cmd.Stderr)
	var of optionFlags
	of.register(fs)
	verbose := fs.Bool("v", false, "verbose")
	debug := fs.Bool("debug", false, "dump the variables of every final state")
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() == 0 {
		return fmt.Errorf("scenario required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many scenarios specified")
	}

	log.SetFlags(0)
	if *verbose {
		log.SetOutput(cmd.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	options, err := of.options(fs)
	if err != nil {
		return err
	}
	scenario, err := readScenario(fs.Arg(0))
	if err != nil {
		return err
	}

	solver, closeSolver := newSolver(options)
	defer closeSolver()

	e, err := symmem.NewExecutor(scenario, options, solver)
	if err != nil {
		return err
	}

	states, err := e.Run()
	if errors.Is(err, symmem.ErrStepLimit) {
		fmt.Fprintln(cmd.Stderr, cmd.colorize(color.FgYellow, "step limit reached, reporting terminated states"))
		states = terminated(e.States())
	} else if err != nil {
		return err
	}

	failed := cmd.report(scenario, states)
	if *debug {
		cmd.dump(states)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d states failed", failed, len(states))
	}
	return nil
}

// report prints every final state and returns the number of failed states.
func (cmd *RunCommand) report(scenario *symmem.Scenario, states []*symmem.State) (failed int) {
	fmt.Fprintf(cmd.Stdout, "scenario %s: %d states\n", scenario.Name, len(states))
	for _, s := range states {
		fmt.Fprintln(cmd.Stdout, cmd.colorize(statusColor(s.Status()), s.String()))
		if s.Status() == symmem.StateFailed {
			failed++
		}

		for _, c := range s.PathConstraints.Constraints() {
			fmt.Fprintf(cmd.Stdout, "\tpc: %s\n", c)
		}

		vars := s.Vars()
		names := make([]string, 0, len(vars))
		for name := range vars {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(cmd.Stdout, "\t%s = %s\n", name, vars[name])
		}

		// Print a witness for the inputs if the state has a model.
		if len(s.Models) > 0 {
			m := s.Models[0]
			for _, in := range scenario.Inputs {
				if v, ok := s.Var(in.Name); ok {
					fmt.Fprintf(cmd.Stdout, "\tmodel: %s = %s\n", in.Name, cmd.colorize(color.FgCyan, m.Eval(v).String()))
				}
			}
		}
	}
	return failed
}

func (cmd *RunCommand) dump(states []*symmem.State) {
	config := spew.ConfigState{Indent: "\t", MaxDepth: 3, DisablePointerAddresses: true, SortKeys: true}
	for _, s := range states {
		fmt.Fprintf(cmd.Stderr, "state %d:\n", s.ID())
		config.Fdump(cmd.Stderr, s.Vars())
	}
}

func (cmd *RunCommand) colorize(attr color.Attribute, s string) string {
	c := color.New(attr)
	if cmd.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

func (cmd *RunCommand) usage() {
	fmt.Fprintln(cmd.Stderr, `
usage: symmem run [arguments] SCENARIO

Executes the YAML scenario and prints the final states with their path
constraints and variables. Returns an error if an assertion failed on any path.

Arguments:

	-config PATH
	    YAML file holding exploration options.
	-forker NAME
	    State forker: solver or no-solver.
	-searcher NAME
	    Search order: dfs, bfs or random.
	-seed N
	    Seed of the random searcher.
	-step-limit N
	    Maximum number of instructions executed over all states.
	-solver-timeout DURATION
	    Time budget of a single solver query.
	-debug
	    Dump the variables of every final state.
	-v
	    Enable verbose logging.
`[1:])
}

// newSolver returns the solver needed by options and a function releasing it.
func newSolver(options symmem.Options) (symmem.Solver, func() error) {
	if options.Forker != symmem.ForkerSolver {
		return nil, func() error { return nil }
	}
	s := z3.NewSolver()
	s.Timeout = options.SolverTimeout
	return s, s.Close
}

// terminated returns the states that are no longer running.
func terminated(states []*symmem.State) []*symmem.State {
	var a []*symmem.State
	for _, s := range states {
		if s.Status() != symmem.StateRunning {
			a = append(a, s)
		}
	}
	return a
}

func statusColor(status symmem.StateStatus) color.Attribute {
	switch status {
	case symmem.StateHalted:
		return color.FgGreen
	case symmem.StateDead:
		return color.FgYellow
	case symmem.StateFailed:
		return color.FgRed
	default:
		return color.FgWhite
	}
}
