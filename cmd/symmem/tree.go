package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/goccy/go-graphviz"
	"github.com/symmem/symmem"
	"github.com/symmem/symmem/regions"
)

// TreeCommand represents a command for rendering the write tree of an array.
type TreeCommand struct {
	Stdout io.Writer
}

// NewTreeCommand returns a new instance of TreeCommand.
func NewTreeCommand(stdout io.Writer) *TreeCommand {
	return &TreeCommand{Stdout: stdout}
}

// Run executes the "tree" subcommand.
func (cmd *TreeCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("symmem-tree", flag.ContinueOnError)
	var of optionFlags
	of.register(fs)
	format := fs.String("format", "text", "output format (text, dot, svg)")
	output := fs.String("o", "", "output file")
	stateID := fs.Int("state", 0, "state id")
	arrayType := fs.String("type", "", "array type")
	address := fs.Int64("addr", 0, "address of an allocated array")
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() == 0 {
		return fmt.Errorf("scenario required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many scenarios specified")
	} else if *arrayType == "" && *address == 0 {
		return fmt.Errorf("array type or address required")
	}

	switch *format {
	case "text", "dot", "svg":
	default:
		return fmt.Errorf("unknown format: %q", *format)
	}

	log.SetFlags(0)
	log.SetOutput(io.Discard)

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
	if _, err := e.Run(); err != nil && !errors.Is(err, symmem.ErrStepLimit) {
		return err
	}

	state, err := findState(e.States(), *stateID)
	if err != nil {
		return err
	}
	tree, err := arrayTree(state.Memory.Heap, *arrayType, *address)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch *format {
	case "text":
		fmt.Fprintln(&buf, tree.String())
	case "dot":
		buf.WriteString(tree.Dot())
	case "svg":
		if err := renderSVG(&buf, []byte(tree.Dot())); err != nil {
			return err
		}
	}

	if *output == "" {
		_, err := buf.WriteTo(cmd.Stdout)
		return err
	}
	return os.WriteFile(*output, buf.Bytes(), 0666)
}

// dumper is a region tree of any key type.
type dumper interface {
	String() string
	Dot() string
}

// arrayTree returns the write tree of the allocated array at address or, if
// address is zero, of the input arrays of arrayType.
func arrayTree(heap *symmem.Heap, arrayType string, address int64) (dumper, error) {
	if address != 0 {
		c, ok := heap.AllocatedArrayCollection(address)
		if !ok {
			return nil, fmt.Errorf("no array allocated at %d", address)
		}
		updates, ok := c.Updates().(*symmem.TreeLog[symmem.Expr, regions.IntervalsRegion])
		if !ok {
			return nil, fmt.Errorf("array at %d has no write tree", address)
		}
		return updates.Tree(), nil
	}

	c, ok := heap.InputArrayCollection(arrayType)
	if !ok {
		return nil, fmt.Errorf("no writes to input arrays of type %s", arrayType)
	}
	updates, ok := c.Updates().(*symmem.TreeLog[symmem.ArrayIndex, symmem.ArrayIndexRegion])
	if !ok {
		return nil, fmt.Errorf("input arrays of type %s have no write tree", arrayType)
	}
	return updates.Tree(), nil
}

// findState returns the state with the given id or the first final state
// if id is zero.
func findState(states []*symmem.State, id int) (*symmem.State, error) {
	for _, s := range states {
		if (id == 0 && s.Status() != symmem.StateRunning) || (id != 0 && s.ID() == id) {
			return s, nil
		}
	}
	if id == 0 {
		return nil, fmt.Errorf("no final state")
	}
	return nil, fmt.Errorf("state not found: %d", id)
}

// renderSVG lays out a DOT graph with graphviz and writes it as SVG.
func renderSVG(w io.Writer, dot []byte) error {
	g := graphviz.New()
	defer g.Close()

	graph, err := graphviz.ParseBytes(dot)
	if err != nil {
		return err
	}
	defer graph.Close()

	return g.Render(graph, graphviz.SVG, w)
}

func (cmd *TreeCommand) usage() {
	fmt.Fprintln(os.Stderr, `
usage: symmem tree [arguments] SCENARIO

Executes the YAML scenario and renders the region tree holding the writes to
an array of a final state.

Arguments:

	-type NAME
	    Render the writes to input arrays of type NAME.
	-addr N
	    Render the writes to the allocated array at address N.
	-state ID
	    State to inspect. Defaults to the first final state.
	-format FORMAT
	    Output format: text, dot or svg.
	-o PATH
	    Write output to PATH instead of stdout.

The exploration arguments of "symmem run" are accepted as well.
`[1:])
}
