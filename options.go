package symmem

import (
	"fmt"
	"math/rand"
	"time"
)

// ForkerKind selects the state forker.
type ForkerKind string

// Forker kinds.
const (
	ForkerSolver   ForkerKind = "solver"
	ForkerNoSolver ForkerKind = "no-solver"
)

// SearcherKind selects the order in which states are explored.
type SearcherKind string

// Searcher kinds.
const (
	SearcherDFS    SearcherKind = "dfs"
	SearcherBFS    SearcherKind = "bfs"
	SearcherRandom SearcherKind = "random"
)

// Options are the settings of an exploration. They are fixed once the
// executor is created.
type Options struct {
	// Time budget of a single solver query. Zero means no limit.
	SolverTimeout time.Duration `yaml:"solver-timeout"`

	Forker   ForkerKind   `yaml:"forker"`
	Searcher SearcherKind `yaml:"searcher"`

	// Seed of the random searcher.
	Seed int64 `yaml:"seed"`

	// Maximum number of instructions executed over all states. Zero means
	// no limit.
	StepLimit int `yaml:"step-limit"`

	// Check states without cached models with one solver query instead of
	// forking them syntactically.
	UseSolverOnEmptyModels bool `yaml:"use-solver-on-empty-models"`
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		SolverTimeout: 10 * time.Second,
		Forker:        ForkerSolver,
		Searcher:      SearcherDFS,
		StepLimit:     100000,
	}
}

// Validate returns an error if an option holds an unknown value.
func (o Options) Validate() error {
	switch o.Forker {
	case ForkerSolver, ForkerNoSolver:
	default:
		return fmt.Errorf("unknown forker: %q", o.Forker)
	}
	switch o.Searcher {
	case SearcherDFS, SearcherBFS, SearcherRandom:
	default:
		return fmt.Errorf("unknown searcher: %q", o.Searcher)
	}
	if o.SolverTimeout < 0 {
		return fmt.Errorf("negative solver timeout: %s", o.SolverTimeout)
	} else if o.StepLimit < 0 {
		return fmt.Errorf("negative step limit: %d", o.StepLimit)
	}
	return nil
}

// NewSearcher returns the searcher selected by the options.
func (o Options) NewSearcher() Searcher {
	switch o.Searcher {
	case SearcherBFS:
		return NewBFSSearcher()
	case SearcherRandom:
		return NewRandomSearcher(rand.New(rand.NewSource(o.Seed)))
	default:
		return NewDFSSearcher()
	}
}

// NewForker returns the forker selected by the options. solver may be nil
// for the no-solver forker.
func (o Options) NewForker(solver Solver) StateForker {
	if o.Forker == ForkerNoSolver || solver == nil {
		return NoSolverStateForker{}
	}
	f := NewSolverStateForker(solver)
	f.UseSolverOnEmptyModels = o.UseSolverOnEmptyModels
	return f
}
