package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/symmem/symmem"
	"gopkg.in/yaml.v3"
)

// optionFlags registers the exploration flags shared by all commands. Flags
// that are set on the command line override the config file.
type optionFlags struct {
	config        string
	forker        string
	searcher      string
	seed          int64
	stepLimit     int
	solverTimeout time.Duration
}

func (f *optionFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "YAML config file")
	fs.StringVar(&f.forker, "forker", "", "state forker (solver, no-solver)")
	fs.StringVar(&f.searcher, "searcher", "", "search order (dfs, bfs, random)")
	fs.Int64Var(&f.seed, "seed", 0, "seed of the random searcher")
	fs.IntVar(&f.stepLimit, "step-limit", 0, "maximum number of instructions executed")
	fs.DurationVar(&f.solverTimeout, "solver-timeout", 0, "time budget of a solver query")
}

// options returns the default options updated with the config file and the
// flags set on fs.
func (f *optionFlags) options(fs *flag.FlagSet) (symmem.Options, error) {
	options := symmem.DefaultOptions()
	if f.config != "" {
		var err error
		if options, err = readOptions(f.config, options); err != nil {
			return options, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "forker":
			options.Forker = symmem.ForkerKind(f.forker)
		case "searcher":
			options.Searcher = symmem.SearcherKind(f.searcher)
		case "seed":
			options.Seed = f.seed
		case "step-limit":
			options.StepLimit = f.stepLimit
		case "solver-timeout":
			options.SolverTimeout = f.solverTimeout
		}
	})
	return options, options.Validate()
}

// readOptions decodes the config file at path over options.
func readOptions(path string, options symmem.Options) (symmem.Options, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return options, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&options); err != nil {
		return options, fmt.Errorf("config %s: %w", path, err)
	}
	return options, nil
}

// readScenario decodes the scenario file at path.
func readScenario(path string) (*symmem.Scenario, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario symmem.Scenario
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if scenario.Name == "" {
		scenario.Name = path
	}
	return &scenario, nil
}
