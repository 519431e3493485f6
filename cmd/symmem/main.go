package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Version is set at build time.
var Version = "(development build)"

func main() {
	if err := run(context.Background(), os.Args[1:]); err == flag.ErrHelp {
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var cmd string
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	switch cmd {
	case "", "-h", "--help", "help":
		usage(os.Stderr)
		return flag.ErrHelp
	case "run":
		c := NewRunCommand(os.Stdout, os.Stderr)
		c.Color = color
		return c.Run(ctx, args)
	case "tree":
		return NewTreeCommand(os.Stdout).Run(ctx, args)
	case "version":
		fmt.Fprintln(os.Stdout, "symmem", Version)
		return nil
	default:
		return fmt.Errorf(`symmem %s: unknown command`, cmd)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `
Symmem explores scenarios over a symbolic heap.

Usage:

	symmem <command> [arguments]

The commands are:

	run         execute a scenario and report its final states
	tree        render the write tree of an array after a scenario
	version     print the version
	help        this screen
`[1:])
}
