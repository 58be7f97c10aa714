// Command sysyc lowers a SysY syntax tree to LLVM-text IR.
//
// Usage:
//
//	sysyc [-v] <input-file> <output-file>
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"sysyc/internal/ast"
	"sysyc/internal/codegen"
)

func main() {
	opt, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "sysyc: %s\n", err)
		os.Exit(1)
	}

	if err := run(opt); err != nil {
		fmt.Fprintf(os.Stderr, "sysyc: %s\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line: a positional input path, a positional output path, and the -v flag
// gating syntax-tree printing before lowering. Parsing is hand-rolled rather than built on the "flag" package,
// following the teacher's own util.ParseArgs, which hand-rolls a much larger flag set the same way.
type options struct {
	in      string
	out     string
	verbose bool
}

func parseArgs(args []string) (options, error) {
	var opt options
	var positional []string
	for _, a1 := range args {
		if a1 == "-v" {
			opt.verbose = true
			continue
		}
		positional = append(positional, a1)
	}
	if len(positional) != 2 {
		return options{}, fmt.Errorf("usage: sysyc [-v] <input-file> <output-file>")
	}
	opt.in, opt.out = positional[0], positional[1]
	return opt, nil
}

// run reads the input file, lowers its syntax tree, and writes the resulting IR to the output file. File I/O
// failures are wrapped with github.com/pkg/errors so the driver's message names the failed operation and path;
// lowering failures
// are not wrapped, since codegen already reports line-prefixed diagnostics of its own (spec.md §7).
func run(opt options) error {
	src, err := os.ReadFile(opt.in)
	if err != nil {
		return errors.Wrapf(err, "reading %s", opt.in)
	}

	tree, err := parseTree(src)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", opt.in)
	}

	if opt.verbose {
		tree.Print(0)
	}

	out, err := codegen.Lower(tree)
	if err != nil {
		return err
	}

	if err := os.WriteFile(opt.out, []byte(out), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", opt.out)
	}
	return nil
}

// parseTree builds the syntax tree lowering operates on. Lexing and parsing SysY source text into an *ast.Node
// is outside this module's scope (spec.md §1); callers that need a real front end supply one satisfying the
// ast.Node contract in place of this stub.
func parseTree(src []byte) (*ast.Node, error) {
	return nil, fmt.Errorf("no SysY front end is wired into this build: %d bytes of source were read but not parsed", len(src))
}
