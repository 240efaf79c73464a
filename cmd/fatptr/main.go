// Command fatptr generates type-erased wrappers for Go interfaces.
//
// Usage:
//
//	fatptr generate [flags] [dir]   write the generated file for the package in dir
//	fatptr check [flags] [dir]      describe interfaces and check conformance only
//	fatptr inspect [flags] [dir]    print interface descriptors
//	fatptr version                  print version information
//
// Interfaces are configured in fatptr.yaml (found in dir or a parent), or
// with -type and the policy flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/funvibe/fatptr/internal/codegen"
	"go.uber.org/multierr"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(ctx, os.Args[2:])
	case "check":
		err = runCheck(ctx, os.Args[2:])
	case "inspect":
		err = runInspect(ctx, os.Args[2:])
	case "version", "-version", "--version":
		fmt.Printf("fatptr %s (codegen %s)\n", version, codegen.Version)
	case "help", "-h", "-help", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		report(err)
		stop()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: fatptr <command> [flags] [dir]

Commands:
  generate   write the generated file for the package in dir (default ".")
  check      describe interfaces and check configured types, write nothing
  inspect    print interface descriptors
  version    print version information

Run "fatptr <command> -h" for command flags.`)
}

// report prints err, one line per aggregated error.
func report(err error) {
	errs := multierr.Errors(err)
	if len(errs) == 1 {
		fmt.Fprintf(os.Stderr, "Error: %v\n", errs[0])
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %d problems:\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  %s\n", strings.ReplaceAll(e.Error(), "\n", "\n  "))
	}
}
