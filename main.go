// Command peek keeps live previews of annotated Go functions running.
//
// peek scans a Go module for exported functions whose doc comment carries the
// preview directive, generates an aggregator that calls all of them inside a
// companion scaffold project, and drives an external toolkit that builds and
// runs that project. While a session runs, source changes are rescanned one
// file at a time and the application is hot-reloaded whenever the set of
// previews changes.
//
// # Quick Start
//
//	// Write a default .peek.yml
//	peek init
//
//	// List discovered previews
//	peek list
//
//	// Build, run and live-update the previews
//	peek start
//
// See the pkg/preview package for the runtime library preview functions return.
package main

import (
	"fmt"
	"os"

	"github.com/conneroisu/peek/cmd"
	"github.com/conneroisu/peek/internal/errors"
)

func main() {
	err := cmd.Execute()
	if err == nil {
		return
	}
	if code, ok := cmd.ExitCode(err); ok {
		os.Exit(code)
	}
	fmt.Fprintln(os.Stderr, "Error:", errors.FormatError(err))
	os.Exit(1)
}
