// Command calzone builds detector geometries from YAML or Lisp volume
// descriptions, checks them for overlaps and exports them.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes.
const (
	exitSuccess = 0
	exitOverlap = 1
	exitError   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "calzone: %v\n", err)
		var ec *exitCodeError
		if errors.As(err, &ec) {
			return ec.code
		}
		return exitError
	}
	return exitSuccess
}

// exitCodeError carries a non default exit status.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }
