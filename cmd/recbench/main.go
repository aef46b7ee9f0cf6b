package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Every model row succeeded
	ExitModelFailed = 1 // Experiment ran but one or more models failed
	ExitError       = 2 // Configuration or runtime error
)

// ModelFailureError indicates that the experiment ran to completion,
// but one or more model rows failed training or evaluation.
type ModelFailureError struct {
	Message string
}

func (e *ModelFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		// Check error type to determine exit code
		var modelErr *ModelFailureError
		if errors.As(err, &modelErr) {
			os.Exit(ExitModelFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
