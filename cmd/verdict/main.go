package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess       = 0 // Batch completed, every file produced a clean artifact
	ExitBatchDegraded = 1 // Batch completed, but some files erred or failed validation
	ExitError         = 2 // Configuration or runtime error
)

// BatchFailureError indicates that the run itself completed, but one or more
// files could not be processed cleanly.
type BatchFailureError struct {
	Message string
}

func (e *BatchFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		// Check error type to determine exit code
		var batchErr *BatchFailureError
		if errors.As(err, &batchErr) {
			os.Exit(ExitBatchDegraded)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
