package main

import (
	"errors"
	"fmt"
	"os"
)

const (
	ExitSuccess  = 0
	ExitRejected = 1 // a criterion did not parse or a trial was blocked
	ExitError    = 2 // configuration or runtime error
)

// RejectedError means the command ran but some input was rejected
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var rejected *RejectedError
		if errors.As(err, &rejected) {
			os.Exit(ExitRejected)
		}
		os.Exit(ExitError)
	}
}
