package main

import (
	"github.com/cockroachdb/errors"

	"github.com/JonMunkholm/entityregistry/internal/core"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }

func (e *cliError) Unwrap() error { return e.err }

const (
	exitOK        = 0
	exitRequest   = 2
	exitRowErrors = 3
	exitStore     = 4
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// classify picks the exit code for an import or store error.
func classify(err error) error {
	if core.IsRequestError(err) {
		return withCode(exitRequest, err)
	}
	return withCode(exitStore, err)
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}
