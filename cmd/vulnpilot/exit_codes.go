package main

import (
	"errors"

	"github.com/odvcencio/vulnpilot/pkg/api"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
	"github.com/odvcencio/vulnpilot/pkg/repos"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
	exitAuth    = 3
	exitNetwork = 4
)

type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return exitFailure
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

// exitCodeForError prefers an explicit code, then classifies backend and
// configuration failures.
func exitCodeForError(err error) int {
	if err == nil {
		return exitOK
	}
	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	switch {
	case api.IsUnauthorized(err), errors.Is(err, repos.ErrNotAuthenticated), errors.Is(err, errNotSignedIn):
		return exitAuth
	case errors.Is(err, api.ErrUnreachable):
		return exitNetwork
	}
	switch verrors.GetCode(err) {
	case verrors.ErrCodeConfigLoad, verrors.ErrCodeConfigParse, verrors.ErrCodeConfigInvalid:
		return exitConfig
	case verrors.ErrCodeUnauthorized:
		return exitAuth
	case verrors.ErrCodeUnreachable:
		return exitNetwork
	}
	return exitFailure
}
