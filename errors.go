package rvmenv

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that no marker files or local environment apply
	// to a path. Callers treat it as "nothing to do", never as a failure.
	ErrNotFound = errors.New("no ruby configuration found")
	// ErrNotInstalled indicates an identifier that does not map to an
	// installed environment.
	ErrNotInstalled = errors.New("version not installed")
	// ErrToolUnavailable indicates the version manager executable is missing.
	ErrToolUnavailable = errors.New("version manager not available")
	// ErrInvalidKey indicates a settings key missing section or key name.
	ErrInvalidKey = errors.New("invalid key")
	// ErrGemNotFound indicates a gem is not installed in the active gem home.
	ErrGemNotFound = errors.New("gem not found")
	// ErrNoSelection indicates the user aborted an interactive selection.
	ErrNoSelection = errors.New("nothing selected")
	// ErrNoEnvironment indicates an operation that needs an active environment.
	ErrNoEnvironment = errors.New("no ruby environment active")
)

// NotInstalledError carries the identifier that could not be resolved to an
// installed environment.
type NotInstalledError struct {
	Identifier Identifier
	Prefix     string
}

func (e *NotInstalledError) Error() string {
	if e.Prefix == "" {
		return fmt.Sprintf("%s: %s (no prefix configured)", ErrNotInstalled, e.Identifier)
	}

	return fmt.Sprintf("%s: %s (prefix %s)", ErrNotInstalled, e.Identifier, e.Prefix)
}

// Unwrap makes errors.Is(err, ErrNotInstalled) work.
func (e *NotInstalledError) Unwrap() error {
	return ErrNotInstalled
}
