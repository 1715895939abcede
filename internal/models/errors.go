package models

import "errors"

var (
	// ErrImmutableVersion is returned when something tries to rewrite a workflow version.
	ErrImmutableVersion = errors.New("workflow versions are immutable")
	// ErrTerminalRun is returned when a finished run is modified.
	ErrTerminalRun = errors.New("run already reached a terminal status")
)
