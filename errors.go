// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

import (
	"errors"
)

var (
	// ErrNotInitialized is returned by [CreateInstance] if [Initialize] has
	// not been called, or the process context has since been torn down.
	ErrNotInitialized = errors.New("jscript: not initialized")

	// ErrNilInstance is returned when a nil instance handle is supplied.
	ErrNilInstance = errors.New("jscript: nil instance")

	// ErrEmptyScript is returned by [RunScriptText] for empty script text.
	ErrEmptyScript = errors.New("jscript: empty script")

	// ErrNotRunning is returned by [RunScriptText] if the instance is not in
	// [StateRun], or has begun stopping.
	ErrNotRunning = errors.New("jscript: instance is not running")
)
