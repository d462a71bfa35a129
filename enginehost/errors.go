// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package enginehost

import (
	"errors"
)

var (
	// ErrHostClosed is returned when work is posted to a host whose loop has
	// terminated.
	ErrHostClosed = errors.New("enginehost: host is closed")

	// ErrAsyncSent is returned by [Async.Send] if the handle was already
	// sent. Async handles are one-shot.
	ErrAsyncSent = errors.New("enginehost: async handle already sent")

	// ErrAsyncClosing is returned by [Async.Send] if the handle is closing.
	ErrAsyncClosing = errors.New("enginehost: async handle is closing")
)
