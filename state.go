// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of an [Instance].
type State int32

const (
	// StateCreate is the initial state, until the bootstrap script reports.
	StateCreate State = iota
	// StateRun indicates the instance accepts scripts.
	StateRun
	// StateStopping indicates exit was requested, or the loop ran out of work.
	StateStopping
	// StateStop is terminal. The instance thread has finished pumping.
	StateStop
	// StateError indicates the bootstrap script failed.
	StateError
	// StateTimeout indicates the bootstrap script did not report in time.
	StateTimeout
)

func (s State) String() string {
	switch s {
	case StateCreate:
		return `CREATE`
	case StateRun:
		return `RUN`
	case StateStopping:
		return `STOPPING`
	case StateStop:
		return `STOP`
	case StateError:
		return `ERROR`
	case StateTimeout:
		return `TIMEOUT`
	default:
		return `UNKNOWN`
	}
}

// rank orders states, such that transitions may only increase it.
func (s State) rank() int {
	switch s {
	case StateCreate:
		return 0
	case StateRun, StateError, StateTimeout:
		return 1
	case StateStopping:
		return 2
	case StateStop:
		return 3
	default:
		return -1
	}
}

// stateCell is the readiness signal, and the authoritative state value.
// Reads are lock-free. It must be initialised with init.
type stateCell struct {
	mu    sync.Mutex
	cond  sync.Cond
	value atomic.Int32
}

func (c *stateCell) init() {
	c.cond.L = &c.mu
}

func (c *stateCell) load() State {
	return State(c.value.Load())
}

// advance moves to the given state, if it ranks higher than the current one,
// waking any waiters.
func (c *stateCell) advance(to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if to.rank() <= c.load().rank() {
		return false
	}
	c.value.Store(int32(to))
	c.cond.Broadcast()
	return true
}

// waitInitialized blocks until the state leaves StateCreate, or the timeout
// elapses, returning false on timeout.
func (c *stateCell) waitInitialized(timeout time.Duration) bool {
	var expired bool
	timer := time.AfterFunc(timeout, func() {
		c.mu.Lock()
		expired = true
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer timer.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.load() == StateCreate && !expired {
		c.cond.Wait()
	}
	return c.load() != StateCreate
}
