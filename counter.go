// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

import (
	"sync"
)

// executorCounter tracks live instance threads, so that teardown of the
// process context can wait for them. It must be initialised with
// newExecutorCounter.
type executorCounter struct {
	mu   sync.Mutex
	cond sync.Cond
	n    int
}

func (c *executorCounter) enter() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *executorCounter) leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n--
	if c.n < 0 {
		panic(`jscript: executor counter underflow`)
	}
	if c.n == 0 {
		c.cond.Broadcast()
	}
}

// wait blocks until the count reaches zero.
func (c *executorCounter) wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.n != 0 {
		c.cond.Wait()
	}
}

func (c *executorCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newExecutorCounter() *executorCounter {
	c := new(executorCounter)
	c.cond.L = &c.mu
	return c
}
