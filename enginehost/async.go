// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package enginehost

import (
	"errors"
	"sync/atomic"

	"github.com/joeycumines/go-eventloop"
)

// Async is a one-shot wake-up handle, which runs a callback on the loop of
// the host that created it. It does not keep the loop alive.
//
// Closing is two-phase: [Async.Close] marks the handle as closing, and the
// close callback runs later, on the loop, after any callback already queued
// by [Async.Send] has been skipped or has run. The close callback is
// guaranteed to run exactly once, including if the host is disposed first.
type Async struct {
	host    *Host
	cb      func(*Async)
	onClose func(*Async)
	sent    atomic.Bool
	closing atomic.Bool
	closed  atomic.Bool
}

// NewAsync registers a new async handle. Both callbacks run on the loop
// (onClose may instead run inline, on the goroutine that closes or disposes
// a host that has already terminated). Either may be nil.
func (h *Host) NewAsync(cb func(*Async), onClose func(*Async)) *Async {
	a := &Async{
		host:    h,
		cb:      cb,
		onClose: onClose,
	}
	h.asyncMu.Lock()
	h.asyncs[a] = struct{}{}
	h.asyncMu.Unlock()
	return a
}

// Host returns the host the handle belongs to.
func (a *Async) Host() *Host {
	return a.host
}

// Send queues the callback. It may be called from any goroutine, at most
// once.
func (a *Async) Send() error {
	if a.closing.Load() {
		return ErrAsyncClosing
	}
	if !a.sent.CompareAndSwap(false, true) {
		return ErrAsyncSent
	}
	if err := a.host.loop.Submit(a.fire); err != nil {
		if errors.Is(err, eventloop.ErrLoopTerminated) {
			return ErrHostClosed
		}
		return err
	}
	return nil
}

// Close begins closing the handle. It may be called from any goroutine,
// any number of times.
func (a *Async) Close() {
	if !a.closing.CompareAndSwap(false, true) {
		return
	}
	if err := a.host.loop.Submit(a.finish); err != nil {
		a.finish()
	}
}

// IsClosing reports whether Close has been called.
func (a *Async) IsClosing() bool {
	return a.closing.Load()
}

func (a *Async) fire() {
	if a.closing.Load() || a.cb == nil {
		return
	}
	a.host.safely(func() { a.cb(a) })
}

func (a *Async) finish() {
	if !a.closed.CompareAndSwap(false, true) {
		return
	}
	a.host.asyncMu.Lock()
	delete(a.host.asyncs, a)
	a.host.asyncMu.Unlock()
	if a.onClose != nil {
		a.host.safely(func() { a.onClose(a) })
	}
}

func (h *Host) openAsyncs() []*Async {
	h.asyncMu.Lock()
	defer h.asyncMu.Unlock()
	open := make([]*Async, 0, len(h.asyncs))
	for a := range h.asyncs {
		open = append(open, a)
	}
	return open
}
