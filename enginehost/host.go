// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package enginehost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

type (
	// Host owns one event loop and one runtime. See the package docs.
	Host struct {
		loop    *eventloop.Loop
		js      *eventloop.JS
		runtime *goja.Runtime
		logger  *logiface.Logger[logiface.Event]

		errorHandler atomic.Pointer[ErrorHandler]

		// loop thread only
		timers       map[uint64]timer
		lastTimerKey uint64
		beforeExit   []func()
		exitHooks    []func(code int)
		refs         int
		idlePending  bool

		asyncMu sync.Mutex
		asyncs  map[*Async]struct{}

		disposeOnce sync.Once
		exiting     atomic.Bool
	}

	// ErrorHandler receives errors that escape work run on the loop,
	// including uncaught exceptions thrown by timer callbacks, and recovered
	// panics (as [eventloop.PanicError]).
	ErrorHandler func(err error)
)

// New allocates a loop and a runtime, and binds the timer globals.
func New(opts ...Option) (*Host, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	loop, err := eventloop.New(eventloop.WithMetrics(cfg.loopMetrics))
	if err != nil {
		return nil, fmt.Errorf("enginehost: failed to create loop: %w", err)
	}

	js, err := eventloop.NewJS(loop)
	if err != nil {
		_ = loop.Close()
		return nil, fmt.Errorf("enginehost: failed to create JS adapter: %w", err)
	}

	runtime := cfg.runtime
	if runtime == nil {
		runtime = goja.New()
	}

	h := &Host{
		loop:    loop,
		js:      js,
		runtime: runtime,
		logger:  cfg.logger,
		timers:  make(map[uint64]timer),
		asyncs:  make(map[*Async]struct{}),
	}
	if cfg.errorHandler != nil {
		h.SetErrorHandler(cfg.errorHandler)
	}

	if err := h.bindTimers(); err != nil {
		_ = loop.Close()
		return nil, err
	}

	return h, nil
}

// Loop returns the event loop.
func (h *Host) Loop() *eventloop.Loop {
	return h.loop
}

// Runtime returns the runtime. It must only be used on the loop, or after
// RunUntilIdle has returned.
func (h *Host) Runtime() *goja.Runtime {
	return h.runtime
}

// Metrics returns a snapshot of the loop metrics, or nil if metrics were
// not enabled.
func (h *Host) Metrics() *eventloop.Metrics {
	return h.loop.Metrics()
}

// Refs returns the number of referenced handles. Loop thread only.
func (h *Host) Refs() int {
	return h.refs
}

// SetErrorHandler replaces the error handler. A nil handler restores the
// default, which logs at warning level.
func (h *Host) SetErrorHandler(handler ErrorHandler) {
	if handler == nil {
		h.errorHandler.Store(nil)
		return
	}
	h.errorHandler.Store(&handler)
}

// Exiting reports whether exit has been requested, either explicitly or
// because the loop went idle.
func (h *Host) Exiting() bool {
	return h.exiting.Load()
}

// RunUntilIdle runs the loop on the calling goroutine, until it exits. A
// loop that was terminated before it started is not an error.
func (h *Host) RunUntilIdle(ctx context.Context) error {
	// an environment that never schedules anything must still exit
	if err := h.loop.Submit(h.scheduleIdleCheck); err != nil {
		if errors.Is(err, eventloop.ErrLoopTerminated) {
			return nil
		}
		return err
	}
	h.logger.Debug().Log(`enginehost: loop running`)
	err := h.loop.Run(ctx)
	if errors.Is(err, eventloop.ErrLoopTerminated) {
		err = nil
	}
	h.logger.Debug().Err(err).Log(`enginehost: loop exited`)
	return err
}

// RequestExit asks the loop to exit, after draining queued work. It does
// not block, and may be called from any goroutine, any number of times.
func (h *Host) RequestExit() {
	if !h.exiting.CompareAndSwap(false, true) {
		return
	}
	// Shutdown blocks until the loop is done, and may be called on the loop
	go func() {
		_ = h.loop.Shutdown(context.Background())
	}()
}

// OnBeforeExit registers fn to be called each time the loop goes idle,
// before exiting. Work scheduled by fn that holds a reference keeps the loop
// alive. Loop thread only.
func (h *Host) OnBeforeExit(fn func()) {
	if fn != nil {
		h.beforeExit = append(h.beforeExit, fn)
	}
}

// OnExit registers fn to be called by [Host.EmitExit]. Loop thread only.
func (h *Host) OnExit(fn func(code int)) {
	if fn != nil {
		h.exitHooks = append(h.exitHooks, fn)
	}
}

// EmitExit calls the exit hooks, in registration order. It must be called
// after RunUntilIdle has returned, on the same goroutine.
func (h *Host) EmitExit(code int) {
	hooks := h.exitHooks
	h.exitHooks = nil
	for _, fn := range hooks {
		h.safely(func() { fn(code) })
	}
}

// CloseAndDispose force-closes any open async handles, drops live timers,
// and closes the loop. Subsequent calls are no-ops. It must not be called
// while RunUntilIdle is in progress.
func (h *Host) CloseAndDispose() {
	h.disposeOnce.Do(func() {
		h.exiting.Store(true)
		_ = h.loop.Close()

		// close callbacks may open further handles
		for {
			open := h.openAsyncs()
			if len(open) == 0 {
				break
			}
			for _, a := range open {
				a.closing.Store(true)
				a.finish()
			}
		}

		clear(h.timers)
		h.refs = 0
		h.beforeExit = nil
		h.exitHooks = nil

		h.logger.Debug().Log(`enginehost: disposed`)
	})
}

// PostWork runs fn on the loop, exactly once, unless the host closes first.
// It may be called from any goroutine.
func (h *Host) PostWork(fn func()) error {
	a := h.NewAsync(func(a *Async) {
		defer a.Close()
		fn()
	}, nil)
	if err := a.Send(); err != nil {
		a.Close()
		return err
	}
	return nil
}

func (h *Host) ref(key uint64, t timer) {
	h.timers[key] = t
	h.refs++
}

// unref releases the reference for key, reporting false if it was not held.
func (h *Host) unref(key uint64) bool {
	if _, ok := h.timers[key]; !ok {
		return false
	}
	delete(h.timers, key)
	h.refs--
	if h.refs == 0 {
		h.scheduleIdleCheck()
	}
	return true
}

// scheduleIdleCheck starts the first of the two idle drains.
func (h *Host) scheduleIdleCheck() {
	if h.refs > 0 || h.idlePending || h.exiting.Load() {
		return
	}
	if err := h.loop.Submit(h.idleCheck); err != nil {
		return
	}
	h.idlePending = true
}

func (h *Host) idleCheck() {
	h.idlePending = false
	if h.refs > 0 || h.exiting.Load() {
		return
	}

	for _, fn := range h.beforeExit {
		h.safely(fn)
	}

	// the second drain, giving anything queued by the hooks a chance to run
	if err := h.loop.Submit(h.finalCheck); err != nil {
		h.RequestExit()
	}
}

func (h *Host) finalCheck() {
	if h.refs > 0 || h.idlePending || h.exiting.Load() {
		return
	}
	h.logger.Debug().Log(`enginehost: loop idle`)
	h.RequestExit()
}

// safely runs fn, reporting any panic.
func (h *Host) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.reportError(eventloop.PanicError{Value: r})
		}
	}()
	fn()
}

func (h *Host) reportError(err error) {
	if err == nil {
		return
	}
	if handler := h.errorHandler.Load(); handler != nil {
		(*handler)(err)
		return
	}
	h.logger.Warning().Err(err).Log(`enginehost: uncaught error`)
}
