// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// process is the process context, shared by every instance created while
// it was current.
type process struct {
	opts    *processOptions
	logger  *logiface.Logger[logiface.Event]
	counter *executorCounter
	nextID  atomic.Uint64
}

var current atomic.Pointer[process]

// Initialize sets up the process context, which must happen before any
// instance is created. Only the first call (since the last [Uninitialize])
// has any effect: later calls return nil, ignoring their options.
func Initialize(opts ...Option) error {
	if current.Load() != nil {
		return nil
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return err
	}

	p := &process{
		opts:    cfg,
		logger:  cfg.logger,
		counter: newExecutorCounter(),
	}
	if !current.CompareAndSwap(nil, p) {
		return nil
	}

	if len(cfg.nodePath) != 0 {
		nodePath := strings.Join(cfg.nodePath, string(os.PathListSeparator))
		if err := os.Setenv(`NODE_PATH`, nodePath); err != nil {
			p.logger.Warning().Err(err).Log(`jscript: failed to export NODE_PATH`)
		}
	}

	p.logger.Info().
		Int(`node_path`, len(cfg.nodePath)).
		Dur(`readiness_timeout`, cfg.readinessTimeout).
		Log(`jscript: initialized`)

	return nil
}

// Uninitialize tears down the process context, then blocks until every
// instance thread created under it has exited. It does not stop instances:
// callers must [StopInstance] each of them, or it will block forever. It is
// a no-op if not initialized.
func Uninitialize() {
	p := current.Swap(nil)
	if p == nil {
		return
	}
	p.logger.Debug().
		Int(`live_instances`, p.counter.count()).
		Log(`jscript: uninitializing`)
	p.counter.wait()
	p.logger.Info().Log(`jscript: uninitialized`)
}

// LiveInstances returns the number of instance threads that have not yet
// exited, for the current process context.
func LiveInstances() int {
	if p := current.Load(); p != nil {
		return p.counter.count()
	}
	return 0
}

func (p *process) diagnostic(message string) {
	if p.opts.diagnosticSink != nil {
		p.opts.diagnosticSink(message)
	}
}
