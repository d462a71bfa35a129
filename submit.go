// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-jscript/enginehost"
	"github.com/joeycumines/go-jscript/refcount"
)

// envelope is one submitted script, owned by its wake-up handle, and
// disposed by the handle's close callback.
type envelope struct {
	instance  refcount.Ptr[*Instance]
	name      string
	script    string
	callbacks []Callback
}

// RunScriptText submits a script to run on the instance thread, returning
// once it has been posted. Callbacks with a Name and Function are installed
// as globals, immediately before the script runs. Errors thrown by the
// script are reported to the diagnostic sink, and the logger.
//
// Submissions are each run exactly once, to completion, but the order of
// concurrent submissions is unspecified. A submission that races with
// [StopInstance] may run while the instance is stopping, or not at all.
func RunScriptText(x *Instance, script string, callbacks ...Callback) error {
	if x == nil {
		return ErrNilInstance
	}
	if script == `` {
		return ErrEmptyScript
	}
	if !x.IsRunning() {
		return ErrNotRunning
	}
	host := x.host.Load()
	if host == nil {
		return ErrNotRunning
	}

	env := &envelope{
		instance:  refcount.New(x),
		name:      fmt.Sprintf(`jscript-%d-%d.js`, x.id, x.submissions.Add(1)),
		script:    script,
		callbacks: filterCallbacks(callbacks),
	}
	handle := host.NewAsync(env.execute, env.dispose)
	if err := handle.Send(); err != nil {
		handle.Close()
		return fmt.Errorf(`%w: %w`, ErrNotRunning, err)
	}
	return nil
}

func (e *envelope) execute(handle *enginehost.Async) {
	defer handle.Close()

	x := e.instance.Get()
	x.isolateMu.Lock()
	defer x.isolateMu.Unlock()

	rt := handle.Host().Runtime()

	for _, c := range e.callbacks {
		if err := rt.Set(c.Name, c.bind(rt)); err != nil {
			x.logger.Err().Str(`callback`, c.Name).Err(err).Log(`jscript: failed to install callback`)
			return
		}
	}

	prog, err := goja.Compile(e.name, e.script, false)
	if err != nil {
		x.scriptError(e.name, err)
		return
	}

	v, err := rt.RunProgram(prog)
	if err != nil {
		x.scriptError(e.name, err)
		return
	}
	if goja.IsUndefined(v) {
		x.logger.Debug().Str(`source`, e.name).Log(`jscript: script completed without a result`)
	}
}

func (e *envelope) dispose(*enginehost.Async) {
	e.instance.Reset()
	e.callbacks = nil
	e.script = ``
}
