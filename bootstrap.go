// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/process"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-jscript/enginehost"
)

const (
	setRunStateName   = `__jscript_setRunState`
	setErrorStateName = `__jscript_setErrorState`

	bootstrapScriptName = `jscript-bootstrap.js`

	// defaultBootstrapScript evaluates to a function accepting the framework
	// module path, which may be empty. The framework may export a promise,
	// which must resolve before the instance is ready.
	defaultBootstrapScript = `(function (framework) {
	function describe(err) {
		return err && err.stack ? err.stack : String(err);
	}
	process.on('uncaughtException', function (err) {
		console.error(describe(err));
	});
	process.on('unhandledRejection', function (reason) {
		console.error(describe(reason));
	});
	console.log('Start load framework.');
	new Promise(function (resolve) {
		resolve(framework ? (global.framework = require(framework)) : undefined);
	}).then(function () {
		setInterval(function () {}, 1000);
		console.log('framework loaded!');
		global.` + setRunStateName + `();
	}).catch(function (err) {
		console.error(describe(err));
		global.` + setErrorStateName + `();
	});
})`
)

// bootstrap prepares the global scope, then runs the bootstrap script, on
// the loop.
func (x *Instance) bootstrap(host *enginehost.Host) {
	x.isolateMu.Lock()
	defer x.isolateMu.Unlock()

	rt := host.Runtime()
	opts := x.proc.opts

	if err := x.installGlobals(host, rt); err != nil {
		x.logger.Err().Err(err).Log(`jscript: failed to install globals`)
		x.state.advance(StateError)
		return
	}

	src, args := defaultBootstrapScript, []goja.Value{rt.ToValue(opts.frameworkModule)}
	if opts.bootstrapScript != `` {
		src, args = opts.bootstrapScript, nil
	}

	err := func() error {
		prog, err := goja.Compile(bootstrapScriptName, src, false)
		if err != nil {
			return err
		}
		v, err := rt.RunProgram(prog)
		if err != nil || args == nil {
			return err
		}
		fn, ok := goja.AssertFunction(v)
		if !ok {
			return errors.New(`jscript: default bootstrap script is not a function`)
		}
		_, err = fn(goja.Undefined(), args...)
		return err
	}()
	if err != nil {
		x.scriptError(bootstrapScriptName, err)
		x.state.advance(StateError)
	}
}

func (x *Instance) installGlobals(host *enginehost.Host, rt *goja.Runtime) error {
	opts := x.proc.opts

	globals := map[string]any{
		`global`: rt.GlobalObject(),
		setRunStateName: func(goja.FunctionCall) goja.Value {
			x.announce(StateRun)
			return goja.Undefined()
		},
		setErrorStateName: func(goja.FunctionCall) goja.Value {
			x.announce(StateError)
			return goja.Undefined()
		},
	}
	if opts.origin != `` {
		globals[`DEFAULTORIGIN`] = opts.origin
	}
	if opts.externalOrigin != `` {
		globals[`EXTERNALORIGIN`] = opts.externalOrigin
	}
	for name, value := range globals {
		if err := rt.Set(name, value); err != nil {
			return err
		}
	}

	rt.SetPromiseRejectionTracker(func(p *goja.Promise, op goja.PromiseRejectionOperation) {
		x.trackRejection(host, p, op)
	})

	registry := require.NewRegistry(require.WithGlobalFolders(opts.nodePath...))
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(consolePrinter{instance: x}))
	registry.Enable(rt)
	console.Enable(rt)
	process.Enable(rt)

	return x.extendProcess(host, rt)
}

// extendProcess adds the parts of the process object that the instance
// provides.
func (x *Instance) extendProcess(host *enginehost.Host, rt *goja.Runtime) error {
	obj, ok := rt.Get(`process`).(*goja.Object)
	if !ok {
		return errors.New(`jscript: process global is not an object`)
	}

	opts := x.proc.opts
	for name, value := range map[string]any{
		`argv`:     stringArray(rt, opts.args),
		`execArgv`: stringArray(rt, opts.execArgs),
		`exitCode`: 0,
		`on`: func(call goja.FunctionCall) goja.Value {
			x.addProcessListener(host, rt, call.Argument(0).String(), call.Argument(1))
			return call.This
		},
		`exit`: func(call goja.FunctionCall) goja.Value {
			if code := call.Argument(0); !goja.IsUndefined(code) {
				_ = obj.Set(`exitCode`, code.ToInteger())
			}
			x.requestStop()
			return goja.Undefined()
		},
	} {
		if err := obj.Set(name, value); err != nil {
			return err
		}
	}

	return nil
}

func (x *Instance) addProcessListener(host *enginehost.Host, rt *goja.Runtime, event string, listener goja.Value) {
	fn, ok := goja.AssertFunction(listener)
	if !ok {
		panic(rt.NewTypeError(`process.on requires a function listener`))
	}
	switch event {
	case `beforeExit`:
		host.OnBeforeExit(func() {
			x.callListener(fn, rt.ToValue(x.processExitCode(rt)))
		})
	case `exit`:
		host.OnExit(func(code int) {
			x.callListener(fn, rt.ToValue(code))
		})
	case `uncaughtException`:
		x.uncaught = append(x.uncaught, fn)
	case `unhandledRejection`:
		x.rejectionListeners = append(x.rejectionListeners, fn)
	default:
		x.logger.Debug().
			Str(`event`, event).
			Log(`jscript: ignoring listener for unsupported process event`)
	}
}

func (x *Instance) callListener(fn goja.Callable, args ...goja.Value) {
	if _, err := fn(goja.Undefined(), args...); err != nil {
		x.uncaughtError(err)
	}
}

// announce handles the bootstrap control functions.
func (x *Instance) announce(state State) {
	if !x.state.advance(state) {
		x.logger.Warning().
			Stringer(`state`, x.State()).
			Stringer(`requested`, state).
			Log(`jscript: ignored late state change`)
		return
	}
	x.logger.Info().
		Stringer(`state`, state).
		Log(`jscript: instance initialized`)
}

// uncaughtError routes errors thrown from timers and process listeners, to
// the uncaughtException listeners if any, or to diagnostics.
func (x *Instance) uncaughtError(err error) {
	host := x.host.Load()
	if host == nil || len(x.uncaught) == 0 {
		x.scriptError(`uncaught`, err)
		return
	}

	rt := host.Runtime()
	var value goja.Value
	var exception *goja.Exception
	if errors.As(err, &exception) {
		value = exception.Value()
	} else {
		value = rt.NewGoError(err)
	}

	// listeners are not re-entrant
	listeners := x.uncaught
	x.uncaught = nil
	defer func() { x.uncaught = append(listeners, x.uncaught...) }()

	for _, fn := range listeners {
		if _, err := fn(goja.Undefined(), value); err != nil {
			x.scriptError(`uncaughtException`, err)
		}
	}
}

// scriptError reports an error thrown by a script.
func (x *Instance) scriptError(source string, err error) {
	message := err.Error()
	var exception *goja.Exception
	if x.proc.opts.stackTraces && errors.As(err, &exception) {
		message = exception.String()
	}
	x.logger.Warning().
		Str(`source`, source).
		Err(err).
		Log(`jscript: script error`)
	x.proc.diagnostic(message)
}

// emitExit calls the exit listeners, and returns the final exit code.
func (x *Instance) emitExit(host *enginehost.Host) int {
	x.isolateMu.Lock()
	defer x.isolateMu.Unlock()
	rt := host.Runtime()
	code, _ := readExitCode(rt)
	host.EmitExit(code)
	return x.processExitCode(rt)
}

// processExitCode reads process.exitCode, reporting a value that cannot be
// converted, which is treated as 0.
func (x *Instance) processExitCode(rt *goja.Runtime) int {
	code, err := readExitCode(rt)
	if err != nil {
		x.scriptError(`process.exitCode`, err)
	}
	return code
}

func readExitCode(rt *goja.Runtime) (code int, err error) {
	defer func() {
		if r := recover(); r != nil {
			code, err = 0, fmt.Errorf(`jscript: invalid process.exitCode: %v`, r)
		}
	}()
	if exception := rt.Try(func() { code = exitCodeValue(rt) }); exception != nil {
		return 0, fmt.Errorf(`jscript: invalid process.exitCode: %w`, exception)
	}
	return code, nil
}

func exitCodeValue(rt *goja.Runtime) int {
	obj, ok := rt.Get(`process`).(*goja.Object)
	if !ok {
		return 0
	}
	v := obj.Get(`exitCode`)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	return int(v.ToInteger())
}

func stringArray(rt *goja.Runtime, values []string) *goja.Object {
	items := make([]any, len(values))
	for i, v := range values {
		items[i] = v
	}
	return rt.NewArray(items...)
}
