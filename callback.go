// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

import (
	"github.com/dop251/goja"
)

type (
	// Callback describes a native function, to be installed as a global
	// before a submitted script runs. Entries without a Name or Function are
	// ignored.
	Callback struct {
		// Function is called on the instance thread.
		Function FunctionCallback
		// External is passed through to Function, as CallbackArgs.External.
		External any
		Name     string
	}

	// FunctionCallback implements a [Callback]. Returning nil is equivalent
	// to returning undefined. Panicking with a value from the runtime (e.g.
	// Runtime.NewTypeError) throws it into the calling script.
	FunctionCallback func(args CallbackArgs) goja.Value

	// CallbackArgs is the input to a [FunctionCallback].
	CallbackArgs struct {
		Runtime  *goja.Runtime
		External any
		goja.FunctionCall
	}

	// ConsoleType identifies the console method that produced a message.
	ConsoleType int

	// LogCallback receives console output from one instance, on the
	// instance thread. See [SetLogCallback].
	LogCallback func(kind ConsoleType, message string)

	// DiagnosticSink receives script errors and console output from every
	// instance. See [WithDiagnosticSink].
	DiagnosticSink func(message string)
)

const (
	// ConsoleLog covers console.log, console.info and console.debug.
	ConsoleLog ConsoleType = iota
	// ConsoleWarn covers console.warn.
	ConsoleWarn
	// ConsoleError covers console.error.
	ConsoleError
)

func (t ConsoleType) String() string {
	switch t {
	case ConsoleWarn:
		return `warn`
	case ConsoleError:
		return `error`
	default:
		return `log`
	}
}

func (c Callback) valid() bool {
	return c.Name != `` && c.Function != nil
}

// bind adapts the callback to a native function of the runtime.
func (c Callback) bind(runtime *goja.Runtime) func(goja.FunctionCall) goja.Value {
	fn, external := c.Function, c.External
	return func(call goja.FunctionCall) goja.Value {
		if v := fn(CallbackArgs{FunctionCall: call, Runtime: runtime, External: external}); v != nil {
			return v
		}
		return goja.Undefined()
	}
}

func filterCallbacks(callbacks []Callback) []Callback {
	var filtered []Callback
	for _, c := range callbacks {
		if c.valid() {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
