// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

// consolePrinter implements the console module's printer interface, for one
// instance.
type consolePrinter struct {
	instance *Instance
}

func (p consolePrinter) Log(s string)   { p.instance.console(ConsoleLog, s) }
func (p consolePrinter) Warn(s string)  { p.instance.console(ConsoleWarn, s) }
func (p consolePrinter) Error(s string) { p.instance.console(ConsoleError, s) }

func (x *Instance) console(kind ConsoleType, message string) {
	x.logger.Debug().
		Stringer(`console`, kind).
		Log(message)
	x.proc.diagnostic(message)
	if cb := x.logCallback.Load(); cb != nil {
		(*cb)(kind, message)
	}
}
