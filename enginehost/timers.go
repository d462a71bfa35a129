// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package enginehost

import (
	"math"
	"slices"

	"github.com/dop251/goja"
)

type (
	timerKind uint8

	// timer is a live timer, keyed by the id exposed to scripts. Ids are
	// allocated by the host, so they are unique across kinds.
	timer struct {
		id   uint64
		kind timerKind
	}
)

const (
	kindTimeout timerKind = iota + 1
	kindInterval
	kindImmediate
)

func (h *Host) bindTimers() error {
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		`setTimeout`:     h.setTimeout,
		`clearTimeout`:   h.clearTimeout,
		`setInterval`:    h.setInterval,
		`clearInterval`:  h.clearInterval,
		`setImmediate`:   h.setImmediate,
		`clearImmediate`: h.clearImmediate,
		`queueMicrotask`: h.queueMicrotask,
	} {
		if err := h.runtime.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) setTimeout(call goja.FunctionCall) goja.Value {
	fn := h.callableArgument(call, `setTimeout`)
	args := restArguments(call, 2)
	key := h.nextTimerKey()
	id, err := h.js.SetTimeout(func() {
		if _, ok := h.timers[key]; !ok {
			return
		}
		h.invoke(fn, args)
		h.unref(key)
	}, delayArgument(call.Argument(1)))
	if err != nil {
		panic(h.runtime.NewGoError(err))
	}
	h.ref(key, timer{id: id, kind: kindTimeout})
	return h.runtime.ToValue(key)
}

func (h *Host) setInterval(call goja.FunctionCall) goja.Value {
	fn := h.callableArgument(call, `setInterval`)
	args := restArguments(call, 2)
	key := h.nextTimerKey()
	id, err := h.js.SetInterval(func() {
		if _, ok := h.timers[key]; !ok {
			return
		}
		h.invoke(fn, args)
	}, delayArgument(call.Argument(1)))
	if err != nil {
		panic(h.runtime.NewGoError(err))
	}
	h.ref(key, timer{id: id, kind: kindInterval})
	return h.runtime.ToValue(key)
}

func (h *Host) setImmediate(call goja.FunctionCall) goja.Value {
	fn := h.callableArgument(call, `setImmediate`)
	args := restArguments(call, 1)
	key := h.nextTimerKey()
	id, err := h.js.SetImmediate(func() {
		if _, ok := h.timers[key]; !ok {
			return
		}
		h.invoke(fn, args)
		h.unref(key)
	})
	if err != nil {
		panic(h.runtime.NewGoError(err))
	}
	h.ref(key, timer{id: id, kind: kindImmediate})
	return h.runtime.ToValue(key)
}

// clearTimeout and clearInterval are interchangeable.
func (h *Host) clearTimeout(call goja.FunctionCall) goja.Value {
	h.clearTimer(call.Argument(0), kindTimeout, kindInterval)
	return goja.Undefined()
}

func (h *Host) clearInterval(call goja.FunctionCall) goja.Value {
	h.clearTimer(call.Argument(0), kindTimeout, kindInterval)
	return goja.Undefined()
}

func (h *Host) clearImmediate(call goja.FunctionCall) goja.Value {
	h.clearTimer(call.Argument(0), kindImmediate)
	return goja.Undefined()
}

// clearTimer cancels the timer identified by v, if it is live and of one of
// the given kinds. Anything else is ignored.
func (h *Host) clearTimer(v goja.Value, kinds ...timerKind) {
	key, ok := timerArgument(v)
	if !ok {
		return
	}
	t, ok := h.timers[key]
	if !ok || !slices.Contains(kinds, t.kind) {
		return
	}
	h.unref(key)
	switch t.kind {
	case kindTimeout:
		_ = h.js.ClearTimeout(t.id)
	case kindInterval:
		_ = h.js.ClearInterval(t.id)
	case kindImmediate:
		_ = h.js.ClearImmediate(t.id)
	}
}

func (h *Host) nextTimerKey() uint64 {
	h.lastTimerKey++
	return h.lastTimerKey
}

func (h *Host) queueMicrotask(call goja.FunctionCall) goja.Value {
	fn := h.callableArgument(call, `queueMicrotask`)
	if err := h.js.QueueMicrotask(func() {
		h.invoke(fn, nil)
	}); err != nil {
		panic(h.runtime.NewGoError(err))
	}
	return goja.Undefined()
}

// invoke calls fn, reporting anything it throws.
func (h *Host) invoke(fn goja.Callable, args []goja.Value) {
	h.safely(func() {
		if _, err := fn(goja.Undefined(), args...); err != nil {
			h.reportError(err)
		}
	})
}

func (h *Host) callableArgument(call goja.FunctionCall, name string) goja.Callable {
	if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
		return fn
	}
	panic(h.runtime.NewTypeError(name + ` requires a function as first argument`))
}

// delayArgument converts a delay in milliseconds, treating anything that
// isn't a positive number as zero.
func delayArgument(v goja.Value) int {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	f := v.ToFloat()
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	default:
		return int(f)
	}
}

func timerArgument(v goja.Value) (uint64, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false
	}
	f := v.ToFloat()
	if math.IsNaN(f) || f < 1 || f > math.MaxInt64 {
		return 0, false
	}
	return uint64(f), true
}

func restArguments(call goja.FunctionCall, from int) []goja.Value {
	if len(call.Arguments) <= from {
		return nil
	}
	return append([]goja.Value(nil), call.Arguments[from:]...)
}
