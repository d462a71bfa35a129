// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

import (
	"errors"
	"slices"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-jscript/enginehost"
)

// trackRejection is the runtime's promise rejection tracker. Rejections
// that are still unhandled once the current task (and its promise jobs)
// completes are reported.
func (x *Instance) trackRejection(host *enginehost.Host, p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		x.rejections = append(x.rejections, p)
		if x.rejectionCheck {
			return
		}
		if err := host.PostWork(x.checkRejections); err != nil {
			x.logger.Debug().Err(err).Log(`jscript: dropped rejection check`)
			return
		}
		x.rejectionCheck = true
	case goja.PromiseRejectionHandle:
		if i := slices.Index(x.rejections, p); i >= 0 {
			x.rejections = slices.Delete(x.rejections, i, i+1)
		}
	}
}

func (x *Instance) checkRejections() {
	x.isolateMu.Lock()
	defer x.isolateMu.Unlock()

	pending := x.rejections
	x.rejections = nil
	x.rejectionCheck = false

	for _, p := range pending {
		if p.State() != goja.PromiseStateRejected {
			continue
		}
		x.unhandledRejection(p)
	}
}

// unhandledRejection routes a rejection to the unhandledRejection listeners
// if any, or to diagnostics.
func (x *Instance) unhandledRejection(p *goja.Promise) {
	reason := p.Result()
	if len(x.rejectionListeners) == 0 {
		x.scriptError(`unhandledRejection`, rejectionError{reason: reason, stack: x.proc.opts.stackTraces})
		return
	}

	listeners := x.rejectionListeners
	x.rejectionListeners = nil
	defer func() { x.rejectionListeners = append(listeners, x.rejectionListeners...) }()

	for _, fn := range listeners {
		x.callListener(fn, reason)
	}
}

// rejectionError describes the reason of an unhandled rejection.
type rejectionError struct {
	reason goja.Value
	stack  bool
}

var errRejection = errors.New(`jscript: unhandled promise rejection`)

func (e rejectionError) Error() string {
	return errRejection.Error() + `: ` + describeValue(e.reason, e.stack)
}

func (e rejectionError) Unwrap() error { return errRejection }

// describeValue renders a thrown value, using its stack if requested and
// available.
func describeValue(v goja.Value, stack bool) (s string) {
	if v == nil {
		return `undefined`
	}
	defer func() {
		if recover() != nil {
			s = `[unprintable value]`
		}
	}()
	if obj, ok := v.(*goja.Object); ok && stack {
		if st := obj.Get(`stack`); st != nil && !goja.IsUndefined(st) && !goja.IsNull(st) {
			return st.String()
		}
	}
	return v.String()
}
