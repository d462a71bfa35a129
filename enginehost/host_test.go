// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package enginehost

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-eventloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHost(t *testing.T, opts ...Option) *Host {
	t.Helper()
	h, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(h.CloseAndDispose)
	return h
}

func runHost(t *testing.T, h *Host) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.RunUntilIdle(ctx))
}

func postScript(t *testing.T, h *Host, src string) {
	t.Helper()
	require.NoError(t, h.PostWork(func() {
		if _, err := h.Runtime().RunString(src); err != nil {
			h.reportError(err)
		}
	}))
}

func TestHost_exitsWhenNothingScheduled(t *testing.T) {
	h := newTestHost(t)
	runHost(t, h)
	assert.True(t, h.Exiting())
	assert.Equal(t, eventloop.StateTerminated, h.Loop().State())
}

func TestHost_timeoutKeepsLoopAlive(t *testing.T) {
	h := newTestHost(t)
	postScript(t, h, `
		var order = [];
		setTimeout(function (a, b) { order.push(a + b) }, 30, 1, 2);
		setImmediate(function () { order.push('immediate') });
		queueMicrotask(function () { order.push('microtask') });
	`)
	runHost(t, h)

	assert.ElementsMatch(t, []any{`microtask`, `immediate`, int64(3)}, h.Runtime().Get(`order`).Export())
	assert.Equal(t, 0, h.Refs())
}

func TestHost_intervalHoldsReferenceUntilCleared(t *testing.T) {
	h := newTestHost(t)
	postScript(t, h, `
		var ticks = 0;
		var id = setInterval(function () {
			if (++ticks === 3) {
				clearInterval(id);
			}
		}, 5);
	`)
	runHost(t, h)
	assert.Equal(t, int64(3), h.Runtime().Get(`ticks`).ToInteger())
}

func TestHost_clearTimeoutReleasesReference(t *testing.T) {
	h := newTestHost(t)
	postScript(t, h, `
		var fired = false;
		var id = setTimeout(function () { fired = true }, 60000);
		clearTimeout(id);
		clearTimeout(id);
		clearTimeout(undefined);
	`)
	runHost(t, h)
	assert.False(t, h.Runtime().Get(`fired`).ToBoolean())
}

func TestHost_clearTimeoutAndClearIntervalAreInterchangeable(t *testing.T) {
	h := newTestHost(t)
	postScript(t, h, `
		var ticks = 0, fired = false, immediate = false;
		var timeout = setTimeout(function () { fired = true }, 60000);
		var interval = setInterval(function () { ticks++ }, 60000);
		var im = setImmediate(function () { immediate = true });
		var ids = [timeout, interval, im];
		clearTimeout(interval);
		clearInterval(timeout);
		clearTimeout(im);
	`)
	runHost(t, h)

	rt := h.Runtime()
	assert.False(t, rt.Get(`fired`).ToBoolean())
	assert.Equal(t, int64(0), rt.Get(`ticks`).ToInteger())
	assert.True(t, rt.Get(`immediate`).ToBoolean(), `clearTimeout must not cancel an immediate`)
	ids := rt.Get(`ids`).Export().([]any)
	require.Len(t, ids, 3)
	assert.Len(t, map[any]struct{}{ids[0]: {}, ids[1]: {}, ids[2]: {}}, 3, `timer ids must be unique across kinds`)
	assert.Equal(t, 0, h.Refs())
}

func TestHost_beforeExitMayRearm(t *testing.T) {
	h := newTestHost(t)
	var calls int
	h.OnBeforeExit(func() {
		calls++
		if calls == 1 {
			_, err := h.Runtime().RunString(`var late = false; setTimeout(function () { late = true }, 10)`)
			require.NoError(t, err)
		}
	})
	runHost(t, h)
	assert.Equal(t, 2, calls)
	assert.True(t, h.Runtime().Get(`late`).ToBoolean())
}

func TestHost_requestExitStopsKeepAlive(t *testing.T) {
	h := newTestHost(t)
	postScript(t, h, `setInterval(function () {}, 1000)`)
	require.NoError(t, h.PostWork(func() {
		go func() {
			time.Sleep(20 * time.Millisecond)
			h.RequestExit()
			h.RequestExit()
		}()
	}))
	runHost(t, h)
	assert.Equal(t, 1, h.Refs())
}

func TestHost_errorHandlerReceivesTimerExceptions(t *testing.T) {
	var errs []error
	h := newTestHost(t, WithErrorHandler(func(err error) { errs = append(errs, err) }))
	postScript(t, h, `setTimeout(function () { throw new Error('boom') }, 0)`)
	require.NoError(t, h.PostWork(func() { panic(`native failure`) }))
	runHost(t, h)

	require.Len(t, errs, 2)
	var exception *goja.Exception
	var panicErr eventloop.PanicError
	for _, err := range errs {
		switch {
		case errors.As(err, &exception):
			assert.Contains(t, exception.Error(), `boom`)
		case errors.As(err, &panicErr):
			assert.Equal(t, `native failure`, panicErr.Value)
		default:
			t.Errorf(`unexpected error: %v`, err)
		}
	}
}

func TestHost_timerRequiresFunction(t *testing.T) {
	h := newTestHost(t)
	var caught error
	h.SetErrorHandler(func(err error) { caught = err })
	postScript(t, h, `setTimeout('not a function', 0)`)
	runHost(t, h)
	require.Error(t, caught)
	assert.Contains(t, caught.Error(), `TypeError`)
}

func TestHost_emitExit(t *testing.T) {
	h := newTestHost(t)
	var got []int
	h.OnExit(func(code int) { got = append(got, code) })
	h.OnExit(func(code int) { got = append(got, code+1) })
	runHost(t, h)
	h.EmitExit(7)
	h.EmitExit(9)
	assert.Equal(t, []int{7, 8}, got)
}

func TestHost_metrics(t *testing.T) {
	h := newTestHost(t, WithLoopMetrics(true))
	postScript(t, h, `1 + 1`)
	runHost(t, h)
	assert.NotNil(t, h.Metrics())
}

func TestAsync_oneShot(t *testing.T) {
	h := newTestHost(t)
	var fired, closed atomic.Int32
	a := h.NewAsync(func(a *Async) {
		fired.Add(1)
		a.Close()
		a.Close()
	}, func(*Async) { closed.Add(1) })
	require.NoError(t, a.Send())
	assert.ErrorIs(t, a.Send(), ErrAsyncSent)
	runHost(t, h)

	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, int32(1), closed.Load())
	assert.True(t, a.IsClosing())
	assert.Empty(t, h.openAsyncs())
}

func TestAsync_closeBeforeFireSkipsCallback(t *testing.T) {
	h := newTestHost(t)
	var fired, closed atomic.Int32
	a := h.NewAsync(func(*Async) { fired.Add(1) }, func(*Async) { closed.Add(1) })
	require.NoError(t, a.Send())
	a.Close()
	assert.ErrorIs(t, a.Send(), ErrAsyncClosing)
	runHost(t, h)

	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, int32(1), closed.Load())
}

func TestHost_closeAndDisposeForceClosesHandles(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	var closed atomic.Int32
	var nested *Async
	h.NewAsync(nil, func(*Async) {
		closed.Add(1)
		// opened during disposal, must still be closed
		nested = h.NewAsync(nil, func(*Async) { closed.Add(1) })
	})

	runHost(t, h)
	h.CloseAndDispose()
	h.CloseAndDispose()

	assert.Equal(t, int32(2), closed.Load())
	require.NotNil(t, nested)
	assert.True(t, nested.IsClosing())
	assert.ErrorIs(t, h.PostWork(func() {}), ErrHostClosed)
	assert.Empty(t, h.openAsyncs())
}

func TestHost_disposeWithoutRunning(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	var ran atomic.Bool
	require.NoError(t, h.PostWork(func() { ran.Store(true) }))
	h.CloseAndDispose()
	assert.False(t, ran.Load())
	assert.Empty(t, h.openAsyncs())
	assert.NoError(t, h.RunUntilIdle(context.Background()))
}
