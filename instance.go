// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-jscript/enginehost"
	"github.com/joeycumines/go-jscript/refcount"
	"github.com/joeycumines/logiface"
)

// Instance is one JavaScript environment, with its own thread, event loop
// and runtime. Handles are reference counted: [CreateInstance] returns one
// reference, which [StopInstance] consumes. Use [refcount.AddReference] to
// keep using a handle after stopping it.
type Instance struct {
	refcount.Counter

	proc        *process
	logger      *logiface.Logger[logiface.Event]
	host        atomic.Pointer[enginehost.Host]
	logCallback atomic.Pointer[LogCallback]
	done        chan struct{}

	// loop thread only
	uncaught           []goja.Callable
	rejectionListeners []goja.Callable
	rejections         []*goja.Promise
	rejectionCheck     bool

	state       stateCell
	id          uint64
	submissions atomic.Uint64
	isolateMu   sync.Mutex
	exitCode    atomic.Int32
	stopping    atomic.Bool
}

var _ refcount.Object = (*Instance)(nil)

// CreateInstance starts a new instance, blocking until its bootstrap script
// reports readiness, fails, or times out. The instance is returned in each
// of those cases, so check [Instance.State]. It fails only if not
// initialized.
func CreateInstance() (*Instance, error) {
	p := current.Load()
	if p == nil {
		return nil, ErrNotInitialized
	}

	x := &Instance{
		proc: p,
		id:   p.nextID.Add(1),
		done: make(chan struct{}),
	}
	x.state.init()
	x.logger = p.logger.Clone().Uint64(`instance`, x.id).Logger()

	ref := refcount.New(x)
	self := ref.Clone()
	p.counter.enter()
	go x.run(self)

	if !x.state.waitInitialized(p.opts.readinessTimeout) && x.state.advance(StateTimeout) {
		x.logger.Warning().
			Dur(`timeout`, p.opts.readinessTimeout).
			Log(`jscript: instance did not become ready`)
	}

	x.logger.Debug().
		Stringer(`state`, x.State()).
		Log(`jscript: instance created`)

	return ref.Detach(), nil
}

// StopInstance requests that the instance exit, without waiting for it, and
// releases the caller's reference. Stopping an instance that is already
// stopping or stopped has no effect, other than releasing the reference.
func StopInstance(x *Instance) error {
	if x == nil {
		return ErrNilInstance
	}
	var ref refcount.Ptr[*Instance]
	ref.Adopt(x)
	defer ref.Reset()
	x.requestStop()
	return nil
}

// SetLogCallback sets the callback that receives console output, replacing
// any previous callback. A nil callback removes it.
func SetLogCallback(x *Instance, callback LogCallback) error {
	if x == nil {
		return ErrNilInstance
	}
	if callback == nil {
		x.logCallback.Store(nil)
	} else {
		x.logCallback.Store(&callback)
	}
	return nil
}

// ID returns a process-unique identifier.
func (x *Instance) ID() uint64 {
	return x.id
}

// State returns the current state.
func (x *Instance) State() State {
	return x.state.load()
}

// IsRunning reports whether the instance is in [StateRun], and has not begun
// stopping.
func (x *Instance) IsRunning() bool {
	return x.state.load() == StateRun && !x.stopping.Load()
}

// IsStopping reports whether the instance has begun stopping.
func (x *Instance) IsStopping() bool {
	return x.state.load() == StateStopping || x.stopping.Load()
}

// IsInitialized reports whether the instance has left [StateCreate].
func (x *Instance) IsInitialized() bool {
	return x.state.load() != StateCreate
}

// ExitCode returns the value of process.exitCode at exit. It is only
// meaningful once [Instance.Done] is closed.
func (x *Instance) ExitCode() int {
	return int(x.exitCode.Load())
}

// Done is closed once the instance thread has exited.
func (x *Instance) Done() <-chan struct{} {
	return x.done
}

// Metrics returns a snapshot of the event loop metrics, or nil if they are
// not enabled, see [WithLoopMetrics].
func (x *Instance) Metrics() *eventloop.Metrics {
	if h := x.host.Load(); h != nil {
		return h.Metrics()
	}
	return nil
}

// Dispose implements [refcount.Object]. It is called once the last reference
// has been released.
func (x *Instance) Dispose() {
	if h := x.host.Load(); h != nil {
		h.CloseAndDispose()
	}
	x.logger.Debug().Log(`jscript: instance disposed`)
}

func (x *Instance) requestStop() {
	if x.state.load().rank() >= StateStopping.rank() {
		return
	}
	if !x.stopping.CompareAndSwap(false, true) {
		return
	}
	x.state.advance(StateStopping)
	x.logger.Debug().Log(`jscript: stop requested`)
	if h := x.host.Load(); h != nil {
		h.RequestExit()
	}
}

// run is the instance thread.
func (x *Instance) run(self refcount.Ptr[*Instance]) {
	defer x.proc.counter.leave()
	defer self.Reset()
	defer close(x.done)
	defer x.state.advance(StateStop)

	host, err := enginehost.New(
		enginehost.WithLogger(x.logger),
		enginehost.WithLoopMetrics(x.proc.opts.loopMetrics),
		enginehost.WithErrorHandler(x.uncaughtError),
	)
	if err != nil {
		x.logger.Emerg().Err(err).Log(`jscript: failed to allocate engine host`)
		panic(fmt.Errorf(`jscript: failed to allocate engine host: %w`, err))
	}
	x.host.Store(host)
	if x.stopping.Load() {
		host.RequestExit()
	}

	if err := host.PostWork(func() { x.bootstrap(host) }); err != nil {
		x.logger.Err().Err(err).Log(`jscript: failed to post bootstrap`)
		x.state.advance(StateError)
	}

	if err := host.RunUntilIdle(context.Background()); err != nil {
		x.logger.Err().Err(err).Log(`jscript: event loop failed`)
	}

	x.stopping.Store(true)
	x.state.advance(StateStopping)

	code := x.emitExit(host)
	x.exitCode.Store(int32(code))
	x.state.advance(StateStop)

	host.CloseAndDispose()

	x.logger.Debug().
		Int(`exit_code`, code).
		Log(`jscript: instance thread exiting`)
}
