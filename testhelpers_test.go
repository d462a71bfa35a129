// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-jscript/refcount"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

const (
	waitTimeout  = 5 * time.Second
	waitInterval = 5 * time.Millisecond
)

// setup initializes the process context for one test, uninitializing it on
// cleanup. Tests using it must not run in parallel.
func setup(t *testing.T, opts ...Option) {
	t.Helper()
	require.Nil(t, current.Load(), `process context leaked from another test`)
	require.NoError(t, Initialize(append([]Option{WithLogger(nil)}, opts...)...))
	t.Cleanup(func() {
		uninitializeWithin(t, waitTimeout)
	})
}

func uninitializeWithin(t *testing.T, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		Uninitialize()
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf(`Uninitialize did not complete within %s`, timeout)
	}
}

// createRunning creates an instance that must reach StateRun. The test
// receives the creation reference, and may pass it to StopInstance; an
// additional reference is held, and stopped, on cleanup.
func createRunning(t *testing.T) *Instance {
	t.Helper()
	x := create(t)
	require.Equal(t, StateRun, x.State())
	return x
}

func create(t *testing.T) *Instance {
	t.Helper()
	x, err := CreateInstance()
	require.NoError(t, err)
	require.NotNil(t, x)
	refcount.AddReference(x)
	t.Cleanup(func() {
		_ = StopInstance(x)
	})
	return x
}

func waitDone(t *testing.T, x *Instance) {
	t.Helper()
	select {
	case <-x.Done():
	case <-time.After(waitTimeout):
		t.Fatalf(`instance %d did not exit, state %s`, x.ID(), x.State())
	}
}

// recorder collects values from instance threads.
type recorder struct {
	values []string
	mu     sync.Mutex
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.values = append(r.values, s)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

func (r *recorder) contains(substr string) bool {
	for _, v := range r.snapshot() {
		if strings.Contains(v, substr) {
			return true
		}
	}
	return false
}

// callback returns a Callback that records its arguments, joined by spaces.
func (r *recorder) callback(name string) Callback {
	return Callback{
		Name: name,
		Function: func(args CallbackArgs) goja.Value {
			parts := make([]string, len(args.Arguments))
			for i, v := range args.Arguments {
				parts[i] = v.String()
			}
			r.add(strings.Join(parts, ` `))
			return nil
		},
	}
}

// Write implements io.Writer, one value per write.
func (r *recorder) Write(p []byte) (int, error) {
	r.add(string(p))
	return len(p), nil
}

// debugLogger returns a logger writing every level to r.
func debugLogger(r *recorder) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(r)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
}
