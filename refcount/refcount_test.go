// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package refcount

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObject struct {
	Counter
	disposed atomic.Int32
}

func (x *testObject) Dispose() { x.disposed.Add(1) }

func TestPtr_zeroValue(t *testing.T) {
	var p Ptr[*testObject]
	assert.False(t, p.Valid())
	assert.Nil(t, p.Detach())
	p.Reset() // no-op
	assert.Panics(t, func() { p.Get() })
}

func TestPtr_newAndReset(t *testing.T) {
	obj := new(testObject)
	p := New(obj)
	require.True(t, p.Valid())
	assert.Equal(t, int64(1), Count(obj))
	assert.Same(t, obj, p.Get())

	p.Reset()
	assert.False(t, p.Valid())
	assert.Equal(t, int64(0), Count(obj))
	assert.Equal(t, int32(1), obj.disposed.Load())

	// second reset must not release again
	p.Reset()
	assert.Equal(t, int32(1), obj.disposed.Load())
}

func TestPtr_cloneAndMove(t *testing.T) {
	obj := new(testObject)
	a := New(obj)
	b := a.Clone()
	assert.Equal(t, int64(2), Count(obj))

	c := b.Move()
	assert.False(t, b.Valid())
	assert.True(t, c.Valid())
	assert.Equal(t, int64(2), Count(obj))

	a.Reset()
	assert.Equal(t, int32(0), obj.disposed.Load())
	c.Reset()
	assert.Equal(t, int32(1), obj.disposed.Load())
}

func TestPtr_resetToSameObject(t *testing.T) {
	obj := new(testObject)
	p := New(obj)
	p.ResetTo(obj)
	assert.Equal(t, int64(1), Count(obj))
	assert.Equal(t, int32(0), obj.disposed.Load())
	p.Reset()
	assert.Equal(t, int32(1), obj.disposed.Load())
}

func TestPtr_resetToReleasesPrevious(t *testing.T) {
	first, second := new(testObject), new(testObject)
	p := New(first)
	p.ResetTo(second)
	assert.Equal(t, int32(1), first.disposed.Load())
	assert.Equal(t, int64(1), Count(second))
	p.Reset()
	assert.Equal(t, int32(1), second.disposed.Load())
}

func TestPtr_detachThenAdopt(t *testing.T) {
	obj := new(testObject)
	p := New(obj)

	// hand the raw pointer across an "api boundary"
	raw := p.Detach()
	assert.False(t, p.Valid())
	assert.Equal(t, int64(1), Count(obj))

	var q Ptr[*testObject]
	q.Adopt(raw)
	assert.Equal(t, int64(1), Count(obj), `adopt must not add a reference`)
	q.Reset()
	assert.Equal(t, int32(1), obj.disposed.Load())
}

func TestReleaseReference_underflowPanics(t *testing.T) {
	obj := new(testObject)
	AddReference(obj)
	ReleaseReference(obj)
	assert.Panics(t, func() { ReleaseReference(obj) })
}

func TestReferences_nilIsNoop(t *testing.T) {
	AddReference(nil)
	ReleaseReference(nil)
	assert.Equal(t, int64(0), Count(nil))
}

func TestPtr_concurrentCloneRelease(t *testing.T) {
	const goroutines = 64
	const iterations = 1000

	obj := new(testObject)
	root := New(obj)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		local := root.Clone()
		go func() {
			defer wg.Done()
			defer local.Reset()
			for j := 0; j < iterations; j++ {
				c := local.Clone()
				c.Reset()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), Count(obj))
	assert.Equal(t, int32(0), obj.disposed.Load())
	root.Reset()
	assert.Equal(t, int32(1), obj.disposed.Load())
}
