// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package refcount implements intrusive, atomic reference counting, for
// objects whose lifetime spans goroutines that do not otherwise synchronise
// on teardown.
//
// An object participates by embedding [Counter] and implementing Dispose.
// References are managed either directly, via [AddReference] and
// [ReleaseReference], or through the [Ptr] wrapper, which is the preferred
// mechanism. Dispose is called exactly once, by whichever goroutine releases
// the last reference.
//
// Unlike C++ smart pointers, copying a Ptr value does not add a reference.
// Use [Ptr.Clone] to share ownership, and [Ptr.Move] to transfer it.
package refcount

import (
	"fmt"
	"sync/atomic"
)

type (
	// Counter is the intrusive reference count. The zero value is ready to
	// use, and holds no references.
	//
	// A Counter must not be copied after first use.
	Counter struct {
		_    [0]func()
		refs atomic.Int64
	}

	// Object models a reference counted value. Implementations must embed
	// Counter (which provides the unexported method).
	Object interface {
		refCounter() *Counter
		// Dispose is called once the reference count drops to zero.
		Dispose()
	}

	// Ptr is an owning handle to an [Object]. The zero value holds nothing.
	Ptr[T interface {
		comparable
		Object
	}] struct {
		p T
	}
)

func (x *Counter) refCounter() *Counter { return x }

// Count returns the current number of references held against obj, or 0 if
// obj is nil. Intended for diagnostics and tests only.
func Count(obj Object) int64 {
	if obj == nil {
		return 0
	}
	return obj.refCounter().refs.Load()
}

// AddReference increments the reference count of obj, if obj is non-nil.
func AddReference(obj Object) {
	if obj == nil {
		return
	}
	obj.refCounter().refs.Add(1)
}

// ReleaseReference decrements the reference count of obj, if obj is non-nil,
// calling Dispose if the count reached zero. It panics if the count would
// underflow, as that indicates a reference was released twice.
func ReleaseReference(obj Object) {
	if obj == nil {
		return
	}
	switch n := obj.refCounter().refs.Add(-1); {
	case n == 0:
		obj.Dispose()
	case n < 0:
		panic(fmt.Sprintf(`refcount: reference count underflow (%d) for %T`, n, obj))
	}
}

// New returns a Ptr holding p, adding a reference (unless p is nil).
func New[T interface {
	comparable
	Object
}](p T) Ptr[T] {
	var x Ptr[T]
	x.ResetTo(p)
	return x
}

// Clone returns a second owning handle to the same object, adding a
// reference. This is the equivalent of a copy constructor.
func (x *Ptr[T]) Clone() Ptr[T] {
	return New(x.p)
}

// Move returns a handle that has taken ownership of the receiver's
// reference, leaving the receiver empty.
func (x *Ptr[T]) Move() Ptr[T] {
	var zero T
	p := x.p
	x.p = zero
	return Ptr[T]{p: p}
}

// Reset releases the held reference, if any, leaving the receiver empty.
func (x *Ptr[T]) Reset() {
	var zero T
	p := x.p
	x.p = zero
	if p != zero {
		ReleaseReference(p)
	}
}

// ResetTo releases the held reference, then takes a new reference to p.
func (x *Ptr[T]) ResetTo(p T) {
	var zero T
	if p != zero {
		AddReference(p)
	}
	x.Reset()
	x.p = p
}

// Adopt releases the held reference, then takes ownership of p without
// adding a reference. The caller must already own exactly one reference to
// p, which is transferred to the receiver.
func (x *Ptr[T]) Adopt(p T) {
	x.Reset()
	x.p = p
}

// Detach returns the held object without releasing it, leaving the receiver
// empty. The caller becomes responsible for exactly one reference.
func (x *Ptr[T]) Detach() T {
	var zero T
	p := x.p
	x.p = zero
	return p
}

// Get returns the held object. It panics if the receiver is empty, as
// dereferencing an empty handle is a programming error.
func (x *Ptr[T]) Get() T {
	var zero T
	if x.p == zero {
		panic(`refcount: dereference of empty ptr`)
	}
	return x.p
}

// Valid reports whether the receiver holds an object.
func (x *Ptr[T]) Valid() bool {
	var zero T
	return x != nil && x.p != zero
}
