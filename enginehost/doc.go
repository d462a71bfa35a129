// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package enginehost pairs one [eventloop.Loop] with one [goja.Runtime],
// providing the run-until-idle lifecycle of an embedded JavaScript
// environment.
//
// # Lifecycle
//
// A [Host] is created with [New], work is posted to it with [Host.PostWork]
// or an [Async] handle, and the owning goroutine calls [Host.RunUntilIdle].
// That goroutine becomes the host's dedicated thread (the loop locks it to
// an OS thread). The loop exits when either [Host.RequestExit] is called, or
// no referenced handles remain across two consecutive drains, with the
// "beforeExit" hooks emitted between them.
//
// After RunUntilIdle returns, the owner runs [Host.EmitExit], then
// [Host.CloseAndDispose], which force-closes any open async handles and
// releases the loop. CloseAndDispose is idempotent.
//
// # Referenced handles
//
// The following globals are bound into the runtime, and keep the loop alive
// while pending:
//
//   - setTimeout(callback, delay?, ...args) → timer ID
//   - setInterval(callback, delay?, ...args) → timer ID, until cleared
//   - setImmediate(callback, ...args) → immediate ID
//
// Their counterparts clearTimeout, clearInterval and clearImmediate release
// the reference. IDs are unique across all three kinds, and clearTimeout and
// clearInterval accept either a timeout or an interval ID. queueMicrotask is
// also bound, and holds no reference.
//
// [Async] handles never hold a reference: an idle loop exits even if an
// async handle is open.
//
// # Thread Safety
//
// [Async.Send], [Async.Close], [Host.PostWork] and [Host.RequestExit] are
// safe to call from any goroutine. Everything else that touches the runtime
// must run on the loop, i.e. from posted work or a bound callback.
package enginehost
