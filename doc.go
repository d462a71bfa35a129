// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package jscript hosts many independent JavaScript instances in one
// process. Each [Instance] runs on its own dedicated thread, with its own
// event loop ([github.com/joeycumines/go-eventloop]) and runtime
// ([github.com/dop251/goja]), see [github.com/joeycumines/go-jscript/enginehost].
//
// # Usage
//
//	if err := jscript.Initialize(jscript.WithDiagnosticSink(func(msg string) {
//	    fmt.Fprintln(os.Stderr, msg)
//	})); err != nil {
//	    log.Fatal(err)
//	}
//	defer jscript.Uninitialize()
//
//	instance, err := jscript.CreateInstance()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if instance.State() != jscript.StateRun {
//	    log.Fatalf("instance failed to start: %s", instance.State())
//	}
//	defer jscript.StopInstance(instance)
//
//	_ = jscript.RunScriptText(instance, `console.log(greet())`, jscript.Callback{
//	    Name: "greet",
//	    Function: func(args jscript.CallbackArgs) goja.Value {
//	        return args.Runtime.ToValue("hello")
//	    },
//	})
//
// # Lifecycle
//
// Instance states only move forward, by rank:
//
//	CREATE → RUN | ERROR | TIMEOUT → STOPPING → STOP
//
// The bootstrap script decides between RUN and ERROR, by calling
// __jscript_setRunState() or __jscript_setErrorState(). If neither happens
// within the readiness timeout, [CreateInstance] marks the instance TIMEOUT.
// An instance moves to STOPPING once [StopInstance] is called, or its event
// loop runs out of referenced work (timers and intervals), then to STOP once
// its thread has finished.
//
// # Scripts
//
// [RunScriptText] posts script text to an instance, along with native
// [Callback] functions, installed as globals just before the script runs.
// Scripts on one instance run one at a time, on the instance thread. Script
// errors are not returned; they are reported to the [DiagnosticSink] and the
// logger. Console output reaches the per-instance [LogCallback].
package jscript
