// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package jscript

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// DefaultReadinessTimeout is how long [CreateInstance] waits for an instance
// to leave [StateCreate], unless configured by [WithReadinessTimeout].
const DefaultReadinessTimeout = 30 * time.Second

// processOptions holds configuration for the process context.
type processOptions struct {
	logger           *logiface.Logger[logiface.Event]
	diagnosticSink   DiagnosticSink
	bootstrapScript  string
	frameworkModule  string
	origin           string
	externalOrigin   string
	args             []string
	execArgs         []string
	nodePath         []string
	readinessTimeout time.Duration
	loggerSet        bool
	stackTraces      bool
	loopMetrics      bool
}

// Option configures the process context, see [Initialize].
type Option interface {
	applyProcess(*processOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyProcessFunc func(*processOptions) error
}

func (o *optionImpl) applyProcess(opts *processOptions) error {
	return o.applyProcessFunc(opts)
}

// WithArgs sets process.argv, as seen by every instance.
func WithArgs(args ...string) Option {
	return &optionImpl{func(opts *processOptions) error {
		opts.args = append([]string(nil), args...)
		return nil
	}}
}

// WithExecArgs sets process.execArgv, as seen by every instance.
func WithExecArgs(args ...string) Option {
	return &optionImpl{func(opts *processOptions) error {
		opts.execArgs = append([]string(nil), args...)
		return nil
	}}
}

// WithNodePath sets the folders searched by require for non-relative module
// names. They are also exported, as the NODE_PATH environment variable.
func WithNodePath(folders ...string) Option {
	return &optionImpl{func(opts *processOptions) error {
		for _, folder := range folders {
			if folder != `` {
				opts.nodePath = append(opts.nodePath, folder)
			}
		}
		return nil
	}}
}

// WithDiagnosticSink receives script errors and console output, from every
// instance. It may be called concurrently, from instance threads.
func WithDiagnosticSink(sink DiagnosticSink) Option {
	return &optionImpl{func(opts *processOptions) error {
		opts.diagnosticSink = sink
		return nil
	}}
}

// WithBootstrapScript replaces the default bootstrap script. The script must
// call __jscript_setRunState() once ready, or __jscript_setErrorState() on
// failure, and must schedule keep-alive work (e.g. an interval) if the
// instance should outlive it.
func WithBootstrapScript(src string) Option {
	return &optionImpl{func(opts *processOptions) error {
		opts.bootstrapScript = src
		return nil
	}}
}

// WithFrameworkModule sets a module that the default bootstrap script will
// require, before announcing the instance as running. If the module exports
// a promise, the instance is running once it resolves, or in [StateError]
// if it rejects. The export is available to scripts as the framework global.
func WithFrameworkModule(path string) Option {
	return &optionImpl{func(opts *processOptions) error {
		opts.frameworkModule = path
		return nil
	}}
}

// WithOrigins sets the DEFAULTORIGIN and EXTERNALORIGIN globals. Empty
// values are not set.
func WithOrigins(origin, externalOrigin string) Option {
	return &optionImpl{func(opts *processOptions) error {
		opts.origin = origin
		opts.externalOrigin = externalOrigin
		return nil
	}}
}

// WithReadinessTimeout overrides [DefaultReadinessTimeout].
func WithReadinessTimeout(d time.Duration) Option {
	return &optionImpl{func(opts *processOptions) error {
		if d <= 0 {
			return errors.New("jscript: readiness timeout must be positive")
		}
		opts.readinessTimeout = d
		return nil
	}}
}

// WithStackTraces includes the full stack in reported script exceptions.
func WithStackTraces(enabled bool) Option {
	return &optionImpl{func(opts *processOptions) error {
		opts.stackTraces = enabled
		return nil
	}}
}

// WithLoopMetrics enables event loop metrics, see [Instance.Metrics].
func WithLoopMetrics(enabled bool) Option {
	return &optionImpl{func(opts *processOptions) error {
		opts.loopMetrics = enabled
		return nil
	}}
}

// WithLogger sets the structured logger. The default writes JSON to stderr,
// at warning level. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *processOptions) error {
		opts.logger = logger
		opts.loggerSet = true
		return nil
	}}
}

// resolveOptions applies Option values to a new processOptions, with
// defaults.
func resolveOptions(opts []Option) (*processOptions, error) {
	cfg := &processOptions{
		readinessTimeout: DefaultReadinessTimeout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyProcess(cfg); err != nil {
			return nil, err
		}
	}
	if !cfg.loggerSet {
		cfg.logger = defaultLogger()
	}
	return cfg, nil
}
