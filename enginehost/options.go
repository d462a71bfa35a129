// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package enginehost

import (
	"github.com/dop251/goja"
	"github.com/joeycumines/logiface"
)

// hostOptions holds configuration options for Host creation.
type hostOptions struct {
	logger       *logiface.Logger[logiface.Event]
	errorHandler ErrorHandler
	runtime      *goja.Runtime
	loopMetrics  bool
}

// Option configures a Host.
type Option interface {
	applyHost(*hostOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyHostFunc func(*hostOptions) error
}

func (o *optionImpl) applyHost(opts *hostOptions) error {
	return o.applyHostFunc(opts)
}

// WithLoopMetrics enables metrics collection on the underlying loop, see
// [Host.Metrics].
func WithLoopMetrics(enabled bool) Option {
	return &optionImpl{func(opts *hostOptions) error {
		opts.loopMetrics = enabled
		return nil
	}}
}

// WithLogger sets the logger used for lifecycle events, and by the default
// error handler. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *hostOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithErrorHandler sets the initial error handler, see
// [Host.SetErrorHandler].
func WithErrorHandler(handler ErrorHandler) Option {
	return &optionImpl{func(opts *hostOptions) error {
		opts.errorHandler = handler
		return nil
	}}
}

// WithRuntime provides the runtime to host, instead of allocating a new
// one. The runtime must not be used by anything else.
func WithRuntime(runtime *goja.Runtime) Option {
	return &optionImpl{func(opts *hostOptions) error {
		opts.runtime = runtime
		return nil
	}}
}

// resolveOptions applies Option values to a new hostOptions.
func resolveOptions(opts []Option) (*hostOptions, error) {
	cfg := &hostOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyHost(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
