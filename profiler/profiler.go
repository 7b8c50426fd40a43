// Copyright © 2025 The cinder authors

// Package profiler provides tracing implementations of eval.Profiler.  Each
// annotator opens a span per function activation and a span per backend
// compilation, so interactive sessions can be inspected with standard
// tracing tooling.
package profiler

// base carries the configuration shared by every annotator.
type base struct {
	skip    map[string]bool
	labeler func(name string) string
}

// Option configures an annotator.
type Option func(*base)

// WithSkipNames suppresses spans for the named functions.  Hot core
// builtins are the usual candidates.
func WithSkipNames(names ...string) Option {
	return func(b *base) {
		if b.skip == nil {
			b.skip = make(map[string]bool, len(names))
		}
		for _, name := range names {
			b.skip[name] = true
		}
	}
}

// WithLabeler rewrites span names.  Returning an empty string keeps the
// original name.
func WithLabeler(fn func(name string) string) Option {
	return func(b *base) {
		b.labeler = fn
	}
}

func (b *base) applyOptions(opts ...Option) {
	for _, opt := range opts {
		opt(b)
	}
}

func (b *base) skipName(name string) bool {
	return name == "" || b.skip[name]
}

func (b *base) label(name string) string {
	if b.labeler != nil {
		if pretty := b.labeler(name); pretty != "" {
			return pretty
		}
	}
	return name
}
