// Copyright © 2025 The cinder authors

package eval

import (
	"io"
	"time"

	"github.com/cinderlang/cinder/compile"
)

// Config is a function that configures a session during New.
type Config func(s *Session) error

// WithStderr makes the session write debugging output to w instead of the
// default, os.Stderr.
func WithStderr(w io.Writer) Config {
	return func(s *Session) error {
		s.stderr = w
		return nil
	}
}

// WithStdout makes language-level printing write to w instead of the
// default, os.Stdout.
func WithStdout(w io.Writer) Config {
	return func(s *Session) error {
		s.stdout = w
		return nil
	}
}

// WithBackend makes the session compile function definitions through
// backend.  Without this Config the session uses its own in-process closure
// backend, which builds interpreted closures behind the bridge contract.
func WithBackend(backend compile.Backend) Config {
	return func(s *Session) error {
		s.backend = backend
		return nil
	}
}

// WithEmitter replaces the reference s-expression emitter.
func WithEmitter(emitter compile.Emitter) Config {
	return func(s *Session) error {
		s.emitter = emitter
		return nil
	}
}

// WithAwaitTimeout bounds how long the session blocks on one compilation.
// On expiry the definition degrades to an interpreted closure while the
// compilation finishes in the background.  Zero (the default) blocks until
// the backend answers.
func WithAwaitTimeout(d time.Duration) Config {
	return func(s *Session) error {
		s.awaitTimeout = d
		return nil
	}
}

// WithMaximumStackHeight prevents the call stack from exceeding n frames.
func WithMaximumStackHeight(n int) Config {
	return func(s *Session) error {
		s.stack.MaxHeight = n
		return nil
	}
}

// WithMaxMacroExpansionDepth limits the number of successive macro
// expansions applied to a single form during analysis.
func WithMaxMacroExpansionDepth(n int) Config {
	return func(s *Session) error {
		s.maxExpand = n
		return nil
	}
}

// WithProfiler attaches a profiler observing function activations and
// bridge compilations.
func WithProfiler(p Profiler) Config {
	return func(s *Session) error {
		s.profiler = p
		return nil
	}
}

// WithPersistentCache attaches an opened cross-process unit cache.  Emitted
// units are stored as compilations succeed.  Persisted units are only
// replayed explicitly (see ReplayPersistent); they are never consulted
// implicitly because replaying into a warm backend is unsafe.
func WithPersistentCache(p *compile.PersistentCache) Config {
	return func(s *Session) error {
		s.persist = p
		return nil
	}
}
