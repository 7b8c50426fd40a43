// Copyright © 2025 The cinder authors

package compile

import (
	"fmt"
	"sync"
	"time"

	"github.com/cinderlang/cinder/analyzer"
	"github.com/cinderlang/cinder/runtime"
)

// Job is one in-flight compilation.  Duplicate submissions of the same
// unique name share a single Job and therefore observe the identical entry
// point.
type Job struct {
	// Name is the unit's synthetic unique name.
	Name string

	done  chan struct{}
	entry runtime.Proc
	err   error
}

// Await blocks until the job finishes and returns its entry point.  A
// timeout of zero blocks indefinitely.  On expiry Await reports
// BackendUnavailable; the compilation keeps running in the background and
// its result still reaches the symbol table and any caches, so a later
// lookup of the same definition succeeds without recompiling.
func (j *Job) Await(timeout time.Duration) (runtime.Proc, error) {
	if timeout <= 0 {
		<-j.done
		return j.entry, j.err
	}
	select {
	case <-j.done:
		return j.entry, j.err
	case <-time.After(timeout):
		return nil, &Diagnostic{
			Kind: BackendUnavailable,
			Unit: j.Name,
			Msg:  fmt.Sprintf("compilation did not finish within %s", timeout),
		}
	}
}

// Done returns a channel closed when the job finishes.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Bridge submits expression subtrees to a backend through an emitter.  It
// owns the single-flight discipline: at most one concurrent compilation per
// unique unit name, with duplicate submitters coalescing onto one Job.
type Bridge struct {
	emitter Emitter
	backend Backend
	symbols *SymbolTable

	mu       sync.Mutex
	inflight map[string]*Job

	// onCompile, when set, observes every completed backend call.  The
	// profiler hooks in here.
	onCompile func(unit string, d time.Duration, err error)
}

// NewBridge returns a bridge feeding backend through emitter.  Entry points
// are registered in symbols as compilations succeed.
func NewBridge(emitter Emitter, backend Backend, symbols *SymbolTable) *Bridge {
	return &Bridge{
		emitter:  emitter,
		backend:  backend,
		symbols:  symbols,
		inflight: make(map[string]*Job),
	}
}

// OnCompile installs an observer invoked after every backend call.  It must
// be set before the first Submit.
func (b *Bridge) OnCompile(fn func(unit string, d time.Duration, err error)) {
	b.onCompile = fn
}

// Symbols returns the bridge's entry point table.
func (b *Bridge) Symbols() *SymbolTable {
	return b.symbols
}

// Submit emits expr as a unit named uniqueName and hands it to the backend.
// Submit never blocks on compilation; callers block in Job.Await.  A second
// Submit for a name already in flight returns the existing Job, and a name
// already in the symbol table returns a finished Job carrying the registered
// entry point.  Unit names hash their content, so a registered name always
// denotes the same unit; resubmitting it after a timed-out Await must not
// reach the backend again, which could fault on the name redefinition.
func (b *Bridge) Submit(expr *analyzer.Expr, uniqueName string) *Job {
	b.mu.Lock()
	if job, ok := b.inflight[uniqueName]; ok {
		b.mu.Unlock()
		return job
	}
	if entry, ok := b.symbols.Lookup(uniqueName); ok {
		b.mu.Unlock()
		done := make(chan struct{})
		close(done)
		return &Job{Name: uniqueName, done: done, entry: entry}
	}
	job := &Job{Name: uniqueName, done: make(chan struct{})}
	b.inflight[uniqueName] = job
	b.mu.Unlock()

	go b.run(job, expr)
	return job
}

func (b *Bridge) run(job *Job, expr *analyzer.Expr) {
	defer func() {
		// The boundary contract: no panic ever crosses the bridge.
		if r := recover(); r != nil {
			job.err = &Diagnostic{
				Kind: BackendDiagnostic,
				Unit: job.Name,
				Msg:  fmt.Sprintf("panic during compilation: %v", r),
			}
		}
		b.mu.Lock()
		delete(b.inflight, job.Name)
		b.mu.Unlock()
		close(job.done)
	}()

	unit, err := b.emitter.Emit(job.Name, expr)
	if err != nil {
		// Emission failure means the emitter could not serialize
		// well-formed IR, which is an emitter defect.
		job.err = &Diagnostic{
			Kind: BackendDiagnostic,
			Unit: job.Name,
			Msg:  fmt.Sprintf("emitter failed: %v", err),
		}
		return
	}

	start := time.Now()
	entry, err := b.backend.Compile(unit)
	if b.onCompile != nil {
		b.onCompile(job.Name, time.Since(start), err)
	}
	if err != nil {
		if Unavailable(err) {
			job.err = &Diagnostic{
				Kind: BackendUnavailable,
				Unit: job.Name,
				Msg:  err.Error(),
			}
			return
		}
		job.err = &Diagnostic{
			Kind:   BackendDiagnostic,
			Unit:   job.Name,
			Msg:    err.Error(),
			Source: unit.Source,
		}
		return
	}
	b.symbols.Register(job.Name, entry)
	job.entry = entry
}
