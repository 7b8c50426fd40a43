// Copyright © 2025 The cinder authors

package compile_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cinderlang/cinder/analyzer"
	"github.com/cinderlang/cinder/compile"
	"github.com/cinderlang/cinder/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func list(items ...*runtime.Object) *runtime.Object { return runtime.List(items) }
func vec(items ...*runtime.Object) *runtime.Object  { return runtime.Vector(items) }
func sym(name string) *runtime.Object               { return runtime.Symbol(name) }

// analyzeFn builds fn IR for bridge and cache tests.
func analyzeFn(t *testing.T, reg *runtime.Registry) *analyzer.Expr {
	t.Helper()
	ns := reg.FindOrCreate(runtime.DefaultUserNS)
	res, err := analyzer.New(reg).Analyze(
		list(sym("fn"), vec(sym("x")), sym("x")), ns)
	require.NoError(t, err)
	return res.Expr
}

// fakeBackend counts compilations and optionally blocks or fails.
type fakeBackend struct {
	compiles int32
	fail     error
	gate     chan struct{}
	result   *runtime.Object
}

func (b *fakeBackend) Compile(unit *compile.EmittedUnit) (runtime.Proc, error) {
	atomic.AddInt32(&b.compiles, 1)
	if b.gate != nil {
		<-b.gate
	}
	if b.fail != nil {
		return nil, b.fail
	}
	out := b.result
	if out == nil {
		out = runtime.Int(1)
	}
	return func(args ...*runtime.Object) (*runtime.Object, error) {
		return out, nil
	}, nil
}

func newBridge(backend compile.Backend) *compile.Bridge {
	return compile.NewBridge(compile.SexprEmitter{}, backend, compile.NewSymbolTable())
}

func TestBridgeCompileSuccess(t *testing.T) {
	reg := runtime.NewRegistry()
	backend := &fakeBackend{result: runtime.Int(42)}
	bridge := newBridge(backend)

	job := bridge.Submit(analyzeFn(t, reg), "user$f$1")
	entry, err := job.Await(0)
	require.NoError(t, err)
	out, err := entry()
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.Int)

	// The entry point lands in the process symbol table.
	proc, ok := bridge.Symbols().Lookup("user$f$1")
	require.True(t, ok)
	out, err = proc()
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.Int)
}

func TestBridgeSingleFlight(t *testing.T) {
	reg := runtime.NewRegistry()
	expr := analyzeFn(t, reg)
	backend := &fakeBackend{gate: make(chan struct{})}
	bridge := newBridge(backend)

	const submitters = 8
	var wg sync.WaitGroup
	jobs := make([]*compile.Job, submitters)
	for i := range jobs {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			jobs[i] = bridge.Submit(expr, "user$g$1")
		}()
	}
	wg.Wait()
	close(backend.gate)

	for _, job := range jobs {
		entry, err := job.Await(0)
		require.NoError(t, err)
		assert.NotNil(t, entry)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.compiles),
		"duplicate submitters coalesce onto one compilation")
}

func TestBridgeAwaitTimeout(t *testing.T) {
	reg := runtime.NewRegistry()
	backend := &fakeBackend{gate: make(chan struct{})}
	bridge := newBridge(backend)

	job := bridge.Submit(analyzeFn(t, reg), "user$slow$1")
	_, err := job.Await(10 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, compile.Unavailable(err))

	// The job finishes in the background and still lands in the symbol
	// table for future lookups.
	close(backend.gate)
	entry, err := job.Await(0)
	require.NoError(t, err)
	assert.NotNil(t, entry)
	_, ok := bridge.Symbols().Lookup("user$slow$1")
	assert.True(t, ok)

	// Resubmitting the finished unit returns the registered entry point
	// without another backend call.
	job = bridge.Submit(analyzeFn(t, reg), "user$slow$1")
	again, err := job.Await(10 * time.Millisecond)
	require.NoError(t, err)
	assert.NotNil(t, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.compiles))
}

func TestBridgeBackendDiagnostic(t *testing.T) {
	reg := runtime.NewRegistry()
	backend := &fakeBackend{fail: fmt.Errorf("parse error near unit")}
	bridge := newBridge(backend)

	job := bridge.Submit(analyzeFn(t, reg), "user$bad$1")
	_, err := job.Await(0)
	require.Error(t, err)

	var d *compile.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, compile.BackendDiagnostic, d.Kind)
	assert.Equal(t, "user$bad$1", d.Unit)
	assert.Contains(t, d.Source, "(unit user$bad$1", "diagnostics carry the emitted source")
	assert.False(t, compile.Unavailable(err))
}

func TestBridgeBackendUnavailable(t *testing.T) {
	reg := runtime.NewRegistry()
	backend := &fakeBackend{fail: compile.ErrUnavailable}
	bridge := newBridge(backend)

	job := bridge.Submit(analyzeFn(t, reg), "user$nochance$1")
	_, err := job.Await(0)
	require.Error(t, err)
	assert.True(t, compile.Unavailable(err))
}

type panicBackend struct{}

func (panicBackend) Compile(unit *compile.EmittedUnit) (runtime.Proc, error) {
	panic("backend exploded")
}

func TestBridgeNeverPanicsAcrossBoundary(t *testing.T) {
	reg := runtime.NewRegistry()
	bridge := newBridge(panicBackend{})

	job := bridge.Submit(analyzeFn(t, reg), "user$boom$1")
	_, err := job.Await(0)
	require.Error(t, err)
	var d *compile.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Contains(t, d.Msg, "backend exploded")
}

func TestBridgeOnCompileObserver(t *testing.T) {
	reg := runtime.NewRegistry()
	backend := &fakeBackend{}
	bridge := newBridge(backend)

	var observed atomic.Int32
	bridge.OnCompile(func(unit string, d time.Duration, err error) {
		assert.Equal(t, "user$obs$1", unit)
		assert.NoError(t, err)
		observed.Add(1)
	})
	job := bridge.Submit(analyzeFn(t, reg), "user$obs$1")
	_, err := job.Await(0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), observed.Load())
}

func TestEmitterOutput(t *testing.T) {
	reg := runtime.NewRegistry()
	ns := reg.FindOrCreate(runtime.DefaultUserNS)
	res, err := analyzer.New(reg).Analyze(
		list(sym("fn"), vec(sym("x")),
			list(sym("if"), sym("x"), runtime.Int(1), runtime.Int(2))), ns)
	require.NoError(t, err)

	unit, err := compile.SexprEmitter{}.Emit("user$h$1", res.Expr)
	require.NoError(t, err)
	assert.Equal(t, "user$h$1", unit.Name)
	assert.Same(t, res.Expr, unit.IR)
	assert.Equal(t,
		"(unit user$h$1 (fn ((x.0) (if (local-ref x.0) (literal 1) (literal 2)))))",
		unit.Source)
}
