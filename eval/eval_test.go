// Copyright © 2025 The cinder authors

package eval_test

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinderlang/cinder/compile"
	"github.com/cinderlang/cinder/eval"
	"github.com/cinderlang/cinder/reader/token"
	"github.com/cinderlang/cinder/runtime"
)

func newSession(t *testing.T, cfgs ...eval.Config) *eval.Session {
	t.Helper()
	s, err := eval.New(cfgs...)
	require.NoError(t, err)
	return s
}

func evalOK(t *testing.T, s *eval.Session, src string) *runtime.Object {
	t.Helper()
	out := s.EvalString(t.Name(), src)
	if out.Tag == runtime.TagError {
		t.Fatalf("eval error: %v", runtime.GoError(out))
	}
	return out
}

func evalErr(t *testing.T, s *eval.Session, src string) *runtime.ErrorVal {
	t.Helper()
	out := s.EvalString(t.Name(), src)
	require.Equal(t, runtime.TagError, out.Tag, "expected an error evaluating %s, got %s", src, out)
	return runtime.GoError(out).(*runtime.ErrorVal)
}

// countingProfiler counts backend compilations through the bridge observer.
type countingProfiler struct {
	compiles atomic.Int32
}

func (p *countingProfiler) EnterCall(name string, loc *token.Location) func() {
	return func() {}
}

func (p *countingProfiler) CompileUnit(unit string, d time.Duration, err error) {
	p.compiles.Add(1)
}

// stubBackend is a controllable backend for degradation tests.
type stubBackend struct {
	gate chan struct{}
	fail error
}

func (b *stubBackend) Compile(unit *compile.EmittedUnit) (runtime.Proc, error) {
	if b.gate != nil {
		<-b.gate
	}
	if b.fail != nil {
		return nil, b.fail
	}
	return func(args ...*runtime.Object) (*runtime.Object, error) {
		return runtime.Int(99), nil
	}, nil
}

func TestScalars(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, int64(42), evalOK(t, s, "42").Int)
	assert.Equal(t, 1.5, evalOK(t, s, "1.5").Real)
	assert.Equal(t, "hi", evalOK(t, s, `"hi"`).Str)
	assert.True(t, evalOK(t, s, "true").Bool)
	assert.True(t, evalOK(t, s, "nil").IsNil())
	assert.Equal(t, runtime.TagKeyword, evalOK(t, s, ":k").Tag)
}

func TestIf(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, int64(1), evalOK(t, s, "(if true 1 2)").Int)
	assert.Equal(t, int64(2), evalOK(t, s, "(if false 1 2)").Int)
	assert.True(t, evalOK(t, s, "(if false 1)").IsNil())
	// nil and false are the only falsey values
	assert.Equal(t, int64(1), evalOK(t, s, "(if 0 1 2)").Int)
	assert.Equal(t, int64(1), evalOK(t, s, `(if "" 1 2)`).Int)
}

func TestLet(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, int64(3), evalOK(t, s, "(let [x 1 y 2] (+ x y))").Int)
	// later bindings see earlier ones
	assert.Equal(t, int64(4), evalOK(t, s, "(let [x 1 x (+ x x) x (+ x x)] x)").Int)
	assert.True(t, evalOK(t, s, "(let [x 1])").IsNil())
}

func TestLoopRecur(t *testing.T) {
	s := newSession(t)
	out := evalOK(t, s, "(loop [i 0 acc 0] (if (< i 5) (recur (inc i) (+ acc i)) acc))")
	assert.Equal(t, int64(10), out.Int)
}

func TestLoopRecurDoesNotGrowStack(t *testing.T) {
	s := newSession(t, eval.WithMaximumStackHeight(50))
	out := evalOK(t, s, "(loop [i 0] (if (< i 100000) (recur (inc i)) i))")
	assert.Equal(t, int64(100000), out.Int)
}

func TestDefnAndCall(t *testing.T) {
	s := newSession(t)
	evalOK(t, s, "(defn f [x] (+ x 1))")
	assert.Equal(t, int64(2), evalOK(t, s, "(f 1)").Int)

	v, ok := s.Namespace().FindVar("f")
	require.True(t, ok)
	fd := v.Root().FunData()
	assert.True(t, fd.Compiled)
	assert.NotEmpty(t, fd.UniqueName)
	assert.Equal(t, "f", fd.Name)
}

func TestFnRecur(t *testing.T) {
	s := newSession(t)
	evalOK(t, s, "(defn fact [n acc] (if (< n 2) acc (recur (dec n) (* acc n))))")
	assert.Equal(t, int64(120), evalOK(t, s, "(fact 5 1)").Int)
}

func TestMultipleArities(t *testing.T) {
	s := newSession(t)
	evalOK(t, s, `(defn greet ([] (greet "world")) ([name] (str "hello " name)))`)
	assert.Equal(t, "hello world", evalOK(t, s, "(greet)").Str)
	assert.Equal(t, "hello cinder", evalOK(t, s, `(greet "cinder")`).Str)
}

func TestVariadic(t *testing.T) {
	s := newSession(t)
	evalOK(t, s, "(defn f [x & xs] (count xs))")
	assert.Equal(t, int64(2), evalOK(t, s, "(f 1 2 3)").Int)
	assert.Equal(t, int64(0), evalOK(t, s, "(f 1)").Int)
}

func TestClosureCapture(t *testing.T) {
	s := newSession(t)
	evalOK(t, s, "(defn make-adder [n] (fn [m] (+ m n)))")
	assert.Equal(t, int64(5), evalOK(t, s, "((make-adder 2) 3)").Int)
}

func TestFnSelfReference(t *testing.T) {
	s := newSession(t)
	evalOK(t, s, "(def depth (fn go [n] (if (= n 0) 0 (+ 1 (go (dec n))))))")
	assert.Equal(t, int64(7), evalOK(t, s, "(depth 7)").Int)
}

func TestArityError(t *testing.T) {
	s := newSession(t)
	evalOK(t, s, "(defn f [x] x)")
	err := evalErr(t, s, "(f 1 2)")
	assert.Equal(t, "arity-error", err.Condition())
	assert.Contains(t, err.ErrorMessage(), "wrong number of arguments (2) for f")
}

func TestUnchangedRedefinitionSkipsBackend(t *testing.T) {
	prof := &countingProfiler{}
	s := newSession(t, eval.WithProfiler(prof))

	evalOK(t, s, "(defn f [x] (+ x 1))")
	require.Equal(t, int32(1), prof.compiles.Load())
	v, ok := s.Namespace().FindVar("f")
	require.True(t, ok)
	first := v.Root().FunData().UniqueName

	evalOK(t, s, "(defn f [x] (+ x 1))")
	assert.Equal(t, int32(1), prof.compiles.Load(), "unchanged definition must not recompile")
	assert.Equal(t, first, v.Root().FunData().UniqueName, "entry point must be reused")
	assert.Equal(t, int64(2), evalOK(t, s, "(f 1)").Int)
	assert.Equal(t, uint64(1), s.Cache().Stats().Hits)
}

func TestRedefinitionRecompilesOnce(t *testing.T) {
	prof := &countingProfiler{}
	s := newSession(t, eval.WithProfiler(prof))

	evalOK(t, s, "(defn f [x] (+ x 1))")
	assert.Equal(t, int64(2), evalOK(t, s, "(f 1)").Int)

	evalOK(t, s, "(defn f [x] (+ x 2))")
	assert.Equal(t, int32(2), prof.compiles.Load(), "changed definition compiles exactly once more")
	assert.Equal(t, int64(3), evalOK(t, s, "(f 1)").Int)
}

func TestWhitespaceOnlyChangeSkipsBackend(t *testing.T) {
	prof := &countingProfiler{}
	s := newSession(t, eval.WithProfiler(prof))
	evalOK(t, s, "(defn f [x] (+ x 1))")
	evalOK(t, s, "(defn f\n  [x]\n  (+ x 1))")
	assert.Equal(t, int32(1), prof.compiles.Load())
}

func TestConcurrentDefinitionsCompileOnce(t *testing.T) {
	prof := &countingProfiler{}
	s := newSession(t, eval.WithProfiler(prof))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := s.EvalString(t.Name(), "(defn f [x] (+ x 1))")
			assert.NotEqual(t, runtime.TagError, out.Tag)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), prof.compiles.Load())
	assert.Equal(t, int64(2), evalOK(t, s, "(f 1)").Int)
}

func TestNamespaceReloadInvalidates(t *testing.T) {
	prof := &countingProfiler{}
	s := newSession(t, eval.WithProfiler(prof))
	evalOK(t, s, "(defn f [x] (+ x 1))")
	s.Namespace().Reload()
	evalOK(t, s, "(defn f [x] (+ x 1))")

	// The old entry is stale and gets evicted.  The definition's content is
	// unchanged, so the re-evaluation reuses the registered entry point
	// rather than compiling the same unit name a second time.
	stats := s.Cache().Stats()
	assert.Equal(t, uint64(1), stats.Stale, "reload makes prior cache entries stale")
	assert.Equal(t, uint64(1), stats.Evictions)
	assert.Equal(t, int32(1), prof.compiles.Load())
	assert.Equal(t, 1, s.Cache().Len(), "a fresh entry replaces the evicted one")
}

func TestSessionReloadNamespace(t *testing.T) {
	prof := &countingProfiler{}
	s := newSession(t, eval.WithProfiler(prof))
	evalOK(t, s, "(defn f [x] (+ x 1))")
	require.Equal(t, 1, s.Cache().Len())

	gen := s.Namespace().Generation()
	s.ReloadNamespace(runtime.DefaultUserNS)
	assert.Equal(t, gen+1, s.Namespace().Generation())
	assert.Equal(t, 0, s.Cache().Len(), "reload drops the namespace's entries eagerly")

	evalOK(t, s, "(defn f [x] (+ x 1))")
	assert.Equal(t, int32(1), prof.compiles.Load(), "unchanged unit reuses its entry point")
	assert.Equal(t, int64(2), evalOK(t, s, "(f 1)").Int)
}

func TestSessionInvalidate(t *testing.T) {
	s := newSession(t)
	evalOK(t, s, "(defn f [x] (+ x 1))")
	require.Equal(t, 1, s.Cache().Len())

	s.Invalidate("user/f")
	assert.Equal(t, 0, s.Cache().Len())
	stats := s.Cache().Stats()
	assert.Equal(t, uint64(1), stats.Bypasses)

	evalOK(t, s, "(defn f [x] (+ x 1))")
	assert.Equal(t, 1, s.Cache().Len(), "the next definition restores the entry")
}

func TestMacroRedefinitionInvalidates(t *testing.T) {
	prof := &countingProfiler{}
	s := newSession(t, eval.WithProfiler(prof))
	// f expands through the core when macro, so a when redefinition must
	// invalidate f's cache entry even though f's text is unchanged.
	evalOK(t, s, "(defn f [x] (when true (+ x 1)))")
	require.Equal(t, int32(1), prof.compiles.Load())

	core := s.Registry().Core()
	v, ok := core.FindVar("when")
	require.True(t, ok)
	v.SetRoot(v.Root())

	evalOK(t, s, "(defn f [x] (when true (+ x 1)))")

	// The rev drift evicts f's entry.  Re-setting the identical macro root
	// leaves the expansion, and with it the unit content, unchanged; the
	// registered entry point is reused and a fresh entry stored with the
	// current macro revisions.
	stats := s.Cache().Stats()
	assert.Equal(t, uint64(1), stats.Stale)
	assert.Equal(t, uint64(1), stats.Evictions)
	assert.Equal(t, int32(1), prof.compiles.Load())
	assert.Equal(t, 1, s.Cache().Len())
}

func TestAwaitTimeoutFallsBackToInterpretation(t *testing.T) {
	backend := &stubBackend{gate: make(chan struct{})}
	var stderr bytes.Buffer
	s := newSession(t,
		eval.WithBackend(backend),
		eval.WithAwaitTimeout(20*time.Millisecond),
		eval.WithStderr(&stderr),
	)

	evalOK(t, s, "(defn f [x] (+ x 1))")
	v, ok := s.Namespace().FindVar("f")
	require.True(t, ok)
	assert.False(t, v.Root().FunData().Compiled)
	assert.Equal(t, int64(2), evalOK(t, s, "(f 1)").Int, "interpreted fallback stays usable")
	assert.Contains(t, stderr.String(), "falling back to interpretation")

	// The compilation finishes in the background and still reaches the
	// symbol table.
	close(backend.gate)
	require.Eventually(t, func() bool {
		return s.Symbols().Len() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTimedOutCompilationIsNotRepeated(t *testing.T) {
	backend := &stubBackend{gate: make(chan struct{})}
	prof := &countingProfiler{}
	s := newSession(t,
		eval.WithBackend(backend),
		eval.WithAwaitTimeout(20*time.Millisecond),
		eval.WithStderr(io.Discard),
		eval.WithProfiler(prof),
	)

	evalOK(t, s, "(defn f [x] (+ x 1))")
	close(backend.gate)
	require.Eventually(t, func() bool {
		return s.Symbols().Len() == 1
	}, time.Second, 5*time.Millisecond)

	// Re-evaluating the identical definition picks up the backgrounded
	// entry point instead of compiling the unit a second time.
	evalOK(t, s, "(defn f [x] (+ x 1))")
	v, ok := s.Namespace().FindVar("f")
	require.True(t, ok)
	assert.True(t, v.Root().FunData().Compiled)
	assert.Equal(t, int64(99), evalOK(t, s, "(f 1)").Int, "stub entry point answers")
	assert.Equal(t, int32(1), prof.compiles.Load())
	assert.Equal(t, 1, s.Cache().Len(), "the re-evaluation stores the cache entry")
}

func TestBackendUnavailableFallsBack(t *testing.T) {
	backend := &stubBackend{fail: compile.ErrUnavailable}
	var stderr bytes.Buffer
	s := newSession(t, eval.WithBackend(backend), eval.WithStderr(&stderr))

	evalOK(t, s, "(defn f [x] (+ x 1))")
	assert.Equal(t, int64(2), evalOK(t, s, "(f 1)").Int)
	assert.Equal(t, 0, s.Cache().Len(), "failed compilations are never cached")
}

func TestBackendDiagnosticSurfaces(t *testing.T) {
	backend := &stubBackend{fail: errors.New("codegen exploded")}
	s := newSession(t, eval.WithBackend(backend))

	err := evalErr(t, s, "(defn f [x] (+ x 1))")
	assert.Equal(t, "backend-diagnostic", err.Condition())
	assert.Contains(t, err.ErrorMessage(), "codegen exploded")
	assert.Equal(t, 0, s.Cache().Len())
}

func TestAnalysisErrorObject(t *testing.T) {
	s := newSession(t)
	err := evalErr(t, s, "(no-such-fn 1)")
	assert.Equal(t, "analysis-error", err.Condition())
	assert.Contains(t, err.ErrorMessage(), "unable to resolve symbol: no-such-fn")
}

func TestRuntimeErrorCarriesStack(t *testing.T) {
	s := newSession(t)
	evalOK(t, s, "(defn f [x] (+ x 1))")
	err := evalErr(t, s, `(f "a")`)
	assert.Equal(t, "type-error", err.Condition())
	stack := (*runtime.Object)(err).ErrStack()
	require.NotNil(t, stack)
	require.NotNil(t, stack.Top())
	assert.Equal(t, "+", stack.Top().Name)
}

func TestStackOverflow(t *testing.T) {
	s := newSession(t, eval.WithMaximumStackHeight(30))
	evalOK(t, s, "(defn boom [n] (+ 1 (boom n)))")
	err := evalErr(t, s, "(boom 0)")
	assert.Equal(t, "stack-overflow", err.Condition())
}

func TestCoreMacros(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, int64(1), evalOK(t, s, "(when true 1)").Int)
	assert.True(t, evalOK(t, s, "(when false 1)").IsNil())
	assert.Equal(t, int64(2), evalOK(t, s, "(unless false 2)").Int)
	assert.True(t, evalOK(t, s, "(unless true 2)").IsNil())
}

func TestDefAndSetBang(t *testing.T) {
	s := newSession(t)
	evalOK(t, s, "(def x 1)")
	assert.Equal(t, int64(1), evalOK(t, s, "x").Int)
	assert.Equal(t, int64(2), evalOK(t, s, "(set! x 2)").Int)
	assert.Equal(t, int64(2), evalOK(t, s, "x").Int)
	assert.Equal(t, runtime.TagVar, evalOK(t, s, "(var x)").Tag)
}

func TestNamespaceSwitch(t *testing.T) {
	s := newSession(t)
	evalOK(t, s, "(def x 5)")
	s.InNamespace("other")
	assert.Equal(t, int64(6), evalOK(t, s, "(+ user/x 1)").Int)
	evalOK(t, s, "(def x 10)")
	assert.Equal(t, int64(10), evalOK(t, s, "x").Int)
	s.InNamespace("user")
	assert.Equal(t, int64(5), evalOK(t, s, "x").Int)
}

func TestCollections(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, int64(3), evalOK(t, s, "(count [1 2 3])").Int)
	assert.Equal(t, int64(1), evalOK(t, s, "(get {:a 1} :a)").Int)
	assert.Equal(t, int64(9), evalOK(t, s, "(get {:a 1} :b 9)").Int)
	assert.Equal(t, int64(1), evalOK(t, s, "(:a {:a 1})").Int)
	assert.Equal(t, int64(2), evalOK(t, s, "([1 2 3] 1)").Int)
	assert.Equal(t, int64(7), evalOK(t, s, "(nth [1 2] 5 7)").Int)
	assert.Equal(t, int64(2), evalOK(t, s, "(get (assoc {:a 1} :b 2) :b)").Int)
	assert.True(t, evalOK(t, s, "(contains? #{1 2} 2)").Bool)
	assert.Equal(t, "(0 1 2)", evalOK(t, s, "(cons 0 (list 1 2))").String())
	assert.Equal(t, "[1 2 3]", evalOK(t, s, "(conj [1 2] 3)").String())
	assert.Equal(t, "(3 1 2)", evalOK(t, s, "(conj (list 1 2) 3)").String())
}

func TestApply(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, int64(10), evalOK(t, s, "(apply + 1 2 [3 4])").Int)
	assert.Equal(t, int64(6), evalOK(t, s, "(apply + [1 2 3])").Int)
}

func TestStrAndPrintln(t *testing.T) {
	var stdout bytes.Buffer
	s := newSession(t, eval.WithStdout(&stdout))
	assert.Equal(t, "x=1", evalOK(t, s, `(str "x=" 1)`).Str)
	evalOK(t, s, `(println "hi" 1)`)
	assert.Equal(t, "hi 1\n", stdout.String())
}

func TestQuote(t *testing.T) {
	s := newSession(t)
	out := evalOK(t, s, "'(+ 1 2)")
	assert.Equal(t, runtime.TagList, out.Tag)
	assert.Equal(t, "(+ 1 2)", out.String())
}

func TestNativeCall(t *testing.T) {
	s := newSession(t)
	s.Symbols().Register("host.add", func(args ...*runtime.Object) (*runtime.Object, error) {
		return runtime.Int(args[0].Int + args[1].Int), nil
	})
	assert.Equal(t, int64(3), evalOK(t, s, `(native-call "host.add" 1 2)`).Int)

	err := evalErr(t, s, `(native-call "host.missing")`)
	assert.Contains(t, err.ErrorMessage(), "no native symbol registered")
}

func TestPersistentCacheStoresUnits(t *testing.T) {
	p, err := compile.OpenPersistent(t.TempDir()+"/units.db", "test-1")
	require.NoError(t, err)
	defer p.Close()

	s := newSession(t, eval.WithPersistentCache(p))
	evalOK(t, s, "(defn f [x] (+ x 1))")

	units, err := p.Units()
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "user/f", units[0].QualifiedName)
	assert.Contains(t, units[0].Source, "(unit user$f$")
}
