// Copyright © 2025 The cinder authors

// Package eval executes analyzed expression trees.  Literals, locals, and
// control forms run on a local-frame interpreter; function definitions
// cross the compilation bridge and memoize through the incremental cache,
// degrading to interpreted closures when no backend is available.
package eval

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cinderlang/cinder/analyzer"
	"github.com/cinderlang/cinder/compile"
	"github.com/cinderlang/cinder/reader"
	"github.com/cinderlang/cinder/reader/token"
	"github.com/cinderlang/cinder/runtime"
)

// Profiler observes function activations and bridge compilations.  The
// profiler package provides OpenTelemetry and OpenCensus implementations.
type Profiler interface {
	// EnterCall is invoked before a function activation; the returned
	// function runs when the activation finishes.
	EnterCall(name string, loc *token.Location) func()
	// CompileUnit is invoked after every backend compilation.
	CompileUnit(unit string, d time.Duration, err error)
}

// Session evaluates forms against a namespace registry.  Eval is safe for
// concurrent use: top-level evaluations serialize on the session, while
// backend compilations coalesce and complete on the bridge regardless of
// which evaluation submitted them.
type Session struct {
	mu sync.Mutex

	reg   *runtime.Registry
	ns    *runtime.Namespace
	stack *runtime.CallStack
	an    *analyzer.Analyzer

	emitter compile.Emitter
	backend compile.Backend
	bridge  *compile.Bridge
	cache   *compile.Cache
	symbols *compile.SymbolTable
	persist *compile.PersistentCache

	profiler     Profiler
	awaitTimeout time.Duration
	maxExpand    int
	stderr       io.Writer
	stdout       io.Writer
}

// New returns a session with the core library installed and the user
// namespace current.
func New(configs ...Config) (*Session, error) {
	s := &Session{
		reg:     runtime.NewRegistry(),
		stack:   &runtime.CallStack{MaxHeight: DefaultMaxStackHeight},
		emitter: compile.SexprEmitter{},
		cache:   compile.NewCache(),
		symbols: compile.NewSymbolTable(),
		stderr:  os.Stderr,
		stdout:  os.Stdout,
	}
	s.ns = s.reg.FindOrCreate(runtime.DefaultUserNS)
	for _, cfg := range configs {
		if err := cfg(s); err != nil {
			return nil, err
		}
	}
	if s.backend == nil {
		s.backend = &ClosureBackend{session: s}
	}
	var anOpts []analyzer.Option
	if s.maxExpand > 0 {
		anOpts = append(anOpts, analyzer.WithMaxExpansionDepth(s.maxExpand))
	}
	s.an = analyzer.New(s.reg, anOpts...)
	s.bridge = compile.NewBridge(s.emitter, s.backend, s.symbols)
	if s.profiler != nil {
		s.bridge.OnCompile(s.profiler.CompileUnit)
	}
	installCore(s)
	return s, nil
}

// DefaultMaxStackHeight bounds call stack growth for sessions that do not
// configure their own limit.
const DefaultMaxStackHeight = 25000

// Registry returns the session's namespace registry.
func (s *Session) Registry() *runtime.Registry {
	return s.reg
}

// Namespace returns the current namespace.
func (s *Session) Namespace() *runtime.Namespace {
	return s.ns
}

// InNamespace switches the current namespace, creating it on first use.  A
// fresh namespace is aliased to the core library.
func (s *Session) InNamespace(name string) *runtime.Namespace {
	ns := s.reg.FindOrCreate(name)
	_ = ns.Alias("core", s.reg.Core())
	s.ns = ns
	return ns
}

// Cache returns the incremental compilation cache.
func (s *Session) Cache() *compile.Cache {
	return s.cache
}

// Invalidate drops the cached compilation for one qualified name, forcing
// the next matching definition through the backend even if its structure is
// unchanged.
func (s *Session) Invalidate(qualified string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.InvalidateName(qualified)
}

// ReloadNamespace advances the named namespace's generation and eagerly
// drops its cache entries.  Vars keep their identity; every definition in
// the namespace recompiles on its next evaluation.
func (s *Session) ReloadNamespace(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.FindOrCreate(name).Reload()
	s.cache.InvalidateNamespace(name)
}

// Symbols returns the process entry point table.
func (s *Session) Symbols() *compile.SymbolTable {
	return s.symbols
}

// Stack returns the session call stack.
func (s *Session) Stack() *runtime.CallStack {
	return s.stack
}

// Eval analyzes and executes one top-level form.  Failures of any stage
// come back as tagged error objects, never as panics.
func (s *Session) Eval(form *runtime.Object) *runtime.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.an.Analyze(form, s.ns)
	if err != nil {
		return s.analysisErrorObject(err, form.Source)
	}
	return s.evalAnalyzed(res)
}

// EvalString reads and evaluates every form in text, returning the last
// result.  The name identifies the stream in diagnostics.
func (s *Session) EvalString(name, text string) *runtime.Object {
	return s.Load(name, strings.NewReader(text))
}

// Load reads and evaluates every form from r, returning the last result.
// Evaluation stops at the first error.
func (s *Session) Load(name string, r io.Reader) *runtime.Object {
	forms, err := reader.Read(name, r)
	if err != nil {
		return runtime.ErrorCondition("reader-error", err)
	}
	out := runtime.Nil()
	for _, form := range forms {
		out = s.Eval(form)
		if out.Tag == runtime.TagError {
			return out
		}
	}
	return out
}

func (s *Session) evalAnalyzed(res *analyzer.Result) *runtime.Object {
	e := res.Expr
	var out *runtime.Object
	var err error
	switch {
	case e.Kind == analyzer.KindDef && e.Class == analyzer.ClassCompiled:
		out, err = s.evalDefFn(e, res.MacroDeps)
	case e.Kind == analyzer.KindFn:
		out, err = s.evalTopFn(e)
	default:
		out, err = s.exec(e, nil)
	}
	if err != nil {
		return s.errorObject(err, e.Span)
	}
	return out
}

// exec interprets one expression against a frame chain.  A recur in tail
// position surfaces as a *recurSignal error and is consumed by the nearest
// loop or fn activation; it never grows the Go call stack.
func (s *Session) exec(e *analyzer.Expr, fr *frame) (*runtime.Object, error) {
	switch e.Kind {
	case analyzer.KindLiteral, analyzer.KindQuote:
		return e.Lit, nil
	case analyzer.KindVarDeref:
		root := e.Var.Root()
		if root == nil {
			return nil, fmt.Errorf("unbound var: %s", e.Var.QualifiedName())
		}
		return root, nil
	case analyzer.KindVarRef:
		return e.Var.Obj(), nil
	case analyzer.KindLocalRef:
		return fr.lookup(e.Local)
	case analyzer.KindIf:
		cond, err := s.exec(e.Cond, fr)
		if err != nil {
			return nil, err
		}
		if cond.Truthy() {
			return s.exec(e.Then, fr)
		}
		if e.Else == nil {
			return runtime.Nil(), nil
		}
		return s.exec(e.Else, fr)
	case analyzer.KindDo:
		return s.execBody(e.Body, fr)
	case analyzer.KindLet:
		sub := newFrame(fr)
		for _, lb := range e.Bindings {
			v, err := s.exec(lb.Init, sub)
			if err != nil {
				return nil, err
			}
			sub.set(lb.Binding, v)
		}
		return s.execBody(e.Body, sub)
	case analyzer.KindLoop:
		return s.execLoop(e, fr)
	case analyzer.KindRecur:
		args, err := s.execAll(e.Args, fr)
		if err != nil {
			return nil, err
		}
		return nil, &recurSignal{args: args}
	case analyzer.KindCall:
		callee, err := s.exec(e.Head, fr)
		if err != nil {
			return nil, err
		}
		args, err := s.execAll(e.Args, fr)
		if err != nil {
			return nil, err
		}
		return s.call(e.Span, callee, args)
	case analyzer.KindFn:
		// A fn in an interpreted context closes over the live frame chain.
		return s.makeClosure(e.Fn, fr, false, ""), nil
	case analyzer.KindDef:
		if e.Value != nil {
			v, err := s.exec(e.Value, fr)
			if err != nil {
				return nil, err
			}
			e.Var.SetRoot(v)
		}
		return e.Var.Obj(), nil
	case analyzer.KindSetBang:
		v, err := s.exec(e.Value, fr)
		if err != nil {
			return nil, err
		}
		e.Var.SetRoot(v)
		return v, nil
	case analyzer.KindVector:
		items, err := s.execAll(e.Args, fr)
		if err != nil {
			return nil, err
		}
		return runtime.Vector(items), nil
	case analyzer.KindMap:
		items, err := s.execAll(e.Args, fr)
		if err != nil {
			return nil, err
		}
		m := runtime.Map(items)
		if m.Tag == runtime.TagError {
			return nil, runtime.GoError(m)
		}
		return m, nil
	case analyzer.KindSetLit:
		items, err := s.execAll(e.Args, fr)
		if err != nil {
			return nil, err
		}
		set := runtime.Set(items)
		if set.Tag == runtime.TagError {
			return nil, runtime.GoError(set)
		}
		return set, nil
	case analyzer.KindNativeCall:
		proc, err := s.symbols.MustLookup(e.Name)
		if err != nil {
			return nil, err
		}
		args, err := s.execAll(e.Args, fr)
		if err != nil {
			return nil, err
		}
		return s.invokeProc(e.Span, e.Name, proc, args)
	}
	return nil, fmt.Errorf("internal: cannot execute %s node", e.Kind)
}

func (s *Session) execBody(body []*analyzer.Expr, fr *frame) (*runtime.Object, error) {
	out := runtime.Nil()
	for _, e := range body {
		var err error
		out, err = s.exec(e, fr)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Session) execAll(exprs []*analyzer.Expr, fr *frame) ([]*runtime.Object, error) {
	items := make([]*runtime.Object, len(exprs))
	for i, e := range exprs {
		v, err := s.exec(e, fr)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}

func (s *Session) execLoop(e *analyzer.Expr, fr *frame) (*runtime.Object, error) {
	sub := newFrame(fr)
	for _, lb := range e.Bindings {
		v, err := s.exec(lb.Init, sub)
		if err != nil {
			return nil, err
		}
		sub.set(lb.Binding, v)
	}
	for {
		out, err := s.execBody(e.Body, sub)
		rs, ok := err.(*recurSignal)
		if !ok {
			return out, err
		}
		// An in-place jump: rebind and iterate without growing any stack.
		for i, lb := range e.Bindings {
			sub.set(lb.Binding, rs.args[i])
		}
	}
}

// call invokes a callable object, maintaining the call stack for function
// callees.  Lookup-style callables (keywords, collections) skip the stack;
// they cannot recurse.
func (s *Session) call(loc *token.Location, callee *runtime.Object, args []*runtime.Object) (*runtime.Object, error) {
	switch callee.Tag {
	case runtime.TagFun:
		fd := callee.FunData()
		return s.invokeProc(loc, callFrameName(fd), fd.Proc, args)
	case runtime.TagVar:
		root := callee.Var().Root()
		if root == nil {
			return nil, fmt.Errorf("unbound var: %s", callee.Var().QualifiedName())
		}
		return s.call(loc, root, args)
	}
	return runtime.Invoke(callee, args...)
}

func (s *Session) invokeProc(loc *token.Location, name string, proc runtime.Proc, args []*runtime.Object) (*runtime.Object, error) {
	if err := s.stack.Push(loc, s.ns.Name(), name); err != nil {
		return nil, err
	}
	defer s.stack.Pop()
	if s.profiler != nil {
		exit := s.profiler.EnterCall(name, loc)
		defer exit()
	}
	out, err := proc(args...)
	if err != nil {
		// Stamp the stack before the deferred pops unwind it.  ErrorAt
		// keeps the first stamp, so the innermost frame wins.
		if ev, ok := err.(*runtime.ErrorVal); ok {
			runtime.ErrorAt((*runtime.Object)(ev), loc, s.stack)
		}
		return nil, err
	}
	return out, nil
}

func callFrameName(fd *runtime.FunData) string {
	if fd.Name != "" {
		return fd.Name
	}
	if fd.UniqueName != "" {
		return fd.UniqueName
	}
	return "fn"
}

// recurSignal carries recur arguments from a tail position up to the
// nearest loop or fn activation.  Analysis guarantees one always exists.
type recurSignal struct {
	args []*runtime.Object
}

func (rs *recurSignal) Error() string {
	return "internal: recur escaped its loop"
}

// uniqueName derives the synthetic unit name for a definition.  Including
// the structural hash makes the name deterministic, so concurrent
// submissions of the same definition coalesce onto one bridge job.
func uniqueName(qualified string, hash uint64) string {
	mangled := strings.Map(func(r rune) rune {
		switch r {
		case '/', '.':
			return '$'
		}
		return r
	}, qualified)
	return fmt.Sprintf("%s$%016x", mangled, hash)
}

func (s *Session) analysisErrorObject(err error, loc *token.Location) *runtime.Object {
	obj := runtime.ErrorCondition("analysis-error", err)
	if aerr, ok := err.(*analyzer.AnalysisError); ok && aerr.Span != nil {
		loc = aerr.Span
		obj = runtime.ErrorConditionf("analysis-error", "%s", aerr.Msg)
	}
	return runtime.ErrorAt(obj, loc, s.stack)
}

// errorObject converts a runtime fault into a tagged error object carrying
// the failing span and a copy of the call stack.
func (s *Session) errorObject(err error, loc *token.Location) *runtime.Object {
	switch e := err.(type) {
	case *runtime.ErrorVal:
		return runtime.ErrorAt((*runtime.Object)(e), loc, s.stack)
	case *compile.Diagnostic:
		cond := "backend-diagnostic"
		if e.Kind == compile.BackendUnavailable {
			cond = "backend-unavailable"
		}
		return runtime.ErrorAt(runtime.ErrorCondition(cond, e), loc, s.stack)
	case *runtime.StackOverflowError:
		return runtime.ErrorAt(runtime.ErrorCondition("stack-overflow", e), loc, s.stack)
	}
	return runtime.ErrorAt(runtime.Error(err), loc, s.stack)
}
