// Copyright © 2025 The cinder authors

package analyzer

import (
	"github.com/cinderlang/cinder/runtime"
)

// DefaultMaxExpansionDepth bounds successive macro expansions of a single
// form.  Unbounded macro recursion must fail, not hang.
const DefaultMaxExpansionDepth = 1000

// Analyzer converts forms into expression IR relative to a namespace
// registry.  An Analyzer is safe for use from a single session goroutine;
// concurrent sessions should each hold their own.
type Analyzer struct {
	reg       *runtime.Registry
	maxExpand int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMaxExpansionDepth bounds the number of successive macro expansions
// applied to any single form.
func WithMaxExpansionDepth(n int) Option {
	return func(a *Analyzer) { a.maxExpand = n }
}

// New returns an Analyzer resolving vars through reg.
func New(reg *runtime.Registry, opts ...Option) *Analyzer {
	a := &Analyzer{reg: reg, maxExpand: DefaultMaxExpansionDepth}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MacroDep records one macro var consulted while analyzing a top-level
// form, together with the root revision observed.  The incremental
// compilation cache stores these per entry and invalidates the entry when
// any recorded revision drifts.
type MacroDep struct {
	Var *runtime.Var
	Rev uint64
}

// Result is a completed analysis of one top-level form.
type Result struct {
	Expr      *Expr
	MacroDeps []MacroDep
}

// Analyze converts one top-level form into an expression tree.  On failure
// it returns an *AnalysisError and no partial IR.
func (a *Analyzer) Analyze(form *runtime.Object, ns *runtime.Namespace) (*Result, error) {
	ctx := &context{a: a, ns: ns}
	e, err := ctx.analyze(form, NewScope(), true)
	if err != nil {
		return nil, err
	}
	return &Result{Expr: e, MacroDeps: ctx.deps}, nil
}

type context struct {
	a    *Analyzer
	ns   *runtime.Namespace
	deps []MacroDep
}

func (ctx *context) recordDep(v *runtime.Var) {
	for _, dep := range ctx.deps {
		if dep.Var == v {
			return
		}
	}
	ctx.deps = append(ctx.deps, MacroDep{Var: v, Rev: v.Rev()})
}

func (ctx *context) analyze(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	span := form.Source
	switch form.Tag {
	case runtime.TagNil, runtime.TagBool, runtime.TagInt, runtime.TagReal,
		runtime.TagString, runtime.TagKeyword:
		return &Expr{Kind: KindLiteral, Span: span, Lit: form}, nil
	case runtime.TagSymbol:
		return ctx.analyzeSymbol(form, sc)
	case runtime.TagVector:
		return ctx.analyzeColl(form, sc, KindVector)
	case runtime.TagMap:
		return ctx.analyzeColl(form, sc, KindMap)
	case runtime.TagSet:
		return ctx.analyzeColl(form, sc, KindSetLit)
	case runtime.TagList:
		if len(form.Items) == 0 {
			return &Expr{Kind: KindLiteral, Span: span, Lit: form}, nil
		}
		return ctx.analyzeSeq(form, sc, tail)
	case runtime.TagFun, runtime.TagVar, runtime.TagNamespace, runtime.TagExtension:
		// Macro expansions may splice pre-built runtime values into forms.
		return &Expr{Kind: KindLiteral, Span: span, Lit: form}, nil
	}
	return nil, errf(span, "cannot analyze %s form", form.Tag)
}

func (ctx *context) analyzeSymbol(sym *runtime.Object, sc *Scope) (*Expr, error) {
	if sym.SymbolNS() == "" {
		if b, ok := sc.resolve(sym.Str); ok {
			return &Expr{Kind: KindLocalRef, Span: sym.Source, Local: b}, nil
		}
	}
	v, ok := ctx.a.reg.ResolveVar(sym, ctx.ns)
	if !ok {
		return nil, errf(sym.Source, "unable to resolve symbol: %s", sym.Str)
	}
	return &Expr{Kind: KindVarDeref, Span: sym.Source, Var: v}, nil
}

func constantForm(form *runtime.Object) bool {
	switch form.Tag {
	case runtime.TagNil, runtime.TagBool, runtime.TagInt, runtime.TagReal,
		runtime.TagString, runtime.TagKeyword:
		return true
	case runtime.TagVector, runtime.TagMap, runtime.TagSet:
		for _, item := range form.Items {
			if !constantForm(item) {
				return false
			}
		}
		return true
	}
	return false
}

func (ctx *context) analyzeColl(form *runtime.Object, sc *Scope, kind Kind) (*Expr, error) {
	if constantForm(form) {
		return &Expr{Kind: KindLiteral, Span: form.Source, Lit: form}, nil
	}
	args := make([]*Expr, len(form.Items))
	for i, item := range form.Items {
		e, err := ctx.analyze(item, sc, false)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	return &Expr{Kind: kind, Span: form.Source, Args: args}, nil
}

// analyzeSeq handles a non-empty list form: special forms first, then macro
// expansion, then ordinary calls.
func (ctx *context) analyzeSeq(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	seen := make(map[uint64]bool)
	for depth := 0; ; depth++ {
		if depth > ctx.a.maxExpand {
			return nil, errf(form.Source, "maximum macro expansion depth exceeded (%d)", ctx.a.maxExpand)
		}
		head := form.Items[0]
		if head.Tag == runtime.TagSymbol && head.SymbolNS() == "" {
			if _, shadowed := sc.resolve(head.Str); !shadowed {
				if fn, ok := specialForms[head.Str]; ok {
					return fn(ctx, form, sc, tail)
				}
			}
		}
		mvar, ok := ctx.macroVar(head, sc)
		if !ok {
			break
		}
		h := runtime.Hash(form)
		if seen[h] {
			return nil, errf(form.Source, "macro expansion cycle detected expanding %s", head.Str)
		}
		seen[h] = true
		ctx.recordDep(mvar)
		expansion, err := runtime.Invoke(mvar.Root(), form.Items[1:]...)
		if err != nil {
			return nil, errf(form.Source, "macro %s: %v", head.Str, err)
		}
		if expansion.Tag == runtime.TagError {
			return nil, errf(form.Source, "macro %s: %v", head.Str, runtime.GoError(expansion))
		}
		if expansion.Source == nil || expansion.Source.Pos < 0 {
			// Stamp synthetic expansion nodes with the call site so that
			// diagnostics point at the macro invocation.
			expansion = expansion.WithSource(form.Source)
		}
		if expansion.Tag != runtime.TagList || len(expansion.Items) == 0 {
			return ctx.analyze(expansion, sc, tail)
		}
		form = expansion
	}
	return ctx.analyzeCall(form, sc)
}

func (ctx *context) macroVar(head *runtime.Object, sc *Scope) (*runtime.Var, bool) {
	if head.Tag != runtime.TagSymbol {
		return nil, false
	}
	if head.SymbolNS() == "" {
		if _, shadowed := sc.resolve(head.Str); shadowed {
			return nil, false
		}
	}
	v, ok := ctx.a.reg.ResolveVar(head, ctx.ns)
	if !ok || !v.IsMacro() || !v.IsBound() {
		return nil, false
	}
	return v, true
}

func (ctx *context) analyzeCall(form *runtime.Object, sc *Scope) (*Expr, error) {
	head, err := ctx.analyze(form.Items[0], sc, false)
	if err != nil {
		return nil, err
	}
	args := make([]*Expr, len(form.Items)-1)
	for i, arg := range form.Items[1:] {
		e, err := ctx.analyze(arg, sc, false)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	return &Expr{Kind: KindCall, Span: form.Source, Head: head, Args: args}, nil
}

// specialForms is the fixed table of analyzer-defined head symbols.  The
// map is populated in init because the analyze functions it references
// themselves recurse through analyze.
var specialForms map[string]func(*context, *runtime.Object, *Scope, bool) (*Expr, error)

func init() {
	specialForms = map[string]func(*context, *runtime.Object, *Scope, bool) (*Expr, error){
		"def":         (*context).analyzeDef,
		"fn":          (*context).analyzeFn,
		"let":         (*context).analyzeLet,
		"loop":        (*context).analyzeLoop,
		"recur":       (*context).analyzeRecur,
		"if":          (*context).analyzeIf,
		"do":          (*context).analyzeDo,
		"quote":       (*context).analyzeQuote,
		"var":         (*context).analyzeVarRef,
		"set!":        (*context).analyzeSetBang,
		"native-call": (*context).analyzeNativeCall,
	}
}

// IsSpecialForm reports whether name is an analyzer special form.
func IsSpecialForm(name string) bool {
	_, ok := specialForms[name]
	return ok
}

func (ctx *context) analyzeDef(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	if len(form.Items) < 2 || len(form.Items) > 3 {
		return nil, errf(form.Source, "def expects a name and an optional init, got %d forms", len(form.Items)-1)
	}
	name := form.Items[1]
	if name.Tag != runtime.TagSymbol {
		return nil, errf(name.Source, "def name is not a symbol: %s", name.Tag)
	}
	if ns := name.SymbolNS(); ns != "" && ns != ctx.ns.Name() {
		return nil, errf(name.Source, "cannot def a symbol qualified to another namespace: %s", name.Str)
	}
	v := ctx.ns.Intern(name.SymbolName())
	e := &Expr{Kind: KindDef, Span: form.Source, Var: v, Name: name.SymbolName()}
	if len(form.Items) == 3 {
		val, err := ctx.analyzeNamed(form.Items[2], sc, name.SymbolName())
		if err != nil {
			return nil, err
		}
		e.Value = val
		if val.Kind == KindFn {
			e.Class = ClassCompiled
		}
	}
	return e, nil
}

// analyzeNamed analyzes a def init form, propagating the def name into a
// directly defined fn for diagnostics and unit naming.
func (ctx *context) analyzeNamed(form *runtime.Object, sc *Scope, name string) (*Expr, error) {
	e, err := ctx.analyze(form, sc, false)
	if err != nil {
		return nil, err
	}
	if e.Kind == KindFn && e.Fn.Name == "" {
		e.Fn.Name = name
	}
	return e, nil
}

func (ctx *context) analyzeFn(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	items := form.Items[1:]
	fd := &FnData{}
	if len(items) > 0 && items[0].Tag == runtime.TagSymbol {
		fd.Name = items[0].Str
		items = items[1:]
	}
	if len(items) == 0 {
		return nil, errf(form.Source, "fn requires a parameter vector")
	}
	fnScope := sc
	var self *Binding
	if fd.Name != "" {
		// The self-reference name is visible inside every arity body.
		fnScope = sc.child()
		self = fnScope.bind(fd.Name)
	}
	switch items[0].Tag {
	case runtime.TagVector:
		ar, err := ctx.analyzeArity(items[0], items[1:], fnScope)
		if err != nil {
			return nil, err
		}
		fd.Arities = []*FnArity{ar}
	case runtime.TagList:
		for _, clause := range items {
			if clause.Tag != runtime.TagList || len(clause.Items) == 0 || clause.Items[0].Tag != runtime.TagVector {
				return nil, errf(clause.Source, "fn arity clause must be ([params] body...)")
			}
			ar, err := ctx.analyzeArity(clause.Items[0], clause.Items[1:], fnScope)
			if err != nil {
				return nil, err
			}
			for _, prev := range fd.Arities {
				if len(prev.Params) == len(ar.Params) && prev.Variadic == ar.Variadic {
					return nil, errf(clause.Source, "fn already has an arity with %d parameters", len(ar.Params))
				}
			}
			fd.Arities = append(fd.Arities, ar)
		}
	default:
		return nil, errf(items[0].Source, "fn requires a parameter vector, got %s", items[0].Tag)
	}
	if self != nil {
		self.Captured = true
		fd.Self = self
	}
	return &Expr{Kind: KindFn, Span: form.Source, Class: ClassCompiled, Fn: fd}, nil
}

func (ctx *context) analyzeArity(paramVec *runtime.Object, body []*runtime.Object, sc *Scope) (*FnArity, error) {
	ar := &FnArity{}
	params := make([]*Binding, 0, len(paramVec.Items))
	rest := false
	for _, p := range paramVec.Items {
		if p.Tag != runtime.TagSymbol {
			return nil, errf(p.Source, "fn parameter is not a symbol: %s", p.Tag)
		}
		if p.Str == "&" {
			if rest {
				return nil, errf(p.Source, "fn parameter vector contains multiple &")
			}
			rest = true
			continue
		}
		if rest && ar.Variadic {
			return nil, errf(p.Source, "fn takes a single parameter after &")
		}
		params = append(params, &Binding{Name: p.Str})
		if rest {
			ar.Variadic = true
		}
	}
	if rest && !ar.Variadic {
		return nil, errf(paramVec.Source, "fn parameter vector ends with &")
	}
	ar.Params = params
	bodyScope := sc.fnChild(params)
	exprs, err := ctx.analyzeBody(body, bodyScope, true)
	if err != nil {
		return nil, err
	}
	ar.Body = exprs
	return ar, nil
}

func (ctx *context) analyzeBody(body []*runtime.Object, sc *Scope, tail bool) ([]*Expr, error) {
	exprs := make([]*Expr, len(body))
	for i, form := range body {
		t := tail && i == len(body)-1
		e, err := ctx.analyze(form, sc, t)
		if err != nil {
			return nil, err
		}
		exprs[i] = e
	}
	return exprs, nil
}

func (ctx *context) analyzeLet(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	return ctx.analyzeLetLike(form, sc, tail, KindLet)
}

func (ctx *context) analyzeLoop(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	return ctx.analyzeLetLike(form, sc, tail, KindLoop)
}

func (ctx *context) analyzeLetLike(form *runtime.Object, sc *Scope, tail bool, kind Kind) (*Expr, error) {
	name := "let"
	if kind == KindLoop {
		name = "loop"
	}
	if len(form.Items) < 2 {
		return nil, errf(form.Source, "%s requires a binding vector", name)
	}
	vec := form.Items[1]
	if vec.Tag != runtime.TagVector {
		return nil, errf(vec.Source, "%s bindings are not a vector: %s", name, vec.Tag)
	}
	if len(vec.Items)%2 != 0 {
		return nil, errf(vec.Source, "%s requires an even number of binding forms", name)
	}
	// Bindings are sequential: each init sees the bindings before it.
	bodyScope := sc.child()
	bindings := make([]*LetBinding, 0, len(vec.Items)/2)
	for i := 0; i < len(vec.Items); i += 2 {
		sym := vec.Items[i]
		if sym.Tag != runtime.TagSymbol || sym.SymbolNS() != "" {
			return nil, errf(sym.Source, "%s binding name is not an unqualified symbol: %s", name, sym)
		}
		init, err := ctx.analyze(vec.Items[i+1], bodyScope, false)
		if err != nil {
			return nil, err
		}
		b := bodyScope.bind(sym.Str)
		bindings = append(bindings, &LetBinding{Binding: b, Init: init})
	}
	bodyTail := tail
	if kind == KindLoop {
		locals := make([]*Binding, len(bindings))
		for i, lb := range bindings {
			locals[i] = lb.Binding
		}
		bodyScope = bodyScope.loopChild(locals)
		// The loop body is a recur target in its own right regardless of
		// the loop's position in the enclosing form.
		bodyTail = true
	}
	body, err := ctx.analyzeBody(form.Items[2:], bodyScope, bodyTail)
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: kind, Span: form.Source, Bindings: bindings, Body: body}, nil
}

func (ctx *context) analyzeRecur(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	if sc.recur == nil {
		return nil, errf(form.Source, "recur outside of loop or fn")
	}
	if !tail {
		return nil, errf(form.Source, "recur is not in tail position")
	}
	if len(form.Items)-1 != len(sc.recur) {
		return nil, errf(form.Source, "recur expects %d arguments, got %d", len(sc.recur), len(form.Items)-1)
	}
	args := make([]*Expr, len(form.Items)-1)
	for i, arg := range form.Items[1:] {
		e, err := ctx.analyze(arg, sc, false)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	return &Expr{Kind: KindRecur, Span: form.Source, Args: args}, nil
}

func (ctx *context) analyzeIf(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	if len(form.Items) < 3 || len(form.Items) > 4 {
		return nil, errf(form.Source, "if expects a condition, a then branch, and an optional else branch")
	}
	cond, err := ctx.analyze(form.Items[1], sc, false)
	if err != nil {
		return nil, err
	}
	then, err := ctx.analyze(form.Items[2], sc, tail)
	if err != nil {
		return nil, err
	}
	e := &Expr{Kind: KindIf, Span: form.Source, Cond: cond, Then: then}
	if len(form.Items) == 4 {
		els, err := ctx.analyze(form.Items[3], sc, tail)
		if err != nil {
			return nil, err
		}
		e.Else = els
	}
	return e, nil
}

func (ctx *context) analyzeDo(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	body, err := ctx.analyzeBody(form.Items[1:], sc, tail)
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: KindDo, Span: form.Source, Body: body}, nil
}

func (ctx *context) analyzeQuote(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	if len(form.Items) != 2 {
		return nil, errf(form.Source, "quote expects exactly one form")
	}
	return &Expr{Kind: KindQuote, Span: form.Source, Lit: form.Items[1]}, nil
}

func (ctx *context) analyzeVarRef(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	if len(form.Items) != 2 || form.Items[1].Tag != runtime.TagSymbol {
		return nil, errf(form.Source, "var expects a symbol")
	}
	v, ok := ctx.a.reg.ResolveVar(form.Items[1], ctx.ns)
	if !ok {
		return nil, errf(form.Items[1].Source, "unable to resolve var: %s", form.Items[1].Str)
	}
	return &Expr{Kind: KindVarRef, Span: form.Source, Var: v}, nil
}

func (ctx *context) analyzeSetBang(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	if len(form.Items) != 3 {
		return nil, errf(form.Source, "set! expects a symbol and a value")
	}
	sym := form.Items[1]
	if sym.Tag != runtime.TagSymbol {
		return nil, errf(sym.Source, "set! target is not a symbol: %s", sym.Tag)
	}
	if sym.SymbolNS() == "" {
		if _, ok := sc.resolve(sym.Str); ok {
			return nil, errf(sym.Source, "set! cannot mutate lexical binding: %s", sym.Str)
		}
	}
	v, ok := ctx.a.reg.ResolveVar(sym, ctx.ns)
	if !ok {
		return nil, errf(sym.Source, "unable to resolve symbol: %s", sym.Str)
	}
	val, err := ctx.analyze(form.Items[2], sc, false)
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: KindSetBang, Span: form.Source, Var: v, Value: val}, nil
}

func (ctx *context) analyzeNativeCall(form *runtime.Object, sc *Scope, tail bool) (*Expr, error) {
	if len(form.Items) < 2 {
		return nil, errf(form.Source, "native-call expects a symbol name")
	}
	name := form.Items[1]
	if name.Tag != runtime.TagString {
		return nil, errf(name.Source, "native-call name is not a string: %s", name.Tag)
	}
	args := make([]*Expr, len(form.Items)-2)
	for i, arg := range form.Items[2:] {
		e, err := ctx.analyze(arg, sc, false)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	return &Expr{Kind: KindNativeCall, Span: form.Source, Class: ClassCompiled, Name: name.Str, Args: args}, nil
}
