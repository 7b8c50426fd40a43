// Copyright © 2025 The cinder authors

// Package analyzer turns reader forms into expression IR.  It resolves
// symbols against lexical scopes and namespaces, expands macros, validates
// special-form usage, and classifies every node for the evaluator's choice
// between direct interpretation and compiled execution.
package analyzer

import (
	"github.com/cinderlang/cinder/reader/token"
	"github.com/cinderlang/cinder/runtime"
)

// Kind discriminates expression IR nodes.
type Kind uint

// Possible Kind values.
const (
	// KindInvalid (0) is not a valid expression kind.
	KindInvalid Kind = iota
	// KindLiteral nodes store a constant object in Expr.Lit.
	KindLiteral
	// KindVarDeref nodes store the resolved *runtime.Var in Expr.Var and
	// evaluate to the var's root.
	KindVarDeref
	// KindVarRef nodes store the resolved *runtime.Var in Expr.Var and
	// evaluate to the var object itself (the `var` special form).
	KindVarRef
	// KindLocalRef nodes store the referenced lexical binding in Expr.Local.
	KindLocalRef
	// KindCall nodes store the callee in Expr.Head and arguments in
	// Expr.Args.
	KindCall
	// KindIf nodes use Expr.Cond, Expr.Then, and Expr.Else.  Else may be
	// nil, in which case the else branch is nil.
	KindIf
	// KindDo nodes store body expressions in Expr.Body.
	KindDo
	// KindLet nodes store sequential bindings in Expr.Bindings and body
	// expressions in Expr.Body.
	KindLet
	// KindLoop nodes share the KindLet layout and additionally act as a
	// recur target.
	KindLoop
	// KindRecur nodes store replacement values in Expr.Args.  Analysis
	// guarantees a recur node only occurs in the tail position of the
	// nearest enclosing loop or fn arity.
	KindRecur
	// KindFn nodes store an *FnData in Expr.Fn.
	KindFn
	// KindDef nodes store the interned var in Expr.Var, its name in
	// Expr.Name, and an optional init expression in Expr.Value.
	KindDef
	// KindSetBang nodes store the target var in Expr.Var and the new root
	// expression in Expr.Value.
	KindSetBang
	// KindQuote nodes store the quoted form, unevaluated, in Expr.Lit.
	KindQuote
	// KindVector, KindMap, and KindSet nodes store element expressions in
	// Expr.Args (maps alternate keys and values).  Collections whose
	// elements are all constant fold to KindLiteral during analysis.
	KindVector
	KindMap
	KindSetLit
	// KindNativeCall nodes store the native symbol name in Expr.Name and
	// arguments in Expr.Args.  The name is resolved against the process
	// symbol table at execution time.
	KindNativeCall
	kindMax
)

var kindStrings = [kindMax]string{
	KindInvalid:    "INVALID",
	KindLiteral:    "literal",
	KindVarDeref:   "var-deref",
	KindVarRef:     "var-ref",
	KindLocalRef:   "local-ref",
	KindCall:       "call",
	KindIf:         "if",
	KindDo:         "do",
	KindLet:        "let",
	KindLoop:       "loop",
	KindRecur:      "recur",
	KindFn:         "fn",
	KindDef:        "def",
	KindSetBang:    "set!",
	KindQuote:      "quote",
	KindVector:     "vector",
	KindMap:        "map",
	KindSetLit:     "set",
	KindNativeCall: "native-call",
}

func (k Kind) String() string {
	if k >= kindMax {
		return kindStrings[KindInvalid]
	}
	return kindStrings[k]
}

// Class tells the evaluator which execution strategy a node requires.
type Class uint

const (
	// ClassInterp nodes run on the evaluator's local-frame interpreter.
	ClassInterp Class = iota
	// ClassCompiled nodes must cross the compilation bridge: function
	// bodies and calls into native code.
	ClassCompiled
)

func (c Class) String() string {
	if c == ClassCompiled {
		return "compiled"
	}
	return "interp"
}

// Expr is an expression IR node.  Trees are acyclic and rooted per
// top-level form; field usage is fixed per kind (see the Kind constants).
// Every node retains the source span of its originating form.
type Expr struct {
	Kind  Kind
	Class Class
	Span  *token.Location

	Lit      *runtime.Object
	Var      *runtime.Var
	Local    *Binding
	Head     *Expr
	Args     []*Expr
	Cond     *Expr
	Then     *Expr
	Else     *Expr
	Body     []*Expr
	Bindings []*LetBinding
	Fn       *FnData
	Name     string
	Value    *Expr
}

// Binding is a lexical local: a name, a frame slot, and a closed-over flag.
// Visibility is strictly lexical; a binding never escapes its frame except
// by being captured into a fn expression.
type Binding struct {
	Name string
	Slot int
	// Captured is set when the binding is referenced from inside a nested
	// fn and must be closed over rather than read from the live frame.
	Captured bool
}

// LetBinding pairs a binding with its init expression in let and loop
// forms.
type LetBinding struct {
	Binding *Binding
	Init    *Expr
}

// FnData is the payload of a fn expression.
type FnData struct {
	// Name is the fn's self-reference name, or the def name for named
	// definitions.  It does not participate in structural hashing.
	Name string
	// Self is the binding the body uses to refer to the fn itself, or nil
	// for anonymous fns.  The evaluator seeds it with the closure before
	// running the body.
	Self    *Binding
	Arities []*FnArity
}

// FnArity is one parameter list and body of a fn.
type FnArity struct {
	Params   []*Binding
	Variadic bool
	Body     []*Expr
}

// ArityFor returns the arity matching the given argument count, preferring
// an exact match over a variadic one.
func (fd *FnData) ArityFor(nargs int) (*FnArity, bool) {
	var variadic *FnArity
	for _, ar := range fd.Arities {
		if ar.Variadic {
			if nargs >= len(ar.Params)-1 {
				variadic = ar
			}
			continue
		}
		if len(ar.Params) == nargs {
			return ar, true
		}
	}
	if variadic != nil {
		return variadic, true
	}
	return nil, false
}
