// Copyright © 2025 The cinder authors

package analyzer

import (
	"github.com/cinderlang/cinder/runtime"
)

// StructuralHash returns a hash over an expression tree's structure and
// literal content.  Source spans, frame slot numbers, and fn names are
// excluded, so re-analyzing an unchanged definition after unrelated edits
// moved it within its file produces an identical hash.  Two trees with
// equal hashes are treated as the same compilation unit by the cache.
func StructuralHash(e *Expr) uint64 {
	h := hashKind(e.Kind)
	switch e.Kind {
	case KindLiteral, KindQuote:
		h = runtime.HashCombine(h, runtime.Hash(e.Lit))
	case KindVarDeref, KindVarRef:
		h = runtime.HashCombine(h, hashName(e.Var.QualifiedName()))
	case KindLocalRef:
		h = runtime.HashCombine(h, hashName(e.Local.Name))
	case KindCall:
		h = runtime.HashCombine(h, StructuralHash(e.Head))
		h = hashExprs(h, e.Args)
	case KindIf:
		h = runtime.HashCombine(h, StructuralHash(e.Cond))
		h = runtime.HashCombine(h, StructuralHash(e.Then))
		if e.Else != nil {
			h = runtime.HashCombine(h, StructuralHash(e.Else))
		}
	case KindDo:
		h = hashExprs(h, e.Body)
	case KindLet, KindLoop:
		for _, lb := range e.Bindings {
			h = runtime.HashCombine(h, hashName(lb.Binding.Name))
			h = runtime.HashCombine(h, StructuralHash(lb.Init))
		}
		h = hashExprs(h, e.Body)
	case KindRecur:
		h = hashExprs(h, e.Args)
	case KindFn:
		// The fn name is deliberately excluded: generated unique names and
		// def renames must not change the hash of an otherwise identical
		// body.
		for _, ar := range e.Fn.Arities {
			h = runtime.HashCombine(h, uint64(len(ar.Params)))
			if ar.Variadic {
				h = runtime.HashCombine(h, 1)
			}
			for _, p := range ar.Params {
				h = runtime.HashCombine(h, hashName(p.Name))
			}
			h = hashExprs(h, ar.Body)
		}
	case KindDef:
		h = runtime.HashCombine(h, hashName(e.Var.QualifiedName()))
		if e.Value != nil {
			h = runtime.HashCombine(h, StructuralHash(e.Value))
		}
	case KindSetBang:
		h = runtime.HashCombine(h, hashName(e.Var.QualifiedName()))
		h = runtime.HashCombine(h, StructuralHash(e.Value))
	case KindVector, KindMap, KindSetLit:
		h = hashExprs(h, e.Args)
	case KindNativeCall:
		h = runtime.HashCombine(h, hashName(e.Name))
		h = hashExprs(h, e.Args)
	}
	return h
}

func hashExprs(h uint64, exprs []*Expr) uint64 {
	for _, e := range exprs {
		h = runtime.HashCombine(h, StructuralHash(e))
	}
	return h
}

func hashKind(k Kind) uint64 {
	return runtime.HashCombine(0x9e3779b97f4a7c15, uint64(k))
}

func hashName(name string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= 1099511628211
	}
	return h
}
