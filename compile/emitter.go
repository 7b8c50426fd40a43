// Copyright © 2025 The cinder authors

package compile

import (
	"fmt"
	"strings"

	"github.com/cinderlang/cinder/analyzer"
)

// EmittedUnit is one compilation unit handed to a Backend.  Source is the
// emitter's serialization and the only place backend vocabulary appears;
// the IR pointer rides along so that in-process backends can skip the text
// round trip.
type EmittedUnit struct {
	// Name is the synthetic unique unit name the entry point will be bound
	// under.
	Name string
	// QualifiedName is the "ns/name" the unit defines, when it defines one.
	QualifiedName string
	// Source is the backend input produced by the Emitter.
	Source string
	// IR is the expression subtree the unit was emitted from.
	IR *analyzer.Expr
}

// Emitter serializes an expression subtree into a backend's input format.
// Implementations own all backend-specific vocabulary; nothing else in the
// bridge or the evaluator knows what the backend consumes.
type Emitter interface {
	Emit(name string, e *analyzer.Expr) (*EmittedUnit, error)
}

// SexprEmitter is the reference emitter.  It serializes IR as annotated
// s-expressions, which doubles as the bridge's diagnostic dump format and
// as the persistent cache's stored source.
type SexprEmitter struct{}

func (SexprEmitter) Emit(name string, e *analyzer.Expr) (*EmittedUnit, error) {
	var b strings.Builder
	b.WriteString("(unit ")
	b.WriteString(name)
	b.WriteString(" ")
	if err := writeExpr(&b, e); err != nil {
		return nil, err
	}
	b.WriteString(")")
	return &EmittedUnit{Name: name, Source: b.String(), IR: e}, nil
}

func writeExpr(b *strings.Builder, e *analyzer.Expr) error {
	switch e.Kind {
	case analyzer.KindLiteral, analyzer.KindQuote:
		fmt.Fprintf(b, "(%s %s)", e.Kind, e.Lit)
	case analyzer.KindVarDeref, analyzer.KindVarRef:
		fmt.Fprintf(b, "(%s %s)", e.Kind, e.Var.QualifiedName())
	case analyzer.KindLocalRef:
		fmt.Fprintf(b, "(%s %s.%d)", e.Kind, e.Local.Name, e.Local.Slot)
	case analyzer.KindCall:
		b.WriteString("(call ")
		if err := writeExpr(b, e.Head); err != nil {
			return err
		}
		if err := writeExprs(b, e.Args); err != nil {
			return err
		}
		b.WriteString(")")
	case analyzer.KindIf:
		b.WriteString("(if ")
		if err := writeExpr(b, e.Cond); err != nil {
			return err
		}
		b.WriteString(" ")
		if err := writeExpr(b, e.Then); err != nil {
			return err
		}
		if e.Else != nil {
			b.WriteString(" ")
			if err := writeExpr(b, e.Else); err != nil {
				return err
			}
		}
		b.WriteString(")")
	case analyzer.KindDo:
		b.WriteString("(do")
		if err := writeExprs(b, e.Body); err != nil {
			return err
		}
		b.WriteString(")")
	case analyzer.KindLet, analyzer.KindLoop:
		fmt.Fprintf(b, "(%s (", e.Kind)
		for i, lb := range e.Bindings {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(b, "(%s.%d ", lb.Binding.Name, lb.Binding.Slot)
			if err := writeExpr(b, lb.Init); err != nil {
				return err
			}
			b.WriteString(")")
		}
		b.WriteString(")")
		if err := writeExprs(b, e.Body); err != nil {
			return err
		}
		b.WriteString(")")
	case analyzer.KindRecur:
		b.WriteString("(recur")
		if err := writeExprs(b, e.Args); err != nil {
			return err
		}
		b.WriteString(")")
	case analyzer.KindFn:
		b.WriteString("(fn")
		for _, ar := range e.Fn.Arities {
			b.WriteString(" ((")
			for i, p := range ar.Params {
				if i > 0 {
					b.WriteString(" ")
				}
				fmt.Fprintf(b, "%s.%d", p.Name, p.Slot)
			}
			if ar.Variadic {
				b.WriteString(" ...")
			}
			b.WriteString(")")
			if err := writeExprs(b, ar.Body); err != nil {
				return err
			}
			b.WriteString(")")
		}
		b.WriteString(")")
	case analyzer.KindDef:
		fmt.Fprintf(b, "(def %s", e.Var.QualifiedName())
		if e.Value != nil {
			b.WriteString(" ")
			if err := writeExpr(b, e.Value); err != nil {
				return err
			}
		}
		b.WriteString(")")
	case analyzer.KindSetBang:
		fmt.Fprintf(b, "(set! %s ", e.Var.QualifiedName())
		if err := writeExpr(b, e.Value); err != nil {
			return err
		}
		b.WriteString(")")
	case analyzer.KindVector, analyzer.KindMap, analyzer.KindSetLit:
		fmt.Fprintf(b, "(%s", e.Kind)
		if err := writeExprs(b, e.Args); err != nil {
			return err
		}
		b.WriteString(")")
	case analyzer.KindNativeCall:
		fmt.Fprintf(b, "(native-call %q", e.Name)
		if err := writeExprs(b, e.Args); err != nil {
			return err
		}
		b.WriteString(")")
	default:
		return fmt.Errorf("cannot emit %s node", e.Kind)
	}
	return nil
}

func writeExprs(b *strings.Builder, exprs []*analyzer.Expr) error {
	for _, e := range exprs {
		b.WriteString(" ")
		if err := writeExpr(b, e); err != nil {
			return err
		}
	}
	return nil
}
