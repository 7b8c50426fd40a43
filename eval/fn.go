// Copyright © 2025 The cinder authors

package eval

import (
	"fmt"

	"github.com/cinderlang/cinder/analyzer"
	"github.com/cinderlang/cinder/compile"
	"github.com/cinderlang/cinder/runtime"
)

// makeClosure builds a callable object from analyzed fn data and the frame
// chain it closes over.  The env may be nil for top-level functions, which
// capture nothing.
func (s *Session) makeClosure(fd *analyzer.FnData, env *frame, compiled bool, uniqueName string) *runtime.Object {
	var fnObj *runtime.Object
	proc := func(args ...*runtime.Object) (*runtime.Object, error) {
		ar, ok := fd.ArityFor(len(args))
		if !ok {
			return nil, runtime.GoError(runtime.ErrorConditionf("arity-error",
				"wrong number of arguments (%d) for %s", len(args), closureName(fd)))
		}
		locals := bindArgs(ar, args)
		for {
			fr := newFrame(env)
			if fd.Self != nil {
				fr.set(fd.Self, fnObj)
			}
			for i, p := range ar.Params {
				fr.set(p, locals[i])
			}
			out, err := s.execBody(ar.Body, fr)
			rs, ok := err.(*recurSignal)
			if !ok {
				return out, err
			}
			// recur restarts the same arity with fresh locals.  The
			// analyzer matched the argument count to the parameter list,
			// rest parameter included, so no respreading happens here.
			locals = rs.args
		}
	}
	fnObj = runtime.Fun(&runtime.FunData{
		Name:       fd.Name,
		NS:         s.ns.Name(),
		UniqueName: uniqueName,
		Proc:       proc,
		Compiled:   compiled,
	})
	return fnObj
}

// bindArgs lays incoming arguments out against an arity's parameter list,
// collecting overflow into the rest parameter when the arity is variadic.
func bindArgs(ar *analyzer.FnArity, args []*runtime.Object) []*runtime.Object {
	if !ar.Variadic {
		return args
	}
	fixed := len(ar.Params) - 1
	locals := make([]*runtime.Object, len(ar.Params))
	copy(locals, args[:fixed])
	if len(args) == fixed {
		locals[fixed] = runtime.Nil()
		return locals
	}
	rest := make([]*runtime.Object, len(args)-fixed)
	copy(rest, args[fixed:])
	locals[fixed] = runtime.List(rest)
	return locals
}

func closureName(fd *analyzer.FnData) string {
	if fd.Name != "" {
		return fd.Name
	}
	return "fn"
}

// evalDefFn handles a top-level def whose value is a function literal, the
// one shape that routes through the compilation bridge.  The incremental
// cache is consulted first: a valid entry rebinds the var to the existing
// entry point with zero backend work.  A changed definition never matches
// the cached hash, so redefinition always reaches the backend exactly once.
func (s *Session) evalDefFn(e *analyzer.Expr, deps []analyzer.MacroDep) (*runtime.Object, error) {
	v := e.Var
	qualified := v.QualifiedName()
	hash := analyzer.StructuralHash(e.Value)

	if entry, ok := s.cache.Lookup(qualified, hash, v.Namespace()); ok {
		v.SetRoot(runtime.Fun(&runtime.FunData{
			Name:       v.Name(),
			NS:         v.Namespace().Name(),
			UniqueName: entry.UniqueName,
			Proc:       entry.EntryPoint,
			Compiled:   true,
		}))
		return v.Obj(), nil
	}

	unit := uniqueName(qualified, hash)
	entry, err := s.compileUnit(e.Value, unit)
	if err != nil {
		if compile.Unavailable(err) {
			// The definition stays usable: fall back to an interpreted
			// closure and leave the cache alone so a healthy backend can
			// compile it later.
			fmt.Fprintf(s.stderr, "cinder: %s falling back to interpretation: %v\n", qualified, err)
			v.SetRoot(s.makeClosure(e.Value.Fn, nil, false, ""))
			return v.Obj(), nil
		}
		return nil, err
	}

	s.cache.Store(qualified, &compile.Entry{
		Hash:       hash,
		UniqueName: unit,
		EntryPoint: entry,
		MacroDeps:  deps,
		Generation: v.Namespace().Generation(),
	})
	if s.persist != nil {
		if emitted, err := s.emitter.Emit(unit, e.Value); err == nil {
			if err := s.persist.Put(hash, qualified, emitted); err != nil {
				fmt.Fprintf(s.stderr, "cinder: persistent cache write failed: %v\n", err)
			}
		}
	}
	v.SetRoot(runtime.Fun(&runtime.FunData{
		Name:       v.Name(),
		NS:         v.Namespace().Name(),
		UniqueName: unit,
		Proc:       entry,
		Compiled:   true,
	}))
	return v.Obj(), nil
}

// evalTopFn compiles a bare top-level function literal.  It has no name to
// cache under, so the unit goes straight through the bridge.
func (s *Session) evalTopFn(e *analyzer.Expr) (*runtime.Object, error) {
	unit := uniqueName(s.ns.Name()+"/fn", analyzer.StructuralHash(e))
	entry, err := s.compileUnit(e, unit)
	if err != nil {
		if compile.Unavailable(err) {
			return s.makeClosure(e.Fn, nil, false, ""), nil
		}
		return nil, err
	}
	return runtime.Fun(&runtime.FunData{
		Name:       e.Fn.Name,
		NS:         s.ns.Name(),
		UniqueName: unit,
		Proc:       entry,
		Compiled:   true,
	}), nil
}

func (s *Session) compileUnit(e *analyzer.Expr, unit string) (runtime.Proc, error) {
	job := s.bridge.Submit(e, unit)
	return job.Await(s.awaitTimeout)
}

// ReplayPersistent feeds every unit stored in the persistent cache to the
// session's backend.  The backend must be freshly started; replaying into a
// backend that already compiled units this session causes redefinition
// conflicts.  Replayed entry points land in the symbol table only, not in
// any var, so definitions still evaluate normally and simply skip backend
// work when their hashes match.
func (s *Session) ReplayPersistent() error {
	if s.persist == nil {
		return fmt.Errorf("no persistent cache configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist.Replay(func(u *compile.StoredUnit) error {
		if _, ok := s.symbols.Lookup(u.UniqueName); ok {
			return fmt.Errorf("unit already compiled in this session")
		}
		// Replay goes straight to the backend with the stored source; the
		// expression tree is gone, so closure backends cannot replay.
		entry, err := s.backend.Compile(&compile.EmittedUnit{
			Name:          u.UniqueName,
			QualifiedName: u.QualifiedName,
			Source:        u.Source,
		})
		if err != nil {
			return err
		}
		s.symbols.Register(u.UniqueName, entry)
		return nil
	})
}

// ClosureBackend satisfies compile.Backend with interpreted closures.  It
// is the in-process default: every unit compiles to a closure over the
// empty environment, giving the bridge, cache, and symbol table real entry
// points without an external toolchain.
type ClosureBackend struct {
	session *Session
}

// Compile builds an interpreted entry point for a function unit.  Units
// that are not function literals, including replayed source-only units,
// are rejected.
func (b *ClosureBackend) Compile(unit *compile.EmittedUnit) (runtime.Proc, error) {
	if unit.IR == nil || unit.IR.Kind != analyzer.KindFn {
		return nil, fmt.Errorf("unit %s has no function body to compile", unit.Name)
	}
	fn := b.session.makeClosure(unit.IR.Fn, nil, true, unit.Name)
	return fn.FunData().Proc, nil
}
