// Copyright © 2025 The cinder authors

package runtime

import (
	"sync"
)

// Var is a namespaced, mutable-root identifier.  Identity is unique per
// (namespace, name) and survives redefinition: SetRoot replaces the root
// object but never the Var itself, which is what lets caches key off the
// Var pointer.
type Var struct {
	ns   *Namespace
	name string

	mu   sync.RWMutex
	root *Object
	rev  uint64

	macro   bool
	dynamic bool
	private bool
}

// Name returns the var's unqualified name.
func (v *Var) Name() string {
	return v.name
}

// Namespace returns the namespace the var was interned in.
func (v *Var) Namespace() *Namespace {
	return v.ns
}

// QualifiedName returns the var's "ns/name" spelling.
func (v *Var) QualifiedName() string {
	return v.ns.Name() + "/" + v.name
}

// Root returns the var's current root object, or nil when unbound.
func (v *Var) Root() *Object {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.root
}

// SetRoot replaces the var's root and advances its revision counter.  The
// revision is recorded by incremental-cache entries that depend on this var
// (macros in particular) so that any later root change invalidates them.
func (v *Var) SetRoot(o *Object) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.root = o
	v.rev++
}

// Rev returns the var's root revision counter.  The counter starts at zero
// for a freshly interned, unbound var and increments on every SetRoot.
func (v *Var) Rev() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rev
}

// IsBound reports whether the var has a root object.
func (v *Var) IsBound() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.root != nil
}

// IsMacro reports whether the var names a macro transformer.
func (v *Var) IsMacro() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.macro
}

// SetMacro marks the var as holding a macro transformer.
func (v *Var) SetMacro(b bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.macro = b
}

// IsDynamic reports whether the var supports dynamic binding.
func (v *Var) IsDynamic() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dynamic
}

// SetDynamic marks the var as dynamically bindable.
func (v *Var) SetDynamic(b bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dynamic = b
}

// IsPrivate reports whether the var is private to its namespace.
func (v *Var) IsPrivate() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.private
}

// SetPrivate marks the var as private to its namespace.
func (v *Var) SetPrivate(b bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.private = b
}

// Obj wraps the var as a runtime object.
func (v *Var) Obj() *Object {
	return &Object{Source: nativeSource(), Tag: TagVar, Native: v}
}
