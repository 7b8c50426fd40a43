// Copyright © 2025 The cinder authors

package runtime

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultLangNS is the name of the core language namespace.
const DefaultLangNS = "cinder.core"

// DefaultUserNS is the name of the entry-point namespace for user code.
const DefaultUserNS = "user"

// Namespace is a named scope mapping names to vars, with alias support.
// Namespaces are created on first reference through a Registry and two
// namespaces never share a name.
type Namespace struct {
	name string

	mu      sync.RWMutex
	vars    map[string]*Var
	aliases map[string]*Namespace
	gen     uint64
}

func newNamespace(name string) *Namespace {
	return &Namespace{
		name:    name,
		vars:    make(map[string]*Var),
		aliases: make(map[string]*Namespace),
	}
}

// Name returns the namespace's name.
func (ns *Namespace) Name() string {
	return ns.name
}

// Intern returns the var named name in ns, creating an unbound var on first
// use.  Interning an existing name returns the identical *Var.
func (ns *Namespace) Intern(name string) *Var {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	v, ok := ns.vars[name]
	if !ok {
		v = &Var{ns: ns, name: name}
		ns.vars[name] = v
	}
	return v
}

// FindVar returns the var named name in ns, if one has been interned.
func (ns *Namespace) FindVar(name string) (*Var, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	v, ok := ns.vars[name]
	return v, ok
}

// Alias records alias as a shorthand for target within ns.  Re-aliasing the
// same name to a different namespace is an error.
func (ns *Namespace) Alias(alias string, target *Namespace) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if prev, ok := ns.aliases[alias]; ok && prev != target {
		return fmt.Errorf("alias %s already refers to %s", alias, prev.Name())
	}
	ns.aliases[alias] = target
	return nil
}

// LookupAlias resolves alias within ns.
func (ns *Namespace) LookupAlias(alias string) (*Namespace, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	t, ok := ns.aliases[alias]
	return t, ok
}

// Generation returns the namespace's reload generation.  Incremental cache
// entries record the generation at creation; Reload advances it, making
// every prior entry for this namespace stale.
func (ns *Namespace) Generation() uint64 {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.gen
}

// Reload marks the namespace as reloaded.  Vars keep their identity; only
// the generation advances.
func (ns *Namespace) Reload() {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.gen++
}

// VarNames returns the sorted names of all interned vars.
func (ns *Namespace) VarNames() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	names := make([]string, 0, len(ns.vars))
	for name := range ns.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Obj wraps the namespace as a runtime object.
func (ns *Namespace) Obj() *Object {
	return &Object{Source: nativeSource(), Tag: TagNamespace, Native: ns}
}

// Registry holds every namespace in a runtime session.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace
}

// NewRegistry initializes a registry containing the core and user
// namespaces, with the user namespace aliased to core.
func NewRegistry() *Registry {
	reg := &Registry{namespaces: make(map[string]*Namespace)}
	core := reg.FindOrCreate(DefaultLangNS)
	user := reg.FindOrCreate(DefaultUserNS)
	// The alias cannot fail on a fresh namespace.
	_ = user.Alias("core", core)
	return reg
}

// FindOrCreate returns the namespace with the given name, creating it on
// first reference.
func (reg *Registry) FindOrCreate(name string) *Namespace {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	ns, ok := reg.namespaces[name]
	if !ok {
		ns = newNamespace(name)
		reg.namespaces[name] = ns
	}
	return ns
}

// Find returns the namespace with the given name if it exists.
func (reg *Registry) Find(name string) (*Namespace, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	ns, ok := reg.namespaces[name]
	return ns, ok
}

// Core returns the core language namespace.
func (reg *Registry) Core() *Namespace {
	return reg.FindOrCreate(DefaultLangNS)
}

// ResolveVar resolves a symbol to a var relative to the namespace in.
//
// Resolution order follows the language rules: a qualified symbol resolves
// its prefix against in's alias table before falling back to a direct
// namespace lookup; an unqualified symbol resolves in `in` itself and then
// in the core namespace.  Lexical locals shadow all of this, but locals are
// the analyzer's concern and never reach the registry.
func (reg *Registry) ResolveVar(sym *Object, in *Namespace) (*Var, bool) {
	if sym.Tag != TagSymbol {
		return nil, false
	}
	prefix := sym.SymbolNS()
	name := sym.SymbolName()
	if prefix != "" {
		target, ok := in.LookupAlias(prefix)
		if !ok {
			target, ok = reg.Find(prefix)
			if !ok {
				return nil, false
			}
		}
		return target.FindVar(name)
	}
	if v, ok := in.FindVar(name); ok {
		return v, true
	}
	if core, ok := reg.Find(DefaultLangNS); ok && core != in {
		return core.FindVar(name)
	}
	return nil, false
}

// NamespaceNames returns the sorted names of all namespaces.
func (reg *Registry) NamespaceNames() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.namespaces))
	for name := range reg.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
