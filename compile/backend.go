// Copyright © 2025 The cinder authors

package compile

import (
	"fmt"
	"sync"

	"github.com/cinderlang/cinder/runtime"
)

// Backend turns an emitted unit into a callable entry point with the fixed
// calling convention: boxed objects in, one boxed object out.  A backend
// that cannot compile in this process returns ErrUnavailable (possibly
// wrapped); any other error is treated as a rejection of the unit.
//
// Backends with shared incremental state are frequently not reentrant; the
// bridge guarantees at most one concurrent Compile per unique unit name,
// but distinct names may compile concurrently.  A backend requiring full
// serialization should guard itself.
type Backend interface {
	Compile(unit *EmittedUnit) (runtime.Proc, error)
}

// SymbolTable is the process-wide registry of native entry points.  Bridge
// compilations register their results here and native-call expressions
// resolve through it by name.
type SymbolTable struct {
	mu      sync.RWMutex
	symbols map[string]runtime.Proc
}

// NewSymbolTable returns an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]runtime.Proc)}
}

// Register binds name to an entry point.  Re-registering a name replaces
// the previous binding; redefinition flows through here.
func (t *SymbolTable) Register(name string, proc runtime.Proc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.symbols[name] = proc
}

// Lookup resolves a registered entry point.
func (t *SymbolTable) Lookup(name string) (runtime.Proc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	proc, ok := t.symbols[name]
	return proc, ok
}

// MustLookup resolves a registered entry point or returns an error suitable
// for conversion to a tagged error object.
func (t *SymbolTable) MustLookup(name string) (runtime.Proc, error) {
	proc, ok := t.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no native symbol registered: %s", name)
	}
	return proc, nil
}

// Len returns the number of registered symbols.
func (t *SymbolTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.symbols)
}
