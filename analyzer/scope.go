// Copyright © 2025 The cinder authors

package analyzer

// Scope is one level of the lexical environment used during analysis.
// Scopes are pushed for let, loop, and fn-arity bodies and popped when
// analysis of the body completes; binding visibility never outlives the
// scope that introduced it.
type Scope struct {
	parent   *Scope
	bindings map[string]*Binding
	// fnDepth counts fn boundaries between this scope and the top level.
	// A local referenced across a boundary is marked captured.
	fnDepth int
	// recur is the binding list of the nearest enclosing recur target
	// (loop or fn arity), nil at top level.
	recur []*Binding
	// nextSlot numbers frame slots within the current fn activation.
	nextSlot *int
}

// NewScope returns an empty top-level scope.
func NewScope() *Scope {
	slot := 0
	return &Scope{bindings: make(map[string]*Binding), nextSlot: &slot}
}

func (sc *Scope) child() *Scope {
	return &Scope{
		parent:   sc,
		bindings: make(map[string]*Binding, 4),
		fnDepth:  sc.fnDepth,
		recur:    sc.recur,
		nextSlot: sc.nextSlot,
	}
}

// fnChild returns a scope for a new fn arity body: a fresh fn boundary,
// fresh slot numbering, and the arity itself as recur target.
func (sc *Scope) fnChild(params []*Binding) *Scope {
	slot := 0
	c := &Scope{
		parent:   sc,
		bindings: make(map[string]*Binding, len(params)),
		fnDepth:  sc.fnDepth + 1,
		recur:    params,
		nextSlot: &slot,
	}
	for _, p := range params {
		p.Slot = c.slot()
		c.bindings[p.Name] = p
	}
	return c
}

// loopChild returns a scope for a loop body with the loop bindings as recur
// target.
func (sc *Scope) loopChild(bindings []*Binding) *Scope {
	c := sc.child()
	c.recur = bindings
	return c
}

func (sc *Scope) slot() int {
	s := *sc.nextSlot
	*sc.nextSlot++
	return s
}

func (sc *Scope) bind(name string) *Binding {
	b := &Binding{Name: name, Slot: sc.slot()}
	sc.bindings[name] = b
	return b
}

// resolve finds the binding for name, marking it captured when the
// reference crosses a fn boundary.  Locals shadow namespace vars, so a hit
// here preempts var resolution entirely.
func (sc *Scope) resolve(name string) (*Binding, bool) {
	depth := sc.fnDepth
	for s := sc; s != nil; s = s.parent {
		if b, ok := s.bindings[name]; ok {
			if depth > s.fnDepth {
				b.Captured = true
			}
			return b, true
		}
	}
	return nil, false
}
