// Copyright © 2025 The cinder authors

package eval

import (
	"fmt"

	"github.com/cinderlang/cinder/analyzer"
	"github.com/cinderlang/cinder/runtime"
)

// frame is one local binding scope.  Frames form a parent-linked chain;
// lookup walks outward, which realizes lexical shadowing directly.  Frames
// are owned by a single goroutine and never shared; a closure captures its
// defining frame chain when a fn expression is evaluated.
type frame struct {
	parent *frame
	vals   map[*analyzer.Binding]*runtime.Object
}

func newFrame(parent *frame) *frame {
	return &frame{parent: parent, vals: make(map[*analyzer.Binding]*runtime.Object)}
}

func (fr *frame) set(b *analyzer.Binding, v *runtime.Object) {
	fr.vals[b] = v
}

func (fr *frame) lookup(b *analyzer.Binding) (*runtime.Object, error) {
	for f := fr; f != nil; f = f.parent {
		if v, ok := f.vals[b]; ok {
			return v, nil
		}
	}
	// Analysis resolves every local reference, so a miss here means the
	// tree and the frame chain disagree.
	return nil, fmt.Errorf("internal: unbound local %s.%d", b.Name, b.Slot)
}
