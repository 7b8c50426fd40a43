// Copyright © 2025 The cinder authors

package runtime

import (
	"fmt"
	"io"
	"strings"

	"github.com/cinderlang/cinder/reader/token"
)

// CallStack records the chain of function activations during evaluation.
// It exists for diagnostics and depth limiting; local binding frames live in
// the evaluator and follow their own strict stack discipline.
type CallStack struct {
	Frames    []CallFrame
	MaxHeight int
}

// CallFrame is one frame in the CallStack.
type CallFrame struct {
	Source *token.Location
	NS     string
	Name   string
}

// QualifiedName returns the frame's "ns/name" spelling.  Frames in the
// namespaces listed in ignore render unqualified.
func (f *CallFrame) QualifiedName(ignore ...string) string {
	if f == nil {
		return ""
	}
	if f.NS == "" {
		return f.Name
	}
	for _, ns := range ignore {
		if ns == f.NS {
			return f.Name
		}
	}
	return f.NS + "/" + f.Name
}

func (f *CallFrame) String() string {
	if f.Source != nil {
		return fmt.Sprintf("%s: %s", f.Source, f.QualifiedName())
	}
	return f.QualifiedName()
}

// Copy creates a copy of the current stack so that it can be attached to a
// runtime error object.
func (s *CallStack) Copy() *CallStack {
	frames := make([]CallFrame, len(s.Frames))
	copy(frames, s.Frames)
	return &CallStack{Frames: frames, MaxHeight: s.MaxHeight}
}

// Top returns the frame at the top of the stack or nil if none exists.
func (s *CallStack) Top() *CallFrame {
	if s == nil || len(s.Frames) == 0 {
		return nil
	}
	return &s.Frames[len(s.Frames)-1]
}

// Push pushes a frame onto s.  Push fails when the configured height limit
// would be exceeded.
func (s *CallStack) Push(src *token.Location, ns, name string) error {
	if s.MaxHeight > 0 && len(s.Frames) >= s.MaxHeight {
		return &StackOverflowError{Height: len(s.Frames) + 1}
	}
	s.Frames = append(s.Frames, CallFrame{Source: src, NS: ns, Name: name})
	return nil
}

// Pop removes the top frame from the stack and returns it.  Pop panics on an
// empty stack; evaluation always pairs pushes and pops.
func (s *CallStack) Pop() CallFrame {
	if len(s.Frames) < 1 {
		panic("pop called on an empty stack")
	}
	f := s.Frames[len(s.Frames)-1]
	s.Frames[len(s.Frames)-1] = CallFrame{}
	s.Frames = s.Frames[:len(s.Frames)-1]
	return f
}

// DebugPrint prints s with the entrypoint last.
func (s *CallStack) DebugPrint(w io.Writer) (int, error) {
	n, err := fmt.Fprintf(w, "Stack Trace [%d frames -- entrypoint last]:\n", len(s.Frames))
	if err != nil {
		return n, err
	}
	var b strings.Builder
	for i := len(s.Frames) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "  height %d: %s\n", i, s.Frames[i].String())
	}
	_n, err := io.WriteString(w, b.String())
	return n + _n, err
}

// StackOverflowError reports that the call stack exceeded its configured
// height limit.
type StackOverflowError struct {
	Height int
}

func (e *StackOverflowError) Error() string {
	return fmt.Sprintf("call stack height exceeded maximum: %v", e.Height)
}
