// Copyright © 2025 The cinder authors

// Package diagnostic renders annotated source diagnostics for CLI and REPL
// output.  Tagged error objects convert through FromError; analysis and
// backend failures all surface the same way.
package diagnostic

import (
	"github.com/cinderlang/cinder/runtime"
)

// Severity indicates the severity level of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "unknown"
	}
}

// Span identifies a region of source code to highlight in the diagnostic.
type Span struct {
	File   string // path for reading source; display name if unreadable
	Line   int    // 1-based line number
	Col    int    // 1-based start column
	EndCol int    // 1-based end column (0 = auto-detect from source)
	Label  string // text shown under the underline
}

// Diagnostic represents a single error, warning, or note with optional
// source annotations and trailing notes.
type Diagnostic struct {
	Severity Severity
	Message  string
	Spans    []Span
	Notes    []string // "= note:" lines (stack trace frames, etc.)
}

// FromError converts a tagged error object into a diagnostic.  The error's
// condition prefixes the message, its source span becomes an annotation,
// and its captured call stack becomes trailing notes with the innermost
// frame first.  Frames in the namespaces listed in ignoreNS render
// unqualified.
func FromError(ev *runtime.ErrorVal, ignoreNS ...string) Diagnostic {
	d := Diagnostic{
		Severity: SeverityError,
		Message:  ev.ErrorMessage(),
	}
	if cond := ev.Condition(); cond != "" && cond != "error" {
		d.Message = cond + ": " + d.Message
	}

	obj := (*runtime.Object)(ev)
	if obj.Source != nil && obj.Source.Pos >= 0 {
		d.Spans = append(d.Spans, Span{
			File: obj.Source.File,
			Line: obj.Source.Line,
			Col:  obj.Source.Col,
		})
	}

	stack := obj.ErrStack()
	if stack != nil {
		for i := len(stack.Frames) - 1; i >= 0; i-- {
			frame := &stack.Frames[i]
			name := frame.QualifiedName(ignoreNS...)
			if name == "" {
				continue
			}
			loc := "unknown"
			if frame.Source != nil {
				loc = frame.Source.String()
			}
			d.Notes = append(d.Notes, "in "+name+" at "+loc)
		}
	}
	return d
}
