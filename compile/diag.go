// Copyright © 2025 The cinder authors

// Package compile implements the bridge between expression IR and a native
// compilation backend: unit emission, single-flight job submission, the
// process-wide entry point table, and the incremental compilation cache
// that makes re-evaluation of unchanged definitions free.
package compile

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by a Backend that cannot compile natively in
// the current process.  The bridge converts it into a Diagnostic with kind
// BackendUnavailable; callers degrade to interpretation rather than fail.
var ErrUnavailable = errors.New("native compilation backend unavailable")

// DiagnosticKind classifies bridge failures.
type DiagnosticKind uint

const (
	// BackendDiagnostic reports that the backend rejected an emitted unit.
	// Well-formed IR should never produce one; its presence signals an
	// emitter defect and the diagnostic carries the emitted source for
	// debugging.
	BackendDiagnostic DiagnosticKind = iota
	// BackendUnavailable reports that no native compilation is possible for
	// this job: the backend is missing, opted out, or timed out.
	BackendUnavailable
)

func (k DiagnosticKind) String() string {
	if k == BackendUnavailable {
		return "backend-unavailable"
	}
	return "backend-diagnostic"
}

// Diagnostic is a structured compilation failure.  The bridge never panics
// and never returns a bare backend error across its boundary; every failure
// is wrapped in a Diagnostic.
type Diagnostic struct {
	Kind DiagnosticKind
	// Unit is the synthetic unique name of the failed unit.
	Unit string
	// Msg is the backend's own account of the failure.
	Msg string
	// Source is the emitted unit input, retained for BackendDiagnostic so
	// that emitter defects can be debugged from the failure alone.
	Source string
}

func (d *Diagnostic) Error() string {
	if d.Unit == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", d.Kind, d.Unit, d.Msg)
}

// Unavailable reports whether err is a Diagnostic with kind
// BackendUnavailable.
func Unavailable(err error) bool {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Kind == BackendUnavailable
	}
	return errors.Is(err, ErrUnavailable)
}
