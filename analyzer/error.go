// Copyright © 2025 The cinder authors

package analyzer

import (
	"fmt"

	"github.com/cinderlang/cinder/reader/token"
)

// AnalysisError reports a malformed or unresolvable form.  Analysis of the
// enclosing top-level form aborts immediately; no partial IR is ever
// returned alongside an AnalysisError.
type AnalysisError struct {
	Msg  string
	Span *token.Location
}

func (e *AnalysisError) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: analysis error: %s", e.Span, e.Msg)
	}
	return "analysis error: " + e.Msg
}

func errf(span *token.Location, format string, v ...interface{}) error {
	return &AnalysisError{Msg: fmt.Sprintf(format, v...), Span: span}
}
