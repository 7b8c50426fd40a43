// Copyright © 2025 The cinder authors

// Package token defines source locations shared by the reader, the analyzer,
// and the runtime.  Every form produced by the reader carries a Location and
// the analyzer propagates it into every expression node for diagnostics.
package token

import "fmt"

// Location is a position in a source stream.
type Location struct {
	File string // a name representing the source stream
	Pos  int    // byte offset in the stream (-1 when synthetic)
	Line int    // line number (starting at 1 when tracked)
	Col  int    // line column number (starting at 1 when tracked)
}

func (loc *Location) String() string {
	switch {
	case loc == nil:
		return "<unknown>"
	case loc.Pos < 0:
		return loc.File
	case loc.Line == 0:
		return fmt.Sprintf("%s[%d]", loc.File, loc.Pos)
	case loc.Col == 0:
		return fmt.Sprintf("%s:%d", loc.File, loc.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Col)
	}
}

// Native returns a Location representing runtime-constructed values which do
// not originate in any source stream.
func Native() *Location {
	return nativeLocation
}

var nativeLocation = &Location{File: "<native code>", Pos: -1}

// LocationError wraps err with a source location.
type LocationError struct {
	Err    error
	Source *Location
}

func (err *LocationError) Error() string {
	return fmt.Sprintf("%s: %s", err.Source, err.Err)
}

func (err *LocationError) Unwrap() error {
	return err.Err
}
