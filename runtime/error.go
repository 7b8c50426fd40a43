// Copyright © 2025 The cinder authors

package runtime

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cinderlang/cinder/reader/token"
)

// Error returns a tagged error object representing err under the generic
// "error" condition.
func Error(err error) *Object {
	return ErrorCondition("error", err)
}

// ErrorCondition returns a tagged error object with the given condition
// name.  The condition must be a valid symbol name.
func ErrorCondition(condition string, err error) *Object {
	return &Object{
		Source: nativeSource(),
		Tag:    TagError,
		Str:    condition,
		Items:  []*Object{String(err.Error())},
	}
}

// Errorf returns a tagged error object with a formatted message.
func Errorf(format string, v ...interface{}) *Object {
	return ErrorConditionf("error", format, v...)
}

// ErrorConditionf returns a tagged error object with the given condition
// name and a formatted message.
func ErrorConditionf(condition string, format string, v ...interface{}) *Object {
	return &Object{
		Source: nativeSource(),
		Tag:    TagError,
		Str:    condition,
		Items:  []*Object{String(fmt.Sprintf(format, v...))},
	}
}

// ErrorAt stamps an error object with a source span and a copy of the given
// stack when it does not already carry them.  ErrorAt panics if o is not an
// error object.
func ErrorAt(o *Object, loc *token.Location, stack *CallStack) *Object {
	if o.Tag != TagError {
		panic("not an error: " + o.Tag.String())
	}
	if o.ErrStack() == nil && stack != nil {
		o.Native = stack.Copy()
	}
	if (o.Source == nil || o.Source.Pos < 0) && loc != nil {
		o.Source = loc
	}
	return o
}

// ErrStack returns the call stack captured when the error object was
// created, or nil.  ErrStack panics if o is not an error object.
func (o *Object) ErrStack() *CallStack {
	if o.Tag != TagError {
		panic("not an error: " + o.Tag.String())
	}
	stack, ok := o.Native.(*CallStack)
	if !ok {
		return nil
	}
	return stack
}

// GoError converts an error object to a Go error.  GoError returns nil when
// o is not an error object.
func GoError(o *Object) error {
	if o == nil || o.Tag != TagError {
		return nil
	}
	return (*ErrorVal)(o)
}

// ErrorVal adapts a tagged error object to the Go error interface so that
// error objects can cross package boundaries as first class values.
type ErrorVal Object

// Error implements the error interface.  A condition other than the generic
// "error" is printed preceding the message.
func (e *ErrorVal) Error() string {
	if e.Source != nil && e.Source.Pos >= 0 {
		return fmt.Sprintf("%s: %s", e.Source, e.baseMessage())
	}
	return e.baseMessage()
}

func (e *ErrorVal) baseMessage() string {
	msg := e.ErrorMessage()
	if e.Str != "error" {
		return fmt.Sprintf("%s: %s", e.Str, msg)
	}
	return msg
}

// Condition returns the error's condition name (e.g. "analysis-error",
// "backend-unavailable"), the programmatic classification stored in the
// Str field of error objects.
func (e *ErrorVal) Condition() string {
	return e.Str
}

// ErrorMessage returns the rendered message cells of the error.
func (e *ErrorVal) ErrorMessage() string {
	var b strings.Builder
	for i, cell := range e.Items {
		if i > 0 {
			b.WriteString(" ")
		}
		if cell.Tag == TagString {
			b.WriteString(cell.Str)
		} else {
			b.WriteString(cell.String())
		}
	}
	return b.String()
}

// WriteTrace writes the error and the captured evaluation stack to w.
func (e *ErrorVal) WriteTrace(w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	var n int
	var err error
	wrote := func(_n int, _err error) bool {
		n += _n
		err = _err
		return err == nil
	}
	if !wrote(bw.WriteString(e.Error())) {
		return n, err
	}
	if !wrote(bw.WriteString("\n")) {
		return n, err
	}
	stack := (*Object)(e).ErrStack()
	if stack != nil {
		if !wrote(stack.DebugPrint(bw)) {
			return n, err
		}
	}
	return n, bw.Flush()
}
