// Copyright © 2025 The cinder authors

// Package runtime implements the cinder object model: a closed set of
// concrete value kinds behind a single reference type, dispatched by tag.
// The package also defines vars, namespaces, tagged error values, and the
// call stack used to report evaluation failures.
package runtime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cinderlang/cinder/reader/token"
)

// Tag is the type of an Object.
type Tag uint

// Possible Tag values.  The set of tags is closed; user-defined types hook in
// through TagExtension (see behavior.go) rather than new tags.
const (
	// TagInvalid (0) is not a valid object tag.
	TagInvalid Tag = iota
	// TagNil is the nil value.  Nil objects carry no payload.
	TagNil
	// TagBool objects store their value in the Object.Bool field.
	TagBool
	// TagInt objects store an int64 in the Object.Int field.
	TagInt
	// TagReal objects store a float64 in the Object.Real field.
	TagReal
	// TagString objects store a string in the Object.Str field.
	TagString
	// TagSymbol objects store their (possibly namespace-qualified) name in
	// the Object.Str field.  Qualified symbols use a "ns/name" spelling.
	TagSymbol
	// TagKeyword objects store their name, without the leading colon, in the
	// Object.Str field.
	TagKeyword
	// TagList objects store their elements in Object.Items.
	TagList
	// TagVector objects store their elements in Object.Items.
	TagVector
	// TagMap objects store alternating keys and values in Object.Items.  The
	// length of Items is always even.
	TagMap
	// TagSet objects store their distinct elements in Object.Items.
	TagSet
	// TagFun objects store a *FunData in the Object.Native field.
	TagFun
	// TagVar objects store a *Var in the Object.Native field.
	TagVar
	// TagNamespace objects store a *Namespace in the Object.Native field.
	TagNamespace
	// TagError objects store a condition name in Object.Str, error data in
	// Object.Items, and a *CallStack captured at creation in Object.Native.
	TagError
	// TagExtension objects store an *ExtData in the Object.Native field.
	// This is the single escape hatch for user-defined kinds; every other
	// tag dispatches through fixed, compile-time behavior sets.
	TagExtension
	// tagMax is not a real tag.  It bounds the valid Tag values.
	tagMax
)

var tagStrings = [tagMax]string{
	TagInvalid:   "INVALID",
	TagNil:       "nil",
	TagBool:      "boolean",
	TagInt:       "integer",
	TagReal:      "real",
	TagString:    "string",
	TagSymbol:    "symbol",
	TagKeyword:   "keyword",
	TagList:      "list",
	TagVector:    "vector",
	TagMap:       "map",
	TagSet:       "set",
	TagFun:       "function",
	TagVar:       "var",
	TagNamespace: "namespace",
	TagError:     "error",
	TagExtension: "extension",
}

func (t Tag) String() string {
	if t >= tagMax {
		return tagStrings[TagInvalid]
	}
	return tagStrings[t]
}

// Proc is the fixed calling convention shared by interpreted closures and
// native entry points: boxed arguments in, one boxed object out.  A Proc
// must not panic; runtime faults are reported through the error return and
// converted to tagged error objects at the evaluation boundary.
type Proc func(args ...*Object) (*Object, error)

// FunData carries the callable payload of a TagFun object.
type FunData struct {
	// Name is the symbol the function was defined under, if any.
	Name string
	// NS is the name of the namespace the function was defined in.
	NS string
	// UniqueName is the synthetic unit name assigned when the function body
	// was handed to the compilation bridge.  Empty for interpreted closures.
	UniqueName string
	// Proc executes the function.
	Proc Proc
	// Compiled reports whether Proc is a native entry point rather than an
	// interpreted closure.
	Compiled bool
}

// Object is a cinder runtime value.  Exactly one tag describes each object
// and field usage is fixed per tag (see the Tag constants).
type Object struct {
	// Native is generic storage for payloads which are not themselves
	// objects: *FunData, *Var, *Namespace, *CallStack, *ExtData.
	Native interface{}

	// Source is the value's originating location in source code.  The
	// reference may be shared by multiple objects and must not be mutated.
	Source *token.Location

	// Str is used by string, symbol, and keyword objects, and holds the
	// condition name for error objects.
	Str string

	// Items is element storage for lists, vectors, maps, and sets, and
	// message data for errors.
	Items []*Object

	// Meta is an optional metadata map for metadata-bearing tags.
	Meta *Object

	Tag Tag

	// Fields used by the primitive scalar tags.
	Bool bool
	Int  int64
	Real float64
}

func nativeSource() *token.Location {
	return token.Native()
}

// Shared immutable singletons.  Nil and the booleans are constructed on
// nearly every evaluation cycle; callers must never mutate the returned
// objects.
var (
	singletonNil   = &Object{Source: token.Native(), Tag: TagNil}
	singletonTrue  = &Object{Source: token.Native(), Tag: TagBool, Bool: true}
	singletonFalse = &Object{Source: token.Native(), Tag: TagBool}
)

// Nil returns the nil object.  The result is a shared singleton.
func Nil() *Object {
	return singletonNil
}

// Bool returns an object with truthiness identical to b.  The result is a
// shared singleton.
func Bool(b bool) *Object {
	if b {
		return singletonTrue
	}
	return singletonFalse
}

// Int returns an integer object.
func Int(x int64) *Object {
	return &Object{Source: token.Native(), Tag: TagInt, Int: x}
}

// Real returns a real (floating point) object.
func Real(x float64) *Object {
	return &Object{Source: token.Native(), Tag: TagReal, Real: x}
}

// String returns a string object.
func String(s string) *Object {
	return &Object{Source: token.Native(), Tag: TagString, Str: s}
}

// Symbol returns a symbol object.  The name may be qualified ("ns/name").
func Symbol(name string) *Object {
	return &Object{Source: token.Native(), Tag: TagSymbol, Str: name}
}

// Keyword returns a keyword object.  The name must not include the leading
// colon.
func Keyword(name string) *Object {
	return &Object{Source: token.Native(), Tag: TagKeyword, Str: name}
}

// List returns a list object.  The provided slice is used as backing storage
// and is not copied.
func List(items []*Object) *Object {
	return &Object{Source: token.Native(), Tag: TagList, Items: items}
}

// Vector returns a vector object.  The provided slice is used as backing
// storage and is not copied.
func Vector(items []*Object) *Object {
	return &Object{Source: token.Native(), Tag: TagVector, Items: items}
}

// Map returns a map object from alternating keys and values.  Map returns an
// error object if kvs has odd length or contains duplicate keys.
func Map(kvs []*Object) *Object {
	if len(kvs)%2 != 0 {
		return Errorf("map literal requires an even number of forms")
	}
	for i := 0; i < len(kvs); i += 2 {
		for j := i + 2; j < len(kvs); j += 2 {
			if Equal(kvs[i], kvs[j]) {
				return Errorf("duplicate map key: %s", kvs[i])
			}
		}
	}
	return &Object{Source: token.Native(), Tag: TagMap, Items: kvs}
}

// Set returns a set object.  Set returns an error object if items contains
// duplicates.
func Set(items []*Object) *Object {
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if Equal(items[i], items[j]) {
				return Errorf("duplicate set element: %s", items[i])
			}
		}
	}
	return &Object{Source: token.Native(), Tag: TagSet, Items: items}
}

// Fun returns a function object backed by fd.
func Fun(fd *FunData) *Object {
	return &Object{Source: token.Native(), Tag: TagFun, Native: fd}
}

// GoFun returns an interpreted-convention function object wrapping a Go
// procedure, for use by builtins.
func GoFun(name string, proc Proc) *Object {
	return Fun(&FunData{Name: name, Proc: proc})
}

// FunData returns the callable payload of a function object.  FunData panics
// if o is not a function.
func (o *Object) FunData() *FunData {
	if o.Tag != TagFun {
		panic("not a function: " + o.Tag.String())
	}
	return o.Native.(*FunData)
}

// Var returns the *Var payload of a var object.  Var panics if o is not a
// var.
func (o *Object) Var() *Var {
	if o.Tag != TagVar {
		panic("not a var: " + o.Tag.String())
	}
	return o.Native.(*Var)
}

// Namespace returns the *Namespace payload of a namespace object.  Namespace
// panics if o does not hold one.
func (o *Object) Namespace() *Namespace {
	if o.Tag != TagNamespace {
		panic("not a namespace: " + o.Tag.String())
	}
	return o.Native.(*Namespace)
}

// IsNil returns true if o is the nil value.
func (o *Object) IsNil() bool {
	return o.Tag == TagNil
}

// Truthy reports the conditional interpretation of o: nil and false are
// falsey, everything else is truthy.
func (o *Object) Truthy() bool {
	switch o.Tag {
	case TagNil:
		return false
	case TagBool:
		return o.Bool
	}
	return true
}

// IsNumeric returns true if o has a primitive numeric tag.
func (o *Object) IsNumeric() bool {
	return o.Tag == TagInt || o.Tag == TagReal
}

// SymbolNS returns the namespace prefix of a qualified symbol, or "" when o
// is unqualified.  SymbolNS panics if o is not a symbol.
func (o *Object) SymbolNS() string {
	if o.Tag != TagSymbol {
		panic("not a symbol: " + o.Tag.String())
	}
	if i := strings.IndexByte(o.Str, '/'); i > 0 && i < len(o.Str)-1 {
		return o.Str[:i]
	}
	return ""
}

// SymbolName returns the name portion of a symbol, dropping any namespace
// prefix.  SymbolName panics if o is not a symbol.
func (o *Object) SymbolName() string {
	if o.Tag != TagSymbol {
		panic("not a symbol: " + o.Tag.String())
	}
	if i := strings.IndexByte(o.Str, '/'); i > 0 && i < len(o.Str)-1 {
		return o.Str[i+1:]
	}
	return o.Str
}

// WithSource returns a shallow copy of o stamped with the given location.
func (o *Object) WithSource(loc *token.Location) *Object {
	cp := &Object{}
	*cp = *o
	cp.Source = loc
	return cp
}

// Equal reports logical equality between a and b under the rules used by the
// language "=" function.  Numbers compare across int/real.  Collections
// compare element-wise; maps and sets compare without regard to order.
func Equal(a, b *Object) bool {
	if a.IsNumeric() && b.IsNumeric() {
		if a.Tag == TagInt && b.Tag == TagInt {
			return a.Int == b.Int
		}
		return toReal(a) == toReal(b)
	}
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagNil:
		return true
	case TagBool:
		return a.Bool == b.Bool
	case TagString, TagSymbol, TagKeyword:
		return a.Str == b.Str
	case TagList, TagVector:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !Equal(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case TagMap:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := 0; i < len(a.Items); i += 2 {
			v, ok := mapLookup(b, a.Items[i])
			if !ok || !Equal(a.Items[i+1], v) {
				return false
			}
		}
		return true
	case TagSet:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for _, item := range a.Items {
			if !setContains(b, item) {
				return false
			}
		}
		return true
	case TagVar:
		return a.Native == b.Native
	case TagNamespace:
		return a.Native == b.Native
	case TagFun:
		return a.Native == b.Native
	}
	return false
}

func toReal(o *Object) float64 {
	if o.Tag == TagInt {
		return float64(o.Int)
	}
	return o.Real
}

func mapLookup(m *Object, key *Object) (*Object, bool) {
	for i := 0; i < len(m.Items); i += 2 {
		if Equal(m.Items[i], key) {
			return m.Items[i+1], true
		}
	}
	return nil, false
}

func setContains(s *Object, item *Object) bool {
	for _, e := range s.Items {
		if Equal(e, item) {
			return true
		}
	}
	return false
}

func (o *Object) String() string {
	switch o.Tag {
	case TagNil:
		return "nil"
	case TagBool:
		return strconv.FormatBool(o.Bool)
	case TagInt:
		return strconv.FormatInt(o.Int, 10)
	case TagReal:
		// The 'g' format can render a real so that it appears integral
		// (2.0 renders as 2) which hides the tag; keep it anyway to match
		// conventional lisp printers.
		return strconv.FormatFloat(o.Real, 'g', -1, 64)
	case TagString:
		return strconv.Quote(o.Str)
	case TagSymbol:
		return o.Str
	case TagKeyword:
		return ":" + o.Str
	case TagList:
		return itemString(o.Items, "(", ")")
	case TagVector:
		return itemString(o.Items, "[", "]")
	case TagMap:
		return itemString(o.Items, "{", "}")
	case TagSet:
		return itemString(o.Items, "#{", "}")
	case TagFun:
		fd := o.FunData()
		name := fd.Name
		if name == "" {
			name = "fn"
		}
		if fd.Compiled {
			return fmt.Sprintf("#<compiled-function %s>", name)
		}
		return fmt.Sprintf("#<function %s>", name)
	case TagVar:
		return "#'" + o.Var().QualifiedName()
	case TagNamespace:
		return fmt.Sprintf("#<namespace %s>", o.Namespace().Name())
	case TagError:
		return (*ErrorVal)(o).Error()
	case TagExtension:
		return fmt.Sprintf("#<%s>", o.ext().TypeName)
	default:
		return fmt.Sprintf("#<%s %#v>", o.Tag, o)
	}
}

func itemString(items []*Object, left, right string) string {
	if len(items) == 0 {
		return left + right
	}
	var b strings.Builder
	b.WriteString(left)
	for i, item := range items {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(item.String())
	}
	b.WriteString(right)
	return b.String()
}

// SortedKeys returns the keys of a map object in a deterministic order for
// rendering and testing.  SortedKeys panics if o is not a map.
func (o *Object) SortedKeys() []*Object {
	if o.Tag != TagMap {
		panic("not a map: " + o.Tag.String())
	}
	keys := make([]*Object, 0, len(o.Items)/2)
	for i := 0; i < len(o.Items); i += 2 {
		keys = append(keys, o.Items[i])
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
