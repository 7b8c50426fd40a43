// Copyright © 2025 The cinder authors

package runtime

import "fmt"

// Behavior identifies a fixed capability supported by one or more tags.
// Behavior membership is declared statically per tag in tagBehaviors; it is
// not discovered at runtime.  The single exception is TagExtension, whose
// capabilities come from the per-value ExtData table.
type Behavior uint16

// Behavior constants.
const (
	Callable Behavior = 1 << iota
	Seqable
	Associative
	Countable
	Comparable
	MetaBearing
)

var behaviorStrings = map[Behavior]string{
	Callable:    "callable",
	Seqable:     "seqable",
	Associative: "associative",
	Countable:   "countable",
	Comparable:  "comparable",
	MetaBearing: "metadata-bearing",
}

func (b Behavior) String() string {
	if s, ok := behaviorStrings[b]; ok {
		return s
	}
	return fmt.Sprintf("behavior(%d)", b)
}

// tagBehaviors is the closed capability table.  Dispatch is total: a tag
// missing a behavior reports an unsupported-behavior error, never a panic.
var tagBehaviors = [tagMax]Behavior{
	TagNil:       Seqable | Countable | Comparable,
	TagBool:      Comparable,
	TagInt:       Comparable,
	TagReal:      Comparable,
	TagString:    Seqable | Countable | Comparable | MetaBearing,
	TagSymbol:    Comparable | MetaBearing,
	TagKeyword:   Callable | Comparable,
	TagList:      Seqable | Countable | Comparable | MetaBearing,
	TagVector:    Callable | Seqable | Associative | Countable | Comparable | MetaBearing,
	TagMap:       Callable | Seqable | Associative | Countable | MetaBearing,
	TagSet:       Callable | Seqable | Countable | MetaBearing,
	TagFun:       Callable | MetaBearing,
	TagVar:       Callable | MetaBearing,
	TagNamespace: 0,
	TagError:     0,
	TagExtension: 0, // consulted per value
}

// ExtData is the payload of a TagExtension object.  The capability table
// holds function values for each behavior the user-defined kind supports; a
// nil entry means unsupported.
type ExtData struct {
	TypeName string
	Data     interface{}

	CallFn  Proc
	SeqFn   func() ([]*Object, error)
	GetFn   func(key *Object) (*Object, bool, error)
	CountFn func() (int, error)
	CmpFn   func(other *Object) (int, error)
}

// Extension returns an extension object holding ext.
func Extension(ext *ExtData) *Object {
	return &Object{Source: nativeSource(), Tag: TagExtension, Native: ext}
}

func (o *Object) ext() *ExtData {
	if o.Tag != TagExtension {
		panic("not an extension: " + o.Tag.String())
	}
	return o.Native.(*ExtData)
}

// Can reports whether o supports the given behavior.
func (o *Object) Can(b Behavior) bool {
	if o.Tag == TagExtension {
		ext := o.ext()
		switch b {
		case Callable:
			return ext.CallFn != nil
		case Seqable:
			return ext.SeqFn != nil
		case Associative:
			return ext.GetFn != nil
		case Countable:
			return ext.CountFn != nil
		case Comparable:
			return ext.CmpFn != nil
		}
		return false
	}
	return o.Tag < tagMax && tagBehaviors[o.Tag]&b != 0
}

func unsupported(o *Object, b Behavior) error {
	return fmt.Errorf("%s is not %s", o.Tag, b)
}

// Count returns the number of elements in a countable object.
func Count(o *Object) (int, error) {
	switch o.Tag {
	case TagNil:
		return 0, nil
	case TagString:
		return len(o.Str), nil
	case TagList, TagVector, TagSet:
		return len(o.Items), nil
	case TagMap:
		return len(o.Items) / 2, nil
	case TagExtension:
		if fn := o.ext().CountFn; fn != nil {
			return fn()
		}
	}
	return 0, unsupported(o, Countable)
}

// Seq returns the elements of a seqable object as a slice.  Map objects
// yield two-element [key value] vectors.  The returned slice must not be
// mutated; it may alias the object's backing storage.
func Seq(o *Object) ([]*Object, error) {
	switch o.Tag {
	case TagNil:
		return nil, nil
	case TagString:
		items := make([]*Object, 0, len(o.Str))
		for _, r := range o.Str {
			items = append(items, String(string(r)))
		}
		return items, nil
	case TagList, TagVector, TagSet:
		return o.Items, nil
	case TagMap:
		items := make([]*Object, 0, len(o.Items)/2)
		for i := 0; i < len(o.Items); i += 2 {
			items = append(items, Vector([]*Object{o.Items[i], o.Items[i+1]}))
		}
		return items, nil
	case TagExtension:
		if fn := o.ext().SeqFn; fn != nil {
			return fn()
		}
	}
	return nil, unsupported(o, Seqable)
}

// Get looks up key in an associative object.  The second return reports
// whether the key was present.
func Get(o *Object, key *Object) (*Object, bool, error) {
	switch o.Tag {
	case TagVector:
		if key.Tag != TagInt {
			return nil, false, fmt.Errorf("vector index is not an integer: %s", key.Tag)
		}
		if key.Int < 0 || key.Int >= int64(len(o.Items)) {
			return nil, false, nil
		}
		return o.Items[key.Int], true, nil
	case TagMap:
		v, ok := mapLookup(o, key)
		return v, ok, nil
	case TagExtension:
		if fn := o.ext().GetFn; fn != nil {
			return fn(key)
		}
	}
	return nil, false, unsupported(o, Associative)
}

// Assoc returns a new map or vector with key bound to val.  The receiver is
// not modified.
func Assoc(o *Object, key, val *Object) (*Object, error) {
	switch o.Tag {
	case TagMap:
		items := make([]*Object, 0, len(o.Items)+2)
		replaced := false
		for i := 0; i < len(o.Items); i += 2 {
			if Equal(o.Items[i], key) {
				items = append(items, key, val)
				replaced = true
			} else {
				items = append(items, o.Items[i], o.Items[i+1])
			}
		}
		if !replaced {
			items = append(items, key, val)
		}
		return &Object{Source: nativeSource(), Tag: TagMap, Items: items}, nil
	case TagVector:
		if key.Tag != TagInt {
			return nil, fmt.Errorf("vector index is not an integer: %s", key.Tag)
		}
		if key.Int < 0 || key.Int > int64(len(o.Items)) {
			return nil, fmt.Errorf("vector index out of bounds: %d", key.Int)
		}
		items := make([]*Object, len(o.Items), len(o.Items)+1)
		copy(items, o.Items)
		if key.Int == int64(len(items)) {
			items = append(items, val)
		} else {
			items[key.Int] = val
		}
		return Vector(items), nil
	}
	return nil, unsupported(o, Associative)
}

// Compare orders two comparable objects, returning -1, 0, or 1.  Numbers
// compare across int/real; other tags only compare with themselves.
func Compare(a, b *Object) (int, error) {
	if a.IsNumeric() && b.IsNumeric() {
		x, y := toReal(a), toReal(b)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	}
	if a.Tag == TagExtension {
		if fn := a.ext().CmpFn; fn != nil {
			return fn(b)
		}
		return 0, unsupported(a, Comparable)
	}
	if a.Tag != b.Tag {
		return 0, fmt.Errorf("cannot compare %s with %s", a.Tag, b.Tag)
	}
	switch a.Tag {
	case TagNil:
		return 0, nil
	case TagBool:
		switch {
		case a.Bool == b.Bool:
			return 0, nil
		case b.Bool:
			return -1, nil
		}
		return 1, nil
	case TagString, TagSymbol, TagKeyword:
		switch {
		case a.Str < b.Str:
			return -1, nil
		case a.Str > b.Str:
			return 1, nil
		}
		return 0, nil
	case TagList, TagVector:
		n := len(a.Items)
		if len(b.Items) < n {
			n = len(b.Items)
		}
		for i := 0; i < n; i++ {
			c, err := Compare(a.Items[i], b.Items[i])
			if err != nil || c != 0 {
				return c, err
			}
		}
		return len(a.Items) - len(b.Items), nil
	}
	return 0, unsupported(a, Comparable)
}

// Invoke calls a callable object.  Keywords, vectors, maps, and sets look
// themselves up in their argument; vars invoke their root; functions run
// their Proc.
func Invoke(o *Object, args ...*Object) (*Object, error) {
	switch o.Tag {
	case TagFun:
		return o.FunData().Proc(args...)
	case TagVar:
		root := o.Var().Root()
		if root == nil {
			return nil, fmt.Errorf("unbound var: %s", o.Var().QualifiedName())
		}
		return Invoke(root, args...)
	case TagKeyword:
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("keyword lookup takes 1 or 2 arguments, got %d", len(args))
		}
		v, ok, err := Get(args[0], o)
		if err != nil {
			return nil, err
		}
		if !ok {
			if len(args) == 2 {
				return args[1], nil
			}
			return Nil(), nil
		}
		return v, nil
	case TagVector, TagMap:
		if len(args) != 1 {
			return nil, fmt.Errorf("%s lookup takes 1 argument, got %d", o.Tag, len(args))
		}
		v, ok, err := Get(o, args[0])
		if err != nil {
			return nil, err
		}
		if !ok {
			return Nil(), nil
		}
		return v, nil
	case TagSet:
		if len(args) != 1 {
			return nil, fmt.Errorf("set lookup takes 1 argument, got %d", len(args))
		}
		if setContains(o, args[0]) {
			return args[0], nil
		}
		return Nil(), nil
	case TagExtension:
		if fn := o.ext().CallFn; fn != nil {
			return fn(args...)
		}
	}
	return nil, unsupported(o, Callable)
}

// WithMeta returns a shallow copy of o carrying the given metadata map.
func WithMeta(o *Object, meta *Object) (*Object, error) {
	if !o.Can(MetaBearing) {
		return nil, unsupported(o, MetaBearing)
	}
	if meta.Tag != TagMap && meta.Tag != TagNil {
		return nil, fmt.Errorf("metadata is not a map: %s", meta.Tag)
	}
	cp := &Object{}
	*cp = *o
	if meta.Tag == TagNil {
		cp.Meta = nil
	} else {
		cp.Meta = meta
	}
	return cp, nil
}

// MetaOf returns o's metadata map, or nil when absent.
func MetaOf(o *Object) *Object {
	if o.Meta == nil {
		return Nil()
	}
	return o.Meta
}
