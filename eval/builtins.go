// Copyright © 2025 The cinder authors

package eval

import (
	"fmt"
	"strings"

	"github.com/cinderlang/cinder/runtime"
)

type builtin struct {
	name string
	proc runtime.Proc
}

// coreBuiltins are the session-independent core functions.  IO builtins
// close over the session and are installed separately.
var coreBuiltins = []*builtin{
	{"+", builtinAdd},
	{"-", builtinSub},
	{"*", builtinMul},
	{"/", builtinDiv},
	{"mod", builtinMod},
	{"<", compareChain("<", func(c int) bool { return c < 0 })},
	{">", compareChain(">", func(c int) bool { return c > 0 })},
	{"<=", compareChain("<=", func(c int) bool { return c <= 0 })},
	{">=", compareChain(">=", func(c int) bool { return c >= 0 })},
	{"=", builtinEq},
	{"not=", builtinNotEq},
	{"not", builtinNot},
	{"inc", builtinInc},
	{"dec", builtinDec},
	{"count", builtinCount},
	{"empty?", builtinEmpty},
	{"first", builtinFirst},
	{"rest", builtinRest},
	{"cons", builtinCons},
	{"conj", builtinConj},
	{"seq", builtinSeq},
	{"nth", builtinNth},
	{"get", builtinGet},
	{"assoc", builtinAssoc},
	{"contains?", builtinContains},
	{"list", builtinList},
	{"vector", builtinVector},
	{"hash-map", builtinHashMap},
	{"hash-set", builtinHashSet},
	{"str", builtinStr},
	{"type", builtinType},
	{"apply", builtinApply},
	{"meta", builtinMeta},
	{"with-meta", builtinWithMeta},
}

func installCore(s *Session) {
	core := s.reg.Core()
	for _, b := range coreBuiltins {
		core.Intern(b.name).SetRoot(runtime.Fun(&runtime.FunData{
			Name: b.name,
			NS:   runtime.DefaultLangNS,
			Proc: b.proc,
		}))
	}
	core.Intern("print").SetRoot(runtime.Fun(&runtime.FunData{
		Name: "print", NS: runtime.DefaultLangNS,
		Proc: func(args ...*runtime.Object) (*runtime.Object, error) {
			fmt.Fprint(s.stdout, displayJoin(args))
			return runtime.Nil(), nil
		},
	}))
	core.Intern("println").SetRoot(runtime.Fun(&runtime.FunData{
		Name: "println", NS: runtime.DefaultLangNS,
		Proc: func(args ...*runtime.Object) (*runtime.Object, error) {
			fmt.Fprintln(s.stdout, displayJoin(args))
			return runtime.Nil(), nil
		},
	}))
	installCoreMacros(core)
}

func installCoreMacros(core *runtime.Namespace) {
	defMacroVar(core, "defn", macroDefn)
	defMacroVar(core, "when", macroWhen)
	defMacroVar(core, "unless", macroUnless)
}

func defMacroVar(core *runtime.Namespace, name string, proc runtime.Proc) {
	v := core.Intern(name)
	v.SetRoot(runtime.GoFun(name, proc))
	v.SetMacro(true)
}

// macroDefn rewrites (defn name params+body...) to (def name (fn name ...)).
// The name symbol rides along on the fn so the body can self-recurse
// without going through the var.
func macroDefn(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("defn takes a name and at least one arity")
	}
	if args[0].Tag != runtime.TagSymbol {
		return nil, fmt.Errorf("defn name is not a symbol: %s", args[0].Tag)
	}
	fn := append([]*runtime.Object{runtime.Symbol("fn"), args[0]}, args[1:]...)
	return runtime.List([]*runtime.Object{
		runtime.Symbol("def"), args[0], runtime.List(fn),
	}), nil
}

func macroWhen(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("when takes a test and a body")
	}
	body := append([]*runtime.Object{runtime.Symbol("do")}, args[1:]...)
	return runtime.List([]*runtime.Object{
		runtime.Symbol("if"), args[0], runtime.List(body),
	}), nil
}

func macroUnless(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("unless takes a test and a body")
	}
	body := append([]*runtime.Object{runtime.Symbol("do")}, args[1:]...)
	return runtime.List([]*runtime.Object{
		runtime.Symbol("if"), args[0], runtime.Nil(), runtime.List(body),
	}), nil
}

func arityError(format string, v ...interface{}) error {
	return runtime.GoError(runtime.ErrorConditionf("arity-error", format, v...))
}

func typeError(format string, v ...interface{}) error {
	return runtime.GoError(runtime.ErrorConditionf("type-error", format, v...))
}

func wantNumber(name string, o *runtime.Object) error {
	if !o.IsNumeric() {
		return typeError("%s argument is not a number: %s", name, o.Tag)
	}
	return nil
}

// asReal widens for mixed int/real arithmetic.
func asReal(o *runtime.Object) float64 {
	if o.Tag == runtime.TagInt {
		return float64(o.Int)
	}
	return o.Real
}

func anyReal(args []*runtime.Object) bool {
	for _, a := range args {
		if a.Tag == runtime.TagReal {
			return true
		}
	}
	return false
}

func builtinAdd(args ...*runtime.Object) (*runtime.Object, error) {
	for _, a := range args {
		if err := wantNumber("+", a); err != nil {
			return nil, err
		}
	}
	if anyReal(args) {
		sum := 0.0
		for _, a := range args {
			sum += asReal(a)
		}
		return runtime.Real(sum), nil
	}
	var sum int64
	for _, a := range args {
		sum += a.Int
	}
	return runtime.Int(sum), nil
}

func builtinSub(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) == 0 {
		return nil, arityError("- takes at least 1 argument")
	}
	for _, a := range args {
		if err := wantNumber("-", a); err != nil {
			return nil, err
		}
	}
	if anyReal(args) {
		if len(args) == 1 {
			return runtime.Real(-asReal(args[0])), nil
		}
		acc := asReal(args[0])
		for _, a := range args[1:] {
			acc -= asReal(a)
		}
		return runtime.Real(acc), nil
	}
	if len(args) == 1 {
		return runtime.Int(-args[0].Int), nil
	}
	acc := args[0].Int
	for _, a := range args[1:] {
		acc -= a.Int
	}
	return runtime.Int(acc), nil
}

func builtinMul(args ...*runtime.Object) (*runtime.Object, error) {
	for _, a := range args {
		if err := wantNumber("*", a); err != nil {
			return nil, err
		}
	}
	if anyReal(args) {
		acc := 1.0
		for _, a := range args {
			acc *= asReal(a)
		}
		return runtime.Real(acc), nil
	}
	var acc int64 = 1
	for _, a := range args {
		acc *= a.Int
	}
	return runtime.Int(acc), nil
}

// builtinDiv performs truncated division on integers and exact division on
// reals.  Mixed arguments widen to real.
func builtinDiv(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) == 0 {
		return nil, arityError("/ takes at least 1 argument")
	}
	for _, a := range args {
		if err := wantNumber("/", a); err != nil {
			return nil, err
		}
	}
	if anyReal(args) {
		if len(args) == 1 {
			return runtime.Real(1 / asReal(args[0])), nil
		}
		acc := asReal(args[0])
		for _, a := range args[1:] {
			acc /= asReal(a)
		}
		return runtime.Real(acc), nil
	}
	divs := args[1:]
	acc := args[0].Int
	if len(args) == 1 {
		divs = args
		acc = 1
	}
	for _, a := range divs {
		if a.Int == 0 {
			return nil, runtime.GoError(runtime.ErrorConditionf("arithmetic-error", "division by zero"))
		}
		acc /= a.Int
	}
	return runtime.Int(acc), nil
}

func builtinMod(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 2 {
		return nil, arityError("mod takes 2 arguments, got %d", len(args))
	}
	if args[0].Tag != runtime.TagInt || args[1].Tag != runtime.TagInt {
		return nil, typeError("mod arguments are not integers")
	}
	if args[1].Int == 0 {
		return nil, runtime.GoError(runtime.ErrorConditionf("arithmetic-error", "division by zero"))
	}
	return runtime.Int(args[0].Int % args[1].Int), nil
}

func compareChain(name string, accept func(int) bool) runtime.Proc {
	return func(args ...*runtime.Object) (*runtime.Object, error) {
		if len(args) < 2 {
			return nil, arityError("%s takes at least 2 arguments, got %d", name, len(args))
		}
		for i := 0; i+1 < len(args); i++ {
			c, err := runtime.Compare(args[i], args[i+1])
			if err != nil {
				return nil, typeError("%s: %v", name, err)
			}
			if !accept(c) {
				return runtime.Bool(false), nil
			}
		}
		return runtime.Bool(true), nil
	}
}

func builtinEq(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) < 1 {
		return nil, arityError("= takes at least 1 argument")
	}
	for _, a := range args[1:] {
		if !runtime.Equal(args[0], a) {
			return runtime.Bool(false), nil
		}
	}
	return runtime.Bool(true), nil
}

func builtinNotEq(args ...*runtime.Object) (*runtime.Object, error) {
	eq, err := builtinEq(args...)
	if err != nil {
		return nil, err
	}
	return runtime.Bool(!eq.Truthy()), nil
}

func builtinNot(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 1 {
		return nil, arityError("not takes 1 argument, got %d", len(args))
	}
	return runtime.Bool(!args[0].Truthy()), nil
}

func builtinInc(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 1 {
		return nil, arityError("inc takes 1 argument, got %d", len(args))
	}
	switch args[0].Tag {
	case runtime.TagInt:
		return runtime.Int(args[0].Int + 1), nil
	case runtime.TagReal:
		return runtime.Real(args[0].Real + 1), nil
	}
	return nil, typeError("inc argument is not a number: %s", args[0].Tag)
}

func builtinDec(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 1 {
		return nil, arityError("dec takes 1 argument, got %d", len(args))
	}
	switch args[0].Tag {
	case runtime.TagInt:
		return runtime.Int(args[0].Int - 1), nil
	case runtime.TagReal:
		return runtime.Real(args[0].Real - 1), nil
	}
	return nil, typeError("dec argument is not a number: %s", args[0].Tag)
}

func builtinCount(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 1 {
		return nil, arityError("count takes 1 argument, got %d", len(args))
	}
	n, err := runtime.Count(args[0])
	if err != nil {
		return nil, typeError("%v", err)
	}
	return runtime.Int(int64(n)), nil
}

func builtinEmpty(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 1 {
		return nil, arityError("empty? takes 1 argument, got %d", len(args))
	}
	n, err := runtime.Count(args[0])
	if err != nil {
		return nil, typeError("%v", err)
	}
	return runtime.Bool(n == 0), nil
}

func builtinFirst(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 1 {
		return nil, arityError("first takes 1 argument, got %d", len(args))
	}
	items, err := runtime.Seq(args[0])
	if err != nil {
		return nil, typeError("%v", err)
	}
	if len(items) == 0 {
		return runtime.Nil(), nil
	}
	return items[0], nil
}

func builtinRest(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 1 {
		return nil, arityError("rest takes 1 argument, got %d", len(args))
	}
	items, err := runtime.Seq(args[0])
	if err != nil {
		return nil, typeError("%v", err)
	}
	if len(items) == 0 {
		return runtime.List(nil), nil
	}
	return runtime.List(items[1:]), nil
}

func builtinCons(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 2 {
		return nil, arityError("cons takes 2 arguments, got %d", len(args))
	}
	items, err := runtime.Seq(args[1])
	if err != nil {
		return nil, typeError("%v", err)
	}
	out := make([]*runtime.Object, 0, len(items)+1)
	out = append(out, args[0])
	out = append(out, items...)
	return runtime.List(out), nil
}

// builtinConj adds elements to a collection at its natural insertion point:
// the front for lists, the back for vectors, membership for sets.
func builtinConj(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) < 1 {
		return nil, arityError("conj takes at least 1 argument")
	}
	coll := args[0]
	for _, x := range args[1:] {
		switch coll.Tag {
		case runtime.TagList:
			items := make([]*runtime.Object, 0, len(coll.Items)+1)
			items = append(items, x)
			items = append(items, coll.Items...)
			coll = runtime.List(items)
		case runtime.TagVector:
			items := make([]*runtime.Object, len(coll.Items), len(coll.Items)+1)
			copy(items, coll.Items)
			coll = runtime.Vector(append(items, x))
		case runtime.TagSet:
			if member(coll, x) {
				continue
			}
			items := make([]*runtime.Object, len(coll.Items), len(coll.Items)+1)
			copy(items, coll.Items)
			next := runtime.Set(append(items, x))
			if next.Tag == runtime.TagError {
				return nil, runtime.GoError(next)
			}
			coll = next
		default:
			return nil, typeError("cannot conj onto %s", coll.Tag)
		}
	}
	return coll, nil
}

func builtinSeq(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 1 {
		return nil, arityError("seq takes 1 argument, got %d", len(args))
	}
	items, err := runtime.Seq(args[0])
	if err != nil {
		return nil, typeError("%v", err)
	}
	if len(items) == 0 {
		return runtime.Nil(), nil
	}
	return runtime.List(items), nil
}

func builtinNth(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, arityError("nth takes 2 or 3 arguments, got %d", len(args))
	}
	if args[1].Tag != runtime.TagInt {
		return nil, typeError("nth index is not an integer: %s", args[1].Tag)
	}
	items, err := runtime.Seq(args[0])
	if err != nil {
		return nil, typeError("%v", err)
	}
	i := args[1].Int
	if i < 0 || i >= int64(len(items)) {
		if len(args) == 3 {
			return args[2], nil
		}
		return nil, runtime.GoError(runtime.ErrorConditionf("bounds-error",
			"index %d out of bounds for length %d", i, len(items)))
	}
	return items[i], nil
}

func builtinGet(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, arityError("get takes 2 or 3 arguments, got %d", len(args))
	}
	v, ok, err := runtime.Get(args[0], args[1])
	if err != nil {
		return nil, typeError("%v", err)
	}
	if !ok {
		if len(args) == 3 {
			return args[2], nil
		}
		return runtime.Nil(), nil
	}
	return v, nil
}

func builtinAssoc(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) < 3 || len(args)%2 != 1 {
		return nil, arityError("assoc takes a collection and key-value pairs")
	}
	coll := args[0]
	for i := 1; i < len(args); i += 2 {
		next, err := runtime.Assoc(coll, args[i], args[i+1])
		if err != nil {
			return nil, typeError("%v", err)
		}
		coll = next
	}
	return coll, nil
}

func builtinContains(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 2 {
		return nil, arityError("contains? takes 2 arguments, got %d", len(args))
	}
	if args[0].Tag == runtime.TagSet {
		return runtime.Bool(member(args[0], args[1])), nil
	}
	_, ok, err := runtime.Get(args[0], args[1])
	if err != nil {
		return nil, typeError("%v", err)
	}
	return runtime.Bool(ok), nil
}

func member(set *runtime.Object, x *runtime.Object) bool {
	for _, item := range set.Items {
		if runtime.Equal(item, x) {
			return true
		}
	}
	return false
}

func builtinList(args ...*runtime.Object) (*runtime.Object, error) {
	return runtime.List(args), nil
}

func builtinVector(args ...*runtime.Object) (*runtime.Object, error) {
	return runtime.Vector(args), nil
}

func builtinHashMap(args ...*runtime.Object) (*runtime.Object, error) {
	m := runtime.Map(args)
	if m.Tag == runtime.TagError {
		return nil, runtime.GoError(m)
	}
	return m, nil
}

func builtinHashSet(args ...*runtime.Object) (*runtime.Object, error) {
	set := runtime.Set(args)
	if set.Tag == runtime.TagError {
		return nil, runtime.GoError(set)
	}
	return set, nil
}

func builtinStr(args ...*runtime.Object) (*runtime.Object, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(displayString(a))
	}
	return runtime.String(b.String()), nil
}

func builtinType(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 1 {
		return nil, arityError("type takes 1 argument, got %d", len(args))
	}
	return runtime.Keyword(args[0].Tag.String()), nil
}

func builtinApply(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) < 2 {
		return nil, arityError("apply takes at least 2 arguments, got %d", len(args))
	}
	tail, err := runtime.Seq(args[len(args)-1])
	if err != nil {
		return nil, typeError("apply tail: %v", err)
	}
	call := make([]*runtime.Object, 0, len(args)-2+len(tail))
	call = append(call, args[1:len(args)-1]...)
	call = append(call, tail...)
	return runtime.Invoke(args[0], call...)
}

func builtinMeta(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 1 {
		return nil, arityError("meta takes 1 argument, got %d", len(args))
	}
	return runtime.MetaOf(args[0]), nil
}

func builtinWithMeta(args ...*runtime.Object) (*runtime.Object, error) {
	if len(args) != 2 {
		return nil, arityError("with-meta takes 2 arguments, got %d", len(args))
	}
	out, err := runtime.WithMeta(args[0], args[1])
	if err != nil {
		return nil, typeError("%v", err)
	}
	return out, nil
}

// displayString renders a value for display output: strings print their
// contents, everything else prints its readable form.
func displayString(o *runtime.Object) string {
	if o.Tag == runtime.TagString {
		return o.Str
	}
	if o.IsNil() {
		return ""
	}
	return o.String()
}

func displayJoin(args []*runtime.Object) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = displayString(a)
	}
	return strings.Join(parts, " ")
}
