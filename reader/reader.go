// Copyright © 2025 The cinder authors

/*
Package reader parses cinder source text into runtime objects.

	form    := atom | coll | quote
	coll    := '(' <form>* ')' | '[' <form>* ']'
	         | '{' (<form> <form>)* '}' | '#{' <form>* '}'
	quote   := '\'' <form>
	atom    := <number> | <string> | <keyword> | <symbol>

Every produced object carries a source location resolved to a line and
column so that analysis and evaluation errors can point back into the
stream they were read from.
*/
package reader

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cinderlang/cinder/reader/token"
	"github.com/cinderlang/cinder/runtime"
	parsec "github.com/prataprc/goparsec"
)

// Read parses all forms from r.  The name identifies the stream in source
// locations and diagnostics.
func Read(name string, r io.Reader) ([]*runtime.Object, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	forms, n, err := Parse(name, b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, io.ErrUnexpectedEOF
	}
	return forms, nil
}

// ReadString parses all forms from text.
func ReadString(name, text string) ([]*runtime.Object, error) {
	return Read(name, strings.NewReader(text))
}

// Parse parses forms from text and returns them along with the number of
// bytes consumed.
func Parse(name string, text []byte) ([]*runtime.Object, int, error) {
	b := &builder{name: name, lines: lineStarts(text)}
	parser := b.newParser()
	s := parsec.NewScanner(text)

	var forms []*runtime.Object
	root, s := parser(s)
	for root != nil {
		form, err := rootObject(root)
		if err != nil {
			return forms, s.GetCursor(), err
		}
		if form != nil {
			forms = append(forms, form)
		}
		root, s = parser(s)
	}
	_, s = s.SkipWS()
	if !s.Endof() {
		rest, _ := s.Match(`.{1,16}`)
		if len(rest) > 15 {
			rest = append(rest[:15:15], []byte("...")...)
		}
		return forms, s.GetCursor(), &token.LocationError{
			Err:    fmt.Errorf("unexpected source text possibly starting: %s", rest),
			Source: b.loc(s.GetCursor()),
		}
	}
	return forms, s.GetCursor(), nil
}

const (
	nodeInvalid nodeType = iota
	nodeTerm
	nodeList
	nodeVector
	nodeMap
	nodeSet
	nodeQuote
	nodeUnmatched
)

type nodeType uint

var nodeTypeStrings = []string{
	nodeInvalid:   "INVALID",
	nodeTerm:      "TERM",
	nodeList:      "LIST",
	nodeVector:    "VECTOR",
	nodeMap:       "MAP",
	nodeSet:       "SET",
	nodeQuote:     "QUOTE",
	nodeUnmatched: "UNMATCHED",
}

func (t nodeType) String() string {
	if int(t) >= len(nodeTypeStrings) {
		return "INVALID"
	}
	return nodeTypeStrings[t]
}

// builder carries per-parse state for converting parsec nodes into objects
// with resolved source locations.
type builder struct {
	name  string
	lines []int
}

func lineStarts(text []byte) []int {
	starts := []int{0}
	for i, c := range text {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (b *builder) loc(pos int) *token.Location {
	line := 0
	for line+1 < len(b.lines) && b.lines[line+1] <= pos {
		line++
	}
	return &token.Location{
		File: b.name,
		Pos:  pos,
		Line: line + 1,
		Col:  pos - b.lines[line] + 1,
	}
}

func (b *builder) newParser() parsec.Parser {
	openP := parsec.Atom("(", "OPENP")
	closeP := parsec.Atom(")", "CLOSEP")
	openB := parsec.Atom("[", "OPENB")
	closeB := parsec.Atom("]", "CLOSEB")
	openC := parsec.Atom("{", "OPENC")
	openSet := parsec.Atom("#{", "OPENSET")
	closeC := parsec.Atom("}", "CLOSEC")
	quote := parsec.Atom("'", "QUOTE")
	comment := parsec.Token(`;([^\n]*[^\s])?`, "COMMENT")
	str := parsec.Token(`"(?:[^"\\]|\\.)*"`, "STRING")
	decimal := parsec.Token(`[+-]?[0-9]+([.][0-9]+)?([eE][+-]?[0-9]+)?`, "DECIMAL")
	keyword := parsec.Token(`:[^\s()\[\]{}";,]+`, "KEYWORD")
	// The symbol token comes last in the terminal choice because it
	// swallows nearly anything.
	symbol := parsec.Token(`[^\s()\[\]{}";,:#'][^\s()\[\]{}";,]*`, "SYMBOL")

	term := parsec.OrdChoice(b.astNode(nodeTerm),
		str,
		decimal,
		keyword,
		symbol,
	)
	var form parsec.Parser
	formList := parsec.Kleene(nil, &form)
	list := parsec.And(b.astNode(nodeList), openP, formList, closeP)
	vector := parsec.And(b.astNode(nodeVector), openB, formList, closeB)
	mapLit := parsec.And(b.astNode(nodeMap), openC, formList, closeC)
	setLit := parsec.And(b.astNode(nodeSet), openSet, formList, closeC)
	quoted := parsec.And(b.astNode(nodeQuote), quote, &form)
	// Error matching cases come last because they have the lowest
	// precedence.
	listUnmatched := parsec.And(b.astNode(nodeUnmatched), openP, formList, parsec.End())
	vectorUnmatched := parsec.And(b.astNode(nodeUnmatched), openB, formList, parsec.End())
	mapUnmatched := parsec.And(b.astNode(nodeUnmatched), openC, formList, parsec.End())
	setUnmatched := parsec.And(b.astNode(nodeUnmatched), openSet, formList, parsec.End())
	form = parsec.OrdChoice(nil,
		comment,
		term,
		list,
		vector,
		setLit,
		mapLit,
		quoted,
		listUnmatched,
		vectorUnmatched,
		setUnmatched,
		mapUnmatched,
	)
	return form
}

func (b *builder) astNode(t nodeType) parsec.Nodify {
	return func(nodes []parsec.ParsecNode) parsec.ParsecNode {
		return b.newNode(t, nodes)
	}
}

func (b *builder) newNode(t nodeType, nodes []parsec.ParsecNode) parsec.ParsecNode {
	nodes, ok := cleanNodeList(nodes)
	if len(nodes) == 0 {
		return runtime.Nil()
	}
	if !ok {
		// There is an error in the first position.
		return nodes[0]
	}
	switch t {
	case nodeTerm:
		return b.terminal(nodes[0].(*parsec.Terminal))
	case nodeList, nodeVector, nodeMap, nodeSet:
		open := nodes[0].(*parsec.Terminal)
		items := make([]*runtime.Object, 0, len(nodes)-2)
		for _, c := range nodes {
			if obj, ok := c.(*runtime.Object); ok {
				items = append(items, obj)
			}
		}
		return b.collection(t, items, b.loc(open.GetPosition()))
	case nodeQuote:
		mark := nodes[0].(*parsec.Terminal)
		obj := nodes[1].(*runtime.Object)
		loc := b.loc(mark.GetPosition())
		q := runtime.Symbol("quote")
		q.Source = loc
		lst := runtime.List([]*runtime.Object{q, obj})
		lst.Source = loc
		return lst
	case nodeUnmatched:
		open := nodes[0].(*parsec.Terminal)
		return &token.LocationError{
			Err:    fmt.Errorf("unmatched %q", open.GetValue()),
			Source: b.loc(open.GetPosition()),
		}
	default:
		panic(fmt.Sprintf("unknown nodeType: %s (%d)", t, t))
	}
}

func (b *builder) collection(t nodeType, items []*runtime.Object, loc *token.Location) parsec.ParsecNode {
	var obj *runtime.Object
	switch t {
	case nodeList:
		obj = runtime.List(items)
	case nodeVector:
		obj = runtime.Vector(items)
	case nodeMap:
		if len(items)%2 != 0 {
			return &token.LocationError{
				Err:    fmt.Errorf("map literal requires an even number of forms"),
				Source: loc,
			}
		}
		obj = runtime.Map(items)
	case nodeSet:
		obj = runtime.Set(items)
	}
	if obj.Tag == runtime.TagError {
		return &token.LocationError{Err: runtime.GoError(obj), Source: loc}
	}
	obj.Source = loc
	return obj
}

func (b *builder) terminal(term *parsec.Terminal) parsec.ParsecNode {
	loc := b.loc(term.GetPosition())
	fail := func(err error) parsec.ParsecNode {
		return &token.LocationError{Err: err, Source: loc}
	}
	var obj *runtime.Object
	switch term.GetName() {
	case "STRING":
		s, err := strconv.Unquote(term.GetValue())
		if err != nil {
			return fail(fmt.Errorf("bad string literal: %v", err))
		}
		obj = runtime.String(s)
	case "DECIMAL":
		v := term.GetValue()
		if strings.ContainsAny(v, ".eE") {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fail(fmt.Errorf("bad number: %v", err))
			}
			obj = runtime.Real(f)
		} else {
			x, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fail(fmt.Errorf("bad number: %v", err))
			}
			obj = runtime.Int(x)
		}
	case "KEYWORD":
		obj = runtime.Keyword(term.GetValue()[1:])
	case "SYMBOL":
		switch term.GetValue() {
		case "nil":
			obj = runtime.Nil().WithSource(loc)
			return obj
		case "true":
			obj = runtime.Bool(true).WithSource(loc)
			return obj
		case "false":
			obj = runtime.Bool(false).WithSource(loc)
			return obj
		}
		obj = runtime.Symbol(term.GetValue())
	default:
		return fail(fmt.Errorf("unexpected token %s %q", term.GetName(), term.GetValue()))
	}
	obj.Source = loc
	return obj
}

// cleanNodeList flattens nested node slices, drops comments and structural
// delimiter terminals, and propagates the first error found.
func cleanNodeList(list []parsec.ParsecNode) ([]parsec.ParsecNode, bool) {
	var nodes []parsec.ParsecNode
	for _, n := range list {
		switch node := n.(type) {
		case *parsec.Terminal:
			if node.GetName() == "COMMENT" {
				continue
			}
			nodes = append(nodes, node)
		case error:
			return []parsec.ParsecNode{node}, false
		case []parsec.ParsecNode:
			clean, ok := cleanNodeList(node)
			if !ok {
				return clean, false
			}
			nodes = append(nodes, clean...)
		default:
			nodes = append(nodes, node)
		}
	}
	return nodes, true
}

func rootObject(root parsec.ParsecNode) (*runtime.Object, error) {
	nodes, ok := cleanNodeList([]parsec.ParsecNode{root})
	if len(nodes) == 0 {
		// A line containing only a comment produces no form.
		return nil, nil
	}
	if !ok {
		return nil, nodes[0].(error)
	}
	obj, ok := nodes[0].(*runtime.Object)
	if !ok {
		return nil, nil
	}
	return obj, nil
}
