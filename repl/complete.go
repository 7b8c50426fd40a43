// Copyright © 2025 The cinder authors

package repl

import (
	"sort"
	"strings"

	"github.com/cinderlang/cinder/eval"
)

// symbolCompleter implements readline.AutoCompleter by enumerating vars
// visible from the session's current namespace.
type symbolCompleter struct {
	session *eval.Session
}

func (c *symbolCompleter) Do(line []rune, pos int) ([][]rune, int) {
	// Scan backwards from the cursor to the start of the current word.
	start := pos
	for start > 0 {
		ch := line[start-1]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '(' || ch == '[' || ch == '{' {
			break
		}
		start--
	}
	prefix := string(line[start:pos])
	if prefix == "" {
		return nil, 0
	}

	candidates := c.collectSymbols(prefix)
	if len(candidates) == 0 {
		return nil, 0
	}

	// Each completion entry is the suffix to append after the prefix.
	result := make([][]rune, 0, len(candidates))
	for _, sym := range candidates {
		result = append(result, []rune(sym[len(prefix):]))
	}
	return result, len(prefix)
}

func (c *symbolCompleter) collectSymbols(prefix string) []string {
	seen := make(map[string]bool)
	var result []string
	add := func(name string) {
		if strings.HasPrefix(name, prefix) && !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}

	reg := c.session.Registry()
	current := c.session.Namespace()

	// Unqualified names resolve in the current namespace and then in the
	// core library, so both complete bare.
	for _, name := range current.VarNames() {
		add(name)
	}
	for _, name := range reg.Core().VarNames() {
		add(name)
	}

	// Qualified names complete through every namespace, and "ns/" itself
	// completes when the prefix is shorter.
	for _, nsName := range reg.NamespaceNames() {
		qual := nsName + "/"
		if strings.HasPrefix(prefix, qual) {
			ns, ok := reg.Find(nsName)
			if !ok {
				continue
			}
			for _, name := range ns.VarNames() {
				add(qual + name)
			}
		} else {
			add(qual)
		}
	}

	sort.Strings(result)
	return result
}
