// Copyright © 2025 The cinder authors

package repl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinderlang/cinder/eval"
)

func TestBalancedDelimiters(t *testing.T) {
	tests := []struct {
		text     string
		balanced bool
	}{
		{"(+ 1 2)", true},
		{"(let [x 1]", false},
		{"(let [x 1]\n  x)", true},
		{"[1 2 {:a 1}]", true},
		{"#{1 2}", true},
		{`"(not a list`, false}, // unterminated string keeps reading
		{`"(closed string)"`, true},
		{`(str "a\"b")`, true},
		{"(f 1) ; trailing (comment", true},
		{"; just a comment (", true},
		{"())", true}, // excess closers go to the reader for the error
		{"", true},
	}
	for _, test := range tests {
		assert.Equal(t, test.balanced, balancedDelimiters(test.text), "text: %q", test.text)
	}
}

func TestSymbolCompleter(t *testing.T) {
	s, err := eval.New()
	require.NoError(t, err)
	out := s.EvalString("test", "(defn double [x] (+ x x)) (defn half [x] (/ x 2))")
	require.NotNil(t, out)

	c := &symbolCompleter{session: s}

	names := c.collectSymbols("dou")
	assert.Equal(t, []string{"double"}, names)

	// core builtins complete unqualified
	names = c.collectSymbols("cou")
	assert.Contains(t, names, "count")

	// qualified completion through any namespace
	names = c.collectSymbols("user/")
	assert.Contains(t, names, "user/double")
	assert.Contains(t, names, "user/half")

	line := []rune("(dou")
	completions, length := c.Do(line, len(line))
	require.Len(t, completions, 1)
	assert.Equal(t, "ble", string(completions[0]))
	assert.Equal(t, 3, length)
}
