// Copyright © 2025 The cinder authors

package reader_test

import (
	"testing"

	"github.com/cinderlang/cinder/reader"
	"github.com/cinderlang/cinder/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func read1(t *testing.T, text string) *runtime.Object {
	t.Helper()
	forms, err := reader.ReadString("test.cin", text)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	return forms[0]
}

func TestAtoms(t *testing.T) {
	tests := []struct {
		text string
		tag  runtime.Tag
		want string
	}{
		{"42", runtime.TagInt, "42"},
		{"-7", runtime.TagInt, "-7"},
		{"1.5", runtime.TagReal, "1.5"},
		{"1e3", runtime.TagReal, "1000"},
		{`"a b"`, runtime.TagString, `"a b"`},
		{`"a\nb"`, runtime.TagString, `"a\nb"`},
		{":key", runtime.TagKeyword, ":key"},
		{"nil", runtime.TagNil, "nil"},
		{"true", runtime.TagBool, "true"},
		{"false", runtime.TagBool, "false"},
		{"foo", runtime.TagSymbol, "foo"},
		{"my.ns/f", runtime.TagSymbol, "my.ns/f"},
		{"+", runtime.TagSymbol, "+"},
		{"set!", runtime.TagSymbol, "set!"},
		{"<=", runtime.TagSymbol, "<="},
		{"&", runtime.TagSymbol, "&"},
	}
	for _, tt := range tests {
		form := read1(t, tt.text)
		assert.Equal(t, tt.tag, form.Tag, "text %q", tt.text)
		assert.Equal(t, tt.want, form.String(), "text %q", tt.text)
	}
}

func TestCollections(t *testing.T) {
	form := read1(t, "(f 1 [2 3] {:a 1} #{4})")
	require.Equal(t, runtime.TagList, form.Tag)
	require.Len(t, form.Items, 5)
	assert.Equal(t, runtime.TagSymbol, form.Items[0].Tag)
	assert.Equal(t, runtime.TagInt, form.Items[1].Tag)
	assert.Equal(t, runtime.TagVector, form.Items[2].Tag)
	assert.Equal(t, runtime.TagMap, form.Items[3].Tag)
	assert.Equal(t, runtime.TagSet, form.Items[4].Tag)

	form = read1(t, "()")
	require.Equal(t, runtime.TagList, form.Tag)
	assert.Len(t, form.Items, 0)
}

func TestQuoteShorthand(t *testing.T) {
	form := read1(t, "'(a b)")
	require.Equal(t, runtime.TagList, form.Tag)
	require.Len(t, form.Items, 2)
	assert.Equal(t, "quote", form.Items[0].Str)
	assert.Equal(t, runtime.TagList, form.Items[1].Tag)

	form = read1(t, "'x")
	require.Len(t, form.Items, 2)
	assert.Equal(t, "x", form.Items[1].Str)
}

func TestComments(t *testing.T) {
	forms, err := reader.ReadString("test.cin", `
; leading comment
(f 1) ; trailing comment
; closing comment
`)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, runtime.TagList, forms[0].Tag)
}

func TestMultipleForms(t *testing.T) {
	forms, err := reader.ReadString("test.cin", "(def x 1)\n(def y 2)\nx")
	require.NoError(t, err)
	require.Len(t, forms, 3)
}

func TestSourceLocations(t *testing.T) {
	forms, err := reader.ReadString("test.cin", "(f 1)\n  (g 2)")
	require.NoError(t, err)
	require.Len(t, forms, 2)

	loc := forms[0].Source
	require.NotNil(t, loc)
	assert.Equal(t, "test.cin", loc.File)
	assert.Equal(t, 1, loc.Line)
	assert.Equal(t, 1, loc.Col)

	loc = forms[1].Source
	assert.Equal(t, 2, loc.Line)
	assert.Equal(t, 3, loc.Col)

	// Nested forms carry their own positions.
	inner := forms[1].Items[1].Source
	assert.Equal(t, 2, inner.Line)
	assert.Equal(t, 6, inner.Col)
}

func TestUnmatchedDelimiters(t *testing.T) {
	for _, text := range []string{"(f 1", "[1 2", "{:a 1", "#{1"} {
		_, err := reader.ReadString("test.cin", text)
		require.Error(t, err, "text %q", text)
		assert.Contains(t, err.Error(), "unmatched", "text %q", text)
	}
}

func TestUnexpectedText(t *testing.T) {
	_, err := reader.ReadString("test.cin", "(f 1) )")
	require.Error(t, err)
}

func TestMapLiteralErrors(t *testing.T) {
	_, err := reader.ReadString("test.cin", "{:a 1 :b}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "even number")

	_, err = reader.ReadString("test.cin", "{:a 1 :a 2}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate map key")

	_, err = reader.ReadString("test.cin", "#{1 1}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate set element")
}
