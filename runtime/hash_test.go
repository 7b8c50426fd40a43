// Copyright © 2025 The cinder authors

package runtime_test

import (
	"testing"

	"github.com/cinderlang/cinder/runtime"
	"github.com/stretchr/testify/assert"
)

func TestHashEqualConsistency(t *testing.T) {
	pairs := [][2]*runtime.Object{
		{runtime.Int(2), runtime.Real(2.0)},
		{runtime.String("a"), runtime.String("a")},
		{
			list(runtime.Symbol("f"), runtime.Int(1)),
			list(runtime.Symbol("f"), runtime.Int(1)),
		},
		{
			runtime.Map([]*runtime.Object{runtime.Keyword("a"), runtime.Int(1), runtime.Keyword("b"), runtime.Int(2)}),
			runtime.Map([]*runtime.Object{runtime.Keyword("b"), runtime.Int(2), runtime.Keyword("a"), runtime.Int(1)}),
		},
		{
			runtime.Set([]*runtime.Object{runtime.Int(1), runtime.Int(2)}),
			runtime.Set([]*runtime.Object{runtime.Int(2), runtime.Int(1)}),
		},
	}
	for _, p := range pairs {
		assert.True(t, runtime.Equal(p[0], p[1]), "%s = %s", p[0], p[1])
		assert.Equal(t, runtime.Hash(p[0]), runtime.Hash(p[1]), "hash(%s) = hash(%s)", p[0], p[1])
	}
}

func TestHashDiscriminates(t *testing.T) {
	// Not a guarantee, but these must not collide for the cycle detector to
	// be useful.
	distinct := []*runtime.Object{
		runtime.Int(1),
		runtime.Int(2),
		runtime.String("1"),
		runtime.Symbol("x"),
		runtime.Keyword("x"),
		list(runtime.Int(1)),
		vec(runtime.Int(1)),
	}
	seen := make(map[uint64]*runtime.Object)
	for _, o := range distinct {
		h := runtime.Hash(o)
		if prev, ok := seen[h]; ok {
			t.Errorf("hash collision between %s and %s", prev, o)
		}
		seen[h] = o
	}
}

func TestHashIgnoresSource(t *testing.T) {
	a := runtime.Int(7)
	b := runtime.Int(7).WithSource(nil)
	assert.Equal(t, runtime.Hash(a), runtime.Hash(b))
}
