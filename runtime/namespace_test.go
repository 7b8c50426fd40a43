// Copyright © 2025 The cinder authors

package runtime_test

import (
	"testing"

	"github.com/cinderlang/cinder/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternIdentity(t *testing.T) {
	reg := runtime.NewRegistry()
	ns := reg.FindOrCreate("app")
	v1 := ns.Intern("f")
	v1.SetRoot(runtime.Int(1))
	v2 := ns.Intern("f")
	assert.Same(t, v1, v2, "interning is idempotent")
	assert.Equal(t, "app/f", v1.QualifiedName())
}

func TestVarRevision(t *testing.T) {
	reg := runtime.NewRegistry()
	v := reg.FindOrCreate("app").Intern("f")
	assert.Equal(t, uint64(0), v.Rev())
	assert.False(t, v.IsBound())

	v.SetRoot(runtime.Int(1))
	assert.Equal(t, uint64(1), v.Rev())
	assert.True(t, v.IsBound())

	// Rebinding to an equal root still advances the revision; invalidation
	// keys off the write, not the value.
	v.SetRoot(runtime.Int(1))
	assert.Equal(t, uint64(2), v.Rev())
}

func TestResolveVarOrder(t *testing.T) {
	reg := runtime.NewRegistry()
	app := reg.FindOrCreate("app")
	util := reg.FindOrCreate("app.util")
	require.NoError(t, app.Alias("u", util))
	util.Intern("f").SetRoot(runtime.Int(1))

	// Alias resolution takes priority over direct namespace names.
	shadow := reg.FindOrCreate("u")
	shadow.Intern("f").SetRoot(runtime.Int(2))

	v, ok := reg.ResolveVar(runtime.Symbol("u/f"), app)
	require.True(t, ok)
	assert.Equal(t, "app.util/f", v.QualifiedName())

	v, ok = reg.ResolveVar(runtime.Symbol("app.util/f"), app)
	require.True(t, ok)
	assert.Equal(t, "app.util/f", v.QualifiedName())

	_, ok = reg.ResolveVar(runtime.Symbol("missing.ns/f"), app)
	assert.False(t, ok)
}

func TestResolveVarUnqualified(t *testing.T) {
	reg := runtime.NewRegistry()
	user, ok := reg.Find(runtime.DefaultUserNS)
	require.True(t, ok)

	reg.Core().Intern("f").SetRoot(runtime.Int(1))
	v, ok := reg.ResolveVar(runtime.Symbol("f"), user)
	require.True(t, ok)
	assert.Equal(t, runtime.DefaultLangNS, v.Namespace().Name(), "unqualified falls back to core")

	// A same-named var in the current namespace wins.
	user.Intern("f").SetRoot(runtime.Int(2))
	v, ok = reg.ResolveVar(runtime.Symbol("f"), user)
	require.True(t, ok)
	assert.Equal(t, runtime.DefaultUserNS, v.Namespace().Name())
}

func TestAliasConflicts(t *testing.T) {
	reg := runtime.NewRegistry()
	app := reg.FindOrCreate("app")
	util := reg.FindOrCreate("app.util")
	other := reg.FindOrCreate("app.other")

	require.NoError(t, app.Alias("u", util))
	require.NoError(t, app.Alias("u", util), "re-aliasing to the same target is ok")
	err := app.Alias("u", other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alias")
}

func TestReloadGeneration(t *testing.T) {
	reg := runtime.NewRegistry()
	ns := reg.FindOrCreate("app")
	v := ns.Intern("f")
	v.SetRoot(runtime.Int(1))

	gen := ns.Generation()
	ns.Reload()
	assert.Equal(t, gen+1, ns.Generation())

	// Reload preserves var identity so that existing references keep
	// seeing new roots.
	assert.Same(t, v, ns.Intern("f"))
}

func TestDefaultNamespaces(t *testing.T) {
	reg := runtime.NewRegistry()
	user, ok := reg.Find(runtime.DefaultUserNS)
	require.True(t, ok)
	core, ok := user.LookupAlias("core")
	require.True(t, ok)
	assert.Equal(t, runtime.DefaultLangNS, core.Name())
}
