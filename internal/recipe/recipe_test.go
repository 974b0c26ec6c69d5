package recipe_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilclone/internal/il"
	"ilclone/internal/il/ilasm"
	"ilclone/internal/recipe"
	"ilclone/internal/vm"
)

func resolver(t *testing.T) *ilasm.Resolver {
	t.Helper()

	r, err := ilasm.NewResolver([]string{"testdata"}, 0)
	require.NoError(t, err)

	return r
}

func machine(t *testing.T, r *ilasm.Resolver) *vm.VM {
	t.Helper()

	var modules []*il.Module

	for _, name := range []string{"Lib", "Mixins", "App"} {
		m, err := r.Resolve(name)
		require.NoError(t, err)

		modules = append(modules, m)
	}

	return vm.New(modules...)
}

func TestLoadYAML(t *testing.T) {
	r, err := recipe.Load(filepath.Join("testdata", "recipes", "counter.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "1", r.Version)
	assert.Equal(t, "App.yaml", r.Output)
	require.Len(t, r.Targets, 2)
	assert.Equal(t, recipe.Target{Module: "App", Namespace: "App", Name: "Counter"}, r.Targets[0])
	assert.Equal(t, recipe.Target{Module: "App", Namespace: "App", Name: "Tally"}, r.Targets[1])
	assert.Nil(t, r.Wrap)

	d := recipe.Validate(r)
	assert.True(t, d.IsValid())
}

func TestLoadTOML(t *testing.T) {
	r, err := recipe.Load(filepath.Join("testdata", "recipes", "wrap.toml"))
	require.NoError(t, err)

	assert.Equal(t, recipe.Source{Module: "Mixins", Type: "Mixins.Logged"}, r.Source)
	require.NotNil(t, r.Wrap)
	assert.Equal(t, recipe.Wrap{Method: "Compute", Wrapper: "Around", Placeholder: recipe.DefaultPlaceholder}, *r.Wrap)
	assert.True(t, r.Targets[0].Merging())
}

func TestMarshalNormalizedRecipe(t *testing.T) {
	r, err := recipe.Load(filepath.Join("testdata", "recipes", "wrap.toml"))
	require.NoError(t, err)

	data, err := recipe.Marshal(r)
	require.NoError(t, err)

	again, err := recipe.Parse(data, recipe.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, r, again)
}

func TestLoadErrors(t *testing.T) {
	_, err := recipe.Load("recipe.json")
	require.ErrorIs(t, err, recipe.ErrFormat)

	_, err = recipe.Load(filepath.Join("testdata", "recipes", "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = recipe.Parse([]byte("[source]\nmodul = \"x\"\n"), recipe.FormatTOML)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.modul")

	_, err = recipe.Parse([]byte("targets: {"), recipe.FormatYAML)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *recipe.Recipe {
		return &recipe.Recipe{
			Version: "1",
			Source:  recipe.Source{Module: "Mixins", Type: "Mixins.Counter"},
			Targets: []recipe.Target{{Module: "App", Namespace: "App", Name: "Counter"}},
		}
	}

	cases := []struct {
		name   string
		modify func(*recipe.Recipe)
		code   string
	}{
		{"version", func(r *recipe.Recipe) { r.Version = "2" }, recipe.CodeUnknownVersion},
		{"source", func(r *recipe.Recipe) { r.Source.Type = "" }, recipe.CodeMissingSource},
		{"no targets", func(r *recipe.Recipe) { r.Targets = nil }, recipe.CodeMissingTarget},
		{"both shapes", func(r *recipe.Recipe) { r.Targets[0].Type = "App.Service" }, recipe.CodeTargetShape},
		{"two modules", func(r *recipe.Recipe) {
			r.Targets = append(r.Targets, recipe.Target{Module: "Other", Name: "X"})
		}, recipe.CodeTargetModules},
		{"weave match", func(r *recipe.Recipe) {
			r.Weaves = []recipe.Weave{{Rename: "x"}}
		}, recipe.CodeWeaveMatch},
		{"weave kind", func(r *recipe.Recipe) {
			r.Weaves = []recipe.Weave{{Match: "x", Kind: "gadget", Rename: "y"}}
		}, recipe.CodeWeaveKind},
		{"weave action", func(r *recipe.Recipe) {
			r.Weaves = []recipe.Weave{{Match: "x"}}
		}, recipe.CodeWeaveAction},
		{"weave access", func(r *recipe.Recipe) {
			r.Weaves = []recipe.Weave{{Match: "x", Access: "internal"}}
		}, recipe.CodeWeaveAccess},
		{"wrap fresh target", func(r *recipe.Recipe) {
			r.Wrap = &recipe.Wrap{Method: "Compute", Wrapper: "Around"}
		}, recipe.CodeWrapTarget},
		{"wrap method", func(r *recipe.Recipe) {
			r.Targets = []recipe.Target{{Module: "App", Type: "App.Service"}}
			r.Wrap = &recipe.Wrap{Wrapper: "Around"}
		}, recipe.CodeWrapMethod},
	}

	d := recipe.Validate(valid())
	require.True(t, d.IsValid())

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := valid()
			tc.modify(r)

			d := recipe.Validate(r)
			assert.True(t, d.HasCode(tc.code), spew.Sdump(d))
		})
	}
}

func TestValidateSuggestions(t *testing.T) {
	r := &recipe.Recipe{
		Version: "1",
		Source:  recipe.Source{Module: "Mixins", Type: "Mixins.Counter"},
		Targets: []recipe.Target{{Module: "App", Namespace: "App", Name: "Counter"}},
		Weaves: []recipe.Weave{
			{Match: "Next", Kind: "methd", Rename: "Step"},
			{Match: "count", Access: "internal"},
		},
	}

	d := recipe.Validate(r)
	require.Len(t, d.Errors, 2, spew.Sdump(d))
	assert.Equal(t, []string{`did you mean "method"?`}, d.Errors[0].Suggestions)
	assert.Equal(t, []string{"use one of assembly, family, private, public"}, d.Errors[1].Suggestions)
}

func TestApplyClone(t *testing.T) {
	r, err := recipe.Load(filepath.Join("testdata", "recipes", "counter.yaml"))
	require.NoError(t, err)

	res := resolver(t)

	result, err := r.Apply(res)
	require.NoError(t, err)
	require.Len(t, result.Types, 2)
	assert.Equal(t, "App", result.Module.Name)
	assert.Nil(t, result.Wrapped)

	m := machine(t, res)

	for _, target := range result.Types {
		assert.Nil(t, target.Method("Next"))
		require.NotNil(t, target.Method("Increment"))
		assert.Equal(t, il.FieldPublic, target.Field("count").Attributes&il.FieldAccessMask)

		obj, err := m.New(target)
		require.NoError(t, err)

		_, err = m.Call(target.Method("Increment"), obj)
		require.NoError(t, err)

		v, err := m.Call(target.Method("Increment"), obj)
		require.NoError(t, err)
		assert.Equal(t, int32(2), v)
	}
}

func TestApplyWrap(t *testing.T) {
	r, err := recipe.Load(filepath.Join("testdata", "recipes", "wrap.toml"))
	require.NoError(t, err)

	res := resolver(t)

	result, err := r.Apply(res)
	require.NoError(t, err)
	require.NotNil(t, result.Wrapped)

	service := result.Types[0]
	assert.Same(t, result.Wrapped, service.Method("Compute"))
	assert.Equal(t, il.MethodPublic, result.Wrapped.Attributes&il.MethodAccessMask)
	assert.Nil(t, service.Method("Original"))
	assert.Nil(t, service.Method("Original_1"))

	inner := service.Method("Compute_inner1")
	require.NotNil(t, inner)
	assert.Equal(t, il.MethodPrivate, inner.Attributes&il.MethodAccessMask)

	m := machine(t, res)

	obj, err := m.New(service)
	require.NoError(t, err)

	v, err := m.Call(service.Method("Compute"), obj, int32(2))
	require.NoError(t, err)
	assert.Equal(t, int32(21), v)

	lib, err := res.Resolve("Lib")
	require.NoError(t, err)

	v, err = m.Static(lib.Type("Lib.Log").Field("Text"))
	require.NoError(t, err)
	assert.Equal(t, "before;", v)
}

func TestApplyMissingTypes(t *testing.T) {
	base := recipe.Recipe{
		Version: "1",
		Source:  recipe.Source{Module: "Mixins", Type: "Mixins.Countr"},
		Targets: []recipe.Target{{Module: "App", Namespace: "App", Name: "X"}},
	}

	_, err := base.Apply(resolver(t))
	require.ErrorIs(t, err, recipe.ErrNotFound)
	assert.Contains(t, err.Error(), "did you mean Mixins.Counter?")

	base.Source.Type = "Mixins.Counter"
	base.Targets = []recipe.Target{{Module: "App", Type: "App.Nope"}}

	_, err = base.Apply(resolver(t))
	require.ErrorIs(t, err, recipe.ErrNotFound)

	base.Targets = []recipe.Target{{Module: "Nowhere", Name: "X"}}

	_, err = base.Apply(resolver(t))
	require.ErrorIs(t, err, ilasm.ErrModuleNotFound)

	base.Targets = nil

	_, err = base.Apply(resolver(t))
	require.ErrorIs(t, err, recipe.ErrInvalid)
}

func TestDecorateSignatureMismatch(t *testing.T) {
	res := resolver(t)

	mixins, err := res.Resolve("Mixins")
	require.NoError(t, err)

	app, err := res.Resolve("App")
	require.NoError(t, err)

	compute := app.Type("App.Service").Method("Compute")

	_, err = recipe.Decorate(recipe.Decoration{
		Target:    compute,
		Decorator: mixins.Type("Mixins.Mismatched"),
		Wrapper:   "Around",
	})
	require.ErrorIs(t, err, recipe.ErrSignature)
	assert.Equal(t, "Compute", compute.Name)

	_, err = recipe.Decorate(recipe.Decoration{
		Target:    compute,
		Decorator: mixins.Type("Mixins.Logged"),
		Wrapper:   "Missing",
	})
	require.ErrorIs(t, err, recipe.ErrNotFound)
}
