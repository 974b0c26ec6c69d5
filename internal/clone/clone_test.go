package clone_test

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilclone/internal/clone"
	"ilclone/internal/il"
	"ilclone/internal/il/ilasm"
	"ilclone/internal/vm"
)

type fixture struct {
	lib, mixins, app *il.Module
}

func load(t *testing.T) fixture {
	t.Helper()

	read := func(name string) *il.Module {
		m, err := ilasm.LoadFile(filepath.Join("testdata", name+".yaml"))
		require.NoError(t, err)

		return m
	}

	return fixture{lib: read("lib"), mixins: read("mixins"), app: read("app")}
}

func (f fixture) source(t *testing.T, name string) *il.TypeDef {
	t.Helper()

	src := f.mixins.Type("Mixins." + name)
	require.NotNil(t, src, name)

	return src
}

func (f fixture) machine() *vm.VM {
	return vm.New(f.lib, f.mixins, f.app)
}

func run(t *testing.T, source *il.TypeDef, targets ...clone.Target) *clone.Context {
	t.Helper()

	ctx, err := clone.New(source, targets...)
	require.NoError(t, err)
	require.NoError(t, ctx.Execute())

	return ctx
}

// assertIsomorphic compares the shape of two type trees member by member.
func assertIsomorphic(t *testing.T, want, got *il.TypeDef) {
	t.Helper()

	require.NotNil(t, got, want.FullName())
	assert.Len(t, got.Fields, len(want.Fields), want.FullName())
	assert.Len(t, got.Methods, len(want.Methods), want.FullName())
	assert.Len(t, got.GenericParameters, len(want.GenericParameters), want.FullName())
	assert.Len(t, got.Interfaces, len(want.Interfaces), want.FullName())
	assert.Equal(t, want.Attributes, got.Attributes)

	for _, f := range want.Fields {
		copied := got.Field(f.Name)
		if assert.NotNil(t, copied, f.FullName()) {
			assert.Equal(t, f.Attributes, copied.Attributes)
			assert.Equal(t, il.TypeKey(f.FieldType), il.TypeKey(copied.FieldType))
		}
	}

	for _, m := range want.Methods {
		copied := got.Method(m.Name)
		if !assert.NotNil(t, copied, m.FullName()) {
			continue
		}

		assert.Equal(t, m.Attributes, copied.Attributes)
		assert.Len(t, copied.Parameters, len(m.Parameters), m.FullName())

		if m.Body == nil {
			assert.Nil(t, copied.Body)
			continue
		}

		require.NotNil(t, copied.Body, m.FullName())
		assert.Equal(t, opcodes(m.Body), opcodes(copied.Body), m.FullName())
		assert.Len(t, copied.Body.Variables, len(m.Body.Variables), m.FullName())
		assert.Len(t, copied.Body.ExceptionHandlers, len(m.Body.ExceptionHandlers), m.FullName())
	}

	for _, n := range want.NestedTypes {
		assertIsomorphic(t, n, got.NestedType(n.Name))
	}
}

func opcodes(body *il.MethodBody) []string {
	out := make([]string, len(body.Instructions))
	for i, ins := range body.Instructions {
		out[i] = ins.OpCode.Name
	}

	return out
}

// foreignOperands lists the member operands of t's bodies that are
// definitions of a module other than m.
func foreignOperands(t *il.TypeDef, m *il.Module) []string {
	var out []string

	for _, method := range t.Methods {
		if method.Body == nil {
			continue
		}

		for _, ins := range method.Body.Instructions {
			var owner *il.TypeDef

			switch o := ins.Operand.(type) {
			case *il.TypeDef:
				owner = o
			case *il.MethodDef:
				owner = o.DeclaringType
			case *il.FieldDef:
				owner = o.DeclaringType
			}

			if owner != nil && owner.Module != m {
				out = append(out, method.Name+": "+ins.String())
			}
		}
	}

	for _, n := range t.NestedTypes {
		out = append(out, foreignOperands(n, m)...)
	}

	return out
}

func TestCloneIntoFreshType(t *testing.T) {
	f := load(t)
	src := f.source(t, "Calculator")

	ctx := run(t, src, clone.IntoModule(f.app, "App", "Calculator"))

	target := f.app.Type("App.Calculator")
	require.NotNil(t, target)
	assert.Equal(t, []*il.TypeDef{target}, ctx.Targets())
	assert.Same(t, f.app, target.Module)

	assertIsomorphic(t, src, target)
	assert.Empty(t, foreignOperands(target, f.app))
}

func TestSelfReferencesPointAtTarget(t *testing.T) {
	f := load(t)
	run(t, f.source(t, "Calculator"), clone.IntoModule(f.app, "App", "Calculator"))

	target := f.app.Type("App.Calculator")
	double := target.Method("Double")
	require.NotNil(t, double)

	quad := target.Method("Quad").Body.Instructions
	assert.Same(t, double, quad[3].Operand)
	assert.Same(t, double, quad[4].Operand)
	assert.Same(t, target.Field("factor"), double.Body.Instructions[2].Operand)

	machine := f.machine()

	calc, err := machine.New(target)
	require.NoError(t, err)

	v, err := machine.Call(target.Method("Quad"), calc, int32(3))
	require.NoError(t, err)
	assert.Equal(t, int32(12), v)

	v, err = machine.Call(target.Method("Safe"), calc, int32(4))
	require.NoError(t, err)
	assert.Equal(t, int32(25), v)

	v, err = machine.Call(target.Method("Safe"), calc, int32(0))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)
}

func TestExternalReferencesAreImported(t *testing.T) {
	f := load(t)
	src := f.source(t, "Calculator")
	run(t, src, clone.IntoModule(f.app, "App", "Calculator"))

	body := f.app.Type("App.Calculator").Method("Log").Body

	ref, ok := body.Instructions[1].Operand.(*il.MethodReference)
	require.True(t, ok, spew.Sdump(body.Instructions[1].Operand))
	assert.NotSame(t, src.Method("Log").Body.Instructions[1].Operand, ref)
	assert.Equal(t, "Lib.Log", ref.DeclaringType.FullName())
	assert.Equal(t, "Lib", ref.DeclaringType.Scope())

	machine := f.machine()

	_, err := machine.Call(f.app.Type("App.Calculator").Method("Log"), "hi")
	require.NoError(t, err)

	v, err := machine.Static(f.lib.Type("Lib.Log").Field("Text"))
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
}

func TestUnreachableScopeIsBrokenReference(t *testing.T) {
	f := load(t)
	isolated := il.NewModule("Isolated")

	ctx, err := clone.New(f.source(t, "Calculator"), clone.IntoModule(isolated, "Isolated", "Calculator"))
	require.NoError(t, err)

	err = ctx.Execute()
	require.ErrorIs(t, err, clone.ErrBrokenReference)

	var scope *il.ScopeError
	require.True(t, errors.As(err, &scope), err.Error())
	assert.Equal(t, "Lib", scope.Scope)
	assert.Equal(t, "Isolated", scope.Module)

	var broken *clone.Error
	require.True(t, errors.As(err, &broken))
	assert.Contains(t, broken.Element, "Lib.Log")
}

func TestMergeConstructorOrder(t *testing.T) {
	f := load(t)
	widget := f.app.Type("App.Widget")

	run(t, f.source(t, "Tracer"), clone.IntoType(widget))

	assert.Len(t, widget.Constructors(), 1)
	require.NotNil(t, widget.Field("seeded"))

	logic := widget.Method("ctor_Tracer_1")
	require.NotNil(t, logic)
	assert.False(t, logic.IsStatic())
	assert.Equal(t, il.MethodPrivate, logic.Attributes&il.MethodAccessMask)

	machine := f.machine()

	obj, err := machine.New(widget)
	require.NoError(t, err)
	assert.Equal(t, int32(488), obj.Fields["seeded"])

	v, err := machine.Static(f.lib.Type("Lib.Log").Field("Text"))
	require.NoError(t, err)
	assert.Equal(t, "S-init;E-init;E-logic;S-logic;", v)
}

func TestMergeTwiceWithDisjointNames(t *testing.T) {
	f := load(t)
	widget := f.app.Type("App.Widget")

	for _, name := range []string{"seededA", "seededB"} {
		ctx, err := clone.New(f.source(t, "Tracer"), clone.IntoType(widget))
		require.NoError(t, err)

		ctx.Weave(clone.Named("seeded"), clone.Rename(name))
		require.NoError(t, ctx.Execute())
	}

	assert.Len(t, widget.Constructors(), 1)
	assert.NotNil(t, widget.Method("ctor_Tracer_1"))
	assert.NotNil(t, widget.Method("ctor_Tracer_2"))
	assert.Nil(t, widget.Field("seeded"))

	machine := f.machine()

	obj, err := machine.New(widget)
	require.NoError(t, err)
	assert.Equal(t, int32(488), obj.Fields["seededA"])
	assert.Equal(t, int32(488), obj.Fields["seededB"])

	v, err := machine.Static(f.lib.Type("Lib.Log").Field("Text"))
	require.NoError(t, err)
	assert.Equal(t, "S-init;S-init;E-init;E-logic;S-logic;S-logic;", v)
}

func TestMergeCarriesSharedVariables(t *testing.T) {
	f := load(t)
	widget := f.app.Type("App.Widget")

	run(t, f.source(t, "Sharing"), clone.IntoType(widget))

	logic := widget.Method("ctor_Sharing_1")
	require.NotNil(t, logic)
	require.Len(t, logic.Parameters, 1)
	assert.Equal(t, "System.String", logic.Parameters[0].ParameterType.FullName())

	machine := f.machine()

	_, err := machine.New(widget)
	require.NoError(t, err)

	v, err := machine.Static(f.lib.Type("Lib.Log").Field("Text"))
	require.NoError(t, err)
	assert.Equal(t, "v;E-init;E-logic;v;", v)
}

func TestMergeIntoConstructorWithSeveralExits(t *testing.T) {
	f := load(t)
	gate := f.app.Type("App.Gate")

	run(t, f.source(t, "Tracer"), clone.IntoType(gate))

	logic := gate.Method("ctor_Tracer_1")
	require.NotNil(t, logic)

	body := gate.Constructors()[0].Body
	calls := 0

	for _, ins := range body.Instructions {
		if ins.Operand == logic {
			calls++
		}
	}

	assert.Equal(t, 2, calls)

	// The branch to the first exit now runs the logic call first.
	i := slices.IndexFunc(body.Instructions, func(ins *il.Instruction) bool { return ins.OpCode == il.OpBrtrue })
	require.GreaterOrEqual(t, i, 0)

	target, ok := body.Instructions[i].Operand.(*il.Instruction)
	require.True(t, ok)
	assert.Equal(t, il.OpLdarg, target.OpCode)

	machine := f.machine()

	_, err := machine.New(gate)
	require.NoError(t, err)

	v, err := machine.Static(f.lib.Type("Lib.Log").Field("Text"))
	require.NoError(t, err)
	assert.Equal(t, "S-init;early;S-logic;", v)
}

func TestWeavesLeaveReusedTargetsAlone(t *testing.T) {
	f := load(t)
	widget := f.app.Type("App.Widget")

	ctx, err := clone.New(f.source(t, "Tracer"), clone.IntoType(widget))
	require.NoError(t, err)

	ctx.Weave(clone.And(clone.OfKind(il.KindMethod), clone.Named(".ctor")), clone.Rename("Init"))
	ctx.Weave(clone.Named("Mixins.Tracer"), clone.Rename("Renamed"))
	require.NoError(t, ctx.Execute())

	assert.Equal(t, "App.Widget", widget.FullName())
	assert.Len(t, widget.Constructors(), 1)
	assert.Nil(t, widget.Method("Init"))
	assert.NotNil(t, widget.Method("ctor_Tracer_1"))

	_, err = f.machine().New(widget)
	require.NoError(t, err)
}

func TestConstructorReferenceNeedsMatchingArity(t *testing.T) {
	f := load(t)

	ctx, err := clone.New(f.source(t, "Factory"), clone.IntoType(f.app.Type("App.IntOnly")))
	require.NoError(t, err)
	require.ErrorIs(t, ctx.Execute(), clone.ErrBrokenReference)

	f = load(t)
	widget := f.app.Type("App.Widget")

	run(t, f.source(t, "Factory"), clone.IntoType(widget))

	factory := widget.Method("Make")
	require.NotNil(t, factory)
	assert.Same(t, widget.Constructors()[0], factory.Body.Instructions[0].Operand)

	v, err := f.machine().Call(factory)
	require.NoError(t, err)

	obj, ok := v.(*vm.Object)
	require.True(t, ok, spew.Sdump(v))
	assert.Equal(t, "App.Widget", obj.Type.FullName())
}

func TestMergeInterfaceOnlyMixin(t *testing.T) {
	f := load(t)
	plain := f.app.Type("App.Plain")

	run(t, f.source(t, "Marker"), clone.IntoType(plain))

	assert.True(t, plain.Implements("Lib.IMarker"))
	assert.Len(t, plain.Methods, 1)
	assert.Empty(t, plain.Fields)

	// A second merge does not list the interface twice.
	run(t, f.source(t, "Marker"), clone.IntoType(plain))
	assert.Len(t, plain.Interfaces, 1)
}

func TestStaticInitializer(t *testing.T) {
	f := load(t)
	src := f.source(t, "Seeded")

	run(t, src, clone.IntoModule(f.app, "App", "Seeded"))
	run(t, src, clone.IntoType(f.app.Type("App.Host")))
	run(t, src, clone.IntoType(f.app.Type("App.Settings")))

	machine := f.machine()

	for _, name := range []string{"App.Seeded", "App.Host", "App.Settings"} {
		target := f.app.Type(name)
		require.NotNil(t, target.StaticConstructor(), name)

		v, err := machine.Static(target.Field("Seed"))
		require.NoError(t, err, name)
		assert.Equal(t, int32(488), v, name)
	}

	settings := f.app.Type("App.Settings")
	assert.Equal(t, []string{"ldc.i4", "stsfld", "ldc.i4", "stsfld", "ret"},
		opcodes(settings.StaticConstructor().Body))

	v, err := machine.Static(settings.Field("Mode"))
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
}

func TestNestedGenericType(t *testing.T) {
	f := load(t)
	src := f.source(t, "Holder")

	run(t, src, clone.IntoModule(f.app, "App", "Holder"))

	pair := f.app.Type("App.Holder/Pair`2")
	require.NotNil(t, pair)
	require.Len(t, pair.GenericParameters, 2)
	assert.Same(t, pair.GenericParameters[0], pair.Field("a").FieldType)
	assertIsomorphic(t, src, f.app.Type("App.Holder"))

	machine := f.machine()
	closed := &il.GenericInstanceType{ElementType: pair, Arguments: []il.TypeRef{il.Int32, il.String}}

	obj, err := machine.New(closed, int32(42), "x")
	require.NoError(t, err)

	v, err := machine.Call(pair.Method("Get"), obj)
	require.NoError(t, err)

	tuple, ok := v.(*vm.Object)
	require.True(t, ok, spew.Sdump(v))
	assert.Equal(t, "System.ValueTuple`2<System.Int32,System.String>", tuple.Type.FullName())
	assert.Equal(t, int32(42), tuple.Fields["Item1"])
	assert.Equal(t, "x", tuple.Fields["Item2"])
}

func TestClosedInstanceOfClonedGenericType(t *testing.T) {
	f := load(t)

	run(t, f.source(t, "Holder"), clone.IntoModule(f.app, "App", "Holder"))

	pair := f.app.Type("App.Holder/Pair`2")
	require.NotNil(t, pair)

	factory := f.app.Type("App.Holder").Method("Make")
	require.NotNil(t, factory)

	ref, ok := factory.Body.Instructions[2].Operand.(*il.MethodReference)
	require.True(t, ok, spew.Sdump(factory.Body.Instructions[2].Operand))

	decl, ok := ref.DeclaringType.(*il.GenericInstanceType)
	require.True(t, ok)
	assert.Same(t, pair, decl.ElementType)
	assert.Equal(t, "App.Holder/Pair`2<System.Int32,System.String>", decl.FullName())
	assert.Equal(t, "App.Holder/Pair`2<System.Int32,System.String>", factory.ReturnType.FullName())

	v, err := f.machine().Call(factory)
	require.NoError(t, err)

	obj, ok := v.(*vm.Object)
	require.True(t, ok, spew.Sdump(v))
	assert.Equal(t, int32(42), obj.Fields["a"])
	assert.Equal(t, "x", obj.Fields["b"])
}

func TestSeveralTargets(t *testing.T) {
	f := load(t)
	src := f.source(t, "Calculator")

	ctx := run(t, src,
		clone.IntoModule(f.app, "App", "CalcA"),
		clone.IntoModule(f.app, "App", "CalcB"))

	targets := ctx.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, "App.CalcA", targets[0].FullName())
	assert.Equal(t, "App.CalcB", targets[1].FullName())

	doubles := ctx.TargetsOf(src.Method("Double"))
	require.Len(t, doubles, 2)

	for i, target := range targets {
		assert.Same(t, doubles[i], target.Method("Double"))
		assert.Same(t, target.Method("Double"), target.Method("Quad").Body.Instructions[3].Operand)
	}

	assert.Nil(t, ctx.TargetsOf(f.source(t, "Tracer")))
}

func TestWeaves(t *testing.T) {
	f := load(t)
	src := f.source(t, "Calculator")

	ctx, err := clone.New(src, clone.IntoModule(f.app, "App", "Calculator"))
	require.NoError(t, err)

	ctx.Weave(clone.Is(src.Method("Double")), clone.Rename("Twice"))
	ctx.Weave(clone.And(clone.OfKind(il.KindMethod), clone.Named("Double")), clone.Rename("Unused"))
	require.NoError(t, ctx.Execute())

	target := f.app.Type("App.Calculator")
	assert.Nil(t, target.Method("Double"))
	assert.Nil(t, target.Method("Unused"))
	require.NotNil(t, target.Method("Twice"))
	assert.Same(t, target.Method("Twice"), target.Method("Quad").Body.Instructions[3].Operand)

	holder := f.source(t, "Holder")

	ctx, err = clone.New(holder, clone.IntoModule(f.app, "App", "Holder"))
	require.NoError(t, err)

	ctx.Weave(clone.Named("Mixins.Holder/Pair`2"), clone.Rename("Couple`2"))
	require.NoError(t, ctx.Execute())
	assert.NotNil(t, f.app.Type("App.Holder/Couple`2"))
}

func TestWeaveFailure(t *testing.T) {
	f := load(t)

	ctx, err := clone.New(f.source(t, "Calculator"), clone.IntoModule(f.app, "App", "Calculator"))
	require.NoError(t, err)

	ctx.Weave(clone.OfKind(il.KindInstruction), clone.Rename("x"))
	require.ErrorIs(t, ctx.Execute(), clone.ErrInvalidOperation)
}

func TestRejectedSources(t *testing.T) {
	cases := []struct {
		source string
		kind   error
		code   string
	}{
		{"Shape", clone.ErrUnsupported, clone.CodeAbstract},
		{"Gen`1", clone.ErrUnsupported, clone.CodeOpenGeneric},
		{"WithArgs", clone.ErrInvalidOperation, clone.CodeParameterizedCtor},
		{"Guarded", clone.ErrUnsupported, clone.CodeSecurity},
	}

	for _, tc := range cases {
		t.Run(tc.source, func(t *testing.T) {
			f := load(t)
			src := f.source(t, tc.source)

			d := clone.Check(src)
			assert.True(t, d.HasCode(tc.code), spew.Sdump(d))

			_, err := clone.New(src, clone.IntoModule(f.app, "App", "X"))
			require.ErrorIs(t, err, tc.kind)
			assert.Contains(t, err.Error(), "["+tc.code+"]")
			assert.Nil(t, f.app.Type("App.X"))
		})
	}
}

func TestCheckAcceptsPlainTypes(t *testing.T) {
	f := load(t)

	for _, name := range []string{"Calculator", "Tracer", "Seeded", "Holder", "Marker"} {
		d := clone.Check(f.source(t, name))
		assert.True(t, d.IsValid(), spew.Sdump(d))
	}
}

func TestInvalidRequests(t *testing.T) {
	f := load(t)
	src := f.source(t, "Calculator")

	cases := map[string]func() error{
		"no source": func() error {
			_, err := clone.New(nil, clone.IntoModule(f.app, "App", "X"))
			return err
		},
		"no target": func() error {
			_, err := clone.New(src)
			return err
		},
		"fresh target without name": func() error {
			_, err := clone.New(src, clone.IntoModule(f.app, "App", ""))
			return err
		},
		"target inside source": func() error {
			_, err := clone.New(src, clone.IntoType(src))
			return err
		},
		"targets in two modules": func() error {
			_, err := clone.New(src, clone.IntoModule(f.app, "App", "X"), clone.IntoModule(f.lib, "Lib", "X"))
			return err
		},
		"second execution": func() error {
			ctx, err := clone.New(src, clone.IntoModule(f.app, "App", "X"))
			require.NoError(t, err)
			require.NoError(t, ctx.Execute())

			return ctx.Execute()
		},
	}

	names := make([]string, 0, len(cases))
	for name := range cases {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		assert.ErrorIs(t, cases[name](), clone.ErrInvalidOperation, name)
	}
}

func TestDebugScopesAreUnsupported(t *testing.T) {
	f := load(t)

	ctx, err := clone.New(f.source(t, "Scoped"), clone.IntoModule(f.app, "App", "Scoped"))
	require.NoError(t, err)
	require.ErrorIs(t, ctx.Execute(), clone.ErrUnsupported)
}

func TestMergeNeedsBoundary(t *testing.T) {
	f := load(t)

	ctx, err := clone.New(f.source(t, "NoBase"), clone.IntoType(f.app.Type("App.Widget")))
	require.NoError(t, err)

	err = ctx.Execute()
	require.ErrorIs(t, err, clone.ErrMissingBoundary)

	var e *clone.Error
	require.True(t, errors.As(err, &e))
	assert.Contains(t, e.Element, "Mixins.NoBase::.ctor")
}

func TestTargetsBeforeExecute(t *testing.T) {
	f := load(t)

	ctx, err := clone.New(f.source(t, "Calculator"), clone.IntoModule(f.app, "App", "Calculator"))
	require.NoError(t, err)
	assert.Nil(t, ctx.Targets())
	assert.Nil(t, ctx.TargetsOf(f.source(t, "Calculator")))
}
