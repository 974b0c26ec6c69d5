package vm_test

import (
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilclone/internal/il"
	"ilclone/internal/il/ilasm"
	"ilclone/internal/vm"
)

const program = `
module: Demo
types:
  - name: Demo.Math
    flags: [public, abstract, sealed]
    base: object
    methods:
      - name: Sum
        flags: [public, static]
        returns: int32
        parameters: [{name: n, type: int32}]
        locals: [int32, int32]
        body:
          - ldc.i4 0
          - stloc V_0
          - ldc.i4 1
          - stloc V_1
          - "loop: ldloc V_1"
          - ldarg n
          - bgt done
          - ldloc V_0
          - ldloc V_1
          - add
          - stloc V_0
          - ldloc V_1
          - ldc.i4 1
          - add
          - stloc V_1
          - br loop
          - "done: ldloc V_0"
          - ret
      - name: Greet
        flags: [public, static]
        returns: string
        parameters: [{name: who, type: string}]
        body:
          - ldstr "hello "
          - ldarg who
          - call string System.String::Concat(string, string)
          - ret
      - name: Spin
        flags: [public, static]
        body:
          - "spin: br spin"
  - name: Demo.Config
    flags: public
    base: object
    fields:
      - {name: Answer, type: int32, flags: [public, static]}
    methods:
      - name: .cctor
        flags: [private, static, specialname, rtspecialname]
        body:
          - ldc.i4 488
          - stsfld int32 Demo.Config::Answer
          - ret
  - name: Demo.Base
    flags: public
    base: object
    methods:
      - name: .ctor
        flags: [public, specialname, rtspecialname]
        body:
          - ldarg this
          - call instance void object::.ctor()
          - ret
      - name: Describe
        flags: [public, virtual, hidebysig, newslot]
        returns: string
        body:
          - ldstr "base"
          - ret
      - name: Show
        flags: [public, static]
        returns: string
        parameters: [{name: b, type: Demo.Base}]
        body:
          - ldarg b
          - callvirt instance string Demo.Base::Describe()
          - ret
  - name: Demo.Derived
    flags: public
    base: Demo.Base
    methods:
      - name: .ctor
        flags: [public, specialname, rtspecialname]
        body:
          - ldarg this
          - call instance void Demo.Base::.ctor()
          - ret
      - name: Describe
        flags: [public, virtual, hidebysig]
        returns: string
        body:
          - ldstr "derived"
          - ret
  - name: Demo.Box` + "`" + `1
    flags: public
    base: object
    generic: [T]
    fields:
      - {name: value, type: "!0"}
    methods:
      - name: .ctor
        flags: [public, specialname, rtspecialname]
        parameters: [{name: v, type: "!0"}]
        body:
          - ldarg this
          - call instance void object::.ctor()
          - ldarg this
          - ldarg v
          - stfld !0 Demo.Box` + "`" + `1<!0>::value
          - ret
      - name: Get
        flags: public
        returns: "!0"
        body:
          - ldarg this
          - ldfld !0 Demo.Box` + "`" + `1<!0>::value
          - ret
      - name: Pair
        flags: public
        returns: System.ValueTuple` + "`" + `2<!0, string>
        body:
          - ldarg this
          - ldfld !0 Demo.Box` + "`" + `1<!0>::value
          - ldstr "x"
          - newobj instance void System.ValueTuple` + "`" + `2<!0, string>::.ctor(!0, !1)
          - ret
  - name: Demo.Use
    flags: public
    base: object
    methods:
      - name: Make
        flags: [public, static]
        returns: int32
        body:
          - ldc.i4 7
          - newobj instance void Demo.Box` + "`" + `1<int32>::.ctor(!0)
          - callvirt instance !0 Demo.Box` + "`" + `1<int32>::Get()
          - ret
      - name: Tuple
        flags: [public, static]
        returns: System.ValueTuple` + "`" + `2<int32, string>
        body:
          - ldc.i4 42
          - newobj instance void Demo.Box` + "`" + `1<int32>::.ctor(!0)
          - call instance System.ValueTuple` + "`" + `2<!0, string> Demo.Box` + "`" + `1<int32>::Pair()
          - ret
  - name: Demo.Guard
    flags: public
    base: object
    methods:
      - name: Run
        flags: [public, static]
        returns: int32
        parameters: [{name: n, type: int32}]
        locals: [int32]
        body:
          - "start: ldarg n"
          - brtrue ok
          - ldstr "zero"
          - newobj instance void System.Exception::.ctor(string)
          - throw
          - "ok: ldc.i4 1"
          - stloc V_0
          - leave done
          - "handler: pop"
          - ldc.i4 -1
          - stloc V_0
          - leave done
          - "done: ldloc V_0"
          - ret
        handlers:
          - {kind: catch, try: start, try-end: handler, handler: handler, handler-end: done, catch: System.Exception}
      - name: Fail
        flags: [public, static]
        body:
          - ldstr "boom"
          - newobj instance void System.Exception::.ctor(string)
          - throw
`

func load(t *testing.T) (*il.Module, *vm.VM) {
	t.Helper()

	m, err := ilasm.Decode([]byte(program))
	require.NoError(t, err)

	return m, vm.New(m)
}

func TestLoopAndArithmetic(t *testing.T) {
	m, machine := load(t)

	v, err := machine.Call(m.Type("Demo.Math").Method("Sum"), int32(10))
	require.NoError(t, err)
	assert.Equal(t, int32(55), v)

	v, err = machine.Call(m.Type("Demo.Math").Method("Greet"), "world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", v)
}

func TestStaticInitializer(t *testing.T) {
	m, machine := load(t)

	v, err := machine.Static(m.Type("Demo.Config").Field("Answer"))
	require.NoError(t, err)
	assert.Equal(t, int32(488), v)
}

func TestVirtualDispatch(t *testing.T) {
	m, machine := load(t)

	derived, err := machine.New(m.Type("Demo.Derived"))
	require.NoError(t, err)

	v, err := machine.Call(m.Type("Demo.Base").Method("Show"), derived)
	require.NoError(t, err)
	assert.Equal(t, "derived", v)

	base, err := machine.New(m.Type("Demo.Base"))
	require.NoError(t, err)

	v, err = machine.Call(m.Type("Demo.Base").Method("Show"), base)
	require.NoError(t, err)
	assert.Equal(t, "base", v)
}

func TestGenericInstances(t *testing.T) {
	m, machine := load(t)

	v, err := machine.Call(m.Type("Demo.Use").Method("Make"))
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)

	v, err = machine.Call(m.Type("Demo.Use").Method("Tuple"))
	require.NoError(t, err)

	tuple, ok := v.(*vm.Object)
	require.True(t, ok, spew.Sdump(v))
	assert.Equal(t, "System.ValueTuple`2<System.Int32,System.String>", tuple.Type.FullName())
	assert.Equal(t, int32(42), tuple.Fields["Item1"])
	assert.Equal(t, "x", tuple.Fields["Item2"])
}

func TestExceptions(t *testing.T) {
	m, machine := load(t)
	run := m.Type("Demo.Guard").Method("Run")

	v, err := machine.Call(run, int32(0))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)

	v, err = machine.Call(run, int32(3))
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	_, err = machine.Call(m.Type("Demo.Guard").Method("Fail"))

	var exc *vm.Exception
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, "unhandled System.Exception: boom", exc.Error())
}

func TestStepLimit(t *testing.T) {
	m, machine := load(t)
	machine.MaxSteps = 100

	_, err := machine.Call(m.Type("Demo.Math").Method("Spin"))
	require.ErrorIs(t, err, vm.ErrStepLimit)
}

func TestArgumentCount(t *testing.T) {
	m, machine := load(t)

	_, err := machine.Call(m.Type("Demo.Math").Method("Sum"))
	require.ErrorIs(t, err, vm.ErrInvalidProgram)
}
