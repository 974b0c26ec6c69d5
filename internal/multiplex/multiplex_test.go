package multiplex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilclone/internal/il"
	"ilclone/internal/il/ilasm"
	"ilclone/internal/multiplex"
)

const source = `
module: Demo
types:
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
      - name: .ctor
        flags: [public, specialname, rtspecialname]
        parameters: [{name: n, type: int32}]
        body:
          - ldarg this
          - call instance void object::.ctor()
          - ret
  - name: Demo.Args
    flags: public
    base: Demo.Base
    methods:
      - name: .ctor
        flags: [public, specialname, rtspecialname]
        body:
          - ldc.i4 1
          - pop
          - ldarg this
          - ldc.i4 2
          - ldc.i4 3
          - add
          - call instance void Demo.Base::.ctor(int32)
          - ret
  - name: Demo.A
    flags: public
    base: Demo.Base
    fields:
      - {name: x, type: int32}
      - {name: y, type: int32}
      - {name: z, type: int32}
    methods:
      - name: .ctor
        flags: [public, specialname, rtspecialname]
        locals: [int32, int32, int32]
        body:
          - ldc.i4 5
          - stloc V_0
          - ldc.i4 6
          - stloc V_1
          - ldarg this
          - ldloc V_0
          - stfld int32 Demo.A::x
          - ldarg this
          - call instance void Demo.Base::.ctor()
          - ldarg this
          - ldloc V_0
          - stfld int32 Demo.A::y
          - ldc.i4 7
          - stloc V_2
          - ret
      - name: .ctor
        flags: [public, specialname, rtspecialname]
        parameters: [{name: z, type: int32}]
        body:
          - ldarg this
          - call instance void Demo.A::.ctor()
          - ldarg this
          - ldarg z
          - stfld int32 Demo.A::z
          - ret
  - name: Demo.Plain
    flags: public
    base: object
    methods:
      - name: .ctor
        flags: [public, specialname, rtspecialname]
        body:
          - nop
          - ldarg this
          - call instance void object::.ctor()
          - nop
          - ret
      - name: Broken
        flags: public
        body:
          - ret
`

func decode(t *testing.T) *il.Module {
	t.Helper()

	m, err := ilasm.Decode([]byte(source))
	require.NoError(t, err)

	return m
}

func TestAnalyzeInitializer(t *testing.T) {
	a := decode(t).Type("Demo.A")
	ctor := a.Constructors()[0]
	ins := ctor.Body.Instructions
	vars := ctor.Body.Variables

	c, err := multiplex.Analyze(ctor)
	require.NoError(t, err)

	assert.True(t, c.IsInitializer)
	assert.Equal(t, 7, c.BoundaryStart)
	assert.Equal(t, 8, c.BoundaryIndex)
	assert.Same(t, ins[8], c.Boundary)

	assert.Equal(t, ins[:7], c.InitializationInstructions)
	assert.Equal(t, ins[9:], c.ConstructionInstructions)
	assert.True(t, c.HasInitialization())
	assert.True(t, c.HasConstructionLogic())

	assert.True(t, c.IsInitialization(ins[0]))
	assert.False(t, c.IsInitialization(ins[7]))
	assert.False(t, c.IsConstruction(ins[8]))
	assert.True(t, c.IsConstruction(ins[13]))

	assert.Equal(t, []*il.Variable{vars[0]}, c.SharedVariables)
	assert.Equal(t, []*il.Variable{vars[1]}, c.InitializationVariables)
	assert.Equal(t, []*il.Variable{vars[2]}, c.ConstructionVariables)
	assert.True(t, c.IsShared(vars[0]))
	assert.True(t, c.UsedByInitialization(vars[1]))
	assert.False(t, c.UsedByConstruction(vars[1]))
	assert.True(t, c.UsedByConstruction(vars[2]))
}

func TestBoundaryArgumentsBelongToNoPartition(t *testing.T) {
	ctor := decode(t).Type("Demo.Args").Constructors()[0]
	ins := ctor.Body.Instructions

	c, err := multiplex.Analyze(ctor)
	require.NoError(t, err)

	assert.True(t, c.IsInitializer)
	assert.Equal(t, 2, c.BoundaryStart)
	assert.Equal(t, 6, c.BoundaryIndex)
	assert.Equal(t, ins[:2], c.InitializationInstructions)
	assert.Equal(t, ins[7:], c.ConstructionInstructions)

	for _, arg := range ins[3:6] {
		assert.False(t, c.IsInitialization(arg), arg.String())
		assert.False(t, c.IsConstruction(arg), arg.String())
	}
}

func TestAnalyzeChainedConstructor(t *testing.T) {
	a := decode(t).Type("Demo.A")

	c, err := multiplex.Analyze(a.Constructors()[1])
	require.NoError(t, err)

	assert.False(t, c.IsInitializer)
	assert.Equal(t, 0, c.BoundaryStart)
	assert.Equal(t, 1, c.BoundaryIndex)
	assert.False(t, c.HasInitialization())
	assert.True(t, c.HasConstructionLogic())
}

func TestAnalyzeWithoutLogic(t *testing.T) {
	plain := decode(t).Type("Demo.Plain")

	c, err := multiplex.Analyze(plain.Constructors()[0])
	require.NoError(t, err)

	assert.True(t, c.IsInitializer)
	assert.Equal(t, 1, c.BoundaryStart)
	assert.True(t, c.HasInitialization())
	assert.False(t, c.HasConstructionLogic())
}

func TestAnalyzeMissingBoundary(t *testing.T) {
	plain := decode(t).Type("Demo.Plain")

	_, err := multiplex.Analyze(plain.Method("Broken"))
	require.ErrorIs(t, err, multiplex.ErrMissingBoundary)

	_, err = multiplex.Analyze(nil)
	require.ErrorIs(t, err, multiplex.ErrMissingBoundary)
}
