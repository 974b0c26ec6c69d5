package ilasm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilclone/internal/il"
)

const counterModule = `
module: Demo
references: [Lib]
types:
  - name: Demo.Counter
    flags: [public, beforefieldinit]
    base: object
    interfaces: ["[Lib]Lib.ICounter"]
    fields:
      - {name: count, type: int32, flags: private}
      - {name: Seed, type: int32, flags: [public, static]}
    methods:
      - name: .ctor
        flags: [public, hidebysig, specialname, rtspecialname]
        body:
          - ldarg this
          - call instance void object::.ctor()
          - ret
      - name: Add
        flags: [public, hidebysig]
        returns: int32
        parameters: [{name: n, type: int32}]
        locals: [int32]
        body:
          - ldarg this
          - ldfld int32 Demo.Counter::count
          - ldarg n
          - add
          - stloc V_0
          - ldloc V_0
          - ldc.i4 0
          - bge done
          - ldc.i4 0
          - stloc V_0
          - "done: ldloc V_0"
          - ret
  - name: Demo.Box` + "`" + `1
    flags: public
    base: object
    generic: [T]
    fields:
      - {name: value, type: "!0"}
    methods:
      - name: Get
        flags: public
        returns: "!0"
        body:
          - ldarg this
          - ldfld !0 Demo.Box` + "`" + `1<!0>::value
          - ret
    nested:
      - name: Inner
        flags: nested-public
        base: object
`

func TestDecode(t *testing.T) {
	m, err := Decode([]byte(counterModule))
	require.NoError(t, err)

	assert.Equal(t, "Demo", m.Name)
	assert.True(t, m.CanReference("Lib"))

	counter := m.Type("Demo.Counter")
	require.NotNil(t, counter)
	assert.True(t, counter.Attributes.Has(il.TypePublic|il.TypeBeforeFieldInit))
	assert.Same(t, il.Object, counter.BaseType)
	require.Len(t, counter.Interfaces, 1)
	assert.Equal(t, "Lib", counter.Interfaces[0].InterfaceType.Scope())
	assert.Equal(t, "Lib.ICounter", counter.Interfaces[0].InterfaceType.FullName())

	require.Len(t, counter.Fields, 2)
	assert.True(t, counter.Field("Seed").IsStatic())

	add := counter.Method("Add")
	require.NotNil(t, add)
	require.Len(t, add.Parameters, 1)
	assert.Same(t, il.Int32, add.ReturnType)

	body := add.Body
	require.NotNil(t, body)
	require.Len(t, body.Instructions, 12)
	assert.Same(t, counter.Field("count"), body.Instructions[1].Operand)
	assert.Same(t, add.Parameters[0], body.Instructions[2].Operand)
	assert.Same(t, body.Variables[0], body.Instructions[4].Operand)
	assert.Equal(t, int32(0), body.Instructions[6].Operand)
	assert.Same(t, body.Instructions[10], body.Instructions[7].Operand)

	ctor := counter.Constructors()
	require.Len(t, ctor, 1)
	assert.Same(t, ctor[0].Body.ThisParameter(), ctor[0].Body.Instructions[0].Operand)

	box := m.Type("Demo.Box`1")
	require.NotNil(t, box)
	require.Len(t, box.GenericParameters, 1)
	assert.Same(t, box.GenericParameters[0], box.Field("value").FieldType)

	ref, ok := box.Method("Get").Body.Instructions[1].Operand.(*il.FieldReference)
	require.True(t, ok)
	assert.Equal(t, "value", ref.Name)
	assert.Same(t, box.GenericParameters[0], ref.FieldType)

	assert.NotNil(t, m.Type("Demo.Box`1/Inner"))
}

func TestEncodeRoundTrip(t *testing.T) {
	m, err := Decode([]byte(counterModule))
	require.NoError(t, err)

	first, err := Encode(m)
	require.NoError(t, err)

	again, err := Decode(first)
	require.NoError(t, err)

	second, err := Encode(again)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), "bge IL_")
	assert.Contains(t, string(first), "call instance void object::.ctor()")
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown opcode", "frob", "unknown opcode"},
		{"undefined label", "br nowhere", "undefined label"},
		{"unknown type", "newobj instance void Demo.Missing::.ctor()", "unknown type"},
		{"unreferenced scope", "newobj instance void [Other]Other.Thing::.ctor()", "does not reference Other"},
		{"missing method", "call void Demo.Broken::Nope()", "has no method"},
		{"missing operand", "ldstr", "needs an operand"},
		{"bad local", "ldloc V_3", "no local V_3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "module: Demo\ntypes:\n  - name: Demo.Broken\n    methods:\n      - name: Run\n        flags: static\n        body: [\"" +
				tt.body + "\", ret]\n"

			_, err := Decode([]byte(src))
			require.ErrorIs(t, err, ErrSyntax)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeBadFlag(t *testing.T) {
	_, err := Decode([]byte("module: Demo\ntypes:\n  - name: Demo.A\n    flags: [publik]\n"))
	require.ErrorIs(t, err, ErrSyntax)
	assert.Contains(t, err.Error(), `unknown flag "publik"`)
	assert.Contains(t, err.Error(), "Demo.A: [bad_flag]")
}

func TestDecodeMissingModuleName(t *testing.T) {
	_, err := Decode([]byte("types: []\n"))
	require.ErrorIs(t, err, ErrSyntax)
}

func TestResolver(t *testing.T) {
	dir := t.TempDir()

	lib := "module: Lib\ntypes:\n  - name: Lib.ICounter\n    flags: [public, interface, abstract]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Lib.yaml"), []byte(lib), 0o644))

	r, err := NewResolver([]string{t.TempDir(), dir}, 0)
	require.NoError(t, err)

	m, err := r.Resolve("Lib")
	require.NoError(t, err)

	cached, err := r.Resolve("Lib")
	require.NoError(t, err)
	assert.Same(t, m, cached)

	demo, err := Decode([]byte(counterModule))
	require.NoError(t, err)

	def, err := r.ResolveType(demo.Type("Demo.Counter").Interfaces[0].InterfaceType)
	require.NoError(t, err)
	assert.Same(t, m.Type("Lib.ICounter"), def)

	_, err = r.Resolve("Nope")
	require.ErrorIs(t, err, ErrModuleNotFound)
}
