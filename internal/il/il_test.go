package il_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilclone/internal/il"
)

func library() (*il.Module, *il.TypeDef) {
	lib := il.NewModule("Lib")

	box := il.NewType("Lib", "Box`1", il.TypePublic, il.Object)
	box.AddGenericParameter("T")
	box.AddField(&il.FieldDef{Name: "value", FieldType: box.GenericParameters[0]})

	get := il.NewMethod("Get", il.MethodPublic, box.GenericParameters[0])
	box.AddMethod(get)

	lib.AddType(box)

	return lib, box
}

func TestImportType(t *testing.T) {
	lib, box := library()
	app := il.NewModule("App", "Lib")

	imported, err := app.ImportType(box)
	require.NoError(t, err)

	ref, ok := imported.(*il.TypeReference)
	require.True(t, ok)
	assert.Equal(t, "Lib.Box`1", ref.FullName())
	assert.Equal(t, "Lib", ref.Scope())
	assert.Same(t, app, ref.Module)
	assert.Len(t, ref.GenericParameters, 1)

	same, err := lib.ImportType(box)
	require.NoError(t, err)
	assert.Same(t, box, same)

	back, err := lib.ImportType(ref)
	require.NoError(t, err)
	assert.Same(t, box, back)

	core, err := app.ImportType(il.Int32)
	require.NoError(t, err)
	assert.Same(t, il.Int32, core)

	closed, err := app.ImportType(&il.GenericInstanceType{ElementType: box, Arguments: []il.TypeRef{il.Int32}})
	require.NoError(t, err)
	assert.Equal(t, "Lib.Box`1<System.Int32>", closed.FullName())
}

func TestImportOutOfScope(t *testing.T) {
	_, box := library()
	isolated := il.NewModule("Isolated")

	_, err := isolated.ImportType(&il.ArrayType{ElementType: box, Rank: 1})

	var scope *il.ScopeError
	require.True(t, errors.As(err, &scope))
	assert.Equal(t, "Lib", scope.Scope)
	assert.Equal(t, "Lib.Box`1", scope.Symbol)

	_, err = isolated.ImportField(box.Field("value"))
	require.Error(t, err)

	isolated.AddReference("Lib")
	isolated.AddReference("Lib")
	assert.Equal(t, []string{"Lib"}, isolated.References)

	_, err = isolated.ImportField(box.Field("value"))
	require.NoError(t, err)
}

func TestImportMembers(t *testing.T) {
	_, box := library()
	app := il.NewModule("App", "Lib")

	m, err := app.ImportMethod(box.Method("Get"))
	require.NoError(t, err)

	ref, ok := m.(*il.MethodReference)
	require.True(t, ok)
	assert.True(t, ref.HasThis)
	assert.Equal(t, "Lib.Box`1", ref.DeclaringType.FullName())
	assert.Equal(t, il.MethodKey(box.Method("Get")), il.MethodKey(ref))

	f, err := app.ImportField(box.Field("value"))
	require.NoError(t, err)
	assert.IsType(t, &il.FieldReference{}, f)
	assert.Equal(t, "value", f.FieldName())
	assert.Equal(t, "!0", il.TypeKey(f.Type()))
}

func TestSignatureKeys(t *testing.T) {
	_, box := library()

	swap := il.NewMethod("Swap", il.MethodPublic|il.MethodStatic, il.Void)
	u := swap.AddGenericParameter("U")
	swap.AddParameter("a", &il.ArrayType{ElementType: u, Rank: 2})
	swap.AddParameter("b", &il.GenericInstanceType{ElementType: box, Arguments: []il.TypeRef{u}})
	box.AddMethod(swap)

	assert.Equal(t, "!!0[,]", il.TypeKey(swap.Parameters[0].ParameterType))
	assert.Equal(t, "System.Void Swap`1(!!0[,],Lib.Box`1<!!0>)", il.MethodKey(swap))
	assert.Equal(t, 1, il.GenericArity(swap))
	assert.Equal(t, 0, il.GenericArity(box.Method("Get")))
}

func TestBodyEditing(t *testing.T) {
	m := il.NewMethod("Run", il.MethodPublic, il.Void)
	body := il.NewBody(m)

	br := body.Emit(il.OpBr, nil)
	ret := body.Emit(il.OpRet, nil)
	br.Operand = ret

	body.ExceptionHandlers = append(body.ExceptionHandlers, &il.ExceptionHandler{
		HandlerType: il.HandlerFinally, TryStart: br, TryEnd: ret, HandlerStart: ret,
	})

	nop := &il.Instruction{OpCode: il.OpNop}
	require.NoError(t, body.InsertBefore(ret, nop))
	assert.Equal(t, []*il.Instruction{br, nop, ret}, body.Instructions)
	assert.Same(t, nop, br.Operand)
	assert.Same(t, nop, body.ExceptionHandlers[0].TryEnd)

	first := &il.Instruction{OpCode: il.OpNop}
	require.NoError(t, body.InsertAfter(nil, first))
	assert.Equal(t, 0, body.IndexOf(first))

	require.Error(t, body.InsertAfter(&il.Instruction{OpCode: il.OpNop}, first))
	require.Error(t, body.InsertBefore(&il.Instruction{OpCode: il.OpNop}, first))

	body.ComputeOffsets()
	assert.Equal(t, 0, first.Offset)
	assert.Equal(t, 1, br.Offset)
	assert.Less(t, nop.Offset, ret.Offset)
}
