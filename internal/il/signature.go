package il

import (
	"strconv"
	"strings"
)

// TypeKey renders t for signature comparison. Generic parameters render by
// position ("!0" for a type parameter, "!!0" for a method parameter), so
// that a definition and a reference to it produce the same key.
func TypeKey(t TypeRef) string {
	switch t := t.(type) {
	case nil:
		return Void.FullName()
	case *GenericParameter:
		if t.IsMethodParameter() {
			return "!!" + strconv.Itoa(t.Position)
		}

		return "!" + strconv.Itoa(t.Position)
	case *ArrayType:
		return TypeKey(t.ElementType) + "[" + strings.Repeat(",", max(t.Rank-1, 0)) + "]"
	case *GenericInstanceType:
		args := make([]string, len(t.Arguments))
		for i, arg := range t.Arguments {
			args[i] = TypeKey(arg)
		}

		return TypeKey(t.ElementType) + "<" + strings.Join(args, ",") + ">"
	default:
		return t.FullName()
	}
}

// MethodKey renders the name, generic arity and signature of m for
// comparison. The declaring type is not part of the key.
func MethodKey(m MethodRef) string {
	ret, params := m.Signature()

	keys := make([]string, len(params))
	for i, p := range params {
		keys[i] = TypeKey(p)
	}

	return TypeKey(ret) + " " + m.MethodName() + "`" + strconv.Itoa(GenericArity(m)) +
		"(" + strings.Join(keys, ",") + ")"
}

// GenericArity returns the number of generic parameters m declares.
func GenericArity(m MethodRef) int {
	switch m := m.(type) {
	case *MethodDef:
		return len(m.GenericParameters)
	case *MethodReference:
		return len(m.GenericParameters)
	case *GenericInstanceMethod:
		return GenericArity(m.ElementMethod)
	}

	return 0
}
