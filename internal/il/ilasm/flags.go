package ilasm

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"

	"ilclone/internal/il"
)

// flag is one named bit of an attribute set.
type flag[T ~uint16 | ~uint32] struct {
	name string
	bit  T
}

var typeFlags = []flag[il.TypeAttributes]{
	{"public", il.TypePublic},
	{"nested-public", il.TypeNestedPublic},
	{"nested-private", il.TypeNestedPrivate},
	{"abstract", il.TypeAbstract},
	{"sealed", il.TypeSealed},
	{"interface", il.TypeInterface},
	{"serializable", il.TypeSerializable},
	{"beforefieldinit", il.TypeBeforeFieldInit},
	{"specialname", il.TypeSpecialName},
	{"security", il.TypeHasSecurity},
}

var fieldFlags = []flag[il.FieldAttributes]{
	{"private", il.FieldPrivate},
	{"public", il.FieldPublic},
	{"family", il.FieldFamily},
	{"assembly", il.FieldAssembly},
	{"static", il.FieldStatic},
	{"initonly", il.FieldInitOnly},
	{"literal", il.FieldLiteral},
	{"hasdefault", il.FieldHasDefault},
	{"specialname", il.FieldSpecialName},
}

var methodFlags = []flag[il.MethodAttributes]{
	{"private", il.MethodPrivate},
	{"public", il.MethodPublic},
	{"family", il.MethodFamily},
	{"assembly", il.MethodAssembly},
	{"static", il.MethodStatic},
	{"final", il.MethodFinal},
	{"virtual", il.MethodVirtual},
	{"hidebysig", il.MethodHideBySig},
	{"newslot", il.MethodNewSlot},
	{"abstract", il.MethodAbstract},
	{"specialname", il.MethodSpecialName},
	{"rtspecialname", il.MethodRTSpecialName},
	{"security", il.MethodHasSecurity},
}

var implFlags = []flag[il.MethodImplAttributes]{
	{"noinlining", il.MethodImplNoInlining},
	{"aggressiveinlining", il.MethodImplAggressiveInlining},
	{"synchronized", il.MethodImplSynchronized},
	{"internalcall", il.MethodImplInternalCall},
}

var parameterFlags = []flag[il.ParameterAttributes]{
	{"in", il.ParameterIn},
	{"out", il.ParameterOut},
	{"optional", il.ParameterOptional},
	{"hasdefault", il.ParameterHasDefault},
}

var genericFlags = []flag[il.GenericParameterAttributes]{
	{"covariant", il.GenericCovariant},
	{"contravariant", il.GenericContravariant},
	{"class", il.GenericReferenceTypeConstraint},
	{"struct", il.GenericValueTypeConstraint},
	{"new", il.GenericDefaultConstructorConstraint},
}

var propertyFlags = []flag[il.PropertyAttributes]{
	{"specialname", il.PropertySpecialName},
	{"rtspecialname", il.PropertyRTSpecialName},
	{"hasdefault", il.PropertyHasDefault},
}

var eventFlags = []flag[il.EventAttributes]{
	{"specialname", il.EventSpecialName},
	{"rtspecialname", il.EventRTSpecialName},
}

// parseFlags ORs the named bits together.
func parseFlags[T ~uint16 | ~uint32](table []flag[T], names StringOrArray) (T, error) {
	var out T

	for _, name := range names {
		idx := slices.IndexFunc(table, func(f flag[T]) bool { return f.name == name })
		if idx < 0 {
			return out, fmt.Errorf("unknown flag %q (known: %s)", name, knownFlags(table))
		}

		out |= table[idx].bit
	}

	return out, nil
}

// formatFlags lists the names of the bits set in v in table order.
func formatFlags[T ~uint16 | ~uint32](table []flag[T], v T) StringOrArray {
	var out StringOrArray

	for _, f := range table {
		if v&f.bit == f.bit {
			out = append(out, f.name)
		}
	}

	return out
}

func knownFlags[T ~uint16 | ~uint32](table []flag[T]) string {
	byName := make(map[string]T, len(table))
	for _, f := range table {
		byName[f.name] = f.bit
	}

	names := maps.Keys(byName)
	slices.Sort(names)

	return strings.Join(names, ", ")
}
