// Package il is the in-memory object model of a compiled stack-machine module:
// types, members, method bodies and their instructions.
//
// Definitions (TypeDef, MethodDef, FieldDef, ...) are owned by exactly one
// module and are mutable. References (TypeReference, MethodReference, ...)
// name a definition that may live in another module. Modules are not safe for
// concurrent mutation.
package il

//go:generate go tool stringer -type=Kind -trimprefix=Kind -output=kind_string.go

// Kind enumerates every element kind that may appear in a module tree.
type Kind int

const (
	_ Kind = iota // zero value is an invalid kind

	KindModule
	KindType
	KindField
	KindMethod
	KindMethodBody
	KindParameter
	KindVariable
	KindInstruction
	KindExceptionHandler
	KindGenericParameter
	KindCustomAttribute
	KindEvent
	KindProperty

	// KindTotal is the number of kinds defined, including the invalid zero kind.
	KindTotal = int(iota)
)

// Element is any construct of a module tree that can be cloned.
type Element interface {
	Kind() Kind
	String() string
}

// AttributeProvider is an element that carries custom attributes.
type AttributeProvider interface {
	Element
	CustomAttributeList() *[]*CustomAttribute
}
