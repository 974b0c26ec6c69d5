package clone

import (
	"ilclone/internal/diagnostic"
	"ilclone/internal/il"
)

// Diagnostic codes reported by preflight.
const (
	CodeValueType          = "value_type"
	CodeAbstract           = "abstract"
	CodeOpenGeneric        = "open_generic"
	CodeSecurity           = "security"
	CodeBaseType           = "base_type"
	CodeParameterizedCtor  = "parameterized_constructor"
	CodeInterfaceAttribute = "interface_attribute"
)

// Check reports every shape of source the engine refuses to clone, without
// cloning anything.
func Check(source *il.TypeDef) diagnostic.Diagnostics {
	var d diagnostic.Diagnostics

	name := source.FullName()

	if source.ValueType() {
		d.AddError(CodeValueType, "value types cannot be cloned", name)
	}

	if source.IsAbstract() {
		d.AddError(CodeAbstract, "abstract types and interfaces cannot be cloned", name)
	}

	if len(source.GenericParameters) > 0 {
		d.AddError(CodeOpenGeneric, "generic root types cannot be cloned", name)
	}

	if source.BaseType == nil || source.BaseType.FullName() != il.Object.FullName() {
		d.AddError(CodeBaseType, "root type must derive from System.Object directly", name,
			"move inherited members into the source type")
	}

	for _, ctor := range source.Constructors() {
		if len(ctor.Parameters) > 0 {
			d.AddError(CodeParameterizedCtor, "only parameterless constructors can be merged", ctor.FullName())
		}
	}

	checkTree(&d, source)

	return d
}

func checkTree(d *diagnostic.Diagnostics, t *il.TypeDef) {
	if t.HasSecurity() {
		d.AddError(CodeSecurity, "types with declarative security cannot be cloned", t.FullName())
	}

	for _, impl := range t.Interfaces {
		if len(impl.CustomAttributes) > 0 {
			d.AddError(CodeInterfaceAttribute, "attributes on interface implementations are not cloned",
				t.FullName()+" : "+impl.InterfaceType.FullName())
		}
	}

	for _, m := range t.Methods {
		if m.Body == nil && m.Attributes&il.MethodAbstract == 0 {
			d.AddWarning("no_body", "method has no body and is cloned as a declaration", m.FullName())
		}
	}

	for _, n := range t.NestedTypes {
		checkTree(d, n)
	}
}

func preflight(source *il.TypeDef) error {
	d := Check(source)
	if d.IsValid() {
		return nil
	}

	kind := ErrUnsupported
	if d.HasCode(CodeParameterizedCtor) {
		kind = ErrInvalidOperation
	}

	return wrap(kind, source, d.Error())
}
