package il

import (
	"strconv"
	"strings"
)

// TypeRef is anything that names a type: a definition, a reference into
// another module, a generic parameter or a constructed type.
type TypeRef interface {
	String() string
	FullName() string
	// Scope is the name of the module that defines the type.
	Scope() string
	ValueType() bool
	isTypeRef()
}

// TypeAttributes are the flags of a type definition.
type TypeAttributes uint32

const (
	TypePublic TypeAttributes = 1 << iota
	TypeNestedPublic
	TypeNestedPrivate
	TypeAbstract
	TypeSealed
	TypeInterface
	TypeSerializable
	TypeBeforeFieldInit
	TypeSpecialName
	TypeHasSecurity

	TypeVisibilityMask = TypePublic | TypeNestedPublic | TypeNestedPrivate
)

// Has reports whether all flags in f are set.
func (a TypeAttributes) Has(f TypeAttributes) bool { return a&f == f }

// TypeDef is a type defined in a module.
type TypeDef struct {
	Module        *Module
	DeclaringType *TypeDef

	Namespace  string
	Name       string
	Attributes TypeAttributes
	BaseType   TypeRef

	Interfaces        []*InterfaceImpl
	GenericParameters []*GenericParameter
	NestedTypes       []*TypeDef
	Fields            []*FieldDef
	Methods           []*MethodDef
	Properties        []*PropertyDef
	Events            []*EventDef
	CustomAttributes  []*CustomAttribute

	PackingSize int16
	ClassSize   int32
}

// NewType creates a detached type definition; add it to a module or a
// declaring type to attach it.
func NewType(namespace, name string, attrs TypeAttributes, base TypeRef) *TypeDef {
	return &TypeDef{
		Namespace:  namespace,
		Name:       name,
		Attributes: attrs,
		BaseType:   base,
	}
}

func (t *TypeDef) isTypeRef()                               {}
func (t *TypeDef) Kind() Kind                               { return KindType }
func (t *TypeDef) String() string                           { return t.FullName() }
func (t *TypeDef) CustomAttributeList() *[]*CustomAttribute { return &t.CustomAttributes }

func (t *TypeDef) FullName() string {
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "/" + t.Name
	}

	if t.Namespace == "" {
		return t.Name
	}

	return t.Namespace + "." + t.Name
}

func (t *TypeDef) Scope() string {
	if t.Module == nil {
		return ""
	}

	return t.Module.Name
}

// ValueType reports whether the base type is System.ValueType or System.Enum.
func (t *TypeDef) ValueType() bool {
	if t.BaseType == nil {
		return false
	}

	switch t.BaseType.FullName() {
	case "System.ValueType", "System.Enum":
		return true
	}

	return false
}

// HasSecurity reports whether the type carries declarative security.
func (t *TypeDef) HasSecurity() bool { return t.Attributes.Has(TypeHasSecurity) }

// IsAbstract reports whether the type is abstract or an interface.
func (t *TypeDef) IsAbstract() bool {
	return t.Attributes.Has(TypeAbstract) || t.Attributes.Has(TypeInterface)
}

// AddNestedType attaches n as a nested type of t.
func (t *TypeDef) AddNestedType(n *TypeDef) {
	n.DeclaringType = t
	n.Module = t.Module
	t.NestedTypes = append(t.NestedTypes, n)
	n.adopt(t.Module)
}

// AddField attaches f to t.
func (t *TypeDef) AddField(f *FieldDef) {
	f.DeclaringType = t
	t.Fields = append(t.Fields, f)
}

// AddMethod attaches m to t.
func (t *TypeDef) AddMethod(m *MethodDef) {
	m.DeclaringType = t
	t.Methods = append(t.Methods, m)
}

// RemoveMethod detaches m from t. It reports whether m was found.
func (t *TypeDef) RemoveMethod(m *MethodDef) bool {
	for i, candidate := range t.Methods {
		if candidate == m {
			t.Methods = append(t.Methods[:i], t.Methods[i+1:]...)
			m.DeclaringType = nil

			return true
		}
	}

	return false
}

// AddProperty attaches p to t.
func (t *TypeDef) AddProperty(p *PropertyDef) {
	p.DeclaringType = t
	t.Properties = append(t.Properties, p)
}

// AddEvent attaches e to t.
func (t *TypeDef) AddEvent(e *EventDef) {
	e.DeclaringType = t
	t.Events = append(t.Events, e)
}

// AddGenericParameter appends a generic parameter owned by t.
func (t *TypeDef) AddGenericParameter(name string) *GenericParameter {
	gp := &GenericParameter{Name: name, Position: len(t.GenericParameters), Owner: t}
	t.GenericParameters = append(t.GenericParameters, gp)

	return gp
}

// InsertGenericParameterAfter inserts gp right after prev (or first when prev
// is nil) and renumbers the parameters of t.
func (t *TypeDef) InsertGenericParameterAfter(prev, gp *GenericParameter) {
	gp.Owner = t
	t.GenericParameters = insertGenericParameter(t.GenericParameters, prev, gp)
}

// Method returns the first method with the given name.
func (t *TypeDef) Method(name string) *MethodDef {
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}

	return nil
}

// Field returns the field with the given name.
func (t *TypeDef) Field(name string) *FieldDef {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}

	return nil
}

// NestedType returns the nested type with the given simple name.
func (t *TypeDef) NestedType(name string) *TypeDef {
	for _, n := range t.NestedTypes {
		if n.Name == name {
			return n
		}
	}

	return nil
}

// Constructors returns the instance constructors of t in declaration order.
func (t *TypeDef) Constructors() []*MethodDef {
	var out []*MethodDef

	for _, m := range t.Methods {
		if m.IsConstructor() && !m.IsStatic() {
			out = append(out, m)
		}
	}

	return out
}

// StaticConstructor returns the type initializer of t, if any.
func (t *TypeDef) StaticConstructor() *MethodDef {
	for _, m := range t.Methods {
		if m.IsConstructor() && m.IsStatic() {
			return m
		}
	}

	return nil
}

// Implements reports whether t lists an interface with the given full name.
func (t *TypeDef) Implements(fullName string) bool {
	for _, impl := range t.Interfaces {
		if impl.InterfaceType.FullName() == fullName {
			return true
		}
	}

	return false
}

func (t *TypeDef) adopt(m *Module) {
	for _, n := range t.NestedTypes {
		n.Module = m
		n.adopt(m)
	}
}

// InterfaceImpl is one entry of a type's interface list.
type InterfaceImpl struct {
	InterfaceType    TypeRef
	CustomAttributes []*CustomAttribute
}

// TypeReference names a type defined in another module (or in the core
// library).
type TypeReference struct {
	// Module is the module holding the reference; nil for core references.
	Module        *Module
	ScopeName     string
	Namespace     string
	Name          string
	DeclaringType *TypeReference
	IsValueType   bool

	// GenericParameters are placeholders for an open generic reference, so
	// that member signatures on it can name "its" parameters.
	GenericParameters []*GenericParameter
}

func (r *TypeReference) isTypeRef()      {}
func (r *TypeReference) Scope() string   { return r.ScopeName }
func (r *TypeReference) ValueType() bool { return r.IsValueType }
func (r *TypeReference) String() string  { return r.FullName() }
func (r *TypeReference) FullName() string {
	if r.DeclaringType != nil {
		return r.DeclaringType.FullName() + "/" + r.Name
	}

	if r.Namespace == "" {
		return r.Name
	}

	return r.Namespace + "." + r.Name
}

// GenericParameter returns the i-th placeholder parameter of an open generic
// reference, creating placeholders on demand.
func (r *TypeReference) GenericParameter(i int) *GenericParameter {
	for len(r.GenericParameters) <= i {
		n := len(r.GenericParameters)
		r.GenericParameters = append(r.GenericParameters, &GenericParameter{
			Name:     "!" + strconv.Itoa(n),
			Position: n,
			Owner:    r,
		})
	}

	return r.GenericParameters[i]
}

// GenericOwner is a type or method that declares generic parameters.
type GenericOwner interface {
	FullName() string
}

// GenericParameterAttributes are variance and constraint flags.
type GenericParameterAttributes uint16

const (
	GenericCovariant GenericParameterAttributes = 1 << iota
	GenericContravariant
	GenericReferenceTypeConstraint
	GenericValueTypeConstraint
	GenericDefaultConstructorConstraint
)

// GenericParameter is a type parameter of a type or method.
type GenericParameter struct {
	Name             string
	Position         int
	Owner            GenericOwner
	Attributes       GenericParameterAttributes
	Constraints      []TypeRef
	CustomAttributes []*CustomAttribute
}

func (g *GenericParameter) isTypeRef()       {}
func (g *GenericParameter) Kind() Kind       { return KindGenericParameter }
func (g *GenericParameter) FullName() string { return g.Name }
func (g *GenericParameter) String() string   { return g.Name }
func (g *GenericParameter) ValueType() bool {
	return g.Attributes&GenericValueTypeConstraint != 0
}

func (g *GenericParameter) CustomAttributeList() *[]*CustomAttribute { return &g.CustomAttributes }

func (g *GenericParameter) Scope() string {
	switch o := g.Owner.(type) {
	case TypeRef:
		return o.Scope()
	case *MethodDef:
		if o.DeclaringType != nil {
			return o.DeclaringType.Scope()
		}
	case *MethodReference:
		if o.DeclaringType != nil {
			return o.DeclaringType.Scope()
		}
	}

	return ""
}

// IsMethodParameter reports whether the parameter is declared by a method.
func (g *GenericParameter) IsMethodParameter() bool {
	switch g.Owner.(type) {
	case *MethodDef, *MethodReference:
		return true
	}

	return false
}

// ArrayType is a single- or multi-dimensional array of an element type.
type ArrayType struct {
	ElementType TypeRef
	Rank        int
}

func (a *ArrayType) isTypeRef()      {}
func (a *ArrayType) Scope() string   { return a.ElementType.Scope() }
func (a *ArrayType) ValueType() bool { return false }
func (a *ArrayType) String() string  { return a.FullName() }
func (a *ArrayType) FullName() string {
	if a.Rank <= 1 {
		return a.ElementType.FullName() + "[]"
	}

	return a.ElementType.FullName() + "[" + strings.Repeat(",", a.Rank-1) + "]"
}

// GenericInstanceType is an open generic type closed over type arguments.
type GenericInstanceType struct {
	ElementType TypeRef
	Arguments   []TypeRef
}

func (g *GenericInstanceType) isTypeRef()      {}
func (g *GenericInstanceType) Scope() string   { return g.ElementType.Scope() }
func (g *GenericInstanceType) ValueType() bool { return g.ElementType.ValueType() }
func (g *GenericInstanceType) String() string  { return g.FullName() }
func (g *GenericInstanceType) FullName() string {
	return g.ElementType.FullName() + "<" + joinTypeNames(g.Arguments) + ">"
}

// ElementTypeOf strips generic instantiation from t.
func ElementTypeOf(t TypeRef) TypeRef {
	if gi, ok := t.(*GenericInstanceType); ok {
		return gi.ElementType
	}

	return t
}

func insertGenericParameter(params []*GenericParameter, prev, gp *GenericParameter) []*GenericParameter {
	at := 0
	if prev != nil {
		at = indexOf(params, prev) + 1
	}

	params = insertAt(params, at, gp)
	for i, each := range params {
		each.Position = i
	}

	return params
}

func joinTypeNames(types []TypeRef) string {
	names := make([]string, len(types))
	for i, t := range types {
		if t == nil {
			names[i] = "?"
			continue
		}

		names[i] = t.FullName()
	}

	return strings.Join(names, ",")
}
