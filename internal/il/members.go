package il

import (
	"strconv"
	"strings"
)

// FieldAttributes are the flags of a field definition.
type FieldAttributes uint16

const (
	FieldPrivate FieldAttributes = 1 << iota
	FieldPublic
	FieldFamily
	FieldAssembly
	FieldStatic
	FieldInitOnly
	FieldLiteral
	FieldHasDefault
	FieldSpecialName

	FieldAccessMask = FieldPrivate | FieldPublic | FieldFamily | FieldAssembly
)

// FieldRef names a field.
type FieldRef interface {
	String() string
	FullName() string
	DeclaringTypeRef() TypeRef
	FieldName() string
	Type() TypeRef
	isFieldRef()
}

// FieldDef is a field defined in a type.
type FieldDef struct {
	DeclaringType    *TypeDef
	Name             string
	Attributes       FieldAttributes
	FieldType        TypeRef
	Constant         any
	InitialValue     []byte
	CustomAttributes []*CustomAttribute
}

func (f *FieldDef) isFieldRef()                              {}
func (f *FieldDef) Kind() Kind                               { return KindField }
func (f *FieldDef) String() string                           { return f.FullName() }
func (f *FieldDef) FieldName() string                        { return f.Name }
func (f *FieldDef) Type() TypeRef                            { return f.FieldType }
func (f *FieldDef) IsStatic() bool                           { return f.Attributes&FieldStatic != 0 }
func (f *FieldDef) CustomAttributeList() *[]*CustomAttribute { return &f.CustomAttributes }
func (f *FieldDef) FullName() string                         { return fieldFullName(f) }
func (f *FieldDef) DeclaringTypeRef() TypeRef {
	if f.DeclaringType == nil {
		return nil
	}

	return f.DeclaringType
}

// FieldReference names a field of a type that is not defined locally, or of
// a generic instance type.
type FieldReference struct {
	DeclaringType TypeRef
	Name          string
	FieldType     TypeRef
}

func (f *FieldReference) isFieldRef()               {}
func (f *FieldReference) String() string            { return f.FullName() }
func (f *FieldReference) FieldName() string         { return f.Name }
func (f *FieldReference) Type() TypeRef             { return f.FieldType }
func (f *FieldReference) DeclaringTypeRef() TypeRef { return f.DeclaringType }
func (f *FieldReference) FullName() string          { return fieldFullName(f) }

func fieldFullName(f FieldRef) string {
	var b strings.Builder

	if t := f.Type(); t != nil {
		b.WriteString(t.FullName())
		b.WriteByte(' ')
	}

	if d := f.DeclaringTypeRef(); d != nil {
		b.WriteString(d.FullName())
		b.WriteString("::")
	}

	b.WriteString(f.FieldName())

	return b.String()
}

// MethodAttributes are the flags of a method definition.
type MethodAttributes uint32

const (
	MethodPrivate MethodAttributes = 1 << iota
	MethodPublic
	MethodFamily
	MethodAssembly
	MethodStatic
	MethodFinal
	MethodVirtual
	MethodHideBySig
	MethodNewSlot
	MethodAbstract
	MethodSpecialName
	MethodRTSpecialName
	MethodHasSecurity

	MethodAccessMask = MethodPrivate | MethodPublic | MethodFamily | MethodAssembly
)

// MethodImplAttributes are implementation flags of a method definition.
type MethodImplAttributes uint16

const (
	MethodImplNoInlining MethodImplAttributes = 1 << iota
	MethodImplAggressiveInlining
	MethodImplSynchronized
	MethodImplInternalCall
)

// Constructor names.
const (
	ConstructorName       = ".ctor"
	StaticConstructorName = ".cctor"
)

// MethodRef names a method.
type MethodRef interface {
	String() string
	FullName() string
	DeclaringTypeRef() TypeRef
	MethodName() string
	// Signature returns the return type and parameter types.
	Signature() (ret TypeRef, params []TypeRef)
	// Instance reports whether the method takes a this argument.
	Instance() bool
	isMethodRef()
}

// MethodDef is a method defined in a type.
type MethodDef struct {
	DeclaringType     *TypeDef
	Name              string
	Attributes        MethodAttributes
	ImplAttributes    MethodImplAttributes
	ReturnType        TypeRef
	Parameters        []*Parameter
	GenericParameters []*GenericParameter
	CustomAttributes  []*CustomAttribute
	Body              *MethodBody
}

// NewMethod creates a detached method definition.
func NewMethod(name string, attrs MethodAttributes, ret TypeRef) *MethodDef {
	return &MethodDef{
		Name:       name,
		Attributes: attrs,
		ReturnType: ret,
	}
}

func (m *MethodDef) isMethodRef()                             {}
func (m *MethodDef) Kind() Kind                               { return KindMethod }
func (m *MethodDef) String() string                           { return m.FullName() }
func (m *MethodDef) MethodName() string                       { return m.Name }
func (m *MethodDef) IsStatic() bool                           { return m.Attributes&MethodStatic != 0 }
func (m *MethodDef) Instance() bool                           { return !m.IsStatic() }
func (m *MethodDef) CustomAttributeList() *[]*CustomAttribute { return &m.CustomAttributes }
func (m *MethodDef) HasSecurity() bool                        { return m.Attributes&MethodHasSecurity != 0 }
func (m *MethodDef) FullName() string                         { return methodFullName(m, nil) }
func (m *MethodDef) DeclaringTypeRef() TypeRef {
	if m.DeclaringType == nil {
		return nil
	}

	return m.DeclaringType
}

func (m *MethodDef) Signature() (TypeRef, []TypeRef) {
	params := make([]TypeRef, len(m.Parameters))
	for i, p := range m.Parameters {
		params[i] = p.ParameterType
	}

	return m.ReturnType, params
}

// IsConstructor reports whether m is an instance or static constructor.
func (m *MethodDef) IsConstructor() bool {
	return m.Attributes&MethodRTSpecialName != 0 &&
		(m.Name == ConstructorName || m.Name == StaticConstructorName)
}

// AddParameter appends a parameter to m.
func (m *MethodDef) AddParameter(name string, t TypeRef) *Parameter {
	p := &Parameter{Name: name, Index: len(m.Parameters), ParameterType: t, Method: m}
	m.Parameters = append(m.Parameters, p)

	return p
}

// AddGenericParameter appends a generic parameter owned by m.
func (m *MethodDef) AddGenericParameter(name string) *GenericParameter {
	gp := &GenericParameter{Name: name, Position: len(m.GenericParameters), Owner: m}
	m.GenericParameters = append(m.GenericParameters, gp)

	return gp
}

// InsertParameterAfter inserts p right after prev (or first when prev is nil)
// and renumbers the parameters of m.
func (m *MethodDef) InsertParameterAfter(prev, p *Parameter) {
	at := 0
	if prev != nil {
		at = indexOf(m.Parameters, prev) + 1
	}

	p.Method = m
	m.Parameters = insertAt(m.Parameters, at, p)

	for i, each := range m.Parameters {
		each.Index = i
	}
}

// InsertGenericParameterAfter inserts gp right after prev (or first when prev
// is nil) and renumbers the generic parameters of m.
func (m *MethodDef) InsertGenericParameterAfter(prev, gp *GenericParameter) {
	gp.Owner = m
	m.GenericParameters = insertGenericParameter(m.GenericParameters, prev, gp)
}

// MethodReference names a method of a type that is not defined locally, or
// of a generic instance type.
type MethodReference struct {
	DeclaringType  TypeRef
	Name           string
	HasThis        bool
	ReturnType     TypeRef
	ParameterTypes []TypeRef

	// GenericParameters are placeholders for an open generic method.
	GenericParameters []*GenericParameter
}

func (m *MethodReference) isMethodRef()              {}
func (m *MethodReference) String() string            { return m.FullName() }
func (m *MethodReference) MethodName() string        { return m.Name }
func (m *MethodReference) Instance() bool            { return m.HasThis }
func (m *MethodReference) DeclaringTypeRef() TypeRef { return m.DeclaringType }
func (m *MethodReference) FullName() string          { return methodFullName(m, nil) }
func (m *MethodReference) Signature() (TypeRef, []TypeRef) {
	return m.ReturnType, m.ParameterTypes
}

// GenericParameter returns the i-th placeholder parameter of an open generic
// method reference, creating placeholders on demand.
func (m *MethodReference) GenericParameter(i int) *GenericParameter {
	for len(m.GenericParameters) <= i {
		n := len(m.GenericParameters)
		m.GenericParameters = append(m.GenericParameters, &GenericParameter{
			Name:     "!!" + strconv.Itoa(n),
			Position: n,
			Owner:    m,
		})
	}

	return m.GenericParameters[i]
}

// GenericInstanceMethod is a generic method closed over type arguments.
type GenericInstanceMethod struct {
	ElementMethod MethodRef
	Arguments     []TypeRef
}

func (g *GenericInstanceMethod) isMethodRef()              {}
func (g *GenericInstanceMethod) String() string            { return g.FullName() }
func (g *GenericInstanceMethod) MethodName() string        { return g.ElementMethod.MethodName() }
func (g *GenericInstanceMethod) Instance() bool            { return g.ElementMethod.Instance() }
func (g *GenericInstanceMethod) DeclaringTypeRef() TypeRef { return g.ElementMethod.DeclaringTypeRef() }
func (g *GenericInstanceMethod) FullName() string {
	return methodFullName(g.ElementMethod, g.Arguments)
}
func (g *GenericInstanceMethod) Signature() (TypeRef, []TypeRef) {
	return g.ElementMethod.Signature()
}

// ElementMethodOf strips generic instantiation from m.
func ElementMethodOf(m MethodRef) MethodRef {
	if gi, ok := m.(*GenericInstanceMethod); ok {
		return gi.ElementMethod
	}

	return m
}

// IsConstructorRef reports whether m names an instance constructor.
func IsConstructorRef(m MethodRef) bool {
	return m.MethodName() == ConstructorName
}

func methodFullName(m MethodRef, args []TypeRef) string {
	var b strings.Builder

	ret, params := m.Signature()
	if ret != nil {
		b.WriteString(ret.FullName())
		b.WriteByte(' ')
	}

	if d := m.DeclaringTypeRef(); d != nil {
		b.WriteString(d.FullName())
		b.WriteString("::")
	}

	b.WriteString(m.MethodName())

	if len(args) > 0 {
		b.WriteByte('<')
		b.WriteString(joinTypeNames(args))
		b.WriteByte('>')
	}

	b.WriteByte('(')
	b.WriteString(joinTypeNames(params))
	b.WriteByte(')')

	return b.String()
}

// ParameterAttributes are the flags of a method parameter.
type ParameterAttributes uint16

const (
	ParameterIn ParameterAttributes = 1 << iota
	ParameterOut
	ParameterOptional
	ParameterHasDefault
)

// Parameter is a formal parameter of a method. Index is the zero-based
// position in the signature; the implicit this parameter of a body has index
// -1.
type Parameter struct {
	Name             string
	Index            int
	Attributes       ParameterAttributes
	ParameterType    TypeRef
	Constant         any
	Method           *MethodDef
	CustomAttributes []*CustomAttribute
}

func (p *Parameter) Kind() Kind                               { return KindParameter }
func (p *Parameter) CustomAttributeList() *[]*CustomAttribute { return &p.CustomAttributes }
func (p *Parameter) IsThis() bool                             { return p.Index < 0 }
func (p *Parameter) String() string {
	if p.IsThis() {
		return "this"
	}

	return p.Name
}

// PropertyAttributes are the flags of a property.
type PropertyAttributes uint16

const (
	PropertySpecialName PropertyAttributes = 1 << iota
	PropertyRTSpecialName
	PropertyHasDefault
)

// PropertyDef is a property of a type with optional accessor methods.
type PropertyDef struct {
	DeclaringType    *TypeDef
	Name             string
	Attributes       PropertyAttributes
	PropertyType     TypeRef
	GetMethod        *MethodDef
	SetMethod        *MethodDef
	CustomAttributes []*CustomAttribute
}

func (p *PropertyDef) Kind() Kind                               { return KindProperty }
func (p *PropertyDef) String() string                           { return p.FullName() }
func (p *PropertyDef) CustomAttributeList() *[]*CustomAttribute { return &p.CustomAttributes }
func (p *PropertyDef) FullName() string {
	return memberFullName(p.PropertyType, p.DeclaringType, p.Name)
}

// EventAttributes are the flags of an event.
type EventAttributes uint16

const (
	EventSpecialName EventAttributes = 1 << iota
	EventRTSpecialName
)

// EventDef is an event of a type with its accessor methods.
type EventDef struct {
	DeclaringType    *TypeDef
	Name             string
	Attributes       EventAttributes
	EventType        TypeRef
	AddMethod        *MethodDef
	RemoveMethod     *MethodDef
	InvokeMethod     *MethodDef
	CustomAttributes []*CustomAttribute
}

func (e *EventDef) Kind() Kind                               { return KindEvent }
func (e *EventDef) String() string                           { return e.FullName() }
func (e *EventDef) CustomAttributeList() *[]*CustomAttribute { return &e.CustomAttributes }
func (e *EventDef) FullName() string {
	return memberFullName(e.EventType, e.DeclaringType, e.Name)
}

func memberFullName(t TypeRef, owner *TypeDef, name string) string {
	var b strings.Builder

	if t != nil {
		b.WriteString(t.FullName())
		b.WriteByte(' ')
	}

	if owner != nil {
		b.WriteString(owner.FullName())
		b.WriteString("::")
	}

	b.WriteString(name)

	return b.String()
}

// AttributeArgument is one positional argument of a custom attribute. Value
// holds a bool, an integer, a float64, a string, a TypeRef or nil.
type AttributeArgument struct {
	Type  TypeRef
	Value any
}

// CustomAttribute is metadata attached to an element, constructed by calling
// Constructor with Arguments.
type CustomAttribute struct {
	Constructor MethodRef
	Arguments   []AttributeArgument
}

func (a *CustomAttribute) Kind() Kind { return KindCustomAttribute }
func (a *CustomAttribute) String() string {
	if a.Constructor == nil || a.Constructor.DeclaringTypeRef() == nil {
		return "[?]"
	}

	return "[" + a.Constructor.DeclaringTypeRef().FullName() + "]"
}
