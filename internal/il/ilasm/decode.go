package ilasm

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ilclone/internal/diagnostic"
	"ilclone/internal/il"
)

// ErrSyntax is wrapped by every error about the content of a module file.
var ErrSyntax = errors.New("malformed module")

// Diagnostic codes reported while decoding.
const (
	CodeUnknownType   = "unknown_type"
	CodeUnknownMember = "unknown_member"
	CodeBadFlag       = "bad_flag"
	CodeBadOperand    = "bad_operand"
	CodeBadLabel      = "bad_label"
	CodeScope         = "scope"
)

var primitives = map[string]*il.TypeReference{
	"void":    il.Void,
	"bool":    il.Boolean,
	"int32":   il.Int32,
	"int64":   il.Int64,
	"float64": il.Double,
	"string":  il.String,
	"object":  il.Object,
}

// LoadFile loads and decodes a module file.
func LoadFile(path string) (*il.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module file %s: %w", path, err)
	}

	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// Decode parses the YAML text form of a module.
func Decode(data []byte) (*il.Module, error) {
	var f File

	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	return Build(&f)
}

// Build creates the module described by f. Every problem found is reported
// in the returned error.
func Build(f *File) (*il.Module, error) {
	if f.Module == "" {
		return nil, fmt.Errorf("%w: missing module name", ErrSyntax)
	}

	d := &decoder{
		module: il.NewModule(f.Module, f.References...),
		refs:   make(map[string]*il.TypeReference),
	}

	for i := range f.Types {
		d.declareType(&f.Types[i], nil)
	}

	for _, e := range d.types {
		d.signatures(e)
	}

	for _, e := range d.types {
		d.members(e)
	}

	if err := d.diags.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	return d.module, nil
}

type typeEntry struct {
	def  *il.TypeDef
	decl *TypeDecl
}

type decoder struct {
	module *il.Module
	refs   map[string]*il.TypeReference
	types  []typeEntry
	diags  diagnostic.Diagnostics
}

// generics resolves "!N" and "!!N" within one declaration context.
type generics struct {
	typeParam   func(int) (*il.GenericParameter, error)
	methodParam func(int) (*il.GenericParameter, error)
}

func paramsOf(owner string, params []*il.GenericParameter) func(int) (*il.GenericParameter, error) {
	return func(i int) (*il.GenericParameter, error) {
		if i < 0 || i >= len(params) {
			return nil, fmt.Errorf("%s has no generic parameter %d", owner, i)
		}

		return params[i], nil
	}
}

func (d *decoder) report(code, element string, err error) {
	d.diags.AddError(code, err.Error(), element)
}

func (d *decoder) declareType(decl *TypeDecl, outer *il.TypeDef) {
	ns, name := "", decl.Name
	if outer == nil {
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			ns, name = name[:i], name[i+1:]
		}
	}

	attrs, err := parseFlags(typeFlags, decl.Flags)
	if err != nil {
		d.report(CodeBadFlag, decl.Name, err)
	}

	t := il.NewType(ns, name, attrs, nil)
	t.PackingSize, t.ClassSize = decl.Packing, decl.Size

	if outer == nil {
		d.module.AddType(t)
	} else {
		outer.AddNestedType(t)
	}

	for _, g := range decl.Generic {
		gp := t.AddGenericParameter(g.Name)
		if gp.Attributes, err = parseFlags(genericFlags, g.Flags); err != nil {
			d.report(CodeBadFlag, t.FullName(), err)
		}
	}

	d.types = append(d.types, typeEntry{def: t, decl: decl})

	for i := range decl.Nested {
		d.declareType(&decl.Nested[i], t)
	}
}

func (d *decoder) typeGenerics(t *il.TypeDef) generics {
	return generics{typeParam: paramsOf(t.FullName(), t.GenericParameters)}
}

func (d *decoder) methodGenerics(m *il.MethodDef) generics {
	g := d.typeGenerics(m.DeclaringType)
	g.methodParam = paramsOf(m.Name, m.GenericParameters)

	return g
}

// signatures resolves everything a method reference may need to match:
// base types, fields and method signatures.
func (d *decoder) signatures(e typeEntry) {
	t, decl := e.def, e.decl
	g := d.typeGenerics(t)
	where := t.FullName()

	if decl.Base != "" {
		t.BaseType = d.typeOrReport(decl.Base, g, where)
	}

	for _, name := range decl.Interfaces {
		if it := d.typeOrReport(name, g, where); it != nil {
			t.Interfaces = append(t.Interfaces, &il.InterfaceImpl{InterfaceType: it})
		}
	}

	for i, gd := range decl.Generic {
		for _, c := range gd.Constraints {
			if ct := d.typeOrReport(c, g, where); ct != nil {
				t.GenericParameters[i].Constraints = append(t.GenericParameters[i].Constraints, ct)
			}
		}
	}

	for _, fd := range decl.Fields {
		attrs, err := parseFlags(fieldFlags, fd.Flags)
		if err != nil {
			d.report(CodeBadFlag, where+"::"+fd.Name, err)
		}

		t.AddField(&il.FieldDef{
			Name:       fd.Name,
			Attributes: attrs,
			FieldType:  d.typeOrReport(fd.Type, g, where+"::"+fd.Name),
			Constant:   fd.Constant,
		})
	}

	for _, md := range decl.Methods {
		d.signature(t, md)
	}
}

func (d *decoder) signature(t *il.TypeDef, md MethodDecl) {
	where := t.FullName() + "::" + md.Name

	attrs, err := parseFlags(methodFlags, md.Flags)
	if err != nil {
		d.report(CodeBadFlag, where, err)
	}

	m := il.NewMethod(md.Name, attrs, il.Void)

	if m.ImplAttributes, err = parseFlags(implFlags, md.Impl); err != nil {
		d.report(CodeBadFlag, where, err)
	}

	t.AddMethod(m)

	for _, gd := range md.Generic {
		gp := m.AddGenericParameter(gd.Name)
		if gp.Attributes, err = parseFlags(genericFlags, gd.Flags); err != nil {
			d.report(CodeBadFlag, where, err)
		}
	}

	g := d.methodGenerics(m)

	for i, gd := range md.Generic {
		for _, c := range gd.Constraints {
			if ct := d.typeOrReport(c, g, where); ct != nil {
				m.GenericParameters[i].Constraints = append(m.GenericParameters[i].Constraints, ct)
			}
		}
	}

	if md.Returns != "" {
		m.ReturnType = d.typeOrReport(md.Returns, g, where)
	}

	for _, pd := range md.Parameters {
		p := m.AddParameter(pd.Name, d.typeOrReport(pd.Type, g, where))
		p.Constant = pd.Constant

		if p.Attributes, err = parseFlags(parameterFlags, pd.Flags); err != nil {
			d.report(CodeBadFlag, where, err)
		}
	}
}

// members decodes what may refer to any method of the module: accessors,
// custom attributes and bodies.
func (d *decoder) members(e typeEntry) {
	t, decl := e.def, e.decl
	where := t.FullName()
	g := d.typeGenerics(t)

	d.attributes(t, decl.Custom, g, where)

	for i, fd := range decl.Fields {
		d.attributes(t.Fields[i], fd.Custom, g, where+"::"+fd.Name)
	}

	for i, md := range decl.Methods {
		m := t.Methods[i]
		mg := d.methodGenerics(m)

		d.attributes(m, md.Custom, mg, where+"::"+md.Name)

		for k, pd := range md.Parameters {
			d.attributes(m.Parameters[k], pd.Custom, mg, where+"::"+md.Name)
		}

		if len(md.Body) > 0 {
			d.body(m, md, mg)
		}
	}

	for _, pd := range decl.Properties {
		attrs, err := parseFlags(propertyFlags, pd.Flags)
		if err != nil {
			d.report(CodeBadFlag, where+"::"+pd.Name, err)
		}

		p := &il.PropertyDef{
			Name:         pd.Name,
			Attributes:   attrs,
			PropertyType: d.typeOrReport(pd.Type, g, where+"::"+pd.Name),
			GetMethod:    d.accessor(t, pd.Get),
			SetMethod:    d.accessor(t, pd.Set),
		}
		t.AddProperty(p)
		d.attributes(p, pd.Custom, g, where+"::"+pd.Name)
	}

	for _, ed := range decl.Events {
		attrs, err := parseFlags(eventFlags, ed.Flags)
		if err != nil {
			d.report(CodeBadFlag, where+"::"+ed.Name, err)
		}

		ev := &il.EventDef{
			Name:         ed.Name,
			Attributes:   attrs,
			EventType:    d.typeOrReport(ed.Type, g, where+"::"+ed.Name),
			AddMethod:    d.accessor(t, ed.Add),
			RemoveMethod: d.accessor(t, ed.Remove),
			InvokeMethod: d.accessor(t, ed.Invoke),
		}
		t.AddEvent(ev)
		d.attributes(ev, ed.Custom, g, where+"::"+ed.Name)
	}
}

func (d *decoder) accessor(t *il.TypeDef, name string) *il.MethodDef {
	if name == "" {
		return nil
	}

	m := t.Method(name)
	if m == nil {
		d.report(CodeUnknownMember, t.FullName(), fmt.Errorf("no accessor method %q", name))
	}

	return m
}

func (d *decoder) attributes(owner il.AttributeProvider, decls []AttributeDecl, g generics, where string) {
	list := owner.CustomAttributeList()

	for _, ad := range decls {
		ctor, err := d.methodRef(ad.Ctor, g)
		if err != nil {
			d.report(CodeUnknownMember, where, err)
			continue
		}

		a := &il.CustomAttribute{Constructor: ctor}

		for _, arg := range ad.Args {
			t := d.typeOrReport(arg.Type, g, where)
			value := arg.Value

			if name, ok := value.(string); ok && t != nil && t.FullName() == il.Type.FullName() {
				value = d.typeOrReport(name, g, where)
			}

			a.Arguments = append(a.Arguments, il.AttributeArgument{Type: t, Value: value})
		}

		*list = append(*list, a)
	}
}

func (d *decoder) typeOrReport(s string, g generics, where string) il.TypeRef {
	t, err := d.typeRef(s, g)
	if err != nil {
		d.report(CodeUnknownType, where, err)
		return nil
	}

	return t
}

func (d *decoder) typeRef(s string, g generics) (il.TypeRef, error) {
	e, err := parseType(s)
	if err != nil {
		return nil, err
	}

	return d.resolveType(e, g)
}

func (d *decoder) resolveType(e *typeExpr, g generics) (il.TypeRef, error) {
	var (
		t   il.TypeRef
		err error
	)

	if e.param >= 0 {
		lookup := g.typeParam
		if e.methodParam {
			lookup = g.methodParam
		}

		if lookup == nil {
			return nil, fmt.Errorf("generic parameter %d used outside a generic context", e.param)
		}

		if t, err = lookup(e.param); err != nil {
			return nil, err
		}
	} else {
		if t, err = d.named(e.scope, e.name); err != nil {
			return nil, err
		}

		if len(e.args) > 0 {
			args := make([]il.TypeRef, len(e.args))
			for i, arg := range e.args {
				if args[i], err = d.resolveType(arg, g); err != nil {
					return nil, err
				}
			}

			t = &il.GenericInstanceType{ElementType: t, Arguments: args}
		}
	}

	for _, rank := range e.ranks {
		t = &il.ArrayType{ElementType: t, Rank: rank}
	}

	return t, nil
}

func (d *decoder) named(scope, name string) (il.TypeRef, error) {
	switch scope {
	case "":
		if p, ok := primitives[name]; ok {
			return p, nil
		}

		if def := d.module.Type(name); def != nil {
			return def, nil
		}

		if core, ok := il.CoreType(name); ok {
			return core, nil
		}

		return nil, fmt.Errorf("unknown type %q; write [Scope]%s for types of other modules", name, name)

	case d.module.Name:
		if def := d.module.Type(name); def != nil {
			return def, nil
		}

		return nil, fmt.Errorf("unknown type %q", name)

	case il.CoreScope:
		if core, ok := il.CoreType(name); ok {
			return core, nil
		}
	}

	if !d.module.CanReference(scope) {
		return nil, fmt.Errorf("module %s does not reference %s", d.module.Name, scope)
	}

	return d.reference(scope, name), nil
}

// reference returns the shared reference to scope's type name, so that
// placeholders of an open generic reference are shared too.
func (d *decoder) reference(scope, name string) *il.TypeReference {
	key := scope + "|" + name
	if r, ok := d.refs[key]; ok {
		return r
	}

	r := &il.TypeReference{Module: d.module, ScopeName: scope}

	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		r.DeclaringType = d.reference(scope, name[:i])
		r.Name = name[i+1:]
	} else if i := strings.LastIndexByte(name, '.'); i >= 0 {
		r.Namespace, r.Name = name[:i], name[i+1:]
	} else {
		r.Name = name
	}

	d.refs[key] = r

	return r
}

func (d *decoder) methodRef(s string, g generics) (il.MethodRef, error) {
	e, err := parseMethod(s)
	if err != nil {
		return nil, err
	}

	decl, err := d.resolveType(e.decl, g)
	if err != nil {
		return nil, err
	}

	args := make([]il.TypeRef, len(e.args))
	for i, arg := range e.args {
		if args[i], err = d.resolveType(arg, g); err != nil {
			return nil, err
		}
	}

	ref := &il.MethodReference{DeclaringType: decl, Name: e.name, HasThis: e.hasThis}
	if e.generic && len(e.args) > 0 {
		ref.GenericParameter(len(e.args) - 1)
	}

	inner := generics{methodParam: func(i int) (*il.GenericParameter, error) {
		return ref.GenericParameter(i), nil
	}}

	switch elem := il.ElementTypeOf(decl).(type) {
	case *il.TypeDef:
		inner.typeParam = paramsOf(elem.FullName(), elem.GenericParameters)
	case *il.TypeReference:
		inner.typeParam = func(i int) (*il.GenericParameter, error) { return elem.GenericParameter(i), nil }
	default:
		return nil, fmt.Errorf("methods of %s cannot be referenced", decl)
	}

	if ref.ReturnType, err = d.resolveType(e.ret, inner); err != nil {
		return nil, err
	}

	ref.ParameterTypes = make([]il.TypeRef, len(e.params))
	for i, p := range e.params {
		if ref.ParameterTypes[i], err = d.resolveType(p, inner); err != nil {
			return nil, err
		}
	}

	var method il.MethodRef = ref

	if def, ok := decl.(*il.TypeDef); ok {
		if method, err = definition(def, ref); err != nil {
			return nil, err
		}
	}

	if e.generic {
		return &il.GenericInstanceMethod{ElementMethod: method, Arguments: args}, nil
	}

	return method, nil
}

// definition finds the method of def matching ref by name and signature.
func definition(def *il.TypeDef, ref *il.MethodReference) (*il.MethodDef, error) {
	want := il.MethodKey(ref)

	for _, m := range def.Methods {
		if il.MethodKey(m) == want {
			return m, nil
		}
	}

	return nil, fmt.Errorf("%s has no method %s", def, want)
}

func (d *decoder) fieldRef(s string, g generics) (il.FieldRef, error) {
	e, err := parseField(s)
	if err != nil {
		return nil, err
	}

	decl, err := d.resolveType(e.decl, g)
	if err != nil {
		return nil, err
	}

	if def, ok := decl.(*il.TypeDef); ok {
		if f := def.Field(e.name); f != nil {
			return f, nil
		}

		return nil, fmt.Errorf("%s has no field %s", def, e.name)
	}

	var inner generics

	switch elem := il.ElementTypeOf(decl).(type) {
	case *il.TypeDef:
		inner.typeParam = paramsOf(elem.FullName(), elem.GenericParameters)
	case *il.TypeReference:
		inner.typeParam = func(i int) (*il.GenericParameter, error) { return elem.GenericParameter(i), nil }
	default:
		return nil, fmt.Errorf("fields of %s cannot be referenced", decl)
	}

	t, err := d.resolveType(e.typ, inner)
	if err != nil {
		return nil, err
	}

	return &il.FieldReference{DeclaringType: decl, Name: e.name, FieldType: t}, nil
}

// body decodes the instructions of md. Labels may be used before they are
// defined.
func (d *decoder) body(m *il.MethodDef, md MethodDecl, g generics) {
	where := m.DeclaringType.FullName() + "::" + m.Name
	b := il.NewBody(m)

	if md.MaxStack > 0 {
		b.MaxStack = md.MaxStack
	}

	if md.InitLocals != nil {
		b.InitLocals = *md.InitLocals
	}

	if md.Scope {
		b.Scope = &il.DebugScope{}
	}

	for _, local := range md.Locals {
		b.AddVariable(d.typeOrReport(local, g, where))
	}

	labels := make(map[string]*il.Instruction)

	type pending struct {
		ins     *il.Instruction
		operand string
	}

	var branches []pending

	for _, line := range md.Body {
		label, code, operand, err := splitInstruction(line)
		if err != nil {
			d.report(CodeBadOperand, where, err)
			continue
		}

		ins := b.Emit(code, nil)

		if label != "" {
			labels[label] = ins
		}

		switch code.Operand {
		case il.OperandBranch, il.OperandSwitch:
			branches = append(branches, pending{ins: ins, operand: operand})
			continue
		}

		if ins.Operand, err = d.operand(b, code, operand, g); err != nil {
			d.report(CodeBadOperand, where, fmt.Errorf("%s: %w", line, err))
		}
	}

	lookup := func(label string) *il.Instruction {
		if label == "" {
			return nil
		}

		ins, ok := labels[label]
		if !ok {
			d.report(CodeBadLabel, where, fmt.Errorf("undefined label %q", label))
		}

		return ins
	}

	for _, p := range branches {
		if p.ins.OpCode.Operand == il.OperandBranch {
			p.ins.Operand = lookup(p.operand)
			continue
		}

		inner := strings.TrimSuffix(strings.TrimPrefix(p.operand, "("), ")")

		var targets []*il.Instruction
		for _, label := range strings.Split(inner, ",") {
			targets = append(targets, lookup(strings.TrimSpace(label)))
		}

		p.ins.Operand = targets
	}

	for _, hd := range md.Handlers {
		kind, err := handlerType(hd.Kind)
		if err != nil {
			d.report(CodeBadOperand, where, err)
			continue
		}

		h := &il.ExceptionHandler{
			HandlerType:  kind,
			TryStart:     lookup(hd.TryStart),
			TryEnd:       lookup(hd.TryEnd),
			FilterStart:  lookup(hd.FilterStart),
			HandlerStart: lookup(hd.HandlerStart),
			HandlerEnd:   lookup(hd.HandlerEnd),
		}

		if hd.Catch != "" {
			h.CatchType = d.typeOrReport(hd.Catch, g, where)
		}

		b.ExceptionHandlers = append(b.ExceptionHandlers, h)
	}

	b.ComputeOffsets()
}

// splitInstruction splits "label: opcode operand".
func splitInstruction(line string) (label string, code *il.OpCode, operand string, err error) {
	line = strings.TrimSpace(line)

	if i := strings.IndexByte(line, ':'); i > 0 && !strings.ContainsAny(line[:i], " \t") &&
		(i+1 == len(line) || line[i+1] != ':') {
		label, line = line[:i], strings.TrimSpace(line[i+1:])
	}

	name, operand, _ := strings.Cut(line, " ")

	code, ok := il.OpCodeByName(name)
	if !ok {
		return "", nil, "", fmt.Errorf("unknown opcode %q", name)
	}

	return label, code, strings.TrimSpace(operand), nil
}

func (d *decoder) operand(b *il.MethodBody, code *il.OpCode, s string, g generics) (any, error) {
	if code.Operand != il.OperandNone && s == "" {
		return nil, fmt.Errorf("%s needs an operand", code)
	}

	switch code.Operand {
	case il.OperandNone:
		if s != "" {
			return nil, fmt.Errorf("%s takes no operand", code)
		}

		return nil, nil

	case il.OperandType:
		return d.typeRef(s, g)

	case il.OperandMethod:
		return d.methodRef(s, g)

	case il.OperandField:
		return d.fieldRef(s, g)

	case il.OperandToken:
		kind, rest, _ := strings.Cut(s, " ")

		switch kind {
		case "type":
			return d.typeRef(rest, g)
		case "method":
			return d.methodRef(rest, g)
		case "field":
			return d.fieldRef(rest, g)
		}

		return nil, fmt.Errorf("token %q must start with type, method or field", s)

	case il.OperandVariable:
		i, err := strconv.Atoi(strings.TrimPrefix(s, "V_"))
		if err != nil || i < 0 || i >= len(b.Variables) {
			return nil, fmt.Errorf("no local %s", s)
		}

		return b.Variables[i], nil

	case il.OperandArgument:
		return argument(b, s)

	case il.OperandInt32:
		v, err := strconv.ParseInt(s, 0, 32)
		return int32(v), err

	case il.OperandInt64:
		return strconv.ParseInt(s, 0, 64)

	case il.OperandFloat64:
		return strconv.ParseFloat(s, 64)

	case il.OperandString:
		return strconv.Unquote(s)

	default:
		return nil, fmt.Errorf("%s operands have no text form", code.Operand)
	}
}

func argument(b *il.MethodBody, s string) (*il.Parameter, error) {
	if s == "this" {
		if this := b.ThisParameter(); this != nil {
			return this, nil
		}

		return nil, fmt.Errorf("static method %s has no this", b.Method.Name)
	}

	for _, p := range b.Method.Parameters {
		if p.Name == s {
			return p, nil
		}
	}

	if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(b.Method.Parameters) {
		return b.Method.Parameters[i], nil
	}

	return nil, fmt.Errorf("no parameter %s", s)
}

var handlerTypes = map[string]il.HandlerType{
	"catch":   il.HandlerCatch,
	"filter":  il.HandlerFilter,
	"finally": il.HandlerFinally,
	"fault":   il.HandlerFault,
}

func handlerType(s string) (il.HandlerType, error) {
	if t, ok := handlerTypes[s]; ok {
		return t, nil
	}

	return 0, fmt.Errorf("unknown handler kind %q", s)
}
