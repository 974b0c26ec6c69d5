package ilasm

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ilclone/internal/il"
)

// Encode renders m in the YAML text form. Instruction offsets of every body
// are recomputed so that branch labels are stable.
func Encode(m *il.Module) ([]byte, error) {
	f, err := Flatten(m)
	if err != nil {
		return nil, err
	}

	return yaml.Marshal(f)
}

// WriteFile encodes m into path.
func WriteFile(path string, m *il.Module) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write module file %s: %w", path, err)
	}

	return nil
}

// Flatten converts m into its declaration tree.
func Flatten(m *il.Module) (*File, error) {
	e := &encoder{module: m}
	f := &File{Module: m.Name, References: m.References}

	for _, t := range m.Types {
		f.Types = append(f.Types, e.typeDecl(t))
	}

	if e.err != nil {
		return nil, e.err
	}

	return f, nil
}

type encoder struct {
	module *il.Module
	err    error
}

func (e *encoder) fail(format string, args ...any) {
	if e.err == nil {
		e.err = fmt.Errorf(format, args...)
	}
}

func (e *encoder) typeDecl(t *il.TypeDef) TypeDecl {
	name := t.Name
	if t.DeclaringType == nil {
		name = t.FullName()
	}

	decl := TypeDecl{
		Name:    name,
		Flags:   formatFlags(typeFlags, t.Attributes),
		Generic: e.generics(t.GenericParameters),
		Packing: t.PackingSize,
		Size:    t.ClassSize,
		Custom:  e.attributes(t.CustomAttributes),
	}

	if t.BaseType != nil {
		decl.Base = e.typeName(t.BaseType)
	}

	for _, impl := range t.Interfaces {
		decl.Interfaces = append(decl.Interfaces, e.typeName(impl.InterfaceType))
	}

	for _, f := range t.Fields {
		decl.Fields = append(decl.Fields, FieldDecl{
			Name:     f.Name,
			Type:     e.typeName(f.FieldType),
			Flags:    formatFlags(fieldFlags, f.Attributes),
			Constant: f.Constant,
			Custom:   e.attributes(f.CustomAttributes),
		})
	}

	for _, m := range t.Methods {
		decl.Methods = append(decl.Methods, e.methodDecl(m))
	}

	for _, p := range t.Properties {
		decl.Properties = append(decl.Properties, PropertyDecl{
			Name:   p.Name,
			Type:   e.typeName(p.PropertyType),
			Flags:  formatFlags(propertyFlags, p.Attributes),
			Get:    accessorName(p.GetMethod),
			Set:    accessorName(p.SetMethod),
			Custom: e.attributes(p.CustomAttributes),
		})
	}

	for _, ev := range t.Events {
		decl.Events = append(decl.Events, EventDecl{
			Name:   ev.Name,
			Type:   e.typeName(ev.EventType),
			Flags:  formatFlags(eventFlags, ev.Attributes),
			Add:    accessorName(ev.AddMethod),
			Remove: accessorName(ev.RemoveMethod),
			Invoke: accessorName(ev.InvokeMethod),
			Custom: e.attributes(ev.CustomAttributes),
		})
	}

	for _, n := range t.NestedTypes {
		decl.Nested = append(decl.Nested, e.typeDecl(n))
	}

	return decl
}

func accessorName(m *il.MethodDef) string {
	if m == nil {
		return ""
	}

	return m.Name
}

func (e *encoder) generics(params []*il.GenericParameter) []GenericDecl {
	var out []GenericDecl

	for _, gp := range params {
		g := GenericDecl{Name: gp.Name, Flags: formatFlags(genericFlags, gp.Attributes)}
		for _, c := range gp.Constraints {
			g.Constraints = append(g.Constraints, e.typeName(c))
		}

		out = append(out, g)
	}

	return out
}

func (e *encoder) methodDecl(m *il.MethodDef) MethodDecl {
	decl := MethodDecl{
		Name:    m.Name,
		Flags:   formatFlags(methodFlags, m.Attributes),
		Impl:    formatFlags(implFlags, m.ImplAttributes),
		Generic: e.generics(m.GenericParameters),
		Custom:  e.attributes(m.CustomAttributes),
	}

	if !il.IsVoid(m.ReturnType) {
		decl.Returns = e.typeName(m.ReturnType)
	}

	for _, p := range m.Parameters {
		decl.Parameters = append(decl.Parameters, ParamDecl{
			Name:     p.Name,
			Type:     e.typeName(p.ParameterType),
			Flags:    formatFlags(parameterFlags, p.Attributes),
			Constant: p.Constant,
			Custom:   e.attributes(p.CustomAttributes),
		})
	}

	if m.Body != nil {
		e.body(&decl, m.Body)
	}

	return decl
}

func (e *encoder) body(decl *MethodDecl, b *il.MethodBody) {
	b.ComputeOffsets()

	initLocals := b.InitLocals
	decl.MaxStack = b.MaxStack
	decl.InitLocals = &initLocals
	decl.Scope = b.Scope != nil

	for _, v := range b.Variables {
		decl.Locals = append(decl.Locals, e.typeName(v.VariableType))
	}

	targets := make(map[*il.Instruction]bool)
	mark := func(ins *il.Instruction) string {
		if ins == nil {
			return ""
		}

		targets[ins] = true

		return ins.Label()
	}

	for _, ins := range b.Instructions {
		switch op := ins.Operand.(type) {
		case *il.Instruction:
			mark(op)
		case []*il.Instruction:
			for _, t := range op {
				mark(t)
			}
		}
	}

	for _, h := range b.ExceptionHandlers {
		hd := HandlerDecl{
			Kind:         h.HandlerType.String(),
			TryStart:     mark(h.TryStart),
			TryEnd:       mark(h.TryEnd),
			FilterStart:  mark(h.FilterStart),
			HandlerStart: mark(h.HandlerStart),
			HandlerEnd:   mark(h.HandlerEnd),
		}

		if h.CatchType != nil {
			hd.Catch = e.typeName(h.CatchType)
		}

		decl.Handlers = append(decl.Handlers, hd)
	}

	for _, ins := range b.Instructions {
		line := ins.OpCode.Name
		if operand := e.operand(ins); operand != "" {
			line += " " + operand
		}

		if targets[ins] {
			line = ins.Label() + ": " + line
		}

		decl.Body = append(decl.Body, line)
	}
}

func (e *encoder) operand(ins *il.Instruction) string {
	switch op := ins.Operand.(type) {
	case nil:
		return ""
	case *il.Instruction:
		return op.Label()
	case []*il.Instruction:
		labels := make([]string, len(op))
		for i, t := range op {
			labels[i] = t.Label()
		}

		return "(" + strings.Join(labels, ", ") + ")"
	case *il.Variable:
		return op.String()
	case *il.Parameter:
		return op.String()
	case int32:
		return strconv.FormatInt(int64(op), 10)
	case int64:
		return strconv.FormatInt(op, 10)
	case float64:
		return strconv.FormatFloat(op, 'g', -1, 64)
	case string:
		return strconv.Quote(op)
	case il.TypeRef:
		if ins.OpCode.Operand == il.OperandToken {
			return "type " + e.typeName(op)
		}

		return e.typeName(op)
	case il.MethodRef:
		if ins.OpCode.Operand == il.OperandToken {
			return "method " + e.methodName(op)
		}

		return e.methodName(op)
	case il.FieldRef:
		if ins.OpCode.Operand == il.OperandToken {
			return "field " + e.fieldName(op)
		}

		return e.fieldName(op)
	}

	e.fail("%s: operand %T has no text form", ins.OpCode, ins.Operand)

	return ""
}

func (e *encoder) attributes(attrs []*il.CustomAttribute) []AttributeDecl {
	var out []AttributeDecl

	for _, a := range attrs {
		decl := AttributeDecl{Ctor: e.methodName(a.Constructor)}

		for _, arg := range a.Arguments {
			value := arg.Value
			if t, ok := value.(il.TypeRef); ok {
				value = e.typeName(t)
			}

			decl.Args = append(decl.Args, ArgDecl{Type: e.typeName(arg.Type), Value: value})
		}

		out = append(out, decl)
	}

	return out
}

var aliases = func() map[string]string {
	out := make(map[string]string, len(primitives))
	for alias, t := range primitives {
		out[t.FullName()] = alias
	}

	return out
}()

// typeName is the inverse of decoder.resolveType.
func (e *encoder) typeName(t il.TypeRef) string {
	switch t := t.(type) {
	case nil:
		return "void"

	case *il.GenericParameter:
		if t.IsMethodParameter() {
			return "!!" + strconv.Itoa(t.Position)
		}

		return "!" + strconv.Itoa(t.Position)

	case *il.ArrayType:
		return e.typeName(t.ElementType) + "[" + strings.Repeat(",", max(t.Rank-1, 0)) + "]"

	case *il.GenericInstanceType:
		args := make([]string, len(t.Arguments))
		for i, arg := range t.Arguments {
			args[i] = e.typeName(arg)
		}

		return e.typeName(t.ElementType) + "<" + strings.Join(args, ", ") + ">"

	case *il.TypeDef:
		if t.Module != e.module {
			e.fail("type %s is defined in another module", t)
		}

		return t.FullName()
	}

	name := t.FullName()

	switch t.Scope() {
	case il.CoreScope:
		if alias, ok := aliases[name]; ok {
			return alias
		}

		return name
	case e.module.Name:
		return name
	}

	return "[" + t.Scope() + "]" + name
}

func (e *encoder) methodName(m il.MethodRef) string {
	var args []il.TypeRef

	if g, ok := m.(*il.GenericInstanceMethod); ok {
		args, m = g.Arguments, g.ElementMethod
	}

	ret, params := m.Signature()

	var b strings.Builder

	if m.Instance() {
		b.WriteString("instance ")
	}

	b.WriteString(e.typeName(ret))
	b.WriteByte(' ')
	b.WriteString(e.typeName(m.DeclaringTypeRef()))
	b.WriteString("::")
	b.WriteString(m.MethodName())

	if args != nil {
		names := make([]string, len(args))
		for i, arg := range args {
			names[i] = e.typeName(arg)
		}

		b.WriteString("<" + strings.Join(names, ", ") + ">")
	}

	names := make([]string, len(params))
	for i, p := range params {
		names[i] = e.typeName(p)
	}

	b.WriteString("(" + strings.Join(names, ", ") + ")")

	return b.String()
}

func (e *encoder) fieldName(f il.FieldRef) string {
	return e.typeName(f.Type()) + " " + e.typeName(f.DeclaringTypeRef()) + "::" + f.FieldName()
}
