package graph

import "ilclone/internal/il"

// childGroup is one ordered list of children of an element. Members of a
// group are linked by previous-sibling edges when the group is ordered.
type childGroup struct {
	elements []il.Element
	ordered  bool
}

func group[T il.Element](ordered bool, items []T) childGroup {
	out := make([]il.Element, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}

	return childGroup{elements: out, ordered: ordered}
}

// childrenOf returns the containment children of el in declaration order.
func childrenOf(el il.Element) []childGroup {
	switch el := el.(type) {
	case *il.Module:
		return []childGroup{group(false, el.Types)}

	case *il.TypeDef:
		return []childGroup{
			group(true, el.GenericParameters),
			group(false, el.CustomAttributes),
			group(false, el.NestedTypes),
			group(false, el.Fields),
			group(false, el.Methods),
			group(false, el.Properties),
			group(false, el.Events),
		}

	case *il.MethodDef:
		groups := []childGroup{
			group(true, el.GenericParameters),
			group(true, el.Parameters),
			group(false, el.CustomAttributes),
		}

		if el.Body != nil {
			groups = append(groups, childGroup{elements: []il.Element{el.Body}})
		}

		return groups

	case *il.MethodBody:
		return []childGroup{
			group(true, el.Variables),
			group(true, el.Instructions),
			group(true, el.ExceptionHandlers),
		}

	case il.AttributeProvider:
		return []childGroup{group(false, *el.CustomAttributeList())}

	default:
		return nil
	}
}

// referencesOf returns every element el refers to outside containment.
// Callers keep only those that are nodes of the graph.
func referencesOf(el il.Element) []il.Element {
	var c collector

	switch el := el.(type) {
	case *il.TypeDef:
		c.typeRef(el.BaseType)
		for _, impl := range el.Interfaces {
			c.typeRef(impl.InterfaceType)
		}

	case *il.FieldDef:
		c.typeRef(el.FieldType)

	case *il.MethodDef:
		c.typeRef(el.ReturnType)

	case *il.Parameter:
		c.typeRef(el.ParameterType)

	case *il.Variable:
		c.typeRef(el.VariableType)

	case *il.GenericParameter:
		for _, constraint := range el.Constraints {
			c.typeRef(constraint)
		}

	case *il.PropertyDef:
		c.typeRef(el.PropertyType)
		c.method(el.GetMethod)
		c.method(el.SetMethod)

	case *il.EventDef:
		c.typeRef(el.EventType)
		c.method(el.AddMethod)
		c.method(el.RemoveMethod)
		c.method(el.InvokeMethod)

	case *il.CustomAttribute:
		c.methodRef(el.Constructor)
		for _, arg := range el.Arguments {
			c.typeRef(arg.Type)
			if t, ok := arg.Value.(il.TypeRef); ok {
				c.typeRef(t)
			}
		}

	case *il.Instruction:
		c.operand(el.Operand)

	case *il.ExceptionHandler:
		c.instruction(el.TryStart)
		c.instruction(el.TryEnd)
		c.instruction(el.FilterStart)
		c.instruction(el.HandlerStart)
		c.instruction(el.HandlerEnd)
		c.typeRef(el.CatchType)
	}

	return c.out
}

type collector struct {
	out []il.Element
}

func (c *collector) add(el il.Element) {
	c.out = append(c.out, el)
}

func (c *collector) instruction(ins *il.Instruction) {
	if ins != nil {
		c.add(ins)
	}
}

func (c *collector) method(m *il.MethodDef) {
	if m != nil {
		c.add(m)
	}
}

func (c *collector) typeRef(t il.TypeRef) {
	switch t := t.(type) {
	case *il.TypeDef:
		c.add(t)
	case *il.GenericParameter:
		c.add(t)
	case *il.ArrayType:
		c.typeRef(t.ElementType)
	case *il.GenericInstanceType:
		c.typeRef(t.ElementType)
		for _, arg := range t.Arguments {
			c.typeRef(arg)
		}
	}
}

func (c *collector) methodRef(m il.MethodRef) {
	switch m := m.(type) {
	case *il.MethodDef:
		c.add(m)
	case *il.MethodReference:
		c.typeRef(m.DeclaringType)
		c.typeRef(m.ReturnType)
		for _, p := range m.ParameterTypes {
			c.typeRef(p)
		}
	case *il.GenericInstanceMethod:
		c.methodRef(m.ElementMethod)
		for _, arg := range m.Arguments {
			c.typeRef(arg)
		}
	}
}

func (c *collector) fieldRef(f il.FieldRef) {
	switch f := f.(type) {
	case *il.FieldDef:
		c.add(f)
	case *il.FieldReference:
		c.typeRef(f.DeclaringType)
		c.typeRef(f.FieldType)
	}
}

func (c *collector) operand(op any) {
	switch op := op.(type) {
	case *il.Instruction:
		c.instruction(op)
	case []*il.Instruction:
		for _, target := range op {
			c.instruction(target)
		}
	case *il.Variable:
		c.add(op)
	case *il.Parameter:
		if !op.IsThis() {
			c.add(op)
		}
	case il.TypeRef:
		c.typeRef(op)
	case il.MethodRef:
		c.methodRef(op)
	case il.FieldRef:
		c.fieldRef(op)
	}
}
