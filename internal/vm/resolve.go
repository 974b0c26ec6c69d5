package vm

import (
	"fmt"

	"ilclone/internal/il"
)

// context binds the generic parameters of the executing method.
type context struct {
	typeArgs   []il.TypeRef
	methodArgs []il.TypeRef
}

func contextOf(t il.TypeRef) context {
	if gi, ok := t.(*il.GenericInstanceType); ok {
		return context{typeArgs: gi.Arguments}
	}

	return context{}
}

// substitute closes t over the bound arguments. Unbound parameters stay as
// they are.
func (c context) substitute(t il.TypeRef) il.TypeRef {
	switch t := t.(type) {
	case *il.GenericParameter:
		args := c.typeArgs
		if t.IsMethodParameter() {
			args = c.methodArgs
		}

		if t.Position < len(args) {
			return args[t.Position]
		}

		return t

	case *il.GenericInstanceType:
		args := make([]il.TypeRef, len(t.Arguments))
		for i, arg := range t.Arguments {
			args[i] = c.substitute(arg)
		}

		return &il.GenericInstanceType{ElementType: t.ElementType, Arguments: args}

	case *il.ArrayType:
		return &il.ArrayType{ElementType: c.substitute(t.ElementType), Rank: t.Rank}
	}

	return t
}

func (c context) substituteAll(types []il.TypeRef) []il.TypeRef {
	out := make([]il.TypeRef, len(types))
	for i, t := range types {
		out[i] = c.substitute(t)
	}

	return out
}

// callee is a resolved call target: a definition to interpret or an
// intrinsic, with its generic bindings.
type callee struct {
	def       *il.MethodDef
	intrinsic *intrinsic
	declaring il.TypeRef
	ctx       context
}

func (c callee) String() string {
	if c.def != nil {
		return c.def.FullName()
	}

	return c.intrinsic.name
}

func (c callee) instance() bool {
	if c.def != nil {
		return c.def.Instance()
	}

	return c.intrinsic.instance
}

func (c callee) arity() int {
	if c.def != nil {
		return len(c.def.Parameters)
	}

	return c.intrinsic.params
}

func (c callee) returns() bool {
	if c.def != nil {
		return !il.IsVoid(c.def.ReturnType)
	}

	return c.intrinsic.returns
}

// resolveMethod finds the target of a method operand in the context of the
// calling frame.
func (vm *VM) resolveMethod(ref il.MethodRef, ctx context) (callee, error) {
	switch m := ref.(type) {
	case *il.GenericInstanceMethod:
		c, err := vm.resolveMethod(m.ElementMethod, ctx)
		if err != nil {
			return callee{}, err
		}

		c.ctx.methodArgs = ctx.substituteAll(m.Arguments)

		return c, nil

	case *il.MethodDef:
		return callee{def: m, declaring: m.DeclaringType}, nil

	case *il.MethodReference:
		declaring := ctx.substitute(m.DeclaringType)
		c := callee{declaring: declaring, ctx: contextOf(declaring)}

		def := vm.typeDef(declaring)
		if def == nil {
			in, ok := intrinsics[il.ElementTypeOf(declaring).FullName()+"::"+m.Name]
			if !ok || in.params != len(m.ParameterTypes) {
				return callee{}, fmt.Errorf("%w: method %s", ErrUnresolved, m)
			}

			c.intrinsic = in

			return c, nil
		}

		want := il.MethodKey(m)
		for _, candidate := range def.Methods {
			if il.MethodKey(candidate) == want {
				c.def = candidate
				return c, nil
			}
		}

		return callee{}, fmt.Errorf("%w: %s has no method %s", ErrUnresolved, def, want)
	}

	return callee{}, fmt.Errorf("%w: method operand %T", ErrUnsupported, ref)
}

// override finds the implementation of c for the runtime type of this.
func (vm *VM) override(c callee, this Value) callee {
	obj, ok := this.(*Object)
	if !ok || c.def == nil || c.def.Attributes&(il.MethodVirtual|il.MethodAbstract) == 0 {
		return c
	}

	want := il.MethodKey(c.def)

	for cur := obj.Type; cur != nil; {
		def := vm.typeDef(cur)
		if def == nil {
			break
		}

		ctx := contextOf(cur)

		for _, m := range def.Methods {
			if m.Body != nil && m.Name == c.def.Name && il.MethodKey(m) == want {
				return callee{def: m, declaring: cur, ctx: context{typeArgs: ctx.typeArgs, methodArgs: c.ctx.methodArgs}}
			}
		}

		cur = ctx.substitute(def.BaseType)
	}

	return c
}

// receiverContext binds the type arguments of a definition called directly
// on an instance of one of its generic instantiations.
func (vm *VM) receiverContext(c callee, this Value) callee {
	if c.def == nil || len(c.ctx.typeArgs) > 0 || len(c.def.DeclaringType.GenericParameters) == 0 {
		return c
	}

	obj, ok := this.(*Object)
	if !ok {
		return c
	}

	for cur := obj.Type; cur != nil; {
		def := vm.typeDef(cur)
		if def == nil {
			break
		}

		ctx := contextOf(cur)
		if def == c.def.DeclaringType {
			c.ctx.typeArgs = ctx.typeArgs
			break
		}

		cur = ctx.substitute(def.BaseType)
	}

	return c
}

// staticField returns the definition of a static field operand.
func (vm *VM) staticField(ref il.FieldRef) (*il.FieldDef, error) {
	if f, ok := ref.(*il.FieldDef); ok {
		return f, nil
	}

	if def := vm.typeDef(ref.DeclaringTypeRef()); def != nil {
		if f := def.Field(ref.FieldName()); f != nil {
			return f, nil
		}
	}

	return nil, fmt.Errorf("%w: field %s", ErrUnresolved, ref.FullName())
}

// isInstance reports whether v is assignable to the closed type t.
func (vm *VM) isInstance(v Value, t il.TypeRef) bool {
	name := il.ElementTypeOf(t).FullName()
	if name == il.Object.FullName() {
		return v != nil
	}

	switch v := v.(type) {
	case nil:
		return false
	case int32:
		return name == il.Int32.FullName() || name == il.Boolean.FullName()
	case int64:
		return name == il.Int64.FullName()
	case float64:
		return name == il.Double.FullName()
	case string:
		return name == il.String.FullName()
	case *Object:
		for cur := v.Type; cur != nil; {
			if il.ElementTypeOf(cur).FullName() == name {
				return true
			}

			def := vm.typeDef(cur)
			if def == nil {
				return false
			}

			if implementsGeneric(def, name) {
				return true
			}

			cur = contextOf(cur).substitute(def.BaseType)
		}
	}

	return false
}

func implementsGeneric(def *il.TypeDef, name string) bool {
	for _, impl := range def.Interfaces {
		if il.ElementTypeOf(impl.InterfaceType).FullName() == name {
			return true
		}
	}

	return false
}
