package clone

import (
	"ilclone/internal/il"
)

// signatureCloner clones a method declaration; parameters, generic
// parameters and the body are cloned by their own cloners.
type signatureCloner struct{}

func (signatureCloner) acquire(c *Context, r *record) (il.Element, error) {
	owner, err := targetAs[*il.TypeDef](c, r.parent)
	if err != nil {
		return nil, err
	}

	source := r.source.(*il.MethodDef)
	m := il.NewMethod(source.Name, source.Attributes, nil)
	m.ImplAttributes = source.ImplAttributes
	owner.AddMethod(m)

	return m, nil
}

func (signatureCloner) populate(c *Context, r *record) error {
	source := r.source.(*il.MethodDef)
	target := r.target.(*il.MethodDef)

	ret, err := c.importType(r, source.ReturnType)
	if err != nil {
		return err
	}

	target.ReturnType = ret

	return nil
}

// bodyCloner clones a whole body into a fresh method.
type bodyCloner struct{}

func (bodyCloner) acquire(c *Context, r *record) (il.Element, error) {
	m, err := targetAs[*il.MethodDef](c, r.parent)
	if err != nil {
		return nil, err
	}

	body := il.NewBody(m)
	body.MaxStack, body.InitLocals = 0, false

	return body, nil
}

func (bodyCloner) populate(_ *Context, r *record) error {
	return copyBody(r.source.(*il.MethodBody), r.target.(*il.MethodBody))
}

// copyBody carries the body settings over; a target body that already has
// code keeps the larger stack and initializes locals if either side does.
func copyBody(source, target *il.MethodBody) error {
	if source.Scope != nil {
		return fail(ErrUnsupported, source, "bodies with debug scopes cannot be cloned")
	}

	target.MaxStack = max(target.MaxStack, source.MaxStack)
	target.InitLocals = target.InitLocals || source.InitLocals

	return nil
}

type variableCloner struct{}

func (variableCloner) acquire(c *Context, r *record) (il.Element, error) {
	body, err := targetAs[*il.MethodBody](c, r.parent)
	if err != nil {
		return nil, err
	}

	prev, err := c.previousTarget(r)
	if err != nil {
		return nil, err
	}

	after, _ := prev.(*il.Variable)
	if after == nil && len(body.Variables) > 0 {
		after = body.Variables[len(body.Variables)-1]
	}

	v := &il.Variable{}
	body.InsertVariableAfter(after, v)

	return v, nil
}

func (variableCloner) populate(c *Context, r *record) error {
	t, err := c.importType(r, r.source.(*il.Variable).VariableType)
	if err != nil {
		return err
	}

	r.target.(*il.Variable).VariableType = t

	return nil
}

type instructionCloner struct{}

func (instructionCloner) acquire(c *Context, r *record) (il.Element, error) {
	body, err := targetAs[*il.MethodBody](c, r.parent)
	if err != nil {
		return nil, err
	}

	prev, err := c.previousTarget(r)
	if err != nil {
		return nil, err
	}

	previous, _ := prev.(*il.Instruction)
	ins := &il.Instruction{OpCode: r.source.(*il.Instruction).OpCode}

	if err := body.InsertAfter(previous, ins); err != nil {
		return nil, wrap(ErrDispatchGap, r.source, err)
	}

	return ins, nil
}

func (instructionCloner) populate(c *Context, r *record) error {
	operand, err := c.importOperand(r, r.source.(*il.Instruction))
	if err != nil {
		return err
	}

	r.target.(*il.Instruction).Operand = operand

	return nil
}

func (c *Context) importOperand(r *record, ins *il.Instruction) (any, error) {
	unexpected := func() (any, error) {
		return nil, fail(ErrUnsupported, ins, "operand %T for %s operand", ins.Operand, ins.OpCode.Operand)
	}

	switch ins.OpCode.Operand {
	case il.OperandNone:
		return nil, nil

	case il.OperandInt32, il.OperandInt64, il.OperandFloat64, il.OperandString:
		return ins.Operand, nil

	case il.OperandType, il.OperandField, il.OperandMethod, il.OperandToken:
		switch o := ins.Operand.(type) {
		case il.TypeRef:
			return c.importType(r, o)
		case il.MethodRef:
			return c.importMethod(r, o)
		case il.FieldRef:
			return c.importField(r, o)
		}

	case il.OperandBranch:
		if target, ok := ins.Operand.(*il.Instruction); ok {
			return c.importInstruction(r, target)
		}

	case il.OperandSwitch:
		targets, ok := ins.Operand.([]*il.Instruction)
		if !ok {
			break
		}

		out := make([]*il.Instruction, len(targets))

		for i, target := range targets {
			imported, err := c.importInstruction(r, target)
			if err != nil {
				return nil, err
			}

			out[i] = imported
		}

		return out, nil

	case il.OperandVariable:
		if v, ok := ins.Operand.(*il.Variable); ok {
			return c.importVariable(r, v)
		}

	case il.OperandArgument:
		if p, ok := ins.Operand.(*il.Parameter); ok {
			return c.importParameter(r, p)
		}

	default:
		return nil, fail(ErrUnsupported, ins, "%s operands cannot be cloned", ins.OpCode.Operand)
	}

	return unexpected()
}

type handlerCloner struct{}

func (handlerCloner) acquire(c *Context, r *record) (il.Element, error) {
	body, err := targetAs[*il.MethodBody](c, r.parent)
	if err != nil {
		return nil, err
	}

	prev, err := c.previousTarget(r)
	if err != nil {
		return nil, err
	}

	previous, _ := prev.(*il.ExceptionHandler)
	h := &il.ExceptionHandler{HandlerType: r.source.(*il.ExceptionHandler).HandlerType}
	body.InsertHandlerAfter(previous, h)

	return h, nil
}

func (handlerCloner) populate(c *Context, r *record) error {
	source := r.source.(*il.ExceptionHandler)
	target := r.target.(*il.ExceptionHandler)

	bounds := []struct {
		from *il.Instruction
		to   **il.Instruction
	}{
		{source.TryStart, &target.TryStart},
		{source.TryEnd, &target.TryEnd},
		{source.FilterStart, &target.FilterStart},
		{source.HandlerStart, &target.HandlerStart},
		{source.HandlerEnd, &target.HandlerEnd},
	}

	for _, b := range bounds {
		ins, err := c.importInstruction(r, b.from)
		if err != nil {
			return err
		}

		*b.to = ins
	}

	t, err := c.importType(r, source.CatchType)
	if err != nil {
		return err
	}

	target.CatchType = t

	return nil
}
