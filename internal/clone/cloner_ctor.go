package clone

import (
	"strconv"

	"ilclone/internal/il"
	"ilclone/internal/multiplex"
)

// noopCtorCloner stands for the root constructor in a target that already
// has one; the target constructor is reused as is and only its body is
// visited.
type noopCtorCloner struct {
	existing *il.MethodDef
}

func (n *noopCtorCloner) acquire(*Context, *record) (il.Element, error) {
	return n.existing, nil
}

func (n *noopCtorCloner) populate(*Context, *record) error { return nil }

func (n *noopCtorCloner) admits(_ *Context, _ *record, child il.Element) bool {
	return child.Kind() == il.KindMethodBody
}

// ctorLogicCloner creates the private method that receives the code the
// root constructor runs after its base constructor call.
type ctorLogicCloner struct{}

func (ctorLogicCloner) acquire(c *Context, r *record) (il.Element, error) {
	owner, err := targetAs[*il.TypeDef](c, r.parent)
	if err != nil {
		return nil, err
	}

	name := c.lanes[r.lane].logicName(c.source)
	m := il.NewMethod(name, il.MethodPrivate|il.MethodHideBySig, il.Void)
	owner.AddMethod(m)

	return m, nil
}

func (ctorLogicCloner) populate(c *Context, r *record) error {
	_, err := c.sharedParameters(r)
	return err
}

// sharedParameters returns the parameters of the logic method of r that
// carry the shared variables of the root constructor, one per variable in
// variable order. They are added on first use.
func (c *Context) sharedParameters(logic *record) ([]*il.Parameter, error) {
	if params, ok := c.shared[logic.id]; ok {
		return params, nil
	}

	mc, err := c.constructor(logic.source.(*il.MethodDef))
	if err != nil {
		return nil, err
	}

	m := logic.target.(*il.MethodDef)
	params := make([]*il.Parameter, len(mc.SharedVariables))

	for i, v := range mc.SharedVariables {
		t, err := c.importType(logic, v.VariableType)
		if err != nil {
			return nil, err
		}

		params[i] = m.AddParameter("shared"+strconv.Itoa(i), t)
	}

	c.shared[logic.id] = params

	return params, nil
}

func (ctorLogicCloner) admits(_ *Context, _ *record, child il.Element) bool {
	return child.Kind() == il.KindMethodBody
}

// logicBodyCloner fills the logic method with the construction partition
// of the root constructor.
type logicBodyCloner struct{}

func (*logicBodyCloner) acquire(c *Context, r *record) (il.Element, error) {
	m, err := targetAs[*il.MethodDef](c, r.parent)
	if err != nil {
		return nil, err
	}

	body := il.NewBody(m)
	body.MaxStack, body.InitLocals = 0, false

	return body, nil
}

// populate also stores the shared parameters into the cloned shared
// variables before the construction code runs.
func (*logicBodyCloner) populate(c *Context, r *record) error {
	source := r.source.(*il.MethodBody)
	body := r.target.(*il.MethodBody)

	if err := copyBody(source, body); err != nil {
		return err
	}

	mc, err := c.constructor(source.Method)
	if err != nil {
		return err
	}

	params, err := c.sharedParameters(c.records[r.parent])
	if err != nil {
		return err
	}

	for i, v := range mc.SharedVariables {
		local, err := c.importVariable(r, v)
		if err != nil {
			return err
		}

		body.InsertAt(2*i, &il.Instruction{OpCode: il.OpLdarg, Operand: params[i]})
		body.InsertAt(2*i+1, &il.Instruction{OpCode: il.OpStloc, Operand: local})
	}

	if len(params) > 0 {
		body.MaxStack = max(body.MaxStack, 1)
	}

	return nil
}

func (*logicBodyCloner) admits(c *Context, r *record, child il.Element) bool {
	mc, err := c.constructor(r.source.(*il.MethodBody).Method)
	if err != nil {
		return false
	}

	return admitsPartition(child, mc.IsConstruction, mc.UsedByConstruction)
}

// ctorInitCloner splices the initialization partition of the root
// constructor into the body of an existing initializing constructor and
// calls the logic method before each of its returns.
type ctorInitCloner struct {
	source *multiplex.Constructor
	target *multiplex.Constructor
	logic  clonerID
}

func (i *ctorInitCloner) acquire(*Context, *record) (il.Element, error) {
	return i.target.Method.Body, nil
}

func (i *ctorInitCloner) admits(_ *Context, _ *record, child il.Element) bool {
	return admitsPartition(child, i.source.IsInitialization, i.source.UsedByInitialization)
}

func (i *ctorInitCloner) populate(c *Context, r *record) error {
	body := r.target.(*il.MethodBody)

	if err := copyBody(r.source.(*il.MethodBody), body); err != nil {
		return err
	}

	if i.logic == noCloner {
		return nil
	}

	logic, err := targetAs[*il.MethodDef](c, i.logic)
	if err != nil {
		return err
	}

	if _, err := c.sharedParameters(c.records[i.logic]); err != nil {
		return err
	}

	boundary := body.IndexOf(i.target.Boundary)
	if boundary < 0 {
		return fail(ErrMissingBoundary, i.target.Method, "base constructor call was removed")
	}

	var exits []*il.Instruction

	for _, ins := range body.Instructions[boundary+1:] {
		if ins.OpCode == il.OpRet {
			exits = append(exits, ins)
		}
	}

	args := []*il.Instruction{{OpCode: il.OpLdarg, Operand: body.ThisParameter()}}

	for _, v := range i.source.SharedVariables {
		local, err := c.importVariable(r, v)
		if err != nil {
			return err
		}

		args = append(args, &il.Instruction{OpCode: il.OpLdloc, Operand: local})
	}

	for _, ret := range exits {
		call := make([]*il.Instruction, 0, len(args)+1)
		for _, arg := range args {
			call = append(call, &il.Instruction{OpCode: arg.OpCode, Operand: arg.Operand})
		}

		call = append(call, &il.Instruction{OpCode: il.OpCall, Operand: il.MethodRef(logic)})

		if err := body.InsertBefore(ret, call...); err != nil {
			return wrap(ErrDispatchGap, r.source, err)
		}
	}

	body.MaxStack = max(body.MaxStack, len(args))

	return nil
}

// staticInitCloner merges the root type initializer into an existing one:
// the source code runs first and its final return becomes a jump into the
// existing code.
type staticInitCloner struct {
	anchor *il.Instruction
}

func (s *staticInitCloner) acquire(c *Context, r *record) (il.Element, error) {
	noop, ok := c.records[r.parent].impl.(*noopCtorCloner)
	if !ok || noop.existing.Body == nil {
		return nil, fail(ErrDispatchGap, r.source, "type initializer without body")
	}

	body := noop.existing.Body
	if len(body.Instructions) > 0 {
		s.anchor = body.Instructions[0]
	}

	return body, nil
}

func (s *staticInitCloner) admits(_ *Context, r *record, child il.Element) bool {
	ins, ok := child.(*il.Instruction)

	return !ok || ins != finalReturn(r.source.(*il.MethodBody))
}

func (s *staticInitCloner) substitute(ins *il.Instruction) (*il.Instruction, bool) {
	if s.anchor == nil || ins.OpCode != il.OpRet {
		return nil, false
	}

	return s.anchor, true
}

func (s *staticInitCloner) populate(_ *Context, r *record) error {
	source := r.source.(*il.MethodBody)

	if s.anchor == nil {
		return fail(ErrUnsupported, source, "existing type initializer has no code")
	}

	last := finalReturn(source)

	for _, ins := range source.Instructions {
		if ins.OpCode == il.OpRet && ins != last {
			return fail(ErrUnsupported, ins, "type initializer returns early")
		}
	}

	return copyBody(source, r.target.(*il.MethodBody))
}

func finalReturn(body *il.MethodBody) *il.Instruction {
	if n := len(body.Instructions); n > 0 && body.Instructions[n-1].OpCode == il.OpRet {
		return body.Instructions[n-1]
	}

	return nil
}

// admitsPartition keeps the instructions, variables and handlers of one
// side of a constructor.
func admitsPartition(child il.Element, instruction func(*il.Instruction) bool, variable func(*il.Variable) bool) bool {
	switch child := child.(type) {
	case *il.Instruction:
		return instruction(child)
	case *il.Variable:
		return variable(child)
	case *il.ExceptionHandler:
		return child.TryStart != nil && instruction(child.TryStart)
	}

	return false
}
