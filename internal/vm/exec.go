package vm

import (
	"cmp"
	"errors"
	"fmt"
	"math"

	"ilclone/internal/il"
)

type frame struct {
	callee
	body      *il.MethodBody
	args      []Value
	locals    []Value
	stack     []Value
	exception *Exception
}

// stackFault aborts a frame whose body misuses the evaluation stack.
type stackFault string

func (f *frame) push(v Value) { f.stack = append(f.stack, v) }

func (f *frame) pop() Value {
	if len(f.stack) == 0 {
		panic(stackFault("stack underflow in " + f.def.FullName()))
	}

	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]

	return v
}

func (f *frame) popN(n int) []Value {
	if len(f.stack) < n {
		panic(stackFault("stack underflow in " + f.def.FullName()))
	}

	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]

	return out
}

func (f *frame) argument(p *il.Parameter) int {
	if p.IsThis() {
		return 0
	}

	if f.def.Instance() {
		return p.Index + 1
	}

	return p.Index
}

func (vm *VM) invoke(c callee, args []Value) (Value, error) {
	want := c.arity()
	if c.instance() {
		want++
	}

	if len(args) != want {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrInvalidProgram, c, want, len(args))
	}

	if c.instance() {
		c = vm.receiverContext(c, args[0])
	}

	if c.intrinsic != nil {
		if c.intrinsic.instance {
			return c.intrinsic.fn(vm, args[0], args[1:])
		}

		return c.intrinsic.fn(vm, nil, args)
	}

	if c.def.IsStatic() {
		if err := vm.initialize(c.def.DeclaringType); err != nil {
			return nil, err
		}
	}

	body := c.def.Body
	if body == nil {
		return nil, fmt.Errorf("%w: %s has no body", ErrUnsupported, c.def.FullName())
	}

	for _, h := range body.ExceptionHandlers {
		if h.HandlerType != il.HandlerCatch {
			return nil, fmt.Errorf("%w: %s handler in %s", ErrUnsupported, h.HandlerType, c.def.FullName())
		}
	}

	f := &frame{callee: c, body: body, args: append([]Value(nil), args...)}

	f.locals = make([]Value, len(body.Variables))
	for i, v := range body.Variables {
		f.locals[i] = vm.zero(c.ctx.substitute(v.VariableType))
	}

	return vm.exec(f)
}

func (vm *VM) index(body *il.MethodBody) map[*il.Instruction]int {
	if idx, ok := vm.labels[body]; ok && len(idx) == len(body.Instructions) {
		return idx
	}

	idx := make(map[*il.Instruction]int, len(body.Instructions))
	for i, ins := range body.Instructions {
		idx[ins] = i
	}

	vm.labels[body] = idx

	return idx
}

func (vm *VM) exec(f *frame) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(stackFault)
			if !ok {
				panic(r)
			}

			err = fmt.Errorf("%w: %s", ErrInvalidProgram, string(fault))
		}
	}()

	idx := vm.index(f.body)
	pc := 0

	for {
		if pc >= len(f.body.Instructions) {
			return nil, fmt.Errorf("%w: control falls off the end of %s", ErrInvalidProgram, f.def.FullName())
		}

		vm.steps++
		if vm.MaxSteps > 0 && vm.steps > vm.MaxSteps {
			return nil, ErrStepLimit
		}

		ins := f.body.Instructions[pc]

		next, done, err := vm.step(f, ins, idx)
		if err != nil {
			var exc *Exception
			if !errors.As(err, &exc) {
				return nil, fmt.Errorf("%s at %s: %w", f.def.FullName(), ins.Label(), err)
			}

			handler, ok := vm.handler(f, pc, exc, idx)
			if !ok {
				return nil, exc
			}

			f.stack = f.stack[:0]
			f.exception = exc
			f.push(exc.Value)
			pc = handler

			continue
		}

		if done {
			if f.returns() {
				return f.pop(), nil
			}

			return nil, nil
		}

		if next >= 0 {
			pc = next
		} else {
			pc++
		}
	}
}

// handler returns the start of the first catch handler protecting pc that
// accepts exc.
func (vm *VM) handler(f *frame, pc int, exc *Exception, idx map[*il.Instruction]int) (int, bool) {
	end := func(ins *il.Instruction) int {
		if ins == nil {
			return len(f.body.Instructions)
		}

		return idx[ins]
	}

	for _, h := range f.body.ExceptionHandlers {
		if h.TryStart == nil || h.HandlerStart == nil {
			continue
		}

		if pc < idx[h.TryStart] || pc >= end(h.TryEnd) {
			continue
		}

		if h.CatchType == nil || vm.isInstance(exc.Value, f.ctx.substitute(h.CatchType)) {
			return idx[h.HandlerStart], true
		}
	}

	return 0, false
}

func throw(msg string) error {
	return &Exception{Value: msg}
}

// step executes one instruction. It returns the index of the next
// instruction, or -1 to fall through.
func (vm *VM) step(f *frame, ins *il.Instruction, idx map[*il.Instruction]int) (next int, done bool, err error) {
	jump := func() int {
		target, ok := ins.Operand.(*il.Instruction)
		if !ok {
			panic(stackFault("branch without target in " + f.def.FullName()))
		}

		return idx[target]
	}

	switch ins.OpCode {
	case il.OpNop, il.OpBox, il.OpUnboxAny:
		return -1, false, nil

	case il.OpLdarg:
		f.push(f.args[f.argument(ins.Operand.(*il.Parameter))])
	case il.OpStarg:
		f.args[f.argument(ins.Operand.(*il.Parameter))] = f.pop()
	case il.OpLdloc:
		f.push(f.locals[ins.Operand.(*il.Variable).Index])
	case il.OpStloc:
		f.locals[ins.Operand.(*il.Variable).Index] = f.pop()
	case il.OpLdnull:
		f.push(nil)
	case il.OpLdcI4, il.OpLdcI8, il.OpLdcR8, il.OpLdstr, il.OpLdtoken, il.OpLdftn:
		f.push(ins.Operand)
	case il.OpLdvirtftn:
		f.pop()
		f.push(ins.Operand)
	case il.OpDup:
		v := f.pop()
		f.push(v)
		f.push(v)
	case il.OpPop:
		f.pop()

	case il.OpCall, il.OpCallvirt:
		return -1, false, vm.call(f, ins)
	case il.OpNewobj:
		return -1, false, vm.newobj(f, ins)
	case il.OpRet:
		return -1, true, nil

	case il.OpBr, il.OpLeave:
		if ins.OpCode == il.OpLeave {
			f.stack = f.stack[:0]
		}

		return jump(), false, nil
	case il.OpBrtrue, il.OpBrfalse:
		if truthy(f.pop()) == (ins.OpCode == il.OpBrtrue) {
			return jump(), false, nil
		}
	case il.OpBeq, il.OpBne:
		b, a := f.pop(), f.pop()
		if equal(a, b) == (ins.OpCode == il.OpBeq) {
			return jump(), false, nil
		}
	case il.OpBlt, il.OpBgt, il.OpBle, il.OpBge:
		b, a := f.pop(), f.pop()

		c, err := compare(a, b)
		if err != nil {
			return 0, false, err
		}

		if branchTaken(ins.OpCode, c) {
			return jump(), false, nil
		}
	case il.OpSwitch:
		i, ok := f.pop().(int32)
		targets, _ := ins.Operand.([]*il.Instruction)

		if ok && i >= 0 && int(i) < len(targets) {
			return idx[targets[i]], false, nil
		}

	case il.OpAdd, il.OpSub, il.OpMul, il.OpDiv, il.OpRem, il.OpAnd, il.OpOr, il.OpXor, il.OpShl, il.OpShr:
		b, a := f.pop(), f.pop()

		v, err := binary(ins.OpCode, a, b)
		if err != nil {
			return 0, false, err
		}

		f.push(v)
	case il.OpNeg, il.OpNot:
		v, err := unary(ins.OpCode, f.pop())
		if err != nil {
			return 0, false, err
		}

		f.push(v)
	case il.OpCeq:
		b, a := f.pop(), f.pop()
		f.push(boolean(equal(a, b)))
	case il.OpCgt, il.OpClt:
		b, a := f.pop(), f.pop()

		c, err := compare(a, b)
		if err != nil {
			return 0, false, err
		}

		f.push(boolean(c > 0 && ins.OpCode == il.OpCgt || c < 0 && ins.OpCode == il.OpClt))
	case il.OpConvI4, il.OpConvI8, il.OpConvR8:
		v, err := convert(ins.OpCode, f.pop())
		if err != nil {
			return 0, false, err
		}

		f.push(v)

	case il.OpLdfld:
		obj, err := object(f.pop())
		if err != nil {
			return 0, false, err
		}

		v, ok := obj.Fields[ins.Operand.(il.FieldRef).FieldName()]
		if !ok {
			return 0, false, fmt.Errorf("%w: %s has no field %s", ErrInvalidProgram, obj.Type, ins.Operand)
		}

		f.push(v)
	case il.OpStfld:
		v := f.pop()

		obj, err := object(f.pop())
		if err != nil {
			return 0, false, err
		}

		obj.Fields[ins.Operand.(il.FieldRef).FieldName()] = v
	case il.OpLdsfld, il.OpStsfld:
		field, err := vm.staticField(ins.Operand.(il.FieldRef))
		if err != nil {
			return 0, false, err
		}

		if err := vm.initialize(field.DeclaringType); err != nil {
			return 0, false, err
		}

		if ins.OpCode == il.OpLdsfld {
			f.push(vm.static(field))
		} else {
			vm.statics[field] = f.pop()
		}

	case il.OpCastclass, il.OpIsinst:
		v := f.pop()

		switch {
		case v == nil || vm.isInstance(v, f.ctx.substitute(ins.Operand.(il.TypeRef))):
			f.push(v)
		case ins.OpCode == il.OpIsinst:
			f.push(nil)
		default:
			return 0, false, throw("invalid cast to " + ins.Operand.(il.TypeRef).FullName())
		}

	case il.OpNewarr:
		n, ok := f.pop().(int32)
		if !ok || n < 0 {
			return 0, false, fmt.Errorf("%w: bad array length", ErrInvalidProgram)
		}

		elem := f.ctx.substitute(ins.Operand.(il.TypeRef))
		arr := make([]Value, n)

		for i := range arr {
			arr[i] = vm.zero(elem)
		}

		f.push(arr)
	case il.OpLdlen:
		arr, err := array(f.pop())
		if err != nil {
			return 0, false, err
		}

		f.push(int32(len(arr)))
	case il.OpLdelem, il.OpStelem:
		var v Value
		if ins.OpCode == il.OpStelem {
			v = f.pop()
		}

		i, _ := f.pop().(int32)

		arr, err := array(f.pop())
		if err != nil {
			return 0, false, err
		}

		if i < 0 || int(i) >= len(arr) {
			return 0, false, throw("index out of range")
		}

		if ins.OpCode == il.OpStelem {
			arr[i] = v
		} else {
			f.push(arr[i])
		}

	case il.OpThrow:
		v := f.pop()
		if v == nil {
			return 0, false, throw("null reference")
		}

		return 0, false, &Exception{Value: v}
	case il.OpRethrow:
		if f.exception == nil {
			return 0, false, fmt.Errorf("%w: rethrow outside a handler", ErrInvalidProgram)
		}

		return 0, false, f.exception

	default:
		return 0, false, fmt.Errorf("%w: %s", ErrUnsupported, ins.OpCode)
	}

	return -1, false, nil
}

func (vm *VM) call(f *frame, ins *il.Instruction) error {
	c, err := vm.resolveMethod(ins.Operand.(il.MethodRef), f.ctx)
	if err != nil {
		return err
	}

	n := c.arity()
	if c.instance() {
		n++
	}

	args := f.popN(n)

	if ins.OpCode == il.OpCallvirt {
		if args[0] == nil {
			return throw("null reference")
		}

		c = vm.override(c, args[0])
	}

	v, err := vm.invoke(c, args)
	if err != nil {
		return err
	}

	if c.returns() {
		f.push(v)
	}

	return nil
}

func (vm *VM) newobj(f *frame, ins *il.Instruction) error {
	c, err := vm.resolveMethod(ins.Operand.(il.MethodRef), f.ctx)
	if err != nil {
		return err
	}

	var obj *Object

	if c.def != nil {
		if obj, err = vm.alloc(c.declaring); err != nil {
			return err
		}
	} else {
		obj = &Object{Type: c.declaring, Fields: make(map[string]Value)}
	}

	args := append([]Value{obj}, f.popN(c.arity())...)
	if _, err := vm.invoke(c, args); err != nil {
		return err
	}

	f.push(obj)

	return nil
}

func object(v Value) (*Object, error) {
	if v == nil {
		return nil, throw("null reference")
	}

	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an object", ErrInvalidProgram, v)
	}

	return obj, nil
}

func array(v Value) ([]Value, error) {
	if v == nil {
		return nil, throw("null reference")
	}

	arr, ok := v.([]Value)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an array", ErrInvalidProgram, v)
	}

	return arr, nil
}

func boolean(b bool) int32 {
	if b {
		return 1
	}

	return 0
}

func truthy(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}

	return true
}

func equal(a, b Value) bool {
	if x, ok := a.([]Value); ok {
		y, ok := b.([]Value)
		return ok && len(x) == len(y) && (len(x) == 0 || &x[0] == &y[0])
	}

	if _, ok := b.([]Value); ok {
		return false
	}

	return a == b
}

func branchTaken(op *il.OpCode, c int) bool {
	switch op {
	case il.OpBlt:
		return c < 0
	case il.OpBgt:
		return c > 0
	case il.OpBle:
		return c <= 0
	default:
		return c >= 0
	}
}

func mismatch(a, b Value) error {
	return fmt.Errorf("%w: operands %T and %T", ErrInvalidProgram, a, b)
}

func compare(a, b Value) (int, error) {
	switch x := a.(type) {
	case int32:
		if y, ok := b.(int32); ok {
			return cmp.Compare(x, y), nil
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y), nil
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y), nil
		}
	}

	return 0, mismatch(a, b)
}

func binary(op *il.OpCode, a, b Value) (Value, error) {
	switch x := a.(type) {
	case int32:
		if y, ok := b.(int32); ok {
			return integer(op, x, y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			return integer(op, x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return float(op, x, y)
		}
	}

	return nil, mismatch(a, b)
}

func integer[T int32 | int64](op *il.OpCode, x, y T) (Value, error) {
	switch op {
	case il.OpAdd:
		return x + y, nil
	case il.OpSub:
		return x - y, nil
	case il.OpMul:
		return x * y, nil
	case il.OpDiv, il.OpRem:
		if y == 0 {
			return nil, throw("division by zero")
		}

		if op == il.OpDiv {
			return x / y, nil
		}

		return x % y, nil
	case il.OpAnd:
		return x & y, nil
	case il.OpOr:
		return x | y, nil
	case il.OpXor:
		return x ^ y, nil
	case il.OpShl:
		return x << y, nil
	case il.OpShr:
		return x >> y, nil
	}

	return nil, fmt.Errorf("%w: %s on integers", ErrUnsupported, op)
}

func float(op *il.OpCode, x, y float64) (Value, error) {
	switch op {
	case il.OpAdd:
		return x + y, nil
	case il.OpSub:
		return x - y, nil
	case il.OpMul:
		return x * y, nil
	case il.OpDiv:
		return x / y, nil
	case il.OpRem:
		return math.Mod(x, y), nil
	}

	return nil, fmt.Errorf("%w: %s on floats", ErrInvalidProgram, op)
}

func unary(op *il.OpCode, v Value) (Value, error) {
	switch x := v.(type) {
	case int32:
		if op == il.OpNeg {
			return -x, nil
		}

		return ^x, nil
	case int64:
		if op == il.OpNeg {
			return -x, nil
		}

		return ^x, nil
	case float64:
		if op == il.OpNeg {
			return -x, nil
		}
	}

	return nil, fmt.Errorf("%w: %s on %T", ErrInvalidProgram, op, v)
}

func convert(op *il.OpCode, v Value) (Value, error) {
	var (
		i int64
		r float64
	)

	switch x := v.(type) {
	case int32:
		i, r = int64(x), float64(x)
	case int64:
		i, r = x, float64(x)
	case float64:
		i, r = int64(x), x
	default:
		return nil, fmt.Errorf("%w: %s on %T", ErrInvalidProgram, op, v)
	}

	switch op {
	case il.OpConvI4:
		return int32(i), nil
	case il.OpConvI8:
		return i, nil
	}

	return r, nil
}
