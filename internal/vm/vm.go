// Package vm interprets methods of the il object model.
//
// The interpreter exists to observe what cloned code does: it runs type
// initializers on first use, allocates objects, dispatches virtual calls and
// executes catch handlers. It is not a verifier and models only what the
// clone tests need. Values are nil, int32 (also for booleans), int64,
// float64, string, *Object, []Value (arrays) or metadata tokens. Value types
// are represented as objects with reference semantics. Addresses,
// finally/fault/filter handlers and indirect calls are not supported.
package vm

import (
	"errors"
	"fmt"

	"ilclone/internal/il"
)

var (
	// ErrUnresolved is returned when a referenced symbol cannot be found in
	// the loaded modules or among the intrinsics.
	ErrUnresolved = errors.New("unresolved symbol")

	// ErrUnsupported is returned for instructions and shapes the interpreter
	// does not model.
	ErrUnsupported = errors.New("unsupported by the interpreter")

	// ErrInvalidProgram is returned when a body misuses the evaluation stack
	// or its operands.
	ErrInvalidProgram = errors.New("invalid program")

	// ErrStepLimit is returned when execution exceeds MaxSteps instructions.
	ErrStepLimit = errors.New("step limit exceeded")
)

// DefaultMaxSteps is the instruction budget of a new VM.
const DefaultMaxSteps = 1_000_000

// Value is a runtime value.
type Value = any

// Object is an instance of a class or a boxed value type.
type Object struct {
	// Type is the closed runtime type: a definition, a generic instance or a
	// core reference.
	Type   il.TypeRef
	Fields map[string]Value
}

func (o *Object) String() string { return "instance of " + o.Type.FullName() }

// Exception is a managed exception that left the outermost call.
type Exception struct {
	Value Value
}

func (e *Exception) Error() string {
	if o, ok := e.Value.(*Object); ok {
		if msg, ok := o.Fields["Message"].(string); ok {
			return fmt.Sprintf("unhandled %s: %s", o.Type.FullName(), msg)
		}

		return "unhandled " + o.Type.FullName()
	}

	return fmt.Sprintf("unhandled exception %v", e.Value)
}

// VM holds the loaded modules and the static state of their types.
type VM struct {
	// MaxSteps bounds the number of instructions one Call may execute.
	MaxSteps int

	modules     map[string]*il.Module
	statics     map[*il.FieldDef]Value
	initialized map[*il.TypeDef]bool
	labels      map[*il.MethodBody]map[*il.Instruction]int
	steps       int
}

// New creates a VM over modules. References between them are resolved by
// module name.
func New(modules ...*il.Module) *VM {
	vm := &VM{
		MaxSteps:    DefaultMaxSteps,
		modules:     make(map[string]*il.Module, len(modules)),
		statics:     make(map[*il.FieldDef]Value),
		initialized: make(map[*il.TypeDef]bool),
		labels:      make(map[*il.MethodBody]map[*il.Instruction]int),
	}

	for _, m := range modules {
		vm.modules[m.Name] = m
	}

	return vm
}

// Call invokes method. Instance methods take the receiver as first argument.
func (vm *VM) Call(method il.MethodRef, args ...Value) (Value, error) {
	vm.steps = 0

	c, err := vm.resolveMethod(method, context{})
	if err != nil {
		return nil, err
	}

	return vm.invoke(c, args)
}

// New allocates an instance of t and runs the constructor taking len(args)
// arguments.
func (vm *VM) New(t il.TypeRef, args ...Value) (*Object, error) {
	vm.steps = 0

	def := vm.typeDef(t)
	if def == nil {
		return nil, fmt.Errorf("%w: type %s", ErrUnresolved, t)
	}

	for _, ctor := range def.Constructors() {
		if len(ctor.Parameters) != len(args) {
			continue
		}

		obj, err := vm.alloc(t)
		if err != nil {
			return nil, err
		}

		c := callee{def: ctor, ctx: contextOf(t)}
		if _, err := vm.invoke(c, append([]Value{obj}, args...)); err != nil {
			return nil, err
		}

		return obj, nil
	}

	return nil, fmt.Errorf("%w: %s has no constructor taking %d arguments", ErrUnresolved, t, len(args))
}

// Static returns the value of a static field, initializing its type first.
func (vm *VM) Static(field *il.FieldDef) (Value, error) {
	vm.steps = 0

	if err := vm.initialize(field.DeclaringType); err != nil {
		return nil, err
	}

	return vm.static(field), nil
}

func (vm *VM) static(field *il.FieldDef) Value {
	if v, ok := vm.statics[field]; ok {
		return v
	}

	v := vm.zero(field.FieldType)
	vm.statics[field] = v

	return v
}

// initialize runs the type initializer of t once.
func (vm *VM) initialize(t *il.TypeDef) error {
	if t == nil || vm.initialized[t] {
		return nil
	}

	vm.initialized[t] = true

	cctor := t.StaticConstructor()
	if cctor == nil {
		return nil
	}

	_, err := vm.invoke(callee{def: cctor}, nil)

	return err
}

// alloc creates an object of the closed type t with every instance field,
// inherited ones included, set to its zero value.
func (vm *VM) alloc(t il.TypeRef) (*Object, error) {
	obj := &Object{Type: t, Fields: make(map[string]Value)}

	for cur := t; cur != nil; {
		def := vm.typeDef(cur)
		if def == nil {
			break
		}

		if err := vm.initialize(def); err != nil {
			return nil, err
		}

		ctx := contextOf(cur)

		for _, f := range def.Fields {
			if _, ok := obj.Fields[f.Name]; ok || f.IsStatic() {
				continue
			}

			obj.Fields[f.Name] = vm.zero(ctx.substitute(f.FieldType))
		}

		cur = ctx.substitute(def.BaseType)
	}

	return obj, nil
}

// zero returns the default value of a closed type.
func (vm *VM) zero(t il.TypeRef) Value {
	if t == nil {
		return nil
	}

	switch t.FullName() {
	case il.Int32.FullName(), il.Boolean.FullName():
		return int32(0)
	case il.Int64.FullName():
		return int64(0)
	case il.Double.FullName():
		return float64(0)
	}

	if def := vm.typeDef(t); def != nil && def.ValueType() {
		obj, err := vm.alloc(t)
		if err == nil {
			return obj
		}
	}

	return nil
}

// typeDef returns the definition t names, or nil for core and unloaded
// types.
func (vm *VM) typeDef(t il.TypeRef) *il.TypeDef {
	switch t := il.ElementTypeOf(t).(type) {
	case *il.TypeDef:
		return t
	case *il.TypeReference:
		if m, ok := vm.modules[t.ScopeName]; ok {
			return m.Type(t.FullName())
		}
	}

	return nil
}
