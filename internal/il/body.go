package il

import (
	"fmt"
	"strconv"
	"strings"
)

// DebugScope is a debugging region of a body. Only its presence matters to
// this model.
type DebugScope struct {
	Start, End *Instruction
}

// MethodBody holds the executable part of a method.
type MethodBody struct {
	Method            *MethodDef
	MaxStack          int
	InitLocals        bool
	Variables         []*Variable
	Instructions      []*Instruction
	ExceptionHandlers []*ExceptionHandler
	Scope             *DebugScope

	this *Parameter
}

// NewBody creates an empty body and attaches it to m.
func NewBody(m *MethodDef) *MethodBody {
	b := &MethodBody{Method: m, MaxStack: 8, InitLocals: true}
	m.Body = b

	return b
}

func (b *MethodBody) Kind() Kind { return KindMethodBody }
func (b *MethodBody) String() string {
	if b.Method == nil {
		return "body"
	}

	return b.Method.FullName() + " body"
}

// ThisParameter returns the implicit this parameter of the body, or nil for
// bodies of static methods.
func (b *MethodBody) ThisParameter() *Parameter {
	if b.Method == nil || b.Method.IsStatic() {
		return nil
	}

	if b.this == nil {
		var t TypeRef
		if b.Method.DeclaringType != nil {
			t = b.Method.DeclaringType
		}

		b.this = &Parameter{Name: "this", Index: -1, ParameterType: t, Method: b.Method}
	}

	return b.this
}

// AddVariable appends a local of type t and returns it.
func (b *MethodBody) AddVariable(t TypeRef) *Variable {
	v := &Variable{Index: len(b.Variables), VariableType: t}
	b.Variables = append(b.Variables, v)

	return v
}

// InsertVariableAfter inserts v right after prev (or first when prev is nil)
// and renumbers the locals.
func (b *MethodBody) InsertVariableAfter(prev, v *Variable) {
	at := 0
	if prev != nil {
		at = indexOf(b.Variables, prev) + 1
	}

	b.Variables = insertAt(b.Variables, at, v)
	for i, each := range b.Variables {
		each.Index = i
	}
}

// Emit appends a new instruction and returns it.
func (b *MethodBody) Emit(code *OpCode, operand any) *Instruction {
	ins := &Instruction{OpCode: code, Operand: operand}
	b.Instructions = append(b.Instructions, ins)

	return ins
}

// IndexOf returns the position of ins, or -1.
func (b *MethodBody) IndexOf(ins *Instruction) int {
	return indexOf(b.Instructions, ins)
}

// InsertAt inserts ins at position i.
func (b *MethodBody) InsertAt(i int, ins *Instruction) {
	b.Instructions = insertAt(b.Instructions, i, ins)
}

// InsertAfter inserts ins right after anchor; a nil anchor inserts at the
// start of the body.
func (b *MethodBody) InsertAfter(anchor, ins *Instruction) error {
	if anchor == nil {
		b.InsertAt(0, ins)
		return nil
	}

	i := b.IndexOf(anchor)
	if i < 0 {
		return fmt.Errorf("anchor %s is not part of %s", anchor, b)
	}

	b.InsertAt(i+1, ins)

	return nil
}

// InsertBefore inserts seq right before anchor. Branches and handler bounds
// that pointed at anchor point at the first inserted instruction afterwards,
// so control that used to reach anchor runs seq first.
func (b *MethodBody) InsertBefore(anchor *Instruction, seq ...*Instruction) error {
	if len(seq) == 0 {
		return nil
	}

	i := b.IndexOf(anchor)
	if i < 0 {
		return fmt.Errorf("anchor %s is not part of %s", anchor, b)
	}

	for k, ins := range seq {
		b.InsertAt(i+k, ins)
	}

	b.Retarget(anchor, seq[0])

	return nil
}

// Retarget replaces every branch, switch and handler reference to from with
// to.
func (b *MethodBody) Retarget(from, to *Instruction) {
	swap := func(ins **Instruction) {
		if *ins == from {
			*ins = to
		}
	}

	for _, ins := range b.Instructions {
		switch o := ins.Operand.(type) {
		case *Instruction:
			if o == from {
				ins.Operand = to
			}
		case []*Instruction:
			for k := range o {
				swap(&o[k])
			}
		}
	}

	for _, h := range b.ExceptionHandlers {
		swap(&h.TryStart)
		swap(&h.TryEnd)
		swap(&h.FilterStart)
		swap(&h.HandlerStart)
		swap(&h.HandlerEnd)
	}
}

// InsertHandlerAfter inserts h right after prev (or first when prev is nil).
func (b *MethodBody) InsertHandlerAfter(prev, h *ExceptionHandler) {
	at := 0
	if prev != nil {
		at = indexOf(b.ExceptionHandlers, prev) + 1
	}

	b.ExceptionHandlers = insertAt(b.ExceptionHandlers, at, h)
}

// ComputeOffsets assigns byte offsets to every instruction.
func (b *MethodBody) ComputeOffsets() {
	offset := 0
	for _, ins := range b.Instructions {
		ins.Offset = offset
		offset += ins.Size()
	}
}

// Variable is a local of a method body.
type Variable struct {
	Index        int
	VariableType TypeRef
}

func (v *Variable) Kind() Kind     { return KindVariable }
func (v *Variable) String() string { return "V_" + strconv.Itoa(v.Index) }

// Instruction is one opcode with its inline operand.
type Instruction struct {
	Offset  int
	OpCode  *OpCode
	Operand any
}

func (i *Instruction) Kind() Kind { return KindInstruction }

// Label renders the instruction offset as a label.
func (i *Instruction) Label() string { return fmt.Sprintf("IL_%04x", i.Offset) }

func (i *Instruction) String() string {
	var b strings.Builder

	b.WriteString(i.Label())
	b.WriteString(": ")
	b.WriteString(i.OpCode.Name)

	if i.Operand == nil {
		return b.String()
	}

	b.WriteByte(' ')

	switch o := i.Operand.(type) {
	case *Instruction:
		b.WriteString(o.Label())
	case []*Instruction:
		labels := make([]string, len(o))
		for k, t := range o {
			labels[k] = t.Label()
		}

		b.WriteString("(" + strings.Join(labels, ",") + ")")
	case string:
		b.WriteString(strconv.Quote(o))
	case fmt.Stringer:
		b.WriteString(o.String())
	default:
		fmt.Fprint(&b, o)
	}

	return b.String()
}

// Size is the encoded size of the instruction in bytes.
func (i *Instruction) Size() int {
	size := i.OpCode.Size()

	switch i.OpCode.Operand {
	case OperandNone:
	case OperandVariable, OperandArgument:
		size += 2
	case OperandInt64, OperandFloat64:
		size += 8
	case OperandSwitch:
		targets, _ := i.Operand.([]*Instruction)
		size += 4 + 4*len(targets)
	default:
		size += 4
	}

	return size
}

// StackEffect returns the number of values the instruction pops and pushes.
func (i *Instruction) StackEffect() (pop, push int) {
	pop, push = i.OpCode.Pop, i.OpCode.Push

	switch i.OpCode {
	case OpCall, OpCallvirt, OpNewobj:
		m, ok := i.Operand.(MethodRef)
		if !ok {
			return 0, 0
		}

		ret, params := m.Signature()
		pop = len(params)

		if i.OpCode == OpNewobj {
			return pop, 1
		}

		if m.Instance() {
			pop++
		}

		push = 0
		if ret != nil && ret.FullName() != "System.Void" {
			push = 1
		}
	case OpCalli:
		return 0, 0
	case OpRet:
		pop = 0
	}

	return pop, push
}

// HandlerType is the kind of an exception handler region.
type HandlerType int

const (
	HandlerCatch HandlerType = iota
	HandlerFilter
	HandlerFinally
	HandlerFault
)

func (h HandlerType) String() string {
	switch h {
	case HandlerCatch:
		return "catch"
	case HandlerFilter:
		return "filter"
	case HandlerFinally:
		return "finally"
	case HandlerFault:
		return "fault"
	default:
		return "handler(" + strconv.Itoa(int(h)) + ")"
	}
}

// ExceptionHandler is a protected region with its handler. End markers are
// exclusive; a nil end means the end of the body.
type ExceptionHandler struct {
	HandlerType  HandlerType
	TryStart     *Instruction
	TryEnd       *Instruction
	FilterStart  *Instruction
	HandlerStart *Instruction
	HandlerEnd   *Instruction
	CatchType    TypeRef
}

func (h *ExceptionHandler) Kind() Kind { return KindExceptionHandler }
func (h *ExceptionHandler) String() string {
	label := func(i *Instruction) string {
		if i == nil {
			return "end"
		}

		return i.Label()
	}

	return fmt.Sprintf("%s %s-%s", h.HandlerType, label(h.TryStart), label(h.HandlerEnd))
}

func indexOf[T comparable](s []T, v T) int {
	for i, each := range s {
		if each == v {
			return i
		}
	}

	return -1
}

func insertAt[T any](s []T, i int, v T) []T {
	if i < 0 || i > len(s) {
		i = len(s)
	}

	var zero T

	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v

	return s
}
