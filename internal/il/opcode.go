package il

//go:generate go tool stringer -type=OperandKind -trimprefix=Operand -output=operandkind_string.go

// OperandKind classifies the inline operand of an instruction.
type OperandKind int

const (
	OperandNone      OperandKind = iota
	OperandType                  // TypeRef
	OperandField                 // FieldRef
	OperandMethod                // MethodRef
	OperandToken                 // TypeRef, FieldRef or MethodRef
	OperandBranch                // *Instruction
	OperandSwitch                // []*Instruction
	OperandVariable              // *Variable
	OperandArgument              // *Parameter
	OperandInt32                 // int32
	OperandInt64                 // int64
	OperandFloat64               // float64
	OperandString                // string
	OperandSignature             // call-site signature, not modelled
	OperandPhi                   // reserved
)

// FlowControl describes how an instruction affects control flow.
type FlowControl int

const (
	FlowNext FlowControl = iota
	FlowBranch
	FlowCondBranch
	FlowCall
	FlowReturn
	FlowThrow
)

// VarStack marks a pop or push count that depends on the operand.
const VarStack = -1

// OpCode describes one instruction of the stack machine.
type OpCode struct {
	Name    string
	Operand OperandKind
	Flow    FlowControl
	Pop     int
	Push    int
	// TwoByte reports whether the encoding uses a prefix byte.
	TwoByte bool
}

func (o *OpCode) String() string { return o.Name }

// IsCall reports whether the opcode invokes a method (newobj excluded).
func (o *OpCode) IsCall() bool {
	return o == OpCall || o == OpCallvirt || o == OpCalli
}

// Size is the encoded size of the opcode byte(s).
func (o *OpCode) Size() int {
	if o.TwoByte {
		return 2
	}

	return 1
}

func op(name string, operand OperandKind, flow FlowControl, pop, push int) *OpCode {
	o := &OpCode{Name: name, Operand: operand, Flow: flow, Pop: pop, Push: push}
	opcodesByName[name] = o

	return o
}

func op2(name string, operand OperandKind, flow FlowControl, pop, push int) *OpCode {
	o := op(name, operand, flow, pop, push)
	o.TwoByte = true

	return o
}

var opcodesByName = map[string]*OpCode{}

// The instruction set.
var (
	OpNop    = op("nop", OperandNone, FlowNext, 0, 0)
	OpLdarg  = op2("ldarg", OperandArgument, FlowNext, 0, 1)
	OpLdarga = op2("ldarga", OperandArgument, FlowNext, 0, 1)
	OpStarg  = op2("starg", OperandArgument, FlowNext, 1, 0)
	OpLdloc  = op2("ldloc", OperandVariable, FlowNext, 0, 1)
	OpLdloca = op2("ldloca", OperandVariable, FlowNext, 0, 1)
	OpStloc  = op2("stloc", OperandVariable, FlowNext, 1, 0)
	OpLdnull = op("ldnull", OperandNone, FlowNext, 0, 1)
	OpLdcI4  = op("ldc.i4", OperandInt32, FlowNext, 0, 1)
	OpLdcI8  = op("ldc.i8", OperandInt64, FlowNext, 0, 1)
	OpLdcR8  = op("ldc.r8", OperandFloat64, FlowNext, 0, 1)
	OpLdstr  = op("ldstr", OperandString, FlowNext, 0, 1)
	OpDup    = op("dup", OperandNone, FlowNext, 1, 2)
	OpPop    = op("pop", OperandNone, FlowNext, 1, 0)

	OpCall     = op("call", OperandMethod, FlowCall, VarStack, VarStack)
	OpCallvirt = op("callvirt", OperandMethod, FlowCall, VarStack, VarStack)
	OpCalli    = op("calli", OperandSignature, FlowCall, VarStack, VarStack)
	OpNewobj   = op("newobj", OperandMethod, FlowCall, VarStack, 1)
	OpRet      = op("ret", OperandNone, FlowReturn, VarStack, 0)

	OpBr      = op("br", OperandBranch, FlowBranch, 0, 0)
	OpBrtrue  = op("brtrue", OperandBranch, FlowCondBranch, 1, 0)
	OpBrfalse = op("brfalse", OperandBranch, FlowCondBranch, 1, 0)
	OpBeq     = op("beq", OperandBranch, FlowCondBranch, 2, 0)
	OpBne     = op("bne.un", OperandBranch, FlowCondBranch, 2, 0)
	OpBlt     = op("blt", OperandBranch, FlowCondBranch, 2, 0)
	OpBgt     = op("bgt", OperandBranch, FlowCondBranch, 2, 0)
	OpBle     = op("ble", OperandBranch, FlowCondBranch, 2, 0)
	OpBge     = op("bge", OperandBranch, FlowCondBranch, 2, 0)
	OpSwitch  = op("switch", OperandSwitch, FlowCondBranch, 1, 0)
	OpLeave   = op("leave", OperandBranch, FlowBranch, 0, 0)

	OpAdd    = op("add", OperandNone, FlowNext, 2, 1)
	OpSub    = op("sub", OperandNone, FlowNext, 2, 1)
	OpMul    = op("mul", OperandNone, FlowNext, 2, 1)
	OpDiv    = op("div", OperandNone, FlowNext, 2, 1)
	OpRem    = op("rem", OperandNone, FlowNext, 2, 1)
	OpNeg    = op("neg", OperandNone, FlowNext, 1, 1)
	OpAnd    = op("and", OperandNone, FlowNext, 2, 1)
	OpOr     = op("or", OperandNone, FlowNext, 2, 1)
	OpXor    = op("xor", OperandNone, FlowNext, 2, 1)
	OpNot    = op("not", OperandNone, FlowNext, 1, 1)
	OpShl    = op("shl", OperandNone, FlowNext, 2, 1)
	OpShr    = op("shr", OperandNone, FlowNext, 2, 1)
	OpCeq    = op2("ceq", OperandNone, FlowNext, 2, 1)
	OpCgt    = op2("cgt", OperandNone, FlowNext, 2, 1)
	OpClt    = op2("clt", OperandNone, FlowNext, 2, 1)
	OpConvI4 = op("conv.i4", OperandNone, FlowNext, 1, 1)
	OpConvI8 = op("conv.i8", OperandNone, FlowNext, 1, 1)
	OpConvR8 = op("conv.r8", OperandNone, FlowNext, 1, 1)

	OpLdfld   = op("ldfld", OperandField, FlowNext, 1, 1)
	OpLdflda  = op("ldflda", OperandField, FlowNext, 1, 1)
	OpStfld   = op("stfld", OperandField, FlowNext, 2, 0)
	OpLdsfld  = op("ldsfld", OperandField, FlowNext, 0, 1)
	OpLdsflda = op("ldsflda", OperandField, FlowNext, 0, 1)
	OpStsfld  = op("stsfld", OperandField, FlowNext, 1, 0)

	OpBox       = op("box", OperandType, FlowNext, 1, 1)
	OpUnboxAny  = op("unbox.any", OperandType, FlowNext, 1, 1)
	OpCastclass = op("castclass", OperandType, FlowNext, 1, 1)
	OpIsinst    = op("isinst", OperandType, FlowNext, 1, 1)
	OpInitobj   = op2("initobj", OperandType, FlowNext, 1, 0)
	OpLdobj     = op("ldobj", OperandType, FlowNext, 1, 1)
	OpStobj     = op("stobj", OperandType, FlowNext, 2, 0)
	OpNewarr    = op("newarr", OperandType, FlowNext, 1, 1)
	OpLdlen     = op("ldlen", OperandNone, FlowNext, 1, 1)
	OpLdelem    = op("ldelem", OperandType, FlowNext, 2, 1)
	OpStelem    = op("stelem", OperandType, FlowNext, 3, 0)

	OpLdtoken   = op("ldtoken", OperandToken, FlowNext, 0, 1)
	OpLdftn     = op2("ldftn", OperandMethod, FlowNext, 0, 1)
	OpLdvirtftn = op2("ldvirtftn", OperandMethod, FlowNext, 1, 1)

	OpThrow      = op("throw", OperandNone, FlowThrow, 1, 0)
	OpRethrow    = op2("rethrow", OperandNone, FlowThrow, 0, 0)
	OpEndfinally = op("endfinally", OperandNone, FlowReturn, 0, 0)
	OpEndfilter  = op2("endfilter", OperandNone, FlowReturn, 1, 0)
)

// OpCodeByName looks up an opcode by its mnemonic.
func OpCodeByName(name string) (*OpCode, bool) {
	o, ok := opcodesByName[name]

	return o, ok
}
