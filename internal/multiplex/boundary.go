package multiplex

import (
	"ilclone/internal/il"
)

// findBoundary scans the body in call groups. A group starts with a load of
// this at an empty stack and ends at the first call that consumes it, or
// when the stack empties again. The first group whose call targets a
// constructor of the declaring type or its base type is the boundary.
func findBoundary(ctor *il.MethodDef) (start, call int, initializer, ok bool) {
	self := ctor.DeclaringType.FullName()

	base := ""
	if ctor.DeclaringType.BaseType != nil {
		base = il.ElementTypeOf(ctor.DeclaringType.BaseType).FullName()
	}

	depth := 0
	groupStart := -1

	for i, ins := range ctor.Body.Instructions {
		if depth == 0 && loadsThis(ins) {
			groupStart = i
		}

		pop, push := ins.StackEffect()

		if groupStart >= 0 && ins.OpCode.IsCall() && depth-pop == 0 {
			if m, isMethod := ins.Operand.(il.MethodRef); isMethod && il.IsConstructorRef(m) && m.Instance() {
				callee := il.ElementTypeOf(m.DeclaringTypeRef()).FullName()

				switch callee {
				case self:
					return groupStart, i, false, true
				case base:
					return groupStart, i, true, true
				}
			}
		}

		depth += push - pop

		switch ins.OpCode.Flow {
		case il.FlowBranch, il.FlowReturn, il.FlowThrow:
			depth = 0
		}

		if depth <= 0 {
			depth = 0
			groupStart = -1
		}
	}

	return 0, 0, false, false
}

func loadsThis(ins *il.Instruction) bool {
	if ins.OpCode != il.OpLdarg {
		return false
	}

	p, ok := ins.Operand.(*il.Parameter)

	return ok && p.IsThis()
}
