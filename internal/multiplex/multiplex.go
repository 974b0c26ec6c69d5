// Package multiplex splits a constructor into the code a compiler emits
// before the base or chained constructor call (field initialization) and the
// code a developer wrote after it (construction).
//
// A constructor cannot be copied instruction for instruction into a type
// that already has constructors: several target constructors may need the
// initialization, and the construction code may have several exits. The
// split lets initialization be spliced into every initializing target
// constructor while construction is extracted into a method of its own.
package multiplex

import (
	"errors"
	"fmt"

	"ilclone/internal/il"
)

// ErrMissingBoundary is returned when no base or chained constructor call is
// found.
var ErrMissingBoundary = errors.New("cannot find base or chained constructor call")

// Constructor is a read-only view over one constructor, partitioned around
// its base or chained constructor call.
//
// The boundary call group, from BoundaryStart to BoundaryIndex, belongs to
// neither partition. That includes the arguments of the boundary call, so
// code evaluating them is dropped by anything that copies only the
// partitions. Root types derive from System.Object, whose constructor takes
// no arguments, so for them the group is always "ldarg this; call".
type Constructor struct {
	Method *il.MethodDef

	// BoundaryStart is the index of the first instruction of the call group
	// that ends with the boundary call.
	BoundaryStart int
	// BoundaryIndex is the index of the base or chained constructor call.
	BoundaryIndex int
	// Boundary is the base or chained constructor call instruction.
	Boundary *il.Instruction
	// IsInitializer is true when the boundary calls the base type. Chained
	// constructors call a constructor of the same type.
	IsInitializer bool

	InitializationInstructions []*il.Instruction
	ConstructionInstructions   []*il.Instruction

	InitializationVariables []*il.Variable
	ConstructionVariables   []*il.Variable
	SharedVariables         []*il.Variable

	initIns  map[*il.Instruction]struct{}
	ctorIns  map[*il.Instruction]struct{}
	initVars map[*il.Variable]struct{}
	ctorVars map[*il.Variable]struct{}
}

// Analyze partitions ctor. It fails with ErrMissingBoundary when ctor has no
// body or its body never calls a base or chained constructor on this.
func Analyze(ctor *il.MethodDef) (*Constructor, error) {
	if ctor == nil || ctor.Body == nil || ctor.DeclaringType == nil {
		return nil, fmt.Errorf("%w: %v has no body", ErrMissingBoundary, ctor)
	}

	start, call, initializer, ok := findBoundary(ctor)
	if !ok {
		return nil, fmt.Errorf("%w in %s", ErrMissingBoundary, ctor.FullName())
	}

	body := ctor.Body
	c := &Constructor{
		Method:        ctor,
		BoundaryStart: start,
		BoundaryIndex: call,
		Boundary:      body.Instructions[call],
		IsInitializer: initializer,
		initIns:       make(map[*il.Instruction]struct{}),
		ctorIns:       make(map[*il.Instruction]struct{}),
		initVars:      make(map[*il.Variable]struct{}),
		ctorVars:      make(map[*il.Variable]struct{}),
	}

	usedBefore := make(map[*il.Variable]struct{})
	usedAfter := make(map[*il.Variable]struct{})

	for i, ins := range body.Instructions {
		switch {
		case i < start:
			c.InitializationInstructions = append(c.InitializationInstructions, ins)
			c.initIns[ins] = struct{}{}

			if v, ok := ins.Operand.(*il.Variable); ok {
				usedBefore[v] = struct{}{}
			}
		case i > call:
			c.ConstructionInstructions = append(c.ConstructionInstructions, ins)
			c.ctorIns[ins] = struct{}{}

			if v, ok := ins.Operand.(*il.Variable); ok {
				usedAfter[v] = struct{}{}
			}
		}
	}

	for _, v := range body.Variables {
		_, before := usedBefore[v]
		_, after := usedAfter[v]

		switch {
		case before && after:
			c.SharedVariables = append(c.SharedVariables, v)
			c.initVars[v] = struct{}{}
			c.ctorVars[v] = struct{}{}
		case before:
			c.InitializationVariables = append(c.InitializationVariables, v)
			c.initVars[v] = struct{}{}
		case after:
			c.ConstructionVariables = append(c.ConstructionVariables, v)
			c.ctorVars[v] = struct{}{}
		}
	}

	return c, nil
}

// HasInitialization reports whether anything precedes the boundary.
func (c *Constructor) HasInitialization() bool {
	return len(c.InitializationInstructions) > 0
}

// HasConstructionLogic reports whether the construction partition does more
// than return.
func (c *Constructor) HasConstructionLogic() bool {
	for _, ins := range c.ConstructionInstructions {
		if ins.OpCode != il.OpNop && ins.OpCode != il.OpRet {
			return true
		}
	}

	return false
}

// IsInitialization reports whether ins belongs to the initialization
// partition.
func (c *Constructor) IsInitialization(ins *il.Instruction) bool {
	_, ok := c.initIns[ins]
	return ok
}

// IsConstruction reports whether ins belongs to the construction partition.
func (c *Constructor) IsConstruction(ins *il.Instruction) bool {
	_, ok := c.ctorIns[ins]
	return ok
}

// UsedByInitialization reports whether v is an initialization or shared
// variable.
func (c *Constructor) UsedByInitialization(v *il.Variable) bool {
	_, ok := c.initVars[v]
	return ok
}

// UsedByConstruction reports whether v is a construction or shared variable.
func (c *Constructor) UsedByConstruction(v *il.Variable) bool {
	_, ok := c.ctorVars[v]
	return ok
}

// IsShared reports whether v is referenced on both sides of the boundary.
func (c *Constructor) IsShared(v *il.Variable) bool {
	return c.UsedByInitialization(v) && c.UsedByConstruction(v)
}
