package il

import "slices"

// CoreScope is the name of the core library every module may reference.
const CoreScope = "System.Runtime"

// Module is a unit of compiled code: a named set of type definitions plus the
// names of the modules it is allowed to reference.
type Module struct {
	Name       string
	References []string
	Types      []*TypeDef
}

// NewModule creates an empty module.
func NewModule(name string, references ...string) *Module {
	return &Module{
		Name:       name,
		References: references,
	}
}

func (m *Module) Kind() Kind     { return KindModule }
func (m *Module) String() string { return m.Name }

// AddType attaches t as a top-level type of m.
func (m *Module) AddType(t *TypeDef) {
	t.Module = m
	t.DeclaringType = nil
	m.Types = append(m.Types, t)
	t.adopt(m)
}

// CanReference reports whether symbols defined in scope may be referenced
// from this module.
func (m *Module) CanReference(scope string) bool {
	if scope == m.Name || scope == CoreScope {
		return true
	}

	return slices.Contains(m.References, scope)
}

// AddReference records scope as referenced; duplicates are ignored.
func (m *Module) AddReference(scope string) {
	if !m.CanReference(scope) {
		m.References = append(m.References, scope)
	}
}

// Type looks up a type definition, including nested types, by full name.
func (m *Module) Type(fullName string) *TypeDef {
	var found *TypeDef

	m.EachType(func(t *TypeDef) bool {
		if t.FullName() == fullName {
			found = t
			return false
		}

		return true
	})

	return found
}

// EachType visits every type of the module in declaration order, nested
// types right after their declaring type. Returning false stops the walk.
func (m *Module) EachType(fn func(*TypeDef) bool) {
	var walk func(types []*TypeDef) bool

	walk = func(types []*TypeDef) bool {
		for _, t := range types {
			if !fn(t) || !walk(t.NestedTypes) {
				return false
			}
		}

		return true
	}

	walk(m.Types)
}
