package clone

import (
	"ilclone/internal/common"
	"ilclone/internal/il"
)

// Target is one destination of a clone: either a fresh type created in a
// module or an existing type the source is merged into.
type Target struct {
	module    *il.Module
	namespace string
	name      string
	typ       *il.TypeDef
}

// IntoModule targets a fresh top-level type namespace.name of m.
func IntoModule(m *il.Module, namespace, name string) Target {
	return Target{module: m, namespace: namespace, name: name}
}

// IntoType targets an existing type; the source is merged into it.
func IntoType(t *il.TypeDef) Target {
	var m *il.Module
	if t != nil {
		m = t.Module
	}

	return Target{module: m, typ: t}
}

// Merging reports whether the target is an existing type.
func (t Target) Merging() bool { return t.typ != nil }

func (t Target) String() string {
	if t.typ != nil {
		return t.typ.FullName()
	}

	if t.namespace == "" {
		return t.name
	}

	return t.namespace + "." + t.name
}

// lane is the per-target state of one operation. Constructors are captured
// before anything is cloned, so that constructors added by the operation
// are never mistaken for pre-existing ones.
type lane struct {
	Target

	ctors []*il.MethodDef
	cctor *il.MethodDef
	names *common.Names
}

func newLane(t Target) *lane {
	l := &lane{Target: t, names: common.NewNames()}

	if t.typ == nil {
		return l
	}

	l.ctors = t.typ.Constructors()
	l.cctor = t.typ.StaticConstructor()

	for _, m := range t.typ.Methods {
		l.names.Reserve(m.Name)
	}

	return l
}

// logicName hands out a method name for extracted constructor logic that
// no method of the target uses yet.
func (l *lane) logicName(source *il.TypeDef) string {
	return l.names.Fresh("ctor_" + source.Name + "_")
}
