package clone

import (
	"ilclone/internal/il"
)

// targetAs realizes id and asserts the type of its target.
func targetAs[T il.Element](c *Context, id clonerID) (T, error) {
	var zero T

	el, err := c.realize(id)
	if err != nil {
		return zero, err
	}

	t, ok := el.(T)
	if !ok {
		return zero, fail(ErrDispatchGap, c.records[id].source, "unexpected target %T", el)
	}

	return t, nil
}

// rootTypeCloner clones the root type into a fresh type or merges it into an
// existing one.
type rootTypeCloner struct{}

func (rootTypeCloner) acquire(c *Context, r *record) (il.Element, error) {
	l := c.lanes[r.lane]
	if l.Merging() {
		return l.typ, nil
	}

	source := r.source.(*il.TypeDef)
	t := il.NewType(l.namespace, l.name, source.Attributes, nil)
	c.module.AddType(t)

	return t, nil
}

func (rootTypeCloner) populate(c *Context, r *record) error {
	source := r.source.(*il.TypeDef)
	target := r.target.(*il.TypeDef)

	if !c.lanes[r.lane].Merging() {
		if err := copyLayout(c, r, source, target); err != nil {
			return err
		}
	}

	return copyInterfaces(c, r, source, target)
}

// typeCloner clones a nested type.
type typeCloner struct{}

func (typeCloner) acquire(c *Context, r *record) (il.Element, error) {
	owner, err := targetAs[*il.TypeDef](c, r.parent)
	if err != nil {
		return nil, err
	}

	source := r.source.(*il.TypeDef)
	t := il.NewType(source.Namespace, source.Name, source.Attributes, nil)
	owner.AddNestedType(t)

	return t, nil
}

func (typeCloner) populate(c *Context, r *record) error {
	source := r.source.(*il.TypeDef)
	target := r.target.(*il.TypeDef)

	if err := copyLayout(c, r, source, target); err != nil {
		return err
	}

	return copyInterfaces(c, r, source, target)
}

func copyLayout(c *Context, r *record, source, target *il.TypeDef) error {
	base, err := c.importType(r, source.BaseType)
	if err != nil {
		return err
	}

	target.BaseType = base
	target.PackingSize = source.PackingSize
	target.ClassSize = source.ClassSize

	return nil
}

// copyInterfaces adds the interfaces of source that target does not list
// yet.
func copyInterfaces(c *Context, r *record, source, target *il.TypeDef) error {
	for _, impl := range source.Interfaces {
		if len(impl.CustomAttributes) > 0 {
			return fail(ErrUnsupported, source, "attributes on implementation of %s", impl.InterfaceType)
		}

		t, err := c.importType(r, impl.InterfaceType)
		if err != nil {
			return err
		}

		if !target.Implements(t.FullName()) {
			target.Interfaces = append(target.Interfaces, &il.InterfaceImpl{InterfaceType: t})
		}
	}

	return nil
}
