package clone

import (
	"slices"

	"ilclone/internal/il"
)

type fieldCloner struct{}

func (fieldCloner) acquire(c *Context, r *record) (il.Element, error) {
	owner, err := targetAs[*il.TypeDef](c, r.parent)
	if err != nil {
		return nil, err
	}

	source := r.source.(*il.FieldDef)
	f := &il.FieldDef{Name: source.Name, Attributes: source.Attributes}
	owner.AddField(f)

	return f, nil
}

func (fieldCloner) populate(c *Context, r *record) error {
	source := r.source.(*il.FieldDef)
	target := r.target.(*il.FieldDef)

	t, err := c.importType(r, source.FieldType)
	if err != nil {
		return err
	}

	target.FieldType = t
	target.Constant = source.Constant
	target.InitialValue = slices.Clone(source.InitialValue)

	return nil
}

type propertyCloner struct{}

func (propertyCloner) acquire(c *Context, r *record) (il.Element, error) {
	owner, err := targetAs[*il.TypeDef](c, r.parent)
	if err != nil {
		return nil, err
	}

	source := r.source.(*il.PropertyDef)
	p := &il.PropertyDef{Name: source.Name, Attributes: source.Attributes}
	owner.AddProperty(p)

	return p, nil
}

func (propertyCloner) populate(c *Context, r *record) error {
	source := r.source.(*il.PropertyDef)
	target := r.target.(*il.PropertyDef)

	var err error

	if target.PropertyType, err = c.importType(r, source.PropertyType); err != nil {
		return err
	}

	if target.GetMethod, err = c.accessor(r, source.GetMethod); err != nil {
		return err
	}

	target.SetMethod, err = c.accessor(r, source.SetMethod)

	return err
}

type eventCloner struct{}

func (eventCloner) acquire(c *Context, r *record) (il.Element, error) {
	owner, err := targetAs[*il.TypeDef](c, r.parent)
	if err != nil {
		return nil, err
	}

	source := r.source.(*il.EventDef)
	e := &il.EventDef{Name: source.Name, Attributes: source.Attributes}
	owner.AddEvent(e)

	return e, nil
}

func (eventCloner) populate(c *Context, r *record) error {
	source := r.source.(*il.EventDef)
	target := r.target.(*il.EventDef)

	var err error

	if target.EventType, err = c.importType(r, source.EventType); err != nil {
		return err
	}

	if target.AddMethod, err = c.accessor(r, source.AddMethod); err != nil {
		return err
	}

	if target.RemoveMethod, err = c.accessor(r, source.RemoveMethod); err != nil {
		return err
	}

	target.InvokeMethod, err = c.accessor(r, source.InvokeMethod)

	return err
}

// accessor resolves an accessor method, which is a member of the same type
// and so always has a cloned counterpart.
func (c *Context) accessor(r *record, m *il.MethodDef) (*il.MethodDef, error) {
	if m == nil {
		return nil, nil
	}

	ref, err := c.importMethod(r, m)
	if err != nil {
		return nil, err
	}

	def, ok := ref.(*il.MethodDef)
	if !ok {
		return nil, fail(ErrBrokenReference, m, "accessor does not resolve to a method of %s", c.lanes[r.lane])
	}

	return def, nil
}

type customAttributeCloner struct{}

func (customAttributeCloner) acquire(c *Context, r *record) (il.Element, error) {
	owner, err := targetAs[il.AttributeProvider](c, r.parent)
	if err != nil {
		return nil, err
	}

	a := &il.CustomAttribute{}
	list := owner.CustomAttributeList()
	*list = append(*list, a)

	return a, nil
}

func (customAttributeCloner) populate(c *Context, r *record) error {
	source := r.source.(*il.CustomAttribute)
	target := r.target.(*il.CustomAttribute)

	ctor, err := c.importMethod(r, source.Constructor)
	if err != nil {
		return err
	}

	target.Constructor = ctor
	target.Arguments = make([]il.AttributeArgument, len(source.Arguments))

	for i, arg := range source.Arguments {
		t, err := c.importType(r, arg.Type)
		if err != nil {
			return err
		}

		value := arg.Value
		if ref, ok := value.(il.TypeRef); ok {
			if value, err = c.importType(r, ref); err != nil {
				return err
			}
		}

		target.Arguments[i] = il.AttributeArgument{Type: t, Value: value}
	}

	return nil
}

type genericParameterCloner struct{}

func (genericParameterCloner) acquire(c *Context, r *record) (il.Element, error) {
	owner, err := c.parentTarget(r)
	if err != nil {
		return nil, err
	}

	prev, err := c.previousTarget(r)
	if err != nil {
		return nil, err
	}

	previous, _ := prev.(*il.GenericParameter)
	source := r.source.(*il.GenericParameter)
	gp := &il.GenericParameter{Name: source.Name, Attributes: source.Attributes}

	switch owner := owner.(type) {
	case *il.TypeDef:
		owner.InsertGenericParameterAfter(previous, gp)
	case *il.MethodDef:
		owner.InsertGenericParameterAfter(previous, gp)
	default:
		return nil, fail(ErrDispatchGap, source, "generic parameter owned by %s", owner.Kind())
	}

	return gp, nil
}

func (genericParameterCloner) populate(c *Context, r *record) error {
	source := r.source.(*il.GenericParameter)
	target := r.target.(*il.GenericParameter)

	target.Constraints = make([]il.TypeRef, 0, len(source.Constraints))

	for _, constraint := range source.Constraints {
		t, err := c.importType(r, constraint)
		if err != nil {
			return err
		}

		target.Constraints = append(target.Constraints, t)
	}

	return nil
}

type parameterCloner struct{}

func (parameterCloner) acquire(c *Context, r *record) (il.Element, error) {
	method, err := targetAs[*il.MethodDef](c, r.parent)
	if err != nil {
		return nil, err
	}

	prev, err := c.previousTarget(r)
	if err != nil {
		return nil, err
	}

	previous, _ := prev.(*il.Parameter)
	source := r.source.(*il.Parameter)
	p := &il.Parameter{Name: source.Name, Attributes: source.Attributes}
	method.InsertParameterAfter(previous, p)

	return p, nil
}

func (parameterCloner) populate(c *Context, r *record) error {
	source := r.source.(*il.Parameter)
	target := r.target.(*il.Parameter)

	t, err := c.importType(r, source.ParameterType)
	if err != nil {
		return err
	}

	target.ParameterType = t
	target.Constant = source.Constant

	return nil
}
