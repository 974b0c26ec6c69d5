package clone

import (
	"ilclone/internal/graph"
	"ilclone/internal/il"
)

// dispatch creates the cloners for one node. Nodes are dispatched in
// creation order, so the cloners of the parent and of earlier siblings
// already exist.
func (c *Context) dispatch(node graph.ID) error {
	parent, hasParent := c.graph.Parent(node)

	switch el := c.graph.Element(node).(type) {
	case *il.Module:
		return nil

	case *il.TypeDef:
		if !hasParent {
			for i := range c.lanes {
				c.add(node, i, noCloner, noCloner, rootTypeCloner{})
			}

			return nil
		}

		c.fanOut(node, parent, func() cloner { return typeCloner{} })

	case *il.FieldDef:
		c.fanOut(node, parent, func() cloner { return fieldCloner{} })

	case *il.PropertyDef:
		c.fanOut(node, parent, func() cloner { return propertyCloner{} })

	case *il.EventDef:
		c.fanOut(node, parent, func() cloner { return eventCloner{} })

	case *il.CustomAttribute:
		c.fanOut(node, parent, func() cloner { return customAttributeCloner{} })

	case *il.MethodDef:
		return c.dispatchMethod(node, parent, el)

	case *il.MethodBody:
		return c.dispatchBody(node, parent)

	case *il.GenericParameter:
		c.fanOutOrdered(node, parent, func() cloner { return genericParameterCloner{} })

	case *il.Parameter:
		c.fanOutOrdered(node, parent, func() cloner { return parameterCloner{} })

	case *il.Variable:
		c.fanOutOrdered(node, parent, func() cloner { return variableCloner{} })

	case *il.Instruction:
		c.fanOutOrdered(node, parent, func() cloner { return instructionCloner{} })

	case *il.ExceptionHandler:
		c.fanOutOrdered(node, parent, func() cloner { return handlerCloner{} })

	default:
		return fail(ErrDispatchGap, el, "%s elements cannot be cloned", el.Kind())
	}

	return nil
}

// parents returns the cloners of parent that admit child.
func (c *Context) parents(parent graph.ID, child il.Element) []*record {
	var out []*record

	for _, id := range c.bySource[parent] {
		p := c.records[id]

		if a, ok := p.impl.(admitter); ok && !a.admits(c, p, child) {
			continue
		}

		out = append(out, p)
	}

	return out
}

// fanOut adds one cloner per parent cloner.
func (c *Context) fanOut(node, parent graph.ID, newCloner func() cloner) {
	for _, p := range c.parents(parent, c.graph.Element(node)) {
		c.add(node, p.lane, p.id, noCloner, newCloner())
	}
}

// fanOutOrdered adds one cloner per parent cloner, linked to the cloner of
// the nearest earlier sibling cloned under the same parent.
func (c *Context) fanOutOrdered(node, parent graph.ID, newCloner func() cloner) {
	for _, p := range c.parents(parent, c.graph.Element(node)) {
		c.add(node, p.lane, p.id, c.previousUnder(node, p.id), newCloner())
	}
}

func (c *Context) previousUnder(node graph.ID, parent clonerID) clonerID {
	for prev, ok := c.graph.PreviousSibling(node); ok; prev, ok = c.graph.PreviousSibling(prev) {
		for _, id := range c.bySource[prev] {
			if c.records[id].parent == parent {
				return id
			}
		}
	}

	return noCloner
}

func (c *Context) isRootConstructor(m *il.MethodDef) bool {
	return m.DeclaringType == c.source && m.IsConstructor()
}

func (c *Context) dispatchMethod(node, parent graph.ID, m *il.MethodDef) error {
	if !c.isRootConstructor(m) {
		c.fanOut(node, parent, func() cloner { return signatureCloner{} })
		return nil
	}

	for _, p := range c.parents(parent, m) {
		l := c.lanes[p.lane]

		switch {
		case m.IsStatic() && l.cctor != nil:
			c.add(node, p.lane, p.id, noCloner, &noopCtorCloner{existing: l.cctor})

		case !m.IsStatic() && len(l.ctors) > 0:
			for _, existing := range l.ctors {
				c.add(node, p.lane, p.id, noCloner, &noopCtorCloner{existing: existing})
			}

			mc, err := c.constructor(m)
			if err != nil {
				return err
			}

			if mc.HasConstructionLogic() {
				c.add(node, p.lane, p.id, noCloner, ctorLogicCloner{})
			}

		default:
			c.add(node, p.lane, p.id, noCloner, signatureCloner{})
		}
	}

	return nil
}

func (c *Context) dispatchBody(node, method graph.ID) error {
	for _, p := range c.parents(method, c.graph.Element(node)) {
		switch impl := p.impl.(type) {
		case signatureCloner:
			c.add(node, p.lane, p.id, noCloner, bodyCloner{})

		case ctorLogicCloner:
			c.add(node, p.lane, p.id, noCloner, &logicBodyCloner{})

		case *noopCtorCloner:
			if impl.existing.IsStatic() {
				c.add(node, p.lane, p.id, noCloner, &staticInitCloner{})
				continue
			}

			init, err := c.ctorInitCloner(method, p, impl)
			if err != nil {
				return err
			}

			if init != nil {
				c.add(node, p.lane, p.id, noCloner, init)
			}

		default:
			return fail(ErrDispatchGap, p.source, "no body cloner under %T", p.impl)
		}
	}

	return nil
}

// ctorInitCloner returns the initialization cloner for the body of an
// existing target constructor, or nil when the constructor chains to
// another one or there is nothing to splice.
func (c *Context) ctorInitCloner(method graph.ID, p *record, noop *noopCtorCloner) (cloner, error) {
	target, err := c.constructor(noop.existing)
	if err != nil {
		return nil, err
	}

	if !target.IsInitializer {
		return nil, nil
	}

	source, err := c.constructor(p.source.(*il.MethodDef))
	if err != nil {
		return nil, err
	}

	logic := noCloner

	for _, id := range c.bySource[method] {
		r := c.records[id]
		if _, ok := r.impl.(ctorLogicCloner); ok && r.lane == p.lane {
			logic = id
		}
	}

	if !source.HasInitialization() && logic == noCloner {
		return nil, nil
	}

	return &ctorInitCloner{source: source, target: target, logic: logic}, nil
}
