package clone

import (
	"ilclone/internal/graph"
	"ilclone/internal/il"
)

// The resolver turns references found in source elements into references
// usable from the target module. Elements of the cloned tree resolve to the
// target of their cloner in the requester's lane; everything else is
// imported into the target module as is.

// counterpart returns the cloner of node in r's lane that shares the
// deepest ancestor with r. Records rejected by accept are ignored.
func (c *Context) counterpart(r *record, node graph.ID, accept func(*record) bool) (*record, bool) {
	depth := make(map[clonerID]int)

	chain := append([]*record{r}, c.ancestors(r)...)
	for i, each := range chain {
		depth[each.id] = len(chain) - i
	}

	var (
		best      *record
		bestDepth = -1
	)

	for _, id := range c.bySource[node] {
		candidate := c.records[id]
		if candidate.lane != r.lane || (accept != nil && !accept(candidate)) {
			continue
		}

		d := 0

		for each := candidate; each != nil; each = c.record(each.parent) {
			if n, ok := depth[each.id]; ok {
				d = n
				break
			}
		}

		if d > bestDepth {
			best, bestDepth = candidate, d
		}
	}

	return best, best != nil
}

func (c *Context) importType(r *record, t il.TypeRef) (il.TypeRef, error) {
	switch t := t.(type) {
	case nil:
		return nil, nil

	case *il.TypeDef:
		if node, ok := c.graph.Lookup(t); ok {
			return c.redirectType(r, node)
		}

	case *il.GenericParameter:
		if node, ok := c.graph.Lookup(t); ok {
			return c.redirectType(r, node)
		}

		return t, nil

	case *il.ArrayType:
		elem, err := c.importType(r, t.ElementType)
		if err != nil {
			return nil, err
		}

		return &il.ArrayType{ElementType: elem, Rank: t.Rank}, nil

	case *il.GenericInstanceType:
		elem, err := c.importType(r, t.ElementType)
		if err != nil {
			return nil, err
		}

		args := make([]il.TypeRef, len(t.Arguments))
		for i, arg := range t.Arguments {
			if args[i], err = c.importType(r, arg); err != nil {
				return nil, err
			}
		}

		return &il.GenericInstanceType{ElementType: elem, Arguments: args}, nil
	}

	imported, err := c.module.ImportType(t)
	if err != nil {
		return nil, wrap(ErrBrokenReference, t, err)
	}

	return imported, nil
}

func (c *Context) redirectType(r *record, node graph.ID) (il.TypeRef, error) {
	key := cacheKey{lane: r.lane, node: node}
	if t, ok := c.types[key]; ok {
		return t, nil
	}

	target, ok := c.counterpart(r, node, nil)
	if !ok {
		return nil, fail(ErrBrokenReference, c.graph.Element(node), "no counterpart of matching arity in %s", c.lanes[r.lane])
	}

	t, ok := target.target.(il.TypeRef)
	if !ok {
		return nil, fail(ErrBrokenReference, target.source, "target %v is not a type", target.target)
	}

	c.types[key] = t

	return t, nil
}

func (c *Context) importMethod(r *record, m il.MethodRef) (il.MethodRef, error) {
	switch m := m.(type) {
	case nil:
		return nil, nil

	case *il.MethodDef:
		if node, ok := c.graph.Lookup(m); ok {
			return c.redirectMethod(r, node)
		}

	case *il.MethodReference:
		if decl, ok := c.clonedType(m.DeclaringType); ok {
			return c.matchMethod(r, decl, m)
		}

		return c.passMethod(r, m)

	case *il.GenericInstanceMethod:
		elem, err := c.importMethod(r, m.ElementMethod)
		if err != nil {
			return nil, err
		}

		args := make([]il.TypeRef, len(m.Arguments))
		for i, arg := range m.Arguments {
			if args[i], err = c.importType(r, arg); err != nil {
				return nil, err
			}
		}

		return &il.GenericInstanceMethod{ElementMethod: elem, Arguments: args}, nil
	}

	imported, err := c.module.ImportMethod(m)
	if err != nil {
		return nil, wrap(ErrBrokenReference, m, err)
	}

	return imported, nil
}

// passMethod imports a reference to a method outside the cloned tree. The
// declaring type may still be instantiated over cloned types; the
// signature stays in its declared form.
func (c *Context) passMethod(r *record, m *il.MethodReference) (il.MethodRef, error) {
	decl, err := c.importType(r, m.DeclaringType)
	if err != nil {
		return nil, err
	}

	ret, err := c.module.ImportType(m.ReturnType)
	if err != nil {
		return nil, wrap(ErrBrokenReference, m, err)
	}

	params := make([]il.TypeRef, len(m.ParameterTypes))
	for i, p := range m.ParameterTypes {
		if params[i], err = c.module.ImportType(p); err != nil {
			return nil, wrap(ErrBrokenReference, m, err)
		}
	}

	return &il.MethodReference{
		DeclaringType:     decl,
		Name:              m.Name,
		HasThis:           m.HasThis,
		ReturnType:        ret,
		ParameterTypes:    params,
		GenericParameters: m.GenericParameters,
	}, nil
}

// redirectMethod resolves a cloned method to its counterpart with the same
// arity. Extracted constructor logic is never a redirection target, so a
// constructor reference with no matching target constructor is broken.
func (c *Context) redirectMethod(r *record, node graph.ID) (il.MethodRef, error) {
	key := cacheKey{lane: r.lane, node: node}
	if m, ok := c.methods[key]; ok {
		return m, nil
	}

	source, _ := c.graph.Element(node).(*il.MethodDef)

	target, ok := c.counterpart(r, node, func(each *record) bool {
		if _, logic := each.impl.(ctorLogicCloner); logic {
			return false
		}

		m, ok := each.target.(*il.MethodDef)
		return ok && (source == nil || len(m.Parameters) == len(source.Parameters))
	})

	if !ok {
		return nil, fail(ErrBrokenReference, c.graph.Element(node), "not cloned into %s", c.lanes[r.lane])
	}

	m, ok := target.target.(*il.MethodDef)
	if !ok {
		return nil, fail(ErrBrokenReference, target.source, "target %v is not a method", target.target)
	}

	c.methods[key] = m

	return m, nil
}

// clonedType returns the cloned type definition behind t, looking through
// generic instantiation.
func (c *Context) clonedType(t il.TypeRef) (*il.TypeDef, bool) {
	def, ok := il.ElementTypeOf(t).(*il.TypeDef)
	if !ok || !c.graph.Contains(def) {
		return nil, false
	}

	return def, true
}

// matchMethod resolves a method referenced through a cloned type, possibly
// instantiated, by finding the source method with the same signature.
func (c *Context) matchMethod(r *record, decl *il.TypeDef, ref *il.MethodReference) (il.MethodRef, error) {
	want := il.MethodKey(ref)

	var found *il.MethodDef

	for _, m := range decl.Methods {
		if il.MethodKey(m) == want {
			found = m
			break
		}
	}

	if found == nil {
		return nil, fail(ErrBrokenReference, ref, "no method of %s matches %s", decl, want)
	}

	node, _ := c.graph.Lookup(found)

	redirected, err := c.redirectMethod(r, node)
	if err != nil {
		return nil, err
	}

	if _, generic := ref.DeclaringType.(*il.GenericInstanceType); !generic {
		return redirected, nil
	}

	target := redirected.(*il.MethodDef)

	declType, err := c.importType(r, ref.DeclaringType)
	if err != nil {
		return nil, err
	}

	ret, err := c.importType(r, found.ReturnType)
	if err != nil {
		return nil, err
	}

	params := make([]il.TypeRef, len(found.Parameters))
	for i, p := range found.Parameters {
		if params[i], err = c.importType(r, p.ParameterType); err != nil {
			return nil, err
		}
	}

	return &il.MethodReference{
		DeclaringType:     declType,
		Name:              target.Name,
		HasThis:           found.Instance(),
		ReturnType:        ret,
		ParameterTypes:    params,
		GenericParameters: target.GenericParameters,
	}, nil
}

func (c *Context) importField(r *record, f il.FieldRef) (il.FieldRef, error) {
	switch f := f.(type) {
	case nil:
		return nil, nil

	case *il.FieldDef:
		if node, ok := c.graph.Lookup(f); ok {
			return c.redirectField(r, node)
		}

	case *il.FieldReference:
		if decl, ok := c.clonedType(f.DeclaringType); ok {
			return c.matchField(r, decl, f)
		}

		decl, err := c.importType(r, f.DeclaringType)
		if err != nil {
			return nil, err
		}

		t, err := c.module.ImportType(f.FieldType)
		if err != nil {
			return nil, wrap(ErrBrokenReference, f, err)
		}

		return &il.FieldReference{DeclaringType: decl, Name: f.Name, FieldType: t}, nil
	}

	imported, err := c.module.ImportField(f)
	if err != nil {
		return nil, wrap(ErrBrokenReference, f, err)
	}

	return imported, nil
}

func (c *Context) redirectField(r *record, node graph.ID) (il.FieldRef, error) {
	key := cacheKey{lane: r.lane, node: node}
	if f, ok := c.fields[key]; ok {
		return f, nil
	}

	target, ok := c.counterpart(r, node, nil)
	if !ok {
		return nil, fail(ErrBrokenReference, c.graph.Element(node), "not cloned into %s", c.lanes[r.lane])
	}

	f, ok := target.target.(*il.FieldDef)
	if !ok {
		return nil, fail(ErrBrokenReference, target.source, "target %v is not a field", target.target)
	}

	c.fields[key] = f

	return f, nil
}

func (c *Context) matchField(r *record, decl *il.TypeDef, ref *il.FieldReference) (il.FieldRef, error) {
	want := il.TypeKey(ref.FieldType)

	var found *il.FieldDef

	for _, f := range decl.Fields {
		if f.Name == ref.Name && il.TypeKey(f.FieldType) == want {
			found = f
			break
		}
	}

	if found == nil {
		return nil, fail(ErrBrokenReference, ref, "no field of %s matches", decl)
	}

	node, _ := c.graph.Lookup(found)

	redirected, err := c.redirectField(r, node)
	if err != nil {
		return nil, err
	}

	if _, generic := ref.DeclaringType.(*il.GenericInstanceType); !generic {
		return redirected, nil
	}

	declType, err := c.importType(r, ref.DeclaringType)
	if err != nil {
		return nil, err
	}

	t, err := c.importType(r, found.FieldType)
	if err != nil {
		return nil, err
	}

	return &il.FieldReference{DeclaringType: declType, Name: redirected.FieldName(), FieldType: t}, nil
}

// importParameter maps this to the requester's own body and every other
// parameter to its clone.
func (c *Context) importParameter(r *record, p *il.Parameter) (*il.Parameter, error) {
	if p.IsThis() {
		_, body, ok := enclosing[*il.MethodBody](c, r)
		if ok {
			if this := body.ThisParameter(); this != nil {
				return this, nil
			}
		}

		return nil, fail(ErrBrokenReference, r.source, "this is not available in a static method")
	}

	node, ok := c.graph.Lookup(p)
	if !ok {
		return nil, fail(ErrBrokenReference, p, "parameter of %v is not cloned", p.Method)
	}

	scope := r.id
	if body, _, ok := enclosing[*il.MethodBody](c, r); ok {
		scope = body.id
	}

	target, ok := c.cachedCounterpart(localKey{scope: scope, node: node}, func() (*record, bool) {
		return c.counterpart(r, node, nil)
	})
	if !ok {
		return nil, fail(ErrBrokenReference, p, "not cloned into %s", c.lanes[r.lane])
	}

	return target.target.(*il.Parameter), nil
}

func (c *Context) importVariable(r *record, v *il.Variable) (*il.Variable, error) {
	target, ok := c.bodyCounterpart(r, v)
	if !ok {
		return nil, fail(ErrBrokenReference, r.source, "variable %s is not cloned alongside", v)
	}

	return target.target.(*il.Variable), nil
}

func (c *Context) importInstruction(r *record, ins *il.Instruction) (*il.Instruction, error) {
	if ins == nil {
		return nil, nil
	}

	if target, ok := c.bodyCounterpart(r, ins); ok {
		return target.target.(*il.Instruction), nil
	}

	for each := r; each != nil; each = c.record(each.parent) {
		if s, ok := each.impl.(substituter); ok {
			if to, ok := s.substitute(ins); ok {
				return to, nil
			}
		}
	}

	return nil, fail(ErrBrokenReference, r.source, "instruction %s is not cloned alongside", ins)
}

// bodyCounterpart finds the clone of a body element under the same body
// cloner as r.
func (c *Context) bodyCounterpart(r *record, el il.Element) (*record, bool) {
	node, ok := c.graph.Lookup(el)
	if !ok {
		return nil, false
	}

	body, _, ok := enclosing[*il.MethodBody](c, r)
	if !ok {
		return nil, false
	}

	return c.cachedCounterpart(localKey{scope: body.id, node: node}, func() (*record, bool) {
		return c.counterpart(r, node, func(candidate *record) bool {
			return candidate.parent == body.id
		})
	})
}

// localKey identifies a body-local lookup: the body cloner asking and the
// element it asks for.
type localKey struct {
	scope clonerID
	node  graph.ID
}

func (c *Context) cachedCounterpart(key localKey, find func() (*record, bool)) (*record, bool) {
	if r, ok := c.locals[key]; ok {
		return r, r != nil
	}

	r, ok := find()
	if !ok {
		r = nil
	}

	c.locals[key] = r

	return r, ok
}
