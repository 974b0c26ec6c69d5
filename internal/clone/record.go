package clone

import (
	"ilclone/internal/graph"
	"ilclone/internal/il"
)

type clonerID int

const noCloner clonerID = -1

type state int

const (
	unrealized state = iota
	realized
	cloned
)

// cloner is the per-kind behaviour of a record. acquire creates or looks up
// the target; populate fills it in once every target exists.
type cloner interface {
	acquire(c *Context, r *record) (il.Element, error)
	populate(c *Context, r *record) error
}

// admitter is implemented by cloners that clone only some of their source's
// children.
type admitter interface {
	admits(c *Context, r *record, child il.Element) bool
}

// substituter is implemented by body cloners that drop a source
// instruction and send references to it elsewhere.
type substituter interface {
	substitute(ins *il.Instruction) (*il.Instruction, bool)
}

// record is one cloner in the context's arena. Records refer to their
// parent and previous sibling by id.
type record struct {
	id       clonerID
	node     graph.ID
	source   il.Element
	lane     int
	parent   clonerID
	previous clonerID
	state    state
	target   il.Element
	impl     cloner
}

func (c *Context) add(node graph.ID, lane int, parent, previous clonerID, impl cloner) *record {
	r := &record{
		id:       clonerID(len(c.records)),
		node:     node,
		source:   c.graph.Element(node),
		lane:     lane,
		parent:   parent,
		previous: previous,
		impl:     impl,
	}

	c.records = append(c.records, r)
	c.bySource[node] = append(c.bySource[node], r.id)

	return r
}

func (c *Context) record(id clonerID) *record {
	if id == noCloner {
		return nil
	}

	return c.records[id]
}

// realize acquires the target of id, together with its parent and previous
// sibling, and applies the first matching weave.
func (c *Context) realize(id clonerID) (il.Element, error) {
	r := c.records[id]
	if r.state != unrealized {
		return r.target, nil
	}

	for _, dep := range []clonerID{r.parent, r.previous} {
		if dep == noCloner {
			continue
		}

		if _, err := c.realize(dep); err != nil {
			return nil, err
		}
	}

	target, err := r.impl.acquire(c, r)
	if err != nil {
		return nil, err
	}

	r.target = target
	r.state = realized

	if c.copies(r) {
		if err := c.applyWeave(r.source, target); err != nil {
			return nil, err
		}
	}

	return target, nil
}

// copies reports whether the target of r is a copy of its source. Reused
// targets of a merge and extracted constructor logic are not, and weaves
// leave them alone.
func (c *Context) copies(r *record) bool {
	switch r.impl.(type) {
	case *noopCtorCloner, *ctorInitCloner, *staticInitCloner, ctorLogicCloner, *logicBodyCloner:
		return false
	case rootTypeCloner:
		return !c.lanes[r.lane].Merging()
	}

	return true
}

// clone populates the target of id exactly once.
func (c *Context) clone(id clonerID) error {
	if _, err := c.realize(id); err != nil {
		return err
	}

	r := c.records[id]
	if r.state == cloned {
		return nil
	}

	if err := r.impl.populate(c, r); err != nil {
		return err
	}

	r.state = cloned

	return nil
}

// parentTarget returns the realized target of r's parent.
func (c *Context) parentTarget(r *record) (il.Element, error) {
	return c.realize(r.parent)
}

// previousTarget returns the realized target of r's previous sibling, or
// nil.
func (c *Context) previousTarget(r *record) (il.Element, error) {
	if r.previous == noCloner {
		return nil, nil
	}

	return c.realize(r.previous)
}

// ancestors returns r's parent chain, nearest first.
func (c *Context) ancestors(r *record) []*record {
	var out []*record

	for p := c.record(r.parent); p != nil; p = c.record(p.parent) {
		out = append(out, p)
	}

	return out
}

// enclosing returns the nearest ancestor of r (r included) whose target is
// of type T.
func enclosing[T il.Element](c *Context, r *record) (*record, T, bool) {
	for each := r; each != nil; each = c.record(each.parent) {
		if t, ok := each.target.(T); ok {
			return each, t, true
		}
	}

	var zero T

	return nil, zero, false
}
