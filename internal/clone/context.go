// Package clone copies a type with its whole member tree from one module
// into another and rewrites every reference so that the copy is
// self-consistent.
//
// References to elements of the cloned tree are redirected to their
// counterparts in the target; references to anything else are imported
// into the target module unchanged. A clone either creates a fresh type or
// merges into an existing one. When merging, the source constructor is
// split by the multiplex package: its field initialization is spliced into
// every initializing target constructor and its remaining logic moves into
// a private method that those constructors call.
//
// A Context performs exactly one operation and is not safe for concurrent
// use. A target module must not be used after a failed operation.
package clone

import (
	"fmt"

	"ilclone/internal/graph"
	"ilclone/internal/il"
	"ilclone/internal/multiplex"
)

// Context is one clone operation.
type Context struct {
	source *il.TypeDef
	module *il.Module
	lanes  []*lane
	weaves []weave

	graph    *graph.Graph
	records  []*record
	bySource [][]clonerID

	types   map[cacheKey]il.TypeRef
	methods map[cacheKey]il.MethodRef
	fields  map[cacheKey]il.FieldRef
	ctors   map[*il.MethodDef]*multiplex.Constructor
	shared  map[clonerID][]*il.Parameter
	locals  map[localKey]*record

	executed bool
}

// cacheKey identifies a redirected element within one lane.
type cacheKey struct {
	lane int
	node graph.ID
}

// New prepares cloning source into targets. All targets must live in the
// same module. The source is checked up front and every unsupported shape is
// reported at once.
func New(source *il.TypeDef, targets ...Target) (*Context, error) {
	if source == nil {
		return nil, fail(ErrInvalidOperation, nil, "no source type")
	}

	if source.Module == nil {
		return nil, fail(ErrInvalidOperation, source, "source type is not part of a module")
	}

	if len(targets) == 0 {
		return nil, fail(ErrInvalidOperation, source, "no target")
	}

	c := &Context{
		source:  source,
		types:   make(map[cacheKey]il.TypeRef),
		methods: make(map[cacheKey]il.MethodRef),
		fields:  make(map[cacheKey]il.FieldRef),
		ctors:   make(map[*il.MethodDef]*multiplex.Constructor),
		shared:  make(map[clonerID][]*il.Parameter),
		locals:  make(map[localKey]*record),
	}

	for _, t := range targets {
		if err := c.addTarget(t); err != nil {
			return nil, err
		}
	}

	if err := preflight(source); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Context) addTarget(t Target) error {
	switch {
	case t.module == nil:
		return fail(ErrInvalidOperation, t, "target is not part of a module")
	case c.module != nil && t.module != c.module:
		return fail(ErrInvalidOperation, t, "targets span modules %s and %s", c.module, t.module)
	case !t.Merging() && t.name == "":
		return fail(ErrInvalidOperation, c.source, "fresh target without a name")
	case t.Merging() && within(t.typ, c.source):
		return fail(ErrInvalidOperation, t, "target is part of the source %s", c.source)
	}

	c.module = t.module
	c.lanes = append(c.lanes, newLane(t))

	return nil
}

func within(t, outer *il.TypeDef) bool {
	for each := t; each != nil; each = each.DeclaringType {
		if each == outer {
			return true
		}
	}

	return false
}

// Execute runs the operation. On success the target module holds the
// clone; on failure the module may be partially mutated.
func (c *Context) Execute() error {
	if c.executed {
		return fail(ErrInvalidOperation, c.source, "context already executed")
	}

	c.executed = true

	c.graph = graph.Build(c.source).ClosedSetFor(c.source)
	c.bySource = make([][]clonerID, c.graph.Len())

	creation, err := c.graph.CreationOrder()
	if err != nil {
		return fmt.Errorf("creation order of %s: %w", c.source, err)
	}

	for _, node := range creation {
		before := len(c.records)

		if err := c.dispatch(node); err != nil {
			return err
		}

		for id := before; id < len(c.records); id++ {
			if _, err := c.realize(clonerID(id)); err != nil {
				return err
			}
		}
	}

	link, err := graph.SortStable(len(c.records), c.linkDependencies)
	if err != nil {
		return fmt.Errorf("link order of %s: %w", c.source, err)
	}

	for _, id := range link {
		if err := c.clone(clonerID(id)); err != nil {
			return err
		}
	}

	for _, r := range c.records {
		if body, ok := r.target.(*il.MethodBody); ok {
			body.ComputeOffsets()
		}
	}

	return nil
}

// linkDependencies returns the records of the same lane cloning the
// elements that the source of record i refers to.
func (c *Context) linkDependencies(i int) []int {
	r := c.records[i]

	var deps []int

	for _, dep := range c.graph.Dependencies(r.node) {
		for _, id := range c.bySource[dep] {
			if c.records[id].lane == r.lane {
				deps = append(deps, int(id))
			}
		}
	}

	return deps
}

// Targets returns the root targets in the order they were given. It returns
// nil before Execute has succeeded in creating them.
func (c *Context) Targets() []*il.TypeDef {
	if c.graph == nil {
		return nil
	}

	root, ok := c.graph.Lookup(c.source)
	if !ok {
		return nil
	}

	var out []*il.TypeDef

	for _, id := range c.bySource[root] {
		if t, ok := c.records[id].target.(*il.TypeDef); ok {
			out = append(out, t)
		}
	}

	return out
}

// TargetsOf returns every target produced for the source element el, in
// lane order.
func (c *Context) TargetsOf(el il.Element) []il.Element {
	if c.graph == nil {
		return nil
	}

	node, ok := c.graph.Lookup(el)
	if !ok {
		return nil
	}

	var out []il.Element

	for _, id := range c.bySource[node] {
		if t := c.records[id].target; t != nil {
			out = append(out, t)
		}
	}

	return out
}

// constructor returns the cached multiplexed view of ctor.
func (c *Context) constructor(ctor *il.MethodDef) (*multiplex.Constructor, error) {
	if mc, ok := c.ctors[ctor]; ok {
		return mc, nil
	}

	mc, err := multiplex.Analyze(ctor)
	if err != nil {
		return nil, wrap(ErrMissingBoundary, ctor, err)
	}

	c.ctors[ctor] = mc

	return mc, nil
}
