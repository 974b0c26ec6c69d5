// Package graph provides an immutable, queryable graph over the elements of
// a module tree.
//
// Three edge kinds are recorded:
//   - parent/child: containment (type → method → body → instruction)
//   - previous sibling: order among children of an ordered group
//     (parameter N → parameter N+1, instruction → next instruction)
//   - dependency: any other reference (instruction → branch target,
//     instruction → called method, field → field type)
//
// Node ids are assigned in pre-order, so ids follow declaration order and a
// parent always has a smaller id than its children.
package graph

import (
	"ilclone/internal/il"
)

// ID identifies a node of a graph.
type ID int

// None is the absent node.
const None ID = -1

// Graph is an immutable element graph.
type Graph struct {
	nodes    []il.Element
	index    map[il.Element]ID
	parent   []ID
	previous []ID
	children [][]ID
	deps     [][]ID
	depth    []int
	roots    []ID
}

// Build creates the graph of everything contained in roots. Dependency edges
// are recorded only between contained elements.
func Build(roots ...il.Element) *Graph {
	g := &Graph{index: make(map[il.Element]ID)}

	for _, root := range roots {
		if _, seen := g.index[root]; seen {
			continue
		}

		g.roots = append(g.roots, g.add(root, None, None, 0))
	}

	g.deps = make([][]ID, len(g.nodes))

	for id, el := range g.nodes {
		seen := make(map[ID]struct{})

		for _, ref := range referencesOf(el) {
			dep, ok := g.index[ref]
			if !ok || dep == ID(id) {
				continue
			}

			if _, dup := seen[dep]; dup {
				continue
			}

			seen[dep] = struct{}{}
			g.deps[id] = append(g.deps[id], dep)
		}
	}

	return g
}

func (g *Graph) add(el il.Element, parent, previous ID, depth int) ID {
	id := ID(len(g.nodes))

	g.nodes = append(g.nodes, el)
	g.index[el] = id
	g.parent = append(g.parent, parent)
	g.previous = append(g.previous, previous)
	g.children = append(g.children, nil)
	g.depth = append(g.depth, depth)

	for _, grp := range childrenOf(el) {
		prev := None

		for _, child := range grp.elements {
			if _, seen := g.index[child]; seen {
				continue
			}

			sibling := None
			if grp.ordered {
				sibling = prev
			}

			childID := g.add(child, id, sibling, depth+1)
			g.children[id] = append(g.children[id], childID)
			prev = childID
		}
	}

	return id
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Roots returns the root nodes.
func (g *Graph) Roots() []ID { return g.roots }

// Element returns the element of node id.
func (g *Graph) Element(id ID) il.Element { return g.nodes[id] }

// Lookup returns the node of el.
func (g *Graph) Lookup(el il.Element) (ID, bool) {
	id, ok := g.index[el]

	return id, ok
}

// Contains reports whether el is a node of the graph.
func (g *Graph) Contains(el il.Element) bool {
	_, ok := g.index[el]

	return ok
}

// Parent returns the containing node of id.
func (g *Graph) Parent(id ID) (ID, bool) {
	p := g.parent[id]

	return p, p != None
}

// PreviousSibling returns the preceding node in id's ordered group.
func (g *Graph) PreviousSibling(id ID) (ID, bool) {
	p := g.previous[id]

	return p, p != None
}

// Children returns the contained nodes of id in declaration order.
func (g *Graph) Children(id ID) []ID { return g.children[id] }

// Dependencies returns the non-containment references of id.
func (g *Graph) Dependencies(id ID) []ID { return g.deps[id] }

// Depth returns the containment depth of id; roots have depth 0.
func (g *Graph) Depth(id ID) int { return g.depth[id] }

// ParentOf returns the nearest ancestor of el of type T.
func ParentOf[T il.Element](g *Graph, el il.Element) (T, bool) {
	var zero T

	id, ok := g.index[el]
	if !ok {
		return zero, false
	}

	for p, ok := g.Parent(id); ok; p, ok = g.Parent(p) {
		if t, match := g.nodes[p].(T); match {
			return t, true
		}
	}

	return zero, false
}

// PreviousSiblingOf returns the element preceding el in its ordered group.
func (g *Graph) PreviousSiblingOf(el il.Element) (il.Element, bool) {
	id, ok := g.index[el]
	if !ok {
		return nil, false
	}

	prev, ok := g.PreviousSibling(id)
	if !ok {
		return nil, false
	}

	return g.nodes[prev], true
}

// ClosedSetFor returns the sub-graph of every node reachable from seeds over
// containment and dependency edges. Seeds that are not nodes are ignored.
func (g *Graph) ClosedSetFor(seeds ...il.Element) *Graph {
	reached := make([]bool, len(g.nodes))

	var queue []ID

	for _, seed := range seeds {
		if id, ok := g.index[seed]; ok && !reached[id] {
			reached[id] = true
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, next := range append(append([]ID{}, g.children[id]...), g.deps[id]...) {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	sub := &Graph{index: make(map[il.Element]ID)}
	remap := make([]ID, len(g.nodes))

	for id := range g.nodes {
		remap[id] = None
		if !reached[id] {
			continue
		}

		remap[id] = ID(len(sub.nodes))
		sub.nodes = append(sub.nodes, g.nodes[id])
		sub.index[g.nodes[id]] = remap[id]
	}

	mapID := func(id ID) ID {
		if id == None {
			return None
		}

		return remap[id]
	}

	sub.parent = make([]ID, len(sub.nodes))
	sub.previous = make([]ID, len(sub.nodes))
	sub.children = make([][]ID, len(sub.nodes))
	sub.deps = make([][]ID, len(sub.nodes))
	sub.depth = make([]int, len(sub.nodes))

	for old, id := range remap {
		if id == None {
			continue
		}

		sub.parent[id] = mapID(g.parent[old])
		sub.previous[id] = mapID(g.previous[old])

		if sub.parent[id] == None {
			sub.roots = append(sub.roots, id)
			sub.depth[id] = 0
		} else {
			sub.depth[id] = g.depth[old]
		}

		for _, c := range g.children[old] {
			if remap[c] != None {
				sub.children[id] = append(sub.children[id], remap[c])
			}
		}

		for _, d := range g.deps[old] {
			if remap[d] != None {
				sub.deps[id] = append(sub.deps[id], remap[d])
			}
		}
	}

	// Depths are relative to the sub-graph roots.
	for _, id := range sub.ordered() {
		if p := sub.parent[id]; p != None {
			sub.depth[id] = sub.depth[p] + 1
		}
	}

	return sub
}

// ordered returns node ids in increasing order, which is pre-order.
func (g *Graph) ordered() []ID {
	out := make([]ID, len(g.nodes))
	for i := range out {
		out[i] = ID(i)
	}

	return out
}
