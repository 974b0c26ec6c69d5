package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned by Sort when the dependencies are cyclic.
var ErrCycle = errors.New("cycle detected")

// Sort returns indices in execution order.
//
// Nodes are by index in [0, n). depsFn(i) yields indices that must come
// before i.
//
// The result is deterministic: when multiple nodes are available, the
// smallest index is picked. If a cycle exists, ErrCycle is returned.
func Sort(n int, depsFn func(i int) []int) ([]int, error) {
	if n <= 0 {
		return nil, nil
	}

	indeg := make([]int, n)
	out := make([][]int, n)

	for i := range n {
		for _, d := range depsFn(i) {
			if d < 0 || d >= n {
				return nil, fmt.Errorf("dependency index out of range: %d depends on %d", i, d)
			}

			indeg[i]++
			out[d] = append(out[d], i)
		}
	}

	for i := range out {
		sort.Ints(out[i])
	}

	var ready []int

	for i := range n {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)

	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]

		order = append(order, i)
		for _, j := range out[i] {
			indeg[j]--
			if indeg[j] == 0 {
				// Insert while keeping ready sorted.
				k := sort.SearchInts(ready, j)
				ready = append(ready, 0)
				copy(ready[k+1:], ready[k:])
				ready[k] = j
			}
		}
	}

	if len(order) != n {
		return nil, ErrCycle
	}

	return order, nil
}

// SortStable orders like Sort but tolerates cycles: strongly connected
// components are collapsed, components are ordered by their dependencies
// (smallest member index first on ties) and members of one component keep
// increasing index order.
func SortStable(n int, depsFn func(i int) []int) ([]int, error) {
	if n <= 0 {
		return nil, nil
	}

	deps := make([][]int, n)

	for i := range n {
		for _, d := range depsFn(i) {
			if d < 0 || d >= n {
				return nil, fmt.Errorf("dependency index out of range: %d depends on %d", i, d)
			}

			if d != i {
				deps[i] = append(deps[i], d)
			}
		}
	}

	comp, members := components(n, deps)

	compDeps := make([][]int, len(members))

	for c, ms := range members {
		seen := make(map[int]struct{})

		for _, i := range ms {
			for _, d := range deps[i] {
				dc := comp[d]
				if dc == c {
					continue
				}

				if _, ok := seen[dc]; !ok {
					seen[dc] = struct{}{}
					compDeps[c] = append(compDeps[c], dc)
				}
			}
		}
	}

	// Components are numbered by their smallest member so that Sort's
	// smallest-index tie break follows declaration order.
	compOrder, err := Sort(len(members), func(c int) []int { return compDeps[c] })
	if err != nil {
		return nil, err
	}

	order := make([]int, 0, n)
	for _, c := range compOrder {
		order = append(order, members[c]...)
	}

	return order, nil
}

// components finds strongly connected components with Tarjan's algorithm.
// It returns the component of every node and the sorted members of every
// component; components are numbered by their smallest member.
func components(n int, deps [][]int) ([]int, [][]int) {
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	raw := make([]int, n)

	next := 1
	count := 0

	var stack []int

	var strongconnect func(v int)

	strongconnect = func(v int) {
		index[v] = next
		lowlink[v] = next
		next++

		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps[v] {
			if index[w] == 0 {
				strongconnect(w)

				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] && index[w] < lowlink[v] {
				lowlink[v] = index[w]
			}
		}

		if lowlink[v] == index[v] {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				raw[w] = count

				if w == v {
					break
				}
			}

			count++
		}
	}

	for v := range n {
		if index[v] == 0 {
			strongconnect(v)
		}
	}

	// Renumber components by smallest member.
	renumber := make([]int, count)
	for i := range renumber {
		renumber[i] = -1
	}

	next = 0

	comp := make([]int, n)
	members := make([][]int, count)

	for v := range n {
		c := raw[v]
		if renumber[c] < 0 {
			renumber[c] = next
			next++
		}

		comp[v] = renumber[c]
		members[comp[v]] = append(members[comp[v]], v)
	}

	return comp, members
}

// CreationOrder orders the nodes so that every node follows its parent and
// its previous sibling.
func (g *Graph) CreationOrder() ([]ID, error) {
	order, err := Sort(len(g.nodes), func(i int) []int {
		var deps []int
		if p := g.parent[i]; p != None {
			deps = append(deps, int(p))
		}

		if s := g.previous[i]; s != None {
			deps = append(deps, int(s))
		}

		return deps
	})
	if err != nil {
		return nil, err
	}

	ids := make([]ID, len(order))
	for i, o := range order {
		ids[i] = ID(o)
	}

	return ids, nil
}
