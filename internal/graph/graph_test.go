package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ilclone/internal/graph"
	"ilclone/internal/il"
	"ilclone/internal/il/ilasm"
)

const source = `
module: Demo
types:
  - name: Demo.Counter
    flags: public
    base: object
    fields:
      - {name: count, type: int32}
    methods:
      - name: Add
        flags: public
        parameters: [{name: n, type: int32}, {name: m, type: int32}]
        body:
          - ldarg this
          - ldarg this
          - ldfld int32 Demo.Counter::count
          - ldarg n
          - add
          - stfld int32 Demo.Counter::count
          - ret
      - name: Unused
        flags: public
        body:
          - ret
  - name: Demo.Other
    flags: public
    base: object
`

func build(t *testing.T) (*il.TypeDef, *graph.Graph) {
	t.Helper()

	m, err := ilasm.Decode([]byte(source))
	require.NoError(t, err)

	counter := m.Type("Demo.Counter")

	return counter, graph.Build(counter)
}

func TestBuild(t *testing.T) {
	counter, g := build(t)
	add := counter.Method("Add")
	body := add.Body

	root, ok := g.Lookup(counter)
	require.True(t, ok)
	assert.Equal(t, []graph.ID{root}, g.Roots())
	assert.Equal(t, 0, g.Depth(root))

	ins, ok := g.Lookup(body.Instructions[2])
	require.True(t, ok)
	assert.Equal(t, 3, g.Depth(ins))

	owner, ok := graph.ParentOf[*il.TypeDef](g, body.Instructions[2])
	require.True(t, ok)
	assert.Same(t, counter, owner)

	method, ok := graph.ParentOf[*il.MethodDef](g, body)
	require.True(t, ok)
	assert.Same(t, add, method)

	prev, ok := g.PreviousSiblingOf(body.Instructions[2])
	require.True(t, ok)
	assert.Same(t, body.Instructions[1], prev)

	prev, ok = g.PreviousSiblingOf(add.Parameters[1])
	require.True(t, ok)
	assert.Same(t, add.Parameters[0], prev)

	// Methods are an unordered group.
	_, ok = g.PreviousSiblingOf(counter.Method("Unused"))
	assert.False(t, ok)

	field, _ := g.Lookup(counter.Field("count"))
	param, _ := g.Lookup(add.Parameters[0])
	assert.Contains(t, g.Dependencies(ins), field)

	load, _ := g.Lookup(body.Instructions[3])
	assert.Contains(t, g.Dependencies(load), param)

	assert.False(t, g.Contains(counter.Module.Type("Demo.Other")))
}

func TestClosedSetFor(t *testing.T) {
	counter, g := build(t)
	add := counter.Method("Add")

	sub := g.ClosedSetFor(add)

	assert.True(t, sub.Contains(add))
	assert.True(t, sub.Contains(add.Body.Instructions[5]))
	assert.True(t, sub.Contains(counter.Field("count")))
	assert.False(t, sub.Contains(counter))
	assert.False(t, sub.Contains(counter.Method("Unused")))

	ins, _ := sub.Lookup(add.Body.Instructions[0])
	assert.Equal(t, 2, sub.Depth(ins))

	full := g.ClosedSetFor(counter)
	assert.Equal(t, g.Len(), full.Len())
}

func TestCreationOrder(t *testing.T) {
	_, g := build(t)

	order, err := g.CreationOrder()
	require.NoError(t, err)
	require.Len(t, order, g.Len())

	position := make(map[graph.ID]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	for _, id := range order {
		if p, ok := g.Parent(id); ok {
			assert.Less(t, position[p], position[id])
		}

		if s, ok := g.PreviousSibling(id); ok {
			assert.Less(t, position[s], position[id])
		}
	}
}
