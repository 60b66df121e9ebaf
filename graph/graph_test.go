package graph_test

import (
	"testing"

	"github.com/hashmap-kz/katomik-flow/graph"
	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndIterInsertionOrder(t *testing.T) {
	g := graph.New()
	a, b, c := id.MustNew("a"), id.MustNew("b"), id.MustNew("c")
	require.NoError(t, g.Add(b, "b-item"))
	require.NoError(t, g.Add(a, "a-item"))
	require.NoError(t, g.Add(c, "c-item"))

	var order []id.ItemID
	require.NoError(t, g.IterInsertion(func(i id.ItemID, _ any) error {
		order = append(order, i)
		return nil
	}))
	assert.Equal(t, []id.ItemID{b, a, c}, order)
}

func TestAddDuplicateItemFails(t *testing.T) {
	g := graph.New()
	a := id.MustNew("a")
	require.NoError(t, g.Add(a, "a-item"))
	err := g.Add(a, "a-item-again")
	require.Error(t, err)
	var dup *graph.ErrDuplicateItem
	require.ErrorAs(t, err, &dup)
}

func TestAddEdgeUnknownItem(t *testing.T) {
	g := graph.New()
	a := id.MustNew("a")
	require.NoError(t, g.Add(a, "a-item"))

	err := g.AddEdge(a, id.MustNew("missing"), graph.Logic)
	require.Error(t, err)
	var unknown *graph.ErrUnknownItem
	require.ErrorAs(t, err, &unknown)
}

func TestCycleRejected(t *testing.T) {
	g := graph.New()
	a, b, c := id.MustNew("a"), id.MustNew("b"), id.MustNew("c")
	require.NoError(t, g.Add(a, "a-item"))
	require.NoError(t, g.Add(b, "b-item"))
	require.NoError(t, g.Add(c, "c-item"))

	require.NoError(t, g.AddEdge(a, b, graph.Logic))
	require.NoError(t, g.AddEdge(b, c, graph.Logic))

	err := g.AddEdge(c, a, graph.Logic)
	require.Error(t, err)
	var cycleErr *graph.ErrWouldCycle
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, c, cycleErr.Edge.Src)
	assert.Equal(t, a, cycleErr.Edge.Dst)

	succ, err := g.Successors(b, graph.Logic)
	require.NoError(t, err)
	assert.ElementsMatch(t, []id.ItemID{c}, succ)

	succ, err = g.Successors(c, graph.Logic)
	require.NoError(t, err)
	assert.Empty(t, succ)
}

func TestLogicAndDataEdgesAreIndependent(t *testing.T) {
	g := graph.New()
	a, b := id.MustNew("a"), id.MustNew("b")
	require.NoError(t, g.Add(a, "a-item"))
	require.NoError(t, g.Add(b, "b-item"))

	require.NoError(t, g.AddEdge(a, b, graph.Data))

	preds, err := g.Predecessors(b, graph.Data)
	require.NoError(t, err)
	assert.Equal(t, []id.ItemID{a}, preds)

	preds, err = g.Predecessors(b, graph.Logic)
	require.NoError(t, err)
	assert.Empty(t, preds)
}
