package stream_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hashmap-kz/katomik-flow/graph"
	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T) (*graph.Graph, id.ItemID, id.ItemID, id.ItemID) {
	t.Helper()
	g := graph.New()
	a, b, c := id.MustNew("a"), id.MustNew("b"), id.MustNew("c")
	require.NoError(t, g.Add(a, nil))
	require.NoError(t, g.Add(b, nil))
	require.NoError(t, g.Add(c, nil))
	require.NoError(t, g.AddEdge(a, b, graph.Logic))
	require.NoError(t, g.AddEdge(b, c, graph.Logic))
	return g, a, b, c
}

func TestRunVisitsAllInDependencyOrder(t *testing.T) {
	g, a, b, c := buildChain(t)

	var mu sync.Mutex
	var visited []id.ItemID
	res, err := stream.Run(context.Background(), g, stream.Options{Kind: graph.Logic}, func(_ context.Context, itemID id.ItemID) error {
		mu.Lock()
		visited = append(visited, itemID)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, stream.Finished, res.State)
	assert.ElementsMatch(t, []id.ItemID{a, b, c}, res.ItemIDsProcessed)
	assert.Empty(t, res.ItemIDsNotProcessed)
	assert.Empty(t, res.Errors)

	posA, posB, posC := indexOf(visited, a), indexOf(visited, b), indexOf(visited, c)
	assert.Less(t, posA, posB)
	assert.Less(t, posB, posC)
}

func TestFailureIsolatesDescendantsNotSiblings(t *testing.T) {
	g := graph.New()
	a, b, c := id.MustNew("a"), id.MustNew("b"), id.MustNew("c")
	require.NoError(t, g.Add(a, nil))
	require.NoError(t, g.Add(b, nil))
	require.NoError(t, g.Add(c, nil))
	// b depends on a; c is a's sibling, no relation to a or b.
	require.NoError(t, g.AddEdge(a, b, graph.Logic))

	boom := errors.New("boom")
	res, err := stream.Run(context.Background(), g, stream.Options{Kind: graph.Logic}, func(_ context.Context, itemID id.ItemID) error {
		if itemID == a {
			return boom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, boom, res.Errors[a])
	assert.Contains(t, res.ItemIDsProcessed, c)
	assert.NotContains(t, res.ItemIDsProcessed, b)
	assert.Contains(t, res.ItemIDsNotProcessed, b)
}

func TestInterruptedBeforeAnyNodeYieldsNotStarted(t *testing.T) {
	g, _, _, _ := buildChain(t)
	res, err := stream.Run(context.Background(), g, stream.Options{
		Kind:      graph.Logic,
		Interrupt: alwaysInterrupt{},
	}, func(_ context.Context, _ id.ItemID) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, stream.NotStarted, res.State)
	assert.Empty(t, res.ItemIDsProcessed)
}

type alwaysInterrupt struct{}

func (alwaysInterrupt) Interrupted() bool { return true }

func indexOf(s []id.ItemID, v id.ItemID) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
