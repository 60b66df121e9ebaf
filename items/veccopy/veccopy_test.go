package veccopy_test

import (
	"context"
	"testing"

	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/item"
	"github.com/hashmap-kz/katomik-flow/items/veccopy"
	"github.com/hashmap-kz/katomik-flow/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctx() *item.FnCtx { return item.NewFnCtx(context.Background(), nil) }

// S1 — discover then ensure a single item.
func TestDiscoverThenEnsure(t *testing.T) {
	res := resources.New()
	c := veccopy.New(id.MustNew("copy"))
	require.NoError(t, c.Setup(ctx(), res))

	params := veccopy.Params{Src: []byte{0, 1, 2, 3, 4, 5, 6, 7}, Dest: nil}

	current, err := c.StateCurrent(ctx(), params, res)
	require.NoError(t, err)
	assert.Empty(t, current)

	goal, err := c.StateGoal(ctx(), params, res)
	require.NoError(t, err)
	assert.Equal(t, veccopy.State{0, 1, 2, 3, 4, 5, 6, 7}, goal)

	diff, err := c.StateDiff(ctx(), item.Partial[veccopy.Params]{Value: params, Complete: true}, res, current, goal)
	require.NoError(t, err)

	check, err := c.ApplyCheck(ctx(), params, res, current, goal, diff)
	require.NoError(t, err)
	assert.Equal(t, item.ExecRequired, check.Status)

	applied, err := c.Apply(ctx(), params, res, current, goal, diff)
	require.NoError(t, err)
	assert.Equal(t, veccopy.State{0, 1, 2, 3, 4, 5, 6, 7}, applied)

	// Property 6: clean identity.
	cleanState, err := c.StateClean(ctx(), item.Partial[veccopy.Params]{Value: params, Complete: true}, res)
	require.NoError(t, err)
	_, err = c.Apply(ctx(), params, res, applied, cleanState, veccopy.Diff{})
	require.NoError(t, err)
	afterClean, err := c.StateCurrent(ctx(), params, res)
	require.NoError(t, err)
	assert.Equal(t, cleanState, afterClean)
}

// S2 — diff.
func TestDiff(t *testing.T) {
	src := []byte{0, 1, 2, 4, 5, 6, 8}
	dest := []byte{0, 1, 2, 3, 4, 5, 6, 7}

	diff := veccopy.ComputeDiff(dest, src)
	require.Len(t, diff.Removed, 1)
	assert.Equal(t, veccopy.RemovedRun{Index: 3, Len: 1}, diff.Removed[0])
	require.Len(t, diff.Altered, 1)
	assert.Equal(t, veccopy.AlteredRun{Index: 7, Changes: []byte{1}}, diff.Altered[0])
}

// Property 7: apply-check monotonicity.
func TestApplyCheckNotRequiredWhenEqual(t *testing.T) {
	res := resources.New()
	c := veccopy.New(id.MustNew("copy"))
	require.NoError(t, c.Setup(ctx(), res))

	state := veccopy.State{1, 2, 3}
	check, err := c.ApplyCheck(ctx(), veccopy.Params{}, res, state, state, veccopy.Diff{})
	require.NoError(t, err)
	assert.Equal(t, item.ExecNotRequired, check.Status)
}

// Property 8: dry-run purity.
func TestApplyDryDoesNotMutateDestSlot(t *testing.T) {
	res := resources.New()
	c := veccopy.New(id.MustNew("copy"))
	require.NoError(t, c.Setup(ctx(), res))

	before, err := c.StateCurrent(ctx(), veccopy.Params{}, res)
	require.NoError(t, err)

	_, err = c.ApplyDry(ctx(), veccopy.Params{}, res, before, veccopy.State{9, 9, 9}, veccopy.Diff{})
	require.NoError(t, err)

	after, err := c.StateCurrent(ctx(), veccopy.Params{}, res)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// S5-adjacent: TryStateGoal is absent until params are complete.
func TestTryStateGoalAbsentWithoutCompleteParams(t *testing.T) {
	res := resources.New()
	c := veccopy.New(id.MustNew("copy"))

	_, ok, err := c.TryStateGoal(ctx(), item.Partial[veccopy.Params]{}, res)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.TryStateGoal(ctx(), item.Partial[veccopy.Params]{
		Value:    veccopy.Params{Dest: []byte{1}},
		Complete: true,
	}, res)
	require.NoError(t, err)
	assert.True(t, ok)
}
