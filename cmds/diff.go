package cmds

import (
	"context"

	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/item"
	"github.com/hashmap-kz/katomik-flow/params"
	"github.com/hashmap-kz/katomik-flow/resources"
	"github.com/hashmap-kz/katomik-flow/state"
)

// RunDiff computes each item's state diff between the current and goal
// stores, resolving each item's params in Goal mode (matching how a diff
// is derived ahead of an apply, per the source framework).
func RunDiff[P any, S any, D any](
	ctx context.Context, flow *Flow[P, S, D], res *resources.Map, current, goal *state.Store,
) (map[id.ItemID]D, error) {
	diffs := make(map[id.ItemID]D, len(flow.Items))
	fnCtx := item.NewFnCtx(ctx, nil)

	err := flow.Graph.IterInsertion(func(itemID id.ItemID, _ any) error {
		it := flow.Items[itemID]
		spec := flow.Params[itemID]
		rctx := params.NewResolutionCtx(params.Goal, itemID, paramsTypeName[P]())
		resolved, ok := spec.ResolvePartial(res, rctx)

		var currentState, goalState S
		if raw, found := current.Get(itemID); found {
			currentState, _ = raw.(S)
		}
		if raw, found := goal.Get(itemID); found {
			goalState, _ = raw.(S)
		}

		d, derr := it.StateDiff(fnCtx, item.Partial[P]{Value: resolved, Complete: ok}, res, currentState, goalState)
		if derr != nil {
			return derr
		}
		diffs[itemID] = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return diffs, nil
}
