package cmds

import (
	"os"

	"github.com/hashmap-kz/katomik-flow/serde"
	"github.com/hashmap-kz/katomik-flow/state"
)

// ReadStatesCurrent loads a previously discovered current-states store from
// path, failing with *serde.ErrStatesCurrentDiscoverRequired if discovery
// has never been run for this flow.
func ReadStatesCurrent[P any, S any, D any](flow *Flow[P, S, D], path string) (*state.Store, error) {
	return readStates(flow, path, &serde.ErrStatesCurrentDiscoverRequired{FlowID: flow.ID})
}

// ReadStatesGoal is the goal-state counterpart of ReadStatesCurrent.
func ReadStatesGoal[P any, S any, D any](flow *Flow[P, S, D], path string) (*state.Store, error) {
	return readStates(flow, path, &serde.ErrStatesGoalDiscoverRequired{FlowID: flow.ID})
}

func readStates[P any, S any, D any](flow *Flow[P, S, D], path string, missing error) (*state.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, missing
		}
		return nil, err
	}
	return serde.Decode(data, flow.Registry)
}
