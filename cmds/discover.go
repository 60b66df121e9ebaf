package cmds

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashmap-kz/katomik-flow/cmdblock"
	"github.com/hashmap-kz/katomik-flow/cmdexec"
	"github.com/hashmap-kz/katomik-flow/graph"
	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/item"
	"github.com/hashmap-kz/katomik-flow/params"
	"github.com/hashmap-kz/katomik-flow/resources"
	"github.com/hashmap-kz/katomik-flow/serde"
	"github.com/hashmap-kz/katomik-flow/state"
	"github.com/hashmap-kz/katomik-flow/stream"
)

// DiscoverKind selects which of an item's two observable states a discover
// block populates.
type DiscoverKind int

const (
	// DiscoverStateCurrent discovers each item's live current state.
	DiscoverStateCurrent DiscoverKind = iota
	// DiscoverStateGoal discovers each item's goal state from its params.
	DiscoverStateGoal
)

func (k DiscoverKind) mode() params.Mode {
	if k == DiscoverStateGoal {
		return params.Goal
	}
	return params.Current
}

func (k DiscoverKind) label() string {
	if k == DiscoverStateGoal {
		return "states_discover_goal"
	}
	return "states_discover_current"
}

// itemStatePartial carries one item's freshly discovered state through a
// discover block's exec channel.
type itemStatePartial[S any] struct {
	ItemID id.ItemID
	Value  S
}

// discoverAcc accumulates discovered per-item states into an ordered store.
type discoverAcc[S any] struct {
	store *state.Store
}

// StatesDiscoverBlock runs StateCurrent or StateGoal concurrently across a
// flow's item graph, bounded by the stream executor's concurrency limit,
// and accumulates the results into a state.Store. It realizes the source
// framework's StatesDiscoverCmd as a cmdblock.Block.
type StatesDiscoverBlock[P any, S any, D any] struct {
	Flow *Flow[P, S, D]
	Kind DiscoverKind
}

// NewStatesDiscoverBlock constructs a discover block for flow, of the given kind.
func NewStatesDiscoverBlock[P any, S any, D any](flow *Flow[P, S, D], kind DiscoverKind) *StatesDiscoverBlock[P, S, D] {
	return &StatesDiscoverBlock[P, S, D]{Flow: flow, Kind: kind}
}

// NewStatesDiscoverRunner adapts a discover block into a type-erased
// cmdblock.Runner, ready to slot into a cmdexec.CmdExecution.
func NewStatesDiscoverRunner[P any, S any, D any](flow *Flow[P, S, D], kind DiscoverKind) cmdblock.Runner {
	return cmdblock.Adapt[struct{}, discoverAcc[S], itemStatePartial[S], *state.Store](
		NewStatesDiscoverBlock(flow, kind),
	)
}

// Name implements cmdblock.Block.
func (b *StatesDiscoverBlock[P, S, D]) Name() string { return b.Kind.label() }

// InputFetch implements cmdblock.Block. Discovery reads the flow's own
// graph and param specs directly rather than the resource map, so there is
// nothing to fetch or remove.
func (b *StatesDiscoverBlock[P, S, D]) InputFetch(*resources.Map) (struct{}, error) {
	return struct{}{}, nil
}

// OutcomeAccInit implements cmdblock.Block.
func (b *StatesDiscoverBlock[P, S, D]) OutcomeAccInit(struct{}) discoverAcc[S] {
	return discoverAcc[S]{store: state.NewStore()}
}

// Exec implements cmdblock.Block: it streams one itemStatePartial per
// successfully discovered item, traversing the flow's Data edges (so an
// item whose params read a peer's discovered state waits for that peer)
// via the C7 stream executor.
func (b *StatesDiscoverBlock[P, S, D]) Exec(
	ctx context.Context, _ struct{}, res *resources.Map, partials chan<- itemStatePartial[S],
) (bool, map[id.ItemID]error, error) {
	mode := b.Kind.mode()
	fnCtx := item.NewFnCtx(ctx, nil)

	result, err := stream.Run(ctx, b.Flow.Graph, stream.Options{Kind: graph.Data, Direction: stream.Forward},
		func(_ context.Context, itemID id.ItemID) error {
			it := b.Flow.Items[itemID]
			spec := b.Flow.Params[itemID]
			rctx := params.NewResolutionCtx(mode, itemID, paramsTypeName[P]())
			p, perr := spec.Resolve(res, rctx)
			if perr != nil {
				return perr
			}

			var s S
			var serr error
			if b.Kind == DiscoverStateGoal {
				s, serr = it.StateGoal(fnCtx, p, res)
			} else {
				s, serr = it.StateCurrent(fnCtx, p, res)
			}
			if serr != nil {
				return serr
			}
			partials <- itemStatePartial[S]{ItemID: itemID, Value: s}
			return nil
		})
	if err != nil {
		return true, nil, err
	}
	return true, result.Errors, nil
}

// OutcomeCollate implements cmdblock.Block.
func (b *StatesDiscoverBlock[P, S, D]) OutcomeCollate(acc *discoverAcc[S], partial itemStatePartial[S]) error {
	acc.store.Set(partial.ItemID, partial.Value)
	return nil
}

// OutcomeFromAcc implements cmdblock.Block: partials arrive in completion
// order, so the final store is rebuilt in graph insertion order.
func (b *StatesDiscoverBlock[P, S, D]) OutcomeFromAcc(acc discoverAcc[S]) *state.Store {
	ordered := state.NewStore()
	_ = b.Flow.Graph.IterInsertion(func(itemID id.ItemID, _ any) error {
		if v, ok := acc.store.Get(itemID); ok {
			ordered.Set(itemID, v)
		}
		return nil
	})
	return ordered
}

// ContinueOnItemError implements cmdblock.Block: one item's discovery
// failure should not prevent its siblings from being discovered too.
func (b *StatesDiscoverBlock[P, S, D]) ContinueOnItemError() bool { return true }

// runDiscover runs a single discover block over an already-set-up resource
// map, optionally persisting the resulting store to path (skipped when
// path is empty, e.g. for a dry preview).
func runDiscover[P any, S any, D any](
	ctx context.Context, flow *Flow[P, S, D], kind DiscoverKind, res *resources.Map, path string,
) (*state.Store, error) {
	exec := cmdexec.New(NewStatesDiscoverRunner(flow, kind))
	exec.OutcomeFetch = func(res *resources.Map) (any, error) {
		store, ok := resources.Remove[*state.Store](res)
		if !ok {
			return nil, fmt.Errorf("%s: no store produced", kind.label())
		}
		return store, nil
	}

	outcome := exec.Run(ctx, res)
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	if outcome.Kind != cmdexec.Complete {
		return nil, fmt.Errorf("%s: %d item(s) failed to discover", kind.label(), len(outcome.Errors))
	}
	store, _ := outcome.Value.(*state.Store)

	if path != "" {
		if err := writeStore(store, flow.Registry, path); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// RunStatesDiscover discovers every item's current or goal state (per kind)
// across flow's graph and, when path is non-empty, persists the result.
func RunStatesDiscover[P any, S any, D any](
	ctx context.Context, flow *Flow[P, S, D], kind DiscoverKind, path string,
) (*state.Store, error) {
	res := resources.New()
	if err := setupItems(ctx, flow, res); err != nil {
		return nil, err
	}
	return runDiscover(ctx, flow, kind, res, path)
}

// RunStatesDiscoverCurrentAndGoal discovers current states, then goal
// states, in a single resource-map lifetime, so item Setup runs once and
// both passes share the same collaborators. Discovered states are not
// published into the resource map: the current-states store is removed from
// it when the current pass finishes, and the goal pass does not read it.
func RunStatesDiscoverCurrentAndGoal[P any, S any, D any](
	ctx context.Context, flow *Flow[P, S, D], currentPath, goalPath string,
) (current, goal *state.Store, err error) {
	res := resources.New()
	if err := setupItems(ctx, flow, res); err != nil {
		return nil, nil, err
	}
	current, err = runDiscover(ctx, flow, DiscoverStateCurrent, res, currentPath)
	if err != nil {
		return nil, nil, err
	}
	goal, err = runDiscover(ctx, flow, DiscoverStateGoal, res, goalPath)
	if err != nil {
		return nil, nil, err
	}
	return current, goal, nil
}

func writeStore(store *state.Store, registry *state.Registry, path string) error {
	encoded, err := serde.Encode(store, registry)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0o644)
}
