package cmds

import (
	"context"
	"fmt"
	"os"
	"reflect"

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

// applyPartial carries one item's post-apply state through an apply
// block's exec channel.
type applyPartial[S any] struct {
	ItemID id.ItemID
	Value  S
}

// applyAcc accumulates applied per-item states into an ordered store.
type applyAcc[S any] struct {
	store *state.Store
}

// EnsureApplyBlock drives every item from its current state toward its
// goal state (Clean=false) or its clean state (Clean=true), running
// apply-check before apply and skipping apply entirely when it reports
// ExecNotRequired. Dry substitutes ApplyDry for Apply, producing the
// resulting state without any side effect. It realizes the source
// framework's EnsureCmd/CleanCmd as a cmdblock.Block.
type EnsureApplyBlock[P any, S any, D any] struct {
	Flow  *Flow[P, S, D]
	Dry   bool
	Clean bool
}

// Name implements cmdblock.Block.
func (b *EnsureApplyBlock[P, S, D]) Name() string {
	switch {
	case b.Clean && b.Dry:
		return "clean_dry"
	case b.Clean:
		return "clean"
	case b.Dry:
		return "ensure_dry"
	default:
		return "ensure"
	}
}

// InputFetch implements cmdblock.Block: it removes the current-states
// store a preceding discover block left in the resource map.
func (b *EnsureApplyBlock[P, S, D]) InputFetch(res *resources.Map) (*state.Store, error) {
	current, ok := resources.Remove[*state.Store](res)
	if !ok {
		var zero *state.Store
		return nil, &resources.ErrValueNotFound{Type: reflect.TypeOf(zero)}
	}
	return current, nil
}

// OutcomeAccInit implements cmdblock.Block.
func (b *EnsureApplyBlock[P, S, D]) OutcomeAccInit(*state.Store) applyAcc[S] {
	return applyAcc[S]{store: state.NewStore()}
}

// Exec implements cmdblock.Block: it traverses the flow's Logic edges (so
// an item's apply completes before its dependents' start), in Reverse
// order for Clean so dependents are removed before their dependencies.
func (b *EnsureApplyBlock[P, S, D]) Exec(
	ctx context.Context, current *state.Store, res *resources.Map, partials chan<- applyPartial[S],
) (bool, map[id.ItemID]error, error) {
	fnCtx := item.NewFnCtx(ctx, nil)
	direction := stream.Forward
	if b.Clean {
		direction = stream.Reverse
	}

	result, err := stream.Run(ctx, b.Flow.Graph, stream.Options{Kind: graph.Logic, Direction: direction},
		func(_ context.Context, itemID id.ItemID) error {
			it := b.Flow.Items[itemID]
			spec := b.Flow.Params[itemID]
			rctx := params.NewResolutionCtx(params.Goal, itemID, paramsTypeName[P]())
			p, perr := spec.Resolve(res, rctx)
			if perr != nil {
				return perr
			}

			var currentState S
			if raw, found := current.Get(itemID); found {
				currentState, _ = raw.(S)
			}

			var target S
			var terr error
			if b.Clean {
				target, terr = it.StateClean(fnCtx, item.Partial[P]{Value: p, Complete: true}, res)
			} else {
				target, terr = it.StateGoal(fnCtx, p, res)
			}
			if terr != nil {
				return terr
			}

			diff, derr := it.StateDiff(fnCtx, item.Partial[P]{Value: p, Complete: true}, res, currentState, target)
			if derr != nil {
				return derr
			}

			check, cerr := it.ApplyCheck(fnCtx, p, res, currentState, target, diff)
			if cerr != nil {
				return cerr
			}

			applied := currentState
			if check.Status == item.ExecRequired {
				var aerr error
				if b.Dry {
					applied, aerr = it.ApplyDry(fnCtx, p, res, currentState, target, diff)
				} else {
					applied, aerr = it.Apply(fnCtx, p, res, currentState, target, diff)
				}
				if aerr != nil {
					return aerr
				}
			}

			partials <- applyPartial[S]{ItemID: itemID, Value: applied}
			return nil
		})
	if err != nil {
		return true, nil, err
	}
	return true, result.Errors, nil
}

// OutcomeCollate implements cmdblock.Block.
func (b *EnsureApplyBlock[P, S, D]) OutcomeCollate(acc *applyAcc[S], partial applyPartial[S]) error {
	acc.store.Set(partial.ItemID, partial.Value)
	return nil
}

// OutcomeFromAcc implements cmdblock.Block: partials arrive in completion
// order, so the final store is rebuilt in graph insertion order.
func (b *EnsureApplyBlock[P, S, D]) OutcomeFromAcc(acc applyAcc[S]) *state.Store {
	ordered := state.NewStore()
	_ = b.Flow.Graph.IterInsertion(func(itemID id.ItemID, _ any) error {
		if v, ok := acc.store.Get(itemID); ok {
			ordered.Set(itemID, v)
		}
		return nil
	})
	return ordered
}

// ContinueOnItemError implements cmdblock.Block: apply failures stop the
// pipeline by default, per the framework's stop-on-item-error policy.
func (b *EnsureApplyBlock[P, S, D]) ContinueOnItemError() bool { return false }

// statesSyncCheckBlock sits between discover and apply: it aborts the
// pipeline, before any item is touched, when the current-states (and, if
// checked, goal-states) snapshot stored on disk disagrees with what was
// just freshly discovered. It otherwise passes the current-states store it
// was handed straight through unchanged, so the apply block after it still
// receives it. Realizes the ApplyStoredStateSync flag of EnsureCmd/CleanCmd.
type statesSyncCheckBlock[P any, S any, D any] struct {
	Flow        *Flow[P, S, D]
	CurrentPath string
	GoalPath    string
}

// Name implements cmdblock.Block.
func (b *statesSyncCheckBlock[P, S, D]) Name() string { return "states_sync_check" }

// InputFetch implements cmdblock.Block: it takes over the current-states
// store the preceding discover block left in the resource map.
func (b *statesSyncCheckBlock[P, S, D]) InputFetch(res *resources.Map) (*state.Store, error) {
	store, ok := resources.Remove[*state.Store](res)
	if !ok {
		var zero *state.Store
		return nil, &resources.ErrValueNotFound{Type: reflect.TypeOf(zero)}
	}
	return store, nil
}

// OutcomeAccInit implements cmdblock.Block: the store passes through
// unchanged unless Exec aborts the pipeline.
func (b *statesSyncCheckBlock[P, S, D]) OutcomeAccInit(input *state.Store) *state.Store { return input }

// Exec implements cmdblock.Block: it compares the stored current snapshot
// against liveCurrent, then (independently) discovers and compares the goal
// snapshot, returning a hard error from either mismatch.
func (b *statesSyncCheckBlock[P, S, D]) Exec(
	ctx context.Context, liveCurrent *state.Store, res *resources.Map, _ chan<- *state.Store,
) (bool, map[id.ItemID]error, error) {
	if err := checkStatesOutOfSync(
		b.Flow.ID, b.Flow.Registry, b.CurrentPath, liveCurrent, newStatesCurrentOutOfSync,
	); err != nil {
		return false, nil, err
	}

	liveGoal, err := runDiscover(ctx, b.Flow, DiscoverStateGoal, res, "")
	if err != nil {
		return false, nil, err
	}
	if err := checkStatesOutOfSync(
		b.Flow.ID, b.Flow.Registry, b.GoalPath, liveGoal, newStatesGoalOutOfSync,
	); err != nil {
		return false, nil, err
	}
	return false, nil, nil
}

// OutcomeCollate implements cmdblock.Block: this block never streams
// partials, so there is nothing to collate.
func (b *statesSyncCheckBlock[P, S, D]) OutcomeCollate(_ **state.Store, _ *state.Store) error {
	return nil
}

// OutcomeFromAcc implements cmdblock.Block.
func (b *statesSyncCheckBlock[P, S, D]) OutcomeFromAcc(acc *state.Store) *state.Store { return acc }

// ContinueOnItemError implements cmdblock.Block: a drift check failure
// aborts the run outright; it is not a per-item error.
func (b *statesSyncCheckBlock[P, S, D]) ContinueOnItemError() bool { return false }

func newStatesCurrentOutOfSync(flowID id.FlowID, stale []id.ItemID) error {
	return &serde.ErrStatesCurrentOutOfSync{FlowID: flowID, ItemsStateStoredStale: stale}
}

func newStatesGoalOutOfSync(flowID id.FlowID, stale []id.ItemID) error {
	return &serde.ErrStatesGoalOutOfSync{FlowID: flowID, ItemsStateStoredStale: stale}
}

// checkStatesOutOfSync reads the snapshot stored at path (if any) and
// compares it against live, item by item, via Display-equality
// (fmt.Sprintf("%#v", ...)) — a comparator flagged in SPEC_FULL.md as
// potentially too strict for state types with insignificant internal
// structure. A missing stored file means no prior discovery to compare
// against, so it is not a drift condition.
func checkStatesOutOfSync(
	flowID id.FlowID, registry *state.Registry, path string, live *state.Store,
	newOutOfSync func(id.FlowID, []id.ItemID) error,
) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	stored, err := serde.Decode(data, registry)
	if err != nil {
		return err
	}

	var stale []id.ItemID
	for _, itemID := range stored.Order() {
		storedVal, _ := stored.Get(itemID)
		liveVal, found := live.Get(itemID)
		if !found || fmt.Sprintf("%#v", storedVal) != fmt.Sprintf("%#v", liveVal) {
			stale = append(stale, itemID)
		}
	}
	if len(stale) > 0 {
		return newOutOfSync(flowID, stale)
	}
	return nil
}

// runApplyPipeline discovers each item's current state, then applies it
// toward its goal or clean state, persisting the resulting current-states
// store to currentPath (unless dry, in which case nothing is written).
// When applyStoredStateSync is set, it aborts before touching any item if
// the stored current or goal snapshot (at currentPath/goalPath) disagrees
// with what is freshly discovered.
func runApplyPipeline[P any, S any, D any](
	ctx context.Context, flow *Flow[P, S, D], currentPath, goalPath string, dry, clean, applyStoredStateSync bool,
) (*state.Store, error) {
	res := resources.New()
	if err := setupItems(ctx, flow, res); err != nil {
		return nil, err
	}

	discoverRunner := NewStatesDiscoverRunner(flow, DiscoverStateCurrent)
	applyBlock := &EnsureApplyBlock[P, S, D]{Flow: flow, Dry: dry, Clean: clean}
	applyRunner := cmdblock.Adapt[*state.Store, applyAcc[S], applyPartial[S], *state.Store](applyBlock)

	blocks := []cmdblock.Runner{discoverRunner}
	if applyStoredStateSync {
		syncBlock := &statesSyncCheckBlock[P, S, D]{Flow: flow, CurrentPath: currentPath, GoalPath: goalPath}
		blocks = append(blocks, cmdblock.Adapt[*state.Store, *state.Store, *state.Store, *state.Store](syncBlock))
	}
	blocks = append(blocks, applyRunner)

	exec := cmdexec.New(blocks...)
	exec.OutcomeFetch = func(res *resources.Map) (any, error) {
		store, ok := resources.Remove[*state.Store](res)
		if !ok {
			return nil, fmt.Errorf("%s: no applied-state store produced", applyBlock.Name())
		}
		return store, nil
	}

	outcome := exec.Run(ctx, res)
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	if outcome.Kind == cmdexec.ItemError {
		return nil, fmt.Errorf("%s: %d item(s) failed", applyBlock.Name(), len(outcome.Errors))
	}
	if outcome.Kind != cmdexec.Complete {
		return nil, fmt.Errorf("%s: %v", applyBlock.Name(), outcome.Kind)
	}

	applied, _ := outcome.Value.(*state.Store)
	if !dry && currentPath != "" {
		if err := writeStore(applied, flow.Registry, currentPath); err != nil {
			return nil, err
		}
	}
	return applied, nil
}

// RunEnsure drives every item in flow toward its goal state, persisting the
// resulting current-states store to currentPath. When applyStoredStateSync
// is set, it first aborts with *serde.ErrStatesCurrentOutOfSync or
// *serde.ErrStatesGoalOutOfSync if the snapshots stored at currentPath/
// goalPath disagree with live discovery.
func RunEnsure[P any, S any, D any](
	ctx context.Context, flow *Flow[P, S, D], currentPath, goalPath string, applyStoredStateSync bool,
) (*state.Store, error) {
	return runApplyPipeline(ctx, flow, currentPath, goalPath, false, false, applyStoredStateSync)
}

// RunEnsureDry reports what RunEnsure would apply, without any side effect
// or persisted state change. currentPath/goalPath are read-only here (used
// only for the stored-state sync check, if applyStoredStateSync is set).
func RunEnsureDry[P any, S any, D any](
	ctx context.Context, flow *Flow[P, S, D], currentPath, goalPath string, applyStoredStateSync bool,
) (*state.Store, error) {
	return runApplyPipeline(ctx, flow, currentPath, goalPath, true, false, applyStoredStateSync)
}

// RunClean drives every item in flow toward its clean state, persisting the
// resulting current-states store to currentPath.
func RunClean[P any, S any, D any](
	ctx context.Context, flow *Flow[P, S, D], currentPath, goalPath string, applyStoredStateSync bool,
) (*state.Store, error) {
	return runApplyPipeline(ctx, flow, currentPath, goalPath, false, true, applyStoredStateSync)
}

// RunCleanDry reports what RunClean would apply, without any side effect or
// persisted state change.
func RunCleanDry[P any, S any, D any](
	ctx context.Context, flow *Flow[P, S, D], currentPath, goalPath string, applyStoredStateSync bool,
) (*state.Store, error) {
	return runApplyPipeline(ctx, flow, currentPath, goalPath, true, true, applyStoredStateSync)
}
