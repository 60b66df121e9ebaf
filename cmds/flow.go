// Package cmds implements the standard commands driven over a flow's item
// graph: discovering states, reading them back, diffing, and ensuring or
// cleaning items into their goal or clean state. Each command is a thin
// composition of the lower-numbered components (graph, stream, params,
// cmdblock, cmdexec, serde) over one homogeneous item family.
package cmds

import (
	"context"
	"reflect"

	"github.com/hashmap-kz/katomik-flow/graph"
	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/item"
	"github.com/hashmap-kz/katomik-flow/params"
	"github.com/hashmap-kz/katomik-flow/resources"
	"github.com/hashmap-kz/katomik-flow/state"
)

// Flow owns one homogeneous family of items — all sharing the same
// Params/State/StateDiff types — wired into a single item graph, together
// with each item's parameter specification and the state codec used to
// persist its discovered states. A real deployment composes several Flow
// values, one per item family, behind a common workspace layout; this
// package deliberately stays generic over exactly one family at a time
// rather than attempting a heterogeneous multi-family flow type, matching
// how `items/veccopy` and `items/k8sresource` are each a self-contained
// P/S/D triple.
type Flow[P any, S any, D any] struct {
	ID       id.FlowID
	Graph    *graph.Graph
	Items    map[id.ItemID]item.Item[P, S, D]
	Params   map[id.ItemID]params.ValueSpec[P]
	Registry *state.Registry

	// Seed, when set, runs once against a freshly constructed resource map
	// before any item's Setup, letting a flow builder (e.g.
	// items/k8sresource's NewFlow) insert collaborators items' Setup
	// functions expect to find (a *rest.Config, in k8sresource's case).
	Seed func(res *resources.Map) error
}

// NewFlow returns an empty flow identified by flowID.
func NewFlow[P any, S any, D any](flowID id.FlowID) *Flow[P, S, D] {
	return &Flow[P, S, D]{
		ID:       flowID,
		Graph:    graph.New(),
		Items:    make(map[id.ItemID]item.Item[P, S, D]),
		Params:   make(map[id.ItemID]params.ValueSpec[P]),
		Registry: state.NewRegistry(),
	}
}

// AddItem registers it under its own id, with paramSpec resolving its
// Params and codec encoding/decoding its State for persistence.
func (f *Flow[P, S, D]) AddItem(it item.Item[P, S, D], paramSpec params.ValueSpec[P], codec state.Codec) error {
	itemID := it.ID()
	if err := f.Graph.Add(itemID, it); err != nil {
		return err
	}
	f.Items[itemID] = it
	f.Params[itemID] = paramSpec
	f.Registry.Register(itemID, codec)
	return nil
}

// AddEdge records an apply-order (Logic) or parameter-read (Data)
// dependency between two already-added items.
func (f *Flow[P, S, D]) AddEdge(src, dst id.ItemID, kind graph.EdgeKind) error {
	return f.Graph.AddEdge(src, dst, kind)
}

// paramsTypeName derives the diagnostic name ResolutionCtx reports for a
// Params type: its name, its String() form for unnamed types, or the
// generic label "Params" when P is an interface type.
func paramsTypeName[P any]() string {
	var zero P
	t := reflect.TypeOf(zero)
	if t == nil {
		return "Params"
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// SetupResources builds a fresh resource map for flow and runs every item's
// Setup against it, applying the flow's Seed hook first. Callers that need
// a resource map outside the standard commands (e.g. to compute a diff
// against externally supplied stores) use this directly.
func SetupResources[P any, S any, D any](ctx context.Context, f *Flow[P, S, D]) (*resources.Map, error) {
	res := resources.New()
	if err := setupItems(ctx, f, res); err != nil {
		return nil, err
	}
	return res, nil
}

// setupItems runs every item's Setup, in graph insertion order. Setup must
// be idempotent (per the item.Item contract) so calling it once per command
// invocation, across items that may share collaborators, is safe.
func setupItems[P any, S any, D any](ctx context.Context, f *Flow[P, S, D], res *resources.Map) error {
	if f.Seed != nil {
		if err := f.Seed(res); err != nil {
			return err
		}
	}
	fnCtx := item.NewFnCtx(ctx, nil)
	return f.Graph.IterInsertion(func(itemID id.ItemID, _ any) error {
		return f.Items[itemID].Setup(fnCtx, res)
	})
}
