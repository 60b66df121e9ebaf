// Package graph implements the item graph: a DAG of items with two edge
// kinds (logic = apply-order, data = parameter-resolution reads), acyclic
// by construction.
package graph

import (
	"fmt"

	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/heimdalr/dag"
)

// EdgeKind distinguishes apply-order dependencies from parameter-resolution
// reads between two items.
type EdgeKind int

const (
	// Logic edges express apply-order dependencies: src.Apply completes
	// before dst.Apply starts.
	Logic EdgeKind = iota
	// Data edges express parameter-resolution reads: dst reads src's state.
	Data
)

func (k EdgeKind) String() string {
	switch k {
	case Logic:
		return "logic"
	case Data:
		return "data"
	default:
		return "unknown"
	}
}

// Edge is a single edge descriptor, used in WouldCycle's offending-edge report.
type Edge struct {
	Src  id.ItemID
	Dst  id.ItemID
	Kind EdgeKind
}

// ErrWouldCycle is returned when adding an edge would introduce a cycle.
// The graph is left unmodified.
type ErrWouldCycle struct {
	Edge Edge
}

func (e *ErrWouldCycle) Error() string {
	return fmt.Sprintf("adding %s edge %s -> %s would introduce a cycle", e.Edge.Kind, e.Edge.Src, e.Edge.Dst)
}

// ErrUnknownItem is returned when an edge endpoint refers to an item not
// yet added to the graph.
type ErrUnknownItem struct {
	ItemID id.ItemID
}

func (e *ErrUnknownItem) Error() string {
	return fmt.Sprintf("item %q is not in the graph", e.ItemID)
}

// ErrDuplicateItem is returned by Add when an item id is already present.
type ErrDuplicateItem struct {
	ItemID id.ItemID
}

func (e *ErrDuplicateItem) Error() string {
	return fmt.Sprintf("item %q already present in graph", e.ItemID)
}

// Graph is an acyclic-by-construction DAG of items, identified by ItemID.
// Items are stored behind an opaque handle (any): the graph never inspects
// an item's Params/State/StateDiff types directly, matching the framework's
// dynamic-dispatch design (spec §9) — all heterogeneous handling flows
// through the state type registry (C3) instead.
type Graph struct {
	order   []id.ItemID
	items   map[id.ItemID]any
	logic   *dag.DAG
	data    *dag.DAG
}

// New returns an empty item graph.
func New() *Graph {
	return &Graph{
		items: make(map[id.ItemID]any),
		logic: dag.NewDAG(),
		data:  dag.NewDAG(),
	}
}

// Add registers itemHandle (an item.Item[P,S,D] implementation, stored
// opaquely) under itemID, appending it to insertion order.
func (g *Graph) Add(itemID id.ItemID, itemHandle any) error {
	if _, ok := g.items[itemID]; ok {
		return &ErrDuplicateItem{ItemID: itemID}
	}
	if err := g.logic.AddVertexByID(string(itemID), itemHandle); err != nil {
		return fmt.Errorf("add vertex %s: %w", itemID, err)
	}
	if err := g.data.AddVertexByID(string(itemID), itemHandle); err != nil {
		return fmt.Errorf("add vertex %s: %w", itemID, err)
	}
	g.items[itemID] = itemHandle
	g.order = append(g.order, itemID)
	return nil
}

func (g *Graph) dagFor(kind EdgeKind) *dag.DAG {
	if kind == Data {
		return g.data
	}
	return g.logic
}

// AddEdge adds a src -> dst edge of the given kind. It fails with
// *ErrUnknownItem if either endpoint is absent, or *ErrWouldCycle if the
// edge would complete a cycle; in both failure cases the graph is left
// unmodified.
func (g *Graph) AddEdge(src, dst id.ItemID, kind EdgeKind) error {
	if _, ok := g.items[src]; !ok {
		return &ErrUnknownItem{ItemID: src}
	}
	if _, ok := g.items[dst]; !ok {
		return &ErrUnknownItem{ItemID: dst}
	}
	if err := g.dagFor(kind).AddEdge(string(src), string(dst)); err != nil {
		return &ErrWouldCycle{Edge: Edge{Src: src, Dst: dst, Kind: kind}}
	}
	return nil
}

// AddEdges adds every edge in edges, of the given kind, stopping at the
// first that would introduce a cycle.
func (g *Graph) AddEdges(kind EdgeKind, edges ...[2]id.ItemID) error {
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1], kind); err != nil {
			return err
		}
	}
	return nil
}

// Item returns the opaque handle registered for itemID.
func (g *Graph) Item(itemID id.ItemID) (any, bool) {
	v, ok := g.items[itemID]
	return v, ok
}

// Len returns the number of items in the graph.
func (g *Graph) Len() int { return len(g.order) }

// IterInsertion calls fn for every item, in insertion order.
func (g *Graph) IterInsertion(fn func(id.ItemID, any) error) error {
	for _, itemID := range g.order {
		if err := fn(itemID, g.items[itemID]); err != nil {
			return err
		}
	}
	return nil
}

// IndexedItem pairs an item id with its insertion index.
type IndexedItem struct {
	Index  int
	ItemID id.ItemID
	Handle any
}

// IterInsertionWithIndices calls fn for every item, in insertion order,
// along with its 0-based insertion index.
func (g *Graph) IterInsertionWithIndices(fn func(IndexedItem) error) error {
	for i, itemID := range g.order {
		if err := fn(IndexedItem{Index: i, ItemID: itemID, Handle: g.items[itemID]}); err != nil {
			return err
		}
	}
	return nil
}

// Predecessors returns the item ids with an edge of the given kind pointing
// into itemID.
func (g *Graph) Predecessors(itemID id.ItemID, kind EdgeKind) ([]id.ItemID, error) {
	parents, err := g.dagFor(kind).GetParents(string(itemID))
	if err != nil {
		return nil, fmt.Errorf("get %s predecessors of %s: %w", kind, itemID, err)
	}
	out := make([]id.ItemID, 0, len(parents))
	for k := range parents {
		out = append(out, id.ItemID(k))
	}
	return out, nil
}

// Successors returns the item ids with an edge of the given kind pointing
// out of itemID.
func (g *Graph) Successors(itemID id.ItemID, kind EdgeKind) ([]id.ItemID, error) {
	children, err := g.dagFor(kind).GetChildren(string(itemID))
	if err != nil {
		return nil, fmt.Errorf("get %s successors of %s: %w", kind, itemID, err)
	}
	out := make([]id.ItemID, 0, len(children))
	for k := range children {
		out = append(out, id.ItemID(k))
	}
	return out, nil
}
