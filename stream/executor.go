// Package stream drives a per-item function concurrently over an item
// graph, honouring dependency order, a bounded concurrency limit,
// interruption, and per-item failure isolation.
package stream

import (
	"context"
	"sort"
	"sync"

	"github.com/hashmap-kz/katomik-flow/graph"
	"github.com/hashmap-kz/katomik-flow/id"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the framework's typical bounded-concurrency limit.
const DefaultConcurrency = 64

// Direction selects which way the graph is traversed.
type Direction int

const (
	// Forward processes a node only after its predecessors finish.
	Forward Direction = iota
	// Reverse processes a node only after its successors finish; used for
	// clean-up so dependents are removed before their dependencies.
	Reverse
)

// Interrupter reports whether execution has been asked to stop starting
// new nodes. The executor never cancels in-flight work; it only polls this
// before dispatching the next node.
type Interrupter interface {
	Interrupted() bool
}

// NeverInterrupt never signals interruption.
type NeverInterrupt struct{}

// Interrupted implements Interrupter.
func (NeverInterrupt) Interrupted() bool { return false }

// NodeFn is the per-item function the executor drives. Returning a non-nil
// error records a per-item failure and prevents the item's successors
// (under the traversal's edge-kind/direction) from starting; it does not
// stop sibling branches.
type NodeFn func(ctx context.Context, itemID id.ItemID) error

// Options configures a Run call.
type Options struct {
	Kind        graph.EdgeKind
	Direction   Direction
	Concurrency int
	Interrupt   Interrupter
}

// Result is the bookkeeping produced by Run: which items completed,
// which were skipped because an ancestor failed or the stream was
// interrupted, per-item errors, and the resulting stream state.
type Result struct {
	State               State
	ItemIDsProcessed    []id.ItemID
	ItemIDsNotProcessed []id.ItemID
	Errors              map[id.ItemID]error
}

// Run drives fn over every item in g, respecting dependency order under
// opts.Kind/opts.Direction, at most opts.Concurrency at a time.
func Run(ctx context.Context, g *graph.Graph, opts Options, fn NodeFn) (Result, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	interrupt := opts.Interrupt
	if interrupt == nil {
		interrupt = NeverInterrupt{}
	}

	blockerFn := g.Predecessors
	successorFn := g.Successors
	if opts.Direction == Reverse {
		blockerFn = g.Successors
		successorFn = g.Predecessors
	}

	var order []id.ItemID
	remaining := make(map[id.ItemID]int)
	if err := g.IterInsertion(func(itemID id.ItemID, _ any) error {
		order = append(order, itemID)
		blockers, err := blockerFn(itemID, opts.Kind)
		if err != nil {
			return err
		}
		remaining[itemID] = len(blockers)
		return nil
	}); err != nil {
		return Result{}, err
	}

	var (
		mu          sync.Mutex
		processed   []id.ItemID
		skipped     = make(map[id.ItemID]bool)
		errs        = make(map[id.ItemID]error)
		started     = false
		interrupted = false
	)

	ready := make([]id.ItemID, 0)
	for _, itemID := range order {
		if remaining[itemID] == 0 {
			ready = append(ready, itemID)
		}
	}

	// The ready queue is drained by a fixed pool of workers rather than by
	// recursively spawning a new eg.Go per newly-ready successor: a
	// dependency wave wider than concurrency would otherwise have every
	// in-flight goroutine blocked trying to dispatch its successor through
	// an already-saturated errgroup limit, deadlocking the whole run.
	queue := make(chan id.ItemID, len(order))
	outstanding := len(ready)
	for _, itemID := range ready {
		queue <- itemID
	}
	if outstanding == 0 {
		close(queue)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	numWorkers := concurrency
	if numWorkers > len(order) {
		numWorkers = len(order)
	}
	for w := 0; w < numWorkers; w++ {
		eg.Go(func() error {
			for itemID := range queue {
				mu.Lock()
				if interrupt.Interrupted() {
					interrupted = true
					skipped[itemID] = true
					outstanding--
					closeNow := outstanding == 0
					mu.Unlock()
					if closeNow {
						close(queue)
					}
					continue
				}
				started = true
				mu.Unlock()

				err := fn(egCtx, itemID)

				mu.Lock()
				var next []id.ItemID
				if err != nil {
					errs[itemID] = err
					markDescendantsSkipped(itemID, successorFn, opts.Kind, skipped, remaining)
				} else {
					processed = append(processed, itemID)
				}
				succ, succErr := successorFn(itemID, opts.Kind)
				if succErr == nil {
					for _, s := range succ {
						if skipped[s] {
							continue
						}
						remaining[s]--
						if remaining[s] == 0 {
							next = append(next, s)
						}
					}
				}
				outstanding += len(next) - 1
				closeNow := outstanding == 0
				mu.Unlock()

				for _, n := range next {
					queue <- n
				}
				if closeNow {
					close(queue)
				}
			}
			return nil
		})
	}

	_ = eg.Wait()

	mu.Lock()
	defer mu.Unlock()

	var notProcessed []id.ItemID
	processedSet := make(map[id.ItemID]bool, len(processed))
	for _, p := range processed {
		processedSet[p] = true
	}
	for _, itemID := range order {
		if !processedSet[itemID] {
			if _, errored := errs[itemID]; !errored {
				notProcessed = append(notProcessed, itemID)
			}
		}
	}
	sort.Slice(notProcessed, func(i, j int) bool { return notProcessed[i] < notProcessed[j] })

	state := Finished
	switch {
	case interrupted && !started:
		state = NotStarted
	case interrupted:
		state = Interrupted
	}

	return Result{
		State:               state,
		ItemIDsProcessed:    processed,
		ItemIDsNotProcessed: notProcessed,
		Errors:              errs,
	}, nil
}

// markDescendantsSkipped flags every transitive successor of itemID (under
// kind, via successorFn) as skipped so they are never dispatched once their
// remaining-blockers count would otherwise reach zero.
func markDescendantsSkipped(
	itemID id.ItemID,
	successorFn func(id.ItemID, graph.EdgeKind) ([]id.ItemID, error),
	kind graph.EdgeKind,
	skipped map[id.ItemID]bool,
	remaining map[id.ItemID]int,
) {
	queue, err := successorFn(itemID, kind)
	if err != nil {
		return
	}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if skipped[next] {
			continue
		}
		skipped[next] = true
		delete(remaining, next)
		more, err := successorFn(next, kind)
		if err == nil {
			queue = append(queue, more...)
		}
	}
}
