// Package item defines the per-item capability set the framework drives:
// parameter-typed discovery, diff, apply-check, and apply functions, plus
// the state model those functions imply.
package item

import (
	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/resources"
)

// ApplyCheckStatus is tri-valued in spirit: ExecRequired carries a progress
// limit, ExecNotRequired carries none.
type ApplyCheckStatus int

const (
	// ExecRequired means apply must run; ProgressLimit bounds its cost.
	ExecRequired ApplyCheckStatus = iota
	// ExecNotRequired means current already matches target.
	ExecNotRequired
)

// ApplyCheck is the result of checking whether an item's apply must run.
type ApplyCheck struct {
	Status        ApplyCheckStatus
	ProgressLimit ProgressLimit
}

// RequiredWithLimit returns an ApplyCheck requiring exec, bounded by limit.
func RequiredWithLimit(limit ProgressLimit) ApplyCheck {
	return ApplyCheck{Status: ExecRequired, ProgressLimit: limit}
}

// NotRequired returns an ApplyCheck indicating no exec is needed.
func NotRequired() ApplyCheck {
	return ApplyCheck{Status: ExecNotRequired}
}

// Partial wraps a value of type P with a flag indicating whether every
// field that resolution attempted to fill in was actually available. It
// stands in for the source's field-wise partial-construction semantics:
// Go has no native "struct with some fields absent" concept cheap enough
// to generate per type, so partial resolution here yields the
// best-effort-filled zero-defaulted value plus a completeness flag instead
// of a bespoke partial type per Params type.
type Partial[P any] struct {
	Value    P
	Complete bool
}

// Item is the capability set a managed resource (file, cloud object,
// process, derived artifact...) must implement. P is the item's parameter
// type, S its state type, D its state-diff type.
type Item[P any, S any, D any] interface {
	// ID returns the item's identifier within its owning graph.
	ID() id.ItemID

	// Setup inserts any globally shared collaborators (clients,
	// connections) into resources. It must be idempotent: the framework
	// calls it once per item per command, but items sharing a
	// collaborator type may race to insert it.
	Setup(ctx *FnCtx, res *resources.Map) error

	// StateCurrent discovers the live state of the managed resource.
	StateCurrent(ctx *FnCtx, params P, res *resources.Map) (S, error)
	// TryStateCurrent is the partial-parameter variant used during
	// discovery when some parameters may not yet be resolvable.
	TryStateCurrent(ctx *FnCtx, params Partial[P], res *resources.Map) (S, bool, error)

	// StateGoal and TryStateGoal are the current-state functions'
	// goal-state counterparts.
	StateGoal(ctx *FnCtx, params P, res *resources.Map) (S, error)
	TryStateGoal(ctx *FnCtx, params Partial[P], res *resources.Map) (S, bool, error)

	// StateClean returns the state representing "the managed resource does
	// not exist".
	StateClean(ctx *FnCtx, params Partial[P], res *resources.Map) (S, error)

	// StateDiff computes the difference between current and goal state.
	StateDiff(ctx *FnCtx, params Partial[P], res *resources.Map, current, goal S) (D, error)

	// ApplyCheck reports whether Apply must run to move current toward
	// target, and how expensive that is expected to be. It must be cheap:
	// no I/O beyond what discovery already performed.
	ApplyCheck(ctx *FnCtx, params P, res *resources.Map, current, target S, diff D) (ApplyCheck, error)

	// Apply drives current toward target and returns the resulting state.
	// It is the only function permitted to mutate the managed resource.
	Apply(ctx *FnCtx, params P, res *resources.Map, current, target S, diff D) (S, error)
	// ApplyDry returns the state Apply would produce, without causing any
	// observable side effect.
	ApplyDry(ctx *FnCtx, params P, res *resources.Map, current, target S, diff D) (S, error)
}
