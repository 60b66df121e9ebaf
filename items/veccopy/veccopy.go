// Package veccopy is a minimal in-memory item family used to exercise and
// test the framework end to end without any external system. It copies
// bytes from a source slice to a destination slice, and is a direct port
// of the source framework's own vec-copy test item.
package veccopy

import (
	"bytes"
	"fmt"

	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/item"
	"github.com/hashmap-kz/katomik-flow/resources"
)

// Params are the parameters for a copy item: the bytes it copies from, and
// the destination's declared content.
type Params struct {
	// Src is the content the destination converges to: the item's goal
	// state.
	Src []byte
	// Dest is the destination's declared content. No Copy function reads
	// it: "current" is whatever the managed destination slot holds, and
	// Setup seeds that slot empty.
	Dest []byte
}

// State is a copy item's state: the byte slice it currently holds.
type State []byte

// Diff describes how State changed between two observations, mirroring the
// source's VecDiff: an alignment over the longest common subsequence of
// current and goal, reported as removed runs, inserted runs, and altered
// single bytes, rather than a flat positional comparison.
type Diff struct {
	Removed  []RemovedRun
	Inserted []InsertedRun
	Altered  []AlteredRun
}

// RemovedRun records a contiguous run removed from the current slice, at
// its index in current.
type RemovedRun struct {
	Index int
	Len   int
}

// InsertedRun records a contiguous run inserted relative to current, at the
// index in current before which it is spliced.
type InsertedRun struct {
	Index   int
	Changes []byte
}

// AlteredRun records a single-byte change at its index in current. Changes
// holds the delta (goal byte minus current byte, wrapping), not the raw
// replacement byte — e.g. changing 7 to 8 records delta 1.
type AlteredRun struct {
	Index   int
	Changes []byte
}

type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

// diffOp is one step of the alignment between current (a) and goal (b):
// either a matched byte, a byte present only in current, or a byte present
// only in goal.
type diffOp struct {
	kind opKind
	aIdx int
	bIdx int
}

// alignOps walks the longest-common-subsequence alignment of current and
// goal, emitting one diffOp per byte of either slice, in order.
func alignOps(current, goal State) []diffOp {
	n, m := len(current), len(goal)
	lcsLen := make([][]int, n+1)
	for i := range lcsLen {
		lcsLen[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			switch {
			case current[i] == goal[j]:
				lcsLen[i][j] = lcsLen[i+1][j+1] + 1
			case lcsLen[i+1][j] >= lcsLen[i][j+1]:
				lcsLen[i][j] = lcsLen[i+1][j]
			default:
				lcsLen[i][j] = lcsLen[i][j+1]
			}
		}
	}

	var ops []diffOp
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case current[i] == goal[j]:
			ops = append(ops, diffOp{kind: opEqual, aIdx: i, bIdx: j})
			i++
			j++
		case lcsLen[i+1][j] >= lcsLen[i][j+1]:
			ops = append(ops, diffOp{kind: opDelete, aIdx: i})
			i++
		default:
			ops = append(ops, diffOp{kind: opInsert, bIdx: j})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, diffOp{kind: opDelete, aIdx: i})
	}
	for ; j < m; j++ {
		ops = append(ops, diffOp{kind: opInsert, bIdx: j})
	}
	return ops
}

// ComputeDiff aligns current against goal along their longest common
// subsequence, then folds each contiguous run of removals and insertions:
// a removal paired with an insertion of equal length becomes an Altered
// entry carrying a byte-wise delta; whichever side has leftover bytes
// contributes a Removed or Inserted run for the remainder.
func ComputeDiff(current, goal State) Diff {
	ops := alignOps(current, goal)

	var d Diff
	aCursor := 0
	for k := 0; k < len(ops); {
		if ops[k].kind == opEqual {
			aCursor = ops[k].aIdx + 1
			k++
			continue
		}
		hunkStartA := aCursor
		var deletes, inserts []diffOp
		for k < len(ops) && ops[k].kind != opEqual {
			if ops[k].kind == opDelete {
				deletes = append(deletes, ops[k])
			} else {
				inserts = append(inserts, ops[k])
			}
			k++
		}

		paired := len(deletes)
		if len(inserts) < paired {
			paired = len(inserts)
		}
		for p := 0; p < paired; p++ {
			delta := goal[inserts[p].bIdx] - current[deletes[p].aIdx]
			d.Altered = append(d.Altered, AlteredRun{Index: deletes[p].aIdx, Changes: []byte{delta}})
		}
		if len(deletes) > paired {
			rest := deletes[paired:]
			d.Removed = append(d.Removed, RemovedRun{Index: rest[0].aIdx, Len: len(rest)})
		}
		if len(inserts) > paired {
			rest := inserts[paired:]
			changes := make([]byte, len(rest))
			for p, op := range rest {
				changes[p] = goal[op.bIdx]
			}
			spliceAt := hunkStartA
			if paired > 0 {
				spliceAt = deletes[paired-1].aIdx + 1
			}
			d.Inserted = append(d.Inserted, InsertedRun{Index: spliceAt, Changes: changes})
		}

		if len(deletes) > 0 {
			aCursor = deletes[len(deletes)-1].aIdx + 1
		} else {
			aCursor = hunkStartA
		}
	}
	return d
}

// destSlot is the resource-map-resident mutable destination storage a Copy
// item's state is read from and written to, standing in for the source's
// VecB resource.
type destSlot struct {
	ID    id.ItemID
	Bytes []byte
}

// Copy is an item.Item[Params, State, Diff] implementation.
type Copy struct {
	Name id.ItemID
}

// New returns a Copy item identified by name.
func New(name id.ItemID) *Copy { return &Copy{Name: name} }

// ID implements item.Item.
func (c *Copy) ID() id.ItemID { return c.Name }

// Setup implements item.Item: it seeds the destination slot, if absent.
func (c *Copy) Setup(_ *item.FnCtx, res *resources.Map) error {
	if _, err := resources.TryBorrow[destSlot](res); err == nil {
		return nil
	}
	resources.Insert(res, destSlot{ID: c.Name, Bytes: nil})
	return nil
}

// StateCurrent implements item.Item: it reports whatever the destination
// slot currently holds.
func (c *Copy) StateCurrent(_ *item.FnCtx, _ Params, res *resources.Map) (State, error) {
	ref, err := resources.TryBorrow[destSlot](res)
	if err != nil {
		return State{}, nil
	}
	defer ref.Release()
	return append(State{}, ref.Get().Bytes...), nil
}

// TryStateCurrent implements item.Item.
func (c *Copy) TryStateCurrent(ctx *item.FnCtx, params item.Partial[Params], res *resources.Map) (State, bool, error) {
	if !params.Complete {
		return nil, false, nil
	}
	s, err := c.StateCurrent(ctx, params.Value, res)
	return s, err == nil, err
}

// StateGoal implements item.Item: it is simply the params' Src, the bytes
// the destination is copied from.
func (c *Copy) StateGoal(_ *item.FnCtx, params Params, _ *resources.Map) (State, error) {
	return append(State{}, params.Src...), nil
}

// TryStateGoal implements item.Item.
func (c *Copy) TryStateGoal(ctx *item.FnCtx, params item.Partial[Params], res *resources.Map) (State, bool, error) {
	if !params.Complete {
		return nil, false, nil
	}
	s, err := c.StateGoal(ctx, params.Value, res)
	return s, err == nil, err
}

// StateClean implements item.Item: the empty slice.
func (c *Copy) StateClean(_ *item.FnCtx, _ item.Partial[Params], _ *resources.Map) (State, error) {
	return State{}, nil
}

// StateDiff implements item.Item.
func (c *Copy) StateDiff(_ *item.FnCtx, _ item.Partial[Params], _ *resources.Map, current, goal State) (Diff, error) {
	return ComputeDiff(current, goal), nil
}

// ApplyCheck implements item.Item: exec is required whenever current !=
// target.
func (c *Copy) ApplyCheck(_ *item.FnCtx, _ Params, _ *resources.Map, current, target State, _ Diff) (item.ApplyCheck, error) {
	if bytes.Equal(current, target) {
		return item.NotRequired(), nil
	}
	return item.RequiredWithLimit(item.Bytes(uint64(len(target)))), nil
}

// Apply implements item.Item: the destination slot is overwritten to match
// target (the only side-effecting operation any Copy item performs).
func (c *Copy) Apply(_ *item.FnCtx, _ Params, res *resources.Map, _ State, target State, _ Diff) (State, error) {
	refMut, err := resources.TryBorrowMut[destSlot](res)
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", c.Name, err)
	}
	refMut.Get().Bytes = append([]byte{}, target...)
	refMut.Release()
	return append(State{}, target...), nil
}

// ApplyDry implements item.Item: it must not mutate the destination slot.
func (c *Copy) ApplyDry(_ *item.FnCtx, _ Params, _ *resources.Map, _ State, target State, _ Diff) (State, error) {
	return append(State{}, target...), nil
}
