// Package cmdblock defines the command-block contract: a typed unit of
// pipeline work over the resource map, with input-fetch, per-item
// streaming exec, outcome accumulation, and collation. Ported from the
// source framework's CmdBlockOutcome/ItemStreamOutcome model.
package cmdblock

import (
	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/stream"
)

// Outcome is either a Single atomic result, or an ItemWise result carrying
// a stream outcome plus a map of per-item errors. Invariant: IsOk() iff
// Errors() is empty.
type Outcome[T any, E any] struct {
	itemWise bool
	single   T
	so       stream.ItemStreamOutcome[T]
	errs     map[id.ItemID]E
}

// SingleOutcome builds a Single-variant outcome.
func SingleOutcome[T any, E any](v T) Outcome[T, E] {
	return Outcome[T, E]{single: v}
}

// ItemWiseOutcome builds an ItemWise-variant outcome.
func ItemWiseOutcome[T any, E any](so stream.ItemStreamOutcome[T], errs map[id.ItemID]E) Outcome[T, E] {
	if errs == nil {
		errs = make(map[id.ItemID]E)
	}
	return Outcome[T, E]{itemWise: true, so: so, errs: errs}
}

// IsItemWise reports whether this outcome came from an item-wise block.
func (o Outcome[T, E]) IsItemWise() bool { return o.itemWise }

// Value returns the accumulated value, regardless of variant.
func (o Outcome[T, E]) Value() T {
	if o.itemWise {
		return o.so.Value
	}
	return o.single
}

// StreamOutcome returns the underlying stream outcome; only meaningful
// when IsItemWise() is true.
func (o Outcome[T, E]) StreamOutcome() stream.ItemStreamOutcome[T] { return o.so }

// Errors returns the per-item error map. Empty (never nil) for Single
// outcomes.
func (o Outcome[T, E]) Errors() map[id.ItemID]E {
	if o.errs == nil {
		return map[id.ItemID]E{}
	}
	return o.errs
}

// IsOk reports whether Errors() is empty.
func (o Outcome[T, E]) IsOk() bool { return len(o.errs) == 0 }

// IsErr is the negation of IsOk.
func (o Outcome[T, E]) IsErr() bool { return !o.IsOk() }

// MapOutcome transforms the accumulated value of o, preserving variant and errors.
func MapOutcome[T any, E any, U any](o Outcome[T, E], fn func(T) U) Outcome[U, E] {
	if o.itemWise {
		return Outcome[U, E]{itemWise: true, so: stream.Map(o.so, fn), errs: o.errs}
	}
	return Outcome[U, E]{single: fn(o.single), errs: o.errs}
}
