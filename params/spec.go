package params

import (
	"github.com/hashmap-kz/katomik-flow/resources"
)

// ValueSpec lazily produces a value of type P, either from a literal, the
// resource map, an in-memory slot, a mapping function over peer values, or
// (via FieldWise) a per-field assembly of nested specs.
type ValueSpec[P any] interface {
	// Resolve produces the value, or a *ResolveError on failure.
	Resolve(res *resources.Map, ctx *ResolutionCtx) (P, error)
	// ResolvePartial is the best-effort variant: ok is false if the value
	// (or, for FieldWise, any of its fields) is not yet available.
	ResolvePartial(res *resources.Map, ctx *ResolutionCtx) (value P, ok bool)
}

// Value is a literal, always-resolvable spec.
type Value[P any] struct{ V P }

// Resolve implements ValueSpec.
func (v Value[P]) Resolve(*resources.Map, *ResolutionCtx) (P, error) { return v.V, nil }

// ResolvePartial implements ValueSpec.
func (v Value[P]) ResolvePartial(*resources.Map, *ResolutionCtx) (P, bool) { return v.V, true }

// Stored takes the value already present for type P in the resource map.
type Stored[P any] struct{}

// Resolve implements ValueSpec.
func (Stored[P]) Resolve(res *resources.Map, ctx *ResolutionCtx) (P, error) {
	var zero P
	ref, err := resources.TryBorrow[P](res)
	if err != nil {
		if _, ok := err.(*resources.ErrBorrowConflictMut); ok {
			return zero, ErrFromBorrowConflict(ctx, err)
		}
		return zero, ErrFrom(ctx, err)
	}
	defer ref.Release()
	return ref.Get(), nil
}

// ResolvePartial implements ValueSpec.
func (s Stored[P]) ResolvePartial(res *resources.Map, ctx *ResolutionCtx) (P, bool) {
	v, err := s.Resolve(res, ctx)
	if err != nil {
		var zero P
		return zero, false
	}
	return v, true
}

// inMemoryKey wraps P so an in-memory slot never collides with a Stored
// entry of the same underlying type in the same resource map.
type inMemoryKey[P any] struct{ V P }

// InMemory takes the value currently present in a transient in-memory slot
// (e.g. a block's partially-populated accumulator), addressed via res.
type InMemory[P any] struct{}

// Resolve implements ValueSpec.
func (InMemory[P]) Resolve(res *resources.Map, ctx *ResolutionCtx) (P, error) {
	var zero P
	ref, err := resources.TryBorrow[inMemoryKey[P]](res)
	if err != nil {
		return zero, ErrInMemory(ctx)
	}
	defer ref.Release()
	return ref.Get().V, nil
}

// ResolvePartial implements ValueSpec.
func (m InMemory[P]) ResolvePartial(res *resources.Map, ctx *ResolutionCtx) (P, bool) {
	v, err := m.Resolve(res, ctx)
	if err != nil {
		var zero P
		return zero, false
	}
	return v, true
}

// PutInMemory seeds the in-memory slot InMemory[P] reads from.
func PutInMemory[P any](res *resources.Map, v P) {
	resources.Insert(res, inMemoryKey[P]{V: v})
}
