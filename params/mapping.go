package params

import "github.com/hashmap-kz/katomik-flow/resources"

// MappingFn1 resolves P by calling Fn with one dependency borrowed from the
// resource map. Fn returns ok=false when it cannot produce a value (e.g.
// the dependency has not reached the required state yet), which resolves
// to an ErrFromMap.
//
// The source framework's MappingFn accepts an arbitrary-arity dependency
// list; Go generics have no variadic type parameters, so this package
// exposes fixed 1- and 2-arg variants (MappingFn1, MappingFn2) and callers
// compose FieldWise for anything wider, rather than a single N-ary spec.
type MappingFn1[P any, U any] struct {
	Fn func(u U) (P, bool)
}

// Resolve implements ValueSpec.
func (m MappingFn1[P, U]) Resolve(res *resources.Map, ctx *ResolutionCtx) (P, error) {
	var zero P
	uRef, err := resources.TryBorrow[U](res)
	if err != nil {
		if _, ok := err.(*resources.ErrBorrowConflictMut); ok {
			return zero, ErrFromMapBorrowConflict(ctx, err)
		}
		return zero, ErrFromMap(ctx)
	}
	defer uRef.Release()
	v, ok := m.Fn(uRef.Get())
	if !ok {
		return zero, ErrFromMap(ctx)
	}
	return v, nil
}

// ResolvePartial implements ValueSpec.
func (m MappingFn1[P, U]) ResolvePartial(res *resources.Map, ctx *ResolutionCtx) (P, bool) {
	uRef, err := resources.TryBorrow[U](res)
	if err != nil {
		var zero P
		return zero, false
	}
	defer uRef.Release()
	return m.Fn(uRef.Get())
}

// MappingFn2 is MappingFn1 with two dependencies.
type MappingFn2[P any, U1 any, U2 any] struct {
	Fn func(u1 U1, u2 U2) (P, bool)
}

// Resolve implements ValueSpec.
func (m MappingFn2[P, U1, U2]) Resolve(res *resources.Map, ctx *ResolutionCtx) (P, error) {
	var zero P
	r1, err := resources.TryBorrow[U1](res)
	if err != nil {
		if _, ok := err.(*resources.ErrBorrowConflictMut); ok {
			return zero, ErrFromMapBorrowConflict(ctx, err)
		}
		return zero, ErrFromMap(ctx)
	}
	defer r1.Release()
	r2, err := resources.TryBorrow[U2](res)
	if err != nil {
		if _, ok := err.(*resources.ErrBorrowConflictMut); ok {
			return zero, ErrFromMapBorrowConflict(ctx, err)
		}
		return zero, ErrFromMap(ctx)
	}
	defer r2.Release()
	v, ok := m.Fn(r1.Get(), r2.Get())
	if !ok {
		return zero, ErrFromMap(ctx)
	}
	return v, nil
}

// ResolvePartial implements ValueSpec.
func (m MappingFn2[P, U1, U2]) ResolvePartial(res *resources.Map, ctx *ResolutionCtx) (P, bool) {
	var zero P
	r1, err := resources.TryBorrow[U1](res)
	if err != nil {
		return zero, false
	}
	defer r1.Release()
	r2, err := resources.TryBorrow[U2](res)
	if err != nil {
		return zero, false
	}
	defer r2.Release()
	return m.Fn(r1.Get(), r2.Get())
}

// FieldSpec resolves one named field of a FieldWise spec.
type FieldSpec struct {
	Name     string
	TypeName string
	Resolve  func(res *resources.Map, ctx *ResolutionCtx) (any, error)
	Partial  func(res *resources.Map, ctx *ResolutionCtx) (any, bool)
}

// Field adapts a typed ValueSpec[F] into a FieldSpec, for use inside
// FieldWise.
func Field[F any](name, typeName string, spec ValueSpec[F]) FieldSpec {
	return FieldSpec{
		Name:     name,
		TypeName: typeName,
		Resolve: func(res *resources.Map, ctx *ResolutionCtx) (any, error) {
			return spec.Resolve(res, ctx)
		},
		Partial: func(res *resources.Map, ctx *ResolutionCtx) (any, bool) {
			return spec.ResolvePartial(res, ctx)
		},
	}
}

// FieldWise resolves a struct-shaped P field by field, then assembles the
// whole from the resolved fields via Assemble.
type FieldWise[P any] struct {
	Fields   []FieldSpec
	Assemble func(values map[string]any) P
}

// Resolve implements ValueSpec.
func (f FieldWise[P]) Resolve(res *resources.Map, ctx *ResolutionCtx) (P, error) {
	var zero P
	values := make(map[string]any, len(f.Fields))
	for _, field := range f.Fields {
		ctx.Push(FieldNameAndType{FieldName: field.Name, TypeName: field.TypeName})
		v, err := field.Resolve(res, ctx)
		ctx.Pop()
		if err != nil {
			return zero, err
		}
		values[field.Name] = v
	}
	return f.Assemble(values), nil
}

// ResolvePartial implements ValueSpec.
func (f FieldWise[P]) ResolvePartial(res *resources.Map, ctx *ResolutionCtx) (P, bool) {
	var zero P
	values := make(map[string]any, len(f.Fields))
	for _, field := range f.Fields {
		ctx.Push(FieldNameAndType{FieldName: field.Name, TypeName: field.TypeName})
		v, ok := field.Partial(res, ctx)
		ctx.Pop()
		if !ok {
			return zero, false
		}
		values[field.Name] = v
	}
	return f.Assemble(values), true
}
