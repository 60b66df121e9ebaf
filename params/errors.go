package params

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ResolveError is the structured error surfaced when a ValueSpec fails to
// resolve. It is built with cockroachdb/errors so the resolution context
// and underlying cause travel together with a stack trace, mirroring the
// source framework's diagnostic-carrying error types.
type ResolveError struct {
	// Kind names which resolution rule failed: From, FromBorrowConflict,
	// FromMap, FromMapBorrowConflict, or InMemory.
	Kind string
	Ctx  *ResolutionCtx
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: failed to resolve %s: %v", e.Kind, e.Ctx, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

func newResolveError(kind string, ctx *ResolutionCtx, cause error) error {
	return errors.WithDetailf(&ResolveError{Kind: kind, Ctx: ctx, Err: cause}, "resolving %s for item %s", ctx.ParamsTypeName, ctx.ItemID)
}

// ErrFrom wraps a borrow failure encountered resolving a Stored spec.
func ErrFrom(ctx *ResolutionCtx, cause error) error { return newResolveError("From", ctx, cause) }

// ErrFromBorrowConflict wraps a borrow-conflict encountered resolving a
// Stored spec.
func ErrFromBorrowConflict(ctx *ResolutionCtx, cause error) error {
	return newResolveError("FromBorrowConflict", ctx, cause)
}

// ErrFromMap is returned when a MappingFn's function returns false (no
// value) during full resolution.
func ErrFromMap(ctx *ResolutionCtx) error {
	return newResolveError("FromMap", ctx, errors.New("mapping function produced no value"))
}

// ErrFromMapBorrowConflict wraps a borrow conflict encountered fetching one
// of a MappingFn's dependencies.
func ErrFromMapBorrowConflict(ctx *ResolutionCtx, cause error) error {
	return newResolveError("FromMapBorrowConflict", ctx, cause)
}

// ErrInMemory is returned when an InMemory spec's slot is absent.
func ErrInMemory(ctx *ResolutionCtx) error {
	return newResolveError("InMemory", ctx, errors.New("in-memory slot not present"))
}
