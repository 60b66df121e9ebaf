package cmdblock

import (
	"context"
	"reflect"

	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/resources"
)

// Block is the typed contract a single pipeline step implements. InputT is
// fetched from (and removed from) the resource map; OutcomeAcc accumulates
// OutcomePartial values emitted during Exec; Outcome is the final value
// re-inserted into the resource map for the next block.
type Block[InputT any, OutcomeAcc any, OutcomePartial any, Outcome any] interface {
	// Name identifies the block in diagnostics and logs.
	Name() string

	// InputFetch removes this block's input from the resource map. A
	// non-nil error (typically a *resources.ErrValueNotFound) causes the
	// owning CmdExecution to abort with an InputFetch diagnostic; the
	// block itself does not need to construct that diagnostic.
	InputFetch(res *resources.Map) (InputT, error)

	// OutcomeAccInit seeds the per-invocation accumulator from the fetched
	// input.
	OutcomeAccInit(input InputT) OutcomeAcc

	// Exec drives the block's work. For item-wise blocks it streams
	// OutcomePartial values through partials (closing it is the caller's
	// responsibility, not Exec's) and returns itemWise=true along with any
	// per-item errors. Single-value blocks send at most one partial,
	// return itemWise=false, and a nil error map.
	Exec(ctx context.Context, input InputT, res *resources.Map, partials chan<- OutcomePartial) (itemWise bool, itemErrors map[id.ItemID]error, err error)

	// OutcomeCollate folds one partial into the accumulator, under a
	// single-threaded loop (the collator never runs concurrently with
	// itself).
	OutcomeCollate(acc *OutcomeAcc, partial OutcomePartial) error

	// OutcomeFromAcc converts the accumulator into the block's final
	// value.
	OutcomeFromAcc(acc OutcomeAcc) Outcome

	// ContinueOnItemError overrides the pipeline's default stop-on-error
	// policy for this block specifically.
	ContinueOnItemError() bool
}

// Desc is the type-erased description of a block, used by CmdExecution for
// diagnostics (in particular the InputFetch error of §7/§9).
type Desc struct {
	Index                int
	Name                 string
	InputTypeNameShort   string
	InputTypeNameFull    string
	OutcomeTypeName      string
	ContinueOnItemError  bool
}

// Result is the type-erased outcome of running one block.
type Result struct {
	ItemWise            bool
	Errors               map[id.ItemID]error
	ItemIDsProcessed      []id.ItemID
	ItemIDsNotProcessed   []id.ItemID
}

// Runner is the type-erased form of Block that CmdExecution drives. Blocks
// communicate solely through the resource map — InputFetch removes a
// block's input, Run re-inserts its Outcome — so the pipeline itself need
// not be generic over each block's types.
type Runner interface {
	Desc() Desc
	Run(ctx context.Context, res *resources.Map) (Result, error)
}

type adapter[InputT any, OutcomeAcc any, OutcomePartial any, Outcome any] struct {
	block Block[InputT, OutcomeAcc, OutcomePartial, Outcome]
}

// Adapt type-erases a typed Block into a Runner.
func Adapt[InputT any, OutcomeAcc any, OutcomePartial any, Outcome any](
	b Block[InputT, OutcomeAcc, OutcomePartial, Outcome],
) Runner {
	return adapter[InputT, OutcomeAcc, OutcomePartial, Outcome]{block: b}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func (a adapter[InputT, OutcomeAcc, OutcomePartial, Outcome]) Desc() Desc {
	var input InputT
	var outcome Outcome
	full := typeName(reflect.TypeOf(input))
	short := full
	if idx := lastDot(full); idx >= 0 {
		short = full[idx+1:]
	}
	return Desc{
		Name:                a.block.Name(),
		InputTypeNameShort:  short,
		InputTypeNameFull:   full,
		OutcomeTypeName:     typeName(reflect.TypeOf(outcome)),
		ContinueOnItemError: a.block.ContinueOnItemError(),
	}
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

func (a adapter[InputT, OutcomeAcc, OutcomePartial, Outcome]) Run(ctx context.Context, res *resources.Map) (Result, error) {
	input, err := a.block.InputFetch(res)
	if err != nil {
		return Result{}, err
	}

	acc := a.block.OutcomeAccInit(input)
	partials := make(chan OutcomePartial, 64)

	var itemWise bool
	var itemErrs map[id.ItemID]error
	var execErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(partials)
		itemWise, itemErrs, execErr = a.block.Exec(ctx, input, res, partials)
	}()

	var collateErr error
	for partial := range partials {
		if err := a.block.OutcomeCollate(&acc, partial); err != nil && collateErr == nil {
			collateErr = err
		}
	}
	<-done

	if execErr != nil {
		return Result{}, execErr
	}
	if collateErr != nil {
		return Result{}, collateErr
	}

	outcome := a.block.OutcomeFromAcc(acc)
	resources.Insert(res, outcome)

	return Result{ItemWise: itemWise, Errors: itemErrs}, nil
}
