// Package cmdexec implements the command execution pipeline: a sequenced
// queue of command blocks driven over a shared resource map, with
// input-fetch diagnostics, cancellation, and outcome aggregation.
package cmdexec

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hashmap-kz/katomik-flow/cmdblock"
	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/resources"
)

// Kind distinguishes the four shapes a CmdOutcome may take.
type Kind int

const (
	// Complete means every block ran and produced a final value.
	Complete Kind = iota
	// BlockInterrupted means execution stopped between blocks because the
	// interrupt source fired; interruption is never an error.
	BlockInterrupted
	// ItemError means a block reported per-item errors and its policy
	// (default, or override) stopped the pipeline.
	ItemError
	// ExecutionError means a block failed outright (input-fetch failure,
	// exec failure, or the final outcome fetch failed).
	ExecutionError
)

// Outcome is the pipeline-level result of running a CmdExecution.
type Outcome struct {
	Kind               Kind
	Value              any
	CmdBlocksProcessed int
	Errors             map[id.ItemID]error
	Err                error
}

// Interrupter is polled between command blocks.
type Interrupter interface {
	Interrupted() bool
}

// NeverInterrupt never signals interruption.
type NeverInterrupt struct{}

// Interrupted implements Interrupter.
func (NeverInterrupt) Interrupted() bool { return false }

// SetupFunc runs each item's Setup, inserting shared collaborators into
// res before any block executes.
type SetupFunc func(res *resources.Map) error

// OutcomeFetchFunc converts the resource map's final state into the
// pipeline's returned value, after every block has run.
type OutcomeFetchFunc func(res *resources.Map) (any, error)

// CmdExecution is an ordered queue of command blocks.
type CmdExecution struct {
	RunID         uuid.UUID
	Blocks        []cmdblock.Runner
	Setup         SetupFunc
	OutcomeFetch  OutcomeFetchFunc
	Interrupt     Interrupter
	Logger        *zap.Logger
}

// New constructs a CmdExecution over blocks, stamping it with a fresh run
// id that Run attaches to every log entry for correlation.
func New(blocks ...cmdblock.Runner) *CmdExecution {
	return &CmdExecution{
		RunID:     uuid.New(),
		Blocks:    blocks,
		Interrupt: NeverInterrupt{},
		Logger:    zap.NewNop(),
	}
}

func (c *CmdExecution) descs() []cmdblock.Desc {
	descs := make([]cmdblock.Desc, len(c.Blocks))
	for i, b := range c.Blocks {
		d := b.Desc()
		d.Index = i
		descs[i] = d
	}
	return descs
}

// Run executes the pipeline: setup, then each block in order, threading
// outcomes through res.
func (c *CmdExecution) Run(ctx context.Context, res *resources.Map) Outcome {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run_id", c.RunID.String()))

	if c.Setup != nil {
		if err := c.Setup(res); err != nil {
			return Outcome{Kind: ExecutionError, Err: fmt.Errorf("setup: %w", err)}
		}
	}

	descs := c.descs()
	allErrors := make(map[id.ItemID]error)

	for i, block := range c.Blocks {
		if c.Interrupt != nil && c.Interrupt.Interrupted() {
			logger.Info("cmd execution interrupted", zap.Int("cmd_block_index", i))
			return Outcome{Kind: BlockInterrupted, CmdBlocksProcessed: i}
		}

		result, err := block.Run(ctx, res)
		if err != nil {
			if isMissingInput(err) {
				logger.Error("input fetch failed", zap.Int("cmd_block_index", i), zap.Error(err))
				return Outcome{Kind: ExecutionError, CmdBlocksProcessed: i, Err: newInputFetchError(descs, i, err)}
			}
			logger.Error("block exec failed", zap.Int("cmd_block_index", i), zap.Error(err))
			return Outcome{Kind: ExecutionError, CmdBlocksProcessed: i, Err: err}
		}

		if result.ItemWise && len(result.Errors) > 0 {
			for itemID, itemErr := range result.Errors {
				allErrors[itemID] = multierr.Append(allErrors[itemID], itemErr)
			}
			if !descs[i].ContinueOnItemError {
				logger.Warn("stopping pipeline on item error",
					zap.Int("cmd_block_index", i), zap.Int("item_errors", len(result.Errors)))
				return Outcome{Kind: ItemError, CmdBlocksProcessed: i + 1, Errors: allErrors}
			}
		}
	}

	if len(allErrors) > 0 {
		return Outcome{Kind: ItemError, CmdBlocksProcessed: len(c.Blocks), Errors: allErrors}
	}

	if c.OutcomeFetch == nil {
		return Outcome{Kind: Complete, CmdBlocksProcessed: len(c.Blocks)}
	}
	value, err := c.OutcomeFetch(res)
	if err != nil {
		return Outcome{Kind: ExecutionError, CmdBlocksProcessed: len(c.Blocks), Err: err}
	}
	return Outcome{Kind: Complete, CmdBlocksProcessed: len(c.Blocks), Value: value}
}

func isMissingInput(err error) bool {
	var notFound *resources.ErrValueNotFound
	var conflictMut *resources.ErrBorrowConflictMut
	var conflictImm *resources.ErrBorrowConflictImm
	return errors.As(err, &notFound) || errors.As(err, &conflictMut) || errors.As(err, &conflictImm)
}
