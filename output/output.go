// Package output implements the external output-writer interface the core
// consumes (spec §6): presenting values, reporting errors, and narrating
// progress as commands run. The framework packages never render directly;
// the cmd package calls Present and WriteErr through this interface, so a
// terminal, web, or test double front-end can be swapped in behind it.
// Nothing in the framework calls the progress methods (ProgressBegin,
// ProgressEnd, ProgressUpdate, CmdBlockStart, ItemLocationState).
package output

import (
	"fmt"
	"io"

	"github.com/aquasecurity/table"
	"go.uber.org/zap"

	"github.com/hashmap-kz/katomik-flow/id"
)

// Presentable is any value a Writer can render to the user, independent of
// the command that produced it (a state store, a diff map, a plain
// string...). Front-ends format by type-switching on the concrete value;
// the core only ever calls Present with one.
type Presentable interface {
	// PresentTitle is a short heading describing what the value is, e.g.
	// "states_current" or "diff".
	PresentTitle() string
}

// Tabular is a Presentable that can also render as rows, one per item.
// TerminalWriter prefers this over a plain Stringer when both are present.
type Tabular interface {
	Presentable
	// TableHeaders returns the column headers.
	TableHeaders() []string
	// TableRows returns one row of cells per item, aligned to TableHeaders.
	TableRows() [][]string
}

// InteractionType distinguishes the kind of per-item activity a progress
// update describes.
type InteractionType int

const (
	// InteractionDiscover means an item is being discovered (current or goal).
	InteractionDiscover InteractionType = iota
	// InteractionDiff means an item's diff is being computed.
	InteractionDiff
	// InteractionApplyCheck means an item's apply-check is running.
	InteractionApplyCheck
	// InteractionApply means an item's apply (or apply-dry) is running.
	InteractionApply
)

func (t InteractionType) String() string {
	switch t {
	case InteractionDiscover:
		return "discover"
	case InteractionDiff:
		return "diff"
	case InteractionApplyCheck:
		return "apply_check"
	case InteractionApply:
		return "apply"
	default:
		return "unknown"
	}
}

// Writer is the output-writer interface (spec §6). The cmd package calls
// Present and WriteErr; the progress methods have no caller in the
// framework. Every operation is individually optional in the sense that a
// Writer may choose to no-op any of them; no caller depends on a particular
// rendering.
type Writer interface {
	// Present emits a user-facing value.
	Present(v Presentable)
	// WriteErr emits an error.
	WriteErr(err error)
	// ProgressBegin announces the start of a named command block.
	ProgressBegin(blockName string)
	// ProgressEnd announces a named command block's completion.
	ProgressEnd(blockName string)
	// ProgressUpdate reports incremental progress for itemID during
	// interaction kind, with delta being an interaction-specific unit
	// (bytes, steps...).
	ProgressUpdate(itemID id.ItemID, kind InteractionType, delta uint64)
	// CmdBlockStart announces a pipeline block starting, by index and name.
	CmdBlockStart(index int, name string)
	// ItemLocationState reports a single item's current observed state
	// label, e.g. for a live terminal table of per-item status.
	ItemLocationState(itemID id.ItemID, label string)
}

// TerminalWriter is a Writer that renders to a terminal: structured logs
// via zap for progress/errors, Tabular presentables as a table, and any
// other presentable as its String() text.
type TerminalWriter struct {
	Out    io.Writer
	Logger *zap.Logger
}

// NewTerminalWriter returns a TerminalWriter writing presented values to
// out and structured progress/error logs through logger.
func NewTerminalWriter(out io.Writer, logger *zap.Logger) *TerminalWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TerminalWriter{Out: out, Logger: logger}
}

// Present implements Writer. A Tabular value is rendered as a table; any
// other value falls back to its String() form, if it has one.
func (w *TerminalWriter) Present(v Presentable) {
	fmt.Fprintf(w.Out, "%s:\n", v.PresentTitle())
	if t, ok := v.(Tabular); ok {
		tbl := table.New(w.Out)
		tbl.SetHeaders(t.TableHeaders()...)
		for _, row := range t.TableRows() {
			tbl.AddRow(row...)
		}
		tbl.Render()
		return
	}
	if s, ok := v.(fmt.Stringer); ok {
		fmt.Fprintln(w.Out, s.String())
	}
}

// WriteErr implements Writer.
func (w *TerminalWriter) WriteErr(err error) {
	w.Logger.Error("command failed", zap.Error(err))
}

// ProgressBegin implements Writer.
func (w *TerminalWriter) ProgressBegin(blockName string) {
	w.Logger.Info("block started", zap.String("block", blockName))
}

// ProgressEnd implements Writer.
func (w *TerminalWriter) ProgressEnd(blockName string) {
	w.Logger.Info("block finished", zap.String("block", blockName))
}

// ProgressUpdate implements Writer.
func (w *TerminalWriter) ProgressUpdate(itemID id.ItemID, kind InteractionType, delta uint64) {
	w.Logger.Debug("progress",
		zap.String("item_id", itemID.String()), zap.String("interaction", kind.String()), zap.Uint64("delta", delta))
}

// CmdBlockStart implements Writer.
func (w *TerminalWriter) CmdBlockStart(index int, name string) {
	w.Logger.Info("cmd block start", zap.Int("index", index), zap.String("name", name))
}

// ItemLocationState implements Writer.
func (w *TerminalWriter) ItemLocationState(itemID id.ItemID, label string) {
	w.Logger.Info("item state", zap.String("item_id", itemID.String()), zap.String("state", label))
}
