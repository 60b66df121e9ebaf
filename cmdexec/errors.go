package cmdexec

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashmap-kz/katomik-flow/cmdblock"
)

// InputFetchError is raised when a block's InputFetch could not find its
// input in the resource map. It carries enough structure (the block index,
// both the short and full type names of the missing input, and a
// YAML-shaped reconstruction of the whole pipeline) to be rendered by a
// diagnostic front-end, mirroring the source framework's
// CmdExecutionError::InputFetch / InputFetchError.
type InputFetchError struct {
	CmdBlockDescs     []cmdblock.Desc
	CmdBlockIndex     int
	InputNameShort    string
	InputNameFull     string
	CmdExecutionSrc   string
	Cause             error
}

func (e *InputFetchError) Error() string {
	return fmt.Sprintf(
		"input fetch failed at block %d (%s): missing %s\n%s",
		e.CmdBlockIndex, e.CmdBlockDescs[e.CmdBlockIndex].Name, e.InputNameShort, e.CmdExecutionSrc,
	)
}

func (e *InputFetchError) Unwrap() error { return e.Cause }

// newInputFetchError builds an InputFetchError for the block at index
// failedIndex, reconstructing the full pipeline listing around it.
func newInputFetchError(descs []cmdblock.Desc, failedIndex int, cause error) error {
	failed := descs[failedIndex]
	src := reconstructPipeline(descs, failedIndex)
	e := &InputFetchError{
		CmdBlockDescs:   descs,
		CmdBlockIndex:   failedIndex,
		InputNameShort:  failed.InputTypeNameShort,
		InputNameFull:   failed.InputTypeNameFull,
		CmdExecutionSrc: src,
		Cause:           cause,
	}
	return errors.WithDetailf(e, "cmd_block_index=%d input=%s", failedIndex, failed.InputTypeNameFull)
}

// reconstructPipeline renders a YAML-shaped listing of every block in the
// pipeline, each annotated with its Input/Outcome type names, marking the
// block at failedIndex whose input was missing.
func reconstructPipeline(descs []cmdblock.Desc, failedIndex int) string {
	var b strings.Builder
	b.WriteString("cmd_blocks:\n")
	for i, d := range descs {
		fmt.Fprintf(&b, "  - name: %s\n", d.Name)
		fmt.Fprintf(&b, "    input: %s", d.InputTypeNameShort)
		if i == failedIndex {
			b.WriteString("  # <-- missing")
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "    outcome: %s\n", d.OutcomeTypeName)
	}
	return b.String()
}
