package serde

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashmap-kz/katomik-flow/id"
)

// DeserializeError reports a state-store decode failure, with byte offsets
// recovered from the codec's own error message. Ported from the source
// framework's `yaml_error_context_hack`: some textual codecs report a
// location only inside the message, in the form "message at line L column
// C at line L' column C'", and their structured location field cannot be
// trusted; when two such clauses are present, the earlier one (error_span)
// names the offending token and the later one (context_span) names the
// enclosing construct. When only one location is present, it is used
// directly as error_span with no context.
type DeserializeError struct {
	FlowID       string
	ErrorMessage string
	ErrorSpan    *int
	ContextSpan  *int
	Cause        error
}

func (e *DeserializeError) Error() string {
	if e.ErrorSpan != nil {
		return fmt.Sprintf("states deserialize: %s (byte %d)", e.ErrorMessage, *e.ErrorSpan)
	}
	return fmt.Sprintf("states deserialize: %s", e.ErrorMessage)
}

func (e *DeserializeError) Unwrap() error { return e.Cause }

// ErrStatesCurrentDiscoverRequired is returned by StatesCurrentReadCmd when
// no current-states file has been written yet.
type ErrStatesCurrentDiscoverRequired struct{ FlowID id.FlowID }

func (e *ErrStatesCurrentDiscoverRequired) Error() string {
	return fmt.Sprintf("states current discover required for flow %q: no stored states_current file", e.FlowID)
}

// ErrStatesGoalDiscoverRequired is the goal-state counterpart.
type ErrStatesGoalDiscoverRequired struct{ FlowID id.FlowID }

func (e *ErrStatesGoalDiscoverRequired) Error() string {
	return fmt.Sprintf("states goal discover required for flow %q: no stored states_goal file", e.FlowID)
}

// ErrStatesCurrentOutOfSync is returned by EnsureCmd/CleanCmd when
// ApplyStoredStateSync is set and the stored current-states snapshot
// disagrees, for one or more items, with what was just freshly discovered.
type ErrStatesCurrentOutOfSync struct {
	FlowID                id.FlowID
	ItemsStateStoredStale []id.ItemID
}

func (e *ErrStatesCurrentOutOfSync) Error() string {
	return fmt.Sprintf("states current out of sync for flow %q: stored state is stale for item(s) %v",
		e.FlowID, e.ItemsStateStoredStale)
}

// ErrStatesGoalOutOfSync is the goal-state counterpart.
type ErrStatesGoalOutOfSync struct {
	FlowID                id.FlowID
	ItemsStateStoredStale []id.ItemID
}

func (e *ErrStatesGoalOutOfSync) Error() string {
	return fmt.Sprintf("states goal out of sync for flow %q: stored state is stale for item(s) %v",
		e.FlowID, e.ItemsStateStoredStale)
}

var lineColPattern = regexp.MustCompile(`at line (\d+) column (\d+)`)
var simpleLinePattern = regexp.MustCompile(`^yaml: line (\d+):`)

// translateYAMLError recovers (error_span, context_span) byte offsets from
// a yaml.v3 error's message and wraps it as a *DeserializeError.
func translateYAMLError(data []byte, err error) error {
	msg := err.Error()
	matches := lineColPattern.FindAllStringSubmatch(msg, -1)

	var errorSpan, contextSpan *int
	switch {
	case len(matches) >= 2:
		errorSpan = offsetFor(data, matches[0])
		contextSpan = offsetFor(data, matches[len(matches)-1])
	case len(matches) == 1:
		errorSpan = offsetFor(data, matches[0])
	default:
		if m := simpleLinePattern.FindStringSubmatch(msg); m != nil {
			line, convErr := strconv.Atoi(m[1])
			if convErr == nil {
				off := byteOffsetForLineCol(data, line, 1)
				errorSpan = &off
			}
		}
	}

	message := msg
	if idx := strings.Index(msg, " at "); idx >= 0 {
		message = msg[:idx]
	}

	return &DeserializeError{ErrorMessage: message, ErrorSpan: errorSpan, ContextSpan: contextSpan, Cause: err}
}

// offsetFor converts a [_, line, column] regex match into a byte offset.
func offsetFor(data []byte, match []string) *int {
	line, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	col, err := strconv.Atoi(match[2])
	if err != nil {
		col = 1
	}
	off := byteOffsetForLineCol(data, line, col)
	return &off
}

// byteOffsetForLineCol converts a 1-indexed (line, column) pair into a byte
// offset into data.
func byteOffsetForLineCol(data []byte, line, col int) int {
	offset := 0
	currentLine := 1
	for currentLine < line {
		idx := bytes.IndexByte(data[offset:], '\n')
		if idx < 0 {
			return len(data)
		}
		offset += idx + 1
		currentLine++
	}
	return offset + (col - 1)
}
