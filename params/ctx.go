// Package params implements lazy parameter specifications that compose
// literal values, resource-map lookups, in-memory slots, and mapping
// functions over peer items' states, plus the nested resolution-context
// formatter used in resolution error diagnostics.
package params

import (
	"strings"

	"github.com/hashmap-kz/katomik-flow/id"
)

// Mode records whether a resolution is performed for an item's current or
// goal state. It is carried in ResolutionCtx; the specs in this package do
// not consult it, so Stored, InMemory and the MappingFn variants read the
// same resource-map entry in either mode.
type Mode int

const (
	// Current resolves against the current-states store.
	Current Mode = iota
	// Goal resolves against the goal-states store.
	Goal
)

// FieldNameAndType names one frame of a resolution chain: the field being
// resolved and the Go type name of its value.
type FieldNameAndType struct {
	FieldName string
	TypeName  string
}

// ResolutionCtx carries the resolving item's identity and a stack of
// field-name/type-name frames, used to format nested resolution errors the
// way `params_type { outer: Outer { inner: Inner, .. }, .. }` would read.
type ResolutionCtx struct {
	Mode           Mode
	ItemID         id.ItemID
	ParamsTypeName string
	chain          []FieldNameAndType
}

// NewResolutionCtx starts a resolution context for itemID resolving a
// value of paramsTypeName, in the given mode.
func NewResolutionCtx(mode Mode, itemID id.ItemID, paramsTypeName string) *ResolutionCtx {
	return &ResolutionCtx{Mode: mode, ItemID: itemID, ParamsTypeName: paramsTypeName}
}

// Push enters a nested field during resolution.
func (c *ResolutionCtx) Push(f FieldNameAndType) { c.chain = append(c.chain, f) }

// Pop leaves the most recently entered field.
func (c *ResolutionCtx) Pop() {
	if len(c.chain) > 0 {
		c.chain = c.chain[:len(c.chain)-1]
	}
}

// Chain returns a copy of the current resolution chain.
func (c *ResolutionCtx) Chain() []FieldNameAndType {
	out := make([]FieldNameAndType, len(c.chain))
	copy(out, c.chain)
	return out
}

// String renders the nested-brace trace used by resolution error messages.
func (c *ResolutionCtx) String() string {
	var b strings.Builder
	b.WriteString(c.ParamsTypeName)
	b.WriteString(" { ")
	if len(c.chain) == 0 {
		b.WriteString("..")
		b.WriteString(" }")
		return b.String()
	}
	for i, f := range c.chain {
		if i < len(c.chain)-1 {
			b.WriteString(f.FieldName)
			b.WriteString(": ")
			b.WriteString(f.TypeName)
			b.WriteString(" { ")
		} else {
			b.WriteString(f.FieldName)
			b.WriteString(": ")
			b.WriteString(f.TypeName)
			b.WriteString(", ..")
		}
	}
	for i := 0; i < len(c.chain)-1; i++ {
		b.WriteString(" }, ..")
	}
	b.WriteString(" }")
	return b.String()
}
