// Package state implements the heterogeneous state store: an ordered
// per-item map of erased state values, together with a type registry used
// to encode and decode each item's concrete state type.
package state

import (
	"fmt"

	"github.com/hashmap-kz/katomik-flow/id"
)

// ErasedState is a state value whose concrete type has been erased; the
// registry is required to interpret it.
type ErasedState = any

// Codec encodes and decodes the concrete state type of a single item.
type Codec struct {
	Encode func(ErasedState) ([]byte, error)
	Decode func([]byte) (ErasedState, error)
}

// Registry associates each item id with the codec for its state type. It is
// populated once at flow setup time, from each item's declared State type.
type Registry struct {
	codecs map[id.ItemID]Codec
}

// NewRegistry returns an empty type registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[id.ItemID]Codec)}
}

// Register associates itemID with codec, overwriting any previous
// registration.
func (r *Registry) Register(itemID id.ItemID, codec Codec) {
	r.codecs[itemID] = codec
}

// Lookup returns the codec registered for itemID.
func (r *Registry) Lookup(itemID id.ItemID) (Codec, bool) {
	c, ok := r.codecs[itemID]
	return c, ok
}

// ErrUnknownStateType is returned when decoding encounters an item id with
// no registered codec.
type ErrUnknownStateType struct {
	ItemID id.ItemID
}

func (e *ErrUnknownStateType) Error() string {
	return fmt.Sprintf("unknown state type for item %q", e.ItemID)
}
