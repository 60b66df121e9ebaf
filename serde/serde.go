// Package serde implements the state-store codec: deterministic encode and
// decode of a state store as an ordered mapping from item id to a tagged
// value, consulting a type registry for the concrete decode function per
// entry, plus byte-offset-preserving error reporting for YAML decode
// failures.
package serde

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/state"
)

// document is the on-disk shape: an ordered mapping from item id to its
// raw (still-encoded) state value, preserving the store's iteration order
// via yaml.v3's MapSlice-less but insertion-ordered *yaml.Node encoding.
type document struct {
	Items []documentItem
}

type documentItem struct {
	ItemID id.ItemID
	Raw    yaml.Node
}

// MarshalYAML implements yaml.Marshaler, emitting items in Items order
// rather than alphabetised map-key order.
func (d document) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, it := range d.Items {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: it.ItemID.String()}
		valNode := it.Raw
		node.Content = append(node.Content, keyNode, &valNode)
	}
	return node, nil
}

// UnmarshalYAML implements yaml.Unmarshaler, preserving file order.
func (d *document) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("state document: expected a mapping, got kind %d", node.Kind)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		d.Items = append(d.Items, documentItem{ItemID: id.ItemID(keyNode.Value), Raw: *valNode})
	}
	return nil
}

// Encode renders store as an ordered YAML mapping, using registry to
// encode each item's concrete state value.
func Encode(store *state.Store, registry *state.Registry) ([]byte, error) {
	doc := document{}
	err := store.Iter(func(itemID id.ItemID, v state.ErasedState) error {
		codec, ok := registry.Lookup(itemID)
		if !ok {
			return &state.ErrUnknownStateType{ItemID: itemID}
		}
		raw, err := codec.Encode(v)
		if err != nil {
			return fmt.Errorf("encode state for %s: %w", itemID, err)
		}
		var node yaml.Node
		if err := yaml.Unmarshal(raw, &node); err != nil {
			return fmt.Errorf("encode state for %s: re-parse: %w", itemID, err)
		}
		if len(node.Content) == 1 {
			doc.Items = append(doc.Items, documentItem{ItemID: itemID, Raw: *node.Content[0]})
		} else {
			doc.Items = append(doc.Items, documentItem{ItemID: itemID, Raw: node})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

// Decode parses data (as produced by Encode) back into a state store,
// consulting registry keyed by item id. Unknown ids fail with
// *state.ErrUnknownStateType.
func Decode(data []byte, registry *state.Registry) (*state.Store, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, translateYAMLError(data, err)
	}
	store := state.NewStore()
	for _, it := range doc.Items {
		codec, ok := registry.Lookup(it.ItemID)
		if !ok {
			return nil, &state.ErrUnknownStateType{ItemID: it.ItemID}
		}
		raw, err := yaml.Marshal(it.Raw)
		if err != nil {
			return nil, fmt.Errorf("decode state for %s: re-encode: %w", it.ItemID, err)
		}
		v, err := codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode state for %s: %w", it.ItemID, err)
		}
		store.Set(it.ItemID, v)
	}
	return store, nil
}
