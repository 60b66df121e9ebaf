package serde_test

import (
	"encoding/json"
	"testing"

	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/serde"
	"github.com/hashmap-kz/katomik-flow/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byteSliceCodec() state.Codec {
	return state.Codec{
		Encode: func(v state.ErasedState) ([]byte, error) {
			return json.Marshal(v)
		},
		Decode: func(b []byte) (state.ErasedState, error) {
			var out []byte
			if err := json.Unmarshal(b, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

func TestEncodeDecodeRoundTripPreservesOrder(t *testing.T) {
	store := state.NewStore()
	registry := state.NewRegistry()

	b, a, c := id.MustNew("b"), id.MustNew("a"), id.MustNew("c")
	for _, i := range []id.ItemID{b, a, c} {
		registry.Register(i, byteSliceCodec())
	}
	store.Set(b, []byte{1, 2})
	store.Set(a, []byte{3})
	store.Set(c, []byte{})

	encoded, err := serde.Encode(store, registry)
	require.NoError(t, err)

	decoded, err := serde.Decode(encoded, registry)
	require.NoError(t, err)

	assert.Equal(t, store.Order(), decoded.Order())
	for _, i := range store.Order() {
		want, _ := store.Get(i)
		got, _ := decoded.Get(i)
		assert.Equal(t, want, got)
	}
}

func TestDecodeUnknownItemFails(t *testing.T) {
	registry := state.NewRegistry()
	_, err := serde.Decode([]byte("ghost: 1\n"), registry)
	require.Error(t, err)
	var unknown *state.ErrUnknownStateType
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, id.ItemID("ghost"), unknown.ItemID)
}

func TestDecodeMalformedYAMLIsDeserializeError(t *testing.T) {
	registry := state.NewRegistry()
	_, err := serde.Decode([]byte("not: [valid\n"), registry)
	require.Error(t, err)
	var deserializeErr *serde.DeserializeError
	require.ErrorAs(t, err, &deserializeErr)
	assert.NotEmpty(t, deserializeErr.ErrorMessage)
}
