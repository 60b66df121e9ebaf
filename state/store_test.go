package state_test

import (
	"testing"

	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreIterationOrderMatchesInsertion(t *testing.T) {
	s := state.NewStore()
	a, b, c := id.MustNew("a"), id.MustNew("b"), id.MustNew("c")
	s.Set(b, 2)
	s.Set(a, 1)
	s.Set(c, 3)
	// Re-setting an existing id must not move it in iteration order.
	s.Set(b, 20)

	var order []id.ItemID
	err := s.Iter(func(i id.ItemID, _ state.ErasedState) error {
		order = append(order, i)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []id.ItemID{b, a, c}, order)

	v, ok := s.Get(b)
	require.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestStoreDelete(t *testing.T) {
	s := state.NewStore()
	a := id.MustNew("a")
	s.Set(a, 1)
	s.Delete(a)
	assert.Equal(t, 0, s.Len())
	_, ok := s.Get(a)
	assert.False(t, ok)
}

func TestRegistryLookup(t *testing.T) {
	r := state.NewRegistry()
	a := id.MustNew("a")
	r.Register(a, state.Codec{
		Encode: func(v state.ErasedState) ([]byte, error) { return []byte("x"), nil },
		Decode: func(b []byte) (state.ErasedState, error) { return string(b), nil },
	})

	codec, ok := r.Lookup(a)
	require.True(t, ok)
	encoded, err := codec.Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), encoded)

	_, ok = r.Lookup(id.MustNew("unknown"))
	assert.False(t, ok)
}
