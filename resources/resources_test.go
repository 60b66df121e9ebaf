package resources_test

import (
	"testing"

	"github.com/hashmap-kz/katomik-flow/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{ N int }

func TestInsertAndBorrow(t *testing.T) {
	m := resources.New()
	resources.Insert(m, widget{N: 1})

	ref, err := resources.TryBorrow[widget](m)
	require.NoError(t, err)
	assert.Equal(t, 1, ref.Get().N)
	ref.Release()
}

func TestBorrowMissingValue(t *testing.T) {
	m := resources.New()
	_, err := resources.TryBorrow[widget](m)
	require.Error(t, err)
	var notFound *resources.ErrValueNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestSharedBorrowsDoNotConflict(t *testing.T) {
	m := resources.New()
	resources.Insert(m, widget{N: 1})

	ref1, err := resources.TryBorrow[widget](m)
	require.NoError(t, err)
	ref2, err := resources.TryBorrow[widget](m)
	require.NoError(t, err)
	ref1.Release()
	ref2.Release()
}

func TestExclusiveBorrowConflictsWithShared(t *testing.T) {
	m := resources.New()
	resources.Insert(m, widget{N: 1})

	ref, err := resources.TryBorrow[widget](m)
	require.NoError(t, err)
	defer ref.Release()

	_, err = resources.TryBorrowMut[widget](m)
	require.Error(t, err)
	var conflict *resources.ErrBorrowConflictImm
	require.ErrorAs(t, err, &conflict)
}

func TestSharedBorrowConflictsWithExclusive(t *testing.T) {
	m := resources.New()
	resources.Insert(m, widget{N: 1})

	refMut, err := resources.TryBorrowMut[widget](m)
	require.NoError(t, err)
	defer refMut.Release()

	_, err = resources.TryBorrow[widget](m)
	require.Error(t, err)
	var conflict *resources.ErrBorrowConflictMut
	require.ErrorAs(t, err, &conflict)
}

func TestExclusiveBorrowWriteBack(t *testing.T) {
	m := resources.New()
	resources.Insert(m, widget{N: 1})

	refMut, err := resources.TryBorrowMut[widget](m)
	require.NoError(t, err)
	refMut.Get().N = 42
	refMut.Release()

	ref, err := resources.TryBorrow[widget](m)
	require.NoError(t, err)
	assert.Equal(t, 42, ref.Get().N)
	ref.Release()
}

func TestRemove(t *testing.T) {
	m := resources.New()
	resources.Insert(m, widget{N: 7})

	v, ok := resources.Remove[widget](m)
	require.True(t, ok)
	assert.Equal(t, 7, v.N)

	_, ok = resources.Remove[widget](m)
	assert.False(t, ok)
}
