package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMedium_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()

	_, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Set(ctx, "k", []byte("v1")))
	v, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, m.Remove(ctx, "k"))
	_, found, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	// removing a missing key is fine
	assert.NoError(t, m.Remove(ctx, "k"))
}

func TestMemoryMedium_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()

	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in))
	in[0] = 'X'

	out, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)

	out[1] = 'Y'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryMedium_ListKeysSortedByPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()

	require.NoError(t, m.Apply(ctx,
		PutOp("b:2", nil),
		PutOp("a:1", nil),
		PutOp("b:1", nil),
		PutOp("bb", nil),
	))

	keys, err := m.ListKeys(ctx, "b:")
	require.NoError(t, err)
	assert.Equal(t, []string{"b:1", "b:2"}, keys)

	all, err := m.ListKeys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:1", "b:2", "bb"}, all)
}

func TestMemoryMedium_ApplyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()

	err := m.Apply(ctx, PutOp("a", []byte("1")), PutOp("", []byte("2")))
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, found, _ := m.Get(ctx, "a")
	assert.False(t, found)
}

func TestMemoryMedium_ClosedIsUnavailable(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium()
	require.NoError(t, m.Close())

	_, _, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, m.Set(ctx, "a", nil), ErrStorageUnavailable)
	_, err = m.ListKeys(ctx, "")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
