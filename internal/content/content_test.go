package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
)

func TestHash(t *testing.T) {
	a := Hash([]byte("motion for summary judgment"))
	b := Hash([]byte("motion for summary judgment"))
	c := Hash([]byte("motion for summary judgement"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestInMemory_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	data := []byte("form body bytes")
	handle, err := s.Put(ctx, data)
	require.NoError(t, err)

	got, err := s.Get(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Returned slice is a copy.
	got[0] = 'X'
	again, err := s.Get(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestInMemory_ContentAddressed(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	h1, err := s.Put(ctx, []byte("identical"))
	require.NoError(t, err)
	h2, err := s.Put(ctx, []byte("identical"))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, s.Len())
}

func TestInMemory_GetMissing(t *testing.T) {
	_, err := NewInMemory().Get(context.Background(), Handle("mem://missing"))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
