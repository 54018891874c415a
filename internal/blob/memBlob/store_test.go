package memBlob_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"drive-service/internal/blob/memBlob"
	"drive-service/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	s := memBlob.New()

	h, err := s.Put(ctx, strings.NewReader("hello world"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	rc, err := s.Open(ctx, h)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.Delete(ctx, h))
	require.NoError(t, s.Delete(ctx, h))
	assert.Equal(t, 0, s.Len())

	_, err = s.Open(ctx, h)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_PutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := memBlob.New()
	_, err := s.Put(ctx, strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Len())
}
