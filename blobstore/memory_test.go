package blobstore

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	src := []byte("run cycle")
	require.NoError(t, store.Put(ctx, "b/run.mdb", src))
	src[0] = 'X'

	w, err := store.Create(ctx, "a/walk.mdb")
	require.NoError(t, err)
	_, err = w.Write([]byte("walk cycle"))
	require.NoError(t, err)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/run.mdb"}, names)

	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), os.ErrClosed)

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/walk.mdb", "b/run.mdb"}, names)

	names, err = store.List(ctx, "b/")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/run.mdb"}, names)

	blob, err := store.Open(ctx, "b/run.mdb")
	require.NoError(t, err)
	defer blob.Close()

	all, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "run cycle", string(all))

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 4)
	require.NoError(t, err)
	assert.Equal(t, "cycle", string(buf[:n]))

	n, err = blob.ReadAt(ctx, buf, 7)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)

	rc, err := blob.ReadRange(ctx, 0, 3)
	require.NoError(t, err)
	head, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "run", string(head))

	require.NoError(t, store.Delete(ctx, "b/run.mdb"))
	_, err = store.Open(ctx, "b/run.mdb")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Abort(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	w, err := store.Create(ctx, "partial.mdb")
	require.NoError(t, err)
	_, err = w.Write([]byte("half"))
	require.NoError(t, err)
	require.NoError(t, w.(Aborter).Abort())

	_, err = store.Open(ctx, "partial.mdb")
	assert.ErrorIs(t, err, ErrNotFound)
}

// streamOnly hides the Mappable implementation of a blob.
type streamOnly struct{ Blob }

func TestReadAll_Stream(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "x", []byte("streamed bytes")))
	require.NoError(t, store.Put(ctx, "empty", nil))

	blob, err := store.Open(ctx, "x")
	require.NoError(t, err)

	all, err := ReadAll(ctx, streamOnly{blob})
	require.NoError(t, err)
	assert.Equal(t, "streamed bytes", string(all))

	empty, err := store.Open(ctx, "empty")
	require.NoError(t, err)
	all, err = ReadAll(ctx, streamOnly{empty})
	require.NoError(t, err)
	assert.Empty(t, all)
}
