package localblob

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{DocRoot: t.TempDir()})
	require.NoError(t, err)
	return b
}

func TestUploadDownloadRemovalRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	up := b.NewUpload("chunk0")
	require.NoError(t, up.Prepare(ctx))
	require.NoError(t, up.Write(ctx, []byte("hello ")))
	require.NoError(t, up.Write(ctx, []byte("world")))
	entry, err := up.Commit(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 11, entry.Bytes)

	down := b.NewDownload("chunk0", 4)
	require.NoError(t, down.Prepare(ctx))
	var got []byte
	for {
		chunk, err := down.Read(ctx)
		require.NoError(t, err)
		if chunk == nil {
			break
		}
		got = append(got, chunk...)
	}
	require.NoError(t, down.Commit(ctx))
	assert.Equal(t, "hello world", string(got))

	rem := b.NewRemoval("chunk0")
	require.NoError(t, rem.Prepare(ctx))
	require.NoError(t, rem.Commit(ctx))

	down2 := b.NewDownload("chunk0", 4)
	err = down2.Prepare(ctx)
	assert.Error(t, err)
}

func TestUploadPrepareFailsAlreadyExists(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	up := b.NewUpload("chunk0")
	require.NoError(t, up.Prepare(ctx))
	require.NoError(t, up.Write(ctx, []byte("data")))
	_, err := up.Commit(ctx)
	require.NoError(t, err)

	up2 := b.NewUpload("chunk0")
	err = up2.Prepare(ctx)
	assert.Error(t, err)
}

func TestUploadAbortRemovesTempFile(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	up := b.NewUpload("chunk0")
	require.NoError(t, up.Prepare(ctx))
	require.NoError(t, up.Write(ctx, []byte("partial")))
	require.NoError(t, up.Abort(ctx))

	_, statErr := os.Stat(b.tempPath("chunk0"))
	assert.True(t, os.IsNotExist(statErr))

	down := b.NewDownload("chunk0", 4)
	err := down.Prepare(ctx)
	assert.Error(t, err)
}

func TestRemovalPrepareFailsNotFound(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	rem := b.NewRemoval("missing")
	err := rem.Prepare(ctx)
	assert.Error(t, err)
}
