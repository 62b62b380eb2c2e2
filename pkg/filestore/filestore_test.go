package filestore

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UploadDownloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	info, err := store.Upload(context.Background(), bytes.NewReader([]byte("hello world")), "greeting.txt", "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, info.FileID)
	assert.Equal(t, "greeting.txt", info.Filename)
	assert.Equal(t, int64(len("hello world")), info.Size)
	assert.Equal(t, "user-1", info.UserID)

	rc, err := store.Download(context.Background(), info.FileID)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestStore_DownloadMissingFileFails(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	info, err := store.Upload(context.Background(), bytes.NewReader([]byte("data")), "f.txt", "user-1")
	require.NoError(t, err)

	require.NoError(t, store.Remove(context.Background(), info.FileID))
	_, statErr := os.Stat(store.path(info.FileID))
	assert.True(t, os.IsNotExist(statErr))

	// removing again must not error
	assert.NoError(t, store.Remove(context.Background(), info.FileID))
}

func TestNew_CreatesRootDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/attachments"
	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
