package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daisy-dictation-service/internal/service/storage"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := OpenInMemory("scribes")
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })

	clock := time.Date(2025, 4, 6, 21, 0, 0, 0, time.UTC)
	g.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return g
}

func TestGateway_UploadDownload(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	err := g.Upload(ctx, "note.txt", []byte("hello"), storage.UploadOptions{ContentType: "text/plain;charset=UTF-8", CacheControl: "3600"})
	require.NoError(t, err)

	data, err := g.Download(ctx, "note.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	err = g.Upload(ctx, "note.txt", []byte("again"), storage.UploadOptions{})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	require.NoError(t, g.Upload(ctx, "note.txt", []byte("upsert"), storage.UploadOptions{Upsert: true}))
	data, err = g.Download(ctx, "note.txt")
	require.NoError(t, err)
	assert.Equal(t, "upsert", string(data))
}

func TestGateway_DownloadMissing(t *testing.T) {
	g := newTestGateway(t)

	_, err := g.Download(context.Background(), "missing.txt")

	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGateway_Update(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	err := g.Update(ctx, "missing.txt", []byte("x"), storage.UploadOptions{})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, g.Upload(ctx, "note.txt", []byte("v1"), storage.UploadOptions{ContentType: "text/plain"}))
	require.NoError(t, g.Update(ctx, "note.txt", []byte("v2"), storage.UploadOptions{}))

	entries, err := g.List(ctx, "", storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Size)
	assert.Equal(t, "text/plain", entries[0].ContentType, "update keeps content type when unset")
	assert.True(t, entries[0].UpdatedAt.After(entries[0].CreatedAt))
}

func TestGateway_CopyAndRename(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, g.Upload(ctx, "a.txt", []byte("body"), storage.UploadOptions{}))
	require.NoError(t, g.Upload(ctx, "taken.txt", []byte("other"), storage.UploadOptions{}))

	assert.ErrorIs(t, g.Copy(ctx, "a.txt", "taken.txt"), storage.ErrAlreadyExists)
	assert.ErrorIs(t, g.Copy(ctx, "missing.txt", "b.txt"), storage.ErrNotFound)

	res, err := storage.Rename(ctx, g, "a.txt", "b.txt")
	require.NoError(t, err)
	assert.False(t, res.Partial)

	_, err = g.Download(ctx, "a.txt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	data, err := g.Download(ctx, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "body", string(data))
}

func TestGateway_RemoveIgnoresMissing(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, g.Upload(ctx, "a.txt", []byte("x"), storage.UploadOptions{}))
	require.NoError(t, g.Remove(ctx, []string{"a.txt", "missing.txt"}))

	entries, err := g.List(ctx, "", storage.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGateway_ListDirectChildrenSorted(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	for _, name := range []string{"first.txt", "second.txt", "nested/inner.txt", "third.txt"} {
		require.NoError(t, g.Upload(ctx, name, []byte(name), storage.UploadOptions{}))
	}

	entries, err := g.List(ctx, "", storage.ListOptions{
		Limit:  100,
		SortBy: storage.SortBy{Column: storage.SortByCreatedAt, Order: "desc"},
	})
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"third.txt", "second.txt", "first.txt"}, names)

	nested, err := g.List(ctx, "nested", storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, "inner.txt", nested[0].Name)
}

func TestGateway_InvalidKeyAndClosed(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	assert.ErrorIs(t, g.Upload(ctx, "../x.txt", nil, storage.UploadOptions{}), storage.ErrInvalidKey)

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	_, err := g.Download(ctx, "a.txt")
	assert.Error(t, err)
}
