package scribes

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daisy-dictation-service/internal/notify"
	"daisy-dictation-service/internal/service/storage"
	"daisy-dictation-service/internal/service/storage/local"
)

// failingRemove wraps a gateway and fails every Remove.
type failingRemove struct {
	storage.Gateway
}

func (f failingRemove) Remove(context.Context, []string) error {
	return errors.New("permission denied")
}

func newTestLibrary(t *testing.T) (*Library, *local.Gateway) {
	t.Helper()
	g, err := local.OpenInMemory("scribes")
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return New(g, ""), g
}

func seed(t *testing.T, g storage.Gateway, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, g.Upload(context.Background(), n, []byte("content of "+n), storage.UploadOptions{}))
	}
}

func TestLibrary_ListFiltersAndSearches(t *testing.T) {
	lib, g := newTestLibrary(t)
	seed(t, g, "Cardiology-note.txt", "image.png", "pediatrics.txt", "CARDIO-followup.txt")

	all, err := lib.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3, "only .txt files are listed")

	hits, err := lib.List(context.Background(), "cardio")
	require.NoError(t, err)
	var names []string
	for _, e := range hits {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"Cardiology-note.txt", "CARDIO-followup.txt"}, names)
}

func TestLibrary_ListLimit(t *testing.T) {
	lib, g := newTestLibrary(t)
	for i := 0; i < ListLimit+5; i++ {
		seed(t, g, fmt.Sprintf("note-%03d.txt", i))
	}

	entries, err := lib.List(context.Background(), "")

	require.NoError(t, err)
	assert.Len(t, entries, ListLimit)
}

func TestLibrary_OpenAndSave(t *testing.T) {
	lib, g := newTestLibrary(t)
	ctx := context.Background()
	seed(t, g, "note.txt")

	text, err := lib.Open(ctx, "note.txt")
	require.NoError(t, err)
	assert.Equal(t, "content of note.txt", text)

	out, err := lib.Save(ctx, "note.txt", "edited")
	require.NoError(t, err)
	assert.Equal(t, `File "note.txt" saved successfully!`, out.Message)
	assert.Equal(t, notify.LevelSuccess, out.Level)

	text, err = lib.Open(ctx, "note.txt")
	require.NoError(t, err)
	assert.Equal(t, "edited", text)

	entries, err := g.List(ctx, "", storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ContentType, entries[0].ContentType)
	assert.Equal(t, DefaultCacheControl, entries[0].CacheControl)
}

func TestLibrary_SaveNeverCreates(t *testing.T) {
	lib, _ := newTestLibrary(t)

	_, err := lib.Save(context.Background(), "missing.txt", "x")

	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLibrary_OpenInvalid(t *testing.T) {
	lib, _ := newTestLibrary(t)

	_, err := lib.Open(context.Background(), "")
	assert.EqualError(t, err, "No filename provided.")

	_, err = lib.Open(context.Background(), "../etc/passwd")
	assert.EqualError(t, err, "Invalid filename provided.")
}

func TestLibrary_SaveAs(t *testing.T) {
	tests := []struct {
		name      string
		newName   string
		wantName  string
		wantErr   string
		wantLevel notify.Level
	}{
		{name: "appends extension", newName: "  summary ", wantName: "summary.txt"},
		{name: "keeps extension", newName: "summary.txt", wantName: "summary.txt"},
		{name: "empty cancels", newName: "   ", wantErr: "Save As New cancelled.", wantLevel: notify.LevelWarning},
		{name: "same as original", newName: "note", wantErr: "New filename cannot be the same as the original.", wantLevel: notify.LevelError},
		{name: "duplicate", newName: "taken.txt", wantErr: `File "taken.txt" already exists. Please choose a different name.`, wantLevel: notify.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib, g := newTestLibrary(t)
			seed(t, g, "note.txt", "taken.txt")

			out, err := lib.SaveAs(context.Background(), "note.txt", tt.newName, "body")

			if tt.wantErr != "" {
				var lerr *Error
				require.ErrorAs(t, err, &lerr)
				assert.Equal(t, tt.wantErr, lerr.Message)
				assert.Equal(t, tt.wantLevel, lerr.Level)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, out.Name)
			assert.Equal(t, fmt.Sprintf("File saved as %q successfully!", tt.wantName), out.Message)

			text, err := lib.Open(context.Background(), tt.wantName)
			require.NoError(t, err)
			assert.Equal(t, "body", text)
		})
	}
}

func TestLibrary_Rename(t *testing.T) {
	lib, g := newTestLibrary(t)
	ctx := context.Background()
	seed(t, g, "note.txt", "taken.txt")

	_, err := lib.Rename(ctx, "note.txt", "note")
	assert.EqualError(t, err, "Rename cancelled or filename unchanged.")

	_, err = lib.Rename(ctx, "note.txt", "")
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = lib.Rename(ctx, "note.txt", "taken")
	assert.EqualError(t, err, `File "taken.txt" already exists. Cannot rename.`)

	out, err := lib.Rename(ctx, "note.txt", "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", out.Name)
	assert.Equal(t, `File renamed to "renamed.txt" successfully!`, out.Message)

	_, err = lib.Open(ctx, "note.txt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLibrary_RenamePartial(t *testing.T) {
	g, err := local.OpenInMemory("scribes")
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	seed(t, g, "note.txt")
	lib := New(failingRemove{g}, "")

	out, err := lib.Rename(context.Background(), "note.txt", "moved.txt")

	require.NoError(t, err)
	assert.Equal(t, notify.LevelWarning, out.Level)
	assert.Equal(t, `Renamed to "moved.txt", but failed to remove original file. Please check storage.`, out.Message)
}

func TestLibrary_CreateAndDelete(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()

	out, err := lib.Create(ctx, "visit-2025-04-06", "S: ...")
	require.NoError(t, err)
	assert.Equal(t, "visit-2025-04-06.txt", out.Name)

	_, err = lib.Create(ctx, "visit-2025-04-06.txt", "again")
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	_, err = lib.Delete(ctx, out.Name)
	require.NoError(t, err)
	entries, err := lib.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSuggestCopyName(t *testing.T) {
	assert.Equal(t, "note_copy.txt", SuggestCopyName("note.txt"))
	assert.Equal(t, "note_copy.txt", SuggestCopyName("note"))
}
