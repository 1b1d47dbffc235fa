// Package scribes manages the library of generated clinical documents kept
// as plain-text objects in the scribes bucket.
package scribes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"daisy-dictation-service/internal/notify"
	"daisy-dictation-service/internal/observability/logging"
	"daisy-dictation-service/internal/service/storage"
)

const (
	// Extension is the only file type the library shows and writes.
	Extension = ".txt"
	// ContentType is stored on every written document.
	ContentType = "text/plain;charset=UTF-8"
	// DefaultCacheControl is the cache lifetime in seconds.
	DefaultCacheControl = "3600"
	// ListLimit caps a listing before the extension filter runs.
	ListLimit = 100
)

var (
	// ErrCancelled is returned when a name is empty or unchanged.
	ErrCancelled = errors.New("cancelled")
	// ErrSameName is returned when a copy target equals its source.
	ErrSameName = errors.New("same name")
)

// Error is a library failure carrying the message shown to the user.
type Error struct {
	Level   notify.Level
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// Notification converts the error for display.
func (e *Error) Notification() notify.Notification {
	return notify.New(e.Level, e.Message)
}

// Outcome is a successful write.
type Outcome struct {
	Name    string
	Level   notify.Level
	Message string
}

// Notification converts the outcome for display.
func (o Outcome) Notification() notify.Notification {
	return notify.New(o.Level, o.Message)
}

// Library wraps a storage gateway with the document rules.
type Library struct {
	store        storage.Gateway
	cacheControl string
	log          zerolog.Logger
}

// New creates a library. An empty cacheControl uses DefaultCacheControl.
func New(store storage.Gateway, cacheControl string) *Library {
	if cacheControl == "" {
		cacheControl = DefaultCacheControl
	}
	return &Library{
		store:        store,
		cacheControl: cacheControl,
		log:          logging.WithComponent("scribes"),
	}
}

// List returns up to ListLimit documents, newest first, whose names contain
// search case-insensitively.
func (l *Library) List(ctx context.Context, search string) ([]storage.Entry, error) {
	entries, err := l.store.List(ctx, "", storage.ListOptions{
		Limit:  ListLimit,
		SortBy: storage.SortBy{Column: storage.SortByCreatedAt, Order: "desc"},
	})
	if err != nil {
		return nil, l.fail(err, "Failed to load files: %v", err)
	}

	needle := strings.ToLower(search)
	out := make([]storage.Entry, 0, len(entries))
	for _, e := range entries {
		if !strings.HasSuffix(e.Name, Extension) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(e.Name), needle) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Open returns the document text.
func (l *Library) Open(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", &Error{Level: notify.LevelError, Message: "No filename provided.", Err: ErrCancelled}
	}
	if err := storage.ValidateKey(name); err != nil {
		return "", &Error{Level: notify.LevelError, Message: "Invalid filename provided.", Err: err}
	}
	data, err := l.store.Download(ctx, name)
	if err != nil {
		return "", l.fail(err, "Failed to load file content: %v", err)
	}
	return string(data), nil
}

// Save overwrites an existing document.
func (l *Library) Save(ctx context.Context, name, content string) (Outcome, error) {
	if err := l.store.Update(ctx, name, []byte(content), l.uploadOptions(false)); err != nil {
		return Outcome{}, l.fail(err, "Failed to save file: %v", err)
	}
	l.log.Info().Str("name", name).Int("bytes", len(content)).Msg("Document saved")
	return Outcome{
		Name:    name,
		Level:   notify.LevelSuccess,
		Message: fmt.Sprintf("File %q saved successfully!", name),
	}, nil
}

// SaveAs writes content under a new name, never overwriting.
func (l *Library) SaveAs(ctx context.Context, original, newName, content string) (Outcome, error) {
	name, ok := Normalize(newName)
	if !ok {
		return Outcome{}, &Error{Level: notify.LevelWarning, Message: "Save As New cancelled.", Err: ErrCancelled}
	}
	if name == original {
		return Outcome{}, &Error{Level: notify.LevelError, Message: "New filename cannot be the same as the original.", Err: ErrSameName}
	}

	err := l.store.Upload(ctx, name, []byte(content), l.uploadOptions(false))
	if errors.Is(err, storage.ErrAlreadyExists) {
		return Outcome{}, l.fail(err, "File %q already exists. Please choose a different name.", name)
	}
	if err != nil {
		return Outcome{}, l.fail(err, "Failed to save as new file: %v", err)
	}
	l.log.Info().Str("original", original).Str("name", name).Msg("Document saved as new")
	return Outcome{
		Name:    name,
		Level:   notify.LevelSuccess,
		Message: fmt.Sprintf("File saved as %q successfully!", name),
	}, nil
}

// Rename moves a document by copy then remove. When the remove fails the
// rename still succeeds with a warning.
func (l *Library) Rename(ctx context.Context, original, newName string) (Outcome, error) {
	name, ok := Normalize(newName)
	if !ok || name == original {
		return Outcome{}, &Error{Level: notify.LevelWarning, Message: "Rename cancelled or filename unchanged.", Err: ErrCancelled}
	}

	res, err := storage.Rename(ctx, l.store, original, name)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return Outcome{}, l.fail(err, "File %q already exists. Cannot rename.", name)
	}
	if err != nil {
		return Outcome{}, l.fail(err, "Failed to rename file: %v", err)
	}
	if res.Partial {
		l.log.Warn().Err(res.RemoveErr).Str("original", original).Str("name", name).Msg("Renamed but original not removed")
		return Outcome{
			Name:    name,
			Level:   notify.LevelWarning,
			Message: fmt.Sprintf("Renamed to %q, but failed to remove original file. Please check storage.", name),
		}, nil
	}
	l.log.Info().Str("original", original).Str("name", name).Msg("Document renamed")
	return Outcome{
		Name:    name,
		Level:   notify.LevelSuccess,
		Message: fmt.Sprintf("File renamed to %q successfully!", name),
	}, nil
}

// Delete removes a document.
func (l *Library) Delete(ctx context.Context, name string) (Outcome, error) {
	if err := storage.ValidateKey(name); err != nil {
		return Outcome{}, &Error{Level: notify.LevelError, Message: "Invalid filename provided.", Err: err}
	}
	if err := l.store.Remove(ctx, []string{name}); err != nil {
		return Outcome{}, l.fail(err, "Failed to delete file: %v", err)
	}
	return Outcome{
		Name:    name,
		Level:   notify.LevelSuccess,
		Message: fmt.Sprintf("File %q deleted successfully!", name),
	}, nil
}

// Create stores a newly generated document. The name gets the extension
// when missing and an existing document is never replaced.
func (l *Library) Create(ctx context.Context, name, content string) (Outcome, error) {
	n, ok := Normalize(name)
	if !ok {
		return Outcome{}, &Error{Level: notify.LevelError, Message: "No filename provided.", Err: ErrCancelled}
	}
	err := l.store.Upload(ctx, n, []byte(content), l.uploadOptions(false))
	if errors.Is(err, storage.ErrAlreadyExists) {
		return Outcome{}, l.fail(err, "File %q already exists. Please choose a different name.", n)
	}
	if err != nil {
		return Outcome{}, l.fail(err, "Failed to save file: %v", err)
	}
	return Outcome{
		Name:    n,
		Level:   notify.LevelSuccess,
		Message: fmt.Sprintf("File %q saved successfully!", n),
	}, nil
}

// Normalize trims name and appends the extension when missing. It reports
// false for an empty name.
func Normalize(name string) (string, bool) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", false
	}
	if !strings.HasSuffix(n, Extension) {
		n += Extension
	}
	return n, true
}

// SuggestCopyName returns the default name offered for a copy.
func SuggestCopyName(name string) string {
	return strings.Replace(name, Extension, "", 1) + "_copy" + Extension
}

func (l *Library) uploadOptions(upsert bool) storage.UploadOptions {
	return storage.UploadOptions{
		Upsert:       upsert,
		ContentType:  ContentType,
		CacheControl: l.cacheControl,
	}
}

func (l *Library) fail(err error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	l.log.Warn().Err(err).Msg(msg)
	return &Error{Level: notify.LevelError, Message: msg, Err: err}
}
