// Package storage defines the object storage gateway used for generated
// documents, and the copy-then-remove rename built on it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrAlreadyExists is returned when a create would overwrite an object.
	ErrAlreadyExists = errors.New("object already exists")
	// ErrInvalidKey is returned for empty or unsafe object keys.
	ErrInvalidKey = errors.New("invalid object key")
)

// Sort columns accepted by List.
const (
	SortByName      = "name"
	SortByCreatedAt = "created_at"
	SortByUpdatedAt = "updated_at"
)

// Entry describes a stored object.
type Entry struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType,omitempty"`
	CacheControl string    `json:"cacheControl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SortBy orders a listing. Order is "asc" or "desc".
type SortBy struct {
	Column string
	Order  string
}

// ListOptions controls a listing. A zero Limit means no limit.
type ListOptions struct {
	Limit  int
	Offset int
	SortBy SortBy
	Search string
}

// UploadOptions controls object writes.
type UploadOptions struct {
	Upsert       bool
	ContentType  string
	CacheControl string
}

// Gateway is a bucket-scoped object store.
type Gateway interface {
	// List returns the objects directly under prefix.
	List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error)
	// Download returns the object body.
	Download(ctx context.Context, key string) ([]byte, error)
	// Upload creates an object. Without Upsert it fails with ErrAlreadyExists.
	Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error
	// Update overwrites an existing object. It fails with ErrNotFound.
	Update(ctx context.Context, key string, data []byte, opts UploadOptions) error
	// Copy duplicates src to dst. It never overwrites dst.
	Copy(ctx context.Context, src, dst string) error
	// Remove deletes keys. Missing keys are ignored.
	Remove(ctx context.Context, keys []string) error
}

// RenameResult reports a rename. Partial is set when the copy succeeded but
// the original could not be removed.
type RenameResult struct {
	Partial   bool
	RemoveErr error
}

// Rename moves src to dst by copying and then removing src. A failed copy
// returns an error and leaves src untouched. A failed remove is not an
// error; it is reported through RenameResult.
func Rename(ctx context.Context, g Gateway, src, dst string) (RenameResult, error) {
	if src == dst {
		return RenameResult{}, fmt.Errorf("%w: source and destination are the same", ErrInvalidKey)
	}
	if err := g.Copy(ctx, src, dst); err != nil {
		return RenameResult{}, fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := g.Remove(ctx, []string{src}); err != nil {
		return RenameResult{Partial: true, RemoveErr: err}, nil
	}
	return RenameResult{}, nil
}

// ValidateKey rejects empty keys and path traversal.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Apply filters, sorts and pages entries the way List does. Backends
// without native sorting use it after fetching.
func Apply(entries []Entry, opts ListOptions) []Entry {
	out := make([]Entry, 0, len(entries))
	search := strings.ToLower(opts.Search)
	for _, e := range entries {
		if search != "" && !strings.Contains(strings.ToLower(e.Name), search) {
			continue
		}
		out = append(out, e)
	}

	desc := strings.EqualFold(opts.SortBy.Order, "desc")
	less := func(i, j int) bool {
		a, b := out[i], out[j]
		var cmp int
		switch opts.SortBy.Column {
		case SortByCreatedAt:
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		case SortByUpdatedAt:
			cmp = a.UpdatedAt.Compare(b.UpdatedAt)
		}
		if cmp == 0 {
			cmp = strings.Compare(a.Name, b.Name)
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	}
	sort.SliceStable(out, less)

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Entry{}
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}
