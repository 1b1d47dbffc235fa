// Package playback plays recorded artifacts through revocable URL handles.
package playback

import (
	"bytes"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"daisy-dictation-service/internal/observability/metrics"
	"daisy-dictation-service/internal/service/recording"
)

// Handle is a revocable reference to an artifact.
type Handle struct {
	ID  string
	URL string
}

// Registry maps live handles to artifacts and serves them over HTTP.
// Revoked handles answer 404.
type Registry struct {
	mu      sync.RWMutex
	baseURL string
	entries map[string]*recording.Artifact
	metrics *metrics.Metrics
}

// NewRegistry creates a registry whose handle URLs start with baseURL.
func NewRegistry(baseURL string) *Registry {
	return &Registry{
		baseURL: strings.TrimRight(baseURL, "/"),
		entries: make(map[string]*recording.Artifact),
		metrics: metrics.DefaultMetrics,
	}
}

// SetBaseURL changes the prefix of handles registered afterwards.
func (r *Registry) SetBaseURL(baseURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseURL = strings.TrimRight(baseURL, "/")
}

// Register creates a live handle for a.
func (r *Registry) Register(a *recording.Artifact) Handle {
	id := uuid.NewString()

	r.mu.Lock()
	r.entries[id] = a
	base := r.baseURL
	r.mu.Unlock()

	r.metrics.RecordHandleCreated()
	return Handle{ID: id, URL: base + "/" + id}
}

// Revoke invalidates a handle. It returns false if the handle was not live.
func (r *Registry) Revoke(id string) bool {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		r.metrics.RecordHandleRevoked()
	}
	return ok
}

// Live returns the number of live handles.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Lookup returns the artifact behind a live handle.
func (r *Registry) Lookup(id string) (*recording.Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.entries[id]
	return a, ok
}

// ServeHTTP serves GET /{id} with the artifact's MIME type.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	a, ok := r.Lookup(path.Base(req.URL.Path))
	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, req, "", a.CreatedAt, bytes.NewReader(a.Data))
}
