// Package playback provides the media element and the object URL registry
// that lets recordings be played without leaving the process.
package playback

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/antoniostano/voicedesk/internal/media"
	"github.com/antoniostano/voicedesk/internal/observability"
)

const objectURLScheme = "blob:"

// Registry maps object URLs to in-memory blobs.
type Registry struct {
	metrics *observability.Metrics

	mu    sync.RWMutex
	blobs map[string]media.Blob
}

func NewRegistry(metrics *observability.Metrics) *Registry {
	return &Registry{metrics: metrics, blobs: make(map[string]media.Blob)}
}

// Create registers b and returns a new "blob:<uuid>" URL for it.
func (r *Registry) Create(b media.Blob) string {
	url := objectURLScheme + uuid.NewString()
	r.mu.Lock()
	r.blobs[url] = b
	live := len(r.blobs)
	r.mu.Unlock()
	r.metrics.SetLiveObjectURLs(live)
	return url
}

// Revoke releases url. Unknown URLs are ignored.
func (r *Registry) Revoke(url string) {
	r.mu.Lock()
	delete(r.blobs, url)
	live := len(r.blobs)
	r.mu.Unlock()
	r.metrics.SetLiveObjectURLs(live)
}

func (r *Registry) Resolve(url string) (media.Blob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blobs[url]
	return b, ok
}

// Live is the number of URLs not yet revoked.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// IsObjectURL reports whether url uses the blob: scheme.
func IsObjectURL(url string) bool {
	return strings.HasPrefix(url, objectURLScheme)
}
