package broadcast

import "sync"

// PhotoCache remembers the platform file handle returned for an uploaded
// graph so repeated sends of the same image skip the upload. Graphs are
// regenerated for every batch, so the cache is flushed when a batch starts.
type PhotoCache struct {
	mu      sync.RWMutex
	handles map[string]string
}

// NewPhotoCache returns an empty cache.
func NewPhotoCache() *PhotoCache {
	return &PhotoCache{handles: make(map[string]string)}
}

// Get returns the cached handle for a local file path.
func (c *PhotoCache) Get(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handles[path]
	return h, ok
}

// Put stores the handle observed after a successful upload.
func (c *PhotoCache) Put(path, handle string) {
	if path == "" || handle == "" {
		return
	}
	c.mu.Lock()
	c.handles[path] = handle
	c.mu.Unlock()
}

// Invalidate drops all cached handles.
func (c *PhotoCache) Invalidate() {
	c.mu.Lock()
	c.handles = make(map[string]string)
	c.mu.Unlock()
}

// Len reports the number of cached handles.
func (c *PhotoCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}
