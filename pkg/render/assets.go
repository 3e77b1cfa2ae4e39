package render

import "sync"

// AssetRecorder collects asset references made during a single render job.
// Templates register assets through the asset function; the orchestrator
// adds image references found in the rendered output. Paths keep first-seen
// order and duplicates are dropped.
type AssetRecorder struct {
	mu     sync.Mutex
	seen   map[string]bool
	assets []string
}

// NewAssetRecorder creates an empty recorder.
func NewAssetRecorder() *AssetRecorder {
	return &AssetRecorder{
		seen: make(map[string]bool),
	}
}

// Record registers an asset reference and returns the path unchanged so
// templates can use it inline.
func (r *AssetRecorder) Record(path string) string {
	if path == "" {
		return path
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.seen[path] {
		r.seen[path] = true
		r.assets = append(r.assets, path)
	}
	return path
}

// Assets returns the recorded paths in first-seen order.
func (r *AssetRecorder) Assets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.assets))
	copy(out, r.assets)
	return out
}

// Len returns the number of distinct recorded assets.
func (r *AssetRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assets)
}
