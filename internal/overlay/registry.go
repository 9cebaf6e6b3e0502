package overlay

import (
	"sort"
	"sync"
	"time"

	"github.com/nexview/radarsync/internal/radar"
)

// ActiveLayer is the currently displayed frame for one source.
type ActiveLayer struct {
	SourceCode      string
	Handle          Handle
	Bounds          radar.Bounds
	Timestamp       time.Time
	Field           radar.Field
	IsForecast      bool
	LeadTimeMinutes int
}

// Record is the logical persisted form of a layer, written on every
// registry mutation and read once at startup to restore the session.
type Record struct {
	Source string      `json:"source"`
	Field  radar.Field `json:"field"`
}

// Registry is the authoritative map from source code to its displayed
// layer. It owns the lifecycle of displayed imagery: a superseded
// layer's overlay is always detached from the surface before the new
// one is installed, and at most one layer exists per source.
type Registry struct {
	mu      sync.Mutex
	surface Surface
	opacity float64
	layers  map[string]*ActiveLayer

	// observer sees the persisted records after every mutation.
	observer func([]Record)
}

func NewRegistry(surface Surface, opacity float64) *Registry {
	return &Registry{
		surface: surface,
		opacity: opacity,
		layers:  make(map[string]*ActiveLayer),
	}
}

// SetObserver installs the persistence hook. Pass nil to detach it.
func (r *Registry) SetObserver(fn func([]Record)) {
	r.mu.Lock()
	r.observer = fn
	r.mu.Unlock()
}

// Install attaches the frame to the surface and makes it the source's
// active layer, releasing any previous layer for the same source
// first. Returns the installed layer.
func (r *Registry) Install(frame radar.Frame) ActiveLayer {
	r.mu.Lock()

	if old, ok := r.layers[frame.SourceCode]; ok {
		r.surface.DetachOverlay(old.Handle)
	}

	h := r.surface.AttachOverlay(frame.Bounds, frame.Image, r.opacity)
	layer := &ActiveLayer{
		SourceCode:      frame.SourceCode,
		Handle:          h,
		Bounds:          frame.Bounds,
		Timestamp:       frame.Timestamp,
		Field:           frame.Field,
		IsForecast:      frame.IsForecast,
		LeadTimeMinutes: frame.LeadTimeMinutes,
	}
	r.layers[frame.SourceCode] = layer

	installed := *layer
	r.notifyLocked()
	r.mu.Unlock()
	return installed
}

// Remove releases the source's overlay and drops the entry. No-op if
// the source is not loaded.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	layer, ok := r.layers[code]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.surface.DetachOverlay(layer.Handle)
	delete(r.layers, code)
	r.notifyLocked()
	r.mu.Unlock()
}

// Clear releases every overlay and empties the registry. Used before a
// wholesale replacement such as a refresh or a cache-slot load.
func (r *Registry) Clear() {
	r.mu.Lock()
	for code, layer := range r.layers {
		r.surface.DetachOverlay(layer.Handle)
		delete(r.layers, code)
	}
	r.notifyLocked()
	r.mu.Unlock()
}

// Has reports whether a layer exists for the source.
func (r *Registry) Has(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.layers[code]
	return ok
}

// Len returns the number of active layers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.layers)
}

// Snapshot returns the active layers sorted by source code, for UI
// rendering.
func (r *Registry) Snapshot() []ActiveLayer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ActiveLayer, 0, len(r.layers))
	for _, layer := range r.layers {
		out = append(out, *layer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceCode < out[j].SourceCode })
	return out
}

// Codes returns the loaded source codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.layers))
	for code := range r.layers {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Bounds returns the union of all layer bounds. ok is false when the
// registry is empty.
func (r *Registry) Bounds() (radar.Bounds, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var union radar.Bounds
	first := true
	for _, layer := range r.layers {
		if first {
			union = layer.Bounds
			first = false
			continue
		}
		union = union.Union(layer.Bounds)
	}
	return union, !first
}

func (r *Registry) notifyLocked() {
	if r.observer == nil {
		return
	}

	records := make([]Record, 0, len(r.layers))
	for _, layer := range r.layers {
		records = append(records, Record{Source: layer.SourceCode, Field: layer.Field})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Source < records[j].Source })
	r.observer(records)
}
