package overlay

import (
	"sync"

	"github.com/nexview/radarsync/internal/radar"
)

// Handle identifies an overlay attached to the rendering surface.
type Handle int64

// Surface is the rendering side the registry and player talk to. The
// map UI implements it; headless runs use MemorySurface.
type Surface interface {
	AttachOverlay(bounds radar.Bounds, image []byte, opacity float64) Handle
	DetachOverlay(h Handle)
	SetOpacity(h Handle, value float64)
	FitView(bounds []radar.Bounds)
}

// MemorySurface is an in-process rendering bridge: it keeps the set of
// attached overlays so the HTTP layer can hand the current view to a
// client, and tracks the last requested viewport fit.
type MemorySurface struct {
	mu       sync.Mutex
	next     Handle
	attached map[Handle]AttachedOverlay
	lastFit  []radar.Bounds
}

// AttachedOverlay is one overlay currently attached to the surface.
type AttachedOverlay struct {
	Handle  Handle       `json:"handle"`
	Bounds  radar.Bounds `json:"bounds"`
	Image   []byte       `json:"image"`
	Opacity float64      `json:"opacity"`
}

func NewMemorySurface() *MemorySurface {
	return &MemorySurface{attached: make(map[Handle]AttachedOverlay)}
}

func (s *MemorySurface) AttachOverlay(bounds radar.Bounds, image []byte, opacity float64) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	h := s.next
	s.attached[h] = AttachedOverlay{Handle: h, Bounds: bounds, Image: image, Opacity: opacity}
	return h
}

func (s *MemorySurface) DetachOverlay(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attached, h)
}

func (s *MemorySurface) SetOpacity(h Handle, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.attached[h]; ok {
		o.Opacity = value
		s.attached[h] = o
	}
}

func (s *MemorySurface) FitView(bounds []radar.Bounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFit = append([]radar.Bounds(nil), bounds...)
}

// Attached returns the overlays currently on the surface.
func (s *MemorySurface) Attached() []AttachedOverlay {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AttachedOverlay, 0, len(s.attached))
	for _, o := range s.attached {
		out = append(out, o)
	}
	return out
}

// LastFit returns the bounds list from the most recent FitView call.
func (s *MemorySurface) LastFit() []radar.Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]radar.Bounds(nil), s.lastFit...)
}
