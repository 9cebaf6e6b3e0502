package view

import (
	"context"
	"log"

	"github.com/nexview/radarsync/internal/geo"
	"github.com/nexview/radarsync/internal/radar"
)

// ApplyShape makes the drawn shape the authoritative selection: the
// previous highlight is cleared, containment is evaluated from
// scratch against the catalog, and only newly selected stations that
// are not already loaded get fetched. Selection never removes layers
// that fall outside a newer shape.
//
// Editing a shape goes through the same path, so re-evaluation is
// always from scratch.
func (s *Session) ApplyShape(ctx context.Context, shape geo.Shape, field radar.Field) ([]string, error) {
	contained := make([]string, 0)
	for _, st := range s.catalog.All() {
		if shape.Contains(st.Lat, st.Lon) {
			contained = append(contained, st.Code)
		}
	}

	s.mu.Lock()
	s.selection = make(map[string]struct{}, len(contained))
	for _, code := range contained {
		s.selection[code] = struct{}{}
	}
	s.mu.Unlock()

	var toLoad []string
	for _, code := range contained {
		if !s.registry.Has(code) {
			toLoad = append(toLoad, code)
		}
	}
	if len(toLoad) == 0 {
		return contained, nil
	}

	epoch := s.currentEpoch()
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	frames, err := radar.FetchLatest(fetchCtx, toLoad, func(ctx context.Context, code string) (radar.Frame, error) {
		return s.fetchers.Image.FetchImage(ctx, code, field)
	})
	if err != nil {
		return contained, err
	}

	if s.installIfCurrent(epoch, frames) > 0 {
		for _, f := range frames {
			s.cachePut(f)
		}
	}
	log.Printf("INFO: shape selected %d stations, loaded %d new", len(contained), len(frames))
	return contained, nil
}

// ClearShape drops the selection highlight. Loaded layers stay.
func (s *Session) ClearShape() {
	s.mu.Lock()
	s.selection = make(map[string]struct{})
	s.mu.Unlock()
}

// Selection returns the currently highlighted station codes, sorted.
func (s *Session) Selection() []string {
	return s.sortedSelection()
}
