package view

import (
	"time"

	"github.com/nexview/radarsync/internal/player"
	"github.com/nexview/radarsync/internal/radar"
)

// LayerView is one registry entry shaped for UI rendering.
type LayerView struct {
	Source      string      `json:"source"`
	Name        string      `json:"name"`
	Field       radar.Field `json:"field"`
	Timestamp   time.Time   `json:"timestamp"`
	IsForecast  bool        `json:"isForecast"`
	LeadTimeMin int         `json:"leadTimeMin,omitempty"`
}

// State is the whole session view handed to the UI.
type State struct {
	Count      int           `json:"count"`
	Layers     []LayerView   `json:"layers"`
	Player     player.Status `json:"player"`
	Selection  []string      `json:"selection"`
	ActiveSlot string        `json:"activeSlot,omitempty"`
}

// State snapshots the session for the UI.
func (s *Session) State() State {
	layers := s.registry.Snapshot()
	views := make([]LayerView, 0, len(layers))
	for _, l := range layers {
		name := l.SourceCode
		if st, ok := s.catalog.Get(l.SourceCode); ok {
			name = st.Name
		}
		views = append(views, LayerView{
			Source:      l.SourceCode,
			Name:        name,
			Field:       l.Field,
			Timestamp:   l.Timestamp,
			IsForecast:  l.IsForecast,
			LeadTimeMin: l.LeadTimeMinutes,
		})
	}

	s.mu.Lock()
	active := s.activeSlot
	s.mu.Unlock()

	return State{
		Count:      len(views),
		Layers:     views,
		Player:     s.player.Status(),
		Selection:  s.sortedSelection(),
		ActiveSlot: active,
	}
}
