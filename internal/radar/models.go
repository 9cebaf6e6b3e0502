package radar

import (
	"fmt"
	"strings"
	"time"
)

// Field identifies which radar moment a frame renders.
type Field string

const (
	FieldReflectivity Field = "reflectivity"
	FieldVelocity     Field = "velocity"
)

// ParseField normalizes and validates a field name. An empty value
// defaults to reflectivity, matching the upstream API.
func ParseField(s string) (Field, error) {
	switch Field(strings.ToLower(s)) {
	case "":
		return FieldReflectivity, nil
	case FieldReflectivity:
		return FieldReflectivity, nil
	case FieldVelocity:
		return FieldVelocity, nil
	}
	return "", fmt.Errorf("unknown field %q", s)
}

// Bounds is a geographic bounding box in degrees.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Union expands b to cover o.
func (b Bounds) Union(o Bounds) Bounds {
	if o.South < b.South {
		b.South = o.South
	}
	if o.West < b.West {
		b.West = o.West
	}
	if o.North > b.North {
		b.North = o.North
	}
	if o.East > b.East {
		b.East = o.East
	}
	return b
}

// Contains reports whether the coordinate falls inside the box
// (boundary inclusive).
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// Frame is one timestamped raster overlay for a source. Immutable once
// produced by a fetcher.
type Frame struct {
	SourceCode string    `json:"source"`
	Field      Field     `json:"field"`
	Timestamp  time.Time `json:"timestamp"` // always UTC
	Image      []byte    `json:"image"`     // rasterizable PNG bytes
	Bounds     Bounds    `json:"bounds"`

	// Forecast frames carry their lead time; zero for observations.
	LeadTimeMinutes int  `json:"leadTimeMin,omitempty"`
	IsForecast      bool `json:"isForecast,omitempty"`
}

// SlotFile points at one cached frame inside a timeline slot.
type SlotFile struct {
	Source  string `json:"source"`
	FileRef string `json:"fileRef"`
}

// TimelineSlot is one historical time bucket aggregating which sources
// have cached data at that instant. Read-only once built.
type TimelineSlot struct {
	SlotKey     string     `json:"slotKey"`
	Bucket      time.Time  `json:"bucket"` // UTC, rounded down to 5 minutes
	SourceCount int        `json:"sourceCount"`
	Sources     []string   `json:"sources"`
	Files       []SlotFile `json:"files"`
}
