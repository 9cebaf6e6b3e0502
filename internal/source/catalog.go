package source

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed stations.json
var stationsJSON []byte

// Source is one radar station. Immutable after catalog load.
type Source struct {
	Code string  `json:"code"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Catalog is the set of known radar stations, loaded once at startup.
type Catalog struct {
	byCode map[string]Source
	codes  []string
}

// Load parses the embedded station list.
func Load() (*Catalog, error) {
	return parse(stationsJSON)
}

func parse(data []byte) (*Catalog, error) {
	var list []Source
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse station catalog: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("station catalog is empty")
	}

	c := &Catalog{byCode: make(map[string]Source, len(list))}
	for _, s := range list {
		if s.Lat < -90 || s.Lat > 90 {
			return nil, fmt.Errorf("station %s: invalid latitude %f", s.Code, s.Lat)
		}
		if s.Lon < -180 || s.Lon > 180 {
			return nil, fmt.Errorf("station %s: invalid longitude %f", s.Code, s.Lon)
		}
		c.byCode[s.Code] = s
		c.codes = append(c.codes, s.Code)
	}
	sort.Strings(c.codes)
	return c, nil
}

// Get looks up a station by code. Codes are case-insensitive on input.
func (c *Catalog) Get(code string) (Source, bool) {
	s, ok := c.byCode[strings.ToUpper(code)]
	return s, ok
}

// Codes returns all station codes in sorted order.
func (c *Catalog) Codes() []string {
	out := make([]string, len(c.codes))
	copy(out, c.codes)
	return out
}

// All returns every station, sorted by code.
func (c *Catalog) All() []Source {
	out := make([]Source, 0, len(c.codes))
	for _, code := range c.codes {
		out = append(out, c.byCode[code])
	}
	return out
}

// Len returns the number of stations in the catalog.
func (c *Catalog) Len() int {
	return len(c.byCode)
}
