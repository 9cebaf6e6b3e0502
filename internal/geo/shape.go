package geo

import "math"

const earthRadiusMeters = 6371000.0

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Shape is a user-drawn selection area. Exactly one variant is
// authoritative at a time.
type Shape interface {
	Contains(lat, lon float64) bool
}

// Circle selects everything within RadiusMeters of Center, boundary
// inclusive.
type Circle struct {
	Center       Point
	RadiusMeters float64
}

func (c Circle) Contains(lat, lon float64) bool {
	return Distance(c.Center, Point{Lat: lat, Lon: lon}) <= c.RadiusMeters
}

// Rect selects by latitude/longitude bounding box. The box test is the
// defined contract even for an edited (rotated) rectangle shape.
type Rect struct {
	South, West, North, East float64
}

func (r Rect) Contains(lat, lon float64) bool {
	return lat >= r.South && lat <= r.North && lon >= r.West && lon <= r.East
}

// Polygon selects by odd-even ray casting against the outer ring.
// Holes are not supported. Points exactly on an edge or vertex resolve
// to whatever the ray-cast formula yields.
type Polygon struct {
	Ring []Point
}

func (p Polygon) Contains(lat, lon float64) bool {
	if len(p.Ring) < 3 {
		return false
	}
	// Cheap bounding-box reject before the ray cast.
	if !p.boundingBox().Contains(lat, lon) {
		return false
	}

	inside := false
	j := len(p.Ring) - 1
	for i := 0; i < len(p.Ring); i++ {
		yi, xi := p.Ring[i].Lat, p.Ring[i].Lon
		yj, xj := p.Ring[j].Lat, p.Ring[j].Lon

		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

func (p Polygon) boundingBox() Rect {
	box := Rect{South: p.Ring[0].Lat, North: p.Ring[0].Lat, West: p.Ring[0].Lon, East: p.Ring[0].Lon}
	for _, pt := range p.Ring[1:] {
		if pt.Lat < box.South {
			box.South = pt.Lat
		}
		if pt.Lat > box.North {
			box.North = pt.Lat
		}
		if pt.Lon < box.West {
			box.West = pt.Lon
		}
		if pt.Lon > box.East {
			box.East = pt.Lon
		}
	}
	return box
}

// Distance returns the great-circle distance between two points in
// meters (haversine).
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
