// Package geo provides great-circle distance and radius-bounded nearest
// neighbour search over located entities (donors, hospitals, SOS requests).
//
// Filtering by indexable attributes such as role or blood type is expected to
// happen in the repository before candidates reach this package; BoundingBox
// gives repositories an index-friendly rectangle to narrow rows further.
// Exact distances are always computed here.
package geo

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// EarthRadiusKm is the mean earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// kmPerDegree is the length of one degree of arc on a great circle.
const kmPerDegree = EarthRadiusKm * math.Pi / 180

// LatLon is a WGS84 coordinate in decimal degrees.
type LatLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinate ranges.
func (p LatLon) Validate() error {
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Latitude)
	}
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Longitude)
	}
	return nil
}

// DistanceKm returns the haversine distance between a and b.
func DistanceKm(a, b LatLon) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	sLat := math.Sin(dLat / 2)
	sLon := math.Sin(dLon / 2)
	h := sLat*sLat + math.Cos(lat1)*math.Cos(lat2)*sLon*sLon
	// rounding can push h marginally outside [0, 1]; asin would then return NaN
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Candidate is a located entity offered to a search.
type Candidate struct {
	ID       uuid.UUID
	Location LatLon
}

// Match is a candidate that satisfied a search, with its distance from the centre.
type Match struct {
	ID         uuid.UUID `json:"id"`
	DistanceKm float64   `json:"distance_km"`
}

// FindWithinRadius returns the candidates whose distance from center is at
// most radiusKm, nearest first. Candidates at equal distance keep their input
// order. An empty result is not an error.
func FindWithinRadius(center LatLon, radiusKm float64, candidates []Candidate) []Match {
	if radiusKm < 0 || math.IsNaN(radiusKm) {
		return []Match{}
	}
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		d := DistanceKm(center, c.Location)
		if d <= radiusKm {
			matches = append(matches, Match{ID: c.ID, DistanceKm: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	return matches
}

// FindNearest returns the nearest candidate, optionally capped at maxKm.
func FindNearest(center LatLon, candidates []Candidate, maxKm *float64) (Match, bool) {
	var (
		best  Match
		found bool
	)
	for _, c := range candidates {
		d := DistanceKm(center, c.Location)
		if maxKm != nil && d > *maxKm {
			continue
		}
		// strict < keeps the first of equally distant candidates
		if !found || d < best.DistanceKm {
			best = Match{ID: c.ID, DistanceKm: d}
			found = true
		}
	}
	return best, found
}

// Box is a latitude/longitude rectangle.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// BoundingBox returns a rectangle containing every point within radiusKm of
// center. Near the poles or across the antimeridian the longitude span widens
// to the full range, so the box may contain more than the circle but never less.
func BoundingBox(center LatLon, radiusKm float64) Box {
	dLat := radiusKm / kmPerDegree
	box := Box{
		MinLat: math.Max(-90, center.Latitude-dLat),
		MaxLat: math.Min(90, center.Latitude+dLat),
		MinLon: -180,
		MaxLon: 180,
	}
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		return box
	}

	cosLat := math.Cos(radians(math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat))))
	dLon := radiusKm / (kmPerDegree * cosLat)
	if dLon >= 180 {
		return box
	}
	minLon := center.Longitude - dLon
	maxLon := center.Longitude + dLon
	if minLon < -180 || maxLon > 180 {
		return box
	}
	box.MinLon = minLon
	box.MaxLon = maxLon
	return box
}

// Contains reports whether p lies inside the box (edges inclusive).
func (b Box) Contains(p LatLon) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLon && p.Longitude <= b.MaxLon
}

// RoundKm rounds a distance to two decimals for display.
func RoundKm(d float64) float64 {
	return math.Round(d*100) / 100
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// FromNullable builds a location from nullable columns; nil unless both are set.
func FromNullable(lat, lon *float64) *LatLon {
	if lat == nil || lon == nil {
		return nil
	}
	return &LatLon{Latitude: *lat, Longitude: *lon}
}

// Nullable splits p into nullable columns.
func (p *LatLon) Nullable() (lat, lon *float64) {
	if p == nil {
		return nil, nil
	}
	la, lo := p.Latitude, p.Longitude
	return &la, &lo
}
