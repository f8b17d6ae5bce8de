package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

const earthRadiusKm = 6371.0

// Coordinates selects how node locations are interpreted when measuring distance.
type Coordinates uint8

const (
	// Auto resolves to Geographic when every location is degree-valued, else Planar.
	Auto Coordinates = iota
	// Geographic treats points as (lon, lat) degrees and measures great-circle km.
	Geographic
	// Planar treats points as kilometre offsets on a flat plane.
	Planar
)

func (c Coordinates) String() string {
	switch c {
	case Geographic:
		return "geographic"
	case Planar:
		return "planar"
	default:
		return "auto"
	}
}

// ParseCoordinates parses "auto", "geographic" or "planar".
func ParseCoordinates(s string) (Coordinates, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "geographic", "degrees", "lonlat":
		return Geographic, nil
	case "planar", "euclidean":
		return Planar, nil
	}
	return Auto, fmt.Errorf("unknown coordinate system %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Coordinates) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Coordinates) UnmarshalText(b []byte) error {
	v, err := ParseCoordinates(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// IsDegrees reports whether p is a plausible (lon, lat) pair.
func IsDegrees(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) &&
		p[0] >= -180 && p[0] <= 180 && p[1] >= -90 && p[1] <= 90
}

// Detect resolves Auto for a set of points. An empty set is Geographic.
func Detect(points []orb.Point) Coordinates {
	for _, p := range points {
		if !IsDegrees(p) {
			return Planar
		}
	}
	return Geographic
}

// Distance returns the distance in km between a and b under c.
// Auto decides per pair.
func (c Coordinates) Distance(a, b orb.Point) float64 {
	switch c {
	case Geographic:
		return HaversineKm(a, b)
	case Planar:
		return PlanarKm(a, b)
	}
	if IsDegrees(a) && IsDegrees(b) {
		return HaversineKm(a, b)
	}
	return PlanarKm(a, b)
}

// HaversineKm returns the great-circle distance in km between two (lon, lat) points.
func HaversineKm(a, b orb.Point) float64 {
	return orbgeo.DistanceHaversine(a, b) / 1000
}

// PlanarKm returns the Euclidean distance between two points in coordinate units.
func PlanarKm(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// EquirectangularKm returns an approximate great-circle distance in km.
// Accurate to well under 1% at city scale; use for candidate ranking.
func EquirectangularKm(a, b orb.Point) float64 {
	x := (b[0] - a[0]) * math.Cos((a[1]+b[1])/2*math.Pi/180) * math.Pi / 180
	y := (b[1] - a[1]) * math.Pi / 180
	return math.Sqrt(x*x+y*y) * earthRadiusKm
}
