// Package geo projects geographic coordinates into a planar metric space and
// provides the planar measurements the visibility model relies on.
package geo

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Supported projection names.
const (
	ProjectionLocal       = "local"
	ProjectionWebMercator = "epsg:3857"
)

// earthRadius is the WGS84 semi-major axis in meters, shared with EPSG:3857.
const earthRadius = 6378137.0

// maxMercatorLat is the latitude beyond which Web Mercator is undefined in practice.
const maxMercatorLat = 85.05112878

// ErrUnsupportedProjection is returned for unknown projection names.
var ErrUnsupportedProjection = eris.New("geo: unsupported projection")

// Location is a point in geographic degrees.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Validate reports whether the location is inside the WGS84 domain.
func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lon) {
		return eris.New("geo: location has NaN coordinate")
	}
	if l.Lat < -90 || l.Lat > 90 {
		return eris.Errorf("geo: latitude %f out of range", l.Lat)
	}
	if l.Lon < -180 || l.Lon > 180 {
		return eris.Errorf("geo: longitude %f out of range", l.Lon)
	}
	return nil
}

// Projector maps geographic locations into planar meters.
type Projector interface {
	Name() string
	Project(loc Location) geom.Coord
}

// NewProjector returns the named projector. The origin is only used by the
// local projection, which is accurate near that point.
func NewProjector(name string, origin Location) (Projector, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProjectionLocal:
		if err := origin.Validate(); err != nil {
			return nil, eris.Wrap(err, "geo: local projection origin")
		}
		return newLocal(origin), nil
	case ProjectionWebMercator, "3857", "web_mercator":
		return webMercator{}, nil
	default:
		return nil, eris.Wrapf(ErrUnsupportedProjection, "%q", name)
	}
}

// local is an equirectangular tangent plane around an origin. Distances are
// preserved to well under a percent within tens of kilometers of the origin.
type local struct {
	origin Location
	kx     float64
	ky     float64
}

func newLocal(origin Location) local {
	rad := math.Pi / 180
	return local{
		origin: origin,
		kx:     earthRadius * rad * math.Cos(origin.Lat*rad),
		ky:     earthRadius * rad,
	}
}

func (p local) Name() string { return ProjectionLocal }

func (p local) Project(loc Location) geom.Coord {
	return geom.Coord{
		(loc.Lon - p.origin.Lon) * p.kx,
		(loc.Lat - p.origin.Lat) * p.ky,
	}
}

// Origin returns the tangent point of the local projection.
func (p local) Origin() Location { return p.origin }

type webMercator struct{}

func (webMercator) Name() string { return ProjectionWebMercator }

func (webMercator) Project(loc Location) geom.Coord {
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, loc.Lat))
	pt := project.WGS84.ToMercator(orb.Point{loc.Lon, lat})
	return geom.Coord{pt[0], pt[1]}
}

// Centroid returns the mean of the given locations, or the zero location if
// none are given.
func Centroid(locs []Location) Location {
	if len(locs) == 0 {
		return Location{}
	}
	var lat, lon float64
	for _, l := range locs {
		lat += l.Lat
		lon += l.Lon
	}
	n := float64(len(locs))
	return Location{Lat: lat / n, Lon: lon / n}
}
