package geo

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Chord returns the first and last vertex of a line string.
func Chord(ls *geom.LineString) (geom.Coord, geom.Coord, bool) {
	if ls == nil || ls.NumCoords() < 2 {
		return nil, nil, false
	}
	return ls.Coord(0), ls.Coord(ls.NumCoords() - 1), true
}

// ChordLength is the straight-line distance between the endpoints of ls.
func ChordLength(ls *geom.LineString) float64 {
	a, b, ok := Chord(ls)
	if !ok {
		return 0
	}
	return xy.Distance(a, b)
}

// DistanceToChord is the planar distance from p to the segment joining the
// endpoints of ls. Points beyond either end measure to the nearest endpoint.
func DistanceToChord(p geom.Coord, ls *geom.LineString) float64 {
	a, b, ok := Chord(ls)
	if !ok {
		return math.Inf(1)
	}
	if a.Equal(geom.XY, b) {
		return xy.Distance(p, a)
	}
	return xy.DistanceFromPointToLine(p, a, b)
}

// DistanceToLine is the planar distance from p to the full polyline.
func DistanceToLine(p geom.Coord, ls *geom.LineString) float64 {
	if ls == nil || ls.NumCoords() == 0 {
		return math.Inf(1)
	}
	if ls.NumCoords() == 1 {
		return xy.Distance(p, ls.Coord(0))
	}
	return xy.DistanceFromPointToLineString(ls.Layout(), p, ls.FlatCoords())
}

// Bearing is the angle in radians of the chord of ls against the +x axis,
// in (-pi, pi].
func Bearing(ls *geom.LineString) float64 {
	a, b, ok := Chord(ls)
	if !ok {
		return 0
	}
	return math.Atan2(b[1]-a[1], b[0]-a[0])
}
