package segment

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/impression-cli/internal/geo"
)

// Segment is one road segment with traffic metadata. Geometry is already in
// projected meters. Segments are never mutated after a Set is built.
type Segment struct {
	ID          string
	Geometry    *geom.LineString
	Class       RoadClass
	Direction   Direction
	Volume      float64
	SampleCount *float64
	LengthM     *float64

	// Coords keeps the source lon/lat vertices for diagnostics output.
	Coords []geo.Location
}

// Length returns the explicit segment length, falling back to the chord length.
func (s *Segment) Length() float64 {
	if s.LengthM != nil {
		return *s.LengthM
	}
	return geo.ChordLength(s.Geometry)
}
