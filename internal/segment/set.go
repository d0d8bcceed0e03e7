package segment

import (
	"math"
	"slices"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/impression-cli/internal/geo"
)

// DefaultCellSize is the grid cell edge in meters used when none is given.
const DefaultCellSize = 150.0

// maxCellsPerSegment caps grid fan-out; longer segments go to a linear list.
const maxCellsPerSegment = 4096

type cellKey struct {
	x, y int64
}

// Set is an immutable collection of segments with a uniform grid index.
// It is safe for concurrent reads.
type Set struct {
	segments []*Segment
	cellSize float64
	cells    map[cellKey][]int
	oversize []int
}

// NewSet indexes segs on a grid with the given cell edge in meters.
// Segments without a usable geometry are left out of the index.
func NewSet(segs []*Segment, cellSize float64) *Set {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	s := &Set{
		segments: segs,
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
	}
	for i, seg := range segs {
		if seg == nil || seg.Geometry == nil || seg.Geometry.NumCoords() == 0 {
			continue
		}
		b := seg.Geometry.Bounds()
		minX, minY := s.cell(b.Min(0)), s.cell(b.Min(1))
		maxX, maxY := s.cell(b.Max(0)), s.cell(b.Max(1))
		if (maxX-minX+1)*(maxY-minY+1) > maxCellsPerSegment {
			s.oversize = append(s.oversize, i)
			continue
		}
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				k := cellKey{x, y}
				s.cells[k] = append(s.cells[k], i)
			}
		}
	}
	return s
}

func (s *Set) cell(v float64) int64 {
	return int64(math.Floor(v / s.cellSize))
}

// Len returns the number of segments in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.segments)
}

// All returns the segments in load order. Callers must not modify them.
func (s *Set) All() []*Segment {
	if s == nil {
		return nil
	}
	return s.segments
}

// Within returns every segment whose polyline lies within radius meters of p,
// in load order. An empty result is not an error.
func (s *Set) Within(p geom.Coord, radius float64) []*Segment {
	if s == nil || len(s.segments) == 0 || radius < 0 {
		return nil
	}

	minX, minY := s.cell(p[0]-radius), s.cell(p[1]-radius)
	maxX, maxY := s.cell(p[0]+radius), s.cell(p[1]+radius)

	seen := make(map[int]struct{})
	var hits []int
	for _, i := range s.oversize {
		seen[i] = struct{}{}
		if geo.DistanceToLine(p, s.segments[i].Geometry) <= radius {
			hits = append(hits, i)
		}
	}
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for _, i := range s.cells[cellKey{x, y}] {
				if _, ok := seen[i]; ok {
					continue
				}
				seen[i] = struct{}{}
				if geo.DistanceToLine(p, s.segments[i].Geometry) <= radius {
					hits = append(hits, i)
				}
			}
		}
	}

	// Load order keeps summation order, and so the raw score, deterministic.
	slices.Sort(hits)
	out := make([]*Segment, len(hits))
	for j, i := range hits {
		out[j] = s.segments[i]
	}
	return out
}
