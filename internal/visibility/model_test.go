package visibility

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/impression-cli/internal/segment"
)

func horizontal(y, halfLen float64) *segment.Segment {
	return &segment.Segment{
		ID:        "h",
		Geometry:  geom.NewLineStringFlat(geom.XY, []float64{-halfLen, y, halfLen, y}),
		Class:     segment.Motorway,
		Direction: segment.Bidirectional,
		Volume:    1000,
	}
}

func TestDecay(t *testing.T) {
	m := New(DefaultParams())
	tests := []struct {
		d    float64
		want float64
	}{
		{0, 1},
		{25, 1},
		{50, 1},
		{75, 0.75},
		{100, 0.5},
		{150, 0},
		{151, 0},
		{1000, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, m.Decay(tt.d), 1e-12, "d=%v", tt.d)
	}
}

func TestFactor_ZeroBeyondFar(t *testing.T) {
	m := New(DefaultParams())
	for _, d := range []float64{150.0001, 151, 200, 500} {
		assert.Equal(t, 0.0, m.Factor(horizontal(d, 50), geom.Coord{0, 0}), "d=%v", d)
	}
}

func TestFactor_FlatInsideNear(t *testing.T) {
	m := New(DefaultParams())
	base := m.Factor(horizontal(0, 50), geom.Coord{0, 0})
	assert.Greater(t, base, 0.0)
	for _, d := range []float64{1, 10, 25, 49.9, 50} {
		assert.InDelta(t, base, m.Factor(horizontal(d, 50), geom.Coord{0, 0}), 1e-12, "d=%v", d)
	}
}

func TestFactor_MotorwayBidirectionalAtZeroDistance(t *testing.T) {
	m := New(DefaultParams())
	seg := horizontal(0, 50) // 100 m chord running along +x

	b := m.Explain(seg, geom.Coord{0, 0})
	assert.InDelta(t, 2.0, b.RoadWeight, 1e-12)
	assert.InDelta(t, 1.6, b.DirectionWeight, 1e-12)
	assert.InDelta(t, 1.0, b.Decay, 1e-12)
	assert.InDelta(t, 1.0, b.Angle, 1e-12)
	assert.InDelta(t, 1.0, b.Duration, 1e-12)
	assert.InDelta(t, 3.2, b.Factor, 1e-12)
}

func TestFactor_AngleTerm(t *testing.T) {
	m := New(DefaultParams())
	north := &segment.Segment{
		Geometry:  geom.NewLineStringFlat(geom.XY, []float64{0, -50, 0, 50}),
		Class:     segment.Residential,
		Direction: segment.WithGeometry,
	}
	b := m.Explain(north, geom.Coord{0, 0})
	assert.InDelta(t, 90, b.BearingDeg, 1e-9)
	assert.InDelta(t, 0.5, b.Angle, 1e-12)
	assert.InDelta(t, 1.0*1.3*0.5, b.Factor, 1e-12)

	west := &segment.Segment{
		Geometry:  geom.NewLineStringFlat(geom.XY, []float64{50, 0, -50, 0}),
		Class:     segment.Residential,
		Direction: segment.WithGeometry,
	}
	b = m.Explain(west, geom.Coord{0, 0})
	assert.InDelta(t, 0, b.Angle, 1e-12)
	assert.Equal(t, 0.0, b.Duration)
	assert.Equal(t, 0.0, b.Factor)
}

func TestFactor_DurationUsesExplicitLength(t *testing.T) {
	m := New(DefaultParams())
	seg := horizontal(0, 50)
	length := 800.0
	seg.LengthM = &length

	b := m.Explain(seg, geom.Coord{0, 0})
	assert.InDelta(t, 2.0, b.Duration, 1e-12)
	assert.InDelta(t, 6.4, b.Factor, 1e-12)
}

func TestFactor_DegenerateSegment(t *testing.T) {
	m := New(DefaultParams())
	seg := &segment.Segment{
		Geometry:  geom.NewLineStringFlat(geom.XY, []float64{5, 5, 5, 5}),
		Class:     segment.Motorway,
		Direction: segment.Bidirectional,
	}
	assert.Equal(t, 0.0, m.Factor(seg, geom.Coord{5, 5}))
}

func TestWeights_Defaults(t *testing.T) {
	m := New(Params{})
	assert.InDelta(t, 0.9, m.RoadWeight(segment.Unclassified), 1e-12)
	assert.InDelta(t, 1.0, m.RoadWeight(segment.RoadClass("footway")), 1e-12)
	assert.InDelta(t, 0.7, m.RoadWeight(segment.LivingStreet), 1e-12)
	assert.InDelta(t, 1.0, m.DirectionWeight(segment.Direction(0)), 1e-12)
	assert.InDelta(t, 0.9, m.DirectionWeight(segment.AgainstGeometry), 1e-12)
}

func TestWeights_Range(t *testing.T) {
	for class, w := range DefaultRoadWeights() {
		assert.GreaterOrEqual(t, w, 0.7, string(class))
		assert.LessOrEqual(t, w, 2.0, string(class))
	}
}

func TestDurationFactor(t *testing.T) {
	assert.InDelta(t, 1.0, DurationFactor(100), 1e-12)
	assert.InDelta(t, 3.0, DurationFactor(2700), 1e-12)
	assert.Equal(t, 0.0, DurationFactor(0))
	assert.Equal(t, 0.0, DurationFactor(-5))
}

func TestAngleFactor_Range(t *testing.T) {
	for a := -math.Pi; a <= math.Pi; a += 0.1 {
		f := AngleFactor(a)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}
