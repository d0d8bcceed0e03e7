// Package visibility scores how visible a road segment's traffic is from a
// storefront. The factor is a product of independent terms so each one can
// be tuned on its own.
package visibility

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/impression-cli/internal/geo"
	"github.com/sells-group/impression-cli/internal/segment"
)

// Default distance thresholds in meters.
const (
	DefaultNearM = 50.0
	DefaultFarM  = 150.0
)

// Params tunes the visibility model.
type Params struct {
	NearM                  float64
	FarM                   float64
	RoadWeights            map[segment.RoadClass]float64
	DirectionWeights       map[segment.Direction]float64
	DefaultRoadWeight      float64
	DefaultDirectionWeight float64
}

// DefaultRoadWeights returns the road classification weight table.
func DefaultRoadWeights() map[segment.RoadClass]float64 {
	return map[segment.RoadClass]float64{
		segment.Motorway:      2.0,
		segment.MotorwayLink:  1.8,
		segment.Trunk:         1.8,
		segment.TrunkLink:     1.6,
		segment.Primary:       1.6,
		segment.PrimaryLink:   1.4,
		segment.Secondary:     1.4,
		segment.SecondaryLink: 1.2,
		segment.Tertiary:      1.2,
		segment.TertiaryLink:  1.0,
		segment.Residential:   1.0,
		segment.Service:       0.8,
		segment.LivingStreet:  0.7,
		segment.Unclassified:  0.9,
	}
}

// DefaultDirectionWeights returns the direction code weight table.
func DefaultDirectionWeights() map[segment.Direction]float64 {
	return map[segment.Direction]float64{
		segment.WithGeometry:    1.3,
		segment.AgainstGeometry: 0.9,
		segment.Bidirectional:   1.6,
	}
}

// DefaultParams returns the stock model parameters.
func DefaultParams() Params {
	return Params{
		NearM:                  DefaultNearM,
		FarM:                   DefaultFarM,
		RoadWeights:            DefaultRoadWeights(),
		DirectionWeights:       DefaultDirectionWeights(),
		DefaultRoadWeight:      1.0,
		DefaultDirectionWeight: 1.0,
	}
}

// Breakdown lists every term of a visibility factor.
type Breakdown struct {
	RoadWeight      float64 `json:"road_weight" yaml:"road_weight"`
	DirectionWeight float64 `json:"direction_weight" yaml:"direction_weight"`
	DistanceM       float64 `json:"distance_m" yaml:"distance_m"`
	Decay           float64 `json:"decay" yaml:"decay"`
	BearingDeg      float64 `json:"bearing_deg" yaml:"bearing_deg"`
	Angle           float64 `json:"angle" yaml:"angle"`
	LengthM         float64 `json:"length_m" yaml:"length_m"`
	Duration        float64 `json:"duration" yaml:"duration"`
	Factor          float64 `json:"factor" yaml:"factor"`
}

// Model computes visibility factors. It holds no mutable state.
type Model struct {
	p Params
}

// New builds a model, filling zero-valued params from the defaults.
func New(p Params) *Model {
	d := DefaultParams()
	if p.NearM <= 0 && p.FarM <= 0 {
		p.NearM, p.FarM = d.NearM, d.FarM
	}
	if p.RoadWeights == nil {
		p.RoadWeights = d.RoadWeights
	}
	if p.DirectionWeights == nil {
		p.DirectionWeights = d.DirectionWeights
	}
	if p.DefaultRoadWeight == 0 {
		p.DefaultRoadWeight = d.DefaultRoadWeight
	}
	if p.DefaultDirectionWeight == 0 {
		p.DefaultDirectionWeight = d.DefaultDirectionWeight
	}
	return &Model{p: p}
}

// Params returns a copy of the model parameters.
func (m *Model) Params() Params {
	return m.p
}

// RoadWeight returns the weight for a road class.
func (m *Model) RoadWeight(c segment.RoadClass) float64 {
	if w, ok := m.p.RoadWeights[c]; ok {
		return w
	}
	return m.p.DefaultRoadWeight
}

// DirectionWeight returns the weight for a direction code.
func (m *Model) DirectionWeight(d segment.Direction) float64 {
	if w, ok := m.p.DirectionWeights[d]; ok {
		return w
	}
	return m.p.DefaultDirectionWeight
}

// Decay maps a distance in meters to [0, 1]: flat inside the near threshold,
// linear down to zero at the far threshold, zero beyond.
func (m *Model) Decay(d float64) float64 {
	switch {
	case d <= m.p.NearM:
		return 1
	case d <= m.p.FarM:
		return 1 - (d-m.p.NearM)/(m.p.FarM-m.p.NearM)
	default:
		return 0
	}
}

// AngleFactor maps a bearing in radians to [0, 1].
func AngleFactor(bearing float64) float64 {
	return 0.5 + 0.5*math.Cos(bearing)
}

// DurationFactor models exposure time with diminishing returns in length.
func DurationFactor(lengthM float64) float64 {
	if lengthM <= 0 {
		return 0
	}
	return math.Cbrt(lengthM / 100)
}

// Factor returns the visibility factor of seg as seen from p.
func (m *Model) Factor(seg *segment.Segment, p geom.Coord) float64 {
	return m.Explain(seg, p).Factor
}

// Explain returns the factor of seg as seen from p together with its terms.
func (m *Model) Explain(seg *segment.Segment, p geom.Coord) Breakdown {
	b := Breakdown{
		RoadWeight:      m.RoadWeight(seg.Class),
		DirectionWeight: m.DirectionWeight(seg.Direction),
	}

	b.DistanceM = geo.DistanceToChord(p, seg.Geometry)
	if geo.ChordLength(seg.Geometry) == 0 {
		return b
	}

	b.Decay = m.Decay(b.DistanceM)
	bearing := geo.Bearing(seg.Geometry)
	b.BearingDeg = bearing * 180 / math.Pi
	b.Angle = AngleFactor(bearing)
	b.LengthM = seg.Length()

	if b.Decay == 0 || b.Angle == 0 {
		return b
	}
	b.Duration = DurationFactor(b.LengthM)
	b.Factor = b.RoadWeight * b.DirectionWeight * b.Decay * b.Angle * b.Duration
	return b
}
