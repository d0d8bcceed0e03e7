// Package impression turns nearby road segments into a raw impression score
// and runs that computation across storefront batches.
package impression

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/impression-cli/internal/segment"
	"github.com/sells-group/impression-cli/internal/visibility"
)

// DefaultDiversityCoef scales the multi-road bonus.
const DefaultDiversityCoef = 0.1

// Contribution is one segment's share of a raw score.
type Contribution struct {
	SegmentID   string               `json:"segment_id" yaml:"segment_id"`
	Class       string               `json:"class" yaml:"class"`
	Direction   int                  `json:"direction" yaml:"direction"`
	Volume      float64              `json:"volume" yaml:"volume"`
	Confidence  float64              `json:"confidence" yaml:"confidence"`
	Visibility  float64              `json:"visibility" yaml:"visibility"`
	Impressions float64              `json:"impressions" yaml:"impressions"`
	Breakdown   visibility.Breakdown `json:"breakdown" yaml:"breakdown"`
}

// Result is the raw score for one storefront.
type Result struct {
	Raw            float64        `json:"raw" yaml:"raw"`
	Subtotal       float64        `json:"subtotal" yaml:"subtotal"`
	Contributing   int            `json:"contributing" yaml:"contributing"`
	DiversityBonus float64        `json:"diversity_bonus" yaml:"diversity_bonus"`
	Contributions  []Contribution `json:"contributions" yaml:"contributions"`
}

// Aggregator combines per-segment visibility, volume, and confidence.
type Aggregator struct {
	model         *visibility.Model
	confidence    ConfidenceParams
	diversityCoef float64
}

// NewAggregator builds an aggregator over the given model.
func NewAggregator(model *visibility.Model, conf ConfidenceParams, diversityCoef float64) *Aggregator {
	if model == nil {
		model = visibility.New(visibility.DefaultParams())
	}
	return &Aggregator{model: model, confidence: conf, diversityCoef: diversityCoef}
}

// Model returns the visibility model in use.
func (a *Aggregator) Model() *visibility.Model {
	return a.model
}

// Aggregate scores a projected storefront point against its nearby segments.
// No segments yields a zero result.
func (a *Aggregator) Aggregate(p geom.Coord, nearby []*segment.Segment) Result {
	res := Result{DiversityBonus: 1}
	if len(nearby) == 0 {
		return res
	}

	res.Contributions = make([]Contribution, 0, len(nearby))
	for _, seg := range nearby {
		b := a.model.Explain(seg, p)
		conf := ConfidenceFactor(seg.SampleCount, a.confidence)
		imp := seg.Volume * b.Factor * conf

		res.Contributions = append(res.Contributions, Contribution{
			SegmentID:   seg.ID,
			Class:       string(seg.Class),
			Direction:   int(seg.Direction),
			Volume:      seg.Volume,
			Confidence:  conf,
			Visibility:  b.Factor,
			Impressions: imp,
			Breakdown:   b,
		})
		res.Subtotal += imp
		if imp > 0 {
			res.Contributing++
		}
	}

	res.Raw = res.Subtotal
	if res.Contributing > 1 {
		res.DiversityBonus = DiversityBonus(res.Contributing, a.diversityCoef)
		res.Raw *= res.DiversityBonus
	}
	return res
}

// DiversityBonus rewards visibility from several roads: 1 + coef*ln(1+n).
func DiversityBonus(n int, coef float64) float64 {
	return 1 + coef*math.Log1p(float64(n))
}
