package impression

// ConfidenceParams ramps confidence linearly between two sample counts.
type ConfidenceParams struct {
	MinSample     float64
	OptimalSample float64
	Floor         float64
}

// DefaultConfidence returns the stock sample-count ramp.
func DefaultConfidence() ConfidenceParams {
	return ConfidenceParams{MinSample: 100, OptimalSample: 1000, Floor: 0.6}
}

// ConfidenceFactor maps a sample count onto [Floor, 1]. A nil count means the
// dataset carries no sample information and confidence is full.
func ConfidenceFactor(sampleCount *float64, p ConfidenceParams) float64 {
	if sampleCount == nil {
		return 1
	}
	span := p.OptimalSample - p.MinSample
	if span <= 0 {
		if *sampleCount >= p.OptimalSample {
			return 1
		}
		return p.Floor
	}
	c := p.Floor + (1-p.Floor)*(*sampleCount-p.MinSample)/span
	return min(1, max(p.Floor, c))
}
