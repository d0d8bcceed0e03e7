package normalize

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a sample of scores.
type Summary struct {
	Count    int     `json:"count" yaml:"count"`
	Mean     float64 `json:"mean" yaml:"mean"`
	Std      float64 `json:"std" yaml:"std"`
	Min      float64 `json:"min" yaml:"min"`
	Q1       float64 `json:"q1" yaml:"q1"`
	Median   float64 `json:"median" yaml:"median"`
	Q3       float64 `json:"q3" yaml:"q3"`
	Max      float64 `json:"max" yaml:"max"`
	Skewness float64 `json:"skewness" yaml:"skewness"`
	Kurtosis float64 `json:"kurtosis" yaml:"kurtosis"`
}

// Describe summarises x. Statistics a sample is too small for are zero.
func Describe(x []float64) Summary {
	s := Summary{Count: len(x)}
	if len(x) == 0 {
		return s
	}
	s.Mean = stat.Mean(x, nil)
	s.Min = floats.Min(x)
	s.Max = floats.Max(x)
	s.Q1, s.Median, s.Q3 = Quartiles(x)
	if len(x) > 1 {
		s.Std = stat.StdDev(x, nil)
	}
	if s.Std > 0 {
		s.Skewness = finite(stat.Skew(x, nil))
		s.Kurtosis = finite(stat.ExKurtosis(x, nil))
	}
	return s
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
