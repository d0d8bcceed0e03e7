// Package normalize maps a population of raw impression scores onto a fixed
// index range using outlier fencing and robust scaling.
package normalize

import (
	"gonum.org/v1/gonum/floats"
)

// Default index range and fence multiplier.
const (
	DefaultMin   = 20.0
	DefaultMax   = 80.0
	DefaultFence = 1.5
)

// Params configures the normalizer.
type Params struct {
	Min   float64
	Max   float64
	Fence float64
}

// DefaultParams returns the stock 20..80 range with 1.5 IQR fences.
func DefaultParams() Params {
	return Params{Min: DefaultMin, Max: DefaultMax, Fence: DefaultFence}
}

// Score is one element of a normalized population.
type Score struct {
	Raw        float64 `json:"raw" yaml:"raw"`
	Cleaned    float64 `json:"cleaned" yaml:"cleaned"`
	Scaled     float64 `json:"scaled" yaml:"scaled"`
	Normalized float64 `json:"normalized" yaml:"normalized"`
}

// Bounds are the outlier fences applied to a population.
type Bounds struct {
	Q1    float64 `json:"q1" yaml:"q1"`
	Q3    float64 `json:"q3" yaml:"q3"`
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Fences returns the IQR outlier fences of raw. An empty population has zero
// fences.
func Fences(raw []float64, fence float64) Bounds {
	if len(raw) == 0 {
		return Bounds{}
	}
	q1, _, q3 := Quartiles(raw)
	iqr := q3 - q1
	return Bounds{Q1: q1, Q3: q3, Lower: q1 - fence*iqr, Upper: q3 + fence*iqr}
}

// Normalize maps the whole population raw onto [p.Min, p.Max]. The output is
// parallel to raw. Every element depends on the full population, so callers
// must pass the complete batch.
func Normalize(raw []float64, p Params) []Score {
	if len(raw) == 0 {
		return nil
	}
	if p.Max <= p.Min {
		p.Min, p.Max = DefaultMin, DefaultMax
	}
	if p.Fence <= 0 {
		p.Fence = DefaultFence
	}

	b := Fences(raw, p.Fence)
	out := make([]Score, len(raw))
	cleaned := make([]float64, len(raw))
	for i, r := range raw {
		c := min(b.Upper, max(b.Lower, r))
		out[i] = Score{Raw: r, Cleaned: c}
		cleaned[i] = c
	}

	q1, median, q3 := Quartiles(cleaned)
	iqr := q3 - q1
	scaled := make([]float64, len(raw))
	if iqr != 0 {
		for i, c := range cleaned {
			scaled[i] = (c - median) / iqr
		}
	}

	lo, hi := floats.Min(scaled), floats.Max(scaled)
	mid := (p.Min + p.Max) / 2
	span := p.Max - p.Min
	for i, s := range scaled {
		out[i].Scaled = s
		if hi == lo {
			out[i].Normalized = mid
			continue
		}
		out[i].Normalized = p.Min + span*(s-lo)/(hi-lo)
	}
	return out
}

// Values returns the normalized column of scores.
func Values(scores []Score) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = s.Normalized
	}
	return out
}
