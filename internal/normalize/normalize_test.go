package normalize

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile_LinearInterpolation(t *testing.T) {
	x := []float64{30, 0, 1000, 10, 20}
	assert.InDelta(t, 10, Quantile(x, 0.25), 1e-12)
	assert.InDelta(t, 20, Quantile(x, 0.5), 1e-12)
	assert.InDelta(t, 30, Quantile(x, 0.75), 1e-12)
	assert.InDelta(t, 0, Quantile(x, 0), 1e-12)
	assert.InDelta(t, 1000, Quantile(x, 1), 1e-12)

	// Four points: h = 3*0.25 = 0.75 between 1 and 2.
	assert.InDelta(t, 1.75, Quantile([]float64{1, 2, 3, 4}, 0.25), 1e-12)
	assert.InDelta(t, 3.25, Quantile([]float64{1, 2, 3, 4}, 0.75), 1e-12)

	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
	assert.Equal(t, []float64{30, 0, 1000, 10, 20}, x, "input must not be reordered")
}

func TestNormalize_OutlierPopulation(t *testing.T) {
	raw := []float64{0, 10, 20, 30, 1000}
	got := Normalize(raw, DefaultParams())
	require.Len(t, got, 5)

	// Q1=10, Q3=30, IQR=20, upper fence 60.
	assert.InDelta(t, 60, got[4].Cleaned, 1e-9)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, raw[i], got[i].Cleaned, 1e-9)
	}

	want := []float64{20, 30, 40, 50, 80}
	for i, w := range want {
		assert.InDelta(t, w, got[i].Normalized, 1e-9, "index %d", i)
	}
	assert.InDelta(t, -1, got[0].Scaled, 1e-9)
	assert.InDelta(t, 2, got[4].Scaled, 1e-9)
}

func TestNormalize_RangeAndRank(t *testing.T) {
	raw := []float64{512, 3, 77, 77, 1e6, 0, 45.5, 130, 9, 2200}
	got := Normalize(raw, DefaultParams())
	require.Len(t, got, len(raw))

	minIdx, maxIdx := 0, 0
	for i, r := range raw {
		if r < raw[minIdx] {
			minIdx = i
		}
		if r > raw[maxIdx] {
			maxIdx = i
		}
	}
	for _, s := range got {
		assert.GreaterOrEqual(t, s.Normalized, 20.0-1e-9)
		assert.LessOrEqual(t, s.Normalized, 80.0+1e-9)
	}
	assert.InDelta(t, 20, got[minIdx].Normalized, 1e-9)
	assert.InDelta(t, 80, got[maxIdx].Normalized, 1e-9)

	// Normalized order follows cleaned order.
	idx := make([]int, len(raw))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return got[idx[a]].Cleaned < got[idx[b]].Cleaned })
	for k := 1; k < len(idx); k++ {
		assert.LessOrEqual(t, got[idx[k-1]].Normalized, got[idx[k]].Normalized)
	}
}

func TestNormalize_ZeroVariance(t *testing.T) {
	got := Normalize([]float64{7, 7, 7}, DefaultParams())
	require.Len(t, got, 3)
	for _, s := range got {
		assert.Equal(t, 0.0, s.Scaled)
		assert.Equal(t, 50.0, s.Normalized)
	}
}

func TestNormalize_ZeroIQRWithOutlier(t *testing.T) {
	// IQR is zero so fences collapse and the outlier is clipped to the bulk.
	got := Normalize([]float64{5, 5, 5, 5, 5, 900}, DefaultParams())
	for _, s := range got {
		assert.Equal(t, 5.0, s.Cleaned)
		assert.Equal(t, 50.0, s.Normalized)
	}
}

func TestNormalize_SingleAndEmpty(t *testing.T) {
	assert.Nil(t, Normalize(nil, DefaultParams()))

	got := Normalize([]float64{123}, DefaultParams())
	require.Len(t, got, 1)
	assert.Equal(t, 50.0, got[0].Normalized)
}

func TestNormalize_CustomRange(t *testing.T) {
	got := Normalize([]float64{1, 2, 3}, Params{Min: 0, Max: 100, Fence: 1.5})
	assert.InDelta(t, 0, got[0].Normalized, 1e-9)
	assert.InDelta(t, 50, got[1].Normalized, 1e-9)
	assert.InDelta(t, 100, got[2].Normalized, 1e-9)
}

func TestNormalize_AllZeroRaw(t *testing.T) {
	got := Normalize([]float64{0, 0, 0, 0}, DefaultParams())
	assert.Equal(t, []float64{50, 50, 50, 50}, Values(got))
}

func TestFences(t *testing.T) {
	b := Fences([]float64{0, 10, 20, 30, 1000}, 1.5)
	assert.InDelta(t, 10, b.Q1, 1e-12)
	assert.InDelta(t, 30, b.Q3, 1e-12)
	assert.InDelta(t, -20, b.Lower, 1e-12)
	assert.InDelta(t, 60, b.Upper, 1e-12)

	assert.Equal(t, Bounds{}, Fences(nil, 1.5))
}

func TestDescribe(t *testing.T) {
	s := Describe([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, s.Count)
	assert.InDelta(t, 5, s.Mean, 1e-12)
	assert.InDelta(t, 2, s.Min, 1e-12)
	assert.InDelta(t, 9, s.Max, 1e-12)
	assert.InDelta(t, 4.5, s.Median, 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7.0), s.Std, 1e-9)
	assert.Greater(t, s.Skewness, 0.0)

	empty := Describe(nil)
	assert.Equal(t, 0, empty.Count)

	flat := Describe([]float64{3, 3, 3})
	assert.Equal(t, 0.0, flat.Std)
	assert.Equal(t, 0.0, flat.Skewness)
	assert.Equal(t, 0.0, flat.Kurtosis)
}
